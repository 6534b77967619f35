package netx

import (
	"errors"
	"fmt"
	"io"

	"github.com/starford/gopher-mcp/internal/apperr"
)

// ErrTooLarge is wrapped by ReadAtMost when the limit is exceeded.
var ErrTooLarge = errors.New("response exceeds size limit")

// ReadAtMost reads r until EOF. It never buffers more than limit+1 bytes and
// fails with CodeResponseTooLarge as soon as the stream passes limit.
func ReadAtMost(r io.Reader, limit int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, apperr.Wrap(apperr.CodeResponseTooLarge, apperr.StageRead,
			fmt.Errorf("%w: more than %d bytes", ErrTooLarge, limit))
	}
	return data, nil
}

// Probe reads up to n bytes and reports whether more data followed.
func Probe(r io.Reader, n int) ([]byte, bool, error) {
	buf := make([]byte, n+1)
	count, err := io.ReadFull(r, buf)
	switch {
	case err == nil:
		return buf[:n], true, nil
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		return buf[:count], false, nil
	default:
		return nil, false, err
	}
}

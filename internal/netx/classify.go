package netx

import (
	"context"
	"errors"
	"os"
	"syscall"

	"github.com/bassosimone/errclass"
	"github.com/starford/gopher-mcp/internal/apperr"
)

// Classify returns the errclass label for err, or "" for nil.
func Classify(err error) string {
	if err == nil {
		return ""
	}
	return errclass.New(err)
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	return Classify(err) == errclass.ETIMEDOUT
}

// ConnectError maps a dial failure onto the connect-stage codes. ctx is the
// caller's context, used to tell cancellation apart from the connect timeout.
func ConnectError(ctx context.Context, address string, err error) *apperr.Error {
	code := apperr.CodeConnectFailed
	switch {
	case ctx.Err() != nil && errors.Is(ctx.Err(), context.Canceled):
		code = apperr.CodeCancelled
	case isTimeout(err):
		code = apperr.CodeConnectTimeout
	case errors.Is(err, syscall.ECONNREFUSED):
		code = apperr.CodeConnectionRefused
	}
	return &apperr.Error{
		Code:    code,
		Stage:   apperr.StageConnect,
		Address: address,
		Class:   Classify(err),
		Err:     err,
	}
}

// IOError maps a read or write failure after connect. Errors that are already
// classified pass through unchanged.
func IOError(ctx context.Context, stage apperr.Stage, address string, err error) *apperr.Error {
	if e, ok := apperr.As(err); ok {
		return e
	}
	code := apperr.CodeIO
	switch {
	case ctx.Err() != nil && errors.Is(ctx.Err(), context.Canceled):
		code = apperr.CodeCancelled
	case ctx.Err() != nil || isTimeout(err):
		code = apperr.CodeReadTimeout
	}
	return &apperr.Error{
		Code:    code,
		Stage:   stage,
		Address: address,
		Class:   Classify(err),
		Err:     err,
	}
}

// HandshakeError maps a TLS handshake failure. Deadline expiry counts as a
// read timeout since the handshake runs under the response deadline.
func HandshakeError(ctx context.Context, address string, err error) *apperr.Error {
	code := apperr.CodeTLSHandshake
	switch {
	case ctx.Err() != nil && errors.Is(ctx.Err(), context.Canceled):
		code = apperr.CodeCancelled
	case ctx.Err() != nil || isTimeout(err):
		code = apperr.CodeReadTimeout
	}
	return &apperr.Error{
		Code:    code,
		Stage:   apperr.StageHandshake,
		Address: address,
		Class:   Classify(err),
		Err:     err,
	}
}

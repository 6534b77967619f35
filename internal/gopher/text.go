package gopher

import (
	"bytes"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/starford/gopher-mcp/internal/apperr"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
)

const charsetUTF8 = "utf-8"

// Charset is a named fallback decoder for text that is not valid UTF-8.
type Charset struct {
	Name     string
	Encoding encoding.Encoding
}

// LookupCharset resolves a WHATWG encoding label such as "latin1" or
// "windows-1252".
func LookupCharset(label string) (*Charset, error) {
	enc, err := htmlindex.Get(label)
	if err != nil {
		return nil, fmt.Errorf("gopher: unknown charset %q: %w", label, err)
	}
	name, err := htmlindex.Name(enc)
	if err != nil {
		name = strings.ToLower(label)
	}
	return &Charset{Name: name, Encoding: enc}, nil
}

// DecodeText converts a text item body to a string. Bodies containing NUL
// bytes are not text and fail with ENCODING_ERROR. Valid UTF-8 is used as is;
// otherwise fallback decodes the body, or, without one, invalid sequences
// are replaced with U+FFFD. Line endings are normalized to LF.
func DecodeText(data []byte, fallback *Charset) (string, string, error) {
	if bytes.IndexByte(data, 0) >= 0 {
		return "", "", apperr.New(apperr.CodeEncoding, apperr.StageDecode, "text item contains NUL bytes")
	}

	charset := charsetUTF8
	var text string
	switch {
	case utf8.Valid(data):
		text = string(data)
	case fallback != nil:
		decoded, err := fallback.Encoding.NewDecoder().Bytes(data)
		if err != nil {
			return "", "", apperr.Wrap(apperr.CodeEncoding, apperr.StageDecode, err)
		}
		text, charset = string(decoded), fallback.Name
	default:
		text = strings.ToValidUTF8(string(data), "\uFFFD")
	}
	return unstuff(text), charset, nil
}

// unstuff applies the RFC 1436 text framing: when the body ends with a lone
// "." line, that line is dropped and leading ".." is unescaped to ".".
func unstuff(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	lines := strings.Split(text, "\n")

	end := len(lines)
	for end > 0 && lines[end-1] == "" {
		end--
	}
	if end == 0 || lines[end-1] != "." {
		return text
	}
	lines = append(lines[:end-1], "")
	for i, l := range lines {
		if strings.HasPrefix(l, "..") {
			lines[i] = l[1:]
		}
	}
	return strings.Join(lines, "\n")
}

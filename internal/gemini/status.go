// Package gemini implements the gemini transport with trust-on-first-use
// certificate pinning, and the fetcher that maps responses onto results.
package gemini

import (
	"mime"
	"strings"

	"github.com/starford/gopher-mcp/internal/apperr"
	"github.com/starford/gopher-mcp/internal/models"
)

// Status codes.
const (
	StatusInput               = 10
	StatusSensitiveInput      = 11
	StatusSuccess             = 20
	StatusRedirectTemporary   = 30
	StatusRedirectPermanent   = 31
	StatusTemporaryFailure    = 40
	StatusServerUnavailable   = 41
	StatusCGIError            = 42
	StatusProxyError          = 43
	StatusSlowDown            = 44
	StatusPermanentFailure    = 50
	StatusNotFound            = 51
	StatusGone                = 52
	StatusProxyRequestRefused = 53
	StatusBadRequest          = 59
	StatusCertificateRequired = 60
	StatusCertificateNotAuth  = 61
	StatusCertificateNotValid = 62
)

const (
	minStatus, maxStatus = 10, 69
	maxMetaLength        = 1024
	defaultMIME          = "text/gemini; charset=utf-8"
	defaultCharset       = "utf-8"
)

// Header is a parsed response header line.
type Header struct {
	Status int
	Meta   string
}

// Class returns the first digit of the status.
func (h Header) Class() int { return h.Status / 10 }

// ParseHeader parses "NN meta" with the line terminator already removed
// or still present. A bare "NN" has empty meta.
func ParseHeader(line string) (Header, error) {
	line = strings.TrimRight(line, "\r\n")
	if len(line) < 2 || !isDigit(line[0]) || !isDigit(line[1]) {
		return Header{}, malformed("status line %q does not start with two digits", truncate(line))
	}
	if len(line) > 2 && line[2] != ' ' {
		return Header{}, malformed("status code is not followed by a space in %q", truncate(line))
	}

	status := int(line[0]-'0')*10 + int(line[1]-'0')
	if status < minStatus || status > maxStatus {
		return Header{}, apperr.New(apperr.CodeStatusOutOfRange, apperr.StageRead, "status %d outside 10-69", status)
	}

	var meta string
	if len(line) > 3 {
		meta = line[3:]
	}
	if len(meta) > maxMetaLength {
		return Header{}, malformed("meta exceeds %d bytes", maxMetaLength)
	}
	return Header{Status: status, Meta: meta}, nil
}

// ParseMIME parses a success meta string. An empty meta means text/gemini
// in UTF-8.
func ParseMIME(meta string) models.MIMEType {
	meta = strings.TrimSpace(meta)
	if meta == "" {
		meta = defaultMIME
	}

	mediaType, params, err := mime.ParseMediaType(meta)
	if err != nil {
		// Keep what precedes the parameters.
		mediaType = strings.ToLower(strings.TrimSpace(strings.SplitN(meta, ";", 2)[0]))
		params = nil
	}

	m := models.MIMEType{Type: mediaType, Charset: defaultCharset}
	if typ, sub, ok := strings.Cut(mediaType, "/"); ok {
		m.Type, m.Subtype = typ, sub
	}
	if cs := params["charset"]; cs != "" {
		m.Charset = strings.ToLower(cs)
	}
	m.Lang = params["lang"]
	return m
}

func isDigit(b byte) bool { return b >= '0' && b <= '9' }

func malformed(format string, args ...any) *apperr.Error {
	return apperr.New(apperr.CodeMalformedStatus, apperr.StageRead, format, args...)
}

func truncate(s string) string {
	const limit = 64
	if len(s) > limit {
		return s[:limit] + "..."
	}
	return s
}

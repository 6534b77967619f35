// Package address parses and formats gopher:// and gemini:// URLs.
//
// Parsing is pure: every other component trusts the returned values, so
// all length, range and control-character checks happen here.
package address

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"

	"github.com/starford/gopher-mcp/internal/apperr"
)

// Default ports.
const (
	GopherPort = 70
	GeminiPort = 1965
)

// Default component limits.
const (
	MaxSelectorLength = 1024
	MaxQueryLength    = 256
	// MaxGeminiRequest is the protocol limit for a gemini request URL.
	MaxGeminiRequest = 1024
)

// Limits bounds the size of parsed components.
type Limits struct {
	MaxSelector int
	MaxQuery    int
}

// DefaultLimits returns the protocol defaults.
func DefaultLimits() Limits {
	return Limits{MaxSelector: MaxSelectorLength, MaxQuery: MaxQueryLength}
}

func (l Limits) normalized() Limits {
	if l.MaxSelector <= 0 || l.MaxSelector > MaxSelectorLength {
		l.MaxSelector = MaxSelectorLength
	}
	if l.MaxQuery <= 0 || l.MaxQuery > MaxQueryLength {
		l.MaxQuery = MaxQueryLength
	}
	return l
}

func invalid(raw, format string, args ...any) *apperr.Error {
	e := apperr.New(apperr.CodeInvalidAddress, apperr.StageParse, format, args...)
	e.Address = raw
	return e
}

// parseAuthority runs url.Parse and the checks shared by both schemes.
func parseAuthority(raw, scheme string, defaultPort int) (*url.URL, string, uint16, error) {
	prefix := scheme + "://"
	if len(raw) < len(prefix) || !strings.EqualFold(raw[:len(prefix)], prefix) {
		return nil, "", 0, invalid(raw, "URL must start with '%s'", prefix)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, "", 0, invalid(raw, "malformed URL: %v", err)
	}
	if u.User != nil {
		return nil, "", 0, invalid(raw, "URL must not contain userinfo")
	}
	host := strings.ToLower(u.Hostname())
	if strings.TrimSpace(host) == "" {
		return nil, "", 0, invalid(raw, "URL must contain a hostname")
	}
	if err := checkControl("host", host); err != nil {
		return nil, "", 0, invalid(raw, "%v", err)
	}
	port := defaultPort
	if p := u.Port(); p != "" {
		n, err := strconv.Atoi(p)
		if err != nil || n < 1 || n > 65535 {
			return nil, "", 0, invalid(raw, "port must be between 1 and 65535, got %q", p)
		}
		port = n
	}
	return u, host, uint16(port), nil
}

// checkControl rejects C0 control bytes and DEL.
func checkControl(field, s string) error {
	for i := 0; i < len(s); i++ {
		if c := s[i]; c < 0x20 || c == 0x7f {
			return fmt.Errorf("%s contains control character %q", field, c)
		}
	}
	return nil
}

func hostPort(host string, port uint16) string {
	return net.JoinHostPort(host, strconv.Itoa(int(port)))
}

// authority formats host[:port], omitting the scheme's default port.
func authority(host string, port uint16, defaultPort int) string {
	if int(port) == defaultPort {
		if strings.Contains(host, ":") {
			return "[" + host + "]"
		}
		return host
	}
	return hostPort(host, port)
}

// escapePath percent-encodes p for use as a URL path, keeping slashes.
func escapePath(p string) string {
	return (&url.URL{Path: p}).EscapedPath()
}

package address

import (
	"fmt"
	"net/url"
	"strings"
)

// Gemini is a parsed gemini:// address.
type Gemini struct {
	Host string
	Port uint16
	// Path is percent-decoded and always starts with "/".
	Path string
	// Query is percent-decoded; HasQuery tells "?" from no query.
	Query    string
	HasQuery bool
}

// ParseGemini parses raw into a Gemini address.
func ParseGemini(raw string, limits Limits) (Gemini, error) {
	limits = limits.normalized()
	if len(raw) > MaxGeminiRequest {
		return Gemini{}, invalid(raw, "URL must not exceed %d bytes", MaxGeminiRequest)
	}
	u, host, port, err := parseAuthority(raw, "gemini", GeminiPort)
	if err != nil {
		return Gemini{}, err
	}
	if u.Fragment != "" || strings.Contains(raw, "#") {
		return Gemini{}, invalid(raw, "URL must not contain fragment")
	}

	g := Gemini{Host: host, Port: port, Path: u.Path}
	if g.Path == "" {
		g.Path = "/"
	}
	if u.RawQuery != "" || u.ForceQuery {
		q, err := url.PathUnescape(u.RawQuery)
		if err != nil {
			return Gemini{}, invalid(raw, "malformed query: %v", err)
		}
		g.Query, g.HasQuery = q, true
	}

	if err := g.validate(limits); err != nil {
		return Gemini{}, invalid(raw, "%v", err)
	}
	return g, nil
}

func (g Gemini) validate(limits Limits) error {
	if len(g.Path) > limits.MaxSelector {
		return fmt.Errorf("path too long: %d bytes (max %d)", len(g.Path), limits.MaxSelector)
	}
	if len(g.Query) > limits.MaxQuery {
		return fmt.Errorf("query too long: %d bytes (max %d)", len(g.Query), limits.MaxQuery)
	}
	if err := checkControl("path", g.Path); err != nil {
		return err
	}
	if err := checkControl("query", g.Query); err != nil {
		return err
	}
	if n := len(g.String()); n > MaxGeminiRequest {
		return fmt.Errorf("URL must not exceed %d bytes, encoded form is %d", MaxGeminiRequest, n)
	}
	return nil
}

// HostPort returns host:port for dialing and trust records.
func (g Gemini) HostPort() string {
	return hostPort(g.Host, g.Port)
}

// String formats the canonical URL, which is also the request line.
func (g Gemini) String() string {
	var b strings.Builder
	b.WriteString("gemini://")
	b.WriteString(authority(g.Host, g.Port, GeminiPort))
	b.WriteString(escapePath(g.Path))
	if g.HasQuery {
		b.WriteByte('?')
		b.WriteString(url.PathEscape(g.Query))
	}
	return b.String()
}

// URL returns the address as a *url.URL for resolving relative references.
func (g Gemini) URL() *url.URL {
	u, err := url.Parse(g.String())
	if err != nil {
		return &url.URL{Scheme: "gemini", Host: g.HostPort(), Path: g.Path}
	}
	return u
}

// CacheKey serializes every request-shaping component.
func (g Gemini) CacheKey() string {
	query := ""
	if g.HasQuery {
		query = "?" + g.Query
	}
	return fmt.Sprintf("gemini\x00%s\x00%d\x00%s\x00%s", g.Host, g.Port, g.Path, query)
}

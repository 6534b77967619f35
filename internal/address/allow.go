package address

import (
	"errors"
	"strings"

	"github.com/starford/gopher-mcp/internal/apperr"
)

var errHostNotAllowed = errors.New("host is not in the allowlist")

// Allowlist restricts which hosts may be contacted. The zero value allows all.
type Allowlist struct {
	hosts map[string]struct{}
}

// NewAllowlist builds an Allowlist from host names; blank entries are ignored.
func NewAllowlist(hosts []string) Allowlist {
	a := Allowlist{}
	for _, h := range hosts {
		h = strings.ToLower(strings.TrimSpace(h))
		if h == "" {
			continue
		}
		if a.hosts == nil {
			a.hosts = make(map[string]struct{}, len(hosts))
		}
		a.hosts[h] = struct{}{}
	}
	return a
}

// Enabled reports whether any host restriction is configured.
func (a Allowlist) Enabled() bool { return len(a.hosts) > 0 }

// Check returns a HOST_NOT_ALLOWED error for hosts outside the list.
func (a Allowlist) Check(host string) error {
	if !a.Enabled() {
		return nil
	}
	if _, ok := a.hosts[strings.ToLower(host)]; ok {
		return nil
	}
	return &apperr.Error{
		Code:    apperr.CodeHostNotAllowed,
		Stage:   apperr.StagePolicy,
		Address: host,
		Err:     errHostNotAllowed,
	}
}

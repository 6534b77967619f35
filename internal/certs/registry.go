// Package certs manages the per-host client certificates presented to
// gemini servers. Certificates live in one directory as <host>.crt and
// <host>.key PEM pairs; default.crt/default.key is used when no host
// specific pair exists.
package certs

import (
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// DefaultName is the file stem of the fallback certificate.
const DefaultName = "default"

const (
	certExt = ".crt"
	keyExt  = ".key"
)

// Provider looks up the client certificate for a host.
type Provider interface {
	Lookup(host string) (*tls.Certificate, bool)
}

// Registry is a Provider backed by a certificate directory. It is safe for
// concurrent use; Reload swaps the whole set at once.
type Registry struct {
	dir    string
	logger *slog.Logger

	mu    sync.RWMutex
	certs map[string]*tls.Certificate
}

// NewRegistry loads every pair in dir. A missing directory is created.
func NewRegistry(dir string, logger *slog.Logger) (*Registry, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("certs: resolve dir: %w", err)
	}
	if err := os.MkdirAll(abs, 0o700); err != nil {
		return nil, fmt.Errorf("certs: mkdir: %w", err)
	}
	r := &Registry{dir: abs, logger: logger, certs: map[string]*tls.Certificate{}}
	if err := r.Reload(); err != nil {
		return nil, err
	}
	return r, nil
}

// Lookup returns the certificate for host, falling back to the default pair.
func (r *Registry) Lookup(host string) (*tls.Certificate, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if c, ok := r.certs[strings.ToLower(host)]; ok {
		return c, true
	}
	c, ok := r.certs[DefaultName]
	return c, ok
}

// Names returns the loaded host names, including DefaultName if present.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.certs))
	for name := range r.certs {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Reload rescans the directory. Pairs that fail to load are logged and skipped.
func (r *Registry) Reload() error {
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		return fmt.Errorf("certs: read dir: %w", err)
	}

	loaded := make(map[string]*tls.Certificate)
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), certExt) {
			continue
		}
		name := strings.TrimSuffix(e.Name(), certExt)
		if ValidateName(name) != nil {
			continue
		}
		pair, err := tls.LoadX509KeyPair(
			filepath.Join(r.dir, name+certExt),
			filepath.Join(r.dir, name+keyExt),
		)
		if err != nil {
			r.logger.Warn("certs: skip pair", slog.String("name", name), slog.String("error", err.Error()))
			continue
		}
		loaded[strings.ToLower(name)] = &pair
	}

	r.mu.Lock()
	r.certs = loaded
	r.mu.Unlock()

	r.logger.Debug("certs: loaded", slog.Int("count", len(loaded)), slog.String("dir", r.dir))
	return nil
}

var errBadName = errors.New("certs: invalid host name")

// ValidateName rejects names that cannot safely be used as file stems.
func ValidateName(name string) error {
	switch {
	case name == "", strings.HasPrefix(name, "."),
		strings.ContainsAny(name, `/\`+"\x00"), name != filepath.Base(name):
		return fmt.Errorf("%w: %q", errBadName, name)
	}
	return nil
}

// Disabled never presents a certificate.
type Disabled struct{}

// Lookup always reports no certificate.
func (Disabled) Lookup(string) (*tls.Certificate, bool) { return nil, false }

var (
	_ Provider = (*Registry)(nil)
	_ Provider = Disabled{}
)

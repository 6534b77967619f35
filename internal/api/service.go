package api

import (
	"context"

	"github.com/starford/gopher-mcp/internal/models"
	"github.com/starford/gopher-mcp/internal/tofu"
)

// Fetcher turns a URL into a result.
type Fetcher interface {
	Fetch(ctx context.Context, raw string) models.Result
}

// TrustReader is the read side of the trust store.
type TrustReader interface {
	List(ctx context.Context) ([]tofu.Record, error)
	Get(ctx context.Context, hostPort string) (*tofu.Record, error)
}

// Service groups what the HTTP handlers call into.
type Service struct {
	gopher Fetcher
	gemini Fetcher
	trust  TrustReader
}

// NewService creates a new API service. trust may be nil when TOFU is disabled.
func NewService(gopher, gemini Fetcher, trust TrustReader) *Service {
	return &Service{gopher: gopher, gemini: gemini, trust: trust}
}

// FetchGopher fetches a gopher URL.
func (s *Service) FetchGopher(ctx context.Context, raw string) models.Result {
	return s.gopher.Fetch(ctx, raw)
}

// FetchGemini fetches a gemini URL.
func (s *Service) FetchGemini(ctx context.Context, raw string) models.Result {
	return s.gemini.Fetch(ctx, raw)
}

// TrustEnabled reports whether a trust store is attached.
func (s *Service) TrustEnabled() bool { return s.trust != nil }

// ListTrust returns all pinned certificates.
func (s *Service) ListTrust(ctx context.Context) ([]tofu.Record, error) {
	return s.trust.List(ctx)
}

// GetTrust returns the pinned certificate for hostPort.
func (s *Service) GetTrust(ctx context.Context, hostPort string) (*tofu.Record, error) {
	return s.trust.Get(ctx, hostPort)
}

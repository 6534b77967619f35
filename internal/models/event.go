package models

import "github.com/starford/gopher-mcp/internal/apperr"

// FetchEvent describes one completed fetch.
type FetchEvent struct {
	SpanID     string      `json:"spanId"`
	Protocol   string      `json:"protocol"`
	URL        string      `json:"url"`
	Kind       Kind        `json:"kind"`
	Cached     bool        `json:"cached"`
	Code       apperr.Code `json:"code,omitempty"`
	DurationMS int64       `json:"durationMs"`
}

// TrustEvent describes one trust store decision.
type TrustEvent struct {
	HostPort    string `json:"hostPort"`
	Outcome     string `json:"outcome"`
	Fingerprint string `json:"fingerprint"`
}

// Notifier receives fetch and trust events. Implementations must not block.
type Notifier interface {
	NotifyFetch(FetchEvent)
	NotifyTrust(TrustEvent)
}

// NopNotifier discards events.
type NopNotifier struct{}

func (NopNotifier) NotifyFetch(FetchEvent) {}
func (NopNotifier) NotifyTrust(TrustEvent) {}

package internal

import (
	"fmt"
	"log/slog"

	"github.com/starford/gopher-mcp/internal/cache"
	"github.com/starford/gopher-mcp/internal/certs"
	"github.com/starford/gopher-mcp/internal/gemini"
	"github.com/starford/gopher-mcp/internal/gopher"
	"github.com/starford/gopher-mcp/internal/models"
	"github.com/starford/gopher-mcp/internal/tofu"
)

// Components are the long-lived objects built from a Config.
type Components struct {
	Gopher *gopher.Fetcher
	Gemini *gemini.Fetcher
	Cache  *cache.LRU
	// Trust and Certs are nil when disabled in the config.
	Trust *tofu.Store
	Certs *certs.Registry
}

// Build constructs the fetchers and their stores. notifier may be nil.
func Build(cfg *Config, logger *slog.Logger, notifier models.Notifier) (*Components, error) {
	if notifier == nil {
		notifier = models.NopNotifier{}
	}
	c := &Components{Cache: cache.New(cfg.Cache.MaxEntries)}

	gopherOpts := []gopher.Option{
		gopher.WithAllowlist(cfg.Gopher.Allowlist()),
		gopher.WithLimits(cfg.Gopher.Limits()),
		gopher.WithNotifier(notifier),
	}
	if cfg.Gopher.CacheEnabled {
		gopherOpts = append(gopherOpts, gopher.WithCache(c.Cache, cfg.Gopher.CacheTTL))
	}
	if cfg.Gopher.FallbackCharset != "" {
		cs, err := gopher.LookupCharset(cfg.Gopher.FallbackCharset)
		if err != nil {
			return nil, err
		}
		gopherOpts = append(gopherOpts, gopher.WithFallbackCharset(cs))
	}
	gc := cfg.Gopher.TransportConfig
	c.Gopher = gopher.NewFetcher(
		gopher.NewClient(logger, gc.ConnectTimeout, gc.Timeout, gc.MaxResponseSize), logger, gopherOpts...)

	mc := cfg.Gemini.TransportConfig
	client := gemini.NewClient(logger, mc.ConnectTimeout, mc.Timeout, mc.MaxResponseSize)
	client.VerifyHostname = cfg.Gemini.VerifyHostname
	client.Notifier = notifier

	if cfg.Gemini.TOFU.Enabled {
		store, err := tofu.Open(cfg.Gemini.TOFU.Path)
		if err != nil {
			return nil, fmt.Errorf("init trust store: %w", err)
		}
		c.Trust = store
		client.Verifier = store
	} else {
		logger.Warn("TOFU disabled: gemini server certificates are not checked")
	}

	if cfg.Gemini.ClientCerts.Enabled {
		reg, err := certs.NewRegistry(cfg.Gemini.ClientCerts.Dir, logger)
		if err != nil {
			c.Close()
			return nil, fmt.Errorf("init client certs: %w", err)
		}
		c.Certs = reg
		client.Certs = reg
	}

	geminiOpts := []gemini.Option{
		gemini.WithAllowlist(cfg.Gemini.Allowlist()),
		gemini.WithNotifier(notifier),
	}
	if cfg.Gemini.CacheEnabled {
		geminiOpts = append(geminiOpts, gemini.WithCache(c.Cache, cfg.Gemini.CacheTTL))
	}
	c.Gemini = gemini.NewFetcher(client, logger, geminiOpts...)
	return c, nil
}

// Close releases the trust store.
func (c *Components) Close() error {
	c.Cache.Purge()
	if c.Trust == nil {
		return nil
	}
	return c.Trust.Close()
}

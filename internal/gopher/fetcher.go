package gopher

import (
	"context"
	"log/slog"
	"time"

	"github.com/bassosimone/runtimex"
	"github.com/starford/gopher-mcp/internal/address"
	"github.com/starford/gopher-mcp/internal/apperr"
	"github.com/starford/gopher-mcp/internal/cache"
	"github.com/starford/gopher-mcp/internal/models"
	"github.com/starford/gopher-mcp/internal/netx"
)

// DefaultProbeSize is how much of a binary item is read to size and sniff it.
const DefaultProbeSize = 512

// Fetcher resolves gopher URLs into results. It is safe for concurrent use.
type Fetcher struct {
	client    *Client
	cache     cache.Store
	ttl       time.Duration
	allow     address.Allowlist
	limits    address.Limits
	charset   *Charset
	probeSize int
	notifier  models.Notifier
	logger    *slog.Logger
	now       func() time.Time
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithCache stores successful results in store for ttl.
func WithCache(store cache.Store, ttl time.Duration) Option {
	return func(f *Fetcher) {
		f.cache = store
		f.ttl = ttl
	}
}

// WithAllowlist restricts the hosts that may be contacted.
func WithAllowlist(a address.Allowlist) Option {
	return func(f *Fetcher) { f.allow = a }
}

// WithLimits overrides the selector and search length limits.
func WithLimits(l address.Limits) Option {
	return func(f *Fetcher) { f.limits = l }
}

// WithFallbackCharset decodes non-UTF-8 text items with c.
func WithFallbackCharset(c *Charset) Option {
	return func(f *Fetcher) { f.charset = c }
}

// WithNotifier reports each completed fetch to n.
func WithNotifier(n models.Notifier) Option {
	return func(f *Fetcher) { f.notifier = n }
}

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(f *Fetcher) { f.now = now }
}

// NewFetcher returns a Fetcher using client. The cache is disabled unless
// WithCache is given.
func NewFetcher(client *Client, logger *slog.Logger, opts ...Option) *Fetcher {
	runtimex.Assert(client != nil)
	f := &Fetcher{
		client:    client,
		cache:     cache.Disabled{},
		limits:    address.DefaultLimits(),
		probeSize: DefaultProbeSize,
		notifier:  models.NopNotifier{},
		logger:    logger,
		now:       time.Now,
	}
	for _, o := range opts {
		o(f)
	}
	return f
}

// Fetch retrieves raw and returns exactly one of MenuResult, TextResult,
// BinaryResult or ErrorResult. Fetch failures never surface as Go errors.
func (f *Fetcher) Fetch(ctx context.Context, raw string) models.Result {
	start := f.now()
	spanID := netx.NewSpanID()
	logger := f.logger.With(slog.String("spanID", spanID), slog.String("protocol", models.ProtocolGopher))

	info := models.RequestInfo{URL: raw, Protocol: models.ProtocolGopher, Timestamp: start}
	result := f.fetch(ctx, raw, logger, &info)

	ev := models.FetchEvent{
		SpanID:     spanID,
		Protocol:   models.ProtocolGopher,
		URL:        result.Request().URL,
		Kind:       result.Kind(),
		Cached:     result.Request().Cached,
		DurationMS: f.now().Sub(start).Milliseconds(),
	}
	if er, ok := result.(models.ErrorResult); ok {
		ev.Code = er.Error.Code
		logger.Warn("fetchFailed", slog.String("url", ev.URL), slog.String("code", string(ev.Code)))
	} else {
		logger.Info("fetchDone", slog.String("url", ev.URL), slog.String("kind", string(ev.Kind)), slog.Bool("cached", ev.Cached))
	}
	f.notifier.NotifyFetch(ev)
	return result
}

func (f *Fetcher) fetch(ctx context.Context, raw string, logger *slog.Logger, info *models.RequestInfo) models.Result {
	addr, err := address.ParseGopher(raw, f.limits)
	if err != nil {
		return models.NewErrorResult(err, *info)
	}
	info.URL = addr.String()

	if err := f.allow.Check(addr.Host); err != nil {
		return models.NewErrorResult(err, *info)
	}

	kind := address.ItemKind(addr.ItemType)
	if kind == address.KindNonFetchable {
		err := apperr.New(apperr.CodeUnsupportedItemType, apperr.StagePolicy, "item type %q cannot be fetched", addr.ItemType)
		err.Address = info.URL
		return models.NewErrorResult(err, *info)
	}

	key := addr.CacheKey()
	if hit, ok := f.cache.Get(key); ok {
		cached := *info
		cached.Cached = true
		logger.Debug("cacheHit", slog.String("url", info.URL))
		return hit.WithRequest(cached)
	}

	var result models.Result
	switch kind {
	case address.KindText:
		result, err = f.fetchText(ctx, addr, logger, *info)
	case address.KindBinary:
		result, err = f.fetchBinary(ctx, addr, logger, *info)
	default:
		result, err = f.fetchMenu(ctx, addr, logger, *info)
	}
	if err != nil {
		return models.NewErrorResult(err, *info)
	}

	f.cache.Put(key, result, f.ttl)
	return result
}

func (f *Fetcher) fetchMenu(ctx context.Context, addr address.Gopher, logger *slog.Logger, info models.RequestInfo) (models.Result, error) {
	body, err := f.client.Fetch(ctx, addr, logger, true)
	if err != nil {
		return nil, err
	}
	text, _, err := DecodeText(body, f.charset)
	if err != nil {
		return nil, err
	}
	items, malformed := ParseMenu(text)
	if len(items) > 0 && malformed == len(items) {
		e := apperr.New(apperr.CodeMalformedMenu, apperr.StageDecode, "no line of the response is a menu item")
		e.Address = info.URL
		return nil, e
	}
	return models.MenuResult{Items: items, Malformed: malformed, Info: info}, nil
}

func (f *Fetcher) fetchText(ctx context.Context, addr address.Gopher, logger *slog.Logger, info models.RequestInfo) (models.Result, error) {
	body, err := f.client.Fetch(ctx, addr, logger, false)
	if err != nil {
		return nil, err
	}
	text, charset, err := DecodeText(body, f.charset)
	if err != nil {
		if e, ok := apperr.As(err); ok {
			e.Address = info.URL
		}
		return nil, err
	}
	return models.TextResult{Charset: charset, Bytes: len(body), Text: text, Info: info}, nil
}

func (f *Fetcher) fetchBinary(ctx context.Context, addr address.Gopher, logger *slog.Logger, info models.RequestInfo) (models.Result, error) {
	head, more, err := f.client.Probe(ctx, addr, logger, f.probeSize)
	if err != nil {
		return nil, err
	}
	return models.BinaryResult{
		ItemType:  string(addr.ItemType),
		Bytes:     len(head),
		Truncated: more,
		MIMEType:  GuessMIME(addr.ItemType, addr.Selector, head),
		Note:      models.BinaryNote,
		Info:      info,
	}, nil
}

package gemini

import (
	"context"
	"log/slog"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/bassosimone/runtimex"
	"github.com/starford/gopher-mcp/internal/address"
	"github.com/starford/gopher-mcp/internal/apperr"
	"github.com/starford/gopher-mcp/internal/cache"
	"github.com/starford/gopher-mcp/internal/gemtext"
	"github.com/starford/gopher-mcp/internal/models"
	"github.com/starford/gopher-mcp/internal/netx"
	"golang.org/x/text/encoding/htmlindex"
)

// Fetcher resolves gemini URLs into results. It is safe for concurrent use.
type Fetcher struct {
	client   *Client
	cache    cache.Store
	ttl      time.Duration
	allow    address.Allowlist
	limits   address.Limits
	notifier models.Notifier
	logger   *slog.Logger
	now      func() time.Time
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

// WithLimits overrides the query length limit.
func WithLimits(l address.Limits) Option {
	return func(f *Fetcher) { f.limits = l }
}

// WithNotifier reports each completed fetch to n.
func WithNotifier(n models.Notifier) Option {
	return func(f *Fetcher) { f.notifier = n }
}

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(f *Fetcher) { f.now = now }
}

// NewFetcher returns a Fetcher using client.
func NewFetcher(client *Client, logger *slog.Logger, opts ...Option) *Fetcher {
	runtimex.Assert(client != nil)
	f := &Fetcher{
		client:   client,
		cache:    cache.Disabled{},
		limits:   address.DefaultLimits(),
		notifier: models.NopNotifier{},
		logger:   logger,
		now:      time.Now,
	}
	for _, o := range opts {
		o(f)
	}
	return f
}

// Fetch retrieves raw. Protocol-level negative outcomes (1x, 3x-6x) are
// ordinary results; only local, transport, trust and malformed responses
// produce an ErrorResult.
func (f *Fetcher) Fetch(ctx context.Context, raw string) models.Result {
	start := f.now()
	spanID := netx.NewSpanID()
	logger := f.logger.With(slog.String("spanID", spanID), slog.String("protocol", models.ProtocolGemini))

	info := models.RequestInfo{URL: raw, Protocol: models.ProtocolGemini, Timestamp: start}
	result := f.fetch(ctx, raw, logger, &info)

	ev := models.FetchEvent{
		SpanID:     spanID,
		Protocol:   models.ProtocolGemini,
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
	addr, err := address.ParseGemini(raw, f.limits)
	if err != nil {
		return models.NewErrorResult(err, *info)
	}
	info.URL = addr.String()

	if err := f.allow.Check(addr.Host); err != nil {
		return models.NewErrorResult(err, *info)
	}

	key := addr.CacheKey()
	if hit, ok := f.cache.Get(key); ok {
		cached := *info
		cached.Cached = true
		logger.Debug("cacheHit", slog.String("url", info.URL))
		return hit.WithRequest(cached)
	}

	resp, err := f.client.Do(ctx, addr, logger)
	if err != nil {
		return models.NewErrorResult(err, *info)
	}
	result, err := dispatch(addr, resp, *info)
	if err != nil {
		if e, ok := apperr.As(err); ok && e.Address == "" {
			e.Address = info.URL
		}
		return models.NewErrorResult(err, *info)
	}

	f.cache.Put(key, result, f.ttl)
	return result
}

// dispatch maps a response onto its result variant by status class.
func dispatch(addr address.Gemini, resp *Response, info models.RequestInfo) (models.Result, error) {
	h := resp.Header
	switch h.Class() {
	case 1:
		return models.InputResult{Status: h.Status, Prompt: h.Meta, Sensitive: h.Status == StatusSensitiveInput, Info: info}, nil
	case 2:
		return success(addr, h, resp.Body, info)
	case 3:
		target := strings.TrimSpace(h.Meta)
		if target == "" {
			return nil, malformed("redirect without a target")
		}
		ref, err := url.Parse(target)
		if err != nil {
			return nil, malformed("redirect target %q: %v", truncate(target), err)
		}
		return models.RedirectResult{
			Status:    h.Status,
			Target:    target,
			NewURL:    addr.URL().ResolveReference(ref).String(),
			Permanent: h.Status == StatusRedirectPermanent,
			Info:      info,
		}, nil
	case 4, 5:
		return models.FailureResult{Status: h.Status, Message: h.Meta, Temporary: h.Class() == 4, Info: info}, nil
	default:
		return models.CertificateResult{
			Status:   h.Status,
			Message:  h.Meta,
			Required: h.Status == StatusCertificateRequired,
			Rejected: h.Status == StatusCertificateNotAuth || h.Status == StatusCertificateNotValid,
			Info:     info,
		}, nil
	}
}

func success(addr address.Gemini, h Header, body []byte, info models.RequestInfo) (models.Result, error) {
	mt := ParseMIME(h.Meta)

	if !mt.IsText() {
		return models.SuccessResult{MIMEType: mt, Size: len(body), Info: info}, nil
	}
	text, err := decode(body, mt.Charset)
	if err != nil {
		return nil, err
	}
	if !mt.IsGemtext() {
		return models.SuccessResult{MIMEType: mt, Text: text, Size: len(body), Info: info}, nil
	}
	return models.GemtextResult{
		Document: gemtext.Parse(text, addr.URL()),
		Raw:      text,
		Charset:  mt.Charset,
		Lang:     mt.Lang,
		Size:     len(body),
		Info:     info,
	}, nil
}

// decode converts body from charset to UTF-8. Invalid UTF-8 in a body
// declared as UTF-8 is replaced with U+FFFD.
func decode(body []byte, charset string) (string, error) {
	if charset == "" || strings.EqualFold(charset, defaultCharset) || strings.EqualFold(charset, "utf8") {
		if utf8.Valid(body) {
			return string(body), nil
		}
		return strings.ToValidUTF8(string(body), "\uFFFD"), nil
	}
	enc, err := htmlindex.Get(charset)
	if err != nil {
		return "", apperr.New(apperr.CodeEncoding, apperr.StageDecode, "unknown charset %q", charset)
	}
	out, err := enc.NewDecoder().Bytes(body)
	if err != nil {
		return "", apperr.Wrap(apperr.CodeEncoding, apperr.StageDecode, err)
	}
	return string(out), nil
}

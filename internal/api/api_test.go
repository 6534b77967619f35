package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/starford/gopher-mcp/internal/apperr"
	"github.com/starford/gopher-mcp/internal/gopher"
	"github.com/starford/gopher-mcp/internal/models"
	"github.com/starford/gopher-mcp/internal/testutil"
	"github.com/starford/gopher-mcp/internal/tofu"
)

type fetchFunc func(ctx context.Context, raw string) models.Result

func (f fetchFunc) Fetch(ctx context.Context, raw string) models.Result { return f(ctx, raw) }

// geminiStub answers every URL with a 51 failure, or fails with code when set.
func geminiStub(code apperr.Code) fetchFunc {
	return func(_ context.Context, raw string) models.Result {
		info := models.RequestInfo{URL: raw, Protocol: models.ProtocolGemini}
		if code != "" {
			return models.NewErrorResult(apperr.New(code, apperr.StageConnect, "stub"), info)
		}
		return models.FailureResult{Status: 51, Message: "not found", Info: info}
	}
}

// testEnv sets up a loopback gopher server, a trust store and the router.
func testEnv(t *testing.T, authToken string) (http.Handler, *testutil.Server, *tofu.Store) {
	t.Helper()
	return testEnvWith(t, authToken != "", authToken, geminiStub(""), nil)
}

func testEnvWith(t *testing.T, authEnabled bool, token string, gemini Fetcher, sseHandler http.Handler) (http.Handler, *testutil.Server, *tofu.Store) {
	t.Helper()
	srv := testutil.Listen(t, testutil.Routes(map[string]string{
		"/about": "Hello from gopher\r\n.\r\n",
	}, "iError\t\terror.host\t1\r\n.\r\n"))

	client := gopher.NewClient(testutil.Logger(), time.Second, time.Second, 1<<20)
	store := testutil.TrustStore(t)
	svc := NewService(gopher.NewFetcher(client, testutil.Logger()), gemini, store)
	return NewRouter(svc, authEnabled, token, sseHandler, testutil.Logger()), srv, store
}

func get(router http.Handler, target, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func fetchPath(proto, raw string) string {
	return "/" + proto + "?url=" + url.QueryEscape(raw)
}

func TestGopherEndpoint(t *testing.T) {
	router, srv, _ := testEnv(t, "")

	w := get(router, fetchPath("gopher", fmt.Sprintf("gopher://127.0.0.1:%d/0/about", srv.Port())), "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var got struct {
		Kind string `json:"kind"`
		Text string `json:"text"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if got.Kind != "text" || got.Text != "Hello from gopher\n" {
		t.Errorf("result = %+v", got)
	}
}

func TestGopherEndpoint_InvalidURL(t *testing.T) {
	router, _, _ := testEnv(t, "")

	w := get(router, fetchPath("gopher", "http://example.com/"), "")
	if w.Code != http.StatusBadRequest {
		t.Errorf("invalid url = %d, want 400", w.Code)
	}
}

func TestFetchMissingURL(t *testing.T) {
	router, _, _ := testEnv(t, "")

	w := get(router, "/gemini", "")
	if w.Code != http.StatusBadRequest {
		t.Errorf("no url = %d, want 400", w.Code)
	}
}

func TestGeminiEndpoint_FailureIsOK(t *testing.T) {
	router, _, _ := testEnv(t, "")

	w := get(router, fetchPath("gemini", "gemini://example.org/missing"), "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var got struct {
		Kind   string `json:"kind"`
		Status int    `json:"status"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &got)
	if got.Kind != "failure" || got.Status != 51 {
		t.Errorf("result = %+v", got)
	}
}

func TestGeminiEndpoint_ErrorStatus(t *testing.T) {
	cases := map[apperr.Code]int{
		apperr.CodeHostNotAllowed:      http.StatusForbidden,
		apperr.CodeConnectionRefused:   http.StatusBadGateway,
		apperr.CodeReadTimeout:         http.StatusGatewayTimeout,
		apperr.CodeFingerprintMismatch: http.StatusBadGateway,
		apperr.CodeMalformedStatus:     http.StatusBadGateway,
	}
	for code, want := range cases {
		router, _, _ := testEnvWith(t, false, "", geminiStub(code), nil)
		w := get(router, fetchPath("gemini", "gemini://example.org/"), "")
		if w.Code != want {
			t.Errorf("%s: status = %d, want %d", code, w.Code, want)
		}
	}
}

func TestTrustEndpoints(t *testing.T) {
	router, _, store := testEnv(t, "")
	ctx := context.Background()
	if _, err := store.Verify(ctx, "b.example:1965", tofu.Observation{Fingerprint: "bb"}); err != nil {
		t.Fatal(err)
	}
	if _, err := store.Verify(ctx, "a.example:1965", tofu.Observation{Fingerprint: "aa"}); err != nil {
		t.Fatal(err)
	}

	w := get(router, "/trust", "")
	if w.Code != http.StatusOK {
		t.Fatalf("list status = %d", w.Code)
	}
	var list TrustListResponse
	_ = json.Unmarshal(w.Body.Bytes(), &list)
	if list.Total != 2 || list.Records[0].HostPort != "a.example:1965" {
		t.Errorf("list = %+v", list)
	}

	w = get(router, "/trust/b.example:1965", "")
	if w.Code != http.StatusOK {
		t.Fatalf("get status = %d", w.Code)
	}
	var rec TrustRecord
	_ = json.Unmarshal(w.Body.Bytes(), &rec)
	if rec.Fingerprint != "bb" {
		t.Errorf("record = %+v", rec)
	}

	if w := get(router, "/trust/none.example:1965", ""); w.Code != http.StatusNotFound {
		t.Errorf("missing record = %d, want 404", w.Code)
	}
}

func TestTrustEndpoints_Disabled(t *testing.T) {
	svc := NewService(geminiStub(""), geminiStub(""), nil)
	router := NewRouter(svc, false, "", nil, testutil.Logger())

	if w := get(router, "/trust", ""); w.Code != http.StatusNotFound {
		t.Errorf("disabled trust = %d, want 404", w.Code)
	}
}

func TestAuthMiddleware_ValidToken(t *testing.T) {
	router, _, _ := testEnv(t, "secret123")

	if w := get(router, "/trust", "secret123"); w.Code != http.StatusOK {
		t.Errorf("authed = %d, want 200", w.Code)
	}
}

func TestAuthMiddleware_MissingToken(t *testing.T) {
	router, _, _ := testEnv(t, "secret123")

	if w := get(router, "/trust", ""); w.Code != http.StatusUnauthorized {
		t.Errorf("unauthed = %d, want 401", w.Code)
	}
}

func TestAuthMiddleware_WrongToken(t *testing.T) {
	router, _, _ := testEnv(t, "secret123")

	if w := get(router, fetchPath("gemini", "gemini://example.org/"), "wrong"); w.Code != http.StatusUnauthorized {
		t.Errorf("wrong token = %d, want 401", w.Code)
	}
}

func TestAuthMiddleware_Disabled(t *testing.T) {
	router, _, _ := testEnv(t, "")

	if w := get(router, "/trust", ""); w.Code != http.StatusOK {
		t.Errorf("no auth = %d, want 200", w.Code)
	}
}

// SSE endpoint auth tests.

func sseStub() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
		<-r.Context().Done()
	})
}

func TestSSEEvents_AuthProtected(t *testing.T) {
	router, _, _ := testEnvWith(t, true, "secret", geminiStub(""), sseStub())

	if w := get(router, "/events", ""); w.Code != http.StatusUnauthorized {
		t.Errorf("SSE no auth = %d, want 401", w.Code)
	}
}

func TestSSEEvents_ValidToken(t *testing.T) {
	router, _, _ := testEnvWith(t, true, "tok", geminiStub(""), sseStub())

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/events", nil).WithContext(ctx)
	req.Header.Set("Authorization", "Bearer tok")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("SSE with valid token = %d, want 200", w.Code)
	}
}

package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/keygate/keygate/internal/auditlog"
	"github.com/keygate/keygate/internal/model"
	"github.com/keygate/keygate/internal/policy"
	"github.com/keygate/keygate/internal/registry"
	"github.com/keygate/keygate/internal/server/middleware"
	"github.com/keygate/keygate/internal/token"
)

var testNow = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

// testEnv holds shared state for handler integration tests.
type testEnv struct {
	keys    *registry.Keys
	tools   *registry.Tools
	codec   token.Codec
	store   *auditlog.FileStore
	reader  *auditlog.Reader
	session *SessionHandler
	logs    *LogsHandler
	router  chi.Router
}

type envOption func(*envConfig)

type envConfig struct {
	strict   bool
	adminKey string
}

func withStrict() envOption {
	return func(c *envConfig) { c.strict = true }
}

func withAdminKey(key string) envOption {
	return func(c *envConfig) { c.adminKey = key }
}

// newTestEnv creates a fresh test environment: key and tool registries, a
// temp-dir audit store, and a chi router with the session middleware
// mounted, all on a pinned clock.
func newTestEnv(t *testing.T, opts ...envOption) *testEnv {
	t.Helper()
	var ec envConfig
	for _, opt := range opts {
		opt(&ec)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	keys := registry.NewKeys(map[string]string{
		"alice": "key123",
		"bob":   "key456",
	})
	tools := registry.NewTools([]model.ToolPolicy{
		{ID: "research-agent", RequiresInvite: true},
		{ID: "ocr-agent", RequiresInvite: true},
		{ID: "restricted-agent", RequiresInvite: true, AllowedUsers: []string{"bob"}},
		{ID: "playground", RequiresInvite: false},
	})
	codec := token.NewBase64Codec()

	store := auditlog.NewFileStore(t.TempDir())
	cfg := auditlog.DefaultConfig()
	cfg.SweepProbability = 0
	audit := auditlog.New(store, cfg, logger)
	reader := auditlog.NewReader(store, logger)

	eval := policy.New(ec.strict)
	session := NewSessionHandler(keys, tools, codec, eval, audit, nil, 24*time.Hour, logger)
	session.now = func() time.Time { return testNow }
	logs := NewLogsHandler(reader, logger)

	r := chi.NewRouter()
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.DecodeSession(codec))
		r.Post("/session", session.Issue)
		r.Get("/session", session.Check)
		r.Delete("/session", session.Revoke)
		r.Get("/tool/{toolID}/access", session.ToolAccess)
		r.Route("/logs", func(r chi.Router) {
			r.Use(middleware.RequireAdminKey(ec.adminKey))
			r.Get("/", logs.Query)
			r.Get("/stats", logs.Stats)
			r.Get("/export", logs.Export)
		})
	})

	return &testEnv{
		keys:    keys,
		tools:   tools,
		codec:   codec,
		store:   store,
		reader:  reader,
		session: session,
		logs:    logs,
		router:  r,
	}
}

// do executes an HTTP request against the test router.
func (e *testEnv) do(t *testing.T, method, path string, body io.Reader) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	req.RemoteAddr = "203.0.113.7:52000"
	req.Header.Set("User-Agent", "keygate-test/1.0")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	e.router.ServeHTTP(rr, req)
	return rr
}

// doWithToken executes a request carrying a session cookie.
func (e *testEnv) doWithToken(t *testing.T, method, path, tok string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	req.RemoteAddr = "203.0.113.7:52000"
	req.Header.Set("User-Agent", "keygate-test/1.0")
	if tok != "" {
		req.AddCookie(&http.Cookie{Name: middleware.SessionCookie, Value: tok})
	}
	rr := httptest.NewRecorder()
	e.router.ServeHTTP(rr, req)
	return rr
}

// issueSession obtains a session token for the given key, failing the test
// if issuance does not succeed.
func (e *testEnv) issueSession(t *testing.T, key, toolID string) string {
	t.Helper()
	rr := e.do(t, "POST", "/api/v1/session",
		toJSON(t, map[string]string{"key": key, "toolId": toolID}))
	assertStatus(t, rr, http.StatusOK)
	var resp model.SessionResponse
	decodeJSON(t, rr, &resp)
	if !resp.Success || resp.Token == "" {
		t.Fatalf("session issuance failed: %+v", resp)
	}
	return resp.Token
}

// mintToken encodes a payload directly, bypassing the HTTP layer.
func (e *testEnv) mintToken(t *testing.T, name, toolID string, issued time.Time) string {
	t.Helper()
	tok, err := e.codec.Encode(model.SessionPayload{
		Name: name, ToolID: toolID, Timestamp: issued.UnixMilli(),
	})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	return tok
}

// auditEntries reads back everything recorded so far, newest first.
func (e *testEnv) auditEntries(t *testing.T) []model.AccessLogEntry {
	t.Helper()
	entries, err := e.reader.Query(context.Background(), auditlog.Filter{}, 0)
	if err != nil {
		t.Fatalf("audit query: %v", err)
	}
	return entries
}

func toJSON(t *testing.T, v interface{}) *bytes.Buffer {
	t.Helper()
	buf := &bytes.Buffer{}
	if err := json.NewEncoder(buf).Encode(v); err != nil {
		t.Fatalf("toJSON: %v", err)
	}
	return buf
}

func assertStatus(t *testing.T, rr *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rr.Code != want {
		t.Errorf("status = %d, want %d; body = %s", rr.Code, want, rr.Body.String())
	}
}

func decodeJSON(t *testing.T, rr *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(rr.Body).Decode(v); err != nil {
		t.Fatalf("decodeJSON: %v; body = %s", err, rr.Body.String())
	}
}

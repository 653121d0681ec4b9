package handler

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/keygate/keygate/internal/model"
	"github.com/keygate/keygate/internal/policy"
	"github.com/keygate/keygate/internal/server/middleware"
)

func TestIssueSession(t *testing.T) {
	e := newTestEnv(t)

	rr := e.do(t, "POST", "/api/v1/session",
		toJSON(t, map[string]string{"key": "key123", "toolId": "research-agent"}))
	assertStatus(t, rr, http.StatusOK)

	var resp model.SessionResponse
	decodeJSON(t, rr, &resp)
	if !resp.Success || resp.Name != "alice" || resp.Token == "" {
		t.Fatalf("resp = %+v", resp)
	}

	// Token decodes back to the issuing user and tool.
	payload, err := e.codec.Decode(resp.Token)
	if err != nil {
		t.Fatalf("Decode issued token: %v", err)
	}
	if payload.Name != "alice" || payload.ToolID != "research-agent" {
		t.Errorf("payload = %+v", payload)
	}
	if payload.Timestamp != testNow.UnixMilli() {
		t.Errorf("Timestamp = %d, want the handler clock", payload.Timestamp)
	}

	// Session cookie set with the hardening attributes.
	var cookie *http.Cookie
	for _, c := range rr.Result().Cookies() {
		if c.Name == middleware.SessionCookie {
			cookie = c
		}
	}
	if cookie == nil {
		t.Fatal("no session cookie set")
	}
	if !cookie.HttpOnly || cookie.SameSite != http.SameSiteLaxMode || cookie.Path != "/" {
		t.Errorf("cookie attributes: %+v", cookie)
	}
	if cookie.MaxAge != int((24 * time.Hour).Seconds()) {
		t.Errorf("cookie MaxAge = %d, want 24h", cookie.MaxAge)
	}

	// Issuance recorded as an access entry.
	entries := e.auditEntries(t)
	if len(entries) != 1 {
		t.Fatalf("got %d audit entries, want 1", len(entries))
	}
	en := entries[0]
	if en.Action != model.ActionAccess || en.UserName != "alice" || en.ToolID != "research-agent" {
		t.Errorf("audit entry = %+v", en)
	}
	if en.IP != "203.0.113.7" || en.UserAgent != "keygate-test/1.0" {
		t.Errorf("request fields not captured: %+v", en)
	}
}

func TestIssueWrongKey(t *testing.T) {
	e := newTestEnv(t)

	rr := e.do(t, "POST", "/api/v1/session",
		toJSON(t, map[string]string{"key": "not-a-key", "toolId": "research-agent"}))
	assertStatus(t, rr, http.StatusUnauthorized)

	var resp model.SessionResponse
	decodeJSON(t, rr, &resp)
	if resp.Success || resp.Error != "Invalid invite key" {
		t.Errorf("resp = %+v", resp)
	}
	if resp.Token != "" {
		t.Error("failed issuance must not return a token")
	}

	entries := e.auditEntries(t)
	if len(entries) != 1 || entries[0].Action != model.ActionInvalidKey {
		t.Fatalf("expected one invalid_key entry, got %+v", entries)
	}
	if entries[0].UserName != "unknown" {
		t.Errorf("invalid key entry user = %q, want unknown", entries[0].UserName)
	}
	// The submitted key must not appear in the audit trail.
	for _, en := range entries {
		if strings.Contains(en.UserName, "not-a-key") || en.Metadata["key"] != "" {
			t.Errorf("audit entry leaks the submitted key: %+v", en)
		}
	}
}

func TestIssueMissingFields(t *testing.T) {
	e := newTestEnv(t)

	for _, body := range []map[string]string{
		{},
		{"key": "key123"},
		{"toolId": "research-agent"},
	} {
		rr := e.do(t, "POST", "/api/v1/session", toJSON(t, body))
		assertStatus(t, rr, http.StatusBadRequest)
		var resp model.SessionResponse
		decodeJSON(t, rr, &resp)
		if resp.Error != "Both key and toolId are required" {
			t.Errorf("body %v: error = %q", body, resp.Error)
		}
	}

	if len(e.auditEntries(t)) != 0 {
		t.Error("malformed requests should not be audited")
	}
}

func TestCheckSession(t *testing.T) {
	e := newTestEnv(t)

	// No cookie.
	rr := e.doWithToken(t, "GET", "/api/v1/session", "")
	assertStatus(t, rr, http.StatusOK)
	var resp model.CheckResponse
	decodeJSON(t, rr, &resp)
	if resp.Authenticated || resp.Expired || resp.Invalid {
		t.Errorf("empty session: %+v", resp)
	}

	// Valid session.
	tok := e.issueSession(t, "key123", "research-agent")
	rr = e.doWithToken(t, "GET", "/api/v1/session", tok)
	decodeJSON(t, rr, &resp)
	if !resp.Authenticated || resp.Name != "alice" || resp.ToolID != "research-agent" {
		t.Errorf("valid session: %+v", resp)
	}

	// Garbage token.
	rr = e.doWithToken(t, "GET", "/api/v1/session", "!!!garbage!!!")
	decodeJSON(t, rr, &resp)
	if resp.Authenticated || !resp.Invalid {
		t.Errorf("garbage token: %+v", resp)
	}

	// Expired session.
	old := e.mintToken(t, "alice", "research-agent", testNow.Add(-25*time.Hour))
	rr = e.doWithToken(t, "GET", "/api/v1/session", old)
	decodeJSON(t, rr, &resp)
	if resp.Authenticated || !resp.Expired {
		t.Errorf("expired session: %+v", resp)
	}

	// The expired check is audited with the session's age.
	entries := e.auditEntries(t)
	if entries[0].Action != model.ActionExpired {
		t.Fatalf("newest entry = %+v, want expired", entries[0])
	}
	if entries[0].SessionDuration != (25 * time.Hour).Milliseconds() {
		t.Errorf("SessionDuration = %d, want 25h in ms", entries[0].SessionDuration)
	}
}

func TestRevokeSession(t *testing.T) {
	e := newTestEnv(t)
	tok := e.issueSession(t, "key123", "research-agent")

	rr := e.doWithToken(t, "DELETE", "/api/v1/session", tok)
	assertStatus(t, rr, http.StatusOK)

	var cleared *http.Cookie
	for _, c := range rr.Result().Cookies() {
		if c.Name == middleware.SessionCookie {
			cleared = c
		}
	}
	if cleared == nil {
		t.Fatal("revoke did not touch the session cookie")
	}
	if cleared.Value != "" || cleared.MaxAge >= 0 {
		t.Errorf("cookie not cleared: value=%q maxAge=%d", cleared.Value, cleared.MaxAge)
	}
}

func TestToolAccess(t *testing.T) {
	e := newTestEnv(t)
	tok := e.issueSession(t, "key123", "research-agent")

	// Valid session, gated tool: allowed, no body.
	rr := e.doWithToken(t, "GET", "/api/v1/tool/research-agent/access", tok)
	assertStatus(t, rr, http.StatusNoContent)

	// Public tool needs no session at all.
	rr = e.doWithToken(t, "GET", "/api/v1/tool/playground/access", "")
	assertStatus(t, rr, http.StatusNoContent)

	// No session on a gated tool.
	rr = e.doWithToken(t, "GET", "/api/v1/tool/research-agent/access", "")
	assertStatus(t, rr, http.StatusForbidden)
	var denial model.DenialResponse
	decodeJSON(t, rr, &denial)
	if denial.Allowed || denial.Reason != policy.ReasonNoSession {
		t.Errorf("denial = %+v", denial)
	}

	// Unknown tools fail closed.
	rr = e.doWithToken(t, "GET", "/api/v1/tool/never-configured/access", "")
	assertStatus(t, rr, http.StatusForbidden)
}

func TestToolAccessAllowList(t *testing.T) {
	e := newTestEnv(t)

	aliceTok := e.issueSession(t, "key123", "restricted-agent")
	rr := e.doWithToken(t, "GET", "/api/v1/tool/restricted-agent/access", aliceTok)
	assertStatus(t, rr, http.StatusForbidden)
	var denial model.DenialResponse
	decodeJSON(t, rr, &denial)
	if denial.Reason != policy.ReasonUnauthorizedUser {
		t.Errorf("reason = %q, want %q", denial.Reason, policy.ReasonUnauthorizedUser)
	}
	// The message must not reveal who is allowed.
	if strings.Contains(denial.Message, "bob") {
		t.Errorf("denial message leaks the allow list: %q", denial.Message)
	}

	bobTok := e.issueSession(t, "key456", "restricted-agent")
	rr = e.doWithToken(t, "GET", "/api/v1/tool/restricted-agent/access", bobTok)
	assertStatus(t, rr, http.StatusNoContent)

	// The refusal was audited with its reason.
	var denied []model.AccessLogEntry
	for _, en := range e.auditEntries(t) {
		if en.Action == model.ActionDenied {
			denied = append(denied, en)
		}
	}
	if len(denied) != 1 {
		t.Fatalf("got %d denied entries, want 1", len(denied))
	}
	if denied[0].UserName != "alice" || denied[0].Metadata["reason"] != policy.ReasonUnauthorizedUser {
		t.Errorf("denied entry = %+v", denied[0])
	}
}

func TestToolAccessExpired(t *testing.T) {
	e := newTestEnv(t)
	old := e.mintToken(t, "alice", "research-agent", testNow.Add(-48*time.Hour))

	rr := e.doWithToken(t, "GET", "/api/v1/tool/research-agent/access", old)
	assertStatus(t, rr, http.StatusForbidden)
	var denial model.DenialResponse
	decodeJSON(t, rr, &denial)
	if denial.Reason != policy.ReasonExpired {
		t.Errorf("reason = %q, want expired", denial.Reason)
	}

	entries := e.auditEntries(t)
	if len(entries) != 1 || entries[0].Action != model.ActionExpired {
		t.Fatalf("entries = %+v", entries)
	}
	if entries[0].SessionDuration != (48 * time.Hour).Milliseconds() {
		t.Errorf("SessionDuration = %d", entries[0].SessionDuration)
	}
}

func TestToolAccessStrictBinding(t *testing.T) {
	e := newTestEnv(t, withStrict())
	tok := e.issueSession(t, "key123", "research-agent")

	rr := e.doWithToken(t, "GET", "/api/v1/tool/research-agent/access", tok)
	assertStatus(t, rr, http.StatusNoContent)

	// Same session against a different gated tool is refused in strict mode.
	rr = e.doWithToken(t, "GET", "/api/v1/tool/ocr-agent/access", tok)
	assertStatus(t, rr, http.StatusForbidden)
	var denial model.DenialResponse
	decodeJSON(t, rr, &denial)
	if denial.Reason != policy.ReasonWrongToolSession {
		t.Errorf("reason = %q, want %q", denial.Reason, policy.ReasonWrongToolSession)
	}
}

func TestToolAccessStrictAllowListFirst(t *testing.T) {
	e := newTestEnv(t, withStrict())
	tok := e.issueSession(t, "key123", "research-agent")

	// An allow-list rejection wins over the tool-binding check even in
	// strict mode: alice is not on restricted-agent's list.
	rr := e.doWithToken(t, "GET", "/api/v1/tool/restricted-agent/access", tok)
	assertStatus(t, rr, http.StatusForbidden)
	var denial model.DenialResponse
	decodeJSON(t, rr, &denial)
	if denial.Reason != policy.ReasonUnauthorizedUser {
		t.Errorf("reason = %q, want %q", denial.Reason, policy.ReasonUnauthorizedUser)
	}
}

func TestToolAccessCrossToolPermissive(t *testing.T) {
	e := newTestEnv(t)
	tok := e.issueSession(t, "key123", "research-agent")

	// Default mode: a session issued for one tool opens any tool the user
	// may access.
	rr := e.doWithToken(t, "GET", "/api/v1/tool/never-configured/access", tok)
	assertStatus(t, rr, http.StatusNoContent)
}

func TestBearerTokenFallback(t *testing.T) {
	e := newTestEnv(t)
	tok := e.issueSession(t, "key123", "research-agent")

	req := httptest.NewRequest("GET", "/api/v1/tool/research-agent/access", nil)
	req.RemoteAddr = "203.0.113.7:52000"
	req.Header.Set("Authorization", "Bearer "+tok)
	rr := httptest.NewRecorder()
	e.router.ServeHTTP(rr, req)
	assertStatus(t, rr, http.StatusNoContent)
}

func TestForgedTokenGrantsAccess(t *testing.T) {
	// The default codec is reversible and unauthenticated: a client-forged
	// payload is indistinguishable from an issued one. This is the
	// documented trade-off; integrity requires the signed codec.
	e := newTestEnv(t)
	forged := e.mintToken(t, "nobody-issued-this", "research-agent", testNow)

	rr := e.doWithToken(t, "GET", "/api/v1/tool/research-agent/access", forged)
	assertStatus(t, rr, http.StatusNoContent)
}

package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/keygate/keygate/internal/auditlog"
	"github.com/keygate/keygate/internal/geoip"
	"github.com/keygate/keygate/internal/model"
	"github.com/keygate/keygate/internal/policy"
	"github.com/keygate/keygate/internal/registry"
	"github.com/keygate/keygate/internal/server/middleware"
	"github.com/keygate/keygate/internal/token"
)

// SessionHandler issues, checks, and revokes invite sessions, and gates
// tool access.
type SessionHandler struct {
	keys   *registry.Keys
	tools  *registry.Tools
	codec  token.Codec
	eval   *policy.Evaluator
	audit  *auditlog.Logger
	geo    *geoip.Resolver // nil disables geolocation
	ttl    time.Duration
	logger *slog.Logger
	now    func() time.Time
}

// NewSessionHandler wires a SessionHandler.
func NewSessionHandler(keys *registry.Keys, tools *registry.Tools, codec token.Codec, eval *policy.Evaluator, audit *auditlog.Logger, geo *geoip.Resolver, ttl time.Duration, logger *slog.Logger) *SessionHandler {
	if ttl <= 0 {
		ttl = policy.DefaultMaxAge
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionHandler{
		keys:   keys,
		tools:  tools,
		codec:  codec,
		eval:   eval,
		audit:  audit,
		geo:    geo,
		ttl:    ttl,
		logger: logger,
		now:    time.Now,
	}
}

// issueRequest is the expected payload for the Issue endpoint.
type issueRequest struct {
	Key    string `json:"key" validate:"required"`
	ToolID string `json:"toolId" validate:"required"`
}

// Issue verifies a submitted invite key, records the attempt, and mints a
// session cookie.
// POST /api/v1/session
func (h *SessionHandler) Issue(w http.ResponseWriter, r *http.Request) {
	var req issueRequest
	if err := decodeValid(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, model.SessionResponse{
			Success: false,
			Error:   "Both key and toolId are required",
		})
		return
	}

	name, ok := h.keys.LookupUserByKey(req.Key)
	if !ok {
		h.audit.Record(r.Context(), h.entry(r, model.AccessLogEntry{
			UserName: "unknown",
			ToolID:   req.ToolID,
			Action:   model.ActionInvalidKey,
		}))
		writeJSON(w, http.StatusUnauthorized, model.SessionResponse{
			Success: false,
			Error:   "Invalid invite key",
		})
		return
	}

	entry := h.entry(r, model.AccessLogEntry{
		UserName: name,
		ToolID:   req.ToolID,
		Action:   model.ActionAccess,
	})
	if h.geo != nil {
		if loc, ok := h.geo.Resolve(r.Context(), entry.IP); ok {
			entry.Location = &loc
		}
	}
	h.audit.Record(r.Context(), entry)

	payload := model.SessionPayload{
		Name:      name,
		ToolID:    req.ToolID,
		Timestamp: h.now().UnixMilli(),
	}
	tok, err := h.codec.Encode(payload)
	if err != nil {
		h.logger.Error("session encode failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, model.SessionResponse{
			Success: false,
			Error:   "Could not create session",
		})
		return
	}

	h.setCookie(w, tok, int(h.ttl.Seconds()))
	writeJSON(w, http.StatusOK, model.SessionResponse{
		Success: true,
		Name:    name,
		Token:   tok,
	})
}

// Check reports the state of the caller's session cookie without requiring
// a tool context. Expiry is always enforced here.
// GET /api/v1/session
func (h *SessionHandler) Check(w http.ResponseWriter, r *http.Request) {
	s := middleware.GetSession(r.Context())
	switch {
	case s.Token == "":
		writeJSON(w, http.StatusOK, model.CheckResponse{Authenticated: false})
	case s.Err != nil:
		writeJSON(w, http.StatusOK, model.CheckResponse{Authenticated: false, Invalid: true})
	case s.Payload.Age(h.now()) > h.ttl:
		h.audit.Record(r.Context(), h.entry(r, model.AccessLogEntry{
			UserName:        s.Payload.Name,
			ToolID:          s.Payload.ToolID,
			Action:          model.ActionExpired,
			SessionDuration: s.Payload.Age(h.now()).Milliseconds(),
		}))
		writeJSON(w, http.StatusOK, model.CheckResponse{Authenticated: false, Expired: true})
	default:
		writeJSON(w, http.StatusOK, model.CheckResponse{
			Authenticated: true,
			Name:          s.Payload.Name,
			ToolID:        s.Payload.ToolID,
		})
	}
}

// Revoke clears the session cookie.
// DELETE /api/v1/session
func (h *SessionHandler) Revoke(w http.ResponseWriter, r *http.Request) {
	h.setCookie(w, "", -1)
	writeJSON(w, http.StatusOK, model.SessionResponse{Success: true})
}

// ToolAccess is the policy gate the tool frontends call before rendering a
// protected tool: 204 when the session may use the tool, 403 with a reason
// code otherwise.
// GET /api/v1/tool/{toolID}/access
func (h *SessionHandler) ToolAccess(w http.ResponseWriter, r *http.Request) {
	toolID := chi.URLParam(r, "toolID")
	pol := h.tools.Policy(toolID)
	s := middleware.GetSession(r.Context())

	decision := h.eval.Evaluate(pol, s.Payload, s.Err, h.now())
	if decision.Allowed {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	entry := h.entry(r, model.AccessLogEntry{
		UserName: decision.UserName,
		ToolID:   toolID,
		Action:   model.ActionDenied,
		Metadata: map[string]string{"reason": decision.Reason},
	})
	if entry.UserName == "" {
		entry.UserName = "unknown"
	}
	if decision.Reason == policy.ReasonExpired {
		entry.Action = model.ActionExpired
		entry.SessionDuration = s.Payload.Age(h.now()).Milliseconds()
	}
	h.audit.Record(r.Context(), entry)

	writeJSON(w, http.StatusForbidden, model.DenialResponse{
		Allowed: false,
		Reason:  decision.Reason,
		Message: policy.Message(decision.Reason),
	})
}

// entry fills the request-derived fields of an audit entry.
func (h *SessionHandler) entry(r *http.Request, e model.AccessLogEntry) model.AccessLogEntry {
	e.IP = clientIP(r)
	e.UserAgent = r.UserAgent()
	return e
}

func (h *SessionHandler) setCookie(w http.ResponseWriter, value string, maxAge int) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookie,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

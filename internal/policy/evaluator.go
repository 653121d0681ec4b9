// Package policy decides whether a session may access a tool. The evaluator
// is pure: given the same inputs it returns the same decision, with no side
// effects, so it is safe to call from both page-rendering code paths and
// API middleware.
package policy

import (
	"time"

	"github.com/keygate/keygate/internal/model"
)

// Denial reason codes. Short and machine-checkable; the paired messages are
// for humans and never reveal which users exist.
const (
	ReasonNoSession        = "no_session"
	ReasonInvalidSession   = "invalid_session"
	ReasonExpired          = "expired"
	ReasonUnauthorizedUser = "unauthorized_user"
	ReasonWrongToolSession = "wrong_tool_session"
)

// DefaultMaxAge is the session lifetime applied when none is configured.
const DefaultMaxAge = 24 * time.Hour

// Decision is the result of evaluating a tool access request.
type Decision struct {
	Allowed  bool
	Reason   string // empty when allowed
	UserName string // set when a valid session identified the caller
}

// Evaluator applies the tool access rules. Session expiry is always
// enforced; Strict additionally requires the session to be bound to the
// requested tool.
type Evaluator struct {
	Strict bool
	MaxAge time.Duration
}

// New returns an evaluator with the default session lifetime.
func New(strict bool) *Evaluator {
	return &Evaluator{Strict: strict, MaxAge: DefaultMaxAge}
}

// Evaluate runs the access rules in order; the first matching rule decides.
// payload is nil when no token was presented or the token failed to decode;
// decodeErr distinguishes the two.
func (e *Evaluator) Evaluate(pol model.ToolPolicy, payload *model.SessionPayload, decodeErr error, now time.Time) Decision {
	if !pol.RequiresInvite {
		d := Decision{Allowed: true}
		if payload != nil && decodeErr == nil {
			d.UserName = payload.Name
		}
		return d
	}
	if payload == nil && decodeErr == nil {
		return Decision{Reason: ReasonNoSession}
	}
	if decodeErr != nil {
		return Decision{Reason: ReasonInvalidSession}
	}
	maxAge := e.MaxAge
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}
	if payload.Age(now) > maxAge {
		return Decision{Reason: ReasonExpired, UserName: payload.Name}
	}
	if !pol.Allows(payload.Name) {
		return Decision{Reason: ReasonUnauthorizedUser, UserName: payload.Name}
	}
	if e.Strict && payload.ToolID != pol.ID {
		return Decision{Reason: ReasonWrongToolSession, UserName: payload.Name}
	}
	return Decision{Allowed: true, UserName: payload.Name}
}

// Message returns the human-readable companion for a denial reason code.
func Message(reason string) string {
	switch reason {
	case ReasonNoSession:
		return "No session token was provided. Submit your invite key first."
	case ReasonInvalidSession:
		return "The session token could not be read. Submit your invite key again."
	case ReasonExpired:
		return "The session has expired. Submit your invite key again."
	case ReasonUnauthorizedUser:
		return "This account is not allowed to use the requested tool."
	case ReasonWrongToolSession:
		return "The session was issued for a different tool."
	default:
		return "Access denied."
	}
}

package middleware

import (
	"context"
	"net/http"

	"github.com/keygate/keygate/internal/model"
	"github.com/keygate/keygate/internal/token"
)

// SessionCookie is the cookie carrying the encoded session token.
const SessionCookie = "invite-token"

// sessionKey is the context key for the decoded session state.
const sessionKey contextKey = "invite_session"

// Session is the decoded state of the request's session cookie. Payload is
// nil when no cookie was presented; Err is set when a cookie was presented
// but failed to decode.
type Session struct {
	Token   string
	Payload *model.SessionPayload
	Err     error
}

// DecodeSession reads the invite-token cookie (or an Authorization bearer
// token as fallback) and attaches the decode result to the context. It
// never rejects a request itself; access decisions belong to the policy
// evaluator downstream.
func DecodeSession(codec token.Codec) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			s := &Session{}
			if raw := sessionToken(r); raw != "" {
				s.Token = raw
				payload, err := codec.Decode(raw)
				if err != nil {
					s.Err = err
				} else {
					s.Payload = &payload
				}
			}
			ctx := context.WithValue(r.Context(), sessionKey, s)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetSession extracts the decoded session from the context. Returns an
// empty Session when DecodeSession did not run.
func GetSession(ctx context.Context) *Session {
	if s, ok := ctx.Value(sessionKey).(*Session); ok {
		return s
	}
	return &Session{}
}

func sessionToken(r *http.Request) string {
	if c, err := r.Cookie(SessionCookie); err == nil && c.Value != "" {
		return c.Value
	}
	const prefix = "Bearer "
	if h := r.Header.Get("Authorization"); len(h) > len(prefix) && h[:len(prefix)] == prefix {
		return h[len(prefix):]
	}
	return ""
}

package model

import "time"

// SessionPayload is the identity carried inside a session token. It is
// reconstructed from the client-supplied token on every request; nothing is
// stored server-side.
type SessionPayload struct {
	Name      string `json:"name"`
	ToolID    string `json:"toolId"`
	Timestamp int64  `json:"timestamp"` // issuance time, Unix milliseconds
}

// IssuedAt returns the issuance time of the session.
func (p SessionPayload) IssuedAt() time.Time {
	return time.UnixMilli(p.Timestamp)
}

// Age returns how long ago the session was issued, relative to now.
func (p SessionPayload) Age(now time.Time) time.Duration {
	return now.Sub(p.IssuedAt())
}

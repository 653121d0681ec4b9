package model

import "time"

// Audit actions recorded for every authentication attempt.
const (
	ActionAccess     = "access"      // key verified, session issued
	ActionDenied     = "denied"      // valid request shape, authorization refused
	ActionExpired    = "expired"     // session older than the allowed age
	ActionInvalidKey = "invalid_key" // submitted key matched no user
)

// Location is the coarse geolocation attached to an audit entry. All fields
// are best-effort; a failed lookup leaves them empty.
type Location struct {
	Country string `json:"country"`
	City    string `json:"city"`
	Region  string `json:"region"`
}

// AccessLogEntry is one line of the append-only audit log. Entries are
// immutable once written; whole files are rotated or deleted, never edited.
type AccessLogEntry struct {
	ID              string            `json:"id"`
	Timestamp       string            `json:"timestamp"` // RFC 3339
	UserName        string            `json:"userName"`
	ToolID          string            `json:"toolId"`
	Action          string            `json:"action"`
	IP              string            `json:"ip"`
	UserAgent       string            `json:"userAgent"`
	Location        *Location         `json:"location,omitempty"`
	SessionDuration int64             `json:"sessionDuration,omitempty"` // milliseconds
	Metadata        map[string]string `json:"metadata,omitempty"`
}

// Time parses the entry timestamp. Returns the zero time if the stored
// string is not valid RFC 3339.
func (e AccessLogEntry) Time() time.Time {
	t, err := time.Parse(time.RFC3339, e.Timestamp)
	if err != nil {
		return time.Time{}
	}
	return t
}

// NameCount is a ranked (name, count) pair used in log statistics.
type NameCount struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// LogStats aggregates audit entries over a trailing window.
type LogStats struct {
	TotalAccesses int              `json:"totalAccesses"` // action=access only
	UniqueUsers   int              `json:"uniqueUsers"`
	TopTools      []NameCount      `json:"topTools"`
	TopUsers      []NameCount      `json:"topUsers"`
	Recent        []AccessLogEntry `json:"recent"`
	DailyCounts   map[string]int   `json:"dailyCounts"` // YYYY-MM-DD -> entries
}

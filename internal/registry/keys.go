// Package registry holds the process-static invite-key and tool-policy
// registries. Both are parsed once at startup, injected into their
// consumers, and never mutated afterwards, so unsynchronized concurrent
// reads are safe.
package registry

import (
	"encoding/json"
	"log/slog"
	"sort"
)

// Keys maps user names to their invite keys. Provisioning and removal of
// keys happens out-of-band by rewriting the configuration source; there are
// no runtime mutation operations.
type Keys struct {
	byUser map[string]string
}

// ParseKeys builds a key registry from a JSON object of the form
// {"userName": "inviteKey", ...}. Malformed configuration degrades to an
// empty registry: it is logged as an error and every lookup misses, but the
// process keeps running.
func ParseKeys(raw string, logger *slog.Logger) *Keys {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Keys{byUser: map[string]string{}}
	if raw == "" {
		return r
	}
	var m map[string]string
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		logger.Error("invite key registry is not valid JSON, treating as empty", "error", err)
		return r
	}
	r.byUser = m
	return r
}

// NewKeys builds a registry directly from a user->key map. Intended for
// tests and embedding callers that already hold structured configuration.
func NewKeys(byUser map[string]string) *Keys {
	m := make(map[string]string, len(byUser))
	for u, k := range byUser {
		m[u] = k
	}
	return &Keys{byUser: m}
}

// LookupUserByKey returns the user name whose invite key equals the input.
// Keys are treated as effectively unique; if two users share a key the
// winner is unspecified.
func (r *Keys) LookupUserByKey(key string) (string, bool) {
	if key == "" {
		return "", false
	}
	for user, k := range r.byUser {
		if k == key {
			return user, true
		}
	}
	return "", false
}

// Users returns the provisioned user names in sorted order.
func (r *Keys) Users() []string {
	users := make([]string, 0, len(r.byUser))
	for u := range r.byUser {
		users = append(users, u)
	}
	sort.Strings(users)
	return users
}

// Len returns the number of provisioned users.
func (r *Keys) Len() int {
	return len(r.byUser)
}

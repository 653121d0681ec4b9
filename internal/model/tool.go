package model

// ToolPolicy is the per-tool access configuration. A tool with
// RequiresInvite=false is public. A nil AllowedUsers list means any
// authenticated user may access the tool; a non-nil list restricts access
// to the named users.
type ToolPolicy struct {
	ID             string   `json:"id" yaml:"id"`
	Label          string   `json:"label,omitempty" yaml:"label,omitempty"`
	RequiresInvite bool     `json:"requiresInvite" yaml:"requires_invite"`
	AllowedUsers   []string `json:"allowedUsers,omitempty" yaml:"allowed_users,omitempty"`
}

// Allows reports whether the policy's allow-list admits the given user.
// An absent list admits everyone.
func (p ToolPolicy) Allows(user string) bool {
	if p.AllowedUsers == nil {
		return true
	}
	for _, u := range p.AllowedUsers {
		if u == user {
			return true
		}
	}
	return false
}

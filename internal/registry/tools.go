package registry

import (
	"sort"

	"github.com/keygate/keygate/internal/model"
)

// Tools is the static tool-policy registry. Unknown tool IDs fail closed:
// they require an invite and admit any authenticated user.
type Tools struct {
	byID map[string]model.ToolPolicy
}

// NewTools builds a tool registry from a policy list. Later duplicates of
// the same ID win, matching last-write semantics of configuration merges.
func NewTools(policies []model.ToolPolicy) *Tools {
	t := &Tools{byID: make(map[string]model.ToolPolicy, len(policies))}
	for _, p := range policies {
		t.byID[p.ID] = p
	}
	return t
}

// Policy returns the access policy for the given tool ID.
func (t *Tools) Policy(toolID string) model.ToolPolicy {
	if p, ok := t.byID[toolID]; ok {
		return p
	}
	return model.ToolPolicy{ID: toolID, RequiresInvite: true}
}

// Known reports whether the tool ID was explicitly configured.
func (t *Tools) Known(toolID string) bool {
	_, ok := t.byID[toolID]
	return ok
}

// All returns the configured policies sorted by ID.
func (t *Tools) All() []model.ToolPolicy {
	out := make([]model.ToolPolicy, 0, len(t.byID))
	for _, p := range t.byID {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeToolsFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tools.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write tools file: %v", err)
	}
	return path
}

func TestLoadToolPolicies(t *testing.T) {
	path := writeToolsFile(t, `
tools:
  - id: research-agent
    label: Research Agent
    requires_invite: true
    allowed_users: [alice, bob]
  - id: playground
    requires_invite: false
`)

	policies, err := LoadToolPolicies(path)
	if err != nil {
		t.Fatalf("LoadToolPolicies: %v", err)
	}
	if len(policies) != 2 {
		t.Fatalf("got %d policies, want 2", len(policies))
	}

	p := policies[0]
	if p.ID != "research-agent" || p.Label != "Research Agent" || !p.RequiresInvite {
		t.Errorf("policy 0 = %+v", p)
	}
	if len(p.AllowedUsers) != 2 || p.AllowedUsers[0] != "alice" {
		t.Errorf("AllowedUsers = %v", p.AllowedUsers)
	}
	if policies[1].RequiresInvite {
		t.Error("playground should be public")
	}
	if policies[1].AllowedUsers != nil {
		t.Error("absent allowed_users should stay nil (admit everyone)")
	}
}

func TestLoadToolPoliciesEmptyPath(t *testing.T) {
	policies, err := LoadToolPolicies("")
	if err != nil {
		t.Fatalf("empty path should not error: %v", err)
	}
	if policies != nil {
		t.Errorf("got %v, want nil", policies)
	}
}

func TestLoadToolPoliciesMissingID(t *testing.T) {
	path := writeToolsFile(t, `
tools:
  - label: No ID Here
`)
	if _, err := LoadToolPolicies(path); err == nil {
		t.Error("entry without id should be rejected")
	}
}

func TestLoadToolPoliciesMissingFile(t *testing.T) {
	if _, err := LoadToolPolicies("/no/such/file.yaml"); err == nil {
		t.Error("missing file should error")
	}
}

func TestLoadToolPoliciesBadYAML(t *testing.T) {
	path := writeToolsFile(t, "tools: [unclosed")
	if _, err := LoadToolPolicies(path); err == nil {
		t.Error("malformed YAML should error")
	}
}

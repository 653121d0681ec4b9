package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/keygate/keygate/internal/model"
)

// toolsFile is the on-disk shape of the tool-policy registry.
type toolsFile struct {
	Tools []model.ToolPolicy `yaml:"tools"`
}

// LoadToolPolicies reads the YAML tool registry. An empty path yields no
// policies, which makes every tool fail closed (invite required).
func LoadToolPolicies(path string) ([]model.ToolPolicy, error) {
	if path == "" {
		return nil, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read tools file: %w", err)
	}
	var f toolsFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse tools file: %w", err)
	}
	for i, p := range f.Tools {
		if p.ID == "" {
			return nil, fmt.Errorf("tools file: entry %d has no id", i)
		}
	}
	return f.Tools, nil
}

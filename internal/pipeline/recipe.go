package pipeline

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Recipe is the declarative stage sequence driving a run.
type Recipe struct {
	Name   string      `yaml:"name"`
	Stages []StageCall `yaml:"stages"`
}

// StageCall is one step in a recipe: a stage name, its parameters, and
// whether to checkpoint the Context after it completes.
type StageCall struct {
	Stage      string         `yaml:"stage"`
	Params     map[string]any `yaml:"params"`
	Checkpoint bool           `yaml:"checkpoint"`
}

// LoadRecipe reads and parses a recipe file.
func LoadRecipe(path string) (*Recipe, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read recipe %s: %w", path, err)
	}
	rec, err := ParseRecipe(data)
	if err != nil {
		return nil, fmt.Errorf("recipe %s: %w", path, err)
	}
	return rec, nil
}

// ParseRecipe parses recipe YAML.
func ParseRecipe(data []byte) (*Recipe, error) {
	var rec Recipe
	if err := yaml.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("invalid recipe YAML: %w", err)
	}
	if len(rec.Stages) == 0 {
		return nil, fmt.Errorf("recipe declares no stages")
	}
	for i, call := range rec.Stages {
		if call.Stage == "" {
			return nil, fmt.Errorf("recipe step %d has no stage name", i+1)
		}
	}
	return &rec, nil
}

// Validate checks every stage name against the registry before a run
// starts, so a typo fails up front instead of ten stages in.
func (r *Recipe) Validate(reg *Registry) error {
	for i, call := range r.Stages {
		if _, err := reg.Lookup(call.Stage); err != nil {
			return fmt.Errorf("recipe step %d: %w", i+1, err)
		}
	}
	return nil
}

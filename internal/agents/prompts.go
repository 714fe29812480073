package agents

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"
)

//go:embed prompts.yaml
var promptsYAML []byte

type promptSet struct {
	Query    string `yaml:"query"`
	Planner  string `yaml:"planner"`
	Executor string `yaml:"executor"`
	Summary  string `yaml:"summary"`
}

func loadPrompts() (*promptSet, error) {
	var ps promptSet
	if err := yaml.Unmarshal(promptsYAML, &ps); err != nil {
		return nil, fmt.Errorf("agents: parse prompts: %w", err)
	}
	if ps.Query == "" || ps.Planner == "" || ps.Executor == "" || ps.Summary == "" {
		return nil, fmt.Errorf("agents: prompts.yaml missing a role prompt")
	}
	return &ps, nil
}

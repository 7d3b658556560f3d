package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Prompts holds the prompt templates sent to the analysis agents. Either
// template may be overridden from a YAML file; empty fields keep the
// built-in defaults used by the analysis package.
type Prompts struct {
	Content string `yaml:"content"`
	Trend   string `yaml:"trend"`
}

// LoadPrompts reads prompt overrides from the given YAML file. An empty
// path returns zero-value Prompts (defaults apply).
func LoadPrompts(path string) (Prompts, error) {
	var p Prompts
	if path == "" {
		return p, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return p, fmt.Errorf("read prompts file: %w", err)
	}

	if err := yaml.Unmarshal(data, &p); err != nil {
		return p, fmt.Errorf("parse prompts file: %w", err)
	}

	return p, nil
}

package glossary

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

func isYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

// Load reads a glossary file. Files ending in .yaml or .yml are YAML,
// anything else is JSON.
func Load(path string) (*Glossary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read glossary: %w", err)
	}
	g := &Glossary{}
	if isYAML(path) {
		err = yaml.Unmarshal(data, g)
	} else {
		err = json.Unmarshal(data, g)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse glossary %s: %w", path, err)
	}
	for i := range g.TermRules {
		if g.TermRules[i].Category == "" {
			g.TermRules[i].Category = CategoryOther
		}
	}
	return g, nil
}

// Save writes g to path, creating parent directories.
func Save(path string, g *Glossary) error {
	var (
		data []byte
		err  error
	)
	if isYAML(path) {
		data, err = yaml.Marshal(g)
	} else {
		data, err = json.MarshalIndent(g, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("failed to encode glossary: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create glossary directory: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

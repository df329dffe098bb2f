package store

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadSeed reads a YAML document describing an initial tree.
func LoadSeed(path string) (map[string]any, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed %q: %w", path, err)
	}
	return ParseSeed(b)
}

// ParseSeed decodes a YAML seed document. An empty document yields an empty tree.
func ParseSeed(b []byte) (map[string]any, error) {
	var tree map[string]any
	if err := yaml.Unmarshal(b, &tree); err != nil {
		return nil, fmt.Errorf("decode seed: %w", err)
	}
	if tree == nil {
		tree = map[string]any{}
	}
	return tree, nil
}

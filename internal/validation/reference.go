// Package validation compares solved rotations against a published
// reference solution.
package validation

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// PlayerID accepts a numeric or text id from either format
type PlayerID string

func (p *PlayerID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*p = PlayerID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("player id must be text or number: %s", data)
	}
	*p = PlayerID(n.String())
	return nil
}

func (p *PlayerID) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("player id must be a scalar at line %d", node.Line)
	}
	*p = PlayerID(node.Value)
	return nil
}

// ReferencePick is one player of a reference rotation
type ReferencePick struct {
	ID  PlayerID `json:"id" yaml:"id"`
	War float64  `json:"war" yaml:"war"`
}

// Reference maps franchise names to their reference rotation
type Reference map[string][]ReferencePick

// LoadReference reads a reference file; .yaml and .yml are parsed as
// YAML, anything else as JSON
func LoadReference(path string) (Reference, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read reference: %w", err)
	}
	ref := Reference{}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &ref)
	default:
		err = json.Unmarshal(data, &ref)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse reference %s: %w", filepath.Base(path), err)
	}
	return ref, nil
}

// Total sums the reference values
func Total(picks []ReferencePick) float64 {
	total := 0.0
	for _, p := range picks {
		total += p.War
	}
	return total
}

// Package extraction turns episode text into structured entity and relation
// records using an LLM, guided by a per-graph ontology of entity and edge
// labels.
package extraction

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Ontology lists the canonical entity labels and relation names a graph
// accepts. It is stored as JSON on the graph meta node and as YAML on disk.
type Ontology struct {
	EntityTypes []string `json:"entity_types" yaml:"entity_types"`
	EdgeTypes   []string `json:"edge_types" yaml:"edge_types"`
}

// DefaultOntology returns the built-in ontology used when a graph carries
// none of its own.
func DefaultOntology() *Ontology {
	return &Ontology{
		EntityTypes: []string{"Person", "Organization", "Product", "Location", "Topic"},
		EdgeTypes: []string{
			"LIKES", "DISLIKES", "FOLLOWS", "MENTIONS",
			"INTERACTS_WITH", "DISCUSSES", "SUPPORTS", "OPPOSES",
		},
	}
}

// Validate checks that both label lists are non-empty after trimming.
func (o *Ontology) Validate() error {
	if o == nil {
		return fmt.Errorf("ontology is nil")
	}
	if len(cleanLabels(o.EntityTypes)) == 0 {
		return fmt.Errorf("ontology has no entity_types")
	}
	if len(cleanLabels(o.EdgeTypes)) == 0 {
		return fmt.Errorf("ontology has no edge_types")
	}
	return nil
}

// JSON serializes the ontology for storage on the graph meta node.
func (o *Ontology) JSON() string {
	data, err := json.Marshal(o)
	if err != nil {
		return ""
	}
	return string(data)
}

// ParseOntologyJSON decodes an ontology serialized by JSON. Callers fall
// back to DefaultOntology when the raw string is empty or invalid.
func ParseOntologyJSON(raw string) (*Ontology, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("empty ontology")
	}
	var o Ontology
	if err := json.Unmarshal([]byte(raw), &o); err != nil {
		return nil, fmt.Errorf("failed to parse ontology: %w", err)
	}
	o.EntityTypes = cleanLabels(o.EntityTypes)
	o.EdgeTypes = cleanLabels(o.EdgeTypes)
	if err := o.Validate(); err != nil {
		return nil, err
	}
	return &o, nil
}

// LoadOntologyFile reads an ontology from a YAML file. JSON files parse too,
// being a YAML subset.
func LoadOntologyFile(path string) (*Ontology, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read ontology file: %w", err)
	}
	var o Ontology
	if err := yaml.Unmarshal(data, &o); err != nil {
		return nil, fmt.Errorf("failed to parse ontology file %s: %w", path, err)
	}
	o.EntityTypes = cleanLabels(o.EntityTypes)
	o.EdgeTypes = cleanLabels(o.EdgeTypes)
	if err := o.Validate(); err != nil {
		return nil, fmt.Errorf("invalid ontology file %s: %w", path, err)
	}
	return &o, nil
}

func cleanLabels(labels []string) []string {
	out := make([]string, 0, len(labels))
	for _, l := range labels {
		if trimmed := strings.TrimSpace(l); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

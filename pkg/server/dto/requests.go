package dto

import (
	"errors"
	"fmt"
	"strings"

	"github.com/soundprediction/agentgraph/pkg/extraction"
)

// CreateGraphRequest creates an empty graph scoped to a project.
type CreateGraphRequest struct {
	ProjectID string               `json:"project_id"`
	Name      string               `json:"name"`
	Ontology  *extraction.Ontology `json:"ontology,omitempty"`
}

// Validate performs validation on CreateGraphRequest.
func (r *CreateGraphRequest) Validate() error {
	if strings.TrimSpace(r.ProjectID) == "" {
		return errors.New("project_id is required")
	}
	if strings.TrimSpace(r.Name) == "" {
		return errors.New("name is required")
	}
	if r.Ontology != nil {
		if err := r.Ontology.Validate(); err != nil {
			return fmt.Errorf("invalid ontology: %w", err)
		}
	}
	return nil
}

// BuildGraphRequest runs a one-shot document build. Zero chunk values
// take the builder defaults.
type BuildGraphRequest struct {
	ProjectID    string               `json:"project_id"`
	Text         string               `json:"text"`
	GraphName    string               `json:"graph_name,omitempty"`
	Ontology     *extraction.Ontology `json:"ontology,omitempty"`
	ChunkSize    int                  `json:"chunk_size,omitempty"`
	ChunkOverlap int                  `json:"chunk_overlap,omitempty"`
}

// Validate performs validation on BuildGraphRequest.
func (r *BuildGraphRequest) Validate() error {
	if strings.TrimSpace(r.ProjectID) == "" {
		return errors.New("project_id is required")
	}
	if strings.TrimSpace(r.Text) == "" {
		return errors.New("text is required")
	}
	if r.ChunkSize < 0 {
		return errors.New("chunk_size must not be negative")
	}
	if r.ChunkOverlap < 0 {
		return errors.New("chunk_overlap must not be negative")
	}
	if r.ChunkSize > 0 && r.ChunkOverlap >= r.ChunkSize {
		return errors.New("chunk_overlap must be smaller than chunk_size")
	}
	if r.Ontology != nil {
		if err := r.Ontology.Validate(); err != nil {
			return fmt.Errorf("invalid ontology: %w", err)
		}
	}
	return nil
}

// CreateUpdaterRequest registers a streaming updater for a simulation.
type CreateUpdaterRequest struct {
	SimulationID string `json:"simulation_id"`
	GraphID      string `json:"graph_id"`
}

// Validate performs validation on CreateUpdaterRequest.
func (r *CreateUpdaterRequest) Validate() error {
	if strings.TrimSpace(r.SimulationID) == "" {
		return errors.New("simulation_id is required")
	}
	if strings.TrimSpace(r.GraphID) == "" {
		return errors.New("graph_id is required")
	}
	return nil
}

// RoutingRequest changes per-stage model routing. Preset replaces the
// whole table; Routing merges into it, with empty values deleting the
// stage. Preset wins when both are sent.
type RoutingRequest struct {
	Preset  string            `json:"preset,omitempty"`
	Routing map[string]string `json:"routing,omitempty"`
}

// Validate performs validation on RoutingRequest.
func (r *RoutingRequest) Validate() error {
	if r.Preset == "" && r.Routing == nil {
		return errors.New("preset or routing is required")
	}
	return nil
}

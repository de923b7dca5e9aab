package types

import (
	"errors"
	"strings"
)

// Validation errors
var (
	ErrEmptyName      = errors.New("name cannot be empty")
	ErrEmptyGraphID   = errors.New("graph_id cannot be empty")
	ErrEmptyUUID      = errors.New("uuid cannot be empty")
	ErrEmptyEndpoints = errors.New("relation endpoints cannot be empty")
)

// Entity represents a deduplicated node in the knowledge graph.
type Entity struct {
	UUID              string         `json:"uuid" mapstructure:"uuid"`
	ProjectID         string         `json:"project_id" mapstructure:"project_id"`
	GraphID           string         `json:"graph_id" mapstructure:"graph_id"`
	Name              string         `json:"name" mapstructure:"name"`
	EntityType        string         `json:"entity_type" mapstructure:"entity_type"`
	Summary           string         `json:"summary,omitempty" mapstructure:"summary"`
	Attributes        map[string]any `json:"attributes,omitempty" mapstructure:"attributes"`
	SourceEntityTypes []string       `json:"source_entity_types,omitempty" mapstructure:"source_entity_types"`
	CreatedAt         string         `json:"created_at,omitempty" mapstructure:"created_at"`
}

// StableUUID returns the entity's deterministic id, deriving it from the
// scoping key when the field has not been set yet.
func (e *Entity) StableUUID() string {
	if e.UUID != "" {
		return e.UUID
	}
	return EntityUUID(e.ProjectID, e.EntityType, e.Name)
}

// Validate checks if the Entity has all required fields set.
func (e *Entity) Validate() error {
	if strings.TrimSpace(e.Name) == "" {
		return ErrEmptyName
	}
	if e.GraphID == "" {
		return ErrEmptyGraphID
	}
	return nil
}

// Relation represents an edge between two entities. Temporal fields follow
// the bi-temporal contract: CreatedAt is the write time, ValidAt the time
// the fact became true, and InvalidAt/ExpiredAt are set only when a later
// fact contradicts this one.
type Relation struct {
	UUID       string         `json:"uuid" mapstructure:"uuid"`
	ProjectID  string         `json:"project_id" mapstructure:"project_id"`
	GraphID    string         `json:"graph_id" mapstructure:"graph_id"`
	SourceUUID string         `json:"source_uuid" mapstructure:"source_uuid"`
	TargetUUID string         `json:"target_uuid" mapstructure:"target_uuid"`
	Name       string         `json:"name" mapstructure:"name"`
	Fact       string         `json:"fact,omitempty" mapstructure:"fact"`
	Attributes map[string]any `json:"attributes,omitempty" mapstructure:"attributes"`
	ValidAt    string         `json:"valid_at,omitempty" mapstructure:"valid_at"`
	Episodes   []string       `json:"episodes,omitempty" mapstructure:"episodes"`
	CreatedAt  string         `json:"created_at,omitempty" mapstructure:"created_at"`
}

// Validate checks if the Relation has all required fields set.
func (r *Relation) Validate() error {
	if r.SourceUUID == "" || r.TargetUUID == "" {
		return ErrEmptyEndpoints
	}
	if r.GraphID == "" {
		return ErrEmptyGraphID
	}
	return nil
}

// Chunk represents a slice of a source document linked to the entities it
// mentions.
type Chunk struct {
	ChunkID   string `json:"chunk_id" mapstructure:"chunk_id"`
	ProjectID string `json:"project_id" mapstructure:"project_id"`
	GraphID   string `json:"graph_id" mapstructure:"graph_id"`
	Text      string `json:"text" mapstructure:"text"`
	CreatedAt string `json:"created_at,omitempty" mapstructure:"created_at"`
}

// GraphInfo is the persisted metadata of one graph.
type GraphInfo struct {
	GraphID      string `json:"graph_id" mapstructure:"graph_id"`
	ProjectID    string `json:"project_id" mapstructure:"project_id"`
	Name         string `json:"name" mapstructure:"name"`
	OntologyJSON string `json:"ontology_json,omitempty" mapstructure:"ontology_json"`
	CreatedAt    string `json:"created_at,omitempty" mapstructure:"created_at"`
}

// GraphNode is the export shape of one entity in a graph dump.
type GraphNode struct {
	UUID       string         `json:"uuid"`
	Name       string         `json:"name"`
	Labels     []string       `json:"labels"`
	Summary    string         `json:"summary"`
	Attributes map[string]any `json:"attributes"`
	CreatedAt  string         `json:"created_at,omitempty"`
}

// GraphEdge is the export shape of one relation in a graph dump. Invalidated
// edges are included and carry their temporal fields.
type GraphEdge struct {
	UUID           string         `json:"uuid"`
	Name           string         `json:"name"`
	Fact           string         `json:"fact"`
	FactType       string         `json:"fact_type"`
	SourceNodeUUID string         `json:"source_node_uuid"`
	TargetNodeUUID string         `json:"target_node_uuid"`
	SourceNodeName string         `json:"source_node_name"`
	TargetNodeName string         `json:"target_node_name"`
	Attributes     map[string]any `json:"attributes"`
	CreatedAt      string         `json:"created_at,omitempty"`
	ValidAt        string         `json:"valid_at,omitempty"`
	InvalidAt      string         `json:"invalid_at,omitempty"`
	ExpiredAt      string         `json:"expired_at,omitempty"`
	Episodes       []string       `json:"episodes"`
}

// GraphData is a full dump of one graph.
type GraphData struct {
	GraphID       string      `json:"graph_id"`
	Nodes         []GraphNode `json:"nodes"`
	Edges         []GraphEdge `json:"edges"`
	NodeCount     int         `json:"node_count"`
	EdgeCount     int         `json:"edge_count"`
	BuildWarnings []string    `json:"build_warnings,omitempty"`
}

// EdgeRecord is the store's read shape for one edge. SourceName and
// TargetName are filled when the caller fetched the edge through an
// endpoint-aware query (or enriched it itself) and are what contradiction
// detection matches on.
type EdgeRecord struct {
	UUID       string         `json:"uuid"`
	Name       string         `json:"name"`
	Fact       string         `json:"fact"`
	FactType   string         `json:"fact_type,omitempty"`
	ValidAt    string         `json:"valid_at,omitempty"`
	InvalidAt  string         `json:"invalid_at,omitempty"`
	ExpiredAt  string         `json:"expired_at,omitempty"`
	CreatedAt  string         `json:"created_at,omitempty"`
	Episodes   []string       `json:"episodes,omitempty"`
	Attributes map[string]any `json:"attributes,omitempty"`
	SourceUUID string         `json:"source_uuid,omitempty"`
	SourceName string         `json:"source_name,omitempty"`
	TargetUUID string         `json:"target_uuid,omitempty"`
	TargetName string         `json:"target_name,omitempty"`
}

// IsActive reports whether the edge has not been invalidated.
func (e *EdgeRecord) IsActive() bool {
	return e.InvalidAt == ""
}

// EntityCandidate is one row of a similarity lookup used for entity
// resolution. MatchScore is the store's coarse match class (exact=3,
// prefix=2, contains=1), not the resolver's fine-grained similarity.
type EntityCandidate struct {
	UUID              string   `json:"uuid"`
	Name              string   `json:"name"`
	EntityType        string   `json:"entity_type"`
	Summary           string   `json:"summary"`
	SourceEntityTypes []string `json:"source_entity_types,omitempty"`
	CreatedAt         string   `json:"created_at,omitempty"`
	MatchScore        int      `json:"match_score,omitempty"`
}

// Activity is one agent action emitted by the simulation driver, the unit
// of ingestion for graph memory updates.
type Activity struct {
	Platform   string         `json:"platform"`
	AgentID    int            `json:"agent_id"`
	AgentName  string         `json:"agent_name"`
	ActionType string         `json:"action_type"`
	ActionArgs map[string]any `json:"action_args,omitempty"`
	Round      int            `json:"round"`
	Timestamp  string         `json:"timestamp,omitempty"`
}

package graph

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/soundprediction/agentgraph/pkg/types"
)

// Lookup errors shared by all Store implementations.
var (
	ErrGraphNotFound  = errors.New("graph not found")
	ErrEntityNotFound = errors.New("entity not found")
)

// Store is the persistence contract for agent knowledge graphs. All
// operations are scoped by graph id; upserts are idempotent by uuid so
// every write is safe to retry.
type Store interface {
	// EnsureSchema creates constraints and indexes. Statements are
	// advisory: failures are logged and skipped so the store works across
	// backend versions.
	EnsureSchema(ctx context.Context) error

	// CreateGraph persists graph metadata and returns the new graph id.
	// The ontology is serialized to JSON alongside the meta node.
	CreateGraph(ctx context.Context, projectID, name string, ontology any) (string, error)

	// GetGraph returns the metadata of one graph, or ErrGraphNotFound.
	GetGraph(ctx context.Context, graphID string) (*types.GraphInfo, error)

	// DeleteGraph removes the graph meta and every entity, relation, and
	// chunk under the graph id in a single operation.
	DeleteGraph(ctx context.Context, graphID string) error

	// UpsertEntities writes entities keyed by their deterministic uuid and
	// returns the uuids in input order. On conflict the name and entity
	// type are replaced, the summary only when the new one is non-empty,
	// source entity types are union-appended, and created_at is preserved.
	UpsertEntities(ctx context.Context, entities []*types.Entity) ([]string, error)

	// UpsertRelations writes edges keyed by uuid, minting a fresh uuid for
	// relations without one. On conflict name, fact, and attributes are
	// replaced, created_at is preserved, valid_at is set only if absent,
	// and episodes are union-appended. Relations whose endpoints are not
	// present in the graph are skipped.
	UpsertRelations(ctx context.Context, relations []*types.Relation) error

	// UpdateEntitySummary partially updates one entity: a non-empty
	// summary overrides, appendSourceTypes are union-appended. Returns
	// whether an entity was updated.
	UpdateEntitySummary(ctx context.Context, uuid, summary string, appendSourceTypes []string) (bool, error)

	// InvalidateEdge soft-deletes an edge by stamping invalid_at and
	// expired_at. Already-invalid edges keep their original timestamps
	// (first contradiction wins). Returns whether the edge exists.
	InvalidateEdge(ctx context.Context, edgeUUID, invalidAt string) (bool, error)

	// AddEpisodeToEdges union-appends one episode id to each edge and
	// returns how many edges were updated.
	AddEpisodeToEdges(ctx context.Context, edgeUUIDs []string, episodeID string) (int, error)

	// FindSimilarEntities returns entities whose name matches exactly,
	// case-insensitively, optionally filtered by entity type.
	FindSimilarEntities(ctx context.Context, graphID, name, entityType string) ([]*types.EntityCandidate, error)

	// SearchSimilarEntities recalls up to limit candidates for entity
	// resolution, scored by match class (exact=3, prefix=2, contains=1)
	// over normalized names and ordered by score then name. A limit <= 0
	// falls back to 20.
	SearchSimilarEntities(ctx context.Context, graphID, name string, limit int) ([]*types.EntityCandidate, error)

	// GetEdgesBetweenEntities returns the edges from source to target,
	// excluding invalidated ones unless includeInvalid is set.
	GetEdgesBetweenEntities(ctx context.Context, graphID, sourceUUID, targetUUID string, includeInvalid bool) ([]*types.EdgeRecord, error)

	// GetEntityByUUID returns one entity, or ErrEntityNotFound.
	GetEntityByUUID(ctx context.Context, uuid string) (*types.Entity, error)

	// GetValidEdgesForEntity returns the incoming and outgoing edges of an
	// entity with endpoint names filled in, excluding invalidated edges
	// unless includeInvalid is set.
	GetValidEdgesForEntity(ctx context.Context, graphID, entityUUID string, includeInvalid bool) ([]*types.EdgeRecord, error)

	// UpsertChunk writes one document chunk and links it to its graph.
	UpsertChunk(ctx context.Context, chunk *types.Chunk) error

	// LinkMentions connects a chunk to the entities it mentions.
	LinkMentions(ctx context.Context, graphID, chunkID string, entityUUIDs []string) error

	// GetGraphData dumps a whole graph, including invalidated edges with
	// their temporal fields. Nodes are ordered by name and edges by
	// created_at for stable output. Returns ErrGraphNotFound when the
	// graph does not exist.
	GetGraphData(ctx context.Context, graphID string) (*types.GraphData, error)

	// Close releases the underlying connections.
	Close() error
}

// normalizeName lowercases and trims a name for matching.
func normalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// searchPrefix returns the leading runes of a normalized name used for
// broad candidate recall.
func searchPrefix(normalized string) string {
	runes := []rune(normalized)
	if len(runes) > 3 {
		return string(runes[:3])
	}
	return normalized
}

// dedupeNonEmpty drops empty strings and duplicates, keeping first
// occurrence order. The result is never nil.
func dedupeNonEmpty(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

// marshalAttributes serializes an attribute map for storage. Empty and
// unserializable maps collapse to "{}".
func marshalAttributes(attrs map[string]any) string {
	if len(attrs) == 0 {
		return "{}"
	}
	data, err := json.Marshal(attrs)
	if err != nil {
		return "{}"
	}
	return string(data)
}

// decodeAttributes parses a stored attribute payload, tolerating empty and
// corrupt values. The result is never nil.
func decodeAttributes(raw string) map[string]any {
	attrs := map[string]any{}
	if raw == "" {
		return attrs
	}
	if err := json.Unmarshal([]byte(raw), &attrs); err != nil {
		return map[string]any{}
	}
	return attrs
}

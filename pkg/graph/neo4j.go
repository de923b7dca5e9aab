package graph

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j/db"

	"github.com/soundprediction/agentgraph/pkg/types"
)

// Neo4jStore implements Store on a Neo4j database. Entities and chunks are
// nodes labelled :Entity and :Chunk, relations are :REL relationships, and
// one :Graph node per graph carries the metadata.
type Neo4jStore struct {
	client   neo4j.DriverWithContext
	database string
	logger   *slog.Logger
}

var _ Store = (*Neo4jStore)(nil)

// NewNeo4jStore connects to a Neo4j instance. An empty database selects
// "neo4j".
func NewNeo4jStore(uri, username, password, database string, logger *slog.Logger) (*Neo4jStore, error) {
	client, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(username, password, ""))
	if err != nil {
		return nil, fmt.Errorf("failed to create neo4j driver: %w", err)
	}

	if database == "" {
		database = "neo4j"
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Neo4jStore{
		client:   client,
		database: database,
		logger:   logger,
	}, nil
}

// EnsureSchema creates the uniqueness constraints and indexes the store
// relies on. Failures are logged and skipped because index syntax varies
// across server versions.
func (s *Neo4jStore) EnsureSchema(ctx context.Context) error {
	session := s.client.NewSession(ctx, neo4j.SessionConfig{DatabaseName: s.database})
	defer session.Close(ctx)

	statements := []string{
		"CREATE CONSTRAINT graph_id_unique IF NOT EXISTS FOR (g:Graph) REQUIRE g.graph_id IS UNIQUE",
		"CREATE CONSTRAINT entity_uuid_unique IF NOT EXISTS FOR (e:Entity) REQUIRE e.uuid IS UNIQUE",
		"CREATE INDEX entity_graph_id IF NOT EXISTS FOR (e:Entity) ON (e.graph_id)",
		"CREATE INDEX entity_project_id IF NOT EXISTS FOR (e:Entity) ON (e.project_id)",
		"CREATE INDEX relation_graph_id IF NOT EXISTS FOR ()-[r:REL]-() ON (r.graph_id)",
		"CREATE INDEX chunk_graph_id IF NOT EXISTS FOR (c:Chunk) ON (c.graph_id)",
	}

	for _, statement := range statements {
		if _, err := session.Run(ctx, statement, nil); err != nil {
			s.logger.Warn("schema statement failed", "statement", statement, "error", err)
		}
	}

	return nil
}

// CreateGraph persists a graph meta node and returns the generated id.
func (s *Neo4jStore) CreateGraph(ctx context.Context, projectID, name string, ontology any) (string, error) {
	graphID := types.NewGraphID()
	createdAt := types.NowISO()

	ontologyJSON := "{}"
	if ontology != nil {
		data, err := json.Marshal(ontology)
		if err != nil {
			return "", fmt.Errorf("failed to serialize ontology: %w", err)
		}
		ontologyJSON = string(data)
	}

	session := s.client.NewSession(ctx, neo4j.SessionConfig{DatabaseName: s.database})
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		query := `
			CREATE (g:Graph {
				graph_id: $graph_id,
				project_id: $project_id,
				name: $name,
				ontology_json: $ontology_json,
				created_at: $created_at
			})
		`
		_, err := tx.Run(ctx, query, map[string]any{
			"graph_id":      graphID,
			"project_id":    projectID,
			"name":          name,
			"ontology_json": ontologyJSON,
			"created_at":    createdAt,
		})
		return nil, err
	})
	if err != nil {
		return "", fmt.Errorf("failed to create graph: %w", err)
	}

	return graphID, nil
}

// GetGraph loads a graph meta node.
func (s *Neo4jStore) GetGraph(ctx context.Context, graphID string) (*types.GraphInfo, error) {
	session := s.client.NewSession(ctx, neo4j.SessionConfig{DatabaseName: s.database})
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		query := `
			MATCH (g:Graph {graph_id: $graph_id})
			RETURN g.graph_id AS graph_id, g.project_id AS project_id, g.name AS name,
			       g.ontology_json AS ontology_json, g.created_at AS created_at
		`
		res, err := tx.Run(ctx, query, map[string]any{"graph_id": graphID})
		if err != nil {
			return nil, err
		}

		record, err := res.Single(ctx)
		if err != nil {
			if noRecords(err) {
				return nil, ErrGraphNotFound
			}
			return nil, err
		}
		return record, nil
	})
	if err != nil {
		if errors.Is(err, ErrGraphNotFound) {
			return nil, ErrGraphNotFound
		}
		return nil, fmt.Errorf("failed to load graph: %w", err)
	}

	record := result.(*db.Record)
	return &types.GraphInfo{
		GraphID:      recordString(record, "graph_id"),
		ProjectID:    recordString(record, "project_id"),
		Name:         recordString(record, "name"),
		OntologyJSON: recordString(record, "ontology_json"),
		CreatedAt:    recordString(record, "created_at"),
	}, nil
}

// DeleteGraph removes the meta node and everything stored under the graph
// id in one transaction. Deleting a missing graph is a no-op.
func (s *Neo4jStore) DeleteGraph(ctx context.Context, graphID string) error {
	session := s.client.NewSession(ctx, neo4j.SessionConfig{DatabaseName: s.database})
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		statements := []string{
			"MATCH (g:Graph {graph_id: $graph_id}) DETACH DELETE g",
			"MATCH (e:Entity {graph_id: $graph_id}) DETACH DELETE e",
			"MATCH (c:Chunk {graph_id: $graph_id}) DETACH DELETE c",
		}
		for _, statement := range statements {
			if _, err := tx.Run(ctx, statement, map[string]any{"graph_id": graphID}); err != nil {
				return nil, err
			}
		}
		return nil, nil
	})
	if err != nil {
		return fmt.Errorf("failed to delete graph: %w", err)
	}

	return nil
}

// UpsertEntities writes entities in one batch. Conflict handling is pushed
// into the query: names and types are replaced, the summary and attributes
// only when the new value is non-empty, source entity types are
// union-appended, created_at keeps its first value.
func (s *Neo4jStore) UpsertEntities(ctx context.Context, entities []*types.Entity) ([]string, error) {
	if len(entities) == 0 {
		return nil, nil
	}

	now := types.NowISO()
	uuids := make([]string, 0, len(entities))
	rows := make([]map[string]any, 0, len(entities))
	for _, ent := range entities {
		uuid := ent.StableUUID()
		uuids = append(uuids, uuid)

		createdAt := ent.CreatedAt
		if createdAt == "" {
			createdAt = now
		}
		rows = append(rows, map[string]any{
			"uuid":                uuid,
			"project_id":          ent.ProjectID,
			"graph_id":            ent.GraphID,
			"name":                ent.Name,
			"entity_type":         ent.EntityType,
			"summary":             ent.Summary,
			"attributes_json":     marshalAttributes(ent.Attributes),
			"source_entity_types": dedupeNonEmpty(ent.SourceEntityTypes),
			"created_at":          createdAt,
		})
	}

	session := s.client.NewSession(ctx, neo4j.SessionConfig{DatabaseName: s.database})
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		query := `
			UNWIND $entities AS ent
			MERGE (e:Entity {uuid: ent.uuid})
			SET e.project_id = ent.project_id,
			    e.graph_id = ent.graph_id,
			    e.name = ent.name,
			    e.entity_type = ent.entity_type,
			    e.summary = CASE
			        WHEN ent.summary IS NULL OR ent.summary = '' THEN e.summary
			        ELSE ent.summary
			    END,
			    e.attributes_json = CASE
			        WHEN ent.attributes_json IS NULL OR ent.attributes_json = '{}' THEN e.attributes_json
			        ELSE ent.attributes_json
			    END,
			    e.source_entity_types = CASE
			        WHEN e.source_entity_types IS NULL THEN ent.source_entity_types
			        ELSE e.source_entity_types + [t IN ent.source_entity_types WHERE NOT t IN e.source_entity_types]
			    END,
			    e.created_at = coalesce(e.created_at, ent.created_at)
		`
		_, err := tx.Run(ctx, query, map[string]any{"entities": rows})
		return nil, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to upsert entities: %w", err)
	}

	return uuids, nil
}

// UpsertRelations writes edges in one batch, minting uuids for relations
// without one. Rows whose endpoints are missing from the graph produce no
// edge.
func (s *Neo4jStore) UpsertRelations(ctx context.Context, relations []*types.Relation) error {
	if len(relations) == 0 {
		return nil
	}

	now := types.NowISO()
	rows := make([]map[string]any, 0, len(relations))
	for _, rel := range relations {
		uuid := rel.UUID
		if uuid == "" {
			uuid = types.NewRelationUUID()
		}
		createdAt := rel.CreatedAt
		if createdAt == "" {
			createdAt = now
		}
		validAt := rel.ValidAt
		if validAt == "" {
			validAt = createdAt
		}
		rows = append(rows, map[string]any{
			"uuid":            uuid,
			"project_id":      rel.ProjectID,
			"graph_id":        rel.GraphID,
			"source_uuid":     rel.SourceUUID,
			"target_uuid":     rel.TargetUUID,
			"name":            rel.Name,
			"fact":            rel.Fact,
			"attributes_json": marshalAttributes(rel.Attributes),
			"created_at":      createdAt,
			"valid_at":        validAt,
			"episodes":        dedupeNonEmpty(rel.Episodes),
		})
	}

	session := s.client.NewSession(ctx, neo4j.SessionConfig{DatabaseName: s.database})
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		query := `
			UNWIND $relations AS rel
			MATCH (s:Entity {uuid: rel.source_uuid, graph_id: rel.graph_id})
			MATCH (t:Entity {uuid: rel.target_uuid, graph_id: rel.graph_id})
			MERGE (s)-[r:REL {uuid: rel.uuid}]->(t)
			SET r.project_id = rel.project_id,
			    r.graph_id = rel.graph_id,
			    r.name = rel.name,
			    r.fact = rel.fact,
			    r.fact_type = rel.name,
			    r.attributes_json = rel.attributes_json,
			    r.created_at = coalesce(r.created_at, rel.created_at),
			    r.valid_at = coalesce(r.valid_at, rel.valid_at),
			    r.episodes = CASE
			        WHEN r.episodes IS NULL THEN rel.episodes
			        ELSE r.episodes + [ep IN rel.episodes WHERE NOT ep IN r.episodes]
			    END
		`
		_, err := tx.Run(ctx, query, map[string]any{"relations": rows})
		return nil, err
	})
	if err != nil {
		return fmt.Errorf("failed to upsert relations: %w", err)
	}

	return nil
}

// UpdateEntitySummary applies a partial entity update. Returns false when
// there is nothing to update or the entity does not exist.
func (s *Neo4jStore) UpdateEntitySummary(ctx context.Context, uuid, summary string, appendSourceTypes []string) (bool, error) {
	appendTypes := dedupeNonEmpty(appendSourceTypes)
	if summary == "" && len(appendTypes) == 0 {
		return false, nil
	}

	setClauses := make([]string, 0, 2)
	params := map[string]any{"uuid": uuid}
	if summary != "" {
		setClauses = append(setClauses, "e.summary = $summary")
		params["summary"] = summary
	}
	if len(appendTypes) > 0 {
		setClauses = append(setClauses, `e.source_entity_types = CASE
			WHEN e.source_entity_types IS NULL THEN $append_types
			ELSE e.source_entity_types + [t IN $append_types WHERE NOT t IN e.source_entity_types]
		END`)
		params["append_types"] = appendTypes
	}
	query := "MATCH (e:Entity {uuid: $uuid}) SET " + strings.Join(setClauses, ", ") + " RETURN e.uuid AS uuid"

	session := s.client.NewSession(ctx, neo4j.SessionConfig{DatabaseName: s.database})
	defer session.Close(ctx)

	result, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, query, params)
		if err != nil {
			return nil, err
		}
		record, err := res.Single(ctx)
		if err != nil {
			if noRecords(err) {
				return nil, nil
			}
			return nil, err
		}
		return record, nil
	})
	if err != nil {
		return false, fmt.Errorf("failed to update entity summary: %w", err)
	}

	return result != nil, nil
}

// InvalidateEdge stamps invalid_at and expired_at on one edge. An edge that
// is already invalid keeps its original timestamps, so re-invalidating is
// harmless. Returns false when the edge does not exist.
func (s *Neo4jStore) InvalidateEdge(ctx context.Context, edgeUUID, invalidAt string) (bool, error) {
	if invalidAt == "" {
		invalidAt = types.NowISO()
	}

	session := s.client.NewSession(ctx, neo4j.SessionConfig{DatabaseName: s.database})
	defer session.Close(ctx)

	result, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		query := `
			MATCH ()-[r:REL {uuid: $uuid}]->()
			SET r.invalid_at = CASE
			        WHEN r.invalid_at IS NULL OR r.invalid_at = '' THEN $invalid_at
			        ELSE r.invalid_at
			    END,
			    r.expired_at = CASE
			        WHEN r.expired_at IS NULL OR r.expired_at = '' THEN $invalid_at
			        ELSE r.expired_at
			    END
			RETURN r.uuid AS uuid
		`
		res, err := tx.Run(ctx, query, map[string]any{
			"uuid":       edgeUUID,
			"invalid_at": invalidAt,
		})
		if err != nil {
			return nil, err
		}
		record, err := res.Single(ctx)
		if err != nil {
			if noRecords(err) {
				return nil, nil
			}
			return nil, err
		}
		return record, nil
	})
	if err != nil {
		return false, fmt.Errorf("failed to invalidate edge: %w", err)
	}

	return result != nil, nil
}

// AddEpisodeToEdges union-appends the episode id to each edge and returns
// how many edges were found.
func (s *Neo4jStore) AddEpisodeToEdges(ctx context.Context, edgeUUIDs []string, episodeID string) (int, error) {
	if len(edgeUUIDs) == 0 {
		return 0, nil
	}

	session := s.client.NewSession(ctx, neo4j.SessionConfig{DatabaseName: s.database})
	defer session.Close(ctx)

	result, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		query := `
			MATCH ()-[r:REL {uuid: $uuid}]->()
			SET r.episodes = CASE
			    WHEN r.episodes IS NULL THEN [$episode_id]
			    WHEN NOT $episode_id IN r.episodes THEN r.episodes + $episode_id
			    ELSE r.episodes
			END
			RETURN r.uuid AS uuid
		`
		updated := 0
		for _, edgeUUID := range edgeUUIDs {
			res, err := tx.Run(ctx, query, map[string]any{
				"uuid":       edgeUUID,
				"episode_id": episodeID,
			})
			if err != nil {
				return 0, err
			}
			if _, err := res.Single(ctx); err != nil {
				if noRecords(err) {
					continue
				}
				return 0, err
			}
			updated++
		}
		return updated, nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to add episode to edges: %w", err)
	}

	return result.(int), nil
}

// FindSimilarEntities returns case-insensitive exact name matches,
// optionally restricted to one entity type.
func (s *Neo4jStore) FindSimilarEntities(ctx context.Context, graphID, name, entityType string) ([]*types.EntityCandidate, error) {
	normalized := normalizeName(name)

	query := `
		MATCH (e:Entity {graph_id: $graph_id})
		WHERE toLower(e.name) = $normalized_name
		RETURN e.uuid AS uuid, e.name AS name, e.entity_type AS entity_type,
		       e.summary AS summary, e.created_at AS created_at
	`
	params := map[string]any{
		"graph_id":        graphID,
		"normalized_name": normalized,
	}
	if entityType != "" {
		query = `
			MATCH (e:Entity {graph_id: $graph_id})
			WHERE toLower(e.name) = $normalized_name
			  AND e.entity_type = $entity_type
			RETURN e.uuid AS uuid, e.name AS name, e.entity_type AS entity_type,
			       e.summary AS summary, e.created_at AS created_at
		`
		params["entity_type"] = entityType
	}

	records, err := s.collect(ctx, query, params)
	if err != nil {
		return nil, fmt.Errorf("failed to find similar entities: %w", err)
	}

	candidates := make([]*types.EntityCandidate, 0, len(records))
	for _, record := range records {
		candidates = append(candidates, candidateFromRecord(record))
	}
	return candidates, nil
}

// SearchSimilarEntities recalls candidate entities for resolution: exact
// matches score 3, prefix matches 2, substring matches 1, broad prefix hits
// 0. Results come back ordered by score then name.
func (s *Neo4jStore) SearchSimilarEntities(ctx context.Context, graphID, name string, limit int) ([]*types.EntityCandidate, error) {
	if name == "" {
		return []*types.EntityCandidate{}, nil
	}
	if limit <= 0 {
		limit = 20
	}

	normalized := normalizeName(name)
	prefix := searchPrefix(normalized)

	query := `
		MATCH (e:Entity {graph_id: $graph_id})
		WITH e, toLower(e.name) AS lower_name
		WHERE lower_name = $normalized_name
		   OR lower_name STARTS WITH $search_prefix
		   OR lower_name CONTAINS $search_prefix
		   OR $normalized_name CONTAINS lower_name
		WITH e, lower_name,
		     CASE
		         WHEN lower_name = $normalized_name THEN 3
		         WHEN lower_name STARTS WITH $normalized_name THEN 2
		         WHEN lower_name CONTAINS $normalized_name THEN 1
		         ELSE 0
		     END AS match_score
		RETURN e.uuid AS uuid, e.name AS name, e.entity_type AS entity_type,
		       e.summary AS summary, e.source_entity_types AS source_entity_types,
		       e.created_at AS created_at, match_score
		ORDER BY match_score DESC, e.name
		LIMIT $limit
	`
	records, err := s.collect(ctx, query, map[string]any{
		"graph_id":        graphID,
		"normalized_name": normalized,
		"search_prefix":   prefix,
		"limit":           limit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to search similar entities: %w", err)
	}

	candidates := make([]*types.EntityCandidate, 0, len(records))
	for _, record := range records {
		candidates = append(candidates, candidateFromRecord(record))
	}
	return candidates, nil
}

// GetEdgesBetweenEntities returns the directed edges from source to target.
func (s *Neo4jStore) GetEdgesBetweenEntities(ctx context.Context, graphID, sourceUUID, targetUUID string, includeInvalid bool) ([]*types.EdgeRecord, error) {
	filter := `WHERE r.invalid_at IS NULL OR r.invalid_at = ''`
	if includeInvalid {
		filter = ""
	}
	query := fmt.Sprintf(`
		MATCH (s:Entity {uuid: $source_uuid})-[r:REL {graph_id: $graph_id}]->(t:Entity {uuid: $target_uuid})
		%s
		RETURN r.uuid AS uuid, r.name AS name, r.fact AS fact, r.fact_type AS fact_type,
		       r.valid_at AS valid_at, r.invalid_at AS invalid_at, r.expired_at AS expired_at,
		       r.episodes AS episodes, r.attributes_json AS attributes_json,
		       r.created_at AS created_at
	`, filter)

	records, err := s.collect(ctx, query, map[string]any{
		"graph_id":    graphID,
		"source_uuid": sourceUUID,
		"target_uuid": targetUUID,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load edges between entities: %w", err)
	}

	edges := make([]*types.EdgeRecord, 0, len(records))
	for _, record := range records {
		edges = append(edges, edgeFromRecord(record))
	}
	return edges, nil
}

// GetEntityByUUID loads one entity.
func (s *Neo4jStore) GetEntityByUUID(ctx context.Context, uuid string) (*types.Entity, error) {
	session := s.client.NewSession(ctx, neo4j.SessionConfig{DatabaseName: s.database})
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		query := `
			MATCH (e:Entity {uuid: $uuid})
			RETURN e.uuid AS uuid, e.name AS name, e.entity_type AS entity_type,
			       e.summary AS summary, e.attributes_json AS attributes_json,
			       e.source_entity_types AS source_entity_types,
			       e.graph_id AS graph_id, e.project_id AS project_id,
			       e.created_at AS created_at
		`
		res, err := tx.Run(ctx, query, map[string]any{"uuid": uuid})
		if err != nil {
			return nil, err
		}
		record, err := res.Single(ctx)
		if err != nil {
			if noRecords(err) {
				return nil, ErrEntityNotFound
			}
			return nil, err
		}
		return record, nil
	})
	if err != nil {
		if errors.Is(err, ErrEntityNotFound) {
			return nil, ErrEntityNotFound
		}
		return nil, fmt.Errorf("failed to load entity: %w", err)
	}

	record := result.(*db.Record)
	return &types.Entity{
		UUID:              recordString(record, "uuid"),
		ProjectID:         recordString(record, "project_id"),
		GraphID:           recordString(record, "graph_id"),
		Name:              recordString(record, "name"),
		EntityType:        recordString(record, "entity_type"),
		Summary:           recordString(record, "summary"),
		Attributes:        decodeAttributes(recordString(record, "attributes_json")),
		SourceEntityTypes: recordStringSlice(record, "source_entity_types"),
		CreatedAt:         recordString(record, "created_at"),
	}, nil
}

// GetValidEdgesForEntity returns the incoming and outgoing edges of one
// entity with both endpoint names resolved.
func (s *Neo4jStore) GetValidEdgesForEntity(ctx context.Context, graphID, entityUUID string, includeInvalid bool) ([]*types.EdgeRecord, error) {
	query := `
		MATCH (e:Entity {uuid: $entity_uuid})
		OPTIONAL MATCH (e)-[r1:REL {graph_id: $graph_id}]->(t:Entity)
		WHERE r1.invalid_at IS NULL OR r1.invalid_at = ''
		OPTIONAL MATCH (s:Entity)-[r2:REL {graph_id: $graph_id}]->(e)
		WHERE r2.invalid_at IS NULL OR r2.invalid_at = ''
		WITH collect(DISTINCT r1) + collect(DISTINCT r2) AS rels
		UNWIND rels AS r
		WITH r WHERE r IS NOT NULL
		MATCH (source:Entity)-[r]->(target:Entity)
		RETURN r.uuid AS uuid, r.name AS name, r.fact AS fact, r.fact_type AS fact_type,
		       r.valid_at AS valid_at, r.invalid_at AS invalid_at, r.expired_at AS expired_at,
		       r.episodes AS episodes, r.attributes_json AS attributes_json,
		       r.created_at AS created_at,
		       source.uuid AS source_uuid, source.name AS source_name,
		       target.uuid AS target_uuid, target.name AS target_name
	`
	if includeInvalid {
		query = `
			MATCH (e:Entity {uuid: $entity_uuid})
			OPTIONAL MATCH (e)-[r1:REL {graph_id: $graph_id}]->(t:Entity)
			OPTIONAL MATCH (s:Entity)-[r2:REL {graph_id: $graph_id}]->(e)
			WITH collect(DISTINCT r1) + collect(DISTINCT r2) AS rels
			UNWIND rels AS r
			WITH r WHERE r IS NOT NULL
			MATCH (source:Entity)-[r]->(target:Entity)
			RETURN r.uuid AS uuid, r.name AS name, r.fact AS fact, r.fact_type AS fact_type,
			       r.valid_at AS valid_at, r.invalid_at AS invalid_at, r.expired_at AS expired_at,
			       r.episodes AS episodes, r.attributes_json AS attributes_json,
			       r.created_at AS created_at,
			       source.uuid AS source_uuid, source.name AS source_name,
			       target.uuid AS target_uuid, target.name AS target_name
		`
	}

	records, err := s.collect(ctx, query, map[string]any{
		"graph_id":    graphID,
		"entity_uuid": entityUUID,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load entity edges: %w", err)
	}

	edges := make([]*types.EdgeRecord, 0, len(records))
	for _, record := range records {
		edges = append(edges, edgeFromRecord(record))
	}
	return edges, nil
}

// UpsertChunk writes one document chunk and attaches it to its graph meta
// node.
func (s *Neo4jStore) UpsertChunk(ctx context.Context, chunk *types.Chunk) error {
	if chunk == nil {
		return fmt.Errorf("cannot upsert nil chunk")
	}

	createdAt := chunk.CreatedAt
	if createdAt == "" {
		createdAt = types.NowISO()
	}

	session := s.client.NewSession(ctx, neo4j.SessionConfig{DatabaseName: s.database})
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		query := `
			MERGE (c:Chunk {chunk_id: $chunk_id})
			SET c.project_id = $project_id,
			    c.graph_id = $graph_id,
			    c.text = $text,
			    c.created_at = coalesce(c.created_at, $created_at)
			WITH c
			MATCH (g:Graph {graph_id: $graph_id})
			MERGE (g)-[:HAS_CHUNK]->(c)
		`
		_, err := tx.Run(ctx, query, map[string]any{
			"chunk_id":   chunk.ChunkID,
			"project_id": chunk.ProjectID,
			"graph_id":   chunk.GraphID,
			"text":       chunk.Text,
			"created_at": createdAt,
		})
		return nil, err
	})
	if err != nil {
		return fmt.Errorf("failed to upsert chunk: %w", err)
	}

	return nil
}

// LinkMentions connects a chunk to the entities it mentions.
func (s *Neo4jStore) LinkMentions(ctx context.Context, graphID, chunkID string, entityUUIDs []string) error {
	if len(entityUUIDs) == 0 {
		return nil
	}

	session := s.client.NewSession(ctx, neo4j.SessionConfig{DatabaseName: s.database})
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		query := `
			MATCH (c:Chunk {chunk_id: $chunk_id, graph_id: $graph_id})
			UNWIND $entity_uuids AS uuid
			MATCH (e:Entity {uuid: uuid, graph_id: $graph_id})
			MERGE (c)-[:MENTIONS]->(e)
		`
		_, err := tx.Run(ctx, query, map[string]any{
			"chunk_id":     chunkID,
			"graph_id":     graphID,
			"entity_uuids": entityUUIDs,
		})
		return nil, err
	})
	if err != nil {
		return fmt.Errorf("failed to link mentions: %w", err)
	}

	return nil
}

// GetGraphData dumps the whole graph. Nodes are ordered by name and edges
// by created_at so repeated exports are stable.
func (s *Neo4jStore) GetGraphData(ctx context.Context, graphID string) (*types.GraphData, error) {
	session := s.client.NewSession(ctx, neo4j.SessionConfig{DatabaseName: s.database})
	defer session.Close(ctx)

	type graphDump struct {
		nodes []*db.Record
		edges []*db.Record
	}

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		metaQuery := `MATCH (g:Graph {graph_id: $graph_id}) RETURN g.graph_id AS graph_id`
		metaRes, err := tx.Run(ctx, metaQuery, map[string]any{"graph_id": graphID})
		if err != nil {
			return nil, err
		}
		if _, err := metaRes.Single(ctx); err != nil {
			if noRecords(err) {
				return nil, ErrGraphNotFound
			}
			return nil, err
		}

		nodeQuery := `
			MATCH (e:Entity {graph_id: $graph_id})
			RETURN e.uuid AS uuid, e.name AS name, e.entity_type AS entity_type,
			       e.summary AS summary, e.attributes_json AS attributes_json,
			       e.source_entity_types AS source_entity_types,
			       e.created_at AS created_at
			ORDER BY e.name, e.uuid
		`
		nodeRes, err := tx.Run(ctx, nodeQuery, map[string]any{"graph_id": graphID})
		if err != nil {
			return nil, err
		}
		nodes, err := nodeRes.Collect(ctx)
		if err != nil {
			return nil, err
		}

		edgeQuery := `
			MATCH (s:Entity {graph_id: $graph_id})-[r:REL {graph_id: $graph_id}]->(t:Entity {graph_id: $graph_id})
			RETURN r.uuid AS uuid, r.name AS name, r.fact AS fact, r.fact_type AS fact_type,
			       r.attributes_json AS attributes_json, r.created_at AS created_at,
			       r.valid_at AS valid_at, r.invalid_at AS invalid_at, r.expired_at AS expired_at,
			       r.episodes AS episodes,
			       s.uuid AS source_uuid, t.uuid AS target_uuid
			ORDER BY r.created_at, r.uuid
		`
		edgeRes, err := tx.Run(ctx, edgeQuery, map[string]any{"graph_id": graphID})
		if err != nil {
			return nil, err
		}
		edges, err := edgeRes.Collect(ctx)
		if err != nil {
			return nil, err
		}

		return &graphDump{nodes: nodes, edges: edges}, nil
	})
	if err != nil {
		if errors.Is(err, ErrGraphNotFound) {
			return nil, ErrGraphNotFound
		}
		return nil, fmt.Errorf("failed to load graph data: %w", err)
	}

	dump := result.(*graphDump)

	nodes := make([]types.GraphNode, 0, len(dump.nodes))
	nodeNames := make(map[string]string, len(dump.nodes))
	for _, record := range dump.nodes {
		uuid := recordString(record, "uuid")
		name := recordString(record, "name")
		nodeNames[uuid] = name

		entityType := recordString(record, "entity_type")
		if entityType == "" {
			entityType = "Entity"
		}
		attrs := decodeAttributes(recordString(record, "attributes_json"))
		if sourceTypes := recordStringSlice(record, "source_entity_types"); sourceTypes != nil {
			attrs["source_entity_types"] = sourceTypes
		}

		nodes = append(nodes, types.GraphNode{
			UUID:       uuid,
			Name:       name,
			Labels:     []string{"Entity", entityType},
			Summary:    recordString(record, "summary"),
			Attributes: attrs,
			CreatedAt:  recordString(record, "created_at"),
		})
	}

	edges := make([]types.GraphEdge, 0, len(dump.edges))
	for _, record := range dump.edges {
		name := recordString(record, "name")
		factType := recordString(record, "fact_type")
		if factType == "" {
			factType = name
		}
		episodes := recordStringSlice(record, "episodes")
		if episodes == nil {
			episodes = []string{}
		}
		sourceUUID := recordString(record, "source_uuid")
		targetUUID := recordString(record, "target_uuid")

		edges = append(edges, types.GraphEdge{
			UUID:           recordString(record, "uuid"),
			Name:           name,
			Fact:           recordString(record, "fact"),
			FactType:       factType,
			SourceNodeUUID: sourceUUID,
			TargetNodeUUID: targetUUID,
			SourceNodeName: nodeNames[sourceUUID],
			TargetNodeName: nodeNames[targetUUID],
			Attributes:     decodeAttributes(recordString(record, "attributes_json")),
			CreatedAt:      recordString(record, "created_at"),
			ValidAt:        recordString(record, "valid_at"),
			InvalidAt:      recordString(record, "invalid_at"),
			ExpiredAt:      recordString(record, "expired_at"),
			Episodes:       episodes,
		})
	}

	return &types.GraphData{
		GraphID:   graphID,
		Nodes:     nodes,
		Edges:     edges,
		NodeCount: len(nodes),
		EdgeCount: len(edges),
	}, nil
}

// Close shuts down the underlying driver.
func (s *Neo4jStore) Close() error {
	return s.client.Close(context.Background())
}

// collect runs one read query and returns all records.
func (s *Neo4jStore) collect(ctx context.Context, query string, params map[string]any) ([]*db.Record, error) {
	session := s.client.NewSession(ctx, neo4j.SessionConfig{DatabaseName: s.database})
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, query, params)
		if err != nil {
			return nil, err
		}
		return res.Collect(ctx)
	})
	if err != nil {
		return nil, err
	}

	return result.([]*db.Record), nil
}

// noRecords reports whether the error is the driver's empty-result marker
// from Single.
func noRecords(err error) bool {
	return err != nil && err.Error() == "Result contains no more records"
}

func candidateFromRecord(record *db.Record) *types.EntityCandidate {
	return &types.EntityCandidate{
		UUID:              recordString(record, "uuid"),
		Name:              recordString(record, "name"),
		EntityType:        recordString(record, "entity_type"),
		Summary:           recordString(record, "summary"),
		SourceEntityTypes: recordStringSlice(record, "source_entity_types"),
		CreatedAt:         recordString(record, "created_at"),
		MatchScore:        recordInt(record, "match_score"),
	}
}

func edgeFromRecord(record *db.Record) *types.EdgeRecord {
	return &types.EdgeRecord{
		UUID:       recordString(record, "uuid"),
		Name:       recordString(record, "name"),
		Fact:       recordString(record, "fact"),
		FactType:   recordString(record, "fact_type"),
		ValidAt:    recordString(record, "valid_at"),
		InvalidAt:  recordString(record, "invalid_at"),
		ExpiredAt:  recordString(record, "expired_at"),
		CreatedAt:  recordString(record, "created_at"),
		Episodes:   recordStringSlice(record, "episodes"),
		Attributes: decodeAttributes(recordString(record, "attributes_json")),
		SourceUUID: recordString(record, "source_uuid"),
		SourceName: recordString(record, "source_name"),
		TargetUUID: recordString(record, "target_uuid"),
		TargetName: recordString(record, "target_name"),
	}
}

func recordString(record *db.Record, key string) string {
	value, ok := record.Get(key)
	if !ok || value == nil {
		return ""
	}
	s, _ := value.(string)
	return s
}

func recordStringSlice(record *db.Record, key string) []string {
	value, ok := record.Get(key)
	if !ok || value == nil {
		return nil
	}
	items, ok := value.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func recordInt(record *db.Record, key string) int {
	value, ok := record.Get(key)
	if !ok || value == nil {
		return 0
	}
	switch v := value.(type) {
	case int64:
		return int(v)
	case int:
		return v
	case float64:
		return int(v)
	}
	return 0
}

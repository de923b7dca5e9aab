package graph

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/soundprediction/agentgraph/pkg/types"
)

// memoryEdge carries the invalidation fields the write shape leaves out.
type memoryEdge struct {
	relation  types.Relation
	factType  string
	invalidAt string
	expiredAt string
}

// MemoryStore implements Store in process memory with the same conflict
// semantics as the Neo4j backend. It is safe for concurrent use.
type MemoryStore struct {
	mu       sync.RWMutex
	graphs   map[string]*types.GraphInfo
	entities map[string]*types.Entity
	edges    map[string]*memoryEdge
	chunks   map[string]*types.Chunk
	mentions map[string]map[string]struct{}
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		graphs:   map[string]*types.GraphInfo{},
		entities: map[string]*types.Entity{},
		edges:    map[string]*memoryEdge{},
		chunks:   map[string]*types.Chunk{},
		mentions: map[string]map[string]struct{}{},
	}
}

// EnsureSchema is a no-op for the in-memory backend.
func (s *MemoryStore) EnsureSchema(ctx context.Context) error {
	return nil
}

// CreateGraph registers a graph and returns its generated id.
func (s *MemoryStore) CreateGraph(ctx context.Context, projectID, name string, ontology any) (string, error) {
	ontologyJSON := "{}"
	if ontology != nil {
		data, err := json.Marshal(ontology)
		if err != nil {
			return "", fmt.Errorf("failed to serialize ontology: %w", err)
		}
		ontologyJSON = string(data)
	}

	graphID := types.NewGraphID()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.graphs[graphID] = &types.GraphInfo{
		GraphID:      graphID,
		ProjectID:    projectID,
		Name:         name,
		OntologyJSON: ontologyJSON,
		CreatedAt:    types.NowISO(),
	}
	return graphID, nil
}

// GetGraph returns a copy of the graph metadata.
func (s *MemoryStore) GetGraph(ctx context.Context, graphID string) (*types.GraphInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	info, ok := s.graphs[graphID]
	if !ok {
		return nil, ErrGraphNotFound
	}
	clone := *info
	return &clone, nil
}

// DeleteGraph removes the graph meta and everything under the graph id.
func (s *MemoryStore) DeleteGraph(ctx context.Context, graphID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.graphs, graphID)
	for uuid, ent := range s.entities {
		if ent.GraphID == graphID {
			delete(s.entities, uuid)
		}
	}
	for uuid, edge := range s.edges {
		if edge.relation.GraphID == graphID {
			delete(s.edges, uuid)
		}
	}
	for chunkID, chunk := range s.chunks {
		if chunk.GraphID == graphID {
			delete(s.chunks, chunkID)
			delete(s.mentions, chunkID)
		}
	}
	return nil
}

// UpsertEntities applies the conflict rules of the store contract: name and
// type replace, summary and attributes only when non-empty, source entity
// types union-append, created_at keeps its first value.
func (s *MemoryStore) UpsertEntities(ctx context.Context, entities []*types.Entity) ([]string, error) {
	if len(entities) == 0 {
		return nil, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := types.NowISO()
	uuids := make([]string, 0, len(entities))
	for _, ent := range entities {
		uuid := ent.StableUUID()
		uuids = append(uuids, uuid)
		incomingTypes := dedupeNonEmpty(ent.SourceEntityTypes)

		existing, ok := s.entities[uuid]
		if !ok {
			createdAt := ent.CreatedAt
			if createdAt == "" {
				createdAt = now
			}
			s.entities[uuid] = &types.Entity{
				UUID:              uuid,
				ProjectID:         ent.ProjectID,
				GraphID:           ent.GraphID,
				Name:              ent.Name,
				EntityType:        ent.EntityType,
				Summary:           ent.Summary,
				Attributes:        cloneAttributes(ent.Attributes),
				SourceEntityTypes: incomingTypes,
				CreatedAt:         createdAt,
			}
			continue
		}

		existing.ProjectID = ent.ProjectID
		existing.GraphID = ent.GraphID
		existing.Name = ent.Name
		existing.EntityType = ent.EntityType
		if ent.Summary != "" {
			existing.Summary = ent.Summary
		}
		if len(ent.Attributes) > 0 {
			existing.Attributes = cloneAttributes(ent.Attributes)
		}
		existing.SourceEntityTypes = unionAppend(existing.SourceEntityTypes, incomingTypes)
	}

	return uuids, nil
}

// UpsertRelations writes edges, skipping relations whose endpoints are not
// present in the graph.
func (s *MemoryStore) UpsertRelations(ctx context.Context, relations []*types.Relation) error {
	if len(relations) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := types.NowISO()
	for _, rel := range relations {
		source, ok := s.entities[rel.SourceUUID]
		if !ok || source.GraphID != rel.GraphID {
			continue
		}
		target, ok := s.entities[rel.TargetUUID]
		if !ok || target.GraphID != rel.GraphID {
			continue
		}

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
		episodes := dedupeNonEmpty(rel.Episodes)

		edge, ok := s.edges[uuid]
		if !ok {
			s.edges[uuid] = &memoryEdge{
				relation: types.Relation{
					UUID:       uuid,
					ProjectID:  rel.ProjectID,
					GraphID:    rel.GraphID,
					SourceUUID: rel.SourceUUID,
					TargetUUID: rel.TargetUUID,
					Name:       rel.Name,
					Fact:       rel.Fact,
					Attributes: cloneAttributes(rel.Attributes),
					ValidAt:    validAt,
					Episodes:   episodes,
					CreatedAt:  createdAt,
				},
				factType: rel.Name,
			}
			continue
		}

		edge.relation.ProjectID = rel.ProjectID
		edge.relation.GraphID = rel.GraphID
		edge.relation.Name = rel.Name
		edge.relation.Fact = rel.Fact
		edge.relation.Attributes = cloneAttributes(rel.Attributes)
		edge.factType = rel.Name
		if edge.relation.ValidAt == "" {
			edge.relation.ValidAt = validAt
		}
		edge.relation.Episodes = unionAppend(edge.relation.Episodes, episodes)
	}

	return nil
}

// UpdateEntitySummary applies a partial entity update.
func (s *MemoryStore) UpdateEntitySummary(ctx context.Context, uuid, summary string, appendSourceTypes []string) (bool, error) {
	appendTypes := dedupeNonEmpty(appendSourceTypes)
	if summary == "" && len(appendTypes) == 0 {
		return false, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ent, ok := s.entities[uuid]
	if !ok {
		return false, nil
	}
	if summary != "" {
		ent.Summary = summary
	}
	if len(appendTypes) > 0 {
		ent.SourceEntityTypes = unionAppend(ent.SourceEntityTypes, appendTypes)
	}
	return true, nil
}

// InvalidateEdge stamps invalid_at and expired_at, keeping earlier stamps.
func (s *MemoryStore) InvalidateEdge(ctx context.Context, edgeUUID, invalidAt string) (bool, error) {
	if invalidAt == "" {
		invalidAt = types.NowISO()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	edge, ok := s.edges[edgeUUID]
	if !ok {
		return false, nil
	}
	if edge.invalidAt == "" {
		edge.invalidAt = invalidAt
	}
	if edge.expiredAt == "" {
		edge.expiredAt = invalidAt
	}
	return true, nil
}

// AddEpisodeToEdges union-appends the episode id to each edge.
func (s *MemoryStore) AddEpisodeToEdges(ctx context.Context, edgeUUIDs []string, episodeID string) (int, error) {
	if len(edgeUUIDs) == 0 {
		return 0, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	updated := 0
	for _, uuid := range edgeUUIDs {
		edge, ok := s.edges[uuid]
		if !ok {
			continue
		}
		edge.relation.Episodes = unionAppend(edge.relation.Episodes, []string{episodeID})
		updated++
	}
	return updated, nil
}

// FindSimilarEntities returns case-insensitive exact name matches.
func (s *MemoryStore) FindSimilarEntities(ctx context.Context, graphID, name, entityType string) ([]*types.EntityCandidate, error) {
	normalized := normalizeName(name)

	s.mu.RLock()
	defer s.mu.RUnlock()

	candidates := []*types.EntityCandidate{}
	for _, ent := range s.entities {
		if ent.GraphID != graphID {
			continue
		}
		if strings.ToLower(ent.Name) != normalized {
			continue
		}
		if entityType != "" && ent.EntityType != entityType {
			continue
		}
		candidates = append(candidates, &types.EntityCandidate{
			UUID:       ent.UUID,
			Name:       ent.Name,
			EntityType: ent.EntityType,
			Summary:    ent.Summary,
			CreatedAt:  ent.CreatedAt,
		})
	}
	sortCandidates(candidates)
	return candidates, nil
}

// SearchSimilarEntities recalls scored candidates like the Neo4j query:
// exact matches score 3, prefix matches 2, substring matches 1, broad
// prefix hits 0, ordered by score then name.
func (s *MemoryStore) SearchSimilarEntities(ctx context.Context, graphID, name string, limit int) ([]*types.EntityCandidate, error) {
	if name == "" {
		return []*types.EntityCandidate{}, nil
	}
	if limit <= 0 {
		limit = 20
	}

	normalized := normalizeName(name)
	prefix := searchPrefix(normalized)

	s.mu.RLock()
	defer s.mu.RUnlock()

	candidates := []*types.EntityCandidate{}
	for _, ent := range s.entities {
		if ent.GraphID != graphID {
			continue
		}
		lowerName := strings.ToLower(ent.Name)
		if lowerName != normalized &&
			!strings.Contains(lowerName, prefix) &&
			!strings.Contains(normalized, lowerName) {
			continue
		}

		score := 0
		switch {
		case lowerName == normalized:
			score = 3
		case strings.HasPrefix(lowerName, normalized):
			score = 2
		case strings.Contains(lowerName, normalized):
			score = 1
		}

		candidates = append(candidates, &types.EntityCandidate{
			UUID:              ent.UUID,
			Name:              ent.Name,
			EntityType:        ent.EntityType,
			Summary:           ent.Summary,
			SourceEntityTypes: append([]string{}, ent.SourceEntityTypes...),
			CreatedAt:         ent.CreatedAt,
			MatchScore:        score,
		})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].MatchScore != candidates[j].MatchScore {
			return candidates[i].MatchScore > candidates[j].MatchScore
		}
		if candidates[i].Name != candidates[j].Name {
			return candidates[i].Name < candidates[j].Name
		}
		return candidates[i].UUID < candidates[j].UUID
	})
	if len(candidates) > limit {
		candidates = candidates[:limit]
	}
	return candidates, nil
}

// GetEdgesBetweenEntities returns the directed edges from source to target.
func (s *MemoryStore) GetEdgesBetweenEntities(ctx context.Context, graphID, sourceUUID, targetUUID string, includeInvalid bool) ([]*types.EdgeRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	edges := []*types.EdgeRecord{}
	for _, edge := range s.edges {
		rel := &edge.relation
		if rel.GraphID != graphID || rel.SourceUUID != sourceUUID || rel.TargetUUID != targetUUID {
			continue
		}
		if !includeInvalid && edge.invalidAt != "" {
			continue
		}
		edges = append(edges, s.edgeRecord(edge, false))
	}
	sortEdgeRecords(edges)
	return edges, nil
}

// GetEntityByUUID returns a copy of one entity.
func (s *MemoryStore) GetEntityByUUID(ctx context.Context, uuid string) (*types.Entity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ent, ok := s.entities[uuid]
	if !ok {
		return nil, ErrEntityNotFound
	}

	attrs := cloneAttributes(ent.Attributes)
	if attrs == nil {
		attrs = map[string]any{}
	}
	return &types.Entity{
		UUID:              ent.UUID,
		ProjectID:         ent.ProjectID,
		GraphID:           ent.GraphID,
		Name:              ent.Name,
		EntityType:        ent.EntityType,
		Summary:           ent.Summary,
		Attributes:        attrs,
		SourceEntityTypes: append([]string{}, ent.SourceEntityTypes...),
		CreatedAt:         ent.CreatedAt,
	}, nil
}

// GetValidEdgesForEntity returns the incoming and outgoing edges of one
// entity with endpoint names resolved.
func (s *MemoryStore) GetValidEdgesForEntity(ctx context.Context, graphID, entityUUID string, includeInvalid bool) ([]*types.EdgeRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	edges := []*types.EdgeRecord{}
	for _, edge := range s.edges {
		rel := &edge.relation
		if rel.GraphID != graphID {
			continue
		}
		if rel.SourceUUID != entityUUID && rel.TargetUUID != entityUUID {
			continue
		}
		if !includeInvalid && edge.invalidAt != "" {
			continue
		}
		edges = append(edges, s.edgeRecord(edge, true))
	}
	sortEdgeRecords(edges)
	return edges, nil
}

// UpsertChunk writes one document chunk.
func (s *MemoryStore) UpsertChunk(ctx context.Context, chunk *types.Chunk) error {
	if chunk == nil {
		return fmt.Errorf("cannot upsert nil chunk")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.chunks[chunk.ChunkID]
	if !ok {
		createdAt := chunk.CreatedAt
		if createdAt == "" {
			createdAt = types.NowISO()
		}
		s.chunks[chunk.ChunkID] = &types.Chunk{
			ChunkID:   chunk.ChunkID,
			ProjectID: chunk.ProjectID,
			GraphID:   chunk.GraphID,
			Text:      chunk.Text,
			CreatedAt: createdAt,
		}
		return nil
	}

	existing.ProjectID = chunk.ProjectID
	existing.GraphID = chunk.GraphID
	existing.Text = chunk.Text
	return nil
}

// LinkMentions connects a chunk to the entities it mentions. Missing
// chunks and entities are skipped, matching the graph-backed behavior.
func (s *MemoryStore) LinkMentions(ctx context.Context, graphID, chunkID string, entityUUIDs []string) error {
	if len(entityUUIDs) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	chunk, ok := s.chunks[chunkID]
	if !ok || chunk.GraphID != graphID {
		return nil
	}

	set := s.mentions[chunkID]
	if set == nil {
		set = map[string]struct{}{}
		s.mentions[chunkID] = set
	}
	for _, uuid := range entityUUIDs {
		ent, ok := s.entities[uuid]
		if !ok || ent.GraphID != graphID {
			continue
		}
		set[uuid] = struct{}{}
	}
	return nil
}

// GetGraphData dumps the whole graph with stable ordering.
func (s *MemoryStore) GetGraphData(ctx context.Context, graphID string) (*types.GraphData, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.graphs[graphID]; !ok {
		return nil, ErrGraphNotFound
	}

	nodes := []types.GraphNode{}
	nodeNames := map[string]string{}
	for _, ent := range s.entities {
		if ent.GraphID != graphID {
			continue
		}
		nodeNames[ent.UUID] = ent.Name

		entityType := ent.EntityType
		if entityType == "" {
			entityType = "Entity"
		}
		attrs := cloneAttributes(ent.Attributes)
		if attrs == nil {
			attrs = map[string]any{}
		}
		attrs["source_entity_types"] = append([]string{}, ent.SourceEntityTypes...)

		nodes = append(nodes, types.GraphNode{
			UUID:       ent.UUID,
			Name:       ent.Name,
			Labels:     []string{"Entity", entityType},
			Summary:    ent.Summary,
			Attributes: attrs,
			CreatedAt:  ent.CreatedAt,
		})
	}
	sort.Slice(nodes, func(i, j int) bool {
		if nodes[i].Name != nodes[j].Name {
			return nodes[i].Name < nodes[j].Name
		}
		return nodes[i].UUID < nodes[j].UUID
	})

	edges := []types.GraphEdge{}
	for _, edge := range s.edges {
		rel := &edge.relation
		if rel.GraphID != graphID {
			continue
		}
		factType := edge.factType
		if factType == "" {
			factType = rel.Name
		}
		attrs := cloneAttributes(rel.Attributes)
		if attrs == nil {
			attrs = map[string]any{}
		}
		edges = append(edges, types.GraphEdge{
			UUID:           rel.UUID,
			Name:           rel.Name,
			Fact:           rel.Fact,
			FactType:       factType,
			SourceNodeUUID: rel.SourceUUID,
			TargetNodeUUID: rel.TargetUUID,
			SourceNodeName: nodeNames[rel.SourceUUID],
			TargetNodeName: nodeNames[rel.TargetUUID],
			Attributes:     attrs,
			CreatedAt:      rel.CreatedAt,
			ValidAt:        rel.ValidAt,
			InvalidAt:      edge.invalidAt,
			ExpiredAt:      edge.expiredAt,
			Episodes:       append([]string{}, rel.Episodes...),
		})
	}
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].CreatedAt != edges[j].CreatedAt {
			return edges[i].CreatedAt < edges[j].CreatedAt
		}
		return edges[i].UUID < edges[j].UUID
	})

	return &types.GraphData{
		GraphID:   graphID,
		Nodes:     nodes,
		Edges:     edges,
		NodeCount: len(nodes),
		EdgeCount: len(edges),
	}, nil
}

// Close is a no-op for the in-memory backend.
func (s *MemoryStore) Close() error {
	return nil
}

// edgeRecord copies one edge into the read shape. Caller holds the lock.
func (s *MemoryStore) edgeRecord(edge *memoryEdge, withNames bool) *types.EdgeRecord {
	rel := &edge.relation
	record := &types.EdgeRecord{
		UUID:       rel.UUID,
		Name:       rel.Name,
		Fact:       rel.Fact,
		FactType:   edge.factType,
		ValidAt:    rel.ValidAt,
		InvalidAt:  edge.invalidAt,
		ExpiredAt:  edge.expiredAt,
		CreatedAt:  rel.CreatedAt,
		Episodes:   append([]string{}, rel.Episodes...),
		Attributes: cloneAttributes(rel.Attributes),
	}
	if withNames {
		record.SourceUUID = rel.SourceUUID
		record.TargetUUID = rel.TargetUUID
		if source, ok := s.entities[rel.SourceUUID]; ok {
			record.SourceName = source.Name
		}
		if target, ok := s.entities[rel.TargetUUID]; ok {
			record.TargetName = target.Name
		}
	}
	return record
}

func sortCandidates(candidates []*types.EntityCandidate) {
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Name != candidates[j].Name {
			return candidates[i].Name < candidates[j].Name
		}
		return candidates[i].UUID < candidates[j].UUID
	})
}

func sortEdgeRecords(edges []*types.EdgeRecord) {
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].CreatedAt != edges[j].CreatedAt {
			return edges[i].CreatedAt < edges[j].CreatedAt
		}
		return edges[i].UUID < edges[j].UUID
	})
}

func cloneAttributes(attrs map[string]any) map[string]any {
	if len(attrs) == 0 {
		return nil
	}
	out := make(map[string]any, len(attrs))
	for k, v := range attrs {
		out[k] = v
	}
	return out
}

func unionAppend(existing, incoming []string) []string {
	out := existing
	for _, value := range incoming {
		found := false
		for _, have := range out {
			if have == value {
				found = true
				break
			}
		}
		if !found {
			out = append(out, value)
		}
	}
	return out
}

// Package builder constructs a knowledge graph from a static document in a
// single pass: split into overlapping chunks, extract per chunk, resolve
// entities, and persist nodes, edges, and chunk mention links. Unlike the
// streaming updater, document builds never run contradiction detection;
// a document is one consistent snapshot, not a timeline.
package builder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/soundprediction/agentgraph/pkg/extraction"
	"github.com/soundprediction/agentgraph/pkg/graph"
	"github.com/soundprediction/agentgraph/pkg/resolve"
	"github.com/soundprediction/agentgraph/pkg/types"
)

const (
	// DefaultChunkSize is the chunk length in runes.
	DefaultChunkSize = 500
	// DefaultChunkOverlap carries context across chunk boundaries.
	DefaultChunkOverlap = 50
)

// Progress receives build status updates with a completion ratio in [0,1].
type Progress func(message string, ratio float64)

// Options tunes one build. Zero fields take defaults.
type Options struct {
	GraphName    string
	Ontology     *extraction.Ontology
	ChunkSize    int
	ChunkOverlap int
	Progress     Progress
}

// Builder runs one-shot document builds against a store.
type Builder struct {
	store     graph.Store
	extractor extraction.Extractor
	resolver  *resolve.Resolver
	logger    *slog.Logger
}

// NewBuilder creates a builder over the given store and extractor.
func NewBuilder(store graph.Store, extractor extraction.Extractor, logger *slog.Logger) *Builder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Builder{
		store:     store,
		extractor: extractor,
		resolver:  resolve.NewResolver(store, nil, logger),
		logger:    logger,
	}
}

// BuildFromText creates a graph and populates it from the document. A chunk
// whose extraction fails is recorded in the returned data's BuildWarnings
// and skipped; store failures abort the build.
func (b *Builder) BuildFromText(ctx context.Context, projectID, text string, opts *Options) (string, *types.GraphData, error) {
	if strings.TrimSpace(text) == "" {
		return "", nil, errors.New("text is required")
	}

	var o Options
	if opts != nil {
		o = *opts
	}
	if o.ChunkSize <= 0 {
		o.ChunkSize = DefaultChunkSize
	}
	if o.ChunkOverlap <= 0 {
		o.ChunkOverlap = DefaultChunkOverlap
	}
	if o.Ontology == nil {
		o.Ontology = extraction.DefaultOntology()
	}
	if o.GraphName == "" {
		o.GraphName = "document graph"
	}

	chunks, err := SplitText(text, o.ChunkSize, o.ChunkOverlap)
	if err != nil {
		return "", nil, err
	}

	graphID, err := b.store.CreateGraph(ctx, projectID, o.GraphName, o.Ontology)
	if err != nil {
		return "", nil, fmt.Errorf("failed to create graph: %w", err)
	}
	// Entity ids must agree with what a later updater on this graph would
	// mint, so the scoping key comes from the graph id, not the caller.
	scopeID := types.ProjectIDFromGraphID(graphID)

	b.report(o.Progress, "splitting document", 0)

	var warnings []string
	timestamp := types.NowISO()
	for i, chunkText := range chunks {
		b.report(o.Progress, fmt.Sprintf("processing chunk %d/%d", i+1, len(chunks)), float64(i)/float64(len(chunks)))
		if strings.TrimSpace(chunkText) == "" {
			continue
		}

		chunkID := types.NewChunkID()
		chunk := &types.Chunk{
			ChunkID:   chunkID,
			ProjectID: scopeID,
			GraphID:   graphID,
			Text:      chunkText,
			CreatedAt: timestamp,
		}
		if err := b.store.UpsertChunk(ctx, chunk); err != nil {
			return "", nil, fmt.Errorf("failed to write chunk %d: %w", i+1, err)
		}

		result, err := b.extractor.Extract(ctx, chunkText, o.Ontology)
		if err != nil {
			b.logger.Warn("chunk extraction failed",
				"graph_id", graphID,
				"chunk", i+1,
				"error", err)
			warnings = append(warnings, fmt.Sprintf("chunk %d: extraction failed: %v", i+1, err))
			b.resolver.ClearCache()
			continue
		}

		uuidMap, mentioned, err := b.processEntities(ctx, graphID, scopeID, result.Entities, o.Ontology, timestamp)
		if err != nil {
			return "", nil, err
		}
		if len(mentioned) > 0 {
			if err := b.store.LinkMentions(ctx, graphID, chunkID, mentioned); err != nil {
				return "", nil, fmt.Errorf("failed to link mentions for chunk %d: %w", i+1, err)
			}
		}
		if err := b.processRelations(ctx, graphID, scopeID, chunkID, result.Relations, uuidMap, o.Ontology, timestamp); err != nil {
			return "", nil, err
		}

		// Chunks overlap, so the next chunk must see this chunk's writes
		// rather than stale verdicts.
		b.resolver.ClearCache()
	}

	data, err := b.store.GetGraphData(ctx, graphID)
	if err != nil {
		return "", nil, fmt.Errorf("failed to read back graph: %w", err)
	}
	data.BuildWarnings = warnings

	b.report(o.Progress, "build complete", 1)
	b.logger.Info("document build finished",
		"graph_id", graphID,
		"chunks", len(chunks),
		"nodes", data.NodeCount,
		"edges", data.EdgeCount,
		"warnings", len(warnings))
	return graphID, data, nil
}

func (b *Builder) report(progress Progress, message string, ratio float64) {
	if progress != nil {
		progress(message, ratio)
	}
}

// processEntities resolves one chunk's entities and persists them, returning
// the endpoint key map and the uuids this chunk mentions.
func (b *Builder) processEntities(ctx context.Context, graphID, scopeID string, entities []types.ExtractedEntity, ontology *extraction.Ontology, timestamp string) (map[string]string, []string, error) {
	uuidMap := make(map[string]string, len(entities))
	seen := make(map[string]bool, len(entities))
	var mentioned []string
	var created []*types.Entity
	type pendingUpdate struct {
		uuid        string
		summary     string
		sourceTypes []string
	}
	var updates []pendingUpdate

	for i := range entities {
		name := strings.TrimSpace(entities[i].Name)
		if name == "" {
			continue
		}
		rawType := strings.TrimSpace(entities[i].Type)
		entityType := ontology.CanonicalizeEntityType(rawType)
		summary := strings.TrimSpace(entities[i].Summary)

		resolved, err := b.resolver.Resolve(ctx, graphID, name, entityType, summary)
		if err != nil {
			return nil, nil, fmt.Errorf("resolution failed for %q: %w", name, err)
		}

		var sourceTypes []string
		if rawType != "" {
			sourceTypes = []string{rawType}
		}
		key := endpointKey(entityType, name)
		if resolved.IsNew {
			entity := &types.Entity{
				ProjectID:         scopeID,
				GraphID:           graphID,
				Name:              resolved.Name,
				EntityType:        entityType,
				Summary:           summary,
				Attributes:        entities[i].Attributes,
				SourceEntityTypes: sourceTypes,
				CreatedAt:         timestamp,
			}
			entity.UUID = entity.StableUUID()
			created = append(created, entity)
			uuidMap[key] = entity.UUID
		} else {
			uuidMap[key] = resolved.UUID
			if resolved.ShouldUpdateSummary && summary != "" {
				updates = append(updates, pendingUpdate{uuid: resolved.UUID, summary: summary, sourceTypes: sourceTypes})
			} else if len(sourceTypes) > 0 {
				updates = append(updates, pendingUpdate{uuid: resolved.UUID, sourceTypes: sourceTypes})
			}
		}
		if uuid := uuidMap[key]; !seen[uuid] {
			seen[uuid] = true
			mentioned = append(mentioned, uuid)
		}
	}

	if len(created) > 0 {
		if _, err := b.store.UpsertEntities(ctx, created); err != nil {
			return nil, nil, fmt.Errorf("entity upsert failed: %w", err)
		}
	}
	for _, update := range updates {
		if _, err := b.store.UpdateEntitySummary(ctx, update.uuid, update.summary, update.sourceTypes); err != nil {
			b.logger.Warn("entity update failed", "graph_id", graphID, "uuid", update.uuid, "error", err)
		}
	}
	return uuidMap, mentioned, nil
}

// processRelations inserts one chunk's relations. Endpoints resolve through
// the chunk's key map only; a relation naming an entity the chunk did not
// extract is dropped.
func (b *Builder) processRelations(ctx context.Context, graphID, scopeID, chunkID string, relations []types.ExtractedRelation, uuidMap map[string]string, ontology *extraction.Ontology, timestamp string) error {
	var created []*types.Relation
	for i := range relations {
		rel := &relations[i]
		source := strings.TrimSpace(rel.Source)
		target := strings.TrimSpace(rel.Target)
		relationName := strings.TrimSpace(rel.Relation)
		if source == "" || target == "" || relationName == "" {
			continue
		}

		sourceUUID, ok := uuidMap[endpointKey(ontology.CanonicalizeEntityType(strings.TrimSpace(rel.SourceType)), source)]
		if !ok {
			b.logger.Debug("relation source not in chunk", "graph_id", graphID, "source", source, "relation", relationName)
			continue
		}
		targetUUID, ok := uuidMap[endpointKey(ontology.CanonicalizeEntityType(strings.TrimSpace(rel.TargetType)), target)]
		if !ok {
			b.logger.Debug("relation target not in chunk", "graph_id", graphID, "target", target, "relation", relationName)
			continue
		}

		created = append(created, &types.Relation{
			UUID:       types.NewRelationUUID(),
			ProjectID:  scopeID,
			GraphID:    graphID,
			SourceUUID: sourceUUID,
			TargetUUID: targetUUID,
			Name:       relationName,
			Fact:       strings.TrimSpace(rel.Fact),
			Attributes: rel.Attributes,
			ValidAt:    timestamp,
			Episodes:   []string{chunkID},
			CreatedAt:  timestamp,
		})
	}

	if len(created) > 0 {
		if err := b.store.UpsertRelations(ctx, created); err != nil {
			return fmt.Errorf("relation upsert failed: %w", err)
		}
	}
	return nil
}

// endpointKey is how relations reference the chunk's entities: canonical
// type and name, lowercased.
func endpointKey(entityType, name string) string {
	return strings.ToLower(entityType + ":" + name)
}

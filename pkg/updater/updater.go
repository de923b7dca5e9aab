// Package updater turns streams of simulation activity into graph memory.
// Each Updater owns one graph: it queues incoming activities, buffers them
// per platform, and drains fixed-size batches through LLM extraction,
// entity resolution, and edge invalidation into the store.
package updater

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/soundprediction/agentgraph/pkg/extraction"
	"github.com/soundprediction/agentgraph/pkg/graph"
	"github.com/soundprediction/agentgraph/pkg/invalidate"
	"github.com/soundprediction/agentgraph/pkg/journal"
	"github.com/soundprediction/agentgraph/pkg/resolve"
	"github.com/soundprediction/agentgraph/pkg/types"
)

const (
	// DefaultBatchSize is how many activities one extraction call covers.
	DefaultBatchSize = 5
	// DefaultProcessInterval paces the worker between batches.
	DefaultProcessInterval = 500 * time.Millisecond
	// DefaultMaxRetries bounds attempts per batch before it is dropped.
	DefaultMaxRetries = 3
	// DefaultRetryDelay is the base backoff, scaled by attempt number.
	DefaultRetryDelay = 2 * time.Second
	// DefaultStopTimeout bounds how long Stop waits for the final flush.
	DefaultStopTimeout = 10 * time.Second

	// actionDoNothing marks idle simulation steps that carry no facts.
	actionDoNothing = "DO_NOTHING"

	// An incoming edge is a duplicate of an existing one when both the
	// relation names and the facts are this similar.
	duplicateRelationThreshold = 0.8
	duplicateFactThreshold     = 0.75

	// dequeueWait is how long the worker parks when the queue is empty.
	dequeueWait = time.Second
)

// Config tunes one Updater. Zero fields take the package defaults.
type Config struct {
	BatchSize       int
	ProcessInterval time.Duration
	MaxRetries      int
	RetryDelay      time.Duration
	StopTimeout     time.Duration

	// Detector overrides the rule-based contradiction detector, e.g. with
	// invalidate.NewHybridDetector to add an LLM fallback.
	Detector invalidate.Detector
	// Disambiguator, when set, resolves mid-confidence entity matches with
	// an LLM.
	Disambiguator resolve.Disambiguator

	// Journal, when set, persists queued activities under SimulationID so
	// a restart can replay work that never reached the store.
	Journal      *journal.Journal
	SimulationID string
}

// DefaultConfig returns the production tuning.
func DefaultConfig() *Config {
	return &Config{
		BatchSize:       DefaultBatchSize,
		ProcessInterval: DefaultProcessInterval,
		MaxRetries:      DefaultMaxRetries,
		RetryDelay:      DefaultRetryDelay,
		StopTimeout:     DefaultStopTimeout,
	}
}

func (c *Config) withDefaults() Config {
	cfg := Config{}
	if c != nil {
		cfg = *c
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.ProcessInterval <= 0 {
		cfg.ProcessInterval = DefaultProcessInterval
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = DefaultMaxRetries
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = DefaultRetryDelay
	}
	if cfg.StopTimeout <= 0 {
		cfg.StopTimeout = DefaultStopTimeout
	}
	return cfg
}

// Stats is a point-in-time snapshot of one updater's counters.
type Stats struct {
	GraphID            string         `json:"graph_id"`
	BatchSize          int            `json:"batch_size"`
	TotalActivities    int            `json:"total_activities"`
	Processed          int            `json:"processed"`
	EntitiesExtracted  int            `json:"entities_extracted"`
	RelationsExtracted int            `json:"relations_extracted"`
	FailedCount        int            `json:"failed_count"`
	SkippedCount       int            `json:"skipped_count"`
	QueueSize          int            `json:"queue_size"`
	BufferSizes        map[string]int `json:"buffer_sizes"`
	Running            bool           `json:"running"`
}

// queued pairs an activity with the journal key that retires it.
type queued struct {
	activity   *types.Activity
	journalKey string
}

// Updater is the per-graph memory pipeline. A single worker goroutine
// drains the queue; all public methods are safe for concurrent use.
// Stop closes the store, so each Updater owns its store instance.
type Updater struct {
	graphID   string
	projectID string
	store     graph.Store
	extractor extraction.Extractor
	resolver  *resolve.Resolver
	detector  invalidate.Detector
	ontology  *extraction.Ontology
	cfg       Config
	logger    *slog.Logger

	mu      sync.Mutex
	queue   []*queued
	buffers map[string][]*queued
	running bool
	started bool

	totalActivities    int
	processed          int
	entitiesExtracted  int
	relationsExtracted int
	failedCount        int
	skippedCount       int

	notify   chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

// NewUpdater builds the pipeline for one graph. The graph's stored ontology
// steers extraction; a missing or malformed ontology falls back to the
// default one with a warning.
func NewUpdater(ctx context.Context, graphID string, store graph.Store, extractor extraction.Extractor, cfg *Config, logger *slog.Logger) (*Updater, error) {
	if graphID == "" {
		return nil, errors.New("graph id is required")
	}
	if store == nil {
		return nil, errors.New("store is required")
	}
	if extractor == nil {
		return nil, errors.New("extractor is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	conf := cfg.withDefaults()

	ontology := extraction.DefaultOntology()
	if info, err := store.GetGraph(ctx, graphID); err != nil {
		logger.Warn("graph lookup failed, using default ontology", "graph_id", graphID, "error", err)
	} else if raw := strings.TrimSpace(info.OntologyJSON); raw != "" && raw != "{}" && raw != "null" {
		parsed, err := extraction.ParseOntologyJSON(raw)
		if err != nil {
			logger.Warn("stored ontology is invalid, using default", "graph_id", graphID, "error", err)
		} else {
			ontology = parsed
		}
	}

	detector := conf.Detector
	if detector == nil {
		detector = invalidate.NewRuleBasedDetector()
	}
	resolver := resolve.NewResolver(store, &resolve.Options{Disambiguator: conf.Disambiguator}, logger)

	return &Updater{
		graphID:   graphID,
		projectID: types.ProjectIDFromGraphID(graphID),
		store:     store,
		extractor: extractor,
		resolver:  resolver,
		detector:  detector,
		ontology:  ontology,
		cfg:       conf,
		logger:    logger,
		buffers:   map[string][]*queued{"twitter": nil, "reddit": nil},
		notify:    make(chan struct{}, 1),
		done:      make(chan struct{}),
	}, nil
}

// Start launches the worker. A stopped updater cannot be restarted.
func (u *Updater) Start(ctx context.Context) error {
	u.mu.Lock()
	if u.started {
		u.mu.Unlock()
		return errors.New("updater already started")
	}
	u.started = true
	u.running = true
	u.mu.Unlock()

	if u.cfg.Journal != nil {
		if err := u.replayJournal(); err != nil {
			u.logger.Warn("journal replay failed", "graph_id", u.graphID, "error", err)
		}
	}

	go u.workerLoop()
	u.logger.Info("memory updater started",
		"graph_id", u.graphID,
		"batch_size", u.cfg.BatchSize,
		"process_interval", u.cfg.ProcessInterval)
	return nil
}

// AddActivity enqueues one activity. DO_NOTHING steps are counted and
// dropped without ever reaching the queue.
func (u *Updater) AddActivity(activity *types.Activity) {
	if activity == nil {
		return
	}
	if activity.ActionType == actionDoNothing {
		u.mu.Lock()
		u.skippedCount++
		u.mu.Unlock()
		return
	}
	item := &queued{activity: activity}
	if u.cfg.Journal != nil {
		key, err := u.cfg.Journal.Append(u.cfg.SimulationID, activity)
		if err != nil {
			u.logger.Warn("journal append failed", "graph_id", u.graphID, "error", err)
		} else {
			item.journalKey = key
		}
	}
	u.mu.Lock()
	u.queue = append(u.queue, item)
	u.totalActivities++
	u.mu.Unlock()
	u.nudge()
}

// AddActivityFromDict accepts the loosely-typed records the simulation
// driver emits. Records carrying an event_type key are driver-internal
// events, not agent actions, and are ignored.
func (u *Updater) AddActivityFromDict(data map[string]any, platform string) {
	if data == nil {
		return
	}
	if _, ok := data["event_type"]; ok {
		return
	}
	activity := &types.Activity{
		Platform:   platform,
		AgentID:    intField(data, "agent_id"),
		AgentName:  stringField(data, "agent_name"),
		ActionType: stringField(data, "action_type"),
		Round:      intField(data, "round"),
		Timestamp:  stringField(data, "timestamp"),
	}
	if args, ok := data["action_args"].(map[string]any); ok {
		activity.ActionArgs = args
	}
	if activity.Timestamp == "" {
		activity.Timestamp = types.NowISO()
	}
	u.AddActivity(activity)
}

// GetStats snapshots the counters.
func (u *Updater) GetStats() Stats {
	u.mu.Lock()
	defer u.mu.Unlock()
	buffers := make(map[string]int, len(u.buffers))
	for platform, buffer := range u.buffers {
		buffers[platform] = len(buffer)
	}
	return Stats{
		GraphID:            u.graphID,
		BatchSize:          u.cfg.BatchSize,
		TotalActivities:    u.totalActivities,
		Processed:          u.processed,
		EntitiesExtracted:  u.entitiesExtracted,
		RelationsExtracted: u.relationsExtracted,
		FailedCount:        u.failedCount,
		SkippedCount:       u.skippedCount,
		QueueSize:          len(u.queue),
		BufferSizes:        buffers,
		Running:            u.running,
	}
}

// Stop signals the worker, waits for the queue and buffers to flush, and
// closes the store. Safe to call more than once.
func (u *Updater) Stop() {
	u.stopOnce.Do(u.doStop)
}

func (u *Updater) doStop() {
	u.mu.Lock()
	wasStarted := u.started
	u.running = false
	u.mu.Unlock()

	if wasStarted {
		u.nudge()
		select {
		case <-u.done:
		case <-time.After(u.cfg.StopTimeout):
			u.logger.Warn("worker did not finish in time", "graph_id", u.graphID, "timeout", u.cfg.StopTimeout)
		}
	}

	if err := u.store.Close(); err != nil {
		u.logger.Warn("store close failed", "graph_id", u.graphID, "error", err)
	}

	stats := u.GetStats()
	u.logger.Info("memory updater stopped",
		"graph_id", u.graphID,
		"total_activities", stats.TotalActivities,
		"processed", stats.Processed,
		"entities_extracted", stats.EntitiesExtracted,
		"relations_extracted", stats.RelationsExtracted,
		"failed", stats.FailedCount,
		"skipped", stats.SkippedCount)
}

func (u *Updater) nudge() {
	select {
	case u.notify <- struct{}{}:
	default:
	}
}

func (u *Updater) replayJournal() error {
	entries, err := u.cfg.Journal.Pending(u.cfg.SimulationID)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		return nil
	}
	u.mu.Lock()
	for _, entry := range entries {
		u.queue = append(u.queue, &queued{activity: entry.Activity, journalKey: entry.Key})
		u.totalActivities++
	}
	u.mu.Unlock()
	u.nudge()
	u.logger.Info("replayed journaled activities",
		"graph_id", u.graphID,
		"simulation_id", u.cfg.SimulationID,
		"count", len(entries))
	return nil
}

// workerLoop drains the queue until Stop is signalled and the queue is
// empty, then flushes whatever the buffers still hold.
func (u *Updater) workerLoop() {
	defer close(u.done)
	ctx := context.Background()

	for {
		u.mu.Lock()
		if !u.running && len(u.queue) == 0 {
			u.mu.Unlock()
			break
		}
		var item *queued
		if len(u.queue) > 0 {
			item = u.queue[0]
			u.queue = u.queue[1:]
		}
		u.mu.Unlock()

		if item == nil {
			select {
			case <-u.notify:
			case <-time.After(dequeueWait):
			}
			continue
		}

		platform := bufferKey(item.activity.Platform)
		u.mu.Lock()
		u.buffers[platform] = append(u.buffers[platform], item)
		var batch []*queued
		if len(u.buffers[platform]) >= u.cfg.BatchSize {
			batch = u.buffers[platform][:u.cfg.BatchSize]
			u.buffers[platform] = u.buffers[platform][u.cfg.BatchSize:]
		}
		u.mu.Unlock()

		if batch != nil {
			u.processBatch(ctx, batch, platform)
			time.Sleep(u.cfg.ProcessInterval)
		}
	}

	u.flushRemaining(ctx)
}

// flushRemaining moves any queued stragglers into their buffers and
// processes every non-empty buffer as one final partial batch.
func (u *Updater) flushRemaining(ctx context.Context) {
	u.mu.Lock()
	for _, item := range u.queue {
		platform := bufferKey(item.activity.Platform)
		u.buffers[platform] = append(u.buffers[platform], item)
	}
	u.queue = nil
	pending := make(map[string][]*queued)
	for platform, buffer := range u.buffers {
		if len(buffer) > 0 {
			pending[platform] = buffer
			u.buffers[platform] = nil
		}
	}
	u.mu.Unlock()

	platforms := make([]string, 0, len(pending))
	for platform := range pending {
		platforms = append(platforms, platform)
	}
	sort.Strings(platforms)
	for _, platform := range platforms {
		u.logger.Info("flushing remaining activities",
			"graph_id", u.graphID,
			"platform", platform,
			"count", len(pending[platform]))
		u.processBatch(ctx, pending[platform], platform)
	}
}

// processBatch runs one batch through extraction and persistence with
// bounded retries. A batch that keeps failing is dropped and counted.
func (u *Updater) processBatch(ctx context.Context, batch []*queued, platform string) {
	if len(batch) == 0 {
		return
	}
	text := episodeText(batch)
	episodeID := types.NewEpisodeID()
	timestamp := types.NowISO()

	var lastErr error
	for attempt := 0; attempt < u.cfg.MaxRetries; attempt++ {
		entities, relations, err := u.processEpisode(ctx, text, episodeID, timestamp)
		if err == nil {
			u.mu.Lock()
			u.processed += len(batch)
			u.entitiesExtracted += entities
			u.relationsExtracted += relations
			u.mu.Unlock()
			if entities > 0 || relations > 0 {
				u.logger.Info("batch processed",
					"graph_id", u.graphID,
					"platform", platform,
					"activities", len(batch),
					"entities", entities,
					"relations", relations)
			}
			u.markJournal(batch)
			return
		}
		lastErr = err
		if attempt < u.cfg.MaxRetries-1 {
			delay := u.cfg.RetryDelay * time.Duration(attempt+1)
			u.logger.Warn("batch failed, retrying",
				"graph_id", u.graphID,
				"platform", platform,
				"attempt", attempt+1,
				"delay", delay,
				"error", err)
			time.Sleep(delay)
		}
	}

	u.mu.Lock()
	u.failedCount++
	u.mu.Unlock()
	u.logger.Error("batch dropped after retries",
		"graph_id", u.graphID,
		"platform", platform,
		"activities", len(batch),
		"error", lastErr)
}

// processEpisode runs one extract-resolve-persist cycle and reports how
// many entities and relations the extractor produced.
func (u *Updater) processEpisode(ctx context.Context, text, episodeID, timestamp string) (int, int, error) {
	result, err := u.extractor.Extract(ctx, text, u.ontology)
	if err != nil {
		return 0, 0, fmt.Errorf("extraction failed: %w", err)
	}
	if result.IsEmpty() {
		return 0, 0, nil
	}
	uuidMap, err := u.processEntities(ctx, result.Entities, text, timestamp)
	if err != nil {
		return 0, 0, err
	}
	if err := u.processRelations(ctx, result.Relations, uuidMap, episodeID, timestamp); err != nil {
		return 0, 0, err
	}
	return len(result.Entities), len(result.Relations), nil
}

// processEntities resolves every extracted entity against the graph and
// upserts the new ones. It returns a name:type to uuid map for the
// relation pass.
func (u *Updater) processEntities(ctx context.Context, entities []types.ExtractedEntity, episode, timestamp string) (map[string]string, error) {
	// Fresh cache per batch so merges within the batch see each other.
	u.resolver.ClearCache()

	uuidMap := make(map[string]string, len(entities))
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
		entityType := u.ontology.CanonicalizeEntityType(rawType)
		summary := strings.TrimSpace(entities[i].Summary)

		resolved, err := u.resolver.ResolveInContext(ctx, u.graphID, name, entityType, summary, episode)
		if err != nil {
			return nil, fmt.Errorf("resolution failed for %q: %w", name, err)
		}

		var sourceTypes []string
		if rawType != "" {
			sourceTypes = []string{rawType}
		}
		key := entityKey(name, entityType)
		if resolved.IsNew {
			entity := &types.Entity{
				ProjectID:         u.projectID,
				GraphID:           u.graphID,
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
			continue
		}

		uuidMap[key] = resolved.UUID
		if resolved.ShouldUpdateSummary && summary != "" {
			updates = append(updates, pendingUpdate{uuid: resolved.UUID, summary: summary, sourceTypes: sourceTypes})
		} else if len(sourceTypes) > 0 {
			updates = append(updates, pendingUpdate{uuid: resolved.UUID, sourceTypes: sourceTypes})
		}
	}

	if len(created) > 0 {
		if _, err := u.store.UpsertEntities(ctx, created); err != nil {
			return nil, fmt.Errorf("entity upsert failed: %w", err)
		}
	}
	// Summary refreshes are best effort; a miss only loses a description.
	for _, update := range updates {
		if _, err := u.store.UpdateEntitySummary(ctx, update.uuid, update.summary, update.sourceTypes); err != nil {
			u.logger.Warn("entity update failed", "graph_id", u.graphID, "uuid", update.uuid, "error", err)
		}
	}
	return uuidMap, nil
}

// processRelations maps relation endpoints to uuids, filters duplicates,
// invalidates contradicted edges, and bulk-inserts what remains.
func (u *Updater) processRelations(ctx context.Context, relations []types.ExtractedRelation, uuidMap map[string]string, episodeID, timestamp string) error {
	var created []*types.Relation
	for i := range relations {
		rel := &relations[i]
		source := strings.TrimSpace(rel.Source)
		target := strings.TrimSpace(rel.Target)
		relationName := strings.TrimSpace(rel.Relation)
		if source == "" || target == "" || relationName == "" {
			continue
		}
		fact := strings.TrimSpace(rel.Fact)

		sourceUUID, err := u.endpointUUID(ctx, uuidMap, source, rel.SourceType)
		if err != nil {
			return err
		}
		targetUUID, err := u.endpointUUID(ctx, uuidMap, target, rel.TargetType)
		if err != nil {
			return err
		}
		if sourceUUID == "" || targetUUID == "" {
			u.logger.Debug("relation endpoint unresolved",
				"graph_id", u.graphID,
				"source", source,
				"target", target,
				"relation", relationName)
			continue
		}

		existing, err := u.store.GetEdgesBetweenEntities(ctx, u.graphID, sourceUUID, targetUUID, false)
		if err != nil {
			return fmt.Errorf("edge lookup failed: %w", err)
		}
		if duplicates := duplicateEdges(existing, relationName, fact); len(duplicates) > 0 {
			// A restated fact is still evidence: the episode lands on the
			// existing edge instead of a copy of it.
			if _, err := u.store.AddEpisodeToEdges(ctx, duplicates, episodeID); err != nil {
				u.logger.Warn("episode append failed", "graph_id", u.graphID, "error", err)
			}
			u.logger.Debug("duplicate fact skipped",
				"graph_id", u.graphID,
				"relation", relationName,
				"source", source,
				"target", target)
			continue
		}
		u.invalidateContradictions(ctx, existing, sourceUUID, targetUUID, relationName, fact, timestamp)

		created = append(created, &types.Relation{
			UUID:       types.NewRelationUUID(),
			ProjectID:  u.projectID,
			GraphID:    u.graphID,
			SourceUUID: sourceUUID,
			TargetUUID: targetUUID,
			Name:       relationName,
			Fact:       fact,
			Attributes: rel.Attributes,
			ValidAt:    timestamp,
			Episodes:   []string{episodeID},
			CreatedAt:  timestamp,
		})
	}

	if len(created) > 0 {
		if err := u.store.UpsertRelations(ctx, created); err != nil {
			return fmt.Errorf("relation upsert failed: %w", err)
		}
	}
	return nil
}

// endpointUUID resolves a relation endpoint: first against the entities of
// the current batch, then against the graph, never creating new nodes.
func (u *Updater) endpointUUID(ctx context.Context, uuidMap map[string]string, name, rawType string) (string, error) {
	entityType := u.ontology.CanonicalizeEntityType(strings.TrimSpace(rawType))
	if uuid, ok := uuidMap[entityKey(name, entityType)]; ok {
		return uuid, nil
	}
	return u.resolver.FindExisting(ctx, u.graphID, name, entityType)
}

// invalidateContradictions marks every active edge the detector flags as
// contradicted by the incoming one. Detection trouble never fails the
// batch; the new fact still lands.
func (u *Updater) invalidateContradictions(ctx context.Context, existing []*types.EdgeRecord, sourceUUID, targetUUID, relationName, fact, timestamp string) {
	if len(existing) == 0 {
		return
	}
	sourceName, err := u.entityName(ctx, sourceUUID)
	if err != nil {
		u.logger.Warn("contradiction detection skipped", "graph_id", u.graphID, "error", err)
		return
	}
	targetName, err := u.entityName(ctx, targetUUID)
	if err != nil {
		u.logger.Warn("contradiction detection skipped", "graph_id", u.graphID, "error", err)
		return
	}

	newEdge := &invalidate.EdgeInfo{
		SourceName:   sourceName,
		TargetName:   targetName,
		RelationName: relationName,
		Fact:         fact,
	}
	candidates := make([]*invalidate.EdgeInfo, 0, len(existing))
	for _, edge := range existing {
		info := invalidate.EdgeInfoFromRecord(edge)
		info.SourceName = sourceName
		info.TargetName = targetName
		candidates = append(candidates, info)
	}

	contradicted, err := u.detector.DetectContradictions(ctx, newEdge, candidates)
	if err != nil {
		u.logger.Warn("contradiction detection failed", "graph_id", u.graphID, "error", err)
		return
	}
	for _, edgeUUID := range contradicted {
		ok, err := u.store.InvalidateEdge(ctx, edgeUUID, timestamp)
		if err != nil {
			u.logger.Warn("edge invalidation failed", "graph_id", u.graphID, "edge", edgeUUID, "error", err)
			continue
		}
		if ok {
			u.logger.Info("contradicted edge invalidated",
				"graph_id", u.graphID,
				"edge", edgeUUID,
				"relation", relationName)
		}
	}
}

func (u *Updater) entityName(ctx context.Context, uuid string) (string, error) {
	entity, err := u.store.GetEntityByUUID(ctx, uuid)
	if err != nil {
		if errors.Is(err, graph.ErrEntityNotFound) {
			return "", nil
		}
		return "", err
	}
	return entity.Name, nil
}

func (u *Updater) markJournal(batch []*queued) {
	if u.cfg.Journal == nil {
		return
	}
	keys := make([]string, 0, len(batch))
	for _, item := range batch {
		if item.journalKey != "" {
			keys = append(keys, item.journalKey)
		}
	}
	if err := u.cfg.Journal.Mark(keys); err != nil {
		u.logger.Warn("journal mark failed", "graph_id", u.graphID, "error", err)
	}
}

// duplicateEdges returns the uuids of existing edges the incoming one
// restates: near-identical relation name and near-identical fact text.
// Two empty facts count as identical.
func duplicateEdges(existing []*types.EdgeRecord, relationName, fact string) []string {
	newRelation := resolve.Normalize(relationName)
	newFact := resolve.Normalize(fact)
	var matches []string
	for _, edge := range existing {
		if resolve.SeqRatio(newRelation, resolve.Normalize(edge.Name)) < duplicateRelationThreshold {
			continue
		}
		existingFact := resolve.Normalize(edge.Fact)
		if newFact == "" && existingFact == "" {
			matches = append(matches, edge.UUID)
			continue
		}
		if resolve.SeqRatio(newFact, existingFact) >= duplicateFactThreshold {
			matches = append(matches, edge.UUID)
		}
	}
	return matches
}

func entityKey(name, entityType string) string {
	return name + ":" + entityType
}

func bufferKey(platform string) string {
	return strings.ToLower(strings.TrimSpace(platform))
}

func stringField(data map[string]any, key string) string {
	if v, ok := data[key].(string); ok {
		return strings.TrimSpace(v)
	}
	return ""
}

func intField(data map[string]any, key string) int {
	switch v := data[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return 0
}

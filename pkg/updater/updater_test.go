package updater_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soundprediction/agentgraph/pkg/extraction"
	"github.com/soundprediction/agentgraph/pkg/graph"
	"github.com/soundprediction/agentgraph/pkg/journal"
	"github.com/soundprediction/agentgraph/pkg/types"
	"github.com/soundprediction/agentgraph/pkg/updater"
)

const waitFor = 5 * time.Second

// fakeExtractor scripts extraction results per call and records the episode
// text each call received.
type fakeExtractor struct {
	mu    sync.Mutex
	texts []string
	fn    func(call int, text string) (*types.ExtractionResult, error)
}

func (f *fakeExtractor) Extract(ctx context.Context, text string, ontology *extraction.Ontology) (*types.ExtractionResult, error) {
	f.mu.Lock()
	call := len(f.texts)
	f.texts = append(f.texts, text)
	f.mu.Unlock()
	if f.fn == nil {
		return &types.ExtractionResult{}, nil
	}
	return f.fn(call, text)
}

func (f *fakeExtractor) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.texts)
}

func (f *fakeExtractor) text(i int) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.texts[i]
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig() *updater.Config {
	return &updater.Config{
		BatchSize:       2,
		ProcessInterval: time.Millisecond,
		MaxRetries:      1,
		RetryDelay:      time.Millisecond,
		StopTimeout:     waitFor,
	}
}

func newTestGraph(t *testing.T) (*graph.MemoryStore, string) {
	t.Helper()
	store := graph.NewMemoryStore()
	graphID, err := store.CreateGraph(context.Background(), "proj", "test graph", nil)
	require.NoError(t, err)
	return store, graphID
}

func startUpdater(t *testing.T, graphID string, store graph.Store, fake *fakeExtractor, cfg *updater.Config) *updater.Updater {
	t.Helper()
	u, err := updater.NewUpdater(context.Background(), graphID, store, fake, cfg, discardLogger())
	require.NoError(t, err)
	require.NoError(t, u.Start(context.Background()))
	t.Cleanup(u.Stop)
	return u
}

func activity(platform, agent, action string, round int, args map[string]any) *types.Activity {
	return &types.Activity{
		Platform:   platform,
		AgentName:  agent,
		ActionType: action,
		ActionArgs: args,
		Round:      round,
		Timestamp:  types.NowISO(),
	}
}

func extracted(entities []types.ExtractedEntity, relations []types.ExtractedRelation) func(int, string) (*types.ExtractionResult, error) {
	return func(int, string) (*types.ExtractionResult, error) {
		return &types.ExtractionResult{Entities: entities, Relations: relations}, nil
	}
}

func findEdge(edges []*types.EdgeRecord, uuid string) *types.EdgeRecord {
	for _, e := range edges {
		if e.UUID == uuid {
			return e
		}
	}
	return nil
}

func TestDoNothingFiltered(t *testing.T) {
	store, graphID := newTestGraph(t)
	fake := &fakeExtractor{}
	u := startUpdater(t, graphID, store, fake, testConfig())

	u.AddActivity(activity("twitter", "alice", "DO_NOTHING", 1, nil))
	u.AddActivity(activity("twitter", "bob", "DO_NOTHING", 1, nil))
	u.AddActivity(activity("twitter", "carol", "create_post", 1, map[string]any{"content": "hi"}))

	require.Eventually(t, func() bool {
		return u.GetStats().BufferSizes["twitter"] == 1
	}, waitFor, 2*time.Millisecond)

	stats := u.GetStats()
	assert.Equal(t, 2, stats.SkippedCount)
	assert.Equal(t, 1, stats.TotalActivities)
	assert.Zero(t, fake.calls())
}

func TestBatchFiresAtBatchSize(t *testing.T) {
	store, graphID := newTestGraph(t)
	fake := &fakeExtractor{}
	u := startUpdater(t, graphID, store, fake, testConfig())

	u.AddActivity(activity("twitter", "alice", "CREATE_POST", 1, map[string]any{"content": "hello world"}))
	require.Eventually(t, func() bool {
		return u.GetStats().BufferSizes["twitter"] == 1
	}, waitFor, 2*time.Millisecond)
	assert.Zero(t, fake.calls(), "a partial buffer must not trigger processing")

	u.AddActivity(activity("twitter", "bob", "like_post", 2, map[string]any{"post_id": 7}))
	require.Eventually(t, func() bool { return fake.calls() == 1 }, waitFor, 2*time.Millisecond)

	want := `[round 1] alice create_post: {"content":"hello world"}` + "\n" +
		`[round 2] bob like_post: {"post_id":7}`
	assert.Equal(t, want, fake.text(0))

	require.Eventually(t, func() bool { return u.GetStats().Processed == 2 }, waitFor, 2*time.Millisecond)
	stats := u.GetStats()
	assert.Zero(t, stats.QueueSize)
	assert.Zero(t, stats.BufferSizes["twitter"])
}

func TestPlatformBuffersAreIsolated(t *testing.T) {
	store, graphID := newTestGraph(t)
	fake := &fakeExtractor{}
	u := startUpdater(t, graphID, store, fake, testConfig())

	u.AddActivity(activity("Twitter", "alice", "create_post", 1, nil))
	u.AddActivity(activity("reddit", "bob", "create_comment", 1, nil))

	require.Eventually(t, func() bool {
		stats := u.GetStats()
		return stats.BufferSizes["twitter"] == 1 && stats.BufferSizes["reddit"] == 1
	}, waitFor, 2*time.Millisecond)
	assert.Zero(t, fake.calls(), "platforms must not share a batch")

	u.Stop()

	// The final flush drains each platform as its own batch.
	require.Equal(t, 2, fake.calls())
	assert.Equal(t, "[round 1] bob create_comment", fake.text(0))
	assert.Equal(t, "[round 1] alice create_post", fake.text(1))

	stats := u.GetStats()
	assert.Equal(t, 2, stats.Processed)
	assert.False(t, stats.Running)
}

func TestStopFlushesPartialBatch(t *testing.T) {
	store, graphID := newTestGraph(t)
	fake := &fakeExtractor{}
	cfg := testConfig()
	cfg.BatchSize = 5
	u := startUpdater(t, graphID, store, fake, cfg)

	for round := 1; round <= 3; round++ {
		u.AddActivity(activity("twitter", "alice", "create_post", round, nil))
	}
	require.Eventually(t, func() bool {
		return u.GetStats().BufferSizes["twitter"] == 3
	}, waitFor, 2*time.Millisecond)

	u.Stop()

	require.Equal(t, 1, fake.calls())
	stats := u.GetStats()
	assert.Equal(t, 3, stats.Processed)
	assert.Zero(t, stats.QueueSize)
	assert.Zero(t, stats.BufferSizes["twitter"])
	assert.False(t, stats.Running)
}

func TestNewEntitiesAndRelationPersisted(t *testing.T) {
	store, graphID := newTestGraph(t)
	fake := &fakeExtractor{fn: extracted(
		[]types.ExtractedEntity{
			{Name: "Alice", Type: "person", Summary: "an agent who posts about tech"},
			{Name: "Acme Corp", Type: "organization", Summary: "a company"},
		},
		[]types.ExtractedRelation{
			{
				Source: "Alice", SourceType: "person",
				Target: "Acme Corp", TargetType: "organization",
				Relation: "LIKES", Fact: "Alice likes Acme Corp products",
			},
		},
	)}
	cfg := testConfig()
	cfg.BatchSize = 1
	u := startUpdater(t, graphID, store, fake, cfg)

	u.AddActivity(activity("twitter", "alice", "create_post", 1, map[string]any{"content": "I love Acme"}))
	require.Eventually(t, func() bool { return u.GetStats().Processed == 1 }, waitFor, 2*time.Millisecond)

	ctx := context.Background()
	projectID := types.ProjectIDFromGraphID(graphID)
	aliceUUID := types.EntityUUID(projectID, "Person", "Alice")
	acmeUUID := types.EntityUUID(projectID, "Organization", "Acme Corp")

	alice, err := store.GetEntityByUUID(ctx, aliceUUID)
	require.NoError(t, err)
	assert.Equal(t, "Alice", alice.Name)
	assert.Equal(t, "Person", alice.EntityType)
	assert.Equal(t, "an agent who posts about tech", alice.Summary)
	assert.Equal(t, []string{"person"}, alice.SourceEntityTypes)
	assert.Equal(t, graphID, alice.GraphID)

	acme, err := store.GetEntityByUUID(ctx, acmeUUID)
	require.NoError(t, err)
	assert.Equal(t, "Organization", acme.EntityType)

	edges, err := store.GetEdgesBetweenEntities(ctx, graphID, aliceUUID, acmeUUID, false)
	require.NoError(t, err)
	require.Len(t, edges, 1)
	edge := edges[0]
	assert.Equal(t, "LIKES", edge.Name)
	assert.Equal(t, "Alice likes Acme Corp products", edge.Fact)
	assert.NotEmpty(t, edge.ValidAt)
	assert.Contains(t, edge.UUID, "rel_")
	require.Len(t, edge.Episodes, 1)
	assert.Contains(t, edge.Episodes[0], "ep_")

	stats := u.GetStats()
	assert.Equal(t, 2, stats.EntitiesExtracted)
	assert.Equal(t, 1, stats.RelationsExtracted)
}

func TestExistingEntityRefreshedNotDuplicated(t *testing.T) {
	store, graphID := newTestGraph(t)
	ctx := context.Background()
	projectID := types.ProjectIDFromGraphID(graphID)

	seed := &types.Entity{
		ProjectID:         projectID,
		GraphID:           graphID,
		Name:              "Alice Wang",
		EntityType:        "Person",
		Summary:           "old summary",
		SourceEntityTypes: []string{"user"},
	}
	seed.UUID = seed.StableUUID()
	_, err := store.UpsertEntities(ctx, []*types.Entity{seed})
	require.NoError(t, err)

	fake := &fakeExtractor{fn: extracted(
		[]types.ExtractedEntity{{Name: "Alice Wang", Type: "person", Summary: "fresh summary"}},
		nil,
	)}
	cfg := testConfig()
	cfg.BatchSize = 1
	u := startUpdater(t, graphID, store, fake, cfg)

	u.AddActivity(activity("twitter", "alice", "create_post", 1, nil))
	require.Eventually(t, func() bool { return u.GetStats().Processed == 1 }, waitFor, 2*time.Millisecond)

	got, err := store.GetEntityByUUID(ctx, seed.UUID)
	require.NoError(t, err)
	assert.Equal(t, "fresh summary", got.Summary)
	assert.Equal(t, []string{"user", "person"}, got.SourceEntityTypes)

	data, err := store.GetGraphData(ctx, graphID)
	require.NoError(t, err)
	assert.Equal(t, 1, data.NodeCount, "resolving must not mint a second node")
}

func TestDuplicateFactSkipped(t *testing.T) {
	store, graphID := newTestGraph(t)
	ctx := context.Background()
	projectID := types.ProjectIDFromGraphID(graphID)

	alice := &types.Entity{ProjectID: projectID, GraphID: graphID, Name: "Alice", EntityType: "Person"}
	alice.UUID = alice.StableUUID()
	acme := &types.Entity{ProjectID: projectID, GraphID: graphID, Name: "Acme", EntityType: "Organization"}
	acme.UUID = acme.StableUUID()
	_, err := store.UpsertEntities(ctx, []*types.Entity{alice, acme})
	require.NoError(t, err)

	require.NoError(t, store.UpsertRelations(ctx, []*types.Relation{{
		UUID:       "rel_seeddup",
		ProjectID:  projectID,
		GraphID:    graphID,
		SourceUUID: alice.UUID,
		TargetUUID: acme.UUID,
		Name:       "LIKES",
		Fact:       "Alice likes Acme products",
		ValidAt:    "2026-08-20T00:00:00Z",
		CreatedAt:  "2026-08-20T00:00:00Z",
	}}))

	fake := &fakeExtractor{fn: extracted(
		[]types.ExtractedEntity{
			{Name: "Alice", Type: "person"},
			{Name: "Acme", Type: "organization"},
		},
		[]types.ExtractedRelation{{
			Source: "Alice", SourceType: "person",
			Target: "Acme", TargetType: "organization",
			Relation: "LIKES", Fact: "Alice likes Acme products!",
		}},
	)}
	cfg := testConfig()
	cfg.BatchSize = 1
	u := startUpdater(t, graphID, store, fake, cfg)

	u.AddActivity(activity("twitter", "alice", "create_post", 1, nil))
	require.Eventually(t, func() bool { return u.GetStats().Processed == 1 }, waitFor, 2*time.Millisecond)

	edges, err := store.GetEdgesBetweenEntities(ctx, graphID, alice.UUID, acme.UUID, true)
	require.NoError(t, err)
	require.Len(t, edges, 1, "a restated fact must not add an edge")
	assert.Equal(t, "rel_seeddup", edges[0].UUID)
	assert.Empty(t, edges[0].InvalidAt)
	require.Len(t, edges[0].Episodes, 1, "the restating episode must land on the existing edge")
	assert.Contains(t, edges[0].Episodes[0], "ep_")
}

func TestContradictionInvalidatesOldEdge(t *testing.T) {
	store, graphID := newTestGraph(t)
	ctx := context.Background()
	projectID := types.ProjectIDFromGraphID(graphID)

	alice := &types.Entity{ProjectID: projectID, GraphID: graphID, Name: "Alice", EntityType: "Person"}
	alice.UUID = alice.StableUUID()
	acme := &types.Entity{ProjectID: projectID, GraphID: graphID, Name: "Acme", EntityType: "Organization"}
	acme.UUID = acme.StableUUID()
	_, err := store.UpsertEntities(ctx, []*types.Entity{alice, acme})
	require.NoError(t, err)

	require.NoError(t, store.UpsertRelations(ctx, []*types.Relation{{
		UUID:       "rel_oldlike",
		ProjectID:  projectID,
		GraphID:    graphID,
		SourceUUID: alice.UUID,
		TargetUUID: acme.UUID,
		Name:       "LIKES",
		Fact:       "Alice likes Acme products",
		ValidAt:    "2026-08-20T00:00:00Z",
		CreatedAt:  "2026-08-20T00:00:00Z",
	}}))

	fake := &fakeExtractor{fn: extracted(
		[]types.ExtractedEntity{
			{Name: "Alice", Type: "person"},
			{Name: "Acme", Type: "organization"},
		},
		[]types.ExtractedRelation{{
			Source: "Alice", SourceType: "person",
			Target: "Acme", TargetType: "organization",
			Relation: "DISLIKES", Fact: "Alice is fed up with Acme quality",
		}},
	)}
	cfg := testConfig()
	cfg.BatchSize = 1
	u := startUpdater(t, graphID, store, fake, cfg)

	u.AddActivity(activity("twitter", "alice", "create_post", 2, nil))
	require.Eventually(t, func() bool { return u.GetStats().Processed == 1 }, waitFor, 2*time.Millisecond)

	all, err := store.GetEdgesBetweenEntities(ctx, graphID, alice.UUID, acme.UUID, true)
	require.NoError(t, err)
	require.Len(t, all, 2)

	old := findEdge(all, "rel_oldlike")
	require.NotNil(t, old)
	assert.NotEmpty(t, old.InvalidAt)
	assert.Equal(t, old.InvalidAt, old.ExpiredAt)

	active, err := store.GetEdgesBetweenEntities(ctx, graphID, alice.UUID, acme.UUID, false)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "DISLIKES", active[0].Name)
	// The old fact ends exactly where the new one begins.
	assert.Equal(t, active[0].ValidAt, old.InvalidAt)
}

func TestRetryRecoversFromTransientFailure(t *testing.T) {
	store, graphID := newTestGraph(t)
	fake := &fakeExtractor{fn: func(call int, text string) (*types.ExtractionResult, error) {
		if call < 2 {
			return nil, errors.New("model overloaded")
		}
		return &types.ExtractionResult{
			Entities: []types.ExtractedEntity{{Name: "Alice", Type: "person"}},
		}, nil
	}}
	cfg := testConfig()
	cfg.BatchSize = 1
	cfg.MaxRetries = 3
	u := startUpdater(t, graphID, store, fake, cfg)

	u.AddActivity(activity("twitter", "alice", "create_post", 1, nil))
	require.Eventually(t, func() bool { return u.GetStats().Processed == 1 }, waitFor, 2*time.Millisecond)

	stats := u.GetStats()
	assert.Equal(t, 3, fake.calls())
	assert.Zero(t, stats.FailedCount)
	assert.Equal(t, 1, stats.EntitiesExtracted)
}

func TestBatchDroppedAfterRetriesExhausted(t *testing.T) {
	store, graphID := newTestGraph(t)
	fake := &fakeExtractor{fn: func(int, string) (*types.ExtractionResult, error) {
		return nil, errors.New("model down")
	}}
	cfg := testConfig()
	cfg.BatchSize = 1
	cfg.MaxRetries = 2
	u := startUpdater(t, graphID, store, fake, cfg)

	u.AddActivity(activity("twitter", "alice", "create_post", 1, nil))
	require.Eventually(t, func() bool { return u.GetStats().FailedCount == 1 }, waitFor, 2*time.Millisecond)

	stats := u.GetStats()
	assert.Equal(t, 2, fake.calls())
	assert.Zero(t, stats.Processed)
}

func TestEmptyExtractionStillCountsProcessed(t *testing.T) {
	store, graphID := newTestGraph(t)
	fake := &fakeExtractor{fn: func(int, string) (*types.ExtractionResult, error) {
		return nil, nil
	}}
	u := startUpdater(t, graphID, store, fake, testConfig())

	u.AddActivity(activity("twitter", "alice", "refresh", 1, nil))
	u.AddActivity(activity("twitter", "bob", "refresh", 1, nil))
	require.Eventually(t, func() bool { return u.GetStats().Processed == 2 }, waitFor, 2*time.Millisecond)

	stats := u.GetStats()
	assert.Zero(t, stats.EntitiesExtracted)
	assert.Zero(t, stats.RelationsExtracted)
	assert.Zero(t, stats.FailedCount)
}

func TestUnresolvedEndpointSkipsRelation(t *testing.T) {
	store, graphID := newTestGraph(t)
	fake := &fakeExtractor{fn: extracted(
		nil,
		[]types.ExtractedRelation{{Source: "Bob", Target: "Carol", Relation: "MENTIONS"}},
	)}
	cfg := testConfig()
	cfg.BatchSize = 1
	u := startUpdater(t, graphID, store, fake, cfg)

	u.AddActivity(activity("twitter", "bob", "create_post", 1, nil))
	require.Eventually(t, func() bool { return u.GetStats().Processed == 1 }, waitFor, 2*time.Millisecond)

	data, err := store.GetGraphData(context.Background(), graphID)
	require.NoError(t, err)
	assert.Zero(t, data.EdgeCount)
	assert.Equal(t, 1, u.GetStats().RelationsExtracted)
}

func TestRelationEndpointsFallBackToStoreLookup(t *testing.T) {
	store, graphID := newTestGraph(t)
	ctx := context.Background()
	projectID := types.ProjectIDFromGraphID(graphID)

	alice := &types.Entity{ProjectID: projectID, GraphID: graphID, Name: "Alice", EntityType: "Person"}
	alice.UUID = alice.StableUUID()
	acme := &types.Entity{ProjectID: projectID, GraphID: graphID, Name: "Acme", EntityType: "Organization"}
	acme.UUID = acme.StableUUID()
	_, err := store.UpsertEntities(ctx, []*types.Entity{alice, acme})
	require.NoError(t, err)

	// The batch extracted no entities, so endpoints resolve against the
	// graph instead of the batch map.
	fake := &fakeExtractor{fn: extracted(
		nil,
		[]types.ExtractedRelation{{
			Source: "Alice", Target: "Acme",
			Relation: "FOLLOWS", Fact: "Alice follows Acme updates",
		}},
	)}
	cfg := testConfig()
	cfg.BatchSize = 1
	u := startUpdater(t, graphID, store, fake, cfg)

	u.AddActivity(activity("twitter", "alice", "follow", 1, nil))
	require.Eventually(t, func() bool { return u.GetStats().Processed == 1 }, waitFor, 2*time.Millisecond)

	edges, err := store.GetEdgesBetweenEntities(ctx, graphID, alice.UUID, acme.UUID, false)
	require.NoError(t, err)
	require.Len(t, edges, 1)
	assert.Equal(t, "FOLLOWS", edges[0].Name)
}

func TestAddActivityFromDict(t *testing.T) {
	store, graphID := newTestGraph(t)
	fake := &fakeExtractor{}
	cfg := testConfig()
	cfg.BatchSize = 1
	u := startUpdater(t, graphID, store, fake, cfg)

	// Driver-internal events never become activities.
	u.AddActivityFromDict(map[string]any{"event_type": "round_start", "round": float64(1)}, "twitter")
	// Idle steps are filtered the same way as typed activities.
	u.AddActivityFromDict(map[string]any{"action_type": "DO_NOTHING", "agent_id": float64(1)}, "twitter")

	u.AddActivityFromDict(map[string]any{
		"agent_id":    float64(3),
		"agent_name":  "bob",
		"action_type": "CREATE_COMMENT",
		"action_args": map[string]any{"content": "hi"},
		"round":       float64(2),
	}, "reddit")

	require.Eventually(t, func() bool { return fake.calls() == 1 }, waitFor, 2*time.Millisecond)
	assert.Equal(t, `[round 2] bob create_comment: {"content":"hi"}`, fake.text(0))

	stats := u.GetStats()
	assert.Equal(t, 1, stats.TotalActivities)
	assert.Equal(t, 1, stats.SkippedCount)
}

func TestStatsSnapshot(t *testing.T) {
	store, graphID := newTestGraph(t)
	fake := &fakeExtractor{}
	u := startUpdater(t, graphID, store, fake, testConfig())

	stats := u.GetStats()
	assert.Equal(t, graphID, stats.GraphID)
	assert.Equal(t, 2, stats.BatchSize)
	assert.True(t, stats.Running)
	assert.Equal(t, map[string]int{"twitter": 0, "reddit": 0}, stats.BufferSizes)

	u.Stop()
	assert.False(t, u.GetStats().Running)
}

func TestStopIsIdempotent(t *testing.T) {
	store, graphID := newTestGraph(t)
	fake := &fakeExtractor{}
	u := startUpdater(t, graphID, store, fake, testConfig())

	u.Stop()
	u.Stop()
	assert.False(t, u.GetStats().Running)

	require.Error(t, u.Start(context.Background()), "a stopped updater must not restart")
}

func TestJournalRetiredAfterProcessing(t *testing.T) {
	j, err := journal.Open(t.TempDir(), discardLogger())
	require.NoError(t, err)
	defer j.Close()

	store, graphID := newTestGraph(t)
	fake := &fakeExtractor{}
	cfg := testConfig()
	cfg.BatchSize = 1
	cfg.Journal = j
	cfg.SimulationID = "sim-live"
	u := startUpdater(t, graphID, store, fake, cfg)

	u.AddActivity(activity("twitter", "alice", "create_post", 1, nil))
	require.Eventually(t, func() bool { return u.GetStats().Processed == 1 }, waitFor, 2*time.Millisecond)

	require.Eventually(t, func() bool {
		entries, err := j.Pending("sim-live")
		return err == nil && len(entries) == 0
	}, waitFor, 2*time.Millisecond)
}

func TestJournalReplayOnStart(t *testing.T) {
	dir := t.TempDir()
	j, err := journal.Open(dir, discardLogger())
	require.NoError(t, err)

	// A previous run journaled two activities and died before processing.
	_, err = j.Append("sim-replay", activity("twitter", "alice", "create_post", 1, map[string]any{"content": "a"}))
	require.NoError(t, err)
	_, err = j.Append("sim-replay", activity("twitter", "bob", "create_post", 2, map[string]any{"content": "b"}))
	require.NoError(t, err)
	require.NoError(t, j.Close())

	j, err = journal.Open(dir, discardLogger())
	require.NoError(t, err)
	defer j.Close()

	store, graphID := newTestGraph(t)
	fake := &fakeExtractor{}
	cfg := testConfig()
	cfg.Journal = j
	cfg.SimulationID = "sim-replay"
	u := startUpdater(t, graphID, store, fake, cfg)

	require.Eventually(t, func() bool { return u.GetStats().Processed == 2 }, waitFor, 2*time.Millisecond)
	assert.Equal(t, 2, u.GetStats().TotalActivities)
	assert.Equal(t, 1, fake.calls())

	entries, err := j.Pending("sim-replay")
	require.NoError(t, err)
	assert.Empty(t, entries)
}

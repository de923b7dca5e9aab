package graph_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soundprediction/agentgraph/pkg/graph"
	"github.com/soundprediction/agentgraph/pkg/types"
)

func newGraph(t *testing.T, store graph.Store) string {
	t.Helper()
	graphID, err := store.CreateGraph(context.Background(), "proj", "test graph", nil)
	require.NoError(t, err)
	return graphID
}

func testEntity(graphID, name, entityType string) *types.Entity {
	return &types.Entity{
		ProjectID:  "proj",
		GraphID:    graphID,
		Name:       name,
		EntityType: entityType,
	}
}

func TestCreateGraphAndGetGraph(t *testing.T) {
	ctx := context.Background()
	store := graph.NewMemoryStore()

	graphID, err := store.CreateGraph(ctx, "proj-1", "social sim", map[string]any{
		"entity_types": []string{"Person"},
	})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(graphID, "agentgraph_local_"), "graph id %q", graphID)

	info, err := store.GetGraph(ctx, graphID)
	require.NoError(t, err)
	assert.Equal(t, graphID, info.GraphID)
	assert.Equal(t, "proj-1", info.ProjectID)
	assert.Equal(t, "social sim", info.Name)
	assert.JSONEq(t, `{"entity_types":["Person"]}`, info.OntologyJSON)
	assert.NotEmpty(t, info.CreatedAt)

	_, err = store.GetGraph(ctx, "agentgraph_local_missing")
	assert.ErrorIs(t, err, graph.ErrGraphNotFound)
}

func TestCreateGraphWithoutOntology(t *testing.T) {
	ctx := context.Background()
	store := graph.NewMemoryStore()

	graphID, err := store.CreateGraph(ctx, "proj", "empty", nil)
	require.NoError(t, err)

	info, err := store.GetGraph(ctx, graphID)
	require.NoError(t, err)
	assert.Equal(t, "{}", info.OntologyJSON)
}

func TestUpsertEntitiesMergeRules(t *testing.T) {
	ctx := context.Background()
	store := graph.NewMemoryStore()
	graphID := newGraph(t, store)

	first := testEntity(graphID, "Alice", "Person")
	first.Summary = "likes decentralized social apps"
	first.SourceEntityTypes = []string{"Person", "Person", ""}
	first.CreatedAt = "2024-01-01T00:00:00Z"

	uuids, err := store.UpsertEntities(ctx, []*types.Entity{first})
	require.NoError(t, err)
	require.Len(t, uuids, 1)
	assert.Equal(t, types.EntityUUID("proj", "Person", "Alice"), uuids[0])

	stored, err := store.GetEntityByUUID(ctx, uuids[0])
	require.NoError(t, err)
	assert.Equal(t, "Alice", stored.Name)
	assert.Equal(t, []string{"Person"}, stored.SourceEntityTypes)

	// Same identity, empty summary: name replaced, summary kept, types
	// union-appended, created_at untouched.
	second := testEntity(graphID, "ALICE", "Person")
	second.SourceEntityTypes = []string{"User", "Person"}
	_, err = store.UpsertEntities(ctx, []*types.Entity{second})
	require.NoError(t, err)

	stored, err = store.GetEntityByUUID(ctx, uuids[0])
	require.NoError(t, err)
	assert.Equal(t, "ALICE", stored.Name)
	assert.Equal(t, "likes decentralized social apps", stored.Summary)
	assert.Equal(t, []string{"Person", "User"}, stored.SourceEntityTypes)
	assert.Equal(t, "2024-01-01T00:00:00Z", stored.CreatedAt)

	// Non-empty summary replaces.
	third := testEntity(graphID, "Alice", "Person")
	third.Summary = "moved to the fediverse"
	_, err = store.UpsertEntities(ctx, []*types.Entity{third})
	require.NoError(t, err)

	stored, err = store.GetEntityByUUID(ctx, uuids[0])
	require.NoError(t, err)
	assert.Equal(t, "moved to the fediverse", stored.Summary)
}

func TestUpsertEntitiesReturnsUUIDsInInputOrder(t *testing.T) {
	ctx := context.Background()
	store := graph.NewMemoryStore()
	graphID := newGraph(t, store)

	uuids, err := store.UpsertEntities(ctx, []*types.Entity{
		testEntity(graphID, "Bob", "Person"),
		testEntity(graphID, "Bluesky", "Product"),
	})
	require.NoError(t, err)
	require.Len(t, uuids, 2)
	assert.Equal(t, types.EntityUUID("proj", "Person", "Bob"), uuids[0])
	assert.Equal(t, types.EntityUUID("proj", "Product", "Bluesky"), uuids[1])
}

func TestUpsertRelationsMintsUUIDAndDefaultsValidAt(t *testing.T) {
	ctx := context.Background()
	store := graph.NewMemoryStore()
	graphID := newGraph(t, store)

	uuids, err := store.UpsertEntities(ctx, []*types.Entity{
		testEntity(graphID, "Alice", "Person"),
		testEntity(graphID, "Bluesky", "Product"),
	})
	require.NoError(t, err)

	err = store.UpsertRelations(ctx, []*types.Relation{{
		ProjectID:  "proj",
		GraphID:    graphID,
		SourceUUID: uuids[0],
		TargetUUID: uuids[1],
		Name:       "LIKES",
		Fact:       "Alice likes Bluesky",
		CreatedAt:  "2024-02-01T00:00:00Z",
	}})
	require.NoError(t, err)

	edges, err := store.GetEdgesBetweenEntities(ctx, graphID, uuids[0], uuids[1], false)
	require.NoError(t, err)
	require.Len(t, edges, 1)
	assert.True(t, strings.HasPrefix(edges[0].UUID, "rel_"), "edge uuid %q", edges[0].UUID)
	assert.Equal(t, "LIKES", edges[0].Name)
	assert.Equal(t, "LIKES", edges[0].FactType)
	assert.Equal(t, "2024-02-01T00:00:00Z", edges[0].ValidAt)
	assert.True(t, edges[0].IsActive())
}

func TestUpsertRelationsSkipsMissingEndpoints(t *testing.T) {
	ctx := context.Background()
	store := graph.NewMemoryStore()
	graphID := newGraph(t, store)

	uuids, err := store.UpsertEntities(ctx, []*types.Entity{
		testEntity(graphID, "Alice", "Person"),
	})
	require.NoError(t, err)

	err = store.UpsertRelations(ctx, []*types.Relation{{
		GraphID:    graphID,
		SourceUUID: uuids[0],
		TargetUUID: "ent_missing",
		Name:       "FOLLOWS",
	}})
	require.NoError(t, err)

	edges, err := store.GetEdgesBetweenEntities(ctx, graphID, uuids[0], "ent_missing", true)
	require.NoError(t, err)
	assert.Empty(t, edges)
}

func TestUpsertRelationsMergeRules(t *testing.T) {
	ctx := context.Background()
	store := graph.NewMemoryStore()
	graphID := newGraph(t, store)

	uuids, err := store.UpsertEntities(ctx, []*types.Entity{
		testEntity(graphID, "Alice", "Person"),
		testEntity(graphID, "Bluesky", "Product"),
	})
	require.NoError(t, err)

	rel := &types.Relation{
		UUID:       "rel_fixed0000000001",
		GraphID:    graphID,
		SourceUUID: uuids[0],
		TargetUUID: uuids[1],
		Name:       "LIKES",
		Fact:       "Alice likes Bluesky",
		ValidAt:    "2024-02-01T00:00:00Z",
		Episodes:   []string{"ep_1"},
		CreatedAt:  "2024-02-01T00:00:00Z",
	}
	require.NoError(t, store.UpsertRelations(ctx, []*types.Relation{rel}))

	update := &types.Relation{
		UUID:       "rel_fixed0000000001",
		GraphID:    graphID,
		SourceUUID: uuids[0],
		TargetUUID: uuids[1],
		Name:       "LIKES",
		Fact:       "Alice still likes Bluesky",
		ValidAt:    "2024-03-01T00:00:00Z",
		Episodes:   []string{"ep_2", "ep_1"},
		CreatedAt:  "2024-03-01T00:00:00Z",
	}
	require.NoError(t, store.UpsertRelations(ctx, []*types.Relation{update}))

	edges, err := store.GetEdgesBetweenEntities(ctx, graphID, uuids[0], uuids[1], false)
	require.NoError(t, err)
	require.Len(t, edges, 1)
	assert.Equal(t, "Alice still likes Bluesky", edges[0].Fact)
	assert.Equal(t, "2024-02-01T00:00:00Z", edges[0].ValidAt, "valid_at is only set when absent")
	assert.Equal(t, "2024-02-01T00:00:00Z", edges[0].CreatedAt, "created_at is preserved")
	assert.Equal(t, []string{"ep_1", "ep_2"}, edges[0].Episodes)
}

func TestInvalidateEdgeFirstStampWins(t *testing.T) {
	ctx := context.Background()
	store := graph.NewMemoryStore()
	graphID := newGraph(t, store)

	uuids, err := store.UpsertEntities(ctx, []*types.Entity{
		testEntity(graphID, "Alice", "Person"),
		testEntity(graphID, "Bluesky", "Product"),
	})
	require.NoError(t, err)
	require.NoError(t, store.UpsertRelations(ctx, []*types.Relation{{
		UUID:       "rel_fixed0000000002",
		GraphID:    graphID,
		SourceUUID: uuids[0],
		TargetUUID: uuids[1],
		Name:       "LIKES",
	}}))

	ok, err := store.InvalidateEdge(ctx, "rel_fixed0000000002", "2024-04-01T00:00:00Z")
	require.NoError(t, err)
	assert.True(t, ok)

	// Active reads no longer see the edge.
	edges, err := store.GetEdgesBetweenEntities(ctx, graphID, uuids[0], uuids[1], false)
	require.NoError(t, err)
	assert.Empty(t, edges)

	// A second contradiction does not move the stamp.
	ok, err = store.InvalidateEdge(ctx, "rel_fixed0000000002", "2024-05-01T00:00:00Z")
	require.NoError(t, err)
	assert.True(t, ok)

	edges, err = store.GetEdgesBetweenEntities(ctx, graphID, uuids[0], uuids[1], true)
	require.NoError(t, err)
	require.Len(t, edges, 1)
	assert.Equal(t, "2024-04-01T00:00:00Z", edges[0].InvalidAt)
	assert.Equal(t, "2024-04-01T00:00:00Z", edges[0].ExpiredAt)
	assert.False(t, edges[0].IsActive())

	ok, err = store.InvalidateEdge(ctx, "rel_unknown", "")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestAddEpisodeToEdges(t *testing.T) {
	ctx := context.Background()
	store := graph.NewMemoryStore()
	graphID := newGraph(t, store)

	uuids, err := store.UpsertEntities(ctx, []*types.Entity{
		testEntity(graphID, "Alice", "Person"),
		testEntity(graphID, "Bob", "Person"),
	})
	require.NoError(t, err)
	require.NoError(t, store.UpsertRelations(ctx, []*types.Relation{
		{UUID: "rel_a", GraphID: graphID, SourceUUID: uuids[0], TargetUUID: uuids[1], Name: "FOLLOWS", Episodes: []string{"ep_1"}},
		{UUID: "rel_b", GraphID: graphID, SourceUUID: uuids[1], TargetUUID: uuids[0], Name: "FOLLOWS"},
	}))

	count, err := store.AddEpisodeToEdges(ctx, []string{"rel_a", "rel_b", "rel_missing"}, "ep_2")
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	// Appending the same episode again is a no-op on the lists.
	count, err = store.AddEpisodeToEdges(ctx, []string{"rel_a"}, "ep_2")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	edges, err := store.GetEdgesBetweenEntities(ctx, graphID, uuids[0], uuids[1], false)
	require.NoError(t, err)
	require.Len(t, edges, 1)
	assert.Equal(t, []string{"ep_1", "ep_2"}, edges[0].Episodes)
}

func TestUpdateEntitySummary(t *testing.T) {
	ctx := context.Background()
	store := graph.NewMemoryStore()
	graphID := newGraph(t, store)

	uuids, err := store.UpsertEntities(ctx, []*types.Entity{
		testEntity(graphID, "Alice", "Person"),
	})
	require.NoError(t, err)

	ok, err := store.UpdateEntitySummary(ctx, uuids[0], "", nil)
	require.NoError(t, err)
	assert.False(t, ok, "nothing to update")

	ok, err = store.UpdateEntitySummary(ctx, uuids[0], "a power user", []string{"User"})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.UpdateEntitySummary(ctx, uuids[0], "", []string{"User", "Author"})
	require.NoError(t, err)
	assert.True(t, ok)

	stored, err := store.GetEntityByUUID(ctx, uuids[0])
	require.NoError(t, err)
	assert.Equal(t, "a power user", stored.Summary)
	assert.Equal(t, []string{"User", "Author"}, stored.SourceEntityTypes)

	ok, err = store.UpdateEntitySummary(ctx, "ent_missing", "x", nil)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestFindSimilarEntities(t *testing.T) {
	ctx := context.Background()
	store := graph.NewMemoryStore()
	graphID := newGraph(t, store)

	_, err := store.UpsertEntities(ctx, []*types.Entity{
		testEntity(graphID, "Bluesky", "Product"),
		testEntity(graphID, "bluesky", "Topic"),
		testEntity(graphID, "Twitter", "Product"),
	})
	require.NoError(t, err)

	matches, err := store.FindSimilarEntities(ctx, graphID, "  BLUESKY ", "")
	require.NoError(t, err)
	require.Len(t, matches, 2)

	matches, err = store.FindSimilarEntities(ctx, graphID, "bluesky", "Product")
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "Bluesky", matches[0].Name)
	assert.Equal(t, "Product", matches[0].EntityType)

	matches, err = store.FindSimilarEntities(ctx, graphID, "mastodon", "")
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestSearchSimilarEntitiesScoring(t *testing.T) {
	ctx := context.Background()
	store := graph.NewMemoryStore()
	graphID := newGraph(t, store)

	_, err := store.UpsertEntities(ctx, []*types.Entity{
		testEntity(graphID, "Bluesky", "Product"),
		testEntity(graphID, "Bluesky Social", "Organization"),
		testEntity(graphID, "App Bluesky", "Product"),
		testEntity(graphID, "Blues Brothers", "Topic"),
		testEntity(graphID, "Twitter", "Product"),
	})
	require.NoError(t, err)

	candidates, err := store.SearchSimilarEntities(ctx, graphID, "Bluesky", 20)
	require.NoError(t, err)
	require.Len(t, candidates, 4, "Twitter must not be recalled")

	names := make([]string, 0, len(candidates))
	scores := make([]int, 0, len(candidates))
	for _, c := range candidates {
		names = append(names, c.Name)
		scores = append(scores, c.MatchScore)
	}
	assert.Equal(t, []string{"Bluesky", "Bluesky Social", "App Bluesky", "Blues Brothers"}, names)
	assert.Equal(t, []int{3, 2, 1, 0}, scores)

	// The limit keeps the best-scored candidates.
	candidates, err = store.SearchSimilarEntities(ctx, graphID, "Bluesky", 2)
	require.NoError(t, err)
	require.Len(t, candidates, 2)
	assert.Equal(t, "Bluesky", candidates[0].Name)
	assert.Equal(t, "Bluesky Social", candidates[1].Name)

	candidates, err = store.SearchSimilarEntities(ctx, graphID, "", 20)
	require.NoError(t, err)
	assert.Empty(t, candidates)
}

func TestSearchSimilarEntitiesRecallsShorterStoredNames(t *testing.T) {
	ctx := context.Background()
	store := graph.NewMemoryStore()
	graphID := newGraph(t, store)

	_, err := store.UpsertEntities(ctx, []*types.Entity{
		testEntity(graphID, "Bluesky", "Product"),
	})
	require.NoError(t, err)

	// A longer query still recalls the stored name as a zero-score
	// candidate for the resolver's fuzzy pass.
	candidates, err := store.SearchSimilarEntities(ctx, graphID, "Bluesky App Inc", 20)
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, "Bluesky", candidates[0].Name)
	assert.Equal(t, 0, candidates[0].MatchScore)
}

func TestSearchSimilarEntitiesHandlesCJKNames(t *testing.T) {
	ctx := context.Background()
	store := graph.NewMemoryStore()
	graphID := newGraph(t, store)

	_, err := store.UpsertEntities(ctx, []*types.Entity{
		testEntity(graphID, "小红书", "Product"),
	})
	require.NoError(t, err)

	candidates, err := store.SearchSimilarEntities(ctx, graphID, "小红书平台", 20)
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, "小红书", candidates[0].Name)
}

func TestGetValidEdgesForEntity(t *testing.T) {
	ctx := context.Background()
	store := graph.NewMemoryStore()
	graphID := newGraph(t, store)

	uuids, err := store.UpsertEntities(ctx, []*types.Entity{
		testEntity(graphID, "Alice", "Person"),
		testEntity(graphID, "Bob", "Person"),
		testEntity(graphID, "Carol", "Person"),
	})
	require.NoError(t, err)
	require.NoError(t, store.UpsertRelations(ctx, []*types.Relation{
		{UUID: "rel_out", GraphID: graphID, SourceUUID: uuids[0], TargetUUID: uuids[1], Name: "FOLLOWS", CreatedAt: "2024-01-01T00:00:00Z"},
		{UUID: "rel_in", GraphID: graphID, SourceUUID: uuids[2], TargetUUID: uuids[0], Name: "MENTIONS", CreatedAt: "2024-01-02T00:00:00Z"},
		{UUID: "rel_dead", GraphID: graphID, SourceUUID: uuids[0], TargetUUID: uuids[2], Name: "LIKES", CreatedAt: "2024-01-03T00:00:00Z"},
	}))
	_, err = store.InvalidateEdge(ctx, "rel_dead", "2024-02-01T00:00:00Z")
	require.NoError(t, err)

	edges, err := store.GetValidEdgesForEntity(ctx, graphID, uuids[0], false)
	require.NoError(t, err)
	require.Len(t, edges, 2)
	assert.Equal(t, "rel_out", edges[0].UUID)
	assert.Equal(t, "Alice", edges[0].SourceName)
	assert.Equal(t, "Bob", edges[0].TargetName)
	assert.Equal(t, "rel_in", edges[1].UUID)
	assert.Equal(t, "Carol", edges[1].SourceName)

	edges, err = store.GetValidEdgesForEntity(ctx, graphID, uuids[0], true)
	require.NoError(t, err)
	assert.Len(t, edges, 3)
}

func TestGetGraphDataShapeAndOrdering(t *testing.T) {
	ctx := context.Background()
	store := graph.NewMemoryStore()
	graphID := newGraph(t, store)

	zoe := testEntity(graphID, "Zoe", "Person")
	zoe.SourceEntityTypes = []string{"Person", "User"}
	amy := testEntity(graphID, "Amy", "Person")
	amy.Attributes = map[string]any{"handle": "@amy"}

	uuids, err := store.UpsertEntities(ctx, []*types.Entity{zoe, amy})
	require.NoError(t, err)
	require.NoError(t, store.UpsertRelations(ctx, []*types.Relation{
		{UUID: "rel_2", GraphID: graphID, SourceUUID: uuids[1], TargetUUID: uuids[0], Name: "MENTIONS", CreatedAt: "2024-01-02T00:00:00Z"},
		{UUID: "rel_1", GraphID: graphID, SourceUUID: uuids[0], TargetUUID: uuids[1], Name: "FOLLOWS", Fact: "Zoe follows Amy", CreatedAt: "2024-01-01T00:00:00Z"},
	}))
	_, err = store.InvalidateEdge(ctx, "rel_2", "2024-03-01T00:00:00Z")
	require.NoError(t, err)

	data, err := store.GetGraphData(ctx, graphID)
	require.NoError(t, err)

	assert.Equal(t, graphID, data.GraphID)
	assert.Equal(t, 2, data.NodeCount)
	assert.Equal(t, 2, data.EdgeCount, "invalidated edges stay in the dump")

	require.Len(t, data.Nodes, 2)
	assert.Equal(t, "Amy", data.Nodes[0].Name, "nodes ordered by name")
	assert.Equal(t, "Zoe", data.Nodes[1].Name)
	assert.Equal(t, []string{"Entity", "Person"}, data.Nodes[0].Labels)
	assert.Equal(t, "@amy", data.Nodes[0].Attributes["handle"])
	assert.Equal(t, []string{"Person", "User"}, data.Nodes[1].Attributes["source_entity_types"])

	require.Len(t, data.Edges, 2)
	assert.Equal(t, "rel_1", data.Edges[0].UUID, "edges ordered by created_at")
	assert.Equal(t, "FOLLOWS", data.Edges[0].FactType)
	assert.Equal(t, "Zoe", data.Edges[0].SourceNodeName)
	assert.Equal(t, "Amy", data.Edges[0].TargetNodeName)
	assert.Empty(t, data.Edges[0].InvalidAt)
	assert.NotNil(t, data.Edges[0].Episodes)
	assert.Equal(t, "2024-03-01T00:00:00Z", data.Edges[1].InvalidAt)
	assert.Equal(t, "2024-03-01T00:00:00Z", data.Edges[1].ExpiredAt)

	_, err = store.GetGraphData(ctx, "agentgraph_local_missing")
	assert.ErrorIs(t, err, graph.ErrGraphNotFound)
}

func TestDeleteGraphRemovesEverything(t *testing.T) {
	ctx := context.Background()
	store := graph.NewMemoryStore()
	graphID := newGraph(t, store)
	otherID := newGraph(t, store)

	uuids, err := store.UpsertEntities(ctx, []*types.Entity{
		testEntity(graphID, "Alice", "Person"),
		testEntity(graphID, "Bob", "Person"),
	})
	require.NoError(t, err)
	require.NoError(t, store.UpsertRelations(ctx, []*types.Relation{
		{UUID: "rel_x", GraphID: graphID, SourceUUID: uuids[0], TargetUUID: uuids[1], Name: "FOLLOWS"},
	}))
	require.NoError(t, store.UpsertChunk(ctx, &types.Chunk{
		ChunkID: "chunk_1", ProjectID: "proj", GraphID: graphID, Text: "Alice follows Bob",
	}))
	require.NoError(t, store.LinkMentions(ctx, graphID, "chunk_1", uuids))

	keep := testEntity(otherID, "Carol", "Person")
	keep.ProjectID = "proj2"
	keptUUIDs, err := store.UpsertEntities(ctx, []*types.Entity{keep})
	require.NoError(t, err)

	require.NoError(t, store.DeleteGraph(ctx, graphID))

	_, err = store.GetGraphData(ctx, graphID)
	assert.ErrorIs(t, err, graph.ErrGraphNotFound)
	_, err = store.GetEntityByUUID(ctx, uuids[0])
	assert.ErrorIs(t, err, graph.ErrEntityNotFound)

	// Other graphs are untouched.
	_, err = store.GetEntityByUUID(ctx, keptUUIDs[0])
	assert.NoError(t, err)

	// Deleting again is a no-op.
	assert.NoError(t, store.DeleteGraph(ctx, graphID))
}

package graph_test

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soundprediction/agentgraph/pkg/graph"
	"github.com/soundprediction/agentgraph/pkg/types"
)

// newNeo4jStore connects to the database named by NEO4J_TEST_URI and skips
// the test when the variable is unset.
func newNeo4jStore(t *testing.T) *graph.Neo4jStore {
	t.Helper()

	uri := os.Getenv("NEO4J_TEST_URI")
	if uri == "" {
		t.Skip("NEO4J_TEST_URI not set; skipping neo4j integration test")
	}

	store, err := graph.NewNeo4jStore(
		uri,
		os.Getenv("NEO4J_TEST_USER"),
		os.Getenv("NEO4J_TEST_PASSWORD"),
		os.Getenv("NEO4J_TEST_DATABASE"),
		nil,
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	require.NoError(t, store.EnsureSchema(context.Background()))
	return store
}

func TestNeo4jGraphLifecycle(t *testing.T) {
	store := newNeo4jStore(t)
	ctx := context.Background()

	graphID, err := store.CreateGraph(ctx, "proj-it", "integration", map[string]any{
		"entity_types": []string{"Person", "Product"},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.DeleteGraph(ctx, graphID) })

	info, err := store.GetGraph(ctx, graphID)
	require.NoError(t, err)
	assert.Equal(t, "proj-it", info.ProjectID)

	alice := &types.Entity{ProjectID: "proj-it", GraphID: graphID, Name: "Alice", EntityType: "Person", Summary: "early adopter"}
	bluesky := &types.Entity{ProjectID: "proj-it", GraphID: graphID, Name: "Bluesky", EntityType: "Product"}
	uuids, err := store.UpsertEntities(ctx, []*types.Entity{alice, bluesky})
	require.NoError(t, err)
	require.Len(t, uuids, 2)

	// Re-upserting with an empty summary must not erase the stored one.
	_, err = store.UpsertEntities(ctx, []*types.Entity{
		{ProjectID: "proj-it", GraphID: graphID, Name: "alice", EntityType: "Person", SourceEntityTypes: []string{"User"}},
	})
	require.NoError(t, err)

	stored, err := store.GetEntityByUUID(ctx, uuids[0])
	require.NoError(t, err)
	assert.Equal(t, "early adopter", stored.Summary)
	assert.Contains(t, stored.SourceEntityTypes, "User")

	require.NoError(t, store.UpsertRelations(ctx, []*types.Relation{{
		UUID:       "rel_it_likes_000001",
		ProjectID:  "proj-it",
		GraphID:    graphID,
		SourceUUID: uuids[0],
		TargetUUID: uuids[1],
		Name:       "LIKES",
		Fact:       "Alice likes Bluesky",
		ValidAt:    "2024-02-01T00:00:00Z",
		Episodes:   []string{"ep_it_1"},
	}}))

	edges, err := store.GetEdgesBetweenEntities(ctx, graphID, uuids[0], uuids[1], false)
	require.NoError(t, err)
	require.Len(t, edges, 1)
	assert.Equal(t, "LIKES", edges[0].Name)
	assert.Equal(t, "2024-02-01T00:00:00Z", edges[0].ValidAt)

	count, err := store.AddEpisodeToEdges(ctx, []string{"rel_it_likes_000001", "rel_it_missing"}, "ep_it_2")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	ok, err := store.InvalidateEdge(ctx, "rel_it_likes_000001", "2024-03-01T00:00:00Z")
	require.NoError(t, err)
	assert.True(t, ok)

	// First stamp wins over later invalidations.
	ok, err = store.InvalidateEdge(ctx, "rel_it_likes_000001", "2024-04-01T00:00:00Z")
	require.NoError(t, err)
	assert.True(t, ok)

	edges, err = store.GetEdgesBetweenEntities(ctx, graphID, uuids[0], uuids[1], true)
	require.NoError(t, err)
	require.Len(t, edges, 1)
	assert.Equal(t, "2024-03-01T00:00:00Z", edges[0].InvalidAt)
	assert.Equal(t, []string{"ep_it_1", "ep_it_2"}, edges[0].Episodes)

	edges, err = store.GetEdgesBetweenEntities(ctx, graphID, uuids[0], uuids[1], false)
	require.NoError(t, err)
	assert.Empty(t, edges)

	data, err := store.GetGraphData(ctx, graphID)
	require.NoError(t, err)
	assert.Equal(t, 2, data.NodeCount)
	assert.Equal(t, 1, data.EdgeCount)

	require.NoError(t, store.DeleteGraph(ctx, graphID))
	_, err = store.GetGraphData(ctx, graphID)
	assert.ErrorIs(t, err, graph.ErrGraphNotFound)
}

func TestNeo4jSearchSimilarEntities(t *testing.T) {
	store := newNeo4jStore(t)
	ctx := context.Background()

	graphID, err := store.CreateGraph(ctx, "proj-it", "search", nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.DeleteGraph(ctx, graphID) })

	_, err = store.UpsertEntities(ctx, []*types.Entity{
		{ProjectID: "proj-it", GraphID: graphID, Name: "Bluesky", EntityType: "Product"},
		{ProjectID: "proj-it", GraphID: graphID, Name: "Bluesky Social", EntityType: "Organization"},
		{ProjectID: "proj-it", GraphID: graphID, Name: "Twitter", EntityType: "Product"},
	})
	require.NoError(t, err)

	candidates, err := store.SearchSimilarEntities(ctx, graphID, "Bluesky", 20)
	require.NoError(t, err)
	require.Len(t, candidates, 2)
	assert.Equal(t, "Bluesky", candidates[0].Name)
	assert.Equal(t, 3, candidates[0].MatchScore)
	assert.Equal(t, "Bluesky Social", candidates[1].Name)
	assert.Equal(t, 2, candidates[1].MatchScore)

	matches, err := store.FindSimilarEntities(ctx, graphID, "BLUESKY", "Product")
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "Bluesky", matches[0].Name)
}

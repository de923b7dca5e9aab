package resolve_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soundprediction/agentgraph/pkg/graph"
	"github.com/soundprediction/agentgraph/pkg/resolve"
	"github.com/soundprediction/agentgraph/pkg/types"
)

// searchStore scripts candidate recall; the resolver touches no other store
// method.
type searchStore struct {
	graph.Store
	candidates  []*types.EntityCandidate
	searchCalls int
	err         error
}

func (f *searchStore) SearchSimilarEntities(ctx context.Context, graphID, name string, limit int) ([]*types.EntityCandidate, error) {
	f.searchCalls++
	if f.err != nil {
		return nil, f.err
	}
	return f.candidates, nil
}

func candidate(uuid, name string) *types.EntityCandidate {
	return &types.EntityCandidate{UUID: uuid, Name: name, EntityType: "Person"}
}

func TestResolveShortNameIsAlwaysNew(t *testing.T) {
	store := &searchStore{}
	r := resolve.NewResolver(store, nil, nil)

	resolved, err := r.Resolve(context.Background(), "g1", "x", "Person", "")
	require.NoError(t, err)
	assert.True(t, resolved.IsNew)
	assert.Equal(t, types.EntityUUID("", "Person", "x"), resolved.UUID)
	assert.Zero(t, store.searchCalls)
}

func TestResolveExactMatch(t *testing.T) {
	store := &searchStore{candidates: []*types.EntityCandidate{
		candidate("ent_1", "Alice Wang"),
	}}
	r := resolve.NewResolver(store, nil, nil)

	resolved, err := r.Resolve(context.Background(), "g1", "  alice   WANG ", "Person", "a software engineer")
	require.NoError(t, err)
	assert.False(t, resolved.IsNew)
	assert.Equal(t, "ent_1", resolved.MatchedUUID)
	assert.Equal(t, "ent_1", resolved.UUID)
	assert.Equal(t, 1.0, resolved.MatchScore)
	assert.Equal(t, "Alice Wang", resolved.Name)
	assert.True(t, resolved.ShouldUpdateSummary)
}

func TestResolveExactMatchWithoutSummary(t *testing.T) {
	store := &searchStore{candidates: []*types.EntityCandidate{
		candidate("ent_1", "Alice Wang"),
	}}
	r := resolve.NewResolver(store, nil, nil)

	resolved, err := r.Resolve(context.Background(), "g1", "Alice Wang", "Person", "")
	require.NoError(t, err)
	assert.False(t, resolved.IsNew)
	assert.False(t, resolved.ShouldUpdateSummary)
}

func TestResolveFuzzyMatchAboveThreshold(t *testing.T) {
	// Punctuation-only difference: the fuzzy forms are identical.
	store := &searchStore{candidates: []*types.EntityCandidate{
		candidate("ent_apple", "Apple Inc."),
	}}
	r := resolve.NewResolver(store, nil, nil)

	resolved, err := r.Resolve(context.Background(), "g1", "Apple Inc", "Organization", "")
	require.NoError(t, err)
	assert.False(t, resolved.IsNew)
	assert.Equal(t, "ent_apple", resolved.MatchedUUID)
	assert.Equal(t, 1.0, resolved.MatchScore)
	// Existing name is longer once spaces are removed.
	assert.Equal(t, "Apple Inc.", resolved.Name)
}

func TestResolveBelowThresholdCarriesScore(t *testing.T) {
	store := &searchStore{candidates: []*types.EntityCandidate{
		candidate("ent_1", "alpha beta"),
	}}
	r := resolve.NewResolver(store, nil, nil)

	resolved, err := r.Resolve(context.Background(), "g1", "alpha", "Topic", "")
	require.NoError(t, err)
	assert.True(t, resolved.IsNew)
	assert.Empty(t, resolved.MatchedUUID)
	// LCS("alpha", "alpha beta") = 5 over 15 runes.
	assert.InDelta(t, 2.0/3.0, resolved.MatchScore, 1e-9)
}

func TestResolveThresholdIsInclusive(t *testing.T) {
	// SeqRatio("ax", "xb") is exactly 0.5.
	store := &searchStore{candidates: []*types.EntityCandidate{
		candidate("ent_1", "xb"),
	}}
	r := resolve.NewResolver(store, &resolve.Options{FuzzyThreshold: 0.5}, nil)

	resolved, err := r.Resolve(context.Background(), "g1", "ax", "Topic", "")
	require.NoError(t, err)
	assert.False(t, resolved.IsNew)
	assert.Equal(t, "ent_1", resolved.MatchedUUID)
	assert.InDelta(t, 0.5, resolved.MatchScore, 1e-9)
}

func TestResolveNewNameWinsWhenLonger(t *testing.T) {
	store := &searchStore{candidates: []*types.EntityCandidate{
		candidate("ent_1", "Apple Inc"),
	}}
	r := resolve.NewResolver(store, nil, nil)

	resolved, err := r.Resolve(context.Background(), "g1", "Apple Incs", "Organization", "")
	require.NoError(t, err)
	assert.False(t, resolved.IsNew)
	assert.Equal(t, "Apple Incs", resolved.Name)
}

func TestResolveNoCandidates(t *testing.T) {
	store := &searchStore{}
	r := resolve.NewResolver(store, nil, nil)

	resolved, err := r.Resolve(context.Background(), "g1", "Nobody Here", "Person", "")
	require.NoError(t, err)
	assert.True(t, resolved.IsNew)
	assert.Zero(t, resolved.MatchScore)
	assert.Equal(t, types.EntityUUID("", "Person", "Nobody Here"), resolved.UUID)
}

func TestResolveSearchErrorPropagates(t *testing.T) {
	store := &searchStore{err: errors.New("connection refused")}
	r := resolve.NewResolver(store, nil, nil)

	_, err := r.Resolve(context.Background(), "g1", "Alice", "Person", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestResolveCachesByNormalizedName(t *testing.T) {
	store := &searchStore{candidates: []*types.EntityCandidate{
		candidate("ent_1", "Alice Wang"),
	}}
	r := resolve.NewResolver(store, nil, nil)

	first, err := r.Resolve(context.Background(), "g1", "Alice Wang", "Person", "")
	require.NoError(t, err)
	second, err := r.Resolve(context.Background(), "g1", "ALICE   WANG", "Person", "")
	require.NoError(t, err)

	assert.Equal(t, 1, store.searchCalls)
	assert.Same(t, first, second)

	r.ClearCache()
	_, err = r.Resolve(context.Background(), "g1", "Alice Wang", "Person", "")
	require.NoError(t, err)
	assert.Equal(t, 2, store.searchCalls)
}

func TestFindExisting(t *testing.T) {
	store := &searchStore{candidates: []*types.EntityCandidate{
		candidate("ent_1", "Alice Wang"),
	}}
	r := resolve.NewResolver(store, nil, nil)

	uuid, err := r.FindExisting(context.Background(), "g1", "Alice Wang", "Person")
	require.NoError(t, err)
	assert.Equal(t, "ent_1", uuid)

	r.ClearCache()
	store.candidates = nil
	uuid, err = r.FindExisting(context.Background(), "g1", "Bob Unknown", "Person")
	require.NoError(t, err)
	assert.Empty(t, uuid)

	uuid, err = r.FindExisting(context.Background(), "g1", "   ", "Person")
	require.NoError(t, err)
	assert.Empty(t, uuid)
}

type scriptedDisambiguator struct {
	idx         int
	err         error
	lastContext string
	calls       int
}

func (d *scriptedDisambiguator) Disambiguate(ctx context.Context, name, entityType string, candidates []*types.EntityCandidate, episodeText string) (int, error) {
	d.calls++
	d.lastContext = episodeText
	return d.idx, d.err
}

func TestResolveDisambiguationMatch(t *testing.T) {
	// "alpha" vs "alpha beta" scores 2/3: inside the LLM band.
	store := &searchStore{candidates: []*types.EntityCandidate{
		candidate("ent_1", "alpha beta"),
	}}
	dis := &scriptedDisambiguator{idx: 0}
	r := resolve.NewResolver(store, &resolve.Options{Disambiguator: dis}, nil)

	resolved, err := r.ResolveInContext(context.Background(), "g1", "alpha", "Topic", "", "episode text here")
	require.NoError(t, err)
	assert.False(t, resolved.IsNew)
	assert.Equal(t, "ent_1", resolved.MatchedUUID)
	assert.Equal(t, 1, dis.calls)
	assert.Equal(t, "episode text here", dis.lastContext)
}

func TestResolveDisambiguationDeclines(t *testing.T) {
	store := &searchStore{candidates: []*types.EntityCandidate{
		candidate("ent_1", "alpha beta"),
	}}
	dis := &scriptedDisambiguator{idx: -1}
	r := resolve.NewResolver(store, &resolve.Options{Disambiguator: dis}, nil)

	resolved, err := r.Resolve(context.Background(), "g1", "alpha", "Topic", "")
	require.NoError(t, err)
	assert.True(t, resolved.IsNew)
	assert.Equal(t, 1, dis.calls)
}

func TestResolveDisambiguationOutOfRange(t *testing.T) {
	store := &searchStore{candidates: []*types.EntityCandidate{
		candidate("ent_1", "alpha beta"),
	}}
	dis := &scriptedDisambiguator{idx: 7}
	r := resolve.NewResolver(store, &resolve.Options{Disambiguator: dis}, nil)

	resolved, err := r.Resolve(context.Background(), "g1", "alpha", "Topic", "")
	require.NoError(t, err)
	assert.True(t, resolved.IsNew)
}

func TestResolveDisambiguationErrorKeepsNewVerdict(t *testing.T) {
	store := &searchStore{candidates: []*types.EntityCandidate{
		candidate("ent_1", "alpha beta"),
	}}
	dis := &scriptedDisambiguator{err: errors.New("model offline")}
	r := resolve.NewResolver(store, &resolve.Options{Disambiguator: dis}, nil)

	resolved, err := r.Resolve(context.Background(), "g1", "alpha", "Topic", "")
	require.NoError(t, err)
	assert.True(t, resolved.IsNew)
}

func TestResolveSkipsDisambiguationOutsideBand(t *testing.T) {
	// No token overlap and tiny LCS: score stays below the band floor.
	store := &searchStore{candidates: []*types.EntityCandidate{
		candidate("ent_1", "zq"),
	}}
	dis := &scriptedDisambiguator{idx: 0}
	r := resolve.NewResolver(store, &resolve.Options{Disambiguator: dis}, nil)

	resolved, err := r.Resolve(context.Background(), "g1", "alpha", "Topic", "")
	require.NoError(t, err)
	assert.True(t, resolved.IsNew)
	assert.Zero(t, dis.calls)
}

package resolve

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/soundprediction/agentgraph/pkg/graph"
	"github.com/soundprediction/agentgraph/pkg/types"
)

const (
	// FuzzyMatchThreshold is the minimum deterministic similarity that
	// counts as a duplicate.
	FuzzyMatchThreshold = 0.85

	// MinNameLength rejects degenerate names; shorter names always become
	// new entities without a candidate lookup.
	MinNameLength = 2

	// candidateLimit caps how many existing nodes one resolution inspects.
	candidateLimit = 20

	// llmBandFloor is the lower edge of the mid-confidence band where the
	// optional LLM disambiguation pass is consulted.
	llmBandFloor = 0.5

	// cacheSize bounds the per-batch resolution cache.
	cacheSize = 512
)

// Options tunes a Resolver. The zero value selects the defaults.
type Options struct {
	// FuzzyThreshold overrides FuzzyMatchThreshold when > 0.
	FuzzyThreshold float64

	// Disambiguator enables the LLM pass for mid-confidence candidates.
	Disambiguator Disambiguator
}

// Resolver matches extracted entity names against existing graph nodes.
// A bounded cache keyed graphID:normalizedName keeps each unique name to a
// single store lookup per batch; the updater purges it at batch start.
type Resolver struct {
	store          graph.Store
	fuzzyThreshold float64
	disambiguator  Disambiguator
	cache          *lru.Cache[string, *types.ResolvedEntity]
	logger         *slog.Logger
}

// NewResolver creates a resolver over the given store.
func NewResolver(store graph.Store, opts *Options, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	threshold := FuzzyMatchThreshold
	var disambiguator Disambiguator
	if opts != nil {
		if opts.FuzzyThreshold > 0 {
			threshold = opts.FuzzyThreshold
		}
		disambiguator = opts.Disambiguator
	}
	cache, _ := lru.New[string, *types.ResolvedEntity](cacheSize)
	return &Resolver{
		store:          store,
		fuzzyThreshold: threshold,
		disambiguator:  disambiguator,
		cache:          cache,
		logger:         logger,
	}
}

// ClearCache drops every cached resolution. Call at the start of each batch
// so resolutions reflect what the previous batch persisted.
func (r *Resolver) ClearCache() {
	r.cache.Purge()
}

// Resolve decides whether the named entity already exists in the graph.
func (r *Resolver) Resolve(ctx context.Context, graphID, name, entityType, summary string) (*types.ResolvedEntity, error) {
	return r.ResolveInContext(ctx, graphID, name, entityType, summary, "")
}

// ResolveInContext is Resolve with the episode text that produced the
// entity, which the LLM disambiguation pass quotes when consulted.
func (r *Resolver) ResolveInContext(ctx context.Context, graphID, name, entityType, summary, episodeText string) (*types.ResolvedEntity, error) {
	if len([]rune(strings.TrimSpace(name))) < MinNameLength {
		return newEntityResult(name, entityType, 0), nil
	}

	cacheKey := graphID + ":" + Normalize(name)
	if cached, ok := r.cache.Get(cacheKey); ok {
		return cached, nil
	}

	result, candidates, err := r.deterministicResolve(ctx, graphID, name, entityType, summary)
	if err != nil {
		return nil, err
	}

	if result.IsNew && r.disambiguator != nil &&
		result.MatchScore > llmBandFloor && result.MatchScore < r.fuzzyThreshold {
		if match := r.disambiguate(ctx, name, entityType, summary, episodeText, candidates); match != nil {
			result = match
		}
	}

	r.cache.Add(cacheKey, result)
	return result, nil
}

// FindExisting resolves a name against existing nodes only, never minting a
// new entity. Returns the matched uuid or "".
func (r *Resolver) FindExisting(ctx context.Context, graphID, name, entityType string) (string, error) {
	if strings.TrimSpace(name) == "" {
		return "", nil
	}
	resolved, err := r.Resolve(ctx, graphID, strings.TrimSpace(name), entityType, "")
	if err != nil {
		return "", err
	}
	if resolved.IsNew {
		return "", nil
	}
	return resolved.MatchedUUID, nil
}

// deterministicResolve runs the rule-based stage: exact match on normalized
// names first, then the best of three similarity scores against a candidate
// recall from the store.
func (r *Resolver) deterministicResolve(ctx context.Context, graphID, name, entityType, summary string) (*types.ResolvedEntity, []*types.EntityCandidate, error) {
	normalized := Normalize(name)
	fuzzy := NormalizeFuzzy(name)

	candidates, err := r.store.SearchSimilarEntities(ctx, graphID, name, candidateLimit)
	if err != nil {
		return nil, nil, fmt.Errorf("candidate search failed: %w", err)
	}
	if len(candidates) == 0 {
		return newEntityResult(name, entityType, 0), nil, nil
	}

	var bestMatch *types.EntityCandidate
	bestScore := 0.0

	for _, candidate := range candidates {
		candNormalized := Normalize(candidate.Name)
		candFuzzy := NormalizeFuzzy(candidate.Name)

		if normalized == candNormalized {
			return &types.ResolvedEntity{
				UUID:                candidate.UUID,
				Name:                selectBestName(name, candidate.Name),
				EntityType:          entityType,
				IsNew:               false,
				MatchedUUID:         candidate.UUID,
				MatchScore:          1.0,
				ShouldUpdateSummary: summary != "",
			}, candidates, nil
		}

		score := SeqRatio(normalized, candNormalized)
		if s := SeqRatio(fuzzy, candFuzzy); s > score {
			score = s
		}
		if s := TokenJaccard(fuzzy, candFuzzy); s > score {
			score = s
		}
		if score > bestScore {
			bestScore = score
			bestMatch = candidate
		}
	}

	if bestMatch != nil && bestScore >= r.fuzzyThreshold {
		r.logger.Debug("fuzzy entity match",
			"name", name, "matched", bestMatch.Name, "score", fmt.Sprintf("%.3f", bestScore))
		return &types.ResolvedEntity{
			UUID:                bestMatch.UUID,
			Name:                selectBestName(name, bestMatch.Name),
			EntityType:          entityType,
			IsNew:               false,
			MatchedUUID:         bestMatch.UUID,
			MatchScore:          bestScore,
			ShouldUpdateSummary: summary != "",
		}, candidates, nil
	}

	return newEntityResult(name, entityType, bestScore), candidates, nil
}

func (r *Resolver) disambiguate(ctx context.Context, name, entityType, summary, episodeText string, candidates []*types.EntityCandidate) *types.ResolvedEntity {
	idx, err := r.disambiguator.Disambiguate(ctx, name, entityType, candidates, episodeText)
	if err != nil {
		r.logger.Warn("entity disambiguation failed", "name", name, "error", err)
		return nil
	}
	if idx < 0 || idx >= len(candidates) {
		return nil
	}
	candidate := candidates[idx]
	r.logger.Debug("entity matched by disambiguation", "name", name, "matched", candidate.Name)
	return &types.ResolvedEntity{
		UUID:                candidate.UUID,
		Name:                selectBestName(name, candidate.Name),
		EntityType:          entityType,
		IsNew:               false,
		MatchedUUID:         candidate.UUID,
		MatchScore:          FuzzyMatchThreshold,
		ShouldUpdateSummary: summary != "",
	}
}

// newEntityResult mints the verdict for a name nothing matched. The uuid is
// deterministic on (entity_type, name) and is rescoped to the project when
// the entity is upserted.
func newEntityResult(name, entityType string, matchScore float64) *types.ResolvedEntity {
	return &types.ResolvedEntity{
		UUID:       types.EntityUUID("", entityType, name),
		Name:       name,
		EntityType: entityType,
		IsNew:      true,
		MatchScore: matchScore,
	}
}

// selectBestName prefers the more complete display name: the longer of the
// two after removing spaces, ties keeping the existing one.
func selectBestName(newName, existingName string) string {
	if existingName == "" {
		return newName
	}
	if newName == "" {
		return existingName
	}
	newLen := len([]rune(strings.ReplaceAll(newName, " ", "")))
	existingLen := len([]rune(strings.ReplaceAll(existingName, " ", "")))
	if newLen > existingLen {
		return newName
	}
	return existingName
}

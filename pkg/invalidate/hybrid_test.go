package invalidate_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soundprediction/agentgraph/pkg/invalidate"
)

type scriptedDetector struct {
	uuids []string
	calls int
}

func (d *scriptedDetector) DetectContradictions(ctx context.Context, newEdge *invalidate.EdgeInfo, existing []*invalidate.EdgeInfo) ([]string, error) {
	d.calls++
	return d.uuids, nil
}

func TestHybridRulesWinWhenTheyFire(t *testing.T) {
	llm := &scriptedDetector{uuids: []string{"rel_from_llm"}}
	d := invalidate.NewHybridDetector(llm, true)

	existing := []*invalidate.EdgeInfo{
		edge("rel_rule", "Alice", "Acme", "DISLIKES", ""),
	}
	uuids, err := d.DetectContradictions(context.Background(),
		edge("", "Alice", "Acme", "LIKES", ""), existing)
	require.NoError(t, err)
	assert.Equal(t, []string{"rel_rule"}, uuids)
	assert.Zero(t, llm.calls)
}

func TestHybridFallsBackToLLM(t *testing.T) {
	llm := &scriptedDetector{uuids: []string{"rel_from_llm"}}
	d := invalidate.NewHybridDetector(llm, true)

	// Nothing in the rule table for DISCUSSES, no keyword reversal.
	existing := []*invalidate.EdgeInfo{
		edge("rel_old", "Alice", "Acme", "DISCUSSES", "talked about earnings"),
	}
	uuids, err := d.DetectContradictions(context.Background(),
		edge("", "Alice", "Acme", "DISCUSSES", "talked about layoffs"), existing)
	require.NoError(t, err)
	assert.Equal(t, []string{"rel_from_llm"}, uuids)
	assert.Equal(t, 1, llm.calls)
}

func TestHybridUseLLMFalseShortCircuits(t *testing.T) {
	llm := &scriptedDetector{uuids: []string{"rel_from_llm"}}
	d := invalidate.NewHybridDetector(llm, false)

	existing := []*invalidate.EdgeInfo{
		edge("rel_old", "Alice", "Acme", "DISCUSSES", "talked about earnings"),
	}
	uuids, err := d.DetectContradictions(context.Background(),
		edge("", "Alice", "Acme", "DISCUSSES", "talked about layoffs"), existing)
	require.NoError(t, err)
	assert.Empty(t, uuids)
	assert.Zero(t, llm.calls)
}

func TestDetectBatchUnionsAndDedupes(t *testing.T) {
	d := invalidate.NewRuleBasedDetector()
	existing := []*invalidate.EdgeInfo{
		edge("rel_1", "Alice", "Acme", "LIKES", ""),
		edge("rel_2", "Alice", "Acme", "SUPPORTS", ""),
	}
	newEdges := []*invalidate.EdgeInfo{
		edge("", "Alice", "Acme", "DISLIKES", ""),
		edge("", "Alice", "Acme", "HATES", ""),
		edge("", "Alice", "Acme", "OPPOSES", ""),
	}
	uuids, err := invalidate.DetectBatch(context.Background(), d, newEdges, existing)
	require.NoError(t, err)
	assert.Equal(t, []string{"rel_1", "rel_2"}, uuids)
}

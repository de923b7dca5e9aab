package invalidate

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/soundprediction/agentgraph/pkg/nlp"
	"github.com/soundprediction/agentgraph/pkg/types"
)

// LLMDetector asks a model which existing facts the new fact contradicts.
// Detection is advisory: call failures and malformed answers log a warning
// and report no contradictions rather than failing the batch.
type LLMDetector struct {
	client nlp.Client
	logger *slog.Logger
}

// NewLLMDetector creates a detector on top of the given client.
func NewLLMDetector(client nlp.Client, logger *slog.Logger) *LLMDetector {
	if logger == nil {
		logger = slog.Default()
	}
	return &LLMDetector{client: client, logger: logger}
}

const invalidateSystemPrompt = `You judge whether facts contradict each other.`

// DetectContradictions prompts with the numbered existing facts and the new
// fact, expecting {"contradicted_ids": [...]} with 1-based ids.
// Out-of-range ids are dropped.
func (d *LLMDetector) DetectContradictions(ctx context.Context, newEdge *EdgeInfo, existing []*EdgeInfo) ([]string, error) {
	if newEdge == nil || len(existing) == 0 {
		return nil, nil
	}

	var list strings.Builder
	for i, edge := range existing {
		list.WriteString(formatEdge(edge, i+1))
		list.WriteByte('\n')
	}

	userPrompt := fmt.Sprintf(`Given the EXISTING FACTS and the NEW FACT below, decide which existing facts the new fact contradicts.

A contradiction means, for the same pair of entities:
- the relations are semantically opposite (such as "likes" versus "hates"), or
- the fact statements conflict (such as "supports product A" versus "opposes product A"), or
- a state has flipped (such as "followed" versus "unfollowed").

Not a contradiction:
- the new fact supplements or refines an existing fact
- the new fact describes a different aspect
- the new fact only adds information without negating anything

<EXISTING FACTS>
%s</EXISTING FACTS>

<NEW FACT>
%s
</NEW FACT>

Respond with a JSON object with one field:
- contradicted_ids: the ids (numbers) of every existing fact the new fact contradicts, or [] when none do.

Example outputs:
{"contradicted_ids": [1, 3]}
{"contradicted_ids": []}`,
		list.String(), formatEdge(newEdge, 0))

	messages := []types.Message{
		types.NewSystemMessage(invalidateSystemPrompt),
		types.NewUserMessage(userPrompt),
	}
	raw, err := d.client.ChatJSON(ctx, messages, &nlp.ChatOptions{Stage: nlp.StageJSONStructure})
	if err != nil {
		d.logger.Warn("contradiction detection call failed", "error", err)
		return nil, nil
	}

	var uuids []string
	ids, _ := raw["contradicted_ids"].([]any)
	for _, id := range ids {
		idx := -1
		switch v := id.(type) {
		case float64:
			idx = int(v)
		case int:
			idx = v
		}
		if idx < 1 || idx > len(existing) {
			continue
		}
		if uuid := existing[idx-1].UUID; uuid != "" {
			uuids = append(uuids, uuid)
		}
	}
	if len(uuids) > 0 {
		d.logger.Info("detected contradicting edges", "count", len(uuids))
	}
	return uuids, nil
}

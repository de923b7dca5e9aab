package resolve

import (
	"context"
	"fmt"
	"strings"

	"github.com/soundprediction/agentgraph/pkg/nlp"
	"github.com/soundprediction/agentgraph/pkg/types"
)

// Disambiguator decides whether a new entity is the same real-world object
// as one of the candidates. It returns the zero-based candidate index, or
// -1 when none match.
type Disambiguator interface {
	Disambiguate(ctx context.Context, name, entityType string, candidates []*types.EntityCandidate, episodeText string) (int, error)
}

// LLMDisambiguator implements Disambiguator with a JSON-mode chat call.
type LLMDisambiguator struct {
	client nlp.Client
}

// NewLLMDisambiguator creates a disambiguator on top of the given client.
func NewLLMDisambiguator(client nlp.Client) *LLMDisambiguator {
	return &LLMDisambiguator{client: client}
}

const disambiguateSystemPrompt = `You decide whether two entity mentions refer to the same real-world object.`

// Disambiguate prompts the model with the new entity, the candidate list,
// and the episode text. Out-of-range answers count as no match.
func (d *LLMDisambiguator) Disambiguate(ctx context.Context, name, entityType string, candidates []*types.EntityCandidate, episodeText string) (int, error) {
	if len(candidates) == 0 {
		return -1, nil
	}

	var list strings.Builder
	for i, c := range candidates {
		summary := c.Summary
		if summary == "" {
			summary = "none"
		}
		fmt.Fprintf(&list, "[%d] %s (type: %s, summary: %s)\n", i, c.Name, c.EntityType, summary)
	}

	userPrompt := fmt.Sprintf(`Decide whether the NEW ENTITY below is the same entity as one of the CANDIDATES.

<CONTEXT>
%s
</CONTEXT>

<NEW ENTITY>
name: %s
type: %s
</NEW ENTITY>

<CANDIDATES>
%s</CANDIDATES>

Rules:
- Two mentions match only when they refer to the same real-world object or concept.
- Related but distinct entities do not match.
- Similar names naming different individuals do not match.

Respond with a JSON object:
- a match: {"duplicate_idx": <candidate index>}
- no match: {"duplicate_idx": -1}`,
		episodeText, name, entityType, list.String())

	messages := []types.Message{
		types.NewSystemMessage(disambiguateSystemPrompt),
		types.NewUserMessage(userPrompt),
	}
	raw, err := d.client.ChatJSON(ctx, messages, &nlp.ChatOptions{Stage: nlp.StageJSONStructure})
	if err != nil {
		return -1, err
	}

	idx := -1
	switch v := raw["duplicate_idx"].(type) {
	case float64:
		idx = int(v)
	case int:
		idx = v
	}
	if idx < 0 || idx >= len(candidates) {
		return -1, nil
	}
	return idx, nil
}

package extraction

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/soundprediction/agentgraph/pkg/nlp"
	"github.com/soundprediction/agentgraph/pkg/types"
)

// Extractor produces structured entities and relations from episode text.
type Extractor interface {
	Extract(ctx context.Context, text string, ontology *Ontology) (*types.ExtractionResult, error)
}

// LLMExtractor implements Extractor over an nlp.Client, prompting with the
// ontology's labels and requesting a JSON object response.
type LLMExtractor struct {
	client nlp.Client
	logger *slog.Logger
}

// NewLLMExtractor creates an extractor on top of the given client.
func NewLLMExtractor(client nlp.Client, logger *slog.Logger) *LLMExtractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &LLMExtractor{client: client, logger: logger}
}

const extractSystemPrompt = `You are an information extraction engine for a social simulation knowledge graph.
You read an activity log and extract the entities and relations it mentions.

Respond with a JSON object of this exact shape:
{"entities": [{"name": "...", "type": "...", "summary": "..."}],
 "relations": [{"source": "...", "source_type": "...", "target": "...", "target_type": "...", "relation": "...", "fact": "..."}]}

Rules:
- Use entity types from <ENTITY TYPES> whenever one fits.
- Prefer relation names from <RELATION TYPES>; an UPPER_SNAKE_CASE verb is acceptable when none fits.
- Keep entity names short and canonical. Never invent entities the log does not mention.
- "fact" is one sentence stating what the log says about the relation.
- Respond with {"entities": [], "relations": []} when nothing can be extracted.`

// Extract prompts the model with the ontology and text, then validates the
// response shape. Missing fields collapse to empty lists.
func (e *LLMExtractor) Extract(ctx context.Context, text string, ontology *Ontology) (*types.ExtractionResult, error) {
	if ontology == nil {
		ontology = DefaultOntology()
	}
	if strings.TrimSpace(text) == "" {
		return &types.ExtractionResult{Entities: []types.ExtractedEntity{}, Relations: []types.ExtractedRelation{}}, nil
	}

	messages := []types.Message{
		types.NewSystemMessage(extractSystemPrompt),
		types.NewUserMessage(buildExtractUserPrompt(text, ontology)),
	}

	raw, err := e.client.ChatJSON(ctx, messages, &nlp.ChatOptions{Stage: nlp.StageJSONStructure})
	if err != nil {
		return nil, fmt.Errorf("extraction call failed: %w", err)
	}

	result, err := decodeExtraction(raw)
	if err != nil {
		e.logger.Warn("extraction response had unexpected shape", "error", err)
		return nil, err
	}
	return result, nil
}

// Close releases the underlying client.
func (e *LLMExtractor) Close() error {
	if e.client == nil {
		return nil
	}
	return e.client.Close()
}

func buildExtractUserPrompt(text string, ontology *Ontology) string {
	var b strings.Builder
	b.WriteString("<ENTITY TYPES>\n")
	b.WriteString(strings.Join(ontology.EntityTypes, ", "))
	b.WriteString("\n</ENTITY TYPES>\n\n<RELATION TYPES>\n")
	b.WriteString(strings.Join(ontology.EdgeTypes, ", "))
	b.WriteString("\n</RELATION TYPES>\n\n<ACTIVITY LOG>\n")
	b.WriteString(text)
	b.WriteString("\n</ACTIVITY LOG>")
	return b.String()
}

// decodeExtraction converts the parsed JSON object into an ExtractionResult,
// rejecting responses whose entities or relations field is not a list.
func decodeExtraction(raw map[string]any) (*types.ExtractionResult, error) {
	if raw == nil {
		return &types.ExtractionResult{Entities: []types.ExtractedEntity{}, Relations: []types.ExtractedRelation{}}, nil
	}
	for _, field := range []string{"entities", "relations"} {
		if v, ok := raw[field]; ok && v != nil {
			if _, isList := v.([]any); !isList {
				return nil, fmt.Errorf("field %q is not a list", field)
			}
		}
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to re-encode extraction: %w", err)
	}
	var result types.ExtractionResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("failed to decode extraction: %w", err)
	}
	if result.Entities == nil {
		result.Entities = []types.ExtractedEntity{}
	}
	if result.Relations == nil {
		result.Relations = []types.ExtractedRelation{}
	}
	return &result, nil
}

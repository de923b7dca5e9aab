package nlp

import (
	"context"

	"github.com/soundprediction/agentgraph/pkg/types"
)

// Client defines the interface for language model operations.
type Client interface {
	// Chat sends a chat completion request and returns the response text.
	Chat(ctx context.Context, messages []types.Message, opts *ChatOptions) (string, error)

	// ChatJSON sends a chat completion request in JSON mode and returns the
	// parsed object.
	ChatJSON(ctx context.Context, messages []types.Message, opts *ChatOptions) (map[string]any, error)

	// ChatCompletion sends a chat completion request and returns the full
	// response, including any tool calls.
	ChatCompletion(ctx context.Context, messages []types.Message, opts *ChatOptions) (*types.Response, error)

	// Close cleans up any resources.
	Close() error
}

// ToolDefinition describes one function the model may call.
type ToolDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

// ChatOptions carries per-call overrides. A nil *ChatOptions selects the
// defaults of the method being called.
type ChatOptions struct {
	// Model pins this call to a single model, bypassing stage routing.
	Model string

	// Stage tags the call for model routing and usage accounting. Empty
	// defaults to StageSimulation.
	Stage string

	// Temperature overrides the per-method default (0.7 for Chat and
	// ChatCompletion, 0.3 for ChatJSON).
	Temperature *float32

	// MaxTokens caps the completion length. Zero selects the default of 4096.
	MaxTokens int

	// JSONMode asks the endpoint for a JSON object response. ChatJSON sets
	// this implicitly.
	JSONMode bool

	// Tools enables function calling on ChatCompletion.
	Tools []ToolDefinition

	// ToolChoice is "auto", "none", "required", or the name of a specific tool.
	ToolChoice string
}

func (o *ChatOptions) clone() *ChatOptions {
	if o == nil {
		return &ChatOptions{}
	}
	dup := *o
	return &dup
}

func (o *ChatOptions) withModel(model string) *ChatOptions {
	dup := o.clone()
	dup.Model = model
	return dup
}

func (o *ChatOptions) stage() string {
	if o == nil {
		return ""
	}
	return o.Stage
}

func (o *ChatOptions) jsonMode() bool {
	return o != nil && o.JSONMode
}

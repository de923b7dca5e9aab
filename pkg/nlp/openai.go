package nlp

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"

	jsonrepair "github.com/kaptinlin/jsonrepair"
	"github.com/sashabaranov/go-openai"
	"github.com/soundprediction/agentgraph/pkg/types"
)

// Per-method defaults.
const (
	defaultChatTemperature float32 = 0.7
	defaultJSONTemperature float32 = 0.3
	defaultMaxTokens               = 4096
)

// OpenAIClient implements Client against a single OpenAI-compatible Chat
// Completions endpoint. The model is chosen per call; RotatingClient layers
// pool rotation on top of this.
type OpenAIClient struct {
	client *openai.Client
	model  string
}

// NormalizeBaseURL trims the URL and ensures it ends with the /v1 API root,
// appending it when absent. URLs that already carry a versioned path are
// kept as-is.
func NormalizeBaseURL(raw string) string {
	u := strings.TrimSpace(raw)
	if u == "" {
		return ""
	}
	u = strings.TrimRight(u, "/")
	if strings.HasSuffix(u, "/v1") || strings.Contains(u, "/v1/") {
		return u
	}
	return u + "/v1"
}

// NewOpenAIClient creates a client for the given endpoint. The model is the
// default used when a call does not name one.
func NewOpenAIClient(apiKey, baseURL, model string) (*OpenAIClient, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, ErrMissingAPIKey
	}

	cfg := openai.DefaultConfig(apiKey)
	if normalized := NormalizeBaseURL(baseURL); normalized != "" {
		cfg.BaseURL = normalized
	}
	if model == "" {
		model = DefaultModel
	}

	return &OpenAIClient{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
	}, nil
}

// Chat sends a chat completion request and returns the response text.
func (c *OpenAIClient) Chat(ctx context.Context, messages []types.Message, opts *ChatOptions) (string, error) {
	resp, err := c.ChatCompletion(ctx, messages, opts)
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}

// ChatJSON forces JSON mode and returns the decoded response object. Fenced
// code blocks around the body are stripped before parsing; bodies that still
// fail to parse go through a JSON repair pass.
func (c *OpenAIClient) ChatJSON(ctx context.Context, messages []types.Message, opts *ChatOptions) (map[string]any, error) {
	jsonOpts := opts.clone()
	jsonOpts.JSONMode = true
	if jsonOpts.Temperature == nil {
		t := defaultJSONTemperature
		jsonOpts.Temperature = &t
	}

	resp, err := c.ChatCompletion(ctx, messages, jsonOpts)
	if err != nil {
		return nil, err
	}
	return DecodeJSONResponse(resp.Content)
}

// ChatCompletion sends a chat completion request and returns the full
// response, including tool calls and token usage.
func (c *OpenAIClient) ChatCompletion(ctx context.Context, messages []types.Message, opts *ChatOptions) (*types.Response, error) {
	req := c.buildRequest(messages, opts)
	if opts != nil && len(opts.Tools) > 0 {
		req.Tools = buildTools(opts.Tools)
		if opts.ToolChoice != "" {
			req.ToolChoice = buildToolChoice(opts.ToolChoice)
		}
	}

	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no choices returned: %w", ErrEmptyResponse)
	}

	choice := resp.Choices[0]
	out := &types.Response{
		Content: choice.Message.Content,
		Model:   resp.Model,
	}
	for _, tc := range choice.Message.ToolCalls {
		out.ToolCalls = append(out.ToolCalls, types.ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		})
	}
	if resp.Usage.TotalTokens > 0 {
		out.Usage = &types.TokenUsage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		}
	}
	return out, nil
}

// ListModels proxies the upstream models listing and returns the sorted ids.
func (c *OpenAIClient) ListModels(ctx context.Context) ([]string, error) {
	list, err := c.client.ListModels(ctx)
	if err != nil {
		return nil, fmt.Errorf("list models failed: %w", err)
	}

	ids := make([]string, 0, len(list.Models))
	for _, m := range list.Models {
		if m.ID != "" {
			ids = append(ids, m.ID)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// Close cleans up resources (no-op for this client).
func (c *OpenAIClient) Close() error {
	return nil
}

func (c *OpenAIClient) buildRequest(messages []types.Message, opts *ChatOptions) openai.ChatCompletionRequest {
	chatMessages := make([]openai.ChatCompletionMessage, len(messages))
	for i, msg := range messages {
		chatMessages[i] = openai.ChatCompletionMessage{
			Role:    string(msg.Role),
			Content: msg.Content,
		}
	}

	req := openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    chatMessages,
		Temperature: defaultChatTemperature,
		MaxTokens:   defaultMaxTokens,
	}
	if opts.jsonMode() {
		req.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}
	if opts != nil {
		if opts.Model != "" {
			req.Model = opts.Model
		}
		if opts.Temperature != nil {
			req.Temperature = *opts.Temperature
		}
		if opts.MaxTokens > 0 {
			req.MaxTokens = opts.MaxTokens
		}
	}
	return req
}

func buildTools(defs []ToolDefinition) []openai.Tool {
	tools := make([]openai.Tool, 0, len(defs))
	for _, d := range defs {
		tools = append(tools, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        d.Name,
				Description: d.Description,
				Parameters:  d.Parameters,
			},
		})
	}
	return tools
}

func buildToolChoice(choice string) any {
	switch choice {
	case "auto", "none", "required":
		return choice
	default:
		return openai.ToolChoice{
			Type:     openai.ToolTypeFunction,
			Function: openai.ToolFunction{Name: choice},
		}
	}
}

var (
	jsonFenceRE = regexp.MustCompile("(?s)```json(.*?)```")
	fenceRE     = regexp.MustCompile("(?s)```(.*?)```")
)

// ExtractJSONBlock strips a fenced code block wrapper and returns the inner
// text. Bodies without fences are returned unchanged.
func ExtractJSONBlock(text string) string {
	trimmed := strings.TrimSpace(text)
	if strings.Contains(trimmed, "```json") {
		if m := jsonFenceRE.FindStringSubmatch(trimmed); m != nil {
			return strings.TrimSpace(m[1])
		}
	} else if strings.Contains(trimmed, "```") {
		if m := fenceRE.FindStringSubmatch(trimmed); m != nil {
			return strings.TrimSpace(m[1])
		}
	}
	return trimmed
}

// DecodeJSONResponse parses a model response body as a JSON object. An empty
// body fails with ErrEmptyResponse; an unparseable one with ErrMalformedJSON.
func DecodeJSONResponse(body string) (map[string]any, error) {
	text := strings.TrimSpace(body)
	if text == "" {
		return nil, ErrEmptyResponse
	}

	text = ExtractJSONBlock(text)

	var out map[string]any
	if err := json.Unmarshal([]byte(text), &out); err == nil {
		return out, nil
	}

	// Models occasionally emit truncated or slightly broken JSON; a repair
	// pass recovers most of it.
	if repaired, err := jsonrepair.JSONRepair(text); err == nil {
		if err := json.Unmarshal([]byte(repaired), &out); err == nil {
			return out, nil
		}
	}

	return nil, fmt.Errorf("%w: %s", ErrMalformedJSON, snippet(text, 200))
}

func snippet(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}

package nlp

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/soundprediction/agentgraph/pkg/types"
)

// UsageSink receives a copy of every usage record, for analytics backends
// that mirror the JSONL log.
type UsageSink interface {
	Record(UsageRecord)
}

// RotatingClient implements Client over an ordered pool of models resolved
// from the live settings. Quota and availability failures advance to the
// next model in the pool; other errors surface immediately. Every attempt,
// success or error, is appended to the usage log with its classification.
//
// The underlying HTTP client is rebuilt only when the credentials or base
// URL change, so settings edits take effect without restarting.
type RotatingClient struct {
	store  *SettingsStore
	usage  *UsageLog
	sink   UsageSink
	logger *slog.Logger

	mu       sync.Mutex
	inner    *OpenAIClient
	innerKey string
}

// NewRotatingClient creates a rotating client backed by the settings store.
// usage may be nil to disable accounting.
func NewRotatingClient(store *SettingsStore, usage *UsageLog, logger *slog.Logger) *RotatingClient {
	if logger == nil {
		logger = slog.Default()
	}
	return &RotatingClient{store: store, usage: usage, logger: logger}
}

// SetUsageSink mirrors every usage record into sink. Pass nil to stop
// mirroring.
func (r *RotatingClient) SetUsageSink(sink UsageSink) {
	r.sink = sink
}

func (r *RotatingClient) record(rec UsageRecord) {
	if rec.TS == "" {
		rec.TS = time.Now().UTC().Format(time.RFC3339)
	}
	r.usage.Append(rec)
	if r.sink != nil {
		r.sink.Record(rec)
	}
}

// ResolveModelPool orders the candidate models for a stage: the routed model
// first followed by the other configured models, else the configured list in
// order, else the single default model. At most ten models are tried.
func ResolveModelPool(s *Settings, stage string) []string {
	models := cleanModels(s.Models)

	var pool []string
	if primary := strings.TrimSpace(s.ModelForStage(stage)); primary != "" {
		pool = append(pool, primary)
		for _, m := range models {
			if m != primary {
				pool = append(pool, m)
			}
		}
	} else if len(models) > 0 {
		pool = models
	} else {
		pool = []string{DefaultModel}
	}

	if len(pool) > maxModels {
		pool = pool[:maxModels]
	}
	return pool
}

// Chat sends a chat completion request and returns the response text.
func (r *RotatingClient) Chat(ctx context.Context, messages []types.Message, opts *ChatOptions) (string, error) {
	resp, err := r.ChatCompletion(ctx, messages, opts)
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}

// ChatJSON forces JSON mode and returns the decoded response object.
func (r *RotatingClient) ChatJSON(ctx context.Context, messages []types.Message, opts *ChatOptions) (map[string]any, error) {
	jsonOpts := opts.clone()
	jsonOpts.JSONMode = true
	if jsonOpts.Temperature == nil {
		t := defaultJSONTemperature
		jsonOpts.Temperature = &t
	}

	resp, err := r.ChatCompletion(ctx, messages, jsonOpts)
	if err != nil {
		return nil, err
	}
	return DecodeJSONResponse(resp.Content)
}

// ChatCompletion iterates the resolved model pool in order until a model
// succeeds. An explicit opts.Model pins the call to that single model,
// bypassing routing and rotation.
func (r *RotatingClient) ChatCompletion(ctx context.Context, messages []types.Message, opts *ChatOptions) (*types.Response, error) {
	settings := r.store.Current()

	stage := opts.stage()
	if stage == "" {
		stage = StageSimulation
	}

	var pool []string
	if opts != nil && opts.Model != "" {
		pool = []string{opts.Model}
	} else {
		pool = ResolveModelPool(settings, stage)
	}

	inner, err := r.ensureClient(settings)
	if err != nil {
		return nil, err
	}

	var lastErr error
	for idx, model := range pool {
		resp, err := inner.ChatCompletion(ctx, messages, opts.withModel(model))
		if err == nil {
			r.record(UsageRecord{
				Event: "success",
				Stage: stage,
				Model: model,
				Usage: resp.Usage,
			})
			return resp, nil
		}

		rotate, reason := shouldRotate(err)
		info := extractErrorInfo(err)
		r.record(UsageRecord{
			Event:  "error",
			Stage:  stage,
			Model:  model,
			Rotate: &rotate,
			Reason: reason,
			Error: &UsageError{
				Type:       info.Type,
				StatusCode: info.StatusCode,
				Code:       info.Code,
				Message:    info.Message,
			},
		})

		if rotate && idx < len(pool)-1 {
			r.logger.Warn("rotating to next model",
				"stage", stage,
				"model", model,
				"next", pool[idx+1],
				"reason", reason)
			lastErr = err
			continue
		}
		return nil, err
	}

	if lastErr != nil {
		return nil, lastErr
	}
	return nil, ErrNoModels
}

// ListModels proxies the upstream models listing for the current settings.
func (r *RotatingClient) ListModels(ctx context.Context) ([]string, error) {
	inner, err := r.ensureClient(r.store.Current())
	if err != nil {
		return nil, err
	}
	return inner.ListModels(ctx)
}

// Close releases the cached inner client.
func (r *RotatingClient) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.inner == nil {
		return nil
	}
	err := r.inner.Close()
	r.inner = nil
	r.innerKey = ""
	return err
}

// ensureClient returns the cached inner client, rebuilding it when the
// credentials or endpoint changed since the last call.
func (r *RotatingClient) ensureClient(settings *Settings) (*OpenAIClient, error) {
	key := settings.APIKey + "\x00" + settings.NormalizedBaseURL()

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.inner != nil && r.innerKey == key {
		return r.inner, nil
	}

	client, err := NewOpenAIClient(settings.APIKey, settings.BaseURL, DefaultModel)
	if err != nil {
		return nil, err
	}
	r.inner = client
	r.innerKey = key
	return client, nil
}

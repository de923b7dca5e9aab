package nlp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"

	"github.com/soundprediction/agentgraph/pkg/alert"
	"github.com/soundprediction/agentgraph/pkg/config"
	"github.com/soundprediction/agentgraph/pkg/types"
)

// CircuitBreakerClient wraps a Client with circuit breaking logic. Once the
// failure ratio trips the breaker, calls fail fast until the timeout elapses
// and the alerter is notified. The breaker is meant to wrap the rotating
// client, so only errors that survived pool rotation count as failures.
type CircuitBreakerClient struct {
	client  Client
	cb      *gobreaker.CircuitBreaker
	alerter alert.Alerter
	name    string
}

// NewCircuitBreakerClient wraps client with a named circuit breaker.
func NewCircuitBreakerClient(client Client, cfg config.CircuitBreakerConfig, alerter alert.Alerter, logger *slog.Logger) *CircuitBreakerClient {
	if logger == nil {
		logger = slog.Default()
	}
	name := "llm"

	st := gobreaker.Settings{
		Name:        name,
		MaxRequests: cfg.MaxRequests,
		Interval:    time.Duration(cfg.Interval) * time.Second,
		Timeout:     time.Duration(cfg.Timeout) * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= cfg.ReadyToTripRatio
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			if to == gobreaker.StateOpen {
				logger.Error("circuit breaker tripped",
					"name", name,
					"from", from.String(),
					"to", to.String())
				if alerter != nil {
					_ = alerter.Alert(
						fmt.Sprintf("URGENT: Circuit Breaker Tripped - %s", name),
						fmt.Sprintf("Circuit Breaker '%s' changed status from %s to %s. Too many failures detected.", name, from, to),
					)
				}
			}
		},
	}

	return &CircuitBreakerClient{
		client:  client,
		cb:      gobreaker.NewCircuitBreaker(st),
		alerter: alerter,
		name:    name,
	}
}

// Chat implements Client
func (c *CircuitBreakerClient) Chat(ctx context.Context, messages []types.Message, opts *ChatOptions) (string, error) {
	resp, err := c.cb.Execute(func() (interface{}, error) {
		return c.client.Chat(ctx, messages, opts)
	})
	if err != nil {
		return "", c.wrapRejection(err)
	}
	return resp.(string), nil
}

// ChatJSON implements Client
func (c *CircuitBreakerClient) ChatJSON(ctx context.Context, messages []types.Message, opts *ChatOptions) (map[string]any, error) {
	resp, err := c.cb.Execute(func() (interface{}, error) {
		return c.client.ChatJSON(ctx, messages, opts)
	})
	if err != nil {
		return nil, c.wrapRejection(err)
	}
	return resp.(map[string]any), nil
}

// ChatCompletion implements Client
func (c *CircuitBreakerClient) ChatCompletion(ctx context.Context, messages []types.Message, opts *ChatOptions) (*types.Response, error) {
	resp, err := c.cb.Execute(func() (interface{}, error) {
		return c.client.ChatCompletion(ctx, messages, opts)
	})
	if err != nil {
		return nil, c.wrapRejection(err)
	}
	return resp.(*types.Response), nil
}

// Close implements Client
func (c *CircuitBreakerClient) Close() error {
	return c.client.Close()
}

// wrapRejection adds context to breaker-rejected calls; inner errors pass
// through untouched.
func (c *CircuitBreakerClient) wrapRejection(err error) error {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("llm circuit breaker %q rejected the call: %w", c.name, err)
	}
	return err
}

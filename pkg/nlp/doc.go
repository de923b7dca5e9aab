// Package nlp provides the language-model client used for graph extraction,
// entity disambiguation, and contradiction detection.
//
// The package targets OpenAI-compatible Chat Completions endpoints, including
// gateway deployments where one endpoint fronts many providers and each model
// carries its own quota.
//
// # Clients
//
//   - OpenAIClient: a single-endpoint client with Chat, ChatJSON, and
//     ChatCompletion (function calling) operations.
//   - RotatingClient: wraps the endpoint with ordered model rotation. Each
//     call resolves a model pool for its stage from the mutable settings and
//     walks the pool until a model succeeds or a non-rotatable error surfaces.
//   - CircuitBreakerClient: circuit breaker pattern for fault tolerance.
//
// # Settings
//
// Runtime LLM settings (base URL, API key, model pool, per-stage routing)
// live in a single JSON file managed by SettingsStore. Saves are merged,
// written atomically, and swapped into an in-memory snapshot so in-flight
// calls keep a consistent view.
//
// # Usage accounting
//
// Every chat attempt, successful or not, is appended to a JSON-lines usage
// log together with its rotation verdict and a best-effort token snapshot.
// AggregateUsage folds those logs into per-model and per-stage totals.
//
// # Error Handling
//
// Upstream failures are normalized into APIError; ErrEmptyResponse and
// ErrMalformedJSON mark unusable response bodies. All of them support
// errors.Is() for type checking.
package nlp

// Package telemetry mirrors LLM usage accounting into Parquet files for
// offline analytics. The JSONL usage log stays the source of truth; the
// tracker is a best-effort columnar copy and must never fail a chat call.
package telemetry

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/parquet-go/parquet-go"

	"github.com/soundprediction/agentgraph/pkg/nlp"
)

// UsageRecord is one usage row flattened into columnar form.
type UsageRecord struct {
	ID               string    `parquet:"id"`
	Timestamp        time.Time `parquet:"timestamp"`
	Stage            string    `parquet:"stage"`
	Model            string    `parquet:"model"`
	Event            string    `parquet:"event"`
	PromptTokens     int       `parquet:"prompt_tokens"`
	CompletionTokens int       `parquet:"completion_tokens"`
	TotalTokens      int       `parquet:"total_tokens"`
	Rotated          bool      `parquet:"rotated"`
	Reason           string    `parquet:"reason"`
	ErrorMessage     string    `parquet:"error_message"`
}

const defaultBatchSize = 100

// Tracker buffers usage rows and writes each full batch to its own Parquet
// file. It implements nlp.UsageSink, so it can be attached to the rotating
// client with SetUsageSink.
type Tracker struct {
	outputDir string
	batchSize int
	logger    *slog.Logger

	mu     sync.Mutex
	buffer []UsageRecord
}

var _ nlp.UsageSink = (*Tracker)(nil)

// NewTracker creates the output directory and returns a tracker that
// flushes every 100 records.
func NewTracker(outputDir string, logger *slog.Logger) (*Tracker, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create telemetry directory: %w", err)
	}
	return &Tracker{
		outputDir: outputDir,
		batchSize: defaultBatchSize,
		logger:    logger,
		buffer:    make([]UsageRecord, 0, defaultBatchSize),
	}, nil
}

// Record implements nlp.UsageSink.
func (t *Tracker) Record(record nlp.UsageRecord) {
	row := UsageRecord{
		ID:        uuid.New().String(),
		Timestamp: parseTS(record.TS),
		Stage:     record.Stage,
		Model:     record.Model,
		Event:     record.Event,
		Reason:    record.Reason,
	}
	if record.Usage != nil {
		row.PromptTokens = record.Usage.PromptTokens
		row.CompletionTokens = record.Usage.CompletionTokens
		row.TotalTokens = record.Usage.TotalTokens
	}
	if record.Rotate != nil {
		row.Rotated = *record.Rotate
	}
	if record.Error != nil {
		row.ErrorMessage = record.Error.Message
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.buffer = append(t.buffer, row)
	if len(t.buffer) >= t.batchSize {
		t.flush()
	}
}

// Close writes whatever is still buffered.
func (t *Tracker) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.flush()
}

// flush writes the buffer to a fresh file and drops it either way; a write
// failure costs the batch, never the caller. Caller holds the lock.
func (t *Tracker) flush() {
	if len(t.buffer) == 0 {
		return
	}
	path := filepath.Join(t.outputDir, fmt.Sprintf("llm_usage_%d.parquet", time.Now().UnixNano()))
	if err := parquet.WriteFile(path, t.buffer); err != nil {
		t.logger.Warn("failed to write usage parquet file", "path", path, "error", err)
	}
	t.buffer = t.buffer[:0]
}

func parseTS(ts string) time.Time {
	if parsed, err := time.Parse(time.RFC3339, ts); err == nil {
		return parsed
	}
	return time.Now().UTC()
}

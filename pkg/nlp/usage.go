package nlp

import (
	"bufio"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/soundprediction/agentgraph/pkg/types"
)

// UsageLogName is the file name every usage log is written under, which
// is what DiscoverUsageLogs scans for.
const UsageLogName = "llm_usage.jsonl"

// UsageError is the classified failure attached to an error record.
type UsageError struct {
	Type       string `json:"type"`
	StatusCode int    `json:"status_code,omitempty"`
	Code       string `json:"code,omitempty"`
	Message    string `json:"message"`
}

// UsageRecord is one line of a usage log. Success records carry Usage,
// error records carry Rotate, Reason and Error.
type UsageRecord struct {
	TS     string            `json:"ts"`
	Event  string            `json:"event"`
	Stage  string            `json:"stage"`
	Model  string            `json:"model"`
	Usage  *types.TokenUsage `json:"usage,omitempty"`
	Rotate *bool             `json:"rotate,omitempty"`
	Reason string            `json:"reason,omitempty"`
	Error  *UsageError       `json:"error,omitempty"`
}

// UsageLog appends request accounting records to a JSONL file. A nil
// *UsageLog is a valid no-op sink, and append failures are logged and
// swallowed so that accounting can never fail a chat call.
type UsageLog struct {
	path   string
	logger *slog.Logger

	mu sync.Mutex
}

// NewUsageLog returns a log appending to dir/llm_usage.jsonl.
func NewUsageLog(dir string, logger *slog.Logger) *UsageLog {
	if logger == nil {
		logger = slog.Default()
	}
	return &UsageLog{path: filepath.Join(dir, UsageLogName), logger: logger}
}

// Path returns the file the log appends to.
func (l *UsageLog) Path() string {
	if l == nil {
		return ""
	}
	return l.path
}

// Append writes rec as a single JSON line, stamping TS if unset.
func (l *UsageLog) Append(rec UsageRecord) {
	if l == nil {
		return
	}
	if rec.TS == "" {
		rec.TS = time.Now().UTC().Format(time.RFC3339)
	}
	line, err := json.Marshal(rec)
	if err != nil {
		l.logger.Warn("usage record not serializable", "error", err)
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		l.logger.Warn("failed to create usage log dir", "path", l.path, "error", err)
		return
	}
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		l.logger.Warn("failed to open usage log", "path", l.path, "error", err)
		return
	}
	defer f.Close()
	if _, err := f.Write(append(line, '\n')); err != nil {
		l.logger.Warn("failed to append usage record", "path", l.path, "error", err)
	}
}

// DiscoverUsageLogs finds every llm_usage.jsonl under root, any depth,
// and returns the paths sorted.
func DiscoverUsageLogs(root string) ([]string, error) {
	paths, err := doublestar.FilepathGlob(filepath.Join(root, "**", UsageLogName))
	if err != nil {
		return nil, fmt.Errorf("failed to scan usage logs under %s: %w", root, err)
	}
	sort.Strings(paths)
	return paths, nil
}

// ReadUsageRecords parses up to maxRecords JSONL lines across the given
// logs in order. Blank and unparseable lines are skipped. maxRecords <= 0
// means no limit.
func ReadUsageRecords(paths []string, maxRecords int) []map[string]any {
	records := make([]map[string]any, 0)
	for _, path := range paths {
		if maxRecords > 0 && len(records) >= maxRecords {
			break
		}
		f, err := os.Open(path)
		if err != nil {
			continue
		}
		sc := bufio.NewScanner(f)
		sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for sc.Scan() {
			if maxRecords > 0 && len(records) >= maxRecords {
				break
			}
			line := sc.Bytes()
			if len(line) == 0 {
				continue
			}
			var rec map[string]any
			if err := json.Unmarshal(line, &rec); err != nil {
				continue
			}
			records = append(records, rec)
		}
		f.Close()
	}
	return records
}

// UsageTotals is one aggregation bucket.
type UsageTotals struct {
	Requests         int `json:"requests"`
	Errors           int `json:"errors"`
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

func (t *UsageTotals) add(prompt, completion, total int, isError bool) {
	t.Requests++
	if isError {
		t.Errors++
	}
	t.PromptTokens += prompt
	t.CompletionTokens += completion
	t.TotalTokens += total
}

// UsageSummary aggregates usage records by model and by stage.
type UsageSummary struct {
	TotalRequests int                     `json:"total_requests"`
	TotalErrors   int                     `json:"total_errors"`
	TotalsByModel map[string]*UsageTotals `json:"totals_by_model"`
	TotalsByStage map[string]*UsageTotals `json:"totals_by_stage"`
}

// AggregateUsage folds parsed records into per-model and per-stage totals.
// A record counts as an error when its event is "error" or its usage field
// is not an object. input_tokens/output_tokens are honored as aliases when
// the prompt_tokens/completion_tokens values are absent or null, and a
// missing or unparseable total_tokens falls back to prompt plus completion.
func AggregateUsage(records []map[string]any) *UsageSummary {
	summary := &UsageSummary{
		TotalsByModel: make(map[string]*UsageTotals),
		TotalsByStage: make(map[string]*UsageTotals),
	}
	for _, rec := range records {
		model := stringField(rec, "model", "unknown")
		stage := stringField(rec, "stage", "unknown")

		usage, usageOK := rec["usage"].(map[string]any)
		isError := stringField(rec, "event", "") == "error" || !usageOK

		rawPrompt := usage["prompt_tokens"]
		if rawPrompt == nil {
			rawPrompt = usage["input_tokens"]
		}
		prompt, _ := toInt(rawPrompt)

		rawCompletion := usage["completion_tokens"]
		if rawCompletion == nil {
			rawCompletion = usage["output_tokens"]
		}
		completion, _ := toInt(rawCompletion)

		total := prompt + completion
		if raw := usage["total_tokens"]; raw != nil {
			if n, valid := toInt(raw); valid {
				total = n
			}
		}

		summary.TotalRequests++
		if isError {
			summary.TotalErrors++
		}

		byModel := summary.TotalsByModel[model]
		if byModel == nil {
			byModel = &UsageTotals{}
			summary.TotalsByModel[model] = byModel
		}
		byModel.add(prompt, completion, total, isError)

		byStage := summary.TotalsByStage[stage]
		if byStage == nil {
			byStage = &UsageTotals{}
			summary.TotalsByStage[stage] = byStage
		}
		byStage.add(prompt, completion, total, isError)
	}
	return summary
}

func stringField(rec map[string]any, key, fallback string) string {
	if v, ok := rec[key].(string); ok && v != "" {
		return v
	}
	return fallback
}

func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case float64:
		return int(n), true
	case int:
		return n, true
	case int64:
		return int(n), true
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return int(i), true
		}
		if f, err := n.Float64(); err == nil {
			return int(f), true
		}
		return 0, false
	case string:
		if i, err := strconv.Atoi(n); err == nil {
			return i, true
		}
		return 0, false
	default:
		return 0, false
	}
}

package nlp

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/soundprediction/agentgraph/pkg/config"
)

// DefaultModel is the fallback when neither the settings file nor the stage
// routing names a model.
const DefaultModel = "gpt-4o-mini"

// SettingsFileEnv overrides the settings file location when set.
const SettingsFileEnv = "LLM_CONFIG_FILE"

// maxModels caps the configured model pool.
const maxModels = 10

// Settings is the mutable runtime LLM configuration. It is persisted as a
// single JSON file so it can be edited through the HTTP surface while
// simulations are running.
type Settings struct {
	BaseURL      string            `json:"base_url"`
	APIKey       string            `json:"api_key"`
	Models       []string          `json:"models"`
	ModelRouting map[string]string `json:"model_routing"`
	UpdatedAt    string            `json:"updated_at,omitempty"`
}

// NormalizedBaseURL returns the base URL with the /v1 suffix applied.
func (s *Settings) NormalizedBaseURL() string {
	return NormalizeBaseURL(s.BaseURL)
}

// ModelForStage returns the routed model for a stage, falling back to the
// fallback stage when the stage itself is not routed. Empty means unrouted.
func (s *Settings) ModelForStage(stage string) string {
	if m := s.ModelRouting[stage]; m != "" {
		return m
	}
	return s.ModelRouting[StageFallback]
}

// PublicSettings is the projection safe to return over HTTP. The API key is
// reduced to a presence flag and its last four characters.
type PublicSettings struct {
	BaseURL      string            `json:"base_url"`
	Models       []string          `json:"models"`
	ModelRouting map[string]string `json:"model_routing"`
	APIKeySet    bool              `json:"api_key_set"`
	APIKeyLast4  string            `json:"api_key_last4"`
	UpdatedAt    string            `json:"updated_at,omitempty"`
	SourcePath   string            `json:"source_path,omitempty"`
}

// Public returns the redacted projection of s.
func (s *Settings) Public(sourcePath string) PublicSettings {
	key := strings.TrimSpace(s.APIKey)
	last4 := key
	if len(key) >= 4 {
		last4 = key[len(key)-4:]
	}
	return PublicSettings{
		BaseURL:      s.NormalizedBaseURL(),
		Models:       s.Models,
		ModelRouting: s.ModelRouting,
		APIKeySet:    key != "",
		APIKeyLast4:  last4,
		UpdatedAt:    s.UpdatedAt,
		SourcePath:   sourcePath,
	}
}

// SettingsUpdate is a partial settings edit. Nil fields keep the current
// value; an empty routing value deletes that stage's entry.
type SettingsUpdate struct {
	BaseURL      *string           `json:"base_url"`
	APIKey       *string           `json:"api_key"`
	ClearAPIKey  bool              `json:"clear_api_key"`
	Models       []string          `json:"models"`
	ModelRouting map[string]string `json:"model_routing"`
}

// SettingsStore owns the on-disk settings file and an in-memory snapshot for
// readers. Saves are merged with the current file contents, written
// atomically (write-to-tmp + rename), and swapped into the snapshot so
// in-flight calls keep a consistent view.
type SettingsStore struct {
	preferred string
	legacy    string

	// static fallbacks applied when the file or a field is absent
	defaultBaseURL string
	defaultAPIKey  string
	defaultModel   string

	mu   sync.Mutex // serializes save and reload
	snap atomic.Pointer[Settings]
}

// NewSettingsStore creates a store resolving its file under the configured
// directories and seeds the snapshot from disk.
func NewSettingsStore(cfg config.NLPConfig) *SettingsStore {
	s := &SettingsStore{
		preferred:      filepath.Join(cfg.ConfigDir, "llm.json"),
		legacy:         filepath.Join(cfg.DataDir, "settings", "llm.json"),
		defaultBaseURL: strings.TrimSpace(cfg.BaseURL),
		defaultAPIKey:  strings.TrimSpace(cfg.APIKey),
		defaultModel:   strings.TrimSpace(cfg.Model),
	}
	s.Reload()
	return s
}

// Path returns the resolved settings file path: the env override wins, then
// whichever of the preferred and legacy paths exists, then the preferred
// path.
func (s *SettingsStore) Path() string {
	if explicit := os.Getenv(SettingsFileEnv); explicit != "" {
		return explicit
	}
	if _, err := os.Stat(s.preferred); err == nil {
		return s.preferred
	}
	if _, err := os.Stat(s.legacy); err == nil {
		return s.legacy
	}
	return s.preferred
}

// Current returns the settings snapshot. Callers must not mutate it.
func (s *SettingsStore) Current() *Settings {
	if snap := s.snap.Load(); snap != nil {
		return snap
	}
	return s.Reload()
}

// Reload re-reads the settings file and swaps the snapshot.
func (s *SettingsStore) Reload() *Settings {
	loaded := s.load()
	s.snap.Store(loaded)
	return loaded
}

// Public returns the redacted projection of the current settings.
func (s *SettingsStore) Public() PublicSettings {
	return s.Current().Public(s.Path())
}

// Save merges the update into the current settings, writes the file
// atomically, and returns the reloaded result.
func (s *SettingsStore) Save(update SettingsUpdate) (*Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur := s.load()
	next := Settings{
		BaseURL:      cur.BaseURL,
		APIKey:       cur.APIKey,
		Models:       cur.Models,
		ModelRouting: make(map[string]string, len(cur.ModelRouting)),
	}
	for stage, model := range cur.ModelRouting {
		next.ModelRouting[stage] = model
	}

	if update.BaseURL != nil {
		next.BaseURL = strings.TrimSpace(*update.BaseURL)
	}
	if next.BaseURL != "" {
		next.BaseURL = NormalizeBaseURL(next.BaseURL)
	}

	switch {
	case update.ClearAPIKey:
		next.APIKey = ""
	case update.APIKey != nil:
		next.APIKey = strings.TrimSpace(*update.APIKey)
	}

	if update.Models != nil {
		next.Models = cleanModels(update.Models)
	}

	for stage, model := range update.ModelRouting {
		stage, model = strings.TrimSpace(stage), strings.TrimSpace(model)
		if stage == "" {
			continue
		}
		if model == "" {
			delete(next.ModelRouting, stage)
		} else {
			next.ModelRouting[stage] = model
		}
	}

	next.UpdatedAt = time.Now().Format(time.RFC3339)

	if err := atomicWriteJSON(s.Path(), &next); err != nil {
		return nil, err
	}

	loaded := s.load()
	s.snap.Store(loaded)
	return loaded, nil
}

// rawSettings tolerates the legacy single-model key.
type rawSettings struct {
	BaseURL      string            `json:"base_url"`
	APIKey       string            `json:"api_key"`
	Model        string            `json:"model"`
	Models       []string          `json:"models"`
	ModelRouting map[string]string `json:"model_routing"`
	UpdatedAt    string            `json:"updated_at"`
}

func (s *SettingsStore) load() *Settings {
	var raw rawSettings
	if data, err := os.ReadFile(s.Path()); err == nil {
		// A corrupt file falls back to the static defaults.
		_ = json.Unmarshal(data, &raw)
	}

	st := &Settings{
		BaseURL:      strings.TrimSpace(raw.BaseURL),
		APIKey:       strings.TrimSpace(raw.APIKey),
		ModelRouting: make(map[string]string),
	}
	if st.BaseURL == "" {
		st.BaseURL = s.defaultBaseURL
	}
	if st.APIKey == "" {
		st.APIKey = s.defaultAPIKey
	}

	st.Models = cleanModels(raw.Models)
	if len(st.Models) == 0 {
		model := strings.TrimSpace(raw.Model)
		if model == "" {
			model = s.defaultModel
		}
		if model != "" {
			st.Models = []string{model}
		}
	}

	for stage, model := range raw.ModelRouting {
		stage, model = strings.TrimSpace(stage), strings.TrimSpace(model)
		if stage != "" && model != "" {
			st.ModelRouting[stage] = model
		}
	}

	if raw.UpdatedAt != "" {
		st.UpdatedAt = raw.UpdatedAt
	}
	return st
}

func cleanModels(models []string) []string {
	out := make([]string, 0, len(models))
	for _, m := range models {
		if m = strings.TrimSpace(m); m != "" {
			out = append(out, m)
		}
	}
	if len(out) > maxModels {
		out = out[:maxModels]
	}
	return out
}

func atomicWriteJSON(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create settings directory: %w", err)
	}

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode settings: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("failed to write settings: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to replace settings file: %w", err)
	}
	return nil
}

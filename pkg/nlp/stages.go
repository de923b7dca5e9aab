package nlp

import "sort"

// Stage tags for per-task model routing and usage accounting.
const (
	StageJSONStructure     = "json_structure"
	StageContentGeneration = "content_generation"
	StageReasoning         = "reasoning"
	StageProfileGeneration = "profile_generation"
	StageSimulation        = "oasis_simulation"
	StageFallback          = "fallback"
)

// StageWarning flags model-name patterns known to misbehave at a stage.
// Pattern is a regular expression matched against the model name.
type StageWarning struct {
	Pattern string `json:"pattern"`
	Message string `json:"message"`
	Level   string `json:"level"`
}

// StageDefinition documents one routing stage for configuration UIs.
type StageDefinition struct {
	Label       string         `json:"label"`
	Description string         `json:"description"`
	Recommended []string       `json:"recommended"`
	Warnings    []StageWarning `json:"warnings"`
	Tip         string         `json:"tip"`
}

// StageDefinitions describes every stage exposed for routing configuration.
// StageSimulation is a legal tag on calls but is routed through the model
// pool directly, so it carries no definition here.
var StageDefinitions = map[string]StageDefinition{
	StageJSONStructure: {
		Label:       "Structured JSON output",
		Description: "Outline planning, sub-question generation, and other tasks that demand strict JSON output",
		Recommended: []string{"gpt-5.2", "deepseek-v3.2-chat", "glm-4.7", "gemini-claude-sonnet-4-5"},
		Warnings: []StageWarning{
			{Pattern: "-thinking$", Message: "reasoning models may return empty JSON; not recommended for this stage", Level: "warning"},
			{Pattern: "-reasoner$", Message: "reasoning models may return empty JSON; not recommended for this stage", Level: "warning"},
			{Pattern: "^gemini-3-pro", Message: "known unstable JSON output; strongly discouraged", Level: "error"},
		},
		Tip: "💡 GPT-5.2 recommended: most stable JSON output with a small token footprint",
	},
	StageContentGeneration: {
		Label:       "Report content generation",
		Description: "Long-form section text that needs high writing quality",
		Recommended: []string{"gemini-claude-sonnet-4-5", "gemini-claude-opus-4-5-thinking"},
		Warnings:    []StageWarning{},
		Tip:         "💡 Claude Sonnet 4.5 recommended: balances quality and cost",
	},
	StageReasoning: {
		Label:       "Complex reasoning",
		Description: "Deep analysis and strategy planning that benefit from extended thinking",
		Recommended: []string{"gemini-claude-opus-4-5-thinking", "deepseek-v3.2-reasoner", "kimi-k2-thinking"},
		Warnings:    []StageWarning{},
		Tip:         "💡 Reasoning models excel at deep analysis but burn more tokens",
	},
	StageProfileGeneration: {
		Label:       "Agent profile generation",
		Description: "Creative persona text for simulated agents",
		Recommended: []string{"gemini-claude-sonnet-4-5", "deepseek-v3.2-chat"},
		Warnings:    []StageWarning{},
		Tip:         "💡 Needs creativity; pick a strong general-purpose model",
	},
	StageFallback: {
		Label:       "Default / other tasks",
		Description: "Anything not covered by another stage",
		Recommended: []string{},
		Warnings:    []StageWarning{},
		Tip:         "Uses the default model",
	},
}

// RoutingPreset is a named, complete stage-to-model routing table.
type RoutingPreset struct {
	Label       string            `json:"label"`
	Description string            `json:"description"`
	Routing     map[string]string `json:"routing"`
}

// RoutingPresets are the built-in routing schemes selectable by name.
var RoutingPresets = map[string]RoutingPreset{
	"economy": {
		Label:       "Economy",
		Description: "Lowest cost, good for test runs",
		Routing: map[string]string{
			StageJSONStructure:     "gpt-5.2",
			StageContentGeneration: "deepseek-v3.2-chat",
			StageReasoning:         "deepseek-v3.2-reasoner",
			StageProfileGeneration: "deepseek-v3.2-chat",
			StageFallback:          "gpt-5.2",
		},
	},
	"quality": {
		Label:       "Quality first",
		Description: "Best quality at a higher cost",
		Routing: map[string]string{
			StageJSONStructure:     "gpt-5.2",
			StageContentGeneration: "gemini-claude-opus-4-5-thinking",
			StageReasoning:         "gemini-claude-opus-4-5-thinking",
			StageProfileGeneration: "gemini-claude-sonnet-4-5",
			StageFallback:          "gpt-5.2",
		},
	},
	"balanced": {
		Label:       "Balanced",
		Description: "Balances quality and cost (the default)",
		Routing: map[string]string{
			StageJSONStructure:     "gpt-5.2",
			StageContentGeneration: "gemini-claude-sonnet-4-5",
			StageReasoning:         "gemini-claude-opus-4-5-thinking",
			StageProfileGeneration: "deepseek-v3.2-chat",
			StageFallback:          "gpt-5.2",
		},
	},
}

// PresetNames returns the available preset names in sorted order.
func PresetNames() []string {
	names := make([]string, 0, len(RoutingPresets))
	for name := range RoutingPresets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

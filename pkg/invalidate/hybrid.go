package invalidate

import "context"

// HybridDetector runs the rule table first and falls back to the LLM only
// when the rules find nothing. With UseLLM unset it is the rule detector
// with extra steps skipped.
type HybridDetector struct {
	rules *RuleBasedDetector
	llm   Detector

	// UseLLM gates the fallback pass.
	UseLLM bool
}

// NewHybridDetector combines the rule detector with an LLM fallback.
func NewHybridDetector(llm Detector, useLLM bool) *HybridDetector {
	return &HybridDetector{
		rules:  NewRuleBasedDetector(),
		llm:    llm,
		UseLLM: useLLM,
	}
}

// DetectContradictions returns the rule verdict when it is non-empty or
// when the LLM pass is disabled.
func (d *HybridDetector) DetectContradictions(ctx context.Context, newEdge *EdgeInfo, existing []*EdgeInfo) ([]string, error) {
	ruleResult, err := d.rules.DetectContradictions(ctx, newEdge, existing)
	if err != nil {
		return nil, err
	}
	if !d.UseLLM || d.llm == nil {
		return ruleResult, nil
	}
	if len(ruleResult) > 0 {
		return ruleResult, nil
	}
	return d.llm.DetectContradictions(ctx, newEdge, existing)
}

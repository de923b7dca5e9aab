package invalidate

import (
	"context"
	"strings"
)

// contradictingRelations maps a relation to the relations it is mutually
// exclusive with. Lookups are case-insensitive: relations are uppercased
// before the table is consulted.
var contradictingRelations = map[string][]string{
	// sentiment
	"LIKES":    {"DISLIKES", "HATES", "OPPOSES"},
	"DISLIKES": {"LIKES", "LOVES", "SUPPORTS"},
	"LOVES":    {"HATES", "DISLIKES"},
	"HATES":    {"LOVES", "LIKES"},

	// stance
	"SUPPORTS":  {"OPPOSES", "AGAINST", "REJECTS", "CRITICIZES"},
	"OPPOSES":   {"SUPPORTS", "FOR", "ENDORSES", "ADVOCATES"},
	"TRUSTS":    {"DISTRUSTS", "MISTRUSTS"},
	"DISTRUSTS": {"TRUSTS"},
	"ENDORSES":  {"OPPOSES", "REJECTS", "CRITICIZES"},
	"REJECTS":   {"ACCEPTS", "ENDORSES", "SUPPORTS"},
	"ACCEPTS":   {"REJECTS", "REFUSES"},
	"REFUSES":   {"ACCEPTS", "AGREES_TO"},

	// opinion
	"AGREES_WITH":    {"DISAGREES_WITH", "OPPOSES"},
	"DISAGREES_WITH": {"AGREES_WITH", "SUPPORTS"},
	"CRITICIZES":     {"PRAISES", "SUPPORTS", "ENDORSES"},
	"PRAISES":        {"CRITICIZES", "OPPOSES"},

	// social
	"FOLLOWS":   {"UNFOLLOWS", "BLOCKS"},
	"UNFOLLOWS": {"FOLLOWS"},
	"BLOCKS":    {"FOLLOWS", "UNBLOCKS"},
	"UNBLOCKS":  {"BLOCKS"},

	// membership
	"JOINED":        {"LEFT", "QUIT", "RESIGNED_FROM"},
	"LEFT":          {"JOINED", "REJOINED"},
	"QUIT":          {"JOINED", "REJOINED"},
	"RESIGNED_FROM": {"JOINED", "HIRED_BY"},
	"HIRED_BY":      {"FIRED_FROM", "RESIGNED_FROM", "LEFT"},
	"FIRED_FROM":    {"HIRED_BY", "WORKS_FOR"},

	// ownership
	"OWNS":          {"SOLD", "DIVESTED", "LOST"},
	"SOLD":          {"OWNS", "ACQUIRED", "BOUGHT"},
	"ACQUIRED":      {"SOLD", "DIVESTED"},
	"DIVESTED":      {"ACQUIRED", "OWNS", "INVESTED_IN"},
	"INVESTED_IN":   {"DIVESTED_FROM", "WITHDREW_FROM"},
	"DIVESTED_FROM": {"INVESTED_IN", "INVESTS_IN"},
	"WITHDREW_FROM": {"INVESTED_IN", "INVESTS_IN"},
	"INVESTS_IN":    {"DIVESTED_FROM", "WITHDREW_FROM"},

	// cooperation
	"COLLABORATES_WITH": {"COMPETES_WITH", "CONFLICTS_WITH"},
	"COMPETES_WITH":     {"COLLABORATES_WITH", "PARTNERS_WITH"},
	"PARTNERS_WITH":     {"COMPETES_WITH", "BREAKS_WITH"},
	"WORKS_WITH":        {"CONFLICTS_WITH", "OPPOSES"},
	"CONFLICTS_WITH":    {"COLLABORATES_WITH", "WORKS_WITH"},

	// state changes
	"STARTED":   {"STOPPED", "ENDED", "CANCELLED"},
	"STOPPED":   {"STARTED", "RESUMED", "CONTINUED"},
	"ENDED":     {"STARTED", "BEGAN"},
	"BEGAN":     {"ENDED", "STOPPED"},
	"CANCELLED": {"CONFIRMED", "APPROVED"},
	"CONFIRMED": {"CANCELLED", "DENIED"},
	"APPROVED":  {"REJECTED", "DENIED", "CANCELLED"},
	"DENIED":    {"APPROVED", "CONFIRMED"},
}

// semanticContradictionPairs detects reversals inside the same relation
// type by keyword presence in the facts: one fact carrying a positive
// lexeme while the other carries the paired negative one is a
// contradiction. Both directions are checked.
var semanticContradictionPairs = []struct {
	positive []string
	negative []string
}{
	{
		positive: []string{"支持", "赞成", "同意", "support", "supports", "favor", "approve", "endorse"},
		negative: []string{"反对", "不赞成", "不同意", "oppose", "opposes", "against", "reject", "disapprove"},
	},
	{
		positive: []string{"喜欢", "喜爱", "爱", "like", "likes", "love", "loves", "enjoy"},
		negative: []string{"讨厌", "厌恶", "恨", "hate", "hates", "dislike", "dislikes", "detest"},
	},
	{
		positive: []string{"信任", "相信", "trust", "trusts", "believe", "believes"},
		negative: []string{"不信任", "怀疑", "distrust", "distrusts", "doubt", "doubts", "mistrust"},
	},
	{
		positive: []string{"合作", "协作", "collaborate", "collaborates", "cooperate", "partner"},
		negative: []string{"竞争", "对抗", "compete", "competes", "rival", "conflict"},
	},
	{
		positive: []string{"接受", "同意", "accept", "accepts", "agree", "agrees"},
		negative: []string{"拒绝", "否决", "reject", "rejects", "refuse", "refuses", "decline"},
	},
	{
		positive: []string{"加入", "join", "joins", "joined", "enter", "entered"},
		negative: []string{"退出", "离开", "leave", "leaves", "left", "quit", "quits", "exit"},
	},
	{
		positive: []string{"买", "购买", "收购", "buy", "buys", "bought", "acquire", "acquires", "acquired"},
		negative: []string{"卖", "出售", "sell", "sells", "sold", "divest", "divests"},
	},
	{
		positive: []string{"开始", "启动", "start", "starts", "started", "begin", "begins", "began", "launch"},
		negative: []string{"结束", "停止", "stop", "stops", "stopped", "end", "ends", "ended", "terminate"},
	},
}

// RuleBasedDetector finds contradictions without an LLM: mutually
// exclusive relation pairs first, then keyword reversals inside the same
// relation type. It only considers edges between the same (source, target)
// pair, compared case-insensitively.
type RuleBasedDetector struct{}

// NewRuleBasedDetector returns the stateless rule detector.
func NewRuleBasedDetector() *RuleBasedDetector {
	return &RuleBasedDetector{}
}

// DetectContradictions never fails; the error is always nil.
func (d *RuleBasedDetector) DetectContradictions(_ context.Context, newEdge *EdgeInfo, existing []*EdgeInfo) ([]string, error) {
	if newEdge == nil || len(existing) == 0 {
		return nil, nil
	}

	newSource := strings.ToLower(newEdge.SourceName)
	newTarget := strings.ToLower(newEdge.TargetName)
	newRelation := strings.ToUpper(newEdge.RelationName)
	newFact := strings.ToLower(newEdge.Fact)

	contradicting := contradictingRelations[newRelation]

	var uuids []string
	for _, edge := range existing {
		if edge.UUID == "" {
			continue
		}
		if strings.ToLower(edge.SourceName) != newSource || strings.ToLower(edge.TargetName) != newTarget {
			continue
		}

		edgeRelation := strings.ToUpper(edge.RelationName)
		if containsRelation(contradicting, edgeRelation) {
			uuids = append(uuids, edge.UUID)
			continue
		}

		edgeFact := strings.ToLower(edge.Fact)
		if edgeRelation == newRelation && newFact != "" && edgeFact != "" &&
			semanticContradiction(edgeFact, newFact) {
			uuids = append(uuids, edge.UUID)
		}
	}
	return uuids, nil
}

func containsRelation(relations []string, relation string) bool {
	for _, r := range relations {
		if r == relation {
			return true
		}
	}
	return false
}

func semanticContradiction(oldFact, newFact string) bool {
	for _, pair := range semanticContradictionPairs {
		if containsAny(oldFact, pair.positive) && containsAny(newFact, pair.negative) {
			return true
		}
		if containsAny(oldFact, pair.negative) && containsAny(newFact, pair.positive) {
			return true
		}
	}
	return false
}

func containsAny(fact string, words []string) bool {
	for _, w := range words {
		if strings.Contains(fact, w) {
			return true
		}
	}
	return false
}

package types

// ExtractedEntity is one entity as returned by LLM extraction, before type
// canonicalization and resolution.
type ExtractedEntity struct {
	Name       string         `json:"name"`
	Type       string         `json:"type"`
	Summary    string         `json:"summary,omitempty"`
	Attributes map[string]any `json:"attributes,omitempty"`
}

// ExtractedRelation is one relation as returned by LLM extraction. Source
// and Target are entity names; the resolver maps them to node ids.
type ExtractedRelation struct {
	Source     string         `json:"source"`
	SourceType string         `json:"source_type"`
	Target     string         `json:"target"`
	TargetType string         `json:"target_type"`
	Relation   string         `json:"relation"`
	Fact       string         `json:"fact,omitempty"`
	Attributes map[string]any `json:"attributes,omitempty"`
}

// ExtractionResult bundles everything one extraction call produced.
type ExtractionResult struct {
	Entities  []ExtractedEntity  `json:"entities"`
	Relations []ExtractedRelation `json:"relations"`
}

// IsEmpty reports whether the extraction produced neither entities nor
// relations.
func (r *ExtractionResult) IsEmpty() bool {
	if r == nil {
		return true
	}
	return len(r.Entities) == 0 && len(r.Relations) == 0
}

// ResolvedEntity is the resolver's verdict for one extracted entity.
type ResolvedEntity struct {
	// UUID is the id the entity resolves to: the matched node's id, or a
	// fresh deterministic id when IsNew.
	UUID string `json:"uuid"`
	// Name is the canonical display name after merge (longer name wins).
	Name       string `json:"name"`
	EntityType string `json:"entity_type"`
	IsNew      bool   `json:"is_new"`
	// MatchedUUID is set when an existing node matched.
	MatchedUUID string `json:"matched_uuid,omitempty"`
	// MatchScore is the best similarity found in [0,1]; 1.0 for exact
	// matches, and carried on new-entity verdicts for diagnostics.
	MatchScore float64 `json:"match_score"`
	// ShouldUpdateSummary tells the caller to replace the stored summary
	// with the incoming one.
	ShouldUpdateSummary bool `json:"should_update_summary"`
}

// Package invalidate detects contradictions between a newly extracted
// relation and the edges already stored between the same pair of entities.
// Detected edges are soft-invalidated by the caller; the first
// contradiction to land keeps its timestamps.
package invalidate

import (
	"context"
	"fmt"

	"github.com/soundprediction/agentgraph/pkg/types"
)

// EdgeInfo is the contract both detectors work on: endpoint display names,
// the relation name, and the stated fact.
type EdgeInfo struct {
	UUID         string `json:"uuid,omitempty"`
	SourceName   string `json:"source_name"`
	TargetName   string `json:"target_name"`
	RelationName string `json:"relation_name"`
	Fact         string `json:"fact,omitempty"`
}

// Detector reports which existing edges a new edge contradicts.
type Detector interface {
	DetectContradictions(ctx context.Context, newEdge *EdgeInfo, existing []*EdgeInfo) ([]string, error)
}

// EdgeInfoFromRecord adapts a store edge record, which carries endpoint
// names when fetched through an endpoint-aware query.
func EdgeInfoFromRecord(rec *types.EdgeRecord) *EdgeInfo {
	return &EdgeInfo{
		UUID:         rec.UUID,
		SourceName:   rec.SourceName,
		TargetName:   rec.TargetName,
		RelationName: rec.Name,
		Fact:         rec.Fact,
	}
}

// DetectBatch runs the detector for every new edge against the same
// existing set and unions the results, preserving first-seen order.
func DetectBatch(ctx context.Context, d Detector, newEdges, existing []*EdgeInfo) ([]string, error) {
	if len(newEdges) == 0 || len(existing) == 0 {
		return nil, nil
	}
	seen := make(map[string]struct{})
	var all []string
	for _, edge := range newEdges {
		uuids, err := d.DetectContradictions(ctx, edge, existing)
		if err != nil {
			return nil, err
		}
		for _, uuid := range uuids {
			if _, dup := seen[uuid]; dup {
				continue
			}
			seen[uuid] = struct{}{}
			all = append(all, uuid)
		}
	}
	return all, nil
}

// formatEdge renders one edge for the LLM prompt. A zero idx omits the
// numbering used for existing edges.
func formatEdge(edge *EdgeInfo, idx int) string {
	source := edge.SourceName
	if source == "" {
		source = "?"
	}
	target := edge.TargetName
	if target == "" {
		target = "?"
	}
	relation := edge.RelationName
	if relation == "" {
		relation = "RELATED_TO"
	}
	if idx > 0 {
		if edge.Fact != "" {
			return fmt.Sprintf("[%d] %s --%s--> %s: %s", idx, source, relation, target, edge.Fact)
		}
		return fmt.Sprintf("[%d] %s --%s--> %s", idx, source, relation, target)
	}
	if edge.Fact != "" {
		return fmt.Sprintf("%s --%s--> %s: %s", source, relation, target, edge.Fact)
	}
	return fmt.Sprintf("%s --%s--> %s", source, relation, target)
}

package updater

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/soundprediction/agentgraph/pkg/types"
)

// maxArgValueLen caps a single argument value in episode text so one huge
// post body cannot crowd the rest of the batch out of the prompt.
const maxArgValueLen = 200

// episodeLine renders one activity as a single log line, e.g.
//
//	[round 3] alice create_post: {"content":"big news today"}
func episodeLine(activity *types.Activity) string {
	action := strings.ToLower(strings.TrimSpace(activity.ActionType))
	name := strings.TrimSpace(activity.AgentName)
	if name == "" {
		name = fmt.Sprintf("agent_%d", activity.AgentID)
	}
	args := compactArgs(activity.ActionArgs)
	if args == "" {
		return fmt.Sprintf("[round %d] %s %s", activity.Round, name, action)
	}
	return fmt.Sprintf("[round %d] %s %s: %s", activity.Round, name, action, args)
}

// episodeText joins a batch of activities into the episode body handed to
// the extractor, one line per activity in arrival order.
func episodeText(batch []*queued) string {
	lines := make([]string, 0, len(batch))
	for _, item := range batch {
		lines = append(lines, episodeLine(item.activity))
	}
	return strings.Join(lines, "\n")
}

func compactArgs(args map[string]any) string {
	if len(args) == 0 {
		return ""
	}
	trimmed := make(map[string]any, len(args))
	for key, value := range args {
		if s, ok := value.(string); ok && len([]rune(s)) > maxArgValueLen {
			trimmed[key] = string([]rune(s)[:maxArgValueLen]) + "..."
			continue
		}
		trimmed[key] = value
	}
	raw, err := json.Marshal(trimmed)
	if err != nil {
		return fmt.Sprintf("%v", args)
	}
	return string(raw)
}

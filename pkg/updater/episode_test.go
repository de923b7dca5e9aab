package updater

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/soundprediction/agentgraph/pkg/types"
)

func TestEpisodeLine(t *testing.T) {
	tests := []struct {
		name     string
		activity *types.Activity
		want     string
	}{
		{
			name: "action with args",
			activity: &types.Activity{
				AgentName:  "alice",
				ActionType: "CREATE_POST",
				ActionArgs: map[string]any{"content": "hello world"},
				Round:      3,
			},
			want: `[round 3] alice create_post: {"content":"hello world"}`,
		},
		{
			name: "action without args",
			activity: &types.Activity{
				AgentName:  "bob",
				ActionType: "refresh",
				Round:      1,
			},
			want: "[round 1] bob refresh",
		},
		{
			name: "args keys are sorted",
			activity: &types.Activity{
				AgentName:  "carol",
				ActionType: "create_comment",
				ActionArgs: map[string]any{"post_id": 7, "content": "nice"},
				Round:      2,
			},
			want: `[round 2] carol create_comment: {"content":"nice","post_id":7}`,
		},
		{
			name: "missing agent name falls back to id",
			activity: &types.Activity{
				AgentID:    42,
				ActionType: "like_post",
				Round:      5,
			},
			want: "[round 5] agent_42 like_post",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, episodeLine(tt.activity))
		})
	}
}

func TestEpisodeLineTruncatesLongValues(t *testing.T) {
	long := strings.Repeat("x", 500)
	line := episodeLine(&types.Activity{
		AgentName:  "alice",
		ActionType: "create_post",
		ActionArgs: map[string]any{"content": long},
		Round:      1,
	})

	assert.Contains(t, line, strings.Repeat("x", maxArgValueLen)+"...")
	assert.NotContains(t, line, strings.Repeat("x", maxArgValueLen+1))
}

func TestEpisodeTextJoinsInOrder(t *testing.T) {
	batch := []*queued{
		{activity: &types.Activity{AgentName: "alice", ActionType: "create_post", Round: 1}},
		{activity: &types.Activity{AgentName: "bob", ActionType: "repost", Round: 1}},
	}
	assert.Equal(t, "[round 1] alice create_post\n[round 1] bob repost", episodeText(batch))
}

package journal_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soundprediction/agentgraph/pkg/journal"
	"github.com/soundprediction/agentgraph/pkg/types"
)

func openJournal(t *testing.T) *journal.Journal {
	t.Helper()
	j, err := journal.Open(t.TempDir(), nil)
	require.NoError(t, err)
	t.Cleanup(func() { j.Close() })
	return j
}

func activity(action string, round int) *types.Activity {
	return &types.Activity{
		Platform:   "twitter",
		AgentID:    7,
		AgentName:  "alice",
		ActionType: action,
		ActionArgs: map[string]any{"content": "hello"},
		Round:      round,
	}
}

func TestAppendAndPending(t *testing.T) {
	j := openJournal(t)

	k1, err := j.Append("sim-1", activity("create_post", 1))
	require.NoError(t, err)
	k2, err := j.Append("sim-1", activity("like_post", 2))
	require.NoError(t, err)
	assert.Less(t, k1, k2)

	entries, err := j.Pending("sim-1")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, k1, entries[0].Key)
	assert.Equal(t, "create_post", entries[0].Activity.ActionType)
	assert.Equal(t, "like_post", entries[1].Activity.ActionType)
	assert.Equal(t, 7, entries[1].Activity.AgentID)
	assert.Equal(t, "hello", entries[1].Activity.ActionArgs["content"])
}

func TestPendingIsScopedToSimulation(t *testing.T) {
	j := openJournal(t)

	_, err := j.Append("sim-a", activity("create_post", 1))
	require.NoError(t, err)
	_, err = j.Append("sim-b", activity("create_comment", 1))
	require.NoError(t, err)

	entries, err := j.Pending("sim-a")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "create_post", entries[0].Activity.ActionType)

	entries, err = j.Pending("sim-c")
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestMarkRemovesEntries(t *testing.T) {
	j := openJournal(t)

	k1, err := j.Append("sim-1", activity("create_post", 1))
	require.NoError(t, err)
	k2, err := j.Append("sim-1", activity("repost", 2))
	require.NoError(t, err)
	_, err = j.Append("sim-1", activity("follow", 3))
	require.NoError(t, err)

	require.NoError(t, j.Mark([]string{k1, k2}))

	entries, err := j.Pending("sim-1")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "follow", entries[0].Activity.ActionType)

	require.NoError(t, j.Mark(nil))
}

func TestPendingSurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	j, err := journal.Open(dir, nil)
	require.NoError(t, err)
	_, err = j.Append("sim-1", activity("create_post", 1))
	require.NoError(t, err)
	require.NoError(t, j.Close())

	j, err = journal.Open(dir, nil)
	require.NoError(t, err)
	defer j.Close()

	entries, err := j.Pending("sim-1")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "create_post", entries[0].Activity.ActionType)

	// Sequence keeps advancing after reopen so keys stay ordered.
	k, err := j.Append("sim-1", activity("like_post", 2))
	require.NoError(t, err)
	assert.Greater(t, k, entries[0].Key)
}

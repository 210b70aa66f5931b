package pending_test

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/williamcory/relay/internal/merge"
	"github.com/williamcory/relay/internal/pending"
	"github.com/williamcory/relay/sdk/agent"
)

func TestKey(t *testing.T) {
	assert.Equal(t, "s:m:p", pending.Key("s", "m", "p"))
}

func TestEnqueueTake(t *testing.T) {
	b := pending.New(0)
	key := pending.Key("s1", "m1", "p1")

	b.Enqueue(key, pending.Delta{Field: "text", Text: "hello"})
	b.Enqueue(key, pending.Delta{Field: "text", Text: " world"})
	require.Equal(t, 2, b.Len(key))

	got := b.Take(key)
	assert.Equal(t, []pending.Delta{
		{Field: "text", Text: "hello"},
		{Field: "text", Text: " world"},
	}, got)
	assert.Zero(t, b.Len(key))
}

func TestEnqueueDropsEmptyDeltas(t *testing.T) {
	b := pending.New(0)
	b.Enqueue("k", pending.Delta{Field: "", Text: "x"})
	b.Enqueue("k", pending.Delta{Field: "text", Text: ""})
	assert.Zero(t, b.Len("k"))
}

func TestReplayBeforeSnapshot(t *testing.T) {
	// A delta raced ahead of the snapshot that creates its part. Once the
	// snapshot arrives, replay must produce the same part as if the delta
	// had arrived after it.
	b := pending.New(0)
	key := pending.Key("s1", "m1", "p1")
	b.Enqueue(key, pending.Delta{Field: "text", Text: " world"})

	part := &agent.Part{
		ID:        "p1",
		SessionID: "s1",
		MessageID: "m1",
		Type:      agent.PartTypeText,
		Text:      "hello",
	}

	merged, remaining := pending.Replay(part, b.Take(key))
	require.Empty(t, remaining)
	assert.Equal(t, "hello world", merged.Text)
	assert.Equal(t, "hello", part.Text)
	assert.Zero(t, b.Len(key))
}

func TestReplayRetainsUnmergeable(t *testing.T) {
	part := &agent.Part{
		ID:   "p1",
		Type: agent.PartTypeTool,
		Tool: "bash",
		State: &agent.ToolState{
			Status: agent.ToolStatusRunning,
			Time:   &agent.PartTime{Start: 1},
		},
	}

	queued := []pending.Delta{
		{Field: "state.output", Text: "a"},
		{Field: "state.time.start", Text: "conflict"}, // numeric leaf
		{Field: "state.output", Text: "b"},
	}

	merged, remaining := pending.Replay(part, queued)
	assert.Equal(t, "ab", merged.State.Output)
	assert.Equal(t, []pending.Delta{{Field: "state.time.start", Text: "conflict"}}, remaining)
}

func TestReplayConfluence(t *testing.T) {
	deltas := []pending.Delta{
		{Field: "text", Text: "a"},
		{Field: "text", Text: "b"},
		{Field: "text", Text: "c"},
	}
	part := &agent.Part{ID: "p1", Type: agent.PartTypeText, Text: "0"}

	replayed, remaining := pending.Replay(part, deltas)
	require.Empty(t, remaining)

	direct := part
	var err error
	for _, d := range deltas {
		direct, err = merge.Apply(direct, d.Field, d.Text)
		require.NoError(t, err)
	}

	assert.Equal(t, direct, replayed)
}

func TestRequeuePreservesOrder(t *testing.T) {
	b := pending.New(0)
	key := "k"

	b.Enqueue(key, pending.Delta{Field: "text", Text: "late"})
	b.Requeue(key, []pending.Delta{
		{Field: "state.output", Text: "one"},
		{Field: "state.output", Text: "two"},
	})

	got := b.Take(key)
	assert.Equal(t, []pending.Delta{
		{Field: "state.output", Text: "one"},
		{Field: "state.output", Text: "two"},
		{Field: "text", Text: "late"},
	}, got)
}

func TestDropSession(t *testing.T) {
	b := pending.New(0)
	b.Enqueue(pending.Key("s1", "m1", "p1"), pending.Delta{Field: "text", Text: "a"})
	b.Enqueue(pending.Key("s1", "m2", "p2"), pending.Delta{Field: "text", Text: "b"})
	b.Enqueue(pending.Key("s2", "m1", "p1"), pending.Delta{Field: "text", Text: "c"})

	b.DropSession("s1")

	assert.Zero(t, b.Len(pending.Key("s1", "m1", "p1")))
	assert.Zero(t, b.Len(pending.Key("s1", "m2", "p2")))
	assert.Equal(t, 1, b.Len(pending.Key("s2", "m1", "p1")))
}

func TestDropMessage(t *testing.T) {
	b := pending.New(0)
	b.Enqueue(pending.Key("s1", "m1", "p1"), pending.Delta{Field: "text", Text: "a"})
	b.Enqueue(pending.Key("s1", "m2", "p1"), pending.Delta{Field: "text", Text: "b"})

	b.DropMessage("s1", "m1")

	assert.Zero(t, b.Len(pending.Key("s1", "m1", "p1")))
	assert.Equal(t, 1, b.Len(pending.Key("s1", "m2", "p1")))
}

func TestCompact(t *testing.T) {
	t.Run("under bound unchanged", func(t *testing.T) {
		list := []pending.Delta{
			{Field: "text", Text: "a"},
			{Field: "text", Text: "b"},
		}
		assert.Equal(t, list, pending.Compact(list, 5))
	})

	t.Run("same-field overflow collapses to one entry", func(t *testing.T) {
		var list []pending.Delta
		var want strings.Builder
		for i := 0; i < 250; i++ {
			ch := fmt.Sprintf("%d", i%10)
			list = append(list, pending.Delta{Field: "text", Text: ch})
			want.WriteString(ch)
		}

		got := pending.Compact(list, 200)
		require.Len(t, got, 1)
		assert.Equal(t, "text", got[0].Field)
		assert.Equal(t, want.String(), got[0].Text)
	})

	t.Run("coalescing preserves per-field text", func(t *testing.T) {
		list := []pending.Delta{
			{Field: "text", Text: "a"},
			{Field: "text", Text: "b"},
			{Field: "state.output", Text: "1"},
			{Field: "state.output", Text: "2"},
			{Field: "text", Text: "c"},
		}

		got := pending.Compact(list, 3)
		assert.Equal(t, []pending.Delta{
			{Field: "text", Text: "ab"},
			{Field: "state.output", Text: "12"},
			{Field: "text", Text: "c"},
		}, got)
	})

	t.Run("heterogeneous overflow trims oldest", func(t *testing.T) {
		var list []pending.Delta
		for i := 0; i < 6; i++ {
			list = append(list, pending.Delta{Field: fmt.Sprintf("f%d", i), Text: "x"})
		}

		got := pending.Compact(list, 4)
		require.Len(t, got, 4)
		assert.Equal(t, "f2", got[0].Field)
		assert.Equal(t, "f5", got[3].Field)
	})
}

func TestEnqueueCompactsAtBound(t *testing.T) {
	b := pending.New(3)
	key := "k"
	for i := 0; i < 10; i++ {
		b.Enqueue(key, pending.Delta{Field: "text", Text: fmt.Sprintf("%d", i)})
	}

	got := b.Take(key)
	require.NotEmpty(t, got)
	var joined strings.Builder
	for _, d := range got {
		joined.WriteString(d.Text)
	}
	assert.Equal(t, "0123456789", joined.String())
}

package merge_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/williamcory/relay/internal/merge"
	"github.com/williamcory/relay/sdk/agent"
)

func textPart(id, text string) *agent.Part {
	return &agent.Part{
		ID:        id,
		SessionID: "ses_1",
		MessageID: "msg_1",
		Type:      agent.PartTypeText,
		Text:      text,
	}
}

func TestSnapshot(t *testing.T) {
	t.Run("no previous part accepts next", func(t *testing.T) {
		next := textPart("p1", "hello")
		assert.Same(t, next, merge.Snapshot(nil, next))
	})

	t.Run("stale prefix snapshot keeps previous", func(t *testing.T) {
		prev := textPart("p1", "hello world")
		next := textPart("p1", "hello")
		assert.Same(t, prev, merge.Snapshot(prev, next))
	})

	t.Run("equal text accepts next", func(t *testing.T) {
		prev := textPart("p1", "hello")
		next := textPart("p1", "hello")
		assert.Same(t, next, merge.Snapshot(prev, next))
	})

	t.Run("longer next accepts next", func(t *testing.T) {
		prev := textPart("p1", "hello")
		next := textPart("p1", "hello world")
		assert.Same(t, next, merge.Snapshot(prev, next))
	})

	t.Run("shorter non-prefix next is a genuine edit", func(t *testing.T) {
		// A retry with materially different wording must win even though
		// it is shorter.
		prev := textPart("p1", "hello world")
		next := textPart("p1", "goodbye")
		assert.Same(t, next, merge.Snapshot(prev, next))
	})

	t.Run("different id accepts next", func(t *testing.T) {
		prev := textPart("p1", "hello world")
		next := textPart("p2", "hello")
		assert.Same(t, next, merge.Snapshot(prev, next))
	})

	t.Run("different type accepts next", func(t *testing.T) {
		prev := textPart("p1", "hello world")
		next := textPart("p1", "hello")
		next.Type = agent.PartTypeReasoning
		assert.Same(t, next, merge.Snapshot(prev, next))
	})

	t.Run("tool parts are not text-merged", func(t *testing.T) {
		prev := &agent.Part{ID: "p1", Type: agent.PartTypeTool, Text: "hello world"}
		next := &agent.Part{ID: "p1", Type: agent.PartTypeTool, Text: "hello"}
		assert.Same(t, next, merge.Snapshot(prev, next))
	})

	t.Run("reasoning parts get the same protection", func(t *testing.T) {
		prev := textPart("p1", "thinking hard")
		prev.Type = agent.PartTypeReasoning
		next := textPart("p1", "thinking")
		next.Type = agent.PartTypeReasoning
		assert.Same(t, prev, merge.Snapshot(prev, next))
	})
}

func TestField(t *testing.T) {
	t.Run("empty field fails", func(t *testing.T) {
		_, err := merge.Field([]byte(`{}`), "", "x")
		assert.ErrorIs(t, err, merge.ErrEmptyField)
	})

	t.Run("empty delta fails", func(t *testing.T) {
		_, err := merge.Field([]byte(`{}`), "text", "")
		assert.ErrorIs(t, err, merge.ErrEmptyDelta)
	})

	t.Run("absent leaf is set", func(t *testing.T) {
		out, err := merge.Field([]byte(`{}`), "text", "hello")
		require.NoError(t, err)
		assert.JSONEq(t, `{"text":"hello"}`, string(out))
	})

	t.Run("string leaf is appended", func(t *testing.T) {
		out, err := merge.Field([]byte(`{"text":"hello"}`), "text", " world")
		require.NoError(t, err)
		assert.JSONEq(t, `{"text":"hello world"}`, string(out))
	})

	t.Run("missing intermediates are created", func(t *testing.T) {
		out, err := merge.Field([]byte(`{}`), "state.metadata.summary", "ok")
		require.NoError(t, err)
		assert.JSONEq(t, `{"state":{"metadata":{"summary":"ok"}}}`, string(out))
	})

	t.Run("non-object intermediate fails", func(t *testing.T) {
		_, err := merge.Field([]byte(`{"state":5}`), "state.output", "x")
		assert.ErrorIs(t, err, merge.ErrPathConflict)
	})

	t.Run("non-string leaf fails", func(t *testing.T) {
		_, err := merge.Field([]byte(`{"count":3}`), "count", "x")
		assert.ErrorIs(t, err, merge.ErrLeafType)
	})

	t.Run("input document is not modified", func(t *testing.T) {
		doc := []byte(`{"text":"hello"}`)
		_, err := merge.Field(doc, "text", " world")
		require.NoError(t, err)
		assert.Equal(t, `{"text":"hello"}`, string(doc))
	})
}

func TestApply(t *testing.T) {
	t.Run("appends to text", func(t *testing.T) {
		p := textPart("p1", "hello")
		out, err := merge.Apply(p, "text", " world")
		require.NoError(t, err)
		assert.Equal(t, "hello world", out.Text)
		assert.Equal(t, "p1", out.ID)
	})

	t.Run("does not mutate the input part", func(t *testing.T) {
		p := textPart("p1", "hello")
		_, err := merge.Apply(p, "text", " world")
		require.NoError(t, err)
		assert.Equal(t, "hello", p.Text)
	})

	t.Run("nil part fails", func(t *testing.T) {
		_, err := merge.Apply(nil, "text", "x")
		assert.ErrorIs(t, err, merge.ErrNoPart)
	})

	t.Run("empty field is a no-op failure even for text", func(t *testing.T) {
		_, err := merge.Apply(textPart("p1", "hello"), "", "x")
		assert.ErrorIs(t, err, merge.ErrEmptyField)
	})

	t.Run("normalizes reasoning field aliases", func(t *testing.T) {
		p := textPart("p1", "because")
		p.Type = agent.PartTypeReasoning

		out, err := merge.Apply(p, "reasoning_content", " of this")
		require.NoError(t, err)
		assert.Equal(t, "because of this", out.Text)

		out, err = merge.Apply(out, "reasoning_details", " and that")
		require.NoError(t, err)
		assert.Equal(t, "because of this and that", out.Text)
	})

	t.Run("aliases are not normalized for text parts", func(t *testing.T) {
		// A text part has no reasoning alias; the path merges as an unknown
		// field without touching Text.
		p := textPart("p1", "hello")
		out, err := merge.Apply(p, "reasoning_content", "!")
		require.NoError(t, err)
		assert.Equal(t, "hello", out.Text)
	})

	t.Run("falls back to text append on leaf conflict", func(t *testing.T) {
		p := textPart("p1", "hello")
		p.Time = &agent.PartTime{Start: 12}

		out, err := merge.Apply(p, "time.start", " world")
		require.NoError(t, err)
		assert.Equal(t, "hello world", out.Text)
	})

	t.Run("leaf conflict is terminal for tool parts", func(t *testing.T) {
		p := &agent.Part{
			ID:   "p1",
			Type: agent.PartTypeTool,
			Tool: "bash",
			State: &agent.ToolState{
				Status: agent.ToolStatusRunning,
				Time:   &agent.PartTime{Start: 12},
			},
		}
		_, err := merge.Apply(p, "state.time.start", "x")
		assert.ErrorIs(t, err, merge.ErrLeafType)
	})

	t.Run("merges tool output", func(t *testing.T) {
		p := &agent.Part{
			ID:    "p1",
			Type:  agent.PartTypeTool,
			Tool:  "bash",
			State: &agent.ToolState{Status: agent.ToolStatusRunning, Output: "line 1\n"},
		}
		out, err := merge.Apply(p, "state.output", "line 2\n")
		require.NoError(t, err)
		assert.Equal(t, "line 1\nline 2\n", out.State.Output)
		assert.Equal(t, "line 1\n", p.State.Output)
	})

	t.Run("merges dynamic tool metadata", func(t *testing.T) {
		p := &agent.Part{
			ID:    "p1",
			Type:  agent.PartTypeTool,
			Tool:  "websearch",
			State: &agent.ToolState{Status: agent.ToolStatusRunning},
		}
		out, err := merge.Apply(p, "state.metadata.preview", "partial")
		require.NoError(t, err)
		assert.Equal(t, "partial", out.State.Metadata["preview"])
	})

	t.Run("append is associative", func(t *testing.T) {
		p := textPart("p1", "")
		pieces := []string{"a", "bc", "def", "ghij"}

		stepwise := p
		var err error
		for _, piece := range pieces {
			stepwise, err = merge.Apply(stepwise, "text", piece)
			require.NoError(t, err)
		}

		once, err := merge.Apply(p, "text", "abcdefghij")
		require.NoError(t, err)
		assert.Equal(t, once.Text, stepwise.Text)
	})
}

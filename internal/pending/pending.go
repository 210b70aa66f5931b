// Package pending buffers part deltas that arrived before their target part
// was known locally, bounding memory via compaction.
package pending

import (
	"strings"
	"sync"

	"github.com/williamcory/relay/internal/merge"
	"github.com/williamcory/relay/sdk/agent"
)

// DefaultMaxEntries bounds the per-key queue length.
const DefaultMaxEntries = 200

// Delta is one queued field fragment.
type Delta struct {
	Field string
	Text  string
}

// Key builds the buffer key for a part.
func Key(sessionID, messageID, partID string) string {
	return sessionID + ":" + messageID + ":" + partID
}

// Buffer is a per-part queue of deltas awaiting a target part. Entries are
// kept in arrival order; they are never reordered, only coalesced or trimmed
// from the oldest end when a queue exceeds its bound.
type Buffer struct {
	mu      sync.Mutex
	max     int
	entries map[string][]Delta
}

// New creates a buffer. maxEntries <= 0 uses DefaultMaxEntries.
func New(maxEntries int) *Buffer {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	return &Buffer{
		max:     maxEntries,
		entries: make(map[string][]Delta),
	}
}

// Enqueue appends a delta to the key's queue, compacting if the queue
// exceeds the bound. Empty deltas are dropped; they are defined as no-ops.
func (b *Buffer) Enqueue(key string, d Delta) {
	if d.Field == "" || d.Text == "" {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	list := append(b.entries[key], d)
	if len(list) > b.max {
		list = Compact(list, b.max)
	}
	b.entries[key] = list
}

// Take removes and returns the queue for key, or nil.
func (b *Buffer) Take(key string) []Delta {
	b.mu.Lock()
	defer b.mu.Unlock()

	list := b.entries[key]
	delete(b.entries, key)
	return list
}

// Requeue restores deltas that failed to replay, preserving their order.
// Existing entries for the key (deltas that raced in during replay) are kept
// after the restored ones.
func (b *Buffer) Requeue(key string, deltas []Delta) {
	if len(deltas) == 0 {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	list := append(deltas, b.entries[key]...)
	if len(list) > b.max {
		list = Compact(list, b.max)
	}
	b.entries[key] = list
}

// Len returns the queue length for key.
func (b *Buffer) Len(key string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.entries[key])
}

// Drop discards the queue for key.
func (b *Buffer) Drop(key string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.entries, key)
}

// DropMessage discards all queues for one message.
func (b *Buffer) DropMessage(sessionID, messageID string) {
	b.dropPrefix(sessionID + ":" + messageID + ":")
}

// DropSession discards all queues for one session. Called when a session
// goes idle: no further deltas for the turn are expected.
func (b *Buffer) DropSession(sessionID string) {
	b.dropPrefix(sessionID + ":")
}

func (b *Buffer) dropPrefix(prefix string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for key := range b.entries {
		if strings.HasPrefix(key, prefix) {
			delete(b.entries, key)
		}
	}
}

// Replay applies queued deltas to a freshly known part in arrival order.
// Deltas that still fail to merge are returned, in order, for requeueing.
// The input part is not mutated.
func Replay(p *agent.Part, queued []Delta) (*agent.Part, []Delta) {
	out := p
	var remaining []Delta

	for _, d := range queued {
		merged, err := merge.Apply(out, d.Field, d.Text)
		if err != nil {
			remaining = append(remaining, d)
			continue
		}
		out = merged
	}

	return out, remaining
}

// Compact bounds a queue to maxEntries. Consecutive same-field entries are
// collapsed into one concatenated entry first, which loses nothing; only if
// the queue is still over the bound are entries dropped from the oldest end.
func Compact(list []Delta, maxEntries int) []Delta {
	if len(list) <= maxEntries {
		return list
	}

	out := make([]Delta, 0, len(list))
	for _, d := range list {
		if n := len(out); n > 0 && out[n-1].Field == d.Field {
			out[n-1].Text += d.Text
			continue
		}
		out = append(out, d)
	}

	if len(out) > maxEntries {
		out = out[len(out)-maxEntries:]
	}
	return out
}

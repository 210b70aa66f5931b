// Package chat implements a messaging-platform destination channel: a
// coordinator that accumulates streamed text into one outbound reply per
// turn, and hooks that apply notification policy (reasoning visibility, tool
// activity notices).
package chat

import (
	"strings"
	"sync"

	"github.com/williamcory/relay/internal/engine"
	"github.com/williamcory/relay/sdk/agent"
)

// Sender delivers text to a peer on the channel. Injected so the engine
// stays ignorant of the platform transport.
type Sender func(channel, peer, text, kind string)

type reply struct {
	messageID string
	texts     map[string]string // partID -> accumulated text
	order     []string          // partIDs in arrival order
	streamed  bool
	flushed   bool
}

// Coordinator accumulates the assistant's streamed text per session and
// flushes it as a single message when the turn finalizes.
type Coordinator struct {
	channel string
	send    Sender

	mu      sync.Mutex
	replies map[string]*reply // by sessionID
}

// NewCoordinator creates a coordinator for one channel name.
func NewCoordinator(channel string, send Sender) *Coordinator {
	if send == nil {
		send = func(string, string, string, string) {}
	}
	return &Coordinator{
		channel: channel,
		send:    send,
		replies: make(map[string]*reply),
	}
}

func (c *Coordinator) replyFor(sessionID string) *reply {
	r, ok := c.replies[sessionID]
	if !ok {
		r = &reply{texts: make(map[string]string)}
		c.replies[sessionID] = r
	}
	return r
}

// OnMessageUpdated starts a fresh reply when a new assistant message begins.
func (c *Coordinator) OnMessageUpdated(_ *engine.RunState, msg *agent.Message) {
	if msg == nil || !msg.IsAssistant() {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	r := c.replyFor(msg.SessionID)
	if r.messageID != msg.ID {
		c.replies[msg.SessionID] = &reply{
			messageID: msg.ID,
			texts:     make(map[string]string),
		}
	}
}

// OnMessagePartUpdated folds a reconciled snapshot into the reply.
func (c *Coordinator) OnMessagePartUpdated(_ *engine.RunState, part *agent.Part) {
	c.accumulate(part)
}

// OnMessagePartDelta folds a delta-merged part into the reply.
func (c *Coordinator) OnMessagePartDelta(_ *engine.RunState, part *agent.Part) {
	c.accumulate(part)
}

func (c *Coordinator) accumulate(part *agent.Part) {
	if part == nil || !part.IsText() {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	r := c.replyFor(part.SessionID)
	if r.messageID == "" {
		r.messageID = part.MessageID
	}
	if r.messageID != part.MessageID {
		return
	}

	if _, seen := r.texts[part.ID]; !seen {
		r.order = append(r.order, part.ID)
	}
	r.texts[part.ID] = part.Text
	r.streamed = true
}

// OnSessionIdle is a no-op; the engine calls FinalizeReply right after.
func (c *Coordinator) OnSessionIdle(*engine.RunState) {}

// FinalizeReply sends the accumulated reply text, once, and reports whether
// anything went out.
func (c *Coordinator) FinalizeReply(rs *engine.RunState) bool {
	if rs == nil {
		return false
	}

	c.mu.Lock()
	r, ok := c.replies[rs.SessionID]
	if !ok || r.flushed {
		c.mu.Unlock()
		return false
	}

	var b strings.Builder
	for _, id := range r.order {
		b.WriteString(r.texts[id])
	}
	text := b.String()
	r.flushed = true
	c.mu.Unlock()

	if text == "" {
		return false
	}

	c.send(c.channel, rs.Peer, text, engine.SendKindReply)
	return true
}

// HasStreamedMessage reports whether any text streamed this turn.
func (c *Coordinator) HasStreamedMessage(sessionID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	r, ok := c.replies[sessionID]
	return ok && r.streamed
}

// ClearSession discards the session's reply state.
func (c *Coordinator) ClearSession(sessionID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.replies, sessionID)
}

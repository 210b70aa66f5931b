package chat

import (
	"sync"

	"github.com/williamcory/relay/internal/engine"
	"github.com/williamcory/relay/sdk/agent"
)

// ReasoningMode controls how much of the agent's reasoning a channel sees.
type ReasoningMode string

const (
	// ReasoningOff never surfaces reasoning.
	ReasoningOff ReasoningMode = "off"
	// ReasoningSummary emits a "thinking" notice when reasoning starts and a
	// "done" notice when it completes; the content itself is never forwarded.
	ReasoningSummary ReasoningMode = "summary"
	// ReasoningRawDebug forwards the finalized reasoning text verbatim,
	// exactly once, when the part completes. Never for partial reasoning.
	ReasoningRawDebug ReasoningMode = "raw_debug"
)

type hookState struct {
	thinkingNoticed bool
	doneNoticed     bool
	rawSent         map[string]bool // partID
}

// Hooks applies the channel's notification policy: reasoning visibility and
// tool activity notices. Runs alongside the Coordinator, not instead of it.
type Hooks struct {
	channel string
	mode    ReasoningMode
	send    Sender

	mu       sync.Mutex
	sessions map[string]*hookState
}

// NewHooks creates hooks for one channel name.
func NewHooks(channel string, mode ReasoningMode, send Sender) *Hooks {
	if send == nil {
		send = func(string, string, string, string) {}
	}
	return &Hooks{
		channel:  channel,
		mode:     mode,
		send:     send,
		sessions: make(map[string]*hookState),
	}
}

func (h *Hooks) stateFor(sessionID string) *hookState {
	st, ok := h.sessions[sessionID]
	if !ok {
		st = &hookState{rawSent: make(map[string]bool)}
		h.sessions[sessionID] = st
	}
	return st
}

// OnMessagePartUpdated applies notification policy to one reconciled part.
// The engine has already deduplicated tool-state signatures.
func (h *Hooks) OnMessagePartUpdated(rs *engine.RunState, part *agent.Part) {
	if rs == nil || part == nil {
		return
	}

	switch {
	case part.IsReasoning():
		h.onReasoning(rs, part)
	case part.IsTool():
		h.onTool(rs, part)
	}
}

func (h *Hooks) onReasoning(rs *engine.RunState, part *agent.Part) {
	if h.mode == ReasoningOff {
		return
	}

	h.mu.Lock()
	st := h.stateFor(rs.SessionID)

	switch h.mode {
	case ReasoningSummary:
		var notices []string
		if !st.thinkingNoticed {
			st.thinkingNoticed = true
			notices = append(notices, "Thinking…")
		}
		if part.Completed() && !st.doneNoticed {
			st.doneNoticed = true
			notices = append(notices, "Done thinking.")
		}
		h.mu.Unlock()

		for _, notice := range notices {
			h.send(h.channel, rs.Peer, notice, engine.SendKindSystem)
		}

	case ReasoningRawDebug:
		if !part.Completed() || st.rawSent[part.ID] {
			h.mu.Unlock()
			return
		}
		st.rawSent[part.ID] = true
		text := part.Text
		h.mu.Unlock()

		if text != "" {
			h.send(h.channel, rs.Peer, text, engine.SendKindSystem)
		}

	default:
		h.mu.Unlock()
	}
}

func (h *Hooks) onTool(rs *engine.RunState, part *agent.Part) {
	if part.State == nil {
		return
	}

	var text string
	switch part.State.Status {
	case agent.ToolStatusRunning:
		title := part.State.Title
		if title == "" {
			title = part.Tool
		}
		text = "Running " + title
	case agent.ToolStatusError:
		text = "Tool " + part.Tool + " failed"
	default:
		return
	}

	h.send(h.channel, rs.Peer, text, engine.SendKindTool)
}

// OnSessionIdle resets per-turn notification state.
func (h *Hooks) OnSessionIdle(rs *engine.RunState) {
	if rs == nil {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.sessions, rs.SessionID)
}

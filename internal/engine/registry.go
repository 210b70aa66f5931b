package engine

import (
	"sync"

	"github.com/williamcory/relay/sdk/agent"
)

// Coordinator is the primary per-channel accumulation strategy. One
// coordinator instance serves every session assigned to its channel; the
// dispatcher hands it merged parts which it must treat as immutable.
type Coordinator interface {
	OnMessageUpdated(rs *RunState, msg *agent.Message)
	OnMessagePartUpdated(rs *RunState, part *agent.Part)
	OnMessagePartDelta(rs *RunState, part *agent.Part)
	OnSessionIdle(rs *RunState)

	// FinalizeReply flushes the current in-flight output for the session and
	// reports whether anything was flushed.
	FinalizeReply(rs *RunState) bool

	// HasStreamedMessage reports whether any content has streamed for the
	// session's current turn.
	HasStreamedMessage(sessionID string) bool

	// ClearSession discards all channel state for the session.
	ClearSession(sessionID string)
}

// Hooks is the secondary, policy-driven per-channel strategy. Hooks run in
// addition to the channel's Coordinator so notification policy stays
// decoupled from rendering.
type Hooks interface {
	OnMessagePartUpdated(rs *RunState, part *agent.Part)
	OnSessionIdle(rs *RunState)
}

// NopCoordinator ignores everything and returns safe defaults.
type NopCoordinator struct{}

func (NopCoordinator) OnMessageUpdated(*RunState, *agent.Message)  {}
func (NopCoordinator) OnMessagePartUpdated(*RunState, *agent.Part) {}
func (NopCoordinator) OnMessagePartDelta(*RunState, *agent.Part)   {}
func (NopCoordinator) OnSessionIdle(*RunState)                     {}
func (NopCoordinator) FinalizeReply(*RunState) bool                { return false }
func (NopCoordinator) HasStreamedMessage(string) bool              { return false }
func (NopCoordinator) ClearSession(string)                         {}

// NopHooks ignores everything.
type NopHooks struct{}

func (NopHooks) OnMessagePartUpdated(*RunState, *agent.Part) {}
func (NopHooks) OnSessionIdle(*RunState)                     {}

var (
	nopCoordinator Coordinator = NopCoordinator{}
	nopHooks       Hooks       = NopHooks{}
)

// CoordinatorRegistry holds coordinators keyed by channel name. Lookup for
// an unregistered channel returns a no-op coordinator, so the dispatcher
// behaves identically whether or not a channel has registered handlers.
type CoordinatorRegistry struct {
	mu sync.RWMutex
	m  map[string]Coordinator
}

// NewCoordinatorRegistry creates an empty registry.
func NewCoordinatorRegistry() *CoordinatorRegistry {
	return &CoordinatorRegistry{m: make(map[string]Coordinator)}
}

// Register installs a coordinator for a channel, replacing any existing one.
func (r *CoordinatorRegistry) Register(channel string, c Coordinator) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c == nil {
		delete(r.m, channel)
		return
	}
	r.m[channel] = c
}

// Lookup returns the channel's coordinator, or a no-op on miss.
func (r *CoordinatorRegistry) Lookup(channel string) Coordinator {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if c, ok := r.m[channel]; ok {
		return c
	}
	return nopCoordinator
}

// HooksRegistry holds channel hooks keyed by channel name, with the same
// no-op fallback as CoordinatorRegistry.
type HooksRegistry struct {
	mu sync.RWMutex
	m  map[string]Hooks
}

// NewHooksRegistry creates an empty registry.
func NewHooksRegistry() *HooksRegistry {
	return &HooksRegistry{m: make(map[string]Hooks)}
}

// Register installs hooks for a channel, replacing any existing ones.
func (r *HooksRegistry) Register(channel string, h Hooks) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if h == nil {
		delete(r.m, channel)
		return
	}
	r.m[channel] = h
}

// Lookup returns the channel's hooks, or no-op hooks on miss.
func (r *HooksRegistry) Lookup(channel string) Hooks {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if h, ok := r.m[channel]; ok {
		return h
	}
	return nopHooks
}

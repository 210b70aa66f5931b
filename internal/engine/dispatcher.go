// Package engine consumes the upstream event stream and reconciles it into a
// consistent per-session view, fanning the result out to per-channel
// coordinators and hooks.
package engine

import (
	"context"
	"fmt"
	"sync"

	"github.com/williamcory/relay/internal/merge"
	"github.com/williamcory/relay/internal/pending"
	"github.com/williamcory/relay/sdk/agent"
)

// Kinds attached to outbound sends so adapters can format appropriately.
const (
	SendKindReply  = "reply"
	SendKindTool   = "tool"
	SendKindSystem = "system"
)

// SendTextFunc delivers text to a destination channel. Fire-and-forget from
// the engine's perspective; failures are the adapter's concern.
type SendTextFunc func(channel, peer, text, kind string)

// RespondFunc replies to a permission request upstream.
type RespondFunc func(ctx context.Context, sessionID, permissionID, response string) error

// Options configures an Engine.
type Options struct {
	Logger *agent.Logger
	Debug  agent.DebugSink

	// MaxPending bounds each pending-delta queue. <= 0 uses the default.
	MaxPending int

	// DefaultChannel receives sessions that were never attached explicitly.
	DefaultChannel string

	// DefaultInteractive marks the default channel as able to prompt a
	// human. Sessions on non-interactive channels get permission requests
	// answered automatically with AutoPermission.
	DefaultInteractive bool

	// DefaultPeer is the peer sends for unattached sessions are routed to.
	DefaultPeer string

	// AutoPermission is the response applied to permission requests on
	// non-interactive channels: agent.PermissionAllow or
	// agent.PermissionReject. Empty means reject.
	AutoPermission string

	SendText SendTextFunc
	Respond  RespondFunc
}

// Engine is the event dispatcher. Events for one session must be handled in
// arrival order; HandleEvent is safe for concurrent use across sessions.
type Engine struct {
	log   *agent.Logger
	debug agent.DebugSink

	store   *Store
	pending *pending.Buffer
	coords  *CoordinatorRegistry
	hooks   *HooksRegistry

	defaultChannel     string
	defaultInteractive bool
	defaultPeer        string
	autoPermission     string
	sendText           SendTextFunc
	respond            RespondFunc

	mu   sync.Mutex
	runs map[string]*RunState
}

// New creates an engine.
func New(opts Options) *Engine {
	log := opts.Logger
	if log == nil {
		log = agent.GetLogger()
	}
	var debug agent.DebugSink = opts.Debug
	if debug == nil {
		debug = agent.NopDebugSink{}
	}
	defaultChannel := opts.DefaultChannel
	if defaultChannel == "" {
		defaultChannel = "ui"
	}
	autoPermission := opts.AutoPermission
	if autoPermission != agent.PermissionAllow {
		autoPermission = agent.PermissionReject
	}
	sendText := opts.SendText
	if sendText == nil {
		sendText = func(string, string, string, string) {}
	}
	respond := opts.Respond
	if respond == nil {
		respond = func(context.Context, string, string, string) error { return nil }
	}

	return &Engine{
		log:            log,
		debug:          debug,
		store:          NewStore(),
		pending:        pending.New(opts.MaxPending),
		coords:         NewCoordinatorRegistry(),
		hooks:          NewHooksRegistry(),
		defaultChannel:     defaultChannel,
		defaultInteractive: opts.DefaultInteractive,
		defaultPeer:        opts.DefaultPeer,
		autoPermission:     autoPermission,
		sendText:           sendText,
		respond:            respond,
		runs:               make(map[string]*RunState),
	}
}

// Coordinators exposes the coordinator registry for startup registration.
func (e *Engine) Coordinators() *CoordinatorRegistry { return e.coords }

// Hooks exposes the hooks registry for startup registration.
func (e *Engine) Hooks() *HooksRegistry { return e.hooks }

// Store exposes read access to reconciled messages and parts.
func (e *Engine) Store() *Store { return e.store }

// Attach assigns a session to a destination channel, creating its run state.
// Re-attaching an already tracked session moves it.
func (e *Engine) Attach(sessionID, channel, peer string, interactive bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.runs[sessionID] = newRunState(sessionID, channel, peer, interactive)
}

// Dismiss tears down a session's run state, buffered deltas and cached
// content. Safe to call for unknown sessions.
func (e *Engine) Dismiss(sessionID string) {
	e.mu.Lock()
	rs, ok := e.runs[sessionID]
	delete(e.runs, sessionID)
	e.mu.Unlock()

	if ok {
		e.coords.Lookup(rs.Channel).ClearSession(sessionID)
	}
	e.pending.DropSession(sessionID)
	e.store.ClearSession(sessionID)
}

// RunState returns a snapshot of a session's run state, or nil.
func (e *Engine) RunState(sessionID string) *RunState {
	e.mu.Lock()
	defer e.mu.Unlock()
	rs, ok := e.runs[sessionID]
	if !ok {
		return nil
	}
	clone := *rs
	return &clone
}

func (e *Engine) runFor(sessionID string) *RunState {
	e.mu.Lock()
	defer e.mu.Unlock()
	rs, ok := e.runs[sessionID]
	if !ok {
		rs = newRunState(sessionID, e.defaultChannel, e.defaultPeer, e.defaultInteractive)
		e.runs[sessionID] = rs
	}
	return rs
}

// HandleEvent processes one event. It never panics out: any per-event
// failure is logged and treated as no update.
func (e *Engine) HandleEvent(ctx context.Context, ev *agent.StreamEvent) {
	if ev == nil {
		return
	}

	defer func() {
		if r := recover(); r != nil {
			e.log.Error("event handling panicked", "type", ev.Type, "panic", fmt.Sprint(r))
		}
	}()

	switch ev.Type {
	case agent.EventMessageUpdated:
		e.handleMessageUpdated(ev.Message)
	case agent.EventMessagePartUpdated:
		e.handlePartUpdated(ev.Part)
	case agent.EventMessagePartDelta:
		e.handlePartDelta(ev.Delta)
	case agent.EventMessageRemoved:
		e.handleMessageRemoved(ev.MsgRemoved)
	case agent.EventMessagePartRemoved:
		e.handlePartRemoved(ev.PRemoved)
	case agent.EventSessionStatus, agent.EventSessionIdle:
		e.handleSessionStatus(ev.Status)
	case agent.EventSessionError:
		e.handleSessionError(ev.Error)
	case agent.EventPermissionAsked:
		e.handlePermissionAsked(ctx, ev.Permission)
	case agent.EventPermissionReplied:
		e.handlePermissionReplied(ev.Reply)
	default:
		// Unknown event types are expected as the upstream evolves.
		e.log.Debug("ignoring unknown event", "type", ev.Type)
	}
}

func (e *Engine) handleMessageUpdated(msg *agent.Message) {
	if msg == nil {
		return
	}

	e.store.PutMessage(msg)

	rs := e.runFor(msg.SessionID)
	e.mu.Lock()
	if msg.ModelID != "" {
		rs.Model = msg.ModelID
	}
	if msg.IsAssistant() && msg.Time.Completed == nil {
		rs.ThinkingActive = true
		rs.Finalized = false
	}
	e.mu.Unlock()

	e.coords.Lookup(rs.Channel).OnMessageUpdated(rs, msg)
}

func (e *Engine) handlePartUpdated(next *agent.Part) {
	if next == nil {
		return
	}

	prev := e.store.Part(next.SessionID, next.MessageID, next.ID)
	merged := merge.Snapshot(prev, next)

	key := pending.Key(next.SessionID, next.MessageID, next.ID)
	if queued := e.pending.Take(key); len(queued) > 0 {
		var remaining []pending.Delta
		merged, remaining = pending.Replay(merged, queued)
		if len(remaining) > 0 {
			e.pending.Requeue(key, remaining)
			e.log.Warn("deltas still unmergeable after replay",
				"part", next.ID, "count", len(remaining))
		}
	}

	e.store.PutPart(merged)

	rs := e.runFor(merged.SessionID)
	e.coords.Lookup(rs.Channel).OnMessagePartUpdated(rs, merged)

	if merged.IsTool() {
		state := merged.State
		if state == nil {
			state = &agent.ToolState{}
		}
		sig := toolSignature(merged.Tool, merged.CallID, state.Status, state.Title)

		e.mu.Lock()
		changed := rs.markToolState(merged.ID, sig)
		e.mu.Unlock()

		// An unchanged signature means a duplicate notification, not new
		// information; skip the secondary side effects.
		if !changed {
			return
		}
	}

	e.hooks.Lookup(rs.Channel).OnMessagePartUpdated(rs, merged)
}

func (e *Engine) handlePartDelta(d *agent.PartDelta) {
	if d == nil {
		return
	}
	if d.Field == "" || d.Delta == "" {
		return
	}

	key := pending.Key(d.SessionID, d.MessageID, d.PartID)
	prev := e.store.Part(d.SessionID, d.MessageID, d.PartID)
	if prev == nil {
		e.bufferDelta(key, d, "target part unknown")
		return
	}

	merged, err := merge.Apply(prev, d.Field, d.Delta)
	if err != nil {
		e.bufferDelta(key, d, err.Error())
		return
	}

	e.store.PutPart(merged)

	rs := e.runFor(merged.SessionID)
	e.coords.Lookup(rs.Channel).OnMessagePartDelta(rs, merged)
}

func (e *Engine) bufferDelta(key string, d *agent.PartDelta, reason string) {
	e.pending.Enqueue(key, pending.Delta{Field: d.Field, Text: d.Delta})
	e.log.Debug("buffered delta", "part", d.PartID, "field", d.Field, "reason", reason)
	e.debug.Append(agent.DebugEntry{
		Summary: fmt.Sprintf("buffered delta for %s.%s: %s", d.PartID, d.Field, reason),
	})
}

func (e *Engine) handleMessageRemoved(rm *agent.MessageRemoved) {
	if rm == nil {
		return
	}
	e.store.RemoveMessage(rm.SessionID, rm.MessageID)
	e.pending.DropMessage(rm.SessionID, rm.MessageID)
}

func (e *Engine) handlePartRemoved(rm *agent.PartRemoved) {
	if rm == nil {
		return
	}
	e.store.RemovePart(rm.SessionID, rm.MessageID, rm.PartID)
	e.pending.Drop(pending.Key(rm.SessionID, rm.MessageID, rm.PartID))
}

func (e *Engine) handleSessionStatus(st *agent.SessionStatus) {
	if st == nil {
		return
	}

	rs := e.runFor(st.SessionID)

	switch st.Type {
	case agent.SessionStatusBusy:
		e.mu.Lock()
		rs.ThinkingActive = true
		rs.Retrying = false
		e.mu.Unlock()
	case agent.SessionStatusRetry:
		e.mu.Lock()
		rs.ThinkingActive = true
		rs.Retrying = true
		e.mu.Unlock()
	case agent.SessionStatusIdle:
		e.handleIdle(rs)
	default:
		e.log.Debug("unknown session status", "session", st.SessionID, "status", st.Type)
	}
}

// handleIdle is shared by session.status(idle) and session.idle, which are
// not guaranteed to both be emitted.
func (e *Engine) handleIdle(rs *RunState) {
	e.mu.Lock()
	rs.ThinkingActive = false
	rs.Retrying = false
	e.mu.Unlock()

	// Once idle, no further deltas for this turn are expected.
	e.pending.DropSession(rs.SessionID)

	coord := e.coords.Lookup(rs.Channel)
	coord.OnSessionIdle(rs)
	flushed := coord.FinalizeReply(rs)

	e.mu.Lock()
	rs.Finalized = flushed || rs.Finalized
	e.mu.Unlock()

	e.hooks.Lookup(rs.Channel).OnSessionIdle(rs)
}

func (e *Engine) handleSessionError(se *agent.SessionError) {
	if se == nil {
		return
	}

	rs := e.runFor(se.SessionID)

	e.mu.Lock()
	isNew := rs.markError(se.Name, se.Message)
	rs.ThinkingActive = false
	rs.Retrying = false
	e.mu.Unlock()

	if !isNew {
		return
	}

	text := se.Message
	if se.Name != "" {
		text = se.Name + ": " + se.Message
	}

	channel, peer := rs.Channel, rs.Peer
	go e.sendText(channel, peer, text, SendKindSystem)
}

func (e *Engine) handlePermissionAsked(ctx context.Context, p *agent.Permission) {
	if p == nil {
		return
	}

	rs := e.runFor(p.SessionID)

	e.mu.Lock()
	rs.pendingPerms[p.ID] = true
	interactive := rs.Interactive
	e.mu.Unlock()

	if interactive {
		return
	}

	// Non-interactive destinations cannot prompt anyone; apply the
	// configured policy without blocking event consumption.
	response := e.autoPermission
	go func() {
		if err := e.respond(ctx, p.SessionID, p.ID, response); err != nil {
			e.log.Warn("permission auto-reply failed",
				"session", p.SessionID, "permission", p.ID, "error", err)
		}
	}()
}

func (e *Engine) handlePermissionReplied(r *agent.PermissionReply) {
	if r == nil {
		return
	}

	rs := e.runFor(r.SessionID)
	e.mu.Lock()
	delete(rs.pendingPerms, r.PermissionID)
	e.mu.Unlock()
}

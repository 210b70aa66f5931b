package engine

import "fmt"

// RunState tracks one session's lifecycle on its assigned destination
// channel. It is created when the session is first attached (or on first
// event, for the default channel) and destroyed on Dismiss.
type RunState struct {
	SessionID string
	Channel   string

	// Peer identifies the destination recipient on the channel (a chat ID,
	// a webhook target). Opaque to the engine.
	Peer string

	// Interactive channels surface permission requests to a human;
	// non-interactive ones get the configured auto-policy applied.
	Interactive bool

	// ThinkingActive is set while the agent is generating.
	ThinkingActive bool

	// Retrying is set while the upstream reports a retry in progress.
	// Thinking stays active during retries.
	Retrying bool

	// Model is the last model identity observed for the session.
	Model string

	// Finalized reports whether the current in-flight message was flushed.
	Finalized bool

	toolSigs     map[string]string
	pendingPerms map[string]bool
	seenErrors   map[string]bool
}

func newRunState(sessionID, channel, peer string, interactive bool) *RunState {
	return &RunState{
		SessionID:    sessionID,
		Channel:      channel,
		Peer:         peer,
		Interactive:  interactive,
		toolSigs:     make(map[string]string),
		pendingPerms: make(map[string]bool),
		seenErrors:   make(map[string]bool),
	}
}

// toolSignature identifies one observable tool-call state. Two consecutive
// snapshots with the same signature carry no new information for secondary
// side effects.
func toolSignature(tool, callID, status, title string) string {
	return fmt.Sprintf("%s|%s|%s|%s", tool, callID, status, title)
}

// markToolState records the signature for a part and reports whether it
// changed since the last forwarded one.
func (rs *RunState) markToolState(partID, sig string) bool {
	if rs.toolSigs[partID] == sig {
		return false
	}
	rs.toolSigs[partID] = sig
	return true
}

// markError records an error identity and reports whether it is new.
func (rs *RunState) markError(name, message string) bool {
	id := name + ": " + message
	if rs.seenErrors[id] {
		return false
	}
	rs.seenErrors[id] = true
	return true
}

// PendingPermissions returns the IDs of permission requests awaiting a reply.
func (rs *RunState) PendingPermissions() []string {
	ids := make([]string, 0, len(rs.pendingPerms))
	for id := range rs.pendingPerms {
		ids = append(ids, id)
	}
	return ids
}

package agent

import "encoding/json"

// Event type names on the wire.
const (
	EventMessageUpdated     = "message.updated"
	EventMessagePartUpdated = "message.part.updated"
	EventMessagePartDelta   = "message.part.delta"
	EventMessageRemoved     = "message.removed"
	EventMessagePartRemoved = "message.part.removed"
	EventSessionStatus      = "session.status"
	EventSessionIdle        = "session.idle"
	EventSessionError       = "session.error"
	EventPermissionAsked    = "permission.asked"
	EventPermissionReplied  = "permission.replied"
)

// Event represents a raw SSE event envelope from the server.
type Event struct {
	Type       string          `json:"type"`
	Properties json.RawMessage `json:"properties"`
}

// MessageEvent contains message data from a message.updated event.
type MessageEvent struct {
	Info Message `json:"info"`
}

// PartEvent contains a full part snapshot from a message.part.updated event.
type PartEvent struct {
	Part Part `json:"part"`
}

// PartDelta is an instruction to append Delta to the string value at the
// dot-path Field within one part. Deltas for the same field must be applied
// in arrival order.
type PartDelta struct {
	SessionID string `json:"sessionID"`
	MessageID string `json:"messageID"`
	PartID    string `json:"partID"`
	Field     string `json:"field"`
	Delta     string `json:"delta"`
}

// MessageRemoved identifies a deleted message.
type MessageRemoved struct {
	SessionID string `json:"sessionID"`
	MessageID string `json:"messageID"`
}

// PartRemoved identifies a deleted part.
type PartRemoved struct {
	SessionID string `json:"sessionID"`
	MessageID string `json:"messageID"`
	PartID    string `json:"partID"`
}

// SessionStatus carries a session lifecycle transition.
type SessionStatus struct {
	SessionID string `json:"sessionID"`
	Type      string `json:"type"` // "busy", "retry", "idle", ...
}

// SessionError carries a session-level error.
type SessionError struct {
	SessionID string `json:"sessionID"`
	Name      string `json:"name"`
	Message   string `json:"message"`
}

// Permission describes a pending permission request.
type Permission struct {
	ID        string          `json:"id"`
	SessionID string          `json:"sessionID"`
	Type      string          `json:"type,omitempty"`
	Title     string          `json:"title,omitempty"`
	Metadata  json.RawMessage `json:"metadata,omitempty"`
}

// PermissionReply records a response to a permission request.
type PermissionReply struct {
	SessionID    string `json:"sessionID"`
	PermissionID string `json:"permissionID"`
	Response     string `json:"response,omitempty"`
}

// StreamEvent is the decoded union of all event types the client understands.
// Exactly one payload pointer is set, matching Type; unknown event types carry
// only Type and Raw.
type StreamEvent struct {
	Type       string
	Message    *Message
	Part       *Part
	Delta      *PartDelta
	MsgRemoved *MessageRemoved
	PRemoved   *PartRemoved
	Status     *SessionStatus
	Error      *SessionError
	Permission *Permission
	Reply      *PermissionReply
	Raw        json.RawMessage
}

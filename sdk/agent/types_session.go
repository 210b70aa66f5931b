package agent

// SessionTime represents timestamps for a session.
type SessionTime struct {
	Created float64 `json:"created"`
	Updated float64 `json:"updated"`
}

// Session represents an agent conversation.
type Session struct {
	ID        string      `json:"id"`
	ProjectID string      `json:"projectID,omitempty"`
	Directory string      `json:"directory,omitempty"`
	Title     string      `json:"title,omitempty"`
	Version   string      `json:"version,omitempty"`
	Time      SessionTime `json:"time"`
	ParentID  *string     `json:"parentID,omitempty"`
}

// Session status values carried by session.status events.
const (
	SessionStatusBusy  = "busy"
	SessionStatusRetry = "retry"
	SessionStatusIdle  = "idle"
)

// Permission responses accepted by RespondToPermission.
const (
	PermissionAllow  = "allow"
	PermissionReject = "reject"
	PermissionAlways = "always"
)

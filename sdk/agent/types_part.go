package agent

// Part type discriminators.
const (
	PartTypeText       = "text"
	PartTypeReasoning  = "reasoning"
	PartTypeTool       = "tool"
	PartTypeFile       = "file"
	PartTypeStepStart  = "step-start"
	PartTypeStepFinish = "step-finish"
	PartTypeRetry      = "retry"
	PartTypeCompaction = "compaction"
	PartTypeSnapshot   = "snapshot"
	PartTypePatch      = "patch"
	PartTypeAgent      = "agent"
	PartTypeSubtask    = "subtask"
)

// Tool execution statuses.
const (
	ToolStatusPending   = "pending"
	ToolStatusRunning   = "running"
	ToolStatusCompleted = "completed"
	ToolStatusError     = "error"
)

// PartTime represents timestamps for a part.
type PartTime struct {
	Start float64  `json:"start,omitempty"`
	End   *float64 `json:"end,omitempty"`
}

// ToolState represents the state of a tool execution. Status is the only
// field guaranteed to be present; everything else fills in as the tool
// progresses. Metadata holds provider-specific dynamic fields and is the
// only place streaming deltas may target arbitrary paths.
type ToolState struct {
	Status   string                 `json:"status"`
	Input    map[string]interface{} `json:"input,omitempty"`
	Raw      string                 `json:"raw,omitempty"`
	Output   string                 `json:"output,omitempty"`
	Title    string                 `json:"title,omitempty"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
	Time     *PartTime              `json:"time,omitempty"`
}

// Part represents any message part. Use the Type field (or the Is* helpers)
// to determine the specific variant. The (SessionID, MessageID, ID) triple is
// stable for the lifetime of a part; only payload fields change.
type Part struct {
	ID        string `json:"id"`
	SessionID string `json:"sessionID"`
	MessageID string `json:"messageID"`
	Type      string `json:"type"`

	// Text / reasoning fields
	Text string    `json:"text,omitempty"`
	Time *PartTime `json:"time,omitempty"`

	// Tool fields
	Tool   string     `json:"tool,omitempty"`
	CallID string     `json:"callID,omitempty"`
	State  *ToolState `json:"state,omitempty"`

	// File fields
	Mime     string  `json:"mime,omitempty"`
	URL      string  `json:"url,omitempty"`
	Filename *string `json:"filename,omitempty"`

	// Step-finish fields
	Tokens *TokenInfo `json:"tokens,omitempty"`
	Cost   *float64   `json:"cost,omitempty"`
}

// IsText returns true if this is a text part.
func (p *Part) IsText() bool {
	return p.Type == PartTypeText
}

// IsReasoning returns true if this is a reasoning part.
func (p *Part) IsReasoning() bool {
	return p.Type == PartTypeReasoning
}

// IsTool returns true if this is a tool part.
func (p *Part) IsTool() bool {
	return p.Type == PartTypeTool
}

// IsFile returns true if this is a file part.
func (p *Part) IsFile() bool {
	return p.Type == PartTypeFile
}

// IsStreamingText returns true for variants whose Text field accumulates
// streamed fragments.
func (p *Part) IsStreamingText() bool {
	return p.Type == PartTypeText || p.Type == PartTypeReasoning
}

// Completed returns true once the part's end timestamp is set.
func (p *Part) Completed() bool {
	return p.Time != nil && p.Time.End != nil
}

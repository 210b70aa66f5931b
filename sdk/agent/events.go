package agent

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
)

// DecodeEvent decodes a raw event envelope into a typed StreamEvent.
// Unknown event types are passed through with only Type and Raw set so
// consumers can treat them as a no-op rather than an error.
func DecodeEvent(ev *Event) *StreamEvent {
	out := &StreamEvent{
		Type: ev.Type,
		Raw:  ev.Properties,
	}

	switch ev.Type {
	case EventMessageUpdated:
		var p MessageEvent
		if err := json.Unmarshal(ev.Properties, &p); err == nil {
			out.Message = &p.Info
		}
	case EventMessagePartUpdated:
		var p PartEvent
		if err := json.Unmarshal(ev.Properties, &p); err == nil {
			out.Part = &p.Part
		}
	case EventMessagePartDelta:
		var p PartDelta
		if err := json.Unmarshal(ev.Properties, &p); err == nil {
			out.Delta = &p
		}
	case EventMessageRemoved:
		var p MessageRemoved
		if err := json.Unmarshal(ev.Properties, &p); err == nil {
			out.MsgRemoved = &p
		}
	case EventMessagePartRemoved:
		var p PartRemoved
		if err := json.Unmarshal(ev.Properties, &p); err == nil {
			out.PRemoved = &p
		}
	case EventSessionStatus:
		var p SessionStatus
		if err := json.Unmarshal(ev.Properties, &p); err == nil {
			out.Status = &p
		}
	case EventSessionIdle:
		var p SessionStatus
		if err := json.Unmarshal(ev.Properties, &p); err == nil {
			p.Type = SessionStatusIdle
			out.Status = &p
		}
	case EventSessionError:
		var p SessionError
		if err := json.Unmarshal(ev.Properties, &p); err == nil {
			out.Error = &p
		}
	case EventPermissionAsked:
		var p Permission
		if err := json.Unmarshal(ev.Properties, &p); err == nil {
			out.Permission = &p
		}
	case EventPermissionReplied:
		var p PermissionReply
		if err := json.Unmarshal(ev.Properties, &p); err == nil {
			out.Reply = &p
		}
	}

	return out
}

// SubscribeToEvents subscribes to the global event stream and returns a
// channel of decoded events. The optional sessionID scopes the subscription
// to one session; pass "" for all sessions. Cancel the context to stop.
func (c *Client) SubscribeToEvents(ctx context.Context, sessionID string) (<-chan *StreamEvent, <-chan error, error) {
	path := "/global/event"
	if sessionID != "" {
		path += "?sessionID=" + url.QueryEscape(sessionID)
	}

	eventCh, errCh, err := c.doSSERequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, nil, err
	}

	streamCh := make(chan *StreamEvent, 100)
	streamErrCh := make(chan error, 1)

	go func() {
		defer close(streamCh)
		defer close(streamErrCh)

		// The error channel is only consulted after the event channel is
		// closed: draining events first guarantees no buffered tail event
		// is lost when the stream ends.
		for event := range eventCh {
			select {
			case <-ctx.Done():
				streamErrCh <- ctx.Err()
				return
			case streamCh <- DecodeEvent(event):
			}
		}
		if err, ok := <-errCh; ok && err != nil {
			streamErrCh <- err
		}
	}()

	return streamCh, streamErrCh, nil
}

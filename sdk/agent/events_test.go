package agent_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/williamcory/relay/sdk/agent"
)

func TestDecodeEvent(t *testing.T) {
	t.Run("message updated", func(t *testing.T) {
		ev := &agent.Event{
			Type:       agent.EventMessageUpdated,
			Properties: json.RawMessage(`{"info":{"id":"msg_1","sessionID":"ses_1","role":"assistant"}}`),
		}
		decoded := agent.DecodeEvent(ev)
		if decoded.Message == nil {
			t.Fatal("expected Message to be set")
		}
		if decoded.Message.ID != "msg_1" || !decoded.Message.IsAssistant() {
			t.Errorf("unexpected message: %+v", decoded.Message)
		}
	})

	t.Run("part updated", func(t *testing.T) {
		ev := &agent.Event{
			Type:       agent.EventMessagePartUpdated,
			Properties: json.RawMessage(`{"part":{"id":"prt_1","sessionID":"ses_1","messageID":"msg_1","type":"text","text":"hi"}}`),
		}
		decoded := agent.DecodeEvent(ev)
		if decoded.Part == nil || !decoded.Part.IsText() || decoded.Part.Text != "hi" {
			t.Errorf("unexpected part: %+v", decoded.Part)
		}
	})

	t.Run("part delta", func(t *testing.T) {
		ev := &agent.Event{
			Type:       agent.EventMessagePartDelta,
			Properties: json.RawMessage(`{"sessionID":"ses_1","messageID":"msg_1","partID":"prt_1","field":"text","delta":" more"}`),
		}
		decoded := agent.DecodeEvent(ev)
		if decoded.Delta == nil {
			t.Fatal("expected Delta to be set")
		}
		if decoded.Delta.Field != "text" || decoded.Delta.Delta != " more" {
			t.Errorf("unexpected delta: %+v", decoded.Delta)
		}
	})

	t.Run("removals", func(t *testing.T) {
		decoded := agent.DecodeEvent(&agent.Event{
			Type:       agent.EventMessageRemoved,
			Properties: json.RawMessage(`{"sessionID":"ses_1","messageID":"msg_1"}`),
		})
		if decoded.MsgRemoved == nil || decoded.MsgRemoved.MessageID != "msg_1" {
			t.Errorf("unexpected message removal: %+v", decoded.MsgRemoved)
		}

		decoded = agent.DecodeEvent(&agent.Event{
			Type:       agent.EventMessagePartRemoved,
			Properties: json.RawMessage(`{"sessionID":"ses_1","messageID":"msg_1","partID":"prt_1"}`),
		})
		if decoded.PRemoved == nil || decoded.PRemoved.PartID != "prt_1" {
			t.Errorf("unexpected part removal: %+v", decoded.PRemoved)
		}
	})

	t.Run("session status", func(t *testing.T) {
		decoded := agent.DecodeEvent(&agent.Event{
			Type:       agent.EventSessionStatus,
			Properties: json.RawMessage(`{"sessionID":"ses_1","type":"busy"}`),
		})
		if decoded.Status == nil || decoded.Status.Type != agent.SessionStatusBusy {
			t.Errorf("unexpected status: %+v", decoded.Status)
		}
	})

	t.Run("session idle implies idle status", func(t *testing.T) {
		decoded := agent.DecodeEvent(&agent.Event{
			Type:       agent.EventSessionIdle,
			Properties: json.RawMessage(`{"sessionID":"ses_1"}`),
		})
		if decoded.Status == nil {
			t.Fatal("expected Status to be set")
		}
		if decoded.Status.Type != agent.SessionStatusIdle {
			t.Errorf("expected idle status, got %q", decoded.Status.Type)
		}
	})

	t.Run("session error", func(t *testing.T) {
		decoded := agent.DecodeEvent(&agent.Event{
			Type:       agent.EventSessionError,
			Properties: json.RawMessage(`{"sessionID":"ses_1","name":"RateLimit","message":"slow down"}`),
		})
		if decoded.Error == nil || decoded.Error.Name != "RateLimit" {
			t.Errorf("unexpected error payload: %+v", decoded.Error)
		}
	})

	t.Run("permission lifecycle", func(t *testing.T) {
		decoded := agent.DecodeEvent(&agent.Event{
			Type:       agent.EventPermissionAsked,
			Properties: json.RawMessage(`{"id":"perm_1","sessionID":"ses_1","type":"bash","title":"Run ls"}`),
		})
		if decoded.Permission == nil || decoded.Permission.ID != "perm_1" {
			t.Errorf("unexpected permission: %+v", decoded.Permission)
		}

		decoded = agent.DecodeEvent(&agent.Event{
			Type:       agent.EventPermissionReplied,
			Properties: json.RawMessage(`{"sessionID":"ses_1","permissionID":"perm_1","response":"allow"}`),
		})
		if decoded.Reply == nil || decoded.Reply.Response != agent.PermissionAllow {
			t.Errorf("unexpected reply: %+v", decoded.Reply)
		}
	})

	t.Run("unknown type passes through", func(t *testing.T) {
		raw := json.RawMessage(`{"anything":true}`)
		decoded := agent.DecodeEvent(&agent.Event{Type: "lsp.diagnostics", Properties: raw})
		if decoded.Type != "lsp.diagnostics" {
			t.Errorf("expected type to pass through, got %q", decoded.Type)
		}
		if decoded.Message != nil || decoded.Part != nil || decoded.Delta != nil ||
			decoded.Status != nil || decoded.Error != nil || decoded.Permission != nil {
			t.Error("unknown events must not populate typed payloads")
		}
		if string(decoded.Raw) != string(raw) {
			t.Error("expected raw properties to be preserved")
		}
	})

	t.Run("malformed payload leaves payload nil", func(t *testing.T) {
		decoded := agent.DecodeEvent(&agent.Event{
			Type:       agent.EventMessagePartUpdated,
			Properties: json.RawMessage(`not json`),
		})
		if decoded.Part != nil {
			t.Error("malformed payload must not produce a part")
		}
		if decoded.Type != agent.EventMessagePartUpdated {
			t.Error("type must survive malformed payloads")
		}
	})
}

func TestSubscribeToEvents(t *testing.T) {
	events := []string{
		`{"type":"message.part.updated","properties":{"part":{"id":"prt_1","sessionID":"ses_1","messageID":"msg_1","type":"text","text":"hello"}}}`,
		`{"type":"session.idle","properties":{"sessionID":"ses_1"}}`,
	}

	var gotQuery string
	mux := http.NewServeMux()
	mux.HandleFunc("/global/event", func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("sessionID")

		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		for _, ev := range events {
			fmt.Fprintf(w, "data: %s\n\n", ev)
			flusher.Flush()
		}
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	client := agent.NewClient(srv.URL)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	stream, errs, err := client.SubscribeToEvents(ctx, "ses_1")
	if err != nil {
		t.Fatalf("SubscribeToEvents() error = %v", err)
	}

	var received []*agent.StreamEvent
	for ev := range stream {
		received = append(received, ev)
	}
	select {
	case err := <-errs:
		if err != nil {
			t.Fatalf("stream error = %v", err)
		}
	default:
	}

	if gotQuery != "ses_1" {
		t.Errorf("expected sessionID query param, got %q", gotQuery)
	}
	if len(received) != 2 {
		t.Fatalf("expected 2 events, got %d", len(received))
	}
	if received[0].Part == nil || received[0].Part.Text != "hello" {
		t.Errorf("unexpected first event: %+v", received[0])
	}
	if received[1].Status == nil || received[1].Status.Type != agent.SessionStatusIdle {
		t.Errorf("unexpected second event: %+v", received[1])
	}
}

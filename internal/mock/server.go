// Package mock runs a scripted upstream agent server for demos and manual
// testing. Each event-stream connection replays one full turn, deliberately
// including the awkward orderings the relay must survive: a delta arriving
// before its part snapshot, a stale snapshot that is a prefix of already
// streamed text, and a duplicated tool-state notification.
package mock

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/williamcory/relay/sdk/agent"
)

type Server struct {
	port int

	mu      sync.Mutex
	replies map[string]string // permissionID -> response
}

func NewServer(port int) *Server {
	return &Server{port: port, replies: make(map[string]string)}
}

func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.port)
	fmt.Printf("Mock agent server starting on http://localhost%s\n", addr)
	return http.ListenAndServe(addr, s.Handler())
}

// Handler exposes the mux so tests can mount it on an httptest server.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.healthHandler)
	mux.HandleFunc("/session", s.sessionsHandler)
	mux.HandleFunc("/global/event", s.eventsHandler)
	mux.HandleFunc("/session/", s.sessionHandler)
	return mux
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"status":           "ok",
		"agent_configured": true,
	})
}

func (s *Server) sessionsHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode([]agent.Session{})
}

// sessionHandler covers /session/{id}/permissions/{permID}; everything else
// under /session/ is a 404.
func (s *Server) sessionHandler(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	if len(parts) == 4 && parts[2] == "permissions" {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		var req struct {
			Response string `json:"response"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		s.mu.Lock()
		s.replies[parts[3]] = req.Response
		s.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(true)
		return
	}
	http.NotFound(w, r)
}

// PermissionReply returns the recorded reply for a permission ID.
func (s *Server) PermissionReply(permissionID string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	resp, ok := s.replies[permissionID]
	return resp, ok
}

func (s *Server) eventsHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "SSE not supported", http.StatusInternalServerError)
		return
	}

	s.playTurn(r.Context(), w, flusher)
}

func (s *Server) playTurn(ctx context.Context, w http.ResponseWriter, flusher http.Flusher) {
	sessionID := "ses_" + uuid.NewString()[:8]
	messageID := "msg_" + uuid.NewString()[:8]
	textID := "prt_" + uuid.NewString()[:8]
	reasonID := "prt_" + uuid.NewString()[:8]
	toolID := "prt_" + uuid.NewString()[:8]
	callID := "call_" + uuid.NewString()[:8]
	permID := "perm_" + uuid.NewString()[:8]

	send := func(eventType string, properties any) {
		if ctx.Err() != nil {
			return
		}
		payload, _ := json.Marshal(map[string]any{
			"type":       eventType,
			"properties": properties,
		})
		fmt.Fprintf(w, "data: %s\n\n", payload)
		flusher.Flush()
		time.Sleep(40 * time.Millisecond)
	}
	textPart := func(text string) map[string]any {
		return map[string]any{"part": map[string]any{
			"id": textID, "sessionID": sessionID, "messageID": messageID,
			"type": "text", "text": text,
			"time": map[string]any{"start": agent.Now()},
		}}
	}
	delta := func(partID, field, d string) map[string]any {
		return map[string]any{
			"sessionID": sessionID, "messageID": messageID, "partID": partID,
			"field": field, "delta": d,
		}
	}
	toolPart := func(status, title string) map[string]any {
		return map[string]any{"part": map[string]any{
			"id": toolID, "sessionID": sessionID, "messageID": messageID,
			"type": "tool", "tool": "bash", "callID": callID,
			"state": map[string]any{"status": status, "title": title},
		}}
	}

	send(agent.EventSessionStatus, map[string]any{
		"sessionID": sessionID, "type": agent.SessionStatusBusy,
	})
	send(agent.EventMessageUpdated, map[string]any{"info": map[string]any{
		"id": messageID, "sessionID": sessionID, "role": "assistant",
		"modelID": "mock-model", "time": map[string]any{"created": agent.Now()},
	}})

	// Reasoning delta lands before any snapshot of its part; the relay has
	// to buffer it. The alias field exercises reasoning normalization.
	send(agent.EventMessagePartDelta, delta(reasonID, "reasoning_content", "Considering the request"))
	send(agent.EventMessagePartUpdated, map[string]any{"part": map[string]any{
		"id": reasonID, "sessionID": sessionID, "messageID": messageID,
		"type": "reasoning", "text": "",
		"time": map[string]any{"start": agent.Now()},
	}})
	send(agent.EventMessagePartDelta, delta(reasonID, "reasoning_content", ", then answering."))
	send(agent.EventMessagePartUpdated, map[string]any{"part": map[string]any{
		"id": reasonID, "sessionID": sessionID, "messageID": messageID,
		"type": "reasoning", "text": "Considering the request, then answering.",
		"time": map[string]any{"start": agent.Now(), "end": agent.Now()},
	}})

	send(agent.EventMessagePartUpdated, textPart("Here is"))
	send(agent.EventMessagePartDelta, delta(textID, "text", " what I found"))
	// Stale snapshot: a prefix of the text streamed so far. Must be dropped.
	send(agent.EventMessagePartUpdated, textPart("Here is"))
	send(agent.EventMessagePartDelta, delta(textID, "text", " in the repository."))

	send(agent.EventMessagePartUpdated, toolPart(agent.ToolStatusRunning, "ls -la"))
	send(agent.EventMessagePartUpdated, toolPart(agent.ToolStatusRunning, "ls -la")) // duplicate
	send(agent.EventPermissionAsked, map[string]any{
		"id": permID, "sessionID": sessionID, "type": "bash",
		"title": "Run ls -la",
	})
	send(agent.EventMessagePartUpdated, toolPart(agent.ToolStatusCompleted, "ls -la"))

	send(agent.EventMessageUpdated, map[string]any{"info": map[string]any{
		"id": messageID, "sessionID": sessionID, "role": "assistant",
		"modelID": "mock-model",
		"time":    map[string]any{"created": agent.Now(), "completed": agent.Now()},
	}})
	send(agent.EventSessionIdle, map[string]any{"sessionID": sessionID})
}

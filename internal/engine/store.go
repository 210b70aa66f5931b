package engine

import (
	"sync"

	"github.com/williamcory/relay/sdk/agent"
)

// Store holds the last known message and part state per session. It is owned
// by the dispatcher; readers get copies and must not expect later mutations
// to be visible through them.
type Store struct {
	mu       sync.RWMutex
	messages map[string]map[string]*agent.Message // sessionID -> messageID
	msgOrder map[string][]string                  // sessionID -> messageIDs in arrival order
	parts    map[string]*agent.Part               // sessionID:messageID:partID
	order    map[string][]string                  // sessionID:messageID -> partIDs in arrival order
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		messages: make(map[string]map[string]*agent.Message),
		msgOrder: make(map[string][]string),
		parts:    make(map[string]*agent.Part),
		order:    make(map[string][]string),
	}
}

func partKey(sessionID, messageID, partID string) string {
	return sessionID + ":" + messageID + ":" + partID
}

func messageKey(sessionID, messageID string) string {
	return sessionID + ":" + messageID
}

// PutMessage records a message snapshot.
func (s *Store) PutMessage(msg *agent.Message) {
	if msg == nil || msg.SessionID == "" || msg.ID == "" {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	byID, ok := s.messages[msg.SessionID]
	if !ok {
		byID = make(map[string]*agent.Message)
		s.messages[msg.SessionID] = byID
	}
	if _, seen := byID[msg.ID]; !seen {
		s.msgOrder[msg.SessionID] = append(s.msgOrder[msg.SessionID], msg.ID)
	}

	clone := *msg
	byID[msg.ID] = &clone
}

// Message returns a copy of a message, or nil if unknown.
func (s *Store) Message(sessionID, messageID string) *agent.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()

	msg, ok := s.messages[sessionID][messageID]
	if !ok {
		return nil
	}
	clone := *msg
	return &clone
}

// Messages returns copies of a session's messages in arrival order.
func (s *Store) Messages(sessionID string) []agent.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.msgOrder[sessionID]
	out := make([]agent.Message, 0, len(ids))
	for _, id := range ids {
		if msg, ok := s.messages[sessionID][id]; ok {
			out = append(out, *msg)
		}
	}
	return out
}

// PutPart records a part snapshot, keeping per-message insertion order.
func (s *Store) PutPart(p *agent.Part) {
	if p == nil || p.SessionID == "" || p.MessageID == "" || p.ID == "" {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := partKey(p.SessionID, p.MessageID, p.ID)
	if _, seen := s.parts[key]; !seen {
		mk := messageKey(p.SessionID, p.MessageID)
		s.order[mk] = append(s.order[mk], p.ID)
	}

	clone := *p
	s.parts[key] = &clone
}

// Part returns a copy of a part, or nil if unknown.
func (s *Store) Part(sessionID, messageID, partID string) *agent.Part {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.parts[partKey(sessionID, messageID, partID)]
	if !ok {
		return nil
	}
	clone := *p
	return &clone
}

// Parts returns copies of a message's parts in arrival order.
func (s *Store) Parts(sessionID, messageID string) []agent.Part {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.order[messageKey(sessionID, messageID)]
	out := make([]agent.Part, 0, len(ids))
	for _, id := range ids {
		if p, ok := s.parts[partKey(sessionID, messageID, id)]; ok {
			out = append(out, *p)
		}
	}
	return out
}

// RemovePart drops one part.
func (s *Store) RemovePart(sessionID, messageID, partID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.parts, partKey(sessionID, messageID, partID))

	mk := messageKey(sessionID, messageID)
	ids := s.order[mk]
	for i, id := range ids {
		if id == partID {
			s.order[mk] = append(ids[:i:i], ids[i+1:]...)
			break
		}
	}
}

// RemoveMessage drops a message and all of its parts.
func (s *Store) RemoveMessage(sessionID, messageID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if byID, ok := s.messages[sessionID]; ok {
		delete(byID, messageID)
	}
	ids := s.msgOrder[sessionID]
	for i, id := range ids {
		if id == messageID {
			s.msgOrder[sessionID] = append(ids[:i:i], ids[i+1:]...)
			break
		}
	}

	mk := messageKey(sessionID, messageID)
	for _, partID := range s.order[mk] {
		delete(s.parts, partKey(sessionID, messageID, partID))
	}
	delete(s.order, mk)
}

// ClearSession drops all state for a session.
func (s *Store) ClearSession(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, messageID := range s.msgOrder[sessionID] {
		mk := messageKey(sessionID, messageID)
		for _, partID := range s.order[mk] {
			delete(s.parts, partKey(sessionID, messageID, partID))
		}
		delete(s.order, mk)
	}
	delete(s.messages, sessionID)
	delete(s.msgOrder, sessionID)
}

package chat

import (
	"github.com/agentoven/console/pkg/models"
)

// EventType names a session change.
type EventType string

const (
	EventSessionUpdated EventType = "session.updated"
	EventSessionDeleted EventType = "session.deleted"
	EventMessageChunk   EventType = "message.chunk"
	EventSuggestions    EventType = "suggestions"
)

// SessionEvent is published on every session mutation.
type SessionEvent struct {
	Type        EventType       `json:"type"`
	SessionID   string          `json:"sessionId"`
	MessageID   string          `json:"messageId,omitempty"`
	Text        string          `json:"text,omitempty"`
	Session     *models.Session `json:"session,omitempty"`
	Suggestions []string        `json:"suggestions,omitempty"`
}

// Subscribe registers a listener for session events. Events are dropped
// for a subscriber whose buffer is full. Call the returned func to stop.
func (m *Manager) Subscribe(buffer int) (<-chan SessionEvent, func()) {
	if buffer <= 0 {
		buffer = 64
	}
	ch := make(chan SessionEvent, buffer)

	m.mu.Lock()
	id := m.nextSub
	m.nextSub++
	m.subs[id] = ch
	m.mu.Unlock()

	return ch, func() {
		m.mu.Lock()
		if c, ok := m.subs[id]; ok {
			delete(m.subs, id)
			close(c)
		}
		m.mu.Unlock()
	}
}

// publishLocked fans an event out. Caller holds m.mu.
func (m *Manager) publishLocked(ev SessionEvent) {
	for _, ch := range m.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

// publishSessionLocked publishes a snapshot of a session. Caller holds m.mu.
func (m *Manager) publishSessionLocked(s *models.Session) {
	if len(m.subs) == 0 {
		return
	}
	snap := s.Clone()
	m.publishLocked(SessionEvent{Type: EventSessionUpdated, SessionID: s.ID, Session: &snap})
}

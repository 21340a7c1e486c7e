package webchat

import (
	"context"
	"sync"
	"time"
)

// TranscriptMessage is one line of a chat session.
type TranscriptMessage struct {
	Role      string    `json:"role"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// TranscriptStore keeps per-session chat history for reconnects.
type TranscriptStore interface {
	Append(ctx context.Context, sessionID string, msg TranscriptMessage) error
	List(ctx context.Context, sessionID string, limit int) ([]TranscriptMessage, error)
}

// MemoryTranscript keeps the most recent messages of each session in
// process memory. Sessions idle longer than ttl are dropped on the next
// append.
type MemoryTranscript struct {
	mu       sync.Mutex
	sessions map[string]*transcript
	perSess  int
	ttl      time.Duration
	now      func() time.Time
}

type transcript struct {
	msgs    []TranscriptMessage
	touched time.Time
}

// NewMemoryTranscript keeps up to perSession messages for each session.
func NewMemoryTranscript(perSession int, ttl time.Duration) *MemoryTranscript {
	if perSession <= 0 {
		perSession = historyPageSize
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &MemoryTranscript{
		sessions: make(map[string]*transcript),
		perSess:  perSession,
		ttl:      ttl,
		now:      time.Now,
	}
}

func (m *MemoryTranscript) Append(_ context.Context, sessionID string, msg TranscriptMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	for id, t := range m.sessions {
		if now.Sub(t.touched) > m.ttl {
			delete(m.sessions, id)
		}
	}

	t, ok := m.sessions[sessionID]
	if !ok {
		t = &transcript{}
		m.sessions[sessionID] = t
	}
	t.msgs = append(t.msgs, msg)
	if over := len(t.msgs) - m.perSess; over > 0 {
		t.msgs = append([]TranscriptMessage(nil), t.msgs[over:]...)
	}
	t.touched = now
	return nil
}

// List returns up to limit of the newest messages, oldest first.
func (m *MemoryTranscript) List(_ context.Context, sessionID string, limit int) ([]TranscriptMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.sessions[sessionID]
	if !ok {
		return nil, nil
	}
	msgs := t.msgs
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	return append([]TranscriptMessage(nil), msgs...), nil
}

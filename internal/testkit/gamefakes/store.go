package gamefakes

import (
	"context"
	"sync"
	"time"

	"github.com/louisbranch/spinout/internal/game/domain"
	"github.com/louisbranch/spinout/internal/game/event"
	"github.com/louisbranch/spinout/internal/storage"
)

// SessionStore is a lightweight in-memory Store fake for tests that do
// not need a real database file.
type SessionStore struct {
	mu       sync.Mutex
	sessions map[string]domain.Session
	events   map[string][]event.Event
	putErr   error
}

// NewSessionStore constructs a SessionStore fake with initialized maps.
func NewSessionStore() *SessionStore {
	return &SessionStore{
		sessions: make(map[string]domain.Session),
		events:   make(map[string][]event.Event),
	}
}

// FailPutsWith makes subsequent puts return err.
func (s *SessionStore) FailPutsWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.putErr = err
}

func (s *SessionStore) PutSession(_ context.Context, session domain.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.putErr != nil {
		return s.putErr
	}
	s.sessions[session.ID] = session
	return nil
}

func (s *SessionStore) PutSessionWithTTL(ctx context.Context, session domain.Session, _ time.Duration) error {
	return s.PutSession(ctx, session)
}

func (s *SessionStore) GetSession(_ context.Context, id string) (domain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[id]
	if !ok {
		return domain.Session{}, storage.ErrNotFound
	}
	return session, nil
}

func (s *SessionStore) DeleteSession(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
	delete(s.events, id)
	return nil
}

func (s *SessionStore) ListSessionsByStatus(_ context.Context, status domain.Status) ([]domain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Session
	for _, session := range s.sessions {
		if session.Status == status {
			out = append(out, session)
		}
	}
	return out, nil
}

func (s *SessionStore) AppendEvent(_ context.Context, evt event.Event) (event.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	evt.Seq = uint64(len(s.events[evt.SessionID]) + 1)
	s.events[evt.SessionID] = append(s.events[evt.SessionID], evt)
	return evt, nil
}

func (s *SessionStore) ListEvents(_ context.Context, sessionID string) ([]event.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]event.Event, len(s.events[sessionID]))
	copy(out, s.events[sessionID])
	return out, nil
}

func (s *SessionStore) Close() error { return nil }

var _ storage.Store = (*SessionStore)(nil)

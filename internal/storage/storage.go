// Package storage defines the persistence interfaces for the game runtime.
// The store is the single source of truth after a crash; in-memory round
// state is a cache reconstructed or discarded at startup.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/louisbranch/spinout/internal/game/domain"
	"github.com/louisbranch/spinout/internal/game/event"
)

// ErrNotFound indicates a requested record is missing.
var ErrNotFound = errors.New("record not found")

// SessionStore persists session documents plus the waiting/active
// membership indices. Every Put updates the record and its index
// memberships in one atomic commit.
type SessionStore interface {
	PutSession(ctx context.Context, session domain.Session) error
	// PutSessionWithTTL persists a session that expires after ttl. Expired
	// records read as missing.
	PutSessionWithTTL(ctx context.Context, session domain.Session, ttl time.Duration) error
	GetSession(ctx context.Context, id string) (domain.Session, error)
	// DeleteSession removes the record and all index memberships. Only the
	// cancellation hard-cleanup path may call it.
	DeleteSession(ctx context.Context, id string) error
	// ListSessionsByStatus scans a status index. Used by the crash-recovery
	// path at process start.
	ListSessionsByStatus(ctx context.Context, status domain.Status) ([]domain.Session, error)
}

// EventStore persists the session lifecycle journal.
type EventStore interface {
	AppendEvent(ctx context.Context, evt event.Event) (event.Event, error)
	ListEvents(ctx context.Context, sessionID string) ([]event.Event, error)
}

// Store groups all persistence capabilities behind one handle.
type Store interface {
	SessionStore
	EventStore
	Close() error
}

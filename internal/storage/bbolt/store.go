// Package bbolt provides a BoltDB-backed implementation of the game store.
package bbolt

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/louisbranch/spinout/internal/game/domain"
	"github.com/louisbranch/spinout/internal/game/event"
	"github.com/louisbranch/spinout/internal/storage"
	"go.etcd.io/bbolt"
)

const (
	sessionBucket = "session"
	waitingBucket = "idx/waiting"
	activeBucket  = "idx/active"
	eventBucket   = "event"
)

// record wraps a session document with an optional expiry. A zero
// ExpiresAt means the record never expires.
type record struct {
	Session   domain.Session `json:"session"`
	ExpiresAt time.Time      `json:"expires_at,omitzero"`
}

// Store provides a BoltDB-backed session and event store.
type Store struct {
	db    *bbolt.DB
	clock func() time.Time
}

// Open opens a BoltDB-backed store at the provided path.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}

	cleanPath := filepath.Clean(path)
	db, err := bbolt.Open(cleanPath, 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open storage db: %w", err)
	}

	store := &Store{db: db, clock: time.Now}
	if err := store.ensureBuckets(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

// Close closes the underlying BoltDB database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// PutSession persists a session record and syncs its waiting/active index
// memberships in the same transaction.
func (s *Store) PutSession(ctx context.Context, session domain.Session) error {
	return s.putSession(ctx, session, 0)
}

// PutSessionWithTTL persists a session record that expires after ttl.
func (s *Store) PutSessionWithTTL(ctx context.Context, session domain.Session, ttl time.Duration) error {
	if ttl <= 0 {
		return fmt.Errorf("ttl must be positive")
	}
	return s.putSession(ctx, session, ttl)
}

func (s *Store) putSession(ctx context.Context, session domain.Session, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.db == nil {
		return fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(session.ID) == "" {
		return fmt.Errorf("session id is required")
	}

	rec := record{Session: session}
	if ttl > 0 {
		rec.ExpiresAt = s.clock().UTC().Add(ttl)
	}
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(sessionBucket))
		if bucket == nil {
			return fmt.Errorf("session bucket is missing")
		}
		if err := bucket.Put(sessionKey(session.ID), payload); err != nil {
			return err
		}
		return syncIndices(tx, session)
	})
}

// GetSession fetches a session record by ID. Expired records read as
// missing.
func (s *Store) GetSession(ctx context.Context, id string) (domain.Session, error) {
	if err := ctx.Err(); err != nil {
		return domain.Session{}, err
	}
	if s == nil || s.db == nil {
		return domain.Session{}, fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(id) == "" {
		return domain.Session{}, fmt.Errorf("session id is required")
	}

	var rec record
	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(sessionBucket))
		if bucket == nil {
			return fmt.Errorf("session bucket is missing")
		}
		payload := bucket.Get(sessionKey(id))
		if payload == nil {
			return storage.ErrNotFound
		}
		if err := json.Unmarshal(payload, &rec); err != nil {
			return fmt.Errorf("unmarshal session: %w", err)
		}
		return nil
	})
	if err != nil {
		return domain.Session{}, err
	}
	if s.expired(rec) {
		return domain.Session{}, storage.ErrNotFound
	}

	return rec.Session, nil
}

// DeleteSession removes a session record and its index memberships in one
// transaction. Missing records delete cleanly.
func (s *Store) DeleteSession(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.db == nil {
		return fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("session id is required")
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		key := sessionKey(id)
		for _, name := range []string{sessionBucket, waitingBucket, activeBucket} {
			bucket := tx.Bucket([]byte(name))
			if bucket == nil {
				return fmt.Errorf("%s bucket is missing", name)
			}
			if err := bucket.Delete(key); err != nil {
				return err
			}
		}
		if events := tx.Bucket([]byte(eventBucket)); events != nil {
			if events.Bucket(key) != nil {
				if err := events.DeleteBucket(key); err != nil {
					return err
				}
			}
		}
		return nil
	})
}

// ListSessionsByStatus scans a status index and returns the matching
// session documents. Dangling or expired index entries are skipped.
func (s *Store) ListSessionsByStatus(ctx context.Context, status domain.Status) ([]domain.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("storage is not configured")
	}

	var indexName string
	switch status {
	case domain.StatusWaiting:
		indexName = waitingBucket
	case domain.StatusActive:
		indexName = activeBucket
	default:
		return nil, fmt.Errorf("no index for status %s", status)
	}

	var sessions []domain.Session
	err := s.db.View(func(tx *bbolt.Tx) error {
		index := tx.Bucket([]byte(indexName))
		records := tx.Bucket([]byte(sessionBucket))
		if index == nil || records == nil {
			return fmt.Errorf("storage buckets are missing")
		}
		return index.ForEach(func(key, _ []byte) error {
			payload := records.Get(key)
			if payload == nil {
				return nil
			}
			var rec record
			if err := json.Unmarshal(payload, &rec); err != nil {
				return fmt.Errorf("unmarshal session %s: %w", key, err)
			}
			if s.expired(rec) || rec.Session.Status != status {
				return nil
			}
			sessions = append(sessions, rec.Session)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	return sessions, nil
}

// AppendEvent appends an event to the session's journal, assigning the
// next sequence number.
func (s *Store) AppendEvent(ctx context.Context, evt event.Event) (event.Event, error) {
	if err := ctx.Err(); err != nil {
		return event.Event{}, err
	}
	if s == nil || s.db == nil {
		return event.Event{}, fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(evt.SessionID) == "" {
		return event.Event{}, fmt.Errorf("session id is required")
	}

	err := s.db.Update(func(tx *bbolt.Tx) error {
		events := tx.Bucket([]byte(eventBucket))
		if events == nil {
			return fmt.Errorf("event bucket is missing")
		}
		journal, err := events.CreateBucketIfNotExists(sessionKey(evt.SessionID))
		if err != nil {
			return fmt.Errorf("create session journal: %w", err)
		}
		seq, err := journal.NextSequence()
		if err != nil {
			return fmt.Errorf("next event sequence: %w", err)
		}
		evt.Seq = seq
		payload, err := json.Marshal(evt)
		if err != nil {
			return fmt.Errorf("marshal event: %w", err)
		}
		return journal.Put(eventKey(seq), payload)
	})
	if err != nil {
		return event.Event{}, err
	}

	return evt, nil
}

// ListEvents returns a session's journal in append order.
func (s *Store) ListEvents(ctx context.Context, sessionID string) ([]event.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(sessionID) == "" {
		return nil, fmt.Errorf("session id is required")
	}

	var events []event.Event
	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(eventBucket))
		if bucket == nil {
			return fmt.Errorf("event bucket is missing")
		}
		journal := bucket.Bucket(sessionKey(sessionID))
		if journal == nil {
			return nil
		}
		return journal.ForEach(func(_, payload []byte) error {
			var evt event.Event
			if err := json.Unmarshal(payload, &evt); err != nil {
				return fmt.Errorf("unmarshal event: %w", err)
			}
			events = append(events, evt)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	return events, nil
}

// syncIndices keeps the waiting/active set memberships consistent with the
// session's status inside the caller's transaction.
func syncIndices(tx *bbolt.Tx, session domain.Session) error {
	key := sessionKey(session.ID)

	memberships := map[string]bool{
		waitingBucket: session.Status == domain.StatusWaiting,
		activeBucket:  session.Status == domain.StatusActive,
	}
	for name, member := range memberships {
		bucket := tx.Bucket([]byte(name))
		if bucket == nil {
			return fmt.Errorf("%s bucket is missing", name)
		}
		if member {
			if err := bucket.Put(key, []byte{1}); err != nil {
				return err
			}
			continue
		}
		if err := bucket.Delete(key); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) expired(rec record) bool {
	return !rec.ExpiresAt.IsZero() && !s.clock().UTC().Before(rec.ExpiresAt)
}

func (s *Store) ensureBuckets() error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		for _, name := range []string{sessionBucket, waitingBucket, activeBucket, eventBucket} {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return fmt.Errorf("create %s bucket: %w", name, err)
			}
		}
		return nil
	})
}

func sessionKey(id string) []byte {
	return []byte(id)
}

func eventKey(seq uint64) []byte {
	var key [8]byte
	binary.BigEndian.PutUint64(key[:], seq)
	return key[:]
}

var _ storage.Store = (*Store)(nil)

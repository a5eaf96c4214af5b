package bbolt

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/louisbranch/spinout/internal/game/domain"
	"github.com/louisbranch/spinout/internal/game/event"
	"github.com/louisbranch/spinout/internal/storage"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "spinout.db")
	store, err := Open(path)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func testSession(id string, status domain.Status) domain.Session {
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	return domain.Session{
		ID:       id,
		GameType: domain.GameTypeWheel,
		Status:   status,
		HostID:   "host",
		Location: "channel-1",
		Players: []domain.Player{
			{UserID: "host", DisplayName: "Host", Alive: true, Slot: 1},
		},
		MinPlayers:  2,
		MaxPlayers:  12,
		Reward:      250,
		LobbyEndsAt: now.Add(time.Minute),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func TestPutGetSession(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	session := testSession("sess-1", domain.StatusWaiting)
	if err := store.PutSession(ctx, session); err != nil {
		t.Fatalf("put session: %v", err)
	}

	loaded, err := store.GetSession(ctx, "sess-1")
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if loaded.ID != session.ID {
		t.Fatalf("expected id %q, got %q", session.ID, loaded.ID)
	}
	if loaded.Status != domain.StatusWaiting {
		t.Fatalf("expected WAITING, got %s", loaded.Status)
	}
	if len(loaded.Players) != 1 || loaded.Players[0].UserID != "host" {
		t.Fatalf("expected host roster, got %+v", loaded.Players)
	}
	if !loaded.LobbyEndsAt.Equal(session.LobbyEndsAt) {
		t.Fatalf("expected lobby deadline %v, got %v", session.LobbyEndsAt, loaded.LobbyEndsAt)
	}
}

func TestGetSessionNotFound(t *testing.T) {
	store := openTestStore(t)

	_, err := store.GetSession(context.Background(), "missing")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestIndicesFollowStatus(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	session := testSession("sess-1", domain.StatusWaiting)
	if err := store.PutSession(ctx, session); err != nil {
		t.Fatalf("put waiting: %v", err)
	}

	waiting, err := store.ListSessionsByStatus(ctx, domain.StatusWaiting)
	if err != nil {
		t.Fatalf("list waiting: %v", err)
	}
	if len(waiting) != 1 || waiting[0].ID != "sess-1" {
		t.Fatalf("expected sess-1 in waiting index, got %+v", waiting)
	}

	session.Status = domain.StatusActive
	if err := store.PutSession(ctx, session); err != nil {
		t.Fatalf("put active: %v", err)
	}

	waiting, err = store.ListSessionsByStatus(ctx, domain.StatusWaiting)
	if err != nil {
		t.Fatalf("list waiting: %v", err)
	}
	if len(waiting) != 0 {
		t.Fatalf("expected empty waiting index, got %+v", waiting)
	}
	active, err := store.ListSessionsByStatus(ctx, domain.StatusActive)
	if err != nil {
		t.Fatalf("list active: %v", err)
	}
	if len(active) != 1 || active[0].ID != "sess-1" {
		t.Fatalf("expected sess-1 in active index, got %+v", active)
	}

	session.Status = domain.StatusCompleted
	if err := store.PutSession(ctx, session); err != nil {
		t.Fatalf("put completed: %v", err)
	}
	active, err = store.ListSessionsByStatus(ctx, domain.StatusActive)
	if err != nil {
		t.Fatalf("list active: %v", err)
	}
	if len(active) != 0 {
		t.Fatalf("expected empty active index after completion, got %+v", active)
	}
}

func TestDeleteSessionRemovesRecordAndIndices(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	session := testSession("sess-1", domain.StatusWaiting)
	if err := store.PutSession(ctx, session); err != nil {
		t.Fatalf("put session: %v", err)
	}
	if _, err := store.AppendEvent(ctx, event.Event{SessionID: "sess-1", Type: event.TypeSessionCreated}); err != nil {
		t.Fatalf("append event: %v", err)
	}

	if err := store.DeleteSession(ctx, "sess-1"); err != nil {
		t.Fatalf("delete session: %v", err)
	}

	if _, err := store.GetSession(ctx, "sess-1"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
	waiting, err := store.ListSessionsByStatus(ctx, domain.StatusWaiting)
	if err != nil {
		t.Fatalf("list waiting: %v", err)
	}
	if len(waiting) != 0 {
		t.Fatalf("expected empty waiting index after delete, got %+v", waiting)
	}
	events, err := store.ListEvents(ctx, "sess-1")
	if err != nil {
		t.Fatalf("list events: %v", err)
	}
	if len(events) != 0 {
		t.Fatalf("expected journal removed, got %d events", len(events))
	}

	// Deleting again is a clean no-op.
	if err := store.DeleteSession(ctx, "sess-1"); err != nil {
		t.Fatalf("double delete: %v", err)
	}
}

func TestPutSessionWithTTLExpires(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	store.clock = func() time.Time { return now }

	session := testSession("sess-1", domain.StatusWaiting)
	if err := store.PutSessionWithTTL(ctx, session, time.Hour); err != nil {
		t.Fatalf("put session with ttl: %v", err)
	}

	if _, err := store.GetSession(ctx, "sess-1"); err != nil {
		t.Fatalf("get before expiry: %v", err)
	}

	store.clock = func() time.Time { return now.Add(2 * time.Hour) }
	if _, err := store.GetSession(ctx, "sess-1"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after expiry, got %v", err)
	}
	waiting, err := store.ListSessionsByStatus(ctx, domain.StatusWaiting)
	if err != nil {
		t.Fatalf("list waiting: %v", err)
	}
	if len(waiting) != 0 {
		t.Fatalf("expected expired session skipped in scans, got %+v", waiting)
	}
}

func TestPutSessionWithTTLRejectsNonPositive(t *testing.T) {
	store := openTestStore(t)
	if err := store.PutSessionWithTTL(context.Background(), testSession("sess-1", domain.StatusWaiting), 0); err == nil {
		t.Fatal("expected error for zero ttl")
	}
}

func TestAppendAndListEvents(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	for i, eventType := range []event.Type{event.TypeSessionCreated, event.TypePlayerJoined, event.TypeSessionStarted} {
		evt, err := store.AppendEvent(ctx, event.Event{
			SessionID: "sess-1",
			Type:      eventType,
			Timestamp: time.Date(2026, 3, 14, 12, i, 0, 0, time.UTC),
		})
		if err != nil {
			t.Fatalf("append %s: %v", eventType, err)
		}
		if evt.Seq != uint64(i+1) {
			t.Fatalf("expected seq %d, got %d", i+1, evt.Seq)
		}
	}

	events, err := store.ListEvents(ctx, "sess-1")
	if err != nil {
		t.Fatalf("list events: %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("expected 3 events, got %d", len(events))
	}
	for i, evt := range events {
		if evt.Seq != uint64(i+1) {
			t.Fatalf("expected append order, got seq %d at index %d", evt.Seq, i)
		}
	}

	// Journals are per session.
	other, err := store.ListEvents(ctx, "sess-2")
	if err != nil {
		t.Fatalf("list other: %v", err)
	}
	if len(other) != 0 {
		t.Fatalf("expected empty journal for other session, got %d", len(other))
	}
}

func TestOpenRequiresPath(t *testing.T) {
	if _, err := Open("  "); err == nil {
		t.Fatal("expected error for empty path")
	}
}

func TestSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "spinout.db")
	store, err := Open(path)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	ctx := context.Background()
	if err := store.PutSession(ctx, testSession("sess-1", domain.StatusActive)); err != nil {
		t.Fatalf("put session: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened, err := Open(path)
	if err != nil {
		t.Fatalf("reopen store: %v", err)
	}
	defer reopened.Close()

	active, err := reopened.ListSessionsByStatus(ctx, domain.StatusActive)
	if err != nil {
		t.Fatalf("list active: %v", err)
	}
	if len(active) != 1 || active[0].ID != "sess-1" {
		t.Fatalf("expected sess-1 recoverable after reopen, got %+v", active)
	}
}

package service

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/louisbranch/spinout/internal/game/domain"
	"github.com/louisbranch/spinout/internal/game/lock"
	"github.com/louisbranch/spinout/internal/platform/errors"
	"github.com/louisbranch/spinout/internal/platform/timeouts"
	"github.com/louisbranch/spinout/internal/storage/bbolt"
)

func newTestService(t *testing.T) (*Service, *bbolt.Store) {
	t.Helper()
	store, err := bbolt.Open(filepath.Join(t.TempDir(), "spinout.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	svc := NewService(Stores{Sessions: store, Events: store}, lock.NewManager(timeouts.SessionLock))
	return svc, store
}

func createWheel(t *testing.T, svc *Service, hostID string) domain.Session {
	t.Helper()
	session, err := svc.Create(context.Background(), domain.CreateSessionInput{
		GameType: domain.GameTypeWheel,
		Host:     domain.PlayerInput{UserID: hostID, DisplayName: hostID},
		Location: "channel-1",
	})
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	return session
}

func TestCreatePersistsWaitingLobby(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	session := createWheel(t, svc, "host")

	if session.Status != domain.StatusWaiting {
		t.Fatalf("expected WAITING, got %s", session.Status)
	}
	if len(session.Players) != 1 || session.Players[0].Slot != 1 {
		t.Fatalf("expected host at slot 1, got %+v", session.Players)
	}
	if session.UIVersion == 0 {
		t.Fatal("expected ui version to be bumped on create")
	}
	if session.LobbyEndsAt.IsZero() {
		t.Fatal("expected absolute lobby deadline")
	}

	stored, err := svc.Get(ctx, session.ID)
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if stored.ID != session.ID {
		t.Fatalf("stored session mismatch: %s", stored.ID)
	}

	events, err := store.ListEvents(ctx, session.ID)
	if err != nil {
		t.Fatalf("list events: %v", err)
	}
	if len(events) != 1 || events[0].Type != "session.created" {
		t.Fatalf("expected one created event, got %+v", events)
	}
}

func TestJoinHonorsPreferredSlot(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	session := createWheel(t, svc, "host")

	joined, err := svc.Join(ctx, session.ID, domain.PlayerInput{UserID: "p2"}, 5)
	if err != nil {
		t.Fatalf("join: %v", err)
	}
	player := joined.Player("p2")
	if player == nil || player.Slot != 5 {
		t.Fatalf("expected p2 at slot 5, got %+v", player)
	}
	if joined.UIVersion <= session.UIVersion {
		t.Fatal("expected join to bump ui version")
	}
}

func TestJoinUnknownSession(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Join(context.Background(), "missing", domain.PlayerInput{UserID: "p2"}, 0)
	if errors.CodeOf(err) != errors.CodeSessionNotFound {
		t.Fatalf("expected SESSION_NOT_FOUND, got %v", err)
	}
}

func TestLeaveRemovesPlayer(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	session := createWheel(t, svc, "host")
	if _, err := svc.Join(ctx, session.ID, domain.PlayerInput{UserID: "p2"}, 0); err != nil {
		t.Fatalf("join: %v", err)
	}

	left, err := svc.Leave(ctx, session.ID, "p2")
	if err != nil {
		t.Fatalf("leave: %v", err)
	}
	if left.Player("p2") != nil {
		t.Fatal("expected p2 removed from roster")
	}

	if _, err := svc.Leave(ctx, session.ID, "stranger"); errors.CodeOf(err) != errors.CodeNotInGame {
		t.Fatalf("expected NOT_IN_GAME, got %v", err)
	}
}

func TestStartBelowMinimumDeletesSession(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	session := createWheel(t, svc, "host")

	_, err := svc.Start(ctx, session.ID)
	if errors.CodeOf(err) != errors.CodeNotEnoughPlayers {
		t.Fatalf("expected NOT_ENOUGH_PLAYERS, got %v", err)
	}

	if _, err := svc.Get(ctx, session.ID); errors.CodeOf(err) != errors.CodeSessionNotFound {
		t.Fatalf("expected session deleted after failed start, got %v", err)
	}
}

func TestStartMovesSessionToActiveIndex(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	session := createWheel(t, svc, "host")
	if _, err := svc.Join(ctx, session.ID, domain.PlayerInput{UserID: "p2"}, 0); err != nil {
		t.Fatalf("join: %v", err)
	}

	started, err := svc.Start(ctx, session.ID)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if started.Status != domain.StatusActive || started.Phase != domain.PhaseActive {
		t.Fatalf("expected ACTIVE session, got status=%s phase=%s", started.Status, started.Phase)
	}

	waiting, err := svc.ListWaiting(ctx)
	if err != nil {
		t.Fatalf("list waiting: %v", err)
	}
	for _, w := range waiting {
		if w.ID == session.ID {
			t.Fatal("started session still listed as waiting")
		}
	}

	active, err := svc.ListActive(ctx)
	if err != nil {
		t.Fatalf("list active: %v", err)
	}
	found := false
	for _, a := range active {
		if a.ID == session.ID {
			found = true
		}
	}
	if !found {
		t.Fatal("started session not listed as active")
	}
}

func TestEndIsTerminal(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	session := createWheel(t, svc, "host")
	if _, err := svc.Join(ctx, session.ID, domain.PlayerInput{UserID: "p2"}, 0); err != nil {
		t.Fatalf("join: %v", err)
	}
	if _, err := svc.Start(ctx, session.ID); err != nil {
		t.Fatalf("start: %v", err)
	}

	ended, err := svc.End(ctx, session.ID, "p2", domain.StatusCompleted, "winner")
	if err != nil {
		t.Fatalf("end: %v", err)
	}
	if ended.Status != domain.StatusCompleted || ended.WinnerID != "p2" {
		t.Fatalf("unexpected terminal state: %+v", ended)
	}

	active, err := svc.ListActive(ctx)
	if err != nil {
		t.Fatalf("list active: %v", err)
	}
	for _, a := range active {
		if a.ID == session.ID {
			t.Fatal("ended session still listed as active")
		}
	}

	if _, err := svc.End(ctx, session.ID, "", domain.StatusCancelled, "again"); errors.CodeOf(err) != errors.CodeInvalidTransition {
		t.Fatalf("expected INVALID_TRANSITION, got %v", err)
	}
}

func TestUpdatePersistsMutation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	session := createWheel(t, svc, "host")

	updated, err := svc.Update(ctx, session.ID, func(_ context.Context, s *domain.Session) error {
		s.RoundNumber = 3
		return nil
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.RoundNumber != 3 {
		t.Fatalf("expected round number 3, got %d", updated.RoundNumber)
	}

	stored, err := svc.Get(ctx, session.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if stored.RoundNumber != 3 || stored.UIVersion <= session.UIVersion {
		t.Fatalf("mutation not persisted: %+v", stored)
	}
}

func TestUpdateErrorDoesNotPersist(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	session := createWheel(t, svc, "host")

	_, err := svc.Update(ctx, session.ID, func(_ context.Context, s *domain.Session) error {
		s.RoundNumber = 9
		return errors.New(errors.CodeNotYourTurn, "rejected")
	})
	if errors.CodeOf(err) != errors.CodeNotYourTurn {
		t.Fatalf("expected NOT_YOUR_TURN, got %v", err)
	}

	stored, err := svc.Get(ctx, session.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if stored.RoundNumber != 0 {
		t.Fatal("rejected mutation was persisted")
	}
}

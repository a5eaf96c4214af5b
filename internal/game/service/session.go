// Package service implements the session lifecycle operations. Every
// mutation runs under the session's advisory lock, persists the full
// document atomically with its index updates, and bumps the UI version.
package service

import (
	"context"
	"log"
	"time"

	"github.com/louisbranch/spinout/internal/game/domain"
	"github.com/louisbranch/spinout/internal/game/event"
	"github.com/louisbranch/spinout/internal/game/lock"
	"github.com/louisbranch/spinout/internal/platform/errors"
	"github.com/louisbranch/spinout/internal/platform/id"
	"github.com/louisbranch/spinout/internal/platform/timeouts"
	"github.com/louisbranch/spinout/internal/storage"
)

// Stores groups the storage interfaces the service depends on.
type Stores struct {
	Sessions storage.SessionStore
	Events   storage.EventStore
}

// Service coordinates session lifecycle mutations.
type Service struct {
	stores  Stores
	locks   *lock.Manager
	emitter *event.Emitter

	now         func() time.Time
	idGenerator func() (string, error)
}

// NewService creates a session service. locks must be the process-wide
// manager shared with the round engine so all mutators serialize.
func NewService(stores Stores, locks *lock.Manager) *Service {
	return &Service{
		stores:      stores,
		locks:       locks,
		emitter:     event.NewEmitter(stores.Events),
		now:         time.Now,
		idGenerator: id.NewID,
	}
}

// Create opens a new lobby with the host auto-joined. The lobby deadline
// is persisted as an absolute timestamp.
func (s *Service) Create(ctx context.Context, input domain.CreateSessionInput) (domain.Session, error) {
	if s == nil || s.stores.Sessions == nil {
		return domain.Session{}, errors.New(errors.CodeUnknown, "session store is not configured")
	}
	if input.LobbyCountdown <= 0 {
		input.LobbyCountdown = timeouts.LobbyCountdown
	}

	session, err := domain.CreateSession(input, s.now, s.idGenerator)
	if err != nil {
		return domain.Session{}, err
	}
	session.Bump()

	if err := s.stores.Sessions.PutSession(ctx, session); err != nil {
		return domain.Session{}, errors.Wrap(errors.CodeUnknown, "persist session", err)
	}

	if _, err := s.emitter.EmitCreated(ctx, session.ID, event.CreatedPayload{
		GameType:    session.GameType,
		HostID:      session.HostID,
		Location:    session.Location,
		LobbyEndsAt: session.LobbyEndsAt,
	}); err != nil {
		log.Printf("emit session created failed session=%s error=%v", session.ID, err)
	}

	log.Printf("session created id=%s game=%s host=%s", session.ID, session.GameType, session.HostID)
	return session, nil
}

// Join adds a player to a waiting lobby, honoring the preferred slot when
// free.
func (s *Service) Join(ctx context.Context, sessionID string, input domain.PlayerInput, preferredSlot int) (domain.Session, error) {
	var joined domain.Session
	err := s.withSession(ctx, sessionID, func(ctx context.Context, session *domain.Session) error {
		player, err := session.Join(input, preferredSlot)
		if err != nil {
			return err
		}
		if err := s.persist(ctx, session); err != nil {
			return err
		}
		if _, err := s.emitter.EmitPlayerJoined(ctx, session.ID, event.PlayerJoinedPayload{
			UserID:      player.UserID,
			DisplayName: player.DisplayName,
			Slot:        player.Slot,
		}); err != nil {
			log.Printf("emit player joined failed session=%s error=%v", session.ID, err)
		}
		joined = *session
		return nil
	})
	return joined, err
}

// Leave removes a player from a waiting lobby.
func (s *Service) Leave(ctx context.Context, sessionID, userID string) (domain.Session, error) {
	var left domain.Session
	err := s.withSession(ctx, sessionID, func(ctx context.Context, session *domain.Session) error {
		if err := session.Leave(userID); err != nil {
			return err
		}
		if err := s.persist(ctx, session); err != nil {
			return err
		}
		if _, err := s.emitter.EmitPlayerLeft(ctx, session.ID, event.PlayerLeftPayload{
			UserID: userID,
		}); err != nil {
			log.Printf("emit player left failed session=%s error=%v", session.ID, err)
		}
		left = *session
		return nil
	})
	return left, err
}

// Start transitions a waiting lobby to active play. A lobby that cannot
// start is deleted so an expired countdown never leaves a stale record.
func (s *Service) Start(ctx context.Context, sessionID string) (domain.Session, error) {
	var started domain.Session
	err := s.withSession(ctx, sessionID, func(ctx context.Context, session *domain.Session) error {
		if err := session.Start(s.now); err != nil {
			if errors.CodeOf(err) == errors.CodeNotEnoughPlayers {
				if delErr := s.stores.Sessions.DeleteSession(ctx, session.ID); delErr != nil {
					log.Printf("delete unstartable session failed session=%s error=%v", session.ID, delErr)
				}
			}
			return err
		}
		if err := s.persist(ctx, session); err != nil {
			return err
		}
		if _, err := s.emitter.EmitStarted(ctx, session.ID, event.StartedPayload{
			PlayerCount: len(session.Players),
		}); err != nil {
			log.Printf("emit session started failed session=%s error=%v", session.ID, err)
		}
		log.Printf("session started id=%s players=%d", session.ID, len(session.Players))
		started = *session
		return nil
	})
	return started, err
}

// End moves the session to a terminal status and schedules the record for
// expiry after the retention window.
func (s *Service) End(ctx context.Context, sessionID, winnerID string, to domain.Status, reason string) (domain.Session, error) {
	var ended domain.Session
	err := s.withSession(ctx, sessionID, func(ctx context.Context, session *domain.Session) error {
		if err := session.End(winnerID, to, reason, s.now); err != nil {
			return err
		}
		if err := s.persist(ctx, session); err != nil {
			return err
		}
		if _, err := s.emitter.EmitEnded(ctx, session.ID, event.EndedPayload{
			Status:   session.Status.String(),
			WinnerID: session.WinnerID,
			Reason:   session.EndReason,
		}); err != nil {
			log.Printf("emit session ended failed session=%s error=%v", session.ID, err)
		}
		log.Printf("session ended id=%s status=%s winner=%s reason=%s",
			session.ID, session.Status, session.WinnerID, session.EndReason)
		ended = *session
		return nil
	})
	return ended, err
}

// Get fetches a session by id.
func (s *Service) Get(ctx context.Context, sessionID string) (domain.Session, error) {
	return s.load(ctx, sessionID)
}

// ListWaiting returns all sessions with open lobbies.
func (s *Service) ListWaiting(ctx context.Context) ([]domain.Session, error) {
	return s.stores.Sessions.ListSessionsByStatus(ctx, domain.StatusWaiting)
}

// ListActive returns all sessions currently in play.
func (s *Service) ListActive(ctx context.Context) ([]domain.Session, error) {
	return s.stores.Sessions.ListSessionsByStatus(ctx, domain.StatusActive)
}

// Update runs fn against the session under its lock and persists the
// mutated document. The round engine uses it for mid-round state writes.
func (s *Service) Update(ctx context.Context, sessionID string, fn func(ctx context.Context, session *domain.Session) error) (domain.Session, error) {
	var updated domain.Session
	err := s.withSession(ctx, sessionID, func(ctx context.Context, session *domain.Session) error {
		if err := fn(ctx, session); err != nil {
			return err
		}
		if err := s.persist(ctx, session); err != nil {
			return err
		}
		updated = *session
		return nil
	})
	return updated, err
}

// Emitter exposes the journal emitter for collaborators that record
// round-level events.
func (s *Service) Emitter() *event.Emitter {
	return s.emitter
}

// Delete removes the session record unconditionally. Reserved for hard
// cleanup; normal teardown keeps terminal records until retention expires.
func (s *Service) Delete(ctx context.Context, sessionID string) error {
	if s == nil || s.stores.Sessions == nil {
		return errors.New(errors.CodeUnknown, "session store is not configured")
	}
	return s.stores.Sessions.DeleteSession(ctx, sessionID)
}

func (s *Service) withSession(ctx context.Context, sessionID string, fn func(ctx context.Context, session *domain.Session) error) error {
	if s == nil || s.stores.Sessions == nil {
		return errors.New(errors.CodeUnknown, "session store is not configured")
	}
	if s.locks == nil {
		return errors.New(errors.CodeUnknown, "lock manager is not configured")
	}

	return s.locks.Do(ctx, sessionID, func(ctx context.Context) error {
		session, err := s.load(ctx, sessionID)
		if err != nil {
			return err
		}
		return fn(ctx, &session)
	})
}

func (s *Service) load(ctx context.Context, sessionID string) (domain.Session, error) {
	session, err := s.stores.Sessions.GetSession(ctx, sessionID)
	if err != nil {
		if err == storage.ErrNotFound {
			return domain.Session{}, errors.WithMetadata(errors.CodeSessionNotFound,
				"session not found", map[string]string{"session_id": sessionID})
		}
		return domain.Session{}, errors.Wrap(errors.CodeUnknown, "load session", err)
	}
	return session, nil
}

// persist bumps the UI version, refreshes the timestamp, and writes the
// document. Terminal sessions are written with the retention TTL.
func (s *Service) persist(ctx context.Context, session *domain.Session) error {
	session.Bump()
	session.Touch(s.now)
	var err error
	if session.Status.Terminal() {
		err = s.stores.Sessions.PutSessionWithTTL(ctx, *session, timeouts.TerminalRetention)
	} else {
		err = s.stores.Sessions.PutSession(ctx, *session)
	}
	if err != nil {
		return errors.Wrap(errors.CodeUnknown, "persist session", err)
	}
	return nil
}

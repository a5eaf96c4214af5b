// Package cancel is the unified teardown path. Every abnormal exit goes
// through CancelEverywhere so no combination of crash, timeout, or race
// leaves a ghost session behind. Hard cleanup is the only way session
// records are deleted outside the failed-start rule.
package cancel

import (
	"context"
	"log"

	"github.com/louisbranch/spinout/internal/game/domain"
	"github.com/louisbranch/spinout/internal/platform/errors"
	"github.com/louisbranch/spinout/internal/presenter"
)

// Rounds is the slice of the round engine the canceller needs.
type Rounds interface {
	DestroyRound(sessionID string) bool
}

// Sessions is the slice of the session service the canceller needs.
type Sessions interface {
	Get(ctx context.Context, sessionID string) (domain.Session, error)
	End(ctx context.Context, sessionID, winnerID string, to domain.Status, reason string) (domain.Session, error)
	Delete(ctx context.Context, sessionID string) error
}

// Result reports which teardown sub-steps actually executed.
type Result struct {
	// RoundDestroyed is true when in-memory round state existed and was
	// torn down.
	RoundDestroyed bool
	// Ended is true when the session transitioned to CANCELLED here.
	Ended bool
	// AlreadyGone is true when the session was missing or already
	// terminal; both count as success.
	AlreadyGone bool
	// StoreFallback is true when ending failed and the record was removed
	// directly from the store instead.
	StoreFallback bool
	// HardDeleted is true when the record and its index memberships were
	// removed unconditionally.
	HardDeleted bool
}

// Service tears sessions down across the engine, the session service, and
// the store.
type Service struct {
	rounds   Rounds
	sessions Sessions
	present  presenter.Presenter
}

// NewService creates a cancellation service.
func NewService(rounds Rounds, sessions Sessions, present presenter.Presenter) *Service {
	return &Service{rounds: rounds, sessions: sessions, present: present}
}

// CancelEverywhere destroys the session's in-memory round, ends the
// session, and optionally hard-deletes the record. A missing or already
// terminal session is success, not an error. With hardCleanup the record
// is removed regardless of how the end step fared.
func (s *Service) CancelEverywhere(ctx context.Context, sessionID, reason string, hardCleanup bool) (Result, error) {
	var result Result
	if s == nil || s.sessions == nil {
		return result, errors.New(errors.CodeUnknown, "cancellation is not configured")
	}

	if s.rounds != nil {
		result.RoundDestroyed = s.rounds.DestroyRound(sessionID)
	}

	ended, err := s.sessions.End(ctx, sessionID, "", domain.StatusCancelled, reason)
	switch {
	case err == nil:
		result.Ended = true
		presenter.Render(ctx, s.present, ended, presenter.ViewCancelled)
	case errors.CodeOf(err) == errors.CodeSessionNotFound,
		errors.CodeOf(err) == errors.CodeInvalidTransition:
		result.AlreadyGone = true
	default:
		// Ending failed for a real reason; fall back to removing the
		// record directly so nothing lingers half-cancelled.
		log.Printf("end session failed, store fallback session=%s error=%v", sessionID, err)
		result.StoreFallback = true
		if delErr := s.sessions.Delete(ctx, sessionID); delErr != nil && !hardCleanup {
			return result, errors.Wrap(errors.CodeUnknown, "store fallback cleanup", delErr)
		}
	}

	if hardCleanup {
		if err := s.sessions.Delete(ctx, sessionID); err != nil {
			return result, errors.Wrap(errors.CodeUnknown, "hard cleanup", err)
		}
		result.HardDeleted = true
	}

	log.Printf("session cancelled id=%s reason=%s hard=%t ended=%t gone=%t",
		sessionID, reason, hardCleanup, result.Ended, result.AlreadyGone)
	return result, nil
}

package engine

import (
	"context"
	"log"
	"strconv"
	"time"

	"github.com/louisbranch/spinout/internal/game/domain"
	"github.com/louisbranch/spinout/internal/game/event"
	"github.com/louisbranch/spinout/internal/game/timer"
	"github.com/louisbranch/spinout/internal/platform/errors"
	"github.com/louisbranch/spinout/internal/presenter"
	"github.com/louisbranch/spinout/internal/random"
)

// errStaleTimer marks a timer callback that lost the race against an
// explicit action. It never leaves this file.
var errStaleTimer = errors.New(errors.CodeNotYourTurn, "selection already resolved")

// runWheel drives one elimination-wheel session to a single winner:
// SPINNING and KICK_SELECTION loop while three or more players remain,
// the final round begins at exactly two, and GAME_END records the winner.
func (e *Engine) runWheel(r *round) {
	defer e.DestroyRound(r.sessionID)

	for {
		done, err := e.wheelStep(r)
		if err != nil {
			if r.ctx.Err() != nil {
				// Torn down externally; the canceller owns cleanup.
				return
			}
			log.Printf("wheel step failed session=%s error=%v", r.sessionID, err)
			e.fatal(r.sessionID, "round processing failed")
			return
		}
		if done {
			return
		}
	}
}

// wheelStep advances the session by one round. It reports done when the
// session reached a terminal state.
func (e *Engine) wheelStep(r *round) (bool, error) {
	ctx := r.ctx

	session, err := e.sessions.Get(ctx, r.sessionID)
	if err != nil {
		if errors.CodeOf(err) == errors.CodeSessionNotFound {
			return true, nil
		}
		return false, err
	}
	if session.Status != domain.StatusActive {
		return true, nil
	}

	alive := session.AlivePlayers()
	switch {
	case len(alive) <= 1:
		winnerID := ""
		if len(alive) == 1 {
			winnerID = alive[0].UserID
		}
		return true, e.finish(ctx, r, winnerID, "last player standing", false)
	case len(alive) == 2:
		return true, e.runFinalRound(r)
	}

	spun, err := e.sessions.Update(ctx, r.sessionID, func(_ context.Context, s *domain.Session) error {
		s.Phase = domain.PhaseSpinning
		s.RoundNumber++
		s.SelectorID = ""
		s.RoundDeadline = time.Time{}
		return nil
	})
	if err != nil {
		return false, err
	}
	presenter.Render(ctx, e.present, spun, presenter.ViewSpin)

	if err := timer.Sleep(ctx, e.spinDelay); err != nil {
		return false, err
	}

	resolved := r.beginSelection()
	armed, err := e.sessions.Update(ctx, r.sessionID, func(_ context.Context, s *domain.Session) error {
		alive := s.AlivePlayers()
		// Draw uniformly over players alive right now, not the original
		// roster.
		idx, err := random.IntN(len(alive))
		if err != nil {
			return err
		}
		s.Phase = domain.PhaseKickSelection
		s.SelectorID = alive[idx].UserID
		s.RoundDeadline = time.Now().UTC().Add(e.kickDeadline)
		return nil
	})
	if err != nil {
		return false, err
	}
	presenter.Render(ctx, e.present, armed, presenter.ViewKickPrompt)

	gen := armed.RoundNumber
	r.setTimer(timer.Start(e.kickDeadline, func() { e.kickTimeout(r, gen) }, timer.Options{
		Label:       "kick selection",
		WarningLead: e.kickWarnLead,
		OnWarning:   func() { e.kickWarning(r, gen) },
	}))

	select {
	case <-resolved:
	case <-ctx.Done():
		r.clearTimer()
		return false, ctx.Err()
	}
	r.clearTimer()

	r.mu.Lock()
	resolutions := r.resolutions
	timedOut := r.timedOut
	r.mu.Unlock()

	after, err := e.sessions.Get(ctx, r.sessionID)
	if err != nil {
		return false, err
	}
	actorID := ""
	if len(resolutions) > 0 {
		actorID = resolutions[0].ActorID
	}
	if _, err := e.sessions.Emitter().EmitRoundResolved(ctx, r.sessionID, actorID, event.RoundResolvedPayload{
		Round:       after.RoundNumber,
		TimedOut:    timedOut,
		Resolutions: resolutions,
		AliveCount:  len(after.AlivePlayers()),
	}); err != nil {
		log.Printf("emit round resolved failed session=%s error=%v", r.sessionID, err)
	}
	presenter.Render(ctx, e.present, after, presenter.ViewRoundResult)
	return false, nil
}

// kickTimeout eliminates the selector when the deadline expires. It
// re-checks phase and round under the lock; losing the race to an
// explicit kick is a no-op.
func (e *Engine) kickTimeout(r *round, gen int) {
	_, err := e.sessions.Update(r.ctx, r.sessionID, func(_ context.Context, s *domain.Session) error {
		if s.Phase != domain.PhaseKickSelection || s.RoundNumber != gen {
			return errStaleTimer
		}
		selector := s.Player(s.SelectorID)
		if selector == nil || !selector.Alive {
			return errStaleTimer
		}
		selector.Alive = false
		r.mu.Lock()
		r.resolutions = append(r.resolutions, domain.Resolution{
			ActorID:      selector.UserID,
			TargetID:     selector.UserID,
			EliminatedID: selector.UserID,
		})
		r.timedOut = true
		r.mu.Unlock()

		s.Phase = domain.PhaseActive
		s.SelectorID = ""
		s.RoundDeadline = time.Time{}
		return nil
	})
	if err != nil {
		if errors.CodeOf(err) == errors.CodeNotYourTurn || r.ctx.Err() != nil {
			return
		}
		log.Printf("kick timeout failed session=%s error=%v", r.sessionID, err)
	}
	r.signalResolved()
}

// kickWarning renders the pre-deadline nudge if the selection is still
// open.
func (e *Engine) kickWarning(r *round, gen int) {
	session, err := e.sessions.Get(r.ctx, r.sessionID)
	if err != nil {
		return
	}
	if session.Phase != domain.PhaseKickSelection || session.RoundNumber != gen {
		return
	}
	presenter.Render(r.ctx, e.present, session, presenter.ViewKickWarning)
}

// runFinalRound settles the two-survivor showdown. Roles are drawn at
// random each attempt; a defended outcome repeats the round up to the
// retry cap, after which a random survivor wins and the anomaly is
// surfaced.
func (e *Engine) runFinalRound(r *round) error {
	ctx := r.ctx

	for attempt := 1; attempt <= finalRoundRetryCap; attempt++ {
		entered, err := e.sessions.Update(ctx, r.sessionID, func(_ context.Context, s *domain.Session) error {
			s.Phase = domain.PhaseFinalRound
			s.RoundNumber++
			s.SelectorID = ""
			s.RoundDeadline = time.Time{}
			return nil
		})
		if err != nil {
			return err
		}
		presenter.Render(ctx, e.present, entered, presenter.ViewFinalRound)

		if err := timer.Sleep(ctx, e.spinDelay); err != nil {
			return err
		}

		var resolution domain.Resolution
		winnerID := ""
		updated, err := e.sessions.Update(ctx, r.sessionID, func(_ context.Context, s *domain.Session) error {
			alive := s.AlivePlayers()
			if len(alive) == 1 {
				winnerID = alive[0].UserID
				return nil
			}
			if len(alive) != 2 {
				return errors.WithMetadata(errors.CodeInvalidTransition,
					"final round requires two survivors",
					map[string]string{"alive": strconv.Itoa(len(alive))})
			}
			idx, err := random.IntN(2)
			if err != nil {
				return err
			}
			actor, target := alive[idx], alive[1-idx]
			res, err := s.ResolveKick(actor.UserID, target.UserID)
			if err != nil {
				return err
			}
			resolution = res
			return nil
		})
		if err != nil {
			return err
		}
		if winnerID != "" {
			return e.finish(ctx, r, winnerID, "last player standing", false)
		}

		if _, err := e.sessions.Emitter().EmitRoundResolved(ctx, r.sessionID, resolution.ActorID, event.RoundResolvedPayload{
			Round:       updated.RoundNumber,
			Resolutions: []domain.Resolution{resolution},
			AliveCount:  len(updated.AlivePlayers()),
		}); err != nil {
			log.Printf("emit round resolved failed session=%s error=%v", r.sessionID, err)
		}
		presenter.Render(ctx, e.present, updated, presenter.ViewRoundResult)

		if !resolution.NobodyEliminated() {
			survivors := updated.AlivePlayers()
			if len(survivors) != 1 {
				return errors.New(errors.CodeUnknown, "final round ended without a single survivor")
			}
			return e.finish(ctx, r, survivors[0].UserID, "last player standing", false)
		}
		// Both defended; spin again.
	}

	// Retry cap exhausted: both players kept defending. Draw a winner at
	// random and surface the anomaly instead of looping forever.
	session, err := e.sessions.Get(ctx, r.sessionID)
	if err != nil {
		return err
	}
	alive := session.AlivePlayers()
	if len(alive) == 0 {
		return errors.New(errors.CodeUnknown, "final round has no survivors")
	}
	idx, err := random.IntN(len(alive))
	if err != nil {
		return err
	}
	winnerID := alive[idx].UserID
	log.Printf("final round anomaly session=%s attempts=%d winner=%s",
		r.sessionID, finalRoundRetryCap, winnerID)
	if _, err := e.sessions.Emitter().EmitRoundResolved(ctx, r.sessionID, winnerID, event.RoundResolvedPayload{
		Round:      session.RoundNumber,
		AliveCount: len(alive),
		Anomaly:    true,
	}); err != nil {
		log.Printf("emit round resolved failed session=%s error=%v", r.sessionID, err)
	}
	return e.finish(ctx, r, winnerID, "final round retry cap reached; winner drawn at random", true)
}

// finish records the terminal state and pays the winner. Payout failures
// produce a delayed-payout notice, never silence.
func (e *Engine) finish(ctx context.Context, r *round, winnerID, reason string, anomaly bool) error {
	ended, err := e.sessions.End(ctx, r.sessionID, winnerID, domain.StatusCompleted, reason)
	if err != nil {
		switch errors.CodeOf(err) {
		case errors.CodeInvalidTransition, errors.CodeSessionNotFound:
			// Already ended or cleaned up by a concurrent canceller.
			return nil
		}
		return err
	}
	if anomaly {
		log.Printf("session completed with anomaly session=%s reason=%s", r.sessionID, reason)
	}
	if winnerID == "" {
		presenter.Render(ctx, e.present, ended, presenter.ViewCancelled)
		return nil
	}

	payoutDone := false
	_, err = e.sessions.Update(ctx, r.sessionID, func(ctx context.Context, s *domain.Session) error {
		result, err := e.rewards.Award(ctx, s, []string{winnerID}, s.Reward)
		if err != nil {
			return err
		}
		payoutDone = result.Done
		return nil
	})
	if err != nil {
		log.Printf("payout attempt failed session=%s winner=%s error=%v", r.sessionID, winnerID, err)
		presenter.Render(ctx, e.present, ended, presenter.ViewPayoutDelayed)
		return nil
	}

	if payoutDone {
		presenter.Render(ctx, e.present, ended, presenter.ViewWinner)
	} else {
		presenter.Render(ctx, e.present, ended, presenter.ViewPayoutDelayed)
	}
	return nil
}

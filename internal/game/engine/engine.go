// Package engine drives active sessions through rounds to a single
// winner. Round state lives in memory keyed by session id; the persisted
// session document is the source of truth after a crash, so rounds are
// created explicitly and discarded, never reconstructed blindly.
package engine

import (
	"context"
	"log"
	"strconv"
	"sync"
	"time"

	"github.com/louisbranch/spinout/internal/economy"
	"github.com/louisbranch/spinout/internal/game/domain"
	"github.com/louisbranch/spinout/internal/game/reward"
	"github.com/louisbranch/spinout/internal/game/service"
	"github.com/louisbranch/spinout/internal/game/timer"
	"github.com/louisbranch/spinout/internal/platform/errors"
	"github.com/louisbranch/spinout/internal/platform/timeouts"
	"github.com/louisbranch/spinout/internal/presenter"
)

// finalRoundRetryCap bounds how many times the final round repeats when
// both survivors keep defending. On exhaustion a random survivor wins and
// the anomaly is surfaced.
const finalRoundRetryCap = 10

// Engine owns the in-memory round registry and the per-game-type round
// runners.
type Engine struct {
	sessions *service.Service
	rewards  *reward.Service
	economy  economy.Economy
	present  presenter.Presenter

	// onFatal tears the session down everywhere when a round run hits an
	// unrecoverable error. Wired by the runtime to the cancellation
	// service; nil falls back to destroying the round locally.
	onFatal func(sessionID, reason string)

	mu       sync.Mutex
	rounds   map[string]*round
	variants map[domain.GameType]func(*round)

	// Timing knobs, overridable in tests.
	spinDelay    time.Duration
	kickDeadline time.Duration
	kickWarnLead time.Duration
}

// New creates a round engine. sessions must share its lock manager with
// every other session mutator in the process.
func New(sessions *service.Service, rewards *reward.Service, eco economy.Economy, present presenter.Presenter) *Engine {
	e := &Engine{
		sessions:     sessions,
		rewards:      rewards,
		economy:      eco,
		present:      present,
		rounds:       make(map[string]*round),
		spinDelay:    timeouts.SpinDelay,
		kickDeadline: timeouts.KickSelection,
		kickWarnLead: timeouts.KickWarningLead,
	}
	e.variants = map[domain.GameType]func(*round){
		domain.GameTypeWheel: e.runWheel,
	}
	return e
}

// SetFatalHandler wires the teardown path invoked when a round run fails.
func (e *Engine) SetFatalHandler(fn func(sessionID, reason string)) {
	e.onFatal = fn
}

// round is the in-memory state of one running game. Everything here is a
// cache; the persisted session document outlives it.
type round struct {
	sessionID string
	ctx       context.Context
	cancel    context.CancelFunc

	mu            sync.Mutex
	timer         *timer.Timer
	resolvedC     chan struct{}
	resolutions   []domain.Resolution
	timedOut      bool
	pendingSecond bool
	firstTarget   string
}

// beginSelection resets per-selection state and returns the channel the
// run loop waits on.
func (r *round) beginSelection() chan struct{} {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.resolvedC = make(chan struct{})
	r.resolutions = nil
	r.timedOut = false
	r.pendingSecond = false
	r.firstTarget = ""
	return r.resolvedC
}

// signalResolved wakes the run loop. Safe to call once per selection.
func (r *round) signalResolved() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.resolvedC != nil {
		close(r.resolvedC)
		r.resolvedC = nil
	}
}

func (r *round) setTimer(t *timer.Timer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.timer != nil {
		r.timer.Clear()
	}
	r.timer = t
}

func (r *round) clearTimer() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.timer != nil {
		r.timer.Clear()
		r.timer = nil
	}
}

// CreateRound registers in-memory round state for an active session and
// starts its run loop. Creating a round that already exists is a no-op.
func (e *Engine) CreateRound(ctx context.Context, session domain.Session) error {
	if session.Status != domain.StatusActive {
		return errors.WithMetadata(errors.CodeInvalidTransition,
			"round requires an active session",
			map[string]string{"status": session.Status.String()})
	}
	run, ok := e.variants[session.GameType]
	if !ok {
		return errors.WithMetadata(errors.CodeGameTypeUnknown,
			"no round runner for game type",
			map[string]string{"game_type": string(session.GameType)})
	}

	e.mu.Lock()
	if _, exists := e.rounds[session.ID]; exists {
		e.mu.Unlock()
		return nil
	}
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	r := &round{sessionID: session.ID, ctx: runCtx, cancel: cancel}
	e.rounds[session.ID] = r
	e.mu.Unlock()

	go func() {
		defer func() {
			if v := recover(); v != nil {
				log.Printf("round run panic session=%s panic=%v", session.ID, v)
				e.fatal(session.ID, "internal error")
			}
		}()
		run(r)
	}()
	return nil
}

// DestroyRound cancels the session's round run, clears its timers, and
// drops it from the registry. It reports whether a round existed and is
// idempotent.
func (e *Engine) DestroyRound(sessionID string) bool {
	e.mu.Lock()
	r, ok := e.rounds[sessionID]
	if ok {
		delete(e.rounds, sessionID)
	}
	e.mu.Unlock()
	if !ok {
		return false
	}
	r.cancel()
	r.clearTimer()
	r.signalResolved()
	return true
}

// HasRound reports whether in-memory round state exists for the session.
func (e *Engine) HasRound(sessionID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.rounds[sessionID]
	return ok
}

func (e *Engine) lookup(sessionID string) (*round, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	r, ok := e.rounds[sessionID]
	if !ok {
		return nil, errors.WithMetadata(errors.CodeSessionNotFound,
			"no running round for session",
			map[string]string{"session_id": sessionID})
	}
	return r, nil
}

// fatal tears the session down after an unrecoverable round error.
func (e *Engine) fatal(sessionID, reason string) {
	if e.onFatal != nil {
		e.onFatal(sessionID, reason)
		return
	}
	log.Printf("round fatal session=%s reason=%s", sessionID, reason)
	e.DestroyRound(sessionID)
}

// HandleKick applies the selector's choice for the current round. Stale
// phases, wrong actors, and ineligible targets are rejected without
// mutating state.
func (e *Engine) HandleKick(ctx context.Context, sessionID, actorID, targetID string) error {
	r, err := e.lookup(sessionID)
	if err != nil {
		return err
	}

	pending := false
	_, err = e.sessions.Update(ctx, sessionID, func(_ context.Context, s *domain.Session) error {
		// Re-check everything under the lock; a timeout may have resolved
		// this selection while the action was queued.
		if s.Phase != domain.PhaseKickSelection {
			return errors.WithMetadata(errors.CodeNotYourTurn,
				"no kick selection in progress",
				map[string]string{"phase": string(s.Phase)})
		}
		if s.SelectorID != actorID {
			return errors.New(errors.CodeNotYourTurn, "a different player is selecting")
		}
		actor := s.Player(actorID)
		if actor == nil {
			return errors.New(errors.CodeNotInGame, "actor is not in this session")
		}
		if !actor.Alive {
			return errors.New(errors.CodeAlreadyEliminated, "actor has been eliminated")
		}

		r.mu.Lock()
		secondKick := r.pendingSecond
		firstTarget := r.firstTarget
		r.mu.Unlock()
		if secondKick && targetID == firstTarget {
			return errors.New(errors.CodeInvalidTarget,
				"double kick cannot target the same player twice")
		}

		resolution, err := s.ResolveKick(actorID, targetID)
		if err != nil {
			return err
		}

		chainSecond := false
		if !secondKick && actor.Alive && actor.HasPerk(domain.PerkDoubleKick) {
			// Arm the second kick only when a distinct target remains.
			for _, p := range s.AlivePlayers() {
				if p.UserID != actorID && p.UserID != targetID {
					chainSecond = true
					break
				}
			}
			if chainSecond {
				actor.ConsumePerk(domain.PerkDoubleKick)
			}
		}

		r.mu.Lock()
		r.resolutions = append(r.resolutions, resolution)
		if chainSecond {
			r.pendingSecond = true
			r.firstTarget = targetID
		}
		r.mu.Unlock()

		if !chainSecond {
			s.Phase = domain.PhaseActive
			s.SelectorID = ""
			s.RoundDeadline = time.Time{}
		}
		pending = chainSecond
		return nil
	})
	if err != nil {
		return err
	}
	if !pending {
		r.clearTimer()
		r.signalResolved()
	}
	return nil
}

// BuyPerk spends through the economy collaborator and grants the perk.
// An insufficient balance never mutates game state.
func (e *Engine) BuyPerk(ctx context.Context, sessionID, userID string, perk domain.Perk) (int64, error) {
	if e.economy == nil {
		return 0, errors.New(errors.CodeUnknown, "economy is not configured")
	}

	var balance int64
	_, err := e.sessions.Update(ctx, sessionID, func(ctx context.Context, s *domain.Session) error {
		if s.Status != domain.StatusActive {
			return errors.WithMetadata(errors.CodeInvalidTransition,
				"perks can only be bought during play",
				map[string]string{"status": s.Status.String()})
		}
		player := s.Player(userID)
		if player == nil {
			return errors.New(errors.CodeNotInGame, "user is not in this session")
		}
		if !player.Alive {
			return errors.New(errors.CodeAlreadyEliminated, "eliminated players cannot buy perks")
		}
		if player.HasPerk(perk) {
			return errors.WithMetadata(errors.CodeInvalidTarget,
				"perk already owned",
				map[string]string{"perk": string(perk)})
		}

		rules, err := domain.RulesFor(s.GameType)
		if err != nil {
			return err
		}
		price, ok := rules.PerkPrices[perk]
		if !ok {
			return errors.WithMetadata(errors.CodeInvalidTarget,
				"unknown perk",
				map[string]string{"perk": string(perk)})
		}

		newBalance, err := e.economy.Spend(ctx, userID, price, "perk:"+string(perk))
		if err != nil {
			return err
		}
		balance = newBalance
		player.GrantPerk(perk)
		log.Printf("perk bought session=%s user=%s perk=%s price=%s",
			s.ID, userID, perk, strconv.FormatInt(price, 10))
		return nil
	})
	if err != nil {
		return 0, err
	}
	return balance, nil
}

// Package gamed wires the game runtime together: storage, locks, session
// service, round engine, reward ledger, cancellation, and the lobby
// countdown orchestration that moves sessions from WAITING into play.
package gamed

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/louisbranch/spinout/internal/game/cancel"
	"github.com/louisbranch/spinout/internal/game/domain"
	"github.com/louisbranch/spinout/internal/game/engine"
	"github.com/louisbranch/spinout/internal/game/service"
	"github.com/louisbranch/spinout/internal/game/timer"
	"github.com/louisbranch/spinout/internal/platform/errors"
	"github.com/louisbranch/spinout/internal/platform/timeouts"
	"github.com/louisbranch/spinout/internal/presenter"
)

// App coordinates session lifecycle orchestration on top of the core
// services. It owns the lobby countdown timers; round timers belong to
// the engine.
type App struct {
	sessions  *service.Service
	engine    *engine.Engine
	canceller *cancel.Service
	present   presenter.Presenter

	lobbyCountdown time.Duration

	mu      sync.Mutex
	lobbies map[string]*timer.Timer
}

// New assembles the orchestration layer. The engine's fatal handler is
// wired here so unrecoverable round errors tear the session down
// everywhere.
func New(sessions *service.Service, eng *engine.Engine, canceller *cancel.Service, present presenter.Presenter, lobbyCountdown time.Duration) *App {
	if lobbyCountdown <= 0 {
		lobbyCountdown = timeouts.LobbyCountdown
	}
	a := &App{
		sessions:       sessions,
		engine:         eng,
		canceller:      canceller,
		present:        present,
		lobbyCountdown: lobbyCountdown,
		lobbies:        make(map[string]*timer.Timer),
	}
	eng.SetFatalHandler(func(sessionID, reason string) {
		ctx, cancelFn := context.WithTimeout(context.Background(), timeouts.Shutdown)
		defer cancelFn()
		if _, err := a.canceller.CancelEverywhere(ctx, sessionID, reason, true); err != nil {
			log.Printf("fatal teardown failed session=%s error=%v", sessionID, err)
		}
		a.clearLobbyTimer(sessionID)
	})
	return a
}

// CreateSession opens a lobby and arms its countdown.
func (a *App) CreateSession(ctx context.Context, gameType domain.GameType, host domain.PlayerInput, location string) (domain.Session, error) {
	session, err := a.sessions.Create(ctx, domain.CreateSessionInput{
		GameType:       gameType,
		Host:           host,
		Location:       location,
		LobbyCountdown: a.lobbyCountdown,
	})
	if err != nil {
		return domain.Session{}, err
	}
	a.armLobbyTimer(session)
	presenter.Render(ctx, a.present, session, presenter.ViewLobby)
	return session, nil
}

// Join adds a player to a lobby.
func (a *App) Join(ctx context.Context, sessionID string, player domain.PlayerInput, preferredSlot int) (domain.Session, error) {
	session, err := a.sessions.Join(ctx, sessionID, player, preferredSlot)
	if err != nil {
		return domain.Session{}, err
	}
	presenter.Render(ctx, a.present, session, presenter.ViewLobby)
	return session, nil
}

// Leave removes a player from a lobby. The host leaving, or the roster
// emptying, cancels the session.
func (a *App) Leave(ctx context.Context, sessionID, userID string) (domain.Session, error) {
	session, err := a.sessions.Leave(ctx, sessionID, userID)
	if err != nil {
		return domain.Session{}, err
	}

	if userID == session.HostID || len(session.Players) == 0 {
		reason := "host left"
		if userID != session.HostID {
			reason = "lobby is empty"
		}
		a.clearLobbyTimer(sessionID)
		if _, err := a.canceller.CancelEverywhere(ctx, sessionID, reason, false); err != nil {
			return domain.Session{}, err
		}
		return a.sessions.Get(ctx, sessionID)
	}

	presenter.Render(ctx, a.present, session, presenter.ViewLobby)
	return session, nil
}

// Start moves a lobby into play and registers its round. A start that
// fails for lack of players has already deleted the session. The lobby
// countdown is cleared only once the start is known to have removed the
// session from WAITING; a transient failure (a busy lock, a store error)
// leaves the countdown armed so the lobby still expires on schedule.
func (a *App) Start(ctx context.Context, sessionID string) (domain.Session, error) {
	session, err := a.sessions.Start(ctx, sessionID)
	if err != nil {
		if errors.CodeOf(err) == errors.CodeNotEnoughPlayers {
			a.clearLobbyTimer(sessionID)
		}
		return domain.Session{}, err
	}
	a.clearLobbyTimer(sessionID)
	if err := a.engine.CreateRound(ctx, session); err != nil {
		return domain.Session{}, err
	}
	return session, nil
}

// Cancel tears the session down everywhere.
func (a *App) Cancel(ctx context.Context, sessionID, reason string, hard bool) (cancel.Result, error) {
	a.clearLobbyTimer(sessionID)
	return a.canceller.CancelEverywhere(ctx, sessionID, reason, hard)
}

// armLobbyTimer schedules the countdown from the session's persisted
// absolute deadline, so re-arming after a restart keeps the original
// closing time.
func (a *App) armLobbyTimer(session domain.Session) {
	remaining := time.Until(session.LobbyEndsAt)
	if remaining <= 0 {
		remaining = time.Millisecond
	}
	sessionID := session.ID
	t := timer.Start(remaining, func() { a.lobbyExpired(sessionID) }, timer.Options{Label: "lobby countdown"})

	a.mu.Lock()
	if old := a.lobbies[sessionID]; old != nil {
		old.Clear()
	}
	a.lobbies[sessionID] = t
	a.mu.Unlock()
}

func (a *App) clearLobbyTimer(sessionID string) {
	a.mu.Lock()
	if t := a.lobbies[sessionID]; t != nil {
		t.Clear()
		delete(a.lobbies, sessionID)
	}
	a.mu.Unlock()
}

// lobbyExpired auto-starts a full-enough lobby or tears it down. The
// failed-start path deletes the session record.
func (a *App) lobbyExpired(sessionID string) {
	a.clearLobbyTimer(sessionID)
	ctx, cancelFn := context.WithTimeout(context.Background(), timeouts.Shutdown)
	defer cancelFn()

	session, err := a.sessions.Get(ctx, sessionID)
	if err != nil {
		return
	}
	if session.Status != domain.StatusWaiting {
		return
	}

	if _, err := a.Start(ctx, sessionID); err != nil {
		if errors.CodeOf(err) == errors.CodeNotEnoughPlayers {
			log.Printf("lobby expired without enough players session=%s", sessionID)
			presenter.Render(ctx, a.present, session, presenter.ViewCancelled)
			return
		}
		log.Printf("lobby auto-start failed session=%s error=%v", sessionID, err)
		if _, cErr := a.canceller.CancelEverywhere(ctx, sessionID, "auto-start failed", true); cErr != nil {
			log.Printf("lobby teardown failed session=%s error=%v", sessionID, cErr)
		}
	}
}

// Recover reconciles persisted state at process start. Waiting lobbies
// with a live deadline get their countdown re-armed from the stored
// timestamp; expired lobbies and every previously active session are
// cancelled everywhere with hard cleanup, because in-memory round state
// did not survive.
func (a *App) Recover(ctx context.Context) error {
	waiting, err := a.sessions.ListWaiting(ctx)
	if err != nil {
		return errors.Wrap(errors.CodeUnknown, "scan waiting sessions", err)
	}
	for _, session := range waiting {
		if time.Now().Before(session.LobbyEndsAt) {
			log.Printf("recovery re-armed lobby session=%s ends_at=%s", session.ID, session.LobbyEndsAt.Format(time.RFC3339))
			a.armLobbyTimer(session)
			continue
		}
		log.Printf("recovery cancelling expired lobby session=%s", session.ID)
		if _, err := a.canceller.CancelEverywhere(ctx, session.ID, "recovered after restart", true); err != nil {
			log.Printf("recovery cancel failed session=%s error=%v", session.ID, err)
		}
	}

	active, err := a.sessions.ListActive(ctx)
	if err != nil {
		return errors.Wrap(errors.CodeUnknown, "scan active sessions", err)
	}
	for _, session := range active {
		log.Printf("recovery cancelling interrupted game session=%s", session.ID)
		if _, err := a.canceller.CancelEverywhere(ctx, session.ID, "interrupted by restart", true); err != nil {
			log.Printf("recovery cancel failed session=%s error=%v", session.ID, err)
		}
	}
	return nil
}

// Shutdown stops all lobby countdowns. In-flight rounds are torn down by
// their contexts when the process exits; persisted state is recovered on
// the next start.
func (a *App) Shutdown() {
	a.mu.Lock()
	timers := a.lobbies
	a.lobbies = make(map[string]*timer.Timer)
	a.mu.Unlock()
	for _, t := range timers {
		t.Clear()
	}
}

package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/louisbranch/spinout/internal/platform/errors"
	"github.com/louisbranch/spinout/internal/platform/id"
)

// Status describes the lifecycle state of a session.
type Status int

const (
	// StatusUnspecified represents an invalid session status value.
	StatusUnspecified Status = iota
	// StatusWaiting indicates the lobby is open and accepting players.
	StatusWaiting
	// StatusActive indicates rounds are being played.
	StatusActive
	// StatusCompleted indicates the session ended with a winner.
	StatusCompleted
	// StatusCancelled indicates the session was aborted.
	StatusCancelled
)

// String returns the canonical name for a status.
func (s Status) String() string {
	switch s {
	case StatusWaiting:
		return "WAITING"
	case StatusActive:
		return "ACTIVE"
	case StatusCompleted:
		return "COMPLETED"
	case StatusCancelled:
		return "CANCELLED"
	default:
		return "UNSPECIFIED"
	}
}

// Terminal reports whether the status is an end state.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// CanTransitionTo reports whether the status may move to next. Transitions
// are monotonic: WAITING→ACTIVE→COMPLETED, with WAITING|ACTIVE→CANCELLED
// and WAITING→COMPLETED permitted for degenerate single-player ends.
func (s Status) CanTransitionTo(next Status) bool {
	switch s {
	case StatusWaiting:
		return next == StatusActive || next == StatusCompleted || next == StatusCancelled
	case StatusActive:
		return next == StatusCompleted || next == StatusCancelled
	default:
		return false
	}
}

// Phase is the fine-grained sub-state within an ACTIVE session. It is
// meaningful only while Status is ACTIVE.
type Phase string

const (
	// PhaseNone is the phase of a session that is not active.
	PhaseNone Phase = ""
	// PhaseActive is the neutral phase between rounds.
	PhaseActive Phase = "ACTIVE"
	// PhaseSpinning is the pre-draw animation window.
	PhaseSpinning Phase = "SPINNING"
	// PhaseKickSelection is the window in which the selector picks a target.
	PhaseKickSelection Phase = "KICK_SELECTION"
	// PhaseFinalRound is the two-survivor showdown.
	PhaseFinalRound Phase = "FINAL_ROUND"
	// PhaseGameEnd is the terminal phase once a winner is known.
	PhaseGameEnd Phase = "GAME_END"
)

// GameType selects which round engine variant governs a session.
type GameType string

const (
	// GameTypeWheel is the last-player-standing elimination wheel.
	GameTypeWheel GameType = "wheel"
)

// Rules bounds a game type's roster and prices its reward and perks.
type Rules struct {
	MinPlayers int
	MaxPlayers int
	Reward     int64
	PerkPrices map[Perk]int64
}

// RulesFor returns the rules governing a game type.
func RulesFor(gameType GameType) (Rules, error) {
	switch gameType {
	case GameTypeWheel:
		return Rules{
			MinPlayers: 2,
			MaxPlayers: 12,
			Reward:     250,
			PerkPrices: map[Perk]int64{
				PerkShield:     100,
				PerkExtraLife:  150,
				PerkDoubleKick: 200,
			},
		}, nil
	default:
		return Rules{}, errors.WithMetadata(errors.CodeGameTypeUnknown,
			fmt.Sprintf("unknown game type %q", gameType),
			map[string]string{"game_type": string(gameType)})
	}
}

// Player is a participant within a session.
type Player struct {
	UserID      string        `json:"user_id"`
	DisplayName string        `json:"display_name"`
	Alive       bool          `json:"alive"`
	Slot        int           `json:"slot"`
	Perks       map[Perk]bool `json:"perks,omitempty"`
}

// HasPerk reports whether the player currently owns the perk.
func (p *Player) HasPerk(perk Perk) bool {
	return p.Perks[perk]
}

// GrantPerk adds a perk to the player's set.
func (p *Player) GrantPerk(perk Perk) {
	if p.Perks == nil {
		p.Perks = make(map[Perk]bool)
	}
	p.Perks[perk] = true
}

// ConsumePerk removes a perk from the player's set and reports whether it
// was present.
func (p *Player) ConsumePerk(perk Perk) bool {
	if !p.Perks[perk] {
		return false
	}
	delete(p.Perks, perk)
	return true
}

// Ledger tracks payout progress for a session's winners. It is embedded in
// the session document so payout state survives restarts atomically with
// the session itself.
type Ledger struct {
	PayoutDone bool     `json:"payout_done"`
	PaidIDs    []string `json:"paid_ids,omitempty"`
	FailedIDs  []string `json:"failed_ids,omitempty"`
}

// Session is one game instance from creation to terminal state.
type Session struct {
	ID            string    `json:"id"`
	GameType      GameType  `json:"game_type"`
	Status        Status    `json:"status"`
	Phase         Phase     `json:"phase,omitempty"`
	HostID        string    `json:"host_id"`
	Location      string    `json:"location"`
	Players       []Player  `json:"players"`
	MinPlayers    int       `json:"min_players"`
	MaxPlayers    int       `json:"max_players"`
	Reward        int64     `json:"reward"`
	LobbyEndsAt   time.Time `json:"lobby_ends_at"`
	RoundDeadline time.Time `json:"round_deadline,omitzero"`
	RoundNumber   int       `json:"round_number"`
	SelectorID    string    `json:"selector_id,omitempty"`
	WinnerID      string    `json:"winner_id,omitempty"`
	EndReason     string    `json:"end_reason,omitempty"`
	UIVersion     uint64    `json:"ui_version"`
	Ledger        Ledger    `json:"ledger"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// PlayerInput identifies a joining user.
type PlayerInput struct {
	UserID      string
	DisplayName string
}

// CreateSessionInput describes the metadata needed to create a session.
type CreateSessionInput struct {
	GameType GameType
	Host     PlayerInput
	Location string
	// LobbyCountdown sets how long the lobby stays open. The deadline is
	// persisted as an absolute timestamp so it survives a restart.
	LobbyCountdown time.Duration
}

// CreateSession creates a new WAITING session with the host auto-joined at
// slot 1.
func CreateSession(input CreateSessionInput, now func() time.Time, idGenerator func() (string, error)) (Session, error) {
	if now == nil {
		now = time.Now
	}
	if idGenerator == nil {
		idGenerator = id.NewID
	}

	rules, err := RulesFor(input.GameType)
	if err != nil {
		return Session{}, err
	}
	normalized, err := normalizePlayerInput(input.Host)
	if err != nil {
		return Session{}, err
	}

	sessionID, err := idGenerator()
	if err != nil {
		return Session{}, fmt.Errorf("generate session id: %w", err)
	}

	createdAt := now().UTC()
	return Session{
		ID:       sessionID,
		GameType: input.GameType,
		Status:   StatusWaiting,
		HostID:   normalized.UserID,
		Location: strings.TrimSpace(input.Location),
		Players: []Player{{
			UserID:      normalized.UserID,
			DisplayName: normalized.DisplayName,
			Alive:       true,
			Slot:        1,
		}},
		MinPlayers:  rules.MinPlayers,
		MaxPlayers:  rules.MaxPlayers,
		Reward:      rules.Reward,
		LobbyEndsAt: createdAt.Add(input.LobbyCountdown),
		CreatedAt:   createdAt,
		UpdatedAt:   createdAt,
	}, nil
}

// Join adds a player to a WAITING session, assigning the preferred slot if
// it is free and in range, otherwise the lowest free slot.
func (s *Session) Join(input PlayerInput, preferredSlot int) (Player, error) {
	normalized, err := normalizePlayerInput(input)
	if err != nil {
		return Player{}, err
	}
	if s.Status != StatusWaiting {
		return Player{}, errors.WithMetadata(errors.CodeGameAlreadyStarted,
			"session is no longer accepting players",
			map[string]string{"status": s.Status.String()})
	}
	if len(s.Players) >= s.MaxPlayers {
		return Player{}, errors.WithMetadata(errors.CodeGameFull,
			"session roster is full",
			map[string]string{"max_players": strconv.Itoa(s.MaxPlayers)})
	}
	if s.Player(normalized.UserID) != nil {
		return Player{}, errors.New(errors.CodeAlreadyInGame, "user already joined this session")
	}

	slot := s.allocateSlot(preferredSlot)
	player := Player{
		UserID:      normalized.UserID,
		DisplayName: normalized.DisplayName,
		Alive:       true,
		Slot:        slot,
	}
	s.Players = append(s.Players, player)
	return player, nil
}

// Leave removes a player from a WAITING session.
func (s *Session) Leave(userID string) error {
	if s.Status != StatusWaiting {
		return errors.WithMetadata(errors.CodeGameAlreadyStarted,
			"session has already started",
			map[string]string{"status": s.Status.String()})
	}
	for i, p := range s.Players {
		if p.UserID == userID {
			s.Players = append(s.Players[:i], s.Players[i+1:]...)
			return nil
		}
	}
	return errors.New(errors.CodeNotInGame, "user is not in this session")
}

// Start transitions a WAITING session to ACTIVE once the roster meets the
// minimum. The caller is responsible for deleting the session when Start
// fails with NOT_ENOUGH_PLAYERS; an expired lobby may never linger.
func (s *Session) Start(now func() time.Time) error {
	if now == nil {
		now = time.Now
	}
	if s.Status != StatusWaiting {
		return errors.WithMetadata(errors.CodeInvalidTransition,
			"session cannot start",
			map[string]string{"from": s.Status.String()})
	}
	if len(s.Players) < s.MinPlayers {
		return errors.WithMetadata(errors.CodeNotEnoughPlayers,
			"not enough players to start",
			map[string]string{
				"required": strconv.Itoa(s.MinPlayers),
				"current":  strconv.Itoa(len(s.Players)),
			})
	}
	s.Status = StatusActive
	s.Phase = PhaseActive
	for i := range s.Players {
		s.Players[i].Alive = true
	}
	s.UpdatedAt = now().UTC()
	return nil
}

// End transitions the session to a terminal status, recording the winner
// and reason. Ending an already terminal session fails with
// INVALID_TRANSITION carrying the offending from status.
func (s *Session) End(winnerID string, to Status, reason string, now func() time.Time) error {
	if now == nil {
		now = time.Now
	}
	if to != StatusCompleted && to != StatusCancelled {
		return errors.WithMetadata(errors.CodeInvalidTransition,
			fmt.Sprintf("cannot end into %s", to),
			map[string]string{"from": s.Status.String(), "to": to.String()})
	}
	if !s.Status.CanTransitionTo(to) {
		return errors.WithMetadata(errors.CodeInvalidTransition,
			"session is already terminal",
			map[string]string{"from": s.Status.String(), "to": to.String()})
	}
	s.Status = to
	s.Phase = PhaseGameEnd
	s.WinnerID = winnerID
	s.EndReason = strings.TrimSpace(reason)
	s.RoundDeadline = time.Time{}
	s.SelectorID = ""
	s.UpdatedAt = now().UTC()
	return nil
}

// Player returns the roster entry for a user, or nil when absent.
func (s *Session) Player(userID string) *Player {
	for i := range s.Players {
		if s.Players[i].UserID == userID {
			return &s.Players[i]
		}
	}
	return nil
}

// AlivePlayers returns the players still in the game, in join order.
func (s *Session) AlivePlayers() []Player {
	alive := make([]Player, 0, len(s.Players))
	for _, p := range s.Players {
		if p.Alive {
			alive = append(alive, p)
		}
	}
	return alive
}

// Bump increments the UI version counter. It is called on every externally
// visible mutation and never decremented or reused.
func (s *Session) Bump() {
	s.UIVersion++
}

// Touch refreshes the update timestamp.
func (s *Session) Touch(now func() time.Time) {
	if now == nil {
		now = time.Now
	}
	s.UpdatedAt = now().UTC()
}

// allocateSlot honors the preferred slot when free and in range, falling
// back to the lowest free seat.
func (s *Session) allocateSlot(preferred int) int {
	taken := make(map[int]bool, len(s.Players))
	for _, p := range s.Players {
		taken[p.Slot] = true
	}
	if preferred >= 1 && preferred <= s.MaxPlayers && !taken[preferred] {
		return preferred
	}
	for slot := 1; slot <= s.MaxPlayers; slot++ {
		if !taken[slot] {
			return slot
		}
	}
	// Unreachable while the roster bound holds; Join checks fullness first.
	return len(s.Players) + 1
}

func normalizePlayerInput(input PlayerInput) (PlayerInput, error) {
	input.UserID = strings.TrimSpace(input.UserID)
	if input.UserID == "" {
		return PlayerInput{}, errors.New(errors.CodeInvalidTarget, "user id is required")
	}
	input.DisplayName = strings.TrimSpace(input.DisplayName)
	if input.DisplayName == "" {
		input.DisplayName = input.UserID
	}
	return input, nil
}

// Package event defines the session lifecycle journal. Events are facts a
// presentation layer can re-render from without re-deriving game logic;
// each carries the session id and a minimal diff.
package event

import (
	"encoding/json"
	"time"

	"github.com/louisbranch/spinout/internal/game/domain"
)

// Type identifies the type of a session event.
type Type string

const (
	// TypeSessionCreated records the creation of a session lobby.
	TypeSessionCreated Type = "session.created"
	// TypePlayerJoined records a player joining the lobby.
	TypePlayerJoined Type = "session.player_joined"
	// TypePlayerLeft records a player leaving the lobby.
	TypePlayerLeft Type = "session.player_left"
	// TypeSessionStarted records the transition to active play.
	TypeSessionStarted Type = "session.started"
	// TypeRoundResolved records the outcome of one round.
	TypeRoundResolved Type = "session.round_resolved"
	// TypeSessionEnded records the terminal transition.
	TypeSessionEnded Type = "session.ended"
)

// Event is one journal entry. Seq is assigned by the store on append and
// is strictly increasing per session.
type Event struct {
	Seq       uint64          `json:"seq"`
	SessionID string          `json:"session_id"`
	Type      Type            `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	ActorID   string          `json:"actor_id,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// CreatedPayload describes a new lobby.
type CreatedPayload struct {
	GameType    domain.GameType `json:"game_type"`
	HostID      string          `json:"host_id"`
	Location    string          `json:"location"`
	LobbyEndsAt time.Time       `json:"lobby_ends_at"`
}

// PlayerJoinedPayload describes a roster addition.
type PlayerJoinedPayload struct {
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
	Slot        int    `json:"slot"`
}

// PlayerLeftPayload describes a roster removal.
type PlayerLeftPayload struct {
	UserID string `json:"user_id"`
}

// StartedPayload describes the lobby-to-active transition.
type StartedPayload struct {
	PlayerCount int `json:"player_count"`
}

// RoundResolvedPayload describes one resolved round. Anomaly marks a
// final round settled by a random draw after the retry cap.
type RoundResolvedPayload struct {
	Round       int                 `json:"round"`
	TimedOut    bool                `json:"timed_out,omitempty"`
	Resolutions []domain.Resolution `json:"resolutions,omitempty"`
	AliveCount  int                 `json:"alive_count"`
	Anomaly     bool                `json:"anomaly,omitempty"`
}

// EndedPayload describes the terminal transition.
type EndedPayload struct {
	Status   string `json:"status"`
	WinnerID string `json:"winner_id,omitempty"`
	Reason   string `json:"reason,omitempty"`
}

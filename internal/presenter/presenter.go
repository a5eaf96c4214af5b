// Package presenter defines the rendering boundary. The runtime reports
// what happened; how that becomes messages, embeds, or animations is the
// adapter's concern. Rendering is best effort and never blocks game flow.
package presenter

import (
	"context"
	"log"

	"github.com/louisbranch/spinout/internal/game/domain"
)

// View names a renderable moment in a session's life.
type View string

const (
	// ViewLobby shows the open lobby roster and countdown.
	ViewLobby View = "lobby"
	// ViewSpin shows the wheel spinning before a selector is drawn.
	ViewSpin View = "spin"
	// ViewKickPrompt asks the selector to pick a target.
	ViewKickPrompt View = "kick_prompt"
	// ViewKickWarning nudges a selector nearing the deadline.
	ViewKickWarning View = "kick_warning"
	// ViewRoundResult shows who was eliminated, saved, or reflected.
	ViewRoundResult View = "round_result"
	// ViewFinalRound announces the two-survivor showdown.
	ViewFinalRound View = "final_round"
	// ViewWinner announces the winner and the reward.
	ViewWinner View = "winner"
	// ViewPayoutDelayed tells a winner the payout is recorded but pending.
	ViewPayoutDelayed View = "payout_delayed"
	// ViewCancelled announces the session was torn down.
	ViewCancelled View = "cancelled"
)

// Presenter renders a session snapshot for a view.
type Presenter interface {
	Render(ctx context.Context, session domain.Session, view View) error
}

// Render invokes the presenter and logs failures instead of propagating
// them. A nil presenter is a no-op.
func Render(ctx context.Context, p Presenter, session domain.Session, view View) {
	if p == nil {
		return
	}
	if err := p.Render(ctx, session, view); err != nil {
		log.Printf("render failed session=%s view=%s error=%v", session.ID, view, err)
	}
}

// Package discord renders session views as Discord channel messages. The
// session's Location field carries the channel id.
package discord

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/louisbranch/spinout/internal/game/domain"
	"github.com/louisbranch/spinout/internal/presenter"
)

// Presenter posts plain-text renderings of session views to the session's
// channel.
type Presenter struct {
	session *discordgo.Session
}

// New creates a Discord presenter from a bot token.
func New(token string) (*Presenter, error) {
	if strings.TrimSpace(token) == "" {
		return nil, fmt.Errorf("discord token is required")
	}
	s, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("create discord session: %w", err)
	}
	return &Presenter{session: s}, nil
}

// Open connects the underlying gateway session.
func (p *Presenter) Open() error {
	return p.session.Open()
}

// Close disconnects the gateway session.
func (p *Presenter) Close() error {
	return p.session.Close()
}

// Render posts a message describing the view to the session's channel.
func (p *Presenter) Render(ctx context.Context, session domain.Session, view presenter.View) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if session.Location == "" {
		return fmt.Errorf("session %s has no channel", session.ID)
	}

	_, err := p.session.ChannelMessageSend(session.Location, message(session, view))
	if err != nil {
		return fmt.Errorf("send channel message: %w", err)
	}
	return nil
}

func message(session domain.Session, view presenter.View) string {
	switch view {
	case presenter.ViewLobby:
		return fmt.Sprintf("Lobby open (%d/%d). Closes %s.",
			len(session.Players), session.MaxPlayers,
			session.LobbyEndsAt.Format("15:04:05 MST"))
	case presenter.ViewSpin:
		return fmt.Sprintf("Round %d: spinning the wheel…", session.RoundNumber)
	case presenter.ViewKickPrompt:
		return fmt.Sprintf("%s, pick someone to kick before %s.",
			displayName(session, session.SelectorID),
			session.RoundDeadline.Format("15:04:05 MST"))
	case presenter.ViewKickWarning:
		return fmt.Sprintf("%s, time is almost up!", displayName(session, session.SelectorID))
	case presenter.ViewRoundResult:
		return fmt.Sprintf("Round %d resolved. %d players remain.",
			session.RoundNumber, len(session.AlivePlayers()))
	case presenter.ViewFinalRound:
		return "Final round! Two players remain."
	case presenter.ViewWinner:
		return fmt.Sprintf("%s wins %d!", displayName(session, session.WinnerID), session.Reward)
	case presenter.ViewPayoutDelayed:
		return fmt.Sprintf("%s won, but the payout is delayed. It will be retried.",
			displayName(session, session.WinnerID))
	case presenter.ViewCancelled:
		if session.EndReason != "" {
			return "Game cancelled: " + session.EndReason
		}
		return "Game cancelled."
	default:
		return fmt.Sprintf("Session %s updated.", session.ID)
	}
}

func displayName(session domain.Session, userID string) string {
	if p := session.Player(userID); p != nil {
		return p.DisplayName
	}
	return userID
}

var _ presenter.Presenter = (*Presenter)(nil)

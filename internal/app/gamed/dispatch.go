package gamed

import (
	"context"
	"log"

	"github.com/louisbranch/spinout/internal/game/domain"
	"github.com/louisbranch/spinout/internal/platform/errors"
)

// ActionType names an inbound action from the presentation layer.
type ActionType string

const (
	// ActionJoin adds the actor to the lobby.
	ActionJoin ActionType = "join"
	// ActionLeave removes the actor from the lobby.
	ActionLeave ActionType = "leave"
	// ActionStart starts the game early, before the countdown fires.
	ActionStart ActionType = "start"
	// ActionKick submits the selector's target choice.
	ActionKick ActionType = "kick"
	// ActionBuyPerk purchases a perk for the actor.
	ActionBuyPerk ActionType = "buy_perk"
)

// Action is one inbound request resolved to a session.
type Action struct {
	SessionID   string
	ActorID     string
	Type        ActionType
	TargetID    string
	Slot        int
	Perk        domain.Perk
	DisplayName string
}

// OnExternalAction dispatches a presentation-layer action into the core.
// It is the process's panic boundary: a handler panic is converted into
// an error and the session is torn down rather than crashing the runtime.
func (a *App) OnExternalAction(ctx context.Context, action Action) (err error) {
	defer func() {
		if v := recover(); v != nil {
			log.Printf("action panic session=%s actor=%s type=%s panic=%v",
				action.SessionID, action.ActorID, action.Type, v)
			err = errors.New(errors.CodeUnknown, "internal error")
			if _, cErr := a.Cancel(context.Background(), action.SessionID, "internal error", true); cErr != nil {
				log.Printf("panic teardown failed session=%s error=%v", action.SessionID, cErr)
			}
		}
	}()

	switch action.Type {
	case ActionJoin:
		_, err = a.Join(ctx, action.SessionID, domain.PlayerInput{
			UserID:      action.ActorID,
			DisplayName: action.DisplayName,
		}, action.Slot)
	case ActionLeave:
		_, err = a.Leave(ctx, action.SessionID, action.ActorID)
	case ActionStart:
		_, err = a.Start(ctx, action.SessionID)
	case ActionKick:
		err = a.engine.HandleKick(ctx, action.SessionID, action.ActorID, action.TargetID)
	case ActionBuyPerk:
		_, err = a.engine.BuyPerk(ctx, action.SessionID, action.ActorID, action.Perk)
	default:
		err = errors.WithMetadata(errors.CodeUnknown, "unknown action type",
			map[string]string{"type": string(action.Type)})
	}
	if err != nil {
		log.Printf("action rejected session=%s actor=%s type=%s code=%s error=%v",
			action.SessionID, action.ActorID, action.Type, errors.CodeOf(err), err)
	}
	return err
}

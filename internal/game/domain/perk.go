package domain

import "github.com/louisbranch/spinout/internal/platform/errors"

// Perk is a consumable ability owned by a player that conditionally alters
// kick resolution.
type Perk string

const (
	// PerkShield reflects a kick back onto the actor. Consumed on use.
	PerkShield Perk = "shield"
	// PerkExtraLife lets a player survive one elimination. Consumed on use.
	PerkExtraLife Perk = "extra_life"
	// PerkDoubleKick lets the selector resolve a second kick against a
	// different target in the same round. Consumed when armed.
	PerkDoubleKick Perk = "double_kick"
)

// Resolution reports the outcome of one kick so callers can render the
// correct narrative without re-deriving it.
type Resolution struct {
	ActorID          string `json:"actor_id"`
	TargetID         string `json:"target_id"`
	EliminatedID     string `json:"eliminated_id,omitempty"`
	Reflected        bool   `json:"reflected"`
	ShieldConsumedBy string `json:"shield_consumed_by,omitempty"`
	LifeConsumedBy   string `json:"life_consumed_by,omitempty"`
}

// NobodyEliminated reports whether the kick resolved without an
// elimination (a defended or saved outcome).
func (r Resolution) NobodyEliminated() bool {
	return r.EliminatedID == ""
}

// ResolveKick applies the layered perk chain for one kick of target by
// actor and marks the eliminated player, if any, dead:
//
//  1. A shield on the target reflects the kick onto the actor. An extra
//     life on the actor then saves them and nobody is eliminated. Without
//     one, the actor is eliminated.
//  2. With no shield, an extra life on the target saves them and nobody
//     is eliminated.
//  3. Otherwise the target is eliminated.
//
// Both actor and target must be alive roster members, and a player cannot
// kick themselves.
func (s *Session) ResolveKick(actorID, targetID string) (Resolution, error) {
	actor := s.Player(actorID)
	if actor == nil {
		return Resolution{}, errors.New(errors.CodeNotInGame, "actor is not in this session")
	}
	if !actor.Alive {
		return Resolution{}, errors.New(errors.CodeAlreadyEliminated, "actor has been eliminated")
	}
	target := s.Player(targetID)
	if target == nil {
		return Resolution{}, errors.New(errors.CodeInvalidTarget, "target is not in this session")
	}
	if !target.Alive {
		return Resolution{}, errors.New(errors.CodeAlreadyEliminated, "target has been eliminated")
	}
	if actorID == targetID {
		return Resolution{}, errors.New(errors.CodeInvalidTarget, "cannot kick yourself")
	}

	resolution := Resolution{ActorID: actorID, TargetID: targetID}

	if target.ConsumePerk(PerkShield) {
		resolution.Reflected = true
		resolution.ShieldConsumedBy = targetID
		if actor.ConsumePerk(PerkExtraLife) {
			resolution.LifeConsumedBy = actorID
			return resolution, nil
		}
		actor.Alive = false
		resolution.EliminatedID = actorID
		return resolution, nil
	}

	if target.ConsumePerk(PerkExtraLife) {
		resolution.LifeConsumedBy = targetID
		return resolution, nil
	}

	target.Alive = false
	resolution.EliminatedID = targetID
	return resolution, nil
}

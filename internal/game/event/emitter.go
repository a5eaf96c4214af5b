package event

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Store defines the interface for persisting events.
type Store interface {
	AppendEvent(ctx context.Context, evt Event) (Event, error)
}

// Emitter provides event emission for session mutations. A nil emitter or
// a nil store is a silent no-op so callers never branch on observability.
type Emitter struct {
	store Store
	now   func() time.Time
}

// NewEmitter creates a new event emitter.
func NewEmitter(store Store) *Emitter {
	return &Emitter{
		store: store,
		now:   time.Now,
	}
}

// Emit appends an event to the session journal.
func (e *Emitter) Emit(ctx context.Context, sessionID string, eventType Type, actorID string, payload any) (Event, error) {
	if e == nil || e.store == nil {
		return Event{}, nil
	}

	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return Event{}, fmt.Errorf("marshal event payload: %w", err)
	}

	evt := Event{
		SessionID: sessionID,
		Type:      eventType,
		Timestamp: e.now().UTC(),
		ActorID:   actorID,
		Payload:   payloadJSON,
	}

	return e.store.AppendEvent(ctx, evt)
}

// EmitCreated emits a session.created event.
func (e *Emitter) EmitCreated(ctx context.Context, sessionID string, payload CreatedPayload) (Event, error) {
	return e.Emit(ctx, sessionID, TypeSessionCreated, payload.HostID, payload)
}

// EmitPlayerJoined emits a session.player_joined event.
func (e *Emitter) EmitPlayerJoined(ctx context.Context, sessionID string, payload PlayerJoinedPayload) (Event, error) {
	return e.Emit(ctx, sessionID, TypePlayerJoined, payload.UserID, payload)
}

// EmitPlayerLeft emits a session.player_left event.
func (e *Emitter) EmitPlayerLeft(ctx context.Context, sessionID string, payload PlayerLeftPayload) (Event, error) {
	return e.Emit(ctx, sessionID, TypePlayerLeft, payload.UserID, payload)
}

// EmitStarted emits a session.started event.
func (e *Emitter) EmitStarted(ctx context.Context, sessionID string, payload StartedPayload) (Event, error) {
	return e.Emit(ctx, sessionID, TypeSessionStarted, "", payload)
}

// EmitRoundResolved emits a session.round_resolved event.
func (e *Emitter) EmitRoundResolved(ctx context.Context, sessionID, actorID string, payload RoundResolvedPayload) (Event, error) {
	return e.Emit(ctx, sessionID, TypeRoundResolved, actorID, payload)
}

// EmitEnded emits a session.ended event.
func (e *Emitter) EmitEnded(ctx context.Context, sessionID string, payload EndedPayload) (Event, error) {
	return e.Emit(ctx, sessionID, TypeSessionEnded, "", payload)
}

// Package economy defines the currency collaborator boundary. The game
// runtime never computes balances itself; it spends and awards through
// this interface and treats the backing system as external.
package economy

import (
	"context"

	"github.com/louisbranch/spinout/internal/platform/errors"
)

// ErrInsufficientBalance is returned by Spend when the user cannot afford
// the purchase. Callers must not mutate game state when they receive it.
var ErrInsufficientBalance = errors.New(errors.CodeInsufficientBalance, "insufficient balance")

// Economy grants and deducts currency for game outcomes.
type Economy interface {
	// AwardWin credits amount to the user and returns the new balance.
	AwardWin(ctx context.Context, userID string, amount int64) (int64, error)
	// Spend debits amount from the user for reason and returns the new
	// balance. Insufficient funds fail with ErrInsufficientBalance and
	// leave the balance untouched.
	Spend(ctx context.Context, userID string, amount int64, reason string) (int64, error)
}

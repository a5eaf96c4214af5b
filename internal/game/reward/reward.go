// Package reward pays session winners exactly once. The ledger lives
// inside the session document, so the caller persists the mutated session
// in the same commit as the attempt.
package reward

import (
	"context"
	"log"

	"github.com/louisbranch/spinout/internal/economy"
	"github.com/louisbranch/spinout/internal/game/domain"
	"github.com/louisbranch/spinout/internal/platform/errors"
)

// Result reports what one award attempt did.
type Result struct {
	// AlreadyPaid is true when the ledger was frozen before this attempt;
	// the economy collaborator was never contacted.
	AlreadyPaid bool
	// Paid lists winners credited during this attempt.
	Paid []string
	// Failed lists winners whose payout failed during this attempt; they
	// stay pending for a retry with the same winner set.
	Failed []string
	// Done mirrors the ledger's payoutDone flag after the attempt.
	Done bool
}

// Service orchestrates idempotent winner payouts.
type Service struct {
	economy economy.Economy
}

// NewService creates a reward service backed by the economy collaborator.
func NewService(eco economy.Economy) *Service {
	return &Service{economy: eco}
}

// Award pays every winner not yet in the ledger's paid set, recording
// per-winner failures without aborting the rest. It mutates session.Ledger
// in place; the caller must persist the session atomically with the
// attempt. Calling Award again with the same winner set only re-attempts
// the previously failed subset.
func (s *Service) Award(ctx context.Context, session *domain.Session, winnerIDs []string, amount int64) (Result, error) {
	if s == nil || s.economy == nil {
		return Result{}, errors.New(errors.CodeUnknown, "economy is not configured")
	}
	if session == nil {
		return Result{}, errors.New(errors.CodeUnknown, "session is required")
	}

	ledger := &session.Ledger
	if ledger.PayoutDone {
		return Result{AlreadyPaid: true, Done: true, Paid: ledger.PaidIDs}, nil
	}

	winners := make(map[string]bool, len(winnerIDs))
	for _, id := range winnerIDs {
		winners[id] = true
	}
	// A ledger entry outside the winner set means the winner list changed
	// between attempts. Refuse to pay rather than guess.
	for _, id := range append(append([]string{}, ledger.PaidIDs...), ledger.FailedIDs...) {
		if !winners[id] {
			return Result{}, errors.WithMetadata(errors.CodeCorruptedLedger,
				"ledger entry does not match winner set",
				map[string]string{"session_id": session.ID, "user_id": id})
		}
	}

	paid := make(map[string]bool, len(ledger.PaidIDs))
	for _, id := range ledger.PaidIDs {
		paid[id] = true
	}

	var result Result
	ledger.FailedIDs = nil
	for _, winnerID := range winnerIDs {
		if paid[winnerID] {
			continue
		}
		if _, err := s.economy.AwardWin(ctx, winnerID, amount); err != nil {
			log.Printf("payout failed session=%s user=%s amount=%d error=%v",
				session.ID, winnerID, amount, err)
			ledger.FailedIDs = append(ledger.FailedIDs, winnerID)
			result.Failed = append(result.Failed, winnerID)
			continue
		}
		ledger.PaidIDs = append(ledger.PaidIDs, winnerID)
		result.Paid = append(result.Paid, winnerID)
	}

	ledger.PayoutDone = len(ledger.FailedIDs) == 0
	result.Done = ledger.PayoutDone
	return result, nil
}

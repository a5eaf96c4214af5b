// Package gamefakes provides in-memory fakes for the game runtime's
// collaborator boundaries.
package gamefakes

import (
	"context"
	"sync"

	"github.com/louisbranch/spinout/internal/economy"
	"github.com/louisbranch/spinout/internal/platform/errors"
)

// Economy is a scriptable in-memory economy fake. Failures can be staged
// per user to exercise retry paths.
type Economy struct {
	mu         sync.Mutex
	balances   map[string]int64
	awardCalls map[string]int
	spendCalls map[string]int
	failAward  map[string]int
	failSpend  map[string]int
}

// NewEconomy constructs an Economy fake with initialized state maps.
func NewEconomy() *Economy {
	return &Economy{
		balances:   make(map[string]int64),
		awardCalls: make(map[string]int),
		spendCalls: make(map[string]int),
		failAward:  make(map[string]int),
		failSpend:  make(map[string]int),
	}
}

// Credit seeds a user's balance.
func (e *Economy) Credit(userID string, amount int64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.balances[userID] += amount
}

// FailAwards makes the next n AwardWin calls for userID fail.
func (e *Economy) FailAwards(userID string, n int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.failAward[userID] = n
}

// FailSpends makes the next n Spend calls for userID fail.
func (e *Economy) FailSpends(userID string, n int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.failSpend[userID] = n
}

// AwardCalls reports how many times AwardWin ran for userID.
func (e *Economy) AwardCalls(userID string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.awardCalls[userID]
}

// SpendCalls reports how many times Spend ran for userID.
func (e *Economy) SpendCalls(userID string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.spendCalls[userID]
}

// Balance returns the user's current balance.
func (e *Economy) Balance(userID string) int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.balances[userID]
}

func (e *Economy) AwardWin(_ context.Context, userID string, amount int64) (int64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.awardCalls[userID]++
	if e.failAward[userID] > 0 {
		e.failAward[userID]--
		return e.balances[userID], errors.New(errors.CodePayoutFailed, "staged payout failure")
	}
	e.balances[userID] += amount
	return e.balances[userID], nil
}

func (e *Economy) Spend(_ context.Context, userID string, amount int64, _ string) (int64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.spendCalls[userID]++
	if e.failSpend[userID] > 0 {
		e.failSpend[userID]--
		return e.balances[userID], errors.New(errors.CodeUnknown, "staged spend failure")
	}
	if e.balances[userID] < amount {
		return e.balances[userID], economy.ErrInsufficientBalance
	}
	e.balances[userID] -= amount
	return e.balances[userID], nil
}

var _ economy.Economy = (*Economy)(nil)

package economy

import (
	"context"
	"sync"
)

// MemoryWallet is an in-process Economy for local runs and tests.
type MemoryWallet struct {
	mu       sync.Mutex
	balances map[string]int64
}

// NewMemoryWallet creates an empty in-memory wallet.
func NewMemoryWallet() *MemoryWallet {
	return &MemoryWallet{balances: make(map[string]int64)}
}

// Credit seeds a user's balance.
func (w *MemoryWallet) Credit(userID string, amount int64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.balances[userID] += amount
}

// Balance returns the user's current balance.
func (w *MemoryWallet) Balance(userID string) int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.balances[userID]
}

// AwardWin credits amount to the user.
func (w *MemoryWallet) AwardWin(ctx context.Context, userID string, amount int64) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.balances[userID] += amount
	return w.balances[userID], nil
}

// Spend debits amount from the user, rejecting overdrafts.
func (w *MemoryWallet) Spend(ctx context.Context, userID string, amount int64, reason string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.balances[userID] < amount {
		return w.balances[userID], ErrInsufficientBalance
	}
	w.balances[userID] -= amount
	return w.balances[userID], nil
}

var _ Economy = (*MemoryWallet)(nil)

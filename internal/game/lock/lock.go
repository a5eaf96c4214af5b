// Package lock provides advisory per-session mutual exclusion. All session
// mutators must run through the same manager; the data layer does not
// enforce anything.
package lock

import (
	"context"
	"sync"
	"time"

	"github.com/louisbranch/spinout/internal/platform/errors"
)

// Manager hands out short-TTL advisory leases keyed by session id, with a
// per-key FIFO wait queue so queued actions execute in submission order
// without polling.
type Manager struct {
	ttl   time.Duration
	clock func() time.Time

	mu     sync.Mutex
	leases map[string]time.Time
	tails  map[string]chan struct{}
}

// NewManager creates a lock manager whose leases last ttl.
func NewManager(ttl time.Duration) *Manager {
	return &Manager{
		ttl:    ttl,
		clock:  time.Now,
		leases: make(map[string]time.Time),
		tails:  make(map[string]chan struct{}),
	}
}

// Acquire makes a single, non-blocking attempt to take the lease for key.
// It reports false when another holder's lease is still live. Callers that
// need to wait use Do instead of retry loops.
func (m *Manager) Acquire(key string, ttl time.Duration) bool {
	if ttl <= 0 {
		ttl = m.ttl
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.clock()
	if expiry, held := m.leases[key]; held && now.Before(expiry) {
		return false
	}
	m.leases[key] = now.Add(ttl)
	return true
}

// Release drops the lease for key. Releasing an unheld key is a no-op.
func (m *Manager) Release(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.leases, key)
}

// Do runs fn while holding the key's lease, queued FIFO behind the current
// holder. A failed fn releases its queue link normally, so one rejection
// never stalls subsequent queued actions. When ctx expires before the turn
// comes, Do returns BUSY_TRY_AGAIN and unlinks itself once the predecessor
// finishes.
func (m *Manager) Do(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	if fn == nil {
		return errors.New(errors.CodeUnknown, "lock action is required")
	}

	m.mu.Lock()
	prev := m.tails[key]
	turn := make(chan struct{})
	m.tails[key] = turn
	m.mu.Unlock()

	release := func() {
		m.mu.Lock()
		if m.tails[key] == turn {
			delete(m.tails, key)
		}
		delete(m.leases, key)
		m.mu.Unlock()
		close(turn)
	}

	if prev != nil {
		select {
		case <-prev:
		case <-ctx.Done():
			// Keep the chain moving for callers queued behind us.
			go func() {
				<-prev
				release()
			}()
			return errors.Wrap(errors.CodeBusyTryAgain, "session is busy", ctx.Err())
		}
	}

	m.mu.Lock()
	m.leases[key] = m.clock().Add(m.ttl)
	m.mu.Unlock()

	defer release()
	return fn(ctx)
}

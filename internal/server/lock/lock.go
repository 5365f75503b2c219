// Package lock serializes migrations per tenant.
package lock

import (
	"context"
	"sync"

	"github.com/dmitrijs2005/mediavault/internal/common"
)

// Locker grants exclusive per-tenant leases. TryAcquire never waits: when the
// tenant is already leased it returns common.ErrMigrationInProgress.
// The returned release func is idempotent.
type Locker interface {
	TryAcquire(ctx context.Context, tenantID string) (release func(), err error)
}

// InMemory is a process-local Locker.
type InMemory struct {
	mu   sync.Mutex
	held map[string]struct{}
}

func NewInMemory() *InMemory {
	return &InMemory{held: make(map[string]struct{})}
}

func (l *InMemory) TryAcquire(ctx context.Context, tenantID string) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.held[tenantID]; ok {
		return nil, common.ErrMigrationInProgress
	}
	l.held[tenantID] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			delete(l.held, tenantID)
			l.mu.Unlock()
		})
	}, nil
}

// Held reports whether tenantID currently holds a lease.
func (l *InMemory) Held(tenantID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.held[tenantID]
	return ok
}

// Package lease provides per-scope mutual exclusion for reconciliation runs.
// A lease expires on its own so a crashed holder cannot block a scope
// forever.
package lease

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/technerv/election-monitor/pkg/platform/sentinel"
)

// Release gives a lease back. Releasing an expired or taken-over lease is a
// no-op.
type Release func(ctx context.Context) error

// Locker hands out leases. Acquire returns sentinel.ErrHeld when another
// owner holds the scope.
type Locker interface {
	Acquire(ctx context.Context, scope string, ttl time.Duration) (Release, error)
}

type held struct {
	token   string
	expires time.Time
}

// InMemory is a single-process Locker.
type InMemory struct {
	mu     sync.Mutex
	leases map[string]held
	now    func() time.Time
}

type Option func(*InMemory)

func WithClock(now func() time.Time) Option {
	return func(l *InMemory) { l.now = now }
}

func NewInMemory(opts ...Option) *InMemory {
	l := &InMemory{leases: make(map[string]held), now: time.Now}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *InMemory) Acquire(ctx context.Context, scope string, ttl time.Duration) (Release, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if cur, ok := l.leases[scope]; ok && now.Before(cur.expires) {
		return nil, sentinel.ErrHeld
	}
	token := uuid.NewString()
	l.leases[scope] = held{token: token, expires: now.Add(ttl)}

	return func(context.Context) error {
		l.mu.Lock()
		defer l.mu.Unlock()
		if cur, ok := l.leases[scope]; ok && cur.token == token {
			delete(l.leases, scope)
		}
		return nil
	}, nil
}

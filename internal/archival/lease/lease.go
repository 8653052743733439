// Package lease guards the archival run against concurrent execution. A
// single process uses the in-memory Local guard; deployments with several
// replicas layer the Redis guard on top so only one replica sweeps at a time.
package lease

import (
	"context"
	"sync/atomic"
)

// Guard serializes archival runs. TryAcquire returns false when another run
// already holds the lease; Release frees it for the next run.
type Guard interface {
	TryAcquire(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
}

// Local is a process-local guard backed by an atomic flag.
type Local struct {
	held atomic.Bool
}

func NewLocal() *Local {
	return &Local{}
}

func (l *Local) TryAcquire(_ context.Context) (bool, error) {
	return l.held.CompareAndSwap(false, true), nil
}

func (l *Local) Release(_ context.Context) error {
	l.held.Store(false)
	return nil
}

package ports

import (
	"context"
	"time"
)

// UnlockFunc releases a distributed lock.
type UnlockFunc func(ctx context.Context) error

// DistributedLocker serializes access to a session across processes sharing
// a store.
type DistributedLocker interface {
	// Lock blocks until the lock for key is held or ctx is done. The lock
	// expires after ttl if never released. The returned UnlockFunc must be
	// called to release it.
	Lock(ctx context.Context, key string, ttl time.Duration) (UnlockFunc, error)
}

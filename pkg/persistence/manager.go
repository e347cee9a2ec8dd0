package persistence

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"log/slog"

	"github.com/aretw0/loom/internal/logging"
	"github.com/aretw0/loom/pkg/domain"
	"github.com/aretw0/loom/pkg/ports"
)

// DefaultLockTTL bounds how long a distributed lock survives a crashed holder.
const DefaultLockTTL = 30 * time.Second

// lockEntry holds the mutex and the reference count.
type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// Manager serializes access to stored snapshots per session ID.
// Unused local locks are garbage collected through reference counting.
type Manager struct {
	store ports.SnapshotStore

	mu    sync.Mutex
	locks map[string]*lockEntry

	locker  ports.DistributedLocker
	lockTTL time.Duration
	logger  *slog.Logger
}

// Option configures the Manager.
type Option func(*Manager)

// WithLocker enables distributed locking.
func WithLocker(locker ports.DistributedLocker) Option {
	return func(m *Manager) {
		m.locker = locker
	}
}

// WithLockTTL sets the expiry of distributed locks.
func WithLockTTL(ttl time.Duration) Option {
	return func(m *Manager) {
		if ttl > 0 {
			m.lockTTL = ttl
		}
	}
}

// WithLogger configures a logger for the Manager.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// NewManager creates a Manager on top of store.
func NewManager(store ports.SnapshotStore, opts ...Option) *Manager {
	m := &Manager{
		store:   store,
		locks:   make(map[string]*lockEntry),
		lockTTL: DefaultLockTTL,
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// acquire gets or creates a lock entry and increments its reference count.
// The caller must lock entry.mu and call release after unlocking it.
func (m *Manager) acquire(sessionID string) *lockEntry {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[sessionID]
	if !exists {
		entry = &lockEntry{}
		m.locks[sessionID] = entry
	}
	entry.refs++
	return entry
}

// release decrements the reference count and deletes the entry at zero.
func (m *Manager) release(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[sessionID]
	if !exists {
		return
	}

	entry.refs--
	if entry.refs <= 0 {
		delete(m.locks, sessionID)
	}
}

// Load retrieves a stored snapshot.
func (m *Manager) Load(ctx context.Context, sessionID string) (domain.Snapshot, error) {
	var snap domain.Snapshot
	err := m.WithLock(ctx, sessionID, func(ctx context.Context) error {
		var err error
		snap, err = m.store.Load(ctx, sessionID)
		return err
	})
	return snap, err
}

// LoadOrCreate loads a snapshot, storing an empty one first if the session
// does not exist. The boolean reports whether the session was created.
func (m *Manager) LoadOrCreate(ctx context.Context, sessionID string) (domain.Snapshot, bool, error) {
	var (
		snap    domain.Snapshot
		created bool
	)
	err := m.WithLock(ctx, sessionID, func(ctx context.Context) error {
		var err error
		snap, err = m.store.Load(ctx, sessionID)
		if err == nil {
			return nil
		}
		if !errors.Is(err, domain.ErrSnapshotNotFound) {
			return fmt.Errorf("failed to check session existence: %w", err)
		}

		snap = domain.Snapshot{Version: domain.SnapshotVersion}
		if err := m.store.Save(ctx, sessionID, snap); err != nil {
			return fmt.Errorf("failed to initialize session: %w", err)
		}
		created = true
		return nil
	})
	return snap, created, err
}

// Save persists a snapshot.
func (m *Manager) Save(ctx context.Context, sessionID string, snap domain.Snapshot) error {
	return m.WithLock(ctx, sessionID, func(ctx context.Context) error {
		return m.store.Save(ctx, sessionID, snap)
	})
}

// Update loads a snapshot, lets fn modify it and saves the result, all under
// the session lock. Nothing is saved when fn fails.
func (m *Manager) Update(ctx context.Context, sessionID string, fn func(*domain.Snapshot) error) error {
	return m.WithLock(ctx, sessionID, func(ctx context.Context) error {
		snap, err := m.store.Load(ctx, sessionID)
		if err != nil {
			return err
		}
		if err := fn(&snap); err != nil {
			return err
		}
		return m.store.Save(ctx, sessionID, snap)
	})
}

// Delete removes the session from the store.
func (m *Manager) Delete(ctx context.Context, sessionID string) error {
	return m.WithLock(ctx, sessionID, func(ctx context.Context) error {
		return m.store.Delete(ctx, sessionID)
	})
}

// List delegates to the store.
func (m *Manager) List(ctx context.Context) ([]string, error) {
	return m.store.List(ctx)
}

// Store returns the underlying snapshot store.
func (m *Manager) Store() ports.SnapshotStore {
	return m.store
}

// WithLock executes fn while holding the lock for the session.
func (m *Manager) WithLock(ctx context.Context, sessionID string, fn func(context.Context) error) error {
	entry := m.acquire(sessionID)
	entry.mu.Lock()
	defer func() {
		entry.mu.Unlock()
		m.release(sessionID)
	}()

	if m.locker != nil {
		unlock, err := m.locker.Lock(ctx, sessionID, m.lockTTL)
		if err != nil {
			return fmt.Errorf("failed to acquire distributed lock: %w", err)
		}
		defer func() {
			if err := unlock(ctx); err != nil {
				m.logger.Warn("Failed to release distributed lock (will expire via TTL)",
					"session_id", sessionID,
					"err", err,
				)
			}
		}()
	}

	return fn(ctx)
}

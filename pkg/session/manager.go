package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/evgen4ikrus/pizza-bot/internal/logging"
	"github.com/evgen4ikrus/pizza-bot/pkg/domain"
	"github.com/evgen4ikrus/pizza-bot/pkg/ports"
)

// DefaultLockTTL bounds how long a crashed replica can hold a user's distributed lock.
const DefaultLockTTL = 30 * time.Second

// lockEntry holds the mutex and the reference count.
type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// Manager orchestrates session access, ensuring safe concurrent operations.
// It uses Reference Counting to garbage collect unused locks.
type Manager struct {
	store ports.SessionStore

	mu    sync.Mutex            // Global lock for the map
	locks map[string]*lockEntry // Map of active locks

	serialize bool
	locker    ports.DistributedLocker // Optional distributed locker
	lockTTL   time.Duration
	logger    *slog.Logger
	now       func() time.Time
}

// Option configures the Manager.
type Option func(*Manager)

// WithLocker enables distributed locking.
func WithLocker(locker ports.DistributedLocker) Option {
	return func(m *Manager) {
		m.locker = locker
	}
}

// WithLockTTL overrides DefaultLockTTL for the distributed lock.
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

// WithClock overrides the time source used for Session.UpdatedAt.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
	}
}

// WithoutSerialization disables every lock. Concurrent events of one user then
// race and the last write wins. Only useful to reproduce that behaviour.
func WithoutSerialization() Option {
	return func(m *Manager) {
		m.serialize = false
	}
}

// NewManager creates a new Session Manager with the given persistence store.
func NewManager(store ports.SessionStore, opts ...Option) *Manager {
	m := &Manager{
		store:     store,
		locks:     make(map[string]*lockEntry),
		serialize: true,
		lockTTL:   DefaultLockTTL,
		logger:    logging.NewNop(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// acquire gets or creates a lock entry and increments its reference count.
// The caller MUST Lock the entry.mu, and then call release(key) after unlocking.
func (m *Manager) acquire(key string) *lockEntry {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[key]
	if !exists {
		entry = &lockEntry{}
		m.locks[key] = entry
	}
	entry.refs++
	return entry
}

// release decrements the reference count and deletes the entry if it reaches zero.
func (m *Manager) release(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[key]
	if !exists {
		return
	}

	entry.refs--
	if entry.refs <= 0 {
		delete(m.locks, key)
	}
}

// WithLock executes fn while holding the lock for the user key.
// LoadOrNew and Commit are meant to be called from inside fn.
func (m *Manager) WithLock(ctx context.Context, key string, fn func(context.Context) error) error {
	if !m.serialize {
		return fn(ctx)
	}

	entry := m.acquire(key)
	entry.mu.Lock()
	defer func() {
		entry.mu.Unlock()
		m.release(key)
	}()

	if m.locker != nil {
		unlock, err := m.locker.Lock(ctx, key, m.lockTTL)
		if err != nil {
			return fmt.Errorf("failed to acquire distributed lock: %w", err)
		}
		defer func() {
			// The caller's ctx may already be cancelled; release on a fresh one.
			releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
			defer cancel()
			if err := unlock(releaseCtx); err != nil {
				m.logger.Warn("Failed to release distributed lock (will expire via TTL)",
					"user", key,
					"err", err,
				)
			}
		}()
	}

	return fn(ctx)
}

// LoadOrNew returns the stored session of user, or a fresh START session when none exists.
// The fresh session is not persisted. Callers hold WithLock.
func (m *Manager) LoadOrNew(ctx context.Context, user domain.UserRef) (*domain.Session, error) {
	sess, err := m.store.Load(ctx, user.Key())
	if err == nil {
		// Names change; the stored one may be stale.
		if user.Name != "" {
			sess.User.Name = user.Name
		}
		return sess, nil
	}
	if errors.Is(err, domain.ErrSessionNotFound) {
		return domain.NewSession(user), nil
	}
	return nil, fmt.Errorf("failed to load session %s: %w", user.Key(), err)
}

// Commit stamps the next revision on sess and persists it. Callers hold WithLock.
func (m *Manager) Commit(ctx context.Context, sess *domain.Session) error {
	sess.Revision++
	sess.UpdatedAt = m.now().UTC()
	if err := m.store.Save(ctx, sess.User.Key(), sess); err != nil {
		return fmt.Errorf("failed to save session %s: %w", sess.User.Key(), err)
	}
	return nil
}

// Load retrieves an existing session from the store.
func (m *Manager) Load(ctx context.Context, key string) (*domain.Session, error) {
	var sess *domain.Session
	err := m.WithLock(ctx, key, func(ctx context.Context) error {
		var err error
		sess, err = m.store.Load(ctx, key)
		return err
	})
	return sess, err
}

// Save persists the session as-is.
func (m *Manager) Save(ctx context.Context, key string, sess *domain.Session) error {
	return m.WithLock(ctx, key, func(ctx context.Context) error {
		return m.store.Save(ctx, key, sess)
	})
}

// Delete removes the session from the store.
func (m *Manager) Delete(ctx context.Context, key string) error {
	return m.WithLock(ctx, key, func(ctx context.Context) error {
		return m.store.Delete(ctx, key)
	})
}

// List delegates to the store.
func (m *Manager) List(ctx context.Context) ([]string, error) {
	return m.store.List(ctx)
}

// Store returns the underlying session store.
func (m *Manager) Store() ports.SessionStore {
	return m.store
}

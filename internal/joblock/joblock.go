package joblock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Record is the shared lock state for one job name. At most one unexpired
// record exists per name.
type Record struct {
	Name      string
	Holder    string
	ExpiresAt time.Time
}

// Store is the backing record store. Acquire must behave as compare-and-set:
// it succeeds only when no unexpired record exists for name.
type Store interface {
	Acquire(ctx context.Context, rec Record) (bool, error)
	Release(ctx context.Context, name, holder string) error
}

// MemoryStore is the in-process Store used for single-instance deployments
// and tests.
type MemoryStore struct {
	mu    sync.Mutex
	locks map[string]Record
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore builds an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{locks: map[string]Record{}}
}

// Acquire writes rec only if no live record exists for rec.Name.
func (s *MemoryStore) Acquire(_ context.Context, rec Record) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.locks[rec.Name]; ok && existing.ExpiresAt.After(time.Now()) {
		return false, nil
	}
	s.locks[rec.Name] = rec
	return true, nil
}

// Release removes the record unconditionally when held by holder.
func (s *MemoryStore) Release(_ context.Context, name, holder string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.locks[name]; ok && existing.Holder == holder {
		delete(s.locks, name)
	}
	return nil
}

// Manager provides named, TTL-bound single-flight mutual exclusion for
// scheduled jobs. Contention is not an error: the caller skips its run.
type Manager struct {
	store Store
	ttl   time.Duration
}

// NewManager wires a store and the lock TTL. The TTL must be strictly longer
// than the expected job duration.
func NewManager(store Store, ttl time.Duration) *Manager {
	return &Manager{store: store, ttl: ttl}
}

// Acquire attempts to take the named lock. When held is true the returned
// release func must be deferred; it is idempotent and never fails the caller.
func (m *Manager) Acquire(ctx context.Context, name string) (release func(), held bool, err error) {
	rec := Record{
		Name:      name,
		Holder:    uuid.NewString(),
		ExpiresAt: time.Now().Add(m.ttl),
	}

	ok, err := m.store.Acquire(ctx, rec)
	if err != nil {
		return nil, false, fmt.Errorf("acquire lock %s: %w", name, err)
	}
	if !ok {
		return nil, false, nil
	}

	var once sync.Once
	release = func() {
		once.Do(func() {
			// release uses a fresh context so cleanup survives cancellation
			_ = m.store.Release(context.Background(), name, rec.Holder)
		})
	}
	return release, true, nil
}

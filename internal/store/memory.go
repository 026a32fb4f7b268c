package store

import (
	"context"
	"sync"
	"time"

	"ghost.drop/internal/models"
)

// Compile-time interface check
var _ Store = (*MemoryStore)(nil)

type entry struct {
	drop      models.Drop
	expiresAt time.Time
}

// MemoryStore keeps drops in a mutex-guarded map with a background
// janitor for TTL expiry. The mutex gives every compound transition
// per-record serializable isolation for free.
type MemoryStore struct {
	drops         map[string]*entry
	mu            sync.RWMutex
	maxAttempts   int
	cleanupCancel context.CancelFunc
}

func NewMemoryStore(cleanupInterval time.Duration, maxAttempts int) *MemoryStore {
	ctx, cancel := context.WithCancel(context.Background())
	s := &MemoryStore{
		drops:         make(map[string]*entry),
		maxAttempts:   maxAttempts,
		cleanupCancel: cancel,
	}
	go s.cleanupLoop(ctx, cleanupInterval)
	return s
}

func (s *MemoryStore) Create(ctx context.Context, id string, drop *models.Drop, ttl time.Duration) error {
	if ttl <= 0 {
		return ErrNotFound
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.drops[id]; ok && time.Now().Before(e.expiresAt) {
		return ErrExists
	}

	s.drops[id] = &entry{drop: *drop, expiresAt: time.Now().Add(ttl)}
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, id string) (*models.Drop, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.drops[id]
	if !ok || time.Now().After(e.expiresAt) {
		return nil, ErrNotFound
	}

	cp := e.drop
	return &cp, nil
}

func (s *MemoryStore) Replace(ctx context.Context, id string, drop *models.Drop) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.drops[id]
	if !ok || time.Now().After(e.expiresAt) {
		return ErrNotFound
	}

	// Contents change, expiry stays.
	e.drop = *drop
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.drops, id)
	return nil
}

func (s *MemoryStore) Consume(ctx context.Context, id string) (*models.Drop, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.drops[id]
	if !ok {
		return nil, ErrNotFound
	}
	if time.Now().After(e.expiresAt) {
		delete(s.drops, id)
		return nil, ErrNotFound
	}

	// Threshold check comes before view accounting: a drop condemned
	// by repeated bad keys is never served again.
	if e.drop.FailedAttempts >= s.maxAttempts {
		delete(s.drops, id)
		return nil, ErrDestroyed
	}

	e.drop.RemainingViews--
	cp := e.drop
	if e.drop.RemainingViews <= 0 {
		delete(s.drops, id)
	}
	return &cp, nil
}

func (s *MemoryStore) RecordFailure(ctx context.Context, id string) (int, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.drops[id]
	if !ok || time.Now().After(e.expiresAt) {
		delete(s.drops, id)
		return 0, true, nil
	}

	e.drop.FailedAttempts++
	if e.drop.FailedAttempts >= s.maxAttempts {
		attempts := e.drop.FailedAttempts
		delete(s.drops, id)
		return attempts, true, nil
	}
	return e.drop.FailedAttempts, false, nil
}

func (s *MemoryStore) Close() error {
	if s.cleanupCancel != nil {
		s.cleanupCancel()
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.drops = nil
	return nil
}

// expiresAt reports the current expiry of a drop; used by TTL tests.
func (s *MemoryStore) expiry(id string) (time.Time, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.drops[id]
	if !ok {
		return time.Time{}, false
	}
	return e.expiresAt, true
}

func (s *MemoryStore) cleanupLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.cleanup()
		}
	}
}

func (s *MemoryStore) cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	for id, e := range s.drops {
		if now.After(e.expiresAt) {
			delete(s.drops, id)
		}
	}
}

package access

import (
	"context"
	"sync"
	"time"
)

var _ Store = (*MemoryStore)(nil)

// MemoryStore backs the code gate for single-node deployments without
// Redis. State is lost on restart, which for invite codes is an
// acceptable failure mode.
type MemoryStore struct {
	mu        sync.Mutex
	codes     map[string]*Code
	generated int64
	used      int64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{codes: make(map[string]*Code)}
}

func (s *MemoryStore) Save(ctx context.Context, code *Code) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *code
	s.codes[code.Code] = &cp
	s.generated++
	return nil
}

func (s *MemoryStore) Validate(ctx context.Context, code string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.codes[code]
	if !ok || c.Status != StatusActive || c.Used {
		return false, nil
	}
	c.Used = true
	return true, nil
}

func (s *MemoryStore) Expire(ctx context.Context, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.codes[code]
	if !ok {
		return nil
	}
	if c.Status != StatusExpired {
		c.Status = StatusExpired
		c.ExpiredAt = time.Now()
		s.used++
	}
	return nil
}

func (s *MemoryStore) Active(ctx context.Context) ([]string, error) {
	return s.list(StatusActive), nil
}

func (s *MemoryStore) Expired(ctx context.Context) ([]string, error) {
	return s.list(StatusExpired), nil
}

func (s *MemoryStore) Stats(ctx context.Context) (Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return Stats{TotalGenerated: s.generated, TotalUsed: s.used}, nil
}

func (s *MemoryStore) list(status string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []string
	for code, c := range s.codes {
		if c.Status == status {
			out = append(out, code)
		}
	}
	return out
}

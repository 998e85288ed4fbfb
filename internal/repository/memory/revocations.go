package memory

import (
	"context"
	"sync"
	"time"
)

type Revocations struct {
	mu      sync.Mutex
	entries map[string]time.Time
	now     func() time.Time
}

func NewRevocations() *Revocations {
	return &Revocations{entries: make(map[string]time.Time), now: time.Now}
}

// WithClock replaces the time source. Tests use it to step past expiries.
func (s *Revocations) WithClock(now func() time.Time) *Revocations {
	s.now = now
	return s
}

func (s *Revocations) Add(_ context.Context, jti string, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entries[jti]; !ok {
		s.entries[jti] = expiresAt
	}
	return nil
}

func (s *Revocations) Exists(_ context.Context, jti string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	expiresAt, ok := s.entries[jti]
	if !ok {
		return false, nil
	}
	if !expiresAt.After(s.now()) {
		delete(s.entries, jti)
		return false, nil
	}
	return true, nil
}

package memory

import (
	"context"
	"sync"

	"whalewatch/internal/domain"
	"whalewatch/internal/storage"
)

// LaunchStore implements storage.LaunchStore in memory.
type LaunchStore struct {
	mu       sync.RWMutex
	launches []*domain.Launch
	keys     map[string]bool
}

// NewLaunchStore creates a new in-memory LaunchStore.
func NewLaunchStore() *LaunchStore {
	return &LaunchStore{keys: make(map[string]bool)}
}

var _ storage.LaunchStore = (*LaunchStore)(nil)

func launchKey(chain domain.Chain, token string) string {
	return string(chain) + "|" + token
}

// InsertIfAbsent adds a launch keyed by (chain, token address).
func (s *LaunchStore) InsertIfAbsent(ctx context.Context, l *domain.Launch) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := launchKey(l.Chain, l.TokenAddress)
	if s.keys[key] {
		return false, nil
	}
	cp := *l
	s.keys[key] = true
	s.launches = append(s.launches, &cp)
	return true, nil
}

// Recent retrieves the most recent launches, newest first.
func (s *LaunchStore) Recent(ctx context.Context, limit int) ([]*domain.Launch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := len(s.launches)
	if limit <= 0 || limit > n {
		limit = n
	}
	out := make([]*domain.Launch, 0, limit)
	for i := n - 1; i >= 0 && len(out) < limit; i-- {
		cp := *s.launches[i]
		out = append(out, &cp)
	}
	return out, nil
}

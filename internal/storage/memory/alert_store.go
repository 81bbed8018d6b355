// Package memory provides in-memory store implementations used by tests
// and by the --use-memory server mode.
package memory

import (
	"context"
	"sync"

	"whalewatch/internal/domain"
	"whalewatch/internal/storage"
)

// AlertStore implements storage.AlertStore in memory.
type AlertStore struct {
	mu     sync.RWMutex
	alerts []*domain.WhaleAlert
	byID   map[string]*domain.WhaleAlert
}

// NewAlertStore creates a new in-memory AlertStore.
func NewAlertStore() *AlertStore {
	return &AlertStore{byID: make(map[string]*domain.WhaleAlert)}
}

var _ storage.AlertStore = (*AlertStore)(nil)

// Insert adds a new alert. Returns ErrDuplicateKey if the id exists.
func (s *AlertStore) Insert(ctx context.Context, a *domain.WhaleAlert) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byID[a.ID]; ok {
		return storage.ErrDuplicateKey
	}
	cp := *a
	s.byID[a.ID] = &cp
	s.alerts = append(s.alerts, &cp)
	return nil
}

// Recent retrieves the most recent alerts, newest first.
func (s *AlertStore) Recent(ctx context.Context, limit int) ([]*domain.WhaleAlert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := len(s.alerts)
	if limit <= 0 || limit > n {
		limit = n
	}
	out := make([]*domain.WhaleAlert, 0, limit)
	for i := n - 1; i >= 0 && len(out) < limit; i-- {
		cp := *s.alerts[i]
		out = append(out, &cp)
	}
	return out, nil
}

// MarkRead sets the read flag. Returns ErrNotFound if the id does not exist.
func (s *AlertStore) MarkRead(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.byID[id]
	if !ok {
		return storage.ErrNotFound
	}
	a.Read = true
	return nil
}

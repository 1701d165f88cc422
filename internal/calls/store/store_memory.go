package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"qrcall/internal/calls/models"
	"qrcall/pkg/platform/sentinel"
)

// InMemory is the Call Session Store used when no database is configured.
// Records are cloned on the way in and out so callers never share state.
type InMemory struct {
	mu    sync.RWMutex
	calls map[string]*models.Call
}

func NewInMemory() *InMemory {
	return &InMemory{calls: make(map[string]*models.Call)}
}

func (s *InMemory) Create(_ context.Context, call *models.Call) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.calls[call.ID]; exists {
		return fmt.Errorf("create call %s: %w", call.ID, sentinel.ErrConflict)
	}
	s.calls[call.ID] = call.Clone()
	return nil
}

func (s *InMemory) FindByID(_ context.Context, callID string) (*models.Call, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	call, ok := s.calls[callID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return call.Clone(), nil
}

// UpdateIfStatus replaces the stored record only while its status still equals expected.
func (s *InMemory) UpdateIfStatus(_ context.Context, call *models.Call, expected models.Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.calls[call.ID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if current.Status != expected {
		return fmt.Errorf("call %s is %s, expected %s: %w", call.ID, current.Status, expected, sentinel.ErrConflict)
	}
	s.calls[call.ID] = call.Clone()
	return nil
}

func (s *InMemory) List(_ context.Context, filter models.HistoryFilter) (*models.HistoryPage, error) {
	s.mu.RLock()
	matched := make([]*models.Call, 0)
	for _, call := range s.calls {
		if filter.Matches(call) {
			matched = append(matched, call.Clone())
		}
	}
	s.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		return matched[i].Timing.InitiatedAt.After(matched[j].Timing.InitiatedAt)
	})

	page := &models.HistoryPage{Total: len(matched)}
	for _, call := range matched {
		page.Summary.Add(call)
	}
	start := min(filter.Offset(), len(matched))
	end := min(start+filter.Limit, len(matched))
	page.Calls = matched[start:end]
	return page, nil
}

// ListStale returns up to limit calls in status that were initiated before cutoff, oldest first.
func (s *InMemory) ListStale(_ context.Context, status models.Status, cutoff time.Time, limit int) ([]*models.Call, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var stale []*models.Call
	for _, call := range s.calls {
		if call.Status == status && call.Timing.InitiatedAt.Before(cutoff) {
			stale = append(stale, call.Clone())
		}
	}
	sort.Slice(stale, func(i, j int) bool {
		return stale[i].Timing.InitiatedAt.Before(stale[j].Timing.InitiatedAt)
	})
	if len(stale) > limit {
		stale = stale[:limit]
	}
	return stale, nil
}

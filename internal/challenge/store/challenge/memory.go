package challenge

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"streak/internal/challenge/models"
	id "streak/pkg/domain"
	"streak/pkg/platform/sentinel"
	txcontext "streak/pkg/platform/tx"
)

// InMemory is a thread-safe challenge store for tests and database-less runs.
type InMemory struct {
	mu   sync.RWMutex
	byID map[id.ChallengeID]*models.Challenge
}

func NewInMemory() *InMemory {
	return &InMemory{byID: make(map[id.ChallengeID]*models.Challenge)}
}

func (s *InMemory) Create(ctx context.Context, c *models.Challenge) error {
	if c == nil {
		return fmt.Errorf("challenge is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, taken := s.byID[c.ID]; taken {
		return fmt.Errorf("challenge id taken: %w", sentinel.ErrAlreadyUsed)
	}
	cp := *c
	s.byID[c.ID] = &cp
	s.undo(ctx, c.ID, nil)
	return nil
}

func (s *InMemory) FindByID(_ context.Context, tenantID id.TenantID, challengeID id.ChallengeID) (*models.Challenge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.byID[challengeID]
	if !ok || c.TenantID != tenantID {
		return nil, sentinel.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

// FindByIDForUpdate is FindByID; the in-memory tx runner already serializes writers.
func (s *InMemory) FindByIDForUpdate(ctx context.Context, tenantID id.TenantID, challengeID id.ChallengeID) (*models.Challenge, error) {
	return s.FindByID(ctx, tenantID, challengeID)
}

func (s *InMemory) Update(ctx context.Context, c *models.Challenge) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.byID[c.ID]
	if !ok || existing.TenantID != c.TenantID {
		return sentinel.ErrNotFound
	}
	cp := *c
	s.byID[c.ID] = &cp
	s.undo(ctx, c.ID, existing)
	return nil
}

func (s *InMemory) Delete(ctx context.Context, tenantID id.TenantID, challengeID id.ChallengeID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.byID[challengeID]
	if !ok || c.TenantID != tenantID {
		return sentinel.ErrNotFound
	}
	delete(s.byID, challengeID)
	s.undo(ctx, challengeID, c)
	return nil
}

// undo restores prev (or removes the row when prev is nil) if the surrounding
// in-memory transaction fails.
func (s *InMemory) undo(ctx context.Context, challengeID id.ChallengeID, prev *models.Challenge) {
	txcontext.OnRollback(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if prev == nil {
			delete(s.byID, challengeID)
			return
		}
		s.byID[challengeID] = prev
	})
}

func (s *InMemory) List(_ context.Context, tenantID id.TenantID, filter models.ListFilter) ([]*models.Challenge, error) {
	s.mu.RLock()
	var matched []*models.Challenge
	for _, c := range s.byID {
		if c.TenantID != tenantID {
			continue
		}
		if filter.Status != "" && c.Status(filter.Now) != filter.Status {
			continue
		}
		cp := *c
		matched = append(matched, &cp)
	}
	s.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		if matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].ID.String() > matched[j].ID.String()
		}
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})
	return paginate(matched, filter.Page), nil
}

func paginate[T any](items []T, page models.Page) []T {
	if page.Offset >= len(items) {
		return nil
	}
	items = items[page.Offset:]
	if page.Limit > 0 && page.Limit < len(items) {
		items = items[:page.Limit]
	}
	return items
}

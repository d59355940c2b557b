package tenant

import (
	"context"
	"fmt"
	"sync"

	"streak/internal/identity/models"
	id "streak/pkg/domain"
	"streak/pkg/platform/sentinel"
	txcontext "streak/pkg/platform/tx"
)

// InMemory is a thread-safe tenant store for tests and database-less runs.
// The byKey index plays the role of the unique constraint.
type InMemory struct {
	mu    sync.RWMutex
	byID  map[id.TenantID]*models.Tenant
	byKey map[string]id.TenantID
}

func NewInMemory() *InMemory {
	return &InMemory{
		byID:  make(map[id.TenantID]*models.Tenant),
		byKey: make(map[string]id.TenantID),
	}
}

func (s *InMemory) Create(ctx context.Context, tenant *models.Tenant) error {
	if tenant == nil {
		return fmt.Errorf("tenant is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, taken := s.byKey[tenant.CanonicalKey]; taken {
		return fmt.Errorf("tenant canonical key taken: %w", sentinel.ErrAlreadyUsed)
	}
	if _, taken := s.byID[tenant.ID]; taken {
		return fmt.Errorf("tenant id taken: %w", sentinel.ErrAlreadyUsed)
	}
	cp := *tenant
	s.byID[tenant.ID] = &cp
	s.byKey[tenant.CanonicalKey] = tenant.ID
	txcontext.OnRollback(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.byID, tenant.ID)
		delete(s.byKey, tenant.CanonicalKey)
	})
	return nil
}

func (s *InMemory) FindByCanonicalKey(_ context.Context, canonicalKey string) (*models.Tenant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tenantID, ok := s.byKey[canonicalKey]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *s.byID[tenantID]
	return &cp, nil
}

func (s *InMemory) FindByID(_ context.Context, tenantID id.TenantID) (*models.Tenant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.byID[tenantID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (s *InMemory) UpdateDisplayName(ctx context.Context, tenant *models.Tenant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.byID[tenant.ID]
	if !ok {
		return sentinel.ErrNotFound
	}
	prevName, prevUpdated := t.DisplayName, t.UpdatedAt
	txcontext.OnRollback(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		t.DisplayName, t.UpdatedAt = prevName, prevUpdated
	})
	t.DisplayName = tenant.DisplayName
	t.UpdatedAt = tenant.UpdatedAt
	return nil
}

// Count returns the number of stored tenants.
func (s *InMemory) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID)
}

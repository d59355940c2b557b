package identity

import (
	"context"
	"fmt"
	"sync"

	"streak/internal/identity/models"
	id "streak/pkg/domain"
	"streak/pkg/platform/sentinel"
	txcontext "streak/pkg/platform/tx"
)

// InMemory is a thread-safe identity store.
type InMemory struct {
	mu         sync.RWMutex
	identities map[id.ExternalUserID]*models.Identity
}

func NewInMemory() *InMemory {
	return &InMemory{identities: make(map[id.ExternalUserID]*models.Identity)}
}

func (s *InMemory) Create(ctx context.Context, ident *models.Identity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.identities[ident.ExternalUserID]; ok {
		return fmt.Errorf("identity exists: %w", sentinel.ErrAlreadyUsed)
	}
	cp := *ident
	s.identities[ident.ExternalUserID] = &cp
	s.undo(ctx, ident.ExternalUserID, nil)
	return nil
}

func (s *InMemory) FindByExternalUserID(_ context.Context, userID id.ExternalUserID) (*models.Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ident, ok := s.identities[userID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *ident
	return &cp, nil
}

func (s *InMemory) Update(ctx context.Context, ident *models.Identity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev, ok := s.identities[ident.ExternalUserID]
	if !ok {
		return sentinel.ErrNotFound
	}
	cp := *ident
	s.identities[ident.ExternalUserID] = &cp
	s.undo(ctx, ident.ExternalUserID, prev)
	return nil
}

func (s *InMemory) undo(ctx context.Context, userID id.ExternalUserID, prev *models.Identity) {
	txcontext.OnRollback(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if prev == nil {
			delete(s.identities, userID)
			return
		}
		s.identities[userID] = prev
	})
}

func (s *InMemory) CountByTenant(_ context.Context, tenantID id.TenantID) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, ident := range s.identities {
		if ident.TenantID == tenantID {
			n++
		}
	}
	return n, nil
}

// Len returns the number of stored identities.
func (s *InMemory) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.identities)
}

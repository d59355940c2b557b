package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"streak/internal/offer/models"
	id "streak/pkg/domain"
	"streak/pkg/platform/sentinel"
	txcontext "streak/pkg/platform/tx"
)

type InMemory struct {
	mu   sync.RWMutex
	byID map[id.OfferID]*models.Offer
}

func NewInMemory() *InMemory {
	return &InMemory{byID: make(map[id.OfferID]*models.Offer)}
}

func (s *InMemory) Create(ctx context.Context, o *models.Offer) error {
	if o == nil {
		return fmt.Errorf("offer is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, taken := s.byID[o.ID]; taken {
		return fmt.Errorf("offer id taken: %w", sentinel.ErrAlreadyUsed)
	}
	cp := *o
	s.byID[o.ID] = &cp
	s.undo(ctx, o.ID, nil)
	return nil
}

func (s *InMemory) FindByID(_ context.Context, tenantID id.TenantID, offerID id.OfferID) (*models.Offer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.byID[offerID]
	if !ok || o.TenantID != tenantID {
		return nil, sentinel.ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (s *InMemory) Update(ctx context.Context, o *models.Offer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.byID[o.ID]
	if !ok || existing.TenantID != o.TenantID {
		return sentinel.ErrNotFound
	}
	cp := *o
	s.byID[o.ID] = &cp
	s.undo(ctx, o.ID, existing)
	return nil
}

func (s *InMemory) ListByChallenge(_ context.Context, tenantID id.TenantID, challengeID id.ChallengeID, activeOnly bool) ([]*models.Offer, error) {
	s.mu.RLock()
	var out []*models.Offer
	for _, o := range s.byID {
		if o.TenantID != tenantID || o.ChallengeID != challengeID || (activeOnly && !o.Active) {
			continue
		}
		cp := *o
		out = append(out, &cp)
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID.String() < out[j].ID.String()
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (s *InMemory) DeleteByChallenge(ctx context.Context, tenantID id.TenantID, challengeID id.ChallengeID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for offerID, o := range s.byID {
		if o.TenantID == tenantID && o.ChallengeID == challengeID {
			delete(s.byID, offerID)
			s.undo(ctx, offerID, o)
		}
	}
	return nil
}

// undo restores prev (or removes the offer when prev is nil) if the
// surrounding in-memory transaction fails.
func (s *InMemory) undo(ctx context.Context, offerID id.OfferID, prev *models.Offer) {
	txcontext.OnRollback(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if prev == nil {
			delete(s.byID, offerID)
			return
		}
		s.byID[offerID] = prev
	})
}

package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"streak/internal/billing/models"
	id "streak/pkg/domain"
	"streak/pkg/platform/sentinel"
	txcontext "streak/pkg/platform/tx"
)

type InMemory struct {
	mu        sync.Mutex
	processed map[string]struct{}
	byPayment map[string]*models.RevenueShare
}

func NewInMemory() *InMemory {
	return &InMemory{
		processed: make(map[string]struct{}),
		byPayment: make(map[string]*models.RevenueShare),
	}
}

func (s *InMemory) MarkProcessed(ctx context.Context, eventID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.processed[eventID]; ok {
		return fmt.Errorf("payment event already processed: %w", sentinel.ErrAlreadyUsed)
	}
	s.processed[eventID] = struct{}{}
	txcontext.OnRollback(ctx, func() {
		s.mu.Lock()
		delete(s.processed, eventID)
		s.mu.Unlock()
	})
	return nil
}

func (s *InMemory) Record(ctx context.Context, r *models.RevenueShare) error {
	if r == nil {
		return fmt.Errorf("revenue share is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byPayment[r.PaymentID]; ok {
		return fmt.Errorf("payment already recorded: %w", sentinel.ErrAlreadyUsed)
	}
	cp := *r
	s.byPayment[r.PaymentID] = &cp
	txcontext.OnRollback(ctx, func() {
		s.mu.Lock()
		delete(s.byPayment, r.PaymentID)
		s.mu.Unlock()
	})
	return nil
}

func (s *InMemory) Totals(_ context.Context, tenantID id.TenantID) ([]models.RevenueTotals, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	byCurrency := make(map[string]*models.RevenueTotals)
	for _, r := range s.byPayment {
		if r.TenantID != tenantID {
			continue
		}
		t, ok := byCurrency[r.Currency]
		if !ok {
			t = &models.RevenueTotals{Currency: r.Currency}
			byCurrency[r.Currency] = t
		}
		t.Payments++
		t.GrossCents += r.GrossCents
		t.PlatformFeeCents += r.PlatformFeeCents
		t.CreatorCents += r.CreatorCents
	}
	totals := make([]models.RevenueTotals, 0, len(byCurrency))
	for _, t := range byCurrency {
		totals = append(totals, *t)
	}
	sort.Slice(totals, func(i, j int) bool { return totals[i].Currency < totals[j].Currency })
	return totals, nil
}

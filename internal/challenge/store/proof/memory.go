package proof

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

type periodKey struct {
	enrollment id.EnrollmentID
	period     string
}

// InMemory is a thread-safe proof store. byPeriod plays the role of the
// (enrollment_id, period_key) unique constraint.
type InMemory struct {
	mu       sync.RWMutex
	byPeriod map[periodKey]*models.Proof
}

func NewInMemory() *InMemory {
	return &InMemory{byPeriod: make(map[periodKey]*models.Proof)}
}

func (s *InMemory) Create(ctx context.Context, p *models.Proof) error {
	if p == nil {
		return fmt.Errorf("proof is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	key := periodKey{enrollment: p.EnrollmentID, period: p.PeriodKey}
	if _, taken := s.byPeriod[key]; taken {
		return fmt.Errorf("proof already submitted for period: %w", sentinel.ErrAlreadyUsed)
	}
	cp := *p
	s.byPeriod[key] = &cp
	txcontext.OnRollback(ctx, func() {
		s.mu.Lock()
		delete(s.byPeriod, key)
		s.mu.Unlock()
	})
	return nil
}

func (s *InMemory) List(_ context.Context, tenantID id.TenantID, challengeID id.ChallengeID, userID id.ExternalUserID, page models.Page) ([]*models.Proof, error) {
	out := s.matching(tenantID, challengeID)
	if !userID.IsNil() {
		filtered := out[:0]
		for _, p := range out {
			if p.ExternalUserID == userID {
				filtered = append(filtered, p)
			}
		}
		out = filtered
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].SubmittedAt.Equal(out[j].SubmittedAt) {
			return out[i].ID.String() > out[j].ID.String()
		}
		return out[i].SubmittedAt.After(out[j].SubmittedAt)
	})
	if page.Offset >= len(out) {
		return nil, nil
	}
	out = out[page.Offset:]
	if page.Limit > 0 && page.Limit < len(out) {
		out = out[:page.Limit]
	}
	return out, nil
}

func (s *InMemory) CountByUser(_ context.Context, tenantID id.TenantID, challengeID id.ChallengeID) (map[id.ExternalUserID]int, error) {
	counts := make(map[id.ExternalUserID]int)
	for _, p := range s.matching(tenantID, challengeID) {
		counts[p.ExternalUserID]++
	}
	return counts, nil
}

func (s *InMemory) DeleteByChallenge(ctx context.Context, tenantID id.TenantID, challengeID id.ChallengeID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := make(map[periodKey]*models.Proof)
	for key, p := range s.byPeriod {
		if p.TenantID == tenantID && p.ChallengeID == challengeID {
			removed[key] = p
			delete(s.byPeriod, key)
		}
	}
	txcontext.OnRollback(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		for key, p := range removed {
			s.byPeriod[key] = p
		}
	})
	return nil
}

func (s *InMemory) matching(tenantID id.TenantID, challengeID id.ChallengeID) []*models.Proof {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Proof
	for _, p := range s.byPeriod {
		if p.TenantID == tenantID && p.ChallengeID == challengeID {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out
}

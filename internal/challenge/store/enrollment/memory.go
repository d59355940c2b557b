package enrollment

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

type userKey struct {
	challenge id.ChallengeID
	user      id.ExternalUserID
}

// InMemory is a thread-safe enrollment store. byUser plays the role of the
// (challenge_id, external_user_id) unique constraint.
type InMemory struct {
	mu     sync.RWMutex
	byUser map[userKey]*models.Enrollment
}

func NewInMemory() *InMemory {
	return &InMemory{byUser: make(map[userKey]*models.Enrollment)}
}

func (s *InMemory) Create(ctx context.Context, e *models.Enrollment) error {
	if e == nil {
		return fmt.Errorf("enrollment is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	key := userKey{challenge: e.ChallengeID, user: e.ExternalUserID}
	if _, taken := s.byUser[key]; taken {
		return fmt.Errorf("user already enrolled: %w", sentinel.ErrAlreadyUsed)
	}
	cp := *e
	s.byUser[key] = &cp
	txcontext.OnRollback(ctx, func() {
		s.mu.Lock()
		delete(s.byUser, key)
		s.mu.Unlock()
	})
	return nil
}

func (s *InMemory) FindByUser(_ context.Context, tenantID id.TenantID, challengeID id.ChallengeID, userID id.ExternalUserID) (*models.Enrollment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.byUser[userKey{challenge: challengeID, user: userID}]
	if !ok || e.TenantID != tenantID {
		return nil, sentinel.ErrNotFound
	}
	cp := *e
	return &cp, nil
}

func (s *InMemory) CountActive(ctx context.Context, tenantID id.TenantID, challengeID id.ChallengeID) (int, error) {
	list, err := s.ListByChallenge(ctx, tenantID, challengeID)
	return len(list), err
}

func (s *InMemory) ListByChallenge(_ context.Context, tenantID id.TenantID, challengeID id.ChallengeID) ([]*models.Enrollment, error) {
	s.mu.RLock()
	var out []*models.Enrollment
	for _, e := range s.byUser {
		if e.TenantID == tenantID && e.ChallengeID == challengeID && e.IsActive() {
			cp := *e
			out = append(out, &cp)
		}
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].JoinedAt.Equal(out[j].JoinedAt) {
			return out[i].ID.String() < out[j].ID.String()
		}
		return out[i].JoinedAt.Before(out[j].JoinedAt)
	})
	return out, nil
}

func (s *InMemory) DeleteByChallenge(ctx context.Context, tenantID id.TenantID, challengeID id.ChallengeID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := make(map[userKey]*models.Enrollment)
	for key, e := range s.byUser {
		if e.TenantID == tenantID && e.ChallengeID == challengeID {
			removed[key] = e
			delete(s.byUser, key)
		}
	}
	txcontext.OnRollback(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		for key, e := range removed {
			s.byUser[key] = e
		}
	})
	return nil
}

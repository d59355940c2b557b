package winner

import (
	"context"
	"sort"
	"sync"

	"streak/internal/challenge/models"
	id "streak/pkg/domain"
	txcontext "streak/pkg/platform/tx"
)

type InMemory struct {
	mu          sync.RWMutex
	byChallenge map[id.ChallengeID][]models.Winner
}

func NewInMemory() *InMemory {
	return &InMemory{byChallenge: make(map[id.ChallengeID][]models.Winner)}
}

func (s *InMemory) Replace(ctx context.Context, _ id.TenantID, challengeID id.ChallengeID, winners []*models.Winner) error {
	list := make([]models.Winner, 0, len(winners))
	for _, w := range winners {
		list = append(list, *w)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Place < list[j].Place })

	s.mu.Lock()
	defer s.mu.Unlock()
	s.undo(ctx, challengeID)
	if len(list) == 0 {
		delete(s.byChallenge, challengeID)
		return nil
	}
	s.byChallenge[challengeID] = list
	return nil
}

func (s *InMemory) List(_ context.Context, tenantID id.TenantID, challengeID id.ChallengeID) ([]*models.Winner, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Winner
	for _, w := range s.byChallenge[challengeID] {
		if w.TenantID != tenantID {
			continue
		}
		cp := w
		out = append(out, &cp)
	}
	return out, nil
}

func (s *InMemory) DeleteByChallenge(ctx context.Context, _ id.TenantID, challengeID id.ChallengeID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.undo(ctx, challengeID)
	delete(s.byChallenge, challengeID)
	return nil
}

// undo snapshots the current winner list so a failed transaction can put it
// back. Callers hold s.mu.
func (s *InMemory) undo(ctx context.Context, challengeID id.ChallengeID) {
	prev, had := s.byChallenge[challengeID]
	txcontext.OnRollback(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if !had {
			delete(s.byChallenge, challengeID)
			return
		}
		s.byChallenge[challengeID] = prev
	})
}

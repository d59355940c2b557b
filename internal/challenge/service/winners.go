package service

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"streak/contracts/identity"
	"streak/internal/challenge/models"
	id "streak/pkg/domain"
	dErrors "streak/pkg/domain-errors"
	"streak/pkg/platform/outbox"
	"streak/pkg/platform/sentinel"
	"streak/pkg/requestcontext"
)

// SetWinners replaces the winner list. Every winner must hold an active
// enrollment; an empty list clears the winners.
func (s *Service) SetWinners(ctx context.Context, p identity.Principal, challengeID id.ChallengeID, req *models.SetWinnersRequest) ([]*models.Winner, error) {
	if err := requireOwner(p); err != nil {
		return nil, err
	}
	now := requestcontext.Now(ctx)
	winners := make([]*models.Winner, 0, len(req.Winners))
	for _, in := range req.Winners {
		winners = append(winners, &models.Winner{
			TenantID:       p.TenantID,
			ChallengeID:    challengeID,
			ExternalUserID: id.ExternalUserID(in.ExternalUserID),
			Place:          in.Place,
			Reason:         in.Reason,
			SelectedAt:     now,
		})
	}
	sort.Slice(winners, func(i, j int) bool { return winners[i].Place < winners[j].Place })

	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if _, err := s.challenges.FindByIDForUpdate(ctx, p.TenantID, challengeID); err != nil {
			return err
		}
		records := make([]models.WinnerRecord, 0, len(winners))
		for _, w := range winners {
			e, err := s.enrollments.FindByUser(ctx, p.TenantID, challengeID, w.ExternalUserID)
			if errors.Is(err, sentinel.ErrNotFound) || (err == nil && !e.IsActive()) {
				return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("user %s is not enrolled", w.ExternalUserID))
			}
			if err != nil {
				return err
			}
			records = append(records, models.WinnerRecord{ExternalUserID: w.ExternalUserID.String(), Place: w.Place})
		}
		if err := s.winners.Replace(ctx, p.TenantID, challengeID, winners); err != nil {
			return err
		}
		return outbox.Record(ctx, s.events, outbox.Event{
			Type:          outbox.EventWinnersSelected,
			TenantID:      p.TenantID,
			AggregateType: "challenge",
			AggregateID:   challengeID.String(),
			Data:          models.WinnersSelected{ChallengeID: challengeID.String(), Winners: records},
		}, now)
	})
	if err != nil {
		return nil, wrapErr(err, "challenge not found", "failed to set winners")
	}

	s.audit.Log(ctx, "winners_selected",
		"tenant_id", p.TenantID,
		"challenge_id", challengeID,
		"count", len(winners),
	)
	if s.metrics != nil {
		s.metrics.IncWinnersSelected()
	}
	return winners, nil
}

func (s *Service) ListWinners(ctx context.Context, p identity.Principal, challengeID id.ChallengeID) ([]*models.Winner, error) {
	if _, err := s.loadChallenge(ctx, p, challengeID); err != nil {
		return nil, err
	}
	list, err := s.winners.List(ctx, p.TenantID, challengeID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list winners")
	}
	if list == nil {
		list = []*models.Winner{}
	}
	return list, nil
}

// Leaderboard ranks enrolled users by proof count, earliest joiner first on
// ties. Tied users share a rank.
func (s *Service) Leaderboard(ctx context.Context, p identity.Principal, challengeID id.ChallengeID) ([]models.LeaderboardEntry, error) {
	if _, err := s.loadChallenge(ctx, p, challengeID); err != nil {
		return nil, err
	}
	enrollments, err := s.enrollments.ListByChallenge(ctx, p.TenantID, challengeID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list enrollments")
	}
	counts, err := s.proofs.CountByUser(ctx, p.TenantID, challengeID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to count proofs")
	}

	board := make([]models.LeaderboardEntry, 0, len(enrollments))
	for _, e := range enrollments {
		board = append(board, models.LeaderboardEntry{
			ExternalUserID: e.ExternalUserID,
			ProofCount:     counts[e.ExternalUserID],
			JoinedAt:       e.JoinedAt,
		})
	}
	sort.SliceStable(board, func(i, j int) bool {
		if board[i].ProofCount != board[j].ProofCount {
			return board[i].ProofCount > board[j].ProofCount
		}
		return board[i].JoinedAt.Before(board[j].JoinedAt)
	})
	for i := range board {
		if i > 0 && board[i].ProofCount == board[i-1].ProofCount {
			board[i].Rank = board[i-1].Rank
			continue
		}
		board[i].Rank = i + 1
	}
	return board, nil
}

// Participation reports the caller's enrollment, proof count and placing.
func (s *Service) Participation(ctx context.Context, p identity.Principal, challengeID id.ChallengeID) (*models.Participation, error) {
	if _, err := s.loadChallenge(ctx, p, challengeID); err != nil {
		return nil, err
	}
	out := &models.Participation{}
	e, err := s.enrollments.FindByUser(ctx, p.TenantID, challengeID, p.ExternalUserID)
	switch {
	case err == nil:
		out.Enrolled = e.IsActive()
	case !errors.Is(err, sentinel.ErrNotFound):
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load enrollment")
	}
	if !out.Enrolled {
		return out, nil
	}

	counts, err := s.proofs.CountByUser(ctx, p.TenantID, challengeID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to count proofs")
	}
	out.ProofCount = counts[p.ExternalUserID]

	winners, err := s.winners.List(ctx, p.TenantID, challengeID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list winners")
	}
	for _, w := range winners {
		if w.ExternalUserID == p.ExternalUserID {
			out.Winner, out.Place = true, w.Place
			break
		}
	}
	return out, nil
}

package service

import (
	"context"

	"streak/contracts/identity"
	"streak/internal/challenge/models"
	id "streak/pkg/domain"
	dErrors "streak/pkg/domain-errors"
	"streak/pkg/platform/outbox"
	"streak/pkg/platform/validation"
	"streak/pkg/requestcontext"
)

func (s *Service) CreateChallenge(ctx context.Context, p identity.Principal, req *models.CreateChallengeRequest) (*models.Challenge, error) {
	if err := requireOwner(p); err != nil {
		return nil, err
	}
	now := requestcontext.Now(ctx)
	c := &models.Challenge{
		ID:              id.NewChallengeID(),
		TenantID:        p.TenantID,
		Title:           req.Title,
		Description:     req.Description,
		StartsAt:        req.StartsAt.UTC(),
		EndsAt:          req.EndsAt.UTC(),
		ProofType:       req.ProofType,
		ProofFrequency:  req.ProofFrequency,
		MaxParticipants: req.MaxParticipants,
		EntryFeeCents:   req.EntryFeeCents,
		Currency:        req.Currency,
		CreatedBy:       p.ExternalUserID,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if c.Currency == "" {
		c.Currency = models.DefaultCurrency
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}

	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.challenges.Create(ctx, c); err != nil {
			return err
		}
		return outbox.Record(ctx, s.events, outbox.Event{
			Type:          outbox.EventChallengeCreated,
			TenantID:      c.TenantID,
			AggregateType: "challenge",
			AggregateID:   c.ID.String(),
			Data: models.ChallengeCreated{
				ChallengeID:   c.ID.String(),
				Title:         c.Title,
				EntryFeeCents: c.EntryFeeCents,
				CreatedBy:     p.ExternalUserID.String(),
			},
		}, now)
	})
	if err != nil {
		return nil, wrapErr(err, "challenge not found", "failed to create challenge")
	}

	s.audit.Log(ctx, "challenge_created",
		"tenant_id", c.TenantID,
		"challenge_id", c.ID,
		"external_user_id", p.ExternalUserID,
	)
	if s.metrics != nil {
		s.metrics.IncChallengeCreated()
	}
	return c, nil
}

// UpdateChallenge applies a partial update. The participant cap may not drop
// below the number of people already enrolled.
func (s *Service) UpdateChallenge(ctx context.Context, p identity.Principal, challengeID id.ChallengeID, req *models.UpdateChallengeRequest) (*models.Challenge, error) {
	if err := requireOwner(p); err != nil {
		return nil, err
	}
	var updated *models.Challenge
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		c, err := s.challenges.FindByIDForUpdate(ctx, p.TenantID, challengeID)
		if err != nil {
			return err
		}
		req.Apply(c, requestcontext.Now(ctx))
		if err := c.Validate(); err != nil {
			return err
		}
		if req.MaxParticipants != nil && c.MaxParticipants > 0 {
			enrolled, err := s.enrollments.CountActive(ctx, p.TenantID, challengeID)
			if err != nil {
				return err
			}
			if enrolled > c.MaxParticipants {
				return dErrors.New(dErrors.CodeConflict, "max_participants is below the current enrollment count")
			}
		}
		if err := s.challenges.Update(ctx, c); err != nil {
			return err
		}
		updated = c
		return nil
	})
	if err != nil {
		return nil, wrapErr(err, "challenge not found", "failed to update challenge")
	}
	return updated, nil
}

// DeleteChallenge removes the challenge with its enrollments, proofs, winners
// and dependent rows in one transaction.
func (s *Service) DeleteChallenge(ctx context.Context, p identity.Principal, challengeID id.ChallengeID) error {
	if err := requireOwner(p); err != nil {
		return err
	}
	now := requestcontext.Now(ctx)
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if _, err := s.challenges.FindByIDForUpdate(ctx, p.TenantID, challengeID); err != nil {
			return err
		}
		if err := s.winners.DeleteByChallenge(ctx, p.TenantID, challengeID); err != nil {
			return err
		}
		if err := s.proofs.DeleteByChallenge(ctx, p.TenantID, challengeID); err != nil {
			return err
		}
		if err := s.enrollments.DeleteByChallenge(ctx, p.TenantID, challengeID); err != nil {
			return err
		}
		for _, dep := range s.dependents {
			if err := dep.DeleteByChallenge(ctx, p.TenantID, challengeID); err != nil {
				return err
			}
		}
		if err := s.challenges.Delete(ctx, p.TenantID, challengeID); err != nil {
			return err
		}
		return outbox.Record(ctx, s.events, outbox.Event{
			Type:          outbox.EventChallengeDeleted,
			TenantID:      p.TenantID,
			AggregateType: "challenge",
			AggregateID:   challengeID.String(),
			Data: models.ChallengeDeleted{
				ChallengeID: challengeID.String(),
				DeletedBy:   p.ExternalUserID.String(),
			},
		}, now)
	})
	if err != nil {
		return wrapErr(err, "challenge not found", "failed to delete challenge")
	}

	s.audit.Log(ctx, "challenge_deleted",
		"tenant_id", p.TenantID,
		"challenge_id", challengeID,
		"external_user_id", p.ExternalUserID,
	)
	if s.metrics != nil {
		s.metrics.IncChallengeDeleted()
	}
	return nil
}

func (s *Service) GetChallenge(ctx context.Context, p identity.Principal, challengeID id.ChallengeID) (*models.Challenge, error) {
	return s.loadChallenge(ctx, p, challengeID)
}

// ListChallenges pages through the tenant's challenges, newest first.
func (s *Service) ListChallenges(ctx context.Context, p identity.Principal, status models.Status, page models.Page) ([]*models.Challenge, error) {
	if err := requirePrincipal(p); err != nil {
		return nil, err
	}
	if status != "" && !status.Valid() {
		return nil, dErrors.New(dErrors.CodeValidation, "status must be one of upcoming, active, ended")
	}
	if page.Offset < 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "offset cannot be negative")
	}
	page.Limit = validation.ClampPageSize(page.Limit)

	list, err := s.challenges.List(ctx, p.TenantID, models.ListFilter{
		Status: status,
		Now:    requestcontext.Now(ctx),
		Page:   page,
	})
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list challenges")
	}
	if list == nil {
		list = []*models.Challenge{}
	}
	return list, nil
}

func (s *Service) GetChallengeStats(ctx context.Context, p identity.Principal, challengeID id.ChallengeID) (*models.ChallengeStats, error) {
	c, err := s.loadChallenge(ctx, p, challengeID)
	if err != nil {
		return nil, err
	}
	enrolled, err := s.enrollments.CountActive(ctx, p.TenantID, challengeID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to count enrollments")
	}
	counts, err := s.proofs.CountByUser(ctx, p.TenantID, challengeID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to count proofs")
	}
	winners, err := s.winners.List(ctx, p.TenantID, challengeID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list winners")
	}

	stats := &models.ChallengeStats{
		ChallengeID:      c.ID,
		Status:           c.Status(requestcontext.Now(ctx)),
		Enrollments:      enrolled,
		ActiveSubmitters: len(counts),
		Winners:          len(winners),
	}
	for _, n := range counts {
		stats.Proofs += n
	}
	if c.MaxParticipants > 0 {
		left := max(c.MaxParticipants-enrolled, 0)
		stats.SpotsLeft = &left
	}
	return stats, nil
}

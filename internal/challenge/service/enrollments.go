package service

import (
	"context"
	"errors"
	"time"

	"streak/contracts/identity"
	"streak/internal/challenge/models"
	id "streak/pkg/domain"
	dErrors "streak/pkg/domain-errors"
	"streak/pkg/platform/outbox"
	"streak/pkg/platform/sentinel"
	"streak/pkg/requestcontext"
)

// Enroll joins the caller to a free challenge. Enrolling twice returns the
// existing enrollment with created=false.
func (s *Service) Enroll(ctx context.Context, p identity.Principal, challengeID id.ChallengeID) (*models.Enrollment, bool, error) {
	if err := requirePrincipal(p); err != nil {
		return nil, false, err
	}
	return s.enroll(ctx, p.TenantID, challengeID, p.ExternalUserID, models.SourceFree, "")
}

// EnrollPurchase records a paid enrollment on behalf of the payment webhook.
// A completed payment is honored even when the cap was reached meanwhile.
func (s *Service) EnrollPurchase(ctx context.Context, tenantID id.TenantID, challengeID id.ChallengeID, userID id.ExternalUserID, paymentID string) (*models.Enrollment, bool, error) {
	if tenantID.IsNil() || userID.IsNil() {
		return nil, false, dErrors.New(dErrors.CodeBadRequest, "tenant and user are required")
	}
	return s.enroll(ctx, tenantID, challengeID, userID, models.SourcePurchase, paymentID)
}

func (s *Service) enroll(ctx context.Context, tenantID id.TenantID, challengeID id.ChallengeID, userID id.ExternalUserID, source models.EnrollmentSource, paymentID string) (*models.Enrollment, bool, error) {
	now := requestcontext.Now(ctx)
	var (
		result  *models.Enrollment
		created bool
	)
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		c, err := s.challenges.FindByIDForUpdate(ctx, tenantID, challengeID)
		if err != nil {
			return err
		}
		existing, err := s.enrollments.FindByUser(ctx, tenantID, challengeID, userID)
		if err == nil {
			result = existing
			return nil
		}
		if !errors.Is(err, sentinel.ErrNotFound) {
			return err
		}

		if source == models.SourceFree {
			if err := s.checkOpen(ctx, c, now); err != nil {
				return err
			}
		}

		e := models.NewEnrollment(c, userID, source, paymentID, now)
		if err := s.enrollments.Create(ctx, e); err != nil {
			if errors.Is(err, sentinel.ErrAlreadyUsed) {
				result, err = s.enrollments.FindByUser(ctx, tenantID, challengeID, userID)
				return err
			}
			return err
		}
		result, created = e, true
		return outbox.Record(ctx, s.events, outbox.Event{
			Type:          outbox.EventEnrollmentCreated,
			TenantID:      tenantID,
			AggregateType: "enrollment",
			AggregateID:   e.ID.String(),
			Data: models.EnrollmentCreated{
				EnrollmentID:   e.ID.String(),
				ChallengeID:    challengeID.String(),
				ExternalUserID: userID.String(),
				Source:         string(source),
				PaymentID:      paymentID,
			},
		}, now)
	})
	if err != nil {
		return nil, false, wrapErr(err, "challenge not found", "failed to enroll")
	}

	if created {
		s.audit.Log(ctx, "enrollment_created",
			"tenant_id", tenantID,
			"challenge_id", challengeID,
			"external_user_id", userID,
			"source", source,
		)
		if s.metrics != nil {
			s.metrics.IncEnrollment(string(source))
		}
	}
	return result, created, nil
}

// checkOpen refuses API enrollment into paid, ended, or full challenges.
func (s *Service) checkOpen(ctx context.Context, c *models.Challenge, now time.Time) error {
	if !c.IsFree() {
		s.rejected("paid")
		return dErrors.New(dErrors.CodeForbidden, "challenge requires a purchase")
	}
	if c.Status(now) == models.StatusEnded {
		s.rejected("ended")
		return dErrors.New(dErrors.CodeConflict, "challenge has ended")
	}
	if c.MaxParticipants > 0 {
		enrolled, err := s.enrollments.CountActive(ctx, c.TenantID, c.ID)
		if err != nil {
			return err
		}
		if c.IsFull(enrolled) {
			s.rejected("full")
			return dErrors.New(dErrors.CodeConflict, "challenge is full")
		}
	}
	return nil
}

func (s *Service) rejected(reason string) {
	if s.metrics != nil {
		s.metrics.IncEnrollRejected(reason)
	}
}

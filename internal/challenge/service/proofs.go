package service

import (
	"context"
	"errors"

	"streak/contracts/identity"
	"streak/internal/challenge/models"
	id "streak/pkg/domain"
	dErrors "streak/pkg/domain-errors"
	"streak/pkg/platform/sentinel"
	"streak/pkg/platform/validation"
	"streak/pkg/requestcontext"
)

// SubmitProof records the caller's proof for the current period. The
// challenge must be active and the caller enrolled.
func (s *Service) SubmitProof(ctx context.Context, p identity.Principal, challengeID id.ChallengeID, req *models.SubmitProofRequest) (*models.Proof, error) {
	c, err := s.loadChallenge(ctx, p, challengeID)
	if err != nil {
		return nil, err
	}
	now := requestcontext.Now(ctx)
	if status := c.Status(now); status != models.StatusActive {
		return nil, dErrors.New(dErrors.CodeConflict, "challenge is "+string(status)+", proofs are accepted only while active")
	}
	if err := req.CheckAgainst(c.ProofType); err != nil {
		return nil, err
	}

	enrollment, err := s.enrollments.FindByUser(ctx, p.TenantID, challengeID, p.ExternalUserID)
	if errors.Is(err, sentinel.ErrNotFound) || (err == nil && !enrollment.IsActive()) {
		return nil, dErrors.New(dErrors.CodeForbidden, "caller is not enrolled in this challenge")
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load enrollment")
	}

	proof := &models.Proof{
		ID:             id.NewProofID(),
		TenantID:       p.TenantID,
		ChallengeID:    challengeID,
		EnrollmentID:   enrollment.ID,
		ExternalUserID: p.ExternalUserID,
		PeriodKey:      c.PeriodKey(now),
		Content:        req.Content,
		MediaURL:       req.MediaURL,
		Note:           req.Note,
		SubmittedAt:    now,
	}
	if err := s.proofs.Create(ctx, proof); err != nil {
		if errors.Is(err, sentinel.ErrAlreadyUsed) {
			return nil, dErrors.New(dErrors.CodeConflict, "proof already submitted for period "+proof.PeriodKey)
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to save proof")
	}

	if s.metrics != nil {
		s.metrics.IncProof(string(c.ProofType))
	}
	return proof, nil
}

// ListProofs returns every proof to the owner and only the caller's own to members.
func (s *Service) ListProofs(ctx context.Context, p identity.Principal, challengeID id.ChallengeID, page models.Page) ([]*models.Proof, error) {
	if _, err := s.loadChallenge(ctx, p, challengeID); err != nil {
		return nil, err
	}
	if page.Offset < 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "offset cannot be negative")
	}
	page.Limit = validation.ClampPageSize(page.Limit)

	var only id.ExternalUserID
	if !p.IsOwner() {
		only = p.ExternalUserID
	}
	list, err := s.proofs.List(ctx, p.TenantID, challengeID, only, page)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list proofs")
	}
	if list == nil {
		list = []*models.Proof{}
	}
	return list, nil
}

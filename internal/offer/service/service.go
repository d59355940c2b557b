// Package service manages special offers attached to challenges and decides
// which of them a participant may see.
package service

import (
	"context"
	"errors"
	"log/slog"

	"streak/contracts/identity"
	challenge "streak/internal/challenge/models"
	"streak/internal/offer/models"
	id "streak/pkg/domain"
	dErrors "streak/pkg/domain-errors"
	"streak/pkg/platform/audit"
	"streak/pkg/platform/sentinel"
	"streak/pkg/requestcontext"
)

type Store interface {
	Create(ctx context.Context, o *models.Offer) error
	FindByID(ctx context.Context, tenantID id.TenantID, offerID id.OfferID) (*models.Offer, error)
	Update(ctx context.Context, o *models.Offer) error
	ListByChallenge(ctx context.Context, tenantID id.TenantID, challengeID id.ChallengeID, activeOnly bool) ([]*models.Offer, error)
}

// Challenges is the slice of the challenge service offers depend on.
type Challenges interface {
	GetChallenge(ctx context.Context, p identity.Principal, challengeID id.ChallengeID) (*challenge.Challenge, error)
	Participation(ctx context.Context, p identity.Principal, challengeID id.ChallengeID) (*challenge.Participation, error)
}

type Service struct {
	store      Store
	challenges Challenges
	logger     *slog.Logger
	audit      *audit.Logger
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func New(store Store, challenges Challenges, opts ...Option) *Service {
	s := &Service{store: store, challenges: challenges, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	s.audit = audit.NewLogger(s.logger)
	return s
}

func (s *Service) CreateOffer(ctx context.Context, p identity.Principal, challengeID id.ChallengeID, req *models.CreateOfferRequest) (*models.Offer, error) {
	if !p.IsOwner() {
		return nil, dErrors.New(dErrors.CodeForbidden, "only the tenant owner can create offers")
	}
	if _, err := s.challenges.GetChallenge(ctx, p, challengeID); err != nil {
		return nil, err
	}

	now := requestcontext.Now(ctx)
	o := &models.Offer{
		ID:          id.NewOfferID(),
		TenantID:    p.TenantID,
		ChallengeID: challengeID,
		Title:       req.Title,
		Description: req.Description,
		PlanID:      req.PlanID,
		PriceCents:  req.PriceCents,
		Currency:    req.Currency,
		Audience:    req.Audience,
		MinProofs:   req.MinProofs,
		Active:      req.Active == nil || *req.Active,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.store.Create(ctx, o); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create offer")
	}
	s.audit.Log(ctx, "offer_created",
		"tenant_id", p.TenantID,
		"challenge_id", challengeID,
		"offer_id", o.ID,
	)
	return o, nil
}

func (s *Service) UpdateOffer(ctx context.Context, p identity.Principal, offerID id.OfferID, req *models.UpdateOfferRequest) (*models.Offer, error) {
	if !p.IsOwner() {
		return nil, dErrors.New(dErrors.CodeForbidden, "only the tenant owner can update offers")
	}
	o, err := s.store.FindByID(ctx, p.TenantID, offerID)
	if err != nil {
		return nil, wrapOfferErr(err, "failed to load offer")
	}
	req.Apply(o, requestcontext.Now(ctx))
	if err := s.store.Update(ctx, o); err != nil {
		return nil, wrapOfferErr(err, "failed to update offer")
	}
	return o, nil
}

// ListOffers shows every offer to the owner and only active ones to members.
func (s *Service) ListOffers(ctx context.Context, p identity.Principal, challengeID id.ChallengeID) ([]*models.Offer, error) {
	if _, err := s.challenges.GetChallenge(ctx, p, challengeID); err != nil {
		return nil, err
	}
	list, err := s.store.ListByChallenge(ctx, p.TenantID, challengeID, !p.IsOwner())
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list offers")
	}
	if list == nil {
		list = []*models.Offer{}
	}
	return list, nil
}

// ListEligibleOffers returns the active offers whose audience rule the caller meets.
func (s *Service) ListEligibleOffers(ctx context.Context, p identity.Principal, challengeID id.ChallengeID) ([]*models.Offer, error) {
	part, err := s.challenges.Participation(ctx, p, challengeID)
	if err != nil {
		return nil, err
	}
	offers, err := s.store.ListByChallenge(ctx, p.TenantID, challengeID, true)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list offers")
	}
	eligible := make([]*models.Offer, 0, len(offers))
	for _, o := range offers {
		if o.EligibleFor(part) {
			eligible = append(eligible, o)
		}
	}
	return eligible, nil
}

// FindForPayment loads an offer named in a payment, scoped to the paying tenant.
func (s *Service) FindForPayment(ctx context.Context, tenantID id.TenantID, offerID id.OfferID) (*models.Offer, error) {
	o, err := s.store.FindByID(ctx, tenantID, offerID)
	if err != nil {
		return nil, wrapOfferErr(err, "failed to load offer")
	}
	return o, nil
}

func wrapOfferErr(err error, action string) error {
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, "offer not found")
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, action)
}

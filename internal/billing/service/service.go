// Package service applies payment webhook events: it enrolls purchasers,
// writes the revenue-share ledger and reports per-tenant totals.
package service

import (
	"context"
	"errors"
	"log/slog"

	"streak/contracts/identity"
	billingmetrics "streak/internal/billing/metrics"
	"streak/internal/billing/models"
	challenge "streak/internal/challenge/models"
	offer "streak/internal/offer/models"
	id "streak/pkg/domain"
	dErrors "streak/pkg/domain-errors"
	"streak/pkg/platform/audit"
	"streak/pkg/platform/outbox"
	"streak/pkg/platform/sentinel"
	txcontext "streak/pkg/platform/tx"
	"streak/pkg/requestcontext"
)

type Store interface {
	MarkProcessed(ctx context.Context, eventID string) error
	Record(ctx context.Context, r *models.RevenueShare) error
	Totals(ctx context.Context, tenantID id.TenantID) ([]models.RevenueTotals, error)
}

type Enroller interface {
	EnrollPurchase(ctx context.Context, tenantID id.TenantID, challengeID id.ChallengeID, userID id.ExternalUserID, paymentID string) (*challenge.Enrollment, bool, error)
}

type Offers interface {
	FindForPayment(ctx context.Context, tenantID id.TenantID, offerID id.OfferID) (*offer.Offer, error)
}

// Deduper short-circuits redelivered events before the database is touched.
type Deduper interface {
	Claim(ctx context.Context, eventID string) (bool, error)
	Release(ctx context.Context, eventID string) error
}

type Service struct {
	store    Store
	enroller Enroller
	offers   Offers
	tx       txcontext.Runner
	dedupe   Deduper
	events   outbox.Appender
	feeBPS   int
	logger   *slog.Logger
	audit    *audit.Logger
	metrics  *billingmetrics.Metrics
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *billingmetrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithOutbox(events outbox.Appender) Option {
	return func(s *Service) {
		s.events = events
	}
}

func WithDeduper(d Deduper) Option {
	return func(s *Service) {
		s.dedupe = d
	}
}

// WithPlatformFee sets the platform's cut in basis points.
func WithPlatformFee(bps int) Option {
	return func(s *Service) {
		s.feeBPS = bps
	}
}

// New wires the billing service. tx must be the runner shared with the
// challenge service so a purchase enrollment commits with its ledger row.
func New(store Store, enroller Enroller, offers Offers, tx txcontext.Runner, opts ...Option) *Service {
	s := &Service{
		store:    store,
		enroller: enroller,
		offers:   offers,
		tx:       tx,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.audit = audit.NewLogger(s.logger)
	return s
}

// HandlePayment applies one verified webhook event. Redelivery of an event
// or payment already applied returns OutcomeDuplicate with no side effects.
func (s *Service) HandlePayment(ctx context.Context, evt *models.PaymentEvent) (models.Outcome, error) {
	if evt == nil {
		return "", dErrors.New(dErrors.CodeBadRequest, "event is required")
	}
	if !evt.IsSucceeded() {
		s.logger.InfoContext(ctx, "payment webhook ignored", "event_id", evt.ID, "type", evt.Type)
		s.countOutcome(models.OutcomeIgnored)
		return models.OutcomeIgnored, nil
	}
	target, err := evt.Target()
	if err != nil {
		s.countOutcome("failed")
		return "", err
	}

	claimed := false
	if s.dedupe != nil {
		first, err := s.dedupe.Claim(ctx, evt.ID)
		switch {
		case err != nil:
			// The ledger's unique keys still deduplicate.
			s.logger.WarnContext(ctx, "webhook dedupe unavailable", "event_id", evt.ID, "error", err)
		case !first:
			s.countOutcome(models.OutcomeDuplicate)
			return models.OutcomeDuplicate, nil
		default:
			claimed = true
		}
	}

	share, err := s.apply(ctx, evt, target)
	if err != nil {
		if errors.Is(err, sentinel.ErrAlreadyUsed) {
			s.countOutcome(models.OutcomeDuplicate)
			return models.OutcomeDuplicate, nil
		}
		if claimed {
			if relErr := s.dedupe.Release(ctx, evt.ID); relErr != nil {
				s.logger.WarnContext(ctx, "webhook dedupe release failed", "event_id", evt.ID, "error", relErr)
			}
		}
		s.countOutcome("failed")
		return "", wrapErr(err)
	}

	s.countOutcome(models.OutcomeRecorded)
	if s.metrics != nil {
		s.metrics.AddRevenue(share.Currency, share.GrossCents, share.PlatformFeeCents)
	}
	s.audit.Log(ctx, "payment_recorded",
		"tenant_id", share.TenantID,
		"challenge_id", share.ChallengeID,
		"payment_id", share.PaymentID,
		"external_user_id", share.ExternalUserID,
		"gross_cents", share.GrossCents,
	)
	return models.OutcomeRecorded, nil
}

func (s *Service) apply(ctx context.Context, evt *models.PaymentEvent, target *models.Target) (*models.RevenueShare, error) {
	now := requestcontext.Now(ctx)
	var share *models.RevenueShare
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.store.MarkProcessed(ctx, evt.ID); err != nil {
			return err
		}

		enrolled := false
		if target.OfferID != nil {
			o, err := s.offers.FindForPayment(ctx, target.TenantID, *target.OfferID)
			if err != nil {
				return err
			}
			if o.ChallengeID != target.ChallengeID {
				return dErrors.New(dErrors.CodeValidation, "offer does not belong to the challenge")
			}
		} else {
			_, created, err := s.enroller.EnrollPurchase(ctx, target.TenantID, target.ChallengeID, target.UserID, evt.Data.ID)
			if err != nil {
				return err
			}
			enrolled = created
		}

		share = models.NewRevenueShare(target, evt.Data.ID, evt.Data.AmountCents, evt.Data.Currency, s.feeBPS, now)
		if err := s.store.Record(ctx, share); err != nil {
			return err
		}
		return outbox.Record(ctx, s.events, outbox.Event{
			Type:          outbox.EventPaymentRecorded,
			TenantID:      share.TenantID,
			AggregateType: "payment",
			AggregateID:   share.PaymentID,
			Data:          models.NewPaymentRecorded(share, enrolled),
		}, now)
	})
	return share, err
}

// Revenue returns the caller's tenant totals per currency. Owners only.
func (s *Service) Revenue(ctx context.Context, p identity.Principal) ([]models.RevenueTotals, error) {
	if p.IsZero() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "caller is not resolved")
	}
	if !p.IsOwner() {
		return nil, dErrors.New(dErrors.CodeForbidden, "only the tenant owner can view revenue")
	}
	totals, err := s.store.Totals(ctx, p.TenantID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load revenue")
	}
	if totals == nil {
		totals = []models.RevenueTotals{}
	}
	return totals, nil
}

func (s *Service) countOutcome(outcome models.Outcome) {
	if s.metrics != nil {
		s.metrics.IncWebhookEvent(string(outcome))
	}
}

func wrapErr(err error) error {
	var domainErr *dErrors.Error
	if errors.As(err, &domainErr) {
		return err
	}
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, "payment target not found")
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "failed to apply payment")
}

package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"

	"streak/contracts/identity"
	"streak/internal/billing/models"
	billingstore "streak/internal/billing/store"
	challenge "streak/internal/challenge/models"
	challengeservice "streak/internal/challenge/service"
	challengestore "streak/internal/challenge/store/challenge"
	enrollmentstore "streak/internal/challenge/store/enrollment"
	proofstore "streak/internal/challenge/store/proof"
	winnerstore "streak/internal/challenge/store/winner"
	offer "streak/internal/offer/models"
	offerservice "streak/internal/offer/service"
	offerstore "streak/internal/offer/store"
	id "streak/pkg/domain"
	dErrors "streak/pkg/domain-errors"
	"streak/pkg/platform/outbox"
	outboxmemory "streak/pkg/platform/outbox/store/memory"
	txcontext "streak/pkg/platform/tx"
	"streak/pkg/requestcontext"
)

type MockDeduper struct {
	mock.Mock
}

func (m *MockDeduper) Claim(ctx context.Context, eventID string) (bool, error) {
	args := m.Called(ctx, eventID)
	return args.Bool(0), args.Error(1)
}

func (m *MockDeduper) Release(ctx context.Context, eventID string) error {
	return m.Called(ctx, eventID).Error(0)
}

type BillingSuite struct {
	suite.Suite
	ctx        context.Context
	challenges *challengeservice.Service
	offers     *offerservice.Service
	store      *billingstore.InMemory
	events     *outboxmemory.Store
	service    *Service
	owner      identity.Principal
	paid       *challenge.Challenge
}

func TestBillingSuite(t *testing.T) {
	suite.Run(t, new(BillingSuite))
}

func (s *BillingSuite) SetupTest() {
	s.build()
}

func (s *BillingSuite) build(opts ...Option) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	tx := txcontext.NewInMemory()
	s.events = outboxmemory.New()
	offers := offerstore.NewInMemory()
	s.challenges = challengeservice.New(challengestore.NewInMemory(), enrollmentstore.NewInMemory(),
		proofstore.NewInMemory(), winnerstore.NewInMemory(), tx,
		challengeservice.WithLogger(logger), challengeservice.WithOutbox(s.events), challengeservice.WithDependents(offers))
	s.offers = offerservice.New(offers, s.challenges, offerservice.WithLogger(logger))
	s.store = billingstore.NewInMemory()
	opts = append([]Option{WithLogger(logger), WithOutbox(s.events), WithPlatformFee(1000)}, opts...)
	s.service = New(s.store, s.challenges, s.offers, tx, opts...)

	start := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	s.ctx = requestcontext.WithTime(context.Background(), start.Add(time.Hour))
	s.owner = identity.Principal{ExternalUserID: "owner", TenantID: id.NewTenantID(), Role: identity.RoleOwner, CanonicalKey: "biz"}
	c, err := s.challenges.CreateChallenge(s.ctx, s.owner, &challenge.CreateChallengeRequest{
		Title: "Paid sprint", StartsAt: start, EndsAt: start.Add(72 * time.Hour),
		ProofType: challenge.ProofTypeText, ProofFrequency: challenge.FrequencyDaily,
		EntryFeeCents: 2500, Currency: "USD", MaxParticipants: 1,
	})
	s.Require().NoError(err)
	s.paid = c
}

func (s *BillingSuite) event(eventID, paymentID, user string, amount int64) *models.PaymentEvent {
	evt := &models.PaymentEvent{
		ID:   eventID,
		Type: models.EventPaymentSucceeded,
		Data: models.PaymentData{
			ID: paymentID, UserID: user, AmountCents: amount,
			Metadata: models.PaymentMetadata{TenantID: s.owner.TenantID.String(), ChallengeID: s.paid.ID.String()},
		},
	}
	evt.Normalize()
	return evt
}

func (s *BillingSuite) member(user string) identity.Principal {
	return identity.Principal{ExternalUserID: id.ExternalUserID(user), TenantID: s.owner.TenantID, Role: identity.RoleMember, CanonicalKey: "ctx:x"}
}

func (s *BillingSuite) TestIgnoresOtherEventTypes() {
	evt := s.event("evt_0", "pay_0", "buyer", 2500)
	evt.Type = "payment.refunded"

	outcome, err := s.service.HandlePayment(s.ctx, evt)
	s.Require().NoError(err)
	s.Equal(models.OutcomeIgnored, outcome)

	totals, err := s.service.Revenue(s.ctx, s.owner)
	s.Require().NoError(err)
	s.Empty(totals)
}

func (s *BillingSuite) TestPurchaseEnrollsAndRecordsRevenue() {
	outcome, err := s.service.HandlePayment(s.ctx, s.event("evt_1", "pay_1", "buyer", 2500))
	s.Require().NoError(err)
	s.Equal(models.OutcomeRecorded, outcome)

	part, err := s.challenges.Participation(s.ctx, s.member("buyer"), s.paid.ID)
	s.Require().NoError(err)
	s.True(part.Enrolled)

	// purchases bypass the participant cap
	_, err = s.service.HandlePayment(s.ctx, s.event("evt_2", "pay_2", "second", 2500))
	s.Require().NoError(err)

	totals, err := s.service.Revenue(s.ctx, s.owner)
	s.Require().NoError(err)
	s.Require().Len(totals, 1)
	s.Equal(models.RevenueTotals{Currency: "USD", Payments: 2, GrossCents: 5000, PlatformFeeCents: 500, CreatorCents: 4500}, totals[0])
	s.Contains(s.events.Types(), outbox.EventPaymentRecorded)
	s.Contains(s.events.Types(), outbox.EventEnrollmentCreated)
}

func (s *BillingSuite) TestRedeliveryIsDuplicate() {
	evt := s.event("evt_1", "pay_1", "buyer", 2500)
	_, err := s.service.HandlePayment(s.ctx, evt)
	s.Require().NoError(err)

	outcome, err := s.service.HandlePayment(s.ctx, evt)
	s.Require().NoError(err)
	s.Equal(models.OutcomeDuplicate, outcome)

	outcome, err = s.service.HandlePayment(s.ctx, s.event("evt_other", "pay_1", "buyer", 2500))
	s.Require().NoError(err)
	s.Equal(models.OutcomeDuplicate, outcome)

	totals, err := s.service.Revenue(s.ctx, s.owner)
	s.Require().NoError(err)
	s.Equal(int64(1), totals[0].Payments)
}

func (s *BillingSuite) TestOfferPayment() {
	o, err := s.offers.CreateOffer(s.ctx, s.owner, s.paid.ID, &offer.CreateOfferRequest{
		Title: "Coaching", PlanID: "plan_c", PriceCents: 9900, Currency: "USD", Audience: offer.AudienceAllEnrolled,
	})
	s.Require().NoError(err)

	evt := s.event("evt_3", "pay_3", "buyer", 9900)
	evt.Data.Metadata.OfferID = o.ID.String()
	outcome, err := s.service.HandlePayment(s.ctx, evt)
	s.Require().NoError(err)
	s.Equal(models.OutcomeRecorded, outcome)

	part, err := s.challenges.Participation(s.ctx, s.member("buyer"), s.paid.ID)
	s.Require().NoError(err)
	s.False(part.Enrolled)

	other, err := s.challenges.CreateChallenge(s.ctx, s.owner, &challenge.CreateChallengeRequest{
		Title: "Other", StartsAt: s.paid.StartsAt, EndsAt: s.paid.EndsAt,
		ProofType: challenge.ProofTypeText, ProofFrequency: challenge.FrequencyOnce, Currency: "USD",
	})
	s.Require().NoError(err)
	evt = s.event("evt_4", "pay_4", "buyer", 9900)
	evt.Data.Metadata.ChallengeID = other.ID.String()
	evt.Data.Metadata.OfferID = o.ID.String()
	_, err = s.service.HandlePayment(s.ctx, evt)
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
}

func (s *BillingSuite) TestForeignTenantChallengeIsNotFound() {
	evt := s.event("evt_5", "pay_5", "buyer", 2500)
	evt.Data.Metadata.TenantID = id.NewTenantID().String()
	_, err := s.service.HandlePayment(s.ctx, evt)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *BillingSuite) TestDeduperShortCircuits() {
	dedupe := new(MockDeduper)
	s.build(WithDeduper(dedupe))
	dedupe.On("Claim", mock.Anything, "evt_1").Return(false, nil)

	outcome, err := s.service.HandlePayment(s.ctx, s.event("evt_1", "pay_1", "buyer", 2500))
	s.Require().NoError(err)
	s.Equal(models.OutcomeDuplicate, outcome)
	s.NotContains(s.events.Types(), outbox.EventPaymentRecorded)
	dedupe.AssertExpectations(s.T())
}

func (s *BillingSuite) TestFailedEventReleasesClaim() {
	dedupe := new(MockDeduper)
	s.build(WithDeduper(dedupe))
	dedupe.On("Claim", mock.Anything, "evt_9").Return(true, nil)
	dedupe.On("Release", mock.Anything, "evt_9").Return(nil)

	evt := s.event("evt_9", "pay_9", "buyer", 2500)
	evt.Data.Metadata.ChallengeID = id.NewChallengeID().String()
	_, err := s.service.HandlePayment(s.ctx, evt)
	s.Require().Error(err)
	dedupe.AssertExpectations(s.T())
}

func (s *BillingSuite) TestRetryAfterFailedDeliveryIsApplied() {
	evt := s.event("evt_retry", "pay_retry", "buyer", 2500)
	evt.Data.Metadata.ChallengeID = id.NewChallengeID().String()
	_, err := s.service.HandlePayment(s.ctx, evt)
	s.Require().True(dErrors.HasCode(err, dErrors.CodeNotFound))
	s.Equal([]string{outbox.EventChallengeCreated}, s.events.Types(), "failed delivery must not leave events behind")

	outcome, err := s.service.HandlePayment(s.ctx, s.event("evt_retry", "pay_retry", "buyer", 2500))
	s.Require().NoError(err)
	s.Equal(models.OutcomeRecorded, outcome)

	part, err := s.challenges.Participation(s.ctx, s.member("buyer"), s.paid.ID)
	s.Require().NoError(err)
	s.True(part.Enrolled)

	totals, err := s.service.Revenue(s.ctx, s.owner)
	s.Require().NoError(err)
	s.Require().Len(totals, 1)
	s.Equal(1, totals[0].Payments)
}

func (s *BillingSuite) TestFailedOfferPaymentLeavesNoLedgerRow() {
	other, err := s.challenges.CreateChallenge(s.ctx, s.owner, &challenge.CreateChallengeRequest{
		Title: "Other", StartsAt: s.paid.StartsAt, EndsAt: s.paid.EndsAt,
		ProofType: challenge.ProofTypeText, ProofFrequency: challenge.FrequencyOnce, Currency: "USD",
	})
	s.Require().NoError(err)
	o, err := s.offers.CreateOffer(s.ctx, s.owner, other.ID, &offer.CreateOfferRequest{
		Title: "Coaching", PlanID: "plan_1", PriceCents: 900, Currency: "USD", Audience: offer.AudienceAllEnrolled,
	})
	s.Require().NoError(err)

	evt := s.event("evt_mismatch", "pay_mismatch", "buyer", 900)
	evt.Data.Metadata.OfferID = o.ID.String()
	_, err = s.service.HandlePayment(s.ctx, evt)
	s.Require().True(dErrors.HasCode(err, dErrors.CodeValidation))

	evt.Data.Metadata.ChallengeID = other.ID.String()
	outcome, err := s.service.HandlePayment(s.ctx, evt)
	s.Require().NoError(err)
	s.Equal(models.OutcomeRecorded, outcome)
}

func (s *BillingSuite) TestDeduperOutageFallsBackToLedger() {
	dedupe := new(MockDeduper)
	s.build(WithDeduper(dedupe))
	dedupe.On("Claim", mock.Anything, mock.Anything).Return(false, errors.New("redis down"))

	outcome, err := s.service.HandlePayment(s.ctx, s.event("evt_1", "pay_1", "buyer", 2500))
	s.Require().NoError(err)
	s.Equal(models.OutcomeRecorded, outcome)
}

func (s *BillingSuite) TestRevenueOwnerOnly() {
	_, err := s.service.Revenue(s.ctx, s.member("m"))
	s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	_, err = s.service.Revenue(s.ctx, identity.Principal{})
	s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
}

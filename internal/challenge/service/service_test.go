package service

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks ChallengeStore,EnrollmentStore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"streak/contracts/identity"
	"streak/internal/challenge/models"
	"streak/internal/challenge/service/mocks"
	challengestore "streak/internal/challenge/store/challenge"
	enrollmentstore "streak/internal/challenge/store/enrollment"
	proofstore "streak/internal/challenge/store/proof"
	winnerstore "streak/internal/challenge/store/winner"
	id "streak/pkg/domain"
	dErrors "streak/pkg/domain-errors"
	"streak/pkg/platform/outbox"
	outboxmemory "streak/pkg/platform/outbox/store/memory"
	"streak/pkg/platform/sentinel"
	txcontext "streak/pkg/platform/tx"
	"streak/pkg/requestcontext"
	"streak/pkg/testutil"
)

var (
	discardLogger = slog.New(slog.NewTextHandler(io.Discard, nil))
	day0          = time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
)

type recordingDependent struct {
	calls []id.ChallengeID
	err   error
}

func (r *recordingDependent) DeleteByChallenge(_ context.Context, _ id.TenantID, challengeID id.ChallengeID) error {
	r.calls = append(r.calls, challengeID)
	return r.err
}

// ChallengeSuite runs the service against the in-memory stores.
type ChallengeSuite struct {
	suite.Suite
	enrollments *enrollmentstore.InMemory
	events      *outboxmemory.Store
	dependent   *recordingDependent
	service     *Service

	ownerA  identity.Principal
	memberA identity.Principal
	ownerB  identity.Principal
}

func TestChallengeSuite(t *testing.T) {
	suite.Run(t, new(ChallengeSuite))
}

func (s *ChallengeSuite) SetupTest() {
	s.enrollments = enrollmentstore.NewInMemory()
	s.events = outboxmemory.New()
	s.dependent = &recordingDependent{}
	s.service = New(
		challengestore.NewInMemory(),
		s.enrollments,
		proofstore.NewInMemory(),
		winnerstore.NewInMemory(),
		txcontext.NewInMemory(),
		WithLogger(discardLogger),
		WithOutbox(s.events),
		WithDependents(s.dependent),
	)

	tenantA, tenantB := id.NewTenantID(), id.NewTenantID()
	s.ownerA = identity.Principal{ExternalUserID: "owner_a", TenantID: tenantA, Role: identity.RoleOwner, CanonicalKey: "biz_a"}
	s.memberA = identity.Principal{ExternalUserID: "member_a", TenantID: tenantA, Role: identity.RoleMember, CanonicalKey: "ctx:exp_a"}
	s.ownerB = identity.Principal{ExternalUserID: "owner_b", TenantID: tenantB, Role: identity.RoleOwner, CanonicalKey: "biz_b"}
}

func (s *ChallengeSuite) at(t time.Time) context.Context {
	return requestcontext.WithTime(context.Background(), t)
}

func member(tenantID id.TenantID, user string) identity.Principal {
	return identity.Principal{ExternalUserID: id.ExternalUserID(user), TenantID: tenantID, Role: identity.RoleMember, CanonicalKey: "ctx:x"}
}

func (s *ChallengeSuite) create(p identity.Principal, mutate func(*models.CreateChallengeRequest)) *models.Challenge {
	s.T().Helper()
	req := &models.CreateChallengeRequest{
		Title:          "Daily steps",
		StartsAt:       day0,
		EndsAt:         day0.Add(7 * 24 * time.Hour),
		ProofType:      models.ProofTypeText,
		ProofFrequency: models.FrequencyDaily,
	}
	if mutate != nil {
		mutate(req)
	}
	req.Normalize()
	s.Require().NoError(req.Validate())
	c, err := s.service.CreateChallenge(s.at(day0.Add(-time.Hour)), p, req)
	s.Require().NoError(err)
	return c
}

func (s *ChallengeSuite) TestOnlyOwnerCreates() {
	_, err := s.service.CreateChallenge(s.at(day0), s.memberA, &models.CreateChallengeRequest{Title: "x"})
	s.True(dErrors.HasCode(err, dErrors.CodeForbidden))

	c := s.create(s.ownerA, nil)
	s.Equal(s.ownerA.TenantID, c.TenantID)
	s.Equal("USD", c.Currency)
	s.Equal([]string{outbox.EventChallengeCreated}, s.events.Types())
}

func (s *ChallengeSuite) TestTenantIsolation() {
	c := s.create(s.ownerA, nil)
	ctx := s.at(day0.Add(time.Hour))

	_, err := s.service.GetChallenge(ctx, s.ownerB, c.ID)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))

	list, err := s.service.ListChallenges(ctx, s.ownerB, "", models.Page{})
	s.Require().NoError(err)
	s.Empty(list)

	_, _, err = s.service.Enroll(ctx, member(s.ownerB.TenantID, "intruder"), c.ID)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))

	err = s.service.DeleteChallenge(ctx, s.ownerB, c.ID)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))

	_, err = s.service.GetChallenge(ctx, s.memberA, c.ID)
	s.NoError(err)
}

func (s *ChallengeSuite) TestListFiltersByStatusNewestFirst() {
	first := s.create(s.ownerA, nil)
	second := s.create(s.ownerA, func(r *models.CreateChallengeRequest) {
		r.StartsAt = day0.Add(30 * 24 * time.Hour)
		r.EndsAt = day0.Add(40 * 24 * time.Hour)
	})
	ctx := s.at(day0.Add(time.Hour))

	all, err := s.service.ListChallenges(ctx, s.memberA, "", models.Page{})
	s.Require().NoError(err)
	s.Len(all, 2)

	upcoming, err := s.service.ListChallenges(ctx, s.memberA, models.StatusUpcoming, models.Page{})
	s.Require().NoError(err)
	s.Require().Len(upcoming, 1)
	s.Equal(second.ID, upcoming[0].ID)

	active, err := s.service.ListChallenges(ctx, s.memberA, models.StatusActive, models.Page{Limit: 1})
	s.Require().NoError(err)
	s.Require().Len(active, 1)
	s.Equal(first.ID, active[0].ID)

	_, err = s.service.ListChallenges(ctx, s.memberA, "archived", models.Page{})
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
}

func (s *ChallengeSuite) TestEnrollIsIdempotent() {
	c := s.create(s.ownerA, nil)
	ctx := s.at(day0.Add(time.Hour))

	first, created, err := s.service.Enroll(ctx, s.memberA, c.ID)
	s.Require().NoError(err)
	s.True(created)
	s.Equal(models.SourceFree, first.Source)

	again, created, err := s.service.Enroll(ctx, s.memberA, c.ID)
	s.Require().NoError(err)
	s.False(created)
	s.Equal(first.ID, again.ID)
	s.Equal([]string{outbox.EventChallengeCreated, outbox.EventEnrollmentCreated}, s.events.Types())
}

func (s *ChallengeSuite) TestEnrollRefusals() {
	paid := s.create(s.ownerA, func(r *models.CreateChallengeRequest) { r.EntryFeeCents = 1999 })
	_, _, err := s.service.Enroll(s.at(day0), s.memberA, paid.ID)
	s.True(dErrors.HasCode(err, dErrors.CodeForbidden))

	free := s.create(s.ownerA, nil)
	_, _, err = s.service.Enroll(s.at(free.EndsAt), s.memberA, free.ID)
	s.True(dErrors.HasCode(err, dErrors.CodeConflict), "ended challenge")

	capped := s.create(s.ownerA, func(r *models.CreateChallengeRequest) { r.MaxParticipants = 1 })
	_, _, err = s.service.Enroll(s.at(day0), s.memberA, capped.ID)
	s.Require().NoError(err)
	_, _, err = s.service.Enroll(s.at(day0), member(s.ownerA.TenantID, "late"), capped.ID)
	s.True(dErrors.HasCode(err, dErrors.CodeConflict), "full challenge")
}

func (s *ChallengeSuite) TestConcurrentEnrollHonorsCap() {
	c := s.create(s.ownerA, func(r *models.CreateChallengeRequest) { r.MaxParticipants = 3 })
	ctx := s.at(day0.Add(time.Hour))

	result := testutil.RunConcurrent(10, func(i int) error {
		_, _, err := s.service.Enroll(ctx, member(s.ownerA.TenantID, fmt.Sprintf("user_%d", i)), c.ID)
		return err
	})
	s.Equal(int32(3), result.Successes)
	s.Equal(int32(7), result.Conflicts)

	n, err := s.enrollments.CountActive(ctx, s.ownerA.TenantID, c.ID)
	s.Require().NoError(err)
	s.Equal(3, n)
}

func (s *ChallengeSuite) TestPurchaseEnrollmentBypassesFeeAndCap() {
	c := s.create(s.ownerA, func(r *models.CreateChallengeRequest) {
		r.EntryFeeCents = 500
		r.MaxParticipants = 1
	})
	ctx := s.at(day0)

	e, created, err := s.service.EnrollPurchase(ctx, s.ownerA.TenantID, c.ID, "buyer_1", "pay_1")
	s.Require().NoError(err)
	s.True(created)
	s.Equal(models.SourcePurchase, e.Source)
	s.Equal("pay_1", e.PaymentID)

	_, created, err = s.service.EnrollPurchase(ctx, s.ownerA.TenantID, c.ID, "buyer_2", "pay_2")
	s.Require().NoError(err)
	s.True(created)

	_, _, err = s.service.EnrollPurchase(ctx, s.ownerB.TenantID, c.ID, "buyer_3", "pay_3")
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *ChallengeSuite) TestSubmitProofRules() {
	c := s.create(s.ownerA, nil)

	_, err := s.service.SubmitProof(s.at(day0.Add(-time.Minute)), s.memberA, c.ID, &models.SubmitProofRequest{Content: "early"})
	s.True(dErrors.HasCode(err, dErrors.CodeConflict), "upcoming challenge")

	ctx := s.at(day0.Add(9 * time.Hour))
	_, err = s.service.SubmitProof(ctx, s.memberA, c.ID, &models.SubmitProofRequest{Content: "not enrolled"})
	s.True(dErrors.HasCode(err, dErrors.CodeForbidden))

	_, _, err = s.service.Enroll(ctx, s.memberA, c.ID)
	s.Require().NoError(err)

	_, err = s.service.SubmitProof(ctx, s.memberA, c.ID, &models.SubmitProofRequest{MediaURL: "https://x.test/p.png"})
	s.True(dErrors.HasCode(err, dErrors.CodeValidation), "text proof without content")

	proof, err := s.service.SubmitProof(ctx, s.memberA, c.ID, &models.SubmitProofRequest{Content: "10k steps"})
	s.Require().NoError(err)
	s.Equal("2026-04-01", proof.PeriodKey)

	_, err = s.service.SubmitProof(s.at(day0.Add(20*time.Hour)), s.memberA, c.ID, &models.SubmitProofRequest{Content: "again"})
	s.True(dErrors.HasCode(err, dErrors.CodeConflict), "second proof same day")

	next, err := s.service.SubmitProof(s.at(day0.Add(25*time.Hour)), s.memberA, c.ID, &models.SubmitProofRequest{Content: "day two"})
	s.Require().NoError(err)
	s.Equal("2026-04-02", next.PeriodKey)

	_, err = s.service.SubmitProof(s.at(c.EndsAt), s.memberA, c.ID, &models.SubmitProofRequest{Content: "late"})
	s.True(dErrors.HasCode(err, dErrors.CodeConflict), "ended challenge")
}

func (s *ChallengeSuite) TestListProofsByRole() {
	c := s.create(s.ownerA, nil)
	other := member(s.ownerA.TenantID, "other")
	ctx := s.at(day0.Add(time.Hour))
	for _, p := range []identity.Principal{s.memberA, other} {
		_, _, err := s.service.Enroll(ctx, p, c.ID)
		s.Require().NoError(err)
		_, err = s.service.SubmitProof(ctx, p, c.ID, &models.SubmitProofRequest{Content: "done"})
		s.Require().NoError(err)
	}

	all, err := s.service.ListProofs(ctx, s.ownerA, c.ID, models.Page{})
	s.Require().NoError(err)
	s.Len(all, 2)

	own, err := s.service.ListProofs(ctx, s.memberA, c.ID, models.Page{})
	s.Require().NoError(err)
	s.Require().Len(own, 1)
	s.Equal(s.memberA.ExternalUserID, own[0].ExternalUserID)
}

func (s *ChallengeSuite) TestWinnersAndLeaderboard() {
	c := s.create(s.ownerA, nil)
	users := []identity.Principal{member(s.ownerA.TenantID, "u1"), member(s.ownerA.TenantID, "u2"), member(s.ownerA.TenantID, "u3")}
	for i, p := range users {
		_, _, err := s.service.Enroll(s.at(day0.Add(time.Duration(i)*time.Minute)), p, c.ID)
		s.Require().NoError(err)
	}
	// u2 submits twice, u3 once, u1 never.
	for d := range 2 {
		_, err := s.service.SubmitProof(s.at(day0.Add(time.Duration(d)*24*time.Hour+time.Hour)), users[1], c.ID, &models.SubmitProofRequest{Content: "x"})
		s.Require().NoError(err)
	}
	_, err := s.service.SubmitProof(s.at(day0.Add(time.Hour)), users[2], c.ID, &models.SubmitProofRequest{Content: "x"})
	s.Require().NoError(err)

	board, err := s.service.Leaderboard(s.at(day0.Add(48*time.Hour)), s.memberA, c.ID)
	s.Require().NoError(err)
	s.Require().Len(board, 3)
	s.Equal(id.ExternalUserID("u2"), board[0].ExternalUserID)
	s.Equal(1, board[0].Rank)
	s.Equal(id.ExternalUserID("u1"), board[2].ExternalUserID)
	s.Equal(3, board[2].Rank)

	_, err = s.service.SetWinners(s.at(c.EndsAt), s.memberA, c.ID, &models.SetWinnersRequest{})
	s.True(dErrors.HasCode(err, dErrors.CodeForbidden))

	_, err = s.service.SetWinners(s.at(c.EndsAt), s.ownerA, c.ID, &models.SetWinnersRequest{
		Winners: []models.WinnerInput{{ExternalUserID: "stranger", Place: 1}},
	})
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))

	winners, err := s.service.SetWinners(s.at(c.EndsAt), s.ownerA, c.ID, &models.SetWinnersRequest{
		Winners: []models.WinnerInput{{ExternalUserID: "u3", Place: 2}, {ExternalUserID: "u2", Place: 1}},
	})
	s.Require().NoError(err)
	s.Equal(id.ExternalUserID("u2"), winners[0].ExternalUserID)

	_, err = s.service.SetWinners(s.at(c.EndsAt), s.ownerA, c.ID, &models.SetWinnersRequest{
		Winners: []models.WinnerInput{{ExternalUserID: "u1", Place: 1}},
	})
	s.Require().NoError(err)
	listed, err := s.service.ListWinners(s.at(c.EndsAt), s.memberA, c.ID)
	s.Require().NoError(err)
	s.Require().Len(listed, 1)
	s.Equal(id.ExternalUserID("u1"), listed[0].ExternalUserID)

	part, err := s.service.Participation(s.at(c.EndsAt), users[0], c.ID)
	s.Require().NoError(err)
	s.True(part.Enrolled)
	s.True(part.Winner)
	s.Equal(1, part.Place)
}

func (s *ChallengeSuite) TestStats() {
	c := s.create(s.ownerA, func(r *models.CreateChallengeRequest) { r.MaxParticipants = 5 })
	ctx := s.at(day0.Add(time.Hour))
	_, _, err := s.service.Enroll(ctx, s.memberA, c.ID)
	s.Require().NoError(err)
	_, err = s.service.SubmitProof(ctx, s.memberA, c.ID, &models.SubmitProofRequest{Content: "x"})
	s.Require().NoError(err)

	stats, err := s.service.GetChallengeStats(ctx, s.ownerA, c.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusActive, stats.Status)
	s.Equal(1, stats.Enrollments)
	s.Equal(1, stats.Proofs)
	s.Require().NotNil(stats.SpotsLeft)
	s.Equal(4, *stats.SpotsLeft)
}

func (s *ChallengeSuite) TestUpdateChallenge() {
	c := s.create(s.ownerA, nil)
	ctx := s.at(day0.Add(time.Hour))
	for _, u := range []string{"a", "b"} {
		_, _, err := s.service.Enroll(ctx, member(s.ownerA.TenantID, u), c.ID)
		s.Require().NoError(err)
	}

	tooSmall := 1
	_, err := s.service.UpdateChallenge(ctx, s.ownerA, c.ID, &models.UpdateChallengeRequest{MaxParticipants: &tooSmall})
	s.True(dErrors.HasCode(err, dErrors.CodeConflict))

	badEnd := c.StartsAt.Add(-time.Hour)
	_, err = s.service.UpdateChallenge(ctx, s.ownerA, c.ID, &models.UpdateChallengeRequest{EndsAt: &badEnd})
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))

	title := "Renamed"
	updated, err := s.service.UpdateChallenge(ctx, s.ownerA, c.ID, &models.UpdateChallengeRequest{Title: &title})
	s.Require().NoError(err)
	s.Equal("Renamed", updated.Title)

	got, err := s.service.GetChallenge(ctx, s.memberA, c.ID)
	s.Require().NoError(err)
	s.Equal("Renamed", got.Title)
	s.Equal(c.EndsAt, got.EndsAt)
}

func (s *ChallengeSuite) TestDeleteCascades() {
	c := s.create(s.ownerA, nil)
	ctx := s.at(day0.Add(time.Hour))
	_, _, err := s.service.Enroll(ctx, s.memberA, c.ID)
	s.Require().NoError(err)

	s.True(dErrors.HasCode(s.service.DeleteChallenge(ctx, s.memberA, c.ID), dErrors.CodeForbidden))
	s.Require().NoError(s.service.DeleteChallenge(ctx, s.ownerA, c.ID))

	_, err = s.service.GetChallenge(ctx, s.ownerA, c.ID)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	n, err := s.enrollments.CountActive(ctx, s.ownerA.TenantID, c.ID)
	s.Require().NoError(err)
	s.Zero(n)
	s.Equal([]id.ChallengeID{c.ID}, s.dependent.calls)
	s.Contains(s.events.Types(), outbox.EventChallengeDeleted)
}

func (s *ChallengeSuite) TestFailedDeleteLeavesChallengeIntact() {
	c := s.create(s.ownerA, nil)
	ctx := s.at(day0.Add(time.Hour))
	_, _, err := s.service.Enroll(ctx, s.memberA, c.ID)
	s.Require().NoError(err)
	_, err = s.service.SubmitProof(ctx, s.memberA, c.ID, &models.SubmitProofRequest{Content: "10k steps"})
	s.Require().NoError(err)

	s.dependent.err = errors.New("offers table locked")
	err = s.service.DeleteChallenge(ctx, s.ownerA, c.ID)
	s.True(dErrors.HasCode(err, dErrors.CodeInternal))

	_, err = s.service.GetChallenge(ctx, s.ownerA, c.ID)
	s.Require().NoError(err)
	n, err := s.enrollments.CountActive(ctx, s.ownerA.TenantID, c.ID)
	s.Require().NoError(err)
	s.Equal(1, n)
	proofs, err := s.service.ListProofs(ctx, s.ownerA, c.ID, models.Page{})
	s.Require().NoError(err)
	s.Len(proofs, 1)
	s.NotContains(s.events.Types(), outbox.EventChallengeDeleted)
}

// EnrollConflictSuite drives race outcomes the in-memory stores cannot produce.
type EnrollConflictSuite struct {
	suite.Suite
	ctrl        *gomock.Controller
	challenges  *mocks.MockChallengeStore
	enrollments *mocks.MockEnrollmentStore
	service     *Service
	principal   identity.Principal
	challenge   *models.Challenge
}

func TestEnrollConflictSuite(t *testing.T) {
	suite.Run(t, new(EnrollConflictSuite))
}

func (s *EnrollConflictSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.challenges = mocks.NewMockChallengeStore(s.ctrl)
	s.enrollments = mocks.NewMockEnrollmentStore(s.ctrl)
	s.service = New(s.challenges, s.enrollments, proofstore.NewInMemory(), winnerstore.NewInMemory(),
		txcontext.NewInMemory(), WithLogger(discardLogger))
	s.principal = member(id.NewTenantID(), "u1")
	s.challenge = &models.Challenge{
		ID:       id.NewChallengeID(),
		TenantID: s.principal.TenantID,
		StartsAt: day0,
		EndsAt:   day0.Add(time.Hour),
	}
}

func (s *EnrollConflictSuite) TearDownTest() {
	s.ctrl.Finish()
}

func (s *EnrollConflictSuite) TestLosingInsertReturnsExisting() {
	stored := models.NewEnrollment(s.challenge, "u1", models.SourceFree, "", day0)
	s.challenges.EXPECT().FindByIDForUpdate(gomock.Any(), s.principal.TenantID, s.challenge.ID).Return(s.challenge, nil)
	gomock.InOrder(
		s.enrollments.EXPECT().FindByUser(gomock.Any(), s.principal.TenantID, s.challenge.ID, id.ExternalUserID("u1")).Return(nil, sentinel.ErrNotFound),
		s.enrollments.EXPECT().Create(gomock.Any(), gomock.Any()).Return(fmt.Errorf("dup: %w", sentinel.ErrAlreadyUsed)),
		s.enrollments.EXPECT().FindByUser(gomock.Any(), s.principal.TenantID, s.challenge.ID, id.ExternalUserID("u1")).Return(stored, nil),
	)

	e, created, err := s.service.Enroll(requestcontext.WithTime(context.Background(), day0), s.principal, s.challenge.ID)
	s.Require().NoError(err)
	s.False(created)
	s.Equal(stored.ID, e.ID)
}

func (s *EnrollConflictSuite) TestStoreFailureIsInternal() {
	s.challenges.EXPECT().FindByIDForUpdate(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, errors.New("connection reset"))

	_, _, err := s.service.Enroll(context.Background(), s.principal, s.challenge.ID)
	s.True(dErrors.HasCode(err, dErrors.CodeInternal))
}

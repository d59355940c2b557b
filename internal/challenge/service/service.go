// Package service implements tenant-scoped challenge operations. Every method
// takes the resolved principal and reads only rows owned by its tenant.
package service

import (
	"context"
	"errors"
	"log/slog"

	"streak/contracts/identity"
	challengemetrics "streak/internal/challenge/metrics"
	"streak/internal/challenge/models"
	id "streak/pkg/domain"
	dErrors "streak/pkg/domain-errors"
	"streak/pkg/platform/audit"
	"streak/pkg/platform/outbox"
	"streak/pkg/platform/sentinel"
	txcontext "streak/pkg/platform/tx"
)

type ChallengeStore interface {
	Create(ctx context.Context, c *models.Challenge) error
	FindByID(ctx context.Context, tenantID id.TenantID, challengeID id.ChallengeID) (*models.Challenge, error)
	FindByIDForUpdate(ctx context.Context, tenantID id.TenantID, challengeID id.ChallengeID) (*models.Challenge, error)
	Update(ctx context.Context, c *models.Challenge) error
	Delete(ctx context.Context, tenantID id.TenantID, challengeID id.ChallengeID) error
	List(ctx context.Context, tenantID id.TenantID, filter models.ListFilter) ([]*models.Challenge, error)
}

type EnrollmentStore interface {
	Create(ctx context.Context, e *models.Enrollment) error
	FindByUser(ctx context.Context, tenantID id.TenantID, challengeID id.ChallengeID, userID id.ExternalUserID) (*models.Enrollment, error)
	CountActive(ctx context.Context, tenantID id.TenantID, challengeID id.ChallengeID) (int, error)
	ListByChallenge(ctx context.Context, tenantID id.TenantID, challengeID id.ChallengeID) ([]*models.Enrollment, error)
	DeleteByChallenge(ctx context.Context, tenantID id.TenantID, challengeID id.ChallengeID) error
}

type ProofStore interface {
	Create(ctx context.Context, p *models.Proof) error
	List(ctx context.Context, tenantID id.TenantID, challengeID id.ChallengeID, userID id.ExternalUserID, page models.Page) ([]*models.Proof, error)
	CountByUser(ctx context.Context, tenantID id.TenantID, challengeID id.ChallengeID) (map[id.ExternalUserID]int, error)
	DeleteByChallenge(ctx context.Context, tenantID id.TenantID, challengeID id.ChallengeID) error
}

type WinnerStore interface {
	Replace(ctx context.Context, tenantID id.TenantID, challengeID id.ChallengeID, winners []*models.Winner) error
	List(ctx context.Context, tenantID id.TenantID, challengeID id.ChallengeID) ([]*models.Winner, error)
	DeleteByChallenge(ctx context.Context, tenantID id.TenantID, challengeID id.ChallengeID) error
}

// DependentStore holds rows owned by a challenge outside this package, such
// as offers. They are removed in the same transaction as the challenge.
type DependentStore interface {
	DeleteByChallenge(ctx context.Context, tenantID id.TenantID, challengeID id.ChallengeID) error
}

type Service struct {
	challenges  ChallengeStore
	enrollments EnrollmentStore
	proofs      ProofStore
	winners     WinnerStore
	dependents  []DependentStore
	tx          txcontext.Runner
	events      outbox.Appender
	logger      *slog.Logger
	audit       *audit.Logger
	metrics     *challengemetrics.Metrics
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *challengemetrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithOutbox(events outbox.Appender) Option {
	return func(s *Service) {
		s.events = events
	}
}

// WithDependents registers stores cleared when a challenge is deleted.
func WithDependents(stores ...DependentStore) Option {
	return func(s *Service) {
		s.dependents = append(s.dependents, stores...)
	}
}

func New(challenges ChallengeStore, enrollments EnrollmentStore, proofs ProofStore, winners WinnerStore, tx txcontext.Runner, opts ...Option) *Service {
	s := &Service{
		challenges:  challenges,
		enrollments: enrollments,
		proofs:      proofs,
		winners:     winners,
		tx:          tx,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.audit = audit.NewLogger(s.logger)
	return s
}

func requireOwner(p identity.Principal) error {
	if !p.IsOwner() {
		return dErrors.New(dErrors.CodeForbidden, "only the tenant owner can do this")
	}
	return nil
}

func requirePrincipal(p identity.Principal) error {
	if p.IsZero() {
		return dErrors.New(dErrors.CodeUnauthorized, "caller is not resolved")
	}
	return nil
}

// wrapErr translates store errors exactly once. Domain errors raised inside
// a transaction pass through unchanged.
func wrapErr(err error, notFound, action string) error {
	var domainErr *dErrors.Error
	if errors.As(err, &domainErr) {
		return err
	}
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, notFound)
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, action)
}

// loadChallenge fetches a challenge inside the principal's tenant. A challenge
// of another tenant is indistinguishable from a missing one.
func (s *Service) loadChallenge(ctx context.Context, p identity.Principal, challengeID id.ChallengeID) (*models.Challenge, error) {
	if err := requirePrincipal(p); err != nil {
		return nil, err
	}
	c, err := s.challenges.FindByID(ctx, p.TenantID, challengeID)
	if err != nil {
		return nil, wrapErr(err, "challenge not found", "failed to load challenge")
	}
	return c, nil
}

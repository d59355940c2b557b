// Package service resolves verified identity signals into a tenant-scoped
// principal, creating tenants and identities on first sight.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"streak/contracts/identity"
	identitymetrics "streak/internal/identity/metrics"
	"streak/internal/identity/models"
	id "streak/pkg/domain"
	dErrors "streak/pkg/domain-errors"
	"streak/pkg/platform/audit"
	"streak/pkg/platform/outbox"
	"streak/pkg/platform/sentinel"
	txcontext "streak/pkg/platform/tx"
	"streak/pkg/requestcontext"
)

type TenantStore interface {
	Create(ctx context.Context, tenant *models.Tenant) error
	FindByCanonicalKey(ctx context.Context, canonicalKey string) (*models.Tenant, error)
	FindByID(ctx context.Context, tenantID id.TenantID) (*models.Tenant, error)
	UpdateDisplayName(ctx context.Context, tenant *models.Tenant) error
}

type IdentityStore interface {
	Create(ctx context.Context, ident *models.Identity) error
	FindByExternalUserID(ctx context.Context, userID id.ExternalUserID) (*models.Identity, error)
	Update(ctx context.Context, ident *models.Identity) error
	CountByTenant(ctx context.Context, tenantID id.TenantID) (int, error)
}

// Service is the identity resolver.
type Service struct {
	tenants    TenantStore
	identities IdentityStore
	tx         txcontext.Runner
	events     outbox.Appender
	logger     *slog.Logger
	audit      *audit.Logger
	metrics    *identitymetrics.Metrics
	tracer     trace.Tracer
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *identitymetrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithOutbox records tenant.created and identity.reassigned events.
func WithOutbox(events outbox.Appender) Option {
	return func(s *Service) {
		s.events = events
	}
}

func WithTracer(t trace.Tracer) Option {
	return func(s *Service) {
		s.tracer = t
	}
}

func New(tenants TenantStore, identities IdentityStore, tx txcontext.Runner, opts ...Option) *Service {
	s := &Service{
		tenants:    tenants,
		identities: identities,
		tx:         tx,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.tracer == nil {
		s.tracer = otel.Tracer("streak/identity")
	}
	s.audit = audit.NewLogger(s.logger)
	return s
}

// Resolve maps signals to {tenant, role}. It is idempotent: the same signals
// always yield the same tenant, and repeated calls write nothing new.
func (s *Service) Resolve(ctx context.Context, signals models.Signals) (*models.Resolution, error) {
	start := time.Now()
	signals.Normalize()

	ctx, span := s.tracer.Start(ctx, "identity.Resolve")
	defer span.End()

	res, err := s.resolve(ctx, signals)
	s.observe(start, res, err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "resolution failed")
		return nil, err
	}
	span.SetAttributes(
		attribute.String("tenant.id", res.Principal.TenantID.String()),
		attribute.String("identity.role", string(res.Principal.Role)),
		attribute.Bool("tenant.created", res.TenantCreated),
		attribute.Bool("identity.reassigned", res.Reassigned),
	)
	return res, nil
}

func (s *Service) resolve(ctx context.Context, signals models.Signals) (*models.Resolution, error) {
	target, err := signals.Derive()
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeIdentityUnresolved) {
			s.logger.WarnContext(ctx, "identity unresolved",
				"external_user_id", signals.ExternalUserID,
				"request_id", requestcontext.RequestID(ctx),
			)
		}
		return nil, err
	}
	userID := id.ExternalUserID(signals.ExternalUserID)

	tenant, created, err := s.ensureTenant(ctx, target.CanonicalKey, signals.DisplayName)
	if err != nil {
		return nil, err
	}

	res := &models.Resolution{
		Principal: identity.Principal{
			ExternalUserID: userID,
			TenantID:       tenant.ID,
			Role:           target.Role,
			CanonicalKey:   tenant.CanonicalKey,
		},
		TenantCreated: created,
	}
	if err := s.ensureIdentity(ctx, userID, tenant.ID, target.Role, res); err != nil {
		return nil, err
	}
	return res, nil
}

// ensureTenant finds or creates the tenant for canonicalKey. The read is only
// a fast path; correctness rests on the unique constraint: a losing insert
// re-reads and adopts the winner's row.
func (s *Service) ensureTenant(ctx context.Context, canonicalKey, displayName string) (*models.Tenant, bool, error) {
	existing, err := s.tenants.FindByCanonicalKey(ctx, canonicalKey)
	switch {
	case err == nil:
		return existing, false, s.attachDisplayName(ctx, existing, displayName)
	case !errors.Is(err, sentinel.ErrNotFound):
		return nil, false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load tenant")
	}

	now := requestcontext.Now(ctx)
	tenant, err := models.NewTenant(id.NewTenantID(), canonicalKey, displayName, now)
	if err != nil {
		return nil, false, err
	}

	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.tenants.Create(ctx, tenant); err != nil {
			return err
		}
		return outbox.Record(ctx, s.events, outbox.Event{
			Type:          outbox.EventTenantCreated,
			TenantID:      tenant.ID,
			AggregateType: "tenant",
			AggregateID:   tenant.ID.String(),
			Data:          models.TenantCreated{TenantID: tenant.ID.String(), CanonicalKey: canonicalKey},
		}, now)
	})
	if errors.Is(err, sentinel.ErrAlreadyUsed) {
		winner, findErr := s.tenants.FindByCanonicalKey(ctx, canonicalKey)
		if findErr != nil {
			return nil, false, dErrors.Wrap(findErr, dErrors.CodeInternal, "failed to load tenant after conflict")
		}
		return winner, false, nil
	}
	if err != nil {
		return nil, false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create tenant")
	}

	s.audit.Log(ctx, "tenant_created",
		"tenant_id", tenant.ID,
		"canonical_key", canonicalKey,
	)
	if s.metrics != nil {
		s.metrics.IncTenantCreated()
	}
	return tenant, true, nil
}

func (s *Service) attachDisplayName(ctx context.Context, tenant *models.Tenant, displayName string) error {
	if !tenant.AttachDisplayName(displayName, requestcontext.Now(ctx)) {
		return nil
	}
	if err := s.tenants.UpdateDisplayName(ctx, tenant); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update tenant")
	}
	return nil
}

// ensureIdentity finds or creates the identity and repoints it when the
// computed tenant or role differs from what is stored.
func (s *Service) ensureIdentity(ctx context.Context, userID id.ExternalUserID, tenantID id.TenantID, role identity.Role, res *models.Resolution) error {
	now := requestcontext.Now(ctx)

	current, err := s.identities.FindByExternalUserID(ctx, userID)
	if errors.Is(err, sentinel.ErrNotFound) {
		ident, newErr := models.NewIdentity(userID, tenantID, role, now)
		if newErr != nil {
			return newErr
		}
		err = s.identities.Create(ctx, ident)
		if err == nil {
			res.IdentityCreated = true
			return nil
		}
		if !errors.Is(err, sentinel.ErrAlreadyUsed) {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to create identity")
		}
		current, err = s.identities.FindByExternalUserID(ctx, userID)
	}
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load identity")
	}

	fromTenant, fromRole := current.TenantID, current.Role
	if !current.Repoint(tenantID, role, now) {
		return nil
	}

	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.identities.Update(ctx, current); err != nil {
			return err
		}
		return outbox.Record(ctx, s.events, outbox.Event{
			Type:          outbox.EventIdentityReassigned,
			TenantID:      tenantID,
			AggregateType: "identity",
			AggregateID:   userID.String(),
			Data: models.IdentityReassigned{
				ExternalUserID: userID.String(),
				FromTenantID:   fromTenant.String(),
				ToTenantID:     tenantID.String(),
				FromRole:       string(fromRole),
				ToRole:         string(role),
			},
		}, now)
	})
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update identity")
	}

	res.Reassigned = true
	res.PreviousTenant = fromTenant
	res.PreviousRole = fromRole
	s.audit.Warn(ctx, "identity_reassigned",
		"external_user_id", userID,
		"from_tenant_id", fromTenant,
		"to_tenant_id", tenantID,
		"from_role", fromRole,
		"to_role", role,
	)
	if s.metrics != nil {
		s.metrics.IncIdentityReassigned()
	}
	return nil
}

func (s *Service) observe(start time.Time, res *models.Resolution, err error) {
	if s.metrics == nil {
		return
	}
	s.metrics.ObserveResolve(start)
	switch {
	case err == nil && res.Principal.IsOwner():
		s.metrics.IncResolution("owner")
	case err == nil:
		s.metrics.IncResolution("member")
	case dErrors.HasCode(err, dErrors.CodeUnauthorized):
		s.metrics.IncResolution("unauthenticated")
	case dErrors.HasCode(err, dErrors.CodeIdentityUnresolved):
		s.metrics.IncResolution("unresolved")
	default:
		s.metrics.IncResolution("error")
	}
}

// TenantSummary is what operators see for one tenant.
type TenantSummary struct {
	Tenant        *models.Tenant
	IdentityCount int
}

// LookupTenant returns a tenant and its identity count by canonical key.
func (s *Service) LookupTenant(ctx context.Context, canonicalKey string) (*TenantSummary, error) {
	tenant, err := s.tenants.FindByCanonicalKey(ctx, canonicalKey)
	if err != nil {
		return nil, wrapTenantErr(err, "failed to load tenant")
	}
	n, err := s.identities.CountByTenant(ctx, tenant.ID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to count identities")
	}
	return &TenantSummary{Tenant: tenant, IdentityCount: n}, nil
}

// GetTenant loads the caller's own tenant.
func (s *Service) GetTenant(ctx context.Context, tenantID id.TenantID) (*models.Tenant, error) {
	tenant, err := s.tenants.FindByID(ctx, tenantID)
	if err != nil {
		return nil, wrapTenantErr(err, "failed to load tenant")
	}
	return tenant, nil
}

func wrapTenantErr(err error, action string) error {
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, "tenant not found")
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, action)
}

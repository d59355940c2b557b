package tenant

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"streak/internal/identity/models"
	id "streak/pkg/domain"
	"streak/pkg/platform/sentinel"
	txcontext "streak/pkg/platform/tx"
)

// PostgresStore persists tenants in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed tenant store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Create inserts the tenant. A concurrent insert of the same canonical key
// yields sentinel.ErrAlreadyUsed; ON CONFLICT keeps the surrounding
// transaction usable so the caller can re-read the winner.
func (s *PostgresStore) Create(ctx context.Context, tenant *models.Tenant) error {
	if tenant == nil {
		return fmt.Errorf("tenant is required")
	}
	res, err := txcontext.Exec(ctx, s.db).ExecContext(ctx, `
		INSERT INTO tenants (id, canonical_key, display_name, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (canonical_key) DO NOTHING
	`,
		uuid.UUID(tenant.ID),
		tenant.CanonicalKey,
		tenant.DisplayName,
		tenant.CreatedAt,
		tenant.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("tenant canonical key taken: %w", sentinel.ErrAlreadyUsed)
		}
		return fmt.Errorf("create tenant: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("create tenant rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("tenant canonical key taken: %w", sentinel.ErrAlreadyUsed)
	}
	return nil
}

func (s *PostgresStore) FindByCanonicalKey(ctx context.Context, canonicalKey string) (*models.Tenant, error) {
	tenant, err := scanTenant(txcontext.Exec(ctx, s.db).QueryRowContext(ctx, `
		SELECT id, canonical_key, display_name, created_at, updated_at
		FROM tenants
		WHERE canonical_key = $1
	`, canonicalKey))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find tenant by canonical key: %w", err)
	}
	return tenant, nil
}

func (s *PostgresStore) FindByID(ctx context.Context, tenantID id.TenantID) (*models.Tenant, error) {
	tenant, err := scanTenant(txcontext.Exec(ctx, s.db).QueryRowContext(ctx, `
		SELECT id, canonical_key, display_name, created_at, updated_at
		FROM tenants
		WHERE id = $1
	`, uuid.UUID(tenantID)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find tenant by id: %w", err)
	}
	return tenant, nil
}

// UpdateDisplayName writes display metadata only; the canonical key is immutable.
func (s *PostgresStore) UpdateDisplayName(ctx context.Context, tenant *models.Tenant) error {
	res, err := txcontext.Exec(ctx, s.db).ExecContext(ctx, `
		UPDATE tenants SET display_name = $2, updated_at = $3 WHERE id = $1
	`, uuid.UUID(tenant.ID), tenant.DisplayName, tenant.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update tenant: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update tenant rows: %w", err)
	}
	if rows == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

type tenantRow interface {
	Scan(dest ...any) error
}

func scanTenant(row tenantRow) (*models.Tenant, error) {
	var tenant models.Tenant
	var tenantID uuid.UUID
	if err := row.Scan(&tenantID, &tenant.CanonicalKey, &tenant.DisplayName, &tenant.CreatedAt, &tenant.UpdatedAt); err != nil {
		return nil, err
	}
	tenant.ID = id.TenantID(tenantID)
	return &tenant, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

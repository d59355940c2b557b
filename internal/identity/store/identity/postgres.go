package identity

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	contract "streak/contracts/identity"
	"streak/internal/identity/models"
	id "streak/pkg/domain"
	"streak/pkg/platform/sentinel"
	txcontext "streak/pkg/platform/tx"
)

// PostgresStore persists identities in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Create inserts a new identity; a concurrent first sight of the same user
// yields sentinel.ErrAlreadyUsed.
func (s *PostgresStore) Create(ctx context.Context, ident *models.Identity) error {
	res, err := txcontext.Exec(ctx, s.db).ExecContext(ctx, `
		INSERT INTO identities (external_user_id, tenant_id, role, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (external_user_id) DO NOTHING
	`,
		ident.ExternalUserID.String(),
		uuid.UUID(ident.TenantID),
		string(ident.Role),
		ident.CreatedAt,
		ident.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("identity exists: %w", sentinel.ErrAlreadyUsed)
		}
		return fmt.Errorf("create identity: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("create identity rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("identity exists: %w", sentinel.ErrAlreadyUsed)
	}
	return nil
}

func (s *PostgresStore) FindByExternalUserID(ctx context.Context, userID id.ExternalUserID) (*models.Identity, error) {
	var (
		ident    models.Identity
		extID    string
		tenantID uuid.UUID
		role     string
	)
	err := txcontext.Exec(ctx, s.db).QueryRowContext(ctx, `
		SELECT external_user_id, tenant_id, role, created_at, updated_at
		FROM identities
		WHERE external_user_id = $1
	`, userID.String()).Scan(&extID, &tenantID, &role, &ident.CreatedAt, &ident.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find identity: %w", err)
	}
	ident.ExternalUserID = id.ExternalUserID(extID)
	ident.TenantID = id.TenantID(tenantID)
	ident.Role = contract.Role(role)
	return &ident, nil
}

// Update repoints the identity row. Only the pointer moves; tenant data is untouched.
func (s *PostgresStore) Update(ctx context.Context, ident *models.Identity) error {
	res, err := txcontext.Exec(ctx, s.db).ExecContext(ctx, `
		UPDATE identities SET tenant_id = $2, role = $3, updated_at = $4
		WHERE external_user_id = $1
	`, ident.ExternalUserID.String(), uuid.UUID(ident.TenantID), string(ident.Role), ident.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update identity: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update identity rows: %w", err)
	}
	if rows == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) CountByTenant(ctx context.Context, tenantID id.TenantID) (int, error) {
	var n int
	if err := txcontext.Exec(ctx, s.db).QueryRowContext(ctx,
		`SELECT COUNT(*) FROM identities WHERE tenant_id = $1`, uuid.UUID(tenantID)).Scan(&n); err != nil {
		return 0, fmt.Errorf("count identities: %w", err)
	}
	return n, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

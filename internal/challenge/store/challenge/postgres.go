// Package challenge persists challenges. Every lookup is scoped by tenant.
package challenge

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"streak/internal/challenge/models"
	id "streak/pkg/domain"
	"streak/pkg/platform/sentinel"
	txcontext "streak/pkg/platform/tx"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const challengeColumns = `id, tenant_id, title, description, starts_at, ends_at, proof_type,
	proof_frequency, max_participants, entry_fee_cents, currency, created_by, created_at, updated_at`

func (s *PostgresStore) Create(ctx context.Context, c *models.Challenge) error {
	if c == nil {
		return fmt.Errorf("challenge is required")
	}
	_, err := txcontext.Exec(ctx, s.db).ExecContext(ctx, `
		INSERT INTO challenges (`+challengeColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`,
		uuid.UUID(c.ID),
		uuid.UUID(c.TenantID),
		c.Title,
		c.Description,
		c.StartsAt,
		c.EndsAt,
		string(c.ProofType),
		string(c.ProofFrequency),
		c.MaxParticipants,
		c.EntryFeeCents,
		c.Currency,
		c.CreatedBy.String(),
		c.CreatedAt,
		c.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("create challenge: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, tenantID id.TenantID, challengeID id.ChallengeID) (*models.Challenge, error) {
	return s.find(ctx, `SELECT `+challengeColumns+` FROM challenges WHERE tenant_id = $1 AND id = $2`, tenantID, challengeID)
}

// FindByIDForUpdate locks the challenge row until the surrounding transaction
// ends, serializing capacity checks on enrollment.
func (s *PostgresStore) FindByIDForUpdate(ctx context.Context, tenantID id.TenantID, challengeID id.ChallengeID) (*models.Challenge, error) {
	return s.find(ctx, `SELECT `+challengeColumns+` FROM challenges WHERE tenant_id = $1 AND id = $2 FOR UPDATE`, tenantID, challengeID)
}

func (s *PostgresStore) find(ctx context.Context, query string, tenantID id.TenantID, challengeID id.ChallengeID) (*models.Challenge, error) {
	c, err := scanChallenge(txcontext.Exec(ctx, s.db).QueryRowContext(ctx, query, uuid.UUID(tenantID), uuid.UUID(challengeID)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find challenge: %w", err)
	}
	return c, nil
}

func (s *PostgresStore) Update(ctx context.Context, c *models.Challenge) error {
	res, err := txcontext.Exec(ctx, s.db).ExecContext(ctx, `
		UPDATE challenges
		SET title = $3, description = $4, starts_at = $5, ends_at = $6,
			max_participants = $7, entry_fee_cents = $8, updated_at = $9
		WHERE tenant_id = $1 AND id = $2
	`,
		uuid.UUID(c.TenantID),
		uuid.UUID(c.ID),
		c.Title,
		c.Description,
		c.StartsAt,
		c.EndsAt,
		c.MaxParticipants,
		c.EntryFeeCents,
		c.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update challenge: %w", err)
	}
	return requireRow(res, "update challenge")
}

// Delete removes the challenge. Child rows go with it through ON DELETE CASCADE.
func (s *PostgresStore) Delete(ctx context.Context, tenantID id.TenantID, challengeID id.ChallengeID) error {
	res, err := txcontext.Exec(ctx, s.db).ExecContext(ctx,
		`DELETE FROM challenges WHERE tenant_id = $1 AND id = $2`,
		uuid.UUID(tenantID), uuid.UUID(challengeID))
	if err != nil {
		return fmt.Errorf("delete challenge: %w", err)
	}
	return requireRow(res, "delete challenge")
}

// List returns the tenant's challenges newest first. The status filter is
// evaluated against filter.Now so it matches Challenge.Status.
func (s *PostgresStore) List(ctx context.Context, tenantID id.TenantID, filter models.ListFilter) ([]*models.Challenge, error) {
	query := `SELECT ` + challengeColumns + ` FROM challenges WHERE tenant_id = $1`
	args := []any{uuid.UUID(tenantID)}
	switch filter.Status {
	case models.StatusUpcoming:
		query += ` AND starts_at > $2`
		args = append(args, filter.Now)
	case models.StatusActive:
		query += ` AND starts_at <= $2 AND ends_at > $2`
		args = append(args, filter.Now)
	case models.StatusEnded:
		query += ` AND ends_at <= $2`
		args = append(args, filter.Now)
	}
	query += fmt.Sprintf(` ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)
	args = append(args, filter.Limit, filter.Offset)

	rows, err := txcontext.Exec(ctx, s.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list challenges: %w", err)
	}
	defer rows.Close()

	var out []*models.Challenge
	for rows.Next() {
		c, err := scanChallenge(rows)
		if err != nil {
			return nil, fmt.Errorf("scan challenge: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate challenges: %w", err)
	}
	return out, nil
}

type row interface {
	Scan(dest ...any) error
}

func scanChallenge(r row) (*models.Challenge, error) {
	var (
		c                    models.Challenge
		challengeID, tenant  uuid.UUID
		proofType, frequency string
		createdBy            string
	)
	if err := r.Scan(
		&challengeID, &tenant, &c.Title, &c.Description, &c.StartsAt, &c.EndsAt, &proofType,
		&frequency, &c.MaxParticipants, &c.EntryFeeCents, &c.Currency, &createdBy, &c.CreatedAt, &c.UpdatedAt,
	); err != nil {
		return nil, err
	}
	c.ID = id.ChallengeID(challengeID)
	c.TenantID = id.TenantID(tenant)
	c.ProofType = models.ProofType(proofType)
	c.ProofFrequency = models.ProofFrequency(frequency)
	c.CreatedBy = id.ExternalUserID(createdBy)
	return &c, nil
}

func requireRow(res sql.Result, action string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows: %w", action, err)
	}
	if n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

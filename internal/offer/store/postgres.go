// Package store persists offers, scoped by tenant.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"streak/internal/offer/models"
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

const offerColumns = `id, tenant_id, challenge_id, title, description, plan_id, price_cents, currency,
	audience, min_proofs, active, created_at, updated_at`

func (s *PostgresStore) Create(ctx context.Context, o *models.Offer) error {
	if o == nil {
		return fmt.Errorf("offer is required")
	}
	_, err := txcontext.Exec(ctx, s.db).ExecContext(ctx, `
		INSERT INTO offers (`+offerColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`,
		uuid.UUID(o.ID),
		uuid.UUID(o.TenantID),
		uuid.UUID(o.ChallengeID),
		o.Title,
		o.Description,
		o.PlanID,
		o.PriceCents,
		o.Currency,
		string(o.Audience),
		o.MinProofs,
		o.Active,
		o.CreatedAt,
		o.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("create offer: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, tenantID id.TenantID, offerID id.OfferID) (*models.Offer, error) {
	o, err := scanOffer(txcontext.Exec(ctx, s.db).QueryRowContext(ctx,
		`SELECT `+offerColumns+` FROM offers WHERE tenant_id = $1 AND id = $2`,
		uuid.UUID(tenantID), uuid.UUID(offerID)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find offer: %w", err)
	}
	return o, nil
}

func (s *PostgresStore) Update(ctx context.Context, o *models.Offer) error {
	res, err := txcontext.Exec(ctx, s.db).ExecContext(ctx, `
		UPDATE offers SET title = $3, price_cents = $4, active = $5, updated_at = $6
		WHERE tenant_id = $1 AND id = $2
	`, uuid.UUID(o.TenantID), uuid.UUID(o.ID), o.Title, o.PriceCents, o.Active, o.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update offer: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update offer rows: %w", err)
	}
	if n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

// ListByChallenge returns offers oldest first, optionally only active ones.
func (s *PostgresStore) ListByChallenge(ctx context.Context, tenantID id.TenantID, challengeID id.ChallengeID, activeOnly bool) ([]*models.Offer, error) {
	query := `SELECT ` + offerColumns + ` FROM offers WHERE tenant_id = $1 AND challenge_id = $2`
	if activeOnly {
		query += ` AND active`
	}
	query += ` ORDER BY created_at, id`

	rows, err := txcontext.Exec(ctx, s.db).QueryContext(ctx, query, uuid.UUID(tenantID), uuid.UUID(challengeID))
	if err != nil {
		return nil, fmt.Errorf("list offers: %w", err)
	}
	defer rows.Close()

	var out []*models.Offer
	for rows.Next() {
		o, err := scanOffer(rows)
		if err != nil {
			return nil, fmt.Errorf("scan offer: %w", err)
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate offers: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) DeleteByChallenge(ctx context.Context, tenantID id.TenantID, challengeID id.ChallengeID) error {
	_, err := txcontext.Exec(ctx, s.db).ExecContext(ctx,
		`DELETE FROM offers WHERE tenant_id = $1 AND challenge_id = $2`,
		uuid.UUID(tenantID), uuid.UUID(challengeID))
	if err != nil {
		return fmt.Errorf("delete offers: %w", err)
	}
	return nil
}

type row interface {
	Scan(dest ...any) error
}

func scanOffer(r row) (*models.Offer, error) {
	var (
		o                          models.Offer
		offerID, tenant, challenge uuid.UUID
		audience                   string
	)
	if err := r.Scan(&offerID, &tenant, &challenge, &o.Title, &o.Description, &o.PlanID, &o.PriceCents,
		&o.Currency, &audience, &o.MinProofs, &o.Active, &o.CreatedAt, &o.UpdatedAt); err != nil {
		return nil, err
	}
	o.ID = id.OfferID(offerID)
	o.TenantID = id.TenantID(tenant)
	o.ChallengeID = id.ChallengeID(challenge)
	o.Audience = models.Audience(audience)
	return &o, nil
}

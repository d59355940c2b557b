// Package store persists the revenue-share ledger and processed webhook ids.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"streak/internal/billing/models"
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

// MarkProcessed claims a webhook event id. A second claim of the same id
// returns sentinel.ErrAlreadyUsed.
func (s *PostgresStore) MarkProcessed(ctx context.Context, eventID string) error {
	res, err := txcontext.Exec(ctx, s.db).ExecContext(ctx, `
		INSERT INTO processed_payments (event_id) VALUES ($1)
		ON CONFLICT (event_id) DO NOTHING
	`, eventID)
	if err != nil {
		return fmt.Errorf("mark payment event processed: %w", err)
	}
	return requireInserted(res, "payment event already processed")
}

// Record appends a ledger row. payment_id is unique across the ledger.
func (s *PostgresStore) Record(ctx context.Context, r *models.RevenueShare) error {
	if r == nil {
		return fmt.Errorf("revenue share is required")
	}
	var offerID *uuid.UUID
	if r.OfferID != nil {
		u := uuid.UUID(*r.OfferID)
		offerID = &u
	}
	res, err := txcontext.Exec(ctx, s.db).ExecContext(ctx, `
		INSERT INTO revenue_shares (id, tenant_id, payment_id, challenge_id, offer_id, external_user_id,
			gross_cents, platform_fee_cents, creator_cents, currency, recorded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (payment_id) DO NOTHING
	`,
		r.ID,
		uuid.UUID(r.TenantID),
		r.PaymentID,
		uuid.UUID(r.ChallengeID),
		offerID,
		r.ExternalUserID.String(),
		r.GrossCents,
		r.PlatformFeeCents,
		r.CreatorCents,
		r.Currency,
		r.RecordedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("payment already recorded: %w", sentinel.ErrAlreadyUsed)
		}
		return fmt.Errorf("record revenue share: %w", err)
	}
	return requireInserted(res, "payment already recorded")
}

// Totals sums the tenant's ledger per currency.
func (s *PostgresStore) Totals(ctx context.Context, tenantID id.TenantID) ([]models.RevenueTotals, error) {
	rows, err := txcontext.Exec(ctx, s.db).QueryContext(ctx, `
		SELECT currency, COUNT(*), COALESCE(SUM(gross_cents), 0),
			COALESCE(SUM(platform_fee_cents), 0), COALESCE(SUM(creator_cents), 0)
		FROM revenue_shares
		WHERE tenant_id = $1
		GROUP BY currency
		ORDER BY currency
	`, uuid.UUID(tenantID))
	if err != nil {
		return nil, fmt.Errorf("sum revenue: %w", err)
	}
	defer rows.Close()

	var totals []models.RevenueTotals
	for rows.Next() {
		var t models.RevenueTotals
		if err := rows.Scan(&t.Currency, &t.Payments, &t.GrossCents, &t.PlatformFeeCents, &t.CreatorCents); err != nil {
			return nil, fmt.Errorf("scan revenue totals: %w", err)
		}
		totals = append(totals, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate revenue totals: %w", err)
	}
	return totals, nil
}

func requireInserted(res sql.Result, msg string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", msg, sentinel.ErrAlreadyUsed)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

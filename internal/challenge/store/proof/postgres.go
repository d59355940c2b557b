// Package proof persists proof submissions.
package proof

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

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

const proofColumns = `id, tenant_id, challenge_id, enrollment_id, external_user_id, period_key,
	content, media_url, note, submitted_at`

// Create inserts the proof. A second proof for the same enrollment and period
// yields sentinel.ErrAlreadyUsed.
func (s *PostgresStore) Create(ctx context.Context, p *models.Proof) error {
	if p == nil {
		return fmt.Errorf("proof is required")
	}
	res, err := txcontext.Exec(ctx, s.db).ExecContext(ctx, `
		INSERT INTO proofs (`+proofColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (enrollment_id, period_key) DO NOTHING
	`,
		uuid.UUID(p.ID),
		uuid.UUID(p.TenantID),
		uuid.UUID(p.ChallengeID),
		uuid.UUID(p.EnrollmentID),
		p.ExternalUserID.String(),
		p.PeriodKey,
		p.Content,
		p.MediaURL,
		p.Note,
		p.SubmittedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("proof already submitted for period: %w", sentinel.ErrAlreadyUsed)
		}
		return fmt.Errorf("create proof: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("create proof rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("proof already submitted for period: %w", sentinel.ErrAlreadyUsed)
	}
	return nil
}

// List returns proofs newest first. An empty userID lists every submitter.
func (s *PostgresStore) List(ctx context.Context, tenantID id.TenantID, challengeID id.ChallengeID, userID id.ExternalUserID, page models.Page) ([]*models.Proof, error) {
	query := `SELECT ` + proofColumns + ` FROM proofs WHERE tenant_id = $1 AND challenge_id = $2`
	args := []any{uuid.UUID(tenantID), uuid.UUID(challengeID)}
	if !userID.IsNil() {
		query += ` AND external_user_id = $3`
		args = append(args, userID.String())
	}
	query += fmt.Sprintf(` ORDER BY submitted_at DESC, id DESC LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)
	args = append(args, page.Limit, page.Offset)

	rows, err := txcontext.Exec(ctx, s.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list proofs: %w", err)
	}
	defer rows.Close()

	var out []*models.Proof
	for rows.Next() {
		p, err := scanProof(rows)
		if err != nil {
			return nil, fmt.Errorf("scan proof: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate proofs: %w", err)
	}
	return out, nil
}

// CountByUser returns proof counts per submitter.
func (s *PostgresStore) CountByUser(ctx context.Context, tenantID id.TenantID, challengeID id.ChallengeID) (map[id.ExternalUserID]int, error) {
	rows, err := txcontext.Exec(ctx, s.db).QueryContext(ctx, `
		SELECT external_user_id, COUNT(*)
		FROM proofs
		WHERE tenant_id = $1 AND challenge_id = $2
		GROUP BY external_user_id
	`, uuid.UUID(tenantID), uuid.UUID(challengeID))
	if err != nil {
		return nil, fmt.Errorf("count proofs: %w", err)
	}
	defer rows.Close()

	counts := make(map[id.ExternalUserID]int)
	for rows.Next() {
		var userID string
		var n int
		if err := rows.Scan(&userID, &n); err != nil {
			return nil, fmt.Errorf("scan proof count: %w", err)
		}
		counts[id.ExternalUserID(userID)] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate proof counts: %w", err)
	}
	return counts, nil
}

func (s *PostgresStore) DeleteByChallenge(ctx context.Context, tenantID id.TenantID, challengeID id.ChallengeID) error {
	_, err := txcontext.Exec(ctx, s.db).ExecContext(ctx,
		`DELETE FROM proofs WHERE tenant_id = $1 AND challenge_id = $2`,
		uuid.UUID(tenantID), uuid.UUID(challengeID))
	if err != nil {
		return fmt.Errorf("delete proofs: %w", err)
	}
	return nil
}

type row interface {
	Scan(dest ...any) error
}

func scanProof(r row) (*models.Proof, error) {
	var (
		p                                     models.Proof
		proofID, tenant, challenge, enrolment uuid.UUID
		userID                                string
	)
	if err := r.Scan(&proofID, &tenant, &challenge, &enrolment, &userID, &p.PeriodKey,
		&p.Content, &p.MediaURL, &p.Note, &p.SubmittedAt); err != nil {
		return nil, err
	}
	p.ID = id.ProofID(proofID)
	p.TenantID = id.TenantID(tenant)
	p.ChallengeID = id.ChallengeID(challenge)
	p.EnrollmentID = id.EnrollmentID(enrolment)
	p.ExternalUserID = id.ExternalUserID(userID)
	return &p, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

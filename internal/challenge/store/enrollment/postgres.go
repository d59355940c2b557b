// Package enrollment persists challenge enrollments.
package enrollment

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

const enrollmentColumns = `id, tenant_id, challenge_id, external_user_id, source, payment_id, status, joined_at`

// Create inserts the enrollment. A second enrollment of the same user in the
// same challenge yields sentinel.ErrAlreadyUsed.
func (s *PostgresStore) Create(ctx context.Context, e *models.Enrollment) error {
	if e == nil {
		return fmt.Errorf("enrollment is required")
	}
	res, err := txcontext.Exec(ctx, s.db).ExecContext(ctx, `
		INSERT INTO enrollments (`+enrollmentColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (challenge_id, external_user_id) DO NOTHING
	`,
		uuid.UUID(e.ID),
		uuid.UUID(e.TenantID),
		uuid.UUID(e.ChallengeID),
		e.ExternalUserID.String(),
		string(e.Source),
		nullString(e.PaymentID),
		string(e.Status),
		e.JoinedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("user already enrolled: %w", sentinel.ErrAlreadyUsed)
		}
		return fmt.Errorf("create enrollment: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("create enrollment rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("user already enrolled: %w", sentinel.ErrAlreadyUsed)
	}
	return nil
}

func (s *PostgresStore) FindByUser(ctx context.Context, tenantID id.TenantID, challengeID id.ChallengeID, userID id.ExternalUserID) (*models.Enrollment, error) {
	e, err := scanEnrollment(txcontext.Exec(ctx, s.db).QueryRowContext(ctx, `
		SELECT `+enrollmentColumns+`
		FROM enrollments
		WHERE tenant_id = $1 AND challenge_id = $2 AND external_user_id = $3
	`, uuid.UUID(tenantID), uuid.UUID(challengeID), userID.String()))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find enrollment: %w", err)
	}
	return e, nil
}

func (s *PostgresStore) CountActive(ctx context.Context, tenantID id.TenantID, challengeID id.ChallengeID) (int, error) {
	var n int
	err := txcontext.Exec(ctx, s.db).QueryRowContext(ctx, `
		SELECT COUNT(*) FROM enrollments
		WHERE tenant_id = $1 AND challenge_id = $2 AND status = 'active'
	`, uuid.UUID(tenantID), uuid.UUID(challengeID)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count enrollments: %w", err)
	}
	return n, nil
}

// ListByChallenge returns active enrollments in join order.
func (s *PostgresStore) ListByChallenge(ctx context.Context, tenantID id.TenantID, challengeID id.ChallengeID) ([]*models.Enrollment, error) {
	rows, err := txcontext.Exec(ctx, s.db).QueryContext(ctx, `
		SELECT `+enrollmentColumns+`
		FROM enrollments
		WHERE tenant_id = $1 AND challenge_id = $2 AND status = 'active'
		ORDER BY joined_at, id
	`, uuid.UUID(tenantID), uuid.UUID(challengeID))
	if err != nil {
		return nil, fmt.Errorf("list enrollments: %w", err)
	}
	defer rows.Close()

	var out []*models.Enrollment
	for rows.Next() {
		e, err := scanEnrollment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan enrollment: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate enrollments: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) DeleteByChallenge(ctx context.Context, tenantID id.TenantID, challengeID id.ChallengeID) error {
	_, err := txcontext.Exec(ctx, s.db).ExecContext(ctx,
		`DELETE FROM enrollments WHERE tenant_id = $1 AND challenge_id = $2`,
		uuid.UUID(tenantID), uuid.UUID(challengeID))
	if err != nil {
		return fmt.Errorf("delete enrollments: %w", err)
	}
	return nil
}

type row interface {
	Scan(dest ...any) error
}

func scanEnrollment(r row) (*models.Enrollment, error) {
	var (
		e                               models.Enrollment
		enrollmentID, tenant, challenge uuid.UUID
		userID, source, status          string
		paymentID                       sql.NullString
	)
	if err := r.Scan(&enrollmentID, &tenant, &challenge, &userID, &source, &paymentID, &status, &e.JoinedAt); err != nil {
		return nil, err
	}
	e.ID = id.EnrollmentID(enrollmentID)
	e.TenantID = id.TenantID(tenant)
	e.ChallengeID = id.ChallengeID(challenge)
	e.ExternalUserID = id.ExternalUserID(userID)
	e.Source = models.EnrollmentSource(source)
	e.Status = models.EnrollmentStatus(status)
	e.PaymentID = paymentID.String
	return &e, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

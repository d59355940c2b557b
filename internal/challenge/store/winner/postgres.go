// Package winner persists the ranked winner list of a challenge.
package winner

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"streak/internal/challenge/models"
	id "streak/pkg/domain"
	txcontext "streak/pkg/platform/tx"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Replace swaps the winner list. Callers run it inside a transaction so
// readers never observe a partial list.
func (s *PostgresStore) Replace(ctx context.Context, tenantID id.TenantID, challengeID id.ChallengeID, winners []*models.Winner) error {
	exec := txcontext.Exec(ctx, s.db)
	if _, err := exec.ExecContext(ctx,
		`DELETE FROM winners WHERE tenant_id = $1 AND challenge_id = $2`,
		uuid.UUID(tenantID), uuid.UUID(challengeID)); err != nil {
		return fmt.Errorf("clear winners: %w", err)
	}
	for _, w := range winners {
		if _, err := exec.ExecContext(ctx, `
			INSERT INTO winners (tenant_id, challenge_id, external_user_id, place, reason, selected_at)
			VALUES ($1, $2, $3, $4, $5, $6)
		`,
			uuid.UUID(w.TenantID),
			uuid.UUID(w.ChallengeID),
			w.ExternalUserID.String(),
			w.Place,
			w.Reason,
			w.SelectedAt,
		); err != nil {
			return fmt.Errorf("insert winner: %w", err)
		}
	}
	return nil
}

// List returns winners ordered by place.
func (s *PostgresStore) List(ctx context.Context, tenantID id.TenantID, challengeID id.ChallengeID) ([]*models.Winner, error) {
	rows, err := txcontext.Exec(ctx, s.db).QueryContext(ctx, `
		SELECT tenant_id, challenge_id, external_user_id, place, reason, selected_at
		FROM winners
		WHERE tenant_id = $1 AND challenge_id = $2
		ORDER BY place
	`, uuid.UUID(tenantID), uuid.UUID(challengeID))
	if err != nil {
		return nil, fmt.Errorf("list winners: %w", err)
	}
	defer rows.Close()

	var out []*models.Winner
	for rows.Next() {
		var (
			w                 models.Winner
			tenant, challenge uuid.UUID
			userID            string
		)
		if err := rows.Scan(&tenant, &challenge, &userID, &w.Place, &w.Reason, &w.SelectedAt); err != nil {
			return nil, fmt.Errorf("scan winner: %w", err)
		}
		w.TenantID = id.TenantID(tenant)
		w.ChallengeID = id.ChallengeID(challenge)
		w.ExternalUserID = id.ExternalUserID(userID)
		out = append(out, &w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate winners: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) DeleteByChallenge(ctx context.Context, tenantID id.TenantID, challengeID id.ChallengeID) error {
	_, err := txcontext.Exec(ctx, s.db).ExecContext(ctx,
		`DELETE FROM winners WHERE tenant_id = $1 AND challenge_id = $2`,
		uuid.UUID(tenantID), uuid.UUID(challengeID))
	if err != nil {
		return fmt.Errorf("delete winners: %w", err)
	}
	return nil
}

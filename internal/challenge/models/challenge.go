package models

import (
	"fmt"
	"time"

	id "streak/pkg/domain"
	dErrors "streak/pkg/domain-errors"
)

type Challenge struct {
	ID              id.ChallengeID    `json:"id"`
	TenantID        id.TenantID       `json:"tenant_id"`
	Title           string            `json:"title"`
	Description     string            `json:"description"`
	StartsAt        time.Time         `json:"starts_at"`
	EndsAt          time.Time         `json:"ends_at"`
	ProofType       ProofType         `json:"proof_type"`
	ProofFrequency  ProofFrequency    `json:"proof_frequency"`
	MaxParticipants int               `json:"max_participants"`
	EntryFeeCents   int64             `json:"entry_fee_cents"`
	Currency        string            `json:"currency"`
	CreatedBy       id.ExternalUserID `json:"created_by"`
	CreatedAt       time.Time         `json:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at"`
}

// Status derives the lifecycle phase at now. The end bound is exclusive.
func (c *Challenge) Status(now time.Time) Status {
	switch {
	case now.Before(c.StartsAt):
		return StatusUpcoming
	case now.Before(c.EndsAt):
		return StatusActive
	default:
		return StatusEnded
	}
}

func (c *Challenge) IsFree() bool {
	return c.EntryFeeCents == 0
}

// IsFull reports whether enrolled participants reached the cap. Zero means unlimited.
func (c *Challenge) IsFull(enrolled int) bool {
	return c.MaxParticipants > 0 && enrolled >= c.MaxParticipants
}

// PeriodKey buckets t into the proof period of the challenge.
func (c *Challenge) PeriodKey(t time.Time) string {
	return PeriodKey(c.ProofFrequency, t)
}

// PeriodKey formats t as YYYY-MM-DD (daily), ISO week YYYY-Www (weekly), or "once".
func PeriodKey(freq ProofFrequency, t time.Time) string {
	t = t.UTC()
	switch freq {
	case FrequencyDaily:
		return t.Format("2006-01-02")
	case FrequencyWeekly:
		year, week := t.ISOWeek()
		return fmt.Sprintf("%04d-W%02d", year, week)
	default:
		return string(FrequencyOnce)
	}
}

// Validate checks the invariants every stored challenge must hold.
func (c *Challenge) Validate() error {
	if c.TenantID.IsNil() {
		return dErrors.New(dErrors.CodeInvariantViolation, "tenant id cannot be empty")
	}
	if c.Title == "" {
		return dErrors.New(dErrors.CodeValidation, "title is required")
	}
	if !c.EndsAt.After(c.StartsAt) {
		return dErrors.New(dErrors.CodeValidation, "ends_at must be after starts_at")
	}
	if !c.ProofType.Valid() {
		return dErrors.New(dErrors.CodeValidation, "proof_type must be one of text, photo, link")
	}
	if !c.ProofFrequency.Valid() {
		return dErrors.New(dErrors.CodeValidation, "proof_frequency must be one of daily, weekly, once")
	}
	if c.MaxParticipants < 0 {
		return dErrors.New(dErrors.CodeValidation, "max_participants cannot be negative")
	}
	if c.EntryFeeCents < 0 {
		return dErrors.New(dErrors.CodeValidation, "entry_fee_cents cannot be negative")
	}
	return nil
}

// ChallengeStats summarizes activity on one challenge.
type ChallengeStats struct {
	ChallengeID      id.ChallengeID `json:"challenge_id"`
	Status           Status         `json:"status"`
	Enrollments      int            `json:"enrollments"`
	Proofs           int            `json:"proofs"`
	ActiveSubmitters int            `json:"active_submitters"`
	Winners          int            `json:"winners"`
	SpotsLeft        *int           `json:"spots_left,omitempty"`
}

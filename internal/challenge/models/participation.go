package models

import (
	"time"

	id "streak/pkg/domain"
)

// Enrollment admits one user to one challenge. (ChallengeID, ExternalUserID) is unique.
type Enrollment struct {
	ID             id.EnrollmentID   `json:"id"`
	TenantID       id.TenantID       `json:"tenant_id"`
	ChallengeID    id.ChallengeID    `json:"challenge_id"`
	ExternalUserID id.ExternalUserID `json:"external_user_id"`
	Source         EnrollmentSource  `json:"source"`
	PaymentID      string            `json:"payment_id,omitempty"`
	Status         EnrollmentStatus  `json:"status"`
	JoinedAt       time.Time         `json:"joined_at"`
}

func (e *Enrollment) IsActive() bool {
	return e.Status == EnrollmentActive
}

func NewEnrollment(c *Challenge, userID id.ExternalUserID, source EnrollmentSource, paymentID string, now time.Time) *Enrollment {
	return &Enrollment{
		ID:             id.NewEnrollmentID(),
		TenantID:       c.TenantID,
		ChallengeID:    c.ID,
		ExternalUserID: userID,
		Source:         source,
		PaymentID:      paymentID,
		Status:         EnrollmentActive,
		JoinedAt:       now,
	}
}

// Proof is one check-in. (EnrollmentID, PeriodKey) is unique.
type Proof struct {
	ID             id.ProofID        `json:"id"`
	TenantID       id.TenantID       `json:"tenant_id"`
	ChallengeID    id.ChallengeID    `json:"challenge_id"`
	EnrollmentID   id.EnrollmentID   `json:"enrollment_id"`
	ExternalUserID id.ExternalUserID `json:"external_user_id"`
	PeriodKey      string            `json:"period_key"`
	Content        string            `json:"content,omitempty"`
	MediaURL       string            `json:"media_url,omitempty"`
	Note           string            `json:"note,omitempty"`
	SubmittedAt    time.Time         `json:"submitted_at"`
}

type Winner struct {
	TenantID       id.TenantID       `json:"tenant_id"`
	ChallengeID    id.ChallengeID    `json:"challenge_id"`
	ExternalUserID id.ExternalUserID `json:"external_user_id"`
	Place          int               `json:"place"`
	Reason         string            `json:"reason,omitempty"`
	SelectedAt     time.Time         `json:"selected_at"`
}

// LeaderboardEntry ranks an enrolled user by proof count. Ties share a rank.
type LeaderboardEntry struct {
	Rank           int               `json:"rank"`
	ExternalUserID id.ExternalUserID `json:"external_user_id"`
	ProofCount     int               `json:"proof_count"`
	JoinedAt       time.Time         `json:"joined_at"`
}

// Participation is one user's standing in a challenge.
type Participation struct {
	Enrolled   bool `json:"enrolled"`
	ProofCount int  `json:"proof_count"`
	Winner     bool `json:"winner"`
	Place      int  `json:"place,omitempty"`
}

// Page bounds list queries.
type Page struct {
	Limit  int
	Offset int
}

// ListFilter narrows ListChallenges. A zero Status means every status.
type ListFilter struct {
	Status Status
	Now    time.Time
	Page
}

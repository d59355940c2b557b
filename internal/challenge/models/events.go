package models

// Outbox payloads.

type ChallengeCreated struct {
	ChallengeID   string `json:"challenge_id"`
	Title         string `json:"title"`
	EntryFeeCents int64  `json:"entry_fee_cents"`
	CreatedBy     string `json:"created_by"`
}

type ChallengeDeleted struct {
	ChallengeID string `json:"challenge_id"`
	DeletedBy   string `json:"deleted_by"`
}

type EnrollmentCreated struct {
	EnrollmentID   string `json:"enrollment_id"`
	ChallengeID    string `json:"challenge_id"`
	ExternalUserID string `json:"external_user_id"`
	Source         string `json:"source"`
	PaymentID      string `json:"payment_id,omitempty"`
}

type WinnersSelected struct {
	ChallengeID string         `json:"challenge_id"`
	Winners     []WinnerRecord `json:"winners"`
}

type WinnerRecord struct {
	ExternalUserID string `json:"external_user_id"`
	Place          int    `json:"place"`
}

package models

type ProofType string

const (
	ProofTypeText  ProofType = "text"
	ProofTypePhoto ProofType = "photo"
	ProofTypeLink  ProofType = "link"
)

func (t ProofType) Valid() bool {
	return t == ProofTypeText || t == ProofTypePhoto || t == ProofTypeLink
}

// RequiresMedia reports whether proofs of this type carry a media URL instead of text.
func (t ProofType) RequiresMedia() bool {
	return t == ProofTypePhoto || t == ProofTypeLink
}

type ProofFrequency string

const (
	FrequencyDaily  ProofFrequency = "daily"
	FrequencyWeekly ProofFrequency = "weekly"
	FrequencyOnce   ProofFrequency = "once"
)

func (f ProofFrequency) Valid() bool {
	return f == FrequencyDaily || f == FrequencyWeekly || f == FrequencyOnce
}

// Status is derived from the schedule, never stored.
type Status string

const (
	StatusUpcoming Status = "upcoming"
	StatusActive   Status = "active"
	StatusEnded    Status = "ended"
)

func (s Status) Valid() bool {
	return s == StatusUpcoming || s == StatusActive || s == StatusEnded
}

type EnrollmentSource string

const (
	SourceFree     EnrollmentSource = "free"
	SourcePurchase EnrollmentSource = "purchase"
)

type EnrollmentStatus string

const (
	EnrollmentActive    EnrollmentStatus = "active"
	EnrollmentWithdrawn EnrollmentStatus = "withdrawn"
)

// DefaultCurrency applies when a challenge is created without one.
const DefaultCurrency = "USD"

// Package models holds the payment webhook payload and the revenue-share ledger.
package models

import (
	"strings"
	"time"

	"github.com/google/uuid"

	id "streak/pkg/domain"
	dErrors "streak/pkg/domain-errors"
	"streak/pkg/platform/validation"
)

const (
	EventPaymentSucceeded = "payment.succeeded"

	// MaxFeeBPS is 100% in basis points.
	MaxFeeBPS = 10000
)

// PaymentEvent is the webhook body posted by the payment provider.
type PaymentEvent struct {
	ID   string      `json:"id" validate:"required,max=200"`
	Type string      `json:"type" validate:"required,max=100"`
	Data PaymentData `json:"data"`
}

type PaymentData struct {
	ID          string          `json:"id" validate:"required,max=200"`
	UserID      string          `json:"user_id" validate:"required,max=200"`
	AmountCents int64           `json:"amount_cents" validate:"gte=0"`
	Currency    string          `json:"currency" validate:"omitempty,len=3,alpha"`
	Metadata    PaymentMetadata `json:"metadata"`
}

type PaymentMetadata struct {
	TenantID    string `json:"tenant_id" validate:"required,uuid"`
	ChallengeID string `json:"challenge_id" validate:"required,uuid"`
	OfferID     string `json:"offer_id,omitempty" validate:"omitempty,uuid"`
}

func (e *PaymentEvent) Normalize() {
	if e == nil {
		return
	}
	e.ID = strings.TrimSpace(e.ID)
	e.Type = strings.ToLower(strings.TrimSpace(e.Type))
	e.Data.Currency = strings.ToUpper(strings.TrimSpace(e.Data.Currency))
	if e.Data.Currency == "" {
		e.Data.Currency = "USD"
	}
}

// Validate checks the envelope only. The payment body is checked once the
// event is known to be a succeeded payment; other types are acknowledged as-is.
func (e *PaymentEvent) Validate() error {
	if e == nil {
		return dErrors.New(dErrors.CodeBadRequest, "event is required")
	}
	if e.ID == "" || e.Type == "" {
		return dErrors.New(dErrors.CodeValidation, "event id and type are required")
	}
	return nil
}

func (e *PaymentEvent) IsSucceeded() bool {
	return e.Type == EventPaymentSucceeded
}

// Target is the parsed, tenant-scoped destination of a payment.
type Target struct {
	TenantID    id.TenantID
	ChallengeID id.ChallengeID
	OfferID     *id.OfferID
	UserID      id.ExternalUserID
}

// Target validates the payment body and parses its metadata ids.
func (e *PaymentEvent) Target() (*Target, error) {
	if err := validation.Validate(e); err != nil {
		return nil, err
	}
	tenantID, err := id.ParseTenantID(e.Data.Metadata.TenantID)
	if err != nil {
		return nil, dErrors.New(dErrors.CodeValidation, "metadata.tenant_id is invalid")
	}
	challengeID, err := id.ParseChallengeID(e.Data.Metadata.ChallengeID)
	if err != nil {
		return nil, dErrors.New(dErrors.CodeValidation, "metadata.challenge_id is invalid")
	}
	userID, err := id.ParseExternalUserID(e.Data.UserID)
	if err != nil {
		return nil, dErrors.New(dErrors.CodeValidation, "user_id is invalid")
	}
	t := &Target{TenantID: tenantID, ChallengeID: challengeID, UserID: userID}
	if e.Data.Metadata.OfferID != "" {
		offerID, err := id.ParseOfferID(e.Data.Metadata.OfferID)
		if err != nil {
			return nil, dErrors.New(dErrors.CodeValidation, "metadata.offer_id is invalid")
		}
		t.OfferID = &offerID
	}
	return t, nil
}

// RevenueShare is one ledger row per payment.
type RevenueShare struct {
	ID               uuid.UUID         `json:"id"`
	TenantID         id.TenantID       `json:"tenant_id"`
	PaymentID        string            `json:"payment_id"`
	ChallengeID      id.ChallengeID    `json:"challenge_id"`
	OfferID          *id.OfferID       `json:"offer_id,omitempty"`
	ExternalUserID   id.ExternalUserID `json:"external_user_id"`
	GrossCents       int64             `json:"gross_cents"`
	PlatformFeeCents int64             `json:"platform_fee_cents"`
	CreatorCents     int64             `json:"creator_cents"`
	Currency         string            `json:"currency"`
	RecordedAt       time.Time         `json:"recorded_at"`
}

// PlatformFee is gross * bps / 10000, rounded down.
func PlatformFee(grossCents int64, feeBPS int) int64 {
	if grossCents <= 0 || feeBPS <= 0 {
		return 0
	}
	if feeBPS > MaxFeeBPS {
		feeBPS = MaxFeeBPS
	}
	return grossCents * int64(feeBPS) / MaxFeeBPS
}

func NewRevenueShare(t *Target, paymentID string, grossCents int64, currency string, feeBPS int, now time.Time) *RevenueShare {
	fee := PlatformFee(grossCents, feeBPS)
	return &RevenueShare{
		ID:               uuid.New(),
		TenantID:         t.TenantID,
		PaymentID:        paymentID,
		ChallengeID:      t.ChallengeID,
		OfferID:          t.OfferID,
		ExternalUserID:   t.UserID,
		GrossCents:       grossCents,
		PlatformFeeCents: fee,
		CreatorCents:     grossCents - fee,
		Currency:         currency,
		RecordedAt:       now,
	}
}

// RevenueTotals aggregates a tenant's ledger per currency.
type RevenueTotals struct {
	Currency         string `json:"currency"`
	Payments         int64  `json:"payments"`
	GrossCents       int64  `json:"gross_cents"`
	PlatformFeeCents int64  `json:"platform_fee_cents"`
	CreatorCents     int64  `json:"creator_cents"`
}

// Outcome reports what the webhook did with an event.
type Outcome string

const (
	OutcomeRecorded  Outcome = "recorded"
	OutcomeDuplicate Outcome = "duplicate"
	OutcomeIgnored   Outcome = "ignored"
)

// PaymentRecorded is the payload of the payment.recorded event.
type PaymentRecorded struct {
	PaymentID        string  `json:"payment_id"`
	ChallengeID      string  `json:"challenge_id"`
	OfferID          *string `json:"offer_id,omitempty"`
	ExternalUserID   string  `json:"external_user_id"`
	GrossCents       int64   `json:"gross_cents"`
	PlatformFeeCents int64   `json:"platform_fee_cents"`
	CreatorCents     int64   `json:"creator_cents"`
	Currency         string  `json:"currency"`
	Enrolled         bool    `json:"enrolled"`
}

func NewPaymentRecorded(r *RevenueShare, enrolled bool) PaymentRecorded {
	evt := PaymentRecorded{
		PaymentID:        r.PaymentID,
		ChallengeID:      r.ChallengeID.String(),
		ExternalUserID:   r.ExternalUserID.String(),
		GrossCents:       r.GrossCents,
		PlatformFeeCents: r.PlatformFeeCents,
		CreatorCents:     r.CreatorCents,
		Currency:         r.Currency,
		Enrolled:         enrolled,
	}
	if r.OfferID != nil {
		s := r.OfferID.String()
		evt.OfferID = &s
	}
	return evt
}

// Package domain provides type-safe identifiers to prevent mixing up IDs at compile time.
package domain

import (
	"strings"

	"github.com/google/uuid"

	dErrors "streak/pkg/domain-errors"
)

// Distinct ID types - compiler prevents passing a ChallengeID where a TenantID is expected.
type (
	TenantID     uuid.UUID
	ChallengeID  uuid.UUID
	EnrollmentID uuid.UUID
	ProofID      uuid.UUID
	OfferID      uuid.UUID
)

// ExternalUserID is the opaque user identifier issued by the hosting platform.
// It is never generated locally, so it stays a string.
type ExternalUserID string

// Parse functions - use at trust boundaries (handlers, API inputs, webhook payloads).

func ParseTenantID(s string) (TenantID, error) {
	id, err := parseUUID(s, "tenant ID")
	return TenantID(id), err
}

func ParseChallengeID(s string) (ChallengeID, error) {
	id, err := parseUUID(s, "challenge ID")
	return ChallengeID(id), err
}

func ParseEnrollmentID(s string) (EnrollmentID, error) {
	id, err := parseUUID(s, "enrollment ID")
	return EnrollmentID(id), err
}

func ParseProofID(s string) (ProofID, error) {
	id, err := parseUUID(s, "proof ID")
	return ProofID(id), err
}

func ParseOfferID(s string) (OfferID, error) {
	id, err := parseUUID(s, "offer ID")
	return OfferID(id), err
}

func ParseExternalUserID(s string) (ExternalUserID, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "external user ID cannot be empty")
	}
	return ExternalUserID(s), nil
}

// Constructors for freshly generated identifiers.

func NewTenantID() TenantID         { return TenantID(uuid.New()) }
func NewChallengeID() ChallengeID   { return ChallengeID(uuid.New()) }
func NewEnrollmentID() EnrollmentID { return EnrollmentID(uuid.New()) }
func NewProofID() ProofID           { return ProofID(uuid.New()) }
func NewOfferID() OfferID           { return OfferID(uuid.New()) }

// String methods - for logging and debugging.

func (id TenantID) String() string       { return uuid.UUID(id).String() }
func (id ChallengeID) String() string    { return uuid.UUID(id).String() }
func (id EnrollmentID) String() string   { return uuid.UUID(id).String() }
func (id ProofID) String() string        { return uuid.UUID(id).String() }
func (id OfferID) String() string        { return uuid.UUID(id).String() }
func (id ExternalUserID) String() string { return string(id) }

// IsNil checks - used for service-layer validation.

func (id TenantID) IsNil() bool       { return uuid.UUID(id) == uuid.Nil }
func (id ChallengeID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }
func (id EnrollmentID) IsNil() bool   { return uuid.UUID(id) == uuid.Nil }
func (id ProofID) IsNil() bool        { return uuid.UUID(id) == uuid.Nil }
func (id OfferID) IsNil() bool        { return uuid.UUID(id) == uuid.Nil }
func (id ExternalUserID) IsNil() bool { return id == "" }

// parseUUID is the shared validation logic.
func parseUUID(s, label string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, label+" cannot be empty")
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "invalid "+label+" format")
	}
	if id == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, label+" cannot be nil")
	}
	return id, nil
}

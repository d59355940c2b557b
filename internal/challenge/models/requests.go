package models

import (
	"fmt"
	"strings"
	"time"

	dErrors "streak/pkg/domain-errors"
	"streak/pkg/platform/validation"
)

type CreateChallengeRequest struct {
	Title           string         `json:"title" validate:"required,notblank,max=120"`
	Description     string         `json:"description" validate:"max=4000"`
	StartsAt        time.Time      `json:"starts_at" validate:"required"`
	EndsAt          time.Time      `json:"ends_at" validate:"required,gtfield=StartsAt"`
	ProofType       ProofType      `json:"proof_type" validate:"required,oneof=text photo link"`
	ProofFrequency  ProofFrequency `json:"proof_frequency" validate:"required,oneof=daily weekly once"`
	MaxParticipants int            `json:"max_participants" validate:"gte=0"`
	EntryFeeCents   int64          `json:"entry_fee_cents" validate:"gte=0"`
	Currency        string         `json:"currency" validate:"omitempty,len=3,alpha"`
}

func (r *CreateChallengeRequest) Normalize() {
	if r == nil {
		return
	}
	r.Title = strings.TrimSpace(r.Title)
	r.Description = strings.TrimSpace(r.Description)
	r.ProofType = ProofType(strings.ToLower(strings.TrimSpace(string(r.ProofType))))
	r.ProofFrequency = ProofFrequency(strings.ToLower(strings.TrimSpace(string(r.ProofFrequency))))
	r.Currency = strings.ToUpper(strings.TrimSpace(r.Currency))
	if r.Currency == "" {
		r.Currency = DefaultCurrency
	}
}

func (r *CreateChallengeRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request is required")
	}
	return validation.Validate(r)
}

// UpdateChallengeRequest is a partial update; nil fields stay unchanged.
type UpdateChallengeRequest struct {
	Title           *string    `json:"title" validate:"omitnil,notblank,max=120"`
	Description     *string    `json:"description" validate:"omitnil,max=4000"`
	StartsAt        *time.Time `json:"starts_at"`
	EndsAt          *time.Time `json:"ends_at"`
	MaxParticipants *int       `json:"max_participants" validate:"omitnil,gte=0"`
	EntryFeeCents   *int64     `json:"entry_fee_cents" validate:"omitnil,gte=0"`
}

func (r *UpdateChallengeRequest) Normalize() {
	if r == nil {
		return
	}
	if r.Title != nil {
		t := strings.TrimSpace(*r.Title)
		r.Title = &t
	}
	if r.Description != nil {
		d := strings.TrimSpace(*r.Description)
		r.Description = &d
	}
}

func (r *UpdateChallengeRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request is required")
	}
	if r.IsEmpty() {
		return dErrors.New(dErrors.CodeValidation, "at least one field must be provided")
	}
	return validation.Validate(r)
}

func (r *UpdateChallengeRequest) IsEmpty() bool {
	return r.Title == nil && r.Description == nil && r.StartsAt == nil &&
		r.EndsAt == nil && r.MaxParticipants == nil && r.EntryFeeCents == nil
}

// Apply writes the set fields onto c. The caller re-validates c afterwards.
func (r *UpdateChallengeRequest) Apply(c *Challenge, now time.Time) {
	if r.Title != nil {
		c.Title = *r.Title
	}
	if r.Description != nil {
		c.Description = *r.Description
	}
	if r.StartsAt != nil {
		c.StartsAt = r.StartsAt.UTC()
	}
	if r.EndsAt != nil {
		c.EndsAt = r.EndsAt.UTC()
	}
	if r.MaxParticipants != nil {
		c.MaxParticipants = *r.MaxParticipants
	}
	if r.EntryFeeCents != nil {
		c.EntryFeeCents = *r.EntryFeeCents
	}
	c.UpdatedAt = now
}

type SubmitProofRequest struct {
	Content  string `json:"content" validate:"max=4000"`
	MediaURL string `json:"media_url" validate:"omitempty,http_url,max=2048"`
	Note     string `json:"note" validate:"max=4000"`
}

func (r *SubmitProofRequest) Normalize() {
	if r == nil {
		return
	}
	r.Content = strings.TrimSpace(r.Content)
	r.MediaURL = strings.TrimSpace(r.MediaURL)
	r.Note = strings.TrimSpace(r.Note)
}

func (r *SubmitProofRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request is required")
	}
	return validation.Validate(r)
}

// CheckAgainst enforces the content rule of the challenge's proof type.
func (r *SubmitProofRequest) CheckAgainst(t ProofType) error {
	if t.RequiresMedia() {
		if r.MediaURL == "" {
			return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("media_url is required for %s proofs", t))
		}
		return nil
	}
	if r.Content == "" {
		return dErrors.New(dErrors.CodeValidation, "content is required for text proofs")
	}
	return nil
}

type SetWinnersRequest struct {
	Winners []WinnerInput `json:"winners" validate:"max=100,dive"`
}

type WinnerInput struct {
	ExternalUserID string `json:"external_user_id" validate:"required,notblank,max=128"`
	Place          int    `json:"place" validate:"gte=1"`
	Reason         string `json:"reason" validate:"max=4000"`
}

func (r *SetWinnersRequest) Normalize() {
	if r == nil {
		return
	}
	for i := range r.Winners {
		r.Winners[i].ExternalUserID = strings.TrimSpace(r.Winners[i].ExternalUserID)
		r.Winners[i].Reason = strings.TrimSpace(r.Winners[i].Reason)
	}
}

// Validate checks shape: bounded count, unique users, and places forming 1..N.
func (r *SetWinnersRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request is required")
	}
	if err := validation.CheckSliceCount("winners", len(r.Winners), validation.MaxWinners); err != nil {
		return err
	}
	if err := validation.Validate(r); err != nil {
		return err
	}
	places := make([]bool, len(r.Winners)+1)
	users := make(map[string]struct{}, len(r.Winners))
	for _, w := range r.Winners {
		if _, dup := users[w.ExternalUserID]; dup {
			return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("user %s listed more than once", w.ExternalUserID))
		}
		users[w.ExternalUserID] = struct{}{}
		if w.Place > len(r.Winners) || places[w.Place] {
			return dErrors.New(dErrors.CodeValidation, "places must be unique and contiguous from 1")
		}
		places[w.Place] = true
	}
	return nil
}

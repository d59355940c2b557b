package models

import (
	"strings"
	"time"

	challenge "streak/internal/challenge/models"
	id "streak/pkg/domain"
	dErrors "streak/pkg/domain-errors"
	"streak/pkg/platform/validation"
)

// Audience selects which participants an offer is shown to.
type Audience string

const (
	AudienceAllEnrolled Audience = "all_enrolled"
	AudienceCompleters  Audience = "completers"
	AudienceWinners     Audience = "winners"
)

func (a Audience) Valid() bool {
	return a == AudienceAllEnrolled || a == AudienceCompleters || a == AudienceWinners
}

// Offer is an upsell attached to a challenge, sold through a platform plan.
type Offer struct {
	ID          id.OfferID     `json:"id"`
	TenantID    id.TenantID    `json:"tenant_id"`
	ChallengeID id.ChallengeID `json:"challenge_id"`
	Title       string         `json:"title"`
	Description string         `json:"description"`
	PlanID      string         `json:"plan_id"`
	PriceCents  int64          `json:"price_cents"`
	Currency    string         `json:"currency"`
	Audience    Audience       `json:"audience"`
	MinProofs   int            `json:"min_proofs"`
	Active      bool           `json:"active"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// EligibleFor applies the audience rule to one participant's standing.
func (o *Offer) EligibleFor(p *challenge.Participation) bool {
	if !o.Active || p == nil || !p.Enrolled {
		return false
	}
	switch o.Audience {
	case AudienceAllEnrolled:
		return true
	case AudienceCompleters:
		return p.ProofCount >= o.MinProofs
	case AudienceWinners:
		return p.Winner
	default:
		return false
	}
}

type CreateOfferRequest struct {
	Title       string   `json:"title" validate:"required,notblank,max=120"`
	Description string   `json:"description" validate:"max=4000"`
	PlanID      string   `json:"plan_id" validate:"required,notblank,max=128"`
	PriceCents  int64    `json:"price_cents" validate:"gte=0"`
	Currency    string   `json:"currency" validate:"omitempty,len=3,alpha"`
	Audience    Audience `json:"audience" validate:"required,oneof=all_enrolled completers winners"`
	MinProofs   int      `json:"min_proofs" validate:"gte=0"`
	Active      *bool    `json:"active"`
}

func (r *CreateOfferRequest) Normalize() {
	if r == nil {
		return
	}
	r.Title = strings.TrimSpace(r.Title)
	r.Description = strings.TrimSpace(r.Description)
	r.PlanID = strings.TrimSpace(r.PlanID)
	r.Audience = Audience(strings.ToLower(strings.TrimSpace(string(r.Audience))))
	r.Currency = strings.ToUpper(strings.TrimSpace(r.Currency))
	if r.Currency == "" {
		r.Currency = challenge.DefaultCurrency
	}
}

func (r *CreateOfferRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request is required")
	}
	if err := validation.Validate(r); err != nil {
		return err
	}
	if r.Audience != AudienceCompleters && r.MinProofs != 0 {
		return dErrors.New(dErrors.CodeValidation, "min_proofs applies only to the completers audience")
	}
	return nil
}

// UpdateOfferRequest toggles activity or edits price and title.
type UpdateOfferRequest struct {
	Title      *string `json:"title" validate:"omitnil,notblank,max=120"`
	PriceCents *int64  `json:"price_cents" validate:"omitnil,gte=0"`
	Active     *bool   `json:"active"`
}

func (r *UpdateOfferRequest) Normalize() {
	if r != nil && r.Title != nil {
		t := strings.TrimSpace(*r.Title)
		r.Title = &t
	}
}

func (r *UpdateOfferRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request is required")
	}
	if r.Title == nil && r.PriceCents == nil && r.Active == nil {
		return dErrors.New(dErrors.CodeValidation, "at least one field must be provided")
	}
	return validation.Validate(r)
}

func (r *UpdateOfferRequest) Apply(o *Offer, now time.Time) {
	if r.Title != nil {
		o.Title = *r.Title
	}
	if r.PriceCents != nil {
		o.PriceCents = *r.PriceCents
	}
	if r.Active != nil {
		o.Active = *r.Active
	}
	o.UpdatedAt = now
}

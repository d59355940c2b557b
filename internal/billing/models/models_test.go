package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "streak/pkg/domain"
	dErrors "streak/pkg/domain-errors"
)

func TestPlatformFeeRoundsDown(t *testing.T) {
	cases := []struct {
		gross int64
		bps   int
		want  int64
	}{
		{gross: 1000, bps: 1000, want: 100},
		{gross: 999, bps: 1000, want: 99},
		{gross: 1, bps: 500, want: 0},
		{gross: 1000, bps: 0, want: 0},
		{gross: 1000, bps: 20000, want: 1000},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, PlatformFee(tc.gross, tc.bps), "gross=%d bps=%d", tc.gross, tc.bps)
	}
}

func TestNewRevenueShareSplitsGross(t *testing.T) {
	target := &Target{TenantID: id.NewTenantID(), ChallengeID: id.NewChallengeID(), UserID: "user_1"}
	r := NewRevenueShare(target, "pay_1", 2999, "USD", 1500, time.Now())
	assert.Equal(t, int64(449), r.PlatformFeeCents)
	assert.Equal(t, int64(2550), r.CreatorCents)
	assert.Equal(t, r.GrossCents, r.PlatformFeeCents+r.CreatorCents)
}

func validEvent() *PaymentEvent {
	return &PaymentEvent{
		ID:   "evt_1",
		Type: EventPaymentSucceeded,
		Data: PaymentData{
			ID:          "pay_1",
			UserID:      "user_1",
			AmountCents: 1000,
			Metadata: PaymentMetadata{
				TenantID:    id.NewTenantID().String(),
				ChallengeID: id.NewChallengeID().String(),
			},
		},
	}
}

func TestTarget(t *testing.T) {
	evt := validEvent()
	evt.Normalize()
	assert.Equal(t, "USD", evt.Data.Currency)

	target, err := evt.Target()
	require.NoError(t, err)
	assert.Nil(t, target.OfferID)
	assert.Equal(t, id.ExternalUserID("user_1"), target.UserID)

	offerID := id.NewOfferID()
	evt.Data.Metadata.OfferID = offerID.String()
	target, err = evt.Target()
	require.NoError(t, err)
	require.NotNil(t, target.OfferID)
	assert.Equal(t, offerID, *target.OfferID)
}

func TestTargetRejectsMissingMetadata(t *testing.T) {
	evt := validEvent()
	evt.Data.Metadata.ChallengeID = ""
	_, err := evt.Target()
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
}

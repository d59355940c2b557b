package outbox

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "streak/pkg/domain"
)

func TestNewEntryWrapsDataInEnvelope(t *testing.T) {
	tenant := id.NewTenantID()
	now := time.Date(2026, 5, 4, 3, 2, 1, 0, time.UTC)

	entry, err := NewEntry(Event{
		Type:          EventTenantCreated,
		TenantID:      tenant,
		AggregateType: "tenant",
		AggregateID:   tenant.String(),
		Data:          map[string]string{"canonical_key": "biz_1"},
	}, now)
	require.NoError(t, err)
	assert.True(t, entry.IsPending())

	var env Envelope
	require.NoError(t, json.Unmarshal(entry.Payload, &env))
	assert.Equal(t, entry.ID.String(), env.ID)
	assert.Equal(t, tenant.String(), env.TenantID)
	assert.Equal(t, EventTenantCreated, env.Type)
	assert.True(t, now.Equal(env.OccurredAt))
	assert.JSONEq(t, `{"canonical_key":"biz_1"}`, string(env.Data))
}

func TestNewEntryRejectsUnmarshalableData(t *testing.T) {
	_, err := NewEntry(Event{Type: "x", Data: make(chan int)}, time.Now())
	require.Error(t, err)
}

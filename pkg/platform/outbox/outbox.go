// Package outbox implements the transactional outbox: domain events are
// appended in the same transaction as the write that caused them and a worker
// publishes them afterwards.
package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	id "streak/pkg/domain"
)

// Entry is a pending or published event row.
type Entry struct {
	ID            uuid.UUID
	TenantID      id.TenantID
	AggregateType string // "tenant", "identity", "challenge", "payment"
	AggregateID   string
	EventType     string
	Payload       []byte // JSON envelope, see Envelope
	CreatedAt     time.Time
	ProcessedAt   *time.Time
}

// IsPending reports whether the entry still needs publishing.
func (e *Entry) IsPending() bool {
	return e.ProcessedAt == nil
}

// Envelope is the JSON body published to Kafka.
type Envelope struct {
	ID         string          `json:"id"`
	Type       string          `json:"type"`
	TenantID   string          `json:"tenant_id"`
	OccurredAt time.Time       `json:"occurred_at"`
	Data       json.RawMessage `json:"data"`
}

// Event describes a domain event before it is serialized.
type Event struct {
	Type          string
	TenantID      id.TenantID
	AggregateType string
	AggregateID   string
	Data          any
}

// NewEntry serializes evt into an Entry stamped with now.
func NewEntry(evt Event, now time.Time) (*Entry, error) {
	data, err := json.Marshal(evt.Data)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", evt.Type, err)
	}
	entryID := uuid.New()
	payload, err := json.Marshal(Envelope{
		ID:         entryID.String(),
		Type:       evt.Type,
		TenantID:   evt.TenantID.String(),
		OccurredAt: now,
		Data:       data,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal %s envelope: %w", evt.Type, err)
	}
	return &Entry{
		ID:            entryID,
		TenantID:      evt.TenantID,
		AggregateType: evt.AggregateType,
		AggregateID:   evt.AggregateID,
		EventType:     evt.Type,
		Payload:       payload,
		CreatedAt:     now,
	}, nil
}

// Appender is what services depend on. Append must join the transaction
// carried by ctx when there is one.
type Appender interface {
	Append(ctx context.Context, entry *Entry) error
}

// Store is the full persistence contract used by the worker.
type Store interface {
	Appender
	// FetchUnprocessed returns up to limit pending entries, oldest first.
	FetchUnprocessed(ctx context.Context, limit int) ([]*Entry, error)
	MarkProcessed(ctx context.Context, entryID uuid.UUID, processedAt time.Time) error
	CountPending(ctx context.Context) (int64, error)
}

// Record serializes evt and appends it. Services call this inside RunInTx.
func Record(ctx context.Context, a Appender, evt Event, now time.Time) error {
	if a == nil {
		return nil
	}
	entry, err := NewEntry(evt, now)
	if err != nil {
		return err
	}
	return a.Append(ctx, entry)
}

// Event types.
const (
	EventTenantCreated      = "tenant.created"
	EventIdentityReassigned = "identity.reassigned"
	EventChallengeCreated   = "challenge.created"
	EventChallengeDeleted   = "challenge.deleted"
	EventEnrollmentCreated  = "enrollment.created"
	EventWinnersSelected    = "winners.selected"
	EventPaymentRecorded    = "payment.recorded"
)

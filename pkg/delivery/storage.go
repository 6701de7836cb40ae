package delivery

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// QueueRepository defines the persistence interface for queue entries.
// Implementations must make each status transition individually atomic and
// reject transitions that violate the queued → sending → {sent|failed}
// ordering with ErrStatusTransition.
type QueueRepository interface {
	// Insert stores a new entry in queued status.
	Insert(ctx context.Context, entry *Entry) error

	// Get retrieves an entry by id.
	Get(ctx context.Context, id uuid.UUID) (*Entry, error)

	// MarkSending transitions a queued entry to sending and stamps SentAt.
	MarkSending(ctx context.Context, id uuid.UUID, at time.Time) error

	// MarkSent transitions a sending entry to sent, stamping DeliveredAt and
	// the measured delivery time.
	MarkSent(ctx context.Context, id uuid.UUID, at time.Time, deliveryTime time.Duration) error

	// MarkFailed transitions a sending entry to failed, stamping FailedAt,
	// recording the error message and incrementing the retry count.
	MarkFailed(ctx context.Context, id uuid.UUID, at time.Time, errorMessage string) error

	// Requeue moves a sending entry back to queued with a new scheduled time
	// and an incremented retry count. Used only by the opt-in retry policy.
	Requeue(ctx context.Context, id uuid.UUID, scheduledFor time.Time) error

	// SelectDue returns up to limit queued entries with ScheduledFor <= now,
	// ordered by priority then scheduled time.
	SelectDue(ctx context.Context, limit int, now time.Time) ([]Entry, error)
}

// AnalyticsRepository persists delivery analytics aggregates.
type AnalyticsRepository interface {
	// Upsert atomically applies the delta to the aggregate under key,
	// creating it if absent.
	Upsert(ctx context.Context, key AggregateKey, delta AggregateDelta) error
}

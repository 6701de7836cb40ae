package delivery_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Dwaapar/findawise-phase-127-reborn-sub001/pkg/channel"
	"github.com/Dwaapar/findawise-phase-127-reborn-sub001/pkg/delivery"
)

func newEntry(priority delivery.Priority, scheduledFor time.Time) *delivery.Entry {
	return &delivery.Entry{
		ID:           uuid.New(),
		TemplateSlug: "welcome-email",
		Channel:      channel.Email,
		RecipientID:  "u1",
		ScheduledFor: scheduledFor,
		Priority:     priority,
		Status:       delivery.StatusQueued,
		CreatedAt:    scheduledFor,
	}
}

func TestMemoryStorage_StatusTransitions(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	ctx := t.Context()

	t.Run("happy path queued to sent", func(t *testing.T) {
		t.Parallel()

		store := delivery.NewMemoryStorage()
		entry := newEntry(delivery.PriorityNormal, now)
		require.NoError(t, store.Insert(ctx, entry))

		require.NoError(t, store.MarkSending(ctx, entry.ID, now))
		require.NoError(t, store.MarkSent(ctx, entry.ID, now.Add(time.Second), 20*time.Millisecond))

		got, err := store.Get(ctx, entry.ID)
		require.NoError(t, err)
		assert.Equal(t, delivery.StatusSent, got.Status)
		assert.Equal(t, 20*time.Millisecond, got.DeliveryTime)
		require.NotNil(t, got.DeliveredAt)
	})

	t.Run("terminal states cannot move back", func(t *testing.T) {
		t.Parallel()

		store := delivery.NewMemoryStorage()
		entry := newEntry(delivery.PriorityNormal, now)
		require.NoError(t, store.Insert(ctx, entry))
		require.NoError(t, store.MarkSending(ctx, entry.ID, now))
		require.NoError(t, store.MarkFailed(ctx, entry.ID, now, "boom"))

		assert.ErrorIs(t, store.MarkSending(ctx, entry.ID, now), delivery.ErrStatusTransition)
		assert.ErrorIs(t, store.Requeue(ctx, entry.ID, now), delivery.ErrStatusTransition)
		assert.ErrorIs(t, store.MarkSent(ctx, entry.ID, now, 0), delivery.ErrStatusTransition)
	})

	t.Run("requeue only from sending", func(t *testing.T) {
		t.Parallel()

		store := delivery.NewMemoryStorage()
		entry := newEntry(delivery.PriorityNormal, now)
		require.NoError(t, store.Insert(ctx, entry))

		assert.ErrorIs(t, store.Requeue(ctx, entry.ID, now), delivery.ErrStatusTransition)

		require.NoError(t, store.MarkSending(ctx, entry.ID, now))
		require.NoError(t, store.Requeue(ctx, entry.ID, now.Add(time.Minute)))

		got, err := store.Get(ctx, entry.ID)
		require.NoError(t, err)
		assert.Equal(t, delivery.StatusQueued, got.Status)
		assert.Equal(t, 1, got.RetryCount)
	})

	t.Run("unknown entry", func(t *testing.T) {
		t.Parallel()

		store := delivery.NewMemoryStorage()
		_, err := store.Get(ctx, uuid.New())
		assert.ErrorIs(t, err, delivery.ErrEntryNotFound)
	})
}

func TestMemoryStorage_SelectDue(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	ctx := t.Context()
	store := delivery.NewMemoryStorage()

	normalOld := newEntry(delivery.PriorityNormal, now.Add(-2*time.Hour))
	normalNew := newEntry(delivery.PriorityNormal, now.Add(-time.Minute))
	urgent := newEntry(delivery.PriorityUrgent, now.Add(-time.Minute))
	future := newEntry(delivery.PriorityUrgent, now.Add(time.Hour))
	for _, e := range []*delivery.Entry{normalOld, normalNew, urgent, future} {
		require.NoError(t, store.Insert(ctx, e))
	}

	due, err := store.SelectDue(ctx, 10, now)
	require.NoError(t, err)
	require.Len(t, due, 3)

	// Urgent first, then by scheduled time.
	assert.Equal(t, urgent.ID, due[0].ID)
	assert.Equal(t, normalOld.ID, due[1].ID)
	assert.Equal(t, normalNew.ID, due[2].ID)

	due, err = store.SelectDue(ctx, 2, now)
	require.NoError(t, err)
	require.Len(t, due, 2)
	assert.Equal(t, urgent.ID, due[0].ID)
}

func TestMemoryStorage_AnalyticsAverage(t *testing.T) {
	t.Parallel()

	ctx := t.Context()
	store := delivery.NewMemoryStorage()
	key := delivery.KeyFor("welcome-email", channel.Email, time.Date(2025, 6, 1, 14, 30, 0, 0, time.UTC))

	assert.Equal(t, "2025-06-01", key.Date)
	assert.Equal(t, 14, key.Hour)

	require.NoError(t, store.Upsert(ctx, key, delivery.AggregateDelta{Sent: 1, Delivered: 1, DeliveryTime: 100 * time.Millisecond}))
	require.NoError(t, store.Upsert(ctx, key, delivery.AggregateDelta{Sent: 1, Delivered: 1, DeliveryTime: 200 * time.Millisecond}))
	require.NoError(t, store.Upsert(ctx, key, delivery.AggregateDelta{Failed: 1}))

	agg, ok := store.AggregateFor(key)
	require.True(t, ok)
	assert.EqualValues(t, 2, agg.Sent)
	assert.EqualValues(t, 2, agg.Delivered)
	assert.EqualValues(t, 1, agg.Failed)

	// Average folds pairwise: (100 + 200) / 2. A zero-duration delta leaves
	// the average untouched.
	assert.Equal(t, 150*time.Millisecond, agg.AvgDeliveryTime)
}

func TestMemoryStorage_CountRecent(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	ctx := t.Context()
	store := delivery.NewMemoryStorage()

	for i, age := range []time.Duration{time.Minute, time.Hour, 48 * time.Hour} {
		entry := newEntry(delivery.PriorityNormal, now)
		entry.TriggerSlug = "quiz-abandoned-v1"
		entry.CreatedAt = now.Add(-age)
		if i == 2 {
			entry.RecipientID = "someone-else"
		}
		require.NoError(t, store.Insert(ctx, entry))
	}

	count, err := store.CountRecent(ctx, "quiz-abandoned-v1", "u1", now.Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	count, err = store.CountRecent(ctx, "quiz-abandoned-v1", "u1", now.Add(-30*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

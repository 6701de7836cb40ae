package delivery_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Dwaapar/findawise-phase-127-reborn-sub001/pkg/channel"
	"github.com/Dwaapar/findawise-phase-127-reborn-sub001/pkg/delivery"
	"github.com/Dwaapar/findawise-phase-127-reborn-sub001/pkg/personalization"
)

// stubSender is a controllable channel adapter for pipeline tests.
type stubSender struct {
	ch   channel.Channel
	fail bool
	err  error

	mu   sync.Mutex
	sent []channel.Message
}

func (s *stubSender) Channel() channel.Channel { return s.ch }

func (s *stubSender) Send(ctx context.Context, msg channel.Message) (channel.Result, error) {
	s.mu.Lock()
	s.sent = append(s.sent, msg)
	s.mu.Unlock()

	if s.err != nil {
		return channel.Result{Provider: "stub", ErrorMessage: s.err.Error()}, s.err
	}
	if s.fail {
		return channel.Result{Provider: "stub", ErrorMessage: "provider rejected message"}, nil
	}
	return channel.Result{
		Success:      true,
		MessageID:    "msg-1",
		Provider:     "stub",
		DeliveryTime: 5 * time.Millisecond,
		Cost:         0.001,
	}, nil
}

func (s *stubSender) sentCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sent)
}

// staticPrefs serves the same preferences for every user.
type staticPrefs struct {
	prefs personalization.Preferences
	err   error
}

func (s staticPrefs) GetUserPreferences(ctx context.Context, userID string) (personalization.Preferences, error) {
	if s.err != nil {
		return personalization.Preferences{}, s.err
	}
	p := s.prefs
	p.UserID = userID
	return p, nil
}

func pipelineTemplates() personalization.StaticTemplates {
	return personalization.StaticTemplates{
		{Slug: "quiz-reminder-email", Channel: channel.Email, Type: "quiz_abandoned", Category: "transactional", Subject: "Finish your quiz, {{name}}!", Content: "You stopped at {{completion_percentage}}%.", Active: true},
		{Slug: "quiz-reminder-push", Channel: channel.Push, Type: "quiz_abandoned", Category: "transactional", Content: "Finish your quiz!", Active: true},
		{Slug: "offer-email", Channel: channel.Email, Type: "special_offer", Category: "marketing", Subject: "An offer for {{name}}", Content: "Deal inside", Active: true},
	}
}

type pipelineFixture struct {
	store    *delivery.MemoryStorage
	email    *stubSender
	push     *stubSender
	pipeline *delivery.Pipeline
	now      time.Time
}

func newPipelineFixture(t *testing.T, prefs personalization.Preferences, opts ...delivery.PipelineOption) *pipelineFixture {
	t.Helper()

	f := &pipelineFixture{
		store: delivery.NewMemoryStorage(),
		email: &stubSender{ch: channel.Email},
		push:  &stubSender{ch: channel.Push},
		now:   time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}

	resolver, err := personalization.NewResolver(pipelineTemplates())
	require.NoError(t, err)

	registry := channel.NewRegistry(f.email, f.push)

	options := append([]delivery.PipelineOption{
		delivery.WithClock(func() time.Time { return f.now }),
	}, opts...)

	f.pipeline, err = delivery.NewPipeline(f.store, f.store, registry, resolver, staticPrefs{prefs: prefs}, options...)
	require.NoError(t, err)
	return f
}

func allowAll() personalization.Preferences {
	return personalization.Preferences{Email: true, Push: true, SMS: true, WhatsApp: true, InApp: true, Marketing: true}
}

func TestPipeline_Enqueue(t *testing.T) {
	t.Parallel()

	t.Run("normal priority stays queued", func(t *testing.T) {
		t.Parallel()

		f := newPipelineFixture(t, allowAll())
		scheduled := f.now.Add(time.Hour)

		res, err := f.pipeline.Enqueue(context.Background(), delivery.SendRequest{
			TriggerType: "quiz_abandoned",
			TriggerSlug: "quiz-abandoned-v1",
			Recipient: personalization.Recipient{
				UserID: "u1",
				Name:   "Ada",
				Email:  "ada@example.com",
				Data:   map[string]any{"completion_percentage": 40},
			},
			Channels:     []channel.Channel{channel.Email, channel.Push},
			ScheduledFor: &scheduled,
		})
		require.NoError(t, err)
		require.NotNil(t, res.Entry)

		assert.False(t, res.Delivered)
		assert.Equal(t, delivery.StatusQueued, res.Entry.Status)
		assert.Equal(t, delivery.PriorityNormal, res.Entry.Priority)
		assert.Equal(t, channel.Email, res.Entry.Channel)
		assert.Equal(t, "ada@example.com", res.Entry.RecipientAddress)
		assert.Equal(t, "Finish your quiz, Ada!", res.Entry.Subject)
		assert.Equal(t, "You stopped at 40%.", res.Entry.Content)
		assert.True(t, res.Entry.ScheduledFor.Equal(scheduled))
		assert.Zero(t, f.email.sentCount())
	})

	t.Run("urgent priority delivers synchronously", func(t *testing.T) {
		t.Parallel()

		f := newPipelineFixture(t, allowAll())

		res, err := f.pipeline.Enqueue(context.Background(), delivery.SendRequest{
			TriggerType: "quiz_abandoned",
			Recipient:   personalization.Recipient{UserID: "u1", Email: "u1@example.com"},
			Priority:    delivery.PriorityUrgent,
		})
		require.NoError(t, err)
		require.True(t, res.Delivered)
		require.NotNil(t, res.Result)
		assert.True(t, res.Result.Success)
		assert.Equal(t, 1, f.email.sentCount())

		stored, err := f.store.Get(context.Background(), res.Entry.ID)
		require.NoError(t, err)
		assert.Equal(t, delivery.StatusSent, stored.Status)
		require.NotNil(t, stored.DeliveredAt)
	})

	t.Run("channel preference gating falls through to push", func(t *testing.T) {
		t.Parallel()

		prefs := allowAll()
		prefs.Email = false
		f := newPipelineFixture(t, prefs)

		res, err := f.pipeline.Enqueue(context.Background(), delivery.SendRequest{
			TriggerType: "quiz_abandoned",
			Recipient:   personalization.Recipient{UserID: "u1", Email: "u1@example.com"},
			Channels:    []channel.Channel{channel.Email, channel.Push},
		})
		require.NoError(t, err)
		assert.Equal(t, channel.Push, res.Entry.Channel)
		assert.Equal(t, "quiz-reminder-push", res.Entry.TemplateSlug)
	})

	t.Run("marketing opt-out blocks promotional template", func(t *testing.T) {
		t.Parallel()

		prefs := allowAll()
		prefs.Marketing = false
		f := newPipelineFixture(t, prefs)

		_, err := f.pipeline.Enqueue(context.Background(), delivery.SendRequest{
			TemplateSlug: "offer-email",
			Recipient:    personalization.Recipient{UserID: "u1", Email: "u1@example.com"},
		})
		assert.ErrorIs(t, err, delivery.ErrNoAllowedChannel)
	})

	t.Run("global opt-out blocks everything", func(t *testing.T) {
		t.Parallel()

		prefs := allowAll()
		prefs.OptedOut = true
		f := newPipelineFixture(t, prefs)

		_, err := f.pipeline.Enqueue(context.Background(), delivery.SendRequest{
			TriggerType: "quiz_abandoned",
			Recipient:   personalization.Recipient{UserID: "u1", Email: "u1@example.com"},
		})
		assert.ErrorIs(t, err, delivery.ErrNoAllowedChannel)
	})

	t.Run("validation", func(t *testing.T) {
		t.Parallel()

		f := newPipelineFixture(t, allowAll())

		_, err := f.pipeline.Enqueue(context.Background(), delivery.SendRequest{TriggerType: "x"})
		assert.ErrorIs(t, err, delivery.ErrRecipientMissing)

		_, err = f.pipeline.Enqueue(context.Background(), delivery.SendRequest{
			Recipient: personalization.Recipient{UserID: "u1"},
		})
		assert.ErrorIs(t, err, delivery.ErrTemplateMissing)

		_, err = f.pipeline.Enqueue(context.Background(), delivery.SendRequest{
			TriggerType: "quiz_abandoned",
			Recipient:   personalization.Recipient{UserID: "u1"},
			Priority:    delivery.Priority("asap"),
		})
		assert.ErrorIs(t, err, delivery.ErrInvalidPriority)
	})

	t.Run("preference lookup failure aborts the item", func(t *testing.T) {
		t.Parallel()

		f := &pipelineFixture{
			store: delivery.NewMemoryStorage(),
			email: &stubSender{ch: channel.Email},
		}
		resolver, err := personalization.NewResolver(pipelineTemplates())
		require.NoError(t, err)

		pipeline, err := delivery.NewPipeline(
			f.store, f.store, channel.NewRegistry(f.email), resolver,
			staticPrefs{err: errors.New("store down")},
		)
		require.NoError(t, err)

		_, err = pipeline.Enqueue(context.Background(), delivery.SendRequest{
			TriggerType: "quiz_abandoned",
			Recipient:   personalization.Recipient{UserID: "u1"},
		})
		require.Error(t, err)
		assert.Empty(t, f.store.Entries())
	})
}

func TestPipeline_Deliver(t *testing.T) {
	t.Parallel()

	enqueue := func(t *testing.T, f *pipelineFixture) *delivery.Entry {
		t.Helper()
		res, err := f.pipeline.Enqueue(context.Background(), delivery.SendRequest{
			TriggerType: "quiz_abandoned",
			Recipient:   personalization.Recipient{UserID: "u1", Email: "u1@example.com"},
		})
		require.NoError(t, err)
		return res.Entry
	}

	t.Run("success records analytics", func(t *testing.T) {
		t.Parallel()

		f := newPipelineFixture(t, allowAll())
		entry := enqueue(t, f)

		res, err := f.pipeline.Deliver(context.Background(), entry.ID)
		require.NoError(t, err)
		assert.True(t, res.Success)

		agg, ok := f.store.AggregateFor(delivery.KeyFor("quiz-reminder-email", channel.Email, f.now))
		require.True(t, ok)
		assert.EqualValues(t, 1, agg.Sent)
		assert.EqualValues(t, 1, agg.Delivered)
		assert.EqualValues(t, 0, agg.Failed)
		assert.Equal(t, 5*time.Millisecond, agg.AvgDeliveryTime)
		assert.InDelta(t, 0.001, agg.Cost, 1e-9)
	})

	t.Run("provider rejection marks failed without retry", func(t *testing.T) {
		t.Parallel()

		f := newPipelineFixture(t, allowAll())
		f.email.fail = true
		entry := enqueue(t, f)

		res, err := f.pipeline.Deliver(context.Background(), entry.ID)
		require.NoError(t, err)
		assert.False(t, res.Success)

		stored, err := f.store.Get(context.Background(), entry.ID)
		require.NoError(t, err)
		assert.Equal(t, delivery.StatusFailed, stored.Status)
		assert.Equal(t, 1, stored.RetryCount)
		assert.Equal(t, "provider rejected message", stored.ErrorMessage)
		require.NotNil(t, stored.FailedAt)

		agg, ok := f.store.AggregateFor(delivery.KeyFor("quiz-reminder-email", channel.Email, f.now))
		require.True(t, ok)
		assert.EqualValues(t, 1, agg.Failed)
	})

	t.Run("retry policy requeues with backoff", func(t *testing.T) {
		t.Parallel()

		f := newPipelineFixture(t, allowAll(),
			delivery.WithRetryPolicy(delivery.RetryPolicy{MaxAttempts: 2, Backoff: time.Minute}))
		f.email.fail = true
		entry := enqueue(t, f)

		_, err := f.pipeline.Deliver(context.Background(), entry.ID)
		require.NoError(t, err)

		stored, err := f.store.Get(context.Background(), entry.ID)
		require.NoError(t, err)
		assert.Equal(t, delivery.StatusQueued, stored.Status)
		assert.Equal(t, 1, stored.RetryCount)
		assert.True(t, stored.ScheduledFor.Equal(f.now.Add(time.Minute)))

		// Exhaust the retries: attempts 2 and 3 fail as well.
		for range 2 {
			_, err = f.pipeline.Deliver(context.Background(), entry.ID)
			require.NoError(t, err)
		}
		stored, err = f.store.Get(context.Background(), entry.ID)
		require.NoError(t, err)
		assert.Equal(t, delivery.StatusFailed, stored.Status)
		assert.Equal(t, 3, stored.RetryCount)
	})

	t.Run("missing sender fails the entry", func(t *testing.T) {
		t.Parallel()

		// Only an email sender is registered; preferences allow push alone,
		// so the entry is queued on a channel nothing can deliver.
		store := delivery.NewMemoryStorage()
		resolver, err := personalization.NewResolver(pipelineTemplates())
		require.NoError(t, err)
		registry := channel.NewRegistry(&stubSender{ch: channel.Email})
		now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

		pushOnly := personalization.Preferences{Push: true, Marketing: true}
		pipeline, err := delivery.NewPipeline(store, store, registry, resolver, staticPrefs{prefs: pushOnly},
			delivery.WithClock(func() time.Time { return now }))
		require.NoError(t, err)

		res, err := pipeline.Enqueue(context.Background(), delivery.SendRequest{
			TriggerType: "quiz_abandoned",
			Recipient:   personalization.Recipient{UserID: "u1", Email: "u1@example.com"},
		})
		require.NoError(t, err)
		require.Equal(t, channel.Push, res.Entry.Channel)

		_, err = pipeline.Deliver(context.Background(), res.Entry.ID)
		assert.ErrorIs(t, err, delivery.ErrNoSender)

		stored, err := store.Get(context.Background(), res.Entry.ID)
		require.NoError(t, err)
		assert.Equal(t, delivery.StatusFailed, stored.Status)
		assert.Contains(t, stored.ErrorMessage, "push")
	})

	t.Run("second deliver of the same entry is rejected", func(t *testing.T) {
		t.Parallel()

		f := newPipelineFixture(t, allowAll())
		entry := enqueue(t, f)

		_, err := f.pipeline.Deliver(context.Background(), entry.ID)
		require.NoError(t, err)

		_, err = f.pipeline.Deliver(context.Background(), entry.ID)
		assert.ErrorIs(t, err, delivery.ErrStatusTransition)
		assert.Equal(t, 1, f.email.sentCount())
	})
}

func TestPipeline_RunBatch(t *testing.T) {
	t.Parallel()

	t.Run("delivers only due entries", func(t *testing.T) {
		t.Parallel()

		f := newPipelineFixture(t, allowAll())
		future := f.now.Add(time.Hour)

		for _, scheduled := range []*time.Time{nil, nil, &future} {
			_, err := f.pipeline.Enqueue(context.Background(), delivery.SendRequest{
				TriggerType:  "quiz_abandoned",
				Recipient:    personalization.Recipient{UserID: "u1", Email: "u1@example.com"},
				ScheduledFor: scheduled,
			})
			require.NoError(t, err)
		}

		n, err := f.pipeline.RunBatch(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 2, n)
		assert.Equal(t, 2, f.email.sentCount())

		statuses := map[delivery.Status]int{}
		for _, e := range f.store.Entries() {
			statuses[e.Status]++
		}
		assert.Equal(t, 2, statuses[delivery.StatusSent])
		assert.Equal(t, 1, statuses[delivery.StatusQueued])
	})

	t.Run("one failing entry does not affect siblings", func(t *testing.T) {
		t.Parallel()

		prefs := allowAll()
		f := newPipelineFixture(t, prefs)
		f.push.fail = true

		// One push entry (will fail) and one email entry (will succeed).
		_, err := f.pipeline.Enqueue(context.Background(), delivery.SendRequest{
			TriggerType: "quiz_abandoned",
			Recipient:   personalization.Recipient{UserID: "u1", Email: "u1@example.com"},
			Channels:    []channel.Channel{channel.Push},
		})
		require.NoError(t, err)
		_, err = f.pipeline.Enqueue(context.Background(), delivery.SendRequest{
			TriggerType: "quiz_abandoned",
			Recipient:   personalization.Recipient{UserID: "u2", Email: "u2@example.com"},
			Channels:    []channel.Channel{channel.Email},
		})
		require.NoError(t, err)

		n, err := f.pipeline.RunBatch(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 2, n)

		statuses := map[delivery.Status]int{}
		for _, e := range f.store.Entries() {
			statuses[e.Status]++
		}
		assert.Equal(t, 1, statuses[delivery.StatusSent])
		assert.Equal(t, 1, statuses[delivery.StatusFailed])
	})

	t.Run("empty queue is a no-op", func(t *testing.T) {
		t.Parallel()

		f := newPipelineFixture(t, allowAll())
		n, err := f.pipeline.RunBatch(context.Background())
		require.NoError(t, err)
		assert.Zero(t, n)
	})
}

func TestPipeline_StartStop(t *testing.T) {
	t.Parallel()

	f := newPipelineFixture(t, allowAll(), delivery.WithBatchInterval(5*time.Millisecond))

	ctx := context.Background()
	require.NoError(t, f.pipeline.Start(ctx))
	assert.ErrorIs(t, f.pipeline.Start(ctx), delivery.ErrAlreadyStarted)

	_, err := f.pipeline.Enqueue(ctx, delivery.SendRequest{
		TriggerType: "quiz_abandoned",
		Recipient:   personalization.Recipient{UserID: "u1", Email: "u1@example.com"},
	})
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		return f.email.sentCount() == 1
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, f.pipeline.Stop())
	assert.ErrorIs(t, f.pipeline.Stop(), delivery.ErrNotStarted)
}

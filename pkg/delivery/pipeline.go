package delivery

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/Dwaapar/findawise-phase-127-reborn-sub001/pkg/channel"
	"github.com/Dwaapar/findawise-phase-127-reborn-sub001/pkg/logger"
	"github.com/Dwaapar/findawise-phase-127-reborn-sub001/pkg/personalization"
)

// defaultChannelOrder is used when neither the caller nor the trigger rule
// supplies a channel priority ordering.
var defaultChannelOrder = []channel.Channel{
	channel.Email, channel.Push, channel.InApp, channel.SMS, channel.WhatsApp,
}

// SendRequest describes one notification to enqueue.
type SendRequest struct {
	// TemplateSlug names the template explicitly (direct send path). When
	// set, the template's own channel is used.
	TemplateSlug string

	// TriggerType is the trigger slug used for template resolution when
	// TemplateSlug is empty.
	TriggerType string

	// TriggerSlug is recorded on the entry for rate-limit accounting.
	TriggerSlug string

	CampaignID string

	Recipient personalization.Recipient

	// Channels is the priority-ordered candidate list. Empty means the
	// default ordering.
	Channels []channel.Channel

	// ScheduledFor defaults to now.
	ScheduledFor *time.Time

	// Priority defaults to normal. High and urgent are delivered
	// synchronously from Enqueue.
	Priority Priority
}

// EnqueueResult reports the outcome of an Enqueue call.
type EnqueueResult struct {
	Entry *Entry

	// Delivered is true when the priority forced synchronous delivery, in
	// which case Result carries the provider outcome.
	Delivered bool
	Result    *channel.Result
}

// Pipeline persists queued notifications, runs the periodic batch
// dequeue-and-deliver loop, normalizes provider results and records
// analytics.
type Pipeline struct {
	queue     QueueRepository
	analytics AnalyticsRepository
	registry  *channel.Registry
	resolver  *personalization.Resolver
	prefs     personalization.PreferenceSource

	logger        *slog.Logger
	batchSize     int
	batchInterval time.Duration
	retry         *RetryPolicy
	now           func() time.Time

	// Re-entrancy guard: a running batch blocks a new one from starting.
	batchRunning atomic.Bool

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewPipeline creates a delivery pipeline.
func NewPipeline(
	queue QueueRepository,
	analytics AnalyticsRepository,
	registry *channel.Registry,
	resolver *personalization.Resolver,
	prefs personalization.PreferenceSource,
	opts ...PipelineOption,
) (*Pipeline, error) {
	switch {
	case queue == nil:
		return nil, ErrQueueNil
	case analytics == nil:
		return nil, ErrAnalyticsNil
	case registry == nil:
		return nil, ErrRegistryNil
	case resolver == nil:
		return nil, ErrResolverNil
	case prefs == nil:
		return nil, ErrPreferencesNil
	}

	options := &pipelineOptions{
		batchSize:     50,
		batchInterval: 10 * time.Second,
		logger:        slog.Default(),
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(options)
	}

	return &Pipeline{
		queue:         queue,
		analytics:     analytics,
		registry:      registry,
		resolver:      resolver,
		prefs:         prefs,
		logger:        options.logger,
		batchSize:     options.batchSize,
		batchInterval: options.batchInterval,
		retry:         options.retry,
		now:           options.now,
	}, nil
}

// Enqueue resolves template, preferences and optimal channel, personalizes
// the content and writes a queued entry. High and urgent priorities are
// delivered synchronously instead of waiting for the batch loop, and the
// provider result is returned to the caller.
func (p *Pipeline) Enqueue(ctx context.Context, req SendRequest) (*EnqueueResult, error) {
	if req.Recipient.UserID == "" {
		return nil, ErrRecipientMissing
	}
	if req.TemplateSlug == "" && req.TriggerType == "" {
		return nil, ErrTemplateMissing
	}
	priority := req.Priority
	if priority == "" {
		priority = PriorityNormal
	}
	if !priority.Valid() {
		return nil, ErrInvalidPriority
	}

	prefs, err := p.prefs.GetUserPreferences(ctx, req.Recipient.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to load preferences for user %s: %w", req.Recipient.UserID, err)
	}

	tpl, ch, err := p.pickTemplateAndChannel(ctx, req, prefs)
	if err != nil {
		return nil, err
	}

	now := p.now()
	rendered := personalization.Personalize(tpl, req.Recipient, now)

	scheduledFor := now
	if req.ScheduledFor != nil {
		scheduledFor = *req.ScheduledFor
	}

	entry := &Entry{
		ID:               uuid.New(),
		TemplateSlug:     tpl.Slug,
		TriggerSlug:      req.TriggerSlug,
		CampaignID:       req.CampaignID,
		RecipientID:      req.Recipient.UserID,
		RecipientAddress: recipientAddress(ch, req.Recipient),
		Channel:          ch,
		Subject:          rendered.Subject,
		Content:          rendered.Content,
		HTML:             rendered.HTML,
		ScheduledFor:     scheduledFor,
		Priority:         priority,
		Status:           StatusQueued,
		CreatedAt:        now,
	}

	if err := p.queue.Insert(ctx, entry); err != nil {
		return nil, fmt.Errorf("failed to insert queue entry: %w", err)
	}

	p.logger.DebugContext(ctx, "notification queued",
		logger.EntryID(entry.ID.String()),
		logger.Template(tpl.Slug),
		logger.Channel(string(ch)),
		logger.UserID(req.Recipient.UserID))

	if !priority.Immediate() {
		return &EnqueueResult{Entry: entry}, nil
	}

	result, err := p.Deliver(ctx, entry.ID)
	if err != nil {
		return &EnqueueResult{Entry: entry, Delivered: true, Result: result}, err
	}
	return &EnqueueResult{Entry: entry, Delivered: true, Result: result}, nil
}

// pickTemplateAndChannel applies the channel gating rules: the candidate
// list is filtered to preference-allowed channels, the first one with a
// registered sender wins, otherwise the first allowed channel.
func (p *Pipeline) pickTemplateAndChannel(ctx context.Context, req SendRequest, prefs personalization.Preferences) (*personalization.Template, channel.Channel, error) {
	if req.TemplateSlug != "" {
		tpl, err := p.resolver.ResolveBySlug(ctx, req.TemplateSlug)
		if err != nil {
			return nil, "", err
		}
		if !prefs.Allows(tpl.Channel, tpl.Promotional()) {
			return nil, "", ErrNoAllowedChannel
		}
		return tpl, tpl.Channel, nil
	}

	// Resolve once without a channel constraint to learn whether the content
	// is promotional, since that changes which channels are allowed.
	probe, err := p.resolver.Resolve(ctx, req.TriggerType, "")
	if err != nil {
		return nil, "", err
	}
	promotional := probe.Promotional()

	order := req.Channels
	if len(order) == 0 {
		order = defaultChannelOrder
	}
	allowed := prefs.AllowedChannels(order, promotional)
	if len(allowed) == 0 {
		return nil, "", ErrNoAllowedChannel
	}

	ch := allowed[0]
	for _, candidate := range allowed {
		if p.registry.Available(candidate) {
			ch = candidate
			break
		}
	}

	tpl, err := p.resolver.Resolve(ctx, req.TriggerType, ch)
	if err != nil {
		return nil, "", err
	}
	return tpl, ch, nil
}

// Deliver loads the entry, transitions it to sending, dispatches to the
// channel adapter and finalizes the entry from the normalized result.
func (p *Pipeline) Deliver(ctx context.Context, id uuid.UUID) (*channel.Result, error) {
	entry, err := p.queue.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load queue entry %s: %w", id, err)
	}
	if entry.Status != StatusQueued {
		return nil, fmt.Errorf("%w: entry %s is %s", ErrStatusTransition, id, entry.Status)
	}

	start := p.now()
	if err := p.queue.MarkSending(ctx, id, start); err != nil {
		return nil, fmt.Errorf("failed to mark entry %s sending: %w", id, err)
	}

	sender, ok := p.registry.Sender(entry.Channel)
	if !ok {
		noSender := fmt.Errorf("%w %q", ErrNoSender, entry.Channel)
		res := channel.Result{ErrorMessage: noSender.Error()}
		if err := p.finalizeFailure(ctx, entry, res.ErrorMessage); err != nil {
			return &res, err
		}
		return &res, noSender
	}

	result, sendErr := sender.Send(ctx, channel.Message{
		To:      entry.RecipientAddress,
		Subject: entry.Subject,
		Body:    entry.Content,
		HTML:    entry.HTML,
		Tag:     entry.TemplateSlug,
		Metadata: map[string]string{
			"entry_id":     entry.ID.String(),
			"recipient_id": entry.RecipientID,
		},
	})

	if sendErr != nil || !result.Success {
		msg := result.ErrorMessage
		if msg == "" && sendErr != nil {
			msg = sendErr.Error()
		}
		if err := p.finalizeFailure(ctx, entry, msg); err != nil {
			return &result, err
		}
		return &result, nil
	}

	finished := p.now()
	deliveryTime := result.DeliveryTime
	if deliveryTime <= 0 {
		deliveryTime = finished.Sub(start)
	}

	if err := p.queue.MarkSent(ctx, id, finished, deliveryTime); err != nil {
		return &result, fmt.Errorf("failed to mark entry %s sent: %w", id, err)
	}

	if err := p.analytics.Upsert(ctx, KeyFor(entry.TemplateSlug, entry.Channel, finished), AggregateDelta{
		Sent:         1,
		Delivered:    1,
		DeliveryTime: deliveryTime,
		Cost:         result.Cost,
	}); err != nil {
		// Analytics are best effort; the delivery itself succeeded.
		p.logger.WarnContext(ctx, "failed to record delivery analytics",
			logger.EntryID(id.String()),
			logger.Error(err))
	}

	p.logger.InfoContext(ctx, "notification delivered",
		logger.EntryID(id.String()),
		logger.Channel(string(entry.Channel)),
		slog.String("provider", result.Provider),
		logger.Duration(deliveryTime))

	return &result, nil
}

// finalizeFailure records a failed delivery attempt: either re-queues the
// entry under the opt-in retry policy or marks it failed permanently.
func (p *Pipeline) finalizeFailure(ctx context.Context, entry *Entry, errorMessage string) error {
	now := p.now()

	if p.retry != nil && entry.RetryCount < p.retry.MaxAttempts {
		next := now.Add(p.retry.Delay(entry.RetryCount + 1))
		if err := p.queue.Requeue(ctx, entry.ID, next); err != nil {
			return fmt.Errorf("failed to requeue entry %s: %w", entry.ID, err)
		}
		p.logger.WarnContext(ctx, "delivery failed, retry scheduled",
			logger.EntryID(entry.ID.String()),
			logger.RetryCount(entry.RetryCount+1),
			slog.Time("next_attempt", next),
			slog.String("error", errorMessage))
		return nil
	}

	if err := p.queue.MarkFailed(ctx, entry.ID, now, errorMessage); err != nil {
		return fmt.Errorf("failed to mark entry %s failed: %w", entry.ID, err)
	}

	if err := p.analytics.Upsert(ctx, KeyFor(entry.TemplateSlug, entry.Channel, now), AggregateDelta{Failed: 1}); err != nil {
		p.logger.WarnContext(ctx, "failed to record failure analytics",
			logger.EntryID(entry.ID.String()),
			logger.Error(err))
	}

	p.logger.ErrorContext(ctx, "notification delivery failed",
		logger.EntryID(entry.ID.String()),
		logger.Channel(string(entry.Channel)),
		slog.String("error", errorMessage))

	return nil
}

// RunBatch executes one dequeue-and-deliver cycle: up to batchSize due
// entries delivered concurrently, concurrency bound equal to the batch size.
// Returns the number of entries picked up. A batch already in flight makes
// this call a no-op.
func (p *Pipeline) RunBatch(ctx context.Context) (int, error) {
	if !p.batchRunning.CompareAndSwap(false, true) {
		return 0, nil
	}
	defer p.batchRunning.Store(false)

	entries, err := p.queue.SelectDue(ctx, p.batchSize, p.now())
	if err != nil {
		return 0, fmt.Errorf("failed to select due entries: %w", err)
	}
	if len(entries) == 0 {
		return 0, nil
	}

	var g errgroup.Group
	g.SetLimit(p.batchSize)
	for _, entry := range entries {
		g.Go(func() error {
			if _, err := p.Deliver(ctx, entry.ID); err != nil {
				// Isolated per-entry failure; siblings are unaffected.
				p.logger.ErrorContext(ctx, "batch delivery error",
					logger.EntryID(entry.ID.String()),
					logger.Error(err))
			}
			return nil
		})
	}
	_ = g.Wait()

	return len(entries), nil
}

// Start begins the periodic batch loop in the background.
func (p *Pipeline) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cancel != nil {
		return ErrAlreadyStarted
	}

	ctx, p.cancel = context.WithCancel(ctx)

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()

		ticker := time.NewTicker(p.batchInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := p.RunBatch(ctx); err != nil {
					p.logger.ErrorContext(ctx, "batch cycle failed", logger.Error(err))
				}
			}
		}
	}()

	p.logger.Info("delivery pipeline started",
		slog.Int("batch_size", p.batchSize),
		slog.Duration("batch_interval", p.batchInterval))

	return nil
}

// Stop terminates the batch loop and waits for the in-flight batch to
// finish.
func (p *Pipeline) Stop() error {
	p.mu.Lock()
	cancel := p.cancel
	p.cancel = nil
	p.mu.Unlock()

	if cancel == nil {
		return ErrNotStarted
	}
	cancel()
	p.wg.Wait()

	p.logger.Info("delivery pipeline stopped")
	return nil
}

// Run starts the pipeline and returns a function suitable for errgroup.
func (p *Pipeline) Run(ctx context.Context) func() error {
	return func() error {
		if err := p.Start(ctx); err != nil {
			return err
		}
		<-ctx.Done()
		return p.Stop()
	}
}

// recipientAddress maps the recipient to the channel-specific address.
func recipientAddress(ch channel.Channel, rec personalization.Recipient) string {
	if ch == channel.Email {
		return rec.Email
	}
	return rec.UserID
}

package trigger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/Dwaapar/findawise-phase-127-reborn-sub001/pkg/async"
	"github.com/Dwaapar/findawise-phase-127-reborn-sub001/pkg/delivery"
	"github.com/Dwaapar/findawise-phase-127-reborn-sub001/pkg/logger"
	"github.com/Dwaapar/findawise-phase-127-reborn-sub001/pkg/personalization"
)

// Event is one behavioral event entering the engine, either from an external
// producer or synthesized by the journey engine.
type Event struct {
	Name      string
	UserID    string
	SessionID string
	Data      map[string]any
	Timestamp time.Time

	// ScheduledFor overrides the rule's delay-based scheduling when set.
	// Journey stage events use this to carry the stage delay.
	ScheduledFor *time.Time
}

// recipientID prefers the user id, falling back to the session id for
// anonymous traffic.
func (e Event) recipientID() string {
	if e.UserID != "" {
		return e.UserID
	}
	return e.SessionID
}

// RuleSource lists the trigger rules. Implemented by the external rule store
// and by StaticRuleSource.
type RuleSource interface {
	ListRules(ctx context.Context) ([]Rule, error)
}

// SegmentResolver answers which segments a recipient belongs to.
type SegmentResolver interface {
	SegmentsOf(ctx context.Context, recipientID string) ([]string, error)
}

// SegmentResolverFunc adapts a function to the SegmentResolver interface.
type SegmentResolverFunc func(ctx context.Context, recipientID string) ([]string, error)

func (f SegmentResolverFunc) SegmentsOf(ctx context.Context, recipientID string) ([]string, error) {
	return f(ctx, recipientID)
}

// SendCounter tracks per-rule, per-user send counts inside a cooldown
// window. Implemented by delivery.MemoryStorage, delivery.PostgresStorage
// and RedisCounter.
type SendCounter interface {
	CountRecent(ctx context.Context, triggerSlug, userID string, since time.Time) (int, error)
	RecordSend(ctx context.Context, triggerSlug, userID string, cooldown time.Duration) error
}

// Enqueuer accepts notifications for delivery. Implemented by
// delivery.Pipeline.
type Enqueuer interface {
	Enqueue(ctx context.Context, req delivery.SendRequest) (*delivery.EnqueueResult, error)
}

// RecipientSource enriches an event's recipient with profile data used for
// personalization. Optional; the default recipient carries only the id and
// the event payload.
type RecipientSource interface {
	GetRecipient(ctx context.Context, recipientID string) (personalization.Recipient, error)
}

// Engine maps event names to active rules and runs the per-rule gate
// pipeline. The rule index is an immutable snapshot swapped atomically on
// Reload, so ProcessEvent never blocks on rule changes.
type Engine struct {
	source   RuleSource
	enqueuer Enqueuer
	counter  SendCounter

	segments   SegmentResolver
	recipients RecipientSource
	logger     *slog.Logger
	now        func() time.Time

	index atomic.Pointer[map[string][]Rule]
}

// NewEngine creates a trigger engine. Reload must be called before the first
// ProcessEvent.
func NewEngine(source RuleSource, enqueuer Enqueuer, counter SendCounter, opts ...EngineOption) (*Engine, error) {
	switch {
	case source == nil:
		return nil, ErrSourceNil
	case enqueuer == nil:
		return nil, ErrEnqueuerNil
	case counter == nil:
		return nil, ErrCounterNil
	}

	options := defaultEngineOptions()
	for _, opt := range opts {
		opt(options)
	}

	return &Engine{
		source:     source,
		enqueuer:   enqueuer,
		counter:    counter,
		segments:   options.segments,
		recipients: options.recipients,
		logger:     options.logger,
		now:        options.now,
	}, nil
}

// Reload rebuilds the event-name index from the rule source and swaps it in
// atomically. Inactive rules are dropped. A failed reload leaves the
// previous index untouched.
func (e *Engine) Reload(ctx context.Context) error {
	rules, err := e.source.ListRules(ctx)
	if err != nil {
		return fmt.Errorf("failed to load trigger rules: %w", err)
	}

	index := make(map[string][]Rule)
	active := 0
	for _, rule := range rules {
		if !rule.Active || rule.Event == "" {
			continue
		}
		index[rule.Event] = append(index[rule.Event], rule)
		active++
	}

	e.index.Store(&index)
	e.logger.InfoContext(ctx, "trigger rules loaded",
		slog.Int("events", len(index)),
		slog.Int("rules", active))
	return nil
}

// RuleCount returns how many active rules the current index holds.
func (e *Engine) RuleCount() int {
	index := e.index.Load()
	if index == nil {
		return 0
	}
	n := 0
	for _, rules := range *index {
		n += len(rules)
	}
	return n
}

// ProcessEvent fans the event out to every rule subscribed to its name.
// Rules run concurrently and independently; one rule's failure never blocks
// or fails the others. The returned slice holds one result per rule in index
// order. An event with no matching rules returns an empty slice.
func (e *Engine) ProcessEvent(ctx context.Context, event Event) ([]RuleResult, error) {
	if event.Name == "" {
		return nil, ErrEventNameMissing
	}
	if event.recipientID() == "" {
		return nil, ErrRecipientUnknown
	}

	index := e.index.Load()
	if index == nil {
		return nil, ErrNotLoaded
	}

	rules := (*index)[event.Name]
	if len(rules) == 0 {
		return nil, nil
	}

	if event.Timestamp.IsZero() {
		event.Timestamp = e.now()
	}

	futures := make([]*async.Future[RuleResult], len(rules))
	for i, rule := range rules {
		futures[i] = async.Go(func() (RuleResult, error) {
			return e.applyRule(ctx, rule, event), nil
		})
	}

	results := make([]RuleResult, 0, len(rules))
	for i, outcome := range async.Settle(futures...) {
		if outcome.Err != nil {
			// Only a panic inside applyRule can land here.
			results = append(results, RuleResult{
				RuleSlug: rules[i].Slug,
				Outcome:  OutcomeError,
				Err:      outcome.Err,
			})
			continue
		}
		results = append(results, outcome.Result)
	}
	return results, nil
}

// applyRule runs one rule's gate pipeline, short-circuiting on the first
// failing gate. Errors are captured in the result, never propagated.
func (e *Engine) applyRule(ctx context.Context, rule Rule, event Event) RuleResult {
	result := RuleResult{RuleSlug: rule.Slug}
	recipientID := event.recipientID()

	if !rule.Conditions.Evaluate(evalContext(event)) {
		result.Outcome = OutcomeSkippedCondition
		return result
	}

	if pass, err := e.checkSegments(ctx, rule, recipientID); err != nil {
		e.logger.WarnContext(ctx, "segment resolution failed",
			logger.Trigger(rule.Slug), logger.Error(err))
		result.Outcome = OutcomeError
		result.Err = err
		return result
	} else if !pass {
		result.Outcome = OutcomeSkippedSegment
		return result
	}

	if pass, err := e.checkRateLimit(ctx, rule, recipientID); err != nil {
		e.logger.WarnContext(ctx, "rate limit check failed",
			logger.Trigger(rule.Slug), logger.Error(err))
		result.Outcome = OutcomeError
		result.Err = err
		return result
	} else if !pass {
		result.Outcome = OutcomeSkippedRateLimited
		return result
	}

	if !rule.TimeWindow.Allows(e.now()) {
		result.Outcome = OutcomeSkippedTimeWindow
		return result
	}

	recipient, err := e.lookupRecipient(ctx, recipientID, event)
	if err != nil {
		e.logger.WarnContext(ctx, "recipient lookup failed",
			logger.Trigger(rule.Slug), logger.Error(err))
		result.Outcome = OutcomeError
		result.Err = err
		return result
	}

	req := delivery.SendRequest{
		TriggerType: rule.Event,
		TriggerSlug: rule.Slug,
		Recipient:   recipient,
		Channels:    rule.Channels,
	}
	if event.ScheduledFor != nil {
		req.ScheduledFor = event.ScheduledFor
	} else if rule.DelayMinutes > 0 {
		at := e.now().Add(time.Duration(rule.DelayMinutes) * time.Minute)
		req.ScheduledFor = &at
	}

	enq, err := e.enqueuer.Enqueue(ctx, req)
	switch {
	case errors.Is(err, personalization.ErrNoTemplate),
		errors.Is(err, delivery.ErrNoAllowedChannel):
		result.Outcome = OutcomeSkippedNoTemplate
		return result
	case err != nil:
		e.logger.WarnContext(ctx, "enqueue failed",
			logger.Trigger(rule.Slug), logger.Error(err))
		result.Outcome = OutcomeError
		result.Err = err
		return result
	}

	if rule.RateLimit.Limited() {
		if err := e.counter.RecordSend(ctx, rule.Slug, recipientID, rule.RateLimit.Cooldown()); err != nil {
			// The entry is already queued; losing the count only risks one
			// extra send inside the window.
			e.logger.WarnContext(ctx, "send count recording failed",
				logger.Trigger(rule.Slug), logger.Error(err))
		}
	}

	result.Outcome = OutcomeEnqueued
	result.Entry = enq.Entry
	result.Delivered = enq.Delivered
	return result
}

// checkSegments applies the targeting gate. With no resolver configured the
// recipient has no segments, so target-gated rules never match.
func (e *Engine) checkSegments(ctx context.Context, rule Rule, recipientID string) (bool, error) {
	if len(rule.TargetSegments) == 0 && len(rule.ExcludeSegments) == 0 {
		return true, nil
	}

	var memberOf []string
	if e.segments != nil {
		var err error
		memberOf, err = e.segments.SegmentsOf(ctx, recipientID)
		if err != nil {
			return false, fmt.Errorf("failed to resolve segments for %s: %w", recipientID, err)
		}
	}

	member := make(map[string]struct{}, len(memberOf))
	for _, s := range memberOf {
		member[s] = struct{}{}
	}

	for _, s := range rule.ExcludeSegments {
		if _, ok := member[s]; ok {
			return false, nil
		}
	}

	if len(rule.TargetSegments) == 0 {
		return true, nil
	}
	for _, s := range rule.TargetSegments {
		if _, ok := member[s]; ok {
			return true, nil
		}
	}
	return false, nil
}

// checkRateLimit applies the per-user send cap. A limit of 0 or less means
// unlimited.
func (e *Engine) checkRateLimit(ctx context.Context, rule Rule, recipientID string) (bool, error) {
	if !rule.RateLimit.Limited() {
		return true, nil
	}

	since := e.now().Add(-rule.RateLimit.Cooldown())
	count, err := e.counter.CountRecent(ctx, rule.Slug, recipientID, since)
	if err != nil {
		return false, fmt.Errorf("failed to count recent sends for rule %s: %w", rule.Slug, err)
	}
	return count < rule.RateLimit.MaxSendsPerUser, nil
}

func (e *Engine) lookupRecipient(ctx context.Context, recipientID string, event Event) (personalization.Recipient, error) {
	if e.recipients == nil {
		return personalization.Recipient{UserID: recipientID, Data: event.Data}, nil
	}

	recipient, err := e.recipients.GetRecipient(ctx, recipientID)
	if err != nil {
		return personalization.Recipient{}, fmt.Errorf("failed to load recipient %s: %w", recipientID, err)
	}
	if recipient.Data == nil {
		recipient.Data = event.Data
	} else {
		for k, v := range event.Data {
			if _, exists := recipient.Data[k]; !exists {
				recipient.Data[k] = v
			}
		}
	}
	return recipient, nil
}

// evalContext is the condition evaluation view of an event: payload under
// "data", identifiers at the top level.
func evalContext(event Event) map[string]any {
	return map[string]any{
		"name":       event.Name,
		"user_id":    event.UserID,
		"session_id": event.SessionID,
		"data":       event.Data,
	}
}

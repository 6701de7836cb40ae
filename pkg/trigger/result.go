package trigger

import (
	"github.com/Dwaapar/findawise-phase-127-reborn-sub001/pkg/delivery"
)

// Outcome classifies what one rule did with one event.
type Outcome string

const (
	// OutcomeEnqueued means the rule passed every gate and a notification
	// was written to the queue (or delivered synchronously).
	OutcomeEnqueued Outcome = "enqueued"

	// OutcomeSkippedCondition means the condition set did not match the
	// event payload.
	OutcomeSkippedCondition Outcome = "skipped_condition"

	// OutcomeSkippedSegment means the recipient fell outside the target
	// segments or inside the exclude segments.
	OutcomeSkippedSegment Outcome = "skipped_segment"

	// OutcomeSkippedRateLimited means the per-user send cap was reached
	// inside the cooldown window.
	OutcomeSkippedRateLimited Outcome = "skipped_rate_limited"

	// OutcomeSkippedTimeWindow means the current time fell outside the
	// rule's allowed hours or days, or inside its quiet hours.
	OutcomeSkippedTimeWindow Outcome = "skipped_time_window"

	// OutcomeSkippedNoTemplate means no active template or allowed channel
	// could serve the rule for this recipient.
	OutcomeSkippedNoTemplate Outcome = "skipped_no_template"

	// OutcomeError means a gate failed with an error; the rule was skipped
	// for this event and the error recorded.
	OutcomeError Outcome = "error"
)

// RuleResult is the isolated outcome of one rule for one processed event.
type RuleResult struct {
	RuleSlug string
	Outcome  Outcome

	// Entry is set when Outcome is OutcomeEnqueued.
	Entry *delivery.Entry

	// Result carries the provider outcome when the rule's priority forced
	// synchronous delivery.
	Delivered bool

	// Err is set when Outcome is OutcomeError.
	Err error
}

// Enqueued reports whether the rule produced a queue entry.
func (r RuleResult) Enqueued() bool {
	return r.Outcome == OutcomeEnqueued
}

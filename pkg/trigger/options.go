package trigger

import (
	"log/slog"
	"time"
)

type engineOptions struct {
	segments   SegmentResolver
	recipients RecipientSource
	logger     *slog.Logger
	now        func() time.Time
}

func defaultEngineOptions() *engineOptions {
	return &engineOptions{
		logger: slog.Default(),
		now:    time.Now,
	}
}

// EngineOption configures an Engine.
type EngineOption func(*engineOptions)

// WithSegmentResolver wires segment membership lookups for targeting gates.
// Without one, rules with target segments never match.
func WithSegmentResolver(r SegmentResolver) EngineOption {
	return func(o *engineOptions) {
		o.segments = r
	}
}

// WithRecipientSource wires recipient profile lookups used for
// personalization. Without one, the recipient carries only the id and the
// event payload.
func WithRecipientSource(r RecipientSource) EngineOption {
	return func(o *engineOptions) {
		o.recipients = r
	}
}

// WithEngineLogger sets the logger for the Engine.
func WithEngineLogger(log *slog.Logger) EngineOption {
	return func(o *engineOptions) {
		if log != nil {
			o.logger = log
		}
	}
}

// WithEngineClock overrides the time source. Used in tests.
func WithEngineClock(now func() time.Time) EngineOption {
	return func(o *engineOptions) {
		if now != nil {
			o.now = now
		}
	}
}

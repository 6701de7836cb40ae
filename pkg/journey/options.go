package journey

import (
	"log/slog"
	"time"
)

type engineOptions struct {
	snapshots SnapshotSource
	logger    *slog.Logger
	now       func() time.Time
	interval  time.Duration
}

func defaultEngineOptions() *engineOptions {
	return &engineOptions{
		logger:   slog.Default(),
		now:      time.Now,
		interval: time.Minute,
	}
}

// EngineOption configures an Engine.
type EngineOption func(*engineOptions)

// WithSnapshotSource wires the user-data snapshots stage conditions
// evaluate against. Without one, conditions see an empty context.
func WithSnapshotSource(s SnapshotSource) EngineOption {
	return func(o *engineOptions) {
		o.snapshots = s
	}
}

// WithSweepInterval sets how often the time-based sweep runs. Panics if the
// interval is not positive.
func WithSweepInterval(interval time.Duration) EngineOption {
	return func(o *engineOptions) {
		if interval <= 0 {
			panic("journey: sweep interval must be positive")
		}
		o.interval = interval
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

package trigger

import (
	"time"

	"github.com/Dwaapar/findawise-phase-127-reborn-sub001/pkg/channel"
	"github.com/Dwaapar/findawise-phase-127-reborn-sub001/pkg/condition"
)

// Rule subscribes to one event name and describes the gates an event must
// pass before a notification is enqueued. Rules are loaded from an external
// store and never mutated by the engine.
type Rule struct {
	Slug  string `json:"slug" yaml:"slug"`
	Event string `json:"event" yaml:"event"`

	Conditions condition.Set `json:"conditions" yaml:"conditions"`

	// TargetSegments requires the recipient to be in at least one of the
	// listed segments; empty means everyone. ExcludeSegments rejects the
	// recipient on any overlap.
	TargetSegments  []string `json:"target_segments" yaml:"target_segments"`
	ExcludeSegments []string `json:"exclude_segments" yaml:"exclude_segments"`

	RateLimit  RateLimit  `json:"rate_limit" yaml:"rate_limit"`
	TimeWindow TimeWindow `json:"time_window" yaml:"time_window"`

	// DelayMinutes shifts the scheduled send time past the matching event.
	DelayMinutes int `json:"delay_minutes" yaml:"delay_minutes"`

	// Channels is the priority-ordered channel candidate list handed to the
	// delivery pipeline. Empty means the pipeline's default ordering.
	Channels []channel.Channel `json:"channels" yaml:"channels"`

	Active bool `json:"active" yaml:"active"`
}

// RateLimit caps how many sends a single rule may produce per user inside a
// cooldown window.
type RateLimit struct {
	// MaxSendsPerUser of 0 or less means unlimited.
	MaxSendsPerUser int `json:"max_sends_per_user" yaml:"max_sends_per_user"`

	CooldownMinutes int `json:"cooldown_minutes" yaml:"cooldown_minutes"`
}

// Limited reports whether the rate limit is enforced at all.
func (rl RateLimit) Limited() bool {
	return rl.MaxSendsPerUser > 0
}

// Cooldown returns the window as a duration.
func (rl RateLimit) Cooldown() time.Duration {
	return time.Duration(rl.CooldownMinutes) * time.Minute
}

// HourRange is an inclusive hour-of-day interval. A range whose Start is
// greater than its End wraps past midnight, so {22, 6} covers 22:00 through
// 06:59.
type HourRange struct {
	Start int `json:"start" yaml:"start"`
	End   int `json:"end" yaml:"end"`
}

// Contains reports whether the hour falls inside the range.
func (hr HourRange) Contains(hour int) bool {
	if hr.Start > hr.End {
		return hour >= hr.Start || hour <= hr.End
	}
	return hour >= hr.Start && hour <= hr.End
}

// TimeWindow restricts when a rule may fire. Zero-value fields impose no
// restriction.
type TimeWindow struct {
	// AllowedHours lists hours of day (0-23) the rule may fire in.
	AllowedHours []int `json:"allowed_hours" yaml:"allowed_hours"`

	// AllowedDays lists weekdays (0=Sunday) the rule may fire on.
	AllowedDays []time.Weekday `json:"allowed_days" yaml:"allowed_days"`

	// QuietHours blocks the rule inside the range even when the hour is
	// otherwise allowed.
	QuietHours *HourRange `json:"quiet_hours" yaml:"quiet_hours"`
}

// Allows reports whether the rule may fire at the given time.
func (tw TimeWindow) Allows(t time.Time) bool {
	hour := t.Hour()

	if len(tw.AllowedHours) > 0 {
		allowed := false
		for _, h := range tw.AllowedHours {
			if h == hour {
				allowed = true
				break
			}
		}
		if !allowed {
			return false
		}
	}

	if len(tw.AllowedDays) > 0 {
		allowed := false
		for _, d := range tw.AllowedDays {
			if d == t.Weekday() {
				allowed = true
				break
			}
		}
		if !allowed {
			return false
		}
	}

	if tw.QuietHours != nil && tw.QuietHours.Contains(hour) {
		return false
	}

	return true
}

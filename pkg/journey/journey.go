package journey

import (
	"time"

	"github.com/Dwaapar/findawise-phase-127-reborn-sub001/pkg/condition"
)

// Stage is one step of a journey: the delay before it matures, the entry
// conditions gating its triggers, and the trigger event names it fires.
type Stage struct {
	Name         string        `json:"name" yaml:"name"`
	Triggers     []string      `json:"triggers" yaml:"triggers"`
	DelayMinutes int           `json:"delay_minutes" yaml:"delay_minutes"`
	Conditions   condition.Set `json:"conditions" yaml:"conditions"`
}

// Delay returns the stage delay as a duration.
func (s Stage) Delay() time.Duration {
	return time.Duration(s.DelayMinutes) * time.Minute
}

// Template is the immutable definition of one journey type.
type Template struct {
	ID     string  `json:"id" yaml:"id"`
	Type   string  `json:"type" yaml:"type"`
	Stages []Stage `json:"stages" yaml:"stages"`

	// CompletionEvents complete any instance of this journey immediately,
	// regardless of its current stage.
	CompletionEvents []string `json:"completion_events" yaml:"completion_events"`

	Active bool `json:"active" yaml:"active"`
}

func (t Template) completesOn(eventName string) bool {
	for _, e := range t.CompletionEvents {
		if e == eventName {
			return true
		}
	}
	return false
}

// Instance is one user's progress through a journey. At most one active
// instance exists per (user, journey type) pair; completion removes it from
// the active set.
type Instance struct {
	UserID          string
	JourneyType     string
	CurrentStage    string
	StageIndex      int
	TotalStages     int
	StartedAt       time.Time
	LastStageAt     time.Time
	CompletedStages []string
	Metadata        map[string]any
}

// Progress reports how far the instance has moved through its journey as a
// fraction in [0, 1], counting the current stage as not yet done.
func (i *Instance) Progress() float64 {
	if i.TotalStages <= 0 {
		return 0
	}
	return float64(i.StageIndex) / float64(i.TotalStages)
}

// metaPausedAt is the metadata key holding the pause timestamp.
const metaPausedAt = "paused_at"

// Paused reports whether the instance's delay clock is suspended.
func (i *Instance) Paused() bool {
	_, ok := i.Metadata[metaPausedAt].(time.Time)
	return ok
}

func (i *Instance) pausedAt() (time.Time, bool) {
	at, ok := i.Metadata[metaPausedAt].(time.Time)
	return at, ok
}

func (i *Instance) clone() Instance {
	cp := *i
	cp.CompletedStages = append([]string(nil), i.CompletedStages...)
	cp.Metadata = make(map[string]any, len(i.Metadata))
	for k, v := range i.Metadata {
		cp.Metadata[k] = v
	}
	return cp
}

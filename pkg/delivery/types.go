package delivery

import (
	"time"

	"github.com/google/uuid"

	"github.com/Dwaapar/findawise-phase-127-reborn-sub001/pkg/channel"
)

// Status represents the delivery status of a queue entry.
//
// Transitions are monotonic and one-directional:
// queued → sending → {sent | failed}. A sent or failed entry never returns
// to an earlier status; the only backward edge is sending → queued, taken
// exclusively by an opt-in retry policy.
type Status string

const (
	StatusQueued  Status = "queued"
	StatusSending Status = "sending"
	StatusSent    Status = "sent"
	StatusFailed  Status = "failed"
)

// Priority orders queue entries within a batch and selects the synchronous
// delivery path for high and urgent sends.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// Valid checks if the priority is one of the known levels.
func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityNormal, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

// Immediate reports whether entries of this priority bypass the batch loop
// and are delivered synchronously at enqueue time.
func (p Priority) Immediate() bool {
	return p == PriorityHigh || p == PriorityUrgent
}

// Rank returns the sort rank of the priority; lower sorts first.
func (p Priority) Rank() int {
	switch p {
	case PriorityUrgent:
		return 0
	case PriorityHigh:
		return 1
	case PriorityNormal:
		return 2
	default:
		return 3
	}
}

// Entry is a persisted, schedulable unit of work representing one
// notification awaiting or having completed delivery. Entries are created by
// the trigger engine or direct callers, mutated only by the pipeline, and
// never deleted (retained for analytics and audit).
type Entry struct {
	ID               uuid.UUID       `json:"id"`
	TemplateSlug     string          `json:"template_slug"`
	TriggerSlug      string          `json:"trigger_slug,omitempty"`
	CampaignID       string          `json:"campaign_id,omitempty"`
	RecipientID      string          `json:"recipient_id"`
	RecipientAddress string          `json:"recipient_address"`
	Channel          channel.Channel `json:"channel"`
	Subject          string          `json:"subject"`
	Content          string          `json:"content"`
	HTML             string          `json:"html,omitempty"`
	ScheduledFor     time.Time       `json:"scheduled_for"`
	Priority         Priority        `json:"priority"`
	Status           Status          `json:"status"`
	RetryCount       int             `json:"retry_count"`
	ErrorMessage     string          `json:"error_message,omitempty"`
	DeliveryTime     time.Duration   `json:"delivery_time,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
	SentAt           *time.Time      `json:"sent_at,omitempty"`
	DeliveredAt      *time.Time      `json:"delivered_at,omitempty"`
	FailedAt         *time.Time      `json:"failed_at,omitempty"`
}

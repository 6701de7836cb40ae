package channel

import (
	"context"
	"sync"
	"time"
)

// Channel identifies a delivery channel.
type Channel string

const (
	Email    Channel = "email"
	Push     Channel = "push"
	SMS      Channel = "sms"
	WhatsApp Channel = "whatsapp"
	InApp    Channel = "in_app"
)

// Valid reports whether the channel is one of the known delivery channels.
func (c Channel) Valid() bool {
	switch c {
	case Email, Push, SMS, WhatsApp, InApp:
		return true
	}
	return false
}

// Message is the channel-agnostic payload handed to a Sender.
type Message struct {
	To       string            // Channel-specific recipient address (email, device token, phone number, user id)
	Subject  string            // Subject line; ignored by channels without one
	Body     string            // Plain-text body
	HTML     string            // HTML body; ignored by channels without HTML support
	Tag      string            // Optional categorization tag for provider-side analytics
	Metadata map[string]string // Optional provider hints
}

// Result is the normalized outcome of a provider send. The delivery pipeline
// is channel-agnostic beyond this contract.
type Result struct {
	Success      bool
	MessageID    string
	Provider     string
	DeliveryTime time.Duration
	Cost         float64
	ErrorMessage string
}

// Sender performs the actual send for one delivery channel.
type Sender interface {
	// Channel returns the channel this sender serves.
	Channel() Channel

	// Send dispatches the message and returns the normalized result.
	// A provider rejection is reported via Result.Success/ErrorMessage;
	// the error return is reserved for transport-level failures.
	Send(ctx context.Context, msg Message) (Result, error)
}

// Registry holds one Sender per channel and answers availability queries
// during optimal-channel selection.
type Registry struct {
	mu      sync.RWMutex
	senders map[Channel]Sender
}

// NewRegistry creates a registry pre-populated with the given senders.
func NewRegistry(senders ...Sender) *Registry {
	r := &Registry{senders: make(map[Channel]Sender, len(senders))}
	for _, s := range senders {
		r.Register(s)
	}
	return r
}

// Register adds or replaces the sender for its channel. Nil senders are
// ignored.
func (r *Registry) Register(s Sender) {
	if s == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.senders[s.Channel()] = s
}

// Sender returns the sender for the given channel.
func (r *Registry) Sender(c Channel) (Sender, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.senders[c]
	return s, ok
}

// Available reports whether a sender is registered for the channel.
func (r *Registry) Available(c Channel) bool {
	_, ok := r.Sender(c)
	return ok
}

// Channels lists the channels with a registered sender.
func (r *Registry) Channels() []Channel {
	r.mu.RLock()
	defer r.mu.RUnlock()
	channels := make([]Channel, 0, len(r.senders))
	for c := range r.senders {
		channels = append(channels, c)
	}
	return channels
}

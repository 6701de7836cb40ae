package personalization

import (
	"context"

	"github.com/Dwaapar/findawise-phase-127-reborn-sub001/pkg/channel"
)

// Preferences holds a user's channel consent flags.
type Preferences struct {
	UserID    string
	Email     bool
	Push      bool
	SMS       bool
	WhatsApp  bool
	InApp     bool
	Marketing bool // false disables promotional templates on every channel
	OptedOut  bool // global opt-out disables all channels
}

// DefaultPreferences returns the consent defaults applied when a user has no
// stored preference record: transactional messages on every channel,
// marketing allowed.
func DefaultPreferences(userID string) Preferences {
	return Preferences{
		UserID:    userID,
		Email:     true,
		Push:      true,
		SMS:       true,
		WhatsApp:  true,
		InApp:     true,
		Marketing: true,
	}
}

// PreferenceSource resolves a user's channel preferences. Implemented by the
// external preference store.
type PreferenceSource interface {
	GetUserPreferences(ctx context.Context, userID string) (Preferences, error)
}

// Allows reports whether the given channel may be used, taking the global
// opt-out and, for promotional content, the marketing opt-out into account.
func (p Preferences) Allows(c channel.Channel, promotional bool) bool {
	if p.OptedOut {
		return false
	}
	if promotional && !p.Marketing {
		return false
	}

	switch c {
	case channel.Email:
		return p.Email
	case channel.Push:
		return p.Push
	case channel.SMS:
		return p.SMS
	case channel.WhatsApp:
		return p.WhatsApp
	case channel.InApp:
		return p.InApp
	}
	return false
}

// AllowedChannels filters the priority-ordered channel list down to those
// permitted by the preferences, preserving order.
func (p Preferences) AllowedChannels(ordered []channel.Channel, promotional bool) []channel.Channel {
	allowed := make([]channel.Channel, 0, len(ordered))
	for _, c := range ordered {
		if p.Allows(c, promotional) {
			allowed = append(allowed, c)
		}
	}
	return allowed
}

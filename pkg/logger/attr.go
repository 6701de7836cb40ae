package logger

import (
	"log/slog"
	"time"
)

// Error creates an attribute for a single error under the key "error".
// If err is nil, it returns an empty Attr.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.Any("error", err)
}

// UserID records the user identifier under the key "user_id".
func UserID(id string) slog.Attr {
	return slog.String("user_id", id)
}

// Event records the event name under the key "event".
func Event(name string) slog.Attr {
	return slog.String("event", name)
}

// Trigger records the trigger-rule slug under the key "trigger".
func Trigger(slug string) slog.Attr {
	return slog.String("trigger", slug)
}

// Template records the template slug under the key "template".
func Template(slug string) slog.Attr {
	return slog.String("template", slug)
}

// Channel records the delivery channel under the key "channel".
func Channel(name string) slog.Attr {
	return slog.String("channel", name)
}

// EntryID records the queue entry identifier under the key "entry_id".
func EntryID(id string) slog.Attr {
	return slog.String("entry_id", id)
}

// Journey records the journey type under the key "journey".
func Journey(journeyType string) slog.Attr {
	return slog.String("journey", journeyType)
}

// Stage records the journey stage name under the key "stage".
func Stage(name string) slog.Attr {
	return slog.String("stage", name)
}

// RetryCount records the retry count under the key "retry_count".
func RetryCount(count int) slog.Attr {
	return slog.Int("retry_count", count)
}

// Duration records a duration under the key "duration".
func Duration(d time.Duration) slog.Attr {
	return slog.Duration("duration", d)
}

// Component records the component name under the key "component".
func Component(name string) slog.Attr {
	return slog.String("component", name)
}

package trigger

import "errors"

var (
	// ErrSourceNil is returned when the engine is created without a rule
	// source.
	ErrSourceNil = errors.New("rule source cannot be nil")

	// ErrEnqueuerNil is returned when the engine is created without a
	// delivery pipeline.
	ErrEnqueuerNil = errors.New("enqueuer cannot be nil")

	// ErrCounterNil is returned when the engine is created without a send
	// counter.
	ErrCounterNil = errors.New("send counter cannot be nil")

	// ErrNotLoaded is returned by ProcessEvent before the first successful
	// Reload.
	ErrNotLoaded = errors.New("rule index not loaded")

	// ErrEventNameMissing is returned for events without a name.
	ErrEventNameMissing = errors.New("event name cannot be empty")

	// ErrRecipientUnknown is returned when an event carries neither a user
	// nor a session identifier.
	ErrRecipientUnknown = errors.New("event has no user or session identifier")

	// ErrRuleFileInvalid is returned when a rule file cannot be read or
	// parsed.
	ErrRuleFileInvalid = errors.New("invalid rule file")
)

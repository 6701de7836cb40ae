package journey

import "errors"

var (
	// ErrSinkNil is returned when the engine is created without an event
	// sink.
	ErrSinkNil = errors.New("event sink cannot be nil")

	// ErrNoTemplates is returned when the engine is created with no journey
	// templates.
	ErrNoTemplates = errors.New("no journey templates")

	// ErrDuplicateType is returned when two templates share a journey type.
	ErrDuplicateType = errors.New("duplicate journey type")

	// ErrUserIDMissing is returned for operations without a user id.
	ErrUserIDMissing = errors.New("user id cannot be empty")

	// ErrEventNameMissing is returned for events without a name.
	ErrEventNameMissing = errors.New("event name cannot be empty")

	// ErrAlreadyStarted is returned when Start is called on a running
	// engine.
	ErrAlreadyStarted = errors.New("journey engine already started")

	// ErrNotStarted is returned when Stop is called on a stopped engine.
	ErrNotStarted = errors.New("journey engine not started")

	// ErrTemplateFileInvalid is returned when a journey template file
	// cannot be read or parsed.
	ErrTemplateFileInvalid = errors.New("invalid journey template file")
)

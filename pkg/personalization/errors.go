package personalization

import "errors"

var (
	// ErrSourceNil is returned when a nil template source is provided
	ErrSourceNil = errors.New("template source cannot be nil")

	// ErrNoTemplate is returned when no active template matches the request
	ErrNoTemplate = errors.New("no active template found")

	// ErrTemplateFileInvalid is returned when a template file cannot be
	// read or parsed
	ErrTemplateFileInvalid = errors.New("invalid template file")
)

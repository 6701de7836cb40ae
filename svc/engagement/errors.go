package engagement

import "errors"

var (
	// ErrTriggersNil is returned when the service is created without a
	// trigger engine.
	ErrTriggersNil = errors.New("trigger engine cannot be nil")

	// ErrPipelineNil is returned when the service is created without a
	// delivery pipeline.
	ErrPipelineNil = errors.New("delivery pipeline cannot be nil")

	// ErrJourneysNil is returned when the service is created without a
	// journey engine.
	ErrJourneysNil = errors.New("journey engine cannot be nil")
)

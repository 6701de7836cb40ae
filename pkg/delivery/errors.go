package delivery

import "errors"

// Common errors
var (
	// ErrQueueNil is returned when a nil queue repository is provided
	ErrQueueNil = errors.New("queue repository cannot be nil")

	// ErrAnalyticsNil is returned when a nil analytics repository is provided
	ErrAnalyticsNil = errors.New("analytics repository cannot be nil")

	// ErrRegistryNil is returned when a nil channel registry is provided
	ErrRegistryNil = errors.New("channel registry cannot be nil")

	// ErrResolverNil is returned when a nil template resolver is provided
	ErrResolverNil = errors.New("template resolver cannot be nil")

	// ErrPreferencesNil is returned when a nil preference source is provided
	ErrPreferencesNil = errors.New("preference source cannot be nil")

	// ErrInvalidPriority is returned when a priority is not one of low/normal/high/urgent
	ErrInvalidPriority = errors.New("invalid priority")

	// ErrRecipientMissing is returned when a send request has no recipient id
	ErrRecipientMissing = errors.New("recipient id is required")

	// ErrTemplateMissing is returned when a send request names neither a template nor a trigger type
	ErrTemplateMissing = errors.New("template slug or trigger type is required")

	// ErrNoAllowedChannel is returned when preferences leave no channel to deliver on
	ErrNoAllowedChannel = errors.New("no channel allowed by user preferences")

	// ErrNoSender is returned when no sender is registered for the chosen channel
	ErrNoSender = errors.New("no sender registered for channel")

	// ErrEntryNotFound is returned when a queue entry does not exist
	ErrEntryNotFound = errors.New("queue entry not found")

	// ErrStatusTransition is returned on an attempt to move an entry backwards
	// or from a terminal status
	ErrStatusTransition = errors.New("invalid queue entry status transition")

	// ErrAlreadyStarted is returned when Start is called on a running pipeline
	ErrAlreadyStarted = errors.New("pipeline already started")

	// ErrNotStarted is returned when Stop is called on a stopped pipeline
	ErrNotStarted = errors.New("pipeline not started")
)

package engagement

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Dwaapar/findawise-phase-127-reborn-sub001/pkg/delivery"
	"github.com/Dwaapar/findawise-phase-127-reborn-sub001/pkg/journey"
	"github.com/Dwaapar/findawise-phase-127-reborn-sub001/pkg/logger"
	"github.com/Dwaapar/findawise-phase-127-reborn-sub001/pkg/personalization"
	"github.com/Dwaapar/findawise-phase-127-reborn-sub001/pkg/trigger"
)

// Service is the single entry point for engagement work: behavioral events
// in, notifications and journey progress out. It composes the trigger
// engine, the delivery pipeline and the journey engine behind one facade so
// integrators wire exactly one dependency.
type Service struct {
	triggers *trigger.Engine
	pipeline *delivery.Pipeline
	journeys *journey.Engine
	logger   *slog.Logger
}

// NewService creates the engagement facade. All three engines are required.
func NewService(triggers *trigger.Engine, pipeline *delivery.Pipeline, journeys *journey.Engine, opts ...ServiceOption) (*Service, error) {
	switch {
	case triggers == nil:
		return nil, ErrTriggersNil
	case pipeline == nil:
		return nil, ErrPipelineNil
	case journeys == nil:
		return nil, ErrJourneysNil
	}

	options := &serviceOptions{logger: slog.Default()}
	for _, opt := range opts {
		opt(options)
	}

	return &Service{
		triggers: triggers,
		pipeline: pipeline,
		journeys: journeys,
		logger:   options.logger,
	}, nil
}

// Reload rebuilds the trigger rule index from its source.
func (s *Service) Reload(ctx context.Context) error {
	return s.triggers.Reload(ctx)
}

// ProcessEvent fires a trigger-matching pass for the event and, when the
// event carries a user id, offers it to that user's active journeys as well.
// Journey bookkeeping failures are logged, never surfaced to the event
// producer.
func (s *Service) ProcessEvent(ctx context.Context, event trigger.Event) ([]trigger.RuleResult, error) {
	results, err := s.triggers.ProcessEvent(ctx, event)
	if err != nil {
		return nil, err
	}

	if event.UserID != "" {
		if jerr := s.journeys.ProcessUserEvent(ctx, event.UserID, event.Name, event.Data); jerr != nil {
			s.logger.WarnContext(ctx, "journey event processing failed",
				logger.UserID(event.UserID),
				logger.Event(event.Name),
				logger.Error(jerr))
		}
	}
	return results, nil
}

// SendParams describes a direct notification send that bypasses trigger
// matching.
type SendParams struct {
	TemplateSlug string
	RecipientID  string
	Data         map[string]any
	ScheduledFor *time.Time
	Priority     delivery.Priority
	TriggerSlug  string
}

// SendNotification enqueues one notification directly. High and urgent
// priorities are delivered synchronously and the provider result is part of
// the returned value.
func (s *Service) SendNotification(ctx context.Context, params SendParams) (*delivery.EnqueueResult, error) {
	return s.pipeline.Enqueue(ctx, delivery.SendRequest{
		TemplateSlug: params.TemplateSlug,
		TriggerSlug:  params.TriggerSlug,
		Recipient: personalization.Recipient{
			UserID: params.RecipientID,
			Data:   params.Data,
		},
		ScheduledFor: params.ScheduledFor,
		Priority:     params.Priority,
	})
}

// StartJourney begins a lifecycle journey for the user. Reports false when
// one is already active or the journey type is unknown or inactive.
func (s *Service) StartJourney(ctx context.Context, userID, journeyType string, metadata map[string]any) (bool, error) {
	return s.journeys.StartJourney(ctx, userID, journeyType, metadata)
}

// ProcessUserEvent offers the event to the user's active journeys without a
// trigger-matching pass.
func (s *Service) ProcessUserEvent(ctx context.Context, userID, eventName string, data map[string]any) error {
	return s.journeys.ProcessUserEvent(ctx, userID, eventName, data)
}

// PauseJourney suspends the journey's delay clock.
func (s *Service) PauseJourney(ctx context.Context, userID, journeyType string) bool {
	return s.journeys.Pause(ctx, userID, journeyType)
}

// ResumeJourney restarts the delay clock, excluding the paused time.
func (s *Service) ResumeJourney(ctx context.Context, userID, journeyType string) bool {
	return s.journeys.Resume(ctx, userID, journeyType)
}

// GetUserJourneyStatus returns the user's active journey instances.
func (s *Service) GetUserJourneyStatus(userID string) []journey.Instance {
	return s.journeys.GetUserJourneyStatus(userID)
}

// Run loads the rule index and drives both background loops (delivery
// batching and journey sweeping) until the context is cancelled.
func (s *Service) Run(ctx context.Context) error {
	if err := s.triggers.Reload(ctx); err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(s.pipeline.Run(ctx))
	g.Go(s.journeys.Run(ctx))
	return g.Wait()
}

package journey

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/Dwaapar/findawise-phase-127-reborn-sub001/pkg/async"
	"github.com/Dwaapar/findawise-phase-127-reborn-sub001/pkg/logger"
	"github.com/Dwaapar/findawise-phase-127-reborn-sub001/pkg/trigger"
)

// EventSink receives the synthetic stage events a journey emits. Implemented
// by trigger.Engine.
type EventSink interface {
	ProcessEvent(ctx context.Context, event trigger.Event) ([]trigger.RuleResult, error)
}

// SnapshotSource fetches the user-data snapshot stage conditions evaluate
// against. Optional; without one, conditions see an empty context.
type SnapshotSource interface {
	Snapshot(ctx context.Context, userID string) (map[string]any, error)
}

type instanceKey struct {
	userID      string
	journeyType string
}

// Engine drives journey instances through their stages. Instances are
// process-local in-memory state; the engine is safe for concurrent use.
type Engine struct {
	templates map[string]Template
	sink      EventSink

	snapshots SnapshotSource
	logger    *slog.Logger
	now       func() time.Time
	interval  time.Duration

	mu        sync.RWMutex
	instances map[instanceKey]*Instance

	runMu  sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewEngine creates a journey engine over the given templates. Inactive
// templates are kept but never start instances. Templates are keyed by
// journey type, one template per type.
func NewEngine(templates []Template, sink EventSink, opts ...EngineOption) (*Engine, error) {
	if sink == nil {
		return nil, ErrSinkNil
	}
	if len(templates) == 0 {
		return nil, ErrNoTemplates
	}

	byType := make(map[string]Template, len(templates))
	for _, tpl := range templates {
		if _, exists := byType[tpl.Type]; exists {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateType, tpl.Type)
		}
		byType[tpl.Type] = tpl
	}

	options := defaultEngineOptions()
	for _, opt := range opts {
		opt(options)
	}

	return &Engine{
		templates: byType,
		sink:      sink,
		snapshots: options.snapshots,
		logger:    options.logger,
		now:       options.now,
		interval:  options.interval,
		instances: make(map[instanceKey]*Instance),
	}, nil
}

// StartJourney creates an instance at stage 0 and fires the first stage's
// triggers. It reports false without error when an active instance already
// exists for the (user, journey type) pair or the template is missing or
// inactive.
func (e *Engine) StartJourney(ctx context.Context, userID, journeyType string, metadata map[string]any) (bool, error) {
	if userID == "" {
		return false, ErrUserIDMissing
	}

	tpl, ok := e.templates[journeyType]
	if !ok || !tpl.Active || len(tpl.Stages) == 0 {
		e.logger.DebugContext(ctx, "journey not started",
			logger.Journey(journeyType),
			logger.UserID(userID))
		return false, nil
	}

	now := e.now()
	first := tpl.Stages[0]

	e.mu.Lock()
	key := instanceKey{userID: userID, journeyType: journeyType}
	if _, exists := e.instances[key]; exists {
		e.mu.Unlock()
		return false, nil
	}

	meta := make(map[string]any, len(metadata))
	for k, v := range metadata {
		meta[k] = v
	}
	e.instances[key] = &Instance{
		UserID:       userID,
		JourneyType:  journeyType,
		CurrentStage: first.Name,
		StageIndex:   0,
		TotalStages:  len(tpl.Stages),
		StartedAt:    now,
		LastStageAt:  now,
		Metadata:     meta,
	}
	e.mu.Unlock()

	e.logger.InfoContext(ctx, "journey started",
		logger.Journey(journeyType),
		logger.UserID(userID),
		logger.Stage(first.Name))

	e.emitStage(ctx, userID, journeyType, first, now)
	return true, nil
}

// ProcessUserEvent checks every active instance of the user against the
// event: completion events finish the instance immediately, anything else is
// an opportunity to advance. Instances are handled concurrently and
// independently.
func (e *Engine) ProcessUserEvent(ctx context.Context, userID, eventName string, data map[string]any) error {
	if userID == "" {
		return ErrUserIDMissing
	}
	if eventName == "" {
		return ErrEventNameMissing
	}

	e.mu.RLock()
	keys := make([]instanceKey, 0, 2)
	for key := range e.instances {
		if key.userID == userID {
			keys = append(keys, key)
		}
	}
	e.mu.RUnlock()

	futures := make([]*async.Future[struct{}], len(keys))
	for i, key := range keys {
		futures[i] = async.Go(func() (struct{}, error) {
			tpl := e.templates[key.journeyType]
			if tpl.completesOn(eventName) {
				e.complete(ctx, key, "completion event "+eventName)
				return struct{}{}, nil
			}
			return struct{}{}, e.tryAdvance(ctx, key)
		})
	}
	for i, outcome := range async.Settle(futures...) {
		if outcome.Err != nil {
			e.logger.ErrorContext(ctx, "journey advancement failed",
				logger.Journey(keys[i].journeyType),
				logger.UserID(userID),
				logger.Error(outcome.Err))
		}
	}
	return nil
}

// Sweep runs one time-based pass over every active instance. Errors are
// logged per instance; a stalled instance is retried on the next tick.
func (e *Engine) Sweep(ctx context.Context) {
	e.mu.RLock()
	keys := make([]instanceKey, 0, len(e.instances))
	for key := range e.instances {
		keys = append(keys, key)
	}
	e.mu.RUnlock()

	for _, key := range keys {
		if err := e.tryAdvance(ctx, key); err != nil {
			e.logger.ErrorContext(ctx, "journey advancement failed",
				logger.Journey(key.journeyType),
				logger.UserID(key.userID),
				logger.Error(err))
		}
	}
}

// tryAdvance advances one instance if its current stage's delay has elapsed.
// Skipped stages (entry conditions false) are recorded and passed over, so
// an advance can cross several stages in one step. Falling off the end
// completes the instance.
func (e *Engine) tryAdvance(ctx context.Context, key instanceKey) error {
	tpl, ok := e.templates[key.journeyType]
	if !ok {
		return nil
	}

	now := e.now()

	e.mu.RLock()
	inst, exists := e.instances[key]
	if !exists || inst.Paused() {
		e.mu.RUnlock()
		return nil
	}
	stageIndex := inst.StageIndex
	elapsed := now.Sub(inst.LastStageAt)
	e.mu.RUnlock()

	if stageIndex >= len(tpl.Stages) || elapsed < tpl.Stages[stageIndex].Delay() {
		return nil
	}

	snapshot, err := e.snapshot(ctx, key.userID)
	if err != nil {
		return err
	}

	e.mu.Lock()
	inst, exists = e.instances[key]
	if !exists || inst.Paused() || inst.StageIndex != stageIndex {
		// Lost a race with a concurrent advance or completion.
		e.mu.Unlock()
		return nil
	}

	var landed *Stage
	next := stageIndex + 1
	for ; next < len(tpl.Stages); next++ {
		stage := tpl.Stages[next]
		inst.CompletedStages = append(inst.CompletedStages, tpl.Stages[next-1].Name)
		if stage.Conditions.Evaluate(snapshot) {
			landed = &stage
			break
		}
		// Conditions false: the stage is recorded but fires nothing.
	}

	if landed == nil {
		e.mu.Unlock()
		e.complete(ctx, key, "fell off the end")
		return nil
	}

	inst.StageIndex = next
	inst.CurrentStage = landed.Name
	inst.LastStageAt = now
	e.mu.Unlock()

	e.logger.InfoContext(ctx, "journey advanced",
		logger.Journey(key.journeyType),
		logger.UserID(key.userID),
		logger.Stage(landed.Name))

	e.emitStage(ctx, key.userID, key.journeyType, *landed, now)
	return nil
}

// emitStage fires the stage's trigger events, scheduled after the stage
// delay. Emission failures are logged; the stage transition stands.
func (e *Engine) emitStage(ctx context.Context, userID, journeyType string, stage Stage, now time.Time) {
	if len(stage.Triggers) == 0 {
		return
	}

	scheduledFor := now.Add(stage.Delay())
	for _, name := range stage.Triggers {
		_, err := e.sink.ProcessEvent(ctx, trigger.Event{
			Name:   name,
			UserID: userID,
			Data: map[string]any{
				"journey_type":  journeyType,
				"journey_stage": stage.Name,
			},
			Timestamp:    now,
			ScheduledFor: &scheduledFor,
		})
		if err != nil {
			e.logger.ErrorContext(ctx, "journey stage event failed",
				logger.Journey(journeyType),
				logger.UserID(userID),
				logger.Stage(stage.Name),
				logger.Event(name),
				logger.Error(err))
		}
	}
}

// complete removes the instance from the active set.
func (e *Engine) complete(ctx context.Context, key instanceKey, reason string) {
	e.mu.Lock()
	inst, exists := e.instances[key]
	if !exists {
		e.mu.Unlock()
		return
	}
	inst.CompletedStages = append(inst.CompletedStages, inst.CurrentStage)
	delete(e.instances, key)
	e.mu.Unlock()

	e.logger.InfoContext(ctx, "journey completed",
		logger.Journey(key.journeyType),
		logger.UserID(key.userID),
		slog.String("reason", reason))
}

// Pause suspends the instance's delay clock. Reports false when no active
// instance exists. Pausing an already paused instance keeps the original
// pause timestamp.
func (e *Engine) Pause(ctx context.Context, userID, journeyType string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	inst, exists := e.instances[instanceKey{userID: userID, journeyType: journeyType}]
	if !exists {
		return false
	}
	if inst.Paused() {
		return true
	}
	if inst.Metadata == nil {
		inst.Metadata = make(map[string]any, 1)
	}
	inst.Metadata[metaPausedAt] = e.now()
	return true
}

// Resume shifts the instance's stage clock forward by the paused duration,
// so the remaining delay equals what it was at pause time. Reports false
// when no active paused instance exists.
func (e *Engine) Resume(ctx context.Context, userID, journeyType string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	inst, exists := e.instances[instanceKey{userID: userID, journeyType: journeyType}]
	if !exists {
		return false
	}
	pausedAt, ok := inst.pausedAt()
	if !ok {
		return false
	}

	inst.LastStageAt = inst.LastStageAt.Add(e.now().Sub(pausedAt))
	delete(inst.Metadata, metaPausedAt)
	return true
}

// GetUserJourneyStatus returns copies of the user's active instances,
// ordered by journey type.
func (e *Engine) GetUserJourneyStatus(userID string) []Instance {
	e.mu.RLock()
	defer e.mu.RUnlock()

	out := make([]Instance, 0, 2)
	for key, inst := range e.instances {
		if key.userID == userID {
			out = append(out, inst.clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].JourneyType < out[j].JourneyType })
	return out
}

// ActiveCount returns the number of active instances across all users.
func (e *Engine) ActiveCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.instances)
}

func (e *Engine) snapshot(ctx context.Context, userID string) (map[string]any, error) {
	if e.snapshots == nil {
		return map[string]any{}, nil
	}
	snapshot, err := e.snapshots.Snapshot(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch user snapshot for %s: %w", userID, err)
	}
	return snapshot, nil
}

// Start begins the periodic sweep in the background.
func (e *Engine) Start(ctx context.Context) error {
	e.runMu.Lock()
	defer e.runMu.Unlock()

	if e.cancel != nil {
		return ErrAlreadyStarted
	}

	ctx, e.cancel = context.WithCancel(ctx)

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()

		ticker := time.NewTicker(e.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				e.Sweep(ctx)
			}
		}
	}()

	e.logger.Info("journey engine started",
		slog.Int("templates", len(e.templates)),
		slog.Duration("sweep_interval", e.interval))

	return nil
}

// Stop terminates the sweep loop and waits for an in-flight sweep to finish.
func (e *Engine) Stop() error {
	e.runMu.Lock()
	cancel := e.cancel
	e.cancel = nil
	e.runMu.Unlock()

	if cancel == nil {
		return ErrNotStarted
	}
	cancel()
	e.wg.Wait()

	e.logger.Info("journey engine stopped")
	return nil
}

// Run starts the engine and returns a function suitable for errgroup.
func (e *Engine) Run(ctx context.Context) func() error {
	return func() error {
		if err := e.Start(ctx); err != nil {
			return err
		}
		<-ctx.Done()
		return e.Stop()
	}
}

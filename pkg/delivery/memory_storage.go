package delivery

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStorage implements QueueRepository and AnalyticsRepository in memory,
// for tests and local development. It also answers recent-send counts for
// trigger rate limiting, derived from the entries themselves.
type MemoryStorage struct {
	mu         sync.RWMutex
	entries    map[uuid.UUID]*Entry
	order      []uuid.UUID // insertion order, for deterministic scans
	aggregates map[AggregateKey]*Aggregate
}

// NewMemoryStorage creates an empty in-memory storage.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		entries:    make(map[uuid.UUID]*Entry),
		aggregates: make(map[AggregateKey]*Aggregate),
	}
}

// Insert implements QueueRepository.
func (ms *MemoryStorage) Insert(ctx context.Context, entry *Entry) error {
	if entry == nil {
		return fmt.Errorf("entry cannot be nil")
	}

	ms.mu.Lock()
	defer ms.mu.Unlock()

	if _, exists := ms.entries[entry.ID]; exists {
		return fmt.Errorf("entry %s already exists", entry.ID)
	}

	// Clone to prevent external modifications.
	cp := *entry
	ms.entries[entry.ID] = &cp
	ms.order = append(ms.order, entry.ID)
	return nil
}

// Get implements QueueRepository.
func (ms *MemoryStorage) Get(ctx context.Context, id uuid.UUID) (*Entry, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	entry, exists := ms.entries[id]
	if !exists {
		return nil, ErrEntryNotFound
	}
	cp := *entry
	return &cp, nil
}

// MarkSending implements QueueRepository.
func (ms *MemoryStorage) MarkSending(ctx context.Context, id uuid.UUID, at time.Time) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	entry, exists := ms.entries[id]
	if !exists {
		return ErrEntryNotFound
	}
	if entry.Status != StatusQueued {
		return fmt.Errorf("%w: %s is %s, want queued", ErrStatusTransition, id, entry.Status)
	}

	entry.Status = StatusSending
	sentAt := at
	entry.SentAt = &sentAt
	return nil
}

// MarkSent implements QueueRepository.
func (ms *MemoryStorage) MarkSent(ctx context.Context, id uuid.UUID, at time.Time, deliveryTime time.Duration) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	entry, exists := ms.entries[id]
	if !exists {
		return ErrEntryNotFound
	}
	if entry.Status != StatusSending {
		return fmt.Errorf("%w: %s is %s, want sending", ErrStatusTransition, id, entry.Status)
	}

	entry.Status = StatusSent
	deliveredAt := at
	entry.DeliveredAt = &deliveredAt
	entry.DeliveryTime = deliveryTime
	return nil
}

// MarkFailed implements QueueRepository.
func (ms *MemoryStorage) MarkFailed(ctx context.Context, id uuid.UUID, at time.Time, errorMessage string) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	entry, exists := ms.entries[id]
	if !exists {
		return ErrEntryNotFound
	}
	if entry.Status != StatusSending {
		return fmt.Errorf("%w: %s is %s, want sending", ErrStatusTransition, id, entry.Status)
	}

	entry.Status = StatusFailed
	failedAt := at
	entry.FailedAt = &failedAt
	entry.ErrorMessage = errorMessage
	entry.RetryCount++
	return nil
}

// Requeue implements QueueRepository.
func (ms *MemoryStorage) Requeue(ctx context.Context, id uuid.UUID, scheduledFor time.Time) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	entry, exists := ms.entries[id]
	if !exists {
		return ErrEntryNotFound
	}
	if entry.Status != StatusSending {
		return fmt.Errorf("%w: %s is %s, want sending", ErrStatusTransition, id, entry.Status)
	}

	entry.Status = StatusQueued
	entry.ScheduledFor = scheduledFor
	entry.RetryCount++
	return nil
}

// SelectDue implements QueueRepository: queued entries with
// ScheduledFor <= now, ordered by priority rank then scheduled time.
func (ms *MemoryStorage) SelectDue(ctx context.Context, limit int, now time.Time) ([]Entry, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	due := make([]Entry, 0, limit)
	for _, id := range ms.order {
		entry := ms.entries[id]
		if entry.Status != StatusQueued || entry.ScheduledFor.After(now) {
			continue
		}
		due = append(due, *entry)
	}

	sort.SliceStable(due, func(i, j int) bool {
		if due[i].Priority.Rank() != due[j].Priority.Rank() {
			return due[i].Priority.Rank() < due[j].Priority.Rank()
		}
		return due[i].ScheduledFor.Before(due[j].ScheduledFor)
	})

	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}
	return due, nil
}

// Upsert implements AnalyticsRepository.
func (ms *MemoryStorage) Upsert(ctx context.Context, key AggregateKey, delta AggregateDelta) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	agg, exists := ms.aggregates[key]
	if !exists {
		agg = &Aggregate{Key: key}
		ms.aggregates[key] = agg
	}
	agg.Apply(delta)
	return nil
}

// CountRecent returns how many entries exist for the trigger/user pair
// created at or after since. Satisfies the trigger engine's send counter.
func (ms *MemoryStorage) CountRecent(ctx context.Context, triggerSlug, userID string, since time.Time) (int, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	count := 0
	for _, entry := range ms.entries {
		if entry.TriggerSlug == triggerSlug && entry.RecipientID == userID && !entry.CreatedAt.Before(since) {
			count++
		}
	}
	return count, nil
}

// RecordSend is a no-op: counts are derived from the inserted entries.
func (ms *MemoryStorage) RecordSend(ctx context.Context, triggerSlug, userID string, cooldown time.Duration) error {
	return nil
}

// Entries returns a copy of every stored entry in insertion order. Test
// helper.
func (ms *MemoryStorage) Entries() []Entry {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	out := make([]Entry, 0, len(ms.order))
	for _, id := range ms.order {
		out = append(out, *ms.entries[id])
	}
	return out
}

// AggregateFor returns a copy of the aggregate under key. Test helper.
func (ms *MemoryStorage) AggregateFor(key AggregateKey) (Aggregate, bool) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	agg, exists := ms.aggregates[key]
	if !exists {
		return Aggregate{}, false
	}
	return *agg, true
}

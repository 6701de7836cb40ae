package delivery

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Dwaapar/findawise-phase-127-reborn-sub001/pkg/channel"
)

// PostgresStorage implements QueueRepository and AnalyticsRepository on top
// of PostgreSQL. Status transitions are enforced in the UPDATE predicates so
// each one is individually atomic, which keeps the queued → sending →
// {sent|failed} ordering intact under concurrent deliverers.
//
// Expected schema lives in the migrations directory
// (notification_queue, notification_analytics).
type PostgresStorage struct {
	pool *pgxpool.Pool
}

// NewPostgresStorage creates a Postgres-backed storage.
func NewPostgresStorage(pool *pgxpool.Pool) (*PostgresStorage, error) {
	if pool == nil {
		return nil, fmt.Errorf("pgx pool cannot be nil")
	}
	return &PostgresStorage{pool: pool}, nil
}

const entryColumns = `id, template_slug, trigger_slug, campaign_id, recipient_id, recipient_address,
	channel, subject, content, html, scheduled_for, priority, status, retry_count,
	error_message, delivery_time_ms, created_at, sent_at, delivered_at, failed_at`

// Insert implements QueueRepository.
func (ps *PostgresStorage) Insert(ctx context.Context, entry *Entry) error {
	if entry == nil {
		return fmt.Errorf("entry cannot be nil")
	}

	_, err := ps.pool.Exec(ctx, `
		INSERT INTO notification_queue (`+entryColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20)`,
		entry.ID, entry.TemplateSlug, entry.TriggerSlug, entry.CampaignID,
		entry.RecipientID, entry.RecipientAddress, string(entry.Channel),
		entry.Subject, entry.Content, entry.HTML, entry.ScheduledFor,
		string(entry.Priority), string(entry.Status), entry.RetryCount,
		entry.ErrorMessage, entry.DeliveryTime.Milliseconds(), entry.CreatedAt,
		entry.SentAt, entry.DeliveredAt, entry.FailedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert entry %s: %w", entry.ID, err)
	}
	return nil
}

// Get implements QueueRepository.
func (ps *PostgresStorage) Get(ctx context.Context, id uuid.UUID) (*Entry, error) {
	row := ps.pool.QueryRow(ctx, `SELECT `+entryColumns+` FROM notification_queue WHERE id = $1`, id)
	entry, err := scanEntry(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrEntryNotFound
		}
		return nil, fmt.Errorf("failed to load entry %s: %w", id, err)
	}
	return entry, nil
}

// MarkSending implements QueueRepository.
func (ps *PostgresStorage) MarkSending(ctx context.Context, id uuid.UUID, at time.Time) error {
	tag, err := ps.pool.Exec(ctx, `
		UPDATE notification_queue
		SET status = 'sending', sent_at = $2
		WHERE id = $1 AND status = 'queued'`, id, at)
	if err != nil {
		return fmt.Errorf("failed to mark entry %s sending: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: entry %s not queued", ErrStatusTransition, id)
	}
	return nil
}

// MarkSent implements QueueRepository.
func (ps *PostgresStorage) MarkSent(ctx context.Context, id uuid.UUID, at time.Time, deliveryTime time.Duration) error {
	tag, err := ps.pool.Exec(ctx, `
		UPDATE notification_queue
		SET status = 'sent', delivered_at = $2, delivery_time_ms = $3
		WHERE id = $1 AND status = 'sending'`, id, at, deliveryTime.Milliseconds())
	if err != nil {
		return fmt.Errorf("failed to mark entry %s sent: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: entry %s not sending", ErrStatusTransition, id)
	}
	return nil
}

// MarkFailed implements QueueRepository.
func (ps *PostgresStorage) MarkFailed(ctx context.Context, id uuid.UUID, at time.Time, errorMessage string) error {
	tag, err := ps.pool.Exec(ctx, `
		UPDATE notification_queue
		SET status = 'failed', failed_at = $2, error_message = $3, retry_count = retry_count + 1
		WHERE id = $1 AND status = 'sending'`, id, at, errorMessage)
	if err != nil {
		return fmt.Errorf("failed to mark entry %s failed: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: entry %s not sending", ErrStatusTransition, id)
	}
	return nil
}

// Requeue implements QueueRepository.
func (ps *PostgresStorage) Requeue(ctx context.Context, id uuid.UUID, scheduledFor time.Time) error {
	tag, err := ps.pool.Exec(ctx, `
		UPDATE notification_queue
		SET status = 'queued', scheduled_for = $2, retry_count = retry_count + 1
		WHERE id = $1 AND status = 'sending'`, id, scheduledFor)
	if err != nil {
		return fmt.Errorf("failed to requeue entry %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: entry %s not sending", ErrStatusTransition, id)
	}
	return nil
}

// SelectDue implements QueueRepository.
func (ps *PostgresStorage) SelectDue(ctx context.Context, limit int, now time.Time) ([]Entry, error) {
	rows, err := ps.pool.Query(ctx, `
		SELECT `+entryColumns+`
		FROM notification_queue
		WHERE status = 'queued' AND scheduled_for <= $2
		ORDER BY
			CASE priority
				WHEN 'urgent' THEN 0
				WHEN 'high' THEN 1
				WHEN 'normal' THEN 2
				ELSE 3
			END,
			scheduled_for ASC
		LIMIT $1`, limit, now)
	if err != nil {
		return nil, fmt.Errorf("failed to select due entries: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan due entry: %w", err)
		}
		entries = append(entries, *entry)
	}
	return entries, rows.Err()
}

// Upsert implements AnalyticsRepository with an atomic counter increment and
// the two-point moving-average update applied inside the database.
func (ps *PostgresStorage) Upsert(ctx context.Context, key AggregateKey, delta AggregateDelta) error {
	_, err := ps.pool.Exec(ctx, `
		INSERT INTO notification_analytics
			(template_slug, channel, date, hour, sent, delivered, failed, avg_delivery_ms, cost)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		ON CONFLICT (template_slug, channel, date, hour) DO UPDATE SET
			sent = notification_analytics.sent + EXCLUDED.sent,
			delivered = notification_analytics.delivered + EXCLUDED.delivered,
			failed = notification_analytics.failed + EXCLUDED.failed,
			avg_delivery_ms = CASE
				WHEN EXCLUDED.avg_delivery_ms <= 0 THEN notification_analytics.avg_delivery_ms
				WHEN notification_analytics.avg_delivery_ms <= 0 THEN EXCLUDED.avg_delivery_ms
				ELSE (notification_analytics.avg_delivery_ms + EXCLUDED.avg_delivery_ms) / 2
			END,
			cost = notification_analytics.cost + EXCLUDED.cost`,
		key.TemplateSlug, string(key.Channel), key.Date, key.Hour,
		delta.Sent, delta.Delivered, delta.Failed,
		delta.DeliveryTime.Milliseconds(), delta.Cost,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert analytics for %s/%s: %w", key.TemplateSlug, key.Channel, err)
	}
	return nil
}

// CountRecent returns the number of entries for the trigger/user pair
// created at or after since. Satisfies the trigger engine's send counter.
func (ps *PostgresStorage) CountRecent(ctx context.Context, triggerSlug, userID string, since time.Time) (int, error) {
	var count int
	err := ps.pool.QueryRow(ctx, `
		SELECT count(*) FROM notification_queue
		WHERE trigger_slug = $1 AND recipient_id = $2 AND created_at >= $3`,
		triggerSlug, userID, since).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count recent sends: %w", err)
	}
	return count, nil
}

// RecordSend is a no-op: counts are derived from the inserted entries.
func (ps *PostgresStorage) RecordSend(ctx context.Context, triggerSlug, userID string, cooldown time.Duration) error {
	return nil
}

func scanEntry(row pgx.Row) (*Entry, error) {
	var (
		entry          Entry
		ch, prio, stat string
		deliveryMs     int64
	)
	err := row.Scan(
		&entry.ID, &entry.TemplateSlug, &entry.TriggerSlug, &entry.CampaignID,
		&entry.RecipientID, &entry.RecipientAddress, &ch,
		&entry.Subject, &entry.Content, &entry.HTML, &entry.ScheduledFor,
		&prio, &stat, &entry.RetryCount,
		&entry.ErrorMessage, &deliveryMs, &entry.CreatedAt,
		&entry.SentAt, &entry.DeliveredAt, &entry.FailedAt,
	)
	if err != nil {
		return nil, err
	}

	entry.Channel = channel.Channel(ch)
	entry.Priority = Priority(prio)
	entry.Status = Status(stat)
	entry.DeliveryTime = time.Duration(deliveryMs) * time.Millisecond
	return &entry, nil
}

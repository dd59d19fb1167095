package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/remit-demo/remit-service/internal/domain"
)

// WebhookEventRepository is the durable inbox for provider callbacks.
// Events are acknowledged to the provider once persisted and dispatched
// later by the reconciler.
type WebhookEventRepository struct {
	db *sql.DB
}

func NewWebhookEventRepository(db *sql.DB) *WebhookEventRepository {
	return &WebhookEventRepository{db: db}
}

// Create persists an incoming event. A replayed delivery trips the unique
// idempotency key and reports ErrConflict; callers ack it without
// re-enqueueing.
func (r *WebhookEventRepository) Create(ctx context.Context, event *domain.WebhookEvent) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO webhook_events (event_id, provider, idempotency_key, payload, status, attempts, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		event.ID, event.Provider, event.IdempotencyKey, event.Payload, event.Status, event.Attempts, event.CreatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return fmt.Errorf("Create: duplicate event %s: %w", event.IdempotencyKey, domain.ErrConflict)
		}
		return fmt.Errorf("Create: %w", err)
	}
	return nil
}

// GetPending claims up to limit undispatched events. FOR UPDATE SKIP LOCKED
// keeps concurrent reconciler instances off each other's batches.
func (r *WebhookEventRepository) GetPending(ctx context.Context, limit int) ([]domain.WebhookEvent, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT event_id, provider, idempotency_key, payload, status, attempts, last_attempt, created_at
		FROM webhook_events
		WHERE status = $1
		ORDER BY created_at
		LIMIT $2
		FOR UPDATE SKIP LOCKED`,
		domain.WebhookEventStatusPending, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("GetPending: %w", err)
	}
	defer rows.Close()

	var events []domain.WebhookEvent
	for rows.Next() {
		var e domain.WebhookEvent
		if err := rows.Scan(&e.ID, &e.Provider, &e.IdempotencyKey, &e.Payload, &e.Status, &e.Attempts, &e.LastAttempt, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("GetPending: scan: %w", err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("GetPending: rows: %w", err)
	}
	return events, nil
}

func (r *WebhookEventRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.WebhookEventStatus) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE webhook_events
		SET status = $1, attempts = attempts + 1, last_attempt = now()
		WHERE event_id = $2`,
		status, id,
	)
	if err != nil {
		return fmt.Errorf("UpdateStatus: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("UpdateStatus: rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("UpdateStatus: %w", domain.ErrNotFound)
	}
	return nil
}

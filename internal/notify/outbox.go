package notify

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/joao-fontenele/storefront-orderflow/internal/domain"
)

type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// InsertIntent writes an intent using the caller's transaction, so the intent
// exists exactly when the change that caused it commits.
func InsertIntent(ctx context.Context, tx Execer, in *domain.NotificationIntent) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO notification_outbox (id, kind, recipient, resource_id, payload, status, attempts, next_attempt_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, 0, $7, $8, $8)
	`, in.ID, in.Kind, in.Recipient, in.ResourceID, []byte(in.Payload), in.Status, in.NextAttemptAt, in.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert %s intent: %w", in.Kind, err)
	}
	return nil
}

type OutboxRepository struct {
	db *sql.DB
}

func NewOutboxRepository(db *sql.DB) *OutboxRepository {
	return &OutboxRepository{db: db}
}

// ClaimDue leases up to limit due intents by pushing their next_attempt_at
// past the lease. Concurrent relays skip rows another relay is claiming.
func (r *OutboxRepository) ClaimDue(ctx context.Context, limit int, now time.Time, lease time.Duration) ([]domain.NotificationIntent, error) {
	rows, err := r.db.QueryContext(ctx, `
		UPDATE notification_outbox
		SET next_attempt_at = $3, updated_at = $1
		WHERE id IN (
			SELECT id
			FROM notification_outbox
			WHERE status = 'pending' AND next_attempt_at <= $1
			ORDER BY next_attempt_at
			LIMIT $2
			FOR UPDATE SKIP LOCKED
		)
		RETURNING id, kind, recipient, resource_id, payload, status, attempts, COALESCE(last_error, ''), next_attempt_at, created_at
	`, now, limit, now.Add(lease))
	if err != nil {
		return nil, fmt.Errorf("claim due intents: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var intents []domain.NotificationIntent
	for rows.Next() {
		var in domain.NotificationIntent
		var payload []byte
		if err := rows.Scan(&in.ID, &in.Kind, &in.Recipient, &in.ResourceID, &payload, &in.Status,
			&in.Attempts, &in.LastError, &in.NextAttemptAt, &in.CreatedAt); err != nil {
			return nil, err
		}
		in.Payload = payload
		intents = append(intents, in)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return intents, nil
}

func (r *OutboxRepository) MarkSent(ctx context.Context, id string, attempts int, now time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE notification_outbox
		SET status = 'sent', attempts = $2, last_error = NULL, updated_at = $3
		WHERE id = $1
	`, id, attempts, now)
	return err
}

func (r *OutboxRepository) MarkRetry(ctx context.Context, id string, attempts int, lastErr string, next time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE notification_outbox
		SET attempts = $2, last_error = $3, next_attempt_at = $4, updated_at = NOW()
		WHERE id = $1
	`, id, attempts, lastErr, next)
	return err
}

func (r *OutboxRepository) MarkFailed(ctx context.Context, id string, attempts int, lastErr string, now time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE notification_outbox
		SET status = 'failed', attempts = $2, last_error = $3, updated_at = $4
		WHERE id = $1
	`, id, attempts, lastErr, now)
	return err
}

// GetIntent is used by tooling and tests; returns (nil, nil) when missing.
func (r *OutboxRepository) GetIntent(ctx context.Context, id string) (*domain.NotificationIntent, error) {
	var in domain.NotificationIntent
	var payload []byte
	err := r.db.QueryRowContext(ctx, `
		SELECT id, kind, recipient, resource_id, payload, status, attempts, COALESCE(last_error, ''), next_attempt_at, created_at
		FROM notification_outbox
		WHERE id = $1
	`, id).Scan(&in.ID, &in.Kind, &in.Recipient, &in.ResourceID, &payload, &in.Status,
		&in.Attempts, &in.LastError, &in.NextAttemptAt, &in.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	in.Payload = payload
	return &in, nil
}

type AttemptRepository struct {
	db *sql.DB
}

func NewAttemptRepository(db *sql.DB) *AttemptRepository {
	return &AttemptRepository{db: db}
}

func (r *AttemptRepository) Insert(ctx context.Context, a *domain.NotificationAttempt) error {
	return r.db.QueryRowContext(ctx, `
		INSERT INTO notification_attempts (intent_id, kind, recipient, resource_id, outcome, error, created_at)
		VALUES (NULLIF($1, '')::uuid, $2, $3, $4, $5, NULLIF($6, ''), $7)
		RETURNING id
	`, a.IntentID, a.Kind, a.Recipient, a.ResourceID, a.Outcome, a.Error, a.CreatedAt).Scan(&a.ID)
}

func (r *AttemptRepository) ListByResource(ctx context.Context, resourceID string) ([]domain.NotificationAttempt, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, COALESCE(intent_id::text, ''), kind, recipient, resource_id, outcome, COALESCE(error, ''), created_at
		FROM notification_attempts
		WHERE resource_id = $1
		ORDER BY id
	`, resourceID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var attempts []domain.NotificationAttempt
	for rows.Next() {
		var a domain.NotificationAttempt
		if err := rows.Scan(&a.ID, &a.IntentID, &a.Kind, &a.Recipient, &a.ResourceID, &a.Outcome, &a.Error, &a.CreatedAt); err != nil {
			return nil, err
		}
		attempts = append(attempts, a)
	}

	return attempts, rows.Err()
}

// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

const insertRawDelivery = `
INSERT INTO raw_webhook_deliveries (
    delivery_id, event_name, action, installation_id, repository_id,
    signature_valid, payload, received_at, process_state, process_attempts
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 'pending', 0)
ON CONFLICT (delivery_id) DO NOTHING
`

// InsertRawDeliveryParams are the parameters for InsertRawDelivery.
type InsertRawDeliveryParams struct {
	DeliveryID     string
	EventName      string
	Action         sql.NullString
	InstallationID sql.NullInt64
	RepositoryID   sql.NullInt64
	SignatureValid bool
	Payload        json.RawMessage
	ReceivedAt     time.Time
}

// InsertRawDelivery inserts a delivery in state pending. The unique index on
// delivery_id makes ingestion idempotent: the bool reports whether this call
// stored the row.
func (q *Queries) InsertRawDelivery(ctx context.Context, arg InsertRawDeliveryParams) (bool, error) {
	res, err := q.db.ExecContext(ctx, insertRawDelivery,
		arg.DeliveryID,
		arg.EventName,
		arg.Action,
		arg.InstallationID,
		arg.RepositoryID,
		arg.SignatureValid,
		[]byte(arg.Payload),
		arg.ReceivedAt,
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

const getRawDelivery = `
SELECT delivery_id, event_name, action, installation_id, repository_id,
       signature_valid, payload, received_at, process_state, process_attempts,
       next_retry_at, process_error
FROM raw_webhook_deliveries
WHERE delivery_id = $1
`

// GetRawDelivery fetches a single delivery by its GitHub delivery id.
func (q *Queries) GetRawDelivery(ctx context.Context, deliveryID string) (RawWebhookDelivery, error) {
	row := q.db.QueryRowContext(ctx, getRawDelivery, deliveryID)
	var d RawWebhookDelivery
	var payload []byte
	err := row.Scan(
		&d.DeliveryID, &d.EventName, &d.Action, &d.InstallationID, &d.RepositoryID,
		&d.SignatureValid, &payload, &d.ReceivedAt, &d.ProcessState, &d.ProcessAttempts,
		&d.NextRetryAt, &d.ProcessError,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return RawWebhookDelivery{}, ErrNotFound
	}
	d.Payload = payload
	return d, err
}

const listPendingDeliveries = `
SELECT delivery_id, event_name, action, installation_id, repository_id,
       signature_valid, payload, received_at, process_state, process_attempts,
       next_retry_at, process_error
FROM raw_webhook_deliveries
WHERE process_state = 'pending'
ORDER BY received_at
LIMIT $1
`

// ListPendingDeliveries returns the oldest pending deliveries, up to limit.
func (q *Queries) ListPendingDeliveries(ctx context.Context, limit int32) ([]RawWebhookDelivery, error) {
	rows, err := q.db.QueryContext(ctx, listPendingDeliveries, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanDeliveries(rows)
}

const listRetryDeliveriesDue = `
SELECT delivery_id, event_name, action, installation_id, repository_id,
       signature_valid, payload, received_at, process_state, process_attempts,
       next_retry_at, process_error
FROM raw_webhook_deliveries
WHERE process_state = 'retry' AND next_retry_at <= $1
ORDER BY next_retry_at
LIMIT $2
`

// ListRetryDeliveriesDueParams are the parameters for ListRetryDeliveriesDue.
type ListRetryDeliveriesDueParams struct {
	Now   time.Time
	Limit int32
}

// ListRetryDeliveriesDue returns retry deliveries whose backoff has elapsed.
func (q *Queries) ListRetryDeliveriesDue(ctx context.Context, arg ListRetryDeliveriesDueParams) ([]RawWebhookDelivery, error) {
	rows, err := q.db.QueryContext(ctx, listRetryDeliveriesDue, arg.Now, arg.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanDeliveries(rows)
}

const listFailedDeliveries = `
SELECT delivery_id, event_name, action, installation_id, repository_id,
       signature_valid, payload, received_at, process_state, process_attempts,
       next_retry_at, process_error
FROM raw_webhook_deliveries
WHERE process_state = 'failed'
ORDER BY received_at
LIMIT $1
`

// ListFailedDeliveries returns deliveries stuck in the failed state.
func (q *Queries) ListFailedDeliveries(ctx context.Context, limit int32) ([]RawWebhookDelivery, error) {
	rows, err := q.db.QueryContext(ctx, listFailedDeliveries, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanDeliveries(rows)
}

func scanDeliveries(rows *sql.Rows) ([]RawWebhookDelivery, error) {
	var items []RawWebhookDelivery
	for rows.Next() {
		var d RawWebhookDelivery
		var payload []byte
		if err := rows.Scan(
			&d.DeliveryID, &d.EventName, &d.Action, &d.InstallationID, &d.RepositoryID,
			&d.SignatureValid, &payload, &d.ReceivedAt, &d.ProcessState, &d.ProcessAttempts,
			&d.NextRetryAt, &d.ProcessError,
		); err != nil {
			return nil, err
		}
		d.Payload = payload
		items = append(items, d)
	}
	return items, rows.Err()
}

const markDeliveryProcessed = `
UPDATE raw_webhook_deliveries
SET process_state = 'processed', process_attempts = $2,
    next_retry_at = NULL, process_error = NULL
WHERE delivery_id = $1
`

// MarkDeliveryProcessedParams are the parameters for MarkDeliveryProcessed.
type MarkDeliveryProcessedParams struct {
	DeliveryID string
	Attempts   int32
}

// MarkDeliveryProcessed moves a delivery to its terminal processed state.
func (q *Queries) MarkDeliveryProcessed(ctx context.Context, arg MarkDeliveryProcessedParams) error {
	_, err := q.db.ExecContext(ctx, markDeliveryProcessed, arg.DeliveryID, arg.Attempts)
	return err
}

const markDeliveryRetry = `
UPDATE raw_webhook_deliveries
SET process_state = 'retry', process_attempts = $2,
    next_retry_at = $3, process_error = $4
WHERE delivery_id = $1
`

// MarkDeliveryRetryParams are the parameters for MarkDeliveryRetry.
type MarkDeliveryRetryParams struct {
	DeliveryID   string
	Attempts     int32
	NextRetryAt  time.Time
	ProcessError string
}

// MarkDeliveryRetry parks a failed delivery for a later attempt.
func (q *Queries) MarkDeliveryRetry(ctx context.Context, arg MarkDeliveryRetryParams) error {
	_, err := q.db.ExecContext(ctx, markDeliveryRetry,
		arg.DeliveryID, arg.Attempts, arg.NextRetryAt, arg.ProcessError)
	return err
}

const markDeliveryFailed = `
UPDATE raw_webhook_deliveries
SET process_state = 'failed', process_attempts = $2,
    next_retry_at = NULL, process_error = $3
WHERE delivery_id = $1
`

// MarkDeliveryFailedParams are the parameters for MarkDeliveryFailed.
type MarkDeliveryFailedParams struct {
	DeliveryID   string
	Attempts     int32
	ProcessError string
}

// MarkDeliveryFailed marks a delivery failed. Only used when the dead-letter
// handoff itself cannot complete; RetryAllFailed drains these rows.
func (q *Queries) MarkDeliveryFailed(ctx context.Context, arg MarkDeliveryFailedParams) error {
	_, err := q.db.ExecContext(ctx, markDeliveryFailed,
		arg.DeliveryID, arg.Attempts, arg.ProcessError)
	return err
}

const promoteRetryDelivery = `
UPDATE raw_webhook_deliveries
SET process_state = 'pending', next_retry_at = NULL
WHERE delivery_id = $1 AND process_state = 'retry'
`

// PromoteRetryDelivery moves a retry delivery back to pending once its
// backoff has elapsed.
func (q *Queries) PromoteRetryDelivery(ctx context.Context, deliveryID string) error {
	_, err := q.db.ExecContext(ctx, promoteRetryDelivery, deliveryID)
	return err
}

const resetDeliveryForReplay = `
UPDATE raw_webhook_deliveries
SET process_state = 'pending', next_retry_at = NULL, process_error = NULL
WHERE delivery_id = $1
`

// ResetDeliveryForReplay resets a delivery to pending, clearing errors. This
// is the operator replay path and works from any state.
func (q *Queries) ResetDeliveryForReplay(ctx context.Context, deliveryID string) error {
	_, err := q.db.ExecContext(ctx, resetDeliveryForReplay, deliveryID)
	return err
}

const deleteRawDelivery = `
DELETE FROM raw_webhook_deliveries WHERE delivery_id = $1
`

// DeleteRawDelivery removes a raw delivery row.
func (q *Queries) DeleteRawDelivery(ctx context.Context, deliveryID string) error {
	_, err := q.db.ExecContext(ctx, deleteRawDelivery, deliveryID)
	return err
}

const countDeliveriesByState = `
SELECT process_state, COUNT(*) FROM raw_webhook_deliveries GROUP BY process_state
`

// DeliveryStateCount is one row of CountDeliveriesByState.
type DeliveryStateCount struct {
	State ProcessState
	Count int64
}

// CountDeliveriesByState returns delivery counts grouped by process state.
func (q *Queries) CountDeliveriesByState(ctx context.Context) ([]DeliveryStateCount, error) {
	rows, err := q.db.QueryContext(ctx, countDeliveriesByState)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []DeliveryStateCount
	for rows.Next() {
		var c DeliveryStateCount
		if err := rows.Scan(&c.State, &c.Count); err != nil {
			return nil, err
		}
		items = append(items, c)
	}
	return items, rows.Err()
}

const countProcessedSince = `
SELECT COUNT(*) FROM raw_webhook_deliveries
WHERE process_state = 'processed' AND received_at >= $1
`

// CountProcessedSince counts deliveries processed since the given time.
func (q *Queries) CountProcessedSince(ctx context.Context, since time.Time) (int64, error) {
	var n int64
	err := q.db.QueryRowContext(ctx, countProcessedSince, since).Scan(&n)
	return n, err
}

const getPendingLag = `
SELECT COALESCE(AVG(EXTRACT(EPOCH FROM ($1::timestamptz - received_at)) * 1000), 0)::bigint,
       COALESCE(MAX(EXTRACT(EPOCH FROM ($1::timestamptz - received_at)) * 1000), 0)::bigint
FROM raw_webhook_deliveries
WHERE process_state = 'pending'
`

// PendingLag reports how far behind the processor is on the pending queue.
type PendingLag struct {
	AvgMs int64
	MaxMs int64
}

// GetPendingLag returns the average and maximum age of pending deliveries.
func (q *Queries) GetPendingLag(ctx context.Context, now time.Time) (PendingLag, error) {
	var lag PendingLag
	err := q.db.QueryRowContext(ctx, getPendingLag, now).Scan(&lag.AvgMs, &lag.MaxMs)
	return lag, err
}

const countStaleRetries = `
SELECT COUNT(*) FROM raw_webhook_deliveries
WHERE process_state = 'retry' AND received_at < $1
`

// CountStaleRetries counts retry rows older than the given cutoff.
func (q *Queries) CountStaleRetries(ctx context.Context, olderThan time.Time) (int64, error) {
	var n int64
	err := q.db.QueryRowContext(ctx, countStaleRetries, olderThan).Scan(&n)
	return n, err
}

const insertDeadLetter = `
INSERT INTO dead_letters (
    id, delivery_id, event_name, action, repository_id, payload, reason, created_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
`

// InsertDeadLetterParams are the parameters for InsertDeadLetter.
type InsertDeadLetterParams struct {
	ID           uuid.UUID
	DeliveryID   string
	EventName    string
	Action       sql.NullString
	RepositoryID sql.NullInt64
	Payload      json.RawMessage
	Reason       string
	CreatedAt    time.Time
}

// InsertDeadLetter freezes a copy of a delivery that exhausted its attempts.
func (q *Queries) InsertDeadLetter(ctx context.Context, arg InsertDeadLetterParams) error {
	_, err := q.db.ExecContext(ctx, insertDeadLetter,
		arg.ID, arg.DeliveryID, arg.EventName, arg.Action, arg.RepositoryID,
		[]byte(arg.Payload), arg.Reason, arg.CreatedAt)
	return err
}

const listDeadLetters = `
SELECT id, delivery_id, event_name, action, repository_id, payload, reason, created_at
FROM dead_letters
ORDER BY created_at DESC
LIMIT $1
`

// ListDeadLetters returns the most recent dead letters, up to limit.
func (q *Queries) ListDeadLetters(ctx context.Context, limit int32) ([]DeadLetter, error) {
	rows, err := q.db.QueryContext(ctx, listDeadLetters, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []DeadLetter
	for rows.Next() {
		var d DeadLetter
		var payload []byte
		if err := rows.Scan(&d.ID, &d.DeliveryID, &d.EventName, &d.Action,
			&d.RepositoryID, &payload, &d.Reason, &d.CreatedAt); err != nil {
			return nil, err
		}
		d.Payload = payload
		items = append(items, d)
	}
	return items, rows.Err()
}

const countDeadLetters = `
SELECT COUNT(*) FROM dead_letters
`

// CountDeadLetters counts dead letter rows.
func (q *Queries) CountDeadLetters(ctx context.Context) (int64, error) {
	var n int64
	err := q.db.QueryRowContext(ctx, countDeadLetters).Scan(&n)
	return n, err
}

// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/mindersec/ghmirror/internal/db"
	"github.com/mindersec/ghmirror/internal/events"
)

// Operator exposes the manual recovery paths: replaying a delivery,
// draining failed rows and forcing a delivery into the dead letter table.
type Operator struct {
	store db.Store
	evt   events.Publisher
}

// NewOperator creates the operator surface over the delivery queue.
func NewOperator(store db.Store, evt events.Publisher) *Operator {
	return &Operator{store: store, evt: evt}
}

// ReplayDelivery resets a delivery to pending from any state and kicks
// the processor. Replaying a processed delivery is safe: handlers are
// idempotent and the out-of-order guard drops stale payloads.
func (o *Operator) ReplayDelivery(ctx context.Context, deliveryID string) error {
	delivery, err := o.store.GetRawDelivery(ctx, deliveryID)
	if err != nil {
		return fmt.Errorf("loading delivery %s: %w", deliveryID, err)
	}

	if err := o.store.ResetDeliveryForReplay(ctx, deliveryID); err != nil {
		return fmt.Errorf("resetting delivery %s: %w", deliveryID, err)
	}

	if err := o.evt.Publish(events.TopicQueueProcessDelivery,
		newProcessMessage(deliveryID, delivery.EventName)); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).
			Str("delivery_id", deliveryID).
			Msg("failed to publish processing kick for replay")
	}

	zerolog.Ctx(ctx).Info().
		Str("delivery_id", deliveryID).
		Msg("delivery reset for replay")
	return nil
}

// RetryAllFailed resets up to limit failed deliveries back to pending.
func (o *Operator) RetryAllFailed(ctx context.Context, limit int32) (int, error) {
	failed, err := o.store.ListFailedDeliveries(ctx, limit)
	if err != nil {
		return 0, fmt.Errorf("listing failed deliveries: %w", err)
	}

	reset := 0
	for _, delivery := range failed {
		if err := o.store.ResetDeliveryForReplay(ctx, delivery.DeliveryID); err != nil {
			zerolog.Ctx(ctx).Error().Err(err).
				Str("delivery_id", delivery.DeliveryID).
				Msg("failed to reset failed delivery")
			continue
		}
		reset++

		if err := o.evt.Publish(events.TopicQueueProcessDelivery,
			newProcessMessage(delivery.DeliveryID, delivery.EventName)); err != nil {
			zerolog.Ctx(ctx).Warn().Err(err).
				Str("delivery_id", delivery.DeliveryID).
				Msg("failed to publish processing kick for failed delivery")
		}
	}
	return reset, nil
}

// MoveToDeadLetter removes a delivery from the live queue and freezes it
// in the dead letter table with an operator-supplied reason.
func (o *Operator) MoveToDeadLetter(ctx context.Context, deliveryID, reason string) error {
	delivery, err := o.store.GetRawDelivery(ctx, deliveryID)
	if err != nil {
		return fmt.Errorf("loading delivery %s: %w", deliveryID, err)
	}

	return o.store.WithTransaction(ctx, func(qtx db.Querier) error {
		err := qtx.InsertDeadLetter(ctx, db.InsertDeadLetterParams{
			ID:           uuid.New(),
			DeliveryID:   delivery.DeliveryID,
			EventName:    delivery.EventName,
			Action:       delivery.Action,
			RepositoryID: delivery.RepositoryID,
			Payload:      delivery.Payload,
			Reason:       reason,
			CreatedAt:    time.Now().UTC(),
		})
		if err != nil {
			return fmt.Errorf("inserting dead letter: %w", err)
		}
		return qtx.DeleteRawDelivery(ctx, delivery.DeliveryID)
	})
}

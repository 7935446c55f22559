// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package queue implements the durable webhook delivery queue: idempotent
// ingestion, the retry/dead-letter processing state machine, and the
// operator recovery paths. A delivery is the unit of work; processing it
// is idempotent, so the at-least-once message bus never double-applies.
package queue

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/mindersec/ghmirror/internal/db"
	"github.com/mindersec/ghmirror/internal/events"
)

// IncomingDelivery is one webhook delivery as received on the wire,
// before it is persisted.
type IncomingDelivery struct {
	DeliveryID     string
	EventName      string
	Action         string
	InstallationID int64
	RepositoryID   int64
	SignatureValid bool
	Payload        json.RawMessage
	ReceivedAt     time.Time
}

// Ingestor persists webhook deliveries and kicks the processor.
type Ingestor struct {
	store db.Store
	evt   events.Publisher
}

// NewIngestor creates a delivery ingestor.
func NewIngestor(store db.Store, evt events.Publisher) *Ingestor {
	return &Ingestor{store: store, evt: evt}
}

// StoreRawDelivery persists the delivery in state pending and publishes a
// processing kick. GitHub redelivers, so the insert is idempotent on the
// delivery GUID; the bool reports whether this call stored a new row.
// A failed kick is not an error: the batch processor drains pending rows
// on its own schedule.
func (i *Ingestor) StoreRawDelivery(ctx context.Context, in IncomingDelivery) (bool, error) {
	if in.DeliveryID == "" || in.EventName == "" {
		return false, fmt.Errorf("delivery id and event name are required")
	}

	receivedAt := in.ReceivedAt
	if receivedAt.IsZero() {
		receivedAt = time.Now().UTC()
	}

	inserted, err := i.store.InsertRawDelivery(ctx, db.InsertRawDeliveryParams{
		DeliveryID:     in.DeliveryID,
		EventName:      in.EventName,
		Action:         nullAction(in.Action),
		InstallationID: nullID(in.InstallationID),
		RepositoryID:   nullID(in.RepositoryID),
		SignatureValid: in.SignatureValid,
		Payload:        in.Payload,
		ReceivedAt:     receivedAt,
	})
	if err != nil {
		return false, fmt.Errorf("storing delivery: %w", err)
	}
	if !inserted {
		zerolog.Ctx(ctx).Debug().
			Str("delivery_id", in.DeliveryID).
			Msg("duplicate delivery ignored")
		return false, nil
	}

	if err := i.evt.Publish(events.TopicQueueProcessDelivery,
		newProcessMessage(in.DeliveryID, in.EventName)); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).
			Str("delivery_id", in.DeliveryID).
			Msg("failed to publish processing kick")
	}
	return true, nil
}

// newProcessMessage builds the kick message for one stored delivery. The
// payload stays in the store; the message carries only the identifiers.
func newProcessMessage(deliveryID, eventName string) *message.Message {
	msg := message.NewMessage(uuid.New().String(), nil)
	msg.Metadata.Set(events.DeliveryIdKey, deliveryID)
	msg.Metadata.Set(events.EventTypeKey, eventName)
	msg.Metadata.Set(events.PublishedKey, time.Now().UTC().Format(time.RFC3339))
	return msg
}

func nullAction(action string) sql.NullString {
	if action == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: action, Valid: true}
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullID(id int64) sql.NullInt64 {
	if id == 0 {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: id, Valid: true}
}

// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package logger

import (
	"context"

	"github.com/rs/zerolog"
)

type key int

const (
	// telemetryContextKey is a key used to store the current telemetry record's context
	telemetryContextKey key = iota
)

// TelemetryStore collects observations about one webhook delivery as it moves
// through the processing pipeline, so they end up in a single log record.
type TelemetryStore struct {
	// DeliveryID is the GitHub delivery GUID being processed.
	DeliveryID string `json:"delivery_id"`

	// Event is the webhook event name, e.g. "pull_request".
	Event string `json:"event"`

	// Action is the webhook action, e.g. "opened".
	Action string `json:"action"`

	// Repository is the GitHub repository id the delivery belongs to.
	Repository int64 `json:"repository"`

	// Applied lists the entity writes the handler applied.
	Applied []string `json:"applied"`

	// Dropped lists the writes rejected by the ordering guard as stale.
	Dropped []string `json:"dropped"`
}

// AddApplied records an entity write applied during processing.
func (ts *TelemetryStore) AddApplied(entity string) {
	if ts == nil {
		return
	}
	ts.Applied = append(ts.Applied, entity)
}

// AddDropped records a write dropped as stale by the ordering guard.
func (ts *TelemetryStore) AddDropped(entity string) {
	if ts == nil {
		return
	}
	ts.Dropped = append(ts.Dropped, entity)
}

// BusinessRecord provides the ability to store an observation about the
// current flow of business logic in the context of the current delivery.
// When called in the context of a logged action, it will record and send the
// marshalled data to the logging system.
//
// When called outside a logged context, it will collect and discard the data.
func BusinessRecord(ctx context.Context) *TelemetryStore {
	ts, ok := ctx.Value(telemetryContextKey).(*TelemetryStore)
	if !ok {
		// return a dummy value, to make it easy to chain this call.
		return &TelemetryStore{}
	}
	// Intentionally allowing aliasing here, we want to collect all data for one
	// delivery from different execution points, then write it out at completion.
	return ts
}

// WithTelemetry enriches the current context with a TelemetryStore which will
// collect observations about the current flow of business logic.
func (ts *TelemetryStore) WithTelemetry(ctx context.Context) context.Context {
	if ts == nil {
		return ctx
	}
	return context.WithValue(ctx, telemetryContextKey, ts)
}

// Record adds the collected data to the supplied event record.
func (ts *TelemetryStore) Record(e *zerolog.Event) *zerolog.Event {
	if ts == nil {
		return e
	}
	// We could use reflection here like json.Marshal, but given
	// the small number of fields, we'll just add them explicitly.
	if ts.DeliveryID != "" {
		e.Str("delivery_id", ts.DeliveryID)
	}
	if ts.Event != "" {
		e.Str("event", ts.Event)
	}
	if ts.Action != "" {
		e.Str("action", ts.Action)
	}
	if ts.Repository != 0 {
		e.Int64("repository", ts.Repository)
	}
	if len(ts.Applied) > 0 {
		e.Strs("applied", ts.Applied)
	}
	if len(ts.Dropped) > 0 {
		e.Strs("dropped", ts.Dropped)
	}
	e.Bool("telemetry", true)
	// Note: we explicitly don't call e.Send() here so that Send() occurs in the
	// same scope as the event is created.
	return e
}

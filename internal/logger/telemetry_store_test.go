// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package logger_test

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mindersec/ghmirror/internal/logger"
)

func TestBusinessRecordOutsideContextDiscards(t *testing.T) {
	t.Parallel()

	ts := logger.BusinessRecord(context.Background())
	require.NotNil(t, ts)

	// Mutations outside a logged context must not panic and must not leak
	// into subsequent lookups.
	ts.AddApplied("pull_request")
	other := logger.BusinessRecord(context.Background())
	assert.Empty(t, other.Applied)
}

func TestTelemetryStoreRoundTrip(t *testing.T) {
	t.Parallel()

	ts := &logger.TelemetryStore{
		DeliveryID: "d-123",
		Event:      "pull_request",
		Action:     "synchronize",
		Repository: 12345,
	}
	ctx := ts.WithTelemetry(context.Background())

	logger.BusinessRecord(ctx).AddApplied("pull_request")
	logger.BusinessRecord(ctx).AddDropped("issue")

	require.Equal(t, []string{"pull_request"}, ts.Applied)
	require.Equal(t, []string{"issue"}, ts.Dropped)
}

func TestRecordEmitsCollectedFields(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	zlog := zerolog.New(&buf)

	ts := &logger.TelemetryStore{
		DeliveryID: "d-123",
		Event:      "issues",
		Action:     "opened",
		Repository: 12345,
		Applied:    []string{"issue", "user"},
	}
	ts.Record(zlog.Info()).Send()

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "d-123", rec["delivery_id"])
	assert.Equal(t, "issues", rec["event"])
	assert.Equal(t, "opened", rec["action"])
	assert.Equal(t, float64(12345), rec["repository"])
	assert.Equal(t, true, rec["telemetry"])
	assert.ElementsMatch(t, []any{"issue", "user"}, rec["applied"])
}

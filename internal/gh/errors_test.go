// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package gh

import (
	"net/http"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRetryAfterFromHeaders(t *testing.T) {
	t.Parallel()

	scenarios := []struct {
		name    string
		headers map[string]string
		check   func(t *testing.T, d time.Duration)
	}{
		{
			name:    "retry-after seconds wins",
			headers: map[string]string{"Retry-After": "120"},
			check: func(t *testing.T, d time.Duration) {
				t.Helper()
				require.Equal(t, 120*time.Second, d)
			},
		},
		{
			name: "rate limit reset epoch",
			headers: map[string]string{
				"X-Ratelimit-Reset": formatEpoch(time.Now().Add(5 * time.Minute)),
			},
			check: func(t *testing.T, d time.Duration) {
				t.Helper()
				require.Greater(t, d, 4*time.Minute)
				require.LessOrEqual(t, d, 5*time.Minute)
			},
		},
		{
			name: "reset in the past falls back to default",
			headers: map[string]string{
				"X-Ratelimit-Reset": formatEpoch(time.Now().Add(-time.Minute)),
			},
			check: func(t *testing.T, d time.Duration) {
				t.Helper()
				require.Equal(t, defaultRetryAfter, d)
			},
		},
		{
			name:    "no headers falls back to default",
			headers: map[string]string{},
			check: func(t *testing.T, d time.Duration) {
				t.Helper()
				require.Equal(t, defaultRetryAfter, d)
			},
		},
		{
			name:    "garbage retry-after ignored",
			headers: map[string]string{"Retry-After": "soon"},
			check: func(t *testing.T, d time.Duration) {
				t.Helper()
				require.Equal(t, defaultRetryAfter, d)
			},
		},
	}

	for _, scenario := range scenarios {
		scenario := scenario
		t.Run(scenario.name, func(t *testing.T) {
			t.Parallel()

			resp := &http.Response{Header: http.Header{}}
			for k, v := range scenario.headers {
				resp.Header.Set(k, v)
			}
			scenario.check(t, retryAfterFromHeaders(resp))
		})
	}
}

func TestRetryAfterFromHeadersNilResponse(t *testing.T) {
	t.Parallel()

	require.Equal(t, defaultRetryAfter, retryAfterFromHeaders(nil))
}

func TestMapErrorNilPassthrough(t *testing.T) {
	t.Parallel()

	require.NoError(t, mapError(nil, nil))
}

func formatEpoch(ts time.Time) string {
	return strconv.FormatInt(ts.Unix(), 10)
}

// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package controlplane

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mindersec/ghmirror/internal/config"
	"github.com/mindersec/ghmirror/internal/db"
	"github.com/mindersec/ghmirror/internal/events"
	"github.com/mindersec/ghmirror/internal/events/stubs"
	"github.com/mindersec/ghmirror/internal/gh"
	"github.com/mindersec/ghmirror/internal/queue"
	ghsync "github.com/mindersec/ghmirror/internal/sync"
	"github.com/mindersec/ghmirror/internal/writeops"
)

const (
	testRepoID    int64 = 12345
	webhookSecret       = "test-secret"
)

var baseTime = time.Date(2026, 2, 18, 10, 0, 0, 0, time.UTC)

func newTestServer(store db.Store, evt events.Publisher) *Server {
	cfg := config.DefaultConfigForTest()
	cfg.GitHub.WebhookSecret = webhookSecret

	provider := func(context.Context, int64) (ghsync.GitHubFetcher, error) {
		return nil, errors.New("no github client in tests")
	}
	worker := ghsync.NewWorker(store, provider, evt, cfg.Sync)

	srv := NewServer(
		store,
		cfg,
		queue.NewIngestor(store, evt),
		queue.NewOperator(store, evt),
		worker,
		writeops.NewService(store),
		gh.NewClientFactory(cfg.GitHub),
	)
	srv.now = func() time.Time { return baseTime }
	return srv
}

func signedWebhookRequest(t *testing.T, deliveryID, event string, payload []byte) *http.Request {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhook", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-GitHub-Delivery", deliveryID)
	req.Header.Set("X-GitHub-Event", event)

	mac := hmac.New(sha256.New, []byte(webhookSecret))
	mac.Write(payload)
	req.Header.Set("X-Hub-Signature-256", "sha256="+hex.EncodeToString(mac.Sum(nil)))
	return req
}

func TestWebhookStoresDeliveryAndSchedulesBootstrap(t *testing.T) {
	t.Parallel()

	store := db.NewMemStore()
	evt := &stubs.StubEventer{}
	srv := newTestServer(store, evt)

	payload := []byte(`{
		"action": "opened",
		"installation": {"id": 777, "account": {"login": "testowner", "type": "Organization"}},
		"repository": {"id": 12345, "full_name": "testowner/testrepo"},
		"issue": {"number": 1}
	}`)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, signedWebhookRequest(t, "delivery-1", "issues", payload))
	require.Equal(t, http.StatusAccepted, rec.Code)

	delivery, err := store.GetRawDelivery(context.Background(), "delivery-1")
	require.NoError(t, err)
	require.Equal(t, "issues", delivery.EventName)
	require.True(t, delivery.SignatureValid)
	require.Equal(t, testRepoID, delivery.RepositoryID.Int64)

	// Unknown repository triggers a first-connect bootstrap.
	job, err := store.GetSyncJobByLockKey(context.Background(), "repo-bootstrap:0:12345")
	require.NoError(t, err)
	require.Equal(t, db.SyncJobKindBootstrap, job.Kind)

	inst, err := store.GetInstallation(context.Background(), 777)
	require.NoError(t, err)
	require.Equal(t, "testowner", inst.AccountLogin)

	require.Contains(t, evt.Topics, events.TopicQueueProcessDelivery)
	require.Contains(t, evt.Topics, events.TopicQueueSyncRepo)
}

func TestWebhookRejectsBadSignature(t *testing.T) {
	t.Parallel()

	store := db.NewMemStore()
	srv := newTestServer(store, &stubs.StubEventer{})

	payload := []byte(`{"action": "opened"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhook", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-GitHub-Delivery", "delivery-2")
	req.Header.Set("X-GitHub-Event", "issues")
	req.Header.Set("X-Hub-Signature-256", "sha256=deadbeef")

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	_, err := store.GetRawDelivery(context.Background(), "delivery-2")
	require.ErrorIs(t, err, db.ErrNotFound)
}

func TestWebhookIsIdempotent(t *testing.T) {
	t.Parallel()

	store := db.NewMemStore()
	srv := newTestServer(store, &stubs.StubEventer{})

	payload := []byte(`{"action": "opened", "repository": {"id": 12345, "full_name": "testowner/testrepo"}}`)

	for range 2 {
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, signedWebhookRequest(t, "delivery-3", "issues", payload))
		require.Equal(t, http.StatusAccepted, rec.Code)
	}
}

func TestHealthEndpoint(t *testing.T) {
	t.Parallel()

	srv := newTestServer(db.NewMemStore(), &stubs.StubEventer{})

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var health struct {
		OK bool `json:"ok"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &health))
	require.True(t, health.OK)
}

func TestListReposEndpoint(t *testing.T) {
	t.Parallel()

	store := db.NewMemStore()
	require.NoError(t, store.UpsertRepository(context.Background(), db.UpsertRepositoryParams{
		ID:            testRepoID,
		OwnerLogin:    "testowner",
		Name:          "testrepo",
		FullName:      "testowner/testrepo",
		Visibility:    "public",
		DefaultBranch: "main",
		Now:           baseTime,
	}))
	srv := newTestServer(store, &stubs.StubEventer{})

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/repos", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var repos []struct {
		Repository struct {
			FullName string `json:"FullName"`
		}
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &repos))
	require.Len(t, repos, 1)
	require.Equal(t, "testowner/testrepo", repos[0].Repository.FullName)
}

func TestGetPullDetailMissingReturnsNotFound(t *testing.T) {
	t.Parallel()

	// The repository is unknown, so the on-demand fallback cannot run.
	srv := newTestServer(db.NewMemStore(), &stubs.StubEventer{})

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec,
		httptest.NewRequest(http.MethodGet, "/api/v1/repos/12345/pulls/8", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestScheduleSyncEndpoint(t *testing.T) {
	t.Parallel()

	store := db.NewMemStore()
	require.NoError(t, store.UpsertRepository(context.Background(), db.UpsertRepositoryParams{
		ID:            testRepoID,
		OwnerLogin:    "testowner",
		Name:          "testrepo",
		FullName:      "testowner/testrepo",
		Visibility:    "public",
		DefaultBranch: "main",
		Now:           baseTime,
	}))
	srv := newTestServer(store, &stubs.StubEventer{})

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec,
		httptest.NewRequest(http.MethodPost, "/api/v1/repos/12345/sync", nil))
	require.Equal(t, http.StatusAccepted, rec.Code)

	job, err := store.GetSyncJobByLockKey(context.Background(), "repo-reconcile:0:12345")
	require.NoError(t, err)
	require.Equal(t, db.SyncJobKindReconcile, job.Kind)

	// A second request while the job is still queued reports not scheduled.
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec,
		httptest.NewRequest(http.MethodPost, "/api/v1/repos/12345/sync", nil))
	require.Equal(t, http.StatusAccepted, rec.Code)

	var result ghsync.ScheduleResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	require.False(t, result.Scheduled)
}

func TestWriteOpUnknownRepository(t *testing.T) {
	t.Parallel()

	srv := newTestServer(db.NewMemStore(), &stubs.StubEventer{})

	body := bytes.NewReader([]byte(`{"correlation_id": "corr-1", "type": "create_issue", "repository_id": 999, "title": "x"}`))
	req := httptest.NewRequest(http.MethodPost, "/api/v1/write-operations", body)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package controlplane

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	gogithub "github.com/google/go-github/v63/github"
	"github.com/rs/zerolog"

	"github.com/mindersec/ghmirror/internal/db"
	"github.com/mindersec/ghmirror/internal/queue"
	"github.com/mindersec/ghmirror/internal/reads"
	"github.com/mindersec/ghmirror/internal/writeops"
)

// webhookEnvelope is the minimal shape shared by all webhook payloads.
type webhookEnvelope struct {
	Action       string `json:"action"`
	Installation struct {
		ID      int64 `json:"id"`
		Account struct {
			Login string `json:"login"`
			Type  string `json:"type"`
		} `json:"account"`
	} `json:"installation"`
	Repository struct {
		ID       int64  `json:"id"`
		FullName string `json:"full_name"`
	} `json:"repository"`
}

// handleWebhook validates the GitHub signature and stores the delivery.
// See https://docs.github.com/en/developers/webhooks-and-events/webhooks/securing-your-webhooks
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	secret, err := s.cfg.GitHub.GetWebhookSecret()
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("webhook secret unavailable")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	payload, err := gogithub.ValidatePayload(r, []byte(secret))
	if err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Msg("webhook signature validation failed")
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	var envelope webhookEnvelope
	// Malformed payloads still get stored; the processor marks them as
	// no-op processed.
	_ = json.Unmarshal(payload, &envelope)

	delivery := queue.IncomingDelivery{
		DeliveryID:     gogithub.DeliveryID(r),
		EventName:      gogithub.WebHookType(r),
		Action:         envelope.Action,
		InstallationID: envelope.Installation.ID,
		RepositoryID:   envelope.Repository.ID,
		SignatureValid: true,
		Payload:        payload,
		ReceivedAt:     s.now(),
	}

	stored, err := s.ingestor.StoreRawDelivery(ctx, delivery)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).
			Str("delivery_id", delivery.DeliveryID).
			Msg("failed to store webhook delivery")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	s.bootstrapUnknownRepo(r, envelope)

	writeJSON(w, http.StatusAccepted, map[string]bool{"stored": stored})
}

// bootstrapUnknownRepo schedules a first-connect bootstrap when a webhook
// arrives for a repository the mirror has never seen. Repositories are
// created on first webhook or explicit connect.
func (s *Server) bootstrapUnknownRepo(r *http.Request, envelope webhookEnvelope) {
	ctx := r.Context()
	if envelope.Repository.ID == 0 || envelope.Repository.FullName == "" {
		return
	}

	_, err := s.store.GetRepository(ctx, envelope.Repository.ID)
	if !errors.Is(err, db.ErrNotFound) {
		return
	}

	if envelope.Installation.ID != 0 {
		err := s.store.UpsertInstallation(ctx, db.UpsertInstallationParams{
			ID:           envelope.Installation.ID,
			AccountLogin: envelope.Installation.Account.Login,
			AccountKind:  envelope.Installation.Account.Type,
			Now:          s.now(),
		})
		if err != nil {
			zerolog.Ctx(ctx).Warn().Err(err).Msg("failed to store installation")
		}
	}

	result, err := s.worker.ScheduleBootstrap(ctx,
		envelope.Repository.ID, envelope.Repository.FullName, envelope.Installation.ID)
	if err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).
			Int64("repository", envelope.Repository.ID).
			Msg("failed to schedule bootstrap for new repository")
		return
	}
	if result.Scheduled {
		zerolog.Ctx(ctx).Info().
			Int64("repository", envelope.Repository.ID).
			Str("lock_key", result.LockKey).
			Msg("bootstrap scheduled for new repository")
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	health, err := s.reader.GetHealth(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	status := http.StatusOK
	if !health.OK {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, health)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	status, err := s.reader.GetSystemStatus(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (s *Server) handleQueueStatus(w http.ResponseWriter, r *http.Request) {
	health, err := s.reader.GetQueueHealth(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, health)
}

func (s *Server) handleSyncJobs(w http.ResponseWriter, r *http.Request) {
	jobs, err := s.reader.ListSyncJobs(r.Context(), queryLimit(r))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, jobs)
}

func (s *Server) handleDeadLetters(w http.ResponseWriter, r *http.Request) {
	letters, err := s.reader.ListDeadLetters(r.Context(), queryLimit(r))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, letters)
}

func (s *Server) handleListRepos(w http.ResponseWriter, r *http.Request) {
	repos, err := s.reader.ListRepos(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, repos)
}

func (s *Server) handleGetRepo(w http.ResponseWriter, r *http.Request) {
	repoID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	summary, err := s.reader.GetRepo(r.Context(), repoID)
	if errors.Is(err, reads.ErrRepositoryNotFound) {
		writeError(w, http.StatusNotFound, err)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleListPulls(w http.ResponseWriter, r *http.Request) {
	repoID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	items, err := s.reader.ListPullRequests(r.Context(), repoID, queryPage(r))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (s *Server) handleListIssues(w http.ResponseWriter, r *http.Request) {
	repoID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	items, err := s.reader.ListIssues(r.Context(), repoID, queryPage(r))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (s *Server) handleListActivity(w http.ResponseWriter, r *http.Request) {
	repoID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	items, err := s.reader.ListActivity(r.Context(), repoID, queryPage(r))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

// handleGetPull serves the pull request detail. A miss triggers one
// on-demand sync before reporting not found.
func (s *Server) handleGetPull(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	repoID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	number, ok := pathID(w, r, "number")
	if !ok {
		return
	}

	detail, err := s.reader.GetPullRequestDetail(ctx, repoID, number)
	if errors.Is(err, reads.ErrEntityNotFound) {
		if !s.syncMissingPull(ctx, repoID, number) {
			writeError(w, http.StatusNotFound, err)
			return
		}
		detail, err = s.reader.GetPullRequestDetail(ctx, repoID, number)
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

func (s *Server) syncMissingPull(ctx context.Context, repoID, number int64) bool {
	repo, client, err := s.worker.EnsureRepository(ctx, repoID)
	if err != nil {
		zerolog.Ctx(ctx).Debug().Err(err).
			Int64("repository", repoID).
			Msg("on-demand repository resolve failed")
		return false
	}
	if err := s.worker.SyncPullRequest(ctx, client, repo, number); err != nil {
		zerolog.Ctx(ctx).Debug().Err(err).
			Int64("repository", repoID).
			Int64("pull_request", number).
			Msg("on-demand pull request sync failed")
		return false
	}
	return true
}

func (s *Server) handleGetIssue(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	repoID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	number, ok := pathID(w, r, "number")
	if !ok {
		return
	}

	detail, err := s.reader.GetIssueDetail(ctx, repoID, number)
	if errors.Is(err, reads.ErrEntityNotFound) {
		if !s.syncMissingIssue(ctx, repoID, number) {
			writeError(w, http.StatusNotFound, err)
			return
		}
		detail, err = s.reader.GetIssueDetail(ctx, repoID, number)
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

func (s *Server) syncMissingIssue(ctx context.Context, repoID, number int64) bool {
	repo, client, err := s.worker.EnsureRepository(ctx, repoID)
	if err != nil {
		zerolog.Ctx(ctx).Debug().Err(err).
			Int64("repository", repoID).
			Msg("on-demand repository resolve failed")
		return false
	}
	if err := s.worker.SyncIssue(ctx, client, repo, number); err != nil {
		zerolog.Ctx(ctx).Debug().Err(err).
			Int64("repository", repoID).
			Int64("issue", number).
			Msg("on-demand issue sync failed")
		return false
	}
	return true
}

// handleScheduleSync schedules an operator reconcile for a repository.
func (s *Server) handleScheduleSync(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	repoID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	repo, err := s.store.GetRepository(ctx, repoID)
	if errors.Is(err, db.ErrNotFound) {
		writeError(w, http.StatusNotFound, err)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	result, err := s.worker.ScheduleReconcile(ctx, repo.ID, repo.FullName, repo.InstallationID.Int64)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusAccepted, result)
}

func (s *Server) handleSubmitWriteOp(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req writeops.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	repo, err := s.store.GetRepository(ctx, req.RepositoryID)
	if errors.Is(err, db.ErrNotFound) {
		writeError(w, http.StatusNotFound, err)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	req.Owner = repo.OwnerLogin
	req.Repo = repo.Name

	client, err := s.clientFor(ctx, repo)
	if err != nil {
		writeError(w, http.StatusBadGateway, err)
		return
	}

	result, err := s.writes.Submit(ctx, client, req)
	if db.IsUniqueViolation(err) {
		writeError(w, http.StatusConflict, err)
		return
	}
	if errors.Is(err, writeops.ErrUnknownOperationType) {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

func (s *Server) handleGetWriteOp(w http.ResponseWriter, r *http.Request) {
	op, err := s.store.GetWriteOperation(r.Context(), r.PathValue("correlationID"))
	if errors.Is(err, db.ErrNotFound) {
		writeError(w, http.StatusNotFound, err)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, op)
}

func pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, errors.New("malformed "+name))
		return 0, false
	}
	return id, true
}

func queryLimit(r *http.Request) int32 {
	limit, err := strconv.ParseInt(r.URL.Query().Get("limit"), 10, 32)
	if err != nil {
		return 0
	}
	return int32(limit)
}

func queryPage(r *http.Request) reads.Page {
	page := reads.Page{Limit: queryLimit(r)}
	if raw := r.URL.Query().Get("before"); raw != "" {
		if cursor, err := time.Parse(time.RFC3339, raw); err == nil {
			page.Before = &cursor
		}
	}
	return page
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// Headers are already written, an encode failure has nowhere to go.
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

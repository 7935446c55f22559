// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package sync

import (
	"encoding/json"
	"fmt"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"
)

// PullFilesPayload asks the sync worker to refresh the cached file diff
// of one pull request.
type PullFilesPayload struct {
	RepositoryID      int64  `json:"repository_id"`
	PullRequestNumber int64  `json:"pull_request_number"`
	HeadSha           string `json:"head_sha,omitempty"`
}

// RepoSyncPayload asks the sync worker to bootstrap or reconcile one
// repository.
type RepoSyncPayload struct {
	RepositoryID   int64  `json:"repository_id"`
	FullName       string `json:"full_name"`
	InstallationID int64  `json:"installation_id"`
	LockKey        string `json:"lock_key"`
}

// NewPullFilesMessage builds the message published on
// events.TopicQueueSyncPullFiles.
func NewPullFilesMessage(payload PullFilesPayload) (*message.Message, error) {
	return newJSONMessage(payload)
}

// NewRepoSyncMessage builds the message published on
// events.TopicQueueSyncRepo.
func NewRepoSyncMessage(payload RepoSyncPayload) (*message.Message, error) {
	return newJSONMessage(payload)
}

func newJSONMessage(payload any) (*message.Message, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encoding sync payload: %w", err)
	}
	return message.NewMessage(uuid.New().String(), raw), nil
}

func pullFilesPayloadFromMessage(msg *message.Message) (PullFilesPayload, error) {
	var payload PullFilesPayload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		return PullFilesPayload{}, fmt.Errorf("decoding pull files payload: %w", err)
	}
	if payload.RepositoryID == 0 || payload.PullRequestNumber == 0 {
		return PullFilesPayload{}, fmt.Errorf("pull files payload missing repository or number")
	}
	return payload, nil
}

func repoSyncPayloadFromMessage(msg *message.Message) (RepoSyncPayload, error) {
	var payload RepoSyncPayload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		return RepoSyncPayload{}, fmt.Errorf("decoding repo sync payload: %w", err)
	}
	if payload.RepositoryID == 0 {
		return RepoSyncPayload{}, fmt.Errorf("repo sync payload missing repository")
	}
	return payload, nil
}

// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package webhook turns raw webhook deliveries into normalized domain
// state. Payloads parse into a closed set of event shapes; anything that
// fails to parse is dropped as a no-op so the delivery still terminates.
package webhook

import (
	"database/sql"
	"strings"
	"time"
	"unicode/utf8"
)

const previewLength = 200

type userPayload struct {
	ID        int64  `json:"id"`
	Login     string `json:"login"`
	AvatarURL string `json:"avatar_url"`
	Type      string `json:"type"`
}

type labelPayload struct {
	Name string `json:"name"`
}

type issuePayload struct {
	ID          int64          `json:"id"`
	Number      int64          `json:"number"`
	State       string         `json:"state"`
	Title       string         `json:"title"`
	Body        *string        `json:"body"`
	Labels      []labelPayload `json:"labels"`
	Assignees   []userPayload  `json:"assignees"`
	User        *userPayload   `json:"user"`
	UpdatedAt   time.Time      `json:"updated_at"`
	Comments    int32          `json:"comments"`
	ClosedAt    *time.Time     `json:"closed_at"`
	PullRequest *struct {
		URL string `json:"url"`
	} `json:"pull_request"`
}

type issuesEvent struct {
	Action string        `json:"action"`
	Issue  *issuePayload `json:"issue"`
	Sender *userPayload  `json:"sender"`
}

type branchRefPayload struct {
	Ref string `json:"ref"`
	Sha string `json:"sha"`
}

type pullRequestPayload struct {
	ID                 int64            `json:"id"`
	Number             int64            `json:"number"`
	State              string           `json:"state"`
	Draft              bool             `json:"draft"`
	Title              string           `json:"title"`
	Body               *string          `json:"body"`
	User               *userPayload     `json:"user"`
	Head               branchRefPayload `json:"head"`
	Base               branchRefPayload `json:"base"`
	Assignees          []userPayload    `json:"assignees"`
	RequestedReviewers []userPayload    `json:"requested_reviewers"`
	MergeableState     *string          `json:"mergeable_state"`
	Merged             bool             `json:"merged"`
	Comments           int32            `json:"comments"`
	MergedAt           *time.Time       `json:"merged_at"`
	ClosedAt           *time.Time       `json:"closed_at"`
	UpdatedAt          time.Time        `json:"updated_at"`
}

type pullRequestEvent struct {
	Action      string              `json:"action"`
	PullRequest *pullRequestPayload `json:"pull_request"`
	Sender      *userPayload        `json:"sender"`
}

type commentPayload struct {
	ID        int64        `json:"id"`
	User      *userPayload `json:"user"`
	Body      string       `json:"body"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}

type issueCommentEvent struct {
	Action  string          `json:"action"`
	Comment *commentPayload `json:"comment"`
	Issue   *issuePayload   `json:"issue"`
	Sender  *userPayload    `json:"sender"`
}

type pushCommitPayload struct {
	ID        string    `json:"id"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

type pushEvent struct {
	Ref     string              `json:"ref"`
	After   string              `json:"after"`
	Deleted bool                `json:"deleted"`
	Commits []pushCommitPayload `json:"commits"`
	Sender  *userPayload        `json:"sender"`
}

type reviewPayload struct {
	ID          int64        `json:"id"`
	User        *userPayload `json:"user"`
	State       string       `json:"state"`
	SubmittedAt *time.Time   `json:"submitted_at"`
	CommitID    string       `json:"commit_id"`
}

type pullRequestReviewEvent struct {
	Action      string              `json:"action"`
	Review      *reviewPayload      `json:"review"`
	PullRequest *pullRequestPayload `json:"pull_request"`
	Sender      *userPayload        `json:"sender"`
}

type checkRunPayload struct {
	ID          int64      `json:"id"`
	Name        string     `json:"name"`
	HeadSha     string     `json:"head_sha"`
	Status      string     `json:"status"`
	Conclusion  *string    `json:"conclusion"`
	StartedAt   *time.Time `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at"`
}

type checkRunEvent struct {
	Action   string           `json:"action"`
	CheckRun *checkRunPayload `json:"check_run"`
	Sender   *userPayload     `json:"sender"`
}

// branchEvent covers both create and delete deliveries; only branch
// ref types are acted on.
type branchEvent struct {
	Ref     string       `json:"ref"`
	RefType string       `json:"ref_type"`
	Sender  *userPayload `json:"sender"`
}

const branchRefPrefix = "refs/heads/"

func branchFromRef(ref string) (string, bool) {
	if !strings.HasPrefix(ref, branchRefPrefix) {
		return "", false
	}
	return strings.TrimPrefix(ref, branchRefPrefix), true
}

func messageHeadline(message string) string {
	if idx := strings.IndexByte(message, '\n'); idx >= 0 {
		return message[:idx]
	}
	return message
}

func previewText(s string) string {
	if len(s) <= previewLength {
		return s
	}
	// Back up to a rune start so the cut never splits a multi-byte rune.
	cut := previewLength
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

func userLogins(users []userPayload) []string {
	logins := make([]string, 0, len(users))
	for _, u := range users {
		logins = append(logins, u.Login)
	}
	return logins
}

func labelNames(labels []labelPayload) []string {
	names := make([]string, 0, len(labels))
	for _, l := range labels {
		names = append(names, l.Name)
	}
	return names
}

func nullableBody(body *string) sql.NullString {
	if body == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *body, Valid: true}
}

func nullableTime(ts *time.Time) sql.NullTime {
	if ts == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *ts, Valid: true}
}

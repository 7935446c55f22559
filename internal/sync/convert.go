// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package sync

import (
	"database/sql"
	"strings"
	"time"

	gogithub "github.com/google/go-github/v63/github"

	"github.com/mindersec/ghmirror/internal/db"
)

// The REST API reports review and check states in upper case while
// webhooks use lower case. Everything is normalized to lower case.
func normalizeState(s string) string {
	return strings.ToLower(s)
}

func repositoryParams(repo *gogithub.Repository, installationID int64, now time.Time) db.UpsertRepositoryParams {
	return db.UpsertRepositoryParams{
		ID:              repo.GetID(),
		InstallationID:  nullInt64(installationID),
		OwnerLogin:      repo.GetOwner().GetLogin(),
		Name:            repo.GetName(),
		FullName:        repo.GetFullName(),
		Visibility:      repo.GetVisibility(),
		DefaultBranch:   repo.GetDefaultBranch(),
		IsArchived:      repo.GetArchived(),
		IsDisabled:      repo.GetDisabled(),
		IsFork:          repo.GetFork(),
		PushedAt:        nullTimestamp(repo.GetPushedAt()),
		GithubUpdatedAt: nullTimestamp(repo.GetUpdatedAt()),
		Now:             now,
	}
}

func pullRequestParams(repositoryID int64, pr *gogithub.PullRequest) db.UpsertPullRequestParams {
	return db.UpsertPullRequestParams{
		RepositoryID:            repositoryID,
		Number:                  int64(pr.GetNumber()),
		GithubPrID:              pr.GetID(),
		State:                   normalizeState(pr.GetState()),
		IsDraft:                 pr.GetDraft(),
		Title:                   pr.GetTitle(),
		Body:                    nullStr(pr.GetBody()),
		AuthorUserID:            userID(pr.GetUser()),
		HeadRef:                 pr.GetHead().GetRef(),
		HeadSha:                 pr.GetHead().GetSHA(),
		BaseRef:                 pr.GetBase().GetRef(),
		AssigneeLogins:          logins(pr.Assignees),
		RequestedReviewerLogins: logins(pr.RequestedReviewers),
		MergeableState:          nullStr(pr.GetMergeableState()),
		CommentCount:            int32(pr.GetComments()),
		MergedAt:                nullTimestamp(pr.GetMergedAt()),
		ClosedAt:                nullTimestamp(pr.GetClosedAt()),
		GithubUpdatedAt:         pr.GetUpdatedAt().Time.UTC(),
	}
}

func issueParams(repositoryID int64, issue *gogithub.Issue) db.UpsertIssueParams {
	labels := make([]string, 0, len(issue.Labels))
	for _, label := range issue.Labels {
		if name := label.GetName(); name != "" {
			labels = append(labels, name)
		}
	}

	return db.UpsertIssueParams{
		RepositoryID:    repositoryID,
		Number:          int64(issue.GetNumber()),
		GithubIssueID:   issue.GetID(),
		State:           normalizeState(issue.GetState()),
		Title:           issue.GetTitle(),
		Body:            nullStr(issue.GetBody()),
		LabelNames:      labels,
		AssigneeLogins:  logins(issue.Assignees),
		AuthorUserID:    userID(issue.GetUser()),
		IsPullRequest:   issue.IsPullRequest(),
		CommentCount:    int32(issue.GetComments()),
		ClosedAt:        nullTimestamp(issue.GetClosedAt()),
		GithubUpdatedAt: issue.GetUpdatedAt().Time.UTC(),
	}
}

func commentParams(repositoryID, issueNumber int64, comment *gogithub.IssueComment) db.UpsertIssueCommentParams {
	return db.UpsertIssueCommentParams{
		RepositoryID:    repositoryID,
		GithubCommentID: comment.GetID(),
		IssueNumber:     issueNumber,
		AuthorUserID:    userID(comment.GetUser()),
		Body:            comment.GetBody(),
		CreatedAt:       comment.GetCreatedAt().Time.UTC(),
		UpdatedAt:       comment.GetUpdatedAt().Time.UTC(),
	}
}

func reviewParams(repositoryID, prNumber int64, review *gogithub.PullRequestReview) db.UpsertPullRequestReviewParams {
	return db.UpsertPullRequestReviewParams{
		RepositoryID:      repositoryID,
		GithubReviewID:    review.GetID(),
		PullRequestNumber: prNumber,
		ReviewerUserID:    userID(review.GetUser()),
		State:             normalizeState(review.GetState()),
		CommitSha:         review.GetCommitID(),
		SubmittedAt:       nullTimestamp(review.GetSubmittedAt()),
	}
}

func checkRunParams(repositoryID int64, run *gogithub.CheckRun) db.UpsertCheckRunParams {
	return db.UpsertCheckRunParams{
		RepositoryID:     repositoryID,
		GithubCheckRunID: run.GetID(),
		Name:             run.GetName(),
		HeadSha:          run.GetHeadSHA(),
		Status:           normalizeState(run.GetStatus()),
		Conclusion:       nullStr(normalizeState(run.GetConclusion())),
		StartedAt:        nullTimestamp(run.GetStartedAt()),
		CompletedAt:      nullTimestamp(run.GetCompletedAt()),
	}
}

func workflowRunParams(repositoryID int64, run *gogithub.WorkflowRun) db.UpsertWorkflowRunParams {
	return db.UpsertWorkflowRunParams{
		RepositoryID:    repositoryID,
		GithubRunID:     run.GetID(),
		Name:            run.GetName(),
		HeadBranch:      run.GetHeadBranch(),
		HeadSha:         run.GetHeadSHA(),
		Status:          normalizeState(run.GetStatus()),
		Conclusion:      nullStr(normalizeState(run.GetConclusion())),
		RunNumber:       int32(run.GetRunNumber()),
		GithubUpdatedAt: nullTimestamp(run.GetUpdatedAt()),
	}
}

func workflowJobParams(repositoryID int64, job *gogithub.WorkflowJob) db.UpsertWorkflowJobParams {
	return db.UpsertWorkflowJobParams{
		RepositoryID: repositoryID,
		GithubJobID:  job.GetID(),
		GithubRunID:  job.GetRunID(),
		Name:         job.GetName(),
		Status:       normalizeState(job.GetStatus()),
		Conclusion:   nullStr(normalizeState(job.GetConclusion())),
		StartedAt:    nullTimestamp(job.GetStartedAt()),
		CompletedAt:  nullTimestamp(job.GetCompletedAt()),
	}
}

func commitParams(repositoryID int64, commit *gogithub.RepositoryCommit) db.InsertCommitIfAbsentParams {
	return db.InsertCommitIfAbsentParams{
		RepositoryID:    repositoryID,
		Sha:             commit.GetSHA(),
		MessageHeadline: messageHeadline(commit.GetCommit().GetMessage()),
		AuthorUserID:    userID(commit.GetAuthor()),
		CommitterUserID: userID(commit.GetCommitter()),
		AuthoredAt:      nullTimestamp(commit.GetCommit().GetAuthor().GetDate()),
		CommittedAt:     nullTimestamp(commit.GetCommit().GetCommitter().GetDate()),
	}
}

func userParams(user *gogithub.User, now time.Time) db.UpsertUserParams {
	return db.UpsertUserParams{
		ID:        user.GetID(),
		Login:     user.GetLogin(),
		AvatarURL: user.GetAvatarURL(),
		Kind:      user.GetType(),
		Now:       now,
	}
}

func messageHeadline(message string) string {
	if idx := strings.IndexByte(message, '\n'); idx >= 0 {
		return message[:idx]
	}
	return message
}

func logins(users []*gogithub.User) []string {
	out := make([]string, 0, len(users))
	for _, user := range users {
		if login := user.GetLogin(); login != "" {
			out = append(out, login)
		}
	}
	return out
}

func userID(user *gogithub.User) sql.NullInt64 {
	if user.GetID() == 0 {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: user.GetID(), Valid: true}
}

func nullInt64(v int64) sql.NullInt64 {
	if v == 0 {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: v, Valid: true}
}

func nullStr(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullTimestamp(ts gogithub.Timestamp) sql.NullTime {
	if ts.Time.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: ts.Time.UTC(), Valid: true}
}

// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package gh

import (
	"context"

	gogithub "github.com/google/go-github/v63/github"
)

// CreateIssue creates an issue in a repository and returns the created
// issue, whose number callers record for reconciliation.
func (c *Client) CreateIssue(
	ctx context.Context,
	owner, repo, title, body string,
) (*gogithub.Issue, error) {
	issue, resp, err := c.client.Issues.Create(ctx, owner, repo, &gogithub.IssueRequest{
		Title: gogithub.String(title),
		Body:  gogithub.String(body),
	})
	if err != nil {
		return nil, mapError(resp, err)
	}
	return issue, nil
}

// CreateIssueComment creates a comment on an issue or pull request
func (c *Client) CreateIssueComment(
	ctx context.Context,
	owner, repo string,
	number int,
	body string,
) (*gogithub.IssueComment, error) {
	comment, resp, err := c.client.Issues.CreateComment(ctx, owner, repo, number, &gogithub.IssueComment{
		Body: gogithub.String(body),
	})
	if err != nil {
		return nil, mapError(resp, err)
	}
	return comment, nil
}

// UpdateIssueState patches an issue to the given state, "open" or "closed"
func (c *Client) UpdateIssueState(
	ctx context.Context,
	owner, repo string,
	number int,
	state string,
) (*gogithub.Issue, error) {
	issue, resp, err := c.client.Issues.Edit(ctx, owner, repo, number, &gogithub.IssueRequest{
		State: gogithub.String(state),
	})
	if err != nil {
		return nil, mapError(resp, err)
	}
	return issue, nil
}

// MergePullRequest merges a pull request
func (c *Client) MergePullRequest(
	ctx context.Context,
	owner, repo string,
	number int,
	commitMessage string,
) (*gogithub.PullRequestMergeResult, error) {
	result, resp, err := c.client.PullRequests.Merge(ctx, owner, repo, number, commitMessage, nil)
	if err != nil {
		return nil, mapError(resp, err)
	}
	return result, nil
}

// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package gh

import (
	"context"

	gogithub "github.com/google/go-github/v63/github"
)

// GetRepository returns the repository metadata
func (c *Client) GetRepository(ctx context.Context, owner, name string) (*gogithub.Repository, error) {
	repo, resp, err := c.client.Repositories.Get(ctx, owner, name)
	if err != nil {
		return nil, mapError(resp, err)
	}
	return repo, nil
}

// GetRepositoryByID returns the repository metadata for a GitHub
// repository id, for callers that have no owner and name yet.
func (c *Client) GetRepositoryByID(ctx context.Context, id int64) (*gogithub.Repository, error) {
	repo, resp, err := c.client.Repositories.GetByID(ctx, id)
	if err != nil {
		return nil, mapError(resp, err)
	}
	return repo, nil
}

// ListBranches is a wrapper for the GitHub API to list branches in a repository
func (c *Client) ListBranches(
	ctx context.Context,
	owner, repo string,
	opt *gogithub.BranchListOptions,
) ([]*gogithub.Branch, *gogithub.Response, error) {
	branches, resp, err := c.client.Repositories.ListBranches(ctx, owner, repo, opt)
	if err != nil {
		return nil, resp, mapError(resp, err)
	}
	return branches, resp, nil
}

// ListCommits is a wrapper for the GitHub API to list commits in a repository
func (c *Client) ListCommits(
	ctx context.Context,
	owner, repo string,
	opt *gogithub.CommitsListOptions,
) ([]*gogithub.RepositoryCommit, *gogithub.Response, error) {
	commits, resp, err := c.client.Repositories.ListCommits(ctx, owner, repo, opt)
	if err != nil {
		return nil, resp, mapError(resp, err)
	}
	return commits, resp, nil
}

// ListPullRequests lists pull requests in a repository.
func (c *Client) ListPullRequests(
	ctx context.Context,
	owner, repo string,
	opt *gogithub.PullRequestListOptions,
) ([]*gogithub.PullRequest, *gogithub.Response, error) {
	prs, resp, err := c.client.PullRequests.List(ctx, owner, repo, opt)
	if err != nil {
		return nil, resp, mapError(resp, err)
	}
	return prs, resp, nil
}

// GetPullRequest is a wrapper for the GitHub API to get a pull request
func (c *Client) GetPullRequest(
	ctx context.Context,
	owner, repo string,
	number int,
) (*gogithub.PullRequest, error) {
	pr, resp, err := c.client.PullRequests.Get(ctx, owner, repo, number)
	if err != nil {
		return nil, mapError(resp, err)
	}
	return pr, nil
}

// ListPullRequestFiles is a wrapper for the GitHub API to list files in a
// pull request. The response is returned so that callers can follow
// pagination via resp.NextPage.
func (c *Client) ListPullRequestFiles(
	ctx context.Context,
	owner, repo string,
	prNumber int,
	opt *gogithub.ListOptions,
) ([]*gogithub.CommitFile, *gogithub.Response, error) {
	files, resp, err := c.client.PullRequests.ListFiles(ctx, owner, repo, prNumber, opt)
	if err != nil {
		return nil, resp, mapError(resp, err)
	}
	return files, resp, nil
}

// ListPullRequestReviews is a wrapper for the GitHub API to list reviews
func (c *Client) ListPullRequestReviews(
	ctx context.Context,
	owner, repo string,
	number int,
	opt *gogithub.ListOptions,
) ([]*gogithub.PullRequestReview, *gogithub.Response, error) {
	reviews, resp, err := c.client.PullRequests.ListReviews(ctx, owner, repo, number, opt)
	if err != nil {
		return nil, resp, mapError(resp, err)
	}
	return reviews, resp, nil
}

// ListIssues lists issues in a repository. GitHub's issue listing includes
// pull requests; callers filter on PullRequestLinks.
func (c *Client) ListIssues(
	ctx context.Context,
	owner, repo string,
	opt *gogithub.IssueListByRepoOptions,
) ([]*gogithub.Issue, *gogithub.Response, error) {
	issues, resp, err := c.client.Issues.ListByRepo(ctx, owner, repo, opt)
	if err != nil {
		return nil, resp, mapError(resp, err)
	}
	return issues, resp, nil
}

// GetIssue is a wrapper for the GitHub API to get a single issue
func (c *Client) GetIssue(
	ctx context.Context,
	owner, repo string,
	number int,
) (*gogithub.Issue, error) {
	issue, resp, err := c.client.Issues.Get(ctx, owner, repo, number)
	if err != nil {
		return nil, mapError(resp, err)
	}
	return issue, nil
}

// ListIssueComments lists comments on an issue or pull request. With
// number 0 it lists comments across the whole repository.
func (c *Client) ListIssueComments(
	ctx context.Context,
	owner, repo string,
	number int,
	opt *gogithub.IssueListCommentsOptions,
) ([]*gogithub.IssueComment, *gogithub.Response, error) {
	comments, resp, err := c.client.Issues.ListComments(ctx, owner, repo, number, opt)
	if err != nil {
		return nil, resp, mapError(resp, err)
	}
	return comments, resp, nil
}

// ListCheckRunsForRef lists the check runs for a commit SHA or ref
func (c *Client) ListCheckRunsForRef(
	ctx context.Context,
	owner, repo, ref string,
	opt *gogithub.ListCheckRunsOptions,
) (*gogithub.ListCheckRunsResults, *gogithub.Response, error) {
	results, resp, err := c.client.Checks.ListCheckRunsForRef(ctx, owner, repo, ref, opt)
	if err != nil {
		return nil, resp, mapError(resp, err)
	}
	return results, resp, nil
}

// ListWorkflowRuns lists workflow runs for a repository
func (c *Client) ListWorkflowRuns(
	ctx context.Context,
	owner, repo string,
	opt *gogithub.ListWorkflowRunsOptions,
) (*gogithub.WorkflowRuns, *gogithub.Response, error) {
	runs, resp, err := c.client.Actions.ListRepositoryWorkflowRuns(ctx, owner, repo, opt)
	if err != nil {
		return nil, resp, mapError(resp, err)
	}
	return runs, resp, nil
}

// ListWorkflowJobs lists the jobs of a workflow run
func (c *Client) ListWorkflowJobs(
	ctx context.Context,
	owner, repo string,
	runID int64,
	opt *gogithub.ListWorkflowJobsOptions,
) (*gogithub.Jobs, *gogithub.Response, error) {
	jobs, resp, err := c.client.Actions.ListWorkflowJobs(ctx, owner, repo, runID, opt)
	if err != nil {
		return nil, resp, mapError(resp, err)
	}
	return jobs, resp, nil
}

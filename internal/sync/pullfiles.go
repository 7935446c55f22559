// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package sync

import (
	"context"
	"fmt"

	gogithub "github.com/google/go-github/v63/github"
	"github.com/rs/zerolog"

	"github.com/mindersec/ghmirror/internal/db"
)

// knownFileStatuses are the diff statuses GitHub documents. Anything
// else is coerced to "changed" so the enum column stays closed.
var knownFileStatuses = map[string]bool{
	"added":     true,
	"removed":   true,
	"modified":  true,
	"renamed":   true,
	"copied":    true,
	"changed":   true,
	"unchanged": true,
}

// SyncPullFiles refreshes the cached file diff of one pull request. At
// most MaxFilesPerPr files are cached; patches above MaxPatchBytes are
// stored without patch text. It returns the number of files cached and
// the number of truncated patches.
func (w *Worker) SyncPullFiles(
	ctx context.Context,
	client GitHubFetcher,
	repo db.Repository,
	prNumber int64,
) (int, int, error) {
	headSha := ""
	if pr, err := w.store.GetPullRequest(ctx, db.GetPullRequestParams{
		RepositoryID: repo.ID,
		Number:       prNumber,
	}); err == nil {
		headSha = pr.HeadSha
	}

	files, err := w.fetchFiles(ctx, client, repo, prNumber)
	if err != nil {
		return 0, 0, err
	}

	truncated := 0
	for chunk := range chunks(files, w.cfg.ChunkSize) {
		err := w.store.WithTransaction(ctx, func(qtx db.Querier) error {
			for _, file := range chunk {
				params, wasTruncated := w.fileParams(repo.ID, prNumber, headSha, file)
				if wasTruncated {
					truncated++
				}
				if err := qtx.UpsertPullRequestFile(ctx, params); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			return 0, 0, fmt.Errorf("storing pull request files: %w", err)
		}
	}

	if truncated > 0 {
		zerolog.Ctx(ctx).Info().
			Int64("pull_request", prNumber).
			Int("truncated_patches", truncated).
			Msg("oversized patches stored without patch text")
	}
	return len(files), truncated, nil
}

func (w *Worker) fetchFiles(
	ctx context.Context,
	client GitHubFetcher,
	repo db.Repository,
	prNumber int64,
) ([]*gogithub.CommitFile, error) {
	opt := &gogithub.ListOptions{PerPage: w.cfg.PageSize}

	var files []*gogithub.CommitFile
	for {
		page, resp, err := client.ListPullRequestFiles(ctx, repo.OwnerLogin, repo.Name, int(prNumber), opt)
		if err != nil {
			return nil, fmt.Errorf("listing pull request files: %w", err)
		}
		files = append(files, page...)

		if len(files) >= w.cfg.MaxFilesPerPr {
			files = files[:w.cfg.MaxFilesPerPr]
			zerolog.Ctx(ctx).Warn().
				Int64("pull_request", prNumber).
				Int("cap", w.cfg.MaxFilesPerPr).
				Msg("pull request diff exceeds file cap, remainder not cached")
			return files, nil
		}
		if resp == nil || resp.NextPage == 0 {
			return files, nil
		}
		opt.Page = resp.NextPage
	}
}

func (w *Worker) fileParams(
	repositoryID, prNumber int64,
	headSha string,
	file *gogithub.CommitFile,
) (db.UpsertPullRequestFileParams, bool) {
	status := file.GetStatus()
	if !knownFileStatuses[status] {
		status = "changed"
	}

	patch := nullStr(file.GetPatch())
	truncated := false
	if len(file.GetPatch()) > w.cfg.MaxPatchBytes {
		patch = nullStr("")
		truncated = true
	}

	return db.UpsertPullRequestFileParams{
		RepositoryID:      repositoryID,
		PullRequestNumber: prNumber,
		Filename:          file.GetFilename(),
		Status:            status,
		Additions:         int32(file.GetAdditions()),
		Deletions:         int32(file.GetDeletions()),
		Changes:           int32(file.GetChanges()),
		Patch:             patch,
		HeadSha:           headSha,
		CachedAt:          w.now(),
	}, truncated
}

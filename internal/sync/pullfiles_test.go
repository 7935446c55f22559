// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package sync

import (
	"context"
	"strings"
	"testing"

	gogithub "github.com/google/go-github/v63/github"
	"github.com/stretchr/testify/require"

	"github.com/mindersec/ghmirror/internal/config"
	"github.com/mindersec/ghmirror/internal/db"
	"github.com/mindersec/ghmirror/internal/events/stubs"
)

func commitFile(name, status, patch string) *gogithub.CommitFile {
	return &gogithub.CommitFile{
		Filename:  gogithub.String(name),
		Status:    gogithub.String(status),
		Additions: gogithub.Int(3),
		Deletions: gogithub.Int(1),
		Changes:   gogithub.Int(4),
		Patch:     gogithub.String(patch),
	}
}

func newFilesWorker(store db.Store, fake *fakeGitHub, cfg config.SyncConfig) *Worker {
	provider := func(context.Context, int64) (GitHubFetcher, error) {
		return fake, nil
	}
	return NewWorker(store, provider, &stubs.StubEventer{}, cfg)
}

func TestSyncPullFilesStoresDiff(t *testing.T) {
	t.Parallel()

	store := db.NewMemStore()
	ctx := context.Background()
	fake := &fakeGitHub{
		filePages: [][]*gogithub.CommitFile{{
			commitFile("main.go", "modified", "@@ diff @@"),
			commitFile("new.go", "added", "@@ diff @@"),
		}},
	}
	w := newFilesWorker(store, fake, testSyncConfig())

	_, err := store.UpsertPullRequest(ctx, pullRequestParams(testRepoID, testPR(2, "open", "sha-head")))
	require.NoError(t, err)

	files, truncated, err := w.SyncPullFiles(ctx, fake, testRepository(), 2)
	require.NoError(t, err)
	require.Equal(t, 2, files)
	require.Zero(t, truncated)

	rows, err := store.ListPullRequestFiles(ctx, db.ListPullRequestFilesParams{
		RepositoryID: testRepoID, PullRequestNumber: 2, Limit: 10})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	for _, row := range rows {
		require.Equal(t, "sha-head", row.HeadSha)
		require.True(t, row.Patch.Valid)
	}
}

func TestSyncPullFilesTruncatesOversizedPatch(t *testing.T) {
	t.Parallel()

	store := db.NewMemStore()
	ctx := context.Background()
	cfg := testSyncConfig()
	cfg.MaxPatchBytes = 16
	fake := &fakeGitHub{
		filePages: [][]*gogithub.CommitFile{{
			commitFile("small.go", "modified", "tiny"),
			commitFile("huge.go", "modified", strings.Repeat("x", 64)),
		}},
	}
	w := newFilesWorker(store, fake, cfg)

	files, truncated, err := w.SyncPullFiles(ctx, fake, testRepository(), 2)
	require.NoError(t, err)
	require.Equal(t, 2, files)
	require.Equal(t, 1, truncated)

	rows, err := store.ListPullRequestFiles(ctx, db.ListPullRequestFilesParams{
		RepositoryID: testRepoID, PullRequestNumber: 2, Limit: 10})
	require.NoError(t, err)
	for _, row := range rows {
		switch row.Filename {
		case "small.go":
			require.True(t, row.Patch.Valid)
		case "huge.go":
			require.False(t, row.Patch.Valid)
		}
	}
}

func TestSyncPullFilesCapsFileCount(t *testing.T) {
	t.Parallel()

	store := db.NewMemStore()
	ctx := context.Background()
	cfg := testSyncConfig()
	cfg.MaxFilesPerPr = 4
	cfg.PageSize = 3
	cfg.ChunkSize = 2
	fake := &fakeGitHub{
		filePages: [][]*gogithub.CommitFile{
			{
				commitFile("a.go", "modified", "p"),
				commitFile("b.go", "modified", "p"),
				commitFile("c.go", "modified", "p"),
			},
			{
				commitFile("d.go", "modified", "p"),
				commitFile("e.go", "modified", "p"),
				commitFile("f.go", "modified", "p"),
			},
		},
	}
	w := newFilesWorker(store, fake, cfg)

	files, _, err := w.SyncPullFiles(ctx, fake, testRepository(), 2)
	require.NoError(t, err)
	require.Equal(t, 4, files)

	rows, err := store.ListPullRequestFiles(ctx, db.ListPullRequestFilesParams{
		RepositoryID: testRepoID, PullRequestNumber: 2, Limit: 10})
	require.NoError(t, err)
	require.Len(t, rows, 4)
}

func TestSyncPullFilesCoercesUnknownStatus(t *testing.T) {
	t.Parallel()

	store := db.NewMemStore()
	ctx := context.Background()
	fake := &fakeGitHub{
		filePages: [][]*gogithub.CommitFile{{
			commitFile("odd.go", "resurrected", "p"),
		}},
	}
	w := newFilesWorker(store, fake, testSyncConfig())

	_, _, err := w.SyncPullFiles(ctx, fake, testRepository(), 2)
	require.NoError(t, err)

	rows, err := store.ListPullRequestFiles(ctx, db.ListPullRequestFilesParams{
		RepositoryID: testRepoID, PullRequestNumber: 2, Limit: 10})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, "changed", rows[0].Status)
}

func TestSyncPullFilesFetchError(t *testing.T) {
	t.Parallel()

	store := db.NewMemStore()
	fake := &fakeGitHub{fileErr: context.DeadlineExceeded}
	w := newFilesWorker(store, fake, testSyncConfig())

	files, truncated, err := w.SyncPullFiles(context.Background(), fake, testRepository(), 2)
	require.Error(t, err)
	require.Zero(t, files)
	require.Zero(t, truncated)
}

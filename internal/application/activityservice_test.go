package application_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calebmoore/codereviewer/internal/application"
	"github.com/calebmoore/codereviewer/internal/domain/model"
)

func TestActivityFeed_AggregatesCommitsFilesAndReports(t *testing.T) {
	now := time.Now()
	gh := &mockGitHubClient{
		fetchRepos: func(_ context.Context) ([]model.Repository, error) {
			return []model.Repository{
				{FullName: "alice/widgets", Owner: "alice", Name: "widgets"},
				{FullName: "alice/gadgets", Owner: "alice", Name: "gadgets"},
			}, nil
		},
		fetchCommits: func(_ context.Context, repoFullName string, _ int) ([]model.CommitActivity, error) {
			if repoFullName == "alice/gadgets" {
				return []model.CommitActivity{
					{SHA: "bbbbbbb", Message: "newer", RepoFullName: repoFullName, Date: now},
				}, nil
			}
			return []model.CommitActivity{
				{SHA: "aaaaaaa", Message: "older", RepoFullName: repoFullName, Date: now.Add(-time.Hour)},
			}, nil
		},
		fetchPRs: func(_ context.Context, repoFullName, state string) ([]model.PullRequest, error) {
			assert.Equal(t, "all", state)
			return []model.PullRequest{{Number: 3, Title: "Tidy up", RepoFullName: repoFullName}}, nil
		},
		fetchPRFiles: func(_ context.Context, _ string, _ int) ([]model.PRFile, error) {
			return []model.PRFile{{Filename: "pkg/a.go", Status: "modified", Additions: 4, Deletions: 1, Changes: 5}}, nil
		},
	}

	reports := &mockReportStore{}
	_, err := reports.Save(context.Background(), model.Report{Summary: "clean"})
	require.NoError(t, err)

	provider := application.NewGitHubClientProvider(gh, "alice")
	svc := application.NewActivityService(provider, reports, testLogger())

	feed, err := svc.Feed(context.Background())
	require.NoError(t, err)

	require.Len(t, feed.Commits, 2)
	assert.Equal(t, "bbbbbbb", feed.Commits[0].SHA, "commits sorted newest first")

	require.Len(t, feed.FileChanges, 2)
	assert.Equal(t, "pkg/a.go", feed.FileChanges[0].Filename)
	assert.Equal(t, 3, feed.FileChanges[0].PRNumber)
	assert.Equal(t, "Tidy up", feed.FileChanges[0].PRTitle)

	require.Len(t, feed.Reports, 1)
	assert.Equal(t, "clean", feed.Reports[0].Summary)
}

func TestActivityFeed_PartialFailureTolerated(t *testing.T) {
	gh := &mockGitHubClient{
		fetchRepos: func(_ context.Context) ([]model.Repository, error) {
			return []model.Repository{{FullName: "alice/widgets"}}, nil
		},
		fetchCommits: func(_ context.Context, _ string, _ int) ([]model.CommitActivity, error) {
			return nil, errors.New("rate limited")
		},
		fetchPRs: func(_ context.Context, _, _ string) ([]model.PullRequest, error) {
			return nil, errors.New("rate limited")
		},
	}

	provider := application.NewGitHubClientProvider(gh, "alice")
	svc := application.NewActivityService(provider, &mockReportStore{}, testLogger())

	feed, err := svc.Feed(context.Background())
	require.NoError(t, err)
	assert.Empty(t, feed.Commits)
	assert.Empty(t, feed.FileChanges)
}

func TestActivityFeed_NoClientReturnsReportsOnly(t *testing.T) {
	reports := &mockReportStore{}
	_, err := reports.Save(context.Background(), model.Report{Summary: "stored"})
	require.NoError(t, err)

	provider := application.NewGitHubClientProvider(nil, "")
	svc := application.NewActivityService(provider, reports, testLogger())

	feed, ferr := svc.Feed(context.Background())
	require.NoError(t, ferr)
	assert.Empty(t, feed.Commits)
	require.Len(t, feed.Reports, 1)
}

package driven

import (
	"context"

	"github.com/calebmoore/codereviewer/internal/domain/model"
)

// CommitFileRequest carries everything the GitHub contents API needs to
// author a commit for a single file. SHA is the content SHA of the file as
// last fetched; an empty SHA creates the file instead of updating it.
type CommitFileRequest struct {
	RepoFullName string
	Path         string
	Content      string
	Message      string
	SHA          string
	Branch       string
}

// CommitFileResult reports a successful contents write. NewSHA is the
// content SHA of the file as it now exists on the branch; callers must use
// it for any subsequent write to the same path.
type CommitFileResult struct {
	NewSHA    string
	CommitURL string
}

// GitHubClient defines the driven port for interacting with the GitHub API.
// Read methods fetch data the dashboard browses; write methods mutate
// repository state (file commits, branches, merges).
type GitHubClient interface {
	// Read methods

	// FetchRepositories lists the authenticated user's repositories,
	// most recently updated first.
	FetchRepositories(ctx context.Context) ([]model.Repository, error)
	// FetchRepository returns metadata for a single repository,
	// including its default branch.
	FetchRepository(ctx context.Context, repoFullName string) (*model.Repository, error)
	// FetchPullRequests lists pull requests for the repository filtered by
	// state ("open", "closed", or "all").
	FetchPullRequests(ctx context.Context, repoFullName string, state string) ([]model.PullRequest, error)
	// FetchPullRequest returns a single pull request with head/base branch info.
	FetchPullRequest(ctx context.Context, repoFullName string, number int) (*model.PullRequest, error)
	// FetchPullRequestFiles returns the changed files of a pull request,
	// including their unified diff patches where available.
	FetchPullRequestFiles(ctx context.Context, repoFullName string, number int) ([]model.PRFile, error)
	// FetchRecentCommits returns up to limit recent commits on the
	// repository's default branch.
	FetchRecentCommits(ctx context.Context, repoFullName string, limit int) ([]model.CommitActivity, error)
	// FetchFileContent returns the decoded content of a file at the given
	// ref together with its content SHA (the optimistic concurrency token
	// required to write the file back).
	FetchFileContent(ctx context.Context, repoFullName, path, ref string) (content string, sha string, err error)

	// Write methods

	// CommitFile writes a file to a branch via the contents API. A stale
	// SHA in the request is rejected by GitHub as a conflict; the error is
	// returned verbatim with no retry.
	CommitFile(ctx context.Context, req CommitFileRequest) (*CommitFileResult, error)
	// CreateBranch creates a new branch pointing at the tip of baseBranch.
	CreateBranch(ctx context.Context, repoFullName, baseBranch, newBranch string) error
	// MergePullRequest merges an open pull request using the default merge method.
	MergePullRequest(ctx context.Context, repoFullName string, number int) error

	// ValidateToken verifies that the given GitHub personal access token is
	// valid and returns the authenticated username on success.
	ValidateToken(ctx context.Context, token string) (username string, err error)
}

// Package github implements the GitHubClient port using the go-github library.
package github

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	gh "github.com/google/go-github/v82/github"
	"github.com/gregjones/httpcache"

	"github.com/gofri/go-github-ratelimit/v2/github_ratelimit"

	"github.com/calebmoore/codereviewer/internal/domain/model"
	"github.com/calebmoore/codereviewer/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.GitHubClient = (*Client)(nil)

// Client implements the driven.GitHubClient port using the go-github library.
type Client struct {
	gh       *gh.Client
	username string
}

// NewClient creates a new GitHub API client with the following transport stack:
//  1. httpcache (ETag-based conditional request caching)
//  2. go-github-ratelimit (secondary rate limit middleware, sleeps on 429)
//  3. go-github (GitHub REST API client with PAT auth)
func NewClient(token, username string) *Client {
	cacheTransport := httpcache.NewMemoryCacheTransport()
	rateLimitClient := github_ratelimit.NewClient(cacheTransport)
	client := gh.NewClient(rateLimitClient).WithAuthToken(token)

	return &Client{
		gh:       client,
		username: username,
	}
}

// NewClientWithHTTPClient creates a Client with a custom http.Client and base URL.
// This constructor is intended for testing, allowing injection of an httptest server.
func NewClientWithHTTPClient(httpClient *http.Client, baseURL, username string) (*Client, error) {
	client := gh.NewClient(httpClient)

	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing base URL: %w", err)
	}
	client.BaseURL = u

	return &Client{
		gh:       client,
		username: username,
	}, nil
}

// Username returns the login the client was created for.
func (c *Client) Username() string {
	return c.username
}

// ValidateToken verifies a personal access token by fetching the
// authenticated user with a one-shot client. Returns the login on success.
func (c *Client) ValidateToken(ctx context.Context, token string) (string, error) {
	probe := gh.NewClient(nil).WithAuthToken(token)
	probe.BaseURL = c.gh.BaseURL

	user, resp, err := probe.Users.Get(ctx, "")
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusUnauthorized {
			return "", fmt.Errorf("github token rejected: %w", err)
		}
		return "", fmt.Errorf("validating token: %w", err)
	}

	return user.GetLogin(), nil
}

// FetchRepositories lists the authenticated user's repositories, most
// recently updated first. It handles pagination automatically and maps
// go-github types to domain model types.
func (c *Client) FetchRepositories(ctx context.Context) ([]model.Repository, error) {
	opts := &gh.RepositoryListByAuthenticatedUserOptions{
		Sort:      "updated",
		Direction: "desc",
		ListOptions: gh.ListOptions{
			PerPage: 100,
		},
	}

	var allRepos []model.Repository

	for {
		repos, resp, err := c.gh.Repositories.ListByAuthenticatedUser(ctx, opts)
		if err != nil {
			return nil, fmt.Errorf("listing repositories (page %d): %w", opts.Page, err)
		}

		logRateLimit(resp, "repos", opts.Page, len(repos))

		for _, repo := range repos {
			allRepos = append(allRepos, mapRepository(repo))
		}

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	if allRepos == nil {
		allRepos = []model.Repository{}
	}

	return allRepos, nil
}

// FetchRepository returns metadata for a single repository, including its
// default branch.
func (c *Client) FetchRepository(ctx context.Context, repoFullName string) (*model.Repository, error) {
	owner, repo, err := splitRepo(repoFullName)
	if err != nil {
		return nil, err
	}

	r, resp, err := c.gh.Repositories.Get(ctx, owner, repo)
	if err != nil {
		return nil, fmt.Errorf("fetching repository %s: %w", repoFullName, err)
	}

	logRateLimit(resp, repoFullName, 0, 1)

	mapped := mapRepository(r)
	return &mapped, nil
}

// FetchPullRequests retrieves pull requests for the given repository filtered by state.
// Valid state values are "open", "closed", or "all" (as accepted by the GitHub API).
// It handles pagination automatically and maps go-github types to domain model types.
func (c *Client) FetchPullRequests(ctx context.Context, repoFullName string, state string) ([]model.PullRequest, error) {
	owner, repo, err := splitRepo(repoFullName)
	if err != nil {
		return nil, err
	}

	opts := &gh.PullRequestListOptions{
		State:     state,
		Sort:      "updated",
		Direction: "desc",
		ListOptions: gh.ListOptions{
			PerPage: 100,
		},
	}

	var allPRs []model.PullRequest

	for {
		prs, resp, err := c.gh.PullRequests.List(ctx, owner, repo, opts)
		if err != nil {
			return nil, fmt.Errorf("listing pull requests for %s (page %d): %w", repoFullName, opts.Page, err)
		}

		logRateLimit(resp, repoFullName, opts.Page, len(prs))

		for _, pr := range prs {
			allPRs = append(allPRs, mapPullRequest(pr, repoFullName))
		}

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	if allPRs == nil {
		allPRs = []model.PullRequest{}
	}

	return allPRs, nil
}

// FetchPullRequest returns a single pull request with head/base branch info.
func (c *Client) FetchPullRequest(ctx context.Context, repoFullName string, number int) (*model.PullRequest, error) {
	owner, repo, err := splitRepo(repoFullName)
	if err != nil {
		return nil, err
	}

	pr, resp, err := c.gh.PullRequests.Get(ctx, owner, repo, number)
	if err != nil {
		return nil, fmt.Errorf("fetching PR %s#%d: %w", repoFullName, number, err)
	}

	logRateLimit(resp, fmt.Sprintf("%s#%d", repoFullName, number), 0, 1)

	mapped := mapPullRequest(pr, repoFullName)
	return &mapped, nil
}

// FetchPullRequestFiles returns the changed files of a pull request.
// It handles pagination automatically.
func (c *Client) FetchPullRequestFiles(ctx context.Context, repoFullName string, number int) ([]model.PRFile, error) {
	owner, repo, err := splitRepo(repoFullName)
	if err != nil {
		return nil, err
	}

	opts := &gh.ListOptions{PerPage: 100}
	var allFiles []model.PRFile

	for {
		files, resp, err := c.gh.PullRequests.ListFiles(ctx, owner, repo, number, opts)
		if err != nil {
			return nil, fmt.Errorf("listing files for %s#%d (page %d): %w", repoFullName, number, opts.Page, err)
		}

		logRateLimit(resp, fmt.Sprintf("%s#%d/files", repoFullName, number), opts.Page, len(files))

		for _, f := range files {
			allFiles = append(allFiles, model.PRFile{
				Filename:  f.GetFilename(),
				Status:    f.GetStatus(),
				Additions: f.GetAdditions(),
				Deletions: f.GetDeletions(),
				Changes:   f.GetChanges(),
				Patch:     f.GetPatch(),
				SHA:       f.GetSHA(),
				RawURL:    f.GetRawURL(),
			})
		}

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	if allFiles == nil {
		allFiles = []model.PRFile{}
	}

	return allFiles, nil
}

// FetchRecentCommits returns up to limit recent commits on the repository's
// default branch.
func (c *Client) FetchRecentCommits(ctx context.Context, repoFullName string, limit int) ([]model.CommitActivity, error) {
	owner, repo, err := splitRepo(repoFullName)
	if err != nil {
		return nil, err
	}

	opts := &gh.CommitsListOptions{
		ListOptions: gh.ListOptions{PerPage: limit},
	}

	commits, resp, err := c.gh.Repositories.ListCommits(ctx, owner, repo, opts)
	if err != nil {
		return nil, fmt.Errorf("listing commits for %s: %w", repoFullName, err)
	}

	logRateLimit(resp, repoFullName+"/commits", 0, len(commits))

	result := make([]model.CommitActivity, 0, len(commits))
	for _, commit := range commits {
		result = append(result, mapCommit(commit, repoFullName))
	}

	return result, nil
}

// FetchFileContent returns the decoded content of a file at the given ref
// together with its content SHA. The SHA is required for any later write to
// the same path; a write with a stale SHA is rejected by GitHub.
func (c *Client) FetchFileContent(ctx context.Context, repoFullName, path, ref string) (string, string, error) {
	owner, repo, err := splitRepo(repoFullName)
	if err != nil {
		return "", "", err
	}

	opts := &gh.RepositoryContentGetOptions{Ref: ref}
	fileContent, _, resp, err := c.gh.Repositories.GetContents(ctx, owner, repo, path, opts)
	if err != nil {
		return "", "", fmt.Errorf("fetching %s:%s@%s: %w", repoFullName, path, ref, err)
	}
	if fileContent == nil {
		return "", "", fmt.Errorf("%s:%s@%s is a directory, not a file", repoFullName, path, ref)
	}

	logRateLimit(resp, repoFullName+"/contents", 0, 1)

	content, err := fileContent.GetContent()
	if err != nil {
		return "", "", fmt.Errorf("decoding %s:%s@%s: %w", repoFullName, path, ref, err)
	}

	return content, fileContent.GetSHA(), nil
}

// CommitFile writes a file to a branch via the contents API. An empty SHA in
// the request creates the file; otherwise the file is updated and GitHub
// rejects the write with a 409 if the SHA no longer matches the branch tip.
func (c *Client) CommitFile(ctx context.Context, req driven.CommitFileRequest) (*driven.CommitFileResult, error) {
	owner, repo, err := splitRepo(req.RepoFullName)
	if err != nil {
		return nil, err
	}

	opts := &gh.RepositoryContentFileOptions{
		Message: gh.Ptr(req.Message),
		Content: []byte(req.Content),
		Branch:  gh.Ptr(req.Branch),
	}

	var res *gh.RepositoryContentResponse
	var resp *gh.Response
	if req.SHA == "" {
		res, resp, err = c.gh.Repositories.CreateFile(ctx, owner, repo, req.Path, opts)
	} else {
		opts.SHA = gh.Ptr(req.SHA)
		res, resp, err = c.gh.Repositories.UpdateFile(ctx, owner, repo, req.Path, opts)
	}
	if err != nil {
		return nil, fmt.Errorf("committing %s:%s on %s: %w", req.RepoFullName, req.Path, req.Branch, err)
	}

	logRateLimit(resp, req.RepoFullName+"/contents", 0, 1)

	return &driven.CommitFileResult{
		NewSHA:    res.Content.GetSHA(),
		CommitURL: res.Commit.GetHTMLURL(),
	}, nil
}

// CreateBranch creates a new branch pointing at the tip of baseBranch.
func (c *Client) CreateBranch(ctx context.Context, repoFullName, baseBranch, newBranch string) error {
	owner, repo, err := splitRepo(repoFullName)
	if err != nil {
		return err
	}

	baseRef, _, err := c.gh.Git.GetRef(ctx, owner, repo, "refs/heads/"+baseBranch)
	if err != nil {
		return fmt.Errorf("resolving branch %s on %s: %w", baseBranch, repoFullName, err)
	}

	newRef := gh.CreateRef{
		Ref: "refs/heads/" + newBranch,
		SHA: baseRef.Object.GetSHA(),
	}
	if _, _, err := c.gh.Git.CreateRef(ctx, owner, repo, newRef); err != nil {
		return fmt.Errorf("creating branch %s on %s: %w", newBranch, repoFullName, err)
	}

	return nil
}

// MergePullRequest merges an open pull request using the default merge method.
func (c *Client) MergePullRequest(ctx context.Context, repoFullName string, number int) error {
	owner, repo, err := splitRepo(repoFullName)
	if err != nil {
		return err
	}

	result, _, err := c.gh.PullRequests.Merge(ctx, owner, repo, number, "", nil)
	if err != nil {
		return fmt.Errorf("merging %s#%d: %w", repoFullName, number, err)
	}
	if !result.GetMerged() {
		return fmt.Errorf("merging %s#%d: %s", repoFullName, number, result.GetMessage())
	}

	return nil
}

// mapRepository converts a go-github Repository to a domain model Repository.
// It uses GetXxx() helper methods exclusively to avoid nil pointer panics.
func mapRepository(r *gh.Repository) model.Repository {
	return model.Repository{
		ID:            r.GetID(),
		FullName:      r.GetFullName(),
		Owner:         r.GetOwner().GetLogin(),
		Name:          r.GetName(),
		Description:   r.GetDescription(),
		DefaultBranch: r.GetDefaultBranch(),
		Private:       r.GetPrivate(),
		URL:           r.GetHTMLURL(),
		UpdatedAt:     r.GetUpdatedAt().Time,
	}
}

// mapPullRequest converts a go-github PullRequest to a domain model PullRequest.
func mapPullRequest(pr *gh.PullRequest, repoFullName string) model.PullRequest {
	status := model.PRStatusOpen
	if !pr.GetMergedAt().IsZero() {
		status = model.PRStatusMerged
	} else if pr.GetState() == "closed" {
		status = model.PRStatusClosed
	}

	return model.PullRequest{
		ID:           pr.GetID(),
		Number:       pr.GetNumber(),
		RepoFullName: repoFullName,
		Title:        pr.GetTitle(),
		Body:         pr.GetBody(),
		Author:       pr.GetUser().GetLogin(),
		Status:       status,
		IsDraft:      pr.GetDraft(),
		URL:          pr.GetHTMLURL(),
		Branch:       pr.GetHead().GetRef(),
		BaseBranch:   pr.GetBase().GetRef(),
		HeadSHA:      pr.GetHead().GetSHA(),
		OpenedAt:     pr.GetCreatedAt().Time,
		UpdatedAt:    pr.GetUpdatedAt().Time,
	}
}

// mapCommit converts a go-github RepositoryCommit to a CommitActivity.
// The SHA is abbreviated to 7 characters for display.
func mapCommit(commit *gh.RepositoryCommit, repoFullName string) model.CommitActivity {
	sha := commit.GetSHA()
	if len(sha) > 7 {
		sha = sha[:7]
	}

	message := commit.GetCommit().GetMessage()
	if i := strings.IndexByte(message, '\n'); i >= 0 {
		message = message[:i]
	}

	author := commit.GetCommit().GetAuthor().GetName()
	if login := commit.GetAuthor().GetLogin(); login != "" {
		author = login
	}

	return model.CommitActivity{
		SHA:          sha,
		Message:      message,
		Author:       author,
		Date:         commit.GetCommit().GetAuthor().GetDate().Time,
		RepoFullName: repoFullName,
		URL:          commit.GetHTMLURL(),
	}
}

// logRateLimit logs the GitHub API rate limit status after each call.
func logRateLimit(resp *gh.Response, endpoint string, page, count int) {
	if resp == nil {
		return
	}

	slog.Debug("github api call",
		"endpoint", endpoint,
		"page", page,
		"count", count,
		"rate_remaining", resp.Rate.Remaining,
		"rate_limit", resp.Rate.Limit,
	)

	if resp.Rate.Remaining < 100 {
		slog.Warn("github rate limit low",
			"remaining", resp.Rate.Remaining,
			"reset_in", time.Until(resp.Rate.Reset.Time).Round(time.Second),
		)
	}
}

// splitRepo splits a "owner/repo" string into its two components.
func splitRepo(fullName string) (string, string, error) {
	parts := strings.SplitN(fullName, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid repo name %q: expected owner/repo", fullName)
	}
	return parts[0], parts[1], nil
}

// Package application contains use-case orchestration services.
package application

import (
	"context"
	"log/slog"
	"sort"

	"github.com/calebmoore/codereviewer/internal/domain/model"
	"github.com/calebmoore/codereviewer/internal/domain/port/driven"
)

// Feed size caps. The activity view is a glance surface, not a log browser.
const (
	maxFeedRepos       = 5
	commitsPerRepo     = 3
	prsPerRepo         = 2
	filesPerPR         = 5
	maxFeedCommits     = 15
	maxFeedFileChanges = 15
	maxFeedReports     = 10
)

// ActivityFeed aggregates recent commits, recent PR file changes, and stored
// analysis reports into the dashboard's activity view.
type ActivityFeed struct {
	Commits     []model.CommitActivity     `json:"commits"`
	FileChanges []model.FileChangeActivity `json:"file_changes"`
	Reports     []model.Report             `json:"analyses"`
}

// ActivityService assembles the activity feed from the GitHub client and the
// report store. Partial failure is tolerated: a repository that cannot be
// listed simply contributes nothing to the feed.
type ActivityService struct {
	provider *GitHubClientProvider
	reports  driven.ReportStore
	logger   *slog.Logger
}

// NewActivityService creates an ActivityService with the required dependencies.
func NewActivityService(provider *GitHubClientProvider, reports driven.ReportStore, logger *slog.Logger) *ActivityService {
	return &ActivityService{provider: provider, reports: reports, logger: logger}
}

// Feed builds the activity feed. Without a GitHub client the feed contains
// only the stored analysis reports.
func (s *ActivityService) Feed(ctx context.Context) (*ActivityFeed, error) {
	feed := &ActivityFeed{
		Commits:     []model.CommitActivity{},
		FileChanges: []model.FileChangeActivity{},
		Reports:     []model.Report{},
	}

	reports, err := s.reports.ListRecent(ctx, maxFeedReports)
	if err != nil {
		return nil, err
	}
	feed.Reports = reports

	gh := s.provider.Get()
	if gh == nil {
		return feed, nil
	}

	repos, err := gh.FetchRepositories(ctx)
	if err != nil {
		s.logger.Warn("activity feed: listing repositories failed", "error", err)
		return feed, nil
	}
	if len(repos) > maxFeedRepos {
		repos = repos[:maxFeedRepos]
	}

	for _, repo := range repos {
		commits, err := gh.FetchRecentCommits(ctx, repo.FullName, commitsPerRepo)
		if err != nil {
			s.logger.Warn("activity feed: fetching commits failed", "repo", repo.FullName, "error", err)
		} else {
			feed.Commits = append(feed.Commits, commits...)
		}

		feed.FileChanges = append(feed.FileChanges, s.recentFileChanges(ctx, gh, repo.FullName)...)
	}

	sort.Slice(feed.Commits, func(i, j int) bool {
		return feed.Commits[i].Date.After(feed.Commits[j].Date)
	})
	if len(feed.Commits) > maxFeedCommits {
		feed.Commits = feed.Commits[:maxFeedCommits]
	}
	if len(feed.FileChanges) > maxFeedFileChanges {
		feed.FileChanges = feed.FileChanges[:maxFeedFileChanges]
	}

	return feed, nil
}

// recentFileChanges collects changed files from the repository's most
// recently updated pull requests.
func (s *ActivityService) recentFileChanges(ctx context.Context, gh driven.GitHubClient, repoFullName string) []model.FileChangeActivity {
	prs, err := gh.FetchPullRequests(ctx, repoFullName, "all")
	if err != nil {
		s.logger.Warn("activity feed: listing PRs failed", "repo", repoFullName, "error", err)
		return nil
	}
	if len(prs) > prsPerRepo {
		prs = prs[:prsPerRepo]
	}

	var changes []model.FileChangeActivity
	for _, pr := range prs {
		files, err := gh.FetchPullRequestFiles(ctx, repoFullName, pr.Number)
		if err != nil {
			s.logger.Warn("activity feed: fetching PR files failed", "repo", repoFullName, "pr", pr.Number, "error", err)
			continue
		}
		if len(files) > filesPerPR {
			files = files[:filesPerPR]
		}
		for _, f := range files {
			changes = append(changes, model.FileChangeActivity{
				Filename:     f.Filename,
				Status:       f.Status,
				Additions:    f.Additions,
				Deletions:    f.Deletions,
				Changes:      f.Changes,
				PRNumber:     pr.Number,
				PRTitle:      pr.Title,
				RepoFullName: repoFullName,
			})
		}
	}
	return changes
}

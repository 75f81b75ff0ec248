package application

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/calebmoore/codereviewer/internal/domain/port/driven"
)

// Manager owns the live workspaces, keyed by their session ID. Workspaces
// are session-scoped and in-memory only; nothing about them is persisted
// beyond the analysis reports they produce.
type Manager struct {
	provider *GitHubClientProvider
	analyzer driven.Analyzer
	reports  driven.ReportStore
	fixDelay time.Duration
	logger   *slog.Logger

	mu         sync.RWMutex
	workspaces map[string]*Workspace
}

// NewManager creates a workspace manager. fixDelay is the inter-item
// throttle used by each workspace's auto-fix sequencer.
func NewManager(
	provider *GitHubClientProvider,
	analyzer driven.Analyzer,
	reports driven.ReportStore,
	fixDelay time.Duration,
	logger *slog.Logger,
) *Manager {
	return &Manager{
		provider:   provider,
		analyzer:   analyzer,
		reports:    reports,
		fixDelay:   fixDelay,
		logger:     logger,
		workspaces: make(map[string]*Workspace),
	}
}

// Create builds a workspace for the repository, resolving the branch
// precedence inputs up front: the pull request's head branch when prNumber
// is non-zero, and the repository's default branch. Resolution failures for
// the PR are fatal (the caller asked for PR context); a missing default
// branch falls through to the literal fallback at open time.
func (m *Manager) Create(ctx context.Context, owner, repo string, prNumber int) (*Workspace, error) {
	gh := m.provider.Get()
	if gh == nil {
		return nil, ErrNotAuthenticated
	}

	fullName := owner + "/" + repo

	var prBranch string
	if prNumber > 0 {
		pr, err := gh.FetchPullRequest(ctx, fullName, prNumber)
		if err != nil {
			return nil, fmt.Errorf("fetching PR %s#%d: %w", fullName, prNumber, err)
		}
		prBranch = pr.Branch
	}

	var defaultBranch string
	if r, err := gh.FetchRepository(ctx, fullName); err != nil {
		m.logger.Warn("could not resolve default branch", "repo", fullName, "error", err)
	} else {
		defaultBranch = r.DefaultBranch
	}

	ws := NewWorkspace(m.provider, m.analyzer, m.reports, WorkspaceConfig{
		Owner:         owner,
		Repo:          repo,
		PRNumber:      prNumber,
		PRBranch:      prBranch,
		DefaultBranch: defaultBranch,
		FixDelay:      m.fixDelay,
		AnalyzeOnOpen: true,
	}, m.logger)

	m.mu.Lock()
	m.workspaces[ws.ID] = ws
	m.mu.Unlock()

	return ws, nil
}

// Get returns the workspace with the given ID, or nil if it does not exist.
func (m *Manager) Get(id string) *Workspace {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.workspaces[id]
}

// Delete removes a workspace. In-flight requests against it simply complete
// against the orphaned object; their results are no longer observable.
func (m *Manager) Delete(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.workspaces, id)
}

// Count returns the number of live workspaces.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.workspaces)
}

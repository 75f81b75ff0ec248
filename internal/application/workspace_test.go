package application_test

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calebmoore/codereviewer/internal/application"
	"github.com/calebmoore/codereviewer/internal/domain/model"
	"github.com/calebmoore/codereviewer/internal/domain/port/driven"
)

// --- Mock implementations ---

type mockGitHubClient struct {
	fetchFile    func(ctx context.Context, repoFullName, path, ref string) (string, string, error)
	commitFile   func(ctx context.Context, req driven.CommitFileRequest) (*driven.CommitFileResult, error)
	fetchPR      func(ctx context.Context, repoFullName string, number int) (*model.PullRequest, error)
	fetchRepo    func(ctx context.Context, repoFullName string) (*model.Repository, error)
	fetchRepos   func(ctx context.Context) ([]model.Repository, error)
	fetchPRs     func(ctx context.Context, repoFullName, state string) ([]model.PullRequest, error)
	fetchPRFiles func(ctx context.Context, repoFullName string, number int) ([]model.PRFile, error)
	fetchCommits func(ctx context.Context, repoFullName string, limit int) ([]model.CommitActivity, error)
	commitCalls  []driven.CommitFileRequest
}

func (m *mockGitHubClient) FetchRepositories(ctx context.Context) ([]model.Repository, error) {
	if m.fetchRepos != nil {
		return m.fetchRepos(ctx)
	}
	return nil, nil
}

func (m *mockGitHubClient) FetchRepository(ctx context.Context, repoFullName string) (*model.Repository, error) {
	if m.fetchRepo != nil {
		return m.fetchRepo(ctx, repoFullName)
	}
	return &model.Repository{FullName: repoFullName, DefaultBranch: "main"}, nil
}

func (m *mockGitHubClient) FetchPullRequests(ctx context.Context, repoFullName string, state string) ([]model.PullRequest, error) {
	if m.fetchPRs != nil {
		return m.fetchPRs(ctx, repoFullName, state)
	}
	return nil, nil
}

func (m *mockGitHubClient) FetchPullRequest(ctx context.Context, repoFullName string, number int) (*model.PullRequest, error) {
	if m.fetchPR != nil {
		return m.fetchPR(ctx, repoFullName, number)
	}
	return &model.PullRequest{Number: number, Branch: "feat-x", BaseBranch: "main"}, nil
}

func (m *mockGitHubClient) FetchPullRequestFiles(ctx context.Context, repoFullName string, number int) ([]model.PRFile, error) {
	if m.fetchPRFiles != nil {
		return m.fetchPRFiles(ctx, repoFullName, number)
	}
	return nil, nil
}

func (m *mockGitHubClient) FetchRecentCommits(ctx context.Context, repoFullName string, limit int) ([]model.CommitActivity, error) {
	if m.fetchCommits != nil {
		return m.fetchCommits(ctx, repoFullName, limit)
	}
	return nil, nil
}

func (m *mockGitHubClient) FetchFileContent(ctx context.Context, repoFullName, path, ref string) (string, string, error) {
	return m.fetchFile(ctx, repoFullName, path, ref)
}

func (m *mockGitHubClient) CommitFile(ctx context.Context, req driven.CommitFileRequest) (*driven.CommitFileResult, error) {
	m.commitCalls = append(m.commitCalls, req)
	return m.commitFile(ctx, req)
}

func (m *mockGitHubClient) CreateBranch(_ context.Context, _, _, _ string) error {
	return nil
}

func (m *mockGitHubClient) MergePullRequest(_ context.Context, _ string, _ int) error {
	return nil
}

func (m *mockGitHubClient) ValidateToken(_ context.Context, _ string) (string, error) {
	return "testuser", nil
}

type fixCall struct {
	Code  string
	Issue model.Issue
}

type mockAnalyzer struct {
	analyze  func(ctx context.Context, code, filename string) (*model.Report, error)
	genFix   func(ctx context.Context, code string, issue model.Issue) (string, error)
	chat     func(ctx context.Context, req driven.ChatRequest) (*model.ChatReply, error)
	fixCalls []fixCall
}

func (m *mockAnalyzer) AnalyzeCode(ctx context.Context, code, filename string) (*model.Report, error) {
	if m.analyze != nil {
		return m.analyze(ctx, code, filename)
	}
	return &model.Report{Summary: "ok", Issues: []model.Issue{}}, nil
}

func (m *mockAnalyzer) AnalyzeDiff(_ context.Context, _ string) (*model.Report, error) {
	return &model.Report{}, nil
}

func (m *mockAnalyzer) GenerateFix(ctx context.Context, code string, issue model.Issue) (string, error) {
	m.fixCalls = append(m.fixCalls, fixCall{Code: code, Issue: issue})
	if m.genFix != nil {
		return m.genFix(ctx, code, issue)
	}
	return code, nil
}

func (m *mockAnalyzer) Chat(ctx context.Context, req driven.ChatRequest) (*model.ChatReply, error) {
	return m.chat(ctx, req)
}

type mockReportStore struct {
	saved []model.Report
}

func (m *mockReportStore) Save(_ context.Context, report model.Report) (int64, error) {
	m.saved = append(m.saved, report)
	return int64(len(m.saved)), nil
}

func (m *mockReportStore) ListRecent(_ context.Context, _ int) ([]model.Report, error) {
	return m.saved, nil
}

// --- Helpers ---

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func issuesReport(msgs ...string) *model.Report {
	issues := make([]model.Issue, 0, len(msgs))
	for _, msg := range msgs {
		issues = append(issues, model.Issue{Category: "Logic", Severity: model.SeverityWarning, Message: msg})
	}
	return &model.Report{Summary: "found issues", Issues: issues}
}

// newOpenWorkspace builds a workspace with the file "main.go" opened at
// content "original" and SHA "sha-1".
func newOpenWorkspace(t *testing.T, gh *mockGitHubClient, an *mockAnalyzer, prBranch, defaultBranch string) *application.Workspace {
	t.Helper()

	if gh.fetchFile == nil {
		gh.fetchFile = func(_ context.Context, _, _, _ string) (string, string, error) {
			return "original", "sha-1", nil
		}
	}

	provider := application.NewGitHubClientProvider(gh, "testuser")
	ws := application.NewWorkspace(provider, an, &mockReportStore{}, application.WorkspaceConfig{
		Owner:         "alice",
		Repo:          "widgets",
		PRBranch:      prBranch,
		DefaultBranch: defaultBranch,
	}, testLogger())
	require.NoError(t, ws.OpenFile(context.Background(), "main.go", ""))
	return ws
}

// --- Open / analyze ---

func TestOpenFile_LoadsBothBuffers(t *testing.T) {
	gh := &mockGitHubClient{}
	an := &mockAnalyzer{}

	ws := newOpenWorkspace(t, gh, an, "", "develop")

	state := ws.Snapshot()
	assert.Equal(t, "original", state.Reference)
	assert.Equal(t, "original", state.Working)
	assert.False(t, state.ReadOnly)
	assert.False(t, state.Dirty)
	assert.Equal(t, "sha-1", state.File.SHA)
	assert.Equal(t, "develop", state.File.Branch)
}

func TestOpenFile_FetchFailureIsSentinel(t *testing.T) {
	gh := &mockGitHubClient{
		fetchFile: func(_ context.Context, _, _, _ string) (string, string, error) {
			return "", "", errors.New("404 not found")
		},
	}
	provider := application.NewGitHubClientProvider(gh, "testuser")
	ws := application.NewWorkspace(provider, &mockAnalyzer{}, &mockReportStore{}, application.WorkspaceConfig{Owner: "alice", Repo: "widgets"}, testLogger())

	err := ws.OpenFile(context.Background(), "missing.go", "")
	require.Error(t, err)

	state := ws.Snapshot()
	assert.True(t, state.ReadOnly)
	assert.False(t, state.File.IsOpen())
	assert.Contains(t, state.Working, "Failed to load")
}

func TestAnalyze_ReplacesIssueListAndAssignsIDs(t *testing.T) {
	an := &mockAnalyzer{
		analyze: func(_ context.Context, _, _ string) (*model.Report, error) {
			return issuesReport("unchecked error", "shadowed variable"), nil
		},
	}
	ws := newOpenWorkspace(t, &mockGitHubClient{}, an, "", "main")

	_, err := ws.Analyze(context.Background())
	require.NoError(t, err)

	issues := ws.Issues()
	require.Len(t, issues, 2)
	assert.NotEmpty(t, issues[0].ID)
	assert.NotEmpty(t, issues[1].ID)
	assert.NotEqual(t, issues[0].ID, issues[1].ID)
	assert.Equal(t, "unchecked error", issues[0].Message)
}

func TestAnalyze_FailureLeavesListUntouched(t *testing.T) {
	calls := 0
	an := &mockAnalyzer{
		analyze: func(_ context.Context, _, _ string) (*model.Report, error) {
			calls++
			if calls == 1 {
				return issuesReport("first finding"), nil
			}
			return nil, errors.New("backend unavailable")
		},
	}
	ws := newOpenWorkspace(t, &mockGitHubClient{}, an, "", "main")

	_, err := ws.Analyze(context.Background())
	require.NoError(t, err)
	require.Len(t, ws.Issues(), 1)

	_, err = ws.Analyze(context.Background())
	require.Error(t, err)
	assert.Len(t, ws.Issues(), 1, "failed analysis must not clobber prior findings")
}

// --- Single fix ---

func TestApplyFix_ReplacesWorkingBufferOnly(t *testing.T) {
	an := &mockAnalyzer{
		analyze: func(_ context.Context, _, _ string) (*model.Report, error) {
			return issuesReport("finding"), nil
		},
		genFix: func(_ context.Context, _ string, _ model.Issue) (string, error) {
			return "fixed content", nil
		},
	}
	ws := newOpenWorkspace(t, &mockGitHubClient{}, an, "", "main")

	_, err := ws.Analyze(context.Background())
	require.NoError(t, err)
	issues := ws.Issues()

	require.NoError(t, ws.ApplyFix(context.Background(), issues[0].ID))

	state := ws.Snapshot()
	assert.Equal(t, "fixed content", state.Working)
	assert.Equal(t, "original", state.Reference, "reference buffer stays pinned to last-loaded content")
	assert.Len(t, ws.Issues(), 1, "ApplyFix does not drain the issue list")
}

func TestApplyFix_UnknownIssueID(t *testing.T) {
	ws := newOpenWorkspace(t, &mockGitHubClient{}, &mockAnalyzer{}, "", "main")

	err := ws.ApplyFix(context.Background(), "no-such-issue")
	assert.ErrorIs(t, err, application.ErrIssueNotFound)
}

// --- Auto-fix sequencer ---

func TestAutoFix_SequentialSnapshotChaining(t *testing.T) {
	an := &mockAnalyzer{
		analyze: func(_ context.Context, _, _ string) (*model.Report, error) {
			return issuesReport("issue A", "issue B"), nil
		},
		genFix: func(_ context.Context, code string, issue model.Issue) (string, error) {
			return code + "+" + issue.Message, nil
		},
	}
	ws := newOpenWorkspace(t, &mockGitHubClient{}, an, "", "main")

	report, err := ws.AutoFix(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, report.Total)
	assert.Equal(t, 2, report.Fixed)
	assert.False(t, report.NothingToFix)

	// The first fix sees the buffer at sequence start; the second sees the
	// first fix's output, never the original.
	require.Len(t, an.fixCalls, 2)
	assert.Equal(t, "original", an.fixCalls[0].Code)
	assert.Equal(t, "original+issue A", an.fixCalls[1].Code)
	assert.Equal(t, "original+issue A+issue B", ws.Snapshot().Working)
}

func TestAutoFix_ThrottlesFirstGap(t *testing.T) {
	an := &mockAnalyzer{
		analyze: func(_ context.Context, _, _ string) (*model.Report, error) {
			return issuesReport("issue A", "issue B"), nil
		},
	}
	gh := &mockGitHubClient{
		fetchFile: func(_ context.Context, _, _, _ string) (string, string, error) {
			return "original", "sha-1", nil
		},
	}
	provider := application.NewGitHubClientProvider(gh, "testuser")
	ws := application.NewWorkspace(provider, an, &mockReportStore{}, application.WorkspaceConfig{
		Owner:    "alice",
		Repo:     "widgets",
		FixDelay: 40 * time.Millisecond,
	}, testLogger())
	require.NoError(t, ws.OpenFile(context.Background(), "main.go", ""))

	start := time.Now()
	report, err := ws.AutoFix(context.Background())
	require.NoError(t, err)

	// Two items means one inter-item gap, and the token banked while the
	// workspace sat idle must not let the sequencer skip it.
	assert.Equal(t, 2, report.Fixed)
	assert.GreaterOrEqual(t, time.Since(start), 40*time.Millisecond)
}

func TestAutoFix_BestEffortContinuation(t *testing.T) {
	an := &mockAnalyzer{
		analyze: func(_ context.Context, _, _ string) (*model.Report, error) {
			return issuesReport("issue A", "issue B"), nil
		},
		genFix: func(_ context.Context, code string, issue model.Issue) (string, error) {
			if issue.Message == "issue A" {
				return "", errors.New("model refused")
			}
			return code + "+B", nil
		},
	}
	ws := newOpenWorkspace(t, &mockGitHubClient{}, an, "", "main")

	report, err := ws.AutoFix(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, report.Total)
	assert.Equal(t, 1, report.Fixed)
	require.Len(t, report.Items, 2)
	assert.False(t, report.Items[0].Fixed)
	assert.NotEmpty(t, report.Items[0].Error)
	assert.True(t, report.Items[1].Fixed)
	assert.Equal(t, "original+B", ws.Snapshot().Working, "buffer reflects only the successful fix")
}

func TestAutoFix_EmptyAnalysisShortCircuits(t *testing.T) {
	an := &mockAnalyzer{
		analyze: func(_ context.Context, _, _ string) (*model.Report, error) {
			return &model.Report{Summary: "clean", Issues: []model.Issue{}}, nil
		},
	}
	ws := newOpenWorkspace(t, &mockGitHubClient{}, an, "", "main")

	report, err := ws.AutoFix(context.Background())
	require.NoError(t, err)

	assert.True(t, report.NothingToFix)
	assert.Zero(t, report.Total)
	assert.Empty(t, an.fixCalls, "no fix-generation calls for a clean file")
}

func TestAutoFix_ClearsIssueListAndNeverCommits(t *testing.T) {
	gh := &mockGitHubClient{}
	an := &mockAnalyzer{
		analyze: func(_ context.Context, _, _ string) (*model.Report, error) {
			return issuesReport("issue A"), nil
		},
		genFix: func(_ context.Context, code string, _ model.Issue) (string, error) {
			return code + "+fixed", nil
		},
	}
	ws := newOpenWorkspace(t, gh, an, "", "main")

	report, err := ws.AutoFix(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, report.Fixed)
	assert.Empty(t, ws.Issues(), "issue list is cleared after the run")
	assert.Empty(t, gh.commitCalls, "auto-fix mutates, it never pushes")
}

// --- Commit ---

func TestCommit_RotatesSHAAcrossChainedCommits(t *testing.T) {
	commits := 0
	gh := &mockGitHubClient{
		commitFile: func(_ context.Context, _ driven.CommitFileRequest) (*driven.CommitFileResult, error) {
			commits++
			return &driven.CommitFileResult{NewSHA: fmt.Sprintf("sha-%d", commits+1)}, nil
		},
	}
	ws := newOpenWorkspace(t, gh, &mockAnalyzer{}, "", "main")

	res, err := ws.Commit(context.Background(), "first commit")
	require.NoError(t, err)
	assert.Equal(t, "sha-2", res.NewSHA)

	res, err = ws.Commit(context.Background(), "second commit")
	require.NoError(t, err)
	assert.Equal(t, "sha-3", res.NewSHA)

	// The second commit must carry the rotated token, not the original.
	require.Len(t, gh.commitCalls, 2)
	assert.Equal(t, "sha-1", gh.commitCalls[0].SHA)
	assert.Equal(t, "sha-2", gh.commitCalls[1].SHA)
}

func TestCommit_Preconditions(t *testing.T) {
	gh := &mockGitHubClient{}
	provider := application.NewGitHubClientProvider(gh, "testuser")
	ws := application.NewWorkspace(provider, &mockAnalyzer{}, &mockReportStore{}, application.WorkspaceConfig{Owner: "alice", Repo: "widgets"}, testLogger())

	_, err := ws.Commit(context.Background(), "msg")
	assert.ErrorIs(t, err, application.ErrNoFileOpen)

	gh.fetchFile = func(_ context.Context, _, _, _ string) (string, string, error) {
		return "original", "sha-1", nil
	}
	require.NoError(t, ws.OpenFile(context.Background(), "main.go", ""))

	_, err = ws.Commit(context.Background(), "")
	assert.ErrorIs(t, err, application.ErrEmptyCommitMessage)
	assert.Empty(t, gh.commitCalls, "precondition failures never reach the network")
}

func TestCommit_RemoteRejectionSurfacedVerbatim(t *testing.T) {
	gh := &mockGitHubClient{
		commitFile: func(_ context.Context, _ driven.CommitFileRequest) (*driven.CommitFileResult, error) {
			return nil, errors.New(`409 Conflict: "main.go" does not match sha-1`)
		},
	}
	ws := newOpenWorkspace(t, gh, &mockAnalyzer{}, "", "main")

	_, err := ws.Commit(context.Background(), "msg")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "409 Conflict")
	assert.Equal(t, "sha-1", ws.Snapshot().File.SHA, "failed commit must not rotate the token")
}

func TestCommit_BranchPrecedence(t *testing.T) {
	t.Run("pr head branch wins", func(t *testing.T) {
		gh := &mockGitHubClient{
			commitFile: func(_ context.Context, _ driven.CommitFileRequest) (*driven.CommitFileResult, error) {
				return &driven.CommitFileResult{NewSHA: "sha-2"}, nil
			},
		}
		ws := newOpenWorkspace(t, gh, &mockAnalyzer{}, "feat-x", "main")

		res, err := ws.Commit(context.Background(), "msg")
		require.NoError(t, err)
		assert.Equal(t, "feat-x", res.Branch)
		assert.Equal(t, "feat-x", gh.commitCalls[0].Branch)
	})

	t.Run("default branch without pr context", func(t *testing.T) {
		gh := &mockGitHubClient{
			commitFile: func(_ context.Context, _ driven.CommitFileRequest) (*driven.CommitFileResult, error) {
				return &driven.CommitFileResult{NewSHA: "sha-2"}, nil
			},
		}
		ws := newOpenWorkspace(t, gh, &mockAnalyzer{}, "", "develop")

		res, err := ws.Commit(context.Background(), "msg")
		require.NoError(t, err)
		assert.Equal(t, "develop", res.Branch)
	})

	t.Run("literal fallback when nothing resolved", func(t *testing.T) {
		gh := &mockGitHubClient{
			commitFile: func(_ context.Context, _ driven.CommitFileRequest) (*driven.CommitFileResult, error) {
				return &driven.CommitFileResult{NewSHA: "sha-2"}, nil
			},
		}
		ws := newOpenWorkspace(t, gh, &mockAnalyzer{}, "", "")

		res, err := ws.Commit(context.Background(), "msg")
		require.NoError(t, err)
		assert.Equal(t, "main", res.Branch)
	})
}

// --- Chat ---

func TestChat_AppendsHistoryAndRepliesWithContext(t *testing.T) {
	var seen driven.ChatRequest
	an := &mockAnalyzer{
		chat: func(_ context.Context, req driven.ChatRequest) (*model.ChatReply, error) {
			seen = req
			return &model.ChatReply{Response: "hello back"}, nil
		},
	}
	ws := newOpenWorkspace(t, &mockGitHubClient{}, an, "", "main")

	_, err := ws.Chat(context.Background(), "what does this file do?")
	require.NoError(t, err)
	assert.Equal(t, "main.go", seen.Context.Filename)
	assert.Equal(t, "original", seen.Context.Code)
	assert.Empty(t, seen.History)

	_, err = ws.Chat(context.Background(), "second question")
	require.NoError(t, err)

	// Full prior conversation replayed on the second turn.
	require.Len(t, seen.History, 2)
	assert.Equal(t, model.ChatRoleUser, seen.History[0].Role)
	assert.Equal(t, "what does this file do?", seen.History[0].Content)
	assert.Equal(t, model.ChatRoleAssistant, seen.History[1].Role)

	history := ws.Snapshot().History
	assert.Len(t, history, 4)
}

func TestChat_CodeModificationAppliedSilently(t *testing.T) {
	an := &mockAnalyzer{
		chat: func(_ context.Context, _ driven.ChatRequest) (*model.ChatReply, error) {
			return &model.ChatReply{Response: "done", CodeModified: true, ModifiedCode: "rewritten"}, nil
		},
	}
	ws := newOpenWorkspace(t, &mockGitHubClient{}, an, "", "main")

	res, err := ws.Chat(context.Background(), "rename the handler")
	require.NoError(t, err)
	assert.False(t, res.Committed)
	assert.Equal(t, "rewritten", ws.Snapshot().Working)
}

func TestChat_PushRequestTriggersCommit(t *testing.T) {
	gh := &mockGitHubClient{
		commitFile: func(_ context.Context, _ driven.CommitFileRequest) (*driven.CommitFileResult, error) {
			return &driven.CommitFileResult{NewSHA: "sha-2"}, nil
		},
	}
	an := &mockAnalyzer{
		chat: func(_ context.Context, _ driven.ChatRequest) (*model.ChatReply, error) {
			return &model.ChatReply{Response: "pushing", PushRequested: true, CommitMessage: "fix: handler rename"}, nil
		},
	}
	ws := newOpenWorkspace(t, gh, an, "", "main")

	res, err := ws.Chat(context.Background(), "push it")
	require.NoError(t, err)
	assert.True(t, res.Committed)
	require.NotNil(t, res.Commit)
	assert.Equal(t, "sha-2", res.Commit.NewSHA)
	require.Len(t, gh.commitCalls, 1)
	assert.Equal(t, "fix: handler rename", gh.commitCalls[0].Message)
	assert.Equal(t, "sha-2", ws.Snapshot().File.SHA)
}

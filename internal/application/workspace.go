package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/calebmoore/codereviewer/internal/domain/model"
	"github.com/calebmoore/codereviewer/internal/domain/port/driven"
)

// Sentinel errors for workspace precondition failures. These are rejected
// locally before any network call is made.
var (
	ErrNotAuthenticated   = errors.New("no github client configured: log in first")
	ErrNoFileOpen         = errors.New("no file is open")
	ErrEmptyCommitMessage = errors.New("commit message must not be empty")
	ErrIssueNotFound      = errors.New("issue not found")
	ErrFixInFlight        = errors.New("an auto-fix run is already in progress")
)

// fallbackBranch is the write target when neither a pull-request head branch
// nor a repository default branch could be resolved.
const fallbackBranch = "main"

// openFailedSentinel is loaded into the working buffer when a file fetch
// fails, matching the read-only error display of the editor surface.
const openFailedSentinel = "// Failed to load file content."

// WorkspaceConfig carries the immutable inputs of a workspace.
type WorkspaceConfig struct {
	Owner    string
	Repo     string
	PRNumber int

	// PRBranch and DefaultBranch feed the branch precedence chain; either
	// or both may be empty.
	PRBranch      string
	DefaultBranch string

	// FixDelay spaces sequenced fix requests; zero disables the throttle.
	FixDelay time.Duration

	// AnalyzeOnOpen triggers a fire-and-forget analysis after each
	// successful OpenFile.
	AnalyzeOnOpen bool
}

// Workspace is the session-context object owning the editor/analysis/commit
// workflow state for one open repository (optionally pinned to a pull
// request): the remote file reference, the two editor buffers, the issue
// list, and the chat history.
//
// All exported methods are safe for concurrent use. Network calls are made
// outside the state lock; the generation counter detects and discards
// results that arrive after the user has opened a different file.
type Workspace struct {
	ID       string
	Owner    string
	Repo     string
	PRNumber int

	provider      *GitHubClientProvider
	analyzer      driven.Analyzer
	reports       driven.ReportStore
	logger        *slog.Logger
	analyzeOnOpen bool

	// limiter spaces sequenced fix requests to avoid hammering the
	// inference backend. Not a correctness requirement.
	limiter *rate.Limiter

	mu            sync.Mutex
	file          model.FileRef
	prBranch      string // Head branch when created in PR context.
	defaultBranch string
	reference     string // Immutable snapshot of last loaded remote content.
	working       string // User- and AI-editable buffer.
	readOnly      bool
	issues        []model.Issue
	summary       string
	history       []model.ChatMessage
	gen           uint64
	fixing        bool
}

// NewWorkspace creates a workspace for the repository named in cfg.
func NewWorkspace(
	provider *GitHubClientProvider,
	analyzer driven.Analyzer,
	reports driven.ReportStore,
	cfg WorkspaceConfig,
	logger *slog.Logger,
) *Workspace {
	return &Workspace{
		ID:            uuid.NewString(),
		Owner:         cfg.Owner,
		Repo:          cfg.Repo,
		PRNumber:      cfg.PRNumber,
		provider:      provider,
		analyzer:      analyzer,
		reports:       reports,
		logger:        logger,
		analyzeOnOpen: cfg.AnalyzeOnOpen,
		limiter:       rate.NewLimiter(rate.Every(cfg.FixDelay), 1),
		prBranch:      cfg.PRBranch,
		defaultBranch: cfg.DefaultBranch,
		readOnly:      true,
	}
}

// resolveBranch applies the write-target precedence: pull-request head
// branch, then repository default branch, then the literal fallback.
func (w *Workspace) resolveBranch() string {
	if w.prBranch != "" {
		return w.prBranch
	}
	if w.defaultBranch != "" {
		return w.defaultBranch
	}
	return fallbackBranch
}

// github returns the current client or ErrNotAuthenticated.
func (w *Workspace) github() (driven.GitHubClient, error) {
	gh := w.provider.Get()
	if gh == nil {
		return nil, ErrNotAuthenticated
	}
	return gh, nil
}

// OpenFile fetches the file at path (at ref, or the resolved branch when ref
// is empty) and loads it into both buffers. On success an analysis run is
// kicked off in the background; its failure does not fail the open. On fetch
// failure the working buffer is set to a sentinel message and left read-only.
func (w *Workspace) OpenFile(ctx context.Context, path, ref string) error {
	gh, err := w.github()
	if err != nil {
		return err
	}

	w.mu.Lock()
	branch := w.resolveBranch()
	if ref == "" {
		ref = branch
	}
	w.gen++
	gen := w.gen
	fullName := w.Owner + "/" + w.Repo
	w.mu.Unlock()

	content, sha, err := gh.FetchFileContent(ctx, fullName, path, ref)

	w.mu.Lock()
	if w.gen != gen {
		// A newer open superseded this one; discard the result.
		w.mu.Unlock()
		return nil
	}
	if err != nil {
		w.file = model.FileRef{Owner: w.Owner, Repo: w.Repo, Path: path, Branch: branch}
		w.reference = ""
		w.working = openFailedSentinel
		w.readOnly = true
		w.issues = nil
		w.mu.Unlock()
		return fmt.Errorf("fetching %s@%s: %w", path, ref, err)
	}
	w.file = model.FileRef{Owner: w.Owner, Repo: w.Repo, Path: path, Branch: branch, SHA: sha}
	w.reference = content
	w.working = content
	w.readOnly = false
	w.issues = nil
	w.summary = ""
	w.mu.Unlock()

	if w.analyzeOnOpen {
		go w.analyzeAsync(gen)
	}

	return nil
}

// analyzeAsync runs the post-open analysis with its own deadline. The result
// is discarded if the workspace has moved on to a different file.
func (w *Workspace) analyzeAsync(gen uint64) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	if err := w.analyze(ctx, gen); err != nil {
		w.logger.Warn("background analysis failed", "workspace", w.ID, "error", err)
	}
}

// Analyze reviews the current working buffer and replaces the issue list
// with the findings. On failure the existing list is left untouched.
func (w *Workspace) Analyze(ctx context.Context) (*model.Report, error) {
	report, err := w.analyzeReport(ctx, w.currentGen())
	if err != nil {
		return nil, err
	}
	return report, nil
}

func (w *Workspace) currentGen() uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.gen
}

func (w *Workspace) analyze(ctx context.Context, gen uint64) error {
	_, err := w.analyzeReport(ctx, gen)
	return err
}

func (w *Workspace) analyzeReport(ctx context.Context, gen uint64) (*model.Report, error) {
	w.mu.Lock()
	if !w.file.IsOpen() {
		w.mu.Unlock()
		return nil, ErrNoFileOpen
	}
	code := w.working
	filename := w.file.Path
	w.mu.Unlock()

	report, err := w.analyzer.AnalyzeCode(ctx, code, filename)
	if err != nil {
		return nil, fmt.Errorf("analyzing %s: %w", filename, err)
	}

	// Assign stable synthetic identifiers so fixes reference issues by ID,
	// not by array position.
	for i := range report.Issues {
		report.Issues[i].ID = uuid.NewString()
	}

	w.mu.Lock()
	stale := w.gen != gen
	if !stale {
		w.issues = report.Issues
		w.summary = report.Summary
	}
	w.mu.Unlock()
	if stale {
		return report, nil
	}

	report.Owner = w.Owner
	report.Repo = w.Repo
	report.PRNumber = w.PRNumber
	report.Filename = filename
	if _, err := w.reports.Save(ctx, *report); err != nil {
		w.logger.Warn("saving analysis report failed", "workspace", w.ID, "error", err)
	}

	return report, nil
}

// ApplyFix rewrites the working buffer to address the issue with the given
// ID. The issue stays in the list; the caller decides whether to re-analyze.
func (w *Workspace) ApplyFix(ctx context.Context, issueID string) error {
	w.mu.Lock()
	if !w.file.IsOpen() {
		w.mu.Unlock()
		return ErrNoFileOpen
	}
	var issue *model.Issue
	for i := range w.issues {
		if w.issues[i].ID == issueID {
			issue = &w.issues[i]
			break
		}
	}
	if issue == nil {
		w.mu.Unlock()
		return ErrIssueNotFound
	}
	code := w.working
	target := *issue
	gen := w.gen
	w.mu.Unlock()

	fixed, err := w.analyzer.GenerateFix(ctx, code, target)
	if err != nil {
		return fmt.Errorf("generating fix: %w", err)
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.gen != gen {
		return nil
	}
	w.working = fixed
	return nil
}

// FixOutcome records how one issue fared during an auto-fix run.
type FixOutcome struct {
	Issue model.Issue `json:"issue"`
	Fixed bool        `json:"fixed"`
	Error string      `json:"error,omitempty"`
}

// AutoFixReport is the terminal outcome of an auto-fix run.
type AutoFixReport struct {
	NothingToFix bool         `json:"nothing_to_fix"`
	Total        int          `json:"total"`
	Fixed        int          `json:"fixed"`
	Items        []FixOutcome `json:"items"`
}

// AutoFix drains the issue list, requesting a fix for each entry strictly in
// sequence: every fix reads the working buffer as left by the previous fix,
// so issuing them concurrently would silently lose all but the last rewrite.
// A per-item failure is recorded and the run continues; a single failure is
// never fatal to the batch.
//
// If the list is empty an analysis is performed first; zero findings is a
// terminal "nothing to fix" outcome with no fix calls made. The run never
// commits: mutation and persistence are separated, and pushing the result is
// a distinct user action.
func (w *Workspace) AutoFix(ctx context.Context) (*AutoFixReport, error) {
	w.mu.Lock()
	if !w.file.IsOpen() {
		w.mu.Unlock()
		return nil, ErrNoFileOpen
	}
	if w.fixing {
		w.mu.Unlock()
		return nil, ErrFixInFlight
	}
	w.fixing = true
	gen := w.gen
	w.mu.Unlock()

	defer func() {
		w.mu.Lock()
		w.fixing = false
		w.mu.Unlock()
	}()

	if len(w.Issues()) == 0 {
		if err := w.analyze(ctx, gen); err != nil {
			return nil, err
		}
	}

	pending := w.Issues()
	if len(pending) == 0 {
		return &AutoFixReport{NothingToFix: true}, nil
	}

	report := &AutoFixReport{Total: len(pending), Items: make([]FixOutcome, 0, len(pending))}

	// The limiter banks a token while idle; drain it so every inter-item
	// gap is enforced, including the first.
	w.limiter.Allow()

	for i, issue := range pending {
		if i > 0 {
			if err := w.limiter.Wait(ctx); err != nil {
				return report, err
			}
		}

		w.mu.Lock()
		code := w.working
		w.mu.Unlock()

		fixed, err := w.analyzer.GenerateFix(ctx, code, issue)
		if err != nil {
			w.logger.Warn("fix failed, continuing", "workspace", w.ID, "issue", issue.ID, "error", err)
			report.Items = append(report.Items, FixOutcome{Issue: issue, Error: err.Error()})
			continue
		}

		w.mu.Lock()
		w.working = fixed
		w.mu.Unlock()

		report.Fixed++
		report.Items = append(report.Items, FixOutcome{Issue: issue, Fixed: true})
	}

	w.mu.Lock()
	if w.gen == gen {
		w.issues = nil
	}
	w.mu.Unlock()

	return report, nil
}

// CommitResult reports a successful commit of the working buffer.
type CommitResult struct {
	NewSHA    string `json:"new_sha"`
	CommitURL string `json:"commit_url,omitempty"`
	Branch    string `json:"branch"`
}

// Commit writes the working buffer back to the hosting API as a new commit
// on the resolved branch. On success the content SHA is rotated to the
// server's new token so a follow-up commit is not rejected as stale. On
// failure the remote error is surfaced verbatim; there is no retry and no
// automatic re-fetch.
func (w *Workspace) Commit(ctx context.Context, message string) (*CommitResult, error) {
	gh, err := w.github()
	if err != nil {
		return nil, err
	}
	if message == "" {
		return nil, ErrEmptyCommitMessage
	}

	w.mu.Lock()
	if !w.file.IsOpen() {
		w.mu.Unlock()
		return nil, ErrNoFileOpen
	}
	req := driven.CommitFileRequest{
		RepoFullName: w.file.FullName(),
		Path:         w.file.Path,
		Content:      w.working,
		Message:      message,
		SHA:          w.file.SHA,
		Branch:       w.file.Branch,
	}
	gen := w.gen
	w.mu.Unlock()

	res, err := gh.CommitFile(ctx, req)
	if err != nil {
		return nil, err
	}

	w.mu.Lock()
	if w.gen == gen {
		w.file.SHA = res.NewSHA
		w.reference = req.Content
	}
	w.mu.Unlock()

	return &CommitResult{NewSHA: res.NewSHA, CommitURL: res.CommitURL, Branch: req.Branch}, nil
}

// ChatResult is the outcome of one chat turn, including any side effects the
// assistant's reply triggered.
type ChatResult struct {
	Reply       model.ChatReply
	Committed   bool
	Commit      *CommitResult
	CommitError string
}

// Chat sends a conversational message with the full prior history and the
// current file context. A reply flagged CodeModified replaces the working
// buffer; a reply flagged PushRequested triggers a Commit with the suggested
// message. Commit failure is reported in the result, not as an error: the
// chat turn itself succeeded.
func (w *Workspace) Chat(ctx context.Context, message string) (*ChatResult, error) {
	w.mu.Lock()
	req := driven.ChatRequest{
		Message: message,
		Context: driven.ChatContext{
			Filename: w.file.Path,
			Code:     w.working,
			Summary:  w.summary,
			Issues:   append([]model.Issue(nil), w.issues...),
		},
		History: append([]model.ChatMessage(nil), w.history...),
	}
	w.mu.Unlock()

	reply, err := w.analyzer.Chat(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("chat: %w", err)
	}

	w.mu.Lock()
	w.history = append(w.history,
		model.ChatMessage{Role: model.ChatRoleUser, Content: message},
		model.ChatMessage{Role: model.ChatRoleAssistant, Content: reply.Response},
	)
	if reply.CodeModified && reply.ModifiedCode != "" && w.file.IsOpen() {
		w.working = reply.ModifiedCode
	}
	path := w.file.Path
	w.mu.Unlock()

	result := &ChatResult{Reply: *reply}

	if reply.PushRequested {
		msg := reply.CommitMessage
		if msg == "" {
			msg = "chore: AI-assisted changes to " + path
		}
		commit, err := w.Commit(ctx, msg)
		if err != nil {
			result.CommitError = err.Error()
		} else {
			result.Committed = true
			result.Commit = commit
		}
	}

	return result, nil
}

// State is a point-in-time snapshot of the workspace for the API layer.
type State struct {
	ID            string              `json:"id"`
	Owner         string              `json:"owner"`
	Repo          string              `json:"repo"`
	PRNumber      int                 `json:"pr_number,omitempty"`
	File          model.FileRef       `json:"file"`
	Reference     string              `json:"reference"`
	Working       string              `json:"working"`
	ReadOnly      bool                `json:"read_only"`
	Dirty         bool                `json:"dirty"`
	Summary       string              `json:"summary,omitempty"`
	Issues        []model.Issue       `json:"issues"`
	History       []model.ChatMessage `json:"history"`
	DefaultBranch string              `json:"default_branch,omitempty"`
	PRBranch      string              `json:"pr_branch,omitempty"`
}

// Snapshot returns a copy of the current workspace state. Dirty is defined
// as divergence between the reference and working buffers; there is no other
// dirty flag.
func (w *Workspace) Snapshot() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return State{
		ID:            w.ID,
		Owner:         w.Owner,
		Repo:          w.Repo,
		PRNumber:      w.PRNumber,
		File:          w.file,
		Reference:     w.reference,
		Working:       w.working,
		ReadOnly:      w.readOnly,
		Dirty:         w.file.IsOpen() && w.reference != w.working,
		Summary:       w.summary,
		Issues:        append([]model.Issue{}, w.issues...),
		History:       append([]model.ChatMessage{}, w.history...),
		DefaultBranch: w.defaultBranch,
		PRBranch:      w.prBranch,
	}
}

// Issues returns a copy of the current issue list.
func (w *Workspace) Issues() []model.Issue {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]model.Issue(nil), w.issues...)
}

// SetWorking replaces the working buffer with user-edited content.
func (w *Workspace) SetWorking(content string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.file.IsOpen() {
		return ErrNoFileOpen
	}
	w.working = content
	return nil
}

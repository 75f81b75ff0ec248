// Package httphandler is the HTTP driving adapter serving the dashboard
// REST API.
package httphandler

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/calebmoore/codereviewer/internal/application"
	"github.com/calebmoore/codereviewer/internal/domain/model"
	"github.com/calebmoore/codereviewer/internal/domain/port/driven"
)

// GitHubClientFactory builds a GitHub client for a freshly validated token.
// The composition root injects the real adapter constructor; tests inject
// mocks.
type GitHubClientFactory func(token, username string) driven.GitHubClient

// Handler is the HTTP driving adapter that serves the REST API.
type Handler struct {
	provider      *application.GitHubClientProvider
	manager       *application.Manager
	activity      *application.ActivityService
	analyzer      driven.Analyzer
	credentials   driven.CredentialStore
	reports       driven.ReportStore
	clientFactory GitHubClientFactory
	logger        *slog.Logger
}

// NewHandler creates a Handler with all required dependencies.
func NewHandler(
	provider *application.GitHubClientProvider,
	manager *application.Manager,
	activity *application.ActivityService,
	analyzer driven.Analyzer,
	credentials driven.CredentialStore,
	reports driven.ReportStore,
	clientFactory GitHubClientFactory,
	logger *slog.Logger,
) *Handler {
	return &Handler{
		provider:      provider,
		manager:       manager,
		activity:      activity,
		analyzer:      analyzer,
		credentials:   credentials,
		reports:       reports,
		clientFactory: clientFactory,
		logger:        logger,
	}
}

// NewServeMux creates an http.Handler with all routes registered and wrapped
// with CORS, logging, and recovery middleware.
func NewServeMux(h *Handler, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/v1/auth/login", h.Login)
	mux.HandleFunc("GET /api/v1/auth/status", h.AuthStatus)

	mux.HandleFunc("GET /api/v1/repos", h.ListRepos)
	mux.HandleFunc("GET /api/v1/repos/{owner}/{repo}/prs", h.ListPRs)
	mux.HandleFunc("GET /api/v1/repos/{owner}/{repo}/prs/{number}", h.GetPR)
	mux.HandleFunc("POST /api/v1/repos/{owner}/{repo}/prs/{number}/analyze", h.AnalyzePR)
	mux.HandleFunc("POST /api/v1/repos/{owner}/{repo}/prs/{number}/merge", h.MergePR)

	mux.HandleFunc("POST /api/v1/workspaces", h.CreateWorkspace)
	mux.HandleFunc("GET /api/v1/workspaces/{id}", h.GetWorkspace)
	mux.HandleFunc("DELETE /api/v1/workspaces/{id}", h.DeleteWorkspace)
	mux.HandleFunc("POST /api/v1/workspaces/{id}/open", h.OpenFile)
	mux.HandleFunc("POST /api/v1/workspaces/{id}/analyze", h.AnalyzeWorkspace)
	mux.HandleFunc("POST /api/v1/workspaces/{id}/fix", h.ApplyFix)
	mux.HandleFunc("POST /api/v1/workspaces/{id}/autofix", h.AutoFix)
	mux.HandleFunc("POST /api/v1/workspaces/{id}/commit", h.Commit)
	mux.HandleFunc("POST /api/v1/workspaces/{id}/chat", h.Chat)

	mux.HandleFunc("POST /api/v1/analyze-code", h.AnalyzeCode)
	mux.HandleFunc("POST /api/v1/analyze-diff", h.AnalyzeDiff)
	mux.HandleFunc("POST /api/v1/generate-fix", h.GenerateFix)
	mux.HandleFunc("POST /api/v1/fetch-file", h.FetchFile)
	mux.HandleFunc("POST /api/v1/commit-file", h.CommitFile)
	mux.HandleFunc("POST /api/v1/branches", h.CreateBranch)

	mux.HandleFunc("GET /api/v1/activity", h.Activity)
	mux.HandleFunc("GET /api/v1/reports", h.ListReports)
	mux.HandleFunc("GET /api/v1/health", h.Health)

	// Recovery innermost so panics are caught before logging.
	wrapped := recoveryMiddleware(logger, mux)
	wrapped = loggingMiddleware(logger, wrapped)
	wrapped = corsMiddleware(wrapped)

	return wrapped
}

// github returns the current GitHub client, writing a 401 if none is
// configured.
func (h *Handler) github(w http.ResponseWriter) (driven.GitHubClient, bool) {
	gh := h.provider.Get()
	if gh == nil {
		writeError(w, http.StatusUnauthorized, application.ErrNotAuthenticated.Error())
		return nil, false
	}
	return gh, true
}

// decodeBody decodes the request body into v, writing a 400 on failure.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

// Login validates a GitHub personal access token, swaps in a client built
// around it, and persists the credential for the next startup.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Token == "" {
		writeError(w, http.StatusBadRequest, "token is required")
		return
	}

	probe := h.clientFactory(req.Token, "")
	username, err := probe.ValidateToken(r.Context(), req.Token)
	if err != nil {
		h.logger.Warn("token validation failed", "error", err)
		writeError(w, http.StatusUnauthorized, "invalid token")
		return
	}

	h.provider.Replace(h.clientFactory(req.Token, username), username)

	h.persistCredential(r.Context(), "token", req.Token)
	h.persistCredential(r.Context(), "username", username)

	writeJSON(w, http.StatusOK, LoginResponse{Username: username})
}

// persistCredential stores a github credential, logging instead of failing:
// a missing encryption key degrades to session-only login.
func (h *Handler) persistCredential(ctx context.Context, key, value string) {
	if err := h.credentials.Set(ctx, "github", key, value); err != nil {
		h.logger.Warn("could not persist credential", "key", key, "error", err)
	}
}

// AuthStatus reports whether a GitHub client is configured.
func (h *Handler) AuthStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, AuthStatusResponse{
		Authenticated: h.provider.HasClient(),
		Username:      h.provider.Username(),
	})
}

// ListRepos returns the authenticated user's repositories.
func (h *Handler) ListRepos(w http.ResponseWriter, r *http.Request) {
	gh, ok := h.github(w)
	if !ok {
		return
	}

	repos, err := gh.FetchRepositories(r.Context())
	if err != nil {
		h.logger.Error("failed to list repositories", "error", err)
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	resp := make([]RepoResponse, 0, len(repos))
	for _, repo := range repos {
		resp = append(resp, toRepoResponse(repo))
	}

	writeJSON(w, http.StatusOK, resp)
}

// ListPRs returns the repository's pull requests. The state query parameter
// defaults to "open".
func (h *Handler) ListPRs(w http.ResponseWriter, r *http.Request) {
	gh, ok := h.github(w)
	if !ok {
		return
	}

	repoFullName := r.PathValue("owner") + "/" + r.PathValue("repo")
	state := r.URL.Query().Get("state")
	if state == "" {
		state = "open"
	}

	prs, err := gh.FetchPullRequests(r.Context(), repoFullName, state)
	if err != nil {
		h.logger.Error("failed to list PRs", "repo", repoFullName, "error", err)
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	resp := make([]PRResponse, 0, len(prs))
	for _, pr := range prs {
		resp = append(resp, toPRResponse(pr))
	}

	writeJSON(w, http.StatusOK, resp)
}

// GetPR returns a single pull request with its changed files.
func (h *Handler) GetPR(w http.ResponseWriter, r *http.Request) {
	gh, ok := h.github(w)
	if !ok {
		return
	}

	repoFullName := r.PathValue("owner") + "/" + r.PathValue("repo")
	number, err := strconv.Atoi(r.PathValue("number"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid PR number")
		return
	}

	pr, err := gh.FetchPullRequest(r.Context(), repoFullName, number)
	if err != nil {
		h.logger.Error("failed to get PR", "repo", repoFullName, "number", number, "error", err)
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	resp := toPRResponse(*pr)

	files, err := gh.FetchPullRequestFiles(r.Context(), repoFullName, number)
	if err != nil {
		h.logger.Warn("failed to list PR files", "repo", repoFullName, "number", number, "error", err)
	} else {
		resp.Files = make([]PRFileResponse, 0, len(files))
		for _, f := range files {
			resp.Files = append(resp.Files, toPRFileResponse(f))
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

// maxPatchBytes caps each file's patch in the combined diff so one giant
// file cannot crowd the rest of the pull request out of the review.
const maxPatchBytes = 10000

// AnalyzePR reviews every changed file of a pull request in one pass and
// records the report in the history feed.
func (h *Handler) AnalyzePR(w http.ResponseWriter, r *http.Request) {
	gh, ok := h.github(w)
	if !ok {
		return
	}

	owner := r.PathValue("owner")
	repo := r.PathValue("repo")
	repoFullName := owner + "/" + repo
	number, err := strconv.Atoi(r.PathValue("number"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid PR number")
		return
	}

	files, err := gh.FetchPullRequestFiles(r.Context(), repoFullName, number)
	if err != nil {
		h.logger.Error("failed to list PR files", "repo", repoFullName, "number", number, "error", err)
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	if len(files) == 0 {
		writeError(w, http.StatusNotFound, "no files found in PR")
		return
	}

	report, err := h.analyzer.AnalyzeDiff(r.Context(), combinedDiff(files))
	if err != nil {
		h.logger.Error("PR analysis failed", "repo", repoFullName, "number", number, "error", err)
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	report.Owner = owner
	report.Repo = repo
	report.PRNumber = number

	if _, err := h.reports.Save(r.Context(), *report); err != nil {
		h.logger.Warn("failed to record PR report", "repo", repoFullName, "number", number, "error", err)
	}

	writeJSON(w, http.StatusOK, report)
}

// combinedDiff builds the analyzer input from each changed file's patch,
// labeled by filename.
func combinedDiff(files []model.PRFile) string {
	var b strings.Builder
	for _, f := range files {
		patch := f.Patch
		if len(patch) > maxPatchBytes {
			patch = patch[:maxPatchBytes] + "\n... (truncated)"
		}
		fmt.Fprintf(&b, "File: %s\nDiff:\n%s\n\n", f.Filename, patch)
	}
	return b.String()
}

// MergePR merges an open pull request.
func (h *Handler) MergePR(w http.ResponseWriter, r *http.Request) {
	gh, ok := h.github(w)
	if !ok {
		return
	}

	repoFullName := r.PathValue("owner") + "/" + r.PathValue("repo")
	number, err := strconv.Atoi(r.PathValue("number"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid PR number")
		return
	}

	if err := gh.MergePullRequest(r.Context(), repoFullName, number); err != nil {
		h.logger.Error("merge failed", "repo", repoFullName, "number", number, "error", err)
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"merged": true})
}

// AnalyzeCode reviews a pasted file without workspace state.
func (h *Handler) AnalyzeCode(w http.ResponseWriter, r *http.Request) {
	var req AnalyzeCodeRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Code == "" {
		writeError(w, http.StatusBadRequest, "code is required")
		return
	}

	report, err := h.analyzer.AnalyzeCode(r.Context(), req.Code, req.Filename)
	if err != nil {
		h.logger.Error("analysis failed", "filename", req.Filename, "error", err)
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, report)
}

// AnalyzeDiff reviews a pasted unified diff without workspace state.
func (h *Handler) AnalyzeDiff(w http.ResponseWriter, r *http.Request) {
	var req AnalyzeDiffRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Diff == "" {
		writeError(w, http.StatusBadRequest, "diff is required")
		return
	}

	report, err := h.analyzer.AnalyzeDiff(r.Context(), req.Diff)
	if err != nil {
		h.logger.Error("diff analysis failed", "error", err)
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, report)
}

// GenerateFix rewrites pasted code to address one issue.
func (h *Handler) GenerateFix(w http.ResponseWriter, r *http.Request) {
	var req GenerateFixRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Code == "" {
		writeError(w, http.StatusBadRequest, "code is required")
		return
	}

	fixed, err := h.analyzer.GenerateFix(r.Context(), req.Code, req.Issue)
	if err != nil {
		h.logger.Error("fix generation failed", "error", err)
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, GenerateFixResponse{FixedCode: fixed})
}

// FetchFile returns a file's content and content SHA without workspace state.
func (h *Handler) FetchFile(w http.ResponseWriter, r *http.Request) {
	gh, ok := h.github(w)
	if !ok {
		return
	}

	var req FetchFileRequest
	if !decodeBody(w, r, &req) {
		return
	}

	content, sha, err := gh.FetchFileContent(r.Context(), req.Owner+"/"+req.Repo, req.Path, req.Ref)
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, FetchFileResponse{Content: content, SHA: sha})
}

// CommitFile writes a file directly via the contents API without workspace
// state. The caller supplies the optimistic-concurrency SHA.
func (h *Handler) CommitFile(w http.ResponseWriter, r *http.Request) {
	gh, ok := h.github(w)
	if !ok {
		return
	}

	var req CommitFileRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Message == "" {
		writeError(w, http.StatusBadRequest, application.ErrEmptyCommitMessage.Error())
		return
	}

	res, err := gh.CommitFile(r.Context(), driven.CommitFileRequest{
		RepoFullName: req.Owner + "/" + req.Repo,
		Path:         req.Path,
		Content:      req.Content,
		Message:      req.Message,
		SHA:          req.SHA,
		Branch:       req.Branch,
	})
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, CommitFileResponse{NewSHA: res.NewSHA, CommitURL: res.CommitURL})
}

// CreateBranch creates a branch at the tip of the base branch.
func (h *Handler) CreateBranch(w http.ResponseWriter, r *http.Request) {
	gh, ok := h.github(w)
	if !ok {
		return
	}

	var req CreateBranchRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.NewBranch == "" {
		writeError(w, http.StatusBadRequest, "new_branch is required")
		return
	}

	if err := gh.CreateBranch(r.Context(), req.Owner+"/"+req.Repo, req.BaseBranch, req.NewBranch); err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{"branch": req.NewBranch})
}

// Activity returns the aggregated activity feed.
func (h *Handler) Activity(w http.ResponseWriter, r *http.Request) {
	feed, err := h.activity.Feed(r.Context())
	if err != nil {
		h.logger.Error("failed to build activity feed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusOK, feed)
}

// ListReports returns recent analysis reports, newest first.
func (h *Handler) ListReports(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}

	reports, err := h.reports.ListRecent(r.Context(), limit)
	if err != nil {
		h.logger.Error("failed to list reports", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusOK, reports)
}

// Health reports service liveness.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:     "ok",
		Time:       time.Now().UTC().Format(time.RFC3339),
		Workspaces: h.manager.Count(),
	})
}

package httphandler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/calebmoore/codereviewer/internal/application"
	"github.com/calebmoore/codereviewer/internal/domain/model"
)

// writeJSON marshals v to JSON and writes it to the response with the given
// status code. If marshaling fails, a 500 error is written instead.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"internal server error"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

// writeError writes a JSON error response with the given status code and message.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// errorResponse is the standard error response body.
type errorResponse struct {
	Error string `json:"error"`
}

// LoginRequest is the JSON body for the token login endpoint.
type LoginRequest struct {
	Token string `json:"token"`
}

// LoginResponse reports a successful token validation.
type LoginResponse struct {
	Username string `json:"username"`
}

// AuthStatusResponse reports whether a GitHub client is configured.
type AuthStatusResponse struct {
	Authenticated bool   `json:"authenticated"`
	Username      string `json:"username,omitempty"`
}

// RepoResponse is the JSON representation of a browsable repository.
type RepoResponse struct {
	FullName      string `json:"full_name"`
	Owner         string `json:"owner"`
	Name          string `json:"name"`
	Description   string `json:"description,omitempty"`
	DefaultBranch string `json:"default_branch"`
	Private       bool   `json:"private"`
	URL           string `json:"url"`
	UpdatedAt     string `json:"updated_at"`
}

// PRResponse is the JSON representation of a pull request.
type PRResponse struct {
	Number     int    `json:"number"`
	Repository string `json:"repository"`
	Title      string `json:"title"`
	Body       string `json:"body,omitempty"`
	Author     string `json:"author"`
	Status     string `json:"status"`
	IsDraft    bool   `json:"is_draft"`
	URL        string `json:"url"`
	Branch     string `json:"branch"`
	BaseBranch string `json:"base_branch"`
	HeadSHA    string `json:"head_sha,omitempty"`
	OpenedAt   string `json:"opened_at"`
	UpdatedAt  string `json:"updated_at"`

	// Changed files with rendered diff hunks; populated only on the single
	// PR detail endpoint.
	Files []PRFileResponse `json:"files,omitempty"`
}

// PRFileResponse is one changed file of a pull request. PatchHTML carries
// the diff hunk rendered with line-level CSS classes.
type PRFileResponse struct {
	Filename  string `json:"filename"`
	Status    string `json:"status"`
	Additions int    `json:"additions"`
	Deletions int    `json:"deletions"`
	Changes   int    `json:"changes"`
	Patch     string `json:"patch,omitempty"`
	PatchHTML string `json:"patch_html,omitempty"`
	SHA       string `json:"sha"`
}

// CreateWorkspaceRequest is the JSON body for the workspace creation endpoint.
type CreateWorkspaceRequest struct {
	Owner    string `json:"owner"`
	Repo     string `json:"repo"`
	PRNumber int    `json:"pr_number,omitempty"`
}

// OpenFileRequest is the JSON body for the workspace open endpoint.
type OpenFileRequest struct {
	Path string `json:"path"`
	Ref  string `json:"ref,omitempty"`
}

// ApplyFixRequest is the JSON body for the single-fix endpoint.
type ApplyFixRequest struct {
	IssueID string `json:"issue_id"`
}

// CommitRequest is the JSON body for the workspace commit endpoint.
type CommitRequest struct {
	Message string `json:"message"`
}

// ChatRequest is the JSON body for the workspace chat endpoint.
type ChatRequest struct {
	Message string `json:"message"`
}

// ChatResponse is the outcome of one chat turn. ResponseHTML is the
// assistant reply rendered as sanitized HTML.
type ChatResponse struct {
	Response     string `json:"response"`
	ResponseHTML string `json:"response_html"`
	CodeModified bool   `json:"code_modified"`

	Committed   bool                      `json:"committed"`
	Commit      *application.CommitResult `json:"commit,omitempty"`
	CommitError string                    `json:"commit_error,omitempty"`
}

// AnalyzeCodeRequest is the JSON body for the stateless analysis endpoint.
type AnalyzeCodeRequest struct {
	Code     string `json:"code"`
	Filename string `json:"filename"`
}

// AnalyzeDiffRequest is the JSON body for the stateless diff review endpoint.
type AnalyzeDiffRequest struct {
	Diff string `json:"diff"`
}

// GenerateFixRequest is the JSON body for the stateless fix endpoint.
type GenerateFixRequest struct {
	Code  string      `json:"code"`
	Issue model.Issue `json:"issue"`
}

// GenerateFixResponse carries the complete corrected file.
type GenerateFixResponse struct {
	FixedCode string `json:"fixed_code"`
}

// FetchFileRequest is the JSON body for the stateless file fetch endpoint.
type FetchFileRequest struct {
	Owner string `json:"owner"`
	Repo  string `json:"repo"`
	Path  string `json:"path"`
	Ref   string `json:"ref,omitempty"`
}

// FetchFileResponse carries a file's decoded content and its content SHA.
type FetchFileResponse struct {
	Content string `json:"content"`
	SHA     string `json:"sha"`
}

// CommitFileRequest is the JSON body for the stateless commit endpoint.
type CommitFileRequest struct {
	Owner   string `json:"owner"`
	Repo    string `json:"repo"`
	Path    string `json:"path"`
	Content string `json:"content"`
	Message string `json:"message"`
	SHA     string `json:"sha,omitempty"`
	Branch  string `json:"branch"`
}

// CommitFileResponse reports a successful stateless commit.
type CommitFileResponse struct {
	NewSHA    string `json:"new_sha"`
	CommitURL string `json:"commit_url,omitempty"`
}

// CreateBranchRequest is the JSON body for the branch creation endpoint.
type CreateBranchRequest struct {
	Owner      string `json:"owner"`
	Repo       string `json:"repo"`
	BaseBranch string `json:"base_branch"`
	NewBranch  string `json:"new_branch"`
}

// HealthResponse is the JSON representation of the health check endpoint.
type HealthResponse struct {
	Status     string `json:"status"`
	Time       string `json:"time"`
	Workspaces int    `json:"workspaces"`
}

// toRepoResponse converts a domain Repository to its JSON response representation.
func toRepoResponse(repo model.Repository) RepoResponse {
	return RepoResponse{
		FullName:      repo.FullName,
		Owner:         repo.Owner,
		Name:          repo.Name,
		Description:   repo.Description,
		DefaultBranch: repo.DefaultBranch,
		Private:       repo.Private,
		URL:           repo.URL,
		UpdatedAt:     repo.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

// toPRResponse converts a domain PullRequest to its JSON response representation.
func toPRResponse(pr model.PullRequest) PRResponse {
	return PRResponse{
		Number:     pr.Number,
		Repository: pr.RepoFullName,
		Title:      pr.Title,
		Body:       pr.Body,
		Author:     pr.Author,
		Status:     string(pr.Status),
		IsDraft:    pr.IsDraft,
		URL:        pr.URL,
		Branch:     pr.Branch,
		BaseBranch: pr.BaseBranch,
		HeadSHA:    pr.HeadSHA,
		OpenedAt:   pr.OpenedAt.UTC().Format(time.RFC3339),
		UpdatedAt:  pr.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

// toPRFileResponse converts a PRFile to its JSON representation with the
// diff hunk rendered to HTML.
func toPRFileResponse(f model.PRFile) PRFileResponse {
	return PRFileResponse{
		Filename:  f.Filename,
		Status:    f.Status,
		Additions: f.Additions,
		Deletions: f.Deletions,
		Changes:   f.Changes,
		Patch:     f.Patch,
		PatchHTML: RenderDiffHunk(f.Patch),
		SHA:       f.SHA,
	}
}

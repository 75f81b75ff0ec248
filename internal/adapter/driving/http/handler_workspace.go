package httphandler

import (
	"errors"
	"net/http"

	"github.com/calebmoore/codereviewer/internal/application"
)

// workspace resolves the {id} path value to a live workspace, writing a 404
// when it does not exist.
func (h *Handler) workspace(w http.ResponseWriter, r *http.Request) (*application.Workspace, bool) {
	ws := h.manager.Get(r.PathValue("id"))
	if ws == nil {
		writeError(w, http.StatusNotFound, "workspace not found")
		return nil, false
	}
	return ws, true
}

// writeWorkspaceError maps workspace precondition failures to 4xx responses
// and everything else to a 502: precondition failures never reached the
// network, remote rejections did.
func (h *Handler) writeWorkspaceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, application.ErrNotAuthenticated):
		writeError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, application.ErrNoFileOpen),
		errors.Is(err, application.ErrEmptyCommitMessage):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, application.ErrIssueNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, application.ErrFixInFlight):
		writeError(w, http.StatusConflict, err.Error())
	default:
		writeError(w, http.StatusBadGateway, err.Error())
	}
}

// CreateWorkspace opens a new editing session for a repository, optionally
// pinned to a pull request.
func (h *Handler) CreateWorkspace(w http.ResponseWriter, r *http.Request) {
	var req CreateWorkspaceRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Owner == "" || req.Repo == "" {
		writeError(w, http.StatusBadRequest, "owner and repo are required")
		return
	}

	ws, err := h.manager.Create(r.Context(), req.Owner, req.Repo, req.PRNumber)
	if err != nil {
		h.writeWorkspaceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, ws.Snapshot())
}

// GetWorkspace returns the workspace's current state snapshot.
func (h *Handler) GetWorkspace(w http.ResponseWriter, r *http.Request) {
	ws, ok := h.workspace(w, r)
	if !ok {
		return
	}

	writeJSON(w, http.StatusOK, ws.Snapshot())
}

// DeleteWorkspace discards a workspace and all its in-memory state.
func (h *Handler) DeleteWorkspace(w http.ResponseWriter, r *http.Request) {
	ws, ok := h.workspace(w, r)
	if !ok {
		return
	}

	h.manager.Delete(ws.ID)
	w.WriteHeader(http.StatusNoContent)
}

// OpenFile loads a file into the workspace's editor buffers.
func (h *Handler) OpenFile(w http.ResponseWriter, r *http.Request) {
	ws, ok := h.workspace(w, r)
	if !ok {
		return
	}

	var req OpenFileRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Path == "" {
		writeError(w, http.StatusBadRequest, "path is required")
		return
	}

	if err := ws.OpenFile(r.Context(), req.Path, req.Ref); err != nil {
		h.writeWorkspaceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, ws.Snapshot())
}

// AnalyzeWorkspace reviews the working buffer and replaces the issue list.
func (h *Handler) AnalyzeWorkspace(w http.ResponseWriter, r *http.Request) {
	ws, ok := h.workspace(w, r)
	if !ok {
		return
	}

	report, err := ws.Analyze(r.Context())
	if err != nil {
		h.writeWorkspaceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, report)
}

// ApplyFix rewrites the working buffer to address one issue.
func (h *Handler) ApplyFix(w http.ResponseWriter, r *http.Request) {
	ws, ok := h.workspace(w, r)
	if !ok {
		return
	}

	var req ApplyFixRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.IssueID == "" {
		writeError(w, http.StatusBadRequest, "issue_id is required")
		return
	}

	if err := ws.ApplyFix(r.Context(), req.IssueID); err != nil {
		h.writeWorkspaceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, ws.Snapshot())
}

// AutoFix drains the issue list sequentially and reports per-item outcomes.
// It never commits.
func (h *Handler) AutoFix(w http.ResponseWriter, r *http.Request) {
	ws, ok := h.workspace(w, r)
	if !ok {
		return
	}

	report, err := ws.AutoFix(r.Context())
	if err != nil {
		h.writeWorkspaceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, report)
}

// Commit writes the working buffer back as a new commit on the workspace's
// branch.
func (h *Handler) Commit(w http.ResponseWriter, r *http.Request) {
	ws, ok := h.workspace(w, r)
	if !ok {
		return
	}

	var req CommitRequest
	if !decodeBody(w, r, &req) {
		return
	}

	result, err := ws.Commit(r.Context(), req.Message)
	if err != nil {
		h.writeWorkspaceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// Chat sends a conversational message and applies any code or commit side
// effects the reply requests.
func (h *Handler) Chat(w http.ResponseWriter, r *http.Request) {
	ws, ok := h.workspace(w, r)
	if !ok {
		return
	}

	var req ChatRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Message == "" {
		writeError(w, http.StatusBadRequest, "message is required")
		return
	}

	result, err := ws.Chat(r.Context(), req.Message)
	if err != nil {
		h.writeWorkspaceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, ChatResponse{
		Response:     result.Reply.Response,
		ResponseHTML: RenderMarkdown(result.Reply.Response),
		CodeModified: result.Reply.CodeModified,
		Committed:    result.Committed,
		Commit:       result.Commit,
		CommitError:  result.CommitError,
	})
}

package driven

import (
	"context"

	"github.com/calebmoore/codereviewer/internal/domain/model"
)

// ChatContext is the slice of dashboard state forwarded to the assistant so
// it can answer questions about the currently open file and its findings.
type ChatContext struct {
	Filename string
	Code     string
	Summary  string
	Issues   []model.Issue
}

// ChatRequest is the input to Analyzer.Chat. History is the full prior
// conversation, replayed verbatim on every turn.
type ChatRequest struct {
	Message string
	Context ChatContext
	History []model.ChatMessage
}

// Analyzer defines the driven port for the AI inference backend. All methods
// are synchronous request/response calls; sequencing and buffer state are
// the caller's responsibility.
type Analyzer interface {
	// AnalyzeCode reviews a complete file and returns the findings.
	AnalyzeCode(ctx context.Context, code, filename string) (*model.Report, error)

	// AnalyzeDiff reviews a raw unified diff pasted by the user.
	AnalyzeDiff(ctx context.Context, diff string) (*model.Report, error)

	// GenerateFix rewrites code to address one specific issue and returns
	// the complete corrected file, never a patch.
	GenerateFix(ctx context.Context, code string, issue model.Issue) (string, error)

	// Chat answers a conversational message. The reply may carry a full
	// rewrite of the open file or a request to commit it; interpreting
	// those signals is the caller's job.
	Chat(ctx context.Context, req ChatRequest) (*model.ChatReply, error)
}

package ai

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/calebmoore/codereviewer/internal/domain/model"
	"github.com/calebmoore/codereviewer/internal/domain/port/driven"
)

const reportSchema = `{
  "summary": "Brief summary of code quality",
  "issues": [
    {
      "category": "Logic|Security|Performance|Style",
      "severity": "High|Medium|Low",
      "file": "filename if known, else omit",
      "line": 0,
      "message": "Description of the issue",
      "suggestion": "How to fix it"
    }
  ],
  "recommendation": "Approve|Refactor"
}`

func analyzeCodePrompt(code, filename string) string {
	return fmt.Sprintf(`Deep full-file code review.

File: %s

Code:
%s

IMPORTANT: You MUST respond with valid JSON only. No markdown, no explanations outside JSON.

Output JSON:
%s
`, filename, code, reportSchema)
}

func analyzeDiffPrompt(diff string) string {
	return fmt.Sprintf(`Review the following code changes (unified diff). Report correctness, security, performance and style findings.

Diff:
%s

IMPORTANT: You MUST respond with valid JSON only. No markdown, no explanations outside JSON.

Output JSON:
%s
`, diff, reportSchema)
}

func generateFixPrompt(code string, issue model.Issue) string {
	issueJSON, _ := json.MarshalIndent(issue, "", "  ")

	return fmt.Sprintf(`You are a senior engineer.
Fix the following specific issue in the code.

Issue:
%s

Code:
%s

Task:
1. Apply the fix for the specific issue described.
2. Return ONLY the full fixed code. No markdown formatting, no explanations.
`, issueJSON, code)
}

func chatPrompt(req driven.ChatRequest) string {
	ctxJSON, _ := json.MarshalIndent(map[string]any{
		"filename": req.Context.Filename,
		"summary":  req.Context.Summary,
		"issues":   req.Context.Issues,
	}, "", "  ")

	var b strings.Builder
	fmt.Fprintf(&b, `You are an AI coding assistant helping with code review.
Here is the review context:

%s

IMPORTANT INSTRUCTIONS:
1. Provide helpful explanations and suggestions.
2. Be concise and professional.
3. If discussing code, use markdown code blocks.
4. DO NOT wrap your response in JSON format.

Conversation:
`, ctxJSON)

	for _, msg := range req.History {
		fmt.Fprintf(&b, "%s: %s\n", strings.ToUpper(string(msg.Role)), msg.Content)
	}
	fmt.Fprintf(&b, "USER: %s\nAI:", req.Message)

	return b.String()
}

func applyChangesPrompt(req driven.ChatRequest) string {
	return fmt.Sprintf(`You are a senior engineer helping a developer make specific code changes.

CURRENT FILE: %s

ORIGINAL CODE:
%s

USER REQUEST: %s

TASK:
1. Understand the user's specific request.
2. Apply ONLY the changes they requested; do not rewrite everything.
3. Maintain code style and existing patterns.
4. Ensure the code remains functional.

OUTPUT FORMAT (you must output valid JSON):
{
  "explanation": "Brief explanation of what you changed (2-3 sentences)",
  "modified_code": "The complete modified code file",
  "changes_summary": "List of specific changes made"
}

IMPORTANT: Return ONLY valid JSON. No markdown, no extra text.
`, req.Context.Filename, req.Context.Code, req.Message)
}

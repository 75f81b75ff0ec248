package ai

import (
	"encoding/json"
	"errors"
	"regexp"
	"strings"

	"github.com/calebmoore/codereviewer/internal/domain/model"
)

// Pre-compiled patterns for cleaning LLM output. Models frequently wrap JSON
// in code fences or append prose despite being told not to.
var (
	codeFenceRegex     = regexp.MustCompile("(?s)```(?:[a-zA-Z]+)?\\s*\\n?(.*?)\\n?```")
	objectRegex        = regexp.MustCompile(`(?s)\{.*\}`)
	trailingCommaRegex = regexp.MustCompile(`,(\s*[}\]])`)
)

// rawReport mirrors the JSON contract the prompts ask for.
type rawReport struct {
	Summary        string     `json:"summary"`
	Issues         []rawIssue `json:"issues"`
	Recommendation string     `json:"recommendation"`
}

type rawIssue struct {
	Category   string `json:"category"`
	Severity   string `json:"severity"`
	File       string `json:"file"`
	Line       int    `json:"line"`
	Message    string `json:"message"`
	Suggestion string `json:"suggestion"`
}

// changeResult mirrors the JSON contract of the code-modification prompt.
type changeResult struct {
	Explanation    string `json:"explanation"`
	ModifiedCode   string `json:"modified_code"`
	ChangesSummary string `json:"changes_summary"`
}

// parseReport decodes an analysis completion into a Report. It tries the
// text as-is, then with code fences stripped, then the outermost JSON
// object, each pass with trailing commas removed.
func parseReport(text string) (*model.Report, error) {
	var raw rawReport
	if err := decodeJSON(text, &raw); err != nil {
		return nil, err
	}

	issues := make([]model.Issue, 0, len(raw.Issues))
	for _, ri := range raw.Issues {
		issues = append(issues, model.Issue{
			Category:   ri.Category,
			Severity:   model.NormalizeSeverity(ri.Severity),
			File:       ri.File,
			Line:       ri.Line,
			Message:    ri.Message,
			Suggestion: ri.Suggestion,
		})
	}

	return &model.Report{
		Summary:        raw.Summary,
		Recommendation: raw.Recommendation,
		Issues:         issues,
	}, nil
}

// parseChangeResult decodes a code-modification completion.
func parseChangeResult(text string) (*changeResult, error) {
	var change changeResult
	if err := decodeJSON(text, &change); err != nil {
		return nil, err
	}
	return &change, nil
}

// decodeJSON unmarshals LLM output into v with fallback cleanup passes.
func decodeJSON(text string, v any) error {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return errors.New("empty response")
	}

	candidates := []string{trimmed}

	if m := codeFenceRegex.FindStringSubmatch(trimmed); m != nil {
		candidates = append(candidates, strings.TrimSpace(m[1]))
	}
	if m := objectRegex.FindString(trimmed); m != "" {
		candidates = append(candidates, m)
	}

	var lastErr error
	for _, candidate := range candidates {
		if lastErr = json.Unmarshal([]byte(candidate), v); lastErr == nil {
			return nil
		}

		cleaned := trailingCommaRegex.ReplaceAllString(candidate, "$1")
		if lastErr = json.Unmarshal([]byte(cleaned), v); lastErr == nil {
			return nil
		}
	}

	return lastErr
}

// stripCodeFences removes markdown code fences from a completion that is
// expected to be a bare file body.
func stripCodeFences(text string) string {
	trimmed := strings.TrimSpace(text)

	if m := codeFenceRegex.FindStringSubmatch(trimmed); m != nil {
		return strings.TrimSpace(m[1])
	}
	return trimmed
}

// firstFencedBlock returns the content of the first markdown code fence, or
// "" when the text has none.
func firstFencedBlock(text string) string {
	if m := codeFenceRegex.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1])
	}
	return ""
}

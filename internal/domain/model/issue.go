package model

import "strings"

// Severity classifies an analysis finding. The AI backend is free-form in
// practice, so unknown values are normalized to SeverityInfo.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// NormalizeSeverity maps arbitrary backend severity strings onto the known
// enum, defaulting to info.
func NormalizeSeverity(s string) Severity {
	switch Severity(strings.ToLower(s)) {
	case SeverityWarning, SeverityError, SeverityInfo:
		return Severity(strings.ToLower(s))
	case "critical", "high":
		return SeverityError
	case "medium", "moderate":
		return SeverityWarning
	default:
		return SeverityInfo
	}
}

// Issue is a single analysis finding. ID is a synthetic identifier assigned
// when the finding enters a workspace issue list; the AI backend does not
// provide one.
type Issue struct {
	ID         string   `json:"id"`
	Category   string   `json:"category"`
	Severity   Severity `json:"severity"`
	File       string   `json:"file,omitempty"`
	Line       int      `json:"line,omitempty"`
	Message    string   `json:"message"`
	Suggestion string   `json:"suggestion,omitempty"`
}

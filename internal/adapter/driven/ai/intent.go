package ai

import (
	"fmt"
	"strings"
)

var pushKeywords = []string{
	"push", "commit", "save", "deploy", "publish",
	"save to branch", "save changes",
}

var changeKeywords = []string{
	"change", "modify", "update", "fix", "add", "remove", "delete",
	"replace", "refactor", "improve", "optimize", "correct",
	"make it", "edit", "adjust", "tweak",
	"insert", "append", "prepend", "rename",
}

// detectPushIntent reports whether the message asks to commit or push the
// open file.
func detectPushIntent(message string) bool {
	lower := strings.ToLower(message)
	for _, kw := range pushKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// detectChangeIntent reports whether the message asks for a code
// modification rather than a plain answer. Keyword matching is deliberately
// broad; a false positive only costs one structured inference call.
func detectChangeIntent(message string) bool {
	lower := strings.ToLower(message)
	for _, kw := range changeKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// commitMessageFor derives a conventional-commit style message from the
// user's request.
func commitMessageFor(message, filename string) string {
	lower := strings.ToLower(message)

	switch {
	case strings.Contains(lower, "fix"):
		return fmt.Sprintf("fix: updates to %s", filename)
	case strings.Contains(lower, "add"), strings.Contains(lower, "new"):
		return fmt.Sprintf("feat: add changes to %s", filename)
	case strings.Contains(lower, "refactor"):
		return fmt.Sprintf("refactor: refactor %s", filename)
	case strings.Contains(lower, "remove"), strings.Contains(lower, "delete"):
		return fmt.Sprintf("chore: remove code from %s", filename)
	case strings.Contains(lower, "update"), strings.Contains(lower, "improve"):
		return fmt.Sprintf("chore: update %s", filename)
	default:
		return fmt.Sprintf("chore: AI-assisted changes to %s", filename)
	}
}

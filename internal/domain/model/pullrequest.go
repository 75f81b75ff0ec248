package model

import "time"

// PRStatus reflects the lifecycle state of a pull request.
type PRStatus string

const (
	PRStatusOpen   PRStatus = "open"
	PRStatusClosed PRStatus = "closed"
	PRStatusMerged PRStatus = "merged"
)

// PullRequest represents a GitHub pull request as shown in the dashboard.
type PullRequest struct {
	ID           int64
	Number       int
	RepoFullName string
	Title        string
	Body         string
	Author       string
	Status       PRStatus
	IsDraft      bool
	URL          string
	Branch       string // Head branch; the write target when a file is opened in PR context.
	BaseBranch   string
	HeadSHA      string
	OpenedAt     time.Time
	UpdatedAt    time.Time
}

// PRFile is one changed file in a pull request, as reported by the
// "list pull request files" endpoint. Patch is the unified diff hunk text
// and may be empty for binary or very large files.
type PRFile struct {
	Filename  string `json:"filename"`
	Status    string `json:"status"`
	Additions int    `json:"additions"`
	Deletions int    `json:"deletions"`
	Changes   int    `json:"changes"`
	Patch     string `json:"patch,omitempty"`
	SHA       string `json:"sha"`
	RawURL    string `json:"raw_url,omitempty"`
}

package model

import "time"

// Report is the result of one analysis pass over a file or diff, plus the
// persisted history record for the dashboard feed.
type Report struct {
	ID             int64     `json:"id,omitempty"`
	Owner          string    `json:"owner,omitempty"`
	Repo           string    `json:"repo,omitempty"`
	PRNumber       int       `json:"pr_number,omitempty"`
	Filename       string    `json:"filename,omitempty"`
	Summary        string    `json:"summary"`
	Recommendation string    `json:"recommendation,omitempty"`
	Issues         []Issue   `json:"issues"`
	CreatedAt      time.Time `json:"created_at,omitzero"`
}

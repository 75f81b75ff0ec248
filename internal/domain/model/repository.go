package model

import "time"

// Repository represents a GitHub repository the authenticated user can browse.
type Repository struct {
	ID            int64
	FullName      string
	Owner         string
	Name          string
	Description   string
	DefaultBranch string
	Private       bool
	URL           string
	UpdatedAt     time.Time
}

package model

import "time"

// CommitActivity is one recent commit surfaced in the activity feed.
type CommitActivity struct {
	SHA          string    `json:"sha"` // Abbreviated to 7 characters.
	Message      string    `json:"message"`
	Author       string    `json:"author"`
	Date         time.Time `json:"date"`
	RepoFullName string    `json:"repo"`
	URL          string    `json:"url"`
}

// FileChangeActivity is one recently changed file from an open or recently
// updated pull request, surfaced in the activity feed.
type FileChangeActivity struct {
	Filename     string `json:"filename"`
	Status       string `json:"status"`
	Additions    int    `json:"additions"`
	Deletions    int    `json:"deletions"`
	Changes      int    `json:"changes"`
	PRNumber     int    `json:"pr_number"`
	PRTitle      string `json:"pr_title"`
	RepoFullName string `json:"repo"`
}

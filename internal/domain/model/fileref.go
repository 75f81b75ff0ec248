package model

// FileRef identifies a file at a specific point in a repository's history.
// SHA is the blob SHA GitHub reported when the content was fetched; it acts
// as the optimistic concurrency token for commits and is empty until a
// fetch succeeds.
type FileRef struct {
	Owner  string `json:"owner"`
	Repo   string `json:"repo"`
	Path   string `json:"path"`
	Branch string `json:"branch"`
	SHA    string `json:"sha"`
}

// IsOpen reports whether the reference points at successfully fetched
// content. A failed fetch leaves SHA empty, which blocks analysis and
// commits until the file is reopened.
func (f FileRef) IsOpen() bool {
	return f.SHA != ""
}

// FullName returns the owner/repo form used by the GitHub API.
func (f FileRef) FullName() string {
	return f.Owner + "/" + f.Repo
}

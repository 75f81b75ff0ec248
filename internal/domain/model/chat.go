package model

// ChatRole identifies the author of a chat message.
type ChatRole string

const (
	ChatRoleUser      ChatRole = "user"
	ChatRoleAssistant ChatRole = "assistant"
)

// ChatMessage is one turn of the assistant conversation. The full history
// is replayed to the backend on every request.
type ChatMessage struct {
	Role    ChatRole `json:"role"`
	Content string   `json:"content"`
}

// ChatReply is the assistant's structured answer. CodeModified signals that
// ModifiedCode carries a full rewrite of the open file; PushRequested asks
// the caller to commit it with CommitMessage.
type ChatReply struct {
	Response      string `json:"response"`
	CodeModified  bool   `json:"code_modified"`
	ModifiedCode  string `json:"modified_code,omitempty"`
	PushRequested bool   `json:"push_requested"`
	CommitMessage string `json:"commit_message,omitempty"`
}

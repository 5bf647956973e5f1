package model

// ChatRole is the author of a chat message.
type ChatRole string

const (
	ChatRoleUser      ChatRole = "user"
	ChatRoleAssistant ChatRole = "assistant"
)

// ChatMessage is a single message of a task chat conversation.
type ChatMessage struct {
	Role ChatRole
	Text string
}

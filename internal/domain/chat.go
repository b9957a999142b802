package domain

// Role identifies the author of a chat message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ChatMessage is the provider-agnostic chat message shape sent to LLM
// integrations.
type ChatMessage struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

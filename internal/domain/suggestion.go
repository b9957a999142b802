package domain

// SuggestionRequest is the provider-agnostic payload for a single
// marketing suggestion call. It is built per call and never persisted.
type SuggestionRequest struct {
	Model       string
	Messages    []ChatMessage
	Temperature float64
	MaxTokens   int
	TopP        *float64
}

// ProviderResponse is the subset of a chat completion the suggestion
// pipeline reads.
type ProviderResponse struct {
	Choices []Choice
}

// Choice holds one candidate reply. A nil Reply means the provider returned
// the choice without a message.
type Choice struct {
	Reply Reply
}

// Reply is either a TextReply or a FunctionCallReply.
type Reply interface {
	isReply()
}

// TextReply is a plain assistant message.
type TextReply struct {
	Content string
}

// FunctionCallReply is a structured reply whose Arguments hold a JSON
// document. Content carries any plain text sent alongside the call.
type FunctionCallReply struct {
	Name      string
	Arguments string
	Content   string
}

func (TextReply) isReply()         {}
func (FunctionCallReply) isReply() {}

// Model is one entry returned by the provider's model listing.
type Model struct {
	ID string
}

package llm

// Role values accepted in Message.Role.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is a single turn in a completion request.
type Message struct {
	// Role is one of RoleSystem, RoleUser or RoleAssistant.
	Role string

	// Content is the text content of the message.
	Content string
}

// CompletionRequest carries everything the LLM needs to produce a response.
// At minimum Messages must be non-empty.
type CompletionRequest struct {
	Messages []Message

	// Temperature controls output randomness. Zero leaves the provider default.
	Temperature float64

	// MaxTokens caps the number of completion tokens. Zero means provider default.
	MaxTokens int

	// SystemPrompt, when set, is sent ahead of Messages as a system turn.
	SystemPrompt string
}

// Usage holds token accounting information returned by the backend.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// CompletionResponse is the result of Provider.Complete.
type CompletionResponse struct {
	// Content is the full text of the assistant's reply.
	Content string

	Usage Usage
}

// ModelCapabilities describes static limits of a model.
type ModelCapabilities struct {
	// ContextWindow is the maximum prompt plus completion size in tokens.
	ContextWindow int

	// MaxOutputTokens is the largest completion the model will produce.
	MaxOutputTokens int
}

package domain

import "context"

// ToolDescriptor describes one callable tool advertised to the completion service.
// Descriptors are discovered once per tool-channel connection and cached.
type ToolDescriptor struct {
	Name        string
	Description string
	InputSchema map[string]any
}

// CompletionRequest carries everything needed for one model turn.
type CompletionRequest struct {
	Model     string
	MaxTokens int
	System    string
	Turns     []Turn
	// Tools is the tool catalog for this conversation. A nil catalog means the
	// provider receives no tools field at all, per provider convention.
	Tools []ToolDescriptor
}

// CompletionService produces the next assistant turn for a conversation.
type CompletionService interface {
	// CreateTurn returns the next assistant turn, which may contain tool calls.
	CreateTurn(ctx context.Context, req CompletionRequest) (Turn, error)
}

// ToolChannel executes named tool calls against a long-lived tool session.
type ToolChannel interface {
	// ListTools returns the cached tool catalog discovered at connection time.
	ListTools(ctx context.Context) ([]ToolDescriptor, error)

	// CallTool executes one tool call and returns its result as canonical text.
	// Tool-reported failures and transport failures both surface as errors; the
	// caller decides how to fold them back into the conversation.
	CallTool(ctx context.Context, name string, arguments map[string]any) (string, error)
}

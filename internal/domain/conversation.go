package domain

import (
	"strings"
	"sync"

	"github.com/google/uuid"
)

// ChatRole represents the author of one conversation turn.
type ChatRole string

const (
	ChatRole_User      ChatRole = "user"
	ChatRole_Assistant ChatRole = "assistant"
)

// ToolCall is one tool invocation requested by the assistant.
type ToolCall struct {
	ID        string
	Name      string
	Arguments map[string]any
}

// ToolResult is the outcome of one tool invocation, keyed by the originating call ID.
type ToolResult struct {
	CallID  string
	Content string
	IsError bool
}

// Segment is one unit of turn content: plain text, a tool call, or a tool result.
// Exactly one of the fields is set.
type Segment struct {
	Text       string
	ToolCall   *ToolCall
	ToolResult *ToolResult
}

// TextSegment builds a plain-text segment.
func TextSegment(text string) Segment {
	return Segment{Text: text}
}

// Turn is one role-attributed unit of conversation history.
type Turn struct {
	Role     ChatRole
	Segments []Segment
}

// ToolCalls returns the tool calls of this turn in the order they appear.
func (t Turn) ToolCalls() []ToolCall {
	var calls []ToolCall
	for _, seg := range t.Segments {
		if seg.ToolCall != nil {
			calls = append(calls, *seg.ToolCall)
		}
	}
	return calls
}

// JoinedText concatenates all text segments of this turn, newline-joined and trimmed.
func (t Turn) JoinedText() string {
	var parts []string
	for _, seg := range t.Segments {
		if seg.ToolCall != nil || seg.ToolResult != nil {
			continue
		}
		if s := strings.TrimSpace(seg.Text); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, "\n")
}

// Conversation is an append-only turn log. One orchestrator run owns the log
// exclusively between Acquire and Release; turns are never mutated once appended.
type Conversation struct {
	ID uuid.UUID

	mu    sync.Mutex
	turns []Turn
}

// NewConversation creates an empty conversation with a fresh id.
func NewConversation() *Conversation {
	return &Conversation{ID: uuid.New()}
}

// Acquire takes exclusive ownership of the history for the duration of one run.
func (c *Conversation) Acquire() {
	c.mu.Lock()
}

// Release gives up exclusive ownership taken by Acquire.
func (c *Conversation) Release() {
	c.mu.Unlock()
}

// Append adds one turn to the history. The caller must hold ownership via Acquire.
func (c *Conversation) Append(t Turn) {
	c.turns = append(c.turns, t)
}

// Turns returns a copy of the turn log. The caller must hold ownership via Acquire.
func (c *Conversation) Turns() []Turn {
	out := make([]Turn, len(c.turns))
	copy(out, c.turns)
	return out
}

// Len returns the number of appended turns.
func (c *Conversation) Len() int {
	return len(c.turns)
}

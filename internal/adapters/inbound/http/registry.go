package http

import (
	"sync"

	"github.com/cleitonmarx/epm-copilot/internal/domain"
	"github.com/google/uuid"
)

// ConversationRegistry keeps the live conversations of the HTTP API. Each
// conversation serializes its own runs, the registry only guards the map.
type ConversationRegistry struct {
	mu            sync.Mutex
	conversations map[uuid.UUID]*domain.Conversation
}

// NewConversationRegistry creates an empty registry.
func NewConversationRegistry() *ConversationRegistry {
	return &ConversationRegistry{conversations: map[uuid.UUID]*domain.Conversation{}}
}

// Create starts a new conversation and returns it.
func (r *ConversationRegistry) Create() *domain.Conversation {
	r.mu.Lock()
	defer r.mu.Unlock()
	conversation := domain.NewConversation()
	r.conversations[conversation.ID] = conversation
	return conversation
}

// Get returns the conversation with the given id, if it exists.
func (r *ConversationRegistry) Get(id uuid.UUID) (*domain.Conversation, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	conversation, ok := r.conversations[id]
	return conversation, ok
}

package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/cleitonmarx/epm-copilot/internal/domain"
	"github.com/cleitonmarx/epm-copilot/internal/usecases"
	"github.com/google/uuid"
)

type chatRequest struct {
	ConversationID *uuid.UUID `json:"conversation_id,omitempty"`
	Message        string     `json:"message"`
}

type chatResponse struct {
	ConversationID uuid.UUID `json:"conversation_id"`
	Reply          string    `json:"reply"`
}

// Chat runs one orchestrated exchange. Without a conversation_id a new
// conversation is started; with one, the exchange continues its history.
func (api *CopilotServer) Chat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid request body")
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		respondError(w, http.StatusBadRequest, "BAD_REQUEST", "message is required")
		return
	}

	var conversation *domain.Conversation
	if req.ConversationID != nil {
		found, ok := api.registry.Get(*req.ConversationID)
		if !ok {
			respondError(w, http.StatusNotFound, "NOT_FOUND", "unknown conversation")
			return
		}
		conversation = found
	} else {
		conversation = api.registry.Create()
	}

	reply, err := api.Orchestrator.Execute(r.Context(), conversation, req.Message)
	if err != nil {
		api.Logger.Printf("Chat: orchestration failed: %v", err)
		if errors.Is(err, usecases.ErrToolCycleLimit) {
			respondError(w, http.StatusUnprocessableEntity, "TOOL_CYCLE_LIMIT", err.Error())
			return
		}
		respondError(w, http.StatusBadGateway, "ORCHESTRATION_FAILED", err.Error())
		return
	}

	respondJSON(w, http.StatusOK, chatResponse{ConversationID: conversation.ID, Reply: reply})
}

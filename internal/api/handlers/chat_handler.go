package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/zatekoja/itineraryconcierge/internal/application/services"
	"github.com/zatekoja/itineraryconcierge/internal/domain/entities"
)

// maxChatBodyBytes bounds the request body; snapshots can be large itineraries.
const maxChatBodyBytes = 1 << 20

// PlanMutator runs one conversational turn against a plan.
type PlanMutator interface {
	Mutate(ctx context.Context, req services.MutationRequest) (*services.MutationResponse, error)
}

// ChatHandler handles conversational plan edits
type ChatHandler struct {
	mutator PlanMutator
}

// NewChatHandler creates a new chat handler
func NewChatHandler(mutator PlanMutator) *ChatHandler {
	return &ChatHandler{mutator: mutator}
}

// ChatRequest is the body of POST /api/chat-with-plan.
type ChatRequest struct {
	PlanID              string              `json:"planId"`
	Message             string              `json:"message"`
	Role                string              `json:"role,omitempty"`
	CurrentPlan         json.RawMessage     `json:"currentPlan,omitempty"`
	ConversationHistory []entities.ChatTurn `json:"conversationHistory,omitempty"`
}

// ChatWithPlan handles POST /api/chat-with-plan
func (h *ChatHandler) ChatWithPlan(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxChatBodyBytes)

	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondWithError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	resp, err := h.mutator.Mutate(r.Context(), services.MutationRequest{
		PlanID:   req.PlanID,
		Message:  req.Message,
		Role:     req.Role,
		Snapshot: req.CurrentPlan,
		History:  req.ConversationHistory,
	})
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusOK, resp)
}

package handlers

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/zatekoja/itineraryconcierge/internal/application/services"
	"github.com/zatekoja/itineraryconcierge/internal/domain/entities"
)

const maxHistoryLimit = 200

// PlanReader reads plans and their conversation logs.
type PlanReader interface {
	GetPlan(ctx context.Context, identifier string) (*entities.StoredPlan, services.PlanKeys, error)
	History(ctx context.Context, identifier string, limit int) ([]entities.ChatTurn, error)
}

// PlanHandler handles plan read endpoints
type PlanHandler struct {
	plans PlanReader
}

// NewPlanHandler creates a new plan handler
func NewPlanHandler(plans PlanReader) *PlanHandler {
	return &PlanHandler{plans: plans}
}

// PlanResponse is the body of GET /api/plans/{id}.
type PlanResponse struct {
	PlanID    string              `json:"planId"`
	Version   int64               `json:"version"`
	UpdatedAt time.Time           `json:"updatedAt"`
	Plan      entities.PlanRecord `json:"plan"`
}

// GetPlan handles GET /api/plans/{id}
func (h *PlanHandler) GetPlan(w http.ResponseWriter, r *http.Request) {
	planID := r.PathValue("id")
	if planID == "" {
		respondWithError(w, http.StatusBadRequest, "plan ID is required")
		return
	}

	stored, keys, err := h.plans.GetPlan(r.Context(), planID)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	etag := fmt.Sprintf(`"v%d"`, stored.Version)
	w.Header().Set("ETag", etag)
	w.Header().Set("Cache-Control", "private, must-revalidate")
	if r.Header.Get("If-None-Match") == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	respondWithJSON(w, http.StatusOK, PlanResponse{
		PlanID:    keys.PlanID,
		Version:   stored.Version,
		UpdatedAt: stored.UpdatedAt,
		Plan:      stored.Plan,
	})
}

// GetHistory handles GET /api/plans/{id}/history?limit=N
func (h *PlanHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	planID := r.PathValue("id")
	if planID == "" {
		respondWithError(w, http.StatusBadRequest, "plan ID is required")
		return
	}

	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			respondWithError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(parsed, maxHistoryLimit)
	}

	turns, err := h.plans.History(r.Context(), planID, limit)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"planId": planID,
		"turns":  turns,
		"count":  len(turns),
	})
}

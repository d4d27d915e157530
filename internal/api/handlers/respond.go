package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/zatekoja/itineraryconcierge/internal/infrastructure/observability"
	apperrors "github.com/zatekoja/itineraryconcierge/pkg/errors"
)

func respondWithJSON(w http.ResponseWriter, statusCode int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		observability.GetLogger().Warn().Err(err).Msg("Failed to write response body")
	}
}

func respondWithError(w http.ResponseWriter, statusCode int, message string) {
	respondWithJSON(w, statusCode, map[string]string{
		"error": message,
	})
}

// respondWithAppError maps an error to a status code and a message that is
// safe to show to clients. Causes are logged, never returned.
func respondWithAppError(w http.ResponseWriter, r *http.Request, err error) {
	logger := observability.LoggerFromContext(r.Context())

	appErr, ok := apperrors.As(err)
	if !ok {
		if ctxErr := r.Context().Err(); ctxErr != nil && errors.Is(err, ctxErr) {
			logger.Info().Err(err).Msg("Request cancelled by client")
			respondWithError(w, 499, "request cancelled")
			return
		}
		logger.Error().Err(err).Msg("Unhandled error")
		respondWithError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	switch appErr.Type {
	case apperrors.ErrorTypeNotFound:
		respondWithError(w, http.StatusNotFound, appErr.Message)
	case apperrors.ErrorTypeValidation:
		respondWithError(w, http.StatusBadRequest, appErr.Message)
	case apperrors.ErrorTypeConflict:
		logger.Warn().Err(appErr).Msg("Plan write conflict")
		respondWithError(w, http.StatusConflict, "the plan was changed by another request; please retry")
	case apperrors.ErrorTypeGeneration:
		logger.Error().Err(appErr).Msg("Model generation failed")
		respondWithError(w, http.StatusBadGateway, "the assistant could not produce a reply; please try again")
	case apperrors.ErrorTypeExternal:
		logger.Error().Err(appErr).Msg("Upstream dependency failed")
		respondWithError(w, http.StatusBadGateway, "an upstream service is unavailable")
	default:
		logger.Error().Err(appErr).Msg("Internal error")
		respondWithError(w, http.StatusInternalServerError, "internal server error")
	}
}

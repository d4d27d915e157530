package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/zatekoja/itineraryconcierge/internal/api/handlers"
	"github.com/zatekoja/itineraryconcierge/internal/application/services"
	"github.com/zatekoja/itineraryconcierge/internal/domain/entities"
	apperrors "github.com/zatekoja/itineraryconcierge/pkg/errors"
)

type MockPlanMutator struct {
	mock.Mock
}

func (m *MockPlanMutator) Mutate(ctx context.Context, req services.MutationRequest) (*services.MutationResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.MutationResponse), args.Error(1)
}

func postChat(t *testing.T, handler *handlers.ChatHandler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/chat-with-plan", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	handler.ChatWithPlan(w, req)
	return w
}

func TestChatHandler_ChatWithPlan_ReturnsContract(t *testing.T) {
	mutator := new(MockPlanMutator)
	handler := handlers.NewChatHandler(mutator)

	updated := entities.PlanRecord{Itinerary: json.RawMessage(`{"destination":"Lisbon","schedule":[]}`)}
	mutator.On("Mutate", mock.Anything, mock.MatchedBy(func(req services.MutationRequest) bool {
		return req.PlanID == "trip-1" &&
			req.Message == "Add a food tour to day 3" &&
			string(req.Snapshot) == `{"destination":"Lisbon"}` &&
			len(req.History) == 1 && req.History[0].Role == "assistant"
	})).Return(&services.MutationResponse{
		Narration:       "Added.",
		Suggestions:     []string{"Book ahead"},
		Citations:       []string{},
		InteractionType: entities.InteractionModification,
		UpdatedPlan:     &updated,
		PlanUpdated:     true,
		Version:         4,
	}, nil)

	w := postChat(t, handler, `{
		"planId": "trip-1",
		"message": "Add a food tour to day 3",
		"currentPlan": {"destination":"Lisbon"},
		"conversationHistory": [{"role":"assistant","message":"Hi!"}]
	}`)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var body map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.JSONEq(t, `"Added."`, string(body["response"]))
	assert.JSONEq(t, `["Book ahead"]`, string(body["suggestions"]))
	assert.JSONEq(t, `"modification"`, string(body["interactionType"]))
	assert.JSONEq(t, `true`, string(body["planUpdated"]))
	assert.JSONEq(t, `false`, string(body["patchRejected"]))
	assert.JSONEq(t, `4`, string(body["version"]))
	assert.JSONEq(t, `{"itinerary":{"destination":"Lisbon","schedule":[]},"recommendations":[]}`, string(body["updatedPlan"]))
	mutator.AssertExpectations(t)
}

func TestChatHandler_ChatWithPlan_QuestionHasNullPlan(t *testing.T) {
	mutator := new(MockPlanMutator)
	handler := handlers.NewChatHandler(mutator)
	mutator.On("Mutate", mock.Anything, mock.Anything).Return(&services.MutationResponse{
		Narration:       "Day 2 is free.",
		Suggestions:     []string{},
		Citations:       []string{},
		InteractionType: entities.InteractionQuestion,
		Version:         1,
	}, nil)

	w := postChat(t, handler, `{"planId":"trip-1","message":"What's on day 2?"}`)

	require.Equal(t, http.StatusOK, w.Code)
	var body map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "null", string(body["updatedPlan"]))
}

func TestChatHandler_ChatWithPlan_MapsErrors(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		status  int
		message string
	}{
		{"not found", apperrors.NewNotFoundError("plan not found"), http.StatusNotFound, "plan not found"},
		{"validation", apperrors.NewValidationError("planId and message are required"), http.StatusBadRequest, "planId and message are required"},
		{"conflict", apperrors.NewConflictError("plan was modified concurrently", errors.New("v2 != v3")), http.StatusConflict, "the plan was changed by another request; please retry"},
		{"generation", apperrors.NewGenerationError("model reply was not valid JSON", errors.New("secret detail")), http.StatusBadGateway, "the assistant could not produce a reply; please try again"},
		{"external", apperrors.NewExternalError("failed to read plan", errors.New("dial tcp 10.0.0.1")), http.StatusBadGateway, "an upstream service is unavailable"},
		{"internal", apperrors.NewInternalError("boom", errors.New("stack")), http.StatusInternalServerError, "internal server error"},
		{"plain", errors.New("unexpected"), http.StatusInternalServerError, "internal server error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mutator := new(MockPlanMutator)
			handler := handlers.NewChatHandler(mutator)
			mutator.On("Mutate", mock.Anything, mock.Anything).Return(nil, tt.err)

			w := postChat(t, handler, `{"planId":"trip-1","message":"hi"}`)

			assert.Equal(t, tt.status, w.Code)
			var body map[string]string
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, tt.message, body["error"])
		})
	}
}

func TestChatHandler_ChatWithPlan_RejectsBadBodies(t *testing.T) {
	mutator := new(MockPlanMutator)
	handler := handlers.NewChatHandler(mutator)

	w := postChat(t, handler, `{"planId":`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	huge := bytes.Repeat([]byte("a"), 2<<20)
	w = postChat(t, handler, `{"planId":"trip-1","message":"`+string(huge)+`"}`)
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)

	mutator.AssertNotCalled(t, "Mutate", mock.Anything, mock.Anything)
}

package routes_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zatekoja/itineraryconcierge/internal/api/handlers"
	"github.com/zatekoja/itineraryconcierge/internal/api/routes"
	"github.com/zatekoja/itineraryconcierge/internal/bootstrap"
	"github.com/zatekoja/itineraryconcierge/internal/domain/entities"
	"github.com/zatekoja/itineraryconcierge/internal/domain/providers"
	"github.com/zatekoja/itineraryconcierge/pkg/config"
)

type staticModel string

func (m staticModel) Complete(ctx context.Context, prompt string, opts providers.CompletionOptions) (string, error) {
	return string(m), nil
}

type staticSearch struct{}

func (staticSearch) Search(ctx context.Context, query string, opts providers.SearchOptions) ([]entities.EvidenceItem, error) {
	return []entities.EvidenceItem{{Title: "Guide", URL: "https://guide.example.com/" + string(opts.Depth), Content: "Try the market.", Source: entities.EvidenceSourceWeb}}, nil
}

func newServer(t *testing.T, model string) *httptest.Server {
	t.Helper()
	cfg := &config.Config{
		Server: config.ServerConfig{AllowedOrigins: []string{"*"}},
		Engine: config.EngineConfig{
			StoreBackend:           "memory",
			PlanTTL:                time.Hour,
			HistoryWindow:          6,
			MaxEvidenceItems:       10,
			EvidenceExcerptChars:   500,
			RetrievalSourceTimeout: time.Second,
			RetrievalTimeout:       2 * time.Second,
			ModelTimeout:           5 * time.Second,
		},
	}
	engine, err := bootstrap.New(context.Background(), cfg, bootstrap.Options{
		Generative: staticModel(model),
		Search:     staticSearch{},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = engine.Close() })

	router := routes.NewRouter(
		handlers.NewChatHandler(engine.Coordinator),
		handlers.NewPlanHandler(engine.Plans),
		handlers.NewSSEHandler(engine.Events),
		handlers.NewHealthHandler(map[string]handlers.HealthCheck{"store": engine.Ping}),
		cfg.Server.AllowedOrigins,
	)
	server := httptest.NewServer(router.SetupRoutes())
	t.Cleanup(server.Close)
	return server
}

func TestRouter_ChatThenRead(t *testing.T) {
	server := newServer(t, `{"interaction_type":"modification","patch":[{"op":"add","path":"/schedule/0/activities/-","value":{"time":"19:00","activity":"Market dinner"}}],"assistant_response":"Added a market dinner.","suggestions":["Book a table"]}`)

	resp, err := http.Post(server.URL+"/api/chat-with-plan", "application/json", strings.NewReader(`{
		"planId": "trip-42",
		"message": "Recommend a dinner spot for day 1 and add it",
		"currentPlan": {"itinerary": {"destination": "Lisbon", "schedule": [{"day": 1, "activities": []}]}}
	}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))

	var chat map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&chat))
	assert.Equal(t, "Added a market dinner.", chat["response"])
	assert.Equal(t, true, chat["planUpdated"])
	assert.Equal(t, true, chat["retrievalPerformed"])
	assert.Equal(t, float64(2), chat["version"])
	assert.NotEmpty(t, chat["citations"])

	planResp, err := http.Get(server.URL + "/api/plans/trip-42")
	require.NoError(t, err)
	defer planResp.Body.Close()
	require.Equal(t, http.StatusOK, planResp.StatusCode)
	assert.Equal(t, `"v2"`, planResp.Header.Get("ETag"))

	var plan handlers.PlanResponse
	require.NoError(t, json.NewDecoder(planResp.Body).Decode(&plan))
	assert.Contains(t, string(plan.Plan.Itinerary), "Market dinner")

	historyResp, err := http.Get(server.URL + "/api/plans/trip-42/history?limit=10")
	require.NoError(t, err)
	defer historyResp.Body.Close()
	var history struct {
		Count int `json:"count"`
	}
	require.NoError(t, json.NewDecoder(historyResp.Body).Decode(&history))
	assert.Equal(t, 2, history.Count)
}

func TestRouter_ErrorsAndHealth(t *testing.T) {
	server := newServer(t, `not json at all`)

	missing, err := http.Get(server.URL + "/api/plans/nope")
	require.NoError(t, err)
	missing.Body.Close()
	assert.Equal(t, http.StatusNotFound, missing.StatusCode)

	bad, err := http.Post(server.URL+"/api/chat-with-plan", "application/json", strings.NewReader(`{"planId":"trip-1","message":"hi","currentPlan":{"destination":"Oslo","schedule":[]}}`))
	require.NoError(t, err)
	bad.Body.Close()
	assert.Equal(t, http.StatusBadGateway, bad.StatusCode)

	unchanged, err := http.Get(server.URL + "/api/plans/trip-1")
	require.NoError(t, err)
	unchanged.Body.Close()
	assert.Equal(t, `"v1"`, unchanged.Header.Get("ETag"), "seeded but never modified")

	health, err := http.Get(server.URL + "/health/ready")
	require.NoError(t, err)
	health.Body.Close()
	assert.Equal(t, http.StatusOK, health.StatusCode)
}

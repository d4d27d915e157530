package routes

import (
	"net/http"

	"github.com/zatekoja/itineraryconcierge/internal/api/handlers"
	"github.com/zatekoja/itineraryconcierge/internal/api/middleware"
)

// Router holds all route handlers
type Router struct {
	mux *http.ServeMux

	chatHandler   *handlers.ChatHandler
	planHandler   *handlers.PlanHandler
	sseHandler    *handlers.SSEHandler
	healthHandler *handlers.HealthHandler

	allowedOrigins []string
}

// NewRouter creates a new router. sseHandler may be nil when streams are
// served by a separate process.
func NewRouter(
	chatHandler *handlers.ChatHandler,
	planHandler *handlers.PlanHandler,
	sseHandler *handlers.SSEHandler,
	healthHandler *handlers.HealthHandler,
	allowedOrigins []string,
) *Router {
	return &Router{
		mux:            http.NewServeMux(),
		chatHandler:    chatHandler,
		planHandler:    planHandler,
		sseHandler:     sseHandler,
		healthHandler:  healthHandler,
		allowedOrigins: allowedOrigins,
	}
}

// SetupRoutes configures all application routes
func (r *Router) SetupRoutes() http.Handler {
	r.mux.HandleFunc("GET /health", r.healthHandler.Live)
	r.mux.HandleFunc("GET /health/ready", r.healthHandler.Ready)

	r.mux.HandleFunc("POST /api/chat-with-plan", r.chatHandler.ChatWithPlan)

	r.mux.HandleFunc("GET /api/plans/{id}", r.planHandler.GetPlan)
	r.mux.HandleFunc("GET /api/plans/{id}/history", r.planHandler.GetHistory)

	if r.sseHandler != nil {
		r.mux.HandleFunc("GET /api/stream/plans", r.sseHandler.StreamAllUpdates)
		r.mux.HandleFunc("GET /api/stream/plans/{id}", r.sseHandler.StreamPlanUpdates)
	}

	// Last wrapper runs first.
	var handler http.Handler = r.mux
	handler = middleware.ObservabilityMiddleware(r.mux)(handler)
	handler = middleware.LoggingMiddleware(handler)
	handler = middleware.CacheControl(handler)
	handler = middleware.Compression(handler)
	handler = middleware.RequestIDMiddleware(handler)
	handler = middleware.CORSMiddleware(r.allowedOrigins)(handler)

	return handler
}

// SetupStreamRoutes configures a stream-only handler for the SSE server.
func (r *Router) SetupStreamRoutes() http.Handler {
	r.mux.HandleFunc("GET /health", r.healthHandler.Live)
	r.mux.HandleFunc("GET /api/stream/plans", r.sseHandler.StreamAllUpdates)
	r.mux.HandleFunc("GET /api/stream/plans/{id}", r.sseHandler.StreamPlanUpdates)

	var handler http.Handler = r.mux
	handler = middleware.LoggingMiddleware(handler)
	handler = middleware.RequestIDMiddleware(handler)
	handler = middleware.CORSMiddleware(r.allowedOrigins)(handler)
	return handler
}

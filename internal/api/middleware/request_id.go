package middleware

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/zatekoja/itineraryconcierge/internal/infrastructure/observability"
)

// RequestIDHeader carries the request id in and out.
const RequestIDHeader = "X-Request-ID"

// RequestIDMiddleware tags each request with an id and a request-scoped logger.
// A client-supplied id is kept when it parses as a UUID.
func RequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)

		ctx := observability.WithRequestLogger(r.Context(), map[string]string{
			"request_id": id,
		})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

package server

import (
	"net/http"

	"jobscout/internal/observability"
)

// setupRoutes configures all HTTP routes and middleware
func (s *Server) setupRoutes(om *observability.ObservabilityManager) *http.ServeMux {
	mux := http.NewServeMux()

	rateLimited := s.createRateLimitMiddleware(om)
	bodyLimited := s.requestSizeLimitMiddleware()
	mutating := func(h http.HandlerFunc) http.HandlerFunc {
		return rateLimited(bodyLimited(h))
	}

	mux.HandleFunc("GET /health", s.healthHandler)
	mux.HandleFunc("GET /stats", s.statsHandler)

	mux.HandleFunc("POST /search", mutating(s.createSearchHandler(om)))

	mux.HandleFunc("GET /sources", s.listSourcesHandler)
	mux.HandleFunc("GET /sources/{name}", s.getSourceHandler)
	mux.HandleFunc("DELETE /sources/{name}", mutating(s.deleteSourceHandler))
	mux.HandleFunc("POST /sources/{name}/enable", mutating(s.enableSourceHandler))
	mux.HandleFunc("POST /sources/{name}/disable", mutating(s.disableSourceHandler))
	mux.HandleFunc("POST /sources/{name}/priority", mutating(s.priorityHandler))
	mux.HandleFunc("POST /sources/{name}/weight", mutating(s.weightHandler))
	mux.HandleFunc("POST /sources/{name}/config", mutating(s.configHandler))
	mux.HandleFunc("POST /sources/config/save", mutating(s.saveConfigHandler))
	mux.HandleFunc("POST /sources/config/load", mutating(s.loadConfigHandler))

	return mux
}

// Handler returns the instrumented HTTP handler
func (s *Server) Handler(om *observability.ObservabilityManager) http.Handler {
	return om.HTTPMiddleware()(s.setupRoutes(om))
}

// requestSizeLimitMiddleware limits the size of incoming requests
func (s *Server) requestSizeLimitMiddleware() func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			if s.MaxRequestSize > 0 {
				r.Body = http.MaxBytesReader(w, r.Body, s.MaxRequestSize)
			}
			next(w, r)
		}
	}
}

// createRateLimitMiddleware counts rejected requests in the rate limit metric
func (s *Server) createRateLimitMiddleware(om *observability.ObservabilityManager) func(http.HandlerFunc) http.HandlerFunc {
	return s.rateLimitMiddleware(func(r *http.Request) {
		om.RecordRateLimitHit(r.Context(), r.Pattern)
	})
}

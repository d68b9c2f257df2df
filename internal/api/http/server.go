package httpapi

import (
	"context"
	"net/http"
	"slices"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/rs/cors"

	"measurements-service/internal/domain"
	"measurements-service/internal/infra"
)

const requestIDHeader = "X-Request-ID"

// Server exposes the HTTP transport for the measurements service.
type Server struct {
	handler http.Handler
}

// NewServer constructs a chi based HTTP server that forwards requests to the application service.
// An empty origins list allows every origin.
func NewServer(service domain.MeasurementService, logger *infra.Logger, origins []string) *Server {
	h := &handler{service: service, logger: logger}

	router := chi.NewRouter()
	router.Use(requestID)
	router.Use(h.recoverer)
	router.Use(infra.HTTPMiddleware(routePattern))

	registerRoutes(router, h)

	return &Server{handler: cors.New(corsOptions(origins)).Handler(router)}
}

// corsOptions echoes the request origin when every origin is allowed, since
// browsers reject a wildcard origin on credentialed responses.
func corsOptions(origins []string) cors.Options {
	opts := cors.Options{
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions, http.MethodHead},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	}

	if len(origins) == 0 || slices.Contains(origins, "*") {
		opts.AllowOriginFunc = func(string) bool { return true }
		return opts
	}
	opts.AllowedOrigins = origins
	return opts
}

// Router returns the configured HTTP handler for reuse in tests or external HTTP servers.
func (s *Server) Router() http.Handler {
	return s.handler
}

// ServeHTTP allows Server to satisfy the http.Handler interface directly.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

func routePattern(r *http.Request) string {
	if routeCtx := chi.RouteContext(r.Context()); routeCtx != nil {
		if pattern := routeCtx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return r.URL.Path
}

func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)

		ctx := infra.WithCorrelationID(r.Context(), id)
		ctx = context.WithValue(ctx, middleware.RequestIDKey, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (h *handler) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				h.logger.Errorf(r.Context(), "panic serving %s %s: %v", r.Method, r.URL.Path, rec)
				h.writeJSON(w, r, http.StatusInternalServerError, errorResponse{Detail: "internal server error"})
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// Package httpapi wires the STORE/PLAN/AGG/CACHE/COND layers to the HTTP
// surface spec §6 defines. Routing follows nicktill-tinyobs's gorilla/mux
// subrouter-plus-handler-factory style (pkg/server/handlers.go's
// SetupRoutes); the teacher's own API-key/rate-limit middleware pair is
// dropped — see DESIGN.md.
package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/cea-insights/analytics-engine/internal/cache"
	"github.com/cea-insights/analytics-engine/internal/store"
)

// Deps bundles everything a handler needs. No package-level singletons:
// every dependency is constructed in cmd/server/main.go and threaded
// through explicitly, per spec §9's closure-over-globals redesign note.
type Deps struct {
	Store        *store.Store
	APICache     *cache.Pool
	StatsCache   *cache.Pool
	QueryTimeout time.Duration
	CORSOrigins  []string
	Logger       *slog.Logger
}

// NewRouter builds the full route table.
func NewRouter(deps Deps) *mux.Router {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}

	router := mux.NewRouter()
	router.Use(corsMiddleware(deps.CORSOrigins))
	router.Use(requestIDMiddleware)
	router.Use(loggingMiddleware(deps.Logger))
	router.Use(timeoutMiddleware(deps.QueryTimeout))

	router.HandleFunc("/health", handleHealth).Methods(http.MethodGet)

	api := router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/datasets", cached(deps.APICache, handleDatasetCatalog(deps))).Methods(http.MethodGet)
	api.HandleFunc("/datasets/{id}", cached(deps.APICache, handleDatasetMeta(deps))).Methods(http.MethodGet)
	api.HandleFunc("/datasets/{id}/data", cached(deps.APICache, handleData(deps))).Methods(http.MethodGet)
	api.HandleFunc("/datasets/{id}/stats", cached(deps.StatsCache, handleStats(deps))).Methods(http.MethodGet)
	api.HandleFunc("/datasets/{id}/analytics", cached(deps.StatsCache, handleAnalytics(deps))).Methods(http.MethodGet)
	api.HandleFunc("/datasets/{id}/timeseries", cached(deps.StatsCache, handleTimeSeries(deps))).Methods(http.MethodGet)
	api.HandleFunc("/datasets/{id}/insights", cached(deps.StatsCache, handleInsights(deps))).Methods(http.MethodGet)
	api.HandleFunc("/datasets/{id}/agents/top", cached(deps.StatsCache, handleTopAgents(deps))).Methods(http.MethodGet)
	api.HandleFunc("/datasets/{id}/agents/{regNum}", cached(deps.StatsCache, handleAgentProfile(deps))).Methods(http.MethodGet)

	api.HandleFunc("/cache/stats", handleCacheStats(deps)).Methods(http.MethodGet)
	api.HandleFunc("/cache/clear", handleCacheClear(deps)).Methods(http.MethodPost)
	api.HandleFunc("/cache/clear/{datasetId}", handleCacheClear(deps)).Methods(http.MethodPost)

	return router
}

// corsMiddleware allows only the configured origin allow-list, mirroring
// the teacher's localhost-allow-list pattern but sourced from config
// instead of a hardcoded port.
func corsMiddleware(allowed []string) mux.MiddlewareFunc {
	allowSet := make(map[string]bool, len(allowed))
	for _, o := range allowed {
		allowSet[strings.TrimSpace(o)] = true
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin != "" && allowSet[origin] {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
			}
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusOK)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// timeoutMiddleware bounds every request's context to deps.QueryTimeout, so a
// slow store/agg call is canceled with context.DeadlineExceeded instead of
// running unbounded — writeError maps that cause to apierr.Timeout (504). A
// non-positive timeout disables the bound entirely.
func timeoutMiddleware(timeout time.Duration) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if timeout <= 0 {
				next.ServeHTTP(w, r)
				return
			}
			ctx, cancel := context.WithTimeout(r.Context(), timeout)
			defer cancel()
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

type requestIDKey struct{}

// requestIDMiddleware assigns each inbound request a uuid for log
// correlation and echoes it back as X-Request-Id.
func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := uuid.NewString()
		w.Header().Set("X-Request-Id", id)
		ctx := withRequestID(r.Context(), id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// loggingMiddleware logs each request's method, route, status, and
// duration at Info, and the request ID for correlation — mirroring the
// teacher's "log the detail, mask the response" discipline.
func loggingMiddleware(logger *slog.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)
			logger.Info("request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", rec.status,
				"duration", time.Since(start),
				"requestId", requestIDFrom(r.Context()),
			)
		})
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

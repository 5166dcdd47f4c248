package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/cea-insights/analytics-engine/internal/apierr"
	"github.com/cea-insights/analytics-engine/internal/cache"
	"github.com/cea-insights/analytics-engine/internal/cond"
)

// dataHandler produces the JSON-able response body for one endpoint, or an
// *apierr.Error the caller maps to a status code.
type dataHandler func(r *http.Request) (any, error)

// cached wraps a dataHandler with the CACHE/COND layers: a cache lookup (or
// population) keyed on the canonicalized request line, skipped entirely for
// requests carrying filters or search (their cardinality is too high to be
// worth caching — spec §4.4), followed by an entity-tag conditional
// response over whatever body is ultimately served.
func cached(pool *cache.Pool, h dataHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var key, canonical string
		cacheable := isCacheable(r)
		if cacheable {
			canonical = cache.CanonicalKey(r.Method, r.URL.Path, r.URL.Query())
			key = cache.HashKey(canonical)
			if body, ok := pool.Get(key); ok {
				w.Header().Set("X-Cache", "HIT")
				cond.Respond(w, r, body, "application/json")
				return
			}
		}

		data, err := h(r)
		if err != nil {
			w.Header().Set("X-Cache", "MISS")
			writeError(w, err)
			return
		}

		body, err := json.Marshal(data)
		if err != nil {
			w.Header().Set("X-Cache", "MISS")
			writeError(w, apierr.Internal(err))
			return
		}

		if cacheable {
			pool.Put(key, canonical, body)
		}
		w.Header().Set("X-Cache", "MISS")
		cond.Respond(w, r, body, "application/json")
	}
}

// isCacheable reports whether a request is eligible for caching: neither a
// "filters" nor a "search" query parameter may be present.
func isCacheable(r *http.Request) bool {
	q := r.URL.Query()
	return q.Get("filters") == "" && q.Get("search") == ""
}

// writeError maps an error to its spec §7 status code and JSON body. A
// canceled/timed-out request context (from timeoutMiddleware or a client
// disconnect) always surfaces as apierr.Timeout, even if it reaches here
// wrapped in some other error — never as a generic internal error. Any
// other error that isn't an *apierr.Error is folded to an internal error —
// the detail is never leaked to the client. Internal errors are logged with
// their cause through the default slog logger.
func writeError(w http.ResponseWriter, err error) {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		err = apierr.Timeout(err)
	}
	apiErr, ok := apierr.As(err)
	if !ok {
		apiErr = apierr.Internal(err)
	}
	if apiErr.Kind == apierr.KindInternal {
		slog.Error("internal error", "error", apiErr.Error())
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(apiErr.Kind.StatusCode())
	json.NewEncoder(w).Encode(map[string]string{"error": apiErr.Message})
}

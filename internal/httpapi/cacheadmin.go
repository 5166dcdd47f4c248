package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/cea-insights/analytics-engine/internal/cache"
)

// cacheStatsResponse is the body of /api/cache/stats.
type cacheStatsResponse struct {
	API   cache.Stats `json:"api"`
	Stats cache.Stats `json:"stats"`
}

func handleCacheStats(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := cacheStatsResponse{API: deps.APICache.Stats(), Stats: deps.StatsCache.Stats()}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(resp)
	}
}

type cacheClearResponse struct {
	Message         string `json:"message"`
	EntriesCleared  int    `json:"entriesCleared,omitempty"`
}

// handleCacheClear flushes both pools, or — given a dataset id path
// variable — only entries whose key mentions that dataset.
func handleCacheClear(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		scopedID, scoped := mux.Vars(r)["datasetId"]

		var cleared int
		if scoped {
			cleared = deps.APICache.Invalidate(scopedID) + deps.StatsCache.Invalidate(scopedID)
		} else {
			cleared = deps.APICache.InvalidateAll() + deps.StatsCache.InvalidateAll()
		}

		resp := cacheClearResponse{Message: "cache cleared", EntriesCleared: cleared}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(resp)
	}
}

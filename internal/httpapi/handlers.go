package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/cea-insights/analytics-engine/internal/agg"
	"github.com/cea-insights/analytics-engine/internal/query"
)

// healthResponse is the body of /health.
type healthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "ok", Timestamp: time.Now().UTC().Format(time.RFC3339)}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(resp)
}

func handleDatasetCatalog(deps Deps) dataHandler {
	return func(r *http.Request) (any, error) {
		return loadCatalog(r.Context(), deps.Store)
	}
}

func handleDatasetMeta(deps Deps) dataHandler {
	return func(r *http.Request) (any, error) {
		id := mux.Vars(r)["id"]
		return lookupDataset(r.Context(), deps.Store, id)
	}
}

func handleData(deps Deps) dataHandler {
	return func(r *http.Request) (any, error) {
		if err := requireKnownDataset(r, deps); err != nil {
			return nil, err
		}

		page, err := parsePage(r)
		if err != nil {
			return nil, err
		}
		limit, err := parseLimit(r, agg.DefaultLimit)
		if err != nil {
			return nil, err
		}
		filter, err := parseFilter(r)
		if err != nil {
			return nil, err
		}

		return agg.Page(r.Context(), deps.Store, page, limit, filter)
	}
}

const (
	defaultStatsLimit = 100
	defaultTopAgentsLimit = 50
	maxTopAgentsLimit     = 250
)

func handleStats(deps Deps) dataHandler {
	return func(r *http.Request) (any, error) {
		if err := requireKnownDataset(r, deps); err != nil {
			return nil, err
		}

		field, err := requiredQueryParam(r, "field")
		if err != nil {
			return nil, err
		}
		limit, err := parseLimit(r, defaultStatsLimit)
		if err != nil {
			return nil, err
		}
		filter, err := parseFilter(r)
		if err != nil {
			return nil, err
		}

		return agg.Stats(r.Context(), deps.Store, field, limit, filter)
	}
}

func handleAnalytics(deps Deps) dataHandler {
	return func(r *http.Request) (any, error) {
		if err := requireKnownDataset(r, deps); err != nil {
			return nil, err
		}

		dim1, err := requiredQueryParam(r, "dimension1")
		if err != nil {
			return nil, err
		}
		dim2 := r.URL.Query().Get("dimension2")
		filter, err := parseFilter(r)
		if err != nil {
			return nil, err
		}

		if dim2 != "" {
			return agg.TwoDimension(r.Context(), deps.Store, dim1, dim2, filter)
		}

		if endpoint, ok := singleDimensionEndpoint(dim1); ok {
			if query.SelectPath(endpoint, filter, "", "") == query.FastPath {
				return agg.SingleDimensionFast(r.Context(), deps.Store, dim1)
			}
		}
		return agg.SingleDimension(r.Context(), deps.Store, dim1, filter)
	}
}

func handleTimeSeries(deps Deps) dataHandler {
	return func(r *http.Request) (any, error) {
		if err := requireKnownDataset(r, deps); err != nil {
			return nil, err
		}

		period, err := parsePeriod(r)
		if err != nil {
			return nil, err
		}
		groupBy, err := parseGroupBy(r)
		if err != nil {
			return nil, err
		}
		filter, err := parseFilter(r)
		if err != nil {
			return nil, err
		}

		path := query.SelectPath(query.EndpointTimeSeries, filter, "", groupBy)
		if path == query.FastPath {
			return agg.TimeSeriesFast(r.Context(), deps.Store, period, groupBy)
		}
		return agg.TimeSeries(r.Context(), deps.Store, period, groupBy, filter)
	}
}

func handleInsights(deps Deps) dataHandler {
	return func(r *http.Request) (any, error) {
		if err := requireKnownDataset(r, deps); err != nil {
			return nil, err
		}

		filter, err := parseFilter(r)
		if err != nil {
			return nil, err
		}
		return agg.BuildInsights(r.Context(), deps.Store, filter)
	}
}

func handleTopAgents(deps Deps) dataHandler {
	return func(r *http.Request) (any, error) {
		if err := requireKnownDataset(r, deps); err != nil {
			return nil, err
		}

		limit, err := parseLimit(r, defaultTopAgentsLimit)
		if err != nil {
			return nil, err
		}
		if limit > maxTopAgentsLimit {
			limit = maxTopAgentsLimit
		}
		filter, err := parseFilter(r)
		if err != nil {
			return nil, err
		}
		search := parseSearch(r)

		path := query.SelectPath(query.EndpointTopAgents, filter, search, "")
		if path == query.FastPath {
			return agg.TopAgentsFast(r.Context(), deps.Store, limit)
		}
		return agg.TopAgentsSlow(r.Context(), deps.Store, limit, filter, search)
	}
}

func handleAgentProfile(deps Deps) dataHandler {
	return func(r *http.Request) (any, error) {
		if err := requireKnownDataset(r, deps); err != nil {
			return nil, err
		}

		regNum := mux.Vars(r)["regNum"]
		return agg.Profile(r.Context(), deps.Store, regNum)
	}
}

// singleDimensionEndpoint maps a dimension field to the PLAN endpoint
// whose fast-path table covers it, if any.
func singleDimensionEndpoint(dim1 string) (query.Endpoint, bool) {
	switch dim1 {
	case "property_type":
		return query.EndpointPropertyTypeStats, true
	case "transaction_type":
		return query.EndpointTransactionTypeStats, true
	case "town":
		return query.EndpointTownStats, true
	default:
		return 0, false
	}
}

// requireKnownDataset 404s on any dataset id other than the single dataset
// this service serves, matching the "unknown dataset" branch of spec §7's
// error table even though the catalog only ever holds one entry today.
func requireKnownDataset(r *http.Request, deps Deps) error {
	id := mux.Vars(r)["id"]
	if id == "" {
		return nil
	}
	if _, err := lookupDataset(r.Context(), deps.Store, id); err != nil {
		return err
	}
	return nil
}

package httpapi

import (
	"net/http"
	"strconv"

	"github.com/cea-insights/analytics-engine/internal/agg"
	"github.com/cea-insights/analytics-engine/internal/apierr"
	"github.com/cea-insights/analytics-engine/internal/model"
	"github.com/cea-insights/analytics-engine/internal/query"
)

func parseFilter(r *http.Request) (query.Filter, error) {
	return query.ParseFilter(r.URL.Query().Get("filters"))
}

func parseSearch(r *http.Request) string {
	return r.URL.Query().Get("search")
}

func parseIntParam(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apierr.Invalid("%s must be an integer", name)
	}
	return n, nil
}

func parsePage(r *http.Request) (int, error) {
	return parseIntParam(r, "page", 1)
}

func parseLimit(r *http.Request, def int) (int, error) {
	return parseIntParam(r, "limit", def)
}

func parsePeriod(r *http.Request) (agg.Period, error) {
	raw := r.URL.Query().Get("period")
	switch raw {
	case "", "month":
		return agg.PeriodMonth, nil
	case "year":
		return agg.PeriodYear, nil
	default:
		return "", apierr.Invalid("period must be %q or %q", "month", "year")
	}
}

func parseGroupBy(r *http.Request) (string, error) {
	groupBy := r.URL.Query().Get("groupBy")
	if groupBy != "" && !model.GroupableColumns[groupBy] {
		return "", apierr.Invalid("unknown groupBy field %q", groupBy)
	}
	return groupBy, nil
}

func requiredQueryParam(r *http.Request, name string) (string, error) {
	value := r.URL.Query().Get(name)
	if value == "" {
		return "", apierr.Invalid("%s is required", name)
	}
	return value, nil
}

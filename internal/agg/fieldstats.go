package agg

import (
	"context"

	"github.com/cea-insights/analytics-engine/internal/apierr"
	"github.com/cea-insights/analytics-engine/internal/query"
	"github.com/cea-insights/analytics-engine/internal/store"
)

// FieldStats is the body of /api/datasets/{id}/stats.
type FieldStats struct {
	Field        string           `json:"field"`
	Total        int64            `json:"total"`
	UniqueValues int              `json:"uniqueValues"`
	Stats        []FieldStatsEntry `json:"stats"`
}

// FieldStatsEntry is one {value, count} row of a field-stats response.
type FieldStatsEntry struct {
	Value string `json:"value"`
	Count int64  `json:"count"`
}

// Stats is single-dimension cross-tab, reshaped for /stats: the full set of
// distinct values (post-filter, "Unknown"-projected) determines
// uniqueValues, while the returned stats list is capped at limit.
func Stats(ctx context.Context, s *store.Store, field string, limit int, filter query.Filter) (*FieldStats, error) {
	if limit <= 0 {
		return nil, apierr.Invalid("limit must be positive")
	}

	result, err := SingleDimension(ctx, s, field, filter)
	if err != nil {
		return nil, err
	}

	entries := make([]FieldStatsEntry, 0, len(result.Data))
	for i, row := range result.Data {
		if i >= limit {
			break
		}
		entries = append(entries, FieldStatsEntry{Value: row.Dim1, Count: row.Count})
	}

	return &FieldStats{
		Field:        field,
		Total:        result.Total,
		UniqueValues: len(result.Data),
		Stats:        entries,
	}, nil
}

package agg

import (
	"context"
	"fmt"

	"github.com/cea-insights/analytics-engine/internal/apierr"
	"github.com/cea-insights/analytics-engine/internal/model"
	"github.com/cea-insights/analytics-engine/internal/query"
	"github.com/cea-insights/analytics-engine/internal/store"
)

// DefaultLimit and MaxLimit bound paginated row access.
const (
	DefaultLimit = 50
	MaxLimit     = 500
)

// Pagination describes the page window returned alongside a row slice.
type Pagination struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"totalPages"`
}

// PageResult is the body of /api/datasets/{id}/data.
type PageResult struct {
	Data       []model.Transaction `json:"data"`
	Pagination Pagination           `json:"pagination"`
}

// Page returns rows [(page-1)*limit, page*limit) matching filter, plus
// pagination metadata. total comes from a separate COUNT(*) against the
// same filter expression, per the pagination contract.
func Page(ctx context.Context, s *store.Store, page, limit int, filter query.Filter) (*PageResult, error) {
	if page < 1 {
		return nil, apierr.Invalid("page must be >= 1, got %d", page)
	}
	if limit <= 0 || limit > MaxLimit {
		return nil, apierr.Invalid("limit must be between 1 and %d, got %d", MaxLimit, limit)
	}

	where, args := filter.WhereClause()
	total, err := filteredTotal(ctx, s, where, args)
	if err != nil {
		return nil, err
	}

	sqlText := fmt.Sprintf(`
		SELECT id, salesperson_name, salesperson_reg_num, transaction_date,
		       property_type, transaction_type, represented, town, district, general_location
		FROM transactions%s
		ORDER BY id
		LIMIT ? OFFSET ?`,
		whereSuffix(where),
	)
	stmt, err := s.Prepare(ctx, sqlText)
	if err != nil {
		return nil, apierr.Internal(err)
	}
	defer stmt.Close()

	offset := (page - 1) * limit
	rows, err := stmt.All(ctx, append(append([]any{}, args...), limit, offset)...)
	if err != nil {
		return nil, apierr.Internal(err)
	}

	data := make([]model.Transaction, 0, len(rows))
	for _, r := range rows {
		data = append(data, model.Transaction{
			ID:                toInt64(r["id"]),
			SalespersonName:   toString(r["salesperson_name"]),
			SalespersonRegNum: toString(r["salesperson_reg_num"]),
			TransactionDate:   toString(r["transaction_date"]),
			PropertyType:      toString(r["property_type"]),
			TransactionType:   toString(r["transaction_type"]),
			Represented:       toString(r["represented"]),
			Town:              toString(r["town"]),
			District:          toString(r["district"]),
			GeneralLocation:   toString(r["general_location"]),
		})
	}

	totalPages := int((total + int64(limit) - 1) / int64(limit))
	if totalPages == 0 {
		totalPages = 1
	}

	return &PageResult{
		Data: data,
		Pagination: Pagination{
			Page:       page,
			Limit:      limit,
			Total:      total,
			TotalPages: totalPages,
		},
	}, nil
}

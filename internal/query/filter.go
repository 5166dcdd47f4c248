// Package query implements filter parsing and fast/slow path selection: the
// PLAN layer. Grounded on the teacher's stringly-typed-query redesign note
// and the enumerated-allow-list requirement it calls for.
package query

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/cea-insights/analytics-engine/internal/apierr"
	"github.com/cea-insights/analytics-engine/internal/model"
)

// Filter is the parsed, validated shape of the opaque "filters" query
// parameter: a scalar value per key means equality, a set means
// disjunction, and distinct keys conjoin. Kept as a sum type rather than a
// raw map so that no downstream code ever re-parses raw JSON.
type Filter struct {
	Scalars map[string]string
	Sets    map[string][]string
}

// Empty reports whether the filter carries no constraints at all — the
// condition the fast-path table checks for.
func (f Filter) Empty() bool {
	return len(f.Scalars) == 0 && len(f.Sets) == 0
}

// Keys returns the sorted set of columns this filter constrains, used for
// stable WHERE-clause ordering.
func (f Filter) Keys() []string {
	keys := make([]string, 0, len(f.Scalars)+len(f.Sets))
	for k := range f.Scalars {
		keys = append(keys, k)
	}
	for k := range f.Sets {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ParseFilter decodes the raw "filters" query parameter — a JSON object
// whose keys are a subset of model.FilterableColumns and whose values are
// either a scalar string or an array of strings — into a Filter. An empty
// raw string is not an error: it means "no filter". A malformed filter
// string, an unknown key, or a non-string/non-array value is rejected as an
// invalid argument, distinct from "no filter".
func ParseFilter(raw string) (Filter, error) {
	f := Filter{Scalars: map[string]string{}, Sets: map[string][]string{}}
	if raw == "" {
		return f, nil
	}

	var decoded map[string]any
	if err := json.Unmarshal([]byte(raw), &decoded); err != nil {
		return Filter{}, apierr.Invalid("malformed filters parameter: %v", err)
	}

	for key, val := range decoded {
		if !model.FilterableColumns[key] {
			return Filter{}, apierr.Invalid("unknown filter field %q", key)
		}
		switch v := val.(type) {
		case string:
			f.Scalars[key] = v
		case []any:
			set := make([]string, 0, len(v))
			for _, item := range v {
				s, ok := item.(string)
				if !ok {
					return Filter{}, apierr.Invalid("filter field %q must be a string or array of strings", key)
				}
				set = append(set, s)
			}
			if len(set) == 0 {
				return Filter{}, apierr.Invalid("filter field %q array must not be empty", key)
			}
			f.Sets[key] = set
		default:
			return Filter{}, apierr.Invalid("filter field %q must be a string or array of strings", key)
		}
	}

	return f, nil
}

// WhereClause assembles a parameterized SQL WHERE fragment (without the
// leading "WHERE") and its bind arguments, in deterministic key order, so
// that identical filters always produce identical SQL text (helpful for
// prepared-statement cache reuse at the driver level). All values bind as
// parameters; no filter value is ever spliced into the SQL string.
func (f Filter) WhereClause() (string, []any) {
	var clauses []string
	var args []any

	for _, key := range f.Keys() {
		if scalar, ok := f.Scalars[key]; ok {
			clauses = append(clauses, fmt.Sprintf("%s = ?", key))
			args = append(args, scalar)
			continue
		}
		set := f.Sets[key]
		placeholders := make([]string, len(set))
		for i, v := range set {
			placeholders[i] = "?"
			args = append(args, v)
		}
		clauses = append(clauses, fmt.Sprintf("%s IN (%s)", key, strings.Join(placeholders, ", ")))
	}

	return strings.Join(clauses, " AND "), args
}

package query

// Path identifies which implementation an endpoint should use for a given
// request: read a precomputed aggregate table, or compose a parameterized
// aggregation against transactions directly.
type Path int

const (
	// SlowPath composes a parameterized aggregation against transactions.
	SlowPath Path = iota
	// FastPath reads a precomputed aggregate table.
	FastPath
)

// Endpoint names the handful of endpoints that have a fast path at all.
// Every other endpoint always takes the slow path.
type Endpoint int

const (
	EndpointTopAgents Endpoint = iota
	EndpointPropertyTypeStats
	EndpointTransactionTypeStats
	EndpointTownStats
	EndpointTimeSeries
)

// SelectPath implements the fast/slow decision table from the path
// selection rules: each of the five fast-pathable endpoints takes the fast
// path only when there are no filters (and, for top agents, no search
// term). This replaces the teacher's cost-based QueryPlanner — partition
// pruning and parallel-scan degree selection over time-series partitions
// has no counterpart against one static, already-indexed table — with a
// stateless lookup, matching spec §4.2's table directly.
func SelectPath(endpoint Endpoint, filter Filter, search string, groupBy string) Path {
	if !filter.Empty() {
		return SlowPath
	}
	switch endpoint {
	case EndpointTopAgents:
		if search != "" {
			return SlowPath
		}
		return FastPath
	case EndpointPropertyTypeStats, EndpointTransactionTypeStats, EndpointTownStats:
		return FastPath
	case EndpointTimeSeries:
		// With no filters, both the plain and grouped forms have a
		// precomputed table to read from (the grouped monthly_stats
		// extension); callers pick which table by groupBy themselves.
		return FastPath
	}
	return SlowPath
}

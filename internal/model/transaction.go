// Package model holds the data shapes shared across the store, query,
// aggregation, and HTTP layers.
package model

// Transaction is the canonical row of the transactions table. Every field
// is text-valued in the source data; the dataset carries no numerics.
type Transaction struct {
	ID                 int64  `json:"id"`
	SalespersonName    string `json:"salesperson_name"`
	SalespersonRegNum  string `json:"salesperson_reg_num"`
	TransactionDate    string `json:"transaction_date"`
	PropertyType       string `json:"property_type"`
	TransactionType    string `json:"transaction_type"`
	Represented        string `json:"represented"`
	Town               string `json:"town"`
	District           string `json:"district"`
	GeneralLocation    string `json:"general_location"`
}

// Sentinel is the literal value the source data uses to mean "absent".
const Sentinel = "-"

// Unknown is the label categorical aggregations project null/empty/sentinel
// values to.
const Unknown = "Unknown"

// FilterableColumns is the enumerated allow-list of columns the filter
// grammar (§4.2) may reference. Checked before any SQL is composed.
var FilterableColumns = map[string]bool{
	"property_type":    true,
	"transaction_type": true,
	"represented":      true,
	"town":             true,
	"district":         true,
}

// GroupableColumns is the closed set a timeseries/analytics groupBy may
// name — the same set as FilterableColumns, kept distinct because the two
// grammars are validated independently.
var GroupableColumns = FilterableColumns

// DatasetMeta describes one dataset entry as returned by /api/datasets and
// /api/datasets/{id}.
type DatasetMeta struct {
	ID                     string         `json:"id"`
	Name                   string         `json:"name"`
	Description            string         `json:"description"`
	RowCount               int64          `json:"rowCount"`
	ColumnCount            int            `json:"columnCount"`
	SourceTimestamp        string         `json:"sourceTimestamp"`
	SizeBytes              int64          `json:"sizeBytes"`
	SizeHuman              string         `json:"sizeHuman"`
	Schema                 []ColumnSchema `json:"schema,omitempty"`
	VisualizationHints     []string       `json:"visualizationRecommendations,omitempty"`
}

// ColumnSchema describes one column of the transactions table.
type ColumnSchema struct {
	Name   string `json:"name"`
	Type   string `json:"type"`
	Sample string `json:"sample,omitempty"`
}

// DatasetCatalog is the body of GET /api/datasets.
type DatasetCatalog struct {
	Version     string        `json:"version"`
	LastUpdated string        `json:"lastUpdated"`
	Datasets    []DatasetMeta `json:"datasets"`
}

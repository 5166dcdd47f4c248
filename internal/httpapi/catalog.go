package httpapi

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/cea-insights/analytics-engine/internal/apierr"
	"github.com/cea-insights/analytics-engine/internal/model"
	"github.com/cea-insights/analytics-engine/internal/store"
)

const datasetID = "cea-transactions"

// loadCatalog builds the dataset catalog. An on-disk datasets.json (written
// by whatever process populated the store) takes precedence; absent that,
// the catalog is derived live from the store's schema and row count so the
// service still answers correctly against a bare database file.
func loadCatalog(ctx context.Context, s *store.Store) (*model.DatasetCatalog, error) {
	if catalog, ok, err := readCatalogFile(s.DataDir()); err != nil {
		return nil, apierr.Internal(err)
	} else if ok {
		return catalog, nil
	}
	meta, err := buildDatasetMeta(ctx, s)
	if err != nil {
		return nil, err
	}
	return &model.DatasetCatalog{
		Version:     "1.0",
		LastUpdated: meta.SourceTimestamp,
		Datasets:    []model.DatasetMeta{*meta},
	}, nil
}

func readCatalogFile(dataDir string) (*model.DatasetCatalog, bool, error) {
	data, err := os.ReadFile(filepath.Join(dataDir, "datasets.json"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	var catalog model.DatasetCatalog
	if err := json.Unmarshal(data, &catalog); err != nil {
		return nil, false, err
	}
	return &catalog, true, nil
}

// lookupDataset finds one dataset's metadata by id, 404ing otherwise.
func lookupDataset(ctx context.Context, s *store.Store, id string) (*model.DatasetMeta, error) {
	catalog, err := loadCatalog(ctx, s)
	if err != nil {
		return nil, err
	}
	for i := range catalog.Datasets {
		if catalog.Datasets[i].ID == id {
			return &catalog.Datasets[i], nil
		}
	}
	return nil, apierr.NotFound("unknown dataset " + id)
}

func buildDatasetMeta(ctx context.Context, s *store.Store) (*model.DatasetMeta, error) {
	schema, err := tableSchema(ctx, s)
	if err != nil {
		return nil, err
	}

	rowCount, err := tableRowCount(ctx, s)
	if err != nil {
		return nil, err
	}

	sizeBytes, sourceTimestamp := dbFileInfo(s.DataDir())

	return &model.DatasetMeta{
		ID:                 datasetID,
		Name:               "CEA Property Transactions",
		Description:        "Singapore Council for Estate Agencies salesperson property transaction records.",
		RowCount:           rowCount,
		ColumnCount:        len(schema),
		SourceTimestamp:    sourceTimestamp,
		SizeBytes:          sizeBytes,
		SizeHuman:          humanize.Bytes(uint64(sizeBytes)),
		Schema:             schema,
		VisualizationHints: []string{"bar", "line", "pie", "table"},
	}, nil
}

func tableSchema(ctx context.Context, s *store.Store) ([]model.ColumnSchema, error) {
	stmt, err := s.Prepare(ctx, "PRAGMA table_info(transactions)")
	if err != nil {
		return nil, apierr.Internal(err)
	}
	defer stmt.Close()

	rows, err := stmt.All(ctx)
	if err != nil {
		return nil, apierr.Internal(err)
	}

	schema := make([]model.ColumnSchema, 0, len(rows))
	for _, r := range rows {
		name, _ := r["name"].(string)
		colType, _ := r["type"].(string)
		schema = append(schema, model.ColumnSchema{Name: name, Type: colType})
	}
	return schema, nil
}

func tableRowCount(ctx context.Context, s *store.Store) (int64, error) {
	stmt, err := s.Prepare(ctx, "SELECT COUNT(*) AS n FROM transactions")
	if err != nil {
		return 0, apierr.Internal(err)
	}
	defer stmt.Close()

	row, ok, err := stmt.Get(ctx)
	if err != nil {
		return 0, apierr.Internal(err)
	}
	if !ok {
		return 0, nil
	}
	n, _ := row["n"].(int64)
	return n, nil
}

func dbFileInfo(dataDir string) (sizeBytes int64, sourceTimestamp string) {
	info, err := os.Stat(filepath.Join(dataDir, "cea-transactions.db"))
	if err != nil {
		return 0, time.Now().UTC().Format(time.RFC3339)
	}
	return info.Size(), info.ModTime().UTC().Format(time.RFC3339)
}

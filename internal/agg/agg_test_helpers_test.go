package agg

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	_ "modernc.org/sqlite"

	"github.com/cea-insights/analytics-engine/internal/store"
)

// row holds the transaction columns the fixture scenarios set.
type row struct {
	regNum, propertyType, transactionType, represented, town, district, date string
}

func seedStore(t *testing.T, rows []row) *store.Store {
	t.Helper()
	return seedStoreWithExtra(t, rows, nil)
}

// seedStoreWithExtra seeds the transactions table plus any extra setup
// statements (e.g. precomputed aggregate tables) against the same writable
// connection, before the store is reopened read-only.
func seedStoreWithExtra(t *testing.T, rows []row, extraSQL []string) *store.Store {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "cea-transactions.db")

	rw, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("open seed db: %v", err)
	}
	defer rw.Close()

	if _, err := rw.Exec(`CREATE TABLE transactions (
		id INTEGER PRIMARY KEY,
		salesperson_name TEXT,
		salesperson_reg_num TEXT,
		transaction_date TEXT,
		property_type TEXT,
		transaction_type TEXT,
		represented TEXT,
		town TEXT,
		district TEXT,
		general_location TEXT
	)`); err != nil {
		t.Fatalf("create table: %v", err)
	}

	for i, r := range rows {
		if _, err := rw.Exec(
			`INSERT INTO transactions (id, salesperson_reg_num, transaction_date, property_type, transaction_type, represented, town, district)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			i+1, r.regNum, r.date, r.propertyType, r.transactionType, r.represented, r.town, r.district,
		); err != nil {
			t.Fatalf("insert row %d: %v", i, err)
		}
	}

	for _, stmt := range extraSQL {
		if _, err := rw.Exec(stmt); err != nil {
			t.Fatalf("extra setup %q: %v", stmt, err)
		}
	}

	s, err := store.Open(context.Background(), store.Config{DataDir: dir})
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// threeRowFixture is the literal §8 end-to-end scenario fixture.
func threeRowFixture() []row {
	return []row{
		{regNum: "A", propertyType: "HDB", date: "JAN-2024", represented: "BUYER"},
		{regNum: "A", propertyType: "HDB", date: "FEB-2024", represented: "SELLER"},
		{regNum: "B", propertyType: "CONDO", date: "JAN-2024", represented: "BUYER"},
	}
}

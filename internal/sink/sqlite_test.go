package sink

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"fintrac/internal/model"
)

func sampleTable() model.AlignedTable {
	return model.AlignedTable{
		Timestamps: []time.Time{
			time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC),
			time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC),
		},
		Columns: []model.SeriesID{
			{Symbol: "SPY", Name: "S&P 500"},
			{Symbol: "CPIAUCSL", Name: "CPI"},
		},
		Values: [][]*float64{
			{model.Float64(470.5), model.Float64(308.4)},
			{model.Float64(475.1), nil},
		},
	}
}

func TestSQLiteReplaceSnapshot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := NewSQLiteSink(path)
	if err != nil {
		t.Fatalf("NewSQLiteSink failed: %v", err)
	}
	defer s.Close()

	if err := s.ReplaceSnapshot(context.Background(), "sector_data", sampleTable()); err != nil {
		t.Fatalf("ReplaceSnapshot failed: %v", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer db.Close()

	rows, err := db.Query(`SELECT "date", "S&P 500", "CPI" FROM "sector_data" ORDER BY "date"`)
	if err != nil {
		t.Fatalf("query snapshot: %v", err)
	}
	defer rows.Close()

	type row struct {
		date string
		spy  sql.NullFloat64
		cpi  sql.NullFloat64
	}
	var got []row
	for rows.Next() {
		var r row
		if err := rows.Scan(&r.date, &r.spy, &r.cpi); err != nil {
			t.Fatalf("scan: %v", err)
		}
		got = append(got, r)
	}
	if err := rows.Err(); err != nil {
		t.Fatalf("rows: %v", err)
	}

	if len(got) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(got))
	}
	if got[0].date != "2024-01-31" || !got[0].spy.Valid || got[0].spy.Float64 != 470.5 {
		t.Errorf("unexpected first row: %+v", got[0])
	}
	if got[1].cpi.Valid {
		t.Errorf("nil cell must round-trip as NULL: %+v", got[1])
	}
}

func TestSQLiteReplaceIsFullReplacement(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := NewSQLiteSink(path)
	if err != nil {
		t.Fatalf("NewSQLiteSink failed: %v", err)
	}
	defer s.Close()

	if err := s.ReplaceSnapshot(context.Background(), "sector_data", sampleTable()); err != nil {
		t.Fatalf("first ReplaceSnapshot failed: %v", err)
	}

	// Second snapshot has one row and one column; nothing from the first
	// write may survive.
	second := model.AlignedTable{
		Timestamps: []time.Time{time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC)},
		Columns:    []model.SeriesID{{Symbol: "GDP", Name: "GDP"}},
		Values:     [][]*float64{{model.Float64(28000)}},
	}
	if err := s.ReplaceSnapshot(context.Background(), "sector_data", second); err != nil {
		t.Fatalf("second ReplaceSnapshot failed: %v", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer db.Close()

	var count int
	if err := db.QueryRow(`SELECT COUNT(*) FROM "sector_data"`).Scan(&count); err != nil {
		t.Fatalf("count rows: %v", err)
	}
	if count != 1 {
		t.Errorf("expected 1 row after replacement, got %d", count)
	}

	if _, err := db.Query(`SELECT "S&P 500" FROM "sector_data"`); err == nil {
		t.Error("old column must be gone after replacement")
	}
}

func TestSQLiteEmptyTable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := NewSQLiteSink(path)
	if err != nil {
		t.Fatalf("NewSQLiteSink failed: %v", err)
	}
	defer s.Close()

	empty := model.AlignedTable{
		Columns: []model.SeriesID{{Symbol: "SPY", Name: "S&P 500"}},
	}
	if err := s.ReplaceSnapshot(context.Background(), "sector_data", empty); err != nil {
		t.Fatalf("ReplaceSnapshot failed on empty table: %v", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer db.Close()

	var count int
	if err := db.QueryRow(`SELECT COUNT(*) FROM "sector_data"`).Scan(&count); err != nil {
		t.Fatalf("count rows: %v", err)
	}
	if count != 0 {
		t.Errorf("expected empty snapshot table, got %d rows", count)
	}
}

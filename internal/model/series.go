package model

import (
	"fmt"
	"time"
)

// SeriesID identifies one named time series within a run. Symbol is the
// provider-facing identifier (ticker, FRED series id, ...), Name is the
// column name the series gets in the aligned table.
type SeriesID struct {
	Symbol string
	Name   string
}

func (id SeriesID) String() string {
	return fmt.Sprintf("%s(%s)", id.Name, id.Symbol)
}

// Query carries the request parameters passed to a source provider for one
// series. A zero Start or End leaves the range to the provider's default.
type Query struct {
	Symbol string
	Start  time.Time
	End    time.Time
}

// RawPoint is a single observation as delivered by a source. Value is nil
// when the source reported the observation as missing.
type RawPoint struct {
	Timestamp time.Time
	Value     *float64
}

// RawSeries is the unprocessed output of one fetch. Points are ordered by
// timestamp once validated by the normalizer.
type RawSeries struct {
	ID     SeriesID
	Points []RawPoint
}

// FetchResult is the per-series outcome of a fetch run: either a raw series
// or the error that prevented it.
type FetchResult struct {
	Series RawSeries
	Err    error
}

// Ok reports whether the fetch succeeded. A successful fetch with zero
// points is still Ok; emptiness is handled downstream.
func (r FetchResult) Ok() bool {
	return r.Err == nil
}

// NormalizedPoint is one bucket of a resampled series, keyed by the
// period-end timestamp of its canonical interval.
type NormalizedPoint struct {
	Bucket time.Time
	Value  *float64
}

// NormalizedSeries is a series on the canonical grid: ascending, gap-free
// buckets from the first to the last observed period. Buckets before the
// first aggregated observation may carry a nil value.
type NormalizedSeries struct {
	ID     SeriesID
	Points []NormalizedPoint
}

// AlignedTable is the merged wide table. Timestamps are ascending and
// deduplicated; Values is row-major, Values[i][j] holding the value of
// Columns[j] at Timestamps[i], nil where the series has no bucket there.
type AlignedTable struct {
	Timestamps []time.Time
	Columns    []SeriesID
	Values     [][]*float64
}

// Rows returns the number of row timestamps in the table.
func (t AlignedTable) Rows() int {
	return len(t.Timestamps)
}

// ColumnIndex returns the position of the given series, or -1 when the
// table has no such column.
func (t AlignedTable) ColumnIndex(id SeriesID) int {
	for i, c := range t.Columns {
		if c == id {
			return i
		}
	}
	return -1
}

// Value looks up the cell for (row, series). The second return is false when
// the table has no such column.
func (t AlignedTable) Value(row int, id SeriesID) (*float64, bool) {
	col := t.ColumnIndex(id)
	if col < 0 || row < 0 || row >= len(t.Values) {
		return nil, false
	}
	return t.Values[row][col], true
}

// Float64 is a convenience for building optional values in literals.
func Float64(v float64) *float64 {
	return &v
}

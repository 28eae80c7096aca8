// Package align outer-joins normalized series on the union of their bucket
// timestamps. The orchestrator delivers series in whatever order fetches
// complete, so the merge is built on a sorted union rather than appending:
// any permutation of the input yields the same rows and values, with only
// the column order following the input order.
package align

import (
	"errors"
	"sort"
	"time"

	"fintrac/internal/model"
)

var ErrEmptyInput = errors.New("no series to merge")

// Merge builds the wide table from the given normalized series. Failed or
// empty sources must be omitted by the caller before merging; merge has no
// concept of a failed source.
func Merge(series []model.NormalizedSeries) (model.AlignedTable, error) {
	if len(series) == 0 {
		return model.AlignedTable{}, ErrEmptyInput
	}

	// Sorted, deduplicated union of all bucket timestamps.
	seen := make(map[int64]time.Time)
	for _, s := range series {
		for _, p := range s.Points {
			seen[p.Bucket.UnixNano()] = p.Bucket
		}
	}
	keys := make([]int64, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	table := model.AlignedTable{
		Timestamps: make([]time.Time, len(keys)),
		Columns:    make([]model.SeriesID, len(series)),
		Values:     make([][]*float64, len(keys)),
	}
	for i, k := range keys {
		table.Timestamps[i] = seen[k]
		table.Values[i] = make([]*float64, len(series))
	}

	for j, s := range series {
		table.Columns[j] = s.ID
		byBucket := make(map[int64]*float64, len(s.Points))
		for _, p := range s.Points {
			byBucket[p.Bucket.UnixNano()] = p.Value
		}
		for i, k := range keys {
			if v, ok := byBucket[k]; ok {
				table.Values[i][j] = v
			}
		}
	}

	return table, nil
}

// Package resample converts raw, irregularly-timestamped series onto a
// canonical calendar grid. Buckets are keyed by their period-end timestamp
// in UTC, so a monthly series carries the last calendar day of each month.
package resample

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"fintrac/internal/model"
)

var (
	ErrEmptyRawSeries   = errors.New("empty raw series")
	ErrInvalidFrequency = errors.New("invalid frequency")
)

// Frequency selects the canonical period width.
type Frequency string

const (
	Daily     Frequency = "daily"
	Weekly    Frequency = "weekly"
	Monthly   Frequency = "monthly"
	Quarterly Frequency = "quarterly"
	Annual    Frequency = "annual"
)

// ParseFrequency maps a configuration string to a Frequency.
func ParseFrequency(s string) (Frequency, error) {
	switch Frequency(s) {
	case Daily, Weekly, Monthly, Quarterly, Annual:
		return Frequency(s), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidFrequency, s)
	}
}

// BucketEnd returns the period-end timestamp of the canonical interval
// containing t. All buckets are midnight UTC on the period's last day.
func (f Frequency) BucketEnd(t time.Time) (time.Time, error) {
	t = t.UTC()
	y, m, d := t.Date()
	switch f {
	case Daily:
		return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), nil
	case Weekly:
		// Weeks end on Sunday.
		day := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
		offset := (7 - int(day.Weekday())) % 7
		return day.AddDate(0, 0, offset), nil
	case Monthly:
		return time.Date(y, m+1, 0, 0, 0, 0, 0, time.UTC), nil
	case Quarterly:
		qEnd := m + (3-m%3)%3 // Mar, Jun, Sep, Dec
		return time.Date(y, qEnd+1, 0, 0, 0, 0, 0, time.UTC), nil
	case Annual:
		return time.Date(y, 12, 31, 0, 0, 0, 0, time.UTC), nil
	default:
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidFrequency, f)
	}
}

// next returns the end of the period immediately following bucket. bucket
// must itself be a period-end timestamp.
func (f Frequency) next(bucket time.Time) time.Time {
	// The day after a period end always lands in the next period.
	n, _ := f.BucketEnd(bucket.AddDate(0, 0, 1))
	return n
}

// Aggregation combines multiple intra-period observations into one value.
type Aggregation string

const (
	Mean  Aggregation = "mean"
	Sum   Aggregation = "sum"
	Min   Aggregation = "min"
	Max   Aggregation = "max"
	First Aggregation = "first"
	Last  Aggregation = "last"
)

// ParseAggregation maps a configuration string to an Aggregation.
func ParseAggregation(s string) (Aggregation, error) {
	switch Aggregation(s) {
	case Mean, Sum, Min, Max, First, Last:
		return Aggregation(s), nil
	case "":
		return Mean, nil
	default:
		return "", fmt.Errorf("invalid aggregation %q", s)
	}
}

// Fill decides what happens to buckets with no observations.
type Fill string

const (
	ForwardFill Fill = "forward"
	NoFill      Fill = "none"
)

// ParseFill maps a configuration string to a Fill policy.
func ParseFill(s string) (Fill, error) {
	switch Fill(s) {
	case ForwardFill, NoFill:
		return Fill(s), nil
	case "":
		return ForwardFill, nil
	default:
		return "", fmt.Errorf("invalid fill policy %q", s)
	}
}

// Spec bundles the resampling parameters. Zero values fall back to the
// defaults: mean aggregation with forward fill.
type Spec struct {
	Frequency   Frequency
	Aggregation Aggregation
	Fill        Fill
}

func (s Spec) withDefaults() Spec {
	if s.Aggregation == "" {
		s.Aggregation = Mean
	}
	if s.Fill == "" {
		s.Fill = ForwardFill
	}
	return s
}

// Normalize buckets the raw series into canonical periods, aggregates
// intra-period observations and fills gaps per the spec. The output buckets
// form a contiguous ascending sequence from the first to the last observed
// period; buckets preceding the first aggregated observation stay nil. The
// result depends only on the input series, never on fetch timing.
func Normalize(series model.RawSeries, spec Spec) (model.NormalizedSeries, error) {
	if len(series.Points) == 0 {
		return model.NormalizedSeries{}, fmt.Errorf("%s: %w", series.ID, ErrEmptyRawSeries)
	}
	spec = spec.withDefaults()

	points := make([]model.RawPoint, len(series.Points))
	copy(points, series.Points)
	sort.SliceStable(points, func(i, j int) bool {
		return points[i].Timestamp.Before(points[j].Timestamp)
	})

	first, err := spec.Frequency.BucketEnd(points[0].Timestamp)
	if err != nil {
		return model.NormalizedSeries{}, fmt.Errorf("%s: %w", series.ID, err)
	}
	last, _ := spec.Frequency.BucketEnd(points[len(points)-1].Timestamp)

	// Aggregate non-nil observations per bucket. Buckets whose points are
	// all nil count as observed but stay empty, like any skipped period.
	buckets := make(map[time.Time]*accumulator)
	for _, p := range points {
		if p.Value == nil {
			continue
		}
		b, _ := spec.Frequency.BucketEnd(p.Timestamp)
		acc, ok := buckets[b]
		if !ok {
			acc = &accumulator{}
			buckets[b] = acc
		}
		acc.add(*p.Value)
	}

	out := model.NormalizedSeries{ID: series.ID}
	var lastKnown *float64
	for b := first; !b.After(last); b = spec.Frequency.next(b) {
		var value *float64
		if acc, ok := buckets[b]; ok {
			v := acc.result(spec.Aggregation)
			value = &v
			lastKnown = &v
		} else if spec.Fill == ForwardFill && lastKnown != nil {
			value = lastKnown
		}
		out.Points = append(out.Points, model.NormalizedPoint{Bucket: b, Value: value})
	}

	return out, nil
}

// accumulator collects the observations landing in one bucket.
type accumulator struct {
	sum   float64
	count int
	min   float64
	max   float64
	first float64
	last  float64
}

func (a *accumulator) add(v float64) {
	if a.count == 0 {
		a.min, a.max, a.first = v, v, v
	} else {
		if v < a.min {
			a.min = v
		}
		if v > a.max {
			a.max = v
		}
	}
	a.sum += v
	a.count++
	a.last = v
}

func (a *accumulator) result(agg Aggregation) float64 {
	switch agg {
	case Sum:
		return a.sum
	case Min:
		return a.min
	case Max:
		return a.max
	case First:
		return a.first
	case Last:
		return a.last
	default:
		return a.sum / float64(a.count)
	}
}

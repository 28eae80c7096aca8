package provider

import (
	"context"
	"hash/fnv"
	"math/rand"
	"time"

	"fintrac/internal/model"
)

// DriftParams shapes the synthetic series: a base level, gaussian noise and
// a yearly drift applied multiplicatively over the generated window.
type DriftParams struct {
	Base           float64
	Volatility     float64
	AnnualDriftPct float64
}

// Synthetic generates a deterministic pseudorandom monthly series. It stands
// in for sources that have no real upstream, and doubles as a fixture
// provider: the same seed and symbol always produce the same points.
type Synthetic struct {
	seed   int64
	params DriftParams
}

// NewSynthetic creates a synthetic provider with the given seed and drift
// parameters.
func NewSynthetic(seed int64, params DriftParams) *Synthetic {
	return &Synthetic{seed: seed, params: params}
}

func (p *Synthetic) Name() string { return "synthetic" }

// Fetch produces one point per month end across the query window. A zero
// window defaults to the trailing five years.
func (p *Synthetic) Fetch(ctx context.Context, id model.SeriesID, q model.Query) (model.RawSeries, error) {
	end := q.End
	if end.IsZero() {
		end = time.Now().UTC()
	}
	start := q.Start
	if start.IsZero() {
		start = end.AddDate(-5, 0, 0)
	}

	rng := rand.New(rand.NewSource(p.seed ^ symbolSeed(q.Symbol)))

	series := model.RawSeries{ID: id}
	for t := monthEnd(start); !t.After(end); t = monthEnd(t.AddDate(0, 0, 1)) {
		years := t.Sub(start).Hours() / (24 * 365)
		drift := 1 + p.params.AnnualDriftPct/100*years
		v := p.params.Base*drift + rng.NormFloat64()*p.params.Volatility
		series.Points = append(series.Points, model.RawPoint{Timestamp: t, Value: &v})
	}

	return series, nil
}

func symbolSeed(symbol string) int64 {
	h := fnv.New64a()
	h.Write([]byte(symbol))
	return int64(h.Sum64())
}

func monthEnd(t time.Time) time.Time {
	y, m, _ := t.UTC().Date()
	return time.Date(y, m+1, 0, 0, 0, 0, 0, time.UTC)
}

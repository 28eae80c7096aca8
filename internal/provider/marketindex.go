package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"

	"fintrac/internal/model"
	"fintrac/logger"
)

// MarketIndex fetches daily close series from a Yahoo-chart-style endpoint.
type MarketIndex struct {
	baseURL string
	client  *http.Client
	limiter *rate.Limiter
	log     *logger.Log
}

// NewMarketIndex creates a market index provider against the given endpoint.
func NewMarketIndex(cfg Config) *MarketIndex {
	return &MarketIndex{
		baseURL: cfg.BaseURL,
		client:  newHTTPClient(cfg.Timeout),
		limiter: newLimiter(cfg),
		log:     logger.GetLogger(),
	}
}

func (p *MarketIndex) Name() string { return "market-index" }

// chartResponse mirrors the chart API payload. Close arrays carry explicit
// nulls for days without a quote; those survive as nil raw points.
type chartResponse struct {
	Chart struct {
		Result []struct {
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Close []*float64 `json:"close"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// Fetch retrieves the daily close history for the queried symbol. An empty
// result set is a valid zero-point series, not an error.
func (p *MarketIndex) Fetch(ctx context.Context, id model.SeriesID, q model.Query) (model.RawSeries, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return model.RawSeries{}, model.NewFetchError(model.FetchNetwork, p.Name(), err)
	}

	u := fmt.Sprintf("%s/v8/finance/chart/%s?interval=1d&%s",
		p.baseURL, url.PathEscape(q.Symbol), rangeParams(q))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return model.RawSeries{}, model.NewFetchError(model.FetchNetwork, p.Name(), err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0")

	resp, err := p.client.Do(req)
	if err != nil {
		return model.RawSeries{}, model.NewFetchError(model.FetchNetwork, p.Name(), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return model.RawSeries{}, classifyStatus(p.Name(), resp)
	}

	var chart chartResponse
	if err := json.NewDecoder(resp.Body).Decode(&chart); err != nil {
		return model.RawSeries{}, model.NewFetchError(model.FetchMalformedResponse, p.Name(), err)
	}
	if chart.Chart.Error != nil {
		return model.RawSeries{}, model.NewFetchError(model.FetchNotFound, p.Name(),
			fmt.Errorf("%s: %s", chart.Chart.Error.Code, chart.Chart.Error.Description))
	}
	if len(chart.Chart.Result) == 0 {
		return model.RawSeries{}, model.NewFetchError(model.FetchMalformedResponse, p.Name(),
			fmt.Errorf("no result in chart response"))
	}

	result := chart.Chart.Result[0]
	if len(result.Indicators.Quote) == 0 {
		return model.RawSeries{ID: id}, nil
	}
	closes := result.Indicators.Quote[0].Close
	if len(closes) != len(result.Timestamp) {
		return model.RawSeries{}, model.NewFetchError(model.FetchMalformedResponse, p.Name(),
			fmt.Errorf("timestamp/close length mismatch: %d vs %d", len(result.Timestamp), len(closes)))
	}

	series := model.RawSeries{ID: id, Points: make([]model.RawPoint, 0, len(closes))}
	for i, ts := range result.Timestamp {
		series.Points = append(series.Points, model.RawPoint{
			Timestamp: time.Unix(ts, 0).UTC(),
			Value:     closes[i],
		})
	}

	p.log.WithComponent(p.Name()).WithFields(logger.Fields{
		"symbol": q.Symbol,
		"points": len(series.Points),
	}).Debug("chart series fetched")

	return series, nil
}

// rangeParams encodes the query window. A zero window falls back to the
// endpoint's 10y default, matching the depth the analysis needs.
func rangeParams(q model.Query) string {
	if q.Start.IsZero() || q.End.IsZero() {
		return "range=10y"
	}
	return fmt.Sprintf("period1=%d&period2=%d", q.Start.Unix(), q.End.Unix())
}

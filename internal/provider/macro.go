package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"fintrac/internal/model"
	"fintrac/logger"
)

// Macro fetches economic indicator series from a FRED-style observations
// endpoint. Series arrive at their native frequency; resampling to the
// canonical grid happens downstream.
type Macro struct {
	baseURL string
	apiKey  string
	client  *http.Client
	limiter *rate.Limiter
	log     *logger.Log
}

// NewMacro creates a macro indicator provider. The API key is part of the
// explicit configuration; the provider never consults the environment.
func NewMacro(cfg Config) *Macro {
	return &Macro{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		client:  newHTTPClient(cfg.Timeout),
		limiter: newLimiter(cfg),
		log:     logger.GetLogger(),
	}
}

func (p *Macro) Name() string { return "macro" }

type observationsResponse struct {
	Observations []struct {
		Date  string `json:"date"`
		Value string `json:"value"`
	} `json:"observations"`
}

// Fetch retrieves the observations for one series id. The endpoint marks
// missing observations with the literal "." value; those become nil points.
func (p *Macro) Fetch(ctx context.Context, id model.SeriesID, q model.Query) (model.RawSeries, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return model.RawSeries{}, model.NewFetchError(model.FetchNetwork, p.Name(), err)
	}

	params := url.Values{}
	params.Set("series_id", q.Symbol)
	params.Set("api_key", p.apiKey)
	params.Set("file_type", "json")
	if !q.Start.IsZero() {
		params.Set("observation_start", q.Start.Format("2006-01-02"))
	}
	if !q.End.IsZero() {
		params.Set("observation_end", q.End.Format("2006-01-02"))
	}

	u := fmt.Sprintf("%s/fred/series/observations?%s", p.baseURL, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return model.RawSeries{}, model.NewFetchError(model.FetchNetwork, p.Name(), err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return model.RawSeries{}, model.NewFetchError(model.FetchNetwork, p.Name(), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return model.RawSeries{}, classifyStatus(p.Name(), resp)
	}

	var payload observationsResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return model.RawSeries{}, model.NewFetchError(model.FetchMalformedResponse, p.Name(), err)
	}

	series := model.RawSeries{ID: id, Points: make([]model.RawPoint, 0, len(payload.Observations))}
	for _, obs := range payload.Observations {
		ts, err := time.ParseInLocation("2006-01-02", obs.Date, time.UTC)
		if err != nil {
			return model.RawSeries{}, model.NewFetchError(model.FetchMalformedResponse, p.Name(),
				fmt.Errorf("bad observation date %q: %w", obs.Date, err))
		}

		point := model.RawPoint{Timestamp: ts}
		if obs.Value != "." {
			v, err := strconv.ParseFloat(obs.Value, 64)
			if err != nil {
				return model.RawSeries{}, model.NewFetchError(model.FetchMalformedResponse, p.Name(),
					fmt.Errorf("bad observation value %q: %w", obs.Value, err))
			}
			point.Value = &v
		}
		series.Points = append(series.Points, point)
	}

	p.log.WithComponent(p.Name()).WithFields(logger.Fields{
		"series_id": q.Symbol,
		"points":    len(series.Points),
	}).Debug("observations fetched")

	return series, nil
}

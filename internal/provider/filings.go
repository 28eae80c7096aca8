package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"fintrac/internal/model"
	"fintrac/logger"
)

// Filings turns a filing-search endpoint into a time series: one point per
// filing, keyed by the filed-at date, valued by the document size. It is the
// series view of the corporate report feed; the filing text itself is out of
// scope here.
type Filings struct {
	baseURL  string
	apiKey   string
	formType string
	client   *http.Client
	limiter  *rate.Limiter
	log      *logger.Log
}

// NewFilings creates a filings provider querying the given form type
// (defaults to 10-K).
func NewFilings(cfg Config, formType string) *Filings {
	if formType == "" {
		formType = "10-K"
	}
	return &Filings{
		baseURL:  cfg.BaseURL,
		apiKey:   cfg.APIKey,
		formType: formType,
		client:   newHTTPClient(cfg.Timeout),
		limiter:  newLimiter(cfg),
		log:      logger.GetLogger(),
	}
}

func (p *Filings) Name() string { return "filings" }

type filingQuery struct {
	Query string              `json:"query"`
	From  string              `json:"from"`
	Size  string              `json:"size"`
	Sort  []map[string]string `json:"sort"`
}

type filingSearchResponse struct {
	Filings []struct {
		FiledAt string `json:"filedAt"`
		Size    string `json:"size"`
	} `json:"filings"`
}

// Fetch queries the filing index for the symbol's form filings. A symbol
// with no filings yields a zero-point series.
func (p *Filings) Fetch(ctx context.Context, id model.SeriesID, q model.Query) (model.RawSeries, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return model.RawSeries{}, model.NewFetchError(model.FetchNetwork, p.Name(), err)
	}

	body, err := json.Marshal(filingQuery{
		Query: fmt.Sprintf("ticker:%s AND formType:%q", q.Symbol, p.formType),
		From:  "0",
		Size:  "50",
		Sort:  []map[string]string{{"filedAt": "asc"}},
	})
	if err != nil {
		return model.RawSeries{}, model.NewFetchError(model.FetchMalformedResponse, p.Name(), err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL, bytes.NewReader(body))
	if err != nil {
		return model.RawSeries{}, model.NewFetchError(model.FetchNetwork, p.Name(), err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", p.apiKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return model.RawSeries{}, model.NewFetchError(model.FetchNetwork, p.Name(), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return model.RawSeries{}, classifyStatus(p.Name(), resp)
	}

	var payload filingSearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return model.RawSeries{}, model.NewFetchError(model.FetchMalformedResponse, p.Name(), err)
	}

	series := model.RawSeries{ID: id, Points: make([]model.RawPoint, 0, len(payload.Filings))}
	for _, f := range payload.Filings {
		ts, err := time.Parse(time.RFC3339, f.FiledAt)
		if err != nil {
			return model.RawSeries{}, model.NewFetchError(model.FetchMalformedResponse, p.Name(),
				fmt.Errorf("bad filedAt %q: %w", f.FiledAt, err))
		}

		point := model.RawPoint{Timestamp: ts.UTC()}
		if size, err := strconv.ParseFloat(f.Size, 64); err == nil {
			point.Value = &size
		}
		series.Points = append(series.Points, point)
	}

	p.log.WithComponent(p.Name()).WithFields(logger.Fields{
		"ticker":    q.Symbol,
		"form_type": p.formType,
		"filings":   len(series.Points),
	}).Debug("filing series fetched")

	return series, nil
}

// Package provider holds the source adapters that answer fetch requests for
// named series. Each adapter is a thin wrapper over one external API; all
// configuration (base URL, credentials, timeouts, rate limits) is passed in
// explicitly at construction and never read from process state.
package provider

import (
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"fintrac/internal/model"
)

// Config carries the explicit construction parameters shared by the HTTP
// providers.
type Config struct {
	BaseURL           string
	APIKey            string
	Timeout           time.Duration
	RequestsPerSecond float64
	Burst             int
}

const defaultTimeout = 30 * time.Second

func newHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			MaxIdleConns:        10,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
		},
	}
}

func newLimiter(cfg Config) *rate.Limiter {
	if cfg.RequestsPerSecond <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	burst := cfg.Burst
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
}

// classifyStatus maps a non-2xx HTTP response to the fetch error taxonomy.
func classifyStatus(provider string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	err := fmt.Errorf("status %d: %s", resp.StatusCode, string(body))

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return model.NewFetchError(model.FetchRateLimited, provider, err)
	case resp.StatusCode == http.StatusNotFound:
		return model.NewFetchError(model.FetchNotFound, provider, err)
	default:
		return model.NewFetchError(model.FetchNetwork, provider, err)
	}
}

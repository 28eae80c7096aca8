package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Fintrac   FintracConfig   `yaml:"fintrac"`
	Fetcher   FetcherConfig   `yaml:"fetcher"`
	Resample  ResampleConfig  `yaml:"resample"`
	Providers ProvidersConfig `yaml:"providers"`
	Range     RangeConfig     `yaml:"range"`
	Series    []SeriesConfig  `yaml:"series"`
	Storage   StorageConfig   `yaml:"storage"`
	Logging   LoggingConfig   `yaml:"logging"`
}

type FintracConfig struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
}

type FetcherConfig struct {
	MaxConcurrency int             `yaml:"max_concurrency"`
	Timeout        time.Duration   `yaml:"timeout"`
	RateLimit      RateLimitConfig `yaml:"rate_limit"`
}

type RateLimitConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	Burst             int     `yaml:"burst"`
}

type ResampleConfig struct {
	Frequency   string `yaml:"frequency"`
	Aggregation string `yaml:"aggregation"`
	Fill        string `yaml:"fill"`
}

type ProvidersConfig struct {
	MarketIndex EndpointConfig  `yaml:"market_index"`
	Macro       EndpointConfig  `yaml:"macro"`
	Filings     FilingsConfig   `yaml:"filings"`
	Synthetic   SyntheticConfig `yaml:"synthetic"`
}

type EndpointConfig struct {
	URL    string `yaml:"url"`
	APIKey string `yaml:"api_key"`
}

type FilingsConfig struct {
	URL      string `yaml:"url"`
	APIKey   string `yaml:"api_key"`
	FormType string `yaml:"form_type"`
}

type SyntheticConfig struct {
	Seed           int64   `yaml:"seed"`
	Base           float64 `yaml:"base"`
	Volatility     float64 `yaml:"volatility"`
	AnnualDriftPct float64 `yaml:"annual_drift_pct"`
}

// RangeConfig sets the default observation window as ISO dates. Empty values
// leave the window to each provider's default depth.
type RangeConfig struct {
	Start string `yaml:"start"`
	End   string `yaml:"end"`
}

// StartTime parses the configured start date; the zero time means unset.
func (r RangeConfig) StartTime() (time.Time, error) {
	return parseDate(r.Start)
}

// EndTime parses the configured end date; the zero time means unset.
func (r RangeConfig) EndTime() (time.Time, error) {
	return parseDate(r.End)
}

func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.ParseInLocation("2006-01-02", s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return t, nil
}

type SeriesConfig struct {
	Symbol   string `yaml:"symbol"`
	Name     string `yaml:"name"`
	Provider string `yaml:"provider"`
}

type StorageConfig struct {
	// SnapshotName names the persisted snapshot on every enabled backend:
	// the SQLite table and the S3 object key both derive from it.
	SnapshotName string       `yaml:"snapshot_name"`
	SQLite       SQLiteConfig `yaml:"sqlite"`
	S3           S3Config     `yaml:"s3"`
}

type SQLiteConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

type S3Config struct {
	Enabled         bool   `yaml:"enabled"`
	Bucket          string `yaml:"bucket"`
	Region          string `yaml:"region"`
	Prefix          string `yaml:"prefix"`
	Endpoint        string `yaml:"endpoint"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
}

type LoggingConfig struct {
	Level     string `yaml:"level"`
	Format    string `yaml:"format"`
	Output    string `yaml:"output"`
	MaxAge    int    `yaml:"max_age"`
	Namespace string `yaml:"namespace"`
}

var knownProviders = map[string]struct{}{
	"market-index": {},
	"macro":        {},
	"filings":      {},
	"synthetic":    {},
}

func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := Config{
		Fetcher: FetcherConfig{
			MaxConcurrency: 10,
			Timeout:        30 * time.Second,
		},
		Resample: ResampleConfig{
			Frequency:   "monthly",
			Aggregation: "mean",
			Fill:        "forward",
		},
		Storage: StorageConfig{
			SnapshotName: "sector_data",
			SQLite:       SQLiteConfig{Enabled: true, Path: "data/fintrac.db"},
		},
		Logging: LoggingConfig{Level: "info", Format: "json", Output: "stdout"},
	}
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Override credentials from environment variables if available
	if v := os.Getenv("FRED_API_KEY"); v != "" {
		config.Providers.Macro.APIKey = strings.TrimSpace(v)
	}
	if v := os.Getenv("SEC_API_KEY"); v != "" {
		config.Providers.Filings.APIKey = strings.TrimSpace(v)
	}
	if config.Storage.S3.Enabled {
		if v := os.Getenv("AWS_ACCESS_KEY_ID"); v != "" {
			config.Storage.S3.AccessKeyID = strings.TrimSpace(v)
		}
		if v := os.Getenv("AWS_SECRET_ACCESS_KEY"); v != "" {
			config.Storage.S3.SecretAccessKey = strings.TrimSpace(v)
		}
		if v := os.Getenv("AWS_REGION"); v != "" {
			config.Storage.S3.Region = strings.TrimSpace(v)
		}
		if v := os.Getenv("S3_BUCKET"); v != "" {
			config.Storage.S3.Bucket = strings.TrimSpace(v)
		}
	}

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &config, nil
}

func validateConfig(cfg *Config) error {
	if cfg.Fintrac.Name == "" {
		return fmt.Errorf("fintrac.name is required")
	}

	if cfg.Fintrac.Version == "" {
		return fmt.Errorf("fintrac.version is required")
	}

	if cfg.Fetcher.MaxConcurrency <= 0 {
		return fmt.Errorf("fetcher.max_concurrency must be greater than 0")
	}
	if cfg.Fetcher.Timeout <= 0 {
		return fmt.Errorf("fetcher.timeout must be greater than 0")
	}

	if len(cfg.Series) == 0 {
		return fmt.Errorf("at least one series must be configured")
	}

	usesProvider := map[string]bool{}
	for i, s := range cfg.Series {
		if s.Symbol == "" || s.Name == "" {
			return fmt.Errorf("series[%d]: symbol and name are required", i)
		}
		if _, ok := knownProviders[s.Provider]; !ok {
			return fmt.Errorf("series[%d]: unknown provider %q", i, s.Provider)
		}
		usesProvider[s.Provider] = true
	}

	if usesProvider["market-index"] && cfg.Providers.MarketIndex.URL == "" {
		return fmt.Errorf("providers.market_index.url is required")
	}
	if usesProvider["macro"] && cfg.Providers.Macro.URL == "" {
		return fmt.Errorf("providers.macro.url is required")
	}
	if usesProvider["filings"] && cfg.Providers.Filings.URL == "" {
		return fmt.Errorf("providers.filings.url is required")
	}

	// Missing keys only block production-like environments; development
	// runs are allowed to hit keyless test endpoints.
	if IsProductionLike(AppEnvironment()) {
		if usesProvider["macro"] && cfg.Providers.Macro.APIKey == "" {
			return fmt.Errorf("providers.macro.api_key is required (set FRED_API_KEY)")
		}
		if usesProvider["filings"] && cfg.Providers.Filings.APIKey == "" {
			return fmt.Errorf("providers.filings.api_key is required (set SEC_API_KEY)")
		}
	}

	if _, err := cfg.Range.StartTime(); err != nil {
		return fmt.Errorf("range.start: %w", err)
	}
	if _, err := cfg.Range.EndTime(); err != nil {
		return fmt.Errorf("range.end: %w", err)
	}

	if !cfg.Storage.SQLite.Enabled && !cfg.Storage.S3.Enabled {
		return fmt.Errorf("at least one storage backend must be enabled")
	}
	if cfg.Storage.SnapshotName == "" {
		return fmt.Errorf("storage.snapshot_name is required")
	}
	if cfg.Storage.SQLite.Enabled && cfg.Storage.SQLite.Path == "" {
		return fmt.Errorf("storage.sqlite.path is required when sqlite is enabled")
	}
	if cfg.Storage.S3.Enabled {
		if cfg.Storage.S3.Bucket == "" {
			return fmt.Errorf("storage.s3.bucket is required when S3 is enabled")
		}
		if cfg.Storage.S3.Region == "" {
			return fmt.Errorf("storage.s3.region is required when S3 is enabled")
		}
		if cfg.Storage.S3.AccessKeyID == "" || cfg.Storage.S3.SecretAccessKey == "" {
			return fmt.Errorf("storage.s3.access_key_id and storage.s3.secret_access_key are required when S3 is enabled")
		}
	}

	return nil
}

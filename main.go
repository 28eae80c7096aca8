package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"fintrac/config"
	"fintrac/internal/fetcher"
	"fintrac/internal/model"
	"fintrac/internal/pipeline"
	"fintrac/internal/provider"
	"fintrac/internal/registry"
	"fintrac/internal/resample"
	"fintrac/internal/sink"
	"fintrac/logger"
)

func main() {
	log := logger.GetLogger()

	// Load environment variables from .env if present
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.WithError(err).Warn("Error loading .env file")
	}

	configPath := flag.String("config", "config/config.yml", "Path to configuration file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.WithError(err).Error("Failed to load configuration")
		os.Exit(1)
	}

	if err := log.Configure(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output, cfg.Logging.MaxAge); err != nil {
		log.WithError(err).Error("Failed to configure logger")
		os.Exit(1)
	}

	log.WithFields(logger.Fields{
		"service": cfg.Fintrac.Name,
		"version": cfg.Fintrac.Version,
		"env":     config.AppEnvironment(),
	}).Info("starting fintrac")

	if cfg.Logging.Namespace != "" {
		logger.InitCloudWatch(cfg.Storage.S3.Region, cfg.Logging.Namespace)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		log.WithFields(logger.Fields{"signal": sig.String()}).Info("shutdown signal received")
		cancel()
	}()

	if strings.ToLower(cfg.Logging.Level) == "report" {
		logger.StartReport(ctx, log, 30*time.Second)
	}

	runner, closers, err := buildRunner(ctx, cfg)
	if err != nil {
		log.WithError(err).Error("failed to assemble pipeline")
		os.Exit(1)
	}
	defer func() {
		for _, c := range closers {
			c()
		}
	}()

	report, err := runner.Run(ctx)
	logger.LogReport(log)
	if err != nil {
		log.WithError(err).WithFields(logger.Fields{"run_id": report.RunID}).Error("run failed")
		os.Exit(1)
	}

	log.WithFields(logger.Fields{
		"run_id":    report.RunID,
		"snapshot":  report.SnapshotName,
		"requested": report.Requested,
		"fetched":   report.Fetched,
		"failed":    report.Failed,
		"rows":      report.Rows,
		"columns":   report.Columns,
	}).Info("fintrac finished")
}

// buildRunner assembles the providers, registry, series entries and sinks
// described by the configuration into a ready pipeline runner.
func buildRunner(ctx context.Context, cfg *config.Config) (*pipeline.Runner, []func(), error) {
	rangeStart, err := cfg.Range.StartTime()
	if err != nil {
		return nil, nil, err
	}
	rangeEnd, err := cfg.Range.EndTime()
	if err != nil {
		return nil, nil, err
	}

	sources := map[string]fetcher.Source{
		"market-index": provider.NewMarketIndex(provider.Config{
			BaseURL:           cfg.Providers.MarketIndex.URL,
			APIKey:            cfg.Providers.MarketIndex.APIKey,
			Timeout:           cfg.Fetcher.Timeout,
			RequestsPerSecond: cfg.Fetcher.RateLimit.RequestsPerSecond,
			Burst:             cfg.Fetcher.RateLimit.Burst,
		}),
		"macro": provider.NewMacro(provider.Config{
			BaseURL:           cfg.Providers.Macro.URL,
			APIKey:            cfg.Providers.Macro.APIKey,
			Timeout:           cfg.Fetcher.Timeout,
			RequestsPerSecond: cfg.Fetcher.RateLimit.RequestsPerSecond,
			Burst:             cfg.Fetcher.RateLimit.Burst,
		}),
		"filings": provider.NewFilings(provider.Config{
			BaseURL:           cfg.Providers.Filings.URL,
			APIKey:            cfg.Providers.Filings.APIKey,
			Timeout:           cfg.Fetcher.Timeout,
			RequestsPerSecond: cfg.Fetcher.RateLimit.RequestsPerSecond,
			Burst:             cfg.Fetcher.RateLimit.Burst,
		}, cfg.Providers.Filings.FormType),
		"synthetic": provider.NewSynthetic(cfg.Providers.Synthetic.Seed, provider.DriftParams{
			Base:           cfg.Providers.Synthetic.Base,
			Volatility:     cfg.Providers.Synthetic.Volatility,
			AnnualDriftPct: cfg.Providers.Synthetic.AnnualDriftPct,
		}),
	}

	entries := make([]registry.Entry, 0, len(cfg.Series))
	for _, s := range cfg.Series {
		entries = append(entries, registry.Entry{
			ID:       model.SeriesID{Symbol: s.Symbol, Name: s.Name},
			Provider: s.Provider,
			Start:    rangeStart,
			End:      rangeEnd,
		})
	}

	freq, err := resample.ParseFrequency(cfg.Resample.Frequency)
	if err != nil {
		return nil, nil, err
	}
	agg, err := resample.ParseAggregation(cfg.Resample.Aggregation)
	if err != nil {
		return nil, nil, err
	}
	fill, err := resample.ParseFill(cfg.Resample.Fill)
	if err != nil {
		return nil, nil, err
	}
	spec := resample.Spec{Frequency: freq, Aggregation: agg, Fill: fill}

	var sinks []sink.Sink
	var closers []func()

	if cfg.Storage.SQLite.Enabled {
		sq, err := sink.NewSQLiteSink(cfg.Storage.SQLite.Path)
		if err != nil {
			return nil, nil, err
		}
		sinks = append(sinks, sq)
		closers = append(closers, func() { sq.Close() })
	}
	if cfg.Storage.S3.Enabled {
		exp, err := sink.NewS3Exporter(ctx, sink.S3Config{
			Bucket:          cfg.Storage.S3.Bucket,
			Region:          cfg.Storage.S3.Region,
			Prefix:          cfg.Storage.S3.Prefix,
			Endpoint:        cfg.Storage.S3.Endpoint,
			AccessKeyID:     cfg.Storage.S3.AccessKeyID,
			SecretAccessKey: cfg.Storage.S3.SecretAccessKey,
		})
		if err != nil {
			for _, c := range closers {
				c()
			}
			return nil, nil, err
		}
		sinks = append(sinks, exp)
	}

	runner := pipeline.NewRunner(registry.New(sources), entries, sinks, pipeline.Config{
		SnapshotName:   cfg.Storage.SnapshotName,
		MaxConcurrency: cfg.Fetcher.MaxConcurrency,
		Resample:       spec,
	})
	return runner, closers, nil
}

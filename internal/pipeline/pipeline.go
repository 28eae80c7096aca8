// Package pipeline drives one ingestion run end to end: resolve the series
// registry, fetch everything concurrently, resample each surviving series,
// merge into the aligned table and replace the snapshot on every sink.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"fintrac/internal/align"
	"fintrac/internal/fetcher"
	"fintrac/internal/model"
	"fintrac/internal/registry"
	"fintrac/internal/resample"
	"fintrac/internal/sink"
	"fintrac/logger"
)

// Config carries the run-level parameters.
type Config struct {
	SnapshotName   string
	MaxConcurrency int
	Resample       resample.Spec
}

// Failure records why one series produced no data.
type Failure struct {
	ID  model.SeriesID
	Err error
}

// Report summarises a run. A run with partial fetch failures still writes a
// snapshot covering the series that succeeded.
type Report struct {
	RunID        string
	SnapshotName string
	Requested    int
	Fetched      int
	Failed       int
	Empty        int
	Rows         int
	Columns      int
	Failures     []Failure
	Duration     time.Duration
}

// Runner executes ingestion runs against a fixed registry, series list and
// sink set.
type Runner struct {
	registry *registry.Registry
	entries  []registry.Entry
	orch     *fetcher.Orchestrator
	sinks    []sink.Sink
	cfg      Config
	log      *logger.Log
}

// NewRunner wires a runner. The sinks are tried in order; all of them must
// accept the snapshot for the run to succeed.
func NewRunner(reg *registry.Registry, entries []registry.Entry, sinks []sink.Sink, cfg Config) *Runner {
	return &Runner{
		registry: reg,
		entries:  entries,
		orch:     fetcher.New(cfg.MaxConcurrency),
		sinks:    sinks,
		cfg:      cfg,
		log:      logger.GetLogger(),
	}
}

// Run performs one full ingestion pass. The previous snapshot stays intact
// whenever an error is returned.
func (r *Runner) Run(ctx context.Context) (*Report, error) {
	start := time.Now()
	report := &Report{
		RunID:        uuid.New().String(),
		SnapshotName: r.cfg.SnapshotName,
		Requested:    len(r.entries),
	}

	log := r.log.WithComponent("pipeline").WithFields(logger.Fields{
		"run_id":   report.RunID,
		"snapshot": r.cfg.SnapshotName,
	})
	log.WithFields(logger.Fields{"requested": report.Requested}).Info("starting run")

	tasks, err := r.registry.Resolve(r.entries)
	if err != nil {
		return report, fmt.Errorf("resolve series: %w", err)
	}

	results, fetchErr := r.orch.FetchAll(ctx, tasks)

	// Partition in task order so the report and column order are stable
	// regardless of completion order.
	var normalized []model.NormalizedSeries
	for _, t := range tasks {
		res := results[t.ID]
		if !res.Ok() {
			report.Failed++
			report.Failures = append(report.Failures, Failure{ID: t.ID, Err: res.Err})
			continue
		}
		report.Fetched++

		// An empty successful fetch is a valid zero-point series. It
		// cannot be resampled, so it is counted and left out of the
		// merge input.
		if len(res.Series.Points) == 0 {
			report.Empty++
			logger.IncrementFetchEmpty()
			log.WithFields(logger.Fields{"series": t.ID.Name}).Warn("fetch returned no points, skipping series")
			continue
		}

		ns, err := resample.Normalize(res.Series, r.cfg.Resample)
		if err != nil {
			return report, fmt.Errorf("normalize %s: %w", t.ID, err)
		}
		logger.IncrementNormalized()
		normalized = append(normalized, ns)
	}

	report.Duration = time.Since(start)
	r.logCounts(log, report)

	if fetchErr != nil {
		return report, fmt.Errorf("fetch run: %w", fetchErr)
	}
	if len(normalized) == 0 {
		return report, fmt.Errorf("no series to align: %w", align.ErrEmptyInput)
	}

	table, err := align.Merge(normalized)
	if err != nil {
		return report, fmt.Errorf("merge series: %w", err)
	}
	report.Rows = table.Rows()
	report.Columns = len(table.Columns)

	for _, s := range r.sinks {
		if err := s.ReplaceSnapshot(ctx, r.cfg.SnapshotName, table); err != nil {
			return report, fmt.Errorf("replace snapshot %q: %w", r.cfg.SnapshotName, err)
		}
	}
	r.log.LogMetric("pipeline", "snapshot_rows", report.Rows, "gauge", logger.Fields{})
	r.log.LogMetric("pipeline", "snapshot_columns", report.Columns, "gauge", logger.Fields{})

	report.Duration = time.Since(start)
	log.WithFields(logger.Fields{
		"rows":        report.Rows,
		"columns":     report.Columns,
		"duration_ms": report.Duration.Milliseconds(),
	}).Info("run complete")

	return report, nil
}

func (r *Runner) logCounts(log *logger.Entry, report *Report) {
	r.log.LogMetric("pipeline", "series_fetched", report.Fetched, "counter", logger.Fields{})
	r.log.LogMetric("pipeline", "series_failed", report.Failed, "counter", logger.Fields{})
	r.log.LogMetric("pipeline", "series_empty", report.Empty, "counter", logger.Fields{})

	fields := logger.Fields{
		"requested": report.Requested,
		"fetched":   report.Fetched,
		"failed":    report.Failed,
		"empty":     report.Empty,
	}
	if len(report.Failures) > 0 {
		failed := make([]string, 0, len(report.Failures))
		for _, f := range report.Failures {
			failed = append(failed, fmt.Sprintf("%s: %v", f.ID, f.Err))
		}
		fields["failures"] = failed
	}
	log.WithFields(fields).Info("fetch summary")
}

// Package fetcher fans out fetch tasks across source providers under a
// bounded worker pool. Tasks are independent: one task's failure is recorded
// and never aborts its siblings, and each task gets exactly one attempt per
// run.
package fetcher

import (
	"context"
	"errors"
	"sync"
	"time"

	"fintrac/internal/model"
	"fintrac/logger"
)

// ErrAllFetchesFailed signals that no task produced a series. Whether to
// abort the run is the caller's decision; the result map still carries the
// per-series errors.
var ErrAllFetchesFailed = errors.New("all fetches failed")

// DefaultMaxConcurrency bounds the fan-out when no limit is configured,
// keeping the load on external providers in check.
const DefaultMaxConcurrency = 10

// Source is the external capability a task fetches through.
type Source interface {
	Name() string
	Fetch(ctx context.Context, id model.SeriesID, q model.Query) (model.RawSeries, error)
}

// Task is one fetch to perform: a series identity bound to the provider and
// query parameters that produce it.
type Task struct {
	ID     model.SeriesID
	Source Source
	Query  model.Query
}

// Orchestrator runs fetch tasks concurrently and collects one FetchResult
// per series id.
type Orchestrator struct {
	maxConcurrency int
	onComplete     func(model.SeriesID, error)
	log            *logger.Log
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithCompletionHook registers a callback invoked once per task after it
// finishes, carrying the series identity and the error if any. The hook is
// observability only; it is not part of the data contract.
func WithCompletionHook(fn func(model.SeriesID, error)) Option {
	return func(o *Orchestrator) {
		o.onComplete = fn
	}
}

// New creates an orchestrator running at most maxConcurrency fetches at a
// time. Values below 1 fall back to DefaultMaxConcurrency.
func New(maxConcurrency int, opts ...Option) *Orchestrator {
	if maxConcurrency < 1 {
		maxConcurrency = DefaultMaxConcurrency
	}
	o := &Orchestrator{
		maxConcurrency: maxConcurrency,
		log:            logger.GetLogger(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// FetchAll dispatches every task and blocks until all have completed. The
// returned map holds one entry per series id regardless of completion order.
// When every task fails it returns the map of errors together with
// ErrAllFetchesFailed.
func (o *Orchestrator) FetchAll(ctx context.Context, tasks []Task) (map[model.SeriesID]model.FetchResult, error) {
	results := make(map[model.SeriesID]model.FetchResult, len(tasks))
	if len(tasks) == 0 {
		return results, nil
	}

	log := o.log.WithComponent("fetcher")
	log.WithFields(logger.Fields{
		"tasks":           len(tasks),
		"max_concurrency": o.maxConcurrency,
	}).Info("starting fetch run")

	var (
		mu  sync.Mutex
		wg  sync.WaitGroup
		sem = make(chan struct{}, o.maxConcurrency)
	)

	for _, task := range tasks {
		wg.Add(1)
		go func(t Task) {
			defer wg.Done()

			sem <- struct{}{}
			defer func() { <-sem }()

			series, err := o.runTask(ctx, t)

			mu.Lock()
			if err != nil {
				results[t.ID] = model.FetchResult{Err: err}
			} else {
				results[t.ID] = model.FetchResult{Series: series}
			}
			mu.Unlock()

			o.emitCompletion(t, err)
		}(task)
	}

	wg.Wait()

	failed := 0
	for _, r := range results {
		if !r.Ok() {
			failed++
		}
	}
	if failed == len(tasks) {
		log.WithFields(logger.Fields{"tasks": len(tasks)}).Warn("every fetch task failed")
		return results, ErrAllFetchesFailed
	}

	log.WithFields(logger.Fields{
		"tasks":   len(tasks),
		"fetched": len(tasks) - failed,
		"failed":  failed,
	}).Info("fetch run complete")

	return results, nil
}

func (o *Orchestrator) runTask(ctx context.Context, t Task) (model.RawSeries, error) {
	log := o.log.WithComponent("fetcher").WithFields(logger.Fields{
		"series":   t.ID.Name,
		"symbol":   t.ID.Symbol,
		"provider": t.Source.Name(),
	})

	start := time.Now()
	series, err := t.Source.Fetch(ctx, t.ID, t.Query)
	duration := time.Since(start)

	if err != nil {
		log.WithError(err).Warn("fetch failed")
		return model.RawSeries{}, err
	}

	logger.LogPerformanceEntry(log, "fetcher", "fetch_series", duration, logger.Fields{
		"points": len(series.Points),
	})
	return series, nil
}

// emitCompletion logs one completion event per task, success or failure,
// identity only, and invokes the hook when registered.
func (o *Orchestrator) emitCompletion(t Task, err error) {
	entry := o.log.WithComponent("fetcher").WithFields(logger.Fields{
		"series":   t.ID.Name,
		"provider": t.Source.Name(),
	})
	if err != nil {
		logger.IncrementFetchFailed()
		entry.WithFields(logger.Fields{"status": "failed"}).Info("task complete")
	} else {
		logger.IncrementFetchOK()
		entry.WithFields(logger.Fields{"status": "ok"}).Info("task complete")
	}

	if o.onComplete != nil {
		o.onComplete(t.ID, err)
	}
}

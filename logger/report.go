package logger

import (
	"context"
	"runtime"
	"sync/atomic"
	"time"
)

// Run-wide counters. Components increment these as work completes; the
// report dumps them in one structured line so a run can be summarised from
// the log alone.
var (
	fetchesOK        int64
	fetchesFailed    int64
	fetchesEmpty     int64
	seriesNormalized int64
	snapshotsWritten int64
	rowsWritten      int64
)

func IncrementFetchOK()         { atomic.AddInt64(&fetchesOK, 1) }
func IncrementFetchFailed()     { atomic.AddInt64(&fetchesFailed, 1) }
func IncrementFetchEmpty()      { atomic.AddInt64(&fetchesEmpty, 1) }
func IncrementNormalized()      { atomic.AddInt64(&seriesNormalized, 1) }
func IncrementSnapshotWritten() { atomic.AddInt64(&snapshotsWritten, 1) }
func AddRowsWritten(n int)      { atomic.AddInt64(&rowsWritten, int64(n)) }

// StartReport begins periodic logging of run counters until the context is
// cancelled. Intended for long-lived invocations; one-shot runs call
// LogReport directly at the end.
func StartReport(ctx context.Context, log *Log, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		for {
			select {
			case <-ctx.Done():
				ticker.Stop()
				return
			case <-ticker.C:
				LogReport(log)
			}
		}
	}()
}

// LogReport emits the current counter values as a single report entry.
func LogReport(log *Log) {
	log.WithComponent("report").WithFields(Fields{
		"fetches_ok":        atomic.LoadInt64(&fetchesOK),
		"fetches_failed":    atomic.LoadInt64(&fetchesFailed),
		"fetches_empty":     atomic.LoadInt64(&fetchesEmpty),
		"series_normalized": atomic.LoadInt64(&seriesNormalized),
		"snapshots_written": atomic.LoadInt64(&snapshotsWritten),
		"rows_written":      atomic.LoadInt64(&rowsWritten),
		"goroutines":        runtime.NumGoroutine(),
	}).Info("run report")
}

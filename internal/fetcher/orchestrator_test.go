package fetcher

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"fintrac/internal/model"
)

// fakeSource returns canned results per symbol and tracks in-flight fetches.
type fakeSource struct {
	name    string
	fetch   func(ctx context.Context, id model.SeriesID, q model.Query) (model.RawSeries, error)
	inUse   int64
	maxSeen int64
	mu      sync.Mutex
}

func (f *fakeSource) Name() string { return f.name }

func (f *fakeSource) Fetch(ctx context.Context, id model.SeriesID, q model.Query) (model.RawSeries, error) {
	cur := atomic.AddInt64(&f.inUse, 1)
	f.mu.Lock()
	if cur > f.maxSeen {
		f.maxSeen = cur
	}
	f.mu.Unlock()
	defer atomic.AddInt64(&f.inUse, -1)

	return f.fetch(ctx, id, q)
}

func seriesID(s string) model.SeriesID {
	return model.SeriesID{Symbol: s, Name: s}
}

func oneTask(id string, src Source) Task {
	return Task{ID: seriesID(id), Source: src, Query: model.Query{Symbol: id}}
}

func TestFetchAllIsolatesFailures(t *testing.T) {
	ok := &fakeSource{
		name: "ok",
		fetch: func(ctx context.Context, id model.SeriesID, q model.Query) (model.RawSeries, error) {
			return model.RawSeries{
				ID: id,
				Points: []model.RawPoint{
					{Timestamp: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), Value: model.Float64(1)},
				},
			}, nil
		},
	}
	netErr := model.NewFetchError(model.FetchNetwork, "broken", errors.New("connection refused"))
	bad := &fakeSource{
		name: "broken",
		fetch: func(ctx context.Context, id model.SeriesID, q model.Query) (model.RawSeries, error) {
			return model.RawSeries{}, netErr
		},
	}

	tasks := []Task{oneTask("S1", ok), oneTask("S2", bad), oneTask("S3", ok)}
	results, err := New(4).FetchAll(context.Background(), tasks)
	if err != nil {
		t.Fatalf("FetchAll returned error despite partial success: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}

	if r := results[seriesID("S1")]; !r.Ok() || len(r.Series.Points) != 1 {
		t.Errorf("S1 should have succeeded: %+v", r)
	}
	if r := results[seriesID("S3")]; !r.Ok() {
		t.Errorf("S3 should have succeeded: %+v", r)
	}

	r := results[seriesID("S2")]
	if r.Ok() {
		t.Fatal("S2 should have failed")
	}
	if kind, ok := model.FetchKind(r.Err); !ok || kind != model.FetchNetwork {
		t.Errorf("expected network classification, got %v (%v)", kind, r.Err)
	}
}

func TestFetchAllBoundsConcurrency(t *testing.T) {
	release := make(chan struct{})
	src := &fakeSource{
		name: "gated",
		fetch: func(ctx context.Context, id model.SeriesID, q model.Query) (model.RawSeries, error) {
			<-release
			return model.RawSeries{ID: id}, nil
		},
	}

	tasks := make([]Task, 5)
	for i, s := range []string{"A", "B", "C", "D", "E"} {
		tasks[i] = oneTask(s, src)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		if _, err := New(2).FetchAll(context.Background(), tasks); err != nil {
			t.Errorf("FetchAll failed: %v", err)
		}
	}()

	// Give the pool time to admit as many tasks as it ever will.
	time.Sleep(100 * time.Millisecond)
	close(release)
	<-done

	src.mu.Lock()
	maxSeen := src.maxSeen
	src.mu.Unlock()
	if maxSeen > 2 {
		t.Errorf("concurrency bound violated: saw %d in flight", maxSeen)
	}
	if maxSeen == 0 {
		t.Error("no fetch ever ran")
	}
}

func TestFetchAllAllFailed(t *testing.T) {
	bad := &fakeSource{
		name: "broken",
		fetch: func(ctx context.Context, id model.SeriesID, q model.Query) (model.RawSeries, error) {
			return model.RawSeries{}, model.NewFetchError(model.FetchNotFound, "broken", nil)
		},
	}

	tasks := []Task{oneTask("S1", bad), oneTask("S2", bad)}
	results, err := New(2).FetchAll(context.Background(), tasks)
	if !errors.Is(err, ErrAllFetchesFailed) {
		t.Fatalf("expected ErrAllFetchesFailed, got %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("result map must still carry per-series errors, got %d entries", len(results))
	}
	for id, r := range results {
		if r.Ok() {
			t.Errorf("%s unexpectedly succeeded", id)
		}
	}
}

func TestFetchAllNoTasks(t *testing.T) {
	results, err := New(2).FetchAll(context.Background(), nil)
	if err != nil {
		t.Fatalf("FetchAll failed on empty input: %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("expected empty result map, got %d entries", len(results))
	}
}

func TestCompletionHook(t *testing.T) {
	ok := &fakeSource{
		name: "ok",
		fetch: func(ctx context.Context, id model.SeriesID, q model.Query) (model.RawSeries, error) {
			return model.RawSeries{ID: id}, nil
		},
	}
	bad := &fakeSource{
		name: "broken",
		fetch: func(ctx context.Context, id model.SeriesID, q model.Query) (model.RawSeries, error) {
			return model.RawSeries{}, model.NewFetchError(model.FetchNetwork, "broken", nil)
		},
	}

	var mu sync.Mutex
	outcomes := make(map[model.SeriesID]error)
	orch := New(2, WithCompletionHook(func(id model.SeriesID, err error) {
		mu.Lock()
		outcomes[id] = err
		mu.Unlock()
	}))

	tasks := []Task{oneTask("S1", ok), oneTask("S2", bad)}
	if _, err := orch.FetchAll(context.Background(), tasks); err != nil {
		t.Fatalf("FetchAll failed: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(outcomes) != 2 {
		t.Fatalf("expected 2 hook invocations, got %d", len(outcomes))
	}
	if outcomes[seriesID("S1")] != nil {
		t.Errorf("hook reported error for S1: %v", outcomes[seriesID("S1")])
	}
	if outcomes[seriesID("S2")] == nil {
		t.Error("hook missed S2 failure")
	}
}

func TestNewFallsBackToDefault(t *testing.T) {
	if o := New(0); o.maxConcurrency != DefaultMaxConcurrency {
		t.Errorf("expected default %d, got %d", DefaultMaxConcurrency, o.maxConcurrency)
	}
	if o := New(-3); o.maxConcurrency != DefaultMaxConcurrency {
		t.Errorf("expected default %d, got %d", DefaultMaxConcurrency, o.maxConcurrency)
	}
}

package registry

import (
	"context"
	"errors"
	"testing"
	"time"

	"fintrac/internal/fetcher"
	"fintrac/internal/model"
)

type stubSource struct{ name string }

func (s *stubSource) Name() string { return s.name }

func (s *stubSource) Fetch(ctx context.Context, id model.SeriesID, q model.Query) (model.RawSeries, error) {
	return model.RawSeries{ID: id}, nil
}

func testRegistry() *Registry {
	return New(map[string]fetcher.Source{
		"alpha": &stubSource{name: "alpha"},
		"beta":  &stubSource{name: "beta"},
	})
}

func TestResolve(t *testing.T) {
	start := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC)

	entries := []Entry{
		{ID: model.SeriesID{Symbol: "AAA", Name: "First"}, Provider: "alpha", Start: start, End: end},
		{ID: model.SeriesID{Symbol: "BBB", Name: "Second"}, Provider: "beta"},
	}

	tasks, err := testRegistry().Resolve(entries)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if len(tasks) != 2 {
		t.Fatalf("expected 2 tasks, got %d", len(tasks))
	}
	if tasks[0].Source.Name() != "alpha" || tasks[1].Source.Name() != "beta" {
		t.Errorf("tasks bound to wrong sources: %s, %s", tasks[0].Source.Name(), tasks[1].Source.Name())
	}
	if tasks[0].Query.Symbol != "AAA" || !tasks[0].Query.Start.Equal(start) || !tasks[0].Query.End.Equal(end) {
		t.Errorf("unexpected query: %+v", tasks[0].Query)
	}
	if !tasks[1].Query.Start.IsZero() {
		t.Errorf("expected zero start for unwindowed entry, got %v", tasks[1].Query.Start)
	}
}

func TestResolveDuplicateSymbol(t *testing.T) {
	entries := []Entry{
		{ID: model.SeriesID{Symbol: "AAA", Name: "First"}, Provider: "alpha"},
		{ID: model.SeriesID{Symbol: "AAA", Name: "Other"}, Provider: "beta"},
	}
	if _, err := testRegistry().Resolve(entries); !errors.Is(err, ErrDuplicateSeriesID) {
		t.Fatalf("expected ErrDuplicateSeriesID, got %v", err)
	}
}

func TestResolveDuplicateName(t *testing.T) {
	entries := []Entry{
		{ID: model.SeriesID{Symbol: "AAA", Name: "Same"}, Provider: "alpha"},
		{ID: model.SeriesID{Symbol: "BBB", Name: "Same"}, Provider: "beta"},
	}
	if _, err := testRegistry().Resolve(entries); !errors.Is(err, ErrDuplicateSeriesID) {
		t.Fatalf("expected ErrDuplicateSeriesID, got %v", err)
	}
}

func TestResolveUnknownProvider(t *testing.T) {
	entries := []Entry{
		{ID: model.SeriesID{Symbol: "AAA", Name: "First"}, Provider: "gamma"},
	}
	if _, err := testRegistry().Resolve(entries); !errors.Is(err, ErrUnknownProvider) {
		t.Fatalf("expected ErrUnknownProvider, got %v", err)
	}
}

func TestResolveEmpty(t *testing.T) {
	tasks, err := testRegistry().Resolve(nil)
	if err != nil {
		t.Fatalf("Resolve failed on empty input: %v", err)
	}
	if len(tasks) != 0 {
		t.Fatalf("expected no tasks, got %d", len(tasks))
	}
}

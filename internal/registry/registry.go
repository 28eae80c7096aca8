// Package registry resolves the configured series list into fetch tasks. It
// is pure configuration: no I/O happens here, only the binding of a series
// identity to the provider and query parameters that produce it.
package registry

import (
	"errors"
	"fmt"
	"time"

	"fintrac/internal/fetcher"
	"fintrac/internal/model"
)

var (
	ErrDuplicateSeriesID = errors.New("duplicate series id")
	ErrUnknownProvider   = errors.New("unknown provider")
)

// Entry is one requested series: which provider serves it and under what
// symbol, plus the observation window.
type Entry struct {
	ID       model.SeriesID
	Provider string
	Start    time.Time
	End      time.Time
}

// Registry maps provider names to their source implementations.
type Registry struct {
	sources map[string]fetcher.Source
}

// New builds a registry over the given named sources.
func New(sources map[string]fetcher.Source) *Registry {
	return &Registry{sources: sources}
}

// Resolve turns requested entries into fetch tasks. It fails when a series
// identifier repeats within the request or an entry names a provider that
// was never registered.
func (r *Registry) Resolve(entries []Entry) ([]fetcher.Task, error) {
	tasks := make([]fetcher.Task, 0, len(entries))
	seenSymbols := make(map[string]struct{}, len(entries))
	seenNames := make(map[string]struct{}, len(entries))

	for _, e := range entries {
		if _, dup := seenSymbols[e.ID.Symbol]; dup {
			return nil, fmt.Errorf("%w: symbol %q", ErrDuplicateSeriesID, e.ID.Symbol)
		}
		if _, dup := seenNames[e.ID.Name]; dup {
			return nil, fmt.Errorf("%w: name %q", ErrDuplicateSeriesID, e.ID.Name)
		}
		seenSymbols[e.ID.Symbol] = struct{}{}
		seenNames[e.ID.Name] = struct{}{}

		src, ok := r.sources[e.Provider]
		if !ok {
			return nil, fmt.Errorf("%w: %q for series %s", ErrUnknownProvider, e.Provider, e.ID)
		}

		tasks = append(tasks, fetcher.Task{
			ID:     e.ID,
			Source: src,
			Query: model.Query{
				Symbol: e.ID.Symbol,
				Start:  e.Start,
				End:    e.End,
			},
		})
	}

	return tasks, nil
}

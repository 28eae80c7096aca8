// Package sink persists the aligned table. Every sink implements
// full-replacement semantics: a reader observes either the previous snapshot
// intact or the new one fully written, never a partial state.
package sink

import (
	"context"
	"errors"

	"fintrac/internal/model"
)

// ErrWriteFailed wraps any failure while replacing a snapshot. The prior
// snapshot is preserved untouched when it occurs.
var ErrWriteFailed = errors.New("snapshot write failed")

// Sink atomically replaces the named persisted table with the given one.
type Sink interface {
	ReplaceSnapshot(ctx context.Context, name string, table model.AlignedTable) error
}

package sink

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"

	_ "modernc.org/sqlite"

	"fintrac/internal/model"
	"fintrac/logger"
)

// SQLiteSink writes snapshots into a SQLite database, one table per snapshot
// name with a date column plus one REAL column per series. The drop, create
// and inserts run inside a single transaction, so the replacement is atomic
// from any reader's point of view.
type SQLiteSink struct {
	db  *sql.DB
	mu  sync.Mutex
	log *logger.Log
}

// NewSQLiteSink opens (or creates) the SQLite database at path.
func NewSQLiteSink(path string) (*SQLiteSink, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// WAL mode so downstream readers are not blocked during replacement.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	log := logger.GetLogger()
	log.WithComponent("sqlite_sink").WithFields(logger.Fields{"path": path}).Info("sqlite sink opened")

	return &SQLiteSink{db: db, log: log}, nil
}

// ReplaceSnapshot swaps the named table for the given aligned table.
func (s *SQLiteSink) ReplaceSnapshot(ctx context.Context, name string, table model.AlignedTable) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	log := s.log.WithComponent("sqlite_sink").WithFields(logger.Fields{
		"table":   name,
		"rows":    table.Rows(),
		"columns": len(table.Columns),
	})

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin: %v", ErrWriteFailed, err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, fmt.Sprintf("DROP TABLE IF EXISTS %s", quoteIdent(name))); err != nil {
		return fmt.Errorf("%w: drop table: %v", ErrWriteFailed, err)
	}

	cols := make([]string, 0, len(table.Columns)+1)
	cols = append(cols, `"date" TEXT NOT NULL`)
	for _, c := range table.Columns {
		cols = append(cols, fmt.Sprintf("%s REAL", quoteIdent(c.Name)))
	}
	createStmt := fmt.Sprintf("CREATE TABLE %s (%s)", quoteIdent(name), strings.Join(cols, ", "))
	if _, err := tx.ExecContext(ctx, createStmt); err != nil {
		return fmt.Errorf("%w: create table: %v", ErrWriteFailed, err)
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(table.Columns)+1), ",")
	insertStmt, err := tx.PrepareContext(ctx,
		fmt.Sprintf("INSERT INTO %s VALUES (%s)", quoteIdent(name), placeholders))
	if err != nil {
		return fmt.Errorf("%w: prepare insert: %v", ErrWriteFailed, err)
	}
	defer insertStmt.Close()

	for i, ts := range table.Timestamps {
		args := make([]interface{}, 0, len(table.Columns)+1)
		args = append(args, ts.UTC().Format("2006-01-02"))
		for _, v := range table.Values[i] {
			if v == nil {
				args = append(args, nil)
			} else {
				args = append(args, *v)
			}
		}
		if _, err := insertStmt.ExecContext(ctx, args...); err != nil {
			return fmt.Errorf("%w: insert row %d: %v", ErrWriteFailed, i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %v", ErrWriteFailed, err)
	}

	logger.IncrementSnapshotWritten()
	logger.AddRowsWritten(table.Rows())
	log.Info("snapshot replaced")

	return nil
}

// Close releases the underlying database handle.
func (s *SQLiteSink) Close() error {
	return s.db.Close()
}

// quoteIdent quotes a SQLite identifier, doubling any embedded quote.
func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

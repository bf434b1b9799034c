// Package store persists canonical daily quote rows and the fetch-run
// audit trail. Two backends share one interface: SQLite for local use
// and Postgres for a shared warehouse.
package store

import (
	"context"
	"time"

	"github.com/sells-group/twmarket-cli/internal/market"
)

// RunStatus is the terminal (or in-flight) state of one fetch run.
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusSucceeded RunStatus = "succeeded"
	RunStatusNoData    RunStatus = "no_data"
	RunStatusFailed    RunStatus = "failed"
)

// Run is one recorded fetch run: a single date fetched across sources.
type Run struct {
	ID         string
	Date       string
	Status     RunStatus
	Rows       int64
	Error      string
	StartedAt  time.Time
	FinishedAt *time.Time
}

// Store defines the persistence interface for the quote pipeline.
type Store interface {
	// ReplaceDay replaces every quote row for the date with the given
	// rows, atomically, and returns the number of rows written. Re-running
	// a fetch for a date never duplicates it.
	ReplaceDay(ctx context.Context, date string, rows []market.Row) (int64, error)

	// UpsertStocks refreshes the security dimension (id, name) from the
	// rows of a fetch.
	UpsertStocks(ctx context.Context, rows []market.Row) (int64, error)

	// Runs
	CreateRun(ctx context.Context, date string) (*Run, error)
	FinishRun(ctx context.Context, runID string, status RunStatus, rows int64, runErr error) error
	ListRuns(ctx context.Context, limit int) ([]Run, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// Package state persists the timestamp of the last successful pipeline run
// and a short history of runs.
package state

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/whassan99/Notion-AI-CRM-Agents/internal/config"
)

// Storage drivers.
const (
	DriverFile     = "file"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

const (
	lastRunKey = "last_successful_run"

	// DefaultListLimit bounds ListRuns when no limit is given.
	DefaultListLimit = 20
	// maxFileRuns caps the history kept by the file driver.
	maxFileRuns = 50

	defaultFilePath   = "pipeline_state.json"
	defaultSQLitePath = "pipeline_state.db"
)

// Run is one pipeline invocation in the run history.
type Run struct {
	ID          string    `json:"run_id"`
	StartedAt   time.Time `json:"started_at"`
	FinishedAt  time.Time `json:"finished_at"`
	Succeeded   int       `json:"succeeded"`
	Failed      int       `json:"failed"`
	Skipped     int       `json:"skipped"`
	DryRun      bool      `json:"dry_run"`
	Interrupted bool      `json:"interrupted"`
	Errors      []string  `json:"errors,omitempty"`
}

// Duration is how long the run took.
func (r Run) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// Store is the persistence interface for run state.
type Store interface {
	// LastSuccessfulRun returns the last successful run time; ok is false
	// when no run has completed yet.
	LastSuccessfulRun(ctx context.Context) (t time.Time, ok bool, err error)
	SetLastSuccessfulRun(ctx context.Context, t time.Time) error

	RecordRun(ctx context.Context, run Run) error
	// ListRuns returns the most recent runs, newest first.
	ListRuns(ctx context.Context, limit int) ([]Run, error)

	Migrate(ctx context.Context) error
	Close() error
}

// Open creates and migrates the store selected by cfg.Driver.
func Open(ctx context.Context, cfg config.StateConfig) (Store, error) {
	var (
		st  Store
		err error
	)
	switch cfg.Driver {
	case "", DriverFile:
		path := cfg.Path
		if path == "" {
			path = defaultFilePath
		}
		st = NewFile(path)
	case DriverSQLite:
		path := cfg.Path
		if path == "" || path == defaultFilePath {
			path = defaultSQLitePath
		}
		st, err = NewSQLite(path)
	case DriverPostgres:
		if cfg.DatabaseURL == "" {
			return nil, eris.New("state: postgres driver requires state.database_url")
		}
		st, err = NewPostgres(ctx, cfg.DatabaseURL)
	default:
		return nil, eris.Errorf("state: unknown driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, err
	}

	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, err
	}
	return st, nil
}

func listLimit(limit int) int {
	if limit <= 0 {
		return DefaultListLimit
	}
	return limit
}

// Package store persists triangulation runs and the anchor table backing
// the gazetteer. Two backends implement the same interface: SQLite for
// single-operator use and Postgres for shared deployments.
package store

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/facility-atlas/internal/config"
	"github.com/sells-group/facility-atlas/internal/model"
)

// ErrRunNotFound is returned when a run id matches nothing.
var ErrRunNotFound = eris.New("store: run not found")

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Status model.RunStatus `json:"status,omitempty"`
	Limit  int             `json:"limit,omitempty"`
	Offset int             `json:"offset,omitempty"`
}

// Store defines the persistence interface for triangulation runs and
// gazetteer anchors.
type Store interface {
	// Runs
	CreateRun(ctx context.Context, input model.RunInput) (*model.Run, error)
	UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error
	CompleteRun(ctx context.Context, runID string, report *model.Report) error
	FailRun(ctx context.Context, runID string, cause error) error
	GetRun(ctx context.Context, runID string) (*model.Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error)

	// Anchors
	ReplaceAnchors(ctx context.Context, anchors []model.Anchor) (int64, error)
	MergeAnchors(ctx context.Context, anchors []model.Anchor) (int64, error)
	ListAnchors(ctx context.Context) ([]model.Anchor, error)
	CountAnchors(ctx context.Context) (int, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// Open builds the configured backend. SQLite defaults its path when no
// database_url is set; Postgres requires one.
func Open(ctx context.Context, cfg config.StoreConfig) (Store, error) {
	switch cfg.Driver {
	case "postgres":
		if cfg.DatabaseURL == "" {
			return nil, eris.New("store: postgres driver requires store.database_url")
		}
		return NewPostgres(ctx, cfg.DatabaseURL, &PoolConfig{MaxConns: cfg.MaxConns, MinConns: cfg.MinConns})
	case "sqlite":
		dsn := cfg.DatabaseURL
		if dsn == "" {
			dsn = "facility-atlas.db"
		}
		return NewSQLite(dsn)
	default:
		return nil, eris.Errorf("store: unknown driver %q", cfg.Driver)
	}
}

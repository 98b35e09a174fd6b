// Package store persists analysis history and field research entries.
package store

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/jooke-shop/sourcing-cli/internal/config"
	"github.com/jooke-shop/sourcing-cli/internal/model"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = eris.New("store: not found")

// AnalysisFilter specifies criteria for listing analysis records.
type AnalysisFilter struct {
	Since    time.Time      `json:"since,omitempty"`
	Decision model.Decision `json:"decision,omitempty"`
	Limit    int            `json:"limit,omitempty"`
}

// Store defines the persistence interface for the sourcing workflow.
type Store interface {
	// Analysis history
	SaveAnalysis(ctx context.Context, rec *model.AnalysisRecord) (string, error)
	GetAnalysis(ctx context.Context, id string) (*model.AnalysisRecord, error)
	ListAnalyses(ctx context.Context, filter AnalysisFilter) ([]model.AnalysisRecord, error)

	// Field research (append-only)
	AddResearch(ctx context.Context, entry *model.FieldResearchEntry) (int64, error)
	ListResearch(ctx context.Context, since time.Time) ([]model.FieldResearchEntry, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// Open creates the store selected by cfg.Driver and runs migrations.
func Open(ctx context.Context, cfg config.StoreConfig) (Store, error) {
	var (
		st  Store
		err error
	)
	switch cfg.Driver {
	case "", "sqlite":
		st, err = NewSQLite(cfg.DatabaseURL)
	case "postgres":
		st, err = NewPostgres(ctx, cfg.DatabaseURL, nil)
	default:
		return nil, eris.Errorf("store: unknown driver %q", cfg.Driver)
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

const defaultListLimit = 500

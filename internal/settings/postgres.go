package settings

import (
	"context"

	"github.com/mindmate-hq/routellm/internal/db"
)

// settingsRows is the slice of db.Store the postgres backend uses
type settingsRows interface {
	GetOptimizationSettings(ctx context.Context, key string) (*db.OptimizationSettings, error)
	UpsertOptimizationSettings(ctx context.Context, row *db.OptimizationSettings) error
}

// PostgresBackend keeps the record in the optimization_settings table
type PostgresBackend struct {
	rows settingsRows
	key  string
}

// NewPostgresBackend creates a backend for the row keyed by key
func NewPostgresBackend(store *db.Store, key string) *PostgresBackend {
	return newPostgresBackend(store, key)
}

func newPostgresBackend(rows settingsRows, key string) *PostgresBackend {
	if key == "" {
		key = "default"
	}
	return &PostgresBackend{rows: rows, key: key}
}

func (p *PostgresBackend) Load(ctx context.Context) (OptimizationConfig, bool, error) {
	row, err := p.rows.GetOptimizationSettings(ctx, p.key)
	if err != nil {
		return OptimizationConfig{}, false, err
	}
	if row == nil {
		return OptimizationConfig{}, false, nil
	}

	return OptimizationConfig{
		OptimizationLevel: OptimizationLevel(row.OptimizationLevel),
		FallbackToLocal:   row.FallbackToLocal,
	}, true, nil
}

func (p *PostgresBackend) Save(ctx context.Context, cfg OptimizationConfig) error {
	return p.rows.UpsertOptimizationSettings(ctx, &db.OptimizationSettings{
		UserKey:           p.key,
		OptimizationLevel: string(cfg.OptimizationLevel),
		FallbackToLocal:   cfg.FallbackToLocal,
	})
}

package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mindmate-hq/routellm/internal/llm"
)

// Store provides database operations
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a new store
func NewStore(db *DB) *Store {
	return &Store{pool: db.Pool()}
}

// Ping verifies database connectivity
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// OptimizationSettings is one row of optimization_settings
type OptimizationSettings struct {
	UserKey           string    `json:"user_key"`
	OptimizationLevel string    `json:"optimization_level"`
	FallbackToLocal   bool      `json:"fallback_to_local"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// GetOptimizationSettings returns the settings row for key, or nil if none exists
func (s *Store) GetOptimizationSettings(ctx context.Context, key string) (*OptimizationSettings, error) {
	row := &OptimizationSettings{}
	err := s.pool.QueryRow(ctx, `
		SELECT user_key, optimization_level, fallback_to_local, updated_at
		FROM optimization_settings WHERE user_key = $1
	`, key).Scan(&row.UserKey, &row.OptimizationLevel, &row.FallbackToLocal, &row.UpdatedAt)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get optimization settings: %w", err)
	}

	return row, nil
}

// UpsertOptimizationSettings overwrites the settings row in place
func (s *Store) UpsertOptimizationSettings(ctx context.Context, row *OptimizationSettings) error {
	row.UpdatedAt = time.Now()

	_, err := s.pool.Exec(ctx, `
		INSERT INTO optimization_settings (user_key, optimization_level, fallback_to_local, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_key) DO UPDATE
		SET optimization_level = EXCLUDED.optimization_level,
			fallback_to_local = EXCLUDED.fallback_to_local,
			updated_at = EXCLUDED.updated_at
	`, row.UserKey, row.OptimizationLevel, row.FallbackToLocal, row.UpdatedAt)

	if err != nil {
		return fmt.Errorf("failed to save optimization settings: %w", err)
	}

	return nil
}

// InsertUsageRecord appends a ledger entry for a successful routed request.
// Inserting a record whose ID already exists is a no-op, so redelivered
// events are stored once.
func (s *Store) InsertUsageRecord(ctx context.Context, rec llm.UsageRecord) error {
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now()
	}
	attempted := rec.ProvidersAttempted
	if attempted == nil {
		attempted = []string{}
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO usage_records (id, provider, model, feature, prompt_tokens, completion_tokens,
			total_tokens, cost_usd, providers_attempted, duration_ms, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO NOTHING
	`, rec.ID, string(rec.Provider), rec.Model, rec.Feature, rec.PromptTokens, rec.CompletionTokens,
		rec.TotalTokens, rec.Cost, attempted, rec.Duration, rec.Timestamp)

	if err != nil {
		return fmt.Errorf("failed to insert usage record: %w", err)
	}

	return nil
}

// ListUsageRecords returns up to limit records, most recent first
func (s *Store) ListUsageRecords(ctx context.Context, limit int) ([]llm.UsageRecord, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.pool.Query(ctx, `
		SELECT id, provider, model, feature, prompt_tokens, completion_tokens,
			total_tokens, cost_usd, providers_attempted, duration_ms, created_at
		FROM usage_records
		ORDER BY created_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list usage records: %w", err)
	}
	defer rows.Close()

	var records []llm.UsageRecord
	for rows.Next() {
		var (
			rec      llm.UsageRecord
			provider string
		)
		if err := rows.Scan(&rec.ID, &provider, &rec.Model, &rec.Feature, &rec.PromptTokens, &rec.CompletionTokens,
			&rec.TotalTokens, &rec.Cost, &rec.ProvidersAttempted, &rec.Duration, &rec.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan usage record: %w", err)
		}
		rec.Provider = llm.Provider(provider)
		records = append(records, rec)
	}

	return records, rows.Err()
}

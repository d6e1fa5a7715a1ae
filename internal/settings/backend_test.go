package settings

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/mindmate-hq/routellm/internal/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileBackend_MissingFile(t *testing.T) {
	backend := NewFileBackend(filepath.Join(t.TempDir(), "nested", "settings.yaml"), "")

	_, found, err := backend.Load(context.Background())
	require.NoError(t, err)
	assert.False(t, found)
}

func TestFileBackend_SaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "settings.yaml")
	ctx := context.Background()

	alice := NewFileBackend(path, "alice")
	bob := NewFileBackend(path, "bob")

	require.NoError(t, alice.Save(ctx, OptimizationConfig{OptimizationLevel: LevelAggressive, FallbackToLocal: false}))
	require.NoError(t, bob.Save(ctx, OptimizationConfig{OptimizationLevel: LevelQualityFirst, FallbackToLocal: true}))

	cfg, found, err := alice.Load(ctx)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, LevelAggressive, cfg.OptimizationLevel)
	assert.False(t, cfg.FallbackToLocal)

	cfg, found, err = bob.Load(ctx)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, LevelQualityFirst, cfg.OptimizationLevel)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "optimization_level: aggressive")
	assert.Contains(t, string(data), "fallback_to_local: true")

	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err), "temp file should be renamed away")
}

func TestFileBackend_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	require.NoError(t, os.WriteFile(path, []byte("{{{ not yaml"), 0o600))

	backend := NewFileBackend(path, "default")
	_, _, err := backend.Load(context.Background())
	assert.Error(t, err)

	// A store over a corrupt file still serves defaults
	assert.Equal(t, DefaultConfig(), NewStore(backend).GetConfig(context.Background()))
}

func TestFileBackend_ThroughStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	ctx := context.Background()

	first := NewStore(NewFileBackend(path, "default"))
	require.NoError(t, first.SetOptimizationLevel(ctx, LevelAggressive))

	// A new process sees the persisted value
	second := NewStore(NewFileBackend(path, "default"))
	cfg := second.GetConfig(ctx)
	assert.Equal(t, LevelAggressive, cfg.OptimizationLevel)
	assert.True(t, cfg.FallbackToLocal)
}

// fakeRows stands in for db.Store
type fakeRows struct {
	rows map[string]db.OptimizationSettings
	err  error
}

func (f *fakeRows) GetOptimizationSettings(ctx context.Context, key string) (*db.OptimizationSettings, error) {
	if f.err != nil {
		return nil, f.err
	}
	row, ok := f.rows[key]
	if !ok {
		return nil, nil
	}
	return &row, nil
}

func (f *fakeRows) UpsertOptimizationSettings(ctx context.Context, row *db.OptimizationSettings) error {
	if f.err != nil {
		return f.err
	}
	f.rows[row.UserKey] = *row
	return nil
}

func TestPostgresBackend(t *testing.T) {
	rows := &fakeRows{rows: map[string]db.OptimizationSettings{}}
	backend := newPostgresBackend(rows, "")
	ctx := context.Background()

	_, found, err := backend.Load(ctx)
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, backend.Save(ctx, OptimizationConfig{OptimizationLevel: LevelQualityFirst, FallbackToLocal: true}))
	assert.Equal(t, "quality_first", rows.rows["default"].OptimizationLevel)

	cfg, found, err := backend.Load(ctx)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, OptimizationConfig{OptimizationLevel: LevelQualityFirst, FallbackToLocal: true}, cfg)
}

func TestPostgresBackend_Unavailable(t *testing.T) {
	rows := &fakeRows{err: errors.New("connection refused")}
	store := NewStore(newPostgresBackend(rows, "user-1"))

	assert.Equal(t, DefaultConfig(), store.GetConfig(context.Background()))
	assert.ErrorIs(t, store.SetFallbackToLocal(context.Background(), false), ErrConfigUnavailable)
}

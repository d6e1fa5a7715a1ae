package settings

import (
	"context"
	"sync"
)

// MemoryBackend keeps the record in process memory
type MemoryBackend struct {
	mu  sync.RWMutex
	cfg *OptimizationConfig
}

// NewMemoryBackend creates an empty in-memory backend
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{}
}

func (m *MemoryBackend) Load(ctx context.Context) (OptimizationConfig, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.cfg == nil {
		return OptimizationConfig{}, false, nil
	}
	return *m.cfg, true, nil
}

func (m *MemoryBackend) Save(ctx context.Context, cfg OptimizationConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.cfg = &cfg
	return nil
}

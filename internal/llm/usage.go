package llm

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// UsageRecord is the ledger entry for one successful routed request
type UsageRecord struct {
	ID                 uuid.UUID `json:"id"`
	Timestamp          time.Time `json:"timestamp"`
	Provider           Provider  `json:"provider"`
	Model              string    `json:"model"`
	Feature            string    `json:"feature,omitempty"`
	PromptTokens       int       `json:"prompt_tokens"`
	CompletionTokens   int       `json:"completion_tokens"`
	TotalTokens        int       `json:"total_tokens"`
	Cost               float64   `json:"cost_usd"`
	ProvidersAttempted []string  `json:"providers_attempted,omitempty"`
	Duration           float64   `json:"duration_ms"`
}

// UsageStats provides aggregate usage statistics
type UsageStats struct {
	TotalRequests    int64                `json:"total_requests"`
	TotalTokens      int64                `json:"total_tokens"`
	PromptTokens     int64                `json:"prompt_tokens"`
	CompletionTokens int64                `json:"completion_tokens"`
	TotalCost        float64              `json:"total_cost_usd"`
	AvgTokensPerReq  float64              `json:"avg_tokens_per_request"`
	CostByProvider   map[Provider]float64 `json:"cost_by_provider"`
	FallbackRequests int64                `json:"fallback_requests"`
}

// UsageTracker keeps running totals and a ring buffer of recent records
type UsageTracker struct {
	mu sync.RWMutex

	stats UsageStats

	records     []UsageRecord
	maxRecords  int
	recordIndex int
}

// UsageTrackerConfig configures the usage tracker
type UsageTrackerConfig struct {
	MaxRecords int // Max records to keep in memory
}

// NewUsageTracker creates a new usage tracker
func NewUsageTracker(cfg UsageTrackerConfig) *UsageTracker {
	if cfg.MaxRecords <= 0 {
		cfg.MaxRecords = 1000
	}

	return &UsageTracker{
		stats:      UsageStats{CostByProvider: make(map[Provider]float64)},
		records:    make([]UsageRecord, cfg.MaxRecords),
		maxRecords: cfg.MaxRecords,
	}
}

// Record stores a usage event and returns it with ID, timestamp and total filled in
func (t *UsageTracker) Record(record UsageRecord) UsageRecord {
	record.ID = uuid.New()
	record.Timestamp = time.Now()
	record.TotalTokens = record.PromptTokens + record.CompletionTokens
	if record.Cost < 0 {
		record.Cost = 0
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.stats.TotalRequests++
	t.stats.TotalTokens += int64(record.TotalTokens)
	t.stats.PromptTokens += int64(record.PromptTokens)
	t.stats.CompletionTokens += int64(record.CompletionTokens)
	t.stats.TotalCost += record.Cost
	t.stats.CostByProvider[record.Provider] += record.Cost
	if len(record.ProvidersAttempted) > 1 {
		t.stats.FallbackRequests++
	}

	t.records[t.recordIndex] = record
	t.recordIndex = (t.recordIndex + 1) % t.maxRecords

	log.Debug().
		Str("provider", string(record.Provider)).
		Str("model", record.Model).
		Int("prompt_tokens", record.PromptTokens).
		Int("completion_tokens", record.CompletionTokens).
		Float64("cost", record.Cost).
		Msg("recorded LLM usage")

	return record
}

// GetStats returns a copy of the running totals
func (t *UsageTracker) GetStats() UsageStats {
	t.mu.RLock()
	defer t.mu.RUnlock()

	stats := t.stats
	stats.CostByProvider = make(map[Provider]float64, len(t.stats.CostByProvider))
	for p, c := range t.stats.CostByProvider {
		stats.CostByProvider[p] = c
	}
	if stats.TotalRequests > 0 {
		stats.AvgTokensPerReq = float64(stats.TotalTokens) / float64(stats.TotalRequests)
	}
	return stats
}

// RecentRecords returns up to limit records, most recent first
func (t *UsageTracker) RecentRecords(limit int) []UsageRecord {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if limit > t.maxRecords {
		limit = t.maxRecords
	}
	if limit < 0 {
		limit = 0
	}

	result := make([]UsageRecord, 0, limit)

	idx := (t.recordIndex - 1 + t.maxRecords) % t.maxRecords
	for i := 0; i < limit; i++ {
		if t.records[idx].ID != uuid.Nil {
			result = append(result, t.records[idx])
		}
		idx = (idx - 1 + t.maxRecords) % t.maxRecords
	}

	return result
}

// ExportJSON exports usage records as JSON
func (t *UsageTracker) ExportJSON() ([]byte, error) {
	records := t.RecentRecords(t.maxRecords)
	return json.Marshal(records)
}

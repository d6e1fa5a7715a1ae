package nats

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/mindmate-hq/routellm/internal/llm"
)

type publisher interface {
	Publish(ctx context.Context, subject string, data []byte) (*jetstream.PubAck, error)
}

// UsagePublisher publishes ledger entries to the usage stream
type UsagePublisher struct {
	pub publisher
}

// NewUsagePublisher creates a publisher on an open client
func NewUsagePublisher(c *Client) *UsagePublisher {
	return &UsagePublisher{pub: c}
}

// RecordUsage publishes rec on the subject of its feature
func (p *UsagePublisher) RecordUsage(ctx context.Context, rec llm.UsageRecord) error {
	data, err := EncodeUsage(rec)
	if err != nil {
		return err
	}

	if _, err := p.pub.Publish(ctx, SubjectForFeature(rec.Feature), data); err != nil {
		return err
	}
	return nil
}

// EncodeUsage serializes a usage record for the stream
func EncodeUsage(rec llm.UsageRecord) ([]byte, error) {
	data, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("failed to encode usage record: %w", err)
	}
	return data, nil
}

// DecodeUsage parses a usage event. Events without a provider are rejected.
func DecodeUsage(data []byte) (llm.UsageRecord, error) {
	var rec llm.UsageRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return llm.UsageRecord{}, fmt.Errorf("failed to decode usage record: %w", err)
	}
	if rec.Provider == "" {
		return llm.UsageRecord{}, fmt.Errorf("usage record has no provider")
	}
	return rec, nil
}

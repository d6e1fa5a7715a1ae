package nats

import (
	"context"
	"strings"
	"time"
)

// Stream names
const (
	StreamUsage = "ROUTELLM_USAGE"
)

// Subject patterns for usage events
const (
	// SubjectUsagePrefix prefixes every usage subject; the feature tag follows
	SubjectUsagePrefix = "routellm.usage."

	// SubjectUsageAll matches all usage subjects
	SubjectUsageAll = SubjectUsagePrefix + ">"
)

// Consumer names
const (
	// ConsumerLedger persists usage events to Postgres
	ConsumerLedger = "usage-ledger"
)

// DefaultStreamConfig returns the stream configuration for usage events
func DefaultStreamConfig() StreamConfig {
	return StreamConfig{
		Name:        StreamUsage,
		Subjects:    []string{SubjectUsageAll},
		MaxMsgs:     1000000,
		MaxBytes:    1024 * 1024 * 500, // 500MB
		MaxAge:      30 * 24 * time.Hour,
		Replicas:    1,
		Description: "RouteLLM per-request usage events",
	}
}

// SetupStreams creates the usage stream and the ledger consumer
func (c *Client) SetupStreams(ctx context.Context) error {
	if _, err := c.CreateStream(ctx, DefaultStreamConfig()); err != nil {
		return err
	}

	if _, err := c.CreateConsumer(ctx, StreamUsage, ConsumerLedger, SubjectUsageAll); err != nil {
		return err
	}

	return nil
}

// SubjectForFeature returns the usage subject for a feature tag. Characters
// NATS treats as separators or wildcards are replaced.
func SubjectForFeature(feature string) string {
	feature = strings.TrimSpace(feature)
	if feature == "" {
		return SubjectUsagePrefix + "unknown"
	}
	return SubjectUsagePrefix + strings.NewReplacer(".", "_", "*", "_", ">", "_", " ", "_").Replace(feature)
}

package nats

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mindmate-hq/routellm/internal/llm"
)

type fakePublisher struct {
	subject string
	data    []byte
	err     error
}

func (f *fakePublisher) Publish(_ context.Context, subject string, data []byte) (*jetstream.PubAck, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.subject = subject
	f.data = data
	return &jetstream.PubAck{Stream: StreamUsage, Sequence: 1}, nil
}

func TestUsagePublisher_RecordUsage(t *testing.T) {
	pub := &fakePublisher{}
	p := &UsagePublisher{pub: pub}

	rec := llm.UsageRecord{
		ID:                 uuid.New(),
		Provider:           llm.ProviderOpenAI,
		Model:              "gpt-4o-mini",
		Feature:            "goal_planning",
		PromptTokens:       120,
		CompletionTokens:   80,
		TotalTokens:        200,
		Cost:               0.000066,
		ProvidersAttempted: []string{"gemini", "openai"},
	}

	require.NoError(t, p.RecordUsage(context.Background(), rec))
	assert.Equal(t, "routellm.usage.goal_planning", pub.subject)

	got, err := DecodeUsage(pub.data)
	require.NoError(t, err)
	assert.Equal(t, rec.ID, got.ID)
	assert.Equal(t, rec.Provider, got.Provider)
	assert.Equal(t, rec.ProvidersAttempted, got.ProvidersAttempted)
	assert.Equal(t, rec.Cost, got.Cost)
}

func TestUsagePublisher_PublishError(t *testing.T) {
	p := &UsagePublisher{pub: &fakePublisher{err: errors.New("no responders")}}

	err := p.RecordUsage(context.Background(), llm.UsageRecord{Provider: llm.ProviderLocal})
	assert.ErrorContains(t, err, "no responders")
}

func TestDecodeUsage_Invalid(t *testing.T) {
	_, err := DecodeUsage([]byte("not json"))
	assert.ErrorContains(t, err, "failed to decode usage record")

	_, err = DecodeUsage([]byte(`{"model":"gpt-4o"}`))
	assert.ErrorContains(t, err, "no provider")
}

// Package worker drains usage events from NATS JetStream into durable storage
package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog/log"

	"github.com/mindmate-hq/routellm/internal/llm"
	routenats "github.com/mindmate-hq/routellm/internal/nats"
)

// UsageStore persists ledger entries
type UsageStore interface {
	InsertUsageRecord(ctx context.Context, rec llm.UsageRecord) error
}

// fetcher is the part of jetstream.Consumer the worker uses
type fetcher interface {
	Fetch(batch int, opts ...jetstream.FetchOpt) (jetstream.MessageBatch, error)
}

type ackAction int

const (
	actionAck ackAction = iota
	actionNak
	actionTerm
)

// LedgerWorker stores every usage event it fetches. Undecodable events are
// terminated; events that fail to store are redelivered.
type LedgerWorker struct {
	workerID   string
	consumer   fetcher
	store      UsageStore
	batchSize  int
	pollPeriod time.Duration
}

// LedgerWorkerConfig configures a ledger worker
type LedgerWorkerConfig struct {
	WorkerID  string
	Consumer  jetstream.Consumer
	Store     UsageStore
	BatchSize int
}

// NewLedgerWorker creates a new ledger worker
func NewLedgerWorker(cfg LedgerWorkerConfig) *LedgerWorker {
	workerID := cfg.WorkerID
	if workerID == "" {
		workerID = fmt.Sprintf("ledger-%s", uuid.New().String()[:8])
	}
	batch := cfg.BatchSize
	if batch <= 0 {
		batch = 50
	}

	w := &LedgerWorker{
		workerID:   workerID,
		store:      cfg.Store,
		batchSize:  batch,
		pollPeriod: 5 * time.Second,
	}
	if cfg.Consumer != nil {
		w.consumer = cfg.Consumer
	}
	return w
}

// Name returns the worker's unique ID
func (w *LedgerWorker) Name() string {
	return w.workerID
}

// SetPollPeriod sets how long a fetch waits for events
func (w *LedgerWorker) SetPollPeriod(d time.Duration) {
	w.pollPeriod = d
}

// Run processes events until ctx is cancelled
func (w *LedgerWorker) Run(ctx context.Context) error {
	if w.consumer == nil || w.store == nil {
		return fmt.Errorf("ledger worker %s needs a consumer and a store", w.workerID)
	}

	logger := log.With().Str("worker_id", w.workerID).Logger()
	logger.Info().Msg("worker started")

	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("worker stopping")
			return nil
		default:
		}

		if err := w.processNext(ctx); err != nil {
			logger.Error().Err(err).Msg("error processing usage events")
			select {
			case <-ctx.Done():
			case <-time.After(w.pollPeriod):
			}
		}
	}
}

// processNext fetches one batch and settles every message in it
func (w *LedgerWorker) processNext(ctx context.Context) error {
	msgs, err := w.consumer.Fetch(w.batchSize, jetstream.FetchMaxWait(w.pollPeriod))
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("failed to fetch from NATS: %w", err)
	}

	for msg := range msgs.Messages() {
		var settleErr error
		switch w.handle(ctx, msg.Data()) {
		case actionAck:
			settleErr = msg.Ack()
		case actionNak:
			settleErr = msg.Nak()
		case actionTerm:
			settleErr = msg.Term()
		}
		if settleErr != nil {
			log.Warn().Err(settleErr).Str("worker_id", w.workerID).Msg("failed to settle message")
		}
	}

	if err := msgs.Error(); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return nil
}

// handle stores one event and decides how to settle it
func (w *LedgerWorker) handle(ctx context.Context, data []byte) ackAction {
	rec, err := routenats.DecodeUsage(data)
	if err != nil {
		log.Error().Err(err).Str("worker_id", w.workerID).Msg("dropping undecodable usage event")
		return actionTerm
	}

	if err := w.store.InsertUsageRecord(ctx, rec); err != nil {
		log.Error().Err(err).Str("record_id", rec.ID.String()).Msg("failed to store usage record")
		return actionNak
	}

	log.Debug().
		Str("record_id", rec.ID.String()).
		Str("provider", string(rec.Provider)).
		Float64("cost", rec.Cost).
		Msg("usage record stored")
	return actionAck
}

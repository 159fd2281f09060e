package events

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/claude/liftlog/internal/observability"
	"github.com/segmentio/kafka-go"
)

// Producer writes messages to a Kafka topic.
type Producer interface {
	WriteMessages(ctx context.Context, topic string, msgs ...kafka.Message) error
}

// Dispatcher polls a Source and publishes claimed messages keyed by session id,
// so all events of one session land on the same partition in order.
type Dispatcher struct {
	source       Source
	producer     Producer
	topic        string
	pollInterval time.Duration
	batchSize    int
	maxAttempts  int
	log          *slog.Logger
	done         chan struct{}
}

// DispatcherConfig holds the polling parameters.
type DispatcherConfig struct {
	Topic        string
	PollInterval time.Duration
	BatchSize    int
	MaxAttempts  int
}

// NewDispatcher creates a Dispatcher.
func NewDispatcher(source Source, producer Producer, cfg DispatcherConfig, log *slog.Logger) *Dispatcher {
	return &Dispatcher{
		source:       source,
		producer:     producer,
		topic:        cfg.Topic,
		pollInterval: cfg.PollInterval,
		batchSize:    cfg.BatchSize,
		maxAttempts:  cfg.MaxAttempts,
		log:          log,
		done:         make(chan struct{}),
	}
}

// Run polls until ctx is cancelled. Call it in its own goroutine.
func (d *Dispatcher) Run(ctx context.Context) {
	ticker := time.NewTicker(d.pollInterval)
	defer func() {
		ticker.Stop()
		close(d.done)
	}()

	for {
		if _, err := d.ProcessBatch(ctx); err != nil && !errors.Is(err, context.Canceled) {
			d.log.Error("outbox dispatch failed", "error", err)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Wait blocks until Run has returned.
func (d *Dispatcher) Wait() {
	<-d.done
}

// ProcessBatch claims and publishes one batch. It returns the number of
// messages delivered.
func (d *Dispatcher) ProcessBatch(ctx context.Context) (int, error) {
	start := time.Now()

	msgs, err := d.source.ClaimOutbox(ctx, d.batchSize, d.maxAttempts)
	if err != nil {
		return 0, fmt.Errorf("claiming outbox: %w", err)
	}
	if len(msgs) == 0 {
		return 0, nil
	}

	ids := make([]int64, len(msgs))
	records := make([]kafka.Message, len(msgs))
	for i, m := range msgs {
		ids[i] = m.ID
		records[i] = kafka.Message{
			Key:   []byte(m.SessionID.String()),
			Value: m.Payload,
			Headers: []kafka.Header{
				{Key: "event_type", Value: []byte(m.EventType)},
			},
			Time: start.UTC(),
		}
	}

	// Claims are settled even when shutdown cancelled ctx mid-batch.
	settleCtx := context.WithoutCancel(ctx)

	if err := d.producer.WriteMessages(ctx, d.topic, records...); err != nil {
		observability.RecordOutboxBatch(0, len(msgs), time.Since(start))
		if relErr := d.source.ReleaseOutbox(settleCtx, ids); relErr != nil {
			return 0, errors.Join(fmt.Errorf("publishing %d messages: %w", len(msgs), err), fmt.Errorf("releasing claims: %w", relErr))
		}
		return 0, fmt.Errorf("publishing %d messages: %w", len(msgs), err)
	}

	if err := d.source.MarkPublished(settleCtx, ids); err != nil {
		return 0, fmt.Errorf("marking published: %w", err)
	}
	observability.RecordOutboxBatch(len(msgs), 0, time.Since(start))
	d.log.Debug("outbox batch published", "count", len(msgs))
	return len(msgs), nil
}

// Package consumer pulls status change events from the queue boundary,
// validates them, and dispatches notifications. Poison messages and exhausted
// retries go to the dead-letter destination; one bad message never aborts its
// batch.
package consumer

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/dukex/bookflow/pkg/events"
	"github.com/dukex/bookflow/pkg/notifier"
	"github.com/dukex/bookflow/pkg/queue"
)

const (
	defaultBatchSize       = 10
	defaultMaxReceiveCount = 5
	defaultIdleWait        = time.Second
)

// Config tunes the dispatcher loop.
type Config struct {
	// BatchSize bounds how many deliveries one Receive pulls.
	BatchSize int

	// MaxReceiveCount is the retry budget: a delivery whose receive count
	// exceeds it goes to the dead-letter destination instead of retrying.
	MaxReceiveCount int

	// IdleWait is how long the loop sleeps after an empty batch.
	IdleWait time.Duration
}

func (c Config) withDefaults() Config {
	if c.BatchSize <= 0 {
		c.BatchSize = defaultBatchSize
	}

	if c.MaxReceiveCount <= 0 {
		c.MaxReceiveCount = defaultMaxReceiveCount
	}

	if c.IdleWait <= 0 {
		c.IdleWait = defaultIdleWait
	}

	return c
}

// BatchResult counts the per-delivery outcomes of one batch.
type BatchResult struct {
	Received     int
	Processed    int
	Retried      int
	DeadLettered int
}

// Dispatcher is the pull-based worker over a queue source.
type Dispatcher struct {
	source   queue.Source
	notifier notifier.Notifier
	logger   *slog.Logger
	config   Config
}

// NewDispatcher creates a dispatcher over the given source and notifier.
func NewDispatcher(source queue.Source, target notifier.Notifier, logger *slog.Logger, config Config) *Dispatcher {
	return &Dispatcher{
		source:   source,
		notifier: target,
		logger:   logger,
		config:   config.withDefaults(),
	}
}

// Run processes batches until the context is cancelled.
func (d *Dispatcher) Run(ctx context.Context) error {
	d.logger.InfoContext(ctx, "Starting notification dispatcher",
		"batch_size", d.config.BatchSize, "max_receive_count", d.config.MaxReceiveCount)

	for {
		select {
		case <-ctx.Done():
			d.logger.InfoContext(ctx, "Dispatcher stopping")

			return ctx.Err()
		default:
		}

		result, err := d.ProcessBatch(ctx)
		if err != nil {
			d.logger.ErrorContext(ctx, "Failed to receive batch", "error", err)
			d.wait(ctx)

			continue
		}

		if result.Received == 0 {
			d.wait(ctx)
		}
	}
}

// ProcessBatch pulls one bounded batch and processes every delivery in it.
// A malformed or failing delivery is resolved on its own (retry or
// dead-letter) and never aborts its siblings.
func (d *Dispatcher) ProcessBatch(ctx context.Context) (BatchResult, error) {
	batch, err := d.source.Receive(ctx, d.config.BatchSize)
	if err != nil {
		return BatchResult{}, err
	}

	result := BatchResult{Received: len(batch)}

	for _, delivery := range batch {
		switch d.processDelivery(ctx, delivery) {
		case outcomeProcessed:
			result.Processed++
		case outcomeRetried:
			result.Retried++
		case outcomeDeadLettered:
			result.DeadLettered++
		}
	}

	return result, nil
}

type outcome int

const (
	outcomeProcessed outcome = iota
	outcomeRetried
	outcomeDeadLettered
)

func (d *Dispatcher) processDelivery(ctx context.Context, delivery queue.Delivery) outcome {
	event, validation := events.ParseAndValidate(delivery.Body)
	if !validation.Valid {
		// Poison: invalid input cannot become valid by retrying.
		d.logger.ErrorContext(ctx, "Dead-lettering invalid event",
			"transport_id", delivery.TransportID,
			"receive_count", delivery.ReceiveCount,
			"error_type", "validation",
			"violations", strings.Join(validation.Errors, "; "))

		return d.deadLetter(ctx, delivery)
	}

	err := d.notifier.Notify(ctx, event)
	if err == nil {
		if ackErr := d.source.Ack(ctx, delivery); ackErr != nil {
			// The notification went out but the ack did not; the message will
			// be redelivered, which at-least-once delivery permits.
			d.logger.ErrorContext(ctx, "Failed to ack processed delivery",
				"transport_id", delivery.TransportID, "error", ackErr)
		}

		return outcomeProcessed
	}

	if delivery.ReceiveCount >= d.config.MaxReceiveCount {
		d.logger.ErrorContext(ctx, "Dead-lettering delivery after exhausting retries",
			"transport_id", delivery.TransportID,
			"event_id", event.EventID,
			"receive_count", delivery.ReceiveCount,
			"error_type", "notify",
			"error", err)

		return d.deadLetter(ctx, delivery)
	}

	d.logger.WarnContext(ctx, "Leaving delivery for redelivery",
		"transport_id", delivery.TransportID,
		"event_id", event.EventID,
		"receive_count", delivery.ReceiveCount,
		"error", err)

	if retryErr := d.source.Retry(ctx, delivery); retryErr != nil {
		d.logger.ErrorContext(ctx, "Failed to requeue delivery",
			"transport_id", delivery.TransportID, "error", retryErr)
	}

	return outcomeRetried
}

func (d *Dispatcher) deadLetter(ctx context.Context, delivery queue.Delivery) outcome {
	if err := d.source.DeadLetter(ctx, delivery); err != nil {
		d.logger.ErrorContext(ctx, "Failed to dead-letter delivery",
			"transport_id", delivery.TransportID, "error", err)
	}

	return outcomeDeadLettered
}

func (d *Dispatcher) wait(ctx context.Context) {
	select {
	case <-ctx.Done():
	case <-time.After(d.config.IdleWait):
	}
}

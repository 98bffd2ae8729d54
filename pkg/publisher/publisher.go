// Package publisher turns committed workflow transitions into domain events
// and hands them to the event bus on a background worker. Publication is
// fire-and-forget relative to the transition: failures are logged, never
// propagated, and never roll anything back.
package publisher

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"

	"github.com/dukex/bookflow/pkg/eventbus"
	"github.com/dukex/bookflow/pkg/events"
	"github.com/dukex/bookflow/pkg/workflow"
)

const defaultBuffer = 256

type queued struct {
	ctx        context.Context
	transition workflow.Transition
}

// Publisher is the asynchronous transition publisher. It satisfies
// workflow.TransitionPublisher.
type Publisher struct {
	bus       eventbus.EventPublisher
	logger    *slog.Logger
	queue     chan queued
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// New starts a publisher with the given queue buffer; buffer <= 0 selects the
// default.
func New(bus eventbus.EventPublisher, logger *slog.Logger, buffer int) *Publisher {
	if buffer <= 0 {
		buffer = defaultBuffer
	}

	p := &Publisher{
		bus:    bus,
		logger: logger,
		queue:  make(chan queued, buffer),
	}

	p.wg.Add(1)

	go p.worker()

	return p
}

// PublishTransition enqueues a transition for publication. It never blocks:
// when the buffer is full the event is dropped with a logged failure record,
// because the workflow's correctness must not depend on notification
// delivery.
func (p *Publisher) PublishTransition(ctx context.Context, transition workflow.Transition) {
	item := queued{ctx: context.WithoutCancel(ctx), transition: transition}

	select {
	case p.queue <- item:
	default:
		p.logger.ErrorContext(ctx, "Publisher queue full, dropping status change event",
			"book_id", transition.Book.ID,
			"action", transition.Action,
			"to_state", transition.ToState)
	}
}

// Close stops accepting work and drains the queue.
func (p *Publisher) Close() {
	p.closeOnce.Do(func() {
		close(p.queue)
	})

	p.wg.Wait()
}

func (p *Publisher) worker() {
	defer p.wg.Done()

	for item := range p.queue {
		p.publish(item.ctx, item.transition)
	}
}

func (p *Publisher) publish(ctx context.Context, transition workflow.Transition) {
	event := events.NewBookStatusChange(
		transition.Book,
		transition.FromState,
		transition.ActorID,
		transition.Comments,
		transition.Metadata,
	)

	// Defense in depth: never put a self-invalid event on the wire.
	payload, err := json.Marshal(event)
	if err != nil {
		p.logger.ErrorContext(ctx, "Failed to marshal status change event",
			"book_id", transition.Book.ID, "error", err)

		return
	}

	if result := events.ValidateStatusChange(payload); !result.Valid {
		p.logger.ErrorContext(ctx, "Refusing to publish self-invalid status change event",
			"book_id", transition.Book.ID,
			"event_id", event.EventID,
			"violations", strings.Join(result.Errors, "; "))

		return
	}

	err = p.bus.Publish(ctx, transition.Book.ID, event)
	if err != nil {
		p.logger.ErrorContext(ctx, "Failed to publish status change event",
			"book_id", transition.Book.ID,
			"event_id", event.EventID,
			"action", transition.Action,
			"from_state", transition.FromState,
			"to_state", transition.ToState,
			"error", err)

		return
	}

	p.logger.DebugContext(ctx, "Published status change event",
		"book_id", transition.Book.ID, "event_id", event.EventID)
}

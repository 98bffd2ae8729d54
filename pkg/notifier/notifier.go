// Package notifier defines the notification side-effect boundary invoked for
// each valid status change event. Delivery is at-least-once; implementations
// must tolerate duplicates or key idempotency on the event id.
package notifier

import (
	"context"
	"log/slog"

	"github.com/dukex/bookflow/pkg/events"
)

// Notifier receives one validated status change event per delivery.
type Notifier interface {
	Notify(ctx context.Context, event *events.BookStatusChange) error
}

// The function adapter lets plain functions serve as notifiers in tests and
// wiring code.
type NotifierFunc func(ctx context.Context, event *events.BookStatusChange) error

func (f NotifierFunc) Notify(ctx context.Context, event *events.BookStatusChange) error {
	return f(ctx, event)
}

// SlogNotifier logs each notification. Stands in for the real notification
// collaborator during local development.
type SlogNotifier struct {
	logger *slog.Logger
}

func NewSlogNotifier(logger *slog.Logger) *SlogNotifier {
	return &SlogNotifier{logger: logger}
}

func (n *SlogNotifier) Notify(ctx context.Context, event *events.BookStatusChange) error {
	n.logger.InfoContext(ctx, "Book status changed",
		"event_id", event.EventID,
		"book_id", event.Payload.SubjectID,
		"title", event.Payload.Title,
		"previous_state", event.Payload.PreviousState,
		"new_state", event.Payload.NewState,
		"changed_by", event.Payload.ChangedBy)

	return nil
}

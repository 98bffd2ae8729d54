// Package queue defines the consume-side boundary of the notification
// pipeline: a durable queue handing out deliveries with receive counts, and
// per-delivery outcomes of ack, retry, or dead-letter.
package queue

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// Delivery is one inbound transport message. ReceiveCount is supplied by the
// transport and counts this delivery attempt.
type Delivery struct {
	Body         []byte
	ReceiveCount int
	TransportID  string
}

// Source is a durable message queue. Deliveries that are neither acked nor
// dead-lettered become eligible for redelivery; they are never silently
// dropped, including when a batch is abandoned mid-processing.
type Source interface {
	// Receive returns up to max deliveries. An empty batch is not an error.
	Receive(ctx context.Context, max int) ([]Delivery, error)

	// Ack marks a delivery as processed.
	Ack(ctx context.Context, delivery Delivery) error

	// Retry leaves a delivery for redelivery, keeping its receive count.
	Retry(ctx context.Context, delivery Delivery) error

	// DeadLetter routes a delivery to the dead-letter destination.
	DeadLetter(ctx context.Context, delivery Delivery) error

	Close(ctx context.Context) error
}

// MemorySource is an in-process Source for tests and local development. Its
// ack/retry/dead-letter semantics match the Redis implementation.
type MemorySource struct {
	mu         sync.Mutex
	pending    []Delivery
	inFlight   map[string]Delivery
	deadLetter []Delivery
	counts     map[string]int
}

// NewMemorySource creates an empty in-process queue.
func NewMemorySource() *MemorySource {
	return &MemorySource{
		inFlight: make(map[string]Delivery),
		counts:   make(map[string]int),
	}
}

// Enqueue adds a message body to the queue.
func (s *MemorySource) Enqueue(body []byte) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := uuid.NewString()
	s.pending = append(s.pending, Delivery{Body: body, TransportID: id})

	return id
}

func (s *MemorySource) Receive(_ context.Context, max int) ([]Delivery, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if max <= 0 || max > len(s.pending) {
		max = len(s.pending)
	}

	batch := make([]Delivery, 0, max)

	for _, delivery := range s.pending[:max] {
		s.counts[delivery.TransportID]++
		delivery.ReceiveCount = s.counts[delivery.TransportID]
		s.inFlight[delivery.TransportID] = delivery
		batch = append(batch, delivery)
	}

	s.pending = s.pending[max:]

	return batch, nil
}

func (s *MemorySource) Ack(_ context.Context, delivery Delivery) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.inFlight, delivery.TransportID)
	delete(s.counts, delivery.TransportID)

	return nil
}

func (s *MemorySource) Retry(_ context.Context, delivery Delivery) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.inFlight, delivery.TransportID)
	s.pending = append(s.pending, Delivery{Body: delivery.Body, TransportID: delivery.TransportID})

	return nil
}

func (s *MemorySource) DeadLetter(_ context.Context, delivery Delivery) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.inFlight, delivery.TransportID)
	delete(s.counts, delivery.TransportID)
	s.deadLetter = append(s.deadLetter, delivery)

	return nil
}

// DeadLettered returns a copy of the dead-letter list.
func (s *MemorySource) DeadLettered() []Delivery {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Delivery, len(s.deadLetter))
	copy(out, s.deadLetter)

	return out
}

// PendingCount reports how many messages await delivery.
func (s *MemorySource) PendingCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.pending)
}

// Close requeues anything still in flight.
func (s *MemorySource) Close(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, delivery := range s.inFlight {
		s.pending = append(s.pending, Delivery{Body: delivery.Body, TransportID: delivery.TransportID})
		delete(s.inFlight, id)
	}

	return nil
}

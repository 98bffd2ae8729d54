package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
)

// RedisSource implements Source over Redis lists using the reliable-queue
// pattern: Receive moves messages from the main list to a processing list, so
// a crashed or abandoned consumer leaves them recoverable. Receive counts
// live in a hash keyed by transport id; dead letters go to a separate list.
type RedisSource struct {
	client     redis.UniversalClient
	logger     *slog.Logger
	queue      string
	processing string
	counts     string
	deadLetter string
}

// RedisConfig carries the connection and queue naming options.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Queue    string
}

type redisEnvelope struct {
	ID   string          `json:"id"`
	Body json.RawMessage `json:"body"`
}

// NewRedisSource connects to Redis and prepares the queue keys.
func NewRedisSource(ctx context.Context, config RedisConfig, logger *slog.Logger) (*RedisSource, error) {
	if config.Queue == "" {
		return nil, errors.New("redis queue name is required")
	}

	addr := config.Addr
	if addr == "" {
		addr = "localhost:6379"
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: config.Password,
		DB:       config.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err := client.Ping(pingCtx).Err()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger.InfoContext(ctx, "Connected to Redis", "addr", addr, "queue", config.Queue)

	return &RedisSource{
		client:     client,
		logger:     logger.With("module", "redis_queue", "queue", config.Queue),
		queue:      config.Queue,
		processing: config.Queue + ":processing",
		counts:     config.Queue + ":receive_counts",
		deadLetter: config.Queue + ":dead_letter",
	}, nil
}

// Enqueue wraps a message body in the transport envelope and pushes it onto
// the queue. Used by bridges feeding the queue and by tooling.
func (s *RedisSource) Enqueue(ctx context.Context, body []byte) (string, error) {
	envelope := redisEnvelope{ID: uuid.NewString(), Body: body}

	raw, err := json.Marshal(envelope)
	if err != nil {
		return "", fmt.Errorf("failed to marshal envelope: %w", err)
	}

	err = s.client.LPush(ctx, s.queue, raw).Err()
	if err != nil {
		return "", fmt.Errorf("failed to enqueue message: %w", err)
	}

	return envelope.ID, nil
}

// Receive moves up to max messages to the processing list and returns them
// with bumped receive counts.
func (s *RedisSource) Receive(ctx context.Context, max int) ([]Delivery, error) {
	if max <= 0 {
		max = 1
	}

	batch := make([]Delivery, 0, max)

	for len(batch) < max {
		raw, err := s.client.LMove(ctx, s.queue, s.processing, "RIGHT", "LEFT").Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				break
			}

			return batch, fmt.Errorf("failed to receive message: %w", err)
		}

		var envelope redisEnvelope

		if err := json.Unmarshal([]byte(raw), &envelope); err != nil || envelope.ID == "" {
			// A message without the transport envelope cannot be tracked;
			// route it straight to the dead-letter list.
			s.logger.WarnContext(ctx, "Dead-lettering message without transport envelope", "error", err)

			if dlqErr := s.client.LPush(ctx, s.deadLetter, raw).Err(); dlqErr != nil {
				return batch, fmt.Errorf("failed to dead-letter unenveloped message: %w", dlqErr)
			}

			if remErr := s.client.LRem(ctx, s.processing, 1, raw).Err(); remErr != nil {
				return batch, fmt.Errorf("failed to remove unenveloped message: %w", remErr)
			}

			continue
		}

		count, err := s.client.HIncrBy(ctx, s.counts, envelope.ID, 1).Result()
		if err != nil {
			return batch, fmt.Errorf("failed to track receive count: %w", err)
		}

		batch = append(batch, Delivery{
			Body:         envelope.Body,
			ReceiveCount: int(count),
			TransportID:  envelope.ID,
		})
	}

	return batch, nil
}

// Ack removes a processed delivery and forgets its receive count.
func (s *RedisSource) Ack(ctx context.Context, delivery Delivery) error {
	raw, err := s.envelopeBytes(delivery)
	if err != nil {
		return err
	}

	pipe := s.client.TxPipeline()
	pipe.LRem(ctx, s.processing, 1, raw)
	pipe.HDel(ctx, s.counts, delivery.TransportID)

	_, err = pipe.Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to ack message %s: %w", delivery.TransportID, err)
	}

	return nil
}

// Retry moves a delivery back to the main queue for redelivery, keeping its
// receive count.
func (s *RedisSource) Retry(ctx context.Context, delivery Delivery) error {
	raw, err := s.envelopeBytes(delivery)
	if err != nil {
		return err
	}

	pipe := s.client.TxPipeline()
	pipe.LRem(ctx, s.processing, 1, raw)
	pipe.RPush(ctx, s.queue, raw)

	_, err = pipe.Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to requeue message %s: %w", delivery.TransportID, err)
	}

	return nil
}

// DeadLetter moves a delivery to the dead-letter list.
func (s *RedisSource) DeadLetter(ctx context.Context, delivery Delivery) error {
	raw, err := s.envelopeBytes(delivery)
	if err != nil {
		return err
	}

	pipe := s.client.TxPipeline()
	pipe.LRem(ctx, s.processing, 1, raw)
	pipe.HDel(ctx, s.counts, delivery.TransportID)
	pipe.LPush(ctx, s.deadLetter, raw)

	_, err = pipe.Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to dead-letter message %s: %w", delivery.TransportID, err)
	}

	s.logger.WarnContext(ctx, "Message dead-lettered",
		"transport_id", delivery.TransportID, "receive_count", delivery.ReceiveCount)

	return nil
}

// Close requeues in-flight messages so they become eligible for redelivery,
// then closes the client.
func (s *RedisSource) Close(ctx context.Context) error {
	for {
		err := s.client.LMove(ctx, s.processing, s.queue, "RIGHT", "RIGHT").Err()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				break
			}

			s.logger.ErrorContext(ctx, "Failed to requeue in-flight message on close", "error", err)

			break
		}
	}

	err := s.client.Close()
	if err != nil {
		return fmt.Errorf("failed to close Redis client: %w", err)
	}

	return nil
}

func (s *RedisSource) envelopeBytes(delivery Delivery) ([]byte, error) {
	raw, err := json.Marshal(redisEnvelope{ID: delivery.TransportID, Body: delivery.Body})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal envelope for %s: %w", delivery.TransportID, err)
	}

	return raw, nil
}

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/dukex/bookflow/pkg/cmd"
	"github.com/dukex/bookflow/pkg/consumer"
	"github.com/dukex/bookflow/pkg/events"
	"github.com/dukex/bookflow/pkg/log"
	"github.com/dukex/bookflow/pkg/notifier"
	"github.com/dukex/bookflow/pkg/queue"
	cli "github.com/urfave/cli/v3"
)

func main() {
	logger := log.WithModule("notifier")

	command := &cli.Command{
		Name:                  "bookflow-notifier",
		Usage:                 "Consume book status change events and dispatch notifications",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "redis-addr",
				Usage:   "Redis address backing the notification queue",
				Value:   "localhost:6379",
				Sources: cli.EnvVars("REDIS_ADDR"),
			},
			&cli.StringFlag{
				Name:    "redis-password",
				Usage:   "Redis password",
				Sources: cli.EnvVars("REDIS_PASSWORD"),
			},
			&cli.IntFlag{
				Name:    "redis-db",
				Usage:   "Redis database number",
				Sources: cli.EnvVars("REDIS_DB"),
			},
			&cli.StringFlag{
				Name:    "queue",
				Usage:   "Queue name to consume",
				Value:   "bookflow.notifications",
				Sources: cli.EnvVars("QUEUE_NAME"),
			},
			&cli.IntFlag{
				Name:    "batch-size",
				Usage:   "Maximum deliveries pulled per batch",
				Value:   10,
				Sources: cli.EnvVars("BATCH_SIZE"),
			},
			&cli.IntFlag{
				Name:    "max-receive-count",
				Usage:   "Deliveries beyond this count go to the dead-letter list",
				Value:   5,
				Sources: cli.EnvVars("MAX_RECEIVE_COUNT"),
			},
			&cli.StringFlag{
				Name:    "event-bus",
				Usage:   "Event bus type feeding the queue (kafka, gochannel, none)",
				Value:   "kafka",
				Sources: cli.EnvVars("EVENT_BUS_TYPE"),
			},
			&cli.StringFlag{
				Name:    "kafka-brokers",
				Usage:   "Comma-separated Kafka broker list",
				Sources: cli.EnvVars("KAFKA_BROKERS"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"))

			logger.InfoContext(ctx, "Initializing Bookflow notifier")

			ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			source, err := queue.NewRedisSource(ctx, queue.RedisConfig{
				Addr:     command.String("redis-addr"),
				Password: command.String("redis-password"),
				DB:       command.Int("redis-db"),
				Queue:    command.String("queue"),
			}, logger)
			if err != nil {
				return err
			}

			defer func() {
				if err := source.Close(context.Background()); err != nil {
					logger.Error("Failed to close queue source", "error", err)
				}
			}()

			// Bridge bus deliveries into the durable queue; retries and
			// dead-lettering happen on the queue side.
			if provider := command.String("event-bus"); provider != "none" {
				eventBus := cmd.NewEventBus(provider, command.String("kafka-brokers"), "bookflow-notifier", logger)

				defer func() {
					if err := eventBus.Close(); err != nil {
						logger.Error("Failed to close event bus", "error", err)
					}
				}()

				err = eventBus.Handle(events.BookStatusChangedEvent, func(ctx context.Context, event any) error {
					raw, err := json.Marshal(event)
					if err != nil {
						return fmt.Errorf("failed to marshal status change event: %w", err)
					}

					_, err = source.Enqueue(ctx, raw)

					return err
				})
				if err != nil {
					return err
				}

				if err := eventBus.Subscribe(ctx); err != nil {
					return err
				}
			}

			dispatcher := consumer.NewDispatcher(
				source,
				notifier.NewSlogNotifier(logger),
				logger,
				consumer.Config{
					BatchSize:       command.Int("batch-size"),
					MaxReceiveCount: command.Int("max-receive-count"),
				},
			)

			err = dispatcher.Run(ctx)
			if err != nil && !errors.Is(err, context.Canceled) {
				return err
			}

			return nil
		},
	}

	err := command.Run(context.Background(), os.Args)
	if err != nil {
		panic(err)
	}
}

// Package main provides the Bookflow API server implementation.
package main

import (
	"log/slog"
	"strconv"

	"github.com/dukex/bookflow/pkg/eventbus"
	"github.com/dukex/bookflow/pkg/persistence"
	"github.com/dukex/bookflow/pkg/publisher"
	"github.com/dukex/bookflow/pkg/web"
	"github.com/dukex/bookflow/pkg/workflow"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"
)

type API struct {
	logger      *slog.Logger
	persistence persistence.Persistence
	eventBus    eventbus.EventBus
	publisher   *publisher.Publisher
	validate    *validator.Validate
}

func NewAPI(
	logger *slog.Logger,
	persistence persistence.Persistence,
	eventBus eventbus.EventBus,
) *API {
	return &API{
		logger:      logger,
		persistence: persistence,
		eventBus:    eventBus,
		publisher:   publisher.New(eventBus, logger, 0),
		validate:    validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (a *API) App() *fiber.App {
	engine := workflow.NewEngine(
		a.persistence.BookRepository(),
		a.persistence.LedgerRepository(),
		a.publisher,
		a.logger,
	)

	handlers := web.NewAPIHandlers(engine, a.validate)

	app := fiber.New()
	app.Use(cors.New())
	app.Use(logger.New(logger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker())

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("Bookflow API")
	})

	b := app.Group("/books")
	b.Get("/", handlers.ListByState)
	b.Post("/", handlers.CreateBook)
	b.Get("/:id", handlers.GetBook)
	b.Post("/:id/transition", handlers.Transition)
	b.Get("/:id/history", handlers.History)

	return app
}

func (a *API) Start(port int) error {
	app := a.App()

	err := app.Listen(":" + strconv.Itoa(port))

	return err
}

// Close drains the event publisher.
func (a *API) Close() {
	a.publisher.Close()
}

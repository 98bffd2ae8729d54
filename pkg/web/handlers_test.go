package web

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dukex/bookflow/pkg/models"
	"github.com/dukex/bookflow/pkg/persistence/memory"
	"github.com/dukex/bookflow/pkg/workflow"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type noopPublisher struct{}

func (noopPublisher) PublishTransition(context.Context, workflow.Transition) {}

func newTestApp() (*fiber.App, *workflow.Engine) {
	store := memory.NewPersistence()
	engine := workflow.NewEngine(
		store.BookRepository(),
		store.LedgerRepository(),
		noopPublisher{},
		slog.Default(),
	)

	handlers := NewAPIHandlers(engine, validator.New())

	app := fiber.New()
	b := app.Group("/books")
	b.Get("/", handlers.ListByState)
	b.Post("/", handlers.CreateBook)
	b.Get("/:id", handlers.GetBook)
	b.Post("/:id/transition", handlers.Transition)
	b.Get("/:id/history", handlers.History)

	return app, engine
}

func doRequest(t *testing.T, app *fiber.App, method, path string, body any, headers map[string]string) (*http.Response, map[string]any) {
	t.Helper()

	var reader io.Reader

	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)

		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")

	for key, value := range headers {
		req.Header.Set(key, value)
	}

	resp, err := app.Test(req)
	require.NoError(t, err)

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	decoded := map[string]any{}
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &decoded), "body: %s", raw)
	}

	return resp, decoded
}

func authorHeaders() map[string]string {
	return map[string]string{
		HeaderActorID:   "author-1",
		HeaderActorName: "Ann Author",
		HeaderActorRole: "AUTHOR",
	}
}

func TestCreateBookEndpoint(t *testing.T) {
	app, _ := newTestApp()

	resp, body := doRequest(t, app, fiber.MethodPost, "/books/",
		CreateBookRequest{Title: "Piranesi", Category: "fantasy"}, authorHeaders())

	assert.Equal(t, fiber.StatusCreated, resp.StatusCode)
	assert.Equal(t, "DRAFT", body["state"])
	assert.Equal(t, float64(1), body["version"])
	assert.Equal(t, "author-1", body["owner_id"])
	assert.NotEmpty(t, body["id"])
}

func TestCreateBookRejectsMissingIdentity(t *testing.T) {
	app, _ := newTestApp()

	resp, body := doRequest(t, app, fiber.MethodPost, "/books/",
		CreateBookRequest{Title: "Piranesi"}, nil)

	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "validation_error", body["type"])
}

func TestCreateBookRejectsEmptyTitle(t *testing.T) {
	app, _ := newTestApp()

	resp, body := doRequest(t, app, fiber.MethodPost, "/books/",
		CreateBookRequest{Title: ""}, authorHeaders())

	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "validation_error", body["type"])
}

func TestGetBookEndpoint(t *testing.T) {
	app, engine := newTestApp()

	created, err := engine.CreateBook(context.Background(), workflow.CreateBookRequest{
		OwnerID: "author-1", OwnerName: "Ann Author", Title: "Piranesi",
	})
	require.NoError(t, err)

	resp, body := doRequest(t, app, fiber.MethodGet, "/books/"+created.ID, nil, nil)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, created.ID, body["id"])

	resp, body = doRequest(t, app, fiber.MethodGet, "/books/missing", nil, nil)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "book_not_found", body["type"])
}

func TestTransitionEndpoint(t *testing.T) {
	app, engine := newTestApp()

	created, err := engine.CreateBook(context.Background(), workflow.CreateBookRequest{
		OwnerID: "author-1", OwnerName: "Ann Author", Title: "Piranesi",
	})
	require.NoError(t, err)

	headers := authorHeaders()
	headers[fiber.HeaderIfMatch] = `"1"`

	resp, body := doRequest(t, app, fiber.MethodPost, "/books/"+created.ID+"/transition",
		TransitionRequest{Action: "submit"}, headers)

	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "SUBMITTED_FOR_EDITING", body["newState"])
	assert.Equal(t, float64(2), body["version"])
	assert.Empty(t, body["availableActions"])
}

func TestTransitionErrorMapping(t *testing.T) {
	app, engine := newTestApp()

	created, err := engine.CreateBook(context.Background(), workflow.CreateBookRequest{
		OwnerID: "author-1", OwnerName: "Ann Author", Title: "Piranesi",
	})
	require.NoError(t, err)

	editorHeaders := map[string]string{
		HeaderActorID:       "editor-1",
		HeaderActorRole:     "EDITOR",
		fiber.HeaderIfMatch: "1",
	}

	cases := []struct {
		name       string
		action     string
		headers    map[string]string
		wantStatus int
		wantType   string
	}{
		{
			name:   "invalid transition",
			action: "publish",
			headers: map[string]string{
				HeaderActorID: "publisher-1", HeaderActorRole: "PUBLISHER", fiber.HeaderIfMatch: "1",
			},
			wantStatus: fiber.StatusBadRequest,
			wantType:   "invalid_transition",
		},
		{
			name:       "permission denied",
			action:     "submit",
			headers:    editorHeaders,
			wantStatus: fiber.StatusForbidden,
			wantType:   "permission_denied",
		},
		{
			name:   "unknown action",
			action: "archive",
			headers: map[string]string{
				HeaderActorID: "author-1", HeaderActorRole: "AUTHOR", fiber.HeaderIfMatch: "1",
			},
			wantStatus: fiber.StatusBadRequest,
			wantType:   "validation_error",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp, body := doRequest(t, app, fiber.MethodPost, "/books/"+created.ID+"/transition",
				TransitionRequest{Action: tc.action}, tc.headers)

			assert.Equal(t, tc.wantStatus, resp.StatusCode)
			assert.Equal(t, tc.wantType, body["type"])
		})
	}
}

func TestTransitionVersionConflict(t *testing.T) {
	app, engine := newTestApp()

	created, err := engine.CreateBook(context.Background(), workflow.CreateBookRequest{
		OwnerID: "author-1", OwnerName: "Ann Author", Title: "Piranesi",
	})
	require.NoError(t, err)

	headers := authorHeaders()
	headers[fiber.HeaderIfMatch] = "1"

	resp, _ := doRequest(t, app, fiber.MethodPost, "/books/"+created.ID+"/transition",
		TransitionRequest{Action: "submit"}, headers)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	// Replay with the stale version.
	editorHeaders := map[string]string{
		HeaderActorID:       "editor-1",
		HeaderActorRole:     "EDITOR",
		fiber.HeaderIfMatch: "1",
	}

	resp, body := doRequest(t, app, fiber.MethodPost, "/books/"+created.ID+"/transition",
		TransitionRequest{Action: "approve"}, editorHeaders)

	assert.Equal(t, fiber.StatusConflict, resp.StatusCode)
	assert.Equal(t, "version_conflict", body["type"])
}

func TestTransitionRequiresIfMatch(t *testing.T) {
	app, engine := newTestApp()

	created, err := engine.CreateBook(context.Background(), workflow.CreateBookRequest{
		OwnerID: "author-1", OwnerName: "Ann Author", Title: "Piranesi",
	})
	require.NoError(t, err)

	resp, body := doRequest(t, app, fiber.MethodPost, "/books/"+created.ID+"/transition",
		TransitionRequest{Action: "submit"}, authorHeaders())

	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "validation_error", body["type"])
}

func TestHistoryEndpoint(t *testing.T) {
	app, engine := newTestApp()
	ctx := context.Background()

	created, err := engine.CreateBook(ctx, workflow.CreateBookRequest{
		OwnerID: "author-1", OwnerName: "Ann Author", Title: "Piranesi",
	})
	require.NoError(t, err)

	_, err = engine.AttemptTransition(ctx, workflow.TransitionRequest{
		SubjectID: created.ID, Action: models.ActionSubmit,
		ActorID: "author-1", ActorRole: models.RoleAuthor, ExpectedVersion: 1,
	})
	require.NoError(t, err)

	resp, body := doRequest(t, app, fiber.MethodGet, "/books/"+created.ID+"/history?page_size=1", nil, nil)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	entries, ok := body["entries"].([]any)
	require.True(t, ok)
	assert.Len(t, entries, 1)
	assert.NotEmpty(t, body["nextCursor"])

	resp, body = doRequest(t, app, fiber.MethodGet, "/books/"+created.ID+"/history?cursor=%25bad%25", nil, nil)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "invalid_cursor", body["type"])

	resp, body = doRequest(t, app, fiber.MethodGet, "/books/missing/history", nil, nil)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "book_not_found", body["type"])
}

func TestListBooksEndpoint(t *testing.T) {
	app, engine := newTestApp()
	ctx := context.Background()

	for _, title := range []string{"One", "Two"} {
		_, err := engine.CreateBook(ctx, workflow.CreateBookRequest{
			OwnerID: "author-1", OwnerName: "Ann Author", Title: title,
		})
		require.NoError(t, err)
	}

	resp, body := doRequest(t, app, fiber.MethodGet, "/books/?state=DRAFT", nil, nil)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	books, ok := body["books"].([]any)
	require.True(t, ok)
	assert.Len(t, books, 2)

	resp, body = doRequest(t, app, fiber.MethodGet, "/books/?state=LIMBO", nil, nil)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "validation_error", body["type"])
}

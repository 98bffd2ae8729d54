// Package web provides the HTTP boundary for the book workflow: request
// parsing, identity headers, and the RFC 7807 error mapping. Routing,
// authentication and CORS live in front of this service.
package web

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/dukex/bookflow/pkg/models"
	"github.com/dukex/bookflow/pkg/workflow"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
)

type APIHandlers struct {
	engine    *workflow.Engine
	validator *validator.Validate
}

func NewAPIHandlers(engine *workflow.Engine, validate *validator.Validate) *APIHandlers {
	return &APIHandlers{
		engine:    engine,
		validator: validate,
	}
}

// CreateBook handles POST /books.
func (h *APIHandlers) CreateBook(c fiber.Ctx) error {
	actorID, actorName, _, err := callerIdentity(c)
	if err != nil {
		return badRequest(c, err.Error())
	}

	var req CreateBookRequest

	if err := json.Unmarshal(c.Body(), &req); err != nil {
		return badRequest(c, "Invalid request body: "+err.Error())
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, "Invalid request body: "+err.Error())
	}

	book, err := h.engine.CreateBook(c.Context(), workflow.CreateBookRequest{
		OwnerID:     actorID,
		OwnerName:   actorName,
		Title:       req.Title,
		Description: req.Description,
		Category:    req.Category,
		Metadata:    req.Metadata,
	})
	if err != nil {
		return handleWorkflowError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(book)
}

// GetBook handles GET /books/:id.
func (h *APIHandlers) GetBook(c fiber.Ctx) error {
	book, err := h.engine.GetBook(c.Context(), c.Params("id"))
	if err != nil {
		return handleWorkflowError(c, err)
	}

	return c.JSON(book)
}

// Transition handles POST /books/:id/transition. The expected version comes
// from If-Match; 409 means a concurrent writer won and the caller must
// re-read.
func (h *APIHandlers) Transition(c fiber.Ctx) error {
	actorID, _, actorRole, err := callerIdentity(c)
	if err != nil {
		return badRequest(c, err.Error())
	}

	expectedVersion, err := expectedVersion(c)
	if err != nil {
		return badRequest(c, err.Error())
	}

	var req TransitionRequest

	if err := json.Unmarshal(c.Body(), &req); err != nil {
		return badRequest(c, "Invalid request body: "+err.Error())
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, "Invalid request body: "+err.Error())
	}

	action := models.Action(strings.ToUpper(req.Action))
	if !action.Valid() || action == models.ActionCreate {
		return badRequest(c, "Unknown action: "+req.Action)
	}

	result, err := h.engine.AttemptTransition(c.Context(), workflow.TransitionRequest{
		SubjectID:       c.Params("id"),
		Action:          action,
		ActorID:         actorID,
		ActorRole:       actorRole,
		ExpectedVersion: expectedVersion,
		Comments:        req.Comments,
		Metadata:        req.Metadata,
	})
	if err != nil {
		return handleWorkflowError(c, err)
	}

	return c.JSON(TransitionResponse{
		NewState:         result.Book.State,
		Version:          result.Book.Version,
		AvailableActions: result.AvailableActions,
	})
}

// History handles GET /books/:id/history.
func (h *APIHandlers) History(c fiber.Ctx) error {
	pageSize := 0

	if pageSizeStr := c.Query("page_size"); pageSizeStr != "" {
		parsed, err := strconv.Atoi(pageSizeStr)
		if err != nil {
			return badRequest(c, "Invalid page_size: "+pageSizeStr)
		}

		pageSize = parsed
	}

	entries, nextCursor, err := h.engine.History(c.Context(), c.Params("id"), pageSize, c.Query("cursor"))
	if err != nil {
		return handleWorkflowError(c, err)
	}

	return c.JSON(HistoryResponse{Entries: entries, NextCursor: nextCursor})
}

// ListByState handles GET /books?state=...
func (h *APIHandlers) ListByState(c fiber.Ctx) error {
	state := models.BookState(c.Query("state"))
	if !state.Valid() {
		return badRequest(c, "Unknown state: "+c.Query("state"))
	}

	limit, offset := 0, 0

	if limitStr := c.Query("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil {
			return badRequest(c, "Invalid limit: "+limitStr)
		}

		limit = parsed
	}

	if offsetStr := c.Query("offset"); offsetStr != "" {
		parsed, err := strconv.Atoi(offsetStr)
		if err != nil {
			return badRequest(c, "Invalid offset: "+offsetStr)
		}

		offset = parsed
	}

	books, err := h.engine.ListByState(c.Context(), state, limit, offset)
	if err != nil {
		return handleWorkflowError(c, err)
	}

	return c.JSON(fiber.Map{"books": books})
}

func callerIdentity(c fiber.Ctx) (actorID, actorName string, role models.Role, err error) {
	actorID = c.Get(HeaderActorID)
	if actorID == "" {
		return "", "", "", fiber.NewError(fiber.StatusBadRequest, "missing "+HeaderActorID+" header")
	}

	actorName = c.Get(HeaderActorName)

	role = models.Role(strings.ToUpper(c.Get(HeaderActorRole)))
	if !role.Valid() {
		return "", "", "", fiber.NewError(fiber.StatusBadRequest, "missing or unknown "+HeaderActorRole+" header")
	}

	return actorID, actorName, role, nil
}

func expectedVersion(c fiber.Ctx) (int64, error) {
	raw := strings.Trim(c.Get(fiber.HeaderIfMatch), `"`)
	if raw == "" {
		return 0, fiber.NewError(fiber.StatusBadRequest, "missing If-Match header with the expected version")
	}

	version, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fiber.NewError(fiber.StatusBadRequest, "If-Match header is not a version number: "+raw)
	}

	return version, nil
}

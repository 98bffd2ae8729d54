package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukex/bookflow/pkg/models"
	"github.com/dukex/bookflow/pkg/persistence"
	"github.com/google/uuid"
)

// Transition is the completed fact handed to the event publisher. FromState
// is nil for book creation.
type Transition struct {
	Book      *models.Book
	FromState *models.BookState
	ToState   models.BookState
	ActorID   string
	Action    models.Action
	Comments  string
	Metadata  map[string]any
}

// TransitionPublisher receives completed transitions for asynchronous event
// publication. Implementations must not block and must swallow their own
// failures; a lost notification never invalidates a committed transition.
type TransitionPublisher interface {
	PublishTransition(ctx context.Context, transition Transition)
}

// TransitionRequest carries one attempt to move a book through the workflow.
type TransitionRequest struct {
	SubjectID       string
	Action          models.Action
	ActorID         string
	ActorRole       models.Role
	ExpectedVersion int64
	Comments        string
	Metadata        map[string]any
}

// TransitionResult reports the outcome of a successful transition, including
// the actions the same caller may request next.
type TransitionResult struct {
	Book             *models.Book
	AvailableActions []models.Action
}

// CreateBookRequest carries the fields for a new book.
type CreateBookRequest struct {
	OwnerID     string
	OwnerName   string
	Title       string
	Description string
	Category    string
	Metadata    map[string]any
}

// Engine orchestrates transitions: rule check, conditional write, ledger
// append, asynchronous event handoff.
type Engine struct {
	books     persistence.BookRepository
	ledger    persistence.LedgerRepository
	publisher TransitionPublisher
	logger    *slog.Logger
}

// NewEngine creates a transition engine over the given repositories.
func NewEngine(
	books persistence.BookRepository,
	ledger persistence.LedgerRepository,
	publisher TransitionPublisher,
	logger *slog.Logger,
) *Engine {
	return &Engine{
		books:     books,
		ledger:    ledger,
		publisher: publisher,
		logger:    logger,
	}
}

// CreateBook stores a new book in DRAFT at version 1, records the CREATE
// ledger entry and hands the creation event to the publisher.
func (e *Engine) CreateBook(ctx context.Context, req CreateBookRequest) (*models.Book, error) {
	now := time.Now().UTC()

	book := &models.Book{
		ID:          uuid.NewString(),
		OwnerID:     req.OwnerID,
		OwnerName:   req.OwnerName,
		Title:       req.Title,
		Description: req.Description,
		Category:    req.Category,
		State:       models.BookStateDraft,
		Version:     1,
		Metadata:    req.Metadata,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := e.books.Create(ctx, book); err != nil {
		return nil, fmt.Errorf("failed to create book: %w", err)
	}

	if err := e.appendEntry(ctx, book, nil, models.ActionCreate, req.OwnerID, "", req.Metadata); err != nil {
		return nil, err
	}

	e.publisher.PublishTransition(ctx, Transition{
		Book:     book,
		ToState:  book.State,
		ActorID:  req.OwnerID,
		Action:   models.ActionCreate,
		Metadata: req.Metadata,
	})

	return book, nil
}

// AttemptTransition validates and applies a single transition. Exactly one of
// two concurrent attempts against the same version succeeds; the other
// receives persistence.ErrVersionConflict and must be re-presented to its
// caller.
func (e *Engine) AttemptTransition(ctx context.Context, req TransitionRequest) (*TransitionResult, error) {
	book, err := e.books.GetByID(ctx, req.SubjectID)
	if err != nil {
		return nil, err
	}

	fromState := book.State

	toState, ok := TargetState(fromState, req.Action)
	if !ok {
		return nil, &InvalidTransitionError{From: fromState, Action: req.Action}
	}

	isOwner := book.OwnerID == req.ActorID
	if !Allowed(req.ActorRole, fromState, toState, isOwner) {
		return nil, &PermissionDeniedError{
			Action: req.Action,
			Role:   req.ActorRole,
			Reason: DenyReason(req.Action, req.ActorRole),
		}
	}

	var publishedAt *time.Time

	if toState == models.BookStatePublished {
		now := time.Now().UTC()
		publishedAt = &now
	}

	updated, err := e.books.UpdateState(ctx, book.ID, req.ExpectedVersion, toState, publishedAt)
	if err != nil {
		return nil, err
	}

	// The state change is committed; the ledger append is synchronous and a
	// failure here must surface, since entity and ledger may not diverge
	// silently.
	if err := e.appendEntry(ctx, updated, &fromState, req.Action, req.ActorID, req.Comments, req.Metadata); err != nil {
		return nil, err
	}

	e.publisher.PublishTransition(ctx, Transition{
		Book:      updated,
		FromState: &fromState,
		ToState:   updated.State,
		ActorID:   req.ActorID,
		Action:    req.Action,
		Comments:  req.Comments,
		Metadata:  req.Metadata,
	})

	return &TransitionResult{
		Book:             updated,
		AvailableActions: AvailableActions(updated.State, req.ActorRole, updated.OwnerID == req.ActorID),
	}, nil
}

// GetBook returns a book by id.
func (e *Engine) GetBook(ctx context.Context, id string) (*models.Book, error) {
	return e.books.GetByID(ctx, id)
}

// ListByState returns books in a given state, newest first.
func (e *Engine) ListByState(ctx context.Context, state models.BookState, limit, offset int) ([]*models.Book, error) {
	return e.books.ListByState(ctx, state, limit, offset)
}

// History pages a book's ledger entries most-recent-first.
func (e *Engine) History(ctx context.Context, subjectID string, pageSize int, cursor string) ([]*models.WorkflowEntry, string, error) {
	if _, err := e.books.GetByID(ctx, subjectID); err != nil {
		return nil, "", err
	}

	return e.ledger.ListForSubject(ctx, subjectID, pageSize, cursor)
}

func (e *Engine) appendEntry(
	ctx context.Context,
	book *models.Book,
	fromState *models.BookState,
	action models.Action,
	actorID string,
	comments string,
	metadata map[string]any,
) error {
	entry := &models.WorkflowEntry{
		ID:        uuid.NewString(),
		SubjectID: book.ID,
		FromState: fromState,
		ToState:   book.State,
		ActorID:   actorID,
		Action:    action,
		Comments:  comments,
		Metadata:  metadata,
		Timestamp: time.Now().UTC(),
	}

	if err := e.ledger.Append(ctx, entry); err != nil {
		e.logger.ErrorContext(ctx, "Failed to append workflow ledger entry",
			"book_id", book.ID, "action", action, "error", err)

		return fmt.Errorf("failed to append ledger entry for book %s: %w", book.ID, err)
	}

	return nil
}

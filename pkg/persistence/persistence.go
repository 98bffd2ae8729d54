// Package persistence provides the storage contracts for books and the
// workflow ledger.
package persistence

import (
	"context"
	"time"

	"github.com/dukex/bookflow/pkg/models"
)

// BookRepository is the concurrency-controlled entity store. UpdateState is
// the only way a book's state changes: a single conditional write guarded by
// the expected version. It is also the only synchronization mechanism over a
// book; callers may live in independent processes.
type BookRepository interface {
	// Create stores a new book. The caller sets Version to 1.
	Create(ctx context.Context, book *models.Book) error

	// GetByID returns the book or ErrBookNotFound.
	GetByID(ctx context.Context, id string) (*models.Book, error)

	// UpdateState atomically sets the state iff the stored version equals
	// expectedVersion, bumping the version by exactly one. publishedAt is
	// written only when non-nil and not already set. Returns the updated
	// book, ErrBookNotFound, or ErrVersionConflict. No partial writes.
	UpdateState(ctx context.Context, id string, expectedVersion int64, newState models.BookState, publishedAt *time.Time) (*models.Book, error)

	// ListByState returns books in the given state, newest first.
	ListByState(ctx context.Context, state models.BookState, limit, offset int) ([]*models.Book, error)
}

// LedgerRepository is the append-only transition history. It records facts;
// it is never the authority for a book's current state.
type LedgerRepository interface {
	// Append stores a new entry. Each call is a genuinely new fact.
	Append(ctx context.Context, entry *models.WorkflowEntry) error

	// ListForSubject pages a subject's entries most-recent-first. cursor is
	// an opaque token from a previous page, empty for the first page. The
	// returned cursor is empty when no further page exists.
	ListForSubject(ctx context.Context, subjectID string, pageSize int, cursor string) ([]*models.WorkflowEntry, string, error)
}

// Persistence bundles the repositories behind one backend.
type Persistence interface {
	BookRepository() BookRepository
	LedgerRepository() LedgerRepository
	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}

// Package memory provides an in-memory persistence implementation for tests
// and local development. The conditional-write semantics match the
// PostgreSQL implementation exactly.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/dukex/bookflow/pkg/models"
	"github.com/dukex/bookflow/pkg/persistence"
)

// Persistence holds books and ledger entries in process memory.
type Persistence struct {
	books  *BookRepository
	ledger *LedgerRepository
}

// NewPersistence creates an empty in-memory store.
func NewPersistence() *Persistence {
	return &Persistence{
		books:  &BookRepository{books: make(map[string]*models.Book)},
		ledger: &LedgerRepository{},
	}
}

func (p *Persistence) BookRepository() persistence.BookRepository {
	return p.books
}

func (p *Persistence) LedgerRepository() persistence.LedgerRepository {
	return p.ledger
}

func (p *Persistence) HealthCheck(_ context.Context) error {
	return nil
}

func (p *Persistence) Close(_ context.Context) error {
	return nil
}

// BookRepository is the mutex-guarded book store. The mutex only protects
// this process's map; the version check is still what makes concurrent
// callers safe, as with any other backend.
type BookRepository struct {
	mu    sync.Mutex
	books map[string]*models.Book
}

func (r *BookRepository) Create(_ context.Context, book *models.Book) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.books[book.ID]; exists {
		return persistence.NewBookError("Create", book.ID, persistence.ErrBookAlreadyExists)
	}

	r.books[book.ID] = copyBook(book)

	return nil
}

func (r *BookRepository) GetByID(_ context.Context, id string) (*models.Book, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	book, exists := r.books[id]
	if !exists {
		return nil, persistence.NewBookError("GetByID", id, persistence.ErrBookNotFound)
	}

	return copyBook(book), nil
}

func (r *BookRepository) UpdateState(
	_ context.Context,
	id string,
	expectedVersion int64,
	newState models.BookState,
	publishedAt *time.Time,
) (*models.Book, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	book, exists := r.books[id]
	if !exists {
		return nil, persistence.NewBookError("UpdateState", id, persistence.ErrBookNotFound)
	}

	if book.Version != expectedVersion {
		return nil, persistence.NewBookError("UpdateState", id, persistence.ErrVersionConflict)
	}

	book.State = newState
	book.Version = expectedVersion + 1
	book.UpdatedAt = time.Now().UTC()

	if publishedAt != nil && book.PublishedAt == nil {
		ts := *publishedAt
		book.PublishedAt = &ts
	}

	return copyBook(book), nil
}

func (r *BookRepository) ListByState(_ context.Context, state models.BookState, limit, offset int) ([]*models.Book, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	matched := make([]*models.Book, 0)

	for _, book := range r.books {
		if book.State == state {
			matched = append(matched, copyBook(book))
		}
	}

	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	if offset >= len(matched) {
		return []*models.Book{}, nil
	}

	matched = matched[offset:]
	if limit > 0 && limit < len(matched) {
		matched = matched[:limit]
	}

	return matched, nil
}

// LedgerRepository is the in-memory append-only ledger.
type LedgerRepository struct {
	mu      sync.Mutex
	entries []*models.WorkflowEntry
}

func (r *LedgerRepository) Append(_ context.Context, entry *models.WorkflowEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored := *entry
	r.entries = append(r.entries, &stored)

	return nil
}

func (r *LedgerRepository) ListForSubject(
	_ context.Context,
	subjectID string,
	pageSize int,
	cursor string,
) ([]*models.WorkflowEntry, string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	matched := make([]*models.WorkflowEntry, 0)

	for _, entry := range r.entries {
		if entry.SubjectID == subjectID {
			copied := *entry
			matched = append(matched, &copied)
		}
	}

	sort.SliceStable(matched, func(i, j int) bool {
		if matched[i].Timestamp.Equal(matched[j].Timestamp) {
			return matched[i].ID > matched[j].ID
		}

		return matched[i].Timestamp.After(matched[j].Timestamp)
	})

	if cursor != "" {
		afterTS, afterID, err := persistence.DecodeCursor(cursor)
		if err != nil {
			return nil, "", err
		}

		skipped := matched[:0:0]

		for _, entry := range matched {
			if entry.Timestamp.Before(afterTS) ||
				(entry.Timestamp.Equal(afterTS) && entry.ID < afterID) {
				skipped = append(skipped, entry)
			}
		}

		matched = skipped
	}

	if pageSize <= 0 || pageSize >= len(matched) {
		return matched, "", nil
	}

	page := matched[:pageSize]
	last := page[len(page)-1]

	return page, persistence.EncodeCursor(last.Timestamp, last.ID), nil
}

func copyBook(book *models.Book) *models.Book {
	copied := *book

	if book.PublishedAt != nil {
		ts := *book.PublishedAt
		copied.PublishedAt = &ts
	}

	if book.Metadata != nil {
		copied.Metadata = make(map[string]any, len(book.Metadata))
		for k, v := range book.Metadata {
			copied.Metadata[k] = v
		}
	}

	return &copied
}

package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukex/bookflow/pkg/models"
	"github.com/dukex/bookflow/pkg/persistence"
)

// BookRepository handles book-related database operations.
type BookRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewBookRepository creates a new book repository.
func NewBookRepository(db *sql.DB, logger *slog.Logger) *BookRepository {
	return &BookRepository{db: db, logger: logger}
}

const bookColumns = `
			id
		  , owner_id
		  , owner_name
		  , title
		  , description
		  , category
		  , state
		  , version
		  , metadata
		  , created_at
		  , updated_at
		  , published_at
`

// Create stores a new book.
func (r *BookRepository) Create(ctx context.Context, book *models.Book) error {
	metadataJSON, err := json.Marshal(book.Metadata)
	if err != nil {
		return persistence.NewBookError("Create", book.ID, fmt.Errorf("failed to marshal metadata: %w", err))
	}

	query := `
		INSERT INTO books (
			id, owner_id, owner_name, title, description, category,
			state, version, metadata, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO NOTHING
	`

	result, err := r.db.ExecContext(ctx, query,
		book.ID, book.OwnerID, book.OwnerName, book.Title, book.Description,
		book.Category, book.State, book.Version, metadataJSON,
		book.CreatedAt, book.UpdatedAt,
	)
	if err != nil {
		return persistence.NewBookError("Create", book.ID, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return persistence.NewBookError("Create", book.ID, err)
	}

	if affected == 0 {
		return persistence.NewBookError("Create", book.ID, persistence.ErrBookAlreadyExists)
	}

	return nil
}

// GetByID returns a book by its ID.
func (r *BookRepository) GetByID(ctx context.Context, id string) (*models.Book, error) {
	query := `SELECT` + bookColumns + `FROM books WHERE id = $1`

	row := r.db.QueryRowContext(ctx, query, id)

	book, err := scanBook(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewBookError("GetByID", id, persistence.ErrBookNotFound)
		}

		return nil, persistence.NewBookError("GetByID", id, err)
	}

	return book, nil
}

// UpdateState performs the conditional state write. The WHERE clause carries
// the version check, so the update and the check are one atomic statement;
// published_at is preserved once set.
func (r *BookRepository) UpdateState(
	ctx context.Context,
	id string,
	expectedVersion int64,
	newState models.BookState,
	publishedAt *time.Time,
) (*models.Book, error) {
	query := `
		UPDATE books
		SET state = $3
		  , version = version + 1
		  , updated_at = $4
		  , published_at = COALESCE(published_at, $5)
		WHERE id = $1 AND version = $2
		RETURNING` + bookColumns

	row := r.db.QueryRowContext(ctx, query, id, expectedVersion, newState, time.Now().UTC(), publishedAt)

	book, err := scanBook(row)
	if err == nil {
		return book, nil
	}

	if !errors.Is(err, sql.ErrNoRows) {
		return nil, persistence.NewBookError("UpdateState", id, err)
	}

	// Zero rows: either the book is gone or a concurrent writer bumped the
	// version first. Look again to tell the two apart.
	var storedVersion int64

	err = r.db.QueryRowContext(ctx, "SELECT version FROM books WHERE id = $1", id).Scan(&storedVersion)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, persistence.NewBookError("UpdateState", id, persistence.ErrBookNotFound)
	}

	if err != nil {
		return nil, persistence.NewBookError("UpdateState", id, err)
	}

	r.logger.WarnContext(ctx, "Conditional update lost to a concurrent writer",
		"book_id", id, "expected_version", expectedVersion, "stored_version", storedVersion)

	return nil, persistence.NewBookError("UpdateState", id, persistence.ErrVersionConflict)
}

// ListByState returns books in the given state, newest first.
func (r *BookRepository) ListByState(ctx context.Context, state models.BookState, limit, offset int) ([]*models.Book, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `SELECT` + bookColumns + `
		FROM books
		WHERE state = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.db.QueryContext(ctx, query, state, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query books by state: %w", err)
	}

	defer func() {
		if err := rows.Close(); err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	books := make([]*models.Book, 0)

	for rows.Next() {
		book, err := scanBook(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan book: %w", err)
		}

		books = append(books, book)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating books: %w", err)
	}

	return books, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBook(row rowScanner) (*models.Book, error) {
	var (
		book         models.Book
		metadataJSON []byte
		publishedAt  sql.NullTime
	)

	err := row.Scan(
		&book.ID, &book.OwnerID, &book.OwnerName, &book.Title,
		&book.Description, &book.Category, &book.State, &book.Version,
		&metadataJSON, &book.CreatedAt, &book.UpdatedAt, &publishedAt,
	)
	if err != nil {
		return nil, err
	}

	if publishedAt.Valid {
		ts := publishedAt.Time
		book.PublishedAt = &ts
	}

	if len(metadataJSON) > 0 {
		if err := json.Unmarshal(metadataJSON, &book.Metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
		}
	}

	return &book, nil
}

package persistence

import (
	"errors"
	"fmt"
)

// Standard persistence error types that all implementations should use.
var (
	// ErrBookNotFound indicates no book exists for the given identifier.
	ErrBookNotFound = errors.New("book not found")

	// ErrBookAlreadyExists indicates a book with the same identifier already exists.
	ErrBookAlreadyExists = errors.New("book already exists")

	// ErrVersionConflict indicates a conditional update lost to a concurrent
	// writer: the stored version no longer matched the expected version. The
	// attempt is terminal; the caller must re-read and decide again.
	ErrVersionConflict = errors.New("version conflict: book was modified concurrently, refresh and retry")

	// ErrInvalidCursor indicates a ledger page cursor could not be decoded.
	ErrInvalidCursor = errors.New("invalid page cursor")
)

// BookError wraps book-related errors with operation context.
type BookError struct {
	Op     string // Operation being performed (e.g., "GetByID", "UpdateState")
	BookID string
	Err    error
}

func (e *BookError) Error() string {
	return fmt.Sprintf("%s operation failed for book %s: %v", e.Op, e.BookID, e.Err)
}

func (e *BookError) Unwrap() error {
	return e.Err
}

// Is implements error comparison for book errors.
func (e *BookError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewBookError creates a new book error with context.
func NewBookError(op, bookID string, err error) *BookError {
	return &BookError{
		Op:     op,
		BookID: bookID,
		Err:    err,
	}
}

// LedgerError wraps ledger-related errors with operation context.
type LedgerError struct {
	Op        string
	SubjectID string
	Err       error
}

func (e *LedgerError) Error() string {
	return fmt.Sprintf("%s operation failed for subject %s: %v", e.Op, e.SubjectID, e.Err)
}

func (e *LedgerError) Unwrap() error {
	return e.Err
}

func (e *LedgerError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// IsBookNotFound checks if an error indicates a book was not found.
func IsBookNotFound(err error) bool {
	return errors.Is(err, ErrBookNotFound)
}

// IsVersionConflict checks if an error indicates a lost concurrent write.
func IsVersionConflict(err error) bool {
	return errors.Is(err, ErrVersionConflict)
}

// Package testutil provides test data builders and utilities for testing.
package testutil

import (
	"time"

	"github.com/dukex/bookflow/pkg/models"
	"github.com/google/uuid"
)

// CreateTestBook creates a test book with default values that can be overridden.
func CreateTestBook(overrides ...func(*models.Book)) *models.Book {
	now := time.Now().UTC()

	book := &models.Book{
		ID:        uuid.New().String(),
		OwnerID:   "author-1",
		OwnerName: "Test Author",
		Title:     "Test Book",
		Category:  "fiction",
		State:     models.BookStateDraft,
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}

	for _, override := range overrides {
		override(book)
	}

	return book
}

// WithID sets the book id.
func WithID(id string) func(*models.Book) {
	return func(b *models.Book) {
		b.ID = id
	}
}

// WithState sets the book state.
func WithState(state models.BookState) func(*models.Book) {
	return func(b *models.Book) {
		b.State = state
	}
}

// WithOwner sets the owner id.
func WithOwner(ownerID string) func(*models.Book) {
	return func(b *models.Book) {
		b.OwnerID = ownerID
	}
}

// WithVersion sets the version.
func WithVersion(version int64) func(*models.Book) {
	return func(b *models.Book) {
		b.Version = version
	}
}

// CreateTestEntry creates a workflow ledger entry for a book.
func CreateTestEntry(book *models.Book, action models.Action, from *models.BookState, to models.BookState) *models.WorkflowEntry {
	return &models.WorkflowEntry{
		ID:        uuid.New().String(),
		SubjectID: book.ID,
		FromState: from,
		ToState:   to,
		ActorID:   book.OwnerID,
		Action:    action,
		Timestamp: time.Now().UTC(),
	}
}

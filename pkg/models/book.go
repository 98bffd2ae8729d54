// Package models defines the core domain models for the book publication workflow.
package models

import "time"

// BookState represents the editorial lifecycle state of a book.
type BookState string

const (
	BookStateDraft     BookState = "DRAFT"                 // Being written, only visible to the author
	BookStateSubmitted BookState = "SUBMITTED_FOR_EDITING" // Waiting for editorial review
	BookStateReady     BookState = "READY_FOR_PUBLICATION" // Approved, waiting for a publisher
	BookStatePublished BookState = "PUBLISHED"             // Live, terminal
)

// BookStates lists every valid state. Order matches the forward path.
var BookStates = []BookState{
	BookStateDraft,
	BookStateSubmitted,
	BookStateReady,
	BookStatePublished,
}

func (s BookState) Valid() bool {
	switch s {
	case BookStateDraft, BookStateSubmitted, BookStateReady, BookStatePublished:
		return true
	default:
		return false
	}
}

// Book is the workflow subject. State is only ever written by the transition
// engine through the store's conditional update; Version and State change
// together in a single write.
type Book struct {
	ID          string         `json:"id"`
	OwnerID     string         `json:"owner_id"   validate:"required"`
	OwnerName   string         `json:"owner_name"`
	Title       string         `json:"title"      validate:"required,min=1"`
	Description string         `json:"description"`
	Category    string         `json:"category"`
	State       BookState      `json:"state"      validate:"required"`
	Version     int64          `json:"version"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	PublishedAt *time.Time     `json:"published_at,omitempty"`
}

package models

import "time"

// WorkflowEntry is one immutable fact in a book's transition history. Entries
// are appended, never updated or deleted. FromState is nil for the CREATE
// entry.
type WorkflowEntry struct {
	ID        string         `json:"id"`
	SubjectID string         `json:"subject_id" validate:"required"`
	FromState *BookState     `json:"from_state,omitempty"`
	ToState   BookState      `json:"to_state"   validate:"required"`
	ActorID   string         `json:"actor_id"   validate:"required"`
	Action    Action         `json:"action"     validate:"required"`
	Comments  string         `json:"comments,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

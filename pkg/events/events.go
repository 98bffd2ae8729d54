// Package events defines the book status change domain event and its schema
// validation. The JSON shape is the contract external notification consumers
// depend on; changes must stay additive.
package events

import (
	"time"

	"github.com/dukex/bookflow/pkg/models"
	"github.com/google/uuid"
)

type EventType string

// Kafka topics.
const Topic = "bookflow.book.status" // Topic for book status change events

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	BookStatusChangedEvent EventType = "book.status.changed"
)

// Fixed envelope constants. The validator rejects events carrying anything
// else.
const (
	EventSource   = "bookflow"
	SchemaVersion = "1.0"
)

// StatusChangePayload carries the transition fact itself.
type StatusChangePayload struct {
	SubjectID     string         `json:"subjectId"`
	Title         string         `json:"title"`
	OwnerName     string         `json:"ownerName"`
	PreviousState *string        `json:"previousState"`
	NewState      string         `json:"newState"`
	ChangedBy     string         `json:"changedBy"`
	Reason        string         `json:"reason,omitempty"`
	Metadata      map[string]any `json:"metadata,omitempty"`
}

// BookStatusChange is the externalized fact of a transition. Timestamp is
// event-time, set when the transition committed, not when the message is
// processed.
type BookStatusChange struct {
	EventType     EventType           `json:"eventType"`
	EventID       string              `json:"eventId"`
	Timestamp     time.Time           `json:"timestamp"`
	Source        string              `json:"source"`
	SchemaVersion string              `json:"schemaVersion"`
	Payload       StatusChangePayload `json:"payload"`
}

func (e BookStatusChange) GetType() EventType {
	return BookStatusChangedEvent
}

// NewBookStatusChange builds a fully-populated event with a fresh V7 event id
// and the current UTC instant as event-time.
func NewBookStatusChange(book *models.Book, previous *models.BookState, changedBy, reason string, metadata map[string]any) BookStatusChange {
	var previousState *string

	if previous != nil {
		state := string(*previous)
		previousState = &state
	}

	eventID, err := uuid.NewV7()
	if err != nil {
		return newStatusChangeWithID(uuid.NewString(), book, previousState, changedBy, reason, metadata)
	}

	return newStatusChangeWithID(eventID.String(), book, previousState, changedBy, reason, metadata)
}

func newStatusChangeWithID(id string, book *models.Book, previousState *string, changedBy, reason string, metadata map[string]any) BookStatusChange {
	return BookStatusChange{
		EventType:     BookStatusChangedEvent,
		EventID:       id,
		Timestamp:     time.Now().UTC(),
		Source:        EventSource,
		SchemaVersion: SchemaVersion,
		Payload: StatusChangePayload{
			SubjectID:     book.ID,
			Title:         book.Title,
			OwnerName:     book.OwnerName,
			PreviousState: previousState,
			NewState:      string(book.State),
			ChangedBy:     changedBy,
			Reason:        reason,
			Metadata:      metadata,
		},
	}
}

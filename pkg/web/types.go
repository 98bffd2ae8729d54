package web

import "github.com/dukex/bookflow/pkg/models"

// Caller identity headers, filled in by the authenticating proxy in front of
// this service.
const (
	HeaderActorID   = "X-Actor-Id"
	HeaderActorName = "X-Actor-Name"
	HeaderActorRole = "X-Actor-Role"
)

// CreateBookRequest is the POST /books body.
type CreateBookRequest struct {
	Title       string         `json:"title"       validate:"required,min=1"`
	Description string         `json:"description"`
	Category    string         `json:"category"`
	Metadata    map[string]any `json:"metadata"`
}

// TransitionRequest is the POST /books/:id/transition body. The expected
// version arrives in the If-Match header.
type TransitionRequest struct {
	Action   string         `json:"action"   validate:"required"`
	Comments string         `json:"comments"`
	Metadata map[string]any `json:"metadata"`
}

// TransitionResponse reports the committed transition and what the caller may
// do next.
type TransitionResponse struct {
	NewState         models.BookState `json:"newState"`
	Version          int64            `json:"version"`
	AvailableActions []models.Action  `json:"availableActions"`
}

// HistoryResponse is one page of a book's transition history.
type HistoryResponse struct {
	Entries    []*models.WorkflowEntry `json:"entries"`
	NextCursor string                  `json:"nextCursor,omitempty"`
}

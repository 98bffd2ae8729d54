package workflow

import (
	"errors"
	"fmt"

	"github.com/dukex/bookflow/pkg/models"
)

// InvalidTransitionError indicates the requested action has no edge out of
// the book's current state.
type InvalidTransitionError struct {
	From   models.BookState
	Action models.Action
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("action %s is not a valid transition from state %s", e.Action, e.From)
}

// Code returns the stable machine-readable code for this error.
func (e *InvalidTransitionError) Code() string {
	return "invalid_transition"
}

// PermissionDeniedError indicates the rule tables or the ownership rule
// rejected the actor.
type PermissionDeniedError struct {
	Action models.Action
	Role   models.Role
	Reason string
}

func (e *PermissionDeniedError) Error() string {
	return fmt.Sprintf("role %s may not perform %s: %s", e.Role, e.Action, e.Reason)
}

func (e *PermissionDeniedError) Code() string {
	return "permission_denied"
}

// IsInvalidTransition checks whether an error is an invalid transition.
func IsInvalidTransition(err error) bool {
	var target *InvalidTransitionError

	return errors.As(err, &target)
}

// IsPermissionDenied checks whether an error is a permission denial.
func IsPermissionDenied(err error) bool {
	var target *PermissionDeniedError

	return errors.As(err, &target)
}

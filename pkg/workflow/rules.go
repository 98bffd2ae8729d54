// Package workflow implements the book publication state machine: the
// transition rule tables and the engine that applies them against the
// version-checked store.
package workflow

import (
	"fmt"

	"github.com/dukex/bookflow/pkg/models"
)

// adjacent is the structural transition table. A transition that is not in
// this table is invalid for every role. PUBLISHED is terminal.
var adjacent = map[models.BookState][]models.BookState{
	models.BookStateDraft:     {models.BookStateSubmitted},
	models.BookStateSubmitted: {models.BookStateDraft, models.BookStateReady},
	models.BookStateReady:     {models.BookStateSubmitted, models.BookStatePublished},
	models.BookStatePublished: {},
}

// rolePermissions is the role overlay. The matrix is total: every
// (role, state) pair has an explicit entry, empty where the role may not
// request any transition out of that state. Adding a role or a state is a
// data change here, not a logic change.
var rolePermissions = map[models.Role]map[models.BookState][]models.BookState{
	models.RoleAuthor: {
		models.BookStateDraft:     {models.BookStateSubmitted},
		models.BookStateSubmitted: {},
		models.BookStateReady:     {},
		models.BookStatePublished: {},
	},
	models.RoleEditor: {
		models.BookStateDraft:     {},
		models.BookStateSubmitted: {models.BookStateDraft, models.BookStateReady},
		models.BookStateReady:     {},
		models.BookStatePublished: {},
	},
	models.RolePublisher: {
		models.BookStateDraft:     {},
		models.BookStateSubmitted: {},
		models.BookStateReady:     {models.BookStateSubmitted, models.BookStatePublished},
		models.BookStatePublished: {},
	},
}

// actionTargets maps (current state, action) to the target state. Missing
// entries mean the action is not reachable from that state.
var actionTargets = map[models.BookState]map[models.Action]models.BookState{
	models.BookStateDraft: {
		models.ActionSubmit: models.BookStateSubmitted,
	},
	models.BookStateSubmitted: {
		models.ActionApprove: models.BookStateReady,
		models.ActionReject:  models.BookStateDraft,
	},
	models.BookStateReady: {
		models.ActionPublish: models.BookStatePublished,
		models.ActionReject:  models.BookStateSubmitted,
	},
	models.BookStatePublished: {},
}

// denyReasons carries the human-readable permission-denied text keyed by
// (action, role).
var denyReasons = map[models.Action]map[models.Role]string{
	models.ActionSubmit: {
		models.RoleAuthor:    "only the book's own author may submit it for editing",
		models.RoleEditor:    "editors cannot submit books for editing, only the author can",
		models.RolePublisher: "publishers cannot submit books for editing, only the author can",
	},
	models.ActionApprove: {
		models.RoleAuthor:    "authors cannot approve their own books, an editor must",
		models.RoleEditor:    "editors may only approve books that are submitted for editing",
		models.RolePublisher: "publishers cannot approve books, an editor must",
	},
	models.ActionReject: {
		models.RoleAuthor:    "authors cannot reject books",
		models.RoleEditor:    "editors may only reject books that are submitted for editing",
		models.RolePublisher: "publishers may only reject books that are ready for publication",
	},
	models.ActionPublish: {
		models.RoleAuthor:    "authors cannot publish books, a publisher must",
		models.RoleEditor:    "editors cannot publish books, a publisher must",
		models.RolePublisher: "publishers may only publish books that are ready for publication",
	},
}

// TargetState resolves an action against the current state.
func TargetState(from models.BookState, action models.Action) (models.BookState, bool) {
	to, ok := actionTargets[from][action]

	return to, ok
}

// StructurallyAllowed reports whether from→to is an edge of the state graph.
func StructurallyAllowed(from, to models.BookState) bool {
	for _, next := range adjacent[from] {
		if next == to {
			return true
		}
	}

	return false
}

// RoleAllowed reports whether the role overlay permits from→to.
func RoleAllowed(role models.Role, from, to models.BookState) bool {
	for _, next := range rolePermissions[role][from] {
		if next == to {
			return true
		}
	}

	return false
}

// Allowed applies both tables plus the ownership rule: author-initiated
// transitions additionally require the actor to own the book.
func Allowed(role models.Role, from, to models.BookState, isOwner bool) bool {
	if !StructurallyAllowed(from, to) {
		return false
	}

	if !RoleAllowed(role, from, to) {
		return false
	}

	if role == models.RoleAuthor && !isOwner {
		return false
	}

	return true
}

// AvailableActions returns the transition actions the given role may request
// from the given state, in the fixed action order.
func AvailableActions(state models.BookState, role models.Role, isOwner bool) []models.Action {
	actions := make([]models.Action, 0, len(models.TransitionActions))

	for _, action := range models.TransitionActions {
		to, ok := TargetState(state, action)
		if !ok {
			continue
		}

		if Allowed(role, state, to, isOwner) {
			actions = append(actions, action)
		}
	}

	return actions
}

// DenyReason returns the permission-denied text for an (action, role) pair.
func DenyReason(action models.Action, role models.Role) string {
	if reason, ok := denyReasons[action][role]; ok {
		return reason
	}

	return fmt.Sprintf("role %s may not perform action %s", role, action)
}

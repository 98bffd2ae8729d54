package models

// Role identifies the capacity in which an actor requests a transition.
type Role string

const (
	RoleAuthor    Role = "AUTHOR"
	RoleEditor    Role = "EDITOR"
	RolePublisher Role = "PUBLISHER"
)

// Roles lists every known role.
var Roles = []Role{RoleAuthor, RoleEditor, RolePublisher}

func (r Role) Valid() bool {
	switch r {
	case RoleAuthor, RoleEditor, RolePublisher:
		return true
	default:
		return false
	}
}

// Action is a workflow verb. CREATE is recorded in the ledger but is not a
// transition between states.
type Action string

const (
	ActionCreate  Action = "CREATE"
	ActionSubmit  Action = "SUBMIT"
	ActionApprove Action = "APPROVE"
	ActionReject  Action = "REJECT"
	ActionPublish Action = "PUBLISH"
)

// Actions lists every workflow verb, CREATE included.
var Actions = []Action{ActionCreate, ActionSubmit, ActionApprove, ActionReject, ActionPublish}

// TransitionActions lists the verbs that move a book between states.
var TransitionActions = []Action{ActionSubmit, ActionApprove, ActionReject, ActionPublish}

func (a Action) Valid() bool {
	switch a {
	case ActionCreate, ActionSubmit, ActionApprove, ActionReject, ActionPublish:
		return true
	default:
		return false
	}
}

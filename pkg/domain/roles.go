package domain

// UserRole grades a user's editorial authority on a project.
type UserRole string

// Roles in ascending order of authority.
const (
	RoleAuthor        UserRole = "AUTHOR"
	RoleReviewer      UserRole = "REVIEWER"
	RoleAdministrator UserRole = "ADMINISTRATOR"
)

var roleRank = map[UserRole]int{
	RoleAuthor:        1,
	RoleReviewer:      2,
	RoleAdministrator: 3,
}

// Known reports whether the role is one of the defined roles.
func (r UserRole) Known() bool {
	_, ok := roleRank[r]
	return ok
}

// AtLeast reports whether the role carries at least min's authority.
// Unknown roles rank below every defined role.
func (r UserRole) AtLeast(min UserRole) bool {
	return roleRank[r] >= roleRank[min] && roleRank[min] > 0
}

// WorkflowAction enumerates the operations of the worklist state machine.
type WorkflowAction string

// Workflow actions.
const (
	WorkflowAssign   WorkflowAction = "ASSIGN"
	WorkflowUnassign WorkflowAction = "UNASSIGN"
	WorkflowSave     WorkflowAction = "SAVE"
	WorkflowFinish   WorkflowAction = "FINISH"
	WorkflowPublish  WorkflowAction = "PUBLISH"
	WorkflowReopen   WorkflowAction = "REOPEN"
)

package model

// Roles carried in the access token.
const (
	RoleOperator   = "operator"
	RoleSupervisor = "supervisor"
	RoleAdmin      = "admin"
)

// AllRoles is every role allowed to use the cash register.
var AllRoles = []string{RoleOperator, RoleSupervisor, RoleAdmin}

// IsPrivileged reports whether role may reopen sessions, reverse
// transactions, correct opening values and delete vehicle entries.
func IsPrivileged(role string) bool {
	return role == RoleSupervisor || role == RoleAdmin
}

package domain

type Role string

const (
	RoleAdmin Role = "admin"
	RoleStaff Role = "staff"
)

// Privileged reports whether the role may apply workflow-gated operations
// without a second approval.
func (r Role) Privileged() bool {
	return r == RoleAdmin
}

package user

import "time"

// Administrator is the built-in superuser account name.
const Administrator = "Administrator"

const (
	RoleAdministrator   = "Administrator"
	RoleSystemManager   = "System Manager"
	RoleProjectManager  = "Project Manager"
	RoleOfficeManager   = "Office Manager"
	RoleServiceEngineer = "Service Engineer"
	RoleClient          = "Client"
)

// PrivilegedRoles see every site and request within a project; engineer
// scoping does not apply to them.
var PrivilegedRoles = []string{
	RoleSystemManager,
	RoleProjectManager,
	RoleOfficeManager,
}

type User struct {
	Email     string    `db:"email" json:"email"`
	FullName  string    `db:"full_name" json:"full_name"`
	Enabled   bool      `db:"enabled" json:"enabled"`
	UserType  string    `db:"user_type" json:"user_type"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

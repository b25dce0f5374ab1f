package domain

// Role constants define the allowed user roles.
const (
	RoleStandard      = "standard"
	RoleAdministrator = "administrator"
)

// IsValidRole checks whether the given role string is a valid user role.
func IsValidRole(role string) bool {
	return role == RoleStandard || role == RoleAdministrator
}

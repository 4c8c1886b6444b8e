package domain

// Role constants define the allowed account roles.
const (
	RoleAdmin   = "admin"
	RoleTeacher = "teacher"
	RoleStudent = "student"
)

// DefaultRole is the lowest-privilege role, assigned when registration or
// provider sign-in does not specify one.
const DefaultRole = RoleStudent

// ValidRoles returns the set of valid account roles.
func ValidRoles() []string {
	return []string{RoleAdmin, RoleTeacher, RoleStudent}
}

// IsValidRole checks whether the given role string is a valid account role.
func IsValidRole(role string) bool {
	for _, r := range ValidRoles() {
		if r == role {
			return true
		}
	}
	return false
}

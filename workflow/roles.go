package workflow

import "p9e.in/siteqa/utils"

// Organization membership roles. Every member of an organization carries
// exactly one of these for that organization.
const (
	RoleOwner          = "owner"
	RoleAdmin          = "admin"
	RoleProjectManager = "project_manager"
	RoleInspector      = "inspector"
	RoleContractor     = "contractor"
	RoleViewer         = "viewer"
)

// rolePermissions maps each membership role to its permission patterns.
// Patterns use the "resource:action" format and support wildcards, so new
// permissions added under an existing resource are picked up automatically.
var rolePermissions = map[string][]string{
	RoleOwner:          {"*"},
	RoleAdmin:          {"*"},
	RoleProjectManager: {"project:*", "lot:*", "ncr:*", "itp:*", "report:*", "member:read"},
	RoleInspector: {
		"project:read", "lot:read",
		"ncr:create", "ncr:read", "ncr:update",
		"itp:read", "itp:record",
		"report:read",
	},
	RoleContractor: {"project:read", "lot:read", "ncr:read", "itp:read"},
	RoleViewer:     {"project:read", "lot:read", "ncr:read", "itp:read", "report:read"},
}

// PermissionsForRole returns the permission patterns granted to a role.
// Unknown roles get nothing.
func PermissionsForRole(role string) []string {
	perms, ok := rolePermissions[role]
	if !ok {
		return nil
	}
	out := make([]string, len(perms))
	copy(out, perms)
	return out
}

// ValidRole reports whether the role is one of the membership roles.
func ValidRole(role string) bool {
	_, ok := rolePermissions[role]
	return ok
}

// RoleAllows reports whether a role grants the required permission.
func RoleAllows(role, required string) bool {
	for _, pattern := range rolePermissions[role] {
		if utils.MatchesPermission(pattern, required) {
			return true
		}
	}
	return false
}

// IsAdministrative reports whether a role may use administrative overrides
// (closing records without field requirements, reopening disputes, approving
// or rejecting inspections).
func IsAdministrative(role string) bool {
	return role == RoleOwner || role == RoleAdmin
}

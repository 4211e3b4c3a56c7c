// Package rbac holds the single authoritative role hierarchy. Every
// permission check in the application goes through HasRolePermission; no
// other package may define its own ordering.
package rbac

import "strings"

type Role string

const (
	// Organization roles.
	RoleOwner  Role = "owner"
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"

	// Team roles.
	RoleManager    Role = "manager"
	RoleTechnician Role = "technician"
	RoleRequestor  Role = "requestor"
	RoleViewer     Role = "viewer"

	RoleUnknown Role = ""
)

// roleWeights is the one ordering table. An org-level "member" carries no
// team capability and ranks with viewer.
var roleWeights = map[Role]int{
	RoleOwner:      5,
	RoleAdmin:      4,
	RoleManager:    3,
	RoleTechnician: 2,
	RoleRequestor:  1,
	RoleViewer:     0,
	RoleMember:     0,
}

// orgSelectionWeights orders organization roles for default-organization
// selection only; it is not a permission ordering.
var orgSelectionWeights = map[Role]int{
	RoleOwner:  3,
	RoleAdmin:  2,
	RoleMember: 1,
}

// ParseRole normalizes a stored role string. Unrecognized values map to
// RoleUnknown, which fails every permission check.
func ParseRole(raw string) Role {
	role := Role(strings.ToLower(strings.TrimSpace(raw)))
	if _, ok := roleWeights[role]; !ok {
		return RoleUnknown
	}
	return role
}

func weight(role Role) (int, bool) {
	w, ok := roleWeights[role]
	return w, ok
}

// HasRolePermission reports whether role satisfies the required role under
// the hierarchy. Unknown roles on either side fail closed.
func HasRolePermission(role, required Role) bool {
	roleWeight, ok := weight(role)
	if !ok {
		return false
	}
	requiredWeight, ok := weight(required)
	if !ok {
		return false
	}
	return roleWeight >= requiredWeight
}

// EffectiveRole combines an organization role with an optional team role and
// returns the higher of the two.
func EffectiveRole(orgRole, teamRole Role) Role {
	orgWeight, orgOK := weight(orgRole)
	teamWeight, teamOK := weight(teamRole)
	switch {
	case !orgOK && !teamOK:
		return RoleUnknown
	case !orgOK:
		return teamRole
	case !teamOK:
		return orgRole
	case teamWeight > orgWeight:
		return teamRole
	default:
		return orgRole
	}
}

// OrgSelectionWeight orders organization roles when picking a default
// organization for a user. Unknown roles sort last.
func OrgSelectionWeight(role Role) int {
	if w, ok := orgSelectionWeights[role]; ok {
		return w
	}
	return 0
}

// IsOrgAdmin reports whether the organization role carries admin rights.
func IsOrgAdmin(orgRole Role) bool {
	return HasRolePermission(orgRole, RoleAdmin)
}

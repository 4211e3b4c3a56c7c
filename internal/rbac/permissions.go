package rbac

import "github.com/bwmarrin/snowflake"

// TeamContext describes the caller's relationship to a specific team. A nil
// TeamID on the resource means the resource is unassigned.
type TeamContext struct {
	IsMember bool
	TeamRole Role
}

// CanViewEquipment: org admins see everything; unassigned equipment is
// visible to any organization member; team-assigned equipment requires team
// membership.
func CanViewEquipment(orgRole Role, equipmentTeamID *snowflake.ID, team TeamContext) bool {
	if IsOrgAdmin(orgRole) {
		return true
	}
	if _, known := weight(orgRole); !known {
		return false
	}
	if equipmentTeamID == nil {
		return true
	}
	return team.IsMember
}

// CanEditEquipment: org admins edit everything; unassigned equipment is
// never editable by non-admins; team-assigned equipment requires team
// manage rights.
func CanEditEquipment(orgRole Role, equipmentTeamID *snowflake.ID, team TeamContext) bool {
	if IsOrgAdmin(orgRole) {
		return true
	}
	if equipmentTeamID == nil {
		return false
	}
	return team.IsMember && HasRolePermission(team.TeamRole, RoleManager)
}

// CanChangeWorkOrderStatus: org admins always; otherwise a member of the
// work order's team with at least technician capability.
func CanChangeWorkOrderStatus(orgRole Role, workOrderTeamID *snowflake.ID, team TeamContext) bool {
	if IsOrgAdmin(orgRole) {
		return true
	}
	if workOrderTeamID == nil {
		return false
	}
	return team.IsMember && HasRolePermission(EffectiveRole(orgRole, team.TeamRole), RoleTechnician)
}

// RoleChangeRequest captures who is trying to change whose team role.
type RoleChangeRequest struct {
	ActorUserID   snowflake.ID
	TargetUserID  snowflake.ID
	ActorOrgRole  Role
	ActorTeamRole Role
}

// CanChangeTeamRole implements the team role-change rule: org owners may
// change anyone, including themselves; a team manager may change others but
// not their own role. The self-block keeps a team from losing its last
// manager through a self-service demotion.
func CanChangeTeamRole(req RoleChangeRequest) bool {
	if req.ActorOrgRole == RoleOwner {
		return true
	}
	if req.ActorTeamRole != RoleManager {
		return false
	}
	return req.ActorUserID != req.TargetUserID
}

// CanChangeOrgRole: only organization owners may change organization roles.
func CanChangeOrgRole(actorOrgRole Role) bool {
	return actorOrgRole == RoleOwner
}

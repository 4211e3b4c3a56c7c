package rbac

import "testing"

var hierarchy = []Role{RoleViewer, RoleRequestor, RoleTechnician, RoleManager, RoleAdmin, RoleOwner}

func TestRoleHierarchyMonotonicity(t *testing.T) {
	for i, lower := range hierarchy {
		for j, higher := range hierarchy {
			if j <= i {
				continue
			}
			if !HasRolePermission(higher, lower) {
				t.Errorf("expected %s to satisfy %s", higher, lower)
			}
			if HasRolePermission(lower, higher) {
				t.Errorf("expected %s to fail %s", lower, higher)
			}
		}
	}
}

func TestRoleSatisfiesItself(t *testing.T) {
	for _, role := range hierarchy {
		if !HasRolePermission(role, role) {
			t.Errorf("expected %s to satisfy itself", role)
		}
	}
}

func TestUnknownRolesFailClosed(t *testing.T) {
	if HasRolePermission(RoleUnknown, RoleViewer) {
		t.Error("unknown role must not satisfy any requirement")
	}
	if HasRolePermission(Role("superadmin"), RoleViewer) {
		t.Error("unrecognized role must not satisfy any requirement")
	}
	if HasRolePermission(RoleOwner, Role("superadmin")) {
		t.Error("unrecognized requirement must never be satisfied")
	}
}

func TestParseRole(t *testing.T) {
	cases := map[string]Role{
		"owner":      RoleOwner,
		"  OWNER  ":  RoleOwner,
		"Manager":    RoleManager,
		"technician": RoleTechnician,
		"":           RoleUnknown,
		"root":       RoleUnknown,
	}
	for raw, want := range cases {
		if got := ParseRole(raw); got != want {
			t.Errorf("ParseRole(%q) = %q, want %q", raw, got, want)
		}
	}
}

func TestEffectiveRole(t *testing.T) {
	cases := []struct {
		org, team, want Role
	}{
		{RoleMember, RoleManager, RoleManager},
		{RoleAdmin, RoleManager, RoleAdmin},
		{RoleOwner, RoleViewer, RoleOwner},
		{RoleMember, RoleUnknown, RoleMember},
		{RoleUnknown, RoleTechnician, RoleTechnician},
		{RoleUnknown, RoleUnknown, RoleUnknown},
	}
	for _, tc := range cases {
		if got := EffectiveRole(tc.org, tc.team); got != tc.want {
			t.Errorf("EffectiveRole(%q, %q) = %q, want %q", tc.org, tc.team, got, tc.want)
		}
	}
}

func TestOrgSelectionWeightOrdersOwnerFirst(t *testing.T) {
	if OrgSelectionWeight(RoleOwner) <= OrgSelectionWeight(RoleAdmin) {
		t.Error("owner must outrank admin for default-org selection")
	}
	if OrgSelectionWeight(RoleAdmin) <= OrgSelectionWeight(RoleMember) {
		t.Error("admin must outrank member for default-org selection")
	}
	if OrgSelectionWeight(Role("bogus")) != 0 {
		t.Error("unknown role must sort last")
	}
}

package workflow

import "testing"

func TestRoleAllows(t *testing.T) {
	tests := []struct {
		role     string
		required string
		expected bool
	}{
		{RoleOwner, "ncr:delete", true},
		{RoleAdmin, "member:create", true},
		{RoleProjectManager, "ncr:transition", true},
		{RoleProjectManager, "member:create", false},
		{RoleInspector, "itp:record", true},
		{RoleInspector, "itp:approve", false},
		{RoleInspector, "ncr:update", true},
		{RoleContractor, "ncr:read", true},
		{RoleContractor, "ncr:update", false},
		{RoleViewer, "report:read", true},
		{RoleViewer, "itp:record", false},
		{"unknown_role", "ncr:read", false},
	}

	for _, tt := range tests {
		t.Run(tt.role+"/"+tt.required, func(t *testing.T) {
			if got := RoleAllows(tt.role, tt.required); got != tt.expected {
				t.Errorf("RoleAllows(%q, %q) = %v, expected %v", tt.role, tt.required, got, tt.expected)
			}
		})
	}
}

func TestIsAdministrative(t *testing.T) {
	for role, want := range map[string]bool{
		RoleOwner:          true,
		RoleAdmin:          true,
		RoleProjectManager: false,
		RoleInspector:      false,
		RoleContractor:     false,
		RoleViewer:         false,
	} {
		if got := IsAdministrative(role); got != want {
			t.Errorf("IsAdministrative(%q) = %v, expected %v", role, got, want)
		}
	}
}

func TestPermissionsForRole_CopiesCatalog(t *testing.T) {
	perms := PermissionsForRole(RoleInspector)
	if len(perms) == 0 {
		t.Fatal("inspector should have permissions")
	}
	perms[0] = "tampered"
	if PermissionsForRole(RoleInspector)[0] == "tampered" {
		t.Error("PermissionsForRole must return a copy")
	}
}

package utils

import "testing"

func TestMatchesPermission(t *testing.T) {
	tests := []struct {
		name         string
		userPerm     string
		requiredPerm string
		expected     bool
	}{
		// Exact matches
		{"exact match same permission", "ncr:create", "ncr:create", true},
		{"exact match different action", "ncr:create", "ncr:read", false},
		{"exact match different resource", "ncr:create", "itp:create", false},

		// Full wildcard tests
		{"full wildcard *:*:*", "*:*:*", "ncr:create", true},
		{"full wildcard *", "*", "anything:goes", true},
		{"full wildcard matches all resources", "*:*:*", "itp:record", true},
		{"full wildcard matches all actions", "*:*:*", "report:export", true},

		// Resource wildcard tests
		{"resource wildcard matches create", "ncr:*", "ncr:create", true},
		{"resource wildcard matches read", "ncr:*", "ncr:read", true},
		{"resource wildcard matches transition", "ncr:*", "ncr:transition", true},
		{"resource wildcard doesn't match different resource", "ncr:*", "itp:record", false},

		// Action wildcard tests
		{"action wildcard matches ncr", "*:read", "ncr:read", true},
		{"action wildcard matches itp", "*:read", "itp:read", true},
		{"action wildcard matches report", "*:read", "report:read", true},
		{"action wildcard doesn't match different action", "*:read", "ncr:create", false},

		// Complex patterns
		{"wildcard both ways resource", "itp:*", "itp:approve", true},
		{"wildcard both ways action", "*:delete", "template:delete", true},

		// Old format backward compatibility
		{"old format exact match", "read_reports", "read_reports", true},
		{"old format no match", "read_reports", "create_reports", false},
		{"old format with wildcard", "*:*:*", "old_format_perm", true},

		// Edge cases
		{"empty required permission", "ncr:create", "", false},
		{"empty user permission", "", "ncr:create", false},
		{"both empty", "", "", true},
		{"single part permission", "admin", "admin", true},
		{"single part vs multi-part", "admin", "admin:read", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := MatchesPermission(tt.userPerm, tt.requiredPerm)
			if result != tt.expected {
				t.Errorf("MatchesPermission(%q, %q) = %v, expected %v",
					tt.userPerm, tt.requiredPerm, result, tt.expected)
			}
		})
	}
}

func TestMatchesPermission_RoleScenarios(t *testing.T) {
	tests := []struct {
		name      string
		userRole  string
		userPerms []string
		required  string
		expected  bool
	}{
		{
			name:      "owner has all access",
			userRole:  "owner",
			userPerms: []string{"*"},
			required:  "ncr:delete",
			expected:  true,
		},
		{
			name:      "project manager has all ncr permissions",
			userRole:  "project_manager",
			userPerms: []string{"ncr:*"},
			required:  "ncr:transition",
			expected:  true,
		},
		{
			name:      "project manager cannot manage members",
			userRole:  "project_manager",
			userPerms: []string{"ncr:*", "itp:*"},
			required:  "member:create",
			expected:  false,
		},
		{
			name:      "viewer has read-only access",
			userRole:  "viewer",
			userPerms: []string{"*:read"},
			required:  "itp:read",
			expected:  true,
		},
		{
			name:      "viewer cannot record results",
			userRole:  "viewer",
			userPerms: []string{"*:read"},
			required:  "itp:record",
			expected:  false,
		},
		{
			name:      "inspector records results with specific grant",
			userRole:  "inspector",
			userPerms: []string{"itp:read", "itp:record"},
			required:  "itp:record",
			expected:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hasPermission := false
			for _, userPerm := range tt.userPerms {
				if MatchesPermission(userPerm, tt.required) {
					hasPermission = true
					break
				}
			}

			if hasPermission != tt.expected {
				t.Errorf("User with role %q and permissions %v: expected %v for %q, got %v",
					tt.userRole, tt.userPerms, tt.expected, tt.required, hasPermission)
			}
		})
	}
}

func BenchmarkMatchesPermission_ExactMatch(b *testing.B) {
	for i := 0; i < b.N; i++ {
		MatchesPermission("ncr:create", "ncr:create")
	}
}

func BenchmarkMatchesPermission_WildcardMatch(b *testing.B) {
	for i := 0; i < b.N; i++ {
		MatchesPermission("*:*:*", "ncr:create")
	}
}

func BenchmarkMatchesPermission_ResourceWildcard(b *testing.B) {
	for i := 0; i < b.N; i++ {
		MatchesPermission("ncr:*", "ncr:create")
	}
}

package auth

import (
	"errors"
	"testing"

	"github.com/nimbusvm/clusterconf/pkg/confutil"
)

func TestContext_Chaining(t *testing.T) {
	ctx := NewContext().
		WithECID("ec-1").
		WithEntity("instance", "inst-uuid-1").
		WithResource("default")

	if ctx.ECID != "ec-1" {
		t.Errorf("ECID = %q", ctx.ECID)
	}
	if ctx.Entity != "instance" {
		t.Errorf("Entity = %q", ctx.Entity)
	}
	if ctx.EntityID != "inst-uuid-1" {
		t.Errorf("EntityID = %q", ctx.EntityID)
	}
	if ctx.Resource != "default" {
		t.Errorf("Resource = %q", ctx.Resource)
	}
}

func createTestPolicy() *Policy {
	return &Policy{
		SuperUsers: []string{"admin", "root"},
		UserGroups: map[string][]string{
			"clusterops": {"alice", "bob"},
			"operators":  {"charlie", "diana"},
			"viewer":     {"eve"},
		},
		Permissions: map[string][]string{
			"all":              {"clusterops"},
			"instance.add":     {"clusterops", "operators"},
			"instance.remove":  {"clusterops", "operators", "viewer"},
			"nodegroup.create": {"clusterops"},
			"config.view":      {"clusterops", "operators", "viewer"},
		},
		NodeGroupPermissions: map[string]map[string][]string{
			"restricted-pool": {
				"instance.add": {"operators"}, // more restrictive
			},
			"default": {
				"all": {"clusterops"}, // only clusterops
			},
		},
	}
}

func TestChecker_SuperUser(t *testing.T) {
	policy := createTestPolicy()
	checker := NewChecker(policy)
	checker.SetUser("admin")

	// Superuser should pass all checks
	if err := checker.Check(PermInstanceAdd, nil); err != nil {
		t.Errorf("Superuser should be allowed: %v", err)
	}
	if err := checker.Check(PermConfigView, nil); err != nil {
		t.Errorf("Superuser should be allowed: %v", err)
	}

	if !checker.IsSuperUser() {
		t.Error("admin should be superuser")
	}
}

func TestChecker_GlobalPermissions(t *testing.T) {
	policy := createTestPolicy()
	checker := NewChecker(policy)

	t.Run("user in allowed group", func(t *testing.T) {
		checker.SetUser("alice") // In clusterops
		if err := checker.Check(PermInstanceAdd, nil); err != nil {
			t.Errorf("alice (clusterops) should have instance.add: %v", err)
		}
	})

	t.Run("user with 'all' permission", func(t *testing.T) {
		checker.SetUser("bob") // In clusterops which has 'all'
		if err := checker.Check(PermNodeGroupCreate, nil); err != nil {
			t.Errorf("bob (clusterops with 'all') should have nodegroup.create: %v", err)
		}
	})

	t.Run("user without permission", func(t *testing.T) {
		checker.SetUser("eve") // In viewer only
		if err := checker.Check(PermInstanceAdd, nil); err == nil {
			t.Error("eve (viewer) should not have instance.add")
		}
	})
}

func TestChecker_NodeGroupPermissions(t *testing.T) {
	policy := createTestPolicy()
	checker := NewChecker(policy)

	t.Run("nodegroup-specific override", func(t *testing.T) {
		checker.SetUser("charlie") // In operators
		ctx := NewContext().WithResource("restricted-pool")

		// charlie should have instance.add for restricted-pool (override)
		if err := checker.Check(PermInstanceAdd, ctx); err != nil {
			t.Errorf("charlie should have permission via nodegroup override: %v", err)
		}
	})

	t.Run("nodegroup with 'all' permission", func(t *testing.T) {
		checker.SetUser("alice") // In clusterops
		ctx := NewContext().WithResource("default")

		// alice should have any permission on default pool (has 'all' for clusterops)
		if err := checker.Check(PermInstanceAdd, ctx); err != nil {
			t.Errorf("alice should have permission via nodegroup 'all': %v", err)
		}
	})

	t.Run("no nodegroup permission falls back to global", func(t *testing.T) {
		checker.SetUser("diana") // In operators
		ctx := NewContext().WithResource("default")

		// diana is operators, default pool has no operators permission, but global does
		if err := checker.Check(PermInstanceAdd, ctx); err != nil {
			t.Errorf("diana should have permission via global fallback: %v", err)
		}
	})
}

func TestChecker_PermissionError(t *testing.T) {
	policy := createTestPolicy()
	checker := NewChecker(policy)
	checker.SetUser("eve")

	ctx := NewContext().WithResource("restricted-pool").WithEntity("instance", "inst-1")
	err := checker.Check(PermInstanceAdd, ctx)

	if err == nil {
		t.Fatal("Expected error")
	}

	var permErr *PermissionError
	if !errors.As(err, &permErr) {
		t.Fatalf("Expected PermissionError, got %T", err)
	}

	if permErr.User != "eve" {
		t.Errorf("User = %q", permErr.User)
	}
	if permErr.Permission != PermInstanceAdd {
		t.Errorf("Permission = %q", permErr.Permission)
	}

	// Check error message
	msg := err.Error()
	if msg == "" {
		t.Error("Error message should not be empty")
	}

	// Check unwrap
	if !errors.Is(err, confutil.ErrPermissionDenied) {
		t.Error("Should unwrap to ErrPermissionDenied")
	}
}

func TestChecker_ListPermissions(t *testing.T) {
	policy := createTestPolicy()
	checker := NewChecker(policy)

	t.Run("superuser", func(t *testing.T) {
		checker.SetUser("admin")
		perms := checker.ListPermissions()
		if len(perms) != 1 || perms[0] != PermAll {
			t.Errorf("Superuser should have PermAll only, got %v", perms)
		}
	})

	t.Run("regular user", func(t *testing.T) {
		checker.SetUser("eve") // In viewer
		perms := checker.ListPermissions()

		permMap := make(map[Permission]bool)
		for _, p := range perms {
			permMap[p] = true
		}

		if !permMap[PermInstanceRemove] {
			t.Error("eve should have instance.remove")
		}
		if !permMap[PermConfigView] {
			t.Error("eve should have config.view")
		}
		if permMap[PermInstanceAdd] {
			t.Error("eve should not have instance.add")
		}
	})
}

func TestChecker_GetUserGroups(t *testing.T) {
	policy := createTestPolicy()
	checker := NewChecker(policy)

	groups := checker.GetUserGroups("alice")
	if len(groups) != 1 || groups[0] != "clusterops" {
		t.Errorf("alice groups = %v, want [clusterops]", groups)
	}

	groups = checker.GetUserGroups("unknown")
	if len(groups) != 0 {
		t.Errorf("unknown user should have no groups, got %v", groups)
	}
}

func TestChecker_DirectUserPermission(t *testing.T) {
	policy := &Policy{
		Permissions: map[string][]string{
			"instance.add": {"direct-user"}, // Direct user, not a group
		},
	}
	checker := NewChecker(policy)
	checker.SetUser("direct-user")

	if err := checker.Check(PermInstanceAdd, nil); err != nil {
		t.Errorf("Direct user permission should work: %v", err)
	}
}

func TestChecker_CurrentUser(t *testing.T) {
	policy := createTestPolicy()
	checker := NewChecker(policy)

	// Initially should have some username (from os/user)
	if checker.CurrentUser() == "" {
		t.Error("CurrentUser should not be empty after NewChecker")
	}

	// After SetUser, should return the set user
	checker.SetUser("test-user")
	if checker.CurrentUser() != "test-user" {
		t.Errorf("CurrentUser() = %q, want %q", checker.CurrentUser(), "test-user")
	}
}

func TestChecker_NodeGroupWithNilPermissions(t *testing.T) {
	policy := &Policy{
		SuperUsers: []string{},
		UserGroups: map[string][]string{
			"clusterops": {"alice"},
		},
		Permissions: map[string][]string{
			"instance.add": {"clusterops"},
		},
		NodeGroupPermissions: map[string]map[string][]string{
			"no-perms-pool": nil, // Explicitly nil
		},
	}
	checker := NewChecker(policy)
	checker.SetUser("alice")

	// Should fall back to global permissions
	ctx := NewContext().WithResource("no-perms-pool")
	if err := checker.Check(PermInstanceAdd, ctx); err != nil {
		t.Errorf("Should fall back to global permission: %v", err)
	}
}

func TestChecker_GlobalPermissionNotFound(t *testing.T) {
	policy := &Policy{
		SuperUsers:  []string{},
		UserGroups:  map[string][]string{},
		Permissions: map[string][]string{}, // No permissions defined
	}
	checker := NewChecker(policy)
	checker.SetUser("anyone")

	err := checker.Check(PermInstanceAdd, nil)
	if err == nil {
		t.Error("Should be denied when no permissions defined")
	}
}

func TestChecker_GlobalAllPermissionNotGranted(t *testing.T) {
	// Test case where 'all' permission exists but user is not in those groups
	policy := &Policy{
		SuperUsers: []string{},
		UserGroups: map[string][]string{
			"admins": {"admin-user"},
			"users":  {"normal-user"},
		},
		Permissions: map[string][]string{
			"all": {"admins"}, // Only admins have 'all'
		},
	}
	checker := NewChecker(policy)
	checker.SetUser("normal-user")

	// normal-user should be denied (not in admins group)
	err := checker.Check(PermInstanceAdd, nil)
	if err == nil {
		t.Error("normal-user should not have permission via 'all'")
	}
}

func TestChecker_NodeGroupAllPermissionNotGranted(t *testing.T) {
	policy := &Policy{
		SuperUsers: []string{},
		UserGroups: map[string][]string{
			"admins": {"admin-user"},
			"users":  {"normal-user"},
		},
		Permissions: map[string][]string{},
		NodeGroupPermissions: map[string]map[string][]string{
			"restricted": {
				"all": {"admins"}, // Only admins have 'all' on this pool
			},
		},
	}
	checker := NewChecker(policy)
	checker.SetUser("normal-user")

	ctx := NewContext().WithResource("restricted")
	err := checker.Check(PermInstanceAdd, ctx)
	if err == nil {
		t.Error("normal-user should not have permission via nodegroup 'all'")
	}
}

func TestPermissionError_ContextVariations(t *testing.T) {
	t.Run("nil context", func(t *testing.T) {
		err := &PermissionError{
			User:       "alice",
			Permission: PermInstanceAdd,
			Context:    nil,
		}
		msg := err.Error()
		if msg == "" {
			t.Error("Error message should not be empty")
		}
		if contains(msg, " on ") || contains(msg, " in '") {
			t.Error("Should not mention entity/resource when context is nil")
		}
	})

	t.Run("context with entity only", func(t *testing.T) {
		err := &PermissionError{
			User:       "alice",
			Permission: PermInstanceAdd,
			Context:    &Context{Entity: "instance", EntityID: "inst-1"},
		}
		msg := err.Error()
		if !contains(msg, "inst-1") {
			t.Error("Should mention entity id")
		}
	})

	t.Run("context with resource only", func(t *testing.T) {
		err := &PermissionError{
			User:       "alice",
			Permission: PermInstanceAdd,
			Context:    &Context{Resource: "default"},
		}
		msg := err.Error()
		if !contains(msg, "default") {
			t.Error("Should mention resource name")
		}
	})

	t.Run("context with both entity and resource", func(t *testing.T) {
		err := &PermissionError{
			User:       "alice",
			Permission: PermInstanceAdd,
			Context:    &Context{Entity: "instance", EntityID: "inst-1", Resource: "pool1"},
		}
		msg := err.Error()
		if !contains(msg, "inst-1") || !contains(msg, "pool1") {
			t.Error("Should mention both entity and resource")
		}
	})
}

func contains(s, substr string) bool {
	return len(s) >= len(substr) && (s == substr || len(s) > 0 && containsHelper(s, substr))
}

func containsHelper(s, substr string) bool {
	for i := 0; i <= len(s)-len(substr); i++ {
		if s[i:i+len(substr)] == substr {
			return true
		}
	}
	return false
}

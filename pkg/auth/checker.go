package auth

import (
	"fmt"
	"os/user"
	"slices"

	"github.com/nimbusvm/clusterconf/pkg/confutil"
)

// Policy holds the access-control configuration a Checker enforces: who is
// a superuser, which permissions are granted globally, which users belong
// to which groups, and any per-nodegroup permission overrides.
type Policy struct {
	// SuperUsers bypass every permission check.
	SuperUsers []string

	// Permissions maps a permission name (or "all") to the usernames and
	// group names allowed to exercise it.
	Permissions map[string][]string

	// UserGroups maps a group name to its member usernames.
	UserGroups map[string][]string

	// NodeGroupPermissions overrides Permissions for checks scoped to a
	// specific node group named in Context.Resource.
	NodeGroupPermissions map[string]map[string][]string
}

// Checker validates user permissions against a Policy
type Checker struct {
	policy      *Policy
	currentUser string
}

// NewChecker creates a permission checker enforcing policy. The current
// user defaults to the OS user running the process.
func NewChecker(policy *Policy) *Checker {
	username := "unknown"
	if u, err := user.Current(); err == nil {
		username = u.Username
	}

	return &Checker{
		policy:      policy,
		currentUser: username,
	}
}

// SetUser overrides the current user (for testing or sudo)
func (c *Checker) SetUser(username string) {
	c.currentUser = username
}

// CurrentUser returns the current username
func (c *Checker) CurrentUser() string {
	return c.currentUser
}

// Check verifies if the current user has a permission
func (c *Checker) Check(permission Permission, ctx *Context) error {
	return c.CheckUser(c.currentUser, permission, ctx)
}

// CheckUser verifies if a specific user has a permission
func (c *Checker) CheckUser(username string, permission Permission, ctx *Context) error {
	// Superusers can do anything
	if c.isSuperUser(username) {
		return nil
	}

	// Check node-group-scoped overrides first
	if ctx != nil && ctx.Resource != "" {
		if overrides, ok := c.policy.NodeGroupPermissions[ctx.Resource]; ok {
			if c.checkPermissionMap(username, permission, overrides) {
				return nil
			}
		}
	}

	// Check global permissions
	if c.checkGlobalPermission(username, permission) {
		return nil
	}

	return &PermissionError{
		User:       username,
		Permission: permission,
		Context:    ctx,
	}
}

// IsSuperUser returns true if the current user is a superuser
func (c *Checker) IsSuperUser() bool {
	return c.isSuperUser(c.currentUser)
}

func (c *Checker) isSuperUser(username string) bool {
	return slices.Contains(c.policy.SuperUsers, username)
}

func (c *Checker) checkGlobalPermission(username string, permission Permission) bool {
	return c.checkPermissionMap(username, permission, c.policy.Permissions)
}

// checkPermissionMap checks whether username has the given permission in permMap.
// It first checks the "all" wildcard key, then the specific permission key.
func (c *Checker) checkPermissionMap(username string, permission Permission, permMap map[string][]string) bool {
	// Check for "all" permission first
	if groups, ok := permMap[string(PermAll)]; ok {
		if c.userInGroups(username, groups) {
			return true
		}
	}

	// Check specific permission
	groups, ok := permMap[string(permission)]
	if !ok {
		return false
	}

	return c.userInGroups(username, groups)
}

func (c *Checker) userInGroups(username string, allowedGroups []string) bool {
	for _, group := range allowedGroups {
		if group == username {
			return true
		}
		if members, ok := c.policy.UserGroups[group]; ok {
			if slices.Contains(members, username) {
				return true
			}
		}
	}
	return false
}

// ListPermissions returns every permission the current user holds
// globally. A superuser's list is always just [PermAll].
func (c *Checker) ListPermissions() []Permission {
	if c.IsSuperUser() {
		return []Permission{PermAll}
	}

	var perms []Permission
	for permStr, groups := range c.policy.Permissions {
		if permStr == string(PermAll) {
			continue
		}
		if c.userInGroups(c.currentUser, groups) {
			perms = append(perms, Permission(permStr))
		}
	}
	return perms
}

// GetUserGroups returns the groups username belongs to.
func (c *Checker) GetUserGroups(username string) []string {
	var groups []string
	for group, members := range c.policy.UserGroups {
		if slices.Contains(members, username) {
			groups = append(groups, group)
		}
	}
	return groups
}

// PermissionError represents a permission denial
type PermissionError struct {
	User       string
	Permission Permission
	Context    *Context
}

func (e *PermissionError) Error() string {
	msg := fmt.Sprintf("permission denied: user '%s' does not have '%s' permission", e.User, e.Permission)
	if e.Context != nil {
		if e.Context.Entity != "" {
			msg += fmt.Sprintf(" on %s '%s'", e.Context.Entity, e.Context.EntityID)
		}
		if e.Context.Resource != "" {
			msg += fmt.Sprintf(" in '%s'", e.Context.Resource)
		}
	}
	return msg
}

func (e *PermissionError) Unwrap() error {
	return confutil.ErrPermissionDenied
}

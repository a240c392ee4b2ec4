// Package auth provides permission-based access control over the
// configuration store.
package auth

// Permission defines an action that can be controlled
type Permission string

// Standard permissions
const (
	PermNodeAdd    Permission = "node.add"
	PermNodeRemove Permission = "node.remove"
	PermNodeModify Permission = "node.modify"
	PermNodeView   Permission = "node.view"

	PermInstanceAdd    Permission = "instance.add"
	PermInstanceRemove Permission = "instance.remove"
	PermInstanceModify Permission = "instance.modify"
	PermInstanceView   Permission = "instance.view"

	PermNodeGroupCreate Permission = "nodegroup.create"
	PermNodeGroupModify Permission = "nodegroup.modify"
	PermNodeGroupDelete Permission = "nodegroup.delete"
	PermNodeGroupView   Permission = "nodegroup.view"

	PermNetworkCreate Permission = "network.create"
	PermNetworkModify Permission = "network.modify"
	PermNetworkDelete Permission = "network.delete"
	PermNetworkView   Permission = "network.view"

	PermClusterConfigure Permission = "cluster.configure"
	PermClusterView      Permission = "cluster.view"

	PermLockDFlush Permission = "lockd.flush"

	PermConfigView Permission = "config.view"
	PermAuditView  Permission = "audit.view"

	PermAll Permission = "all" // Superuser - allows everything
)

// PermissionCategory groups related permissions
type PermissionCategory struct {
	Name        string
	Description string
	Permissions []Permission
}

// StandardCategories defines standard permission categories
var StandardCategories = []PermissionCategory{
	{
		Name:        "node",
		Description: "Node membership",
		Permissions: []Permission{PermNodeAdd, PermNodeRemove, PermNodeModify, PermNodeView},
	},
	{
		Name:        "instance",
		Description: "Instance lifecycle",
		Permissions: []Permission{PermInstanceAdd, PermInstanceRemove, PermInstanceModify, PermInstanceView},
	},
	{
		Name:        "nodegroup",
		Description: "Node group management",
		Permissions: []Permission{PermNodeGroupCreate, PermNodeGroupModify, PermNodeGroupDelete, PermNodeGroupView},
	},
	{
		Name:        "network",
		Description: "Network definitions",
		Permissions: []Permission{PermNetworkCreate, PermNetworkModify, PermNetworkDelete, PermNetworkView},
	},
	{
		Name:        "cluster",
		Description: "Cluster-wide settings",
		Permissions: []Permission{PermClusterConfigure, PermClusterView},
	},
	{
		Name:        "lockd",
		Description: "Reservation/lock administration",
		Permissions: []Permission{PermLockDFlush},
	},
	{
		Name:        "config",
		Description: "Raw configuration access",
		Permissions: []Permission{PermConfigView},
	},
	{
		Name:        "audit",
		Description: "Audit log access",
		Permissions: []Permission{PermAuditView},
	},
}

// Context provides context for permission checks: the entity a permission
// is being checked against, and the reservation it runs under, if any.
type Context struct {
	ECID     string
	Entity   string
	EntityID string
	Resource string
}

// NewContext creates a new permission context
func NewContext() *Context {
	return &Context{}
}

// WithECID sets the execution context ID
func (c *Context) WithECID(ecID string) *Context {
	c.ECID = ecID
	return c
}

// WithEntity sets the entity kind and ID being acted on
func (c *Context) WithEntity(kind, id string) *Context {
	c.Entity = kind
	c.EntityID = id
	return c
}

// WithResource sets a generic resource context
func (c *Context) WithResource(resource string) *Context {
	c.Resource = resource
	return c
}

// IsReadOnly returns true if the permission is read-only
func (p Permission) IsReadOnly() bool {
	switch p {
	case PermNodeView, PermInstanceView, PermNodeGroupView, PermNetworkView,
		PermClusterView, PermConfigView, PermAuditView:
		return true
	}
	return false
}

// IsWriteOperation returns true if the permission involves modification
func (p Permission) IsWriteOperation() bool {
	return !p.IsReadOnly()
}

// RequiresLock returns true if the permission requires an exclusive session
func (p Permission) RequiresLock() bool {
	return p.IsWriteOperation()
}

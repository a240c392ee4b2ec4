// Package entity defines the cluster configuration graph: the typed
// records for Cluster, NodeGroup, Node, Instance, Disk, NIC, and Network,
// their JSON dict serialization, and their per-entity upgrade/verify hooks.
package entity

// CurrentConfigVersion is the config format version this build writes and
// the only version it will load without a ConfigVersionMismatchError.
const CurrentConfigVersion = 2090000

// LastDRBDPort is the upper bound (exclusive) of the TCP/UDP port range
// AllocatePort draws from once the free-port pool is empty.
const LastDRBDPort = 20000

// InitialNodeGroupName is the name given to the default node group created
// by upgrade-on-load when a cluster has none.
const InitialNodeGroupName = "default"

// AdminState is the administrative power state of an instance.
type AdminState string

const (
	AdminStateUp      AdminState = "up"
	AdminStateDown    AdminState = "down"
	AdminStateOffline AdminState = "offline"
)

// Valid reports whether a is one of the recognized admin states.
func (a AdminState) Valid() bool {
	switch a {
	case AdminStateUp, AdminStateDown, AdminStateOffline:
		return true
	}
	return false
}

// AdminStateSource records who last changed an instance's AdminState.
type AdminStateSource string

const (
	AdminSourceAdmin AdminStateSource = "admin"
	AdminSourceUser  AdminStateSource = "user"
)

// Valid reports whether s is a recognized admin-state source.
func (s AdminStateSource) Valid() bool {
	switch s {
	case AdminSourceAdmin, AdminSourceUser:
		return true
	}
	return false
}

// DiskTemplate names a disk backing kind, also used as the key into
// Cluster.DiskParams and as a member of Cluster.EnabledDiskTemplates.
type DiskTemplate string

const (
	DiskTemplatePlain      DiskTemplate = "plain"
	DiskTemplateDRBD8      DiskTemplate = "drbd8"
	DiskTemplateFile       DiskTemplate = "file"
	DiskTemplateSharedFile DiskTemplate = "shared_file"
	DiskTemplateBlockdev   DiskTemplate = "blockdev"
	DiskTemplateRBD        DiskTemplate = "rbd"
	DiskTemplateExt        DiskTemplate = "ext"
	DiskTemplateGluster    DiskTemplate = "gluster"
	DiskTemplateDiskless   DiskTemplate = "diskless"
)

// HypervisorTypes lists every hypervisor name the cluster can enumerate in
// Cluster.HVParams/EnabledHypervisors, mirroring constants.HYPER_TYPES.
var HypervisorTypes = []string{"kvm", "xen-pvm", "xen-hvm", "lxc", "chroot", "fake"}

// NICMode is the networking mode of a NIC.
type NICMode string

const (
	NICModeBridged  NICMode = "bridged"
	NICModeRouted   NICMode = "routed"
	NICModeOVS      NICMode = "openvswitch"
	NICModeNetwork  NICMode = "network"
)

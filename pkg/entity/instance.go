package entity

import (
	"strconv"

	"github.com/nimbusvm/clusterconf/pkg/confutil"
)

// NIC is a single virtual network interface attached to an instance.
type NIC struct {
	UUID string `json:"uuid"`
	Name string `json:"name,omitempty"`

	MAC     string  `json:"mac"`
	IP      string  `json:"ip,omitempty"`
	Network string  `json:"network,omitempty"`
	Mode    NICMode `json:"mode,omitempty"`
	Link    string  `json:"link,omitempty"`

	NICParams map[string]string `json:"nicparams,omitempty"`
}

// Instance is a single virtual machine and its full resource attachment:
// an ordered list of Disk UUIDs (the disks themselves live in the
// top-level graph's Disks map, keyed by UUID, same as every other
// entity), NICs, and hypervisor/backend parameter overrides.
type Instance struct {
	TimestampedObject
	Taggable

	UUID string `json:"uuid"`
	Name string `json:"name"`

	PrimaryNode    string   `json:"primary_node"`
	SecondaryNodes []string `json:"secondary_nodes,omitempty"`

	OS         string `json:"os"`
	Hypervisor string `json:"hypervisor"`

	AdminState       AdminState       `json:"admin_state"`
	AdminStateSource AdminStateSource `json:"admin_state_source"`

	DiskTemplate DiskTemplate `json:"disk_template"`
	// Disks is the ordered list of Disk UUIDs attached to this instance;
	// position determines each disk's iv_name ("disk/<index>").
	Disks       []string `json:"disks"`
	DisksActive bool     `json:"disks_active"`

	NICs []*NIC `json:"nics"`

	HVParams map[string]string `json:"hvparams,omitempty"`
	BEParams map[string]string `json:"beparams,omitempty"`
	OSParams map[string]string `json:"osparams,omitempty"`

	NetworkPort int `json:"network_port,omitempty"`
}

// GetUUID returns the instance's UUID.
func (i *Instance) GetUUID() string { return i.UUID }

// ToDict serializes the instance to its canonical dict form.
func (i *Instance) ToDict() (Dict, error) { return toDict(i) }

// FromDict populates the instance from its canonical dict form.
func (i *Instance) FromDict(d Dict) error { return fromDict(d, i) }

// NewInstance constructs a stopped Instance with a fresh UUID.
func NewInstance(name, primaryNode, os, hypervisor string, template DiskTemplate, now float64) *Instance {
	inst := &Instance{
		UUID:             confutil.NewUUID(),
		Name:             name,
		PrimaryNode:      primaryNode,
		OS:               os,
		Hypervisor:       hypervisor,
		AdminState:       AdminStateDown,
		AdminStateSource: AdminSourceAdmin,
		DiskTemplate:     template,
		Disks:            []string{},
		NICs:             []*NIC{},
		DisksActive:      false,
	}
	inst.initTimestamps(now)
	inst.Tags = NewStringSet()
	return inst
}

// AttachDisk inserts diskUUID at position idx, shifting later disks down.
// idx == nil means append (the common case); a negative idx or one past
// len(Disks) is rejected. Mirrors _UnlockedAttachInstanceDisk, including
// its insistence that a disk not already be attached to any instance.
//
// disks is the owning graph's Disk registry: it is consulted to enforce
// the "not attached elsewhere" rule and to renumber IVName on every disk
// from idx onward.
func (i *Instance) AttachDisk(diskUUID string, idx *int, disks map[string]*Disk, allInstances map[string]*Instance) error {
	pos := len(i.Disks)
	if idx != nil {
		if *idx < 0 {
			return confutil.NewOpPrereqErrorf(confutil.ECodeInval, "not accepting negative disk indices")
		}
		if *idx > len(i.Disks) {
			return confutil.NewOpPrereqErrorf(confutil.ECodeInval,
				"got disk index %d, but there are only %d disks", *idx, len(i.Disks))
		}
		pos = *idx
	}

	for _, other := range allInstances {
		for _, uuid := range other.Disks {
			if uuid == diskUUID {
				return confutil.NewReservationError("disk", diskUUID)
			}
		}
	}

	if d, ok := disks[diskUUID]; ok {
		d.Instance = i.UUID
	}
	i.Disks = append(i.Disks, "")
	copy(i.Disks[pos+1:], i.Disks[pos:])
	i.Disks[pos] = diskUUID
	i.renumberDiskNamesFrom(pos, disks)
	return nil
}

// DetachDisk removes diskUUID from this instance's disk list, wherever it
// currently sits, and renumbers the IVName of every disk from that
// position onward. It does not delete the Disk record itself — callers
// that want it gone entirely (RemoveInstanceDisk) also drop it from the
// graph's Disks map. Mirrors _UnlockedDetachInstanceDisk.
func (i *Instance) DetachDisk(diskUUID string, disks map[string]*Disk) error {
	idx := -1
	for pos, uuid := range i.Disks {
		if uuid == diskUUID {
			idx = pos
			break
		}
	}
	if idx == -1 {
		return confutil.NewProgrammerErrorf("disk %s is not attached to instance %s", diskUUID, i.UUID)
	}

	i.Disks = append(i.Disks[:idx], i.Disks[idx+1:]...)
	if d, ok := disks[diskUUID]; ok {
		d.Instance = ""
	}
	i.renumberDiskNamesFrom(idx, disks)
	return nil
}

// renumberDiskNamesFrom keeps every attached disk's IVName ("disk/N") in
// sync with its current position, starting at idx, matching the
// original's targeted _UpdateIvNames(idx, disks[idx:]) call.
func (i *Instance) renumberDiskNamesFrom(idx int, disks map[string]*Disk) {
	for pos := idx; pos < len(i.Disks); pos++ {
		if d, ok := disks[i.Disks[pos]]; ok {
			d.IVName = diskIVName(pos)
		}
	}
}

func diskIVName(idx int) string {
	return "disk/" + strconv.Itoa(idx)
}

// UpgradeConfig fills defaults introduced after this record's version.
// Per-disk upgrades happen through the graph's top-level Disks map, not
// here, since Instance no longer embeds disk objects.
func (i *Instance) UpgradeConfig() {
	if i.Tags == nil {
		i.Tags = NewStringSet()
	}
	if i.AdminStateSource == "" {
		i.AdminStateSource = AdminSourceAdmin
	}
}

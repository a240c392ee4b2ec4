package store

import (
	"context"
	"strings"

	"github.com/nimbusvm/clusterconf/pkg/confutil"
	"github.com/nimbusvm/clusterconf/pkg/entity"
)

func nicMACs(inst *entity.Instance) []string {
	macs := make([]string, 0, len(inst.NICs))
	for _, nic := range inst.NICs {
		if nic.MAC != "" {
			macs = append(macs, nic.MAC)
		}
	}
	return macs
}

// AddInstance registers inst, enforcing name/UUID/MAC uniqueness across
// the whole cluster within a single check: online, this is delegated to
// LockD's combined AddInstance RPC; offline, there is no other process to
// race against, so the same checks run directly against the in-memory
// graph.
func (s *Store) AddInstance(ctx context.Context, ecID string, inst *entity.Instance) error {
	return s.withExclusive(ctx, ecID, func(g *entity.ConfigData) error {
		if s.sessions.IsOffline() {
			if err := checkInstanceUniqueLocal(g, inst); err != nil {
				return err
			}
		} else if err := s.reservations.AddInstance(ctx, ecID, inst.Name, inst.UUID, nicMACs(inst)); err != nil {
			return err
		}
		if _, ok := g.Nodes[inst.PrimaryNode]; !ok {
			return confutil.NewConfigurationErrorf("primary node %s not found", inst.PrimaryNode)
		}
		g.Instances[inst.UUID] = inst
		g.Cluster.BumpSerial(s.now())
		return nil
	})
}

func checkInstanceUniqueLocal(g *entity.ConfigData, inst *entity.Instance) error {
	if _, ok := g.Instances[inst.UUID]; ok {
		return confutil.NewConfigurationErrorf("instance uuid %s already exists", inst.UUID)
	}
	for _, other := range g.Instances {
		if other.Name == inst.Name {
			return confutil.NewConfigurationErrorf("instance named %q already exists", inst.Name)
		}
	}
	wantMACs := map[string]bool{}
	for _, mac := range nicMACs(inst) {
		wantMACs[mac] = true
	}
	for _, other := range g.Instances {
		for _, nic := range other.NICs {
			if wantMACs[nic.MAC] {
				return confutil.NewReservationError("mac", nic.MAC)
			}
		}
	}
	return nil
}

// RemoveInstance deletes instance uuid, returning its network_port to the
// cluster pool, releasing every NIC's IP back to its network's pool, and
// dropping its disks from the global disk table.
func (s *Store) RemoveInstance(ctx context.Context, uuid string) error {
	return s.withExclusive(ctx, "", func(g *entity.ConfigData) error {
		inst, ok := g.Instances[uuid]
		if !ok {
			return confutil.NewOpPrereqErrorf(confutil.ECodeNoEnt, "instance %s not found", uuid)
		}
		if inst.NetworkPort != 0 {
			g.Cluster.AddTCPUDPPort(inst.NetworkPort)
		}
		for _, nic := range inst.NICs {
			if nic.Network == "" || nic.IP == "" {
				continue
			}
			if net, ok := g.Networks[nic.Network]; ok {
				if pool, err := net.Pool(); err == nil {
					pool.Release(nic.IP)
				}
			}
		}
		for _, diskUUID := range inst.Disks {
			delete(g.Disks, diskUUID)
		}
		delete(g.Instances, uuid)
		g.Cluster.BumpSerial(s.now())
		return nil
	})
}

// RenameInstance atomically renames instance uuid to newName and rewrites
// every file-backed disk's path to use the new name in place of the old,
// the same substitution the original applies when it moves an instance's
// file-storage directory.
func (s *Store) RenameInstance(ctx context.Context, uuid, newName string) error {
	return s.withExclusive(ctx, "", func(g *entity.ConfigData) error {
		inst, ok := g.Instances[uuid]
		if !ok {
			return confutil.NewOpPrereqErrorf(confutil.ECodeNoEnt, "instance %s not found", uuid)
		}
		for _, other := range g.Instances {
			if other.UUID != uuid && other.Name == newName {
				return confutil.NewConfigurationErrorf("instance named %q already exists", newName)
			}
		}
		oldName := inst.Name
		inst.Name = newName
		for _, diskUUID := range inst.Disks {
			disk, ok := g.Disks[diskUUID]
			if !ok || disk.LogicalID.Path == "" {
				continue
			}
			disk.LogicalID.Path = strings.Replace(disk.LogicalID.Path, oldName, newName, 1)
		}
		bumpSerials(g, s.now(), inst)
		return nil
	})
}

// SetInstancePrimaryNode moves inst's primary node.
func (s *Store) SetInstancePrimaryNode(ctx context.Context, instUUID, nodeUUID string) error {
	return s.withExclusive(ctx, "", func(g *entity.ConfigData) error {
		inst, ok := g.Instances[instUUID]
		if !ok {
			return confutil.NewOpPrereqErrorf(confutil.ECodeNoEnt, "instance %s not found", instUUID)
		}
		if _, ok := g.Nodes[nodeUUID]; !ok {
			return confutil.NewOpPrereqErrorf(confutil.ECodeNoEnt, "node %s not found", nodeUUID)
		}
		inst.PrimaryNode = nodeUUID
		bumpSerials(g, s.now(), inst)
		return nil
	})
}

// SetInstanceDiskTemplate changes inst's disk template, used after a
// successful conversion has already rewritten its disk set.
func (s *Store) SetInstanceDiskTemplate(ctx context.Context, instUUID string, template entity.DiskTemplate) error {
	return s.withExclusive(ctx, "", func(g *entity.ConfigData) error {
		inst, ok := g.Instances[instUUID]
		if !ok {
			return confutil.NewOpPrereqErrorf(confutil.ECodeNoEnt, "instance %s not found", instUUID)
		}
		if !g.Cluster.EnabledDiskTemplates.Has(string(template)) {
			return confutil.NewOpPrereqErrorf(confutil.ECodeInval, "disk template %s is not enabled on this cluster", template)
		}
		inst.DiskTemplate = template
		bumpSerials(g, s.now(), inst)
		return nil
	})
}

// markChanged applies mutate to inst and, only if it actually changed one
// of (admin_state, disks_active, admin_state_source), bumps the serial
// and mtime the same way every Mark* operation is specified to.
func (s *Store) markChanged(ctx context.Context, instUUID string, mutate func(*entity.Instance)) error {
	return s.withExclusive(ctx, "", func(g *entity.ConfigData) error {
		inst, ok := g.Instances[instUUID]
		if !ok {
			return confutil.NewOpPrereqErrorf(confutil.ECodeNoEnt, "instance %s not found", instUUID)
		}
		before := [3]string{string(inst.AdminState), boolStr(inst.DisksActive), string(inst.AdminStateSource)}
		mutate(inst)
		after := [3]string{string(inst.AdminState), boolStr(inst.DisksActive), string(inst.AdminStateSource)}
		if before != after {
			bumpSerials(g, s.now(), inst)
		}
		return nil
	})
}

func boolStr(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

// MarkInstanceUp sets inst's admin state to up, admin-sourced.
func (s *Store) MarkInstanceUp(ctx context.Context, instUUID string) error {
	return s.markChanged(ctx, instUUID, func(i *entity.Instance) {
		i.AdminState = entity.AdminStateUp
		i.AdminStateSource = entity.AdminSourceAdmin
	})
}

// MarkInstanceDown sets inst's admin state to down, admin-sourced.
func (s *Store) MarkInstanceDown(ctx context.Context, instUUID string) error {
	return s.markChanged(ctx, instUUID, func(i *entity.Instance) {
		i.AdminState = entity.AdminStateDown
		i.AdminStateSource = entity.AdminSourceAdmin
	})
}

// MarkInstanceOffline sets inst's admin state to offline, admin-sourced.
func (s *Store) MarkInstanceOffline(ctx context.Context, instUUID string) error {
	return s.markChanged(ctx, instUUID, func(i *entity.Instance) {
		i.AdminState = entity.AdminStateOffline
		i.AdminStateSource = entity.AdminSourceAdmin
	})
}

// MarkInstanceUserDown sets inst's admin state to down, user-sourced (the
// guest shut itself down rather than being told to by an admin action).
func (s *Store) MarkInstanceUserDown(ctx context.Context, instUUID string) error {
	return s.markChanged(ctx, instUUID, func(i *entity.Instance) {
		i.AdminState = entity.AdminStateDown
		i.AdminStateSource = entity.AdminSourceUser
	})
}

// MarkInstanceDisksActive records that inst's disks are activated.
func (s *Store) MarkInstanceDisksActive(ctx context.Context, instUUID string) error {
	return s.markChanged(ctx, instUUID, func(i *entity.Instance) { i.DisksActive = true })
}

// MarkInstanceDisksInactive records that inst's disks are deactivated.
func (s *Store) MarkInstanceDisksInactive(ctx context.Context, instUUID string) error {
	return s.markChanged(ctx, instUUID, func(i *entity.Instance) { i.DisksActive = false })
}

// AddInstanceDisk registers disk in the global disk table and attaches it
// to inst at position idx (nil means append), renumbering iv_name on
// every disk from idx onward.
func (s *Store) AddInstanceDisk(ctx context.Context, instUUID string, disk *entity.Disk, idx *int) error {
	return s.withExclusive(ctx, "", func(g *entity.ConfigData) error {
		inst, ok := g.Instances[instUUID]
		if !ok {
			return confutil.NewOpPrereqErrorf(confutil.ECodeNoEnt, "instance %s not found", instUUID)
		}
		if _, ok := g.Disks[disk.UUID]; ok {
			return confutil.NewConfigurationErrorf("disk uuid %s already exists", disk.UUID)
		}
		g.Disks[disk.UUID] = disk
		if err := inst.AttachDisk(disk.UUID, idx, g.Disks, g.Instances); err != nil {
			delete(g.Disks, disk.UUID)
			return err
		}
		bumpSerials(g, s.now(), inst)
		return nil
	})
}

// RemoveInstanceDisk detaches diskUUID from inst, renumbers the remaining
// disks' iv_name, and drops it from the global disk table.
func (s *Store) RemoveInstanceDisk(ctx context.Context, instUUID, diskUUID string) error {
	return s.withExclusive(ctx, "", func(g *entity.ConfigData) error {
		inst, ok := g.Instances[instUUID]
		if !ok {
			return confutil.NewOpPrereqErrorf(confutil.ECodeNoEnt, "instance %s not found", instUUID)
		}
		if err := inst.DetachDisk(diskUUID, g.Disks); err != nil {
			return err
		}
		delete(g.Disks, diskUUID)
		bumpSerials(g, s.now(), inst)
		return nil
	})
}

// ExpandInstanceName resolves name as an exact match, else a unique
// case-insensitive prefix match, never erroring on ambiguity or miss.
func (s *Store) ExpandInstanceName(ctx context.Context, name string) (string, error) {
	var result string
	err := s.withShared(ctx, func(g *entity.ConfigData) error {
		result = expandName(name, g.Instances, func(i *entity.Instance) string { return i.Name })
		return nil
	})
	return result, err
}

// HasAnyDiskOfType reports whether any disk in the graph uses template.
func (s *Store) HasAnyDiskOfType(ctx context.Context, template entity.DiskTemplate) (bool, error) {
	var found bool
	err := s.withShared(ctx, func(g *entity.ConfigData) error {
		for _, d := range g.Disks {
			if d.Template == template {
				found = true
				return nil
			}
		}
		return nil
	})
	return found, err
}

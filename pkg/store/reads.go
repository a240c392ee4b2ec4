package store

import (
	"context"

	"github.com/nimbusvm/clusterconf/pkg/confutil"
	"github.com/nimbusvm/clusterconf/pkg/entity"
	"github.com/nimbusvm/clusterconf/pkg/ssconf"
)

// MasterCandidateStats is the (now, should, max) triple
// GetMasterCandidateStats returns: the current number of master
// candidates, the number there should be once MaintainCandidatePool
// runs, and the maximum number of nodes eligible to become one.
type MasterCandidateStats struct {
	Now    int
	Should int
	Max    int
}

// GetMasterCandidateStats reports candidate counts, excluding any node
// UUID in exceptions from both the numerator and the eligible pool.
func (s *Store) GetMasterCandidateStats(ctx context.Context, exceptions []string) (MasterCandidateStats, error) {
	except := make(map[string]bool, len(exceptions))
	for _, e := range exceptions {
		except[e] = true
	}
	var stats MasterCandidateStats
	err := s.withShared(ctx, func(g *entity.ConfigData) error {
		maxEligible := 0
		for _, n := range g.Nodes {
			if except[n.UUID] {
				continue
			}
			if n.MasterCandidate {
				stats.Now++
			}
			if n.CandidateEligible() {
				maxEligible++
			}
		}
		stats.Max = maxEligible
		stats.Should = g.Cluster.CandidatePoolSize
		if stats.Should > maxEligible {
			stats.Should = maxEligible
		}
		return nil
	})
	return stats, err
}

// GetAllNodesInfo returns a defensive copy of the node map, keyed by UUID.
func (s *Store) GetAllNodesInfo(ctx context.Context) (map[string]*entity.Node, error) {
	var out map[string]*entity.Node
	err := s.withShared(ctx, func(g *entity.ConfigData) error {
		out = make(map[string]*entity.Node, len(g.Nodes))
		for uuid, n := range g.Nodes {
			copied := *n
			out[uuid] = &copied
		}
		return nil
	})
	return out, err
}

// GetAllInstancesInfo returns a defensive copy of the instance map, keyed
// by UUID.
func (s *Store) GetAllInstancesInfo(ctx context.Context) (map[string]*entity.Instance, error) {
	var out map[string]*entity.Instance
	err := s.withShared(ctx, func(g *entity.ConfigData) error {
		out = make(map[string]*entity.Instance, len(g.Instances))
		for uuid, i := range g.Instances {
			copied := *i
			out[uuid] = &copied
		}
		return nil
	})
	return out, err
}

// GetAllNodeGroupsInfo returns a defensive copy of the node group map,
// keyed by UUID.
func (s *Store) GetAllNodeGroupsInfo(ctx context.Context) (map[string]*entity.NodeGroup, error) {
	var out map[string]*entity.NodeGroup
	err := s.withShared(ctx, func(g *entity.ConfigData) error {
		out = make(map[string]*entity.NodeGroup, len(g.NodeGroups))
		for uuid, ng := range g.NodeGroups {
			copied := *ng
			out[uuid] = &copied
		}
		return nil
	})
	return out, err
}

// GetAllNetworksInfo returns a defensive copy of the network map, keyed
// by UUID.
func (s *Store) GetAllNetworksInfo(ctx context.Context) (map[string]*entity.Network, error) {
	var out map[string]*entity.Network
	err := s.withShared(ctx, func(g *entity.ConfigData) error {
		out = make(map[string]*entity.Network, len(g.Networks))
		for uuid, n := range g.Networks {
			copied := *n
			out[uuid] = &copied
		}
		return nil
	})
	return out, err
}

// GetInstanceDisks returns the ordered Disk records attached to instUUID.
func (s *Store) GetInstanceDisks(ctx context.Context, instUUID string) ([]*entity.Disk, error) {
	var disks []*entity.Disk
	err := s.withShared(ctx, func(g *entity.ConfigData) error {
		inst, ok := g.Instances[instUUID]
		if !ok {
			return confutil.NewOpPrereqErrorf(confutil.ECodeNoEnt, "instance %s not found", instUUID)
		}
		for _, uuid := range inst.Disks {
			if d, ok := g.Disks[uuid]; ok {
				disks = append(disks, d)
			}
		}
		return nil
	})
	return disks, err
}

// GetInstanceAllNodes returns the primary node plus every node any of
// instUUID's disks physically reside on (its "secondary" nodes for
// mirrored templates).
func (s *Store) GetInstanceAllNodes(ctx context.Context, instUUID string) ([]string, error) {
	var nodes []string
	err := s.withShared(ctx, func(g *entity.ConfigData) error {
		inst, ok := g.Instances[instUUID]
		if !ok {
			return confutil.NewOpPrereqErrorf(confutil.ECodeNoEnt, "instance %s not found", instUUID)
		}
		seen := map[string]bool{inst.PrimaryNode: true}
		nodes = append(nodes, inst.PrimaryNode)
		for _, diskUUID := range inst.Disks {
			disk, ok := g.Disks[diskUUID]
			if !ok {
				continue
			}
			for _, node := range disk.AllNodes() {
				if !seen[node] {
					seen[node] = true
					nodes = append(nodes, node)
				}
			}
		}
		return nil
	})
	return nodes, err
}

// GetNodeLVs returns the logical volume names ("vg/lv") on node across
// every plain or drbd8 disk that physically resides there.
func (s *Store) GetNodeLVs(ctx context.Context, nodeUUID string) ([]string, error) {
	var lvs []string
	err := s.withShared(ctx, func(g *entity.ConfigData) error {
		for _, d := range g.Disks {
			if d.LogicalID.VG == "" || d.LogicalID.LV == "" {
				continue
			}
			for _, n := range d.AllNodes() {
				if n == nodeUUID {
					lvs = append(lvs, d.LogicalID.VG+"/"+d.LogicalID.LV)
					break
				}
			}
		}
		return nil
	})
	return lvs, err
}

// ResolvedNDParams returns node's effective node daemon parameters:
// cluster defaults, overlaid by the node's group, overlaid by the node's
// own overrides.
func (s *Store) ResolvedNDParams(ctx context.Context, nodeUUID string) (map[string]string, error) {
	var out map[string]string
	err := s.withShared(ctx, func(g *entity.ConfigData) error {
		node, ok := g.Nodes[nodeUUID]
		if !ok {
			return confutil.NewOpPrereqErrorf(confutil.ECodeNoEnt, "node %s not found", nodeUUID)
		}
		out = map[string]string{}
		mergeInto(out, g.Cluster.NDParams)
		if group, ok := g.NodeGroups[node.Group]; ok {
			mergeInto(out, group.NDParams)
		}
		mergeInto(out, node.NDParams)
		return nil
	})
	return out, err
}

// ResolvedDiskParams returns the effective disk parameters for template,
// cluster defaults overlaid by the node group's own override.
func (s *Store) ResolvedDiskParams(ctx context.Context, groupUUID string, template entity.DiskTemplate) (map[string]string, error) {
	var out map[string]string
	err := s.withShared(ctx, func(g *entity.ConfigData) error {
		out = map[string]string{}
		mergeInto(out, g.Cluster.DiskParams[string(template)])
		if group, ok := g.NodeGroups[groupUUID]; ok {
			mergeInto(out, group.DiskParams[string(template)])
		}
		return nil
	})
	return out, err
}

// ResolvedNICParams returns the effective NIC parameters for nic: cluster
// defaults for its mode, overlaid by its own per-NIC overrides.
func (s *Store) ResolvedNICParams(ctx context.Context, nic *entity.NIC) (map[string]string, error) {
	var out map[string]string
	err := s.withShared(ctx, func(g *entity.ConfigData) error {
		out = map[string]string{}
		mergeInto(out, g.Cluster.NICParams[string(nic.Mode)])
		mergeInto(out, nic.NICParams)
		return nil
	})
	return out, err
}

func mergeInto(dst, src map[string]string) {
	for k, v := range src {
		dst[k] = v
	}
}

// GetSsconfValues returns the derived key/value snapshot for downstream
// consumers (see pkg/ssconf for the exact key catalog).
func (s *Store) GetSsconfValues(ctx context.Context) (map[string]string, error) {
	var out map[string]string
	err := s.withShared(ctx, func(g *entity.ConfigData) error {
		out = ssconf.Values(g)
		return nil
	})
	return out, err
}

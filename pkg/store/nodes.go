package store

import (
	"context"
	"math/rand"
	"strings"

	"github.com/nimbusvm/clusterconf/pkg/confutil"
	"github.com/nimbusvm/clusterconf/pkg/entity"
)

// AddNode registers node, rejecting a duplicate name or UUID.
func (s *Store) AddNode(ctx context.Context, node *entity.Node) error {
	return s.withExclusive(ctx, "", func(g *entity.ConfigData) error {
		if _, ok := g.Nodes[node.UUID]; ok {
			return confutil.NewConfigurationErrorf("node uuid %s already exists", node.UUID)
		}
		for _, n := range g.Nodes {
			if n.Name == node.Name {
				return confutil.NewConfigurationErrorf("node named %q already exists", node.Name)
			}
		}
		if _, ok := g.NodeGroups[node.Group]; node.Group != "" && !ok {
			return confutil.NewConfigurationErrorf("node group %s not found", node.Group)
		}
		g.Nodes[node.UUID] = node
		bumpSerials(g, s.now(), node)
		return nil
	})
}

// RemoveNode deletes node uuid, failing if it is the master or still the
// primary node of any instance.
func (s *Store) RemoveNode(ctx context.Context, uuid string) error {
	return s.withExclusive(ctx, "", func(g *entity.ConfigData) error {
		node, ok := g.Nodes[uuid]
		if !ok {
			return confutil.NewOpPrereqErrorf(confutil.ECodeNoEnt, "node %s not found", uuid)
		}
		if uuid == g.Cluster.MasterNode {
			return confutil.NewOpPrereqErrorf(confutil.ECodeInval, "cannot remove the master node")
		}
		for _, inst := range g.Instances {
			if inst.PrimaryNode == uuid {
				return confutil.NewOpPrereqErrorf(confutil.ECodeInval,
					"node %s still hosts instance %s", node.Name, inst.Name)
			}
		}
		delete(g.Nodes, uuid)
		bumpSerials(g, s.now())
		return nil
	})
}

// AssignGroupNodes atomically moves every node in nodeUUIDs into group,
// preserving the invariant that every node belongs to exactly one group
// at all times (the move is applied in one exclusive session, so no
// reader ever observes a node with no group).
func (s *Store) AssignGroupNodes(ctx context.Context, groupUUID string, nodeUUIDs []string) error {
	return s.withExclusive(ctx, "", func(g *entity.ConfigData) error {
		if _, ok := g.NodeGroups[groupUUID]; !ok {
			return confutil.NewOpPrereqErrorf(confutil.ECodeNoEnt, "node group %s not found", groupUUID)
		}
		for _, uuid := range nodeUUIDs {
			if _, ok := g.Nodes[uuid]; !ok {
				return confutil.NewOpPrereqErrorf(confutil.ECodeNoEnt, "node %s not found", uuid)
			}
		}
		moved := make([]entity.Entity, 0, len(nodeUUIDs))
		for _, uuid := range nodeUUIDs {
			node := g.Nodes[uuid]
			node.Group = groupUUID
			moved = append(moved, node)
		}
		g.RebuildGroupMembers()
		bumpSerials(g, s.now(), moved...)
		return nil
	})
}

// AddNodeGroup registers group, rejecting a duplicate name or UUID.
func (s *Store) AddNodeGroup(ctx context.Context, group *entity.NodeGroup) error {
	return s.withExclusive(ctx, "", func(g *entity.ConfigData) error {
		if _, ok := g.NodeGroups[group.UUID]; ok {
			return confutil.NewConfigurationErrorf("node group uuid %s already exists", group.UUID)
		}
		for _, existing := range g.NodeGroups {
			if existing.Name == group.Name {
				return confutil.NewConfigurationErrorf("node group named %q already exists", group.Name)
			}
		}
		g.NodeGroups[group.UUID] = group
		bumpSerials(g, s.now(), group)
		return nil
	})
}

// RemoveNodeGroup deletes group uuid. It refuses to leave the cluster
// with zero groups and refuses to remove a group that still has members.
func (s *Store) RemoveNodeGroup(ctx context.Context, uuid string) error {
	return s.withExclusive(ctx, "", func(g *entity.ConfigData) error {
		if len(g.NodeGroups) <= 1 {
			return confutil.NewOpPrereqErrorf(confutil.ECodeInval, "cannot remove the cluster's last node group")
		}
		group, ok := g.NodeGroups[uuid]
		if !ok {
			return confutil.NewOpPrereqErrorf(confutil.ECodeNoEnt, "node group %s not found", uuid)
		}
		if len(group.Members) > 0 {
			return confutil.NewOpPrereqErrorf(confutil.ECodeInval, "node group %s still has members", group.Name)
		}
		delete(g.NodeGroups, uuid)
		bumpSerials(g, s.now())
		return nil
	})
}

// MaintainCandidatePool promotes master-capable, online, non-drained
// nodes (skipping any in exceptions) to master_candidate, in random
// order, until reaching min(candidate_pool_size, eligible_count).
func (s *Store) MaintainCandidatePool(ctx context.Context, exceptions []string) error {
	except := make(map[string]bool, len(exceptions))
	for _, e := range exceptions {
		except[e] = true
	}
	return s.withExclusive(ctx, "", func(g *entity.ConfigData) error {
		var eligible []*entity.Node
		current := 0
		for _, n := range g.Nodes {
			if n.MasterCandidate {
				current++
			}
			if except[n.UUID] || n.MasterCandidate {
				continue
			}
			if n.CandidateEligible() {
				eligible = append(eligible, n)
			}
		}
		target := g.Cluster.CandidatePoolSize
		if total := current + len(eligible); target > total {
			target = total
		}
		rand.Shuffle(len(eligible), func(i, j int) { eligible[i], eligible[j] = eligible[j], eligible[i] })
		var promoted []entity.Entity
		for _, n := range eligible {
			if current >= target {
				break
			}
			n.MasterCandidate = true
			promoted = append(promoted, n)
			current++
		}
		if len(promoted) > 0 {
			bumpSerials(g, s.now(), promoted...)
		}
		return nil
	})
}

// AddNodeToCandidateCerts records node's client certificate digest.
func (s *Store) AddNodeToCandidateCerts(ctx context.Context, nodeUUID, certDigest string) error {
	return s.withExclusive(ctx, "", func(g *entity.ConfigData) error {
		if g.Cluster.CandidateCerts == nil {
			g.Cluster.CandidateCerts = map[string]string{}
		}
		g.Cluster.CandidateCerts[nodeUUID] = certDigest
		bumpSerials(g, s.now())
		return nil
	})
}

// RemoveNodeFromCandidateCerts drops node's recorded certificate digest.
func (s *Store) RemoveNodeFromCandidateCerts(ctx context.Context, nodeUUID string) error {
	return s.withExclusive(ctx, "", func(g *entity.ConfigData) error {
		delete(g.Cluster.CandidateCerts, nodeUUID)
		bumpSerials(g, s.now())
		return nil
	})
}

// ExpandNodeName resolves name as an exact match, else a unique
// case-insensitive prefix match. It never errors: ambiguous or
// no-match cases both return ("", nil).
func (s *Store) ExpandNodeName(ctx context.Context, name string) (string, error) {
	var result string
	err := s.withShared(ctx, func(g *entity.ConfigData) error {
		result = expandName(name, g.Nodes, func(n *entity.Node) string { return n.Name })
		return nil
	})
	return result, err
}

// LookupNodeGroup returns uuid unchanged if non-empty; otherwise it
// returns the cluster's sole group, failing if there is more than one.
func (s *Store) LookupNodeGroup(ctx context.Context, uuid string) (string, error) {
	if uuid != "" {
		return uuid, nil
	}
	var result string
	err := s.withShared(ctx, func(g *entity.ConfigData) error {
		if len(g.NodeGroups) != 1 {
			return confutil.NewOpPrereqErrorf(confutil.ECodeExists,
				"no group given and cluster has %d groups, not 1", len(g.NodeGroups))
		}
		for uuid := range g.NodeGroups {
			result = uuid
		}
		return nil
	})
	return result, err
}

// expandName implements the exact-then-unique-prefix resolution shared by
// ExpandNodeName/ExpandInstanceName.
func expandName[T any](name string, items map[string]T, nameOf func(T) string) string {
	lower := strings.ToLower(name)
	var prefixMatch string
	matches := 0
	for uuid, item := range items {
		n := nameOf(item)
		if n == name {
			return uuid
		}
		if strings.HasPrefix(strings.ToLower(n), lower) {
			matches++
			prefixMatch = uuid
		}
	}
	if matches == 1 {
		return prefixMatch
	}
	return ""
}

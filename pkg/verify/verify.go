// Package verify checks a configuration graph against the global
// invariants every commit is expected to preserve. Verify never mutates
// its input; callers log its findings and proceed, the same way the
// session manager runs it on every exclusive commit, just before the
// write, without ever letting it block the write.
package verify

import (
	"fmt"

	"github.com/nimbusvm/clusterconf/pkg/confutil"
	"github.com/nimbusvm/clusterconf/pkg/entity"
)

// Graph returns every invariant violation found in g, as independent
// human-readable messages. An empty slice means the graph is consistent.
func Graph(g *entity.ConfigData) []string {
	var errs []string
	errs = append(errs, checkUUIDKeys(g)...)
	errs = append(errs, checkNodeGroupMembers(g)...)
	errs = append(errs, checkInstanceNodeReferences(g)...)
	errs = append(errs, checkDiskAttachment(g)...)
	errs = append(errs, checkIvNames(g)...)
	errs = append(errs, checkMasterNode(g)...)
	errs = append(errs, checkMACUniqueness(g)...)
	errs = append(errs, checkPortUniqueness(g)...)
	errs = append(errs, checkNodeGroupNames(g)...)
	errs = append(errs, checkDiskTemplatesEnabled(g)...)
	errs = append(errs, checkCandidatePoolBound(g)...)
	errs = append(errs, checkNodeRoleExclusivity(g)...)
	errs = append(errs, checkIPUniqueness(g)...)
	return errs
}

func checkUUIDKeys(g *entity.ConfigData) []string {
	var errs []string
	for key, n := range g.Nodes {
		if n.UUID != key {
			errs = append(errs, fmt.Sprintf("node stored under key %s has uuid %s", key, n.UUID))
		}
	}
	for key, ng := range g.NodeGroups {
		if ng.UUID != key {
			errs = append(errs, fmt.Sprintf("nodegroup stored under key %s has uuid %s", key, ng.UUID))
		}
	}
	for key, i := range g.Instances {
		if i.UUID != key {
			errs = append(errs, fmt.Sprintf("instance stored under key %s has uuid %s", key, i.UUID))
		}
	}
	for key, d := range g.Disks {
		if d.UUID != key {
			errs = append(errs, fmt.Sprintf("disk stored under key %s has uuid %s", key, d.UUID))
		}
	}
	for key, n := range g.Networks {
		if n.UUID != key {
			errs = append(errs, fmt.Sprintf("network stored under key %s has uuid %s", key, n.UUID))
		}
	}
	return errs
}

func checkNodeGroupMembers(g *entity.ConfigData) []string {
	var errs []string
	want := map[string]map[string]bool{}
	for _, n := range g.Nodes {
		if want[n.Group] == nil {
			want[n.Group] = map[string]bool{}
		}
		want[n.Group][n.UUID] = true
	}
	for uuid, ng := range g.NodeGroups {
		have := map[string]bool{}
		for _, m := range ng.Members {
			have[m] = true
		}
		expected := want[uuid]
		for m := range have {
			if !expected[m] {
				errs = append(errs, fmt.Sprintf("nodegroup %s lists member %s which is not assigned to it", uuid, m))
			}
		}
		for m := range expected {
			if !have[m] {
				errs = append(errs, fmt.Sprintf("nodegroup %s is missing member %s", uuid, m))
			}
		}
	}
	return errs
}

func checkInstanceNodeReferences(g *entity.ConfigData) []string {
	var errs []string
	for _, inst := range g.Instances {
		if _, ok := g.Nodes[inst.PrimaryNode]; !ok {
			errs = append(errs, fmt.Sprintf("instance %s primary_node %s not found", inst.Name, inst.PrimaryNode))
		}
		for _, diskUUID := range inst.Disks {
			disk, ok := g.Disks[diskUUID]
			if !ok {
				continue
			}
			for _, node := range disk.AllNodes() {
				if _, ok := g.Nodes[node]; !ok {
					errs = append(errs, fmt.Sprintf("instance %s disk %s references unknown node %s", inst.Name, diskUUID, node))
				}
			}
		}
	}
	return errs
}

func checkDiskAttachment(g *entity.ConfigData) []string {
	var errs []string
	attachedTo := map[string]string{}
	for _, inst := range g.Instances {
		for _, diskUUID := range inst.Disks {
			if owner, ok := attachedTo[diskUUID]; ok {
				errs = append(errs, fmt.Sprintf("disk %s attached to both %s and %s", diskUUID, owner, inst.Name))
				continue
			}
			attachedTo[diskUUID] = inst.Name
			if _, ok := g.Disks[diskUUID]; !ok {
				errs = append(errs, fmt.Sprintf("instance %s references unknown disk %s", inst.Name, diskUUID))
			}
		}
	}
	return errs
}

func checkIvNames(g *entity.ConfigData) []string {
	var errs []string
	for _, inst := range g.Instances {
		for idx, diskUUID := range inst.Disks {
			disk, ok := g.Disks[diskUUID]
			if !ok {
				continue
			}
			want := fmt.Sprintf("disk/%d", idx)
			if disk.IVName != want {
				errs = append(errs, fmt.Sprintf("instance %s disk %d has iv_name %q, want %q", inst.Name, idx, disk.IVName, want))
			}
		}
	}
	return errs
}

func checkMasterNode(g *entity.ConfigData) []string {
	master, ok := g.Nodes[g.Cluster.MasterNode]
	if !ok {
		return []string{fmt.Sprintf("cluster master_node %s not found", g.Cluster.MasterNode)}
	}
	if !master.MasterCandidate {
		return []string{fmt.Sprintf("master node %s is not a master candidate", master.Name)}
	}
	return nil
}

func checkMACUniqueness(g *entity.ConfigData) []string {
	var errs []string
	seen := map[string]string{}
	for _, inst := range g.Instances {
		for _, nic := range inst.NICs {
			if nic.MAC == "" {
				continue
			}
			if owner, ok := seen[nic.MAC]; ok {
				errs = append(errs, fmt.Sprintf("mac %s used by both %s and %s", nic.MAC, owner, inst.Name))
				continue
			}
			seen[nic.MAC] = inst.Name
		}
	}
	return errs
}

func checkPortUniqueness(g *entity.ConfigData) []string {
	var errs []string
	seen := map[int]string{}
	maxUsed := 0
	record := func(port int, owner string) {
		if port == 0 {
			return
		}
		if existing, ok := seen[port]; ok {
			errs = append(errs, fmt.Sprintf("tcp/udp port %d used by both %s and %s", port, existing, owner))
			return
		}
		seen[port] = owner
		if port > maxUsed {
			maxUsed = port
		}
	}
	for _, inst := range g.Instances {
		record(inst.NetworkPort, "instance:"+inst.Name)
		for _, diskUUID := range inst.Disks {
			disk, ok := g.Disks[diskUUID]
			if !ok || disk.Template != entity.DiskTemplateDRBD8 {
				continue
			}
			record(disk.LogicalID.Port, "disk:"+diskUUID)
		}
	}
	for _, port := range g.Cluster.TCPUDPPortPool.List() {
		record(port, "pool")
	}
	if maxUsed > g.Cluster.HighestUsedPort {
		errs = append(errs, fmt.Sprintf("highest used port %d exceeds cluster.highest_used_port %d", maxUsed, g.Cluster.HighestUsedPort))
	}
	return errs
}

func checkNodeGroupNames(g *entity.ConfigData) []string {
	var errs []string
	byName := map[string]string{}
	for uuid, ng := range g.NodeGroups {
		if confutil.LooksLikeUUID(ng.Name) {
			errs = append(errs, fmt.Sprintf("nodegroup %s has a name that looks like a uuid: %q", uuid, ng.Name))
		}
		if owner, ok := byName[ng.Name]; ok {
			errs = append(errs, fmt.Sprintf("nodegroup name %q used by both %s and %s", ng.Name, owner, uuid))
			continue
		}
		byName[ng.Name] = uuid
	}
	return errs
}

func checkDiskTemplatesEnabled(g *entity.ConfigData) []string {
	var errs []string
	for _, inst := range g.Instances {
		if !g.Cluster.EnabledDiskTemplates.Has(string(inst.DiskTemplate)) {
			errs = append(errs, fmt.Sprintf("instance %s uses disk template %s which is not enabled", inst.Name, inst.DiskTemplate))
		}
	}
	return errs
}

func checkCandidatePoolBound(g *entity.ConfigData) []string {
	current := 0
	eligible := 0
	for _, n := range g.Nodes {
		if n.MasterCandidate {
			current++
		}
		if n.CandidateEligible() {
			eligible++
		}
	}
	max := g.Cluster.CandidatePoolSize
	if eligible < max {
		max = eligible
	}
	if current > max {
		return []string{fmt.Sprintf("cluster has %d master candidates, more than the bound of %d", current, max)}
	}
	return nil
}

func checkNodeRoleExclusivity(g *entity.ConfigData) []string {
	var errs []string
	for _, n := range g.Nodes {
		set := 0
		if n.MasterCandidate {
			set++
		}
		if n.Drained {
			set++
		}
		if n.Offline {
			set++
		}
		if set > 1 {
			errs = append(errs, fmt.Sprintf("node %s has more than one of {master_candidate, drained, offline} set", n.Name))
		}
	}
	return errs
}

func checkIPUniqueness(g *entity.ConfigData) []string {
	var errs []string
	seen := map[string]string{}
	record := func(key, owner string) {
		if existing, ok := seen[key]; ok {
			errs = append(errs, fmt.Sprintf("ip %s used by both %s and %s", key, existing, owner))
			return
		}
		seen[key] = owner
	}
	if g.Cluster.MasterIP != "" {
		record("ip:"+g.Cluster.MasterIP, "cluster.master_ip")
	}
	for _, n := range g.Nodes {
		if n.PrimaryIP != "" {
			record("ip:"+n.PrimaryIP, "node:"+n.Name+":primary")
		}
		if n.SecondaryIP != "" {
			record("ip:"+n.SecondaryIP, "node:"+n.Name+":secondary")
		}
	}
	for _, inst := range g.Instances {
		for _, nic := range inst.NICs {
			if nic.IP == "" {
				continue
			}
			key := fmt.Sprintf("nic:%s:%s:%s", nic.Mode, nic.IP, nic.Network)
			record(key, "instance:"+inst.Name)
		}
	}
	return errs
}

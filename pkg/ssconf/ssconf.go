// Package ssconf builds the derived "ssconf" snapshot: a flat
// string-keyed map distributed to every node so local tools can answer
// basic cluster questions (who is master, which nodes exist, what
// hypervisor to use) without parsing the full configuration graph.
package ssconf

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/nimbusvm/clusterconf/pkg/confutil"
	"github.com/nimbusvm/clusterconf/pkg/entity"
)

// Key names, matching the original's SS_* constants closely enough that
// a reader familiar with them recognizes every entry.
const (
	KeyClusterName           = "cluster_name"
	KeyClusterTags           = "cluster_tags"
	KeyMasterIP              = "master_ip"
	KeyMasterNetdev          = "master_netdev"
	KeyMasterNetmask         = "master_netmask"
	KeyMasterNode            = "master_node"
	KeyMasterCandidates      = "master_candidates"
	KeyMasterCandidatesIPs   = "master_candidates_ips"
	KeyMasterCandidatesCerts = "master_candidates_certs"
	KeyNodeList              = "node_list"
	KeyNodePrimaryIPs        = "node_primary_ips"
	KeyNodeSecondaryIPs      = "node_secondary_ips"
	KeyNodeVMCapable         = "node_vm_capable"
	KeyOfflineNodes          = "offline_nodes"
	KeyOnlineNodes           = "online_nodes"
	KeyPrimaryIPFamily       = "primary_ip_family"
	KeyInstanceList          = "instance_list"
	KeyReleaseVersion        = "release_version"
	KeyHypervisorList        = "hypervisor_list"
	KeyMaintainNodeHealth    = "maintain_node_health"
	KeyUidPool               = "uid_pool"
	KeyNodegroups            = "nodegroups"
	KeyNetworks              = "networks"
	KeyFileStorageDir        = "file_storage_dir"
	KeySharedFileStorageDir  = "shared_file_storage_dir"
	KeyEnabledUserShutdown   = "enabled_user_shutdown"

	hvParamsKeyPrefix = "hvparams_"
)

// ReleaseVersion is stamped into KeyReleaseVersion; it names this build,
// not the data-format CurrentConfigVersion.
const ReleaseVersion = "1.0"

// Values builds the full ssconf string map from graph.
func Values(graph *entity.ConfigData) map[string]string {
	out := map[string]string{}
	c := graph.Cluster

	out[KeyClusterName] = c.ClusterName
	out[KeyClusterTags] = joinSorted(c.Tags.List())
	out[KeyMasterIP] = c.MasterIP
	out[KeyMasterNetdev] = c.MasterNetdev
	out[KeyMasterNetmask] = strconv.Itoa(c.MasterNetmask)
	out[KeyPrimaryIPFamily] = strconv.Itoa(c.PrimaryIPFamily)
	out[KeyReleaseVersion] = ReleaseVersion
	out[KeyMaintainNodeHealth] = boolValue(c.MaintainNodeHealth)
	out[KeyEnabledUserShutdown] = boolValue(c.EnabledUserShutdown)
	out[KeyFileStorageDir] = c.FileStorageDir
	out[KeySharedFileStorageDir] = c.SharedFileStorageDir
	out[KeyHypervisorList] = strings.Join(c.EnabledHypervisors, "\n")

	var uidRanges []string
	for _, r := range c.UIDPool {
		uidRanges = append(uidRanges, fmt.Sprintf("%d-%d", r.Start, r.End))
	}
	out[KeyUidPool] = strings.Join(confutil.NiceSort(uidRanges), "\n")

	for hv, params := range c.HVParams {
		var lines []string
		for k, v := range params {
			lines = append(lines, fmt.Sprintf("%s=%s", k, v))
		}
		out[hvParamsKeyPrefix+hv] = strings.Join(confutil.NiceSort(lines), "\n")
	}

	if master, ok := graph.Nodes[c.MasterNode]; ok {
		out[KeyMasterNode] = master.Name
	}

	var nodeNames, primaryIPs, secondaryIPs, vmCapable, offline, online []string
	var candidateNames, candidateIPs []string
	for _, n := range graph.Nodes {
		nodeNames = append(nodeNames, n.Name)
		primaryIPs = append(primaryIPs, fmt.Sprintf("%s %s", n.Name, n.PrimaryIP))
		secondaryIPs = append(secondaryIPs, fmt.Sprintf("%s %s", n.Name, n.SecondaryIP))
		vmCapable = append(vmCapable, fmt.Sprintf("%s=%s", n.Name, boolValue(n.VMCapable)))
		if n.Offline {
			offline = append(offline, n.Name)
		} else {
			online = append(online, n.Name)
		}
		if n.MasterCandidate {
			candidateNames = append(candidateNames, n.Name)
			candidateIPs = append(candidateIPs, fmt.Sprintf("%s %s", n.Name, n.PrimaryIP))
		}
	}
	out[KeyNodeList] = joinSorted(nodeNames)
	out[KeyNodePrimaryIPs] = joinSorted(primaryIPs)
	out[KeyNodeSecondaryIPs] = joinSorted(secondaryIPs)
	out[KeyNodeVMCapable] = joinSorted(vmCapable)
	out[KeyOfflineNodes] = joinSorted(offline)
	out[KeyOnlineNodes] = joinSorted(online)
	out[KeyMasterCandidates] = joinSorted(candidateNames)
	out[KeyMasterCandidatesIPs] = joinSorted(candidateIPs)

	var certLines []string
	for nodeUUID, digest := range c.CandidateCerts {
		certLines = append(certLines, fmt.Sprintf("%s=%s", nodeUUID, digest))
	}
	out[KeyMasterCandidatesCerts] = joinSorted(certLines)

	var instanceNames []string
	for _, i := range graph.Instances {
		instanceNames = append(instanceNames, i.Name)
	}
	out[KeyInstanceList] = joinSorted(instanceNames)

	var groupLines []string
	for uuid, g := range graph.NodeGroups {
		groupLines = append(groupLines, fmt.Sprintf("%s %s", uuid, g.Name))
	}
	out[KeyNodegroups] = joinSorted(groupLines)

	var networkLines []string
	for uuid, n := range graph.Networks {
		networkLines = append(networkLines, fmt.Sprintf("%s %s", uuid, n.Name))
	}
	out[KeyNetworks] = joinSorted(networkLines)

	return out
}

func joinSorted(items []string) string {
	return strings.Join(confutil.NiceSort(items), "\n")
}

func boolValue(b bool) string {
	if b {
		return "True"
	}
	return "False"
}

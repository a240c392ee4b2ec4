package ssconf

import (
	"strings"
	"testing"

	"github.com/nimbusvm/clusterconf/pkg/entity"
)

func buildGraph() *entity.ConfigData {
	cluster := entity.NewCluster("test-cluster", "node-uuid-1", "192.0.2.1", 1000)
	cluster.MasterNetdev = "eth0"
	cluster.MasterNetmask = 24
	cluster.Tags.Add("env:test")

	graph := entity.NewConfigData(cluster)

	node1 := entity.NewNode("node1.example.com", "192.0.2.1", "", 1000)
	node1.UUID = "node-uuid-1"
	node1.MasterCandidate = true
	node2 := entity.NewNode("node2.example.com", "192.0.2.2", "", 1000)
	node2.UUID = "node-uuid-2"
	node2.Offline = true
	graph.Nodes[node1.UUID] = node1
	graph.Nodes[node2.UUID] = node2

	return graph
}

func TestValuesIncludesClusterIdentity(t *testing.T) {
	graph := buildGraph()
	out := Values(graph)

	if out[KeyClusterName] != "test-cluster" {
		t.Errorf("cluster_name = %q, want test-cluster", out[KeyClusterName])
	}
	if out[KeyMasterIP] != "192.0.2.1" {
		t.Errorf("master_ip = %q, want 192.0.2.1", out[KeyMasterIP])
	}
	if out[KeyMasterNode] != "node1.example.com" {
		t.Errorf("master_node = %q, want node1.example.com", out[KeyMasterNode])
	}
	if out[KeyClusterTags] != "env:test" {
		t.Errorf("cluster_tags = %q, want env:test", out[KeyClusterTags])
	}
}

func TestValuesNodeLists(t *testing.T) {
	graph := buildGraph()
	out := Values(graph)

	wantNodeList := "node1.example.com\nnode2.example.com"
	if out[KeyNodeList] != wantNodeList {
		t.Errorf("node_list = %q, want %q", out[KeyNodeList], wantNodeList)
	}
	if out[KeyOfflineNodes] != "node2.example.com" {
		t.Errorf("offline_nodes = %q, want node2.example.com", out[KeyOfflineNodes])
	}
	if out[KeyOnlineNodes] != "node1.example.com" {
		t.Errorf("online_nodes = %q, want node1.example.com", out[KeyOnlineNodes])
	}
	if out[KeyMasterCandidates] != "node1.example.com" {
		t.Errorf("master_candidates = %q, want node1.example.com", out[KeyMasterCandidates])
	}
	if !strings.Contains(out[KeyNodePrimaryIPs], "node1.example.com 192.0.2.1") {
		t.Errorf("node_primary_ips missing node1 entry: %q", out[KeyNodePrimaryIPs])
	}
}

func TestValuesHVParamsKeyedByPrefix(t *testing.T) {
	graph := buildGraph()
	graph.Cluster.HVParams["kvm"] = map[string]string{"boot_order": "disk"}
	out := Values(graph)

	got, ok := out[hvParamsKeyPrefix+"kvm"]
	if !ok {
		t.Fatalf("expected key %s in output", hvParamsKeyPrefix+"kvm")
	}
	if got != "boot_order=disk" {
		t.Errorf("hvparams_kvm = %q, want boot_order=disk", got)
	}
}

package verify

import (
	"strings"
	"testing"

	"github.com/nimbusvm/clusterconf/pkg/entity"
)

func baseGraph() *entity.ConfigData {
	cluster := entity.NewCluster("test-cluster", "", "192.0.2.1", 1000)
	master := entity.NewNode("master.example.com", "192.0.2.10", "", 1000)
	master.MasterCandidate = true
	cluster.MasterNode = master.UUID

	graph := entity.NewConfigData(cluster)
	graph.Nodes[master.UUID] = master
	return graph
}

func TestGraphCleanByDefault(t *testing.T) {
	g := baseGraph()
	if errs := Graph(g); len(errs) != 0 {
		t.Fatalf("Graph(clean) = %v, want no errors", errs)
	}
}

func TestGraphCatchesMasterNotCandidate(t *testing.T) {
	g := baseGraph()
	g.Nodes[g.Cluster.MasterNode].MasterCandidate = false

	errs := Graph(g)
	if !anyContains(errs, "not a master candidate") {
		t.Fatalf("Graph() = %v, want a master-candidate violation", errs)
	}
}

func TestGraphCatchesUUIDKeyMismatch(t *testing.T) {
	g := baseGraph()
	n := entity.NewNode("other.example.com", "192.0.2.2", "", 1000)
	g.Nodes["wrong-key"] = n

	errs := Graph(g)
	if !anyContains(errs, "stored under key wrong-key") {
		t.Fatalf("Graph() = %v, want a uuid-key mismatch violation", errs)
	}
}

func TestGraphCatchesDuplicateMAC(t *testing.T) {
	g := baseGraph()
	i1 := entity.NewInstance("inst1", g.Cluster.MasterNode, "linux", "kvm", entity.DiskTemplatePlain, 1000)
	i1.NICs = []*entity.NIC{{MAC: "aa:bb:cc:dd:ee:ff"}}
	i2 := entity.NewInstance("inst2", g.Cluster.MasterNode, "linux", "kvm", entity.DiskTemplatePlain, 1000)
	i2.NICs = []*entity.NIC{{MAC: "aa:bb:cc:dd:ee:ff"}}
	g.Instances[i1.UUID] = i1
	g.Instances[i2.UUID] = i2

	errs := Graph(g)
	if !anyContains(errs, "mac aa:bb:cc:dd:ee:ff") {
		t.Fatalf("Graph() = %v, want a mac-collision violation", errs)
	}
}

func TestGraphCatchesNodeGroupLookingLikeUUID(t *testing.T) {
	g := baseGraph()
	ng := entity.NewNodeGroup("550e8400-e29b-41d4-a716-446655440000", 1000)
	g.NodeGroups[ng.UUID] = ng

	errs := Graph(g)
	if !anyContains(errs, "looks like a uuid") {
		t.Fatalf("Graph() = %v, want a uuid-shaped-name violation", errs)
	}
}

func TestGraphCatchesRoleExclusivityViolation(t *testing.T) {
	g := baseGraph()
	n := g.Nodes[g.Cluster.MasterNode]
	n.Drained = true // master_candidate is already true

	errs := Graph(g)
	if !anyContains(errs, "more than one of") {
		t.Fatalf("Graph() = %v, want a role-exclusivity violation", errs)
	}
}

func anyContains(errs []string, substr string) bool {
	for _, e := range errs {
		if strings.Contains(e, substr) {
			return true
		}
	}
	return false
}

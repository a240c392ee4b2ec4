package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/nimbusvm/clusterconf/pkg/entity"
	"github.com/nimbusvm/clusterconf/pkg/persist"
	"github.com/nimbusvm/clusterconf/pkg/session"
)

func newOfflineStore(t *testing.T) (*Store, string) {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")

	cluster := entity.NewCluster("test-cluster", "", "192.0.2.1", 1000)
	cluster.RsaHostKeyPub = "ssh-rsa AAAA..."
	master := entity.NewNode("node1.example.com", "192.0.2.1", "", 1000)
	master.MasterCandidate = true
	cluster.MasterNode = master.UUID

	graph := entity.NewConfigData(cluster)
	graph.Nodes[master.UUID] = master

	if _, err := persist.Save(path, persist.FileID{}, graph, persist.NoGroupChange); err != nil {
		t.Fatalf("seeding config file: %v", err)
	}

	s := New(Options{
		Session: session.Config{
			Online:        false,
			Path:          path,
			GroupResolver: persist.NoGroupChange,
			MyHostname:    "node1.example.com",
		},
	})
	return s, path
}

func TestIsClusterReflectsFileExistence(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	if IsCluster(path) {
		t.Fatalf("IsCluster(%s) = true before the file exists", path)
	}

	cluster := entity.NewCluster("c", "", "192.0.2.1", 1000)
	graph := entity.NewConfigData(cluster)
	if _, err := persist.Save(path, persist.FileID{}, graph, persist.NoGroupChange); err != nil {
		t.Fatalf("seeding config file: %v", err)
	}
	if !IsCluster(path) {
		t.Fatalf("IsCluster(%s) = false after the file exists", path)
	}
}

func TestAddNodeThenGetAllNodesInfo(t *testing.T) {
	s, _ := newOfflineStore(t)
	ctx := context.Background()

	n := entity.NewNode("node2.example.com", "192.0.2.2", "", 1000)
	if err := s.AddNode(ctx, n); err != nil {
		t.Fatalf("AddNode: %v", err)
	}

	nodes, err := s.GetAllNodesInfo(ctx)
	if err != nil {
		t.Fatalf("GetAllNodesInfo: %v", err)
	}
	if _, ok := nodes[n.UUID]; !ok {
		t.Fatalf("added node %s not present in GetAllNodesInfo result", n.UUID)
	}
	nodes[n.UUID].Name = "mutated"
	again, err := s.GetAllNodesInfo(ctx)
	if err != nil {
		t.Fatalf("GetAllNodesInfo (second call): %v", err)
	}
	if again[n.UUID].Name != "node2.example.com" {
		t.Fatalf("GetAllNodesInfo did not return a defensive copy: got name %q", again[n.UUID].Name)
	}
}

func TestRemoveNodeRejectsMasterNode(t *testing.T) {
	s, _ := newOfflineStore(t)
	ctx := context.Background()

	snapshot, err := s.GetDetachedConfig(ctx)
	if err != nil {
		t.Fatalf("GetDetachedConfig: %v", err)
	}
	if err := s.RemoveNode(ctx, snapshot.Cluster.MasterNode); err == nil {
		t.Fatalf("RemoveNode on the master node succeeded, want error")
	}
}

func TestUpdateRejectsStaleSerial(t *testing.T) {
	s, _ := newOfflineStore(t)
	ctx := context.Background()

	n := entity.NewNode("node2.example.com", "192.0.2.2", "", 1000)
	if err := s.AddNode(ctx, n); err != nil {
		t.Fatalf("AddNode: %v", err)
	}

	stale := *n

	current, err := s.GetAllNodesInfo(ctx)
	if err != nil {
		t.Fatalf("GetAllNodesInfo: %v", err)
	}
	fresh := *current[n.UUID]
	fresh.SecondaryIP = "192.0.2.22"
	if err := Update(ctx, s, &fresh); err != nil {
		t.Fatalf("Update with the current serial number failed: %v", err)
	}

	stale.Tags.Add("stale-write")
	if err := Update(ctx, s, &stale); err == nil {
		t.Fatalf("Update with a stale serial number succeeded, want a conflict error")
	}
}

func TestExpandNodeNameUniquePrefix(t *testing.T) {
	s, _ := newOfflineStore(t)
	ctx := context.Background()

	other1 := entity.NewNode("other1.example.com", "192.0.2.3", "", 1000)
	other2 := entity.NewNode("other2.example.com", "192.0.2.4", "", 1000)
	if err := s.AddNode(ctx, other1); err != nil {
		t.Fatalf("AddNode: %v", err)
	}
	if err := s.AddNode(ctx, other2); err != nil {
		t.Fatalf("AddNode: %v", err)
	}

	uuid, err := s.ExpandNodeName(ctx, "node1")
	if err != nil {
		t.Fatalf("ExpandNodeName: %v", err)
	}
	if uuid == "" {
		t.Fatalf("ExpandNodeName(node1) = empty, want a unique prefix match")
	}

	ambiguous, err := s.ExpandNodeName(ctx, "other")
	if err != nil {
		t.Fatalf("ExpandNodeName: %v", err)
	}
	if ambiguous != "" {
		t.Fatalf("ExpandNodeName(other) = %q, want empty on ambiguous prefix", ambiguous)
	}
}

package session

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/nimbusvm/clusterconf/pkg/entity"
	"github.com/nimbusvm/clusterconf/pkg/persist"
)

func newOfflineGraph(t *testing.T, path string) {
	t.Helper()
	cluster := entity.NewCluster("cluster.example.com", "node1.example.com", "192.0.2.1", 1000)
	cluster.RsaHostKeyPub = "ssh-rsa AAAA..."
	graph := entity.NewConfigData(cluster)
	node := entity.NewNode("node1.example.com", "192.0.2.1", "", 1000)
	graph.Nodes[node.UUID] = node
	cluster.MasterNode = node.UUID
	if _, err := persist.Save(path, persist.FileID{}, graph, persist.NoGroupChange); err != nil {
		t.Fatalf("seeding offline graph: %v", err)
	}
}

func TestOfflineOpenCloseExclusiveCommitsChanges(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.data")
	newOfflineGraph(t, path)

	m := NewManager(Config{
		Path:          path,
		GroupResolver: persist.NoGroupChange,
		MyHostname:    "node1.example.com",
	})
	ctx := context.Background()

	if err := m.Open(ctx, false, false); err != nil {
		t.Fatalf("Open: %v", err)
	}
	m.Graph().Cluster.VolumeGroupName = "xenvg"
	if err := m.Close(ctx, nil); err != nil {
		t.Fatalf("Close: %v", err)
	}

	m2 := NewManager(Config{Path: path, GroupResolver: persist.NoGroupChange, MyHostname: "node1.example.com"})
	if err := m2.Open(ctx, true, false); err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if m2.Graph().Cluster.VolumeGroupName != "xenvg" {
		t.Errorf("VolumeGroupName = %q, want %q", m2.Graph().Cluster.VolumeGroupName, "xenvg")
	}
	m2.Close(ctx, nil)
}

func TestOfflineOpenRejectsForeignMaster(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.data")
	newOfflineGraph(t, path)

	m := NewManager(Config{Path: path, GroupResolver: persist.NoGroupChange, MyHostname: "someone-else.example.com"})
	if err := m.Open(context.Background(), true, false); err == nil {
		t.Error("Open on a foreign master's config: want error, got nil")
	}
}

func TestReentrantOpenRejectsExclusiveUnderSharedWithoutForce(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.data")
	newOfflineGraph(t, path)

	m := NewManager(Config{Path: path, GroupResolver: persist.NoGroupChange, MyHostname: "node1.example.com"})
	ctx := context.Background()
	if err := m.Open(ctx, true, false); err != nil {
		t.Fatalf("outer Open: %v", err)
	}
	if err := m.Open(ctx, false, false); err == nil {
		t.Error("inner exclusive Open under a shared outer without force: want error, got nil")
	}
	if err := m.Open(ctx, false, true); err != nil {
		t.Errorf("inner exclusive Open with force: %v", err)
	}
	m.Close(ctx, nil)
	m.Close(ctx, nil)
}

func TestCloseWithExecErrorDiscardsMutations(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.data")
	newOfflineGraph(t, path)

	m := NewManager(Config{Path: path, GroupResolver: persist.NoGroupChange, MyHostname: "node1.example.com"})
	ctx := context.Background()
	if err := m.Open(ctx, false, false); err != nil {
		t.Fatalf("Open: %v", err)
	}
	m.Graph().Cluster.VolumeGroupName = "should-not-persist"
	if err := m.Close(ctx, os.ErrInvalid); err != nil {
		t.Fatalf("Close with exec error: %v", err)
	}

	m2 := NewManager(Config{Path: path, GroupResolver: persist.NoGroupChange, MyHostname: "node1.example.com"})
	if err := m2.Open(ctx, true, false); err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if m2.Graph().Cluster.VolumeGroupName == "should-not-persist" {
		t.Error("mutation survived a Close with a pending exec error")
	}
	m2.Close(ctx, nil)
}

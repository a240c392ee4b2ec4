package persist

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/nimbusvm/clusterconf/pkg/entity"
)

func newGraph() *entity.ConfigData {
	cluster := entity.NewCluster("test.example.com", "node1", "192.0.2.1", 1000)
	return entity.NewConfigData(cluster)
}

func TestSaveThenLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.data")

	graph := newGraph()
	fid, err := Save(path, FileID{}, graph, NoGroupChange)
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	loaded, loadedFID, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loadedFID != fid {
		t.Errorf("Load() fileID = %+v, want %+v", loadedFID, fid)
	}
	if loaded.Cluster.ClusterName != graph.Cluster.ClusterName {
		t.Errorf("loaded cluster name = %q, want %q", loaded.Cluster.ClusterName, graph.Cluster.ClusterName)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat after save: %v", err)
	}
	if info.Mode().Perm() != FileMode {
		t.Errorf("file mode = %v, want %v", info.Mode().Perm(), os.FileMode(FileMode))
	}
}

func TestSaveRejectsStaleFileID(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.data")

	graph := newGraph()
	if _, err := Save(path, FileID{}, graph, NoGroupChange); err != nil {
		t.Fatalf("initial Save() error = %v", err)
	}

	_, staleFID, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	// simulate an external modification between Load and Save
	if _, err := Save(path, staleFID, graph, NoGroupChange); err != nil {
		t.Fatalf("second Save() with fresh fileID error = %v", err)
	}

	if _, err := Save(path, staleFID, graph, NoGroupChange); err == nil {
		t.Error("Save() with stale fileID: want lock error, got nil")
	}
}

func TestLoadRejectsVersionMismatch(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.data")

	if err := os.WriteFile(path, []byte(`{"version": 1}`), 0640); err != nil {
		t.Fatalf("writing test fixture: %v", err)
	}

	if _, _, err := Load(path); err == nil {
		t.Error("Load() with wrong version: want error, got nil")
	}
}

func TestLoadMissingFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "does-not-exist.data")

	if _, _, err := Load(path); err == nil {
		t.Error("Load() on missing file: want error, got nil")
	}
}

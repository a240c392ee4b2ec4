// Package persist implements the offline persistence path: reading and
// atomically writing the whole configuration graph to a single JSON file,
// guarded by a file identity token that detects concurrent external
// modification. It is the counterpart to pkg/lockd for clusters running
// without the external lock/coordination daemon.
package persist

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/nimbusvm/clusterconf/pkg/confutil"
	"github.com/nimbusvm/clusterconf/pkg/entity"
)

// FileMode is the permission bits every persisted config file and its
// replacement temp file are written with.
const FileMode = 0640

// FileID is an opaque token identifying a specific on-disk revision of
// the config file, derived from its inode, modification time, and size.
// Save compares a freshly read FileID against the one the caller loaded
// from to detect an external write that happened in between.
type FileID struct {
	Inode   uint64
	ModTime int64
	Size    int64
}

// Equal reports whether two FileIDs identify the same file revision.
func (f FileID) Equal(other FileID) bool {
	return f == other
}

// GroupResolver resolves the numeric group ID that persisted config files
// should be owned by (the "confd" group identity in the original). It is
// pluggable so tests and non-POSIX environments don't need a real
// /etc/group entry.
type GroupResolver interface {
	ResolveGroupID() (int, error)
}

// GroupResolverFunc adapts a function to GroupResolver.
type GroupResolverFunc func() (int, error)

// ResolveGroupID calls f.
func (f GroupResolverFunc) ResolveGroupID() (int, error) { return f() }

// NoGroupChange is a GroupResolver that leaves file ownership untouched,
// for platforms or deployments where there is no "confd" group to chown to.
var NoGroupChange GroupResolver = GroupResolverFunc(func() (int, error) { return -1, nil })

// Load reads the config graph from path, validates its version, and
// returns the parsed graph together with a FileID describing the
// revision just read. A missing file is reported as a ConfigurationError,
// not silently treated as an empty graph, since offline callers always
// expect a bootstrap to have created it first.
func Load(path string) (*entity.ConfigData, FileID, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, FileID{}, confutil.NewConfigurationErrorf("reading config file %s: %v", path, err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, FileID{}, confutil.NewConfigurationErrorf("reading config file %s: %v", path, err)
	}

	var graph entity.ConfigData
	if err := json.Unmarshal(data, &graph); err != nil {
		return nil, FileID{}, confutil.NewConfigurationErrorf("parsing config file %s: %v", path, err)
	}

	if graph.Version != entity.CurrentConfigVersion {
		return nil, FileID{}, confutil.NewConfigVersionMismatchError(graph.Version, entity.CurrentConfigVersion)
	}

	return &graph, fileIDOf(info), nil
}

// Save atomically replaces path's contents with graph, refusing to write
// if the file's identity has changed since expected (someone else wrote
// it in the meantime). On success it returns the new FileID.
func Save(path string, expected FileID, graph *entity.ConfigData, group GroupResolver) (FileID, error) {
	if info, err := os.Stat(path); err == nil {
		current := fileIDOf(info)
		if !current.Equal(expected) {
			return FileID{}, confutil.NewLockError(
				fmt.Sprintf("config file %s was modified externally since it was loaded", path))
		}
	} else if !os.IsNotExist(err) {
		return FileID{}, confutil.NewConfigurationErrorf("stat %s: %v", path, err)
	}

	data, err := json.MarshalIndent(graph, "", "  ")
	if err != nil {
		return FileID{}, confutil.NewConfigurationErrorf("marshaling config graph: %v", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return FileID{}, confutil.NewConfigurationErrorf("creating config directory %s: %v", dir, err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return FileID{}, confutil.NewConfigurationErrorf("creating temp file in %s: %v", dir, err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return FileID{}, confutil.NewConfigurationErrorf("writing temp file %s: %v", tmpPath, err)
	}
	if err := tmp.Close(); err != nil {
		return FileID{}, confutil.NewConfigurationErrorf("closing temp file %s: %v", tmpPath, err)
	}

	if err := os.Chmod(tmpPath, FileMode); err != nil {
		return FileID{}, confutil.NewConfigurationErrorf("chmod temp file %s: %v", tmpPath, err)
	}

	if gid, err := group.ResolveGroupID(); err == nil && gid >= 0 {
		_ = os.Chown(tmpPath, -1, gid)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return FileID{}, confutil.NewConfigurationErrorf("replacing %s: %v", path, err)
	}

	info, err := os.Stat(path)
	if err != nil {
		return FileID{}, confutil.NewConfigurationErrorf("stat %s after write: %v", path, err)
	}
	return fileIDOf(info), nil
}

//go:build unix

package persist

import (
	"os"
	"syscall"
)

// fileIDOf derives a FileID from the inode, mtime, and size reported by
// the platform's stat(2) result.
func fileIDOf(info os.FileInfo) FileID {
	id := FileID{
		ModTime: info.ModTime().UnixNano(),
		Size:    info.Size(),
	}
	if sys, ok := info.Sys().(*syscall.Stat_t); ok {
		id.Inode = sys.Ino
	}
	return id
}

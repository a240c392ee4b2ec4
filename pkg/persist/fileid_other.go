//go:build !unix

package persist

import "os"

// fileIDOf falls back to mtime+size only on non-Unix platforms, where
// there is no portable inode number to read.
func fileIDOf(info os.FileInfo) FileID {
	return FileID{
		ModTime: info.ModTime().UnixNano(),
		Size:    info.Size(),
	}
}

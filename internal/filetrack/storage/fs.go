package storage

import (
	"io"
	"io/fs"
)

// FS filesystem operations the lifecycle layer depends on
type FS interface {
	// Stat returns file info, fs.ErrNotExist when absent
	Stat(name string) (fs.FileInfo, error)

	// Exists reports whether name exists
	Exists(name string) (bool, error)

	// Open opens name for reading
	Open(name string) (io.ReadCloser, error)

	// ReadFile reads the whole file
	ReadFile(name string) ([]byte, error)

	// Move renames src to dst, copying across devices.
	// Fails with fs.ErrExist when dst is already present.
	Move(src, dst string) error

	// Copy copies src to dst without touching src.
	// Fails with fs.ErrExist when dst is already present.
	Copy(src, dst string) error

	// Remove deletes a file
	Remove(name string) error

	// RemoveAll deletes a tree
	RemoveAll(name string) error

	// MkdirAll creates a directory tree
	MkdirAll(name string, perm fs.FileMode) error

	// WriteFileAtomic writes temp, fsyncs, renames over name
	WriteFileAtomic(name string, data []byte, perm fs.FileMode) error

	// WalkDir walks the tree rooted at root
	WalkDir(root string, fn fs.WalkDirFunc) error
}

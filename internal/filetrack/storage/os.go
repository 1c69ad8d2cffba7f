package storage

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// OS implements FS on the local disk
type OS struct{}

// NewOS returns the disk-backed FS
func NewOS() *OS {
	return &OS{}
}

func (OS) Stat(name string) (fs.FileInfo, error) {
	return os.Stat(name)
}

func (OS) Exists(name string) (bool, error) {
	_, err := os.Stat(name)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, err
}

func (OS) Open(name string) (io.ReadCloser, error) {
	return os.Open(name)
}

func (OS) ReadFile(name string) ([]byte, error) {
	return os.ReadFile(name)
}

func (o OS) Move(src, dst string) error {
	if err := o.ensureAbsent(dst); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}

	if err := os.Rename(src, dst); err == nil {
		return nil
	} else if errors.Is(err, fs.ErrNotExist) {
		return err
	}

	// cross-device: copy then drop the source
	if err := o.Copy(src, dst); err != nil {
		return err
	}
	if err := os.Remove(src); err != nil {
		_ = os.Remove(dst)
		return err
	}
	return nil
}

func (o OS) Copy(src, dst string) error {
	if err := o.ensureAbsent(dst); err != nil {
		return err
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}

	return writeAtomic(dst, info.Mode().Perm(), func(w io.Writer) error {
		_, err := io.Copy(w, in)
		return err
	})
}

func (OS) Remove(name string) error {
	return os.Remove(name)
}

func (OS) RemoveAll(name string) error {
	return os.RemoveAll(name)
}

func (OS) MkdirAll(name string, perm fs.FileMode) error {
	return os.MkdirAll(name, perm)
}

func (OS) WriteFileAtomic(name string, data []byte, perm fs.FileMode) error {
	return writeAtomic(name, perm, func(w io.Writer) error {
		_, err := w.Write(data)
		return err
	})
}

func (OS) WalkDir(root string, fn fs.WalkDirFunc) error {
	return filepath.WalkDir(root, fn)
}

func (o OS) ensureAbsent(dst string) error {
	exists, err := o.Exists(dst)
	if err != nil {
		return err
	}
	if exists {
		return &fs.PathError{Op: "create", Path: dst, Err: fs.ErrExist}
	}
	return nil
}

// writeAtomic: temp file in the target directory -> fsync -> rename
func writeAtomic(name string, perm fs.FileMode, fill func(io.Writer) error) error {
	dir := filepath.Dir(name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(name)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	fail := func(err error) error {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}

	if err := fill(tmp); err != nil {
		return fail(fmt.Errorf("write temp file: %w", err))
	}
	if err := tmp.Sync(); err != nil {
		return fail(fmt.Errorf("fsync: %w", err))
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Chmod(tmpPath, perm); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := os.Rename(tmpPath, name); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("atomic rename: %w", err)
	}
	return nil
}

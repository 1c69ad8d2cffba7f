package migration

import (
	"context"
	"io/fs"
	"path/filepath"

	"github.com/lk2023060901/docsense-backend/internal/filetrack/storage"
)

// copyTree copies every regular file below src into dst, keeping the
// relative layout
func copyTree(ctx context.Context, fsys storage.FS, src, dst string) (int, error) {
	if err := fsys.MkdirAll(dst, 0o755); err != nil {
		return 0, err
	}

	copied := 0
	err := fsys.WalkDir(src, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)

		if d.IsDir() {
			return fsys.MkdirAll(target, 0o755)
		}
		if !d.Type().IsRegular() {
			return nil
		}
		if err := fsys.Copy(path, target); err != nil {
			return err
		}
		copied++
		return nil
	})
	return copied, err
}

// restoreTree replaces dst with the contents of backup
func restoreTree(ctx context.Context, fsys storage.FS, backup, dst string) error {
	if err := fsys.RemoveAll(dst); err != nil {
		return err
	}
	_, err := copyTree(ctx, fsys, backup, dst)
	return err
}

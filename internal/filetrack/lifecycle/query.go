package lifecycle

import (
	"context"
	"errors"
	"io/fs"
	"path/filepath"
	"strings"
	"time"

	"github.com/lk2023060901/docsense-backend/internal/filetrack/index"
	"github.com/lk2023060901/docsense-backend/internal/filetrack/registry"
	"github.com/lk2023060901/docsense-backend/internal/filetrack/types"
	apperrors "github.com/lk2023060901/docsense-backend/internal/pkg/errors"
	"github.com/lk2023060901/docsense-backend/internal/pkg/metrics"
	"go.uber.org/zap"
)

// StatusView status of a path or id with the record payload, if any
type StatusView struct {
	Status       types.Status `json:"status"`
	FileID       string       `json:"file_id,omitempty"`
	OriginalName string       `json:"original_name,omitempty"`
	FileName     string       `json:"file_name,omitempty"`
	Analysis     string       `json:"analysis,omitempty"`
	Error        string       `json:"error,omitempty"`
	Generation   int          `json:"generation,omitempty"`
	ModifiedAt   *time.Time   `json:"modified_at,omitempty"`
}

// ScanEntry one file found by Scan
type ScanEntry struct {
	Path         string       `json:"path"`
	RelativePath string       `json:"relative_path"`
	Size         int64        `json:"size"`
	Modified     time.Time    `json:"modified"`
	Status       types.Status `json:"status"`
	FileID       string       `json:"file_id,omitempty"`
	Analysis     string       `json:"analysis,omitempty"`
	Error        string       `json:"error,omitempty"`
	AnalyzedAt   *time.Time   `json:"analyzed_at,omitempty"`
}

// StatusStat count and total bytes of one status
type StatusStat struct {
	Count     int   `json:"count"`
	TotalSize int64 `json:"total_size"`
}

// Get returns a copy of the record
func (m *Manager) Get(id string) (*registry.FileRecord, error) {
	rec, ok := m.reg.Get(id)
	if !ok {
		return nil, apperrors.NewNotFoundError(id)
	}
	return rec, nil
}

// GetStatus resolves a path on disk to its record by base name and content
// hash. A missing path is unregistered; an existing path without a
// matching record is unanalyzed.
func (m *Manager) GetStatus(ctx context.Context, originalPath string) (StatusView, error) {
	rec, err := m.resolver.Resolve(originalPath)
	switch {
	case errors.Is(err, index.ErrUnregistered):
		return StatusView{Status: types.StatusUnregistered}, nil
	case errors.Is(err, index.ErrUnanalyzed):
		return StatusView{Status: types.StatusUnanalyzed}, nil
	case err != nil:
		return StatusView{}, err
	}
	return ViewOf(rec), nil
}

// StatusByID reports the status of id, unregistered when unknown
func (m *Manager) StatusByID(id string) StatusView {
	rec, ok := m.reg.Get(id)
	if !ok {
		return StatusView{Status: types.StatusUnregistered}
	}
	return ViewOf(rec)
}

// Scan walks dir and reports the status of every regular file below it.
// The managed directory and dot files are skipped. Per-file failures are
// reported on the entry rather than aborting the scan.
func (m *Manager) Scan(ctx context.Context, dir string) ([]ScanEntry, error) {
	root, err := filepath.Abs(dir)
	if err != nil {
		return nil, apperrors.NewBadRequestError("invalid directory " + dir)
	}
	info, err := m.fs.Stat(root)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, apperrors.NewNotFoundError(dir)
	}
	if err != nil {
		return nil, apperrors.NewIOError(err, "stat "+dir)
	}
	if !info.IsDir() {
		return nil, apperrors.NewBadRequestError(dir + " is not a directory")
	}

	entries := make([]ScanEntry, 0)
	err = m.fs.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if walkErr != nil {
			m.logger.Warn("scan: skipping unreadable entry", zap.String("path", path), zap.Error(walkErr))
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			if path == m.dir || (path != root && strings.HasPrefix(d.Name(), ".")) {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(d.Name(), ".") || !d.Type().IsRegular() {
			return nil
		}

		entries = append(entries, m.scanEntry(ctx, root, path, d))
		return nil
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, apperrors.NewIOError(err, "scan "+dir)
	}
	return entries, nil
}

func (m *Manager) scanEntry(ctx context.Context, root, path string, d fs.DirEntry) ScanEntry {
	rel, _ := filepath.Rel(root, path)
	entry := ScanEntry{Path: path, RelativePath: filepath.ToSlash(rel)}

	if info, err := d.Info(); err == nil {
		entry.Size = info.Size()
		entry.Modified = info.ModTime()
	}

	view, err := m.GetStatus(ctx, path)
	if err != nil {
		entry.Status = types.StatusUnanalyzed
		entry.Error = err.Error()
		return entry
	}

	entry.Status = view.Status
	entry.FileID = view.FileID
	entry.Analysis = view.Analysis
	entry.Error = view.Error
	if view.Status == types.StatusCompleted || view.Status == types.StatusFailed || view.Status == types.StatusArchived {
		entry.AnalyzedAt = view.ModifiedAt
	}
	return entry
}

// Statistics count and bytes per record status; every status is present
func (m *Manager) Statistics() map[types.Status]StatusStat {
	stats := make(map[types.Status]StatusStat, len(types.AllStatuses))
	for _, s := range types.AllStatuses {
		stats[s] = StatusStat{}
	}
	for _, rec := range m.reg.All() {
		st := stats[rec.Status]
		st.Count++
		st.TotalSize += rec.Size
		stats[rec.Status] = st
	}
	for s, st := range stats {
		metrics.FilesTotal.WithLabelValues(string(s)).Set(float64(st.Count))
	}
	return stats
}

// ViewOf status view of a record
func ViewOf(rec *registry.FileRecord) StatusView {
	modified := rec.ModifiedAt
	return StatusView{
		Status:       rec.Status,
		FileID:       rec.ID,
		OriginalName: rec.OriginalName,
		FileName:     rec.FileName,
		Analysis:     rec.Analysis,
		Error:        rec.Error,
		Generation:   rec.Generation,
		ModifiedAt:   &modified,
	}
}

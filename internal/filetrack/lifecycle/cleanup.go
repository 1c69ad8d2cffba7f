package lifecycle

import (
	"context"
	"errors"
	"io/fs"
	"time"

	"github.com/lk2023060901/docsense-backend/internal/filetrack/types"
	apperrors "github.com/lk2023060901/docsense-backend/internal/pkg/errors"
	"github.com/lk2023060901/docsense-backend/internal/pkg/metrics"
	"go.uber.org/zap"
)

// Cleanup permanently deletes archived records, and their files, whose
// MovedAt is older than retentionDays. A record whose file is already gone
// is dropped as well; one whose file cannot be checked or removed is kept.
// Returns the number of records deleted.
func (m *Manager) Cleanup(ctx context.Context, retentionDays int) (int, error) {
	if retentionDays < 0 {
		return 0, apperrors.NewBadRequestError("retention days must not be negative")
	}

	unlock, err := m.lock(ctx)
	if err != nil {
		return 0, err
	}
	defer unlock()

	cutoff := m.now().UTC().Add(-time.Duration(retentionDays) * 24 * time.Hour)
	deleted := 0

	for _, rec := range m.reg.FindByStatus(types.StatusArchived) {
		if err := ctx.Err(); err != nil {
			break
		}
		if !rec.MovedAt.Before(cutoff) {
			continue
		}

		path := m.Path(rec.FileName)
		exists, err := m.fs.Exists(path)
		if err != nil {
			metrics.CleanupTotal.WithLabelValues("skipped").Inc()
			m.logger.Warn("cleanup: cannot check archived file, skipping",
				zap.String("file_id", rec.ID), zap.String("path", path), zap.Error(err))
			continue
		}

		if !exists {
			m.logger.Warn("cleanup: archived file already gone, dropping record",
				zap.String("file_id", rec.ID), zap.String("path", path))
		} else if err := m.fs.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			metrics.CleanupTotal.WithLabelValues("error").Inc()
			m.logger.Error("cleanup: failed to remove file",
				zap.String("file_id", rec.ID), zap.String("path", path), zap.Error(err))
			continue
		}

		m.reg.Delete(rec.ID)
		m.idx.RemoveID(rec.ID)
		deleted++
		metrics.CleanupTotal.WithLabelValues("deleted").Inc()
		m.logger.Info("cleanup: deleted archived file",
			zap.String("file_id", rec.ID), zap.String("original_name", rec.OriginalName))
	}

	if deleted == 0 {
		return 0, ctx.Err()
	}
	if err := m.persist(context.WithoutCancel(ctx)); err != nil {
		return deleted, err
	}
	return deleted, ctx.Err()
}

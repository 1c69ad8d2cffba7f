package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"io/fs"

	"github.com/lk2023060901/docsense-backend/internal/filetrack/naming"
	"github.com/lk2023060901/docsense-backend/internal/filetrack/registry"
	"github.com/lk2023060901/docsense-backend/internal/filetrack/types"
	apperrors "github.com/lk2023060901/docsense-backend/internal/pkg/errors"
	"github.com/lk2023060901/docsense-backend/internal/pkg/metrics"
	"go.uber.org/zap"
)

// validTransitions forward edges of the state machine. failed -> pending
// happens only through re-registration, completed/failed -> pending only
// through a forced re-analysis.
var validTransitions = map[types.Status][]types.Status{
	types.StatusPending:    {types.StatusInProgress},
	types.StatusInProgress: {types.StatusCompleted, types.StatusFailed},
	types.StatusCompleted:  {types.StatusArchived},
	types.StatusFailed:     {types.StatusArchived},
	types.StatusArchived:   {},
}

// CanTransition reports whether from -> to is a forward edge
func CanTransition(from, to types.Status) bool {
	for _, next := range validTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// StartAnalysis pending -> in_progress
func (m *Manager) StartAnalysis(ctx context.Context, id string) (*registry.FileRecord, error) {
	return m.transition(ctx, id, types.StatusInProgress, nil)
}

// CompleteAnalysis in_progress -> completed, storing the analysis text
func (m *Manager) CompleteAnalysis(ctx context.Context, id, analysis string) (*registry.FileRecord, error) {
	return m.transition(ctx, id, types.StatusCompleted, func(rec *registry.FileRecord) {
		rec.Analysis = analysis
		rec.Error = ""
	})
}

// MarkFailed in_progress -> failed, storing the error message
func (m *Manager) MarkFailed(ctx context.Context, id, message string) (*registry.FileRecord, error) {
	return m.transition(ctx, id, types.StatusFailed, func(rec *registry.FileRecord) {
		rec.Error = message
	})
}

// Archive completed|failed -> archived. Analysis and error are retained.
func (m *Manager) Archive(ctx context.Context, id string) (*registry.FileRecord, error) {
	return m.transition(ctx, id, types.StatusArchived, nil)
}

// Reanalyze sends a completed or failed record back to pending, clearing
// its payload and bumping Generation. The record and managed artifact are
// reused; without force the call is rejected.
func (m *Manager) Reanalyze(ctx context.Context, id string, force bool) (*registry.FileRecord, error) {
	unlock, err := m.lock(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()

	rec, ok := m.reg.Get(id)
	if !ok {
		return nil, apperrors.NewNotFoundError(id)
	}
	if rec.Status != types.StatusCompleted && rec.Status != types.StatusFailed {
		return nil, transitionError(rec.Status, types.StatusPending)
	}
	if !force {
		return nil, apperrors.New(apperrors.ErrInvalidTransition,
			fmt.Sprintf("%s is %s; re-analysis requires force", id, rec.Status))
	}

	return m.applyLocked(ctx, rec, types.StatusPending, func(r *registry.FileRecord) {
		r.Analysis = ""
		r.Error = ""
		r.Generation++
	})
}

func (m *Manager) transition(ctx context.Context, id string, to types.Status, mutate func(*registry.FileRecord)) (*registry.FileRecord, error) {
	unlock, err := m.lock(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()

	rec, ok := m.reg.Get(id)
	if !ok {
		return nil, apperrors.NewNotFoundError(id)
	}
	if !CanTransition(rec.Status, to) {
		metrics.TransitionsTotal.WithLabelValues(string(rec.Status), string(to), "rejected").Inc()
		return nil, transitionError(rec.Status, to)
	}
	return m.applyLocked(ctx, rec, to, mutate)
}

// applyLocked renames the artifact, updates the record and persists. A
// failed save puts both the artifact and the record back. Caller holds the
// lock.
func (m *Manager) applyLocked(ctx context.Context, rec *registry.FileRecord, to types.Status, mutate func(*registry.FileRecord)) (*registry.FileRecord, error) {
	from := rec.Status
	prev := rec.Clone()

	newName, err := naming.FileName(rec.CreatedAt, to, rec.Hash, rec.OriginalName)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrInternalServer, "encode file name")
	}
	src, dst := m.Path(rec.FileName), m.Path(newName)

	if err := m.move(src, dst); err != nil {
		metrics.TransitionsTotal.WithLabelValues(string(from), string(to), "error").Inc()
		return nil, err
	}

	now := m.now().UTC()
	rec.Status = to
	rec.FileName = newName
	rec.ModifiedAt = now
	rec.MovedAt = now
	if mutate != nil {
		mutate(rec)
	}

	if err := m.reg.Put(rec); err != nil {
		m.rollbackMove(src, dst)
		return nil, apperrors.Wrap(err, apperrors.ErrInternalServer)
	}

	if err := m.persist(ctx); err != nil {
		_ = m.reg.Put(prev)
		m.rollbackMove(src, dst)
		metrics.TransitionsTotal.WithLabelValues(string(from), string(to), "error").Inc()
		return nil, err
	}

	metrics.TransitionsTotal.WithLabelValues(string(from), string(to), "ok").Inc()
	m.logger.Info("file status changed",
		zap.String("file_id", rec.ID),
		zap.String("from", string(from)),
		zap.String("to", string(to)),
		zap.String("file_name", newName))
	return rec.Clone(), nil
}

// move renames src to dst. A destination left behind by an interrupted
// earlier run is kept and the source discarded.
func (m *Manager) move(src, dst string) error {
	if src == dst {
		return nil
	}

	err := m.fs.Move(src, dst)
	switch {
	case err == nil:
		return nil

	case errors.Is(err, fs.ErrExist):
		metrics.DuplicateArtifactsTotal.Inc()
		m.logger.Warn("destination already present, discarding source",
			zap.String("src", src),
			zap.Error(apperrors.New(apperrors.ErrFileDuplicateArtifact, dst)))
		if rmErr := m.fs.Remove(src); rmErr != nil && !errors.Is(rmErr, fs.ErrNotExist) {
			return apperrors.NewIOError(rmErr, "remove duplicate "+src)
		}
		return nil

	case errors.Is(err, fs.ErrNotExist):
		if ok, _ := m.fs.Exists(dst); ok {
			m.logger.Warn("source missing but destination present, treating move as done",
				zap.String("src", src), zap.String("dst", dst))
			return nil
		}
		return apperrors.Wrap(err, apperrors.ErrFileNotFound, src)

	default:
		return apperrors.NewIOError(err, "move "+src)
	}
}

func (m *Manager) rollbackMove(src, dst string) {
	if src == dst {
		return
	}
	if err := m.fs.Move(dst, src); err != nil {
		m.logger.Error("failed to roll back move",
			zap.String("src", dst), zap.String("dst", src), zap.Error(err))
	}
}

func transitionError(from, to types.Status) error {
	return apperrors.New(apperrors.ErrInvalidTransition, fmt.Sprintf("%s -> %s", from, to))
}

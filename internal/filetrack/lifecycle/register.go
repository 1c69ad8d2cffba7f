package lifecycle

import (
	"context"
	"errors"
	"io/fs"
	"path/filepath"
	"time"

	"github.com/lk2023060901/docsense-backend/internal/filetrack/naming"
	"github.com/lk2023060901/docsense-backend/internal/filetrack/registry"
	"github.com/lk2023060901/docsense-backend/internal/filetrack/types"
	apperrors "github.com/lk2023060901/docsense-backend/internal/pkg/errors"
	"go.uber.org/zap"
)

// Register places the content of path under management as pending.
//
// originalPath is the provenance recorded on the record and its base name
// is the index key; when empty, path is used. Known content returns the
// existing record (created=false) and adds the name to the index; a failed
// record is reset to pending. A known record whose artifact has gone missing
// gets it back from path.
func (m *Manager) Register(ctx context.Context, path, originalPath string) (rec *registry.FileRecord, created bool, err error) {
	if originalPath == "" {
		originalPath = path
	}

	info, err := m.fs.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, false, apperrors.NewNotFoundError(path)
	}
	if err != nil {
		return nil, false, apperrors.NewIOError(err, "stat "+path)
	}
	if info.IsDir() {
		return nil, false, apperrors.NewBadRequestError(path + " is a directory")
	}

	sum, err := m.hasher.Hash(path)
	if err != nil {
		return nil, false, err
	}
	name := filepath.Base(originalPath)

	unlock, err := m.lock(ctx)
	if err != nil {
		return nil, false, err
	}
	defer unlock()

	if existing, ok := m.reg.Get(sum); ok {
		if err := m.restoreArtifact(existing, path); err != nil {
			return nil, false, err
		}
		m.idx.Add(name, existing.ID)

		if existing.Status == types.StatusFailed {
			m.logger.Info("re-registering failed file", zap.String("file_id", existing.ID))
			rec, err := m.applyLocked(ctx, existing, types.StatusPending, func(r *registry.FileRecord) {
				r.Error = ""
				r.Analysis = ""
			})
			if err != nil {
				return nil, false, err
			}
			return rec, false, nil
		}

		if err := m.persist(ctx); err != nil {
			return nil, false, err
		}
		m.logger.Debug("content already registered",
			zap.String("file_id", existing.ID), zap.String("status", string(existing.Status)))
		return existing, false, nil
	}

	now := m.now().UTC()
	rec = &registry.FileRecord{
		ID:           sum,
		Hash:         sum,
		OriginalName: name,
		OriginalPath: originalPath,
		Status:       types.StatusPending,
		Size:         info.Size(),
		CreatedAt:    now,
		ModifiedAt:   now,
		MovedAt:      now,
	}

	written, err := m.placeLocked(ctx, rec, path)
	if err != nil {
		return nil, false, err
	}

	m.logger.Info("file registered",
		zap.String("file_id", rec.ID),
		zap.String("original_path", originalPath),
		zap.String("file_name", rec.FileName),
		zap.Bool("artifact_reused", written == ""))
	return rec.Clone(), true, nil
}

// ImportRequest a record carried over from another store
type ImportRequest struct {
	SourcePath   string
	OriginalName string
	OriginalPath string
	LegacyID     string
	Status       types.Status
	Analysis     string
	Error        string
	CreatedAt    time.Time
	ModifiedAt   time.Time
}

// ImportResult outcome of Import
type ImportResult struct {
	Record *registry.FileRecord
	// Created is false when the content was already tracked
	Created bool
	// Written is the managed file this call created, empty if none
	Written string
}

// Import copies SourcePath into managed storage with the given status and
// payload, keeping the source untouched. Imports are persisted by the next
// Flush.
func (m *Manager) Import(ctx context.Context, req ImportRequest) (*ImportResult, error) {
	if !req.Status.Valid() {
		return nil, apperrors.NewBadRequestError("invalid status " + string(req.Status))
	}

	info, err := m.fs.Stat(req.SourcePath)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, apperrors.NewNotFoundError(req.SourcePath)
	}
	if err != nil {
		return nil, apperrors.NewIOError(err, "stat "+req.SourcePath)
	}

	sum, err := m.hasher.Hash(req.SourcePath)
	if err != nil {
		return nil, err
	}

	unlock, err := m.lock(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()

	name := req.OriginalName
	if name == "" {
		name = filepath.Base(req.SourcePath)
	}

	if existing, ok := m.reg.Get(sum); ok {
		m.idx.Add(name, existing.ID)
		return &ImportResult{Record: existing}, nil
	}

	now := m.now().UTC()
	created := req.CreatedAt
	if created.IsZero() {
		created = now
	}
	modified := req.ModifiedAt
	if modified.IsZero() {
		modified = created
	}

	rec := &registry.FileRecord{
		ID:           sum,
		Hash:         sum,
		LegacyID:     req.LegacyID,
		OriginalName: name,
		OriginalPath: req.OriginalPath,
		Status:       req.Status,
		Analysis:     req.Analysis,
		Error:        req.Error,
		Size:         info.Size(),
		CreatedAt:    created.UTC(),
		ModifiedAt:   modified.UTC(),
		MovedAt:      now,
	}

	fileName, err := naming.FileName(rec.CreatedAt, rec.Status, rec.Hash, rec.OriginalName)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrInternalServer, "encode file name")
	}
	rec.FileName = fileName

	written, err := m.copyIn(req.SourcePath, m.Path(fileName))
	if err != nil {
		return nil, err
	}
	if err := m.reg.Put(rec); err != nil {
		m.removeWritten(written)
		return nil, apperrors.Wrap(err, apperrors.ErrInternalServer)
	}
	m.idx.Add(rec.OriginalName, rec.ID)
	m.dirty = true

	return &ImportResult{Record: rec.Clone(), Created: true, Written: written}, nil
}

// Flush persists registry and index
func (m *Manager) Flush(ctx context.Context) error {
	unlock, err := m.lock(ctx)
	if err != nil {
		return err
	}
	defer unlock()
	return m.persist(ctx)
}

// placeLocked copies src under rec's pending name, inserts rec and
// persists, undoing all of it on failure. Returns the file it wrote.
func (m *Manager) placeLocked(ctx context.Context, rec *registry.FileRecord, src string) (string, error) {
	fileName, err := naming.FileName(rec.CreatedAt, rec.Status, rec.Hash, rec.OriginalName)
	if err != nil {
		return "", apperrors.Wrap(err, apperrors.ErrInternalServer, "encode file name")
	}
	rec.FileName = fileName

	written, err := m.copyIn(src, m.Path(fileName))
	if err != nil {
		return "", err
	}

	if err := m.reg.Put(rec); err != nil {
		m.removeWritten(written)
		return "", apperrors.Wrap(err, apperrors.ErrInternalServer)
	}
	m.idx.Add(rec.OriginalName, rec.ID)

	if err := m.persist(ctx); err != nil {
		m.reg.Delete(rec.ID)
		m.idx.Remove(rec.OriginalName, rec.ID)
		m.removeWritten(written)
		return "", err
	}
	return written, nil
}

// restoreArtifact copies src back under rec's current name when the managed
// file is missing
func (m *Manager) restoreArtifact(rec *registry.FileRecord, src string) error {
	dst := m.Path(rec.FileName)
	exists, err := m.fs.Exists(dst)
	if err != nil {
		return apperrors.NewIOError(err, "stat "+dst)
	}
	if exists {
		return nil
	}
	if _, err := m.copyIn(src, dst); err != nil {
		return err
	}
	m.logger.Warn("managed artifact was missing, restored from source",
		zap.String("file_id", rec.ID), zap.String("file_name", rec.FileName))
	return nil
}

// copyIn copies src to dst. An identical artifact already at dst is
// adopted and "" is returned in place of the written path.
func (m *Manager) copyIn(src, dst string) (string, error) {
	err := m.fs.Copy(src, dst)
	if err == nil {
		return dst, nil
	}
	if errors.Is(err, fs.ErrExist) {
		m.logger.Warn("managed artifact already present, adopting it",
			zap.Error(apperrors.New(apperrors.ErrFileDuplicateArtifact, dst)))
		return "", nil
	}
	return "", apperrors.NewIOError(err, "copy "+src)
}

func (m *Manager) removeWritten(path string) {
	if path == "" {
		return
	}
	if err := m.fs.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		m.logger.Error("failed to remove partially placed file", zap.String("path", path), zap.Error(err))
	}
}

// Discard removes a file written by Import; used by callers rolling back
// a batch of imports.
func (m *Manager) Discard(written string) {
	m.removeWritten(written)
}

// Snapshot point-in-time copy of registry and index
type Snapshot struct {
	registry *registry.Document
	index    map[string][]string
}

// Snapshot captures registry and index for a later Restore
func (m *Manager) Snapshot(ctx context.Context) (*Snapshot, error) {
	unlock, err := m.lock(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()
	return &Snapshot{registry: m.reg.Snapshot(), index: m.idx.Snapshot()}, nil
}

// Restore puts registry and index back to snap and persists them
func (m *Manager) Restore(ctx context.Context, snap *Snapshot) error {
	unlock, err := m.lock(ctx)
	if err != nil {
		return err
	}
	defer unlock()
	m.reg.Restore(snap.registry)
	m.idx.Restore(snap.index)
	return m.persist(ctx)
}

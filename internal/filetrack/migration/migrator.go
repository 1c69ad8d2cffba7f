// Package migration converts the legacy per-status-directory store into
// managed storage, with a full backup taken first and a rollback on any
// failure.
package migration

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"time"

	"github.com/lk2023060901/docsense-backend/internal/filetrack/lifecycle"
	"github.com/lk2023060901/docsense-backend/internal/filetrack/storage"
	"github.com/lk2023060901/docsense-backend/internal/filetrack/types"
	apperrors "github.com/lk2023060901/docsense-backend/internal/pkg/errors"
	"github.com/lk2023060901/docsense-backend/internal/pkg/logger"
	"go.uber.org/zap"
)

// BackupSink receives a copy of the backup directory
type BackupSink interface {
	Upload(ctx context.Context, dir, prefix string) (int, error)
}

// Config migration settings
type Config struct {
	LegacyRoot string
	BackupDir  string
}

// Result outcome of a successful migration
type Result struct {
	Migrated   int    `json:"migrated"`
	Duplicates int    `json:"duplicates"`
	BackupPath string `json:"backup_path"`
	Uploaded   int    `json:"uploaded"`
}

// MigrationError the migration was rolled back
type MigrationError struct {
	RecordID   string
	BackupPath string
	Err        error
}

func (e *MigrationError) Error() string {
	if e.RecordID == "" {
		return fmt.Sprintf("migration rolled back: %v", e.Err)
	}
	return fmt.Sprintf("migration rolled back at record %s: %v", e.RecordID, e.Err)
}

func (e *MigrationError) Unwrap() error {
	return e.Err
}

// Migrator MigrationAdapter
type Migrator struct {
	mgr    *lifecycle.Manager
	fs     storage.FS
	cfg    Config
	sink   BackupSink
	now    func() time.Time
	logger *logger.Logger
}

// Option configures a Migrator
type Option func(*Migrator)

// WithBackupSink uploads the backup after a successful migration
func WithBackupSink(sink BackupSink) Option {
	return func(m *Migrator) { m.sink = sink }
}

// WithClock overrides time.Now
func WithClock(now func() time.Time) Option {
	return func(m *Migrator) { m.now = now }
}

// New creates a Migrator
func New(mgr *lifecycle.Manager, fsys storage.FS, cfg Config, log *logger.Logger, opts ...Option) *Migrator {
	m := &Migrator{
		mgr:    mgr,
		fs:     fsys,
		cfg:    cfg,
		now:    time.Now,
		logger: logger.OrGlobal(log).Named("migration"),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Migrate imports every legacy record, preserving status, analysis, error
// and timestamps. Legacy content already tracked maps to the existing
// record and is counted as a duplicate.
func (m *Migrator) Migrate(ctx context.Context) (*Result, error) {
	records, err := m.loadRecords()
	if err != nil {
		return nil, err
	}

	backupPath := filepath.Join(m.cfg.BackupDir, "backup_legacy_"+m.now().Format("20060102_150405"))
	copied, err := copyTree(ctx, m.fs, m.cfg.LegacyRoot, backupPath)
	if err != nil {
		_ = m.fs.RemoveAll(backupPath)
		return nil, apperrors.NewIOError(err, "back up legacy root")
	}
	m.logger.Info("legacy store backed up",
		zap.String("backup", backupPath), zap.Int("files", copied), zap.Int("records", len(records)))

	snap, err := m.mgr.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	var written []string

	fail := func(id string, cause error) (*Result, error) {
		m.rollback(ctx, written, backupPath, snap)
		m.logger.Error("migration failed, rolled back",
			zap.String("legacy_id", id), zap.String("backup", backupPath), zap.Error(cause))
		migErr := &MigrationError{RecordID: id, BackupPath: backupPath, Err: cause}
		return nil, &apperrors.AppError{
			Code:    apperrors.ErrMigrationFailed,
			Message: apperrors.GetMessage(apperrors.ErrMigrationFailed),
			Err:     migErr,
			Details: migErr.Error(),
		}
	}

	result := &Result{BackupPath: backupPath}
	exists := func(p string) bool {
		ok, _ := m.fs.Exists(p)
		return ok
	}

	for _, rec := range records {
		if err := ctx.Err(); err != nil {
			return fail(rec.ID, err)
		}

		res, err := m.mgr.Import(ctx, lifecycle.ImportRequest{
			SourcePath:   rec.SourcePath(m.cfg.LegacyRoot, exists),
			OriginalName: rec.Name,
			OriginalPath: rec.OriginalPath,
			LegacyID:     rec.ID,
			Status:       rec.Status,
			Analysis:     rec.Analysis,
			Error:        rec.Error,
			CreatedAt:    rec.CreatedAt,
			ModifiedAt:   rec.ModifiedAt,
		})
		if err != nil {
			return fail(rec.ID, err)
		}
		if res.Written != "" {
			written = append(written, res.Written)
		}
		if !res.Created {
			result.Duplicates++
			m.logger.Warn("legacy content already tracked",
				zap.String("legacy_id", rec.ID), zap.String("file_id", res.Record.ID))
			continue
		}
		result.Migrated++
	}

	if err := m.mgr.Flush(ctx); err != nil {
		return fail("", err)
	}

	if m.sink != nil {
		n, err := m.sink.Upload(ctx, backupPath, filepath.Base(backupPath))
		if err != nil {
			m.logger.Warn("backup upload failed", zap.String("backup", backupPath), zap.Error(err))
		}
		result.Uploaded = n
	}

	m.logger.Info("migration finished",
		zap.Int("migrated", result.Migrated),
		zap.Int("duplicates", result.Duplicates),
		zap.String("backup", backupPath))
	return result, nil
}

// PlanItem one legacy record as Migrate would import it
type PlanItem struct {
	LegacyID string       `json:"legacy_id"`
	Name     string       `json:"name"`
	Status   types.Status `json:"status"`
	Source   string       `json:"source"`
	Exists   bool         `json:"exists"`
}

// Plan reads the legacy registry and resolves every source without
// writing anything. Migrate rolls back when any item has Exists=false.
func (m *Migrator) Plan(ctx context.Context) ([]PlanItem, error) {
	records, err := m.loadRecords()
	if err != nil {
		return nil, err
	}

	items := make([]PlanItem, 0, len(records))
	for _, rec := range records {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		item := PlanItem{LegacyID: rec.ID, Name: rec.Name, Status: rec.Status}
		item.Source = rec.SourcePath(m.cfg.LegacyRoot, func(p string) bool {
			ok, _ := m.fs.Exists(p)
			return ok
		})
		item.Exists, _ = m.fs.Exists(item.Source)
		items = append(items, item)
	}
	return items, nil
}

func (m *Migrator) loadRecords() ([]LegacyRecord, error) {
	if err := m.validateConfig(); err != nil {
		return nil, err
	}

	registryPath := filepath.Join(m.cfg.LegacyRoot, LegacyRegistryFile)
	data, err := m.fs.ReadFile(registryPath)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, apperrors.NewNotFoundError(registryPath)
	}
	if err != nil {
		return nil, apperrors.NewIOError(err, "read legacy registry")
	}
	records, err := ParseLegacyRegistry(data)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrRegistrySchema, registryPath)
	}
	return records, nil
}

// rollback discards written files, restores registry and index, and puts
// the legacy root back from the backup
func (m *Migrator) rollback(ctx context.Context, written []string, backupPath string, snap *lifecycle.Snapshot) {
	ctx = context.WithoutCancel(ctx)

	for _, p := range written {
		m.mgr.Discard(p)
	}
	if err := m.mgr.Restore(ctx, snap); err != nil {
		m.logger.Error("rollback: failed to persist restored registry", zap.Error(err))
	}
	if err := restoreTree(ctx, m.fs, backupPath, m.cfg.LegacyRoot); err != nil {
		m.logger.Error("rollback: failed to restore legacy root",
			zap.String("backup", backupPath), zap.Error(err))
	}
}

func (m *Migrator) validateConfig() error {
	if m.cfg.LegacyRoot == "" || m.cfg.BackupDir == "" {
		return apperrors.NewBadRequestError("legacy root and backup dir are required")
	}
	root, err := filepath.Abs(m.cfg.LegacyRoot)
	if err != nil {
		return apperrors.NewBadRequestError("invalid legacy root")
	}
	backup, err := filepath.Abs(m.cfg.BackupDir)
	if err != nil {
		return apperrors.NewBadRequestError("invalid backup dir")
	}
	if backup == root || strings.HasPrefix(backup, root+string(filepath.Separator)) {
		return apperrors.NewBadRequestError("backup dir must be outside the legacy root")
	}
	m.cfg.LegacyRoot, m.cfg.BackupDir = root, backup
	return nil
}

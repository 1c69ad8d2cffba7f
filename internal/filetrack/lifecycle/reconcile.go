package lifecycle

import (
	"context"
	"errors"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/lk2023060901/docsense-backend/internal/filetrack/naming"
	"github.com/lk2023060901/docsense-backend/internal/filetrack/registry"
	"github.com/lk2023060901/docsense-backend/internal/filetrack/types"
	apperrors "github.com/lk2023060901/docsense-backend/internal/pkg/errors"
	"github.com/lk2023060901/docsense-backend/internal/pkg/metrics"
	"go.uber.org/zap"
)

// Reconciliation issue kinds
const (
	IssueForeignFile       = "foreign_file"
	IssueStatusDrift       = "status_drift"
	IssueMissingFile       = "missing_file"
	IssueDuplicateArtifact = "duplicate_artifact"
	IssueOrphanAdopted     = "orphan_adopted"
	IssueHashMismatch      = "hash_mismatch"
	IssueDuplicateContent  = "duplicate_content"
)

// Issue one finding of Reconcile
type Issue struct {
	Kind     string `json:"kind"`
	FileName string `json:"file_name,omitempty"`
	FileID   string `json:"file_id,omitempty"`
	Detail   string `json:"detail,omitempty"`
}

// ReconcileReport summary of a reconciliation pass
type ReconcileReport struct {
	Checked    int           `json:"checked"`
	Adopted    int           `json:"adopted"`
	Repaired   int           `json:"repaired"`
	Missing    int           `json:"missing"`
	Duplicates int           `json:"duplicates"`
	Issues     []Issue       `json:"issues"`
	Duration   time.Duration `json:"duration"`
}

func (r *ReconcileReport) add(kind, fileName, id, detail string) {
	r.Issues = append(r.Issues, Issue{Kind: kind, FileName: fileName, FileID: id, Detail: detail})
	metrics.ReconcileIssuesTotal.WithLabelValues(kind).Inc()
}

type diskFile struct {
	name   string
	status types.Status
	prefix string
	date   time.Time
	orig   string
}

// groupKey identifies every generation of one record's artifact
func groupKey(prefix, safeName string, date time.Time) string {
	return prefix + "|" + date.UTC().Format(naming.DateLayout) + "|" + safeName
}

// Reconcile brings the registry in line with managed storage. The
// filesystem wins: records follow the status encoded in their artifact's
// name, stray copies of one artifact are removed, decodable orphans are
// adopted and records without an artifact are reported. The index is
// rebuilt from the result.
func (m *Manager) Reconcile(ctx context.Context) (*ReconcileReport, error) {
	unlock, err := m.lock(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()

	start := time.Now()
	report := &ReconcileReport{Issues: make([]Issue, 0)}
	defer func() {
		report.Duration = time.Since(start)
		metrics.ReconcileDuration.Observe(report.Duration.Seconds())
	}()

	groups, err := m.readManaged(report)
	if err != nil {
		return nil, err
	}

	for _, rec := range m.reg.All() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		report.Checked++

		prefix := rec.Hash
		if len(prefix) > naming.HashPrefixLen {
			prefix = prefix[:naming.HashPrefixLen]
		}
		key := groupKey(prefix, naming.SafeName(rec.OriginalName), rec.CreatedAt)
		group := groups[key]
		delete(groups, key)

		if len(group) == 0 {
			report.Missing++
			report.add(IssueMissingFile, rec.FileName, rec.ID, "managed artifact not found")
			continue
		}

		keep := pickArtifact(group, rec.FileName)
		m.dropDuplicates(group, keep, rec.ID, report)

		if keep.name != rec.FileName || keep.status != rec.Status {
			report.add(IssueStatusDrift, keep.name, rec.ID,
				string(rec.Status)+" -> "+string(keep.status))
			rec.Status = keep.status
			rec.FileName = keep.name
			rec.ModifiedAt = m.now().UTC()
			if err := m.reg.Put(rec); err != nil {
				return nil, apperrors.Wrap(err, apperrors.ErrInternalServer)
			}
			report.Repaired++
		}
	}

	keys := make([]string, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		m.adopt(groups[k], report)
	}

	m.idx.Rebuild(m.reg.All())
	if err := m.persist(ctx); err != nil {
		return nil, err
	}

	m.logger.Info("reconciliation finished",
		zap.Int("checked", report.Checked),
		zap.Int("adopted", report.Adopted),
		zap.Int("repaired", report.Repaired),
		zap.Int("missing", report.Missing),
		zap.Int("duplicates", report.Duplicates))
	return report, nil
}

// readManaged groups the decodable files at the top of the managed dir
func (m *Manager) readManaged(report *ReconcileReport) (map[string][]diskFile, error) {
	groups := make(map[string][]diskFile)

	err := m.fs.WalkDir(m.dir, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			if path != m.dir {
				return filepath.SkipDir
			}
			return nil
		}
		name := d.Name()
		if strings.HasPrefix(name, ".") || !d.Type().IsRegular() {
			return nil
		}

		parts, err := naming.Decode(name)
		if err != nil {
			report.add(IssueForeignFile, name, "", err.Error())
			return nil
		}
		status, prefix := naming.SplitDiscriminant(parts.Discriminant)
		if status == "" || prefix == "" {
			report.add(IssueForeignFile, name, "", "discriminant carries no status and hash")
			return nil
		}

		key := groupKey(prefix, parts.OriginalName, parts.Date)
		groups[key] = append(groups[key], diskFile{
			name:   name,
			status: status,
			prefix: prefix,
			date:   parts.Date,
			orig:   parts.OriginalName,
		})
		return nil
	})
	if err != nil {
		return nil, apperrors.NewIOError(err, "walk managed dir")
	}
	return groups, nil
}

// pickArtifact prefers the file the record points at, else the most
// advanced status
func pickArtifact(group []diskFile, current string) diskFile {
	for _, f := range group {
		if f.name == current {
			return f
		}
	}
	best := group[0]
	for _, f := range group[1:] {
		if statusRank(f.status) > statusRank(best.status) {
			best = f
		}
	}
	return best
}

func statusRank(s types.Status) int {
	for i, v := range types.AllStatuses {
		if v == s {
			return i
		}
	}
	return -1
}

func (m *Manager) dropDuplicates(group []diskFile, keep diskFile, id string, report *ReconcileReport) {
	for _, f := range group {
		if f.name == keep.name {
			continue
		}
		report.Duplicates++
		report.add(IssueDuplicateArtifact, f.name, id, "kept "+keep.name)
		metrics.DuplicateArtifactsTotal.Inc()
		if err := m.fs.Remove(m.Path(f.name)); err != nil && !errors.Is(err, fs.ErrNotExist) {
			m.logger.Error("reconcile: failed to remove duplicate artifact",
				zap.String("file_name", f.name), zap.Error(err))
		}
	}
}

// adopt registers an orphan artifact after verifying its content hash
func (m *Manager) adopt(group []diskFile, report *ReconcileReport) {
	keep := pickArtifact(group, "")
	path := m.Path(keep.name)

	sum, err := m.hasher.Hash(path)
	if err != nil {
		report.add(IssueHashMismatch, keep.name, "", err.Error())
		return
	}
	if !strings.HasPrefix(sum, keep.prefix) {
		report.add(IssueHashMismatch, keep.name, sum, "content does not match name")
		return
	}
	if existing, ok := m.reg.Get(sum); ok {
		report.add(IssueDuplicateContent, keep.name, existing.ID, "content tracked as "+existing.FileName)
		return
	}

	m.dropDuplicates(group, keep, sum, report)

	var size int64
	modTime := m.now().UTC()
	if info, err := m.fs.Stat(path); err == nil {
		size = info.Size()
		modTime = info.ModTime().UTC()
	}

	rec := &registry.FileRecord{
		ID:           sum,
		Hash:         sum,
		OriginalName: keep.orig,
		FileName:     keep.name,
		Status:       keep.status,
		Size:         size,
		CreatedAt:    keep.date,
		ModifiedAt:   modTime,
		MovedAt:      modTime,
	}
	if err := m.reg.Put(rec); err != nil {
		report.add(IssueForeignFile, keep.name, sum, err.Error())
		return
	}
	report.Adopted++
	report.add(IssueOrphanAdopted, keep.name, sum, string(keep.status))
}

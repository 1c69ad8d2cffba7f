// Package lifecycle owns the status state machine of tracked files. Every
// mutation renames the managed artifact, updates the registry and the
// search index, and persists both before returning.
package lifecycle

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/lk2023060901/docsense-backend/internal/filetrack/index"
	"github.com/lk2023060901/docsense-backend/internal/filetrack/registry"
	"github.com/lk2023060901/docsense-backend/internal/filetrack/storage"
	apperrors "github.com/lk2023060901/docsense-backend/internal/pkg/errors"
	"github.com/lk2023060901/docsense-backend/internal/pkg/logger"
	"go.uber.org/zap"
)

// Options dependencies of a Manager
type Options struct {
	ManagedDir string
	Registry   *registry.Registry
	Index      *index.Index
	Hasher     index.ContentHasher
	FS         storage.FS
	Locker     Locker           // default: LocalLocker
	Clock      func() time.Time // default: time.Now
	Logger     *logger.Logger
}

// Manager FileLifecycleManager
type Manager struct {
	dir      string
	reg      *registry.Registry
	idx      *index.Index
	resolver *index.Resolver
	hasher   index.ContentHasher
	fs       storage.FS
	locker   Locker
	shared   bool
	dirty    bool // imports not yet persisted
	now      func() time.Time
	logger   *logger.Logger
}

// NewManager validates opts and builds a Manager; call Open before use
func NewManager(opts Options) (*Manager, error) {
	if opts.ManagedDir == "" {
		return nil, fmt.Errorf("lifecycle: managed dir is required")
	}
	if opts.Registry == nil || opts.Index == nil || opts.Hasher == nil || opts.FS == nil {
		return nil, fmt.Errorf("lifecycle: registry, index, hasher and fs are required")
	}
	if opts.Locker == nil {
		opts.Locker = NewLocalLocker()
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}

	dir, err := filepath.Abs(opts.ManagedDir)
	if err != nil {
		return nil, fmt.Errorf("lifecycle: resolve managed dir: %w", err)
	}

	shared := false
	if sl, ok := opts.Locker.(SharedLocker); ok {
		shared = sl.Shared()
	}

	return &Manager{
		dir:      dir,
		reg:      opts.Registry,
		idx:      opts.Index,
		resolver: index.NewResolver(opts.Index, opts.Registry, opts.Hasher, opts.FS),
		hasher:   opts.Hasher,
		fs:       opts.FS,
		locker:   opts.Locker,
		shared:   shared,
		now:      opts.Clock,
		logger:   logger.OrGlobal(opts.Logger).Named("lifecycle"),
	}, nil
}

// Open creates managed storage and loads the registry and index. An index
// that is missing entries or unreadable is rebuilt from the registry.
func (m *Manager) Open(ctx context.Context) error {
	if err := m.fs.MkdirAll(m.dir, 0o755); err != nil {
		return apperrors.NewIOError(err, "create managed dir")
	}
	rebuild, err := m.reload(ctx)
	if err != nil {
		return err
	}

	if rebuild {
		if err := m.idx.Save(ctx); err != nil {
			return apperrors.NewIOError(err, "save rebuilt index")
		}
	}

	m.logger.Info("file lifecycle manager ready",
		zap.String("managed_dir", m.dir),
		zap.Int("records", m.reg.Len()),
		zap.Bool("index_rebuilt", rebuild))
	return nil
}

// Close flushes registry and index
func (m *Manager) Close(ctx context.Context) error {
	return m.Flush(ctx)
}

// ManagedDir absolute managed storage directory
func (m *Manager) ManagedDir() string {
	return m.dir
}

// Registry the underlying registry
func (m *Manager) Registry() *registry.Registry {
	return m.reg
}

// Index the underlying search index
func (m *Manager) Index() *index.Index {
	return m.idx
}

// Lookup candidate ids registered under an original name
func (m *Manager) Lookup(originalName string) []string {
	return m.idx.Lookup(originalName)
}

// Path absolute location of a managed file
func (m *Manager) Path(fileName string) string {
	return filepath.Join(m.dir, fileName)
}

// lock takes the registry lock. With a shared locker the registry and
// index are reloaded from their stores first, unless imports are pending.
func (m *Manager) lock(ctx context.Context) (func(), error) {
	unlock, err := m.locker.Lock(ctx)
	if err != nil {
		return nil, err
	}
	if !m.shared || m.dirty {
		return unlock, nil
	}
	if _, err := m.reload(ctx); err != nil {
		unlock()
		return nil, err
	}
	return unlock, nil
}

// reload reads registry and index. An index that is unreadable or missing
// a record is rebuilt in memory; the result reports whether that happened.
func (m *Manager) reload(ctx context.Context) (bool, error) {
	if err := m.reg.Load(ctx); err != nil {
		return false, err
	}

	records := m.reg.All()
	if err := m.idx.Load(ctx); err != nil {
		m.logger.Warn("search index unreadable, rebuilding", zap.Error(err))
		m.idx.Rebuild(records)
		return true, nil
	}
	for _, rec := range records {
		if !contains(m.idx.Lookup(rec.OriginalName), rec.ID) {
			m.idx.Rebuild(records)
			return true, nil
		}
	}
	return false, nil
}

// persist saves the registry, then the index. The index can always be
// rebuilt from the registry, so only a registry failure is returned.
func (m *Manager) persist(ctx context.Context) error {
	if err := m.reg.Save(ctx); err != nil {
		return err
	}
	m.dirty = false
	if err := m.idx.Save(ctx); err != nil {
		m.logger.Error("failed to save search index", zap.Error(err))
	}
	return nil
}

func contains(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

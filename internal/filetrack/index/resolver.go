package index

import (
	"errors"
	"io/fs"
	"path/filepath"

	"github.com/lk2023060901/docsense-backend/internal/filetrack/registry"
	"github.com/lk2023060901/docsense-backend/internal/filetrack/storage"
	apperrors "github.com/lk2023060901/docsense-backend/internal/pkg/errors"
)

var (
	// ErrUnregistered the path does not exist
	ErrUnregistered = errors.New("index: path does not exist")
	// ErrUnanalyzed the path exists but no record holds its content
	ErrUnanalyzed = errors.New("index: no record matches file content")
)

// ContentHasher hashes files on disk
type ContentHasher interface {
	Hash(path string) (string, error)
}

// RecordGetter looks records up by id
type RecordGetter interface {
	Get(id string) (*registry.FileRecord, bool)
}

// Resolver finds the record holding the content of a file on disk
type Resolver struct {
	index   *Index
	records RecordGetter
	hasher  ContentHasher
	fs      storage.FS
}

// NewResolver creates a Resolver
func NewResolver(idx *Index, records RecordGetter, hasher ContentHasher, fsys storage.FS) *Resolver {
	return &Resolver{index: idx, records: records, hasher: hasher, fs: fsys}
}

// Resolve hashes originalPath and returns the first candidate registered
// under its base name whose content hash matches.
// Errors: ErrUnregistered, ErrUnanalyzed, or an IO app error.
func (r *Resolver) Resolve(originalPath string) (*registry.FileRecord, error) {
	info, err := r.fs.Stat(originalPath)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrUnregistered
	}
	if err != nil {
		return nil, apperrors.NewIOError(err, "stat "+originalPath)
	}
	if info.IsDir() {
		return nil, ErrUnregistered
	}

	candidates := r.index.Lookup(filepath.Base(originalPath))
	if len(candidates) == 0 {
		return nil, ErrUnanalyzed
	}

	sum, err := r.hasher.Hash(originalPath)
	if err != nil {
		return nil, err
	}

	for _, id := range candidates {
		rec, ok := r.records.Get(id)
		if ok && rec.Hash == sum {
			return rec, nil
		}
	}
	return nil, ErrUnanalyzed
}

// Package index maps original filenames to the registry ids that were
// uploaded under that name, and resolves a path on disk to its record by
// content hash.
package index

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"sync"
	"time"

	"github.com/lk2023060901/docsense-backend/internal/filetrack/registry"
	"github.com/lk2023060901/docsense-backend/internal/filetrack/storage"
)

// SchemaVersion of the index document
const SchemaVersion = 1

// Document persisted form
type Document struct {
	SchemaVersion int                 `json:"schema_version"`
	UpdatedAt     time.Time           `json:"updated_at"`
	Names         map[string][]string `json:"names"`
}

// Index original name -> ordered, duplicate-free candidate ids
type Index struct {
	mu    sync.RWMutex
	names map[string][]string
	path  string
	fs    storage.FS
	now   func() time.Time
}

// New creates an empty index persisted at path. clock stamps saved
// documents; nil means time.Now.
func New(path string, fsys storage.FS, clock func() time.Time) *Index {
	if clock == nil {
		clock = time.Now
	}
	return &Index{names: make(map[string][]string), path: path, fs: fsys, now: clock}
}

// Add appends id to name's candidates unless already present
func (x *Index) Add(name, id string) {
	x.mu.Lock()
	defer x.mu.Unlock()
	for _, existing := range x.names[name] {
		if existing == id {
			return
		}
	}
	x.names[name] = append(x.names[name], id)
}

// Remove drops id from name's candidates
func (x *Index) Remove(name, id string) {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.removeLocked(name, id)
}

// RemoveID drops id under every name
func (x *Index) RemoveID(id string) {
	x.mu.Lock()
	defer x.mu.Unlock()
	for name := range x.names {
		x.removeLocked(name, id)
	}
}

func (x *Index) removeLocked(name, id string) {
	ids := x.names[name]
	for i, existing := range ids {
		if existing == id {
			ids = append(ids[:i:i], ids[i+1:]...)
			break
		}
	}
	if len(ids) == 0 {
		delete(x.names, name)
		return
	}
	x.names[name] = ids
}

// Lookup candidates for name in insertion order
func (x *Index) Lookup(name string) []string {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return append([]string(nil), x.names[name]...)
}

// Names returns every indexed name, sorted
func (x *Index) Names() []string {
	x.mu.RLock()
	defer x.mu.RUnlock()
	out := make([]string, 0, len(x.names))
	for name := range x.names {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Rebuild replaces the index with one entry per record, oldest first
func (x *Index) Rebuild(records []*registry.FileRecord) {
	sorted := append([]*registry.FileRecord(nil), records...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].CreatedAt.Before(sorted[j].CreatedAt)
	})

	names := make(map[string][]string, len(sorted))
	for _, rec := range sorted {
		names[rec.OriginalName] = append(names[rec.OriginalName], rec.ID)
	}

	x.mu.Lock()
	x.names = names
	x.mu.Unlock()
}

// Snapshot copy of the mapping
func (x *Index) Snapshot() map[string][]string {
	x.mu.RLock()
	defer x.mu.RUnlock()
	out := make(map[string][]string, len(x.names))
	for name, ids := range x.names {
		out[name] = append([]string(nil), ids...)
	}
	return out
}

// Restore replaces the mapping with snapshot
func (x *Index) Restore(snapshot map[string][]string) {
	names := make(map[string][]string, len(snapshot))
	for name, ids := range snapshot {
		names[name] = append([]string(nil), ids...)
	}
	x.mu.Lock()
	x.names = names
	x.mu.Unlock()
}

// Load reads the index document; a missing file empties the index.
// An unreadable document is reported so the caller can rebuild it.
func (x *Index) Load(ctx context.Context) error {
	data, err := x.fs.ReadFile(x.path)
	if errors.Is(err, fs.ErrNotExist) {
		x.Restore(nil)
		return nil
	}
	if err != nil {
		return fmt.Errorf("read index %s: %w", x.path, err)
	}

	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("parse index %s: %w", x.path, err)
	}
	if doc.SchemaVersion != SchemaVersion {
		return fmt.Errorf("index %s has version %d, want %d", x.path, doc.SchemaVersion, SchemaVersion)
	}
	if doc.Names == nil {
		doc.Names = make(map[string][]string)
	}

	x.mu.Lock()
	x.names = doc.Names
	x.mu.Unlock()
	return nil
}

// Save writes the whole index atomically
func (x *Index) Save(ctx context.Context) error {
	doc := Document{
		SchemaVersion: SchemaVersion,
		UpdatedAt:     x.now().UTC(),
		Names:         x.Snapshot(),
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal index: %w", err)
	}
	if err := x.fs.WriteFileAtomic(x.path, data, 0o644); err != nil {
		return fmt.Errorf("write index %s: %w", x.path, err)
	}
	return nil
}

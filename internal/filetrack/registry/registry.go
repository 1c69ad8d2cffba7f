package registry

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/lk2023060901/docsense-backend/internal/filetrack/types"
	apperrors "github.com/lk2023060901/docsense-backend/internal/pkg/errors"
	"github.com/lk2023060901/docsense-backend/internal/pkg/logger"
	"go.uber.org/zap"
)

// Registry in-memory view of the registry document, persisted through a
// Store. Records handed out are copies; changes go through Put.
type Registry struct {
	mu     sync.RWMutex
	store  Store
	doc    *Document
	logger *logger.Logger
}

// New creates an empty registry bound to store; call Load before use
func New(store Store, log *logger.Logger) *Registry {
	return &Registry{
		store:  store,
		doc:    NewDocument(),
		logger: logger.OrGlobal(log).Named("registry"),
	}
}

// Load reads the store. An unusable document is replaced by an empty
// registry; the returned error is then nil and the problem is logged.
func (r *Registry) Load(ctx context.Context) error {
	doc, err := r.store.Load(ctx)
	if err != nil {
		var schemaErr *SchemaError
		if !errors.As(err, &schemaErr) {
			return apperrors.NewIOError(err, "load registry")
		}
		r.logger.Error("registry document unusable, starting empty",
			zap.String("location", r.store.Location()),
			zap.Error(apperrors.Wrap(schemaErr, apperrors.ErrRegistrySchema)))
		doc = NewDocument()
	}

	r.mu.Lock()
	r.doc = doc
	r.mu.Unlock()

	r.logger.Debug("registry loaded",
		zap.String("location", r.store.Location()),
		zap.Int("records", len(doc.Files)))
	return nil
}

// Save persists the whole registry
func (r *Registry) Save(ctx context.Context) error {
	r.mu.RLock()
	doc := r.doc.Clone()
	r.mu.RUnlock()

	if err := r.store.Save(ctx, doc); err != nil {
		return apperrors.NewIOError(err, "save registry")
	}
	return nil
}

// Get returns a copy of the record
func (r *Registry) Get(id string) (*FileRecord, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.doc.Files[id]
	return rec.Clone(), ok
}

// Put inserts or replaces a record
func (r *Registry) Put(rec *FileRecord) error {
	if rec == nil || rec.ID == "" {
		return fmt.Errorf("registry: record without id")
	}
	if !rec.Status.Valid() {
		return fmt.Errorf("registry: record %s has invalid status %q", rec.ID, rec.Status)
	}

	r.mu.Lock()
	r.doc.Files[rec.ID] = rec.Clone()
	r.mu.Unlock()
	return nil
}

// Delete removes a record, reporting whether it existed
func (r *Registry) Delete(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.doc.Files[id]
	delete(r.doc.Files, id)
	return ok
}

// Len number of records
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.doc.Files)
}

// All returns copies of every record ordered by creation time
func (r *Registry) All() []*FileRecord {
	return r.filter(func(*FileRecord) bool { return true })
}

// FindByStatus records currently in status
func (r *Registry) FindByStatus(status types.Status) []*FileRecord {
	return r.filter(func(rec *FileRecord) bool { return rec.Status == status })
}

// FindByOriginalPath linear scan by provenance path; prefer the search index
func (r *Registry) FindByOriginalPath(path string) []*FileRecord {
	return r.filter(func(rec *FileRecord) bool { return rec.OriginalPath == path })
}

// Snapshot deep copy of the current document
func (r *Registry) Snapshot() *Document {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.doc.Clone()
}

// Restore replaces the in-memory document with snapshot
func (r *Registry) Restore(snapshot *Document) {
	r.mu.Lock()
	r.doc = snapshot.Clone()
	r.mu.Unlock()
}

func (r *Registry) filter(keep func(*FileRecord) bool) []*FileRecord {
	r.mu.RLock()
	out := make([]*FileRecord, 0, len(r.doc.Files))
	for _, rec := range r.doc.Files {
		if keep(rec) {
			out = append(out, rec.Clone())
		}
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

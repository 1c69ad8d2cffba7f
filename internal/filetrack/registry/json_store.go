package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/lk2023060901/docsense-backend/internal/filetrack/storage"
)

// Store persists the registry document
type Store interface {
	// Load returns the stored document; a missing store yields an empty one
	Load(ctx context.Context) (*Document, error)
	// Save replaces the stored document as one unit
	Save(ctx context.Context, doc *Document) error
	// Location describes where the document lives, for logs
	Location() string
}

// JSONStore keeps the registry as one JSON file, replaced atomically
type JSONStore struct {
	path string
	fs   storage.FS
	now  func() time.Time
}

// NewJSONStore creates a JSON file store
func NewJSONStore(path string, fsys storage.FS) *JSONStore {
	return &JSONStore{path: path, fs: fsys, now: time.Now}
}

func (s *JSONStore) Location() string {
	return s.path
}

func (s *JSONStore) Load(ctx context.Context) (*Document, error) {
	data, err := s.fs.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return NewDocument(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read registry %s: %w", s.path, err)
	}

	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, s.schemaError(err)
	}
	if doc.Files == nil {
		doc.Files = make(map[string]*FileRecord)
	}
	if err := upgrade(&doc); err != nil {
		return nil, s.schemaError(err)
	}
	return &doc, nil
}

func (s *JSONStore) Save(ctx context.Context, doc *Document) error {
	doc.SchemaVersion = SchemaVersion
	doc.UpdatedAt = s.now().UTC()

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal registry: %w", err)
	}
	if err := s.fs.WriteFileAtomic(s.path, data, 0o644); err != nil {
		return fmt.Errorf("write registry %s: %w", s.path, err)
	}
	return nil
}

// schemaError keeps a copy of the unusable file next to it so the next
// save cannot destroy it
func (s *JSONStore) schemaError(cause error) error {
	backup := fmt.Sprintf("%s.corrupt-%s", s.path, s.now().UTC().Format("20060102T150405"))
	if err := s.fs.Copy(s.path, backup); err != nil && !errors.Is(err, fs.ErrExist) {
		cause = fmt.Errorf("%w (preserving copy failed: %v)", cause, err)
	} else {
		cause = fmt.Errorf("%w (preserved as %s)", cause, backup)
	}
	return &SchemaError{Location: s.path, Err: cause}
}

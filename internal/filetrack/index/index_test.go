package index

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/lk2023060901/docsense-backend/internal/filetrack/hasher"
	"github.com/lk2023060901/docsense-backend/internal/filetrack/registry"
	"github.com/lk2023060901/docsense-backend/internal/filetrack/storage"
	"github.com/lk2023060901/docsense-backend/internal/filetrack/types"
	"github.com/lk2023060901/docsense-backend/internal/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddKeepsOrderWithoutDuplicates(t *testing.T) {
	idx := New(filepath.Join(t.TempDir(), "idx.json"), storage.NewOS(), nil)

	idx.Add("invoice.docx", "h1")
	idx.Add("invoice.docx", "h2")
	idx.Add("invoice.docx", "h1")
	idx.Add("other.pdf", "h3")

	assert.Equal(t, []string{"h1", "h2"}, idx.Lookup("invoice.docx"))
	assert.Empty(t, idx.Lookup("missing"))

	idx.Remove("invoice.docx", "h1")
	assert.Equal(t, []string{"h2"}, idx.Lookup("invoice.docx"))

	idx.RemoveID("h2")
	assert.Empty(t, idx.Lookup("invoice.docx"))
	assert.Equal(t, []string{"other.pdf"}, idx.Names())
}

func TestLookupReturnsCopy(t *testing.T) {
	idx := New(filepath.Join(t.TempDir(), "idx.json"), storage.NewOS(), nil)
	idx.Add("a", "1")

	got := idx.Lookup("a")
	got[0] = "mutated"
	assert.Equal(t, []string{"1"}, idx.Lookup("a"))
}

func TestSaveLoad(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "search_index.json")
	idx := New(path, storage.NewOS(), nil)
	idx.Add("a.pdf", "1")
	idx.Add("a.pdf", "2")
	require.NoError(t, idx.Save(ctx))

	loaded := New(path, storage.NewOS(), nil)
	require.NoError(t, loaded.Load(ctx))
	assert.Equal(t, []string{"1", "2"}, loaded.Lookup("a.pdf"))

	require.NoError(t, os.WriteFile(path, []byte("garbage"), 0o644))
	assert.Error(t, New(path, storage.NewOS(), nil).Load(ctx))
}

func TestSaveUsesClock(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "search_index.json")
	stamp := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	idx := New(path, storage.NewOS(), func() time.Time { return stamp })
	idx.Add("a.pdf", "1")
	require.NoError(t, idx.Save(ctx))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var doc Document
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.True(t, stamp.Equal(doc.UpdatedAt))
	assert.Equal(t, SchemaVersion, doc.SchemaVersion)

	// the document disappears underneath a loaded index
	require.NoError(t, os.Remove(path))
	require.NoError(t, idx.Load(ctx))
	assert.Empty(t, idx.Names())
}

func TestRebuildOrdersByCreation(t *testing.T) {
	now := time.Now()
	idx := New(filepath.Join(t.TempDir(), "idx.json"), storage.NewOS(), nil)
	idx.Add("stale", "x")

	idx.Rebuild([]*registry.FileRecord{
		{ID: "new", OriginalName: "r.pdf", CreatedAt: now},
		{ID: "old", OriginalName: "r.pdf", CreatedAt: now.Add(-time.Hour)},
	})

	assert.Equal(t, []string{"old", "new"}, idx.Lookup("r.pdf"))
	assert.Empty(t, idx.Lookup("stale"))
}

func TestResolveDisambiguatesByHash(t *testing.T) {
	dir := t.TempDir()
	fsys := storage.NewOS()
	h := hasher.New(fsys, hasher.Config{}, logger.Nop())

	first := filepath.Join(dir, "a", "invoice.docx")
	second := filepath.Join(dir, "b", "invoice.docx")
	unknown := filepath.Join(dir, "c", "invoice.docx")
	for p, content := range map[string]string{first: "version one", second: "version two", unknown: "version three"} {
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	}

	h1, err := h.Hash(first)
	require.NoError(t, err)
	h2, err := h.Hash(second)
	require.NoError(t, err)
	require.NotEqual(t, h1, h2)

	reg := registry.New(registry.NewJSONStore(filepath.Join(dir, "r.json"), fsys), logger.Nop())
	for _, id := range []string{h1, h2} {
		require.NoError(t, reg.Put(&registry.FileRecord{ID: id, Hash: id, OriginalName: "invoice.docx", Status: types.StatusCompleted}))
	}
	idx := New(filepath.Join(dir, "idx.json"), fsys, nil)
	idx.Add("invoice.docx", h1)
	idx.Add("invoice.docx", h2)

	assert.Equal(t, []string{h1, h2}, idx.Lookup("invoice.docx"))

	resolver := NewResolver(idx, reg, h, fsys)

	rec, err := resolver.Resolve(first)
	require.NoError(t, err)
	assert.Equal(t, h1, rec.ID)

	rec, err = resolver.Resolve(second)
	require.NoError(t, err)
	assert.Equal(t, h2, rec.ID)

	_, err = resolver.Resolve(unknown)
	assert.ErrorIs(t, err, ErrUnanalyzed)

	_, err = resolver.Resolve(filepath.Join(dir, "nowhere", "invoice.docx"))
	assert.ErrorIs(t, err, ErrUnregistered)
}

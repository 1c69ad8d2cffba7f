package hasher

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/lk2023060901/docsense-backend/internal/filetrack/storage"
	apperrors "github.com/lk2023060901/docsense-backend/internal/pkg/errors"
	"github.com/lk2023060901/docsense-backend/internal/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const helloSHA256 = "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824"

func newHasher(blockSize int) *Hasher {
	return New(storage.NewOS(), Config{BlockSize: blockSize}, logger.Nop())
}

func TestHashDeterministic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hello.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello"), 0o644))

	h := newHasher(0)
	first, err := h.Hash(path)
	require.NoError(t, err)
	assert.Equal(t, helloSHA256, first)

	h.Purge()
	second, err := h.Hash(path)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestHashSpansBlocks(t *testing.T) {
	data := bytes.Repeat([]byte("0123456789abcdef"), 1000)
	path := filepath.Join(t.TempDir(), "big.bin")
	require.NoError(t, os.WriteFile(path, data, 0o644))

	want := sha256.Sum256(data)
	got, err := newHasher(7).Hash(path)
	require.NoError(t, err)
	assert.Equal(t, hex.EncodeToString(want[:]), got)
}

func TestHashDetectsReplacement(t *testing.T) {
	path := filepath.Join(t.TempDir(), "doc.txt")
	require.NoError(t, os.WriteFile(path, []byte("version one"), 0o644))

	h := newHasher(0)
	before, err := h.Hash(path)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(path, []byte("version two!"), 0o644))
	later := time.Now().Add(2 * time.Second)
	require.NoError(t, os.Chtimes(path, later, later))

	after, err := h.Hash(path)
	require.NoError(t, err)
	assert.NotEqual(t, before, after)
}

func TestHashErrors(t *testing.T) {
	dir := t.TempDir()
	h := newHasher(0)

	_, err := h.Hash(filepath.Join(dir, "missing.pdf"))
	assert.True(t, apperrors.Is(err, apperrors.ErrFileNotFound))

	_, err = h.Hash(dir)
	assert.True(t, apperrors.Is(err, apperrors.ErrFileIO))
}

func TestHashReader(t *testing.T) {
	sum, err := newHasher(2).HashReader(bytes.NewBufferString("hello"))
	require.NoError(t, err)
	assert.Equal(t, helloSHA256, sum)
}

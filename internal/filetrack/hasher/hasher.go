package hasher

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path/filepath"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/lk2023060901/docsense-backend/internal/filetrack/storage"
	apperrors "github.com/lk2023060901/docsense-backend/internal/pkg/errors"
	"github.com/lk2023060901/docsense-backend/internal/pkg/logger"
	"github.com/lk2023060901/docsense-backend/internal/pkg/metrics"
	"go.uber.org/zap"
)

const (
	DefaultBlockSize = 64 * 1024
	DefaultCacheSize = 4096
	DefaultCacheTTL  = 10 * time.Minute
)

// Config hasher settings; zero values fall back to defaults
type Config struct {
	BlockSize int
	CacheSize int
	CacheTTL  time.Duration
}

// Hasher computes SHA-256 content fingerprints, memoized per
// (path, mtime, size) so a file replaced in place is rehashed.
type Hasher struct {
	fs        storage.FS
	blockSize int
	cache     *expirable.LRU[string, string]
	logger    *logger.Logger
}

// New creates a Hasher
func New(fsys storage.FS, cfg Config, log *logger.Logger) *Hasher {
	if cfg.BlockSize <= 0 {
		cfg.BlockSize = DefaultBlockSize
	}
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = DefaultCacheSize
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = DefaultCacheTTL
	}

	return &Hasher{
		fs:        fsys,
		blockSize: cfg.BlockSize,
		cache:     expirable.NewLRU[string, string](cfg.CacheSize, nil, cfg.CacheTTL),
		logger:    logger.OrGlobal(log).Named("hasher"),
	}
}

// Hash returns the hex digest of the file at path
func (h *Hasher) Hash(path string) (string, error) {
	path = filepath.Clean(path)

	info, err := h.fs.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", apperrors.Wrap(err, apperrors.ErrFileNotFound, path)
		}
		return "", apperrors.NewIOError(err, "stat "+path)
	}
	if info.IsDir() {
		return "", apperrors.Newf(apperrors.ErrFileIO, "%s is a directory", path)
	}

	key := cacheKey(path, info)
	if sum, ok := h.cache.Get(key); ok {
		metrics.HashCacheTotal.WithLabelValues("hit").Inc()
		return sum, nil
	}
	metrics.HashCacheTotal.WithLabelValues("miss").Inc()

	f, err := h.fs.Open(path)
	if err != nil {
		return "", apperrors.NewIOError(err, "open "+path)
	}
	defer f.Close()

	sum, err := h.HashReader(f)
	if err != nil {
		return "", apperrors.NewIOError(err, "read "+path)
	}

	h.cache.Add(key, sum)
	h.logger.Debug("content hashed",
		zap.String("path", path),
		zap.Int64("size", info.Size()),
		zap.String("hash", sum))
	return sum, nil
}

// HashReader digests r in fixed-size blocks
func (h *Hasher) HashReader(r io.Reader) (string, error) {
	digest := sha256.New()
	buf := make([]byte, h.blockSize)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			digest.Write(buf[:n])
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", err
		}
	}
	return hex.EncodeToString(digest.Sum(nil)), nil
}

// Purge drops every memoized digest
func (h *Hasher) Purge() {
	h.cache.Purge()
}

func cacheKey(path string, info fs.FileInfo) string {
	return fmt.Sprintf("%s|%d|%d", path, info.ModTime().UnixNano(), info.Size())
}

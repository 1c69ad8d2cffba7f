package migration

import (
	"context"
	"io/fs"
	"path"
	"path/filepath"

	"github.com/lk2023060901/docsense-backend/internal/filetrack/storage"
	"github.com/lk2023060901/docsense-backend/internal/pkg/logger"
	"github.com/lk2023060901/docsense-backend/internal/pkg/minio"
	"go.uber.org/zap"
)

// ObjectUploader is satisfied by *minio.Client
type ObjectUploader interface {
	EnsureBucket(ctx context.Context, bucketName string) error
	FPutObject(ctx context.Context, bucketName, objectName, filePath string, opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

// ObjectSink uploads backups to an object store bucket
type ObjectSink struct {
	client ObjectUploader
	fs     storage.FS
	bucket string
	logger *logger.Logger
}

// NewObjectSink creates an ObjectSink
func NewObjectSink(client ObjectUploader, fsys storage.FS, bucket string, log *logger.Logger) *ObjectSink {
	return &ObjectSink{
		client: client,
		fs:     fsys,
		bucket: bucket,
		logger: logger.OrGlobal(log).Named("backup_sink"),
	}
}

// Upload puts every file below dir at <prefix>/<relative path>
func (s *ObjectSink) Upload(ctx context.Context, dir, prefix string) (int, error) {
	if err := s.client.EnsureBucket(ctx, s.bucket); err != nil {
		return 0, err
	}

	uploaded := 0
	err := s.fs.WalkDir(dir, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}

		object := minio.SanitizeObjectName(path.Join(prefix, filepath.ToSlash(rel)))
		if _, err := s.client.FPutObject(ctx, s.bucket, object, p, minio.PutObjectOptions{
			ContentType: minio.DetectContentType(p),
		}); err != nil {
			return err
		}
		uploaded++
		return nil
	})
	if err != nil {
		return uploaded, err
	}

	s.logger.Info("backup uploaded",
		zap.String("bucket", s.bucket), zap.String("prefix", prefix), zap.Int("objects", uploaded))
	return uploaded, nil
}

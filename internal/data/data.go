package data

import (
	"context"
	"fmt"
	"time"

	"github.com/lk2023060901/docsense-backend/internal/conf"
	"github.com/lk2023060901/docsense-backend/internal/filetrack/hasher"
	"github.com/lk2023060901/docsense-backend/internal/filetrack/index"
	"github.com/lk2023060901/docsense-backend/internal/filetrack/lifecycle"
	"github.com/lk2023060901/docsense-backend/internal/filetrack/registry"
	"github.com/lk2023060901/docsense-backend/internal/filetrack/storage"
	"github.com/lk2023060901/docsense-backend/internal/pkg/database"
	"github.com/lk2023060901/docsense-backend/internal/pkg/logger"
	"github.com/lk2023060901/docsense-backend/internal/pkg/minio"
	"github.com/lk2023060901/docsense-backend/internal/pkg/redis"
	"go.uber.org/zap"
)

type Data struct {
	FS          storage.FS
	Store       registry.Store
	DB          *database.DB  // nil for the json backend
	RedisClient *redis.Client // nil unless lock.driver is redis
	MinIOClient *minio.Client // nil unless minio.enabled
	Logger      *logger.Logger
}

func NewData(config *conf.Config, log *logger.Logger) (*Data, func(), error) {
	log = logger.OrGlobal(log)
	d := &Data{FS: storage.NewOS(), Logger: log}

	var closers []func()
	cleanup := func() {
		log.Info("cleaning up data resources")
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	// Registry store
	switch config.Storage.Backend {
	case "sqlite", "postgres":
		db, err := initDB(config, log)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to init database: %w", err)
		}
		closers = append(closers, func() { db.Close() })

		store, err := registry.NewGormStore(db.DB, db.Config().Location())
		if err != nil {
			cleanup()
			return nil, nil, err
		}
		d.DB, d.Store = db, store
	default:
		d.Store = registry.NewJSONStore(config.Storage.RegistryFile, d.FS)
	}

	// Redis
	if config.Lock.Driver == "redis" {
		redisClient, err := initRedis(config, log)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		closers = append(closers, func() { redisClient.Close() })
		d.RedisClient = redisClient
	}

	// MinIO
	if config.MinIO.Enabled {
		minioClient, err := initMinIO(config, log)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("failed to init minio: %w", err)
		}
		closers = append(closers, func() { minioClient.Close() })
		d.MinIOClient = minioClient
	}

	log.Info("data layer initialized",
		zap.String("backend", config.Storage.Backend),
		zap.String("registry", d.Store.Location()),
		zap.Bool("redis", d.RedisClient != nil),
		zap.Bool("minio", d.MinIOClient != nil))
	return d, cleanup, nil
}

func initDB(config *conf.Config, log *logger.Logger) (*database.DB, error) {
	dbConfig := database.SQLiteConfig(config.Storage.SQLitePath)
	if config.Storage.Backend == "postgres" {
		dbConfig = database.DefaultConfig()
		dbConfig.Host = config.Database.Host
		dbConfig.Port = config.Database.Port
		dbConfig.User = config.Database.User
		dbConfig.Password = config.Database.Password
		dbConfig.DBName = config.Database.DBName
		dbConfig.SSLMode = config.Database.SSLMode
	}
	return database.New(dbConfig, log)
}

func initRedis(config *conf.Config, log *logger.Logger) (*redis.Client, error) {
	cfg := redis.DefaultConfig()
	cfg.Addr = config.Redis.Addr
	cfg.Password = config.Redis.Password
	cfg.DB = config.Redis.DB
	return redis.New(cfg, log)
}

func initMinIO(config *conf.Config, log *logger.Logger) (*minio.Client, error) {
	minioClient, err := minio.NewClient(&minio.Config{
		Endpoint:        config.MinIO.Endpoint,
		AccessKeyID:     config.MinIO.AccessKey,
		SecretAccessKey: config.MinIO.SecretKey,
		UseSSL:          config.MinIO.UseSSL,
	}, log)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := minioClient.EnsureBucket(ctx, config.MinIO.Bucket); err != nil {
		minioClient.Close()
		return nil, err
	}
	return minioClient, nil
}

// Locker returns the registry lock for the configured driver
func (d *Data) Locker(config *conf.Config) lifecycle.Locker {
	if d.RedisClient == nil {
		return lifecycle.NewLocalLocker()
	}
	return lifecycle.NewRedisLocker(d.RedisClient, lifecycle.RedisLockerConfig{
		Key:        config.Lock.Key,
		TTL:        config.Lock.TTL,
		MaxRetries: config.Lock.MaxRetries,
		RetryDelay: config.Lock.RetryDelay,
	}, d.Logger)
}

// NewManager assembles hasher, registry, index and lock into an opened
// lifecycle manager
func (d *Data) NewManager(ctx context.Context, config *conf.Config) (*lifecycle.Manager, error) {
	h := hasher.New(d.FS, hasher.Config{
		BlockSize: config.Hash.BlockSize,
		CacheSize: config.Hash.CacheSize,
		CacheTTL:  config.Hash.CacheTTL,
	}, d.Logger)

	mgr, err := lifecycle.NewManager(lifecycle.Options{
		ManagedDir: config.Storage.ManagedDir,
		Registry:   registry.New(d.Store, d.Logger),
		Index:      index.New(config.Storage.IndexFile, d.FS, nil),
		Hasher:     h,
		FS:         d.FS,
		Locker:     d.Locker(config),
		Logger:     d.Logger,
	})
	if err != nil {
		return nil, err
	}
	if err := mgr.Open(ctx); err != nil {
		return nil, err
	}
	return mgr, nil
}

package conf

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Log      LogConfig      `mapstructure:"log"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Hash     HashConfig     `mapstructure:"hash"`
	Lock     LockConfig     `mapstructure:"lock"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Database DatabaseConfig `mapstructure:"database"`
	MinIO    MinIOConfig    `mapstructure:"minio"`
	Analysis AnalysisConfig `mapstructure:"analysis"`
	Extract  ExtractConfig  `mapstructure:"extract"`
	Watcher  WatcherConfig  `mapstructure:"watcher"`
	Worker   WorkerConfig   `mapstructure:"worker"`
}

type ServerConfig struct {
	Host          string `mapstructure:"host"`
	Port          int    `mapstructure:"port"`
	MaxUploadMB   int64  `mapstructure:"max_upload_mb"`
	UploadTempDir string `mapstructure:"upload_temp_dir"`
}

type LogConfig struct {
	Level            string        `mapstructure:"level"`
	Format           string        `mapstructure:"format"`
	Output           string        `mapstructure:"output"`
	File             FileLogConfig `mapstructure:"file"`
	EnableCaller     bool          `mapstructure:"enablecaller"`
	EnableStacktrace bool          `mapstructure:"enablestacktrace"`
}

type FileLogConfig struct {
	Filename   string `mapstructure:"filename"`
	MaxSize    int    `mapstructure:"maxsize"`
	MaxAge     int    `mapstructure:"maxage"`
	MaxBackups int    `mapstructure:"maxbackups"`
	Compress   bool   `mapstructure:"compress"`
}

// StorageConfig locates managed storage and the registry documents.
// Backend is one of json, sqlite, postgres.
type StorageConfig struct {
	ManagedDir       string `mapstructure:"managed_dir"`
	Backend          string `mapstructure:"backend"`
	RegistryFile     string `mapstructure:"registry_file"`
	IndexFile        string `mapstructure:"index_file"`
	SQLitePath       string `mapstructure:"sqlite_path"`
	LegacyRoot       string `mapstructure:"legacy_root"`
	BackupDir        string `mapstructure:"backup_dir"`
	ReconcileOnStart bool   `mapstructure:"reconcile_on_start"`
	RetentionDays    int    `mapstructure:"retention_days"`
}

type HashConfig struct {
	BlockSize int           `mapstructure:"block_size"`
	CacheSize int           `mapstructure:"cache_size"`
	CacheTTL  time.Duration `mapstructure:"cache_ttl"`
}

// LockConfig selects how registry mutations are serialized: local or redis
type LockConfig struct {
	Driver     string        `mapstructure:"driver"`
	Key        string        `mapstructure:"key"`
	TTL        time.Duration `mapstructure:"ttl"`
	MaxRetries int           `mapstructure:"max_retries"`
	RetryDelay time.Duration `mapstructure:"retry_delay"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

type MinIOConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	UseSSL    bool   `mapstructure:"use_ssl"`
	Bucket    string `mapstructure:"bucket"`
}

// AnalysisConfig configures the LLM provider: openai or ollama
type AnalysisConfig struct {
	Provider      string        `mapstructure:"provider"`
	APIKey        string        `mapstructure:"api_key"`
	BaseURL       string        `mapstructure:"base_url"`
	Model         string        `mapstructure:"model"`
	Temperature   float32       `mapstructure:"temperature"`
	Timeout       time.Duration `mapstructure:"timeout"`
	PromptsFile   string        `mapstructure:"prompts_file"`
	DefaultPrompt string        `mapstructure:"default_prompt"`
}

type ExtractConfig struct {
	OfficeLicenseKey string `mapstructure:"office_license_key"`
}

type WatcherConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	InboxDir string        `mapstructure:"inbox_dir"`
	PromptID string        `mapstructure:"prompt_id"`
	Settle   time.Duration `mapstructure:"settle"`
}

type WorkerConfig struct {
	Size int `mapstructure:"size"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.max_upload_mb", 50)
	v.SetDefault("server.upload_temp_dir", "data/uploads")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.output", "console")
	v.SetDefault("log.enablecaller", true)
	v.SetDefault("log.enablestacktrace", true)
	v.SetDefault("log.file.filename", "logs/docsense.log")
	v.SetDefault("log.file.maxsize", 100)
	v.SetDefault("log.file.maxage", 30)
	v.SetDefault("log.file.maxbackups", 10)

	v.SetDefault("storage.managed_dir", "data/files")
	v.SetDefault("storage.backend", "json")
	v.SetDefault("storage.registry_file", "data/file_registry.json")
	v.SetDefault("storage.index_file", "data/search_index.json")
	v.SetDefault("storage.sqlite_path", "data/registry.db")
	v.SetDefault("storage.legacy_root", "file_management")
	v.SetDefault("storage.backup_dir", "data/backups")
	v.SetDefault("storage.reconcile_on_start", true)
	v.SetDefault("storage.retention_days", 30)

	v.SetDefault("hash.block_size", 64*1024)
	v.SetDefault("hash.cache_size", 4096)
	v.SetDefault("hash.cache_ttl", 10*time.Minute)

	v.SetDefault("lock.driver", "local")
	v.SetDefault("lock.key", "docsense:registry:lock")
	v.SetDefault("lock.ttl", 30*time.Second)
	v.SetDefault("lock.max_retries", 50)
	v.SetDefault("lock.retry_delay", 100*time.Millisecond)

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("minio.bucket", "docsense-backups")

	v.SetDefault("analysis.provider", "openai")
	v.SetDefault("analysis.model", "gpt-4o-mini")
	v.SetDefault("analysis.temperature", 0.2)
	v.SetDefault("analysis.timeout", 120*time.Second)
	v.SetDefault("analysis.prompts_file", "prompts/prompts_list.json")
	v.SetDefault("analysis.default_prompt", "summary")

	v.SetDefault("watcher.inbox_dir", "data/inbox")
	v.SetDefault("watcher.settle", 500*time.Millisecond)
	v.SetDefault("worker.size", 4)
}

// LoadConfig reads path (if non-empty) and overlays DOCSENSE_* env variables
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("DOCSENSE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// Validate checks the enumerated settings
func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case "json", "sqlite", "postgres":
	default:
		return fmt.Errorf("unsupported storage backend: %s", c.Storage.Backend)
	}
	switch c.Lock.Driver {
	case "local", "redis":
	default:
		return fmt.Errorf("unsupported lock driver: %s", c.Lock.Driver)
	}
	switch c.Analysis.Provider {
	case "openai", "ollama":
	default:
		return fmt.Errorf("unsupported analysis provider: %s", c.Analysis.Provider)
	}
	if c.Storage.ManagedDir == "" {
		return fmt.Errorf("storage.managed_dir is required")
	}
	return nil
}

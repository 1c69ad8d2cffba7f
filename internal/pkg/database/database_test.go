package database

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/lk2023060901/docsense-backend/internal/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gormlogger "gorm.io/gorm/logger"
)

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		config  *Config
		wantErr bool
	}{
		{
			name:    "default config",
			config:  DefaultConfig(),
			wantErr: false,
		},
		{
			name:    "sqlite config",
			config:  SQLiteConfig("data/registry.db"),
			wantErr: false,
		},
		{
			name:    "sqlite without path",
			config:  SQLiteConfig(""),
			wantErr: true,
		},
		{
			name: "missing host",
			config: &Config{
				Driver:   DriverPostgres,
				Port:     5432,
				User:     "user",
				DBName:   "test",
				SSLMode:  "disable",
				LogLevel: "warn",
			},
			wantErr: true,
		},
		{
			name: "invalid SSL mode",
			config: &Config{
				Driver:   DriverPostgres,
				Host:     "localhost",
				Port:     5432,
				User:     "user",
				DBName:   "test",
				SSLMode:  "invalid",
				LogLevel: "warn",
			},
			wantErr: true,
		},
		{
			name: "invalid log level",
			config: &Config{
				Driver:   DriverSQLite,
				Path:     "x.db",
				LogLevel: "verbose",
			},
			wantErr: true,
		},
		{
			name:    "unknown driver",
			config:  &Config{Driver: "mysql", LogLevel: "warn"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfigDSN(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Password = "secret"

	want := "host=localhost port=5432 user=postgres password=secret dbname=postgres sslmode=disable TimeZone=UTC"
	if got := cfg.DSN(); got != want {
		t.Errorf("DSN() = %q, want %q", got, want)
	}
	if got := cfg.Location(); got != "postgres://localhost:5432/postgres" {
		t.Errorf("Location() = %q", got)
	}
}

func TestOpenSQLite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "registry.db")

	db, err := New(SQLiteConfig(path), logger.Nop())
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, db.HealthCheck(context.Background()))
	assert.FileExists(t, path)
	assert.Equal(t, DriverSQLite, db.Config().Driver)

	var n int
	require.NoError(t, db.Raw("SELECT 1").Scan(&n).Error)
	assert.Equal(t, 1, n)
}

func TestGormLoggerLevel(t *testing.T) {
	l := newGormLogger(logger.Nop(), &Config{LogLevel: "silent", SlowThreshold: time.Second})
	gl, ok := l.(*gormLogger)
	require.True(t, ok)
	assert.Equal(t, gormlogger.Silent, gl.logLevel)

	info := l.LogMode(gormlogger.Info).(*gormLogger)
	assert.Equal(t, gormlogger.Info, info.logLevel)
	assert.Equal(t, gormlogger.Silent, gl.logLevel)
}

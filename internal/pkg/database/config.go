package database

import (
	"errors"
	"fmt"
	"time"
)

// Driver database backend
type Driver string

const (
	DriverPostgres Driver = "postgres"
	DriverSQLite   Driver = "sqlite"
)

// Config defines the database configuration
type Config struct {
	Driver Driver `mapstructure:"driver"`

	// SQLite file
	Path string `mapstructure:"path"`

	// PostgreSQL connection settings
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"` // disable, require, verify-ca, verify-full
	Timezone string `mapstructure:"timezone"`

	// Connection pool settings
	MaxIdleConns    int           `mapstructure:"maxidleconns"`
	MaxOpenConns    int           `mapstructure:"maxopenconns"`
	ConnMaxLifetime time.Duration `mapstructure:"connmaxlifetime"`

	// GORM settings
	LogLevel      string        `mapstructure:"loglevel"` // silent, error, warn, info
	SlowThreshold time.Duration `mapstructure:"slowthreshold"`
}

// DefaultConfig returns the default PostgreSQL configuration
func DefaultConfig() *Config {
	return &Config{
		Driver:   DriverPostgres,
		Host:     "localhost",
		Port:     5432,
		User:     "postgres",
		Password: "postgres",
		DBName:   "postgres",
		SSLMode:  "disable",
		Timezone: "UTC",

		MaxIdleConns:    10,
		MaxOpenConns:    100,
		ConnMaxLifetime: time.Hour,

		LogLevel:      "warn",
		SlowThreshold: 200 * time.Millisecond,
	}
}

// SQLiteConfig returns a configuration for the SQLite file at path
func SQLiteConfig(path string) *Config {
	return &Config{
		Driver:          DriverSQLite,
		Path:            path,
		MaxOpenConns:    1, // single writer
		ConnMaxLifetime: time.Hour,
		LogLevel:        "warn",
		SlowThreshold:   200 * time.Millisecond,
	}
}

var (
	validSSLModes  = map[string]bool{"disable": true, "require": true, "verify-ca": true, "verify-full": true}
	validLogLevels = map[string]bool{"silent": true, "error": true, "warn": true, "info": true}
)

// Validate validates the database configuration
func (c *Config) Validate() error {
	switch c.Driver {
	case DriverSQLite:
		if c.Path == "" {
			return errors.New("database path is required for sqlite")
		}
	case DriverPostgres:
		if c.Host == "" {
			return errors.New("database host is required")
		}
		if c.Port <= 0 || c.Port > 65535 {
			return errors.New("database port must be between 1 and 65535")
		}
		if c.User == "" {
			return errors.New("database user is required")
		}
		if c.DBName == "" {
			return errors.New("database name is required")
		}
		if !validSSLModes[c.SSLMode] {
			return errors.New("invalid SSL mode, must be one of: disable, require, verify-ca, verify-full")
		}
	default:
		return fmt.Errorf("unsupported database driver: %q", c.Driver)
	}

	if !validLogLevels[c.LogLevel] {
		return errors.New("invalid log level, must be one of: silent, error, warn, info")
	}
	if c.MaxIdleConns < 0 || c.MaxOpenConns < 0 {
		return errors.New("connection pool sizes must be >= 0")
	}
	if c.MaxIdleConns > c.MaxOpenConns && c.MaxOpenConns > 0 {
		return errors.New("max idle connections cannot exceed max open connections")
	}
	return nil
}

// DSN returns the PostgreSQL connection DSN
func (c *Config) DSN() string {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
	if c.Timezone != "" {
		dsn += " TimeZone=" + c.Timezone
	}
	return dsn
}

// Location describes the database for logs without credentials
func (c *Config) Location() string {
	if c.Driver == DriverSQLite {
		return "sqlite://" + c.Path
	}
	return fmt.Sprintf("postgres://%s:%d/%s", c.Host, c.Port, c.DBName)
}

package redis

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConfigValidate(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())

	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"unknown mode", func(c *Config) { c.Mode = "read-write" }},
		{"single without addr", func(c *Config) { c.Addr = "" }},
		{"sentinel without master", func(c *Config) {
			c.Mode = ModeSentinel
			c.SentinelAddrs = []string{"s1:26379"}
		}},
		{"cluster without addrs", func(c *Config) { c.Mode = ModeCluster }},
		{"cluster with db", func(c *Config) {
			c.Mode = ModeCluster
			c.ClusterAddrs = []string{"n1:6379"}
			c.DB = 2
		}},
		{"db out of range", func(c *Config) { c.DB = 16 }},
		{"pool size", func(c *Config) { c.PoolSize = 0 }},
		{"dial timeout", func(c *Config) { c.DialTimeout = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestAddrsFollowMode(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, []string{"localhost:6379"}, cfg.addrs())

	cfg.Mode = ModeSentinel
	cfg.SentinelAddrs = []string{"a:26379", "b:26379"}
	assert.Equal(t, cfg.SentinelAddrs, cfg.addrs())
}

func TestPingWithoutClient(t *testing.T) {
	c := &Client{}
	assert.ErrorIs(t, c.Ping(t.Context()), ErrNotInitialized)
}

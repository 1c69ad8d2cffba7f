// Package redis wraps go-redis with the connection setup and the
// distributed lock used to serialize registry writers across processes.
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/lk2023060901/docsense-backend/internal/pkg/logger"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Client Redis 客户端封装
type Client struct {
	config *Config
	logger *logger.Logger
	master redis.UniversalClient
}

// New 创建 Redis 客户端并做健康检查
func New(cfg *Config, log *logger.Logger) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	master := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:         cfg.addrs(),
		MasterName:    cfg.MasterName,
		Username:      cfg.Username,
		Password:      cfg.Password,
		DB:            cfg.DB,
		PoolSize:      cfg.PoolSize,
		DialTimeout:   cfg.DialTimeout,
		ReadTimeout:   cfg.ReadTimeout,
		WriteTimeout:  cfg.WriteTimeout,
		MaxRetries:    cfg.MaxRetries,
		IsClusterMode: cfg.Mode == ModeCluster,
	})

	client := NewWithClient(master, cfg, log)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	client.logger.Info("redis client initialized successfully",
		zap.String("mode", string(cfg.Mode)),
		zap.Strings("addrs", cfg.addrs()),
	)
	return client, nil
}

// NewWithClient wraps an existing go-redis client
func NewWithClient(master redis.UniversalClient, cfg *Config, log *logger.Logger) *Client {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &Client{
		config: cfg,
		logger: logger.OrGlobal(log).Named("redis"),
		master: master,
	}
}

// Ping 健康检查
func (c *Client) Ping(ctx context.Context) error {
	if c.master == nil {
		return ErrNotInitialized
	}
	if err := c.master.Ping(ctx).Err(); err != nil {
		c.logger.Error("redis ping failed", zap.Error(err))
		return err
	}
	return nil
}

// Close 关闭客户端
func (c *Client) Close() error {
	if c.master == nil {
		return nil
	}
	if err := c.master.Close(); err != nil {
		c.logger.Error("close redis client failed", zap.Error(err))
		return err
	}
	c.logger.Info("redis client closed")
	return nil
}

// GetMasterClient 获取底层客户端
func (c *Client) GetMasterClient() redis.UniversalClient {
	return c.master
}

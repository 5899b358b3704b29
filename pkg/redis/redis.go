package redis

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/webdevsha/permitakaun/pkg/config"
)

// Config holds Redis connection settings
type Config struct {
	Host          string
	Port          int
	Password      string
	DB            int
	PoolSize      int
	MinIdleConns  int
	DialTimeout   time.Duration
	ReadTimeout   time.Duration
	WriteTimeout  time.Duration
	MaxRetries    int
	RetryInterval time.Duration
}

// DefaultConfig returns a config for a local Redis
func DefaultConfig() *Config {
	return &Config{
		Host:          "localhost",
		Port:          6379,
		PoolSize:      50,
		MinIdleConns:  5,
		DialTimeout:   5 * time.Second,
		ReadTimeout:   3 * time.Second,
		WriteTimeout:  3 * time.Second,
		MaxRetries:    3,
		RetryInterval: time.Second,
	}
}

// FromConfig maps the application redis section onto client settings
func FromConfig(c config.RedisConfig) *Config {
	cfg := DefaultConfig()
	cfg.Host = c.Host
	cfg.Port = c.Port
	cfg.Password = c.Password
	cfg.DB = c.DB
	if c.PoolSize > 0 {
		cfg.PoolSize = c.PoolSize
	}
	if c.MinIdleConns > 0 {
		cfg.MinIdleConns = c.MinIdleConns
	}
	if c.DialTimeout > 0 {
		cfg.DialTimeout = c.DialTimeout
	}
	if c.ReadTimeout > 0 {
		cfg.ReadTimeout = c.ReadTimeout
	}
	if c.WriteTimeout > 0 {
		cfg.WriteTimeout = c.WriteTimeout
	}
	return cfg
}

// Addr returns host:port
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Client wraps go-redis with named Lua script loading
type Client struct {
	*goredis.Client

	mu      sync.RWMutex
	scripts map[string]*goredis.Script
}

// NewClient connects and pings Redis, retrying MaxRetries times
func NewClient(ctx context.Context, cfg *Config) (*Client, error) {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:         cfg.Addr(),
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	var lastErr error
	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				_ = rdb.Close()
				return nil, ctx.Err()
			case <-time.After(cfg.RetryInterval):
			}
		}
		if lastErr = rdb.Ping(ctx).Err(); lastErr == nil {
			return &Client{Client: rdb, scripts: make(map[string]*goredis.Script)}, nil
		}
	}

	_ = rdb.Close()
	return nil, fmt.Errorf("connect to redis at %s: %w", cfg.Addr(), lastErr)
}

// LoadScript loads a Lua script and remembers it under name
func (c *Client) LoadScript(ctx context.Context, name, source string) (string, error) {
	script := goredis.NewScript(source)
	if err := script.Load(ctx, c.Client).Err(); err != nil {
		return "", fmt.Errorf("load script %s: %w", name, err)
	}
	c.mu.Lock()
	c.scripts[name] = script
	c.mu.Unlock()
	return script.Hash(), nil
}

// EvalScript runs a loaded script by sha, reloading it once when Redis has flushed its script cache
func (c *Client) EvalScript(ctx context.Context, name string, keys []string, args ...interface{}) *goredis.Cmd {
	c.mu.RLock()
	script, ok := c.scripts[name]
	c.mu.RUnlock()
	if !ok {
		cmd := goredis.NewCmd(ctx)
		cmd.SetErr(fmt.Errorf("script %s not loaded", name))
		return cmd
	}

	cmd := script.EvalSha(ctx, c.Client, keys, args...)
	if err := cmd.Err(); err != nil && strings.HasPrefix(err.Error(), "NOSCRIPT") {
		if loadErr := script.Load(ctx, c.Client).Err(); loadErr != nil {
			return cmd
		}
		return script.EvalSha(ctx, c.Client, keys, args...)
	}
	return cmd
}

// HealthCheck pings Redis
func (c *Client) HealthCheck(ctx context.Context) error {
	return c.Ping(ctx).Err()
}

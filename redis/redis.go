// Package redis builds go-redis clients for the session store, either
// a direct connection or one discovered through Sentinel.
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisConfig addresses a single Redis instance.
type RedisConfig struct {
	Host      string `json:"host"`
	Port      int    `json:"port"`
	Password  string `json:"password,omitempty"`
	Namespace string `json:"namespace,omitempty"`
}

// RedisSentinelConfig addresses a Redis deployment through Sentinel.
type RedisSentinelConfig struct {
	SentinelHost     string `json:"sentinel_host"`
	SentinelPort     int    `json:"sentinel_port"`
	Password         string `json:"password,omitempty"`
	MasterName       string `json:"master_name"`
	SentinelUsername string `json:"sentinel_username,omitempty"`
	Namespace        string `json:"namespace,omitempty"`
}

const pingTimeout = 3 * time.Second

// NewRedisClient connects directly to a Redis instance and verifies
// the connection with a PING before returning.
func NewRedisClient(cfg *RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
	})

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return client, nil
}

// NewRedisSentinelClient discovers the current master through Sentinel
// and verifies the connection with a PING before returning.
func NewRedisSentinelClient(cfg *RedisSentinelConfig) (*redis.Client, error) {
	if cfg.MasterName == "" {
		return nil, fmt.Errorf("failed to connect to Redis through Sentinel: master name is required")
	}

	client := redis.NewFailoverClient(&redis.FailoverOptions{
		MasterName:       cfg.MasterName,
		SentinelAddrs:    []string{fmt.Sprintf("%s:%d", cfg.SentinelHost, cfg.SentinelPort)},
		Password:         cfg.Password,
		SentinelUsername: cfg.SentinelUsername,
	})

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis through Sentinel: %w", err)
	}
	return client, nil
}

package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"LocalFM/config"
	"LocalFM/logger"

	"github.com/go-redis/redis/v8"
)

// ConnectRedis 初始化Redis连接
func ConnectRedis(cfg *config.Config) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", cfg.RedisHost, cfg.RedisPort),
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	// 测试连接
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := client.Ping(ctx).Result(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	logger.Info("Redis 连接成功", logger.String("addr", client.Options().Addr))
	return client, nil
}

// RedisDocumentStore keeps the document under one string key. SET replaces
// the value atomically.
type RedisDocumentStore struct {
	client *redis.Client
	key    string
}

func NewRedisDocumentStore(client *redis.Client, key string) *RedisDocumentStore {
	return &RedisDocumentStore{client: client, key: key}
}

func (r *RedisDocumentStore) Read(ctx context.Context) ([]byte, error) {
	data, err := r.client.Get(ctx, r.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNoDocument
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get Redis key %s: %w", r.key, err)
	}
	return data, nil
}

func (r *RedisDocumentStore) Write(ctx context.Context, data []byte) error {
	if err := r.client.Set(ctx, r.key, data, 0).Err(); err != nil {
		return fmt.Errorf("failed to set Redis key %s: %w", r.key, err)
	}
	return nil
}

// Close 关闭Redis连接
func (r *RedisDocumentStore) Close() error {
	return r.client.Close()
}

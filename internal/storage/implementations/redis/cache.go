package redis

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"

	"github.com/modelreg/modelreg/pkg/constants"
	"github.com/modelreg/modelreg/pkg/errors"
	"github.com/modelreg/modelreg/pkg/models"
)

// RedisConfig holds configuration for the Redis result cache
type RedisConfig struct {
	Addr         string        `json:"addr"`
	Password     string        `json:"password"`
	DB           int           `json:"db"`
	DialTimeout  time.Duration `json:"dial_timeout"`
	ReadTimeout  time.Duration `json:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout"`
	PoolSize     int           `json:"pool_size"`
	KeyPrefix    string        `json:"key_prefix"`
}

// RedisCache implements the ResultCache interface on Redis. Cached validation
// results are recomputable derived state, so losing the cache is harmless.
type RedisCache struct {
	config *RedisConfig
	client *redis.Client
	logger *logrus.Logger
}

// NewRedisCache creates a Redis-backed result cache and verifies the
// connection
func NewRedisCache(ctx context.Context, config *RedisConfig, logger *logrus.Logger) (*RedisCache, error) {
	if config == nil {
		config = getDefaultRedisConfig()
	}
	if config.Addr == "" {
		return nil, errors.NewStorageError("INVALID_CONFIG", "Redis address is required")
	}
	if logger == nil {
		logger = logrus.New()
	}

	client := redis.NewClient(&redis.Options{
		Addr:         config.Addr,
		Password:     config.Password,
		DB:           config.DB,
		DialTimeout:  config.DialTimeout,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
		PoolSize:     config.PoolSize,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, errors.WrapError(err, errors.ErrorTypeStorage, errors.CodeStorageError,
			"failed to reach Redis")
	}

	logger.WithField("addr", config.Addr).Info("Connected to Redis result cache")

	return &RedisCache{
		config: config,
		client: client,
		logger: logger,
	}, nil
}

// GetValidation reads a cached validation result; returns nil, nil on miss
func (c *RedisCache) GetValidation(ctx context.Context, version string) (*models.ValidationResult, error) {
	data, err := c.client.Get(ctx, c.key(version)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, errors.WrapError(err, errors.ErrorTypeStorage, errors.CodeStorageError,
			"failed to read validation cache")
	}

	var result models.ValidationResult
	if err := json.Unmarshal(data, &result); err != nil {
		// Treat a corrupt entry as a miss; it will be recomputed.
		c.logger.WithError(err).WithField("version", version).Warn("Dropping corrupt cache entry")
		c.client.Del(ctx, c.key(version))
		return nil, nil
	}
	return &result, nil
}

// PutValidation caches a validation result with the given TTL
func (c *RedisCache) PutValidation(ctx context.Context, result *models.ValidationResult, ttl time.Duration) error {
	data, err := json.Marshal(result)
	if err != nil {
		return errors.WrapError(err, errors.ErrorTypeStorage, errors.CodeStorageError,
			"failed to encode validation result")
	}

	if err := c.client.Set(ctx, c.key(result.Version), data, ttl).Err(); err != nil {
		return errors.WrapError(err, errors.ErrorTypeStorage, errors.CodeStorageError,
			"failed to write validation cache")
	}
	return nil
}

// InvalidateValidation drops a cached validation result
func (c *RedisCache) InvalidateValidation(ctx context.Context, version string) error {
	if err := c.client.Del(ctx, c.key(version)).Err(); err != nil {
		return errors.WrapError(err, errors.ErrorTypeStorage, errors.CodeStorageError,
			"failed to invalidate validation cache")
	}
	return nil
}

// Close releases the Redis connection
func (c *RedisCache) Close() error {
	return c.client.Close()
}

func (c *RedisCache) key(version string) string {
	return c.config.KeyPrefix + version
}

func getDefaultRedisConfig() *RedisConfig {
	return &RedisConfig{
		Addr:         "localhost:6379",
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		KeyPrefix:    constants.CacheKeyPrefixValidation,
	}
}

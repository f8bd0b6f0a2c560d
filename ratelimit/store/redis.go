package store

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Redis is a sliding-window-log implementation of Store backed by a
// Redis sorted set per key. Each admitted event is a set member scored
// by its timestamp; expired members are trimmed on every check.
// Suitable for distributed deployments in Kubernetes.
type Redis struct {
	client *redis.Client
	prefix string
}

// RedisConfig holds configuration for the Redis connection.
// Populate from environment variables or a config file in your
// application code. Prefix is optional; keys built by the ratelimit
// package already carry a "ratelimit:" namespace, so a prefix is only
// needed to separate tenants sharing one database.
type RedisConfig struct {
	URL      string `yaml:"url"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix"`
}

// NewRedis creates a Redis store and probes connectivity once. A probe
// failure is returned to the caller so it can fall back to an
// in-process store; the choice is not revisited later.
func NewRedis(config RedisConfig) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         config.URL,
		Password:     config.Password,
		DB:           config.DB,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &Redis{
		client: client,
		prefix: config.Prefix,
	}, nil
}

// Check implements the sliding window log. The trim and count run as
// one pipelined batch; the record is a second round trip issued only
// after the count passes. Two concurrent requests racing on the same
// key can both observe count < limit and both record, so the limit can
// be overshot by the number of in-flight requests for that key. That
// bounded overshoot is accepted here rather than paying for a
// distributed lock.
func (r *Redis) Check(ctx context.Context, key string, limit uint64, window time.Duration) (Decision, error) {
	fullKey := r.prefix + key
	now := time.Now()
	cutoff := strconv.FormatFloat(scoreAt(now.Add(-window)), 'f', 6, 64)

	pipe := r.client.Pipeline()
	pipe.ZRemRangeByScore(ctx, fullKey, "-inf", "("+cutoff)
	card := pipe.ZCard(ctx, fullKey)
	if _, err := pipe.Exec(ctx); err != nil {
		return Decision{}, fmt.Errorf("redis window check failed: %w", err)
	}

	if uint64(card.Val()) >= limit {
		return Decision{ResetAt: now.Add(window).Unix()}, nil
	}

	rec := r.client.Pipeline()
	rec.ZAdd(ctx, fullKey, redis.Z{Score: scoreAt(now), Member: uuid.NewString()})
	rec.Expire(ctx, fullKey, window)
	if _, err := rec.Exec(ctx); err != nil {
		return Decision{}, fmt.Errorf("redis window record failed: %w", err)
	}

	return Decision{Allowed: true}, nil
}

// Close releases resources held by the Redis client.
func (r *Redis) Close() error {
	return r.client.Close()
}

// scoreAt converts a time to a fractional-second sorted-set score.
func scoreAt(t time.Time) float64 {
	return float64(t.UnixMicro()) / 1e6
}

package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"aml-monitor/internal/models"
)

const denylistKey = "denylist:addresses"

type CacheService interface {
	// Generic cache operations
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	Get(ctx context.Context, key string, dest interface{}) error
	Delete(ctx context.Context, key string) error

	// Wallet risk snapshot used by the HTTP surface
	CacheWalletRisk(ctx context.Context, wallet *models.Wallet, expiration time.Duration) error
	GetCachedWalletRisk(ctx context.Context, address string) (*models.Wallet, bool)

	// Denylist operations backing the BLACKLISTED_ADDRESS rule
	SeedDenylist(ctx context.Context, addresses []string) error
	IsDenylisted(ctx context.Context, address string) (bool, error)

	Ping(ctx context.Context) error
	Close() error
}

type redisCache struct {
	client    *redis.Client
	keyPrefix string
}

func NewRedisCache(client *redis.Client, keyPrefix string) CacheService {
	return &redisCache{
		client:    client,
		keyPrefix: keyPrefix,
	}
}

func (r *redisCache) buildKey(key string) string {
	if r.keyPrefix != "" {
		return fmt.Sprintf("%s:%s", r.keyPrefix, key)
	}
	return key
}

func (r *redisCache) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal value: %w", err)
	}
	return r.client.Set(ctx, r.buildKey(key), data, expiration).Err()
}

func (r *redisCache) Get(ctx context.Context, key string, dest interface{}) error {
	data, err := r.client.Get(ctx, r.buildKey(key)).Result()
	if err != nil {
		if err == redis.Nil {
			return fmt.Errorf("key not found: %s", key)
		}
		return fmt.Errorf("failed to get value: %w", err)
	}
	return json.Unmarshal([]byte(data), dest)
}

func (r *redisCache) Delete(ctx context.Context, key string) error {
	return r.client.Del(ctx, r.buildKey(key)).Err()
}

func (r *redisCache) CacheWalletRisk(ctx context.Context, wallet *models.Wallet, expiration time.Duration) error {
	return r.Set(ctx, fmt.Sprintf("wallet:%s", wallet.Address), wallet, expiration)
}

func (r *redisCache) GetCachedWalletRisk(ctx context.Context, address string) (*models.Wallet, bool) {
	var wallet models.Wallet
	if err := r.Get(ctx, fmt.Sprintf("wallet:%s", address), &wallet); err != nil {
		return nil, false
	}
	return &wallet, true
}

func (r *redisCache) SeedDenylist(ctx context.Context, addresses []string) error {
	if len(addresses) == 0 {
		return nil
	}
	members := make([]interface{}, len(addresses))
	for i, a := range addresses {
		members[i] = a
	}
	if err := r.client.SAdd(ctx, r.buildKey(denylistKey), members...).Err(); err != nil {
		return fmt.Errorf("failed to seed denylist: %w", err)
	}
	logrus.WithField("count", len(addresses)).Info("Seeded address denylist")
	return nil
}

func (r *redisCache) IsDenylisted(ctx context.Context, address string) (bool, error) {
	member, err := r.client.SIsMember(ctx, r.buildKey(denylistKey), address).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check denylist: %w", err)
	}
	return member, nil
}

func (r *redisCache) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *redisCache) Close() error {
	return r.client.Close()
}

package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"hostellite/internal/config"
	"hostellite/internal/models"

	"github.com/redis/go-redis/v9"
)

const credentialKeyPrefix = "hostellite:credential:"

// ErrRedisUnavailable is returned when a Redis-backed store has no client.
var ErrRedisUnavailable = errors.New("redis is not configured")

// RedisCredentialRepository shares one login between processes on the same
// machine, for example the CLI and a long-running reconcile worker.
type RedisCredentialRepository struct {
	client *redis.Client
	ttl    time.Duration
	now    func() time.Time
}

// NewRedisClient builds a Redis client from config. Timeouts stay short since
// Redis only ever holds optional state here.
func NewRedisClient(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  time.Second,
		WriteTimeout: time.Second,
	})
}

func NewRedisCredentialRepository(client *redis.Client, ttl time.Duration) *RedisCredentialRepository {
	return &RedisCredentialRepository{client: client, ttl: ttl, now: time.Now}
}

func credentialKey(profile string) string {
	return credentialKeyPrefix + profile
}

// credentialTTL is the key lifetime for cred: the configured TTL, shortened to
// the token expiry when that comes first. ok is false for an expired token.
func credentialTTL(cred *models.Credential, configured time.Duration, now time.Time) (ttl time.Duration, ok bool) {
	if cred.ExpiresAt.IsZero() {
		return configured, true
	}
	left := cred.ExpiresAt.Sub(now)
	if left <= 0 {
		return 0, false
	}
	if configured == 0 || left < configured {
		return left, true
	}
	return configured, true
}

func (r *RedisCredentialRepository) Load(ctx context.Context, profile string) (*models.Credential, error) {
	if r.client == nil {
		return nil, ErrRedisUnavailable
	}
	data, err := r.client.Get(ctx, credentialKey(profile)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get credential %q: %w", profile, err)
	}

	var cred models.Credential
	if err := json.Unmarshal(data, &cred); err != nil {
		return nil, fmt.Errorf("decode credential %q: %w", profile, err)
	}
	return &cred, nil
}

// Save stores the credential. It never outlives the token's own expiry.
func (r *RedisCredentialRepository) Save(ctx context.Context, profile string, cred *models.Credential) error {
	if r.client == nil {
		return ErrRedisUnavailable
	}
	ttl, ok := credentialTTL(cred, r.ttl, r.now())
	if !ok {
		return r.Delete(ctx, profile)
	}

	data, err := json.Marshal(cred)
	if err != nil {
		return fmt.Errorf("encode credential: %w", err)
	}
	if err := r.client.Set(ctx, credentialKey(profile), data, ttl).Err(); err != nil {
		return fmt.Errorf("set credential %q: %w", profile, err)
	}
	return nil
}

func (r *RedisCredentialRepository) Delete(ctx context.Context, profile string) error {
	if r.client == nil {
		return ErrRedisUnavailable
	}
	if err := r.client.Del(ctx, credentialKey(profile)).Err(); err != nil {
		return fmt.Errorf("delete credential %q: %w", profile, err)
	}
	return nil
}

// Ping checks the Redis connection.
func Ping(ctx context.Context, client *redis.Client) error {
	if client == nil {
		return ErrRedisUnavailable
	}
	if err := client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}
	return nil
}

func Close(client *redis.Client) error {
	if client == nil {
		return nil
	}
	return client.Close()
}

package repository

import (
	"context"
	"testing"
	"time"

	"hostellite/internal/config"
	"hostellite/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisCredentialRepository(t *testing.T) {
	s, err := miniredis.Run()
	require.NoError(t, err)
	defer s.Close()

	client := NewRedisClient(config.RedisConfig{Address: s.Addr()})
	defer Close(client)

	repo := NewRedisCredentialRepository(client, time.Hour)
	ctx := context.Background()

	t.Run("LoadMissing", func(t *testing.T) {
		cred, err := repo.Load(ctx, "default")
		assert.NoError(t, err)
		assert.Nil(t, cred)
	})

	t.Run("SaveAndLoad", func(t *testing.T) {
		err := repo.Save(ctx, "default", &models.Credential{Token: "tok", Role: models.RoleUser, UserID: "u1"})
		require.NoError(t, err)

		cred, err := repo.Load(ctx, "default")
		require.NoError(t, err)
		require.NotNil(t, cred)
		assert.Equal(t, "tok", cred.Token)
		assert.Equal(t, models.RoleUser, cred.Role)
		assert.Equal(t, time.Hour, s.TTL(credentialKeyPrefix+"default"))
	})

	t.Run("TTLBoundedByExpiry", func(t *testing.T) {
		err := repo.Save(ctx, "short", &models.Credential{Token: "tok", ExpiresAt: time.Now().Add(10 * time.Minute)})
		require.NoError(t, err)
		ttl := s.TTL(credentialKeyPrefix + "short")
		assert.True(t, ttl > 0 && ttl <= 10*time.Minute)
	})

	t.Run("ExpiredCredentialIsDeleted", func(t *testing.T) {
		err := repo.Save(ctx, "stale", &models.Credential{Token: "tok"})
		require.NoError(t, err)
		err = repo.Save(ctx, "stale", &models.Credential{Token: "tok", ExpiresAt: time.Now().Add(-time.Minute)})
		require.NoError(t, err)
		assert.False(t, s.Exists(credentialKeyPrefix+"stale"))
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, repo.Delete(ctx, "default"))
		cred, err := repo.Load(ctx, "default")
		assert.NoError(t, err)
		assert.Nil(t, cred)
	})

	t.Run("CorruptValue", func(t *testing.T) {
		require.NoError(t, s.Set(credentialKeyPrefix+"bad", "{not json"))
		_, err := repo.Load(ctx, "bad")
		assert.Error(t, err)
	})

	t.Run("Ping", func(t *testing.T) {
		assert.NoError(t, Ping(ctx, client))
	})
}

func TestRedisCredentialRepositoryNilClient(t *testing.T) {
	repo := NewRedisCredentialRepository(nil, time.Hour)
	ctx := context.Background()

	_, err := repo.Load(ctx, "p")
	assert.ErrorIs(t, err, ErrRedisUnavailable)
	assert.ErrorIs(t, repo.Save(ctx, "p", &models.Credential{Token: "t"}), ErrRedisUnavailable)
	assert.ErrorIs(t, repo.Delete(ctx, "p"), ErrRedisUnavailable)
	assert.ErrorIs(t, Ping(ctx, nil), ErrRedisUnavailable)
	assert.NoError(t, Close(nil))
}

func TestCredentialTTL(t *testing.T) {
	now := time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name       string
		expiresAt  time.Time
		configured time.Duration
		want       time.Duration
		wantOK     bool
	}{
		{name: "no expiry uses configured", configured: time.Hour, want: time.Hour, wantOK: true},
		{name: "no expiry and no ttl persists", want: 0, wantOK: true},
		{name: "expiry sooner than ttl", expiresAt: now.Add(10 * time.Minute), configured: time.Hour, want: 10 * time.Minute, wantOK: true},
		{name: "ttl sooner than expiry", expiresAt: now.Add(2 * time.Hour), configured: time.Hour, want: time.Hour, wantOK: true},
		{name: "expiry without ttl", expiresAt: now.Add(time.Minute), want: time.Minute, wantOK: true},
		{name: "already expired", expiresAt: now, configured: time.Hour, wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := credentialTTL(&models.Credential{ExpiresAt: tt.expiresAt}, tt.configured, now)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRedisCredentialRepositoryServerDown(t *testing.T) {
	s, err := miniredis.Run()
	require.NoError(t, err)
	client := redis.NewClient(&redis.Options{Addr: s.Addr()})
	defer client.Close()
	s.Close()

	repo := NewRedisCredentialRepository(client, time.Hour)
	_, err = repo.Load(context.Background(), "p")
	assert.Error(t, err)
}

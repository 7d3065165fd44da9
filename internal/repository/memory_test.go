package repository

import (
	"context"
	"testing"
	"time"

	"hostellite/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryCredentialRepository(t *testing.T) {
	repo := NewMemoryCredentialRepository()
	ctx := context.Background()

	cred, err := repo.Load(ctx, "default")
	assert.NoError(t, err)
	assert.Nil(t, cred)

	original := &models.Credential{Token: "tok", Role: models.RoleAdmin}
	require.NoError(t, repo.Save(ctx, "default", original))
	original.Token = "mutated"

	cred, err = repo.Load(ctx, "default")
	require.NoError(t, err)
	assert.Equal(t, "tok", cred.Token, "stored copy is independent of the caller's value")

	other, err := repo.Load(ctx, "work")
	require.NoError(t, err)
	assert.Nil(t, other, "profiles are isolated")

	require.NoError(t, repo.Delete(ctx, "default"))
	cred, err = repo.Load(ctx, "default")
	assert.NoError(t, err)
	assert.Nil(t, cred)
}

func TestMemoryCredentialRepositoryDropsExpired(t *testing.T) {
	repo := NewMemoryCredentialRepository()
	now := time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)
	repo.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, repo.Save(ctx, "default", &models.Credential{Token: "tok", ExpiresAt: now.Add(time.Hour)}))

	cred, err := repo.Load(ctx, "default")
	require.NoError(t, err)
	require.NotNil(t, cred)

	now = now.Add(2 * time.Hour)
	cred, err = repo.Load(ctx, "default")
	require.NoError(t, err)
	assert.Nil(t, cred)
}

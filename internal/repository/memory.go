package repository

import (
	"context"
	"sync"
	"time"

	"hostellite/internal/models"
)

// MemoryCredentialRepository keeps credentials for the life of the process.
// It backs session.storage=memory and serves as the failover target.
type MemoryCredentialRepository struct {
	mu    sync.RWMutex
	creds map[string]models.Credential
	now   func() time.Time
}

func NewMemoryCredentialRepository() *MemoryCredentialRepository {
	return &MemoryCredentialRepository{
		creds: make(map[string]models.Credential),
		now:   time.Now,
	}
}

// Load returns a copy of the stored credential. Expired entries are dropped,
// matching what Redis does with its key TTL.
func (r *MemoryCredentialRepository) Load(_ context.Context, profile string) (*models.Credential, error) {
	r.mu.RLock()
	cred, ok := r.creds[profile]
	r.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	if cred.Expired(r.now()) {
		r.mu.Lock()
		delete(r.creds, profile)
		r.mu.Unlock()
		return nil, nil
	}
	return &cred, nil
}

func (r *MemoryCredentialRepository) Save(_ context.Context, profile string, cred *models.Credential) error {
	if cred == nil {
		return r.Delete(context.Background(), profile)
	}
	r.mu.Lock()
	r.creds[profile] = *cred
	r.mu.Unlock()
	return nil
}

func (r *MemoryCredentialRepository) Delete(_ context.Context, profile string) error {
	r.mu.Lock()
	delete(r.creds, profile)
	r.mu.Unlock()
	return nil
}

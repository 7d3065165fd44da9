package repository

import (
	"context"
	"sync"
	"time"

	"hostellite/internal/domain"
	"hostellite/internal/logging"
	"hostellite/internal/models"

	"github.com/rs/zerolog"
)

const recoveryInterval = time.Minute

// FailoverCredentialRepository serves from primary (usually Redis) and, after
// a primary error, from fallback until a probe finds the primary healthy
// again. Probes happen at most once per recoveryInterval. Successful primary
// writes are mirrored to fallback.
type FailoverCredentialRepository struct {
	primary  domain.CredentialRepository
	fallback domain.CredentialRepository
	logger   *zerolog.Logger
	now      func() time.Time

	mu        sync.Mutex
	down      bool
	downSince time.Time
	lastProbe time.Time
}

func NewFailoverCredentialRepository(primary, fallback domain.CredentialRepository, logger *zerolog.Logger) *FailoverCredentialRepository {
	return &FailoverCredentialRepository{
		primary:  primary,
		fallback: fallback,
		logger:   logging.Component(logger, "credential_failover"),
		now:      time.Now,
	}
}

// Healthy reports whether calls currently go to the primary.
func (r *FailoverCredentialRepository) Healthy() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return !r.down
}

// usePrimary decides whether the next call should try the primary.
func (r *FailoverCredentialRepository) usePrimary() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.down {
		return true
	}
	now := r.now()
	if now.Sub(r.lastProbe) < recoveryInterval {
		return false
	}
	r.lastProbe = now
	return true
}

func (r *FailoverCredentialRepository) record(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch {
	case err == nil && r.down:
		r.down = false
		r.logger.Info().Dur("outage", r.now().Sub(r.downSince)).Msg("Primary credential store recovered")
	case err != nil && !r.down:
		r.down = true
		r.downSince = r.now()
		r.lastProbe = r.downSince
		r.logger.Error().Err(err).Msg("Primary credential store failed, using fallback")
	}
}

func (r *FailoverCredentialRepository) Load(ctx context.Context, profile string) (*models.Credential, error) {
	if r.usePrimary() {
		cred, err := r.primary.Load(ctx, profile)
		r.record(err)
		if err == nil {
			return cred, nil
		}
	}
	return r.fallback.Load(ctx, profile)
}

func (r *FailoverCredentialRepository) Save(ctx context.Context, profile string, cred *models.Credential) error {
	if r.usePrimary() {
		err := r.primary.Save(ctx, profile, cred)
		r.record(err)
		if err == nil {
			if err := r.fallback.Save(ctx, profile, cred); err != nil {
				r.logger.Warn().Err(err).Msg("Failed to mirror credential to fallback")
			}
			return nil
		}
	}
	return r.fallback.Save(ctx, profile, cred)
}

// Delete always clears the fallback as well as the primary.
func (r *FailoverCredentialRepository) Delete(ctx context.Context, profile string) error {
	fallbackErr := r.fallback.Delete(ctx, profile)
	if r.usePrimary() {
		err := r.primary.Delete(ctx, profile)
		r.record(err)
	}
	return fallbackErr
}

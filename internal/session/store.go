package session

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"hostellite/internal/domain"
	"hostellite/internal/logging"
	"hostellite/internal/models"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
)

// Store owns the current login credential. It is created once per process,
// restored explicitly at start-up and handed to the API client and orchestrator.
type Store struct {
	repo    domain.CredentialRepository
	profile string
	logger  *zerolog.Logger
	now     func() time.Time

	mu   sync.RWMutex
	cred *models.Credential
}

func NewStore(repo domain.CredentialRepository, profile string, logger *zerolog.Logger) *Store {
	if profile == "" {
		profile = "default"
	}
	return &Store{
		repo:    repo,
		profile: profile,
		logger:  logging.Component(logger, "session"),
		now:     time.Now,
	}
}

// SetCredential stores a freshly issued token. Claims are read without
// verification; the server remains the only judge of the signature.
func (s *Store) SetCredential(ctx context.Context, token, role string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return domain.ValidationError{Field: "token", Msg: "must not be empty"}
	}

	cred := &models.Credential{Token: token, Role: role, SavedAt: s.now()}
	applyClaims(cred, token)
	if cred.Expired(s.now()) {
		return domain.AuthError{Msg: "token already expired"}
	}

	if err := s.repo.Save(ctx, s.profile, cred); err != nil {
		return fmt.Errorf("save credential: %w", err)
	}

	s.mu.Lock()
	s.cred = cred
	s.mu.Unlock()

	s.logger.Info().Str("role", cred.Role).Str("user_id", cred.UserID).Msg("Credential stored")
	return nil
}

// Restore loads the persisted credential for the profile. A missing or
// expired credential leaves the store unauthenticated without error.
func (s *Store) Restore(ctx context.Context) error {
	cred, err := s.repo.Load(ctx, s.profile)
	if err != nil {
		return fmt.Errorf("load credential: %w", err)
	}
	if cred == nil {
		return nil
	}
	if cred.Expired(s.now()) {
		s.logger.Info().Time("expired_at", cred.ExpiresAt).Msg("Persisted credential expired")
		return s.Clear(ctx)
	}

	s.mu.Lock()
	s.cred = cred
	s.mu.Unlock()
	return nil
}

// Clear tears the session down. Every later Token call fails with AuthError.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	s.cred = nil
	s.mu.Unlock()

	if err := s.repo.Delete(ctx, s.profile); err != nil {
		return fmt.Errorf("delete credential: %w", err)
	}
	s.logger.Info().Msg("Session cleared")
	return nil
}

func (s *Store) Token(ctx context.Context) (string, error) {
	s.mu.RLock()
	cred := s.cred
	s.mu.RUnlock()

	if cred == nil {
		return "", domain.AuthError{Msg: "please log in"}
	}
	if cred.Expired(s.now()) {
		if err := s.Clear(ctx); err != nil {
			s.logger.Warn().Err(err).Msg("Failed to clear expired credential")
		}
		return "", domain.AuthError{Msg: "session expired, please log in again"}
	}
	return cred.Token, nil
}

func (s *Store) Role() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.cred == nil {
		return ""
	}
	return s.cred.Role
}

func (s *Store) UserID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.cred == nil {
		return ""
	}
	return s.cred.UserID
}

func (s *Store) Authenticated() bool {
	s.mu.RLock()
	cred := s.cred
	s.mu.RUnlock()
	return cred != nil && !cred.Expired(s.now())
}

// applyClaims copies exp, subject and role from a JWT. Opaque tokens are left as is.
func applyClaims(cred *models.Credential, token string) {
	parsed, _, err := jwt.NewParser().ParseUnverified(token, jwt.MapClaims{})
	if err != nil {
		return
	}
	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return
	}

	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		cred.ExpiresAt = exp.Time
	}
	if sub, err := claims.GetSubject(); err == nil && sub != "" {
		cred.UserID = sub
	}
	for _, key := range []string{"id", "userId", "_id"} {
		if cred.UserID != "" {
			break
		}
		if v, ok := claims[key].(string); ok {
			cred.UserID = v
		}
	}
	if cred.Role == "" {
		if role, ok := claims["role"].(string); ok {
			cred.Role = role
		}
	}
}

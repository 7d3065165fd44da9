package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"hostellite/internal/models"
)

// FileCredentialRepository keeps credentials for all profiles in one JSON
// document readable only by the owner.
type FileCredentialRepository struct {
	path string
	mu   sync.Mutex
}

func NewFileCredentialRepository(path string) *FileCredentialRepository {
	return &FileCredentialRepository{path: path}
}

func (r *FileCredentialRepository) Load(ctx context.Context, profile string) (*models.Credential, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	all, err := r.read()
	if err != nil {
		return nil, err
	}
	cred, ok := all[profile]
	if !ok {
		return nil, nil
	}
	return &cred, nil
}

func (r *FileCredentialRepository) Save(ctx context.Context, profile string, cred *models.Credential) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	all, err := r.read()
	if err != nil {
		return err
	}
	all[profile] = *cred
	return r.write(all)
}

func (r *FileCredentialRepository) Delete(ctx context.Context, profile string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	all, err := r.read()
	if err != nil {
		return err
	}
	if _, ok := all[profile]; !ok {
		return nil
	}
	delete(all, profile)
	return r.write(all)
}

func (r *FileCredentialRepository) read() (map[string]models.Credential, error) {
	all := make(map[string]models.Credential)
	data, err := os.ReadFile(r.path)
	if errors.Is(err, fs.ErrNotExist) {
		return all, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read credential file: %w", err)
	}
	if len(data) == 0 {
		return all, nil
	}
	if err := json.Unmarshal(data, &all); err != nil {
		return nil, fmt.Errorf("decode credential file: %w", err)
	}
	return all, nil
}

// write replaces the file atomically through a temp file in the same directory.
func (r *FileCredentialRepository) write(all map[string]models.Credential) error {
	dir := filepath.Dir(r.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create credential dir: %w", err)
	}
	data, err := json.MarshalIndent(all, "", "  ")
	if err != nil {
		return fmt.Errorf("encode credentials: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".session-*.json")
	if err != nil {
		return fmt.Errorf("create temp credential file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write credential file: %w", err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("chmod credential file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close credential file: %w", err)
	}
	if err := os.Rename(tmpName, r.path); err != nil {
		return fmt.Errorf("replace credential file: %w", err)
	}
	return nil
}

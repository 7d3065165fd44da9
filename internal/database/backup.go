package database

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"hostellite/internal/config"
	"hostellite/internal/logging"
	"hostellite/internal/models"

	"github.com/rs/zerolog"
)

const (
	backupPrefix     = "confirmations_"
	backupExt        = ".db"
	backupTimeLayout = "20060102_150405"
	defaultSchedule  = 24 * time.Hour
)

// BackupService takes periodic snapshots of the confirmation ledger.
type BackupService struct {
	db     *DB
	config config.BackupConfig
	logger *zerolog.Logger
	now    func() time.Time
}

func NewBackupService(db *DB, cfg config.BackupConfig, logger *zerolog.Logger) *BackupService {
	return &BackupService{
		db:     db,
		config: cfg,
		logger: logging.Component(logger, "backup"),
		now:    time.Now,
	}
}

func (s *BackupService) interval() time.Duration {
	if s.config.Schedule == "" {
		return defaultSchedule
	}
	d, err := time.ParseDuration(s.config.Schedule)
	if err != nil || d <= 0 {
		s.logger.Warn().Err(err).Str("schedule", s.config.Schedule).Msg("Invalid backup schedule, using 24h")
		return defaultSchedule
	}
	return d
}

// Start takes a snapshot immediately and then on every tick until ctx is done.
func (s *BackupService) Start(ctx context.Context) {
	if !s.config.Enabled {
		s.logger.Info().Msg("Backup service is disabled")
		return
	}

	interval := s.interval()
	s.logger.Info().Dur("interval", interval).Str("storage_path", s.config.StoragePath).Msg("Backup service started")

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		s.runCycle(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *BackupService) runCycle(ctx context.Context) {
	if _, err := s.PerformBackup(ctx); err != nil {
		s.logger.Error().Err(err).Msg("Ledger backup failed")
	}
	if _, err := s.CleanupOldBackups(); err != nil {
		s.logger.Error().Err(err).Msg("Backup cleanup failed")
	}
}

// PerformBackup writes a consistent copy of the ledger and returns its path.
func (s *BackupService) PerformBackup(ctx context.Context) (string, error) {
	if err := os.MkdirAll(s.config.StoragePath, 0o755); err != nil {
		return "", fmt.Errorf("create backup directory: %w", err)
	}

	path := filepath.Join(s.config.StoragePath, backupPrefix+s.now().UTC().Format(backupTimeLayout)+backupExt)

	if _, err := s.db.ExecContext(ctx, `VACUUM INTO ?`, path); err != nil {
		if s.db.Path() == memoryPath {
			return "", fmt.Errorf("vacuum into %s: %w", path, err)
		}
		s.logger.Warn().Err(err).Msg("VACUUM INTO failed, copying the database file")
		if err := s.copyFile(path); err != nil {
			return "", fmt.Errorf("copy ledger: %w", err)
		}
	}

	ev := s.logger.Info().Str("path", path)
	if counts, err := s.db.CountConfirmationTasks(ctx); err == nil {
		ev = ev.Int("open", counts[models.TaskPending]+counts[models.TaskRetry]).
			Int("escalated", counts[models.TaskEscalated])
	}
	ev.Msg("Ledger backed up")
	return path, nil
}

// copyFile is not atomic; a write during the copy can leave it inconsistent.
func (s *BackupService) copyFile(dst string) error {
	src, err := os.Open(s.db.Path())
	if err != nil {
		return err
	}
	defer src.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, src); err != nil {
		_ = out.Close()
		_ = os.Remove(dst)
		return err
	}
	return out.Close()
}

// Backup is a snapshot on disk, identified by the time in its file name.
type Backup struct {
	Path    string
	TakenAt time.Time
}

// ListBackups returns the snapshots this service wrote, newest first. Other
// files in the directory are ignored.
func (s *BackupService) ListBackups() ([]Backup, error) {
	entries, err := os.ReadDir(s.config.StoragePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read backup directory: %w", err)
	}

	var backups []Backup
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, backupPrefix) || !strings.HasSuffix(name, backupExt) {
			continue
		}
		stamp := strings.TrimSuffix(strings.TrimPrefix(name, backupPrefix), backupExt)
		takenAt, err := time.ParseInLocation(backupTimeLayout, stamp, time.UTC)
		if err != nil {
			continue
		}
		backups = append(backups, Backup{Path: filepath.Join(s.config.StoragePath, name), TakenAt: takenAt})
	}

	sort.Slice(backups, func(i, j int) bool { return backups[i].TakenAt.After(backups[j].TakenAt) })
	return backups, nil
}

// CleanupOldBackups removes snapshots older than the retention window. The
// newest snapshot is always kept, however old.
func (s *BackupService) CleanupOldBackups() (int, error) {
	if s.config.RetentionDays <= 0 {
		return 0, nil
	}

	backups, err := s.ListBackups()
	if err != nil {
		return 0, err
	}

	cutoff := s.now().UTC().AddDate(0, 0, -s.config.RetentionDays)
	removed := 0
	for i, b := range backups {
		if i == 0 || !b.TakenAt.Before(cutoff) {
			continue
		}
		if err := os.Remove(b.Path); err != nil {
			s.logger.Warn().Err(err).Str("path", b.Path).Msg("Failed to delete old backup")
			continue
		}
		removed++
	}

	if removed > 0 {
		s.logger.Info().Int("removed", removed).Int("retention_days", s.config.RetentionDays).Msg("Old backups removed")
	}
	return removed, nil
}

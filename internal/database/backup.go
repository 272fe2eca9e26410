package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"fieldbook/internal/config"

	"github.com/jonboulle/clockwork"
	"github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
)

const (
	snapshotPrefix = "fieldbook_"
	snapshotLayout = "20060102T150405"
)

// BackupService periodically snapshots the reservation database.
type BackupService struct {
	dbPath string
	config config.BackupConfig
	clock  clockwork.Clock
	logger *zerolog.Logger
}

func NewBackupService(dbPath string, cfg config.BackupConfig, clock clockwork.Clock, logger *zerolog.Logger) *BackupService {
	if cfg.Interval <= 0 {
		cfg.Interval = 24 * time.Hour
	}
	return &BackupService{
		dbPath: dbPath,
		config: cfg,
		clock:  clock,
		logger: logger,
	}
}

// Start takes a snapshot right away and then once per interval until ctx ends.
func (s *BackupService) Start(ctx context.Context) {
	if !s.config.Enabled {
		s.logger.Info().Msg("Backup service is disabled")
		return
	}

	s.logger.Info().Dur("interval", s.config.Interval).Str("storage", s.config.StoragePath).Msg("Backup service started")

	ticker := s.clock.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		if path, err := s.Snapshot(ctx); err != nil {
			s.logger.Error().Err(err).Msg("Backup failed")
		} else {
			s.logger.Info().Str("path", path).Msg("Backup completed")
		}
		if removed := s.Prune(); removed > 0 {
			s.logger.Info().Int("removed", removed).Msg("Old backups removed")
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
		}
	}
}

// Snapshot copies the live database page by page with the sqlite online
// backup API, so readers and writers are not blocked for the whole copy.
func (s *BackupService) Snapshot(ctx context.Context) (string, error) {
	if s.dbPath == "" || s.dbPath == ":memory:" {
		return "", fmt.Errorf("backup requires a file database, got %q", s.dbPath)
	}
	if err := os.MkdirAll(s.config.StoragePath, 0o755); err != nil {
		return "", fmt.Errorf("failed to create backup directory: %w", err)
	}

	target := filepath.Join(s.config.StoragePath, snapshotPrefix+s.clock.Now().UTC().Format(snapshotLayout)+".db")
	if _, err := os.Stat(target); err == nil {
		return "", fmt.Errorf("snapshot %s already exists", target)
	}

	if err := copyDatabase(ctx, dsn(s.dbPath), target); err != nil {
		_ = os.Remove(target)
		return "", err
	}
	if err := verifySnapshot(ctx, target); err != nil {
		_ = os.Remove(target)
		return "", err
	}
	return target, nil
}

func copyDatabase(ctx context.Context, srcDSN, target string) error {
	src, err := sql.Open("sqlite3", srcDSN)
	if err != nil {
		return fmt.Errorf("failed to open source database: %w", err)
	}
	defer src.Close()

	dst, err := sql.Open("sqlite3", target)
	if err != nil {
		return fmt.Errorf("failed to open backup file: %w", err)
	}
	defer dst.Close()

	srcConn, err := src.Conn(ctx)
	if err != nil {
		return err
	}
	defer srcConn.Close()

	dstConn, err := dst.Conn(ctx)
	if err != nil {
		return err
	}
	defer dstConn.Close()

	return dstConn.Raw(func(dstRaw any) error {
		return srcConn.Raw(func(srcRaw any) error {
			to, ok := dstRaw.(*sqlite3.SQLiteConn)
			from, ok2 := srcRaw.(*sqlite3.SQLiteConn)
			if !ok || !ok2 {
				return fmt.Errorf("unexpected sqlite driver connection %T", srcRaw)
			}

			b, err := to.Backup("main", from, "main")
			if err != nil {
				return fmt.Errorf("failed to start backup: %w", err)
			}
			for {
				done, err := b.Step(256)
				if err != nil {
					_ = b.Close()
					return fmt.Errorf("backup step: %w", err)
				}
				if done {
					break
				}
			}
			return b.Finish()
		})
	})
}

func verifySnapshot(ctx context.Context, path string) error {
	db, err := sql.Open("sqlite3", "file:"+path+"?mode=ro")
	if err != nil {
		return err
	}
	defer db.Close()

	var result string
	if err := db.QueryRowContext(ctx, "PRAGMA integrity_check").Scan(&result); err != nil {
		return fmt.Errorf("integrity check: %w", err)
	}
	if result != "ok" {
		return fmt.Errorf("snapshot is corrupt: %s", result)
	}
	return nil
}

// Snapshots lists backup files, oldest first, with the time encoded in the name.
func (s *BackupService) Snapshots() ([]Snapshot, error) {
	entries, err := os.ReadDir(s.config.StoragePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var out []Snapshot
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, snapshotPrefix) || filepath.Ext(name) != ".db" {
			continue
		}
		stamp := strings.TrimSuffix(strings.TrimPrefix(name, snapshotPrefix), ".db")
		taken, err := time.Parse(snapshotLayout, stamp)
		if err != nil {
			continue
		}
		out = append(out, Snapshot{Path: filepath.Join(s.config.StoragePath, name), TakenAt: taken})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TakenAt.Before(out[j].TakenAt) })
	return out, nil
}

type Snapshot struct {
	Path    string
	TakenAt time.Time
}

// Prune deletes snapshots older than RetentionDays. The newest one is always kept.
func (s *BackupService) Prune() int {
	if s.config.RetentionDays <= 0 {
		return 0
	}

	snapshots, err := s.Snapshots()
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to list backups")
		return 0
	}
	if len(snapshots) < 2 {
		return 0
	}

	cutoff := s.clock.Now().UTC().AddDate(0, 0, -s.config.RetentionDays)
	removed := 0
	for _, snap := range snapshots[:len(snapshots)-1] {
		if !snap.TakenAt.Before(cutoff) {
			break
		}
		if err := os.Remove(snap.Path); err != nil {
			s.logger.Warn().Err(err).Str("file", snap.Path).Msg("Failed to delete old backup")
			continue
		}
		removed++
	}
	return removed
}

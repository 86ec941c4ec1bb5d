package reliability

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/aristath/requestmirror/internal/database"
	"github.com/aristath/requestmirror/internal/events"
	"github.com/rs/zerolog"
)

const (
	backupPrefix     = "requestmirror-backup-"
	backupSuffix     = ".tar.gz"
	backupTimeLayout = "2006-01-02-150405"
	metadataFilename = "backup-metadata.json"
	metadataVersion  = "1"
	snapshotFileName = "mirror.db"
	stagingDirName   = "backup-staging"
	backupTimeout    = 10 * time.Minute
	minBackupsToKeep = 1
)

// BackupMetadata describes the contents of one archive
type BackupMetadata struct {
	Timestamp time.Time `json:"timestamp"`
	Version   string    `json:"version"`
	Database  string    `json:"database"`
	Filename  string    `json:"filename"`
	SizeBytes int64     `json:"size_bytes"`
	Checksum  string    `json:"checksum"`
}

// BackupInfo represents one archive in the store
type BackupInfo struct {
	Key       string    `json:"key"`
	Timestamp time.Time `json:"timestamp"`
	SizeBytes int64     `json:"size_bytes"`
}

// BackupService snapshots the database and ships it to an object store.
// The snapshot uses VACUUM INTO and never blocks the worker.
type BackupService struct {
	db        *database.DB
	store     ObjectStore
	dataDir   string
	retention int
	bus       *events.Bus
	now       func() time.Time
	log       zerolog.Logger
}

// NewBackupService creates a backup service. bus may be nil.
func NewBackupService(db *database.DB, store ObjectStore, dataDir string, retention int, bus *events.Bus, log zerolog.Logger) *BackupService {
	if retention < minBackupsToKeep {
		retention = minBackupsToKeep
	}
	return &BackupService{
		db:        db,
		store:     store,
		dataDir:   dataDir,
		retention: retention,
		bus:       bus,
		now:       time.Now,
		log:       log.With().Str("service", "backup").Logger(),
	}
}

// Name returns the job name for scheduling and logging.
func (s *BackupService) Name() string {
	return "backup"
}

// Run creates, uploads and rotates backups. Satisfies the cron job interface.
func (s *BackupService) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), backupTimeout)
	defer cancel()

	info, err := s.CreateAndUpload(ctx)
	if err != nil {
		if s.bus != nil {
			s.bus.EmitError("backup", err, nil)
		}
		return err
	}

	rotated, err := s.Rotate(ctx)
	if err != nil {
		// The new archive is safe; rotation retries next run
		s.log.Warn().Err(err).Msg("Backup rotation failed")
	}

	if s.bus != nil {
		s.bus.Emit("backup", &events.BackupCompletedData{
			Key:       info.Key,
			SizeBytes: info.SizeBytes,
			Rotated:   rotated,
		})
	}
	return nil
}

// CreateAndUpload snapshots the database, verifies the copy, archives it
// with a metadata file and uploads the archive.
func (s *BackupService) CreateAndUpload(ctx context.Context) (BackupInfo, error) {
	s.log.Info().Msg("Starting backup")
	startTime := time.Now()
	timestamp := s.now().UTC()

	stagingDir := filepath.Join(s.dataDir, stagingDirName)
	if err := os.MkdirAll(stagingDir, 0755); err != nil {
		return BackupInfo{}, fmt.Errorf("failed to create staging directory: %w", err)
	}
	defer os.RemoveAll(stagingDir) // Clean up on exit

	snapshotPath := filepath.Join(stagingDir, snapshotFileName)
	if err := s.db.VacuumInto(ctx, snapshotPath); err != nil {
		return BackupInfo{}, fmt.Errorf("failed to snapshot database: %w", err)
	}

	if err := verifySnapshot(snapshotPath); err != nil {
		return BackupInfo{}, err
	}

	snapInfo, err := os.Stat(snapshotPath)
	if err != nil {
		return BackupInfo{}, fmt.Errorf("failed to stat snapshot: %w", err)
	}
	checksum, err := calculateChecksum(snapshotPath)
	if err != nil {
		return BackupInfo{}, fmt.Errorf("failed to calculate checksum: %w", err)
	}

	metadata := BackupMetadata{
		Timestamp: timestamp,
		Version:   metadataVersion,
		Database:  s.db.Name(),
		Filename:  snapshotFileName,
		SizeBytes: snapInfo.Size(),
		Checksum:  checksum,
	}
	metadataPath := filepath.Join(stagingDir, metadataFilename)
	if err := writeMetadata(metadataPath, metadata); err != nil {
		return BackupInfo{}, fmt.Errorf("failed to write metadata: %w", err)
	}

	key := backupPrefix + timestamp.Format(backupTimeLayout) + backupSuffix
	archivePath := filepath.Join(stagingDir, key)
	if err := createArchive(archivePath, stagingDir, []string{snapshotFileName, metadataFilename}); err != nil {
		return BackupInfo{}, fmt.Errorf("failed to create archive: %w", err)
	}

	archiveInfo, err := os.Stat(archivePath)
	if err != nil {
		return BackupInfo{}, fmt.Errorf("failed to stat archive: %w", err)
	}

	archiveFile, err := os.Open(archivePath)
	if err != nil {
		return BackupInfo{}, fmt.Errorf("failed to open archive: %w", err)
	}
	defer archiveFile.Close()

	if err := s.store.Upload(ctx, key, archiveFile); err != nil {
		return BackupInfo{}, fmt.Errorf("failed to upload backup: %w", err)
	}

	s.log.Info().
		Dur("duration_ms", time.Since(startTime)).
		Str("archive", key).
		Int64("size_bytes", archiveInfo.Size()).
		Msg("Backup completed successfully")

	return BackupInfo{Key: key, Timestamp: timestamp, SizeBytes: archiveInfo.Size()}, nil
}

// ListBackups lists stored archives, newest first.
func (s *BackupService) ListBackups(ctx context.Context) ([]BackupInfo, error) {
	objects, err := s.store.List(ctx, backupPrefix)
	if err != nil {
		return nil, fmt.Errorf("failed to list backups: %w", err)
	}

	backups := make([]BackupInfo, 0, len(objects))
	for _, obj := range objects {
		if !strings.HasPrefix(obj.Key, backupPrefix) || !strings.HasSuffix(obj.Key, backupSuffix) {
			continue
		}

		stamp := strings.TrimSuffix(strings.TrimPrefix(obj.Key, backupPrefix), backupSuffix)
		timestamp, err := time.Parse(backupTimeLayout, stamp)
		if err != nil {
			s.log.Warn().Str("key", obj.Key).Msg("Failed to parse timestamp from backup key")
			continue
		}

		backups = append(backups, BackupInfo{Key: obj.Key, Timestamp: timestamp, SizeBytes: obj.SizeBytes})
	}

	sort.Slice(backups, func(i, j int) bool {
		return backups[i].Timestamp.After(backups[j].Timestamp)
	})
	return backups, nil
}

// Rotate deletes every archive beyond the newest retention count and returns
// how many were deleted.
func (s *BackupService) Rotate(ctx context.Context) (int, error) {
	backups, err := s.ListBackups(ctx)
	if err != nil {
		return 0, err
	}
	if len(backups) <= s.retention {
		return 0, nil
	}

	deleted := 0
	for _, backup := range backups[s.retention:] {
		if err := s.store.Delete(ctx, backup.Key); err != nil {
			s.log.Error().Err(err).Str("key", backup.Key).Msg("Failed to delete old backup")
			continue
		}
		s.log.Info().
			Str("key", backup.Key).
			Time("timestamp", backup.Timestamp).
			Msg("Deleted old backup")
		deleted++
	}

	s.log.Info().
		Int("deleted", deleted).
		Int("remaining", len(backups)-deleted).
		Msg("Backup rotation completed")
	return deleted, nil
}

// verifySnapshot runs an integrity check on the staged copy.
func verifySnapshot(path string) error {
	snap, err := sql.Open("sqlite", path)
	if err != nil {
		return fmt.Errorf("failed to open snapshot: %w", err)
	}
	defer snap.Close()

	var result string
	if err := snap.QueryRow("PRAGMA integrity_check").Scan(&result); err != nil {
		return fmt.Errorf("failed to check snapshot integrity: %w", err)
	}
	if result != "ok" {
		return fmt.Errorf("snapshot integrity check failed: %s", result)
	}
	return nil
}

// calculateChecksum calculates SHA256 checksum of a file
func calculateChecksum(filePath string) (string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return "", err
	}
	defer file.Close()

	hash := sha256.New()
	if _, err := io.Copy(hash, file); err != nil {
		return "", err
	}
	return fmt.Sprintf("sha256:%x", hash.Sum(nil)), nil
}

// writeMetadata writes backup metadata to a JSON file
func writeMetadata(path string, metadata BackupMetadata) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	return encoder.Encode(metadata)
}

// createArchive creates a tar.gz archive of the named files in sourceDir
func createArchive(archivePath, sourceDir string, filenames []string) (err error) {
	archiveFile, err := os.Create(archivePath)
	if err != nil {
		return fmt.Errorf("failed to create archive file: %w", err)
	}
	defer func() {
		if cerr := archiveFile.Close(); err == nil {
			err = cerr
		}
	}()

	gzipWriter := gzip.NewWriter(archiveFile)
	tarWriter := tar.NewWriter(gzipWriter)

	for _, name := range filenames {
		if err := addFileToArchive(tarWriter, filepath.Join(sourceDir, name), name); err != nil {
			return fmt.Errorf("failed to add %s to archive: %w", name, err)
		}
	}

	if err := tarWriter.Close(); err != nil {
		return err
	}
	return gzipWriter.Close()
}

// addFileToArchive adds a single file to a tar archive
func addFileToArchive(tarWriter *tar.Writer, filePath, nameInArchive string) error {
	file, err := os.Open(filePath)
	if err != nil {
		return err
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return err
	}

	header := &tar.Header{
		Name:    nameInArchive,
		Size:    info.Size(),
		Mode:    int64(info.Mode()),
		ModTime: info.ModTime(),
	}
	if err := tarWriter.WriteHeader(header); err != nil {
		return err
	}

	_, err = io.Copy(tarWriter, file)
	return err
}

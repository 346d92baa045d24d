package db

import (
	"context"
	"fmt"
	"time"

	"resource-downloader/logger"
	"resource-downloader/orchestrator"
	"resource-downloader/resource"

	_ "github.com/ncruces/go-sqlite3/embed"
	"github.com/ncruces/go-sqlite3/gormlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
)

// Store persists installed entries and version history in SQLite. It satisfies
// cache.Persistence and orchestrator.History.
type Store struct {
	DB *gorm.DB
}

var _ orchestrator.History = (*Store)(nil)

// Open opens (creating if needed) the database at dbPath and migrates the schema.
func Open(dbPath string) (*Store, error) {
	newLogger := gormlogger.New(
		logger.StdLog(),
		gormlogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	db, err := gorm.Open(gormlite.Open(dbPath), &gorm.Config{Logger: newLogger})
	if err != nil {
		return nil, fmt.Errorf("failed to connect database: %w", err)
	}
	if err := db.AutoMigrate(&InstalledResource{}, &VersionHistory{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database schema: %w", err)
	}
	return &Store{DB: db}, nil
}

// Close releases the underlying connection.
func (s *Store) Close() error {
	sqlDB, err := s.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *Store) ReadAll(ctx context.Context) ([]resource.InstalledEntry, error) {
	var rows []InstalledResource
	if err := s.DB.WithContext(ctx).Order("project_id").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]resource.InstalledEntry, len(rows))
	for i, r := range rows {
		out[i] = r.entry()
	}
	return out, nil
}

// WriteEntry replaces the row for entry.ProjectID in a single transaction.
func (s *Store) WriteEntry(ctx context.Context, entry resource.InstalledEntry) error {
	row := fromEntry(entry)
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "project_id"}},
			UpdateAll: true,
		}).Create(&row).Error
	})
}

func (s *Store) DeleteEntry(ctx context.Context, projectID string) error {
	return s.DB.WithContext(ctx).Delete(&InstalledResource{}, "project_id = ?", projectID).Error
}

// RecordReplaced appends a history row for a version an update replaced.
func (s *Store) RecordReplaced(ctx context.Context, e orchestrator.HistoryEntry) error {
	return s.DB.WithContext(ctx).Create(&VersionHistory{
		ProjectID:     e.ProjectID,
		VersionID:     e.VersionID,
		VersionNumber: e.VersionNumber,
		FileName:      e.FileName,
		ArchivePath:   e.ArchivePath,
	}).Error
}

// History returns projectID's replaced versions, newest first.
func (s *Store) History(ctx context.Context, projectID string) ([]VersionHistory, error) {
	var versions []VersionHistory
	err := s.DB.WithContext(ctx).
		Where("project_id = ?", projectID).
		Order("created_at desc, id desc").
		Find(&versions).Error
	return versions, err
}

// ForgetHistory removes a history row once its version was restored.
func (s *Store) ForgetHistory(ctx context.Context, id uint) error {
	return s.DB.WithContext(ctx).Delete(&VersionHistory{}, id).Error
}

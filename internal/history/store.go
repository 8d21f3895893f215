package history

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// ResumePoint records how far playback got for one media URI, so a session
// created later for the same media can offer to resume
type ResumePoint struct {
	ID         string    `gorm:"primaryKey"`
	MediaURI   string    `gorm:"not null;uniqueIndex"`
	Title      string    `gorm:"default:''"`
	PositionMs int64     `gorm:"not null"`
	DurationMs int64     `gorm:"not null"`
	WatchedAt  time.Time `gorm:"index;default:CURRENT_TIMESTAMP"`
	Completed  bool      `gorm:"default:false;index"`
}

func (ResumePoint) TableName() string {
	return "resume_points"
}

// completedThreshold: past this fraction of the duration a stop counts as
// finished and resume no longer applies
const completedThreshold = 0.95

// Store persists resume points in a sqlite database
type Store struct {
	db *gorm.DB
}

// Open creates the database file (and its directory) if needed and migrates
// the schema
func Open(path string) (*Store, error) {
	dbDir := filepath.Dir(path)
	if err := os.MkdirAll(dbDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	}
	db, err := gorm.Open(sqlite.Open(path), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// WAL mode for concurrent readers during playback writes
	if err := db.Exec("PRAGMA journal_mode=WAL").Error; err != nil {
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	if err := db.AutoMigrate(&ResumePoint{}); err != nil {
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}

	return &Store{db: db}, nil
}

// RecordProgress upserts the resume point for a media URI. Near-complete
// positions flip the record to completed instead, so a finished video starts
// over next time.
func (s *Store) RecordProgress(mediaURI, title string, positionMs, durationMs int64) error {
	if s.db == nil {
		return fmt.Errorf("database connection is nil")
	}
	if mediaURI == "" {
		return fmt.Errorf("media uri is empty")
	}

	completed := durationMs > 0 &&
		float64(positionMs) >= float64(durationMs)*completedThreshold

	var existing ResumePoint
	err := s.db.Where("media_uri = ?", mediaURI).First(&existing).Error
	switch {
	case err == nil:
		existing.Title = title
		existing.PositionMs = positionMs
		existing.DurationMs = durationMs
		existing.WatchedAt = time.Now()
		existing.Completed = completed
		return s.db.Save(&existing).Error

	case errors.Is(err, gorm.ErrRecordNotFound):
		record := ResumePoint{
			ID:         uuid.NewString(),
			MediaURI:   mediaURI,
			Title:      title,
			PositionMs: positionMs,
			DurationMs: durationMs,
			WatchedAt:  time.Now(),
			Completed:  completed,
		}
		return s.db.Create(&record).Error

	default:
		return fmt.Errorf("failed to look up resume point: %w", err)
	}
}

// Lookup returns the resume point for a media URI, or nil when there is
// nothing to resume (unknown media, or watched to completion)
func (s *Store) Lookup(mediaURI string) (*ResumePoint, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database connection is nil")
	}

	var record ResumePoint
	err := s.db.Where("media_uri = ? AND completed = false", mediaURI).First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch resume point: %w", err)
	}
	return &record, nil
}

// MarkCompleted flags a media URI as watched to the end
func (s *Store) MarkCompleted(mediaURI string) error {
	if s.db == nil {
		return fmt.Errorf("database connection is nil")
	}
	return s.db.Model(&ResumePoint{}).
		Where("media_uri = ?", mediaURI).
		Updates(map[string]any{"completed": true, "watched_at": time.Now()}).Error
}

// Delete removes the resume point for a media URI
func (s *Store) Delete(mediaURI string) error {
	if s.db == nil {
		return fmt.Errorf("database connection is nil")
	}
	return s.db.Where("media_uri = ?", mediaURI).Delete(&ResumePoint{}).Error
}

// Recent lists the most recently watched media, newest first
func (s *Store) Recent(limit int) ([]ResumePoint, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database connection is nil")
	}

	query := s.db.Order("watched_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	var records []ResumePoint
	if err := query.Find(&records).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch recent media: %w", err)
	}
	return records, nil
}

// Cleanup drops incomplete resume points not touched in 90 days
func (s *Store) Cleanup() error {
	if s.db == nil {
		return fmt.Errorf("database connection is nil")
	}
	cutoff := time.Now().AddDate(0, 0, -90)
	return s.db.Where("completed = ? AND watched_at < ?", false, cutoff).Delete(&ResumePoint{}).Error
}

// Close releases the underlying connection
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"go-damage-assessor/internal/repository"
	"go-damage-assessor/pkg/models"
)

// ResultRecord is the row layout of persisted results
type ResultRecord struct {
	JobID             string `gorm:"primaryKey;size:64"`
	BeforeImageID     string `gorm:"size:128"`
	AfterImageID      string `gorm:"size:128"`
	ChangedPercentage float64
	SeverityScore     float64
	Payload           datatypes.JSON `gorm:"not null"`
	CreatedAt         time.Time      `gorm:"index"`
	SavedAt           time.Time      `gorm:"autoUpdateTime"`
}

// TableName keeps the table name stable across struct renames
func (ResultRecord) TableName() string {
	return "analysis_results"
}

// SQLiteResultStore persists results through gorm
type SQLiteResultStore struct {
	db *gorm.DB
}

// OpenSQLiteResultStore opens the database file and migrates the schema
func OpenSQLiteResultStore(path string) (*SQLiteResultStore, error) {
	if !strings.HasPrefix(path, "file:") && path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create result store directory: %w", err)
		}
	}
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite result store: %w", err)
	}
	return NewSQLiteResultStore(db)
}

// NewSQLiteResultStore wraps an existing handle and migrates the schema
func NewSQLiteResultStore(db *gorm.DB) (*SQLiteResultStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlite result store requires database handle")
	}
	if err := db.AutoMigrate(&ResultRecord{}); err != nil {
		return nil, fmt.Errorf("migrate result store: %w", err)
	}
	return &SQLiteResultStore{db: db}, nil
}

func (s *SQLiteResultStore) Save(ctx context.Context, jobID string, result *models.AnalysisResult) error {
	if result == nil {
		return fmt.Errorf("save result %s: nil result", jobID)
	}
	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	createdAt := result.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	record := &ResultRecord{
		JobID:             jobID,
		BeforeImageID:     result.BeforeImageID,
		AfterImageID:      result.AfterImageID,
		ChangedPercentage: result.ChangedPercentage,
		SeverityScore:     result.SeverityScore,
		Payload:           datatypes.JSON(payload),
		CreatedAt:         createdAt,
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(record).Error
}

func (s *SQLiteResultStore) Load(ctx context.Context, jobID string) (*models.AnalysisResult, error) {
	var record ResultRecord
	err := s.db.WithContext(ctx).Where("job_id = ?", jobID).First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, repository.ErrResultNotFound
	}
	if err != nil {
		return nil, err
	}
	return decodeResult(record.Payload)
}

func (s *SQLiteResultStore) Latest(ctx context.Context) (*models.AnalysisResult, error) {
	var record ResultRecord
	err := s.db.WithContext(ctx).Order("created_at DESC").Order("saved_at DESC").First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, repository.ErrResultNotFound
	}
	if err != nil {
		return nil, err
	}
	return decodeResult(record.Payload)
}

func (s *SQLiteResultStore) Delete(ctx context.Context, jobID string) error {
	res := s.db.WithContext(ctx).Where("job_id = ?", jobID).Delete(&ResultRecord{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return repository.ErrResultNotFound
	}
	return nil
}

func (s *SQLiteResultStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

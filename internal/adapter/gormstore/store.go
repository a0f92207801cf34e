// Package gormstore is the embedded SQLite alternative to the PostgreSQL
// adapters, selected with AUDIT_DRIVER=sqlite.
package gormstore

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type regionModel struct {
	ID        string    `gorm:"primaryKey;size:50"`
	Name      string    `gorm:"size:100;not null;index"`
	CreatedAt time.Time
}

func (regionModel) TableName() string { return "areas" }

type crawlRunModel struct {
	ID              string `gorm:"primaryKey;size:36"`
	Platform        string `gorm:"size:50;not null;index:idx_crawl_platform_time,priority:1"`
	Status          string `gorm:"size:50;not null;index"`
	TotalProducts   int
	NewProducts     int
	UpdatedProducts int
	ErrorCount      int
	Duration        int
	ErrorMessage    string
	StartedAt       time.Time `gorm:"not null;index:idx_crawl_platform_time,priority:2"`
	CompletedAt     *time.Time
}

func (crawlRunModel) TableName() string { return "crawling_logs" }

type searchLogModel struct {
	ID          int64          `gorm:"primaryKey;autoIncrement"`
	Query       string         `gorm:"size:500;not null;index"`
	Filters     datatypes.JSON `gorm:"type:json"`
	ResultCount int
	SearchTime  float64
	UserIP      string `gorm:"size:45"`
	UserAgent   string
	CreatedAt   time.Time `gorm:"index"`
}

func (searchLogModel) TableName() string { return "search_logs" }

// Store owns the SQLite connection shared by the repositories below.
type Store struct {
	db *gorm.DB
}

// Open creates the database file if needed and migrates the tables.
func Open(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if err := db.AutoMigrate(&regionModel{}, &crawlRunModel{}, &searchLogModel{}); err != nil {
		return nil, fmt.Errorf("auto migrate models: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("get sql DB: %w", err)
	}
	return sqlDB.Close()
}

func (s *Store) Regions() *RegionRepo { return &RegionRepo{db: s.db} }

func (s *Store) CrawlRuns() *CrawlRunRepo { return &CrawlRunRepo{db: s.db} }

func (s *Store) SearchLogs() *SearchLogRepo { return &SearchLogRepo{db: s.db} }

package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// RateLimitRecord is the relational row of a record.
type RateLimitRecord struct {
	ID            uint      `gorm:"primaryKey"`
	UserID        string    `gorm:"size:128;not null;uniqueIndex:idx_rate_limit_user_endpoint"`
	Endpoint      string    `gorm:"size:128;not null;uniqueIndex:idx_rate_limit_user_endpoint"`
	WindowStart   time.Time `gorm:"not null"`
	RequestCount  int       `gorm:"not null;default:0"`
	IsFlagged     bool      `gorm:"not null;default:false;index"`
	LastRequestAt time.Time `gorm:"not null"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// TableName specifies the table name.
func (RateLimitRecord) TableName() string {
	return "rate_limit_records"
}

// GormStore keeps records in a relational table.
type GormStore struct {
	db *gorm.DB
}

// OpenGorm opens a database for driver "postgres" or "sqlite".
func OpenGorm(driver, dsn string) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch driver {
	case "postgres":
		dialector = postgres.Open(dsn)
	case "sqlite":
		dialector = sqlite.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Error),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("database ping failed: %w", err)
	}
	return db, nil
}

// NewGormStore migrates the rate_limit_records table and returns a store.
func NewGormStore(db *gorm.DB) (*GormStore, error) {
	if err := db.AutoMigrate(&RateLimitRecord{}); err != nil {
		return nil, fmt.Errorf("migrate rate limit records: %w", err)
	}
	return &GormStore{db: db}, nil
}

// FindByKey implements Store.
func (s *GormStore) FindByKey(ctx context.Context, userID, endpoint string) (*Record, error) {
	var row RateLimitRecord
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND endpoint = ?", userID, endpoint).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find rate limit record: %w", err)
	}

	return &Record{
		UserID:        row.UserID,
		Endpoint:      row.Endpoint,
		WindowStart:   row.WindowStart,
		RequestCount:  row.RequestCount,
		IsFlagged:     row.IsFlagged,
		LastRequestAt: row.LastRequestAt,
	}, nil
}

// Upsert implements Store.
func (s *GormStore) Upsert(ctx context.Context, rec *Record) error {
	row := RateLimitRecord{
		UserID:        rec.UserID,
		Endpoint:      rec.Endpoint,
		WindowStart:   rec.WindowStart,
		RequestCount:  rec.RequestCount,
		IsFlagged:     rec.IsFlagged,
		LastRequestAt: rec.LastRequestAt,
	}

	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}, {Name: "endpoint"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"window_start", "request_count", "is_flagged", "last_request_at", "updated_at",
		}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("upsert rate limit record: %w", err)
	}
	return nil
}

// Flagged lists flagged records for review.
func (s *GormStore) Flagged(ctx context.Context) ([]Record, error) {
	var rows []RateLimitRecord
	if err := s.db.WithContext(ctx).Where("is_flagged = ?", true).Order("last_request_at desc").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list flagged records: %w", err)
	}

	out := make([]Record, 0, len(rows))
	for _, row := range rows {
		out = append(out, Record{
			UserID:        row.UserID,
			Endpoint:      row.Endpoint,
			WindowStart:   row.WindowStart,
			RequestCount:  row.RequestCount,
			IsFlagged:     row.IsFlagged,
			LastRequestAt: row.LastRequestAt,
		})
	}
	return out, nil
}

package settings

import (
	"context"
	"fmt"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// Record is one persisted key-value row.
type Record struct {
	Key       string `gorm:"primaryKey;size:64"`
	Value     string `gorm:"type:text;not null"`
	UpdatedAt time.Time
}

func (Record) TableName() string {
	return "skim_settings"
}

// DBStore is the Postgres-backed Store. Writes are per-key upserts with no
// surrounding transaction, so a concurrent seeding pass and a surface write
// interleave at key granularity exactly like the Store contract allows.
type DBStore struct {
	gdb *gorm.DB
}

// OpenDBStore connects to Postgres and ensures the settings table exists.
func OpenDBStore(ctx context.Context, databaseURL string) (*DBStore, error) {
	dsn := strings.TrimSpace(databaseURL)
	if dsn == "" {
		return nil, fmt.Errorf("database URL is required")
	}

	gdb, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := gdb.WithContext(ctx).AutoMigrate(&Record{}); err != nil {
		return nil, fmt.Errorf("migrate settings table: %w", err)
	}

	return &DBStore{gdb: gdb}, nil
}

func (s *DBStore) Get(ctx context.Context, keys ...string) (Values, error) {
	if s == nil || s.gdb == nil {
		return nil, fmt.Errorf("settings store is not initialized")
	}
	if len(keys) == 0 {
		return Values{}, nil
	}

	var rows []Record
	if err := s.gdb.WithContext(ctx).Where("key IN ?", keys).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("query settings: %w", err)
	}

	out := make(Values, len(rows))
	for _, row := range rows {
		out[row.Key] = row.Value
	}
	return out, nil
}

func (s *DBStore) Set(ctx context.Context, values Values) error {
	if s == nil || s.gdb == nil {
		return fmt.Errorf("settings store is not initialized")
	}

	for key, value := range values {
		row := Record{Key: key, Value: value, UpdatedAt: time.Now().UTC()}
		err := s.gdb.WithContext(ctx).Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key"}},
			DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
		}).Create(&row).Error
		if err != nil {
			return fmt.Errorf("upsert setting %s: %w", key, err)
		}
	}
	return nil
}

// Close releases the underlying connection pool.
func (s *DBStore) Close() error {
	if s == nil || s.gdb == nil {
		return nil
	}
	sqlDB, err := s.gdb.DB()
	if err != nil {
		return fmt.Errorf("resolve sql db: %w", err)
	}
	return sqlDB.Close()
}

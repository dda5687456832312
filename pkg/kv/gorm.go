package kv

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
)

// EntryModel is one row of the kv_entries table.
type EntryModel struct {
	Key       string `gorm:"primaryKey;size:255"`
	Value     string `gorm:"type:text;not null"`
	UpdatedAt time.Time
}

// TableName pins the table name independent of the struct name.
func (EntryModel) TableName() string { return "kv_entries" }

// GormStore keeps entries in a Postgres table through GORM.
type GormStore struct {
	db     *gorm.DB
	prefix string
}

// NewGormStore opens the DB and migrates the kv_entries table.
func NewGormStore(dsn, prefix string) (*GormStore, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, errors.New("kv: database url is required")
	}
	gormLog := gormlogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormlogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: gormLog})
	if err != nil {
		return nil, fmt.Errorf("kv: open db: %w", err)
	}
	return NewGormStoreWithDB(db, prefix)
}

// NewGormStoreWithDB migrates and wraps an already opened DB.
func NewGormStoreWithDB(db *gorm.DB, prefix string) (*GormStore, error) {
	if err := db.AutoMigrate(&EntryModel{}); err != nil {
		return nil, fmt.Errorf("kv: auto migrate: %w", err)
	}
	return &GormStore{db: db, prefix: strings.TrimSpace(prefix)}, nil
}

func (s *GormStore) Get(ctx context.Context, key string) (string, bool, error) {
	var row EntryModel
	err := s.db.WithContext(ctx).Where("key = ?", prefixed(s.prefix, key)).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return row.Value, true, nil
}

func (s *GormStore) Set(ctx context.Context, key, value string) error {
	row := EntryModel{Key: prefixed(s.prefix, key), Value: value, UpdatedAt: time.Now().UTC()}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&row).Error
}

func (s *GormStore) Remove(ctx context.Context, key string) error {
	return s.db.WithContext(ctx).Where("key = ?", prefixed(s.prefix, key)).Delete(&EntryModel{}).Error
}

// Close closes the underlying connection pool.
func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

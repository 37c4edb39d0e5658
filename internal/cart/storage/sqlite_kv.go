package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/angelmondragon/packfinderz-cart/pkg/db"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type kvEntry struct {
	Key       string    `gorm:"column:entry_key;primaryKey"`
	Value     string    `gorm:"column:value;not null"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (kvEntry) TableName() string { return "kv_entries" }

// SQLiteKeyValueStore is the durable KeyValueStore: one kv_entries table in a local SQLite
// file. With a positive quota, the summed size of all values may not exceed quotaBytes.
type SQLiteKeyValueStore struct {
	client     *db.Client
	quotaBytes int
}

// NewSQLiteKeyValueStore migrates the kv_entries table and returns the store.
func NewSQLiteKeyValueStore(client *db.Client, quotaBytes int) (*SQLiteKeyValueStore, error) {
	if client == nil {
		return nil, errors.New("db client required")
	}
	if err := client.DB().AutoMigrate(&kvEntry{}); err != nil {
		return nil, fmt.Errorf("migrate kv_entries: %w", err)
	}
	return &SQLiteKeyValueStore{client: client, quotaBytes: quotaBytes}, nil
}

func (s *SQLiteKeyValueStore) GetItem(key string) (string, bool, error) {
	var entry kvEntry
	err := s.client.DB().Where("entry_key = ?", key).Take(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return entry.Value, true, nil
}

func (s *SQLiteKeyValueStore) SetItem(key, value string) error {
	return s.client.WithTx(context.Background(), func(tx *gorm.DB) error {
		if s.quotaBytes > 0 {
			var used int64
			if err := tx.Model(&kvEntry{}).
				Where("entry_key <> ?", key).
				Select("COALESCE(SUM(LENGTH(CAST(value AS BLOB))), 0)").
				Row().Scan(&used); err != nil {
				return err
			}
			if used+int64(len(value)) > int64(s.quotaBytes) {
				return fmt.Errorf("%w: %d of %d bytes", ErrQuotaExceeded, used+int64(len(value)), s.quotaBytes)
			}
		}
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "entry_key"}},
			DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
		}).Create(&kvEntry{Key: key, Value: value}).Error
	})
}

func (s *SQLiteKeyValueStore) RemoveItem(key string) error {
	return s.client.DB().Where("entry_key = ?", key).Delete(&kvEntry{}).Error
}

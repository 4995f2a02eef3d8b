// Package store owns the relay's sqlite database: open/migrate plus the
// keyed-state helpers used for preferences and stream records. Writes are
// last-writer-wins per key, which is all the callers rely on.
package store

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/pagelens/relay/internal/store/models"
)

// Setting keys. Parameter overrides and model preferences are composed
// with the key builders below.
const (
	KeyLastError  = "lastError"
	KeyLastStream = "lastStreamId"
)

// ParamsKey addresses user parameter overrides. Empty model means the
// platform-level entry for the provider.
func ParamsKey(provider, model string) string {
	if model == "" {
		return fmt.Sprintf("params:%s", provider)
	}
	return fmt.Sprintf("params:%s:%s", provider, model)
}

// TabModelKey addresses the per-tab model preference.
func TabModelKey(tabID int64, provider string) string {
	return fmt.Sprintf("tabModel:%d:%s", tabID, provider)
}

// SidebarModelKey addresses the sidebar-wide model preference.
func SidebarModelKey(provider string) string {
	return fmt.Sprintf("sidebarModel:%s", provider)
}

// Store wraps the gorm handle.
type Store struct {
	db *gorm.DB
}

// Open initializes the SQLite database and runs migrations.
// The gorm logger stays at Warn: SQL traces would echo credential values.
func Open(dbPath string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, err
	}

	if err := db.AutoMigrate(
		&models.Credential{},
		&models.Setting{},
		&models.StreamRecord{},
		&models.TurnLog{},
	); err != nil {
		return nil, err
	}

	return &Store{db: db}, nil
}

// DB exposes the underlying handle for packages that manage their own
// tables (credentials, turn logs).
func (s *Store) DB() *gorm.DB {
	return s.db
}

// GetSetting reads a raw setting value. The second return reports
// whether the key exists.
func (s *Store) GetSetting(key string) (string, bool, error) {
	var setting models.Setting
	err := s.db.Where("key = ?", key).First(&setting).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return setting.Value, true, nil
}

// PutSetting writes a setting, replacing any previous value.
func (s *Store) PutSetting(key, value string) error {
	return s.db.Save(&models.Setting{Key: key, Value: value}).Error
}

// DeleteSetting removes a setting. Missing keys are not an error.
func (s *Store) DeleteSetting(key string) error {
	return s.db.Delete(&models.Setting{}, "key = ?", key).Error
}

// GetJSON reads a setting and unmarshals it into v.
func (s *Store) GetJSON(key string, v interface{}) (bool, error) {
	raw, ok, err := s.GetSetting(key)
	if err != nil || !ok {
		return false, err
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return false, fmt.Errorf("decoding setting %s: %w", key, err)
	}
	return true, nil
}

// PutJSON marshals v and writes it under key.
func (s *Store) PutJSON(key string, v interface{}) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding setting %s: %w", key, err)
	}
	return s.PutSetting(key, string(raw))
}

// PutStreamRecord upserts a stream record and points the last-stream key
// at it.
func (s *Store) PutStreamRecord(rec *models.StreamRecord) error {
	if err := s.db.Save(rec).Error; err != nil {
		return err
	}
	return s.PutSetting(KeyLastStream, rec.StreamID)
}

// GetStreamRecord fetches one stream record. Returns nil when absent.
func (s *Store) GetStreamRecord(streamID string) (*models.StreamRecord, error) {
	var rec models.StreamRecord
	err := s.db.Where("stream_id = ?", streamID).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// LastStreamRecord fetches the most recently written stream record, or
// nil when none exists yet.
func (s *Store) LastStreamRecord() (*models.StreamRecord, error) {
	id, ok, err := s.GetSetting(KeyLastStream)
	if err != nil || !ok {
		return nil, err
	}
	return s.GetStreamRecord(id)
}

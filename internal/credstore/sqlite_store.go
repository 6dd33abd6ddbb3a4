package credstore

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// CredentialRecord is one persisted key/value entry.
type CredentialRecord struct {
	Key  string `gorm:"primaryKey;column:key"`
	Data []byte `gorm:"column:data"`
}

func (CredentialRecord) TableName() string {
	return "credential_records"
}

type SQLiteStore struct {
	db *gorm.DB
}

func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}

	if err := db.AutoMigrate(&CredentialRecord{}); err != nil {
		return nil, fmt.Errorf("failed to migrate credential table: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func (st *SQLiteStore) Read(ctx context.Context, key string) ([]byte, error) {
	var rec CredentialRecord
	result := st.db.WithContext(ctx).First(&rec, "key = ?", key)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, result.Error
	}
	return rec.Data, nil
}

func (st *SQLiteStore) Write(ctx context.Context, key string, data []byte) error {
	rec := CredentialRecord{Key: key, Data: data}
	return st.db.WithContext(ctx).Save(&rec).Error
}

func (st *SQLiteStore) Delete(ctx context.Context, key string) error {
	return st.db.WithContext(ctx).Delete(&CredentialRecord{}, "key = ?", key).Error
}

func (st *SQLiteStore) WipeAll(ctx context.Context) error {
	return st.db.WithContext(ctx).
		Session(&gorm.Session{AllowGlobalUpdate: true}).
		Delete(&CredentialRecord{}).Error
}

func (st *SQLiteStore) Close() error {
	sqlDB, err := st.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

package storage

import (
	"errors"
	"fmt"
	"strings"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// Entry is the row backing one key of a SQL database.
type Entry struct {
	Key   []byte `gorm:"column:entry_key;primaryKey"`
	Value []byte `gorm:"column:entry_value;not null"`
}

// TableName pins the table used for state entries.
func (Entry) TableName() string { return "state_entries" }

// SQLDB stores key-value pairs in a relational database through gorm.
type SQLDB struct {
	db *gorm.DB
}

// OpenSQL opens the SQL backend for driver ("sqlite" or "postgres") and
// migrates the entry table.
func OpenSQL(driver, dsn string) (*SQLDB, error) {
	var dialector gorm.Dialector
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case BackendSQLite:
		if dsn == "" {
			dsn = "file::memory:?cache=shared"
		}
		dialector = sqlite.Open(dsn)
	case BackendPostgres:
		if dsn == "" {
			return nil, fmt.Errorf("storage: postgres dsn required")
		}
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("storage: unknown sql driver %q", driver)
	}
	db, err := gorm.Open(dialector, &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("storage: open %s: %w", driver, err)
	}
	return NewSQLDB(db)
}

// NewSQLDB wraps an existing gorm handle.
func NewSQLDB(db *gorm.DB) (*SQLDB, error) {
	if db == nil {
		return nil, fmt.Errorf("storage: nil gorm handle")
	}
	if err := db.AutoMigrate(&Entry{}); err != nil {
		return nil, fmt.Errorf("storage: migrate: %w", err)
	}
	return &SQLDB{db: db}, nil
}

func (s *SQLDB) Put(key []byte, value []byte) error {
	entry := Entry{Key: append([]byte(nil), key...), Value: append([]byte(nil), value...)}
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "entry_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"entry_value"}),
	}).Create(&entry).Error
}

func (s *SQLDB) Get(key []byte) ([]byte, error) {
	var entry Entry
	err := s.db.Where("entry_key = ?", key).Take(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return entry.Value, nil
}

func (s *SQLDB) Delete(key []byte) error {
	return s.db.Where("entry_key = ?", key).Delete(&Entry{}).Error
}

// Close releases the underlying connection pool.
func (s *SQLDB) Close() {
	if sqlDB, err := s.db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

// Package journal records swap and acquisition outcomes in SQLite so the
// history command can show what the daemon did.
package journal

import (
	"fmt"
	"os"
	"path/filepath"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	defaultDBName = "journal.db"
	defaultDBDir  = ".config/multiboxer"
)

// DB is the journal database.
type DB struct {
	*gorm.DB
}

// DefaultPath returns ~/.config/multiboxer/journal.db, creating the
// directory.
func DefaultPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	dir := filepath.Join(homeDir, defaultDBDir)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create journal directory: %w", err)
	}
	return filepath.Join(dir, defaultDBName), nil
}

// Open connects to the journal at path (DefaultPath when empty) and
// migrates the schema.
func Open(path string) (*DB, error) {
	if path == "" {
		var err error
		path, err = DefaultPath()
		if err != nil {
			return nil, err
		}
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}
	out := &DB{db}
	if err := out.AutoMigrate(&SwapRecord{}, &AcquisitionRecord{}); err != nil {
		_ = out.Close()
		return nil, fmt.Errorf("failed to initialize journal schema: %w", err)
	}
	return out, nil
}

// Close closes the underlying connection.
func (db *DB) Close() error {
	sqlDB, err := db.DB.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	return sqlDB.Close()
}

package datastore

import (
	"fmt"
	"path/filepath"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tsanev/camguard-go/internal/conf"
	"github.com/tsanev/camguard-go/internal/errors"
)

// SQLiteStore implements Interface for SQLite.
type SQLiteStore struct {
	DataStore
	Settings *conf.Settings
}

// Open sets up the SQLite database connection and migrates the schema.
func (store *SQLiteStore) Open() error {
	dir, fileName := filepath.Split(store.Settings.Output.SQLite.Path)
	basePath := conf.GetBasePath(dir)
	absoluteFilePath := filepath.Join(basePath, fileName)

	db, err := gorm.Open(sqlite.Open(absoluteFilePath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return errors.New(fmt.Errorf("failed to open SQLite database: %w", err)).
			Category(errors.CategoryDatabase).
			Component("datastore").
			Context("path", absoluteFilePath).
			Build()
	}

	if err := db.AutoMigrate(&Event{}); err != nil {
		return errors.New(fmt.Errorf("failed to migrate event schema: %w", err)).
			Category(errors.CategoryDatabase).
			Component("datastore").
			Context("path", absoluteFilePath).
			Build()
	}

	store.DB = db
	return nil
}

// Close releases the underlying connection pool.
func (store *SQLiteStore) Close() error {
	if store.DB == nil {
		return nil
	}
	sqlDB, err := store.DB.DB()
	if err != nil {
		return fmt.Errorf("getting database handle: %w", err)
	}

	// SQLite checkpoints on close; give it a moment but do not hang.
	done := make(chan error, 1)
	go func() { done <- sqlDB.Close() }()
	select {
	case err := <-done:
		return err
	case <-time.After(5 * time.Second):
		return errors.Newf("database close timed out").
			Category(errors.CategoryTimeout).
			Component("datastore").
			Build()
	}
}

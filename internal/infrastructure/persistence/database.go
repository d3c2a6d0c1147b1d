package persistence

import (
	"fmt"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/dropsync/backend/internal/infrastructure/persistence/models"
)

// Database holds the state database connection and provides methods for
// database operations. The state database is a single local SQLite file
// shared by both orchestrators across sequential runs.
type Database struct {
	DB *gorm.DB
}

// NewDatabase opens (or creates) the SQLite state database at path
func NewDatabase(path string) (*Database, error) {
	return NewDatabaseWithLogger(path, gormlogger.Default.LogMode(gormlogger.Silent))
}

// NewDatabaseWithLogger opens the state database with a custom GORM logger
func NewDatabaseWithLogger(path string, logger gormlogger.Interface) (*Database, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open state database: %w", err)
	}

	// Single-writer process; one connection avoids SQLITE_BUSY on
	// interleaved reads and writes.
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)

	return &Database{DB: db}, nil
}

// Migrate creates or updates the state schema
func (d *Database) Migrate() error {
	if err := d.DB.AutoMigrate(models.AllModels()...); err != nil {
		return fmt.Errorf("failed to migrate state schema: %w", err)
	}
	return nil
}

// Close closes the database connection
func (d *Database) Close() error {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	return sqlDB.Close()
}

// Ping checks if the database connection is alive
func (d *Database) Ping() error {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	return sqlDB.Ping()
}

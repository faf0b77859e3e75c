// Package gormstore is the Postgres-backed Store implementation: GORM over
// lib/pq, prepared statements, skipped default transactions (each
// operation below opens its own transaction only where it needs one).
package gormstore

import (
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"wa-gateway/internal/config"
	"wa-gateway/internal/models"
)

// Connection wraps the GORM handle and the underlying *sql.DB for pool
// tuning and health checks.
type Connection struct {
	DB    *gorm.DB
	SQLDB *sql.DB
}

// NewConnection opens a pooled connection to DATABASE_URL and configures
// the pool per cfg.Database.
func NewConnection(cfg *config.Config) (*Connection, error) {
	gormConfig := &gorm.Config{
		SkipDefaultTransaction: true,
		PrepareStmt:            true,
	}
	if cfg.IsProduction() {
		gormConfig.Logger = gormlogger.Default.LogMode(gormlogger.Error)
	} else {
		gormConfig.Logger = gormlogger.Default.LogMode(gormlogger.Warn)
	}

	db, err := gorm.Open(postgres.Open(cfg.Database.URL), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("gormstore: connecting to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("gormstore: getting sql.DB: %w", err)
	}

	sqlDB.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(cfg.Database.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.Database.ConnMaxIdleTime)

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("gormstore: pinging database: %w", err)
	}

	return &Connection{DB: db, SQLDB: sqlDB}, nil
}

// Migrate runs GORM's auto-migration for every model the gateway owns.
func (c *Connection) Migrate() error {
	return c.DB.AutoMigrate(
		&models.Organization{},
		&models.Session{},
		&models.Message{},
		&models.Group{},
		&models.WebhookLog{},
		&models.UsageRecord{},
	)
}

func (c *Connection) Close() error {
	if c.SQLDB != nil {
		return c.SQLDB.Close()
	}
	return nil
}

func (c *Connection) HealthCheck() error {
	if c.SQLDB == nil {
		return fmt.Errorf("gormstore: connection is nil")
	}
	return c.SQLDB.Ping()
}

// WithTransaction runs fn inside a GORM transaction, rolling back on panic
// or error.
func (c *Connection) WithTransaction(fn func(tx *gorm.DB) error) error {
	tx := c.DB.Begin()
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
		}
	}()
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit().Error
}

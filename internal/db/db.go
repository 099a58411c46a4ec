package db

import (
	"fmt"
	"strings"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/ateliermtl/studio-billing/internal/config"
	"github.com/ateliermtl/studio-billing/internal/models"
)

// isPostgresDSN recognizes both URL-style and key=value postgres DSNs;
// anything else is treated as a sqlite path.
func isPostgresDSN(dsn string) bool {
	lower := strings.ToLower(strings.TrimSpace(dsn))
	return strings.HasPrefix(lower, "postgres://") ||
		strings.HasPrefix(lower, "postgresql://") ||
		strings.Contains(lower, "host=")
}

// Connect opens the database selected by the DSN shape.
func Connect(dsn string) (*gorm.DB, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, fmt.Errorf("DATABASE_DSN is empty, check the environment configuration")
	}
	logLevel := logger.Silent
	if config.ParseBool("DB_DEBUG", false) {
		logLevel = logger.Info
	}
	cfg := &gorm.Config{Logger: logger.Default.LogMode(logLevel)}
	if isPostgresDSN(dsn) {
		return gorm.Open(postgres.Open(dsn), cfg)
	}
	return gorm.Open(sqlite.Open(dsn), cfg)
}

// Migrate creates/updates the schema for every engine model.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.Quote{},
		&models.QuoteSection{},
		&models.QuoteItem{},
		&models.PriceVariant{},
		&models.Discount{},
		&models.EndNote{},
		&models.Invoice{},
		&models.InvoiceItem{},
		&models.BillableExpense{},
		&models.Payment{},
	)
}

// ConnectAndMigrate is the usual bootstrap entry point.
func ConnectAndMigrate(dsn string) (*gorm.DB, error) {
	conn, err := Connect(dsn)
	if err != nil {
		return nil, err
	}
	if err := Migrate(conn); err != nil {
		return nil, err
	}
	return conn, nil
}

package database

import (
	"strings"

	"cxema-backend/internal/domain"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// Open opens a GORM DB. Postgres DSNs (postgres:// or postgresql://) use the
// postgres driver with PreferSimpleProtocol (pooler-safe); anything else is
// treated as a SQLite path (file or :memory:), the single-tenant default.
func Open(dsn string) (*gorm.DB, error) {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		return gorm.Open(postgres.New(postgres.Config{
			DSN:                  dsn,
			PreferSimpleProtocol: true,
		}), &gorm.Config{})
	}
	return gorm.Open(sqlite.Open(dsn), &gorm.Config{})
}

// AutoMigrate runs migrations for all domain models.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&domain.Project{},
		&domain.ExpenseGroup{},
		&domain.ExpenseItem{},
		&domain.BillingAdjustment{},
		&domain.PaymentPlan{},
		&domain.PaymentFact{},
		&domain.AppSettings{},
		&domain.SheetLink{},
		&domain.GoogleCredential{},
	)
}

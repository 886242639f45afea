package infra

import (
	"fmt"

	"dukapos/internal/model"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewDatabase establishes a GORM connection backed by pgx, runs AutoMigrate to
// create / update all tables, then applies the idempotent SQL patches that GORM
// cannot express (partial indexes, CHECK constraints).
func NewDatabase(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)

	if err := RunMigrations(db); err != nil {
		return nil, err
	}

	return db, nil
}

// RunMigrations applies AutoMigrate plus the schema patches. Exposed so the
// seeder can reuse it against a fresh database.
func RunMigrations(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&model.Branch{},
		&model.Product{},
		&model.Inventory{},
		&model.User{},
		&model.Sale{},
		&model.SaleItem{},
		&model.RestockLog{},
		&model.RestockItem{},
		&model.HqRestockLog{},
		&model.HqRestockItem{},
		&model.PaymentAttempt{},
		&model.PaymentAttemptItem{},
	); err != nil {
		return fmt.Errorf("AutoMigrate: %w", err)
	}
	return applySchemaPatches(db)
}

// applySchemaPatches runs idempotent DDL that AutoMigrate cannot express.
// Each statement uses IF NOT EXISTS / existence guards so re-running on an
// already-patched DB is a no-op.
func applySchemaPatches(db *gorm.DB) error {
	patches := []struct{ descr, sql string }{
		// Exactly one HQ branch. The original system treated this as a
		// convention; the partial unique index makes it a hard invariant.
		{"single HQ partial unique index", `
DO $$ BEGIN
  IF NOT EXISTS (SELECT 1 FROM pg_indexes WHERE indexname = 'uni_branches_single_hq') THEN
    CREATE UNIQUE INDEX uni_branches_single_hq ON branches ((true)) WHERE is_hq;
  END IF;
END $$`},
		// Inventory quantity must never go negative. Every write path already
		// guards its decrements; the CHECK is the backstop.
		{"inventory non-negative quantity check", `
DO $$ BEGIN
  IF NOT EXISTS (SELECT 1 FROM pg_constraint WHERE conname = 'chk_inventory_quantity_nonneg') THEN
    ALTER TABLE inventory ADD CONSTRAINT chk_inventory_quantity_nonneg CHECK (quantity >= 0);
  END IF;
END $$`},
		// Partial index for the payment reconciler's scan of stuck attempts.
		{"pending payment attempts partial index", `
DO $$ BEGIN
  IF NOT EXISTS (SELECT 1 FROM pg_indexes WHERE indexname = 'idx_payment_attempts_pending') THEN
    CREATE INDEX idx_payment_attempts_pending
        ON payment_attempts (created_at)
        WHERE status IN ('initiated', 'pending');
  END IF;
END $$`},
	}

	for _, p := range patches {
		if err := db.Exec(p.sql).Error; err != nil {
			return fmt.Errorf("patch %q: %w", p.descr, err)
		}
	}
	return nil
}

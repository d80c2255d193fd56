package database

import (
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
	"github.com/pressly/goose/v3"

	"github.com/vellko/affiliate-admin/internal/config"
)

// Migrate applies pending schema migrations. goose works over database/sql,
// so this opens its own short-lived lib/pq connection next to the pgx pool.
func Migrate(cfg config.DatabaseConfig) error {
	db, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return fmt.Errorf("open migration connection: %w", err)
	}
	defer db.Close()

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}
	if err := goose.Up(db, cfg.MigrationPath); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

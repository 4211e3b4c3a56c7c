// Package migration applies embedded SQL migrations at startup.
package migration

import (
	"embed"
	"errors"
	"fmt"
	"net/url"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/mysql"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"go.uber.org/zap"

	"github.com/equipqr/equipqr/internal/config"
)

//go:embed sql/*.sql
var migrationsFS embed.FS

// Run applies pending migrations. Sqlite deployments (local dev and
// tests) rely on AutoMigrate instead.
func Run(cfg config.Config, log *zap.Logger) error {
	if cfg.DBType == "sqlite" {
		log.Warn("sqlite configured, skipping sql migrations")
		return nil
	}

	source, err := iofs.New(migrationsFS, "sql")
	if err != nil {
		return fmt.Errorf("load migrations: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", source, databaseURL(cfg))
	if err != nil {
		return fmt.Errorf("open migration target: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			log.Info("database schema up to date")
			return nil
		}
		return fmt.Errorf("apply migrations: %w", err)
	}

	version, _, _ := m.Version()
	log.Info("database migrated", zap.Uint("version", version))
	return nil
}

func databaseURL(cfg config.Config) string {
	switch cfg.DBType {
	case "mysql":
		return fmt.Sprintf("mysql://%s:%s@tcp(%s:%s)/%s",
			url.QueryEscape(cfg.DBUser), url.QueryEscape(cfg.DBPassword),
			cfg.DBHost, cfg.DBPort, cfg.DBName)
	default:
		return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
			url.QueryEscape(cfg.DBUser), url.QueryEscape(cfg.DBPassword),
			cfg.DBHost, cfg.DBPort, cfg.DBName, cfg.DBSSLMode)
	}
}

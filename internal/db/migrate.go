package db

import (
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	migrate "github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"gorm.io/gorm"

	"github.com/diewo77/toiture-backoffice/internal/config"
	"github.com/diewo77/toiture-backoffice/internal/models"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// requiredTables must exist once migrations ran.
var requiredTables = []string{"accounts", "profiles", "user_roles", "leads", "devis", "chantiers", "configurations"}

// Migrate brings the schema up to date. Postgres with MIGRATIONS=1 runs the
// embedded SQL migrations; anything else falls back to AutoMigrate. With
// REALTIME_MODE=postgres the change-notification trigger is (re)installed
// on the configured channel afterwards, whichever path ran.
func Migrate(db *gorm.DB, cfg *config.Config, log *slog.Logger) error {
	if log == nil {
		log = slog.Default()
	}
	if cfg.Database.Driver == config.DriverPostgres && cfg.App.Migrations {
		if err := RunMigrations(cfg.Database.URL()); err != nil {
			return fmt.Errorf("sql migrations failed: %w", err)
		}
		log.Info("sql migrations applied")
	} else {
		for _, m := range models.All() {
			if err := db.AutoMigrate(m); err != nil {
				return fmt.Errorf("automigrate %T: %w", m, err)
			}
		}
		log.Info("automigrate done", "models", len(models.All()))
	}

	for _, table := range requiredTables {
		if !db.Migrator().HasTable(table) {
			return errors.New("missing table after migration: " + table)
		}
	}

	if cfg.Database.Driver == config.DriverPostgres && cfg.Realtime.Mode == config.RealtimePostgres {
		if err := InstallNotifyTrigger(db, cfg.Realtime.Channel); err != nil {
			return fmt.Errorf("install notify trigger: %w", err)
		}
		log.Info("notify trigger installed", "channel", cfg.Realtime.Channel)
	}
	return nil
}

// notifyMigration installs notify_table_change and its triggers.
const notifyMigration = "migrations/000002_notify_table_change.up.sql"

// defaultChannel is the channel written in notifyMigration.
const defaultChannel = "table_changes"

// notifyTriggerSQL returns the trigger migration publishing on channel.
func notifyTriggerSQL(channel string) (string, error) {
	raw, err := migrationFS.ReadFile(notifyMigration)
	if err != nil {
		return "", err
	}
	if channel == "" {
		channel = defaultChannel
	}
	quoted := "'" + strings.ReplaceAll(channel, "'", "''") + "'"
	return strings.ReplaceAll(string(raw), "'"+defaultChannel+"'", quoted), nil
}

// InstallNotifyTrigger makes every write to the watched tables NOTIFY
// channel. It is idempotent.
func InstallNotifyTrigger(db *gorm.DB, channel string) error {
	sql, err := notifyTriggerSQL(channel)
	if err != nil {
		return err
	}
	return db.Exec(sql).Error
}

// RunMigrations applies the embedded SQL migrations to the database at url.
func RunMigrations(url string) error {
	src, err := iofs.New(migrationFS, "migrations")
	if err != nil {
		return err
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, url)
	if err != nil {
		return err
	}
	defer m.Close()
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}

package db

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"

	"github.com/golang-migrate/migrate/v4"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

//go:embed migrations/postgres/*.sql
var postgresMigrations embed.FS

// Migrate brings the schema up to date. PostgreSQL runs the versioned SQL
// migrations; other dialects fall back to gorm AutoMigrate. Both paths run
// under the migration lock.
func Migrate(ctx context.Context, gdb *gorm.DB, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	locker := NewMigrationLocker(gdb)
	return locker.WithLock(ctx, func() error {
		if gdb.Dialector.Name() == "postgres" {
			return migratePostgres(gdb, logger)
		}
		logger.Info("auto-migrating schema", "dialect", gdb.Dialector.Name())
		if err := gdb.WithContext(ctx).AutoMigrate(Models()...); err != nil {
			return fmt.Errorf("auto-migrate: %w", err)
		}
		return nil
	})
}

func migratePostgres(gdb *gorm.DB, logger *slog.Logger) error {
	m, err := newPostgresMigrate(gdb)
	if err != nil {
		return err
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", err)
	}
	version, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return fmt.Errorf("read migration version: %w", err)
	}
	logger.Info("schema migrated", "version", version, "dirty", dirty)
	return nil
}

// newPostgresMigrate opens a private connection pool for the migrator, since
// closing the migrator closes the pool it was given.
func newPostgresMigrate(gdb *gorm.DB) (*migrate.Migrate, error) {
	d, ok := gdb.Dialector.(*postgres.Dialector)
	if !ok || d.DSN == "" {
		return nil, errors.New("postgres migrations need a DSN-based dialector")
	}
	sqlDB, err := sql.Open("pgx", d.DSN)
	if err != nil {
		return nil, fmt.Errorf("open migration connection: %w", err)
	}
	src, err := iofs.New(postgresMigrations, "migrations/postgres")
	if err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("load migrations: %w", err)
	}
	driver, err := migratepg.WithInstance(sqlDB, &migratepg.Config{MigrationsTable: "schema_migrations"})
	if err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("migration driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "postgres", driver)
	if err != nil {
		return nil, fmt.Errorf("create migrator: %w", err)
	}
	return m, nil
}

// MigrationVersion reports the applied migration version. Non-postgres
// dialects have no versioned history and report 0.
func MigrationVersion(gdb *gorm.DB) (uint, bool, error) {
	if gdb.Dialector.Name() != "postgres" {
		return 0, false, nil
	}
	m, err := newPostgresMigrate(gdb)
	if err != nil {
		return 0, false, err
	}
	defer m.Close()
	version, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	return version, dirty, err
}

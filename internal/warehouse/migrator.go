package warehouse

import (
	"context"
	"database/sql"
	"embed"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	migratedb "github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/mysql"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/tigerroll/soundseasons/internal/adapter/database"
	"github.com/tigerroll/soundseasons/internal/support/logger"
)

//go:embed migrations/sqlite/*.sql migrations/postgres/*.sql migrations/mysql/*.sql
var migrationFS embed.FS

// migrationsTable tracks applied schema versions.
const migrationsTable = "schema_migrations"

// Migrator applies the warehouse schema for the connection's dialect.
type Migrator struct {
	conn database.DBConnection
}

// NewMigrator creates a Migrator for the given connection.
func NewMigrator(conn database.DBConnection) *Migrator {
	return &Migrator{conn: conn}
}

// getDatabaseDriver retrieves a migrate/v4 driver for the connection's dialect.
func (m *Migrator) getDatabaseDriver(sqlDB *sql.DB) (migratedb.Driver, error) {
	switch m.conn.Type() {
	case "postgres":
		return postgres.WithInstance(sqlDB, &postgres.Config{MigrationsTable: migrationsTable})
	case "mysql":
		return mysql.WithInstance(sqlDB, &mysql.Config{MigrationsTable: migrationsTable})
	case "sqlite":
		return sqlite.WithInstance(sqlDB, &sqlite.Config{MigrationsTable: migrationsTable})
	default:
		return nil, fmt.Errorf("unsupported database type for migration: %s", m.conn.Type())
	}
}

func (m *Migrator) getMigrateInstance() (*migrate.Migrate, error) {
	sqlDB, err := m.conn.GetSQLDB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	path := "migrations/" + m.conn.Type()
	sourceDriver, err := iofs.New(migrationFS, path)
	if err != nil {
		return nil, fmt.Errorf("failed to create iofs source driver for path %s: %w", path, err)
	}

	dbDriver, err := m.getDatabaseDriver(sqlDB)
	if err != nil {
		return nil, fmt.Errorf("failed to create database driver: %w", err)
	}

	mInstance, err := migrate.NewWithInstance("iofs", sourceDriver, m.conn.Type(), dbDriver)
	if err != nil {
		return nil, fmt.Errorf("failed to create migrate instance: %w", err)
	}
	return mInstance, nil
}

// Up applies all pending migrations.
func (m *Migrator) Up(ctx context.Context) error {
	logger.Infof("Applying warehouse migrations (dialect: %s).", m.conn.Type())

	mInstance, err := m.getMigrateInstance()
	if err != nil {
		return err
	}
	defer mInstance.Close()

	if err := mInstance.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("migration failed (dialect: %s): %w", m.conn.Type(), err)
	}
	logger.Infof("Warehouse migrations up to date.")
	return nil
}

// Down rolls back the most recent migration.
func (m *Migrator) Down(ctx context.Context) error {
	mInstance, err := m.getMigrateInstance()
	if err != nil {
		return err
	}
	defer mInstance.Close()

	if err := mInstance.Steps(-1); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("rollback failed (dialect: %s): %w", m.conn.Type(), err)
	}
	return nil
}

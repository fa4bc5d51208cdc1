// Package database defines the abstractions for warehouse database connections.
package database

import (
	"database/sql"

	"gorm.io/gorm"

	dbconfig "github.com/tigerroll/soundseasons/internal/adapter/database/config"
)

// DBConnection represents an abstraction of a database connection.
type DBConnection interface {
	// GORM returns the underlying *gorm.DB handle.
	GORM() *gorm.DB
	// GetSQLDB returns the underlying *sql.DB connection.
	GetSQLDB() (*sql.DB, error)
	// Type returns the database type (e.g., "sqlite", "postgres").
	Type() string
	// Name returns the logical connection name from configuration.
	Name() string
	// Config returns the database configuration associated with this connection.
	Config() dbconfig.DatabaseConfig
	// Close closes the connection.
	Close() error
}

// DBProvider is responsible for providing database connections based on configuration.
type DBProvider interface {
	// Type returns the database type this provider handles.
	Type() string
	// GetConnection retrieves a database connection with the specified name.
	GetConnection(name string) (DBConnection, error)
	// CloseAll closes all connections managed by this provider.
	CloseAll() error
}

// DBProviderGroup is an Fx tag used to group all DBProvider implementations.
const DBProviderGroup = `group:"db_providers"`

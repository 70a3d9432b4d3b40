package dbmeta

import (
	"context"
	"database/sql"
	"fmt"
)

// DatabaseHandler defines the database-specific half of schema introspection.
// Each backend implements it with its own system catalog queries; the
// database-agnostic logic in NewRelation drives the interface.
type DatabaseHandler interface {
	// LoadColumns loads column metadata for a table in definition order.
	LoadColumns(ctx context.Context, db *sql.DB, tableName string) ([]Column, map[string]int, error)

	// PrimaryKey returns the primary key column names in key order, or an
	// empty slice if the table has no primary key.
	PrimaryKey(ctx context.Context, db *sql.DB, tableName string) ([]string, error)

	// LoadForeignKeys loads outgoing foreign key constraints and marks the
	// constrained columns with their reference index.
	LoadForeignKeys(ctx context.Context, db *sql.DB, tableName string,
		columnIndex map[string]int, columns []Column) ([]Reference, []Column, error)

	// QuoteIdent quotes an identifier for safe interpolation into SQL.
	QuoteIdent(ident string) string

	// Placeholder returns the parameter placeholder for 1-indexed position.
	Placeholder(pos int) string
}

// NewDatabaseHandler returns the handler for the given backend.
func NewDatabaseHandler(dbType DatabaseType) (DatabaseHandler, error) {
	switch dbType {
	case PostgreSQL:
		return &postgresHandler{}, nil
	case MySQL:
		return &mysqlHandler{}, nil
	case SQLite:
		return &sqliteHandler{}, nil
	default:
		return nil, fmt.Errorf("unsupported database type: %v", dbType)
	}
}

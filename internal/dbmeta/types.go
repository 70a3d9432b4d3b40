// Package dbmeta provides connection management, schema introspection, and
// generic row mutation for the database backends dbdash can serve: PostgreSQL,
// MySQL, and SQLite.
package dbmeta

import (
	"database/sql"
)

type DatabaseType int

const (
	SQLite DatabaseType = iota
	PostgreSQL
	MySQL
)

func (t DatabaseType) String() string {
	switch t {
	case SQLite:
		return "sqlite"
	case PostgreSQL:
		return "postgres"
	case MySQL:
		return "mysql"
	default:
		return "unknown"
	}
}

type databaseFeature struct {
	embedded              bool
	returning             bool
	positionalPlaceholder bool
}

var databaseFeatures = map[DatabaseType]databaseFeature{
	SQLite: {
		embedded:              true,
		returning:             true,
		positionalPlaceholder: false,
	},
	PostgreSQL: {
		embedded:              false,
		returning:             true,
		positionalPlaceholder: true,
	},
	MySQL: {
		embedded:              false,
		returning:             false,
		positionalPlaceholder: false,
	},
}

// Column describes one column of a relation.
type Column struct {
	Name       string
	Type       string
	Nullable   bool
	HasDefault bool
	Reference  int // index into Relation.References, -1 if not a foreign key column
}

// Reference describes a foreign key constraint.
type Reference struct {
	Table   string            // referenced table
	Columns map[string]string // local column name -> referenced column name
}

// Relation is a table loaded with its schema metadata. It is the unit the
// dashboard renders and mutates: columns in definition order, the primary
// key, and outgoing foreign keys.
type Relation struct {
	DB   *sql.DB
	Type DatabaseType

	Name        string
	Columns     []Column
	ColumnIndex map[string]int // column name -> index into Columns
	Key         []string       // primary key column names, in key order
	References  []Reference

	handler DatabaseHandler
}

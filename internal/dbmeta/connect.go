package dbmeta

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/user"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// ConnConfig describes one database connection. Database is either a
// server-side database name (postgres, mysql) or a file path (sqlite).
type ConnConfig struct {
	Type     DatabaseType
	Database string
	Host     string
	Port     string
	User     string
	Password string
}

// DetectType guesses the database type from the database name. File-like
// names select SQLite; everything else defaults to PostgreSQL.
func DetectType(database string) DatabaseType {
	if strings.HasSuffix(database, ".sqlite") || strings.HasSuffix(database, ".sqlite3") || strings.HasSuffix(database, ".db") {
		return SQLite
	}
	return PostgreSQL
}

// DSN builds the driver-specific connection string.
func (c ConnConfig) DSN() (string, error) {
	switch c.Type {
	case SQLite:
		if _, err := os.Stat(c.Database); os.IsNotExist(err) {
			return "", fmt.Errorf("sqlite file does not exist: %s", c.Database)
		}
		return c.Database, nil

	case PostgreSQL:
		connStr := fmt.Sprintf("dbname=%s", c.Database)
		if c.Host != "" {
			connStr += fmt.Sprintf(" host=%s", c.Host)
		}
		if c.Port != "" {
			connStr += fmt.Sprintf(" port=%s", c.Port)
		}
		if c.User != "" {
			connStr += fmt.Sprintf(" user=%s", c.User)
		} else if currentUser, err := user.Current(); err == nil {
			connStr += fmt.Sprintf(" user=%s", currentUser.Username)
		}
		if c.Password != "" {
			connStr += fmt.Sprintf(" password=%s", c.Password)
		}
		connStr += " sslmode=disable"
		return connStr, nil

	case MySQL:
		connStr := c.User
		if connStr == "" {
			if currentUser, err := user.Current(); err == nil {
				connStr = currentUser.Username
			}
		}
		if c.Password != "" {
			connStr += ":" + c.Password
		}
		connStr += "@"
		switch {
		case c.Host != "" && c.Port != "":
			connStr += fmt.Sprintf("tcp(%s:%s)", c.Host, c.Port)
		case c.Host != "":
			connStr += fmt.Sprintf("tcp(%s:3306)", c.Host)
		default:
			connStr += "tcp(localhost:3306)"
		}
		connStr += "/" + c.Database + "?parseTime=true"
		return connStr, nil

	default:
		return "", fmt.Errorf("unsupported database type")
	}
}

func (c ConnConfig) driverName() (string, error) {
	switch c.Type {
	case SQLite:
		return "sqlite3", nil
	case PostgreSQL:
		return "postgres", nil
	case MySQL:
		return "mysql", nil
	default:
		return "", fmt.Errorf("unsupported database type")
	}
}

// Connect opens and pings a pooled connection. The pool is shared by all
// request handlers; database/sql hands out and reclaims the underlying
// connections per statement.
func Connect(ctx context.Context, c ConnConfig) (*sql.DB, error) {
	dsn, err := c.DSN()
	if err != nil {
		return nil, err
	}
	driver, err := c.driverName()
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return db, nil
}

// ListTables returns the user table names visible in the connected database.
// database is the schema name for MySQL and ignored elsewhere.
func ListTables(ctx context.Context, db *sql.DB, dbType DatabaseType, database string) ([]string, error) {
	var (
		query string
		args  []any
	)
	switch dbType {
	case PostgreSQL:
		query = `SELECT table_name FROM information_schema.tables
			WHERE table_schema = 'public' AND table_type = 'BASE TABLE'
			ORDER BY table_name`
	case MySQL:
		query = `SELECT table_name FROM information_schema.tables
			WHERE table_schema = ? AND table_type = 'BASE TABLE'
			ORDER BY table_name`
		args = append(args, database)
	case SQLite:
		query = `SELECT name FROM sqlite_master
			WHERE type = 'table' AND name NOT LIKE 'sqlite_%'
			ORDER BY name`
	default:
		return nil, fmt.Errorf("unsupported database type")
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		tables = append(tables, name)
	}
	return tables, rows.Err()
}

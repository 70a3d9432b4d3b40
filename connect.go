package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"

	"dbdash/internal/dbmeta"
)

// connection is an open database along with what it was opened as.
type connection struct {
	DB   *sql.DB
	Type dbmeta.DatabaseType
	Name string
}

func parseDatabaseType(name string) (dbmeta.DatabaseType, error) {
	switch strings.ToLower(name) {
	case "sqlite", "sqlite3":
		return dbmeta.SQLite, nil
	case "postgres", "postgresql":
		return dbmeta.PostgreSQL, nil
	case "mysql", "mariadb":
		return dbmeta.MySQL, nil
	default:
		return 0, fmt.Errorf("unknown database type %q", name)
	}
}

// resolveConnection opens the database named by the configuration: a named
// preset from the config file, an SQLite file path, or a server database
// found by trying PostgreSQL then MySQL on their default ports.
func resolveConnection(ctx context.Context, cfg *Config) (*connection, error) {
	if cfg.Database == "" {
		return nil, fmt.Errorf("must specify a database name or file path")
	}

	if preset, ok := cfg.GetPreset(cfg.Database); ok {
		return connectPreset(ctx, cfg, preset)
	}

	if dbmeta.DetectType(cfg.Database) == dbmeta.SQLite {
		db, err := dbmeta.Connect(ctx, dbmeta.ConnConfig{
			Type:     dbmeta.SQLite,
			Database: cfg.Database,
		})
		if err != nil {
			return nil, err
		}
		return &connection{DB: db, Type: dbmeta.SQLite, Name: cfg.Database}, nil
	}

	return tryFallbackConnections(ctx, cfg)
}

func connectPreset(ctx context.Context, cfg *Config, preset DatabasePreset) (*connection, error) {
	dbType, err := parseDatabaseType(preset.Type)
	if err != nil {
		return nil, err
	}

	conn := dbmeta.ConnConfig{
		Type:     dbType,
		Database: preset.Database,
		Host:     preset.Host,
		Port:     preset.Port,
		User:     preset.User,
		Password: preset.Password,
	}
	// Flags beat the preset.
	if host != "" {
		conn.Host = host
	}
	if port != "" {
		conn.Port = port
	}
	if username != "" {
		conn.User = username
	}
	if password != "" {
		conn.Password = password
	}

	db, err := dbmeta.Connect(ctx, conn)
	if err != nil {
		return nil, err
	}
	return &connection{DB: db, Type: dbType, Name: conn.Database}, nil
}

func tryFallbackConnections(ctx context.Context, cfg *Config) (*connection, error) {
	var lastErr error

	// Try PostgreSQL first
	pgConn := dbmeta.ConnConfig{
		Type:     dbmeta.PostgreSQL,
		Database: cfg.Database,
		Host:     "localhost",
		Port:     "5432",
		User:     os.Getenv("USER"),
	}
	overlayConn(&pgConn, cfg)
	if db, err := dbmeta.Connect(ctx, pgConn); err == nil {
		return &connection{DB: db, Type: dbmeta.PostgreSQL, Name: cfg.Database}, nil
	} else {
		lastErr = err
	}

	// Try MySQL as fallback
	mysqlConn := dbmeta.ConnConfig{
		Type:     dbmeta.MySQL,
		Database: cfg.Database,
		Host:     "localhost",
		Port:     "3306",
		User:     "root",
	}
	overlayConn(&mysqlConn, cfg)
	if db, err := dbmeta.Connect(ctx, mysqlConn); err == nil {
		return &connection{DB: db, Type: dbmeta.MySQL, Name: cfg.Database}, nil
	} else {
		lastErr = err
	}

	return nil, fmt.Errorf("failed to connect to both PostgreSQL and MySQL: %w", lastErr)
}

func overlayConn(conn *dbmeta.ConnConfig, cfg *Config) {
	if cfg.Host != "" {
		conn.Host = cfg.Host
	}
	if cfg.Port != "" {
		conn.Port = cfg.Port
	}
	if cfg.User != "" {
		conn.User = cfg.User
	}
	if cfg.Password != "" {
		conn.Password = cfg.Password
	}
}

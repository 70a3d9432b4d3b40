// Package web serves the database dashboard UI and its JSON API.
package web

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"html/template"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"dbdash/internal/dbmeta"
)

//go:embed templates/*.html
var templatesFS embed.FS

//go:embed static/*
var staticFS embed.FS

// Config holds the dashboard server configuration.
type Config struct {
	Addr string
	// MaxRows caps the rows returned by table views and ad-hoc queries.
	MaxRows int
	// AddressPattern is the LIKE pattern for the payment sheet report.
	AddressPattern string
	// ReportError forwards handler panics and execution errors to an
	// external error reporter. Nil disables forwarding.
	ReportError func(error)
}

// Server is the dashboard HTTP server bound to one database.
type Server struct {
	db     *sql.DB
	dbType dbmeta.DatabaseType
	dbName string
	cfg    Config
	log    *zap.Logger
	tmpl   *template.Template
}

// NewServer builds a dashboard server. Templates are parsed eagerly so a
// broken template fails at startup, not on first request.
func NewServer(db *sql.DB, dbType dbmeta.DatabaseType, dbName string, cfg Config, log *zap.Logger) (*Server, error) {
	if cfg.MaxRows <= 0 {
		cfg.MaxRows = 500
	}
	tmpl, err := template.New("").Funcs(templateFuncs).ParseFS(templatesFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	return &Server{
		db:     db,
		dbType: dbType,
		dbName: dbName,
		cfg:    cfg,
		log:    log,
		tmpl:   tmpl,
	}, nil
}

var templateFuncs = template.FuncMap{
	"add": func(a, b int) int { return a + b },
	"fmtCell": func(v any) string {
		if v == nil {
			return ""
		}
		return fmt.Sprintf("%v", v)
	},
}

// Handler returns the routed handler wrapped in the middleware chain.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/view", s.handleView)
	mux.HandleFunc("/reports/", s.handleReport)
	mux.HandleFunc("/sql", s.handleSQL)
	mux.HandleFunc("/sql/execute", s.handleExecuteSQL)

	mux.HandleFunc("/records/add", s.handleAddRecord)
	mux.HandleFunc("/records/edit", s.handleEditRecord)
	mux.HandleFunc("/records/delete", s.handleDeleteRecord)

	mux.HandleFunc("/api/tables/info", s.handleTablesInfo)
	mux.HandleFunc("/api/tables/", s.handleTableSchema)

	mux.HandleFunc("/static/", s.handleStatic)

	return s.logRequests(s.recoverPanics(corsHeaders(securityHeaders(mux))))
}

// Run warms the schema cache, then serves until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	if err := s.warmUp(ctx); err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("dashboard listening",
			zap.String("addr", s.cfg.Addr),
			zap.String("database", s.dbName),
			zap.Stringer("type", s.dbType))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutCtx)
	case err := <-errCh:
		return err
	}
}

// warmUp introspects every table concurrently so the first page load does
// not pay the metadata cost, and so bad credentials or a missing schema
// surface at startup.
func (s *Server) warmUp(ctx context.Context) error {
	tables, err := dbmeta.ListTables(ctx, s.db, s.dbType, s.dbName)
	if err != nil {
		return fmt.Errorf("list tables: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for _, table := range tables {
		table := table
		g.Go(func() error {
			rel, err := dbmeta.NewRelation(gctx, s.db, s.dbType, table)
			if err != nil {
				return fmt.Errorf("introspect %s: %w", table, err)
			}
			s.log.Debug("table ready",
				zap.String("table", table),
				zap.Int("columns", len(rel.Columns)),
				zap.Bool("editable", rel.Editable()))
			return nil
		})
	}
	return g.Wait()
}

func (s *Server) tables(ctx context.Context) ([]string, error) {
	return dbmeta.ListTables(ctx, s.db, s.dbType, s.dbName)
}

func (s *Server) relation(ctx context.Context, table string) (*dbmeta.Relation, error) {
	return dbmeta.NewRelation(ctx, s.db, s.dbType, table)
}

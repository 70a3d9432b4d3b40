package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"dbdash/internal/web"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "dbdash [dbname]",
	Short: "dbdash is a web dashboard for relational databases",
	Long: `dbdash serves a browser UI over a PostgreSQL, MySQL, or SQLite database:
table browsing and editing, prebuilt billing reports, a guarded SQL console,
and a JSON schema API.

Examples:
  dbdash billing
  dbdash ./billing.db --listen :8080
  dbdash billing -h db.internal -U app -W secret`,
	Args:          cobra.MaximumNArgs(1),
	SilenceUsage:  true,
	RunE:          runServe,
}

var browseCmd = &cobra.Command{
	Use:   "browse [dbname] [table]",
	Short: "Browse a database in the terminal",
	Args:  cobra.MaximumNArgs(2),
	RunE:  runBrowse,
}

var (
	database       string
	host           string
	port           string
	username       string
	password       string
	listenAddr     string
	maxRows        int
	addressPattern string
	verbose        bool
	openAfterStart bool
)

func init() {
	rootCmd.PersistentFlags().BoolP("help", "", false, "help for dbdash")
	rootCmd.PersistentFlags().StringVarP(&database, "database", "d", "", "Database name or file path")
	rootCmd.PersistentFlags().StringVarP(&host, "host", "h", "", "Database host")
	rootCmd.PersistentFlags().StringVarP(&port, "port", "p", "", "Database port")
	rootCmd.PersistentFlags().StringVarP(&username, "username", "U", "", "Database username")
	rootCmd.PersistentFlags().StringVarP(&password, "password", "W", "", "Database password")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose logging")

	rootCmd.Flags().StringVarP(&listenAddr, "listen", "l", "", "Listen address (default :8000)")
	rootCmd.Flags().IntVar(&maxRows, "max-rows", 0, "Row cap for table views and queries")
	rootCmd.Flags().StringVar(&addressPattern, "address-pattern", "", "Address LIKE pattern for the payment sheet report")
	rootCmd.Flags().BoolVar(&openAfterStart, "open", false, "Open the dashboard in the default browser")

	rootCmd.AddCommand(browseCmd)
}

func newLogger() (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "console"
	return cfg.Build()
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	applyFlags(cfg, args)

	log, err := newLogger()
	if err != nil {
		return err
	}
	defer log.Sync()

	if cfg.SentryDSN != "" && telemetryAllowed() {
		if err := InitSentry(cfg.SentryDSN); err != nil {
			log.Warn("sentry init failed", zap.Error(err))
		} else {
			InitBreadcrumbs(64)
			defer FlushAndShutdown()
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	conn, err := resolveConnection(ctx, cfg)
	if err != nil {
		CaptureError(err)
		return err
	}
	defer conn.DB.Close()
	debugLog("connected to %s (%s)\n", conn.Name, conn.Type)

	server, err := web.NewServer(conn.DB, conn.Type, conn.Name, web.Config{
		Addr:           cfg.Listen,
		MaxRows:        cfg.MaxRows,
		AddressPattern: cfg.AddressPattern,
		ReportError:    CaptureError,
	}, log)
	if err != nil {
		return err
	}

	if openAfterStart {
		go func() {
			time.Sleep(500 * time.Millisecond)
			if err := openBrowser(dashboardURL(cfg.Listen)); err != nil {
				log.Warn("could not open browser", zap.Error(err))
			}
		}()
	}

	if err := server.Run(ctx); err != nil {
		CaptureError(err)
		return err
	}
	return nil
}

// dashboardURL turns a listen address into something a browser can open.
func dashboardURL(addr string) string {
	if strings.HasPrefix(addr, ":") {
		return "http://localhost" + addr
	}
	return "http://" + addr
}

// applyFlags overlays command line flags and positional arguments onto the
// file configuration.
func applyFlags(cfg *Config, args []string) {
	if len(args) >= 1 && database == "" {
		database = args[0]
	}
	if database != "" {
		cfg.Database = database
	}
	if host != "" {
		cfg.Host = host
	}
	if port != "" {
		cfg.Port = port
	}
	if username != "" {
		cfg.User = username
	}
	if password != "" {
		cfg.Password = password
	}
	if listenAddr != "" {
		cfg.Listen = listenAddr
	}
	if maxRows > 0 {
		cfg.MaxRows = maxRows
	}
	if addressPattern != "" {
		cfg.AddressPattern = addressPattern
	}
}

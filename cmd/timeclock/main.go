/*
main.go - Application entry point

PURPOSE:
  Starts the punch API server and runs the offline payroll commands.
  Handles configuration, dependency injection, and graceful shutdown.

COMMANDS:
  serve     Start the HTTP API
  compute   Print day metrics and totals for an employee and date range
  export    Write the same range to an XLSX workbook

GLOBAL FLAGS (env fallback in parentheses, .env is loaded first):
  --driver     sqlite | postgres           (TIMECLOCK_DRIVER, default sqlite)
  --db         SQLite database path        (TIMECLOCK_DB, default timeclock.db)
               Use ":memory:" for an in-memory database
  --dsn        PostgreSQL connection URL   (TIMECLOCK_DSN)
  --schedule   .toml or .json schedule     (TIMECLOCK_SCHEDULE, default built-in)
  --log-level  logrus level                (TIMECLOCK_LOG_LEVEL, default info)

SERVE FLAGS:
  --port             listen port                      (TIMECLOCK_PORT, default 8080)
  --cors-origins     comma-separated origins          (TIMECLOCK_CORS_ORIGINS)
  --lock-after-days  auto paid lock age, 0 disables   (TIMECLOCK_LOCK_AFTER_DAYS)

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Stop the payroll lock scheduler
  4. Close database connection

EXAMPLES:
  ./timeclock serve --port=3000 --schedule=./schedule.toml
  ./timeclock compute --employee=emp-1 --from=2025-03-01 --to=2025-03-15
  ./timeclock export --employee=emp-1 --from=2025-03-01 --to=2025-03-15 --out=march.xlsx

SEE ALSO:
  - api/server.go: Router configuration
  - factory/schedule.go: Schedule file format
*/
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/warp/timeclock/factory"
	"github.com/warp/timeclock/store/postgres"
	"github.com/warp/timeclock/store/sqlite"
	"github.com/warp/timeclock/timeclock"
)

// config is filled from flags, which default to TIMECLOCK_* variables.
type config struct {
	driver   string
	dbPath   string
	dsn      string
	schedule string
	logLevel string
}

// backend is what both store drivers provide.
type backend interface {
	timeclock.Store
	timeclock.AuditLog
	timeclock.PayrollLister
	io.Closer
}

func main() {
	_ = godotenv.Load()

	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cfg := &config{}

	root := &cobra.Command{
		Use:           "timeclock",
		Short:         "Daily attendance punches and payroll metrics",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level, err := logrus.ParseLevel(cfg.logLevel)
			if err != nil {
				return fmt.Errorf("invalid log level %q: %w", cfg.logLevel, err)
			}
			logrus.SetLevel(level)
			logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
			return nil
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&cfg.driver, "driver", envOr("TIMECLOCK_DRIVER", "sqlite"), "storage driver: sqlite or postgres")
	pf.StringVar(&cfg.dbPath, "db", envOr("TIMECLOCK_DB", "timeclock.db"), "SQLite database path")
	pf.StringVar(&cfg.dsn, "dsn", envOr("TIMECLOCK_DSN", ""), "PostgreSQL connection URL")
	pf.StringVar(&cfg.schedule, "schedule", envOr("TIMECLOCK_SCHEDULE", ""), "schedule file (.toml or .json)")
	pf.StringVar(&cfg.logLevel, "log-level", envOr("TIMECLOCK_LOG_LEVEL", "info"), "log level")

	root.AddCommand(newServeCmd(cfg), newComputeCmd(cfg), newExportCmd(cfg))
	return root
}

// =============================================================================
// WIRING
// =============================================================================

func (c *config) openStore(ctx context.Context) (backend, error) {
	switch strings.ToLower(c.driver) {
	case "sqlite", "":
		s, err := sqlite.New(c.dbPath)
		if err != nil {
			return nil, err
		}
		return s, nil
	case "postgres", "postgresql":
		if c.dsn == "" {
			return nil, fmt.Errorf("postgres driver needs --dsn or TIMECLOCK_DSN")
		}
		s, err := postgres.New(ctx, c.dsn)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
	return nil, fmt.Errorf("unknown driver %q", c.driver)
}

func (c *config) loadSchedule() (timeclock.Schedule, error) {
	if c.schedule == "" {
		return timeclock.DefaultSchedule(), nil
	}
	return factory.NewScheduleFactory().LoadFile(c.schedule)
}

// machine opens the store, loads the schedule and builds a punch machine.
// The caller closes the returned backend.
func (c *config) machine(ctx context.Context) (*timeclock.PunchMachine, backend, error) {
	schedule, err := c.loadSchedule()
	if err != nil {
		return nil, nil, err
	}
	store, err := c.openStore(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	m := timeclock.NewPunchMachine(store, schedule,
		timeclock.WithAuditLog(store),
		timeclock.WithLogger(logrus.StandardLogger()),
	)
	return m, store, nil
}

func envOr(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

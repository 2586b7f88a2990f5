package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/warp/timeclock/api"
	"github.com/warp/timeclock/report"
	"github.com/warp/timeclock/timeclock"
)

// =============================================================================
// SERVE
// =============================================================================

func newServeCmd(cfg *config) *cobra.Command {
	var (
		port      int
		origins   string
		lockAfter int
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			machine, store, err := cfg.machine(cmd.Context())
			if err != nil {
				return err
			}
			defer store.Close()

			handler := api.NewHandler(machine, store, logrus.StandardLogger())
			router := api.NewRouter(handler, splitOrigins(origins))

			locker := api.NewPayrollLockScheduler(machine, store, logrus.StandardLogger())
			locker.LockAfterDays = lockAfter
			locker.Enabled = lockAfter > 0
			locker.Start()
			defer locker.Stop()

			server := &http.Server{
				Addr:         fmt.Sprintf(":%d", port),
				Handler:      router,
				ReadTimeout:  15 * time.Second,
				WriteTimeout: 15 * time.Second,
				IdleTimeout:  60 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				logrus.WithFields(logrus.Fields{
					"port":   port,
					"driver": cfg.driver,
				}).Info("server starting")
				if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
			}()

			quit := make(chan os.Signal, 1)
			signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
			select {
			case <-quit:
			case err := <-errCh:
				return fmt.Errorf("server failed: %w", err)
			}

			logrus.Info("shutting down server")
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if err := server.Shutdown(ctx); err != nil {
				return fmt.Errorf("server forced to shutdown: %w", err)
			}
			logrus.Info("server stopped")
			return nil
		},
	}

	cmd.Flags().IntVar(&port, "port", envInt("TIMECLOCK_PORT", 8080), "HTTP server port")
	cmd.Flags().StringVar(&origins, "cors-origins", envOr("TIMECLOCK_CORS_ORIGINS", ""), "comma-separated allowed origins")
	cmd.Flags().IntVar(&lockAfter, "lock-after-days", envInt("TIMECLOCK_LOCK_AFTER_DAYS", 0), "mark days paid automatically once this old (0 disables)")
	return cmd
}

func splitOrigins(s string) []string {
	var out []string
	for _, o := range strings.Split(s, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}

func envInt(key string, fallback int) int {
	n, err := strconv.Atoi(envOr(key, ""))
	if err != nil {
		return fallback
	}
	return n
}

// =============================================================================
// COMPUTE AND EXPORT
// =============================================================================

type rangeFlags struct {
	employee string
	from     string
	to       string
}

func (f *rangeFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.employee, "employee", "", "employee ID")
	cmd.Flags().StringVar(&f.from, "from", "", "first date, YYYY-MM-DD")
	cmd.Flags().StringVar(&f.to, "to", "", "last date, YYYY-MM-DD")
	_ = cmd.MarkFlagRequired("employee")
	_ = cmd.MarkFlagRequired("from")
	_ = cmd.MarkFlagRequired("to")
}

// summarize loads the range and runs the engine over it.
func (f *rangeFlags) summarize(ctx context.Context, cfg *config) (timeclock.PeriodSummary, error) {
	from, err := timeclock.ParseDate(f.from)
	if err != nil {
		return timeclock.PeriodSummary{}, err
	}
	to, err := timeclock.ParseDate(f.to)
	if err != nil {
		return timeclock.PeriodSummary{}, err
	}

	machine, store, err := cfg.machine(ctx)
	if err != nil {
		return timeclock.PeriodSummary{}, err
	}
	defer store.Close()

	records, err := machine.ListRange(ctx, f.employee, from, to)
	if err != nil {
		return timeclock.PeriodSummary{}, err
	}
	engine := timeclock.NewEngine(machine.Schedule())
	return engine.Summarize(f.employee, timeclock.Period{Start: from, End: to}, records), nil
}

func newComputeCmd(cfg *config) *cobra.Command {
	var rf rangeFlags
	cmd := &cobra.Command{
		Use:   "compute",
		Short: "Print day metrics for a date range",
		RunE: func(cmd *cobra.Command, args []string) error {
			sum, err := rf.summarize(cmd.Context(), cfg)
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "DATE\tREGULAR\tDEDUCT\tOT\tPAID")
			for _, d := range sum.Days {
				fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%t\n",
					d.Record.WorkDate, d.Metrics.Regular, d.Metrics.Deduct, d.Metrics.OT, d.Record.Paid)
			}
			fmt.Fprintf(tw, "TOTAL\t%d\t%d\t%d\t\n", sum.Totals.Regular, sum.Totals.Deduct, sum.Totals.OT)
			fmt.Fprintf(tw, "HOURS\t%s\t%s\t%s\t\n",
				sum.RegularHours().StringFixed(2), sum.DeductHours().StringFixed(2), sum.OTHours().StringFixed(2))
			return tw.Flush()
		},
	}
	rf.register(cmd)
	return cmd
}

func newExportCmd(cfg *config) *cobra.Command {
	var (
		rf  rangeFlags
		out string
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write day metrics for a date range to an XLSX file",
		RunE: func(cmd *cobra.Command, args []string) error {
			sum, err := rf.summarize(cmd.Context(), cfg)
			if err != nil {
				return err
			}

			f, err := os.Create(out)
			if err != nil {
				return fmt.Errorf("create %s: %w", out, err)
			}
			if err := report.WriteXLSX(f, sum); err != nil {
				f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return err
			}
			logrus.WithFields(logrus.Fields{
				"employee_id": rf.employee,
				"days":        len(sum.Days),
				"file":        out,
			}).Info("export written")
			return nil
		},
	}
	rf.register(cmd)
	cmd.Flags().StringVar(&out, "out", "attendance.xlsx", "output file")
	return cmd
}

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/wolfman30/podology-booking/internal/analytics"
	"github.com/wolfman30/podology-booking/internal/app/bootstrap"
	"github.com/wolfman30/podology-booking/internal/availability"
	"github.com/wolfman30/podology-booking/internal/bookings"
	appconfig "github.com/wolfman30/podology-booking/internal/config"
	"github.com/wolfman30/podology-booking/internal/patients"
	syncworker "github.com/wolfman30/podology-booking/internal/worker/sync"
	"github.com/wolfman30/podology-booking/pkg/logging"
)

type backend interface {
	RunFullSync(ctx context.Context, timeMin, timeMax time.Time) (bookings.SyncReport, error)
	GetAvailableSlots(ctx context.Context, providerKey string, start, end *time.Time) ([]availability.AvailableSlot, error)
	GetPatientAppointmentHistory(ctx context.Context, patientID string) ([]patients.AppointmentRecord, error)
	ResolvePatientByPhone(ctx context.Context, phone string) (patients.PhoneLookup, error)
	GenerateDashboardKPIs(ctx context.Context, period *analytics.Period) (*analytics.KPIs, error)
}

// opener wires the backend; the returned func releases it.
type opener func(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) (backend, func(), error)

func openRuntime(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) (backend, func(), error) {
	rt, err := bootstrap.BuildRuntime(ctx, cfg, logger, nil)
	if err != nil {
		return nil, nil, err
	}
	return rt.Service, rt.Close, nil
}

func main() {
	appconfig.LoadDotEnv()
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if err := newRootCmd(openRuntime).ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

type cli struct {
	open          opener
	cfg           *appconfig.Config
	providersFile string
	logLevel      string
}

func newRootCmd(open opener) *cobra.Command {
	c := &cli{open: open, cfg: appconfig.Load()}

	rootCmd := &cobra.Command{
		Use:          "podoctl",
		Short:        "Query and refresh the podology clinic agendas",
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&c.providersFile, "providers", c.cfg.ProvidersFile, "provider directory YAML")
	rootCmd.PersistentFlags().StringVar(&c.logLevel, "log-level", "warn", "log level")

	rootCmd.AddCommand(c.syncCmd())
	rootCmd.AddCommand(c.slotsCmd())
	rootCmd.AddCommand(c.historyCmd())
	rootCmd.AddCommand(c.patientCmd())
	rootCmd.AddCommand(c.kpisCmd())
	rootCmd.AddCommand(c.serveWorkerCmd())
	return rootCmd
}

func (c *cli) logger(w io.Writer) *logging.Logger {
	return logging.NewWithWriter(c.logLevel, "text", w)
}

func (c *cli) withBackend(cmd *cobra.Command, fn func(b backend) error) error {
	c.cfg.ProvidersFile = c.providersFile
	b, closeFn, err := c.open(cmd.Context(), c.cfg, c.logger(cmd.ErrOrStderr()))
	if err != nil {
		return err
	}
	defer closeFn()
	return fn(b)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// optionalTime parses an RFC3339 flag value; empty means unset.
func optionalTime(name, raw string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, fmt.Errorf("--%s must be RFC3339: %w", name, err)
	}
	return &t, nil
}

func (c *cli) syncCmd() *cobra.Command {
	var from, to string
	var days int

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Run a full sync over every provider and print the report",
		RunE: func(cmd *cobra.Command, args []string) error {
			start, err := optionalTime("from", from)
			if err != nil {
				return err
			}
			end, err := optionalTime("to", to)
			if err != nil {
				return err
			}
			now := time.Now()
			window := time.Duration(days) * 24 * time.Hour
			timeMin, timeMax := now.Add(-window), now.Add(window)
			if start != nil {
				timeMin = *start
			}
			if end != nil {
				timeMax = *end
			}
			return c.withBackend(cmd, func(b backend) error {
				rep, err := b.RunFullSync(cmd.Context(), timeMin, timeMax)
				if printErr := printJSON(cmd.OutOrStdout(), rep); printErr != nil {
					return printErr
				}
				return err
			})
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "window start (RFC3339)")
	cmd.Flags().StringVar(&to, "to", "", "window end (RFC3339)")
	cmd.Flags().IntVar(&days, "days", c.cfg.SyncWindowDays, "days on each side of now when --from/--to are omitted")
	return cmd
}

func (c *cli) slotsCmd() *cobra.Command {
	var provider, from, to string

	cmd := &cobra.Command{
		Use:   "slots",
		Short: "List free slots",
		RunE: func(cmd *cobra.Command, args []string) error {
			start, err := optionalTime("from", from)
			if err != nil {
				return err
			}
			end, err := optionalTime("to", to)
			if err != nil {
				return err
			}
			return c.withBackend(cmd, func(b backend) error {
				slots, err := b.GetAvailableSlots(cmd.Context(), provider, start, end)
				if err != nil {
					return err
				}
				w := cmd.OutOrStdout()
				if len(slots) == 0 {
					fmt.Fprintln(w, "no free slots")
					return nil
				}
				for _, s := range slots {
					fmt.Fprintf(w, "%s  %-12s %3d min  %s\n", s.Start.Format(time.RFC3339), s.ProviderKey, s.DurationMinutes, s.ProviderName)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&provider, "provider", bookings.AllProviders, "provider key, or all")
	cmd.Flags().StringVar(&from, "from", "", "earliest start (RFC3339)")
	cmd.Flags().StringVar(&to, "to", "", "latest start (RFC3339)")
	return cmd
}

func (c *cli) historyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "history [patient-id]",
		Short: "Print a patient's appointments, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withBackend(cmd, func(b backend) error {
				appts, err := b.GetPatientAppointmentHistory(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), appts)
			})
		},
	}
}

func (c *cli) patientCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "patient [phone]",
		Short: "Check whether a phone number belongs to a known patient",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withBackend(cmd, func(b backend) error {
				lookup, err := b.ResolvePatientByPhone(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), lookup)
			})
		},
	}
}

func (c *cli) kpisCmd() *cobra.Command {
	var from, to string

	cmd := &cobra.Command{
		Use:   "kpis",
		Short: "Compute the dashboard KPIs",
		RunE: func(cmd *cobra.Command, args []string) error {
			start, err := optionalTime("from", from)
			if err != nil {
				return err
			}
			end, err := optionalTime("to", to)
			if err != nil {
				return err
			}
			var period *analytics.Period
			switch {
			case start != nil && end != nil:
				period = &analytics.Period{Start: *start, End: *end}
			case start != nil || end != nil:
				return fmt.Errorf("--from and --to must be given together")
			}
			return c.withBackend(cmd, func(b backend) error {
				kpis, err := b.GenerateDashboardKPIs(cmd.Context(), period)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), kpis)
			})
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "period start (RFC3339)")
	cmd.Flags().StringVar(&to, "to", "", "period end (RFC3339)")
	return cmd
}

func (c *cli) serveWorkerCmd() *cobra.Command {
	var schedule string
	var once bool

	cmd := &cobra.Command{
		Use:   "serve-worker",
		Short: "Run the scheduled sync and KPI refresh",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := c.logger(cmd.ErrOrStderr())
			return c.withBackend(cmd, func(b backend) error {
				days := c.cfg.SyncWindowDays
				if days <= 0 {
					days = 30
				}
				r := syncworker.NewRefresher(b, logger).
					WithSchedule(schedule).
					WithWindow(time.Duration(days) * 24 * time.Hour).
					WithLocation(c.cfg.Location())
				if once {
					r.RefreshOnce(cmd.Context())
					return nil
				}
				return r.Run(cmd.Context())
			})
		},
	}
	cmd.Flags().StringVar(&schedule, "schedule", c.cfg.SyncCron, "cron expression")
	cmd.Flags().BoolVar(&once, "once", false, "refresh once and exit")
	return cmd
}

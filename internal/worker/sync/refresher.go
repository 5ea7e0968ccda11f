package syncworker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/wolfman30/podology-booking/internal/analytics"
	"github.com/wolfman30/podology-booking/internal/bookings"
	"github.com/wolfman30/podology-booking/pkg/logging"
)

type refreshService interface {
	RunFullSync(ctx context.Context, timeMin, timeMax time.Time) (bookings.SyncReport, error)
	GenerateDashboardKPIs(ctx context.Context, period *analytics.Period) (*analytics.KPIs, error)
}

// DefaultSchedule runs the refresh nightly at 03:00 clinic time.
const DefaultSchedule = "0 3 * * *"

// Refresher runs a full sync and warms the dashboard snapshot on a cron schedule.
type Refresher struct {
	service  refreshService
	logger   *logging.Logger
	schedule string
	window   time.Duration
	timeout  time.Duration
	loc      *time.Location
	now      func() time.Time

	mu      sync.Mutex
	running bool
}

func NewRefresher(service refreshService, logger *logging.Logger) *Refresher {
	if logger == nil {
		logger = logging.Default()
	}
	return &Refresher{
		service:  service,
		logger:   logger,
		schedule: DefaultSchedule,
		window:   30 * 24 * time.Hour,
		timeout:  5 * time.Minute,
		loc:      time.UTC,
		now:      time.Now,
	}
}

func (r *Refresher) WithSchedule(spec string) *Refresher {
	if spec != "" {
		r.schedule = spec
	}
	return r
}

// WithWindow sets the sync span on each side of now.
func (r *Refresher) WithWindow(d time.Duration) *Refresher {
	if d > 0 {
		r.window = d
	}
	return r
}

func (r *Refresher) WithTimeout(d time.Duration) *Refresher {
	if d > 0 {
		r.timeout = d
	}
	return r
}

func (r *Refresher) WithLocation(loc *time.Location) *Refresher {
	if loc != nil {
		r.loc = loc
	}
	return r
}

// Run blocks until ctx is cancelled. A run still in progress when the next
// tick fires is not overlapped.
func (r *Refresher) Run(ctx context.Context) error {
	c := cron.New(cron.WithLocation(r.loc))
	if _, err := c.AddFunc(r.schedule, func() { r.RefreshOnce(ctx) }); err != nil {
		return fmt.Errorf("syncworker: invalid schedule %q: %w", r.schedule, err)
	}
	r.logger.Info("refresh scheduled", "schedule", r.schedule, "tz", r.loc.String())
	c.Start()
	<-ctx.Done()
	<-c.Stop().Done()
	return nil
}

// RefreshOnce runs one sync followed by a KPI snapshot. It reports whether
// the run happened; it is skipped when another is still in flight.
func (r *Refresher) RefreshOnce(ctx context.Context) bool {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		r.logger.Warn("refresh skipped; previous run still in progress")
		return false
	}
	r.running = true
	r.mu.Unlock()
	defer func() {
		r.mu.Lock()
		r.running = false
		r.mu.Unlock()
	}()

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	now := r.now()
	rep, err := r.service.RunFullSync(ctx, now.Add(-r.window), now.Add(r.window))
	if err != nil {
		r.logger.Error("scheduled sync failed", "run_id", rep.RunID, "error", err)
		return true
	}
	r.logger.Info("scheduled sync finished",
		"run_id", rep.RunID,
		"status", rep.Status,
		"appointments", rep.AppointmentsParsed,
		"slots", rep.AvailableSlotsFound,
	)

	kpis, err := r.service.GenerateDashboardKPIs(ctx, nil)
	if err != nil {
		r.logger.Error("scheduled kpi snapshot failed", "error", err)
		return true
	}
	r.logger.Info("kpi snapshot refreshed", "patients", kpis.TotalPatients, "appointments", kpis.TotalAppointments)
	return true
}

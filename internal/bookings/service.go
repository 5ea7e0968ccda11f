// Package bookings exposes the query surface over the provider calendars:
// free slots, patient history, phone lookup, full sync and dashboard KPIs.
// Every call is an independent run reproducible from calendar contents.
package bookings

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wolfman30/podology-booking/internal/analytics"
	"github.com/wolfman30/podology-booking/internal/availability"
	"github.com/wolfman30/podology-booking/internal/calendar"
	"github.com/wolfman30/podology-booking/internal/markers"
	"github.com/wolfman30/podology-booking/internal/observability/metrics"
	"github.com/wolfman30/podology-booking/internal/patients"
	"github.com/wolfman30/podology-booking/internal/pipeline"
	"github.com/wolfman30/podology-booking/pkg/logging"
)

var bookingsTracer = otel.Tracer("podology.internal.bookings")

var (
	// ErrNoSourceReachable is returned when every provider calendar failed.
	ErrNoSourceReachable = errors.New("bookings: no calendar source reachable")
	// ErrUnknownProvider is returned for a provider key not in the directory.
	ErrUnknownProvider = errors.New("bookings: unknown provider")
	// ErrInvalidWindow is returned when a time window is empty or inverted.
	ErrInvalidWindow = errors.New("bookings: time window end must be after start")
)

// AllProviders selects every provider in GetAvailableSlots.
const AllProviders = "all"

const (
	defaultSlotHorizon = 14 * 24 * time.Hour
	historyLookback    = 2 * 365 * 24 * time.Hour
	historyLookahead   = 90 * 24 * time.Hour
	defaultKPICacheTTL = 6 * time.Hour
	runStatusOK        = "ok"
	runStatusPartial   = "partial"
	runStatusFailed    = "failed"
)

// RunRecorder persists finished sync runs.
type RunRecorder interface {
	RecordRun(ctx context.Context, rep SyncReport) error
}

// SnapshotArchiver keeps a durable copy of generated KPI snapshots.
type SnapshotArchiver interface {
	ArchiveSnapshot(ctx context.Context, k *analytics.KPIs, ruleVersion string) (string, error)
}

// SyncReport summarizes one RunFullSync.
type SyncReport struct {
	RunID               uuid.UUID      `json:"run_id"`
	Status              string         `json:"status"`
	TimeMin             time.Time      `json:"time_min"`
	TimeMax             time.Time      `json:"time_max"`
	AppointmentsParsed  int            `json:"appointments_parsed"`
	AvailableSlotsFound int            `json:"available_slots_found"`
	PatientsUpdated     int            `json:"patients_updated"`
	UnparsedBookings    int            `json:"unparsed_bookings"`
	RawEvents           map[string]int `json:"raw_events"`
	Errors              []string       `json:"errors"`
	StartedAt           time.Time      `json:"started_at"`
	FinishedAt          time.Time      `json:"finished_at"`
}

// Options carries the Service dependencies. Source and Providers are
// required; the rest fall back to defaults or are skipped when nil.
type Options struct {
	Source       calendar.Source
	Providers    []calendar.Provider
	Classifier   *markers.Classifier
	Resolver     *patients.Resolver
	Calculator   *availability.Calculator
	Aggregator   *analytics.Aggregator
	Cache        analytics.SnapshotCache
	CacheTTL     time.Duration
	Archive      SnapshotArchiver
	RunLog       RunRecorder
	Metrics      *metrics.SyncMetrics
	FetchTimeout time.Duration
	MaxParallel  int
	Logger       *logging.Logger
	Clock        func() time.Time
}

// Service answers the query surface. It keeps no state between calls.
type Service struct {
	fetcher    *pipeline.Fetcher
	providers  []calendar.Provider
	byKey      map[string]calendar.Provider
	classifier *markers.Classifier
	resolver   *patients.Resolver
	calculator *availability.Calculator
	aggregator *analytics.Aggregator
	cache      analytics.SnapshotCache
	cacheTTL   time.Duration
	archive    SnapshotArchiver
	runLog     RunRecorder
	metrics    *metrics.SyncMetrics
	logger     *logging.Logger
	now        func() time.Time
}

// NewService validates opts and builds a Service.
func NewService(opts Options) (*Service, error) {
	if opts.Source == nil {
		return nil, errors.New("bookings: calendar source required")
	}
	if len(opts.Providers) == 0 {
		return nil, errors.New("bookings: at least one provider required")
	}
	if opts.Logger == nil {
		opts.Logger = logging.Default()
	}
	byKey := make(map[string]calendar.Provider, len(opts.Providers))
	names := make(map[string]string, len(opts.Providers))
	for _, p := range opts.Providers {
		if p.Key == "" {
			return nil, errors.New("bookings: provider key required")
		}
		if _, dup := byKey[p.Key]; dup {
			return nil, fmt.Errorf("bookings: duplicate provider %q", p.Key)
		}
		byKey[p.Key] = p
		names[p.Key] = p.Name
	}
	if opts.Classifier == nil {
		opts.Classifier = markers.MustClassifier(markers.DefaultRules())
	}
	if opts.Resolver == nil {
		opts.Resolver = patients.NewResolver(nil)
	}
	if opts.Calculator == nil {
		opts.Calculator = availability.NewCalculator(availability.DefaultGranularity, names)
	}
	if opts.Aggregator == nil {
		agg, err := analytics.NewAggregator(analytics.DefaultLoyaltyPolicy(), analytics.DefaultTopN, time.UTC)
		if err != nil {
			return nil, err
		}
		opts.Aggregator = agg
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = defaultKPICacheTTL
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}

	var observer pipeline.FetchObserver
	if opts.Metrics != nil {
		observer = opts.Metrics
	}
	fetcher := pipeline.NewFetcher(opts.Source, pipeline.FetcherOptions{
		Timeout:     opts.FetchTimeout,
		MaxParallel: opts.MaxParallel,
		Logger:      opts.Logger,
		Observer:    observer,
	})

	return &Service{
		fetcher:    fetcher,
		providers:  append([]calendar.Provider(nil), opts.Providers...),
		byKey:      byKey,
		classifier: opts.Classifier,
		resolver:   opts.Resolver,
		calculator: opts.Calculator,
		aggregator: opts.Aggregator,
		cache:      opts.Cache,
		cacheTTL:   opts.CacheTTL,
		archive:    opts.Archive,
		runLog:     opts.RunLog,
		metrics:    opts.Metrics,
		logger:     opts.Logger,
		now:        opts.Clock,
	}, nil
}

// Providers lists the configured providers.
func (s *Service) Providers() []calendar.Provider {
	return append([]calendar.Provider(nil), s.providers...)
}

// RuleVersion is the classifier rule set in use.
func (s *Service) RuleVersion() string { return s.classifier.RuleVersion() }

type runResult struct {
	snapshot  *pipeline.Snapshot
	directory *patients.Directory
}

// run fetches the given providers, waits for the fan-in and folds the result.
func (s *Service) run(ctx context.Context, providers []calendar.Provider, timeMin, timeMax time.Time) (*runResult, error) {
	results := s.fetcher.FetchAll(ctx, providers, timeMin, timeMax)
	snap := pipeline.Classify(results, s.classifier, s.resolver.Normalizer())
	s.metrics.ObserveClassified(snap.RawTotals)
	if snap.AllFailed() {
		return &runResult{snapshot: snap}, ErrNoSourceReachable
	}
	dir, err := s.resolver.Resolve(snap.Tuples)
	if err != nil {
		return nil, err
	}
	return &runResult{snapshot: snap, directory: dir}, nil
}

// RunFullSync reads every calendar in [timeMin, timeMax) and reports what was
// found. It fails only when no provider could be read.
func (s *Service) RunFullSync(ctx context.Context, timeMin, timeMax time.Time) (SyncReport, error) {
	ctx, span := bookingsTracer.Start(ctx, "bookings.run_full_sync")
	defer span.End()

	rep := SyncReport{
		RunID:     uuid.New(),
		TimeMin:   timeMin.UTC(),
		TimeMax:   timeMax.UTC(),
		StartedAt: s.now().UTC(),
	}
	span.SetAttributes(attribute.String("podology.run_id", rep.RunID.String()))
	if !timeMax.After(timeMin) {
		return rep, ErrInvalidWindow
	}

	res, err := s.run(ctx, s.providers, timeMin, timeMax)
	if res != nil {
		snap := res.snapshot
		rep.RawEvents = snap.RawTotals
		rep.UnparsedBookings = snap.Unparsed
		rep.Errors = snap.Errors()
		rep.AppointmentsParsed = len(snap.Tuples)
		if res.directory != nil {
			rep.PatientsUpdated = res.directory.Len()
			rep.AvailableSlotsFound = len(s.calculator.Available(snap.Availability, snap.Bookings, availability.Query{Now: s.now()}))
		}
	}
	rep.FinishedAt = s.now().UTC()

	switch {
	case err != nil:
		rep.Status = runStatusFailed
		if rep.Errors == nil {
			rep.Errors = []string{err.Error()}
		}
	case len(rep.Errors) > 0:
		rep.Status = runStatusPartial
	default:
		rep.Status = runStatusOK
	}
	s.metrics.ObserveRun(rep.Status)
	s.recordRun(ctx, rep)

	if err != nil {
		span.RecordError(err)
		s.logger.Error("full sync failed", "run_id", rep.RunID, "error", err, "errors", rep.Errors)
		return rep, err
	}
	s.logger.Info("full sync completed",
		"run_id", rep.RunID,
		"status", rep.Status,
		"appointments_parsed", rep.AppointmentsParsed,
		"available_slots_found", rep.AvailableSlotsFound,
		"patients_updated", rep.PatientsUpdated,
		"duration_ms", rep.FinishedAt.Sub(rep.StartedAt).Milliseconds(),
	)
	return rep, nil
}

func (s *Service) recordRun(ctx context.Context, rep SyncReport) {
	if s.runLog == nil {
		return
	}
	if err := s.runLog.RecordRun(ctx, rep); err != nil {
		s.logger.Warn("failed to record sync run", "run_id", rep.RunID, "error", err)
	}
}

// GetAvailableSlots lists free slots for one provider or, with "all" or an
// empty key, for every provider. The window defaults to now through 14 days
// ahead. Only slots starting strictly after now are returned.
func (s *Service) GetAvailableSlots(ctx context.Context, providerKey string, start, end *time.Time) ([]availability.AvailableSlot, error) {
	ctx, span := bookingsTracer.Start(ctx, "bookings.get_available_slots")
	defer span.End()
	span.SetAttributes(attribute.String("podology.provider", providerKey))

	providers, err := s.selectProviders(providerKey)
	if err != nil {
		return nil, err
	}
	now := s.now()
	from := now
	if start != nil {
		from = *start
	}
	to := from.Add(defaultSlotHorizon)
	if end != nil {
		to = *end
	}
	if !to.After(from) {
		return nil, ErrInvalidWindow
	}

	// fetch whole buckets so a booking sharing a bucket with an edge marker is seen
	g := s.calculator.Granularity()
	res, err := s.run(ctx, providers, s.calculator.Bucket(from), to.Add(g))
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	for _, f := range res.snapshot.Failed {
		s.logger.Warn("slots computed without provider", "provider", f.Provider.Key, "error", f.Err)
	}
	q := availability.Query{Start: from, End: to, Now: now}
	if len(providers) == 1 {
		q.ProviderKey = providers[0].Key
	}
	return s.calculator.Available(res.snapshot.Availability, res.snapshot.Bookings, q), nil
}

func (s *Service) selectProviders(key string) ([]calendar.Provider, error) {
	if key == "" || key == AllProviders {
		return s.providers, nil
	}
	p, ok := s.byKey[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, key)
	}
	return []calendar.Provider{p}, nil
}

func (s *Service) historyWindow() (time.Time, time.Time) {
	now := s.now()
	return now.Add(-historyLookback), now.Add(historyLookahead)
}

// GetPatientAppointmentHistory returns the appointments of patientID, most
// recent first, across every provider.
func (s *Service) GetPatientAppointmentHistory(ctx context.Context, patientID string) ([]patients.AppointmentRecord, error) {
	ctx, span := bookingsTracer.Start(ctx, "bookings.get_patient_history")
	defer span.End()

	from, to := s.historyWindow()
	res, err := s.run(ctx, s.providers, from, to)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return res.directory.History(patientID)
}

// ResolvePatientByPhone reports whether phone belongs to a known patient.
// When no calendar could be read the outcome is Unknown, never NotFound.
func (s *Service) ResolvePatientByPhone(ctx context.Context, phone string) (patients.PhoneLookup, error) {
	ctx, span := bookingsTracer.Start(ctx, "bookings.resolve_patient_by_phone")
	defer span.End()

	from, to := s.historyWindow()
	res, err := s.run(ctx, s.providers, from, to)
	if errors.Is(err, ErrNoSourceReachable) {
		s.logger.Warn("phone lookup without any reachable calendar")
		return patients.PhoneLookup{
			Outcome: patients.OutcomeUnknown,
			Phone:   s.resolver.Normalizer().NormalizePhone(phone),
		}, nil
	}
	if err != nil {
		span.RecordError(err)
		return patients.PhoneLookup{}, err
	}
	return res.directory.LookupPhone(phone), nil
}

// GenerateDashboardKPIs computes the KPI snapshot for period (default: the
// 12 months ending this month). A fresh cached snapshot is returned as is.
// Snapshots built from a partial run are returned but not cached.
func (s *Service) GenerateDashboardKPIs(ctx context.Context, period *analytics.Period) (*analytics.KPIs, error) {
	ctx, span := bookingsTracer.Start(ctx, "bookings.generate_dashboard_kpis")
	defer span.End()

	now := s.now()
	p := analytics.DefaultPeriod(now, s.aggregator.Location())
	if period != nil {
		p = *period
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	key := analytics.SnapshotKey(p, s.RuleVersion())

	if s.cache != nil {
		cached, err := s.cache.Load(ctx, key)
		switch {
		case err == nil:
			s.metrics.ObserveKPICache(true)
			return cached, nil
		case !errors.Is(err, analytics.ErrSnapshotMiss):
			s.logger.Warn("kpi cache load failed", "key", key, "error", err)
		}
		s.metrics.ObserveKPICache(false)
	}

	res, err := s.run(ctx, s.providers, p.Start, p.End)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	snap := res.snapshot
	kpis, err := s.aggregator.Aggregate(analytics.Input{
		Patients:      res.directory.Patients(),
		Inventory:     s.calculator.Inventory(snap.Availability, snap.Bookings),
		ProviderNames: s.providerNames(),
		RawTotals:     snap.RawTotals,
		Now:           now,
	}, p)
	if err != nil {
		return nil, err
	}

	if len(snap.Failed) > 0 {
		s.logger.Warn("kpis computed from a partial run; not caching", "failed_providers", len(snap.Failed))
		return kpis, nil
	}
	if s.cache != nil {
		if err := s.cache.Store(ctx, key, kpis, s.cacheTTL); err != nil {
			s.logger.Warn("kpi cache store failed", "key", key, "error", err)
		}
	}
	if s.archive != nil {
		if _, err := s.archive.ArchiveSnapshot(ctx, kpis, s.RuleVersion()); err != nil {
			s.logger.Warn("kpi snapshot archive failed", "error", err)
		}
	}
	return kpis, nil
}

func (s *Service) providerNames() map[string]string {
	out := make(map[string]string, len(s.providers))
	for _, p := range s.providers {
		out[p.Key] = p.Name
	}
	return out
}

// ProviderKeys returns the configured keys in sorted order.
func (s *Service) ProviderKeys() []string {
	keys := make([]string, 0, len(s.byKey))
	for k := range s.byKey {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

package bootstrap

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/wolfman30/podology-booking/internal/analytics"
	"github.com/wolfman30/podology-booking/internal/availability"
	"github.com/wolfman30/podology-booking/internal/bookings"
	appconfig "github.com/wolfman30/podology-booking/internal/config"
	"github.com/wolfman30/podology-booking/internal/identity"
	"github.com/wolfman30/podology-booking/internal/markers"
	"github.com/wolfman30/podology-booking/internal/observability/metrics"
	"github.com/wolfman30/podology-booking/internal/patients"
	"github.com/wolfman30/podology-booking/pkg/logging"
)

// Runtime is the wired booking service plus the handles a binary must close.
type Runtime struct {
	Service *bookings.Service
	Metrics *metrics.SyncMetrics
	Redis   *redis.Client
	DB      *pgxpool.Pool
}

// Close releases the Redis and Postgres handles.
func (r *Runtime) Close() {
	if r == nil {
		return
	}
	if r.Redis != nil {
		_ = r.Redis.Close()
	}
	if r.DB != nil {
		r.DB.Close()
	}
}

// MarkerRules builds the title rule set from configuration.
func MarkerRules(cfg *appconfig.Config) markers.Rules {
	rules := markers.DefaultRules()
	if len(cfg.AvailabilityTokens) > 0 {
		rules.AvailabilityTokens = cfg.AvailabilityTokens
	}
	if len(cfg.NameTokens) > 0 {
		rules.NameTokens = cfg.NameTokens
	}
	if len(cfg.PhoneTokens) > 0 {
		rules.PhoneTokens = cfg.PhoneTokens
	}
	if len(cfg.PaymentTokens) > 0 {
		rules.PaymentTokens = cfg.PaymentTokens
	}
	return rules
}

// PhonePlan builds the numbering plan from configuration.
func PhonePlan(cfg *appconfig.Config) identity.PhonePlan {
	plan := identity.DefaultPhonePlan()
	if cfg.PhoneCountryCode != "" {
		plan.CountryCode = cfg.PhoneCountryCode
	}
	if cfg.PhoneMobilePrefix != "" {
		plan.MobilePrefix = cfg.PhoneMobilePrefix
	}
	if len(cfg.PhoneAreaCodes) > 0 {
		plan.AreaCodes = cfg.PhoneAreaCodes
	}
	return plan
}

// BuildRuntime wires the booking service from configuration. Redis, Postgres
// and the S3 archive are optional; reg may be nil to skip metrics.
func BuildRuntime(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger, reg prometheus.Registerer) (*Runtime, error) {
	if cfg == nil {
		return nil, fmt.Errorf("bootstrap: config is required")
	}
	if logger == nil {
		logger = logging.Default()
	}

	providerCfgs, err := appconfig.LoadProviders(cfg.ProvidersFile)
	if err != nil {
		return nil, err
	}
	source, providers, err := BuildCalendarSource(ctx, cfg, providerCfgs, logger)
	if err != nil {
		return nil, err
	}

	classifier, err := markers.NewClassifier(MarkerRules(cfg))
	if err != nil {
		return nil, fmt.Errorf("bootstrap: marker rules: %w", err)
	}
	names := make(map[string]string, len(providers))
	for _, p := range providers {
		names[p.Key] = p.Name
	}
	aggregator, err := analytics.NewAggregator(analytics.LoyaltyPolicy{
		Regular:          cfg.LoyaltyRegularVisits,
		VIP:              cfg.LoyaltyVIPVisits,
		Platinum:         cfg.LoyaltyPlatinumVisits,
		InactivityWindow: cfg.InactivityWindow,
	}, cfg.KPITopN, cfg.Location())
	if err != nil {
		return nil, fmt.Errorf("bootstrap: loyalty policy: %w", err)
	}

	rt := &Runtime{Redis: BuildRedisClient(ctx, cfg, logger, true)}
	rt.DB, err = BuildPostgresPool(ctx, cfg)
	if err != nil {
		logger.Warn("postgres unavailable; run log and snapshot table disabled", "error", err)
	}

	opts := bookings.Options{
		Source:       source,
		Providers:    providers,
		Classifier:   classifier,
		Resolver:     patients.NewResolver(identity.NewNormalizer(PhonePlan(cfg))),
		Calculator:   availability.NewCalculator(cfg.SlotGranularity, names),
		Aggregator:   aggregator,
		Cache:        BuildSnapshotCache(rt.Redis, rt.DB),
		CacheTTL:     cfg.KPICacheTTL,
		FetchTimeout: cfg.CalendarFetchTimeout,
		MaxParallel:  cfg.CalendarMaxParallel,
		Logger:       logger,
	}
	if rt.DB != nil {
		opts.RunLog = bookings.NewRepository(rt.DB)
	}
	store, err := BuildArchive(ctx, cfg, logger)
	if err != nil {
		rt.Close()
		return nil, fmt.Errorf("bootstrap: snapshot archive: %w", err)
	}
	if store != nil {
		opts.Archive = store
	}
	if reg != nil {
		rt.Metrics = metrics.NewSyncMetrics(reg)
		opts.Metrics = rt.Metrics
	}

	rt.Service, err = bookings.NewService(opts)
	if err != nil {
		rt.Close()
		return nil, err
	}
	logger.Info("booking service ready",
		"providers", len(providers),
		"rule_version", classifier.RuleVersion(),
		"cache", opts.Cache != nil,
		"archive", store != nil,
		"run_log", opts.RunLog != nil,
	)
	return rt, nil
}

// Package pipeline runs the per-provider calendar fan-out and classifies the
// merged result once every fetch has settled.
package pipeline

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/wolfman30/podology-booking/internal/calendar"
	"github.com/wolfman30/podology-booking/pkg/logging"
)

var pipelineTracer = otel.Tracer("podology.internal.pipeline")

const (
	DefaultFetchTimeout = 10 * time.Second
	DefaultMaxParallel  = 8
)

// FetchObserver is notified once per provider fetch.
type FetchObserver interface {
	ObserveFetch(provider string, duration time.Duration, err error)
}

// FetchResult is one provider's contribution to a run. Err is non-nil when the
// calendar could not be read; Events is then empty.
type FetchResult struct {
	Provider calendar.Provider
	Events   []calendar.RawEvent
	Err      error
	Duration time.Duration
}

// FetcherOptions tunes the fan-out.
type FetcherOptions struct {
	Timeout     time.Duration
	MaxParallel int
	Logger      *logging.Logger
	Observer    FetchObserver
}

// Fetcher reads every provider calendar in parallel.
type Fetcher struct {
	source      calendar.Source
	timeout     time.Duration
	maxParallel int
	logger      *logging.Logger
	observer    FetchObserver
}

// NewFetcher constructs a fetcher over source.
func NewFetcher(source calendar.Source, opts FetcherOptions) *Fetcher {
	if source == nil {
		panic("pipeline: calendar source required")
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultFetchTimeout
	}
	if opts.MaxParallel <= 0 {
		opts.MaxParallel = DefaultMaxParallel
	}
	if opts.Logger == nil {
		opts.Logger = logging.Default()
	}
	return &Fetcher{
		source:      source,
		timeout:     opts.Timeout,
		maxParallel: opts.MaxParallel,
		logger:      opts.Logger,
		observer:    opts.Observer,
	}
}

// FetchAll returns one result per provider, in provider order, after every
// fetch has completed, failed or timed out. A failing provider never cancels
// the others.
func (f *Fetcher) FetchAll(ctx context.Context, providers []calendar.Provider, timeMin, timeMax time.Time) []FetchResult {
	ctx, span := pipelineTracer.Start(ctx, "pipeline.fetch_all")
	defer span.End()
	span.SetAttributes(attribute.Int("podology.providers", len(providers)))

	results := make([]FetchResult, len(providers))
	var g errgroup.Group
	g.SetLimit(f.maxParallel)
	for i, p := range providers {
		g.Go(func() error {
			results[i] = f.fetchOne(ctx, p, timeMin, timeMax)
			return nil
		})
	}
	_ = g.Wait()

	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
		}
	}
	span.SetAttributes(attribute.Int("podology.providers_failed", failed))
	return results
}

func (f *Fetcher) fetchOne(ctx context.Context, p calendar.Provider, timeMin, timeMax time.Time) FetchResult {
	fctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	started := time.Now()
	events, err := f.source.ListEvents(fctx, p.Key, timeMin, timeMax)
	if err == nil && fctx.Err() != nil {
		err = fctx.Err()
	}
	elapsed := time.Since(started)
	if f.observer != nil {
		f.observer.ObserveFetch(p.Key, elapsed, err)
	}
	if err != nil {
		f.logger.Warn("calendar fetch failed", "provider", p.Key, "calendar_id", p.CalendarID, "duration_ms", elapsed.Milliseconds(), "error", err)
		var srcErr *calendar.SourceError
		if !errors.As(err, &srcErr) {
			err = calendar.Unavailable(p.Key, err)
		}
		return FetchResult{Provider: p, Err: err, Duration: elapsed}
	}
	f.logger.Debug("calendar fetched", "provider", p.Key, "events", len(events), "duration_ms", elapsed.Milliseconds())
	return FetchResult{Provider: p, Events: events, Duration: elapsed}
}

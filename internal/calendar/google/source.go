// Package google adapts Google Calendar v3 to calendar.Source.
package google

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"github.com/wolfman30/podology-booking/internal/calendar"
	"github.com/wolfman30/podology-booking/pkg/logging"
)

var tracer = otel.Tracer("podology.internal.calendar.google")

const pageSize = 250

// Source lists events from Google calendars, one calendar per provider.
type Source struct {
	service   *gcal.Service
	calendars map[string]string
	logger    *logging.Logger
}

// Config wires a Source.
type Config struct {
	// CredentialsFile is a service-account JSON key. Ignored when Options is set.
	CredentialsFile string
	// Calendars maps provider key to calendar ID.
	Calendars map[string]string
	// Options overrides client options (endpoint, http client) for tests.
	Options []option.ClientOption
	Logger  *logging.Logger
}

// New builds a Google Calendar source. The returned value owns its client; no
// process-wide handle is cached.
func New(ctx context.Context, cfg Config) (*Source, error) {
	if len(cfg.Calendars) == 0 {
		return nil, errors.New("google: at least one calendar required")
	}
	opts := cfg.Options
	if len(opts) == 0 {
		if strings.TrimSpace(cfg.CredentialsFile) == "" {
			return nil, errors.New("google: credentials file required")
		}
		opts = []option.ClientOption{
			option.WithCredentialsFile(cfg.CredentialsFile),
			option.WithScopes(gcal.CalendarReadonlyScope),
		}
	}
	svc, err := gcal.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("google: create calendar service: %w", err)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}
	calendars := make(map[string]string, len(cfg.Calendars))
	for k, v := range cfg.Calendars {
		calendars[k] = v
	}
	return &Source{service: svc, calendars: calendars, logger: logger}, nil
}

// ListEvents implements calendar.Source. Recurring events are expanded by the
// API (singleEvents=true); cancelled and all-day entries are dropped.
func (s *Source) ListEvents(ctx context.Context, ownerKey string, timeMin, timeMax time.Time) ([]calendar.RawEvent, error) {
	ctx, span := tracer.Start(ctx, "google.list_events")
	defer span.End()
	span.SetAttributes(attribute.String("podology.provider", ownerKey))

	calendarID, ok := s.calendars[ownerKey]
	if !ok {
		return nil, calendar.Unavailable(ownerKey, errors.New("no google calendar mapped"))
	}

	call := s.service.Events.List(calendarID).
		SingleEvents(true).
		OrderBy("startTime").
		MaxResults(pageSize)
	if !timeMin.IsZero() {
		call = call.TimeMin(timeMin.UTC().Format(time.RFC3339))
	}
	if !timeMax.IsZero() {
		call = call.TimeMax(timeMax.UTC().Format(time.RFC3339))
	}

	var out []calendar.RawEvent
	err := call.Pages(ctx, func(page *gcal.Events) error {
		for _, item := range page.Items {
			ev, ok := s.toRawEvent(ownerKey, item)
			if ok {
				out = append(out, ev)
			}
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return nil, calendar.Unavailable(ownerKey, err)
	}
	span.SetAttributes(attribute.Int("podology.event_count", len(out)))
	return out, nil
}

func (s *Source) toRawEvent(ownerKey string, item *gcal.Event) (calendar.RawEvent, bool) {
	if item == nil || item.Status == "cancelled" {
		return calendar.RawEvent{}, false
	}
	if item.Start == nil || item.Start.DateTime == "" {
		return calendar.RawEvent{}, false
	}
	start, err := time.Parse(time.RFC3339, item.Start.DateTime)
	if err != nil {
		s.logger.Warn("google: skipping event with bad start", "provider", ownerKey, "event_id", item.Id, "error", err)
		return calendar.RawEvent{}, false
	}
	var end time.Time
	if item.End != nil && item.End.DateTime != "" {
		if parsed, err := time.Parse(time.RFC3339, item.End.DateTime); err == nil {
			end = parsed
		}
	}
	return calendar.RawEvent{
		OwnerKey: ownerKey,
		Title:    item.Summary,
		Start:    start,
		End:      end,
		EventID:  item.Id,
	}, true
}

package bootstrap

import (
	"context"
	"fmt"
	"net/http"

	"github.com/wolfman30/podology-booking/internal/calendar"
	"github.com/wolfman30/podology-booking/internal/calendar/google"
	"github.com/wolfman30/podology-booking/internal/calendar/ics"
	appconfig "github.com/wolfman30/podology-booking/internal/config"
	"github.com/wolfman30/podology-booking/pkg/logging"
)

// BuildCalendarSource creates one adapter per provider kind and routes each
// provider key to its adapter.
func BuildCalendarSource(ctx context.Context, cfg *appconfig.Config, providers []appconfig.ProviderConfig, logger *logging.Logger) (calendar.Source, []calendar.Provider, error) {
	if logger == nil {
		logger = logging.Default()
	}
	googleCalendars := make(map[string]string)
	feeds := make(map[string]string)
	out := make([]calendar.Provider, 0, len(providers))
	for _, p := range providers {
		switch p.Kind {
		case appconfig.ProviderKindGoogle:
			googleCalendars[p.Key] = p.CalendarID
		case appconfig.ProviderKindICS:
			feeds[p.Key] = p.URL
		default:
			return nil, nil, fmt.Errorf("bootstrap: provider %q: unsupported kind %q", p.Key, p.Kind)
		}
		out = append(out, calendar.Provider{
			Key:        p.Key,
			Name:       p.Name,
			Kind:       p.Kind,
			CalendarID: p.CalendarID,
			URL:        p.URL,
		})
	}

	routes := make(map[string]calendar.Source, len(providers))
	if len(googleCalendars) > 0 {
		src, err := google.New(ctx, google.Config{
			CredentialsFile: cfg.GoogleCredentialsFile,
			Calendars:       googleCalendars,
			Logger:          logger,
		})
		if err != nil {
			return nil, nil, err
		}
		for key := range googleCalendars {
			routes[key] = src
		}
	}
	if len(feeds) > 0 {
		src := ics.New(feeds, &http.Client{Timeout: cfg.CalendarFetchTimeout}, logger)
		for key := range feeds {
			routes[key] = src
		}
	}
	logger.Info("calendar sources configured", "google", len(googleCalendars), "ics", len(feeds))
	return calendar.NewMultiSource(routes), out, nil
}

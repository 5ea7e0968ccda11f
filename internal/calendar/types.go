// Package calendar defines the read-only view of provider calendars that the
// booking core derives every appointment, slot and patient from.
package calendar

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrSourceUnavailable marks a calendar fetch that failed or timed out.
// Callers treat it as a per-provider failure, never as fatal for a run.
var ErrSourceUnavailable = errors.New("calendar: source unavailable")

// RawEvent is a single calendar event as produced by a source adapter.
type RawEvent struct {
	OwnerKey string    // provider key of the calendar the event came from
	Title    string    // free-form, human-entered summary
	Start    time.Time // event start
	End      time.Time // event end
	EventID  string    // source-specific identifier
}

// Duration returns End-Start, or zero when End is missing or before Start.
func (e RawEvent) Duration() time.Duration {
	if e.End.IsZero() || !e.End.After(e.Start) {
		return 0
	}
	return e.End.Sub(e.Start)
}

// Provider is a podologist whose agenda lives in one calendar.
type Provider struct {
	Key        string
	Name       string
	Kind       string
	CalendarID string
	URL        string
}

// Source lists the raw events of one provider's calendar inside [timeMin, timeMax).
type Source interface {
	ListEvents(ctx context.Context, ownerKey string, timeMin, timeMax time.Time) ([]RawEvent, error)
}

// SourceError wraps a failed fetch with the provider that produced it.
type SourceError struct {
	Provider string
	Err      error
}

func (e *SourceError) Error() string {
	return fmt.Sprintf("calendar: provider %s: %v", e.Provider, e.Err)
}

func (e *SourceError) Unwrap() []error {
	return []error{ErrSourceUnavailable, e.Err}
}

// Unavailable wraps err as a SourceError for provider.
func Unavailable(provider string, err error) error {
	if err == nil {
		err = errors.New("unknown failure")
	}
	return &SourceError{Provider: provider, Err: err}
}

// Package ics adapts published iCalendar feeds to calendar.Source, expanding
// recurring availability markers inside the requested window.
package ics

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/teambition/rrule-go"

	"github.com/wolfman30/podology-booking/internal/calendar"
	"github.com/wolfman30/podology-booking/pkg/logging"
)

const (
	maxFeedBytes          = 8 << 20
	maxOccurrencesPerRule = 2000
)

// Source fetches one ICS feed per provider.
type Source struct {
	client *http.Client
	feeds  map[string]string
	logger *logging.Logger
}

// New creates an ICS source. feeds maps provider key to feed URL.
func New(feeds map[string]string, client *http.Client, logger *logging.Logger) *Source {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	if logger == nil {
		logger = logging.Default()
	}
	copied := make(map[string]string, len(feeds))
	for k, v := range feeds {
		copied[k] = v
	}
	return &Source{client: client, feeds: copied, logger: logger}
}

// ListEvents implements calendar.Source.
func (s *Source) ListEvents(ctx context.Context, ownerKey string, timeMin, timeMax time.Time) ([]calendar.RawEvent, error) {
	url, ok := s.feeds[ownerKey]
	if !ok {
		return nil, calendar.Unavailable(ownerKey, errors.New("no ics feed mapped"))
	}
	body, err := s.fetch(ctx, url)
	if err != nil {
		return nil, calendar.Unavailable(ownerKey, err)
	}
	events, err := Parse(ownerKey, body, timeMin, timeMax, s.logger)
	if err != nil {
		return nil, calendar.Unavailable(ownerKey, err)
	}
	return events, nil
}

func (s *Source) fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("ics: build request: %w", err)
	}
	req.Header.Set("Accept", "text/calendar")
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ics: fetch: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ics: fetch: unexpected status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFeedBytes))
	if err != nil {
		return nil, fmt.Errorf("ics: read body: %w", err)
	}
	return body, nil
}

// Parse decodes an ICS payload into raw events for ownerKey whose start falls
// in [timeMin, timeMax). All-day entries are skipped; RRULE/EXDATE are expanded.
// A VEVENT carrying RECURRENCE-ID replaces the instance of its UID that starts
// at that time; a cancelled one removes it.
func Parse(ownerKey string, body []byte, timeMin, timeMax time.Time, logger *logging.Logger) ([]calendar.RawEvent, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, errors.New("ics: empty body")
	}
	if logger == nil {
		logger = logging.Default()
	}
	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("ics: parse: %w", err)
	}

	var (
		out       []calendar.RawEvent
		bases     []*ical.VEvent
		overrides = map[string]map[int64]struct{}{}
	)
	for _, ve := range cal.Events() {
		rid, ok := recurrenceID(ve)
		if !ok {
			bases = append(bases, ve)
			continue
		}
		uid := propValue(ve, ical.ComponentPropertyUniqueId)
		if overrides[uid] == nil {
			overrides[uid] = map[int64]struct{}{}
		}
		overrides[uid][rid.Unix()] = struct{}{}

		if isAllDay(ve) || isCancelled(ve) {
			continue
		}
		start, end, ok := bounds(ve, ownerKey, logger)
		if !ok || !inWindow(start, timeMin, timeMax) {
			continue
		}
		out = append(out, calendar.RawEvent{
			OwnerKey: ownerKey,
			Title:    propValue(ve, ical.ComponentPropertySummary),
			Start:    start,
			End:      end,
			EventID:  eventID(uid, rid, true),
		})
	}

	overridden := func(uid string, t time.Time) bool {
		_, ok := overrides[uid][t.Unix()]
		return ok
	}

	for _, ve := range bases {
		if isAllDay(ve) || isCancelled(ve) {
			continue
		}
		start, end, ok := bounds(ve, ownerKey, logger)
		if !ok {
			continue
		}
		uid := propValue(ve, ical.ComponentPropertyUniqueId)
		title := propValue(ve, ical.ComponentPropertySummary)

		rule := propValue(ve, ical.ComponentPropertyRrule)
		if rule == "" {
			if inWindow(start, timeMin, timeMax) && !overridden(uid, start) {
				out = append(out, calendar.RawEvent{
					OwnerKey: ownerKey,
					Title:    title,
					Start:    start,
					End:      end,
					EventID:  eventID(uid, start, false),
				})
			}
			continue
		}

		occurrences, err := expand(rule, start, exDates(ve, start.Location()), timeMin, timeMax)
		if err != nil {
			logger.Warn("ics: bad recurrence rule", "provider", ownerKey, "uid", uid, "rrule", rule, "error", err)
			continue
		}
		var length time.Duration
		if end.After(start) {
			length = end.Sub(start)
		}
		for _, occ := range occurrences {
			if overridden(uid, occ) {
				continue
			}
			ev := calendar.RawEvent{
				OwnerKey: ownerKey,
				Title:    title,
				Start:    occ,
				EventID:  eventID(uid, occ, true),
			}
			if length > 0 {
				ev.End = occ.Add(length)
			}
			out = append(out, ev)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out, nil
}

func bounds(ve *ical.VEvent, ownerKey string, logger *logging.Logger) (time.Time, time.Time, bool) {
	start, err := ve.GetStartAt()
	if err != nil {
		logger.Warn("ics: skipping event without start", "provider", ownerKey, "error", err)
		return time.Time{}, time.Time{}, false
	}
	end, err := ve.GetEndAt()
	if err != nil {
		end = time.Time{}
	}
	return start, end, true
}

// recurrenceID reads RECURRENCE-ID, honouring its TZID and falling back to
// the zone of DTSTART for floating values.
func recurrenceID(ve *ical.VEvent) (time.Time, bool) {
	p := ve.GetProperty(ical.ComponentProperty("RECURRENCE-ID"))
	if p == nil || strings.TrimSpace(p.Value) == "" {
		return time.Time{}, false
	}
	loc := time.UTC
	if start, err := ve.GetStartAt(); err == nil {
		loc = start.Location()
	}
	if tz, ok := p.ICalParameters["TZID"]; ok && len(tz) > 0 {
		if l, err := time.LoadLocation(tz[0]); err == nil {
			loc = l
		}
	}
	t, err := parseICSTime(strings.TrimSpace(p.Value), loc)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

func expand(rule string, start time.Time, exdates []time.Time, timeMin, timeMax time.Time) ([]time.Time, error) {
	r, err := rrule.StrToRRule(strings.TrimPrefix(rule, "RRULE:"))
	if err != nil {
		return nil, err
	}
	r.DTStart(start)

	var set rrule.Set
	set.RRule(r)
	for _, ex := range exdates {
		set.ExDate(ex)
	}

	if timeMin.IsZero() {
		timeMin = start
	}
	if timeMax.IsZero() {
		timeMax = timeMin.AddDate(1, 0, 0)
	}
	occ := set.Between(timeMin, timeMax, true)
	filtered := occ[:0]
	for _, t := range occ {
		if inWindow(t, timeMin, timeMax) {
			filtered = append(filtered, t)
		}
	}
	if len(filtered) > maxOccurrencesPerRule {
		filtered = filtered[:maxOccurrencesPerRule]
	}
	return filtered, nil
}

func exDates(ve *ical.VEvent, loc *time.Location) []time.Time {
	var out []time.Time
	for _, p := range ve.GetProperties(ical.ComponentPropertyExdate) {
		for _, part := range strings.Split(p.Value, ",") {
			if t, err := parseICSTime(strings.TrimSpace(part), loc); err == nil {
				out = append(out, t)
			}
		}
	}
	return out
}

func parseICSTime(v string, loc *time.Location) (time.Time, error) {
	if v == "" {
		return time.Time{}, errors.New("empty time value")
	}
	if strings.HasSuffix(v, "Z") {
		return time.Parse("20060102T150405Z", v)
	}
	if loc == nil {
		loc = time.UTC
	}
	if strings.Contains(v, "T") {
		return time.ParseInLocation("20060102T150405", v, loc)
	}
	return time.ParseInLocation("20060102", v, loc)
}

func isAllDay(ve *ical.VEvent) bool {
	p := ve.GetProperty(ical.ComponentPropertyDtStart)
	if p == nil {
		return false
	}
	if vs, ok := p.ICalParameters["VALUE"]; ok && len(vs) > 0 && strings.EqualFold(vs[0], "DATE") {
		return true
	}
	return !strings.Contains(p.Value, "T")
}

func isCancelled(ve *ical.VEvent) bool {
	return strings.EqualFold(propValue(ve, ical.ComponentPropertyStatus), "CANCELLED")
}

func propValue(ve *ical.VEvent, prop ical.ComponentProperty) string {
	if p := ve.GetProperty(prop); p != nil {
		return p.Value
	}
	return ""
}

func inWindow(t, timeMin, timeMax time.Time) bool {
	if !timeMin.IsZero() && t.Before(timeMin) {
		return false
	}
	if !timeMax.IsZero() && !t.Before(timeMax) {
		return false
	}
	return true
}

func eventID(uid string, start time.Time, occurrence bool) string {
	if uid == "" {
		uid = "nouid"
	}
	if !occurrence {
		return uid
	}
	return uid + "@" + start.UTC().Format(time.RFC3339)
}

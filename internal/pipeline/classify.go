package pipeline

import (
	"github.com/wolfman30/podology-booking/internal/calendar"
	"github.com/wolfman30/podology-booking/internal/identity"
	"github.com/wolfman30/podology-booking/internal/markers"
	"github.com/wolfman30/podology-booking/internal/patients"
)

// Snapshot is the classified view of one run, built after the fan-in.
type Snapshot struct {
	Availability []calendar.RawEvent
	// Bookings holds every booking marker, parsed or not; all of them consume
	// availability buckets.
	Bookings []calendar.RawEvent
	Payments []calendar.RawEvent
	Tuples   []patients.BookingTuple

	Unclassified int
	Unparsed     int
	RawTotals    map[string]int

	Reached []string
	Failed  []FetchResult
}

// AllFailed reports whether no provider could be read. An empty provider set
// also counts as nothing reached.
func (s *Snapshot) AllFailed() bool {
	return len(s.Reached) == 0
}

// Errors renders each failed fetch as text.
func (s *Snapshot) Errors() []string {
	out := make([]string, 0, len(s.Failed))
	for _, f := range s.Failed {
		out = append(out, f.Err.Error())
	}
	return out
}

// Classify folds the fetch results into a Snapshot. It runs single-threaded
// over results in provider order.
func Classify(results []FetchResult, c *markers.Classifier, n *identity.Normalizer) *Snapshot {
	s := &Snapshot{RawTotals: make(map[string]int, 4)}
	for _, k := range markers.Kinds() {
		s.RawTotals[k.String()] = 0
	}
	for _, r := range results {
		if r.Err != nil {
			s.Failed = append(s.Failed, r)
			continue
		}
		s.Reached = append(s.Reached, r.Provider.Key)
		for _, ev := range r.Events {
			if ev.OwnerKey == "" {
				ev.OwnerKey = r.Provider.Key
			}
			kind := c.Classify(ev.Title)
			s.RawTotals[kind.String()]++
			switch kind {
			case markers.KindAvailability:
				s.Availability = append(s.Availability, ev)
			case markers.KindBooking:
				s.Bookings = append(s.Bookings, ev)
				parsed, ok := c.Parse(ev.Title)
				if !ok {
					s.Unparsed++
					continue
				}
				s.Tuples = append(s.Tuples, patients.BookingTuple{
					Identity:     n.Canonicalize(parsed),
					OwnerKey:     ev.OwnerKey,
					ProviderName: providerName(r.Provider),
					EventID:      ev.EventID,
					Title:        ev.Title,
					Start:        ev.Start,
					End:          ev.End,
				})
			case markers.KindPayment:
				s.Payments = append(s.Payments, ev)
			default:
				s.Unclassified++
			}
		}
	}
	return s
}

func providerName(p calendar.Provider) string {
	if p.Name != "" {
		return p.Name
	}
	return p.Key
}

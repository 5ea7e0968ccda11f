// Package availability reconciles availability markers against booking
// markers to produce the free-slot inventory of each provider.
package availability

import (
	"sort"
	"time"

	"github.com/wolfman30/podology-booking/internal/calendar"
)

// DefaultGranularity is the bucket width used when none is configured.
const DefaultGranularity = 30 * time.Minute

// AvailableSlot is an availability marker not consumed by any booking in the
// same bucket at the same provider.
type AvailableSlot struct {
	ProviderKey     string    `json:"provider_key"`
	ProviderName    string    `json:"provider_name"`
	Start           time.Time `json:"start"`
	DurationMinutes int       `json:"duration_minutes"`
	EventID         string    `json:"event_id"`
}

// Query narrows Available. Zero values mean unbounded; an empty ProviderKey
// means every provider.
type Query struct {
	ProviderKey string
	Start       time.Time
	End         time.Time
	Now         time.Time
}

// Inventory counts distinct buckets for one provider.
type Inventory struct {
	Booked int `json:"booked"`
	Free   int `json:"free"`
}

// Occupancy is Booked / (Booked + Free), or 0 for an empty inventory.
func (i Inventory) Occupancy() float64 {
	total := i.Booked + i.Free
	if total == 0 {
		return 0
	}
	return float64(i.Booked) / float64(total)
}

// Calculator performs the bucket set-difference. It holds no run state.
type Calculator struct {
	granularity time.Duration
	names       map[string]string
}

// NewCalculator builds a calculator. names maps provider keys to display names.
func NewCalculator(granularity time.Duration, names map[string]string) *Calculator {
	if granularity <= 0 {
		granularity = DefaultGranularity
	}
	copied := make(map[string]string, len(names))
	for k, v := range names {
		copied[k] = v
	}
	return &Calculator{granularity: granularity, names: copied}
}

// Granularity returns the bucket width.
func (c *Calculator) Granularity() time.Duration { return c.granularity }

// Bucket aligns t to the start of its bucket in UTC.
func (c *Calculator) Bucket(t time.Time) time.Time {
	return t.UTC().Truncate(c.granularity)
}

type bucketKey struct {
	provider string
	at       time.Time
}

func (c *Calculator) bookedBuckets(bookings []calendar.RawEvent) map[bucketKey]struct{} {
	booked := make(map[bucketKey]struct{}, len(bookings))
	for _, ev := range bookings {
		booked[bucketKey{ev.OwnerKey, c.Bucket(ev.Start)}] = struct{}{}
	}
	return booked
}

// Available returns the availability markers whose bucket holds no booking,
// restricted to starts strictly after q.Now, ordered by start then provider.
func (c *Calculator) Available(avail, bookings []calendar.RawEvent, q Query) []AvailableSlot {
	booked := c.bookedBuckets(bookings)
	out := make([]AvailableSlot, 0, len(avail))
	for _, ev := range avail {
		if q.ProviderKey != "" && ev.OwnerKey != q.ProviderKey {
			continue
		}
		if !ev.Start.After(q.Now) {
			continue
		}
		if !q.Start.IsZero() && ev.Start.Before(q.Start) {
			continue
		}
		if !q.End.IsZero() && !ev.Start.Before(q.End) {
			continue
		}
		if _, taken := booked[bucketKey{ev.OwnerKey, c.Bucket(ev.Start)}]; taken {
			continue
		}
		out = append(out, AvailableSlot{
			ProviderKey:     ev.OwnerKey,
			ProviderName:    c.name(ev.OwnerKey),
			Start:           ev.Start,
			DurationMinutes: durationMinutes(ev, c.granularity),
			EventID:         ev.EventID,
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Start.Equal(out[j].Start) {
			return out[i].Start.Before(out[j].Start)
		}
		return out[i].ProviderKey < out[j].ProviderKey
	})
	return out
}

// Inventory counts booked and free buckets per provider over the whole input,
// without any "now" cutoff. Several markers in one bucket count once.
func (c *Calculator) Inventory(avail, bookings []calendar.RawEvent) map[string]Inventory {
	booked := c.bookedBuckets(bookings)
	free := make(map[bucketKey]struct{})
	for _, ev := range avail {
		k := bucketKey{ev.OwnerKey, c.Bucket(ev.Start)}
		if _, taken := booked[k]; !taken {
			free[k] = struct{}{}
		}
	}
	out := make(map[string]Inventory)
	for k := range booked {
		inv := out[k.provider]
		inv.Booked++
		out[k.provider] = inv
	}
	for k := range free {
		inv := out[k.provider]
		inv.Free++
		out[k.provider] = inv
	}
	return out
}

func (c *Calculator) name(key string) string {
	if n, ok := c.names[key]; ok && n != "" {
		return n
	}
	return key
}

func durationMinutes(ev calendar.RawEvent, fallback time.Duration) int {
	d := ev.Duration()
	if d <= 0 {
		d = fallback
	}
	return int(d / time.Minute)
}

package availability

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/podology-booking/internal/calendar"
)

func ev(owner, id, title string, start time.Time) calendar.RawEvent {
	return calendar.RawEvent{OwnerKey: owner, EventID: id, Title: title, Start: start, End: start.Add(30 * time.Minute)}
}

func TestAvailable_BookingConsumesBucket(t *testing.T) {
	slot := time.Date(2025, 3, 10, 10, 0, 0, 0, time.UTC)
	before := slot.Add(-time.Hour)
	c := NewCalculator(30*time.Minute, map[string]string{"silvia": "Silvia"})
	avail := []calendar.RawEvent{ev("silvia", "a1", "Ocupar", slot)}

	got := c.Available(avail, nil, Query{ProviderKey: "silvia", Now: before})
	require.Len(t, got, 1)
	assert.Equal(t, "Silvia", got[0].ProviderName)
	assert.Equal(t, 30, got[0].DurationMinutes)
	assert.Equal(t, "a1", got[0].EventID)

	booking := ev("silvia", "b1", "N: Ana Gómez T: +5491155556666", slot.Add(10*time.Minute))
	got = c.Available(avail, []calendar.RawEvent{booking}, Query{ProviderKey: "silvia", Now: before})
	assert.Empty(t, got)
}

func TestAvailable_OnlyStrictlyFuture(t *testing.T) {
	slot := time.Date(2025, 3, 10, 10, 0, 0, 0, time.UTC)
	c := NewCalculator(0, nil)
	avail := []calendar.RawEvent{ev("silvia", "a1", "Ocupar", slot)}

	assert.Empty(t, c.Available(avail, nil, Query{Now: slot}))
	assert.Len(t, c.Available(avail, nil, Query{Now: slot.Add(-time.Nanosecond)}), 1)
}

func TestAvailable_BookingAtOtherProviderDoesNotConsume(t *testing.T) {
	slot := time.Date(2025, 3, 10, 10, 0, 0, 0, time.UTC)
	c := NewCalculator(30*time.Minute, nil)
	avail := []calendar.RawEvent{ev("silvia", "a1", "Ocupar", slot)}
	bookings := []calendar.RawEvent{ev("marcos", "b1", "N: X T: 1", slot)}

	got := c.Available(avail, bookings, Query{Now: slot.Add(-time.Hour)})
	require.Len(t, got, 1)
	assert.Equal(t, "silvia", got[0].ProviderName, "falls back to the key without a configured name")
}

func TestAvailable_AdjacentBucketSurvives(t *testing.T) {
	slot := time.Date(2025, 3, 10, 10, 0, 0, 0, time.UTC)
	c := NewCalculator(30*time.Minute, nil)
	avail := []calendar.RawEvent{ev("silvia", "a1", "Ocupar", slot)}
	bookings := []calendar.RawEvent{ev("silvia", "b1", "N: X T: 1", slot.Add(30*time.Minute))}

	assert.Len(t, c.Available(avail, bookings, Query{Now: slot.Add(-time.Hour)}), 1)
}

func TestAvailable_FilterAndOrder(t *testing.T) {
	day := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	c := NewCalculator(30*time.Minute, nil)
	avail := []calendar.RawEvent{
		ev("silvia", "s2", "Ocupar", day.Add(2*time.Hour)),
		ev("marcos", "m1", "Ocupar", day.Add(time.Hour)),
		ev("silvia", "s1", "Ocupar", day.Add(time.Hour)),
		ev("silvia", "s3", "Ocupar", day.Add(5*time.Hour)),
	}
	now := day.Add(-time.Hour)

	all := c.Available(avail, nil, Query{Now: now})
	require.Len(t, all, 4)
	assert.Equal(t, []string{"m1", "s1", "s2", "s3"}, ids(all))

	window := c.Available(avail, nil, Query{ProviderKey: "silvia", Start: day.Add(90 * time.Minute), End: day.Add(5 * time.Hour), Now: now})
	assert.Equal(t, []string{"s2"}, ids(window))
}

func TestInventory(t *testing.T) {
	day := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	c := NewCalculator(30*time.Minute, nil)
	avail := []calendar.RawEvent{
		ev("silvia", "a1", "Ocupar", day),
		ev("silvia", "a2", "Ocupar", day.Add(30*time.Minute)),
		ev("silvia", "a3", "Ocupar", day.Add(time.Hour)),
		ev("silvia", "a3b", "Ocupar", day.Add(time.Hour+5*time.Minute)),
	}
	bookings := []calendar.RawEvent{
		ev("silvia", "b1", "N: A T: 1", day),
		ev("marcos", "b2", "N: B T: 2", day),
	}
	inv := c.Inventory(avail, bookings)
	assert.Equal(t, Inventory{Booked: 1, Free: 2}, inv["silvia"])
	assert.Equal(t, Inventory{Booked: 1}, inv["marcos"])
	assert.InDelta(t, 1.0/3.0, inv["silvia"].Occupancy(), 1e-9)
	assert.Zero(t, Inventory{}.Occupancy())
}

func TestBucket_UsesUTC(t *testing.T) {
	c := NewCalculator(30*time.Minute, nil)
	loc := time.FixedZone("ART", -3*3600)
	local := time.Date(2025, 3, 10, 7, 44, 0, 0, loc)
	assert.Equal(t, time.Date(2025, 3, 10, 10, 30, 0, 0, time.UTC), c.Bucket(local))
}

func ids(slots []AvailableSlot) []string {
	out := make([]string, len(slots))
	for i, s := range slots {
		out[i] = s.EventID
	}
	return out
}

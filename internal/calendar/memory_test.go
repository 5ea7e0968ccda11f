package calendar

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemorySource_FiltersWindowAndSorts(t *testing.T) {
	base := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	src := NewMemorySource()
	src.Add("silvia",
		RawEvent{Title: "late", Start: base.Add(3 * time.Hour)},
		RawEvent{Title: "early", Start: base.Add(time.Hour)},
		RawEvent{Title: "outside", Start: base.Add(48 * time.Hour)},
	)

	events, err := src.ListEvents(context.Background(), "silvia", base, base.Add(24*time.Hour))
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "early", events[0].Title)
	assert.Equal(t, "silvia", events[0].OwnerKey)
	assert.NotEmpty(t, events[0].EventID)
}

func TestMemorySource_FailureIsSourceUnavailable(t *testing.T) {
	src := NewMemorySource()
	src.FailWith("marcos", errors.New("quota exceeded"))

	_, err := src.ListEvents(context.Background(), "marcos", time.Time{}, time.Time{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSourceUnavailable)

	var srcErr *SourceError
	require.ErrorAs(t, err, &srcErr)
	assert.Equal(t, "marcos", srcErr.Provider)
}

func TestMemorySource_DelayHonoursContext(t *testing.T) {
	src := NewMemorySource()
	src.Delay("slow", time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := src.ListEvents(ctx, "slow", time.Time{}, time.Time{})
	assert.ErrorIs(t, err, ErrSourceUnavailable)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestMultiSource_UnknownOwner(t *testing.T) {
	mem := NewMemorySource()
	mem.Add("silvia", RawEvent{Title: "Ocupar", Start: time.Now()})
	multi := NewMultiSource(map[string]Source{"silvia": mem, "nil": nil})

	events, err := multi.ListEvents(context.Background(), "silvia", time.Time{}, time.Time{})
	require.NoError(t, err)
	assert.Len(t, events, 1)

	_, err = multi.ListEvents(context.Background(), "nil", time.Time{}, time.Time{})
	assert.ErrorIs(t, err, ErrSourceUnavailable)
}

func TestRawEventDuration(t *testing.T) {
	start := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)
	assert.Equal(t, 30*time.Minute, RawEvent{Start: start, End: start.Add(30 * time.Minute)}.Duration())
	assert.Zero(t, RawEvent{Start: start}.Duration())
	assert.Zero(t, RawEvent{Start: start, End: start.Add(-time.Minute)}.Duration())
}

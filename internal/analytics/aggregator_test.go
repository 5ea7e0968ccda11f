package analytics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/podology-booking/internal/availability"
	"github.com/wolfman30/podology-booking/internal/patients"
)

func at(month time.Month, day, hour int) time.Time {
	return time.Date(2025, month, day, hour, 0, 0, 0, time.UTC)
}

func record(id, name, provider string, starts ...time.Time) patients.PatientRecord {
	rec := patients.PatientRecord{PatientID: id, DisplayName: name}
	// most recent first
	for i := len(starts) - 1; i >= 0; i-- {
		rec.Appointments = append(rec.Appointments, patients.AppointmentRecord{
			EventID: id + "-" + starts[i].Format("0102"), ProviderKey: provider, Start: starts[i], End: starts[i].Add(30 * time.Minute),
		})
	}
	return rec
}

func newAggregator(t *testing.T) *Aggregator {
	t.Helper()
	agg, err := NewAggregator(DefaultLoyaltyPolicy(), 5, time.UTC)
	require.NoError(t, err)
	return agg
}

func TestAggregate(t *testing.T) {
	agg := newAggregator(t)
	in := Input{
		Patients: []patients.PatientRecord{
			record("ana|+5491155556666", "Ana", "silvia", at(2, 3, 10), at(3, 3, 10), at(3, 10, 11)),
			record("luis|+5491133334444", "Luis", "marcos", at(3, 5, 10)),
			{PatientID: "old", DisplayName: "Old", Appointments: []patients.AppointmentRecord{
				{EventID: "o1", ProviderKey: "silvia", Start: time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)},
			}},
		},
		Inventory: map[string]availability.Inventory{
			"silvia": {Booked: 3, Free: 1},
			"marcos": {Booked: 1, Free: 3},
		},
		ProviderNames: map[string]string{"silvia": "Silvia", "marcos": "Marcos"},
		RawTotals:     map[string]int{"booking": 5, "availability": 4},
		Now:           at(3, 31, 12),
	}
	period := Period{Start: at(2, 1, 0), End: at(4, 1, 0)}

	k, err := agg.Aggregate(in, period)
	require.NoError(t, err)

	assert.Equal(t, 2, k.TotalPatients)
	assert.Equal(t, 2, k.ActivePatients)
	assert.Equal(t, 4, k.TotalAppointments)
	assert.Equal(t, 50.0, k.ReturningPatientRate)
	assert.Equal(t, 2.0, k.AverageVisitsPerPatient)
	assert.Equal(t, []MonthBucket{
		{Month: "2025-02", Appointments: 1, NewPatients: 1},
		{Month: "2025-03", Appointments: 3, NewPatients: 1},
	}, k.MonthlyTrend)
	assert.Equal(t, 0.0, k.GrowthRate)

	require.Len(t, k.PeakHours, 2)
	assert.Equal(t, HistogramBucket{Label: "10:00", Value: 10, Count: 3}, k.PeakHours[0])
	require.Len(t, k.PeakDays, 2)
	assert.Equal(t, "Monday", k.PeakDays[0].Label)
	assert.Equal(t, 3, k.PeakDays[0].Count)

	require.Len(t, k.TopProviders, 2)
	assert.Equal(t, ProviderCount{ProviderKey: "silvia", ProviderName: "Silvia", Appointments: 3}, k.TopProviders[0])

	require.Len(t, k.Occupancy, 2)
	assert.Equal(t, "marcos", k.Occupancy[0].ProviderKey)
	assert.Equal(t, 25.0, k.Occupancy[0].Rate)
	assert.Equal(t, 75.0, k.Occupancy[1].Rate)

	require.Len(t, k.TopPatients, 2)
	assert.Equal(t, "Ana", k.TopPatients[0].DisplayName)
	assert.Equal(t, TierRegular, k.TopPatients[0].Tier)
	assert.Equal(t, map[Tier]int{TierNew: 1, TierRegular: 1, TierVIP: 0, TierPlatinum: 0}, k.TierDistribution)
	assert.Equal(t, 5, k.RawEventTotals["booking"])
}

func TestAggregate_InactivePatientNotActive(t *testing.T) {
	agg := newAggregator(t)
	now := at(12, 1, 12)
	in := Input{
		Patients: []patients.PatientRecord{record("rosa", "Rosa", "silvia", now.AddDate(0, 0, -200))},
		Now:      now,
	}
	k, err := agg.Aggregate(in, DefaultPeriod(now, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, 1, k.TotalPatients)
	assert.Equal(t, 0, k.ActivePatients)
	assert.False(t, k.Patients[0].Active)
}

func TestAggregate_FutureBookingsAreNotVisits(t *testing.T) {
	agg := newAggregator(t)
	now := at(3, 15, 12)
	in := Input{
		Patients: []patients.PatientRecord{
			record("eva", "Eva", "silvia", at(3, 20, 10), at(3, 25, 10), at(3, 28, 10)),
			record("rosa", "Rosa", "silvia", at(3, 1, 10), at(3, 22, 10)),
		},
		Now: now,
	}
	k, err := agg.Aggregate(in, Period{Start: at(3, 1, 0), End: at(4, 1, 0)})
	require.NoError(t, err)

	assert.Equal(t, 5, k.TotalAppointments, "scheduled bookings still count as appointments")
	assert.Equal(t, 1, k.ActivePatients)
	require.Len(t, k.Patients, 2)
	eva, rosa := k.Patients[0], k.Patients[1]
	assert.False(t, eva.Active)
	assert.Equal(t, 0, eva.TotalVisits)
	assert.Equal(t, TierNew, eva.Tier)
	assert.True(t, rosa.Active)
	assert.Equal(t, 1, rosa.TotalVisits)
}

func TestAggregate_TopNBound(t *testing.T) {
	agg, err := NewAggregator(DefaultLoyaltyPolicy(), 2, time.UTC)
	require.NoError(t, err)
	in := Input{Now: at(3, 31, 0)}
	for _, id := range []string{"a", "b", "c", "d"} {
		in.Patients = append(in.Patients, record(id, id, "p-"+id, at(3, 2, 9)))
	}
	k, err := agg.Aggregate(in, Period{Start: at(3, 1, 0), End: at(4, 1, 0)})
	require.NoError(t, err)
	assert.Len(t, k.TopPatients, 2)
	assert.Len(t, k.TopProviders, 2)
	assert.Len(t, k.Patients, 4)
	assert.Equal(t, "a", k.TopPatients[0].PatientID)
}

func TestAggregate_InvalidPeriod(t *testing.T) {
	agg := newAggregator(t)
	_, err := agg.Aggregate(Input{}, Period{Start: at(3, 1, 0), End: at(3, 1, 0)})
	assert.ErrorIs(t, err, ErrInvalidPeriod)
}

func TestAggregate_Empty(t *testing.T) {
	agg := newAggregator(t)
	k, err := agg.Aggregate(Input{Now: at(3, 15, 0)}, DefaultPeriod(at(3, 15, 0), time.UTC))
	require.NoError(t, err)
	assert.Zero(t, k.TotalPatients)
	assert.Zero(t, k.ReturningPatientRate)
	assert.Len(t, k.MonthlyTrend, 12)
	assert.Empty(t, k.PeakHours)
}

func TestGrowthRate(t *testing.T) {
	cases := []struct {
		prev, cur int
		want      float64
	}{
		{0, 0, 0},
		{0, 3, 100},
		{2, 3, 50},
		{4, 2, -50},
		{3, 1, -66.67},
	}
	for _, tc := range cases {
		got := growthRate([]MonthBucket{{NewPatients: tc.prev}, {NewPatients: tc.cur}})
		assert.Equal(t, tc.want, got, "prev=%d cur=%d", tc.prev, tc.cur)
	}
	assert.Zero(t, growthRate(nil))
}

func TestLoyaltyTierMonotonic(t *testing.T) {
	p := DefaultLoyaltyPolicy()
	rank := map[Tier]int{TierNew: 0, TierRegular: 1, TierVIP: 2, TierPlatinum: 3}
	prev := -1
	for visits := 0; visits <= 30; visits++ {
		r := rank[p.Tier(visits)]
		assert.GreaterOrEqual(t, r, prev, "visits=%d", visits)
		prev = r
	}
	assert.Equal(t, TierNew, p.Tier(2))
	assert.Equal(t, TierRegular, p.Tier(3))
	assert.Equal(t, TierVIP, p.Tier(6))
	assert.Equal(t, TierPlatinum, p.Tier(12))
}

func TestLoyaltyPolicyValidate(t *testing.T) {
	assert.NoError(t, DefaultLoyaltyPolicy().Validate())
	bad := LoyaltyPolicy{Regular: 5, VIP: 3, Platinum: 10, InactivityWindow: time.Hour}
	assert.Error(t, bad.Validate())
	zero := LoyaltyPolicy{Regular: 0, VIP: 1, Platinum: 2, InactivityWindow: time.Hour}
	assert.Error(t, zero.Validate())
	noWindow := LoyaltyPolicy{Regular: 1, VIP: 2, Platinum: 3}
	assert.Error(t, noWindow.Validate())

	_, err := NewAggregator(bad, 5, nil)
	assert.Error(t, err)
}

func TestDefaultPeriod(t *testing.T) {
	p := DefaultPeriod(time.Date(2025, 3, 15, 8, 0, 0, 0, time.UTC), time.UTC)
	assert.Equal(t, time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC), p.Start)
	assert.Equal(t, time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC), p.End)
	assert.NoError(t, p.Validate())
	assert.True(t, p.Contains(p.Start))
	assert.False(t, p.Contains(p.End))
}

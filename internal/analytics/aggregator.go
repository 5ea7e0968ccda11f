// Package analytics turns a resolved patient directory and the provider
// inventories into the dashboard KPI snapshot.
package analytics

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/wolfman30/podology-booking/internal/availability"
	"github.com/wolfman30/podology-booking/internal/patients"
)

// DefaultTopN bounds the provider and patient rankings.
const DefaultTopN = 5

// Input is everything one aggregation reads. Nothing in it is mutated.
type Input struct {
	Patients      []patients.PatientRecord
	Inventory     map[string]availability.Inventory
	ProviderNames map[string]string
	RawTotals     map[string]int
	Now           time.Time
}

// Aggregator computes KPIs. It is safe for concurrent use.
type Aggregator struct {
	policy LoyaltyPolicy
	topN   int
	loc    *time.Location
}

// NewAggregator validates the policy. Histograms and month buckets are
// computed in loc, the clinic's wall-clock zone.
func NewAggregator(policy LoyaltyPolicy, topN int, loc *time.Location) (*Aggregator, error) {
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	if topN <= 0 {
		topN = DefaultTopN
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Aggregator{policy: policy, topN: topN, loc: loc}, nil
}

// Location returns the aggregation time zone.
func (a *Aggregator) Location() *time.Location { return a.loc }

// Policy returns the loyalty policy.
func (a *Aggregator) Policy() LoyaltyPolicy { return a.policy }

// Aggregate computes the snapshot for period. Appointment-level figures only
// count appointments inside the period; tiers and activity use each patient's
// full history up to Now, so bookings still in the future do not count.
func (a *Aggregator) Aggregate(in Input, period Period) (*KPIs, error) {
	if err := period.Validate(); err != nil {
		return nil, err
	}
	now := in.Now
	if now.IsZero() {
		now = time.Now()
	}

	k := &KPIs{
		Period:           period,
		GeneratedAt:      now.UTC(),
		TierDistribution: make(map[Tier]int, 4),
		RawEventTotals:   make(map[string]int, len(in.RawTotals)),
	}
	for _, t := range Tiers() {
		k.TierDistribution[t] = 0
	}
	for kind, n := range in.RawTotals {
		k.RawEventTotals[kind] = n
	}

	months := monthKeys(period, a.loc)
	trend := make(map[string]*MonthBucket, len(months))
	for _, m := range months {
		trend[m] = &MonthBucket{Month: m}
	}
	hours := make([]int, 24)
	days := make([]int, 7)
	providerCounts := make(map[string]int)
	activeSince := now.Add(-a.policy.InactivityWindow)
	returning := 0

	for _, rec := range in.Patients {
		if first := rec.FirstVisit(); !first.IsZero() && period.Contains(first) {
			if b, ok := trend[monthKey(first, a.loc)]; ok {
				b.NewPatients++
			}
		}

		visits := 0
		attended := 0
		active := false
		for _, appt := range rec.Appointments {
			// scheduled bookings are not visits until they happen
			if !appt.Start.After(now) {
				attended++
				if !appt.Start.Before(activeSince) {
					active = true
				}
			}
			if !period.Contains(appt.Start) {
				continue
			}
			visits++
			local := appt.Start.In(a.loc)
			hours[local.Hour()]++
			days[int(local.Weekday())]++
			providerCounts[appt.ProviderKey]++
			if b, ok := trend[monthKey(appt.Start, a.loc)]; ok {
				b.Appointments++
			}
		}
		if visits == 0 {
			continue
		}

		tier := a.policy.Tier(attended)
		k.TotalPatients++
		k.TotalAppointments += visits
		k.TierDistribution[tier]++
		if active {
			k.ActivePatients++
		}
		if visits > 1 {
			returning++
		}
		k.Patients = append(k.Patients, PatientSummary{
			PatientID:   rec.PatientID,
			DisplayName: rec.DisplayName,
			Visits:      visits,
			TotalVisits: attended,
			Tier:        tier,
			Active:      active,
			LastVisit:   rec.LastVisit(),
		})
	}

	if k.TotalPatients > 0 {
		k.ReturningPatientRate = round2(float64(returning) / float64(k.TotalPatients) * 100)
		k.AverageVisitsPerPatient = round2(float64(k.TotalAppointments) / float64(k.TotalPatients))
	}

	k.MonthlyTrend = make([]MonthBucket, 0, len(months))
	for _, m := range months {
		k.MonthlyTrend = append(k.MonthlyTrend, *trend[m])
	}
	k.GrowthRate = growthRate(k.MonthlyTrend)
	k.PeakHours = histogram(hours, func(i int) string { return fmt.Sprintf("%02d:00", i) })
	k.PeakDays = histogram(days, func(i int) string { return time.Weekday(i).String() })
	k.Occupancy = occupancy(in.Inventory, in.ProviderNames)
	k.TopProviders = a.topProviders(providerCounts, in.ProviderNames)

	sort.SliceStable(k.Patients, func(i, j int) bool { return k.Patients[i].PatientID < k.Patients[j].PatientID })
	ranked := append([]PatientSummary(nil), k.Patients...)
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].Visits > ranked[j].Visits })
	if len(ranked) > a.topN {
		ranked = ranked[:a.topN]
	}
	k.TopPatients = ranked
	return k, nil
}

// growthRate compares new patients of the last month bucket to the one before.
func growthRate(trend []MonthBucket) float64 {
	if len(trend) < 2 {
		return 0
	}
	cur := trend[len(trend)-1].NewPatients
	prev := trend[len(trend)-2].NewPatients
	switch {
	case prev == 0 && cur == 0:
		return 0
	case prev == 0:
		return 100
	default:
		return round2(float64(cur-prev) / float64(prev) * 100)
	}
}

func histogram(counts []int, label func(int) string) []HistogramBucket {
	out := make([]HistogramBucket, 0, len(counts))
	for i, n := range counts {
		if n == 0 {
			continue
		}
		out = append(out, HistogramBucket{Label: label(i), Value: i, Count: n})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Value < out[j].Value
	})
	return out
}

func occupancy(inv map[string]availability.Inventory, names map[string]string) []ProviderOccupancy {
	out := make([]ProviderOccupancy, 0, len(inv))
	for key, i := range inv {
		out = append(out, ProviderOccupancy{
			ProviderKey:  key,
			ProviderName: nameOf(names, key),
			Booked:       i.Booked,
			Free:         i.Free,
			Rate:         round2(i.Occupancy() * 100),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ProviderKey < out[j].ProviderKey })
	return out
}

func (a *Aggregator) topProviders(counts map[string]int, names map[string]string) []ProviderCount {
	out := make([]ProviderCount, 0, len(counts))
	for key, n := range counts {
		out = append(out, ProviderCount{ProviderKey: key, ProviderName: nameOf(names, key), Appointments: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Appointments != out[j].Appointments {
			return out[i].Appointments > out[j].Appointments
		}
		return out[i].ProviderKey < out[j].ProviderKey
	})
	if len(out) > a.topN {
		out = out[:a.topN]
	}
	return out
}

func monthKeys(p Period, loc *time.Location) []string {
	start := p.Start.In(loc)
	cur := time.Date(start.Year(), start.Month(), 1, 0, 0, 0, 0, loc)
	var out []string
	for cur.Before(p.End) {
		out = append(out, cur.Format("2006-01"))
		cur = cur.AddDate(0, 1, 0)
	}
	return out
}

func monthKey(t time.Time, loc *time.Location) string {
	return t.In(loc).Format("2006-01")
}

func nameOf(names map[string]string, key string) string {
	if n, ok := names[key]; ok && n != "" {
		return n
	}
	return key
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

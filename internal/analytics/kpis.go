package analytics

import (
	"errors"
	"time"
)

// ErrInvalidPeriod is returned for an empty or inverted period.
var ErrInvalidPeriod = errors.New("analytics: period end must be after start")

// Period is the half-open reporting window [Start, End).
type Period struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// DefaultPeriod covers the 12 calendar months ending with the month of ref,
// evaluated in loc.
func DefaultPeriod(ref time.Time, loc *time.Location) Period {
	if loc == nil {
		loc = time.UTC
	}
	ref = ref.In(loc)
	end := time.Date(ref.Year(), ref.Month()+1, 1, 0, 0, 0, 0, loc)
	return Period{Start: end.AddDate(0, -12, 0), End: end}
}

// Validate reports ErrInvalidPeriod when End is not after Start.
func (p Period) Validate() error {
	if p.Start.IsZero() || p.End.IsZero() || !p.End.After(p.Start) {
		return ErrInvalidPeriod
	}
	return nil
}

// Contains reports whether t falls inside the period.
func (p Period) Contains(t time.Time) bool {
	return !t.Before(p.Start) && t.Before(p.End)
}

// MonthBucket is one point of the monthly trend.
type MonthBucket struct {
	Month        string `json:"month"` // yyyy-mm
	Appointments int    `json:"appointments"`
	NewPatients  int    `json:"new_patients"`
}

// HistogramBucket counts appointments for one hour of day or day of week.
type HistogramBucket struct {
	Label string `json:"label"`
	Value int    `json:"value"`
	Count int    `json:"count"`
}

// ProviderOccupancy is booked / (booked + free) buckets for one provider.
type ProviderOccupancy struct {
	ProviderKey  string  `json:"provider_key"`
	ProviderName string  `json:"provider_name"`
	Booked       int     `json:"booked"`
	Free         int     `json:"free"`
	Rate         float64 `json:"rate"`
}

// ProviderCount ranks providers by appointments.
type ProviderCount struct {
	ProviderKey  string `json:"provider_key"`
	ProviderName string `json:"provider_name"`
	Appointments int    `json:"appointments"`
}

// PatientSummary ranks and classifies one patient.
type PatientSummary struct {
	PatientID   string    `json:"patient_id"`
	DisplayName string    `json:"display_name"`
	Visits      int       `json:"visits"`
	TotalVisits int       `json:"total_visits"`
	Tier        Tier      `json:"tier"`
	Active      bool      `json:"active"`
	LastVisit   time.Time `json:"last_visit"`
}

// KPIs is the dashboard snapshot.
type KPIs struct {
	Period                  Period              `json:"period"`
	GeneratedAt             time.Time           `json:"generated_at"`
	TotalPatients           int                 `json:"total_patients"`
	ActivePatients          int                 `json:"active_patients"`
	TotalAppointments       int                 `json:"total_appointments"`
	ReturningPatientRate    float64             `json:"returning_patient_rate"`
	AverageVisitsPerPatient float64             `json:"average_visits_per_patient"`
	GrowthRate              float64             `json:"growth_rate"`
	MonthlyTrend            []MonthBucket       `json:"monthly_trend"`
	PeakHours               []HistogramBucket   `json:"peak_hours"`
	PeakDays                []HistogramBucket   `json:"peak_days"`
	Occupancy               []ProviderOccupancy `json:"occupancy"`
	TopProviders            []ProviderCount     `json:"top_providers"`
	TopPatients             []PatientSummary    `json:"top_patients"`
	Patients                []PatientSummary    `json:"patients"`
	TierDistribution        map[Tier]int        `json:"tier_distribution"`
	RawEventTotals          map[string]int      `json:"raw_event_totals"`
}

// Package patients folds canonical booking identities into patient records.
package patients

import (
	"time"

	"github.com/wolfman30/podology-booking/internal/identity"
)

// BookingTuple is one parsed booking event with its canonical identity.
type BookingTuple struct {
	Identity     identity.CanonicalIdentity
	OwnerKey     string
	ProviderName string
	EventID      string
	Title        string
	Start        time.Time
	End          time.Time
}

// AppointmentRecord is a booking as seen from the patient side.
type AppointmentRecord struct {
	EventID      string    `json:"event_id"`
	ProviderKey  string    `json:"provider_key"`
	ProviderName string    `json:"provider_name"`
	Title        string    `json:"title"`
	Start        time.Time `json:"start"`
	End          time.Time `json:"end"`
}

// PatientRecord aggregates every appointment merged onto one identity.
// Appointments are ordered most recent first.
type PatientRecord struct {
	PatientID    string              `json:"patient_id"`
	DisplayName  string              `json:"display_name"`
	Phone        string              `json:"phone"`
	Appointments []AppointmentRecord `json:"appointments"`
}

// Visits returns the appointment count.
func (p PatientRecord) Visits() int { return len(p.Appointments) }

// LastVisit is the start of the most recent appointment.
func (p PatientRecord) LastVisit() time.Time {
	if len(p.Appointments) == 0 {
		return time.Time{}
	}
	return p.Appointments[0].Start
}

// FirstVisit is the start of the earliest appointment.
func (p PatientRecord) FirstVisit() time.Time {
	if len(p.Appointments) == 0 {
		return time.Time{}
	}
	return p.Appointments[len(p.Appointments)-1].Start
}

// LookupOutcome is the tri-state answer to "is this phone a known patient".
type LookupOutcome string

const (
	OutcomeFound    LookupOutcome = "found"
	OutcomeNotFound LookupOutcome = "not_found"
	// OutcomeUnknown means no calendar could be read, so absence proves nothing.
	OutcomeUnknown LookupOutcome = "unknown"
)

// PhoneLookup is the result of resolving a raw phone against the directory.
type PhoneLookup struct {
	Outcome     LookupOutcome `json:"outcome"`
	Phone       string        `json:"phone"`
	PatientID   string        `json:"patient_id,omitempty"`
	DisplayName string        `json:"display_name,omitempty"`
}

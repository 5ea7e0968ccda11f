package flows

import (
	"context"
	"fmt"
	"time"

	"github.com/wolfman30/podology-booking/internal/availability"
	"github.com/wolfman30/podology-booking/internal/patients"
)

// Backend is the part of the bookings service the dialogue may call.
type Backend interface {
	ResolvePatientByPhone(ctx context.Context, phone string) (patients.PhoneLookup, error)
	GetAvailableSlots(ctx context.Context, providerKey string, start, end *time.Time) ([]availability.AvailableSlot, error)
	GetPatientAppointmentHistory(ctx context.Context, patientID string) ([]patients.AppointmentRecord, error)
}

// Result is the typed reply to one action. Exactly one field besides Type is set.
type Result struct {
	Type         ActionType                   `json:"type"`
	Patient      *patients.PhoneLookup        `json:"patient,omitempty"`
	Slots        []availability.AvailableSlot `json:"slots,omitempty"`
	Appointments []patients.AppointmentRecord `json:"appointments,omitempty"`
}

// Dispatcher routes decoded actions to the backend.
type Dispatcher struct {
	backend Backend
}

// NewDispatcher wraps backend.
func NewDispatcher(backend Backend) *Dispatcher {
	if backend == nil {
		panic("flows: backend required")
	}
	return &Dispatcher{backend: backend}
}

// Dispatch executes a.
func (d *Dispatcher) Dispatch(ctx context.Context, a Action) (*Result, error) {
	switch act := a.(type) {
	case CheckPatient:
		lookup, err := d.backend.ResolvePatientByPhone(ctx, act.Phone)
		if err != nil {
			return nil, err
		}
		return &Result{Type: act.Type(), Patient: &lookup}, nil
	case ListSlots:
		slots, err := d.backend.GetAvailableSlots(ctx, act.Provider, act.Start, act.End)
		if err != nil {
			return nil, err
		}
		return &Result{Type: act.Type(), Slots: slots}, nil
	case PatientHistory:
		appts, err := d.backend.GetPatientAppointmentHistory(ctx, act.PatientID)
		if err != nil {
			return nil, err
		}
		return &Result{Type: act.Type(), Appointments: appts}, nil
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnknownAction, a)
	}
}

package patients

import (
	"sort"

	"github.com/wolfman30/podology-booking/internal/identity"
)

// Directory is the immutable result of one Resolve call.
type Directory struct {
	normalizer *identity.Normalizer
	records    map[string]*PatientRecord
	byMergeKey map[string]string
	byPhone    map[string]string
}

func newDirectory(n *identity.Normalizer) *Directory {
	return &Directory{
		normalizer: n,
		records:    make(map[string]*PatientRecord),
		byMergeKey: make(map[string]string),
		byPhone:    make(map[string]string),
	}
}

// Len reports the number of distinct patients.
func (d *Directory) Len() int { return len(d.records) }

// Get returns a copy of the record for id.
func (d *Directory) Get(id string) (PatientRecord, bool) {
	rec, ok := d.records[id]
	if !ok {
		return PatientRecord{}, false
	}
	return clone(rec), true
}

// History returns the appointments of a patient, most recent first.
func (d *Directory) History(id string) ([]AppointmentRecord, error) {
	rec, ok := d.records[id]
	if !ok {
		return nil, ErrPatientNotFound
	}
	return clone(rec).Appointments, nil
}

// Patients lists every record ordered by patient id.
func (d *Directory) Patients() []PatientRecord {
	out := make([]PatientRecord, 0, len(d.records))
	for _, rec := range d.records {
		out = append(out, clone(rec))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PatientID < out[j].PatientID })
	return out
}

// LookupPhone normalizes raw and reports whether it belongs to a known
// patient. It never returns OutcomeUnknown; that outcome belongs to callers
// that could not build a directory at all.
func (d *Directory) LookupPhone(raw string) PhoneLookup {
	phone := d.normalizer.NormalizePhone(raw)
	if phone == "" {
		return PhoneLookup{Outcome: OutcomeNotFound}
	}
	id, ok := d.byPhone[phone]
	if !ok {
		return PhoneLookup{Outcome: OutcomeNotFound, Phone: phone}
	}
	rec := d.records[id]
	return PhoneLookup{
		Outcome:     OutcomeFound,
		Phone:       phone,
		PatientID:   id,
		DisplayName: rec.DisplayName,
	}
}

func clone(rec *PatientRecord) PatientRecord {
	out := *rec
	out.Appointments = append([]AppointmentRecord(nil), rec.Appointments...)
	return out
}

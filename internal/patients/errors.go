package patients

import "errors"

var (
	// ErrPatientNotFound is returned when a patient id is unknown to the directory.
	ErrPatientNotFound = errors.New("patients: patient not found")

	// ErrIdentityConflict is returned when one patient id would map to two
	// different canonical phones.
	ErrIdentityConflict = errors.New("patients: identity conflict")
)

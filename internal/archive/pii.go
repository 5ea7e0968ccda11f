package archive

import (
	"crypto/sha256"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/wolfman30/podology-booking/internal/analytics"
)

// HashPhone returns the hex-encoded SHA-256 hash of a phone number.
func HashPhone(phone string) string {
	h := sha256.Sum256([]byte(phone))
	return fmt.Sprintf("%x", h)
}

// Initials shortens a display name to "A. G.".
func Initials(name string) string {
	parts := strings.Fields(name)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		r, _ := utf8.DecodeRuneInString(p)
		out = append(out, string(r)+".")
	}
	return strings.Join(out, " ")
}

// RedactSnapshot returns a copy of k whose patient rows carry a hashed id and
// initials only. Aggregate figures are untouched.
func RedactSnapshot(k *analytics.KPIs) *analytics.KPIs {
	out := *k
	out.Patients = redactPatients(k.Patients)
	out.TopPatients = redactPatients(k.TopPatients)
	return &out
}

func redactPatients(in []analytics.PatientSummary) []analytics.PatientSummary {
	if in == nil {
		return nil
	}
	out := make([]analytics.PatientSummary, len(in))
	for i, p := range in {
		p.PatientID = "p_" + HashPhone(p.PatientID)[:16]
		p.DisplayName = Initials(p.DisplayName)
		out[i] = p
	}
	return out
}

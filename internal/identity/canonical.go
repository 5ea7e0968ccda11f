package identity

import (
	"strings"

	"github.com/wolfman30/podology-booking/internal/markers"
)

// CanonicalIdentity is the normalized (name, phone) pair of one booking.
type CanonicalIdentity struct {
	DisplayName string
	NameKey     string
	Phone       string
}

// PatientID derives the stable patient identifier. The phone is the
// authoritative part; when it is empty the id falls back to the name key.
func (ci CanonicalIdentity) PatientID() string {
	if ci.Phone == "" {
		return ci.NameKey
	}
	return ci.NameKey + "|" + ci.Phone
}

// MergeKey is the key patients are merged on.
func (ci CanonicalIdentity) MergeKey() string {
	if ci.Phone == "" {
		return "name:" + ci.NameKey
	}
	return "phone:" + ci.Phone
}

// Normalizer turns parsed identities into canonical ones.
type Normalizer struct {
	phones *PhoneNormalizer
}

// NewNormalizer builds a Normalizer for the given phone plan.
func NewNormalizer(plan PhonePlan) *Normalizer {
	return &Normalizer{phones: NewPhoneNormalizer(plan)}
}

// NormalizePhone exposes the phone rules for lookups by raw phone.
func (n *Normalizer) NormalizePhone(raw string) string {
	return n.phones.Normalize(raw)
}

// Canonicalize normalizes both captures of a parsed booking title.
func (n *Normalizer) Canonicalize(p markers.ParsedIdentity) CanonicalIdentity {
	name := NormalizeName(p.RawName)
	return CanonicalIdentity{
		DisplayName: name.Display,
		NameKey:     name.Key,
		Phone:       n.phones.Normalize(strings.TrimSpace(p.RawPhone)),
	}
}

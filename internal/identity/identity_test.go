package identity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/podology-booking/internal/markers"
)

func TestNormalizeName(t *testing.T) {
	cases := []struct {
		raw     string
		display string
		key     string
	}{
		{"juan pérez", "Juan Pérez", "juan perez"},
		{"  JUAN   PÉREZ  ", "Juan Pérez", "juan perez"},
		{"- maría josé gómez.", "María José Gómez", "maria jose gomez"},
		{"Ñandú\tLópez", "Ñandú López", "nandu lopez"},
		{"", "", ""},
		{"...", "", ""},
	}
	for _, tc := range cases {
		t.Run(tc.raw, func(t *testing.T) {
			got := NormalizeName(tc.raw)
			assert.Equal(t, tc.display, got.Display)
			assert.Equal(t, tc.key, got.Key)
		})
	}
}

func TestNormalizeName_Idempotent(t *testing.T) {
	for _, raw := range []string{"juan pérez", "  ANA   maría ", "o'brien", "x"} {
		once := NormalizeName(raw)
		twice := NormalizeName(once.Display)
		assert.Equal(t, once, twice, raw)
	}
}

func TestNormalizePhone_Rules(t *testing.T) {
	n := NewPhoneNormalizer(DefaultPhonePlan())
	cases := []struct {
		raw  string
		want string
		rule string
	}{
		{"011 4444 5555", "+5491144445555", "trunk+subscriber"},
		{"11 4444 5555", "+5491144445555", "subscriber"},
		{"91155556666", "+5491155556666", "mobile+subscriber"},
		{"011 15 4444 5555", "+5491144445555", "trunk+area+15"},
		{"11 15 4444-5555", "+5491144445555", "area+15"},
		{"54 011 4444 5555", "+5491144445555", "country+trunk+subscriber"},
		{"+54 11 4444 5555", "+5491144445555", "country+subscriber"},
		{"+54 9 11 5555-6666", "+5491155556666", "country+mobile"},
		{"+1 (415) 555-0100", "+14155550100", "international"},
		{"4444-5555", "+44445555", "fallback"},
		{"sin teléfono", "", "empty"},
		{"", "", "empty"},
	}
	for _, tc := range cases {
		t.Run(tc.raw, func(t *testing.T) {
			got, rule := n.NormalizeWithRule(tc.raw)
			assert.Equal(t, tc.want, got)
			assert.Equal(t, tc.rule, rule)
		})
	}
}

func TestNormalizePhone_Idempotent(t *testing.T) {
	n := NewPhoneNormalizer(DefaultPhonePlan())
	inputs := []string{
		"011 4444 5555", "1144445555", "91155556666", "0111544445555", "111544445555",
		"5401144445555", "541144445555", "5491144445555", "+1 415 555 0100", "12345",
		"0", "9", "54", "549", "+", "(011) 15-4444-5555", "+54 9 351 555 1234",
	}
	for _, raw := range inputs {
		once := n.Normalize(raw)
		assert.Equal(t, once, n.Normalize(once), raw)
	}
}

func TestNormalizePhone_AreaCodes(t *testing.T) {
	n := NewPhoneNormalizer(PhonePlan{AreaCodes: []string{"11", "351"}})
	assert.Equal(t, "+5493515551234", n.Normalize("0351 555 1234"))
	assert.Equal(t, "+5493515551234", n.Normalize("0351 15 555 1234"))
	assert.Equal(t, "+5491144445555", n.Normalize("11 4444 5555"))
}

func TestCanonicalize_MergesSpellings(t *testing.T) {
	c := markers.MustClassifier(markers.DefaultRules())
	n := NewNormalizer(DefaultPhonePlan())

	a, ok := c.Parse("N: Juan Pérez T: 11 4444 5555")
	require.True(t, ok)
	b, ok := c.Parse("N: juan perez T: 01144445555")
	require.True(t, ok)

	ca, cb := n.Canonicalize(a), n.Canonicalize(b)
	assert.Equal(t, "+5491144445555", ca.Phone)
	assert.Equal(t, ca.Phone, cb.Phone)
	assert.Equal(t, ca.NameKey, cb.NameKey)
	assert.Equal(t, ca.PatientID(), cb.PatientID())
	assert.Equal(t, "Juan Pérez", ca.DisplayName)
	assert.Equal(t, "Juan Perez", cb.DisplayName)
}

func TestCanonicalize_MobilePrefixForms(t *testing.T) {
	n := NewNormalizer(DefaultPhonePlan())
	x := n.Canonicalize(markers.ParsedIdentity{RawName: "Ana", RawPhone: "91155556666"})
	y := n.Canonicalize(markers.ParsedIdentity{RawName: "Ana", RawPhone: "+5491155556666"})
	assert.Equal(t, "+5491155556666", x.Phone)
	assert.Equal(t, x.MergeKey(), y.MergeKey())
}

func TestPatientID_EmptyPhone(t *testing.T) {
	ci := CanonicalIdentity{DisplayName: "Ana", NameKey: "ana"}
	assert.Equal(t, "ana", ci.PatientID())
	assert.Equal(t, "name:ana", ci.MergeKey())
}

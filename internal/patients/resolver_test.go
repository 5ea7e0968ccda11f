package patients

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/podology-booking/internal/identity"
	"github.com/wolfman30/podology-booking/internal/markers"
)

var base = time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

func tuple(t *testing.T, n *identity.Normalizer, owner, id, title string, start time.Time) BookingTuple {
	t.Helper()
	parsed, ok := markers.MustClassifier(markers.DefaultRules()).Parse(title)
	require.True(t, ok, title)
	return BookingTuple{
		Identity: n.Canonicalize(parsed),
		OwnerKey: owner,
		EventID:  id,
		Title:    title,
		Start:    start,
		End:      start.Add(30 * time.Minute),
	}
}

func TestResolve_MergesByPhone(t *testing.T) {
	n := identity.NewNormalizer(identity.DefaultPhonePlan())
	r := NewResolver(n)

	tuples := []BookingTuple{
		tuple(t, n, "silvia", "e2", "N: juan perez T: 01144445555", base.Add(48*time.Hour)),
		tuple(t, n, "marcos", "e1", "N: Juan Pérez T: 11 4444 5555", base),
	}
	dir, err := r.Resolve(tuples)
	require.NoError(t, err)
	require.Equal(t, 1, dir.Len())

	rec := dir.Patients()[0]
	assert.Equal(t, "juan perez|+5491144445555", rec.PatientID)
	assert.Equal(t, "+5491144445555", rec.Phone)
	assert.Equal(t, "Juan Perez", rec.DisplayName, "display name follows the most recent appointment")
	require.Len(t, rec.Appointments, 2)
	assert.Equal(t, "e2", rec.Appointments[0].EventID)
	assert.Equal(t, "e1", rec.Appointments[1].EventID)
	assert.Equal(t, base, rec.FirstVisit())
	assert.Equal(t, base.Add(48*time.Hour), rec.LastVisit())
	assert.Equal(t, 2, rec.Visits())
}

func TestResolve_OrderIndependent(t *testing.T) {
	n := identity.NewNormalizer(identity.DefaultPhonePlan())
	r := NewResolver(n)
	a := tuple(t, n, "silvia", "a", "N: Ana Gómez T: 91155556666", base)
	b := tuple(t, n, "marcos", "b", "N: ANA GOMEZ T: +5491155556666", base.Add(time.Hour))
	c := tuple(t, n, "silvia", "c", "N: Luis T: 1133334444", base.Add(2*time.Hour))

	d1, err := r.Resolve([]BookingTuple{a, b, c})
	require.NoError(t, err)
	d2, err := r.Resolve([]BookingTuple{c, b, a})
	require.NoError(t, err)
	assert.Equal(t, d1.Patients(), d2.Patients())
	assert.Equal(t, 2, d1.Len())
}

func TestResolve_DuplicateEventsCountedOnce(t *testing.T) {
	n := identity.NewNormalizer(identity.DefaultPhonePlan())
	tp := tuple(t, n, "silvia", "dup", "N: Ana T: 1155556666", base)
	dir, err := NewResolver(n).Resolve([]BookingTuple{tp, tp})
	require.NoError(t, err)
	rec := dir.Patients()[0]
	assert.Len(t, rec.Appointments, 1)
}

func TestResolve_EmptyPhoneKeyedByName(t *testing.T) {
	n := identity.NewNormalizer(identity.DefaultPhonePlan())
	tuples := []BookingTuple{
		tuple(t, n, "silvia", "1", "N: Rosa T: sin dato", base),
		tuple(t, n, "silvia", "2", "N: rosa T: -", base.Add(time.Hour)),
	}
	dir, err := NewResolver(n).Resolve(tuples)
	require.NoError(t, err)
	require.Equal(t, 1, dir.Len())
	rec, ok := dir.Get("rosa")
	require.True(t, ok)
	assert.Empty(t, rec.Phone)
	assert.Len(t, rec.Appointments, 2)
}

func TestResolve_IdentityConflict(t *testing.T) {
	r := NewResolver(nil)
	tuples := []BookingTuple{
		{Identity: identity.CanonicalIdentity{DisplayName: "A", NameKey: "a|+1", Phone: "+2"}, OwnerKey: "x", EventID: "1", Start: base},
		{Identity: identity.CanonicalIdentity{DisplayName: "A", NameKey: "a", Phone: "+1|+2"}, OwnerKey: "x", EventID: "2", Start: base.Add(time.Hour)},
	}
	_, err := r.Resolve(tuples)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrIdentityConflict))
}

func TestDirectory_HistoryAndLookup(t *testing.T) {
	n := identity.NewNormalizer(identity.DefaultPhonePlan())
	dir, err := NewResolver(n).Resolve([]BookingTuple{
		tuple(t, n, "silvia", "1", "N: Ana Gómez T: 1155556666", base),
		tuple(t, n, "silvia", "2", "N: Ana Gómez T: 1155556666", base.Add(24*time.Hour)),
	})
	require.NoError(t, err)

	hist, err := dir.History("ana gomez|+5491155556666")
	require.NoError(t, err)
	require.Len(t, hist, 2)
	assert.True(t, hist[0].Start.After(hist[1].Start))

	_, err = dir.History("nobody")
	assert.ErrorIs(t, err, ErrPatientNotFound)

	found := dir.LookupPhone("+54 9 11 5555-6666")
	assert.Equal(t, OutcomeFound, found.Outcome)
	assert.Equal(t, "Ana Gómez", found.DisplayName)

	missing := dir.LookupPhone("11 0000 0000")
	assert.Equal(t, OutcomeNotFound, missing.Outcome)
	assert.Equal(t, "+5491100000000", missing.Phone)

	assert.Equal(t, OutcomeNotFound, dir.LookupPhone("").Outcome)
}

func TestDirectory_ReturnsCopies(t *testing.T) {
	n := identity.NewNormalizer(identity.DefaultPhonePlan())
	dir, err := NewResolver(n).Resolve([]BookingTuple{tuple(t, n, "silvia", "1", "N: Ana T: 1155556666", base)})
	require.NoError(t, err)
	hist, err := dir.History("ana|+5491155556666")
	require.NoError(t, err)
	hist[0].Title = "mutated"
	again, _ := dir.History("ana|+5491155556666")
	assert.NotEqual(t, "mutated", again[0].Title)
}

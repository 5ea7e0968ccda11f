package patients

import (
	"fmt"
	"sort"
	"strings"

	"github.com/wolfman30/podology-booking/internal/identity"
)

// Resolver merges booking tuples into a Directory. It holds no state between
// calls; each Resolve builds a fresh directory.
type Resolver struct {
	normalizer *identity.Normalizer
}

// NewResolver returns a resolver that normalizes lookups with n.
func NewResolver(n *identity.Normalizer) *Resolver {
	if n == nil {
		n = identity.NewNormalizer(identity.DefaultPhonePlan())
	}
	return &Resolver{normalizer: n}
}

// Normalizer exposes the identity normalizer used for lookups.
func (r *Resolver) Normalizer() *identity.Normalizer { return r.normalizer }

// Resolve folds tuples into patient records. The input is copied and ordered
// by (Start, OwnerKey, EventID) so the result is independent of fan-in order.
func (r *Resolver) Resolve(tuples []BookingTuple) (*Directory, error) {
	ordered := make([]BookingTuple, len(tuples))
	copy(ordered, tuples)
	sort.SliceStable(ordered, func(i, j int) bool {
		a, b := ordered[i], ordered[j]
		if !a.Start.Equal(b.Start) {
			return a.Start.Before(b.Start)
		}
		if a.OwnerKey != b.OwnerKey {
			return a.OwnerKey < b.OwnerKey
		}
		return a.EventID < b.EventID
	})

	dir := newDirectory(r.normalizer)
	seen := make(map[string]struct{}, len(ordered))
	for _, t := range ordered {
		ident := t.Identity
		if ident.NameKey == "" && ident.Phone == "" {
			continue
		}
		dedupe := t.OwnerKey + "\x00" + t.EventID
		if t.EventID != "" {
			if _, dup := seen[dedupe]; dup {
				continue
			}
			seen[dedupe] = struct{}{}
		}

		mergeKey := ident.MergeKey()
		id, known := dir.byMergeKey[mergeKey]
		if !known {
			id = ident.PatientID()
			if existing, taken := dir.records[id]; taken && existing.Phone != ident.Phone {
				return nil, fmt.Errorf("%w: %s has phones %q and %q", ErrIdentityConflict, id, existing.Phone, ident.Phone)
			}
			dir.byMergeKey[mergeKey] = id
		}
		rec, ok := dir.records[id]
		if !ok {
			rec = &PatientRecord{PatientID: id, Phone: ident.Phone}
			dir.records[id] = rec
			if ident.Phone != "" {
				dir.byPhone[ident.Phone] = id
			}
		}
		// tuples arrive oldest first, so the last write wins with the most recent name
		if ident.DisplayName != "" {
			rec.DisplayName = ident.DisplayName
		}
		rec.Appointments = append(rec.Appointments, AppointmentRecord{
			EventID:      t.EventID,
			ProviderKey:  t.OwnerKey,
			ProviderName: t.ProviderName,
			Title:        t.Title,
			Start:        t.Start,
			End:          t.End,
		})
	}

	for _, rec := range dir.records {
		sortDescending(rec.Appointments)
	}
	return dir, nil
}

func sortDescending(appts []AppointmentRecord) {
	sort.SliceStable(appts, func(i, j int) bool {
		if !appts[i].Start.Equal(appts[j].Start) {
			return appts[i].Start.After(appts[j].Start)
		}
		if appts[i].ProviderKey != appts[j].ProviderKey {
			return appts[i].ProviderKey < appts[j].ProviderKey
		}
		return strings.Compare(appts[i].EventID, appts[j].EventID) < 0
	})
}

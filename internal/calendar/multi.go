package calendar

import (
	"context"
	"errors"
	"time"
)

// MultiSource routes each owner key to the adapter configured for it.
type MultiSource struct {
	routes map[string]Source
}

// NewMultiSource builds a router from owner key to source.
func NewMultiSource(routes map[string]Source) *MultiSource {
	copied := make(map[string]Source, len(routes))
	for k, v := range routes {
		if v != nil {
			copied[k] = v
		}
	}
	return &MultiSource{routes: copied}
}

// ListEvents implements Source.
func (m *MultiSource) ListEvents(ctx context.Context, ownerKey string, timeMin, timeMax time.Time) ([]RawEvent, error) {
	src, ok := m.routes[ownerKey]
	if !ok {
		return nil, Unavailable(ownerKey, errors.New("no calendar adapter configured"))
	}
	return src.ListEvents(ctx, ownerKey, timeMin, timeMax)
}

package calendar

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// MemorySource serves events from memory. Used by tests, demos and the CLI
// when no real calendar backend is configured.
type MemorySource struct {
	mu       sync.RWMutex
	events   map[string][]RawEvent
	failures map[string]error
	delays   map[string]time.Duration
}

// NewMemorySource creates an empty in-memory source.
func NewMemorySource() *MemorySource {
	return &MemorySource{
		events:   make(map[string][]RawEvent),
		failures: make(map[string]error),
		delays:   make(map[string]time.Duration),
	}
}

// Add appends events to the owner's calendar. OwnerKey on each event is forced to owner.
func (s *MemorySource) Add(owner string, events ...RawEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, ev := range events {
		ev.OwnerKey = owner
		if ev.EventID == "" {
			ev.EventID = fmt.Sprintf("%s-%d", owner, len(s.events[owner])+i)
		}
		s.events[owner] = append(s.events[owner], ev)
	}
}

// FailWith makes every ListEvents call for owner return err.
func (s *MemorySource) FailWith(owner string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[owner] = err
}

// Delay makes ListEvents for owner block for d or until ctx is done.
func (s *MemorySource) Delay(owner string, d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delays[owner] = d
}

// ListEvents implements Source.
func (s *MemorySource) ListEvents(ctx context.Context, ownerKey string, timeMin, timeMax time.Time) ([]RawEvent, error) {
	s.mu.RLock()
	delay := s.delays[ownerKey]
	failure := s.failures[ownerKey]
	stored := s.events[ownerKey]
	s.mu.RUnlock()

	if delay > 0 {
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return nil, Unavailable(ownerKey, ctx.Err())
		case <-timer.C:
		}
	}
	if failure != nil {
		return nil, Unavailable(ownerKey, failure)
	}

	out := make([]RawEvent, 0, len(stored))
	for _, ev := range stored {
		if !timeMin.IsZero() && ev.Start.Before(timeMin) {
			continue
		}
		if !timeMax.IsZero() && !ev.Start.Before(timeMax) {
			continue
		}
		out = append(out, ev)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out, nil
}

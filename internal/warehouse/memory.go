package warehouse

import (
	"context"
	"sync"

	"github.com/chrissnell/cyclehire/internal/analytics"
)

// MemorySource serves a fixed set of stations and trips.
type MemorySource struct {
	mu       sync.RWMutex
	stations []analytics.Station
	trips    []analytics.Trip
	err      error
}

// NewMemorySource wraps stations and trips. The slices are not copied.
func NewMemorySource(stations []analytics.Station, trips []analytics.Trip) *MemorySource {
	return &MemorySource{stations: stations, trips: trips}
}

// SetError makes every subsequent query fail with err wrapped in ErrQuery.
// A nil err restores normal operation.
func (m *MemorySource) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

func (m *MemorySource) Stations(ctx context.Context) ([]analytics.Station, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.err != nil {
		return nil, queryError("loading stations", m.err)
	}
	out := make([]analytics.Station, len(m.stations))
	copy(out, m.stations)
	return out, nil
}

func (m *MemorySource) Trips(ctx context.Context, w analytics.Window) ([]analytics.Trip, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.err != nil {
		return nil, queryError("loading trips", m.err)
	}
	var out []analytics.Trip
	for _, t := range m.trips {
		if w.Contains(t.Start.UTC()) || w.Contains(t.End.UTC()) {
			out = append(out, t)
		}
	}
	return out, nil
}

func (m *MemorySource) Ping(ctx context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.err != nil {
		return queryError("ping", m.err)
	}
	return ctx.Err()
}

func (m *MemorySource) Close() error {
	return nil
}

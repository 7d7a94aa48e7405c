// Package registry is the process-scoped provider table: a hot cache of
// recently seen providers, passed explicitly to the loop and orchestrator
// rather than living in ambient shared state. The metadata index remains the
// durable copy.
package registry

import (
	"sort"
	"sync"
	"time"

	"github.com/silo-network/silo/pkg/types"
)

// Entry is one cached provider sighting.
type Entry struct {
	Address        string    `json:"address"`
	AllocatedMilli uint64    `json:"allocated_milli"`
	AvailableMilli uint64    `json:"available_milli"`
	PricePerUnit   uint64    `json:"price_per_unit"`
	LastSeen       time.Time `json:"last_seen"`
}

type Registry struct {
	mu      sync.RWMutex
	now     func() time.Time
	entries map[string]Entry
}

// New creates a registry with an injected clock so heartbeat freshness is
// testable.
func New(now func() time.Time) *Registry {
	if now == nil {
		now = time.Now
	}
	return &Registry{now: now, entries: make(map[string]Entry)}
}

// Put records a sighting, stamping LastSeen with the registry clock.
func (r *Registry) Put(e Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e.LastSeen = r.now()
	r.entries[e.Address] = e
}

// Get returns the cached entry for an address, if any.
func (r *Registry) Get(addr string) (Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[addr]
	return e, ok
}

// Active returns entries seen within the freshness window that still have
// sellable capacity, ordered by price then address.
func (r *Registry) Active() []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cutoff := r.now().Add(-types.HeartbeatWindow)
	var out []Entry
	for _, e := range r.entries {
		if e.LastSeen.Before(cutoff) || e.AvailableMilli == 0 || e.PricePerUnit == 0 {
			continue
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].PricePerUnit != out[j].PricePerUnit {
			return out[i].PricePerUnit < out[j].PricePerUnit
		}
		return out[i].Address < out[j].Address
	})
	return out
}

// Snapshot returns every entry, for persistence.
func (r *Registry) Snapshot() map[string]Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]Entry, len(r.entries))
	for k, v := range r.entries {
		out[k] = v
	}
	return out
}

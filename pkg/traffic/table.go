// Package traffic holds the live set of aircraft heard from a receiver.
package traffic

import (
	"sync"
	"time"

	"github.com/guardianone/adsb-traffic/pkg/adsb"
)

// DefaultStaleAfter is how long an aircraft stays in the table without a
// fresh report.
const DefaultStaleAfter = 60 * time.Second

// Clock returns the current time. Tests substitute a fixed clock.
type Clock func() time.Time

// Table is the authoritative set of currently relevant aircraft, keyed by
// ICAO address. It is safe for concurrent use; readers always receive copies.
type Table struct {
	mu         sync.Mutex
	aircraft   []adsb.Aircraft
	index      map[string]int
	staleAfter time.Duration
	now        Clock
}

// NewTable creates an empty table. A zero staleAfter uses DefaultStaleAfter
// and a nil clock uses time.Now.
func NewTable(staleAfter time.Duration, clock Clock) *Table {
	if staleAfter <= 0 {
		staleAfter = DefaultStaleAfter
	}
	if clock == nil {
		clock = time.Now
	}
	return &Table{
		aircraft:   make([]adsb.Aircraft, 0),
		index:      make(map[string]int),
		staleAfter: staleAfter,
		now:        clock,
	}
}

// StaleAfter returns the staleness window.
func (t *Table) StaleAfter() time.Duration {
	return t.staleAfter
}

// Upsert replaces the entry with the same address or appends a new one,
// then evicts stale entries relative to the table clock.
func (t *Table) Upsert(ac adsb.Aircraft) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if i, ok := t.index[ac.Address]; ok {
		t.aircraft[i] = ac
	} else {
		t.index[ac.Address] = len(t.aircraft)
		t.aircraft = append(t.aircraft, ac)
	}

	t.evictLocked(t.now())
}

// EvictStale removes every entry last updated before now minus the
// staleness window. Returns the number of entries removed.
func (t *Table) EvictStale(now time.Time) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.evictLocked(now)
}

func (t *Table) evictLocked(now time.Time) int {
	cutoff := now.Add(-t.staleAfter)

	kept := t.aircraft[:0]
	removed := 0
	for _, ac := range t.aircraft {
		if ac.LastUpdated.Before(cutoff) {
			removed++
			continue
		}
		kept = append(kept, ac)
	}
	if removed == 0 {
		return 0
	}

	// Zero the tail so evicted entries are not retained by the backing array
	for i := len(kept); i < len(t.aircraft); i++ {
		t.aircraft[i] = adsb.Aircraft{}
	}
	t.aircraft = kept

	t.index = make(map[string]int, len(kept))
	for i, ac := range kept {
		t.index[ac.Address] = i
	}
	return removed
}

// Clear empties the table.
func (t *Table) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.aircraft = make([]adsb.Aircraft, 0)
	t.index = make(map[string]int)
}

// Snapshot evicts stale entries and returns a copy of the remaining ones
// in insertion order.
func (t *Table) Snapshot() []adsb.Aircraft {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.evictLocked(t.now())

	out := make([]adsb.Aircraft, len(t.aircraft))
	copy(out, t.aircraft)
	return out
}

// Get returns the entry for address if it is present and not stale.
func (t *Table) Get(address string) (adsb.Aircraft, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.evictLocked(t.now())

	i, ok := t.index[address]
	if !ok {
		return adsb.Aircraft{}, false
	}
	return t.aircraft[i], true
}

// Len returns the number of entries, stale ones included.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.aircraft)
}

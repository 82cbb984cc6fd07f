// Package cost keeps the running spend for one call session. Usage events
// arrive from concurrently completing tool calls and pipeline metrics; the
// meter serializes them so the total read by the session guardian is never
// torn.
package cost

import (
	"sync"
	"time"
)

// UsageEvent is one append-only ledger entry: quantity of some billable unit
// at a unit price.
type UsageEvent struct {
	Provider  string    `json:"provider"`
	Unit      string    `json:"unit"` // tokens, seconds, characters
	Quantity  float64   `json:"quantity"`
	UnitPrice float64   `json:"unit_price"`
	Cost      float64   `json:"cost"`
	At        time.Time `json:"at"`
}

// Meter accumulates usage cost for a single session.
type Meter struct {
	mu     sync.RWMutex
	events []UsageEvent
	total  float64
}

// NewMeter returns an empty meter.
func NewMeter() *Meter {
	return &Meter{}
}

// RecordUsage appends one usage event. Safe for concurrent tool calls.
func (m *Meter) RecordUsage(provider, unit string, quantity, unitPrice float64) {
	event := UsageEvent{
		Provider:  provider,
		Unit:      unit,
		Quantity:  quantity,
		UnitPrice: unitPrice,
		Cost:      quantity * unitPrice,
		At:        time.Now().UTC(),
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
	m.total += event.Cost
}

// Total returns the running session cost in USD.
func (m *Meter) Total() float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.total
}

// Exceeds reports whether the running total has crossed limit.
func (m *Meter) Exceeds(limit float64) bool {
	return m.Total() > limit
}

// Events returns a copy of the ledger in arrival order.
func (m *Meter) Events() []UsageEvent {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]UsageEvent, len(m.events))
	copy(out, m.events)
	return out
}

// BreakdownByProvider sums the ledger per provider, for the export summary.
func (m *Meter) BreakdownByProvider() map[string]float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]float64)
	for _, event := range m.events {
		out[event.Provider] += event.Cost
	}
	return out
}

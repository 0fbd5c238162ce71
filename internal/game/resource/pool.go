package resource

import (
	"fmt"
	"time"
)

// Pool is an entity's runtime budget for one resource.
// It is not safe for concurrent use; the owning sheet serialises access.
//
// Invariant: 0 <= Current <= Max.
type Pool struct {
	ID      string
	Current float64
	Max     float64
	// RegenPerSecond is the effective rate last computed for the owner.
	RegenPerSecond float64
	// LastRegen is the wall-clock time regeneration was last accounted for.
	LastRegen time.Time
}

// NewPool creates a pool for def holding start, clamped to [0, def.Max].
//
// Postcondition: Current is within bounds; LastRegen == now.
func NewPool(def Definition, start float64, now time.Time) *Pool {
	return &Pool{
		ID:             def.ID,
		Current:        clamp(start, def.Max),
		Max:            def.Max,
		RegenPerSecond: def.RegenRate,
		LastRegen:      now,
	}
}

// CanAfford reports whether the pool holds at least amount.
func (p *Pool) CanAfford(amount float64) bool {
	return p.Current >= amount
}

// Spend removes amount from the pool.
//
// Precondition: amount >= 0.
// Postcondition: On error Current is unchanged.
func (p *Pool) Spend(amount float64) error {
	if amount < 0 {
		return fmt.Errorf("resource %q: negative spend %v", p.ID, amount)
	}
	if p.Current < amount {
		return fmt.Errorf("resource %q: need %v, have %v", p.ID, amount, p.Current)
	}
	p.Current -= amount
	return nil
}

// Restore adds up to amount, stopping at Max, and returns the amount actually added.
//
// Postcondition: Returns >= 0; Current <= Max.
func (p *Pool) Restore(amount float64) float64 {
	if amount <= 0 {
		return 0
	}
	before := p.Current
	p.Current = clamp(p.Current+amount, p.Max)
	return p.Current - before
}

// Drain removes up to amount, stopping at 0, and returns the amount actually removed.
//
// Postcondition: Returns >= 0; Current >= 0.
func (p *Pool) Drain(amount float64) float64 {
	if amount <= 0 {
		return 0
	}
	before := p.Current
	p.Current = clamp(p.Current-amount, p.Max)
	return before - p.Current
}

// Regenerate applies (now - LastRegen) * RegenPerSecond and advances LastRegen to now.
// A now at or before LastRegen changes nothing, which makes repeated calls with the
// same timestamp idempotent.
//
// Postcondition: Returns true only if Current changed; 0 <= Current <= Max.
func (p *Pool) Regenerate(now time.Time) bool {
	if !now.After(p.LastRegen) {
		return false
	}
	elapsed := now.Sub(p.LastRegen).Seconds()
	p.LastRegen = now
	if p.Full() || p.RegenPerSecond <= 0 {
		return false
	}
	before := p.Current
	p.Current = clamp(p.Current+elapsed*p.RegenPerSecond, p.Max)
	return p.Current != before
}

// Skip advances LastRegen to now without regenerating, so that time spent in a
// mode that forbids regeneration is not credited later.
func (p *Pool) Skip(now time.Time) {
	if now.After(p.LastRegen) {
		p.LastRegen = now
	}
}

// Full reports whether Current == Max.
func (p *Pool) Full() bool {
	return p.Current >= p.Max
}

func clamp(v, max float64) float64 {
	if v < 0 {
		return 0
	}
	if v > max {
		return max
	}
	return v
}

// Package regen is the periodic resource regeneration driver. It runs beside
// the action executor and uses the same per-sheet exclusive section.
package regen

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/actioncore/internal/game/ability"
	"github.com/cory-johannsen/actioncore/internal/game/entity"
	"github.com/cory-johannsen/actioncore/internal/observability"
)

// Participants lists the entities to regenerate. *entity.Manager satisfies it.
type Participants interface {
	Participants() []*entity.Entity
}

// Driver applies elapsed-time regeneration to every participating entity.
//
// Invariant: regeneration depends only on wall-clock time since each pool's
// last regeneration, never on how many ticks ran.
type Driver struct {
	entities     Participants
	publisher    ability.Publisher
	metrics      *observability.ActionMetrics
	logger       *zap.Logger
	interval     time.Duration
	activeWindow time.Duration
	clock        func() time.Time
}

// NewDriver creates a Driver ticking every interval. An entity that acted
// within activeWindow counts as active for regeneration modes.
//
// Precondition: entities and logger must be non-nil; interval must be > 0.
func NewDriver(entities Participants, publisher ability.Publisher, metrics *observability.ActionMetrics, interval, activeWindow time.Duration, logger *zap.Logger) *Driver {
	if interval <= 0 {
		panic("regen.NewDriver: interval must be > 0")
	}
	if publisher == nil {
		publisher = ability.Discard
	}
	return &Driver{
		entities:     entities,
		publisher:    publisher,
		metrics:      metrics,
		logger:       logger,
		interval:     interval,
		activeWindow: activeWindow,
		clock:        time.Now,
	}
}

// Tick regenerates every participant at now and returns how many pools changed.
//
// Postcondition: A second Tick with the same now changes nothing.
func (d *Driver) Tick(ctx context.Context, now time.Time) int {
	changed := 0
	for _, e := range d.entities.Participants() {
		ns := d.TickEntity(e, now)
		for _, n := range ns {
			d.publisher.Publish(n)
		}
		changed += len(ns)
	}
	if d.metrics != nil {
		d.metrics.RecordRegenTick(ctx, changed)
	}
	return changed
}

// TickEntity expires e's finished conditions and regenerates its pools at now,
// returning one resource_changed notification per pool whose value moved.
// Each pool's rate is recomputed from e's current effective stats first, so
// buffs and expirations take effect on this tick.
func (d *Driver) TickEntity(e *entity.Entity, now time.Time) []ability.Notification {
	sheet := e.Sheet()
	if sheet == nil {
		return nil
	}
	sheet.Lock()
	defer sheet.Unlock()

	if expired := sheet.ExpireConditions(now); len(expired) > 0 {
		d.logger.Debug("conditions expired",
			zap.String("entity", e.ID),
			zap.Strings("conditions", expired),
		)
	}
	stats := sheet.EffectiveStats()
	active := sheet.IsActive(now, d.activeWindow)

	var out []ability.Notification
	for _, id := range sheet.PoolIDs() {
		pool, _ := sheet.Pool(id)
		grant, ok := sheet.Archetype.Resource(id)
		if !ok {
			pool.Skip(now)
			continue
		}
		pool.RegenPerSecond = grant.EffectiveRate(stats)
		if !grant.RegenMode.Allows(active) {
			pool.Skip(now)
			continue
		}
		if pool.Regenerate(now) {
			out = append(out, ability.ResourceChangedFor(e.ID, pool, now))
		}
	}
	return out
}

// Run ticks every interval until ctx is cancelled.
func (d *Driver) Run(ctx context.Context) {
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()
	d.logger.Info("regeneration driver started", zap.Duration("interval", d.interval))
	for {
		select {
		case <-ctx.Done():
			d.logger.Info("regeneration driver stopped")
			return
		case <-ticker.C:
			d.Tick(ctx, d.clock())
		}
	}
}

package ability

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/actioncore/internal/game/combat"
	"github.com/cory-johannsen/actioncore/internal/game/condition"
	"github.com/cory-johannsen/actioncore/internal/game/entity"
)

// HealthResource is the pool damage drains and healing restores.
const HealthResource = "health"

// Result is what an effect routine reports back to the executor.
type Result struct {
	// Success is false when the routine ran but had no effect (a missed strike,
	// an unmet passive condition).
	Success bool
	// Amount is the total damage or restoration applied.
	Amount float64
	// Affected lists IDs of entities the routine changed.
	Affected []string
	// Secondary lists condition IDs applied, including executor-applied ones.
	Secondary []string
	Summary   string
}

// Routine executes one action's effect. It must mutate targets only through
// the ExecContext helpers so each target is locked on its own.
type Routine func(ec *ExecContext, caster *entity.Entity, targets []*entity.Entity, tmpl *Template) (Result, error)

// ExecContext is everything a routine may use during one dispatch. It is owned
// by a single dispatch and must not be retained.
type ExecContext struct {
	Context   context.Context
	AttemptID string
	Now       time.Time
	Roller    combat.Roller
	// Conditions resolves condition IDs for the catalog generation in use.
	Conditions *condition.Registry
	// CasterStats and CasterLevel are captured while the caster was locked.
	CasterStats map[string]int
	CasterLevel int
	Relations   RelationFunc
	Logger      *zap.Logger

	caster   *entity.Entity
	changes  []Notification
	defeated []*entity.Entity
}

// Relation returns the caster's standing toward target.
func (ec *ExecContext) Relation(target *entity.Entity) entity.Relationship {
	return ec.Relations(ec.caster, target)
}

// Damage drains up to amount from target's health pool under target's lock.
//
// Postcondition: ok is false when target has no sheet or no health pool.
func (ec *ExecContext) Damage(target *entity.Entity, amount float64) (applied float64, ok bool) {
	return ec.adjust(target, HealthResource, amount, false)
}

// Restore adds up to amount to target's res pool under target's lock.
//
// Postcondition: ok is false when target has no sheet or no such pool.
func (ec *ExecContext) Restore(target *entity.Entity, res string, amount float64) (applied float64, ok bool) {
	return ec.adjust(target, res, amount, true)
}

func (ec *ExecContext) adjust(target *entity.Entity, res string, amount float64, restore bool) (float64, bool) {
	sheet := target.Sheet()
	if sheet == nil {
		return 0, false
	}
	sheet.Lock()
	defer sheet.Unlock()
	pool, ok := sheet.Pool(res)
	if !ok {
		return 0, false
	}
	var applied float64
	if restore {
		applied = pool.Restore(amount)
	} else {
		applied = pool.Drain(amount)
	}
	if applied != 0 {
		ec.changes = append(ec.changes, resourceChanged(ec.AttemptID, target.ID, pool, ec.Now))
	}
	if !restore && res == HealthResource && applied > 0 && pool.Current <= 0 {
		ec.defeated = append(ec.defeated, target)
	}
	return applied, true
}

// ApplyCondition applies stacks of condition id to target under target's lock.
func (ec *ExecContext) ApplyCondition(target *entity.Entity, id string, stacks int) error {
	def, ok := ec.Conditions.Get(id)
	if !ok {
		return fmt.Errorf("unknown condition %q", id)
	}
	sheet := target.Sheet()
	if sheet == nil {
		return fmt.Errorf("%s cannot hold conditions", target.ID)
	}
	sheet.Lock()
	defer sheet.Unlock()
	return sheet.Conditions.Apply(def, stacks, ec.Now)
}

// HealthFraction returns target's current/max health, or 1 without a health pool.
func (ec *ExecContext) HealthFraction(target *entity.Entity) float64 {
	sheet := target.Sheet()
	if sheet == nil {
		return 1
	}
	sheet.Lock()
	defer sheet.Unlock()
	p, ok := sheet.Pool(HealthResource)
	if !ok || p.Max <= 0 {
		return 1
	}
	return p.Current / p.Max
}

// TargetStat returns target's effective stat, or def when it has no sheet.
func (ec *ExecContext) TargetStat(target *entity.Entity, stat string, def int) int {
	sheet := target.Sheet()
	if sheet == nil {
		return def
	}
	sheet.Lock()
	defer sheet.Unlock()
	if v, ok := sheet.EffectiveStats()[stat]; ok {
		return v
	}
	return def
}

// Changes returns the resource_changed notifications recorded so far.
func (ec *ExecContext) Changes() []Notification {
	return ec.changes
}

// EffectRegistry maps effect-routine names to routines. It is safe for
// concurrent use; routines may be registered while the server runs.
type EffectRegistry struct {
	mu       sync.RWMutex
	routines map[string]Routine
}

// NewEffectRegistry returns a registry holding the built-in routines.
//
// Postcondition: Has(name) for every built-in name.
func NewEffectRegistry() *EffectRegistry {
	r := &EffectRegistry{routines: make(map[string]Routine)}
	registerBuiltins(r)
	return r
}

// Register associates name with fn, replacing any previous routine.
//
// Precondition: name must be non-empty and fn non-nil.
func (r *EffectRegistry) Register(name string, fn Routine) {
	if name == "" || fn == nil {
		panic("ability.EffectRegistry.Register: name and routine are required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.routines[name] = fn
}

// Get returns the routine for name.
//
// Postcondition: Returns a Failure of kind UnknownEffect when absent.
func (r *EffectRegistry) Get(name string) (Routine, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.routines[name]
	if !ok {
		return nil, &Failure{Kind: KindUnknownEffect, Effect: name, Message: fmt.Sprintf("unknown effect %q", name)}
	}
	return fn, nil
}

// Has reports whether name is registered.
func (r *EffectRegistry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.routines[name]
	return ok
}

// Names returns every registered name in sorted order.
func (r *EffectRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.routines))
	for n := range r.routines {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

package ability

import (
	"errors"
	"fmt"
	"sort"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/cory-johannsen/actioncore/internal/game/condition"
)

// Snapshot is one immutable catalog generation. Executions capture a Snapshot
// once and use it throughout, so a concurrent reload never mixes generations.
type Snapshot struct {
	generation uint64
	templates  map[string]*Template
	order      []string
	conditions *condition.Registry
}

// Generation returns the reload counter; the first loaded catalog is 1.
func (s *Snapshot) Generation() uint64 { return s.generation }

// Get returns the template for id.
//
// Postcondition: Returns a Failure of kind UnknownAction when absent.
func (s *Snapshot) Get(id string) (*Template, error) {
	t, ok := s.templates[id]
	if !ok {
		return nil, unknownAction(id)
	}
	return t, nil
}

// All returns every template ordered by ID.
func (s *Snapshot) All() []*Template {
	out := make([]*Template, len(s.order))
	for i, id := range s.order {
		out[i] = s.templates[id]
	}
	return out
}

// Len returns the number of templates.
func (s *Snapshot) Len() int { return len(s.order) }

// Conditions returns the condition definitions loaded with this generation.
func (s *Snapshot) Conditions() *condition.Registry { return s.conditions }

// Catalog is the read-mostly action registry. Reload swaps the whole Snapshot
// atomically; existing snapshots are never mutated.
type Catalog struct {
	current atomic.Pointer[Snapshot]
	effects *EffectRegistry
	logger  *zap.Logger
}

// NewCatalog returns an empty catalog at generation 0 that validates effect
// references against effects.
//
// Precondition: effects and logger must be non-nil.
func NewCatalog(effects *EffectRegistry, logger *zap.Logger) *Catalog {
	c := &Catalog{effects: effects, logger: logger}
	c.current.Store(&Snapshot{templates: map[string]*Template{}, conditions: condition.NewRegistry()})
	return c
}

// Snapshot returns the current generation.
func (c *Catalog) Snapshot() *Snapshot {
	return c.current.Load()
}

// Get looks id up in the current generation.
func (c *Catalog) Get(id string) (*Template, error) {
	return c.Snapshot().Get(id)
}

// Reload validates templates against conds and the effect registry and, only
// if every template is valid, installs them as the next generation. A template
// naming an unregistered effect aborts the reload and the previous generation
// keeps serving.
//
// Precondition: conds must be non-nil.
// Postcondition: On error the current snapshot is unchanged.
func (c *Catalog) Reload(templates []*Template, conds *condition.Registry) (uint64, error) {
	next := &Snapshot{
		templates:  make(map[string]*Template, len(templates)),
		order:      make([]string, 0, len(templates)),
		conditions: conds,
	}
	var errs []error
	for _, t := range templates {
		if err := t.Validate(); err != nil {
			errs = append(errs, err)
			continue
		}
		if _, dup := next.templates[t.ID]; dup {
			errs = append(errs, fmt.Errorf("duplicate action id %q", t.ID))
			continue
		}
		if !c.effects.Has(t.Effect) {
			c.logger.Error("action references unregistered effect",
				zap.String("action", t.ID),
				zap.String("effect", t.Effect),
			)
			errs = append(errs, unknownEffect(t.ID, t.Effect))
		}
		for _, id := range t.SecondaryEffects {
			if _, ok := conds.Get(id); !ok {
				errs = append(errs, fmt.Errorf("action %q: unknown secondary effect %q", t.ID, id))
			}
		}
		next.templates[t.ID] = t
		next.order = append(next.order, t.ID)
	}

	prev := c.current.Load()
	if err := errors.Join(errs...); err != nil {
		c.logger.Error("catalog reload aborted; keeping previous generation",
			zap.Uint64("generation", prev.generation),
			zap.Int("problems", len(errs)),
			zap.Error(err),
		)
		return prev.generation, fmt.Errorf("reloading action catalog: %w", err)
	}

	sort.Strings(next.order)
	// Compare-and-swap so two concurrent reloads cannot both claim one generation.
	for {
		next.generation = prev.generation + 1
		if c.current.CompareAndSwap(prev, next) {
			break
		}
		prev = c.current.Load()
	}
	c.logger.Info("action catalog loaded",
		zap.Uint64("generation", next.generation),
		zap.Int("actions", len(next.order)),
		zap.Int("conditions", len(conds.All())),
	)
	return next.generation, nil
}

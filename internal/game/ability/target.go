package ability

import (
	"github.com/cory-johannsen/actioncore/internal/game/entity"
)

// Directory is the entity lookup the resolver and executor need.
// *entity.Manager satisfies it.
type Directory interface {
	Get(id string) (*entity.Entity, bool)
	LocationOf(id string) (string, bool)
	InLocation(location string) []*entity.Entity
	FindInLocation(location, hint string) *entity.Entity
}

// RelationFunc returns a's standing toward b.
type RelationFunc func(a, b *entity.Entity) entity.Relationship

// LineOfEffect reports whether actor has unobstructed line of effect to target.
type LineOfEffect func(actor, target *entity.Entity) bool

// ClearLineOfEffect never obstructs.
func ClearLineOfEffect(*entity.Entity, *entity.Entity) bool { return true }

// Resolver turns a targeting rule and a hint into concrete entities.
type Resolver struct {
	dir      Directory
	relation RelationFunc
	line     LineOfEffect
}

// NewResolver creates a Resolver. A nil relation uses entity.Relation and a
// nil line never obstructs.
//
// Precondition: dir must be non-nil.
func NewResolver(dir Directory, relation RelationFunc, line LineOfEffect) *Resolver {
	if relation == nil {
		relation = entity.Relation
	}
	if line == nil {
		line = ClearLineOfEffect
	}
	return &Resolver{dir: dir, relation: relation, line: line}
}

// Relation exposes the resolver's relationship rule.
func (r *Resolver) Relation() RelationFunc { return r.relation }

// Resolve returns the entities tmpl affects when actor uses it with hint.
//
// self ignores hint and yields the actor. single-hostile accepts a hostile or
// neutral entity; single-friendly requires a friendly one. Both need an entity
// in the actor's location, and an empty hint yields no targets. area-in-location
// ignores hint and yields everyone else present. When tmpl requires line of
// effect, obstructed entities are dropped.
//
// Postcondition: Either a possibly empty target list or a NoSuchTarget /
// InvalidTargetRelationship failure.
func (r *Resolver) Resolve(actor *entity.Entity, tmpl *Template, hint string) ([]*entity.Entity, *Failure) {
	switch tmpl.Targeting {
	case TargetSelf:
		return []*entity.Entity{actor}, nil
	case TargetArea:
		loc, ok := r.dir.LocationOf(actor.ID)
		if !ok {
			return nil, nil
		}
		var out []*entity.Entity
		for _, e := range r.dir.InLocation(loc) {
			if e.ID == actor.ID {
				continue
			}
			if tmpl.LineOfEffect && !r.line(actor, e) {
				continue
			}
			out = append(out, e)
		}
		return out, nil
	}

	if hint == "" {
		return nil, nil
	}
	loc, ok := r.dir.LocationOf(actor.ID)
	if !ok {
		return nil, noSuchTarget(hint)
	}
	target := r.dir.FindInLocation(loc, hint)
	if target == nil {
		return nil, noSuchTarget(hint)
	}
	rel := r.relation(actor, target)
	switch tmpl.Targeting {
	case TargetSingleHostile:
		if rel == entity.Friendly {
			return nil, invalidTargetRelationship(target.ID, tmpl.Targeting)
		}
	case TargetSingleFriendly:
		if rel != entity.Friendly {
			return nil, invalidTargetRelationship(target.ID, tmpl.Targeting)
		}
	}
	if tmpl.LineOfEffect && !r.line(actor, target) {
		return nil, nil
	}
	return []*entity.Entity{target}, nil
}

package entity

// Relationship is the friend/foe standing of one entity toward another.
type Relationship int

const (
	Hostile Relationship = iota
	Friendly
	Neutral
)

// String returns the lowercase relationship name.
func (r Relationship) String() string {
	switch r {
	case Friendly:
		return "friendly"
	case Neutral:
		return "neutral"
	default:
		return "hostile"
	}
}

// Relation returns a's standing toward b.
//
// An entity is friendly to itself. Objects are neutral to everyone else.
// Two entities on the same non-empty team are friendly; different teams are
// hostile. When neither has a team, entities of the same kind are friendly
// and players and NPCs are hostile to each other. A teamed entity is hostile
// to an unaffiliated one.
func Relation(a, b *Entity) Relationship {
	if a == b || a.ID == b.ID {
		return Friendly
	}
	if a.Kind == KindObject || b.Kind == KindObject {
		return Neutral
	}
	if a.Team != "" && b.Team != "" {
		if a.Team == b.Team {
			return Friendly
		}
		return Hostile
	}
	if a.Team == "" && b.Team == "" && a.Kind == b.Kind {
		return Friendly
	}
	return Hostile
}

package ai

import (
	"github.com/cory-johannsen/actioncore/internal/game/entity"
	"github.com/cory-johannsen/actioncore/internal/scripting"
)

// ParticipantState captures one entity's state at planning time.
type ParticipantState struct {
	ID        string
	Name      string
	Kind      entity.Kind
	Team      string
	Level     int
	Health    float64
	MaxHealth float64
	// Relation is the planning actor's standing toward this participant.
	Relation   entity.Relationship
	Conditions []string
}

// HealthPercent returns current health as a percentage of max; 100 without a health pool.
func (p *ParticipantState) HealthPercent() float64 {
	if p.MaxHealth <= 0 {
		return 100
	}
	return p.Health / p.MaxHealth * 100
}

// Defeated reports whether the participant has a health pool and it is empty.
func (p *ParticipantState) Defeated() bool {
	return p.MaxHealth > 0 && p.Health <= 0
}

func (p *ParticipantState) info() scripting.ActorInfo {
	return scripting.ActorInfo{
		ID:         p.ID,
		Name:       p.Name,
		Kind:       string(p.Kind),
		Team:       p.Team,
		Level:      p.Level,
		Health:     p.Health,
		MaxHealth:  p.MaxHealth,
		Relation:   p.Relation.String(),
		Conditions: p.Conditions,
	}
}

// WorldState is the snapshot passed to the HTN planner for one actor.
//
// Invariant: Self must not be nil.
type WorldState struct {
	Location string
	Self     *ParticipantState
	// Others holds every other participating entity in Location.
	Others []*ParticipantState
}

// Enemies returns all undefeated hostile participants, in Others order.
func (ws *WorldState) Enemies() []*ParticipantState {
	return ws.filter(entity.Hostile)
}

// Allies returns all undefeated friendly participants excluding Self.
func (ws *WorldState) Allies() []*ParticipantState {
	return ws.filter(entity.Friendly)
}

func (ws *WorldState) filter(rel entity.Relationship) []*ParticipantState {
	var out []*ParticipantState
	for _, p := range ws.Others {
		if !p.Defeated() && p.ID != ws.Self.ID && p.Relation == rel {
			out = append(out, p)
		}
	}
	return out
}

// HasLivingEnemies returns true when at least one undefeated enemy exists.
func (ws *WorldState) HasLivingEnemies() bool {
	return len(ws.Enemies()) > 0
}

// NearestEnemy returns the first enemy (by Others order), or nil.
func (ws *WorldState) NearestEnemy() *ParticipantState {
	enemies := ws.Enemies()
	if len(enemies) == 0 {
		return nil
	}
	return enemies[0]
}

// WeakestEnemy returns the enemy with the lowest health percentage, or nil.
//
// Postcondition: Ties are broken by order in Others.
func (ws *WorldState) WeakestEnemy() *ParticipantState {
	return weakest(ws.Enemies())
}

// WeakestAlly returns the ally or Self with the lowest health percentage.
//
// Postcondition: Never nil; Self wins ties.
func (ws *WorldState) WeakestAlly() *ParticipantState {
	return weakest(append([]*ParticipantState{ws.Self}, ws.Allies()...))
}

func weakest(ps []*ParticipantState) *ParticipantState {
	if len(ps) == 0 {
		return nil
	}
	w := ps[0]
	for _, p := range ps[1:] {
		if p.HealthPercent() < w.HealthPercent() {
			w = p
		}
	}
	return w
}

// Target tokens accepted by Operator.Target.
const (
	TargetNearestEnemy = "nearest_enemy"
	TargetWeakestEnemy = "weakest_enemy"
	TargetWeakestAlly  = "weakest_ally"
	TargetSelf         = "self"
	TargetNone         = "none"
)

// ResolveTarget maps a target token to an entity ID usable as a target hint.
//
// Postcondition: Known tokens resolve to IDs or ""; TargetNone and "" resolve
// to ""; anything else is returned as-is.
func (ws *WorldState) ResolveTarget(token string) string {
	var p *ParticipantState
	switch token {
	case TargetNearestEnemy:
		p = ws.NearestEnemy()
	case TargetWeakestEnemy:
		p = ws.WeakestEnemy()
	case TargetWeakestAlly:
		p = ws.WeakestAlly()
	case TargetSelf:
		p = ws.Self
	case TargetNone, "":
		return ""
	default:
		return token
	}
	if p == nil {
		return ""
	}
	return p.ID
}

// Situation converts the snapshot into the form Lua preconditions receive.
func (ws *WorldState) Situation() scripting.Situation {
	s := scripting.Situation{Location: ws.Location, Self: ws.Self.info()}
	for _, p := range ws.Others {
		s.Others = append(s.Others, p.info())
	}
	return s
}

package ai

import (
	"github.com/cory-johannsen/actioncore/internal/game/ability"
	"github.com/cory-johannsen/actioncore/internal/game/entity"
)

const healthPool = "health"

// BuildWorldState snapshots actor's location for planning. Entities without a
// sheet are left out. Each sheet is locked only while it is read.
//
// Precondition: actor must be registered in dir.
// Postcondition: ws.Self.ID == actor.ID; ws.Others excludes actor.
func BuildWorldState(actor *entity.Entity, dir ability.Directory, relation ability.RelationFunc) *WorldState {
	if relation == nil {
		relation = entity.Relation
	}
	loc, _ := dir.LocationOf(actor.ID)
	ws := &WorldState{Location: loc, Self: snapshot(actor, entity.Friendly)}
	if loc == "" {
		return ws
	}
	for _, e := range dir.InLocation(loc) {
		if e.ID == actor.ID || !e.Participating() {
			continue
		}
		ws.Others = append(ws.Others, snapshot(e, relation(actor, e)))
	}
	return ws
}

func snapshot(e *entity.Entity, rel entity.Relationship) *ParticipantState {
	p := &ParticipantState{ID: e.ID, Name: e.Name, Kind: e.Kind, Team: e.Team, Relation: rel}
	sheet := e.Sheet()
	if sheet == nil {
		return p
	}
	sheet.Lock()
	defer sheet.Unlock()
	p.Level = sheet.Level
	if pool, ok := sheet.Pool(healthPool); ok {
		p.Health, p.MaxHealth = pool.Current, pool.Max
	}
	for _, ac := range sheet.Conditions.All() {
		p.Conditions = append(p.Conditions, ac.Def.ID)
	}
	return p
}

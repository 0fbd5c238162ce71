// Package entity holds the world's participants: players, NPCs, and objects.
// Any of them may carry an optional CharacterSheet; entities without one do
// not take part in action execution.
package entity

import (
	"sync/atomic"

	"github.com/cory-johannsen/actioncore/internal/game/character"
)

// Kind distinguishes the broad category of an entity.
type Kind string

const (
	KindPlayer Kind = "player"
	KindNPC    Kind = "npc"
	KindObject Kind = "object"
)

// Entity is one participant in the world. ID, Name, Kind, and Team are fixed
// at creation; location is tracked by the Manager.
type Entity struct {
	ID   string
	Name string
	Kind Kind
	// Team is the faction; empty means unaffiliated.
	Team string

	sheet atomic.Pointer[character.Sheet]
}

// New creates an entity with no sheet.
func New(id, name string, kind Kind, team string) *Entity {
	return &Entity{ID: id, Name: name, Kind: kind, Team: team}
}

// Sheet returns the attached sheet, or nil when the entity does not participate.
func (e *Entity) Sheet() *character.Sheet {
	return e.sheet.Load()
}

// AttachSheet assigns s as the entity's sheet, replacing any previous one.
//
// Precondition: s must be non-nil.
func (e *Entity) AttachSheet(s *character.Sheet) {
	e.sheet.Store(s)
}

// DetachSheet removes the sheet; the entity stops participating.
func (e *Entity) DetachSheet() {
	e.sheet.Store(nil)
}

// Participating reports whether the entity carries a sheet.
func (e *Entity) Participating() bool {
	return e.sheet.Load() != nil
}

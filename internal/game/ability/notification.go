package ability

import (
	"time"

	"github.com/cory-johannsen/actioncore/internal/game/resource"
)

// NotificationKind names an outbound event.
type NotificationKind string

const (
	ActionPerformed    NotificationKind = "action_performed"
	ActionFailed       NotificationKind = "action_failed"
	ResourceChanged    NotificationKind = "resource_changed"
	CooldownStarted    NotificationKind = "cooldown_started"
	SharedDelayStarted NotificationKind = "shared_delay_started"
	EntityDefeated     NotificationKind = "entity_defeated"
	LevelGained        NotificationKind = "level_gained"
)

// Notification is one outbound event. Only the fields relevant to Kind are set.
type Notification struct {
	Kind      NotificationKind
	AttemptID string
	// EntityID is the actor, or the changed entity for ResourceChanged.
	EntityID string
	ActionID string
	At       time.Time

	// ActionPerformed; for EntityDefeated, the defeater.
	Targets   []string
	Amount    float64
	Secondary []string
	Summary   string
	Success   bool

	// ActionFailed.
	Failure *Failure

	// ResourceChanged.
	Resource string
	Current  float64
	Max      float64

	// CooldownStarted and SharedDelayStarted.
	Category string
	Duration time.Duration

	// EntityDefeated: experience awarded to the defeater.
	Experience int

	// LevelGained.
	Level    int
	Learned  []string
	NewSlots int
}

func resourceChanged(attemptID, entityID string, p *resource.Pool, at time.Time) Notification {
	return Notification{
		Kind:      ResourceChanged,
		AttemptID: attemptID,
		EntityID:  entityID,
		Resource:  p.ID,
		Current:   p.Current,
		Max:       p.Max,
		At:        at,
	}
}

// ResourceChangedFor builds a resource_changed notification outside an action
// attempt, as the regeneration driver does.
func ResourceChangedFor(entityID string, p *resource.Pool, at time.Time) Notification {
	return resourceChanged("", entityID, p, at)
}

// Publisher receives notifications produced by the executor and the
// regeneration driver.
type Publisher interface {
	Publish(n Notification)
}

// PublisherFunc adapts a function to Publisher.
type PublisherFunc func(Notification)

// Publish calls f(n).
func (f PublisherFunc) Publish(n Notification) { f(n) }

// Discard drops every notification.
var Discard Publisher = PublisherFunc(func(Notification) {})

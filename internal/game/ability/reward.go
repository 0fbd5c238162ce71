package ability

import (
	"go.uber.org/zap"

	"github.com/cory-johannsen/actioncore/internal/game/entity"
)

// RewardFunc returns the experience earned for defeating victim. Zero or less
// awards nothing.
type RewardFunc func(victim *entity.Entity) int

// WithRewards awards experience to the actor whose action drops another
// entity's health to zero.
func WithRewards(fn RewardFunc) Option {
	return func(e *Executor) { e.rewards = fn }
}

// settleDefeats reports every entity the dispatch defeated and pays the
// actor for each one, applying any level-ups it buys.
//
// Postcondition: One entity_defeated per victim, each followed by a
// level_gained per level the reward paid for.
func (e *Executor) settleDefeats(ec *ExecContext, a *attempt) []Notification {
	var out []Notification
	for _, victim := range ec.defeated {
		n := Notification{
			Kind:      EntityDefeated,
			AttemptID: a.attemptID,
			EntityID:  victim.ID,
			ActionID:  a.tmpl.ID,
			At:        a.now,
			Targets:   []string{a.actor.ID},
		}
		var ups []Notification
		if xp := e.reward(victim, a.actor); xp > 0 {
			n.Experience = xp
			ups = e.award(a, xp)
		}
		out = append(out, n)
		out = append(out, ups...)
	}
	return out
}

func (e *Executor) reward(victim, actor *entity.Entity) int {
	if e.rewards == nil || victim == actor {
		return 0
	}
	return e.rewards(victim)
}

func (e *Executor) award(a *attempt, xp int) []Notification {
	sheet := a.actor.Sheet()
	if sheet == nil {
		return nil
	}
	sheet.Lock()
	ups := sheet.AwardExperience(xp)
	sheet.Unlock()

	out := make([]Notification, 0, len(ups))
	for _, up := range ups {
		e.logger.Info("level gained",
			zap.String("attempt_id", a.attemptID),
			zap.String("entity", a.actor.ID),
			zap.Int("level", up.Level),
			zap.Strings("learned", up.Learned),
			zap.Int("new_slots", up.NewSlots),
		)
		out = append(out, Notification{
			Kind:      LevelGained,
			AttemptID: a.attemptID,
			EntityID:  a.actor.ID,
			At:        a.now,
			Level:     up.Level,
			Learned:   up.Learned,
			NewSlots:  up.NewSlots,
		})
	}
	return out
}

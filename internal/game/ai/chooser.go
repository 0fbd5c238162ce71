package ai

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/actioncore/internal/game/ability"
	"github.com/cory-johannsen/actioncore/internal/game/entity"
	"github.com/cory-johannsen/actioncore/internal/game/npc"
)

// PriorityHookPrefix prefixes the optional Lua precondition consulted for
// each entry of an archetype's ai_priorities, e.g. ai_power_strike.
const PriorityHookPrefix = "ai_"

// Decision is the action an actor will attempt.
type Decision struct {
	ActionID   string
	TargetHint string
}

// Chooser picks actions for NPCs and submits them to the executor like any
// other caller.
type Chooser struct {
	exec     *ability.Executor
	dir      ability.Directory
	planners *Registry
	scripts  ScriptCaller
	relation ability.RelationFunc
	logger   *zap.Logger
}

// NewChooser wires a Chooser. scripts may be nil, in which case priority
// preconditions always pass.
//
// Precondition: exec, dir, planners, and logger must be non-nil.
func NewChooser(exec *ability.Executor, dir ability.Directory, planners *Registry, scripts ScriptCaller, logger *zap.Logger) *Chooser {
	return &Chooser{
		exec:     exec,
		dir:      dir,
		planners: planners,
		scripts:  scripts,
		relation: entity.Relation,
		logger:   logger,
	}
}

// Decide returns the first candidate action that is ready and affordable and,
// for single-target rules that require one, has a target.
//
// Candidates come from the HTN plan for domainID when such a planner is
// registered, otherwise from the archetype's ai_priorities filtered by their
// ai_<action> preconditions. A planned pass ends the search.
//
// Postcondition: Returns false when the actor should do nothing this tick.
func (c *Chooser) Decide(actor *entity.Entity, domainID string, now time.Time) (Decision, bool) {
	sheet := actor.Sheet()
	if sheet == nil {
		return Decision{}, false
	}
	ws := BuildWorldState(actor, c.dir, c.relation)
	candidates := c.candidates(sheet.Archetype.ID, sheet.Archetype.AIPriorities, domainID, ws)
	if len(candidates) == 0 {
		return Decision{}, false
	}

	statuses, fail := c.exec.Statuses(actor.ID, now)
	if fail != nil {
		return Decision{}, false
	}
	ready := make(map[string]bool, len(statuses))
	for _, st := range statuses {
		ready[st.ActionID] = st.Ready()
	}

	snap := c.exec.Catalog().Snapshot()
	for _, cand := range candidates {
		if cand.Action == PassAction {
			return Decision{}, false
		}
		if !ready[cand.Action] {
			continue
		}
		tmpl, err := snap.Get(cand.Action)
		if err != nil {
			continue
		}
		hint := cand.Target
		if cand.Token == "" {
			hint = autoTarget(tmpl.Targeting, ws)
		}
		if tmpl.Targeting.Single() && tmpl.RequiresTarget && hint == "" {
			continue
		}
		return Decision{ActionID: cand.Action, TargetHint: hint}, true
	}
	return Decision{}, false
}

func (c *Chooser) candidates(archetypeID string, priorities []string, domainID string, ws *WorldState) []PlannedAction {
	if p, ok := c.planners.PlannerFor(domainID); ok {
		plan, err := p.Plan(ws)
		if err != nil {
			c.logger.Warn("ai: planning failed", zap.String("actor", ws.Self.ID), zap.String("domain", domainID), zap.Error(err))
			return nil
		}
		return plan
	}
	situation := ws.Situation()
	var out []PlannedAction
	for _, id := range priorities {
		if c.scripts != nil {
			ok, err := c.scripts.CheckPrecondition(archetypeID, PriorityHook(id), situation)
			if err != nil || !ok {
				continue
			}
		}
		out = append(out, PlannedAction{Action: id})
	}
	return out
}

// PriorityHook returns the precondition hook name for actionID.
func PriorityHook(actionID string) string {
	return PriorityHookPrefix + strings.NewReplacer("-", "_", ".", "_").Replace(actionID)
}

// autoTarget picks a hint from the targeting rule when the plan names no token.
func autoTarget(rule ability.Targeting, ws *WorldState) string {
	switch rule {
	case ability.TargetSingleHostile:
		return ws.ResolveTarget(TargetNearestEnemy)
	case ability.TargetSingleFriendly:
		return ws.ResolveTarget(TargetWeakestAlly)
	default:
		return ""
	}
}

// Act decides for actor and, if anything is chosen, executes it.
//
// Postcondition: The boolean is false when no attempt was made.
func (c *Chooser) Act(ctx context.Context, actor *entity.Entity, domainID string, now time.Time) (ability.Outcome, bool) {
	d, ok := c.Decide(actor, domainID, now)
	if !ok {
		return ability.Outcome{}, false
	}
	out := c.exec.Execute(ctx, ability.Request{
		ActorID:    actor.ID,
		ActionID:   d.ActionID,
		TargetHint: d.TargetHint,
		At:         now,
	})
	c.logger.Debug("npc acted",
		zap.String("actor", actor.ID),
		zap.String("action", d.ActionID),
		zap.String("target", d.TargetHint),
		zap.Bool("performed", out.Performed()),
	)
	return out, true
}

// Tick lets every undefeated NPC act once.
//
// Postcondition: Returns the number of attempts made.
func (c *Chooser) Tick(ctx context.Context, npcs []*npc.Instance, now time.Time) int {
	attempts := 0
	for _, inst := range npcs {
		if ctx.Err() != nil {
			break
		}
		if inst.Defeated() {
			continue
		}
		if _, ok := c.Act(ctx, inst.Entity, inst.AIDomain, now); ok {
			attempts++
		}
	}
	return attempts
}

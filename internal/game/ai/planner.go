package ai

import (
	"fmt"

	"github.com/cory-johannsen/actioncore/internal/scripting"
)

// ScriptCaller evaluates Lua preconditions.
type ScriptCaller interface {
	// CheckPrecondition calls hook in key's VM. A missing hook passes.
	CheckPrecondition(key, hook string, s scripting.Situation) (bool, error)
}

// NoScripts is a ScriptCaller for servers without Lua: every precondition passes.
type NoScripts struct{}

// CheckPrecondition always passes.
func (NoScripts) CheckPrecondition(string, string, scripting.Situation) (bool, error) {
	return true, nil
}

// PlannedAction is one primitive step produced by the planner.
type PlannedAction struct {
	Operator string
	// Action is an action template ID or PassAction.
	Action string
	// Token is the operator's unresolved target token.
	Token string
	// Target is the resolved target ID; empty when the action needs none or
	// the token matched nobody.
	Target string
}

// Planner evaluates an HTN domain for one actor at a time.
//
// Invariant: domain and caller must not be nil.
type Planner struct {
	domain *Domain
	caller ScriptCaller
	key    string
}

// NewPlanner constructs a Planner whose preconditions run in key's VM.
//
// Precondition: domain and caller must not be nil.
func NewPlanner(domain *Domain, caller ScriptCaller, key string) *Planner {
	if domain == nil {
		panic("ai.NewPlanner: domain must not be nil")
	}
	if caller == nil {
		panic("ai.NewPlanner: caller must not be nil")
	}
	return &Planner{domain: domain, caller: caller, key: key}
}

// Domain returns the planner's domain.
func (p *Planner) Domain() *Domain { return p.domain }

// Plan decomposes RootTask against state and returns the ordered operators.
//
// Precondition: state and state.Self must not be nil.
// Postcondition: Returns a non-nil slice (may be empty); Lua failures count as
// a false precondition, never as an error.
func (p *Planner) Plan(state *WorldState) ([]PlannedAction, error) {
	if state == nil || state.Self == nil {
		return nil, fmt.Errorf("ai.Planner.Plan: state and state.Self must not be nil")
	}

	queue := []string{RootTask}
	result := []PlannedAction{}
	situation := state.Situation()

	const maxSteps = 32
	for steps := 0; len(queue) > 0 && steps < maxSteps; steps++ {
		current := queue[0]
		queue = queue[1:]

		if op, ok := p.domain.OperatorByID(current); ok {
			result = append(result, PlannedAction{
				Operator: op.ID,
				Action:   op.Action,
				Token:    op.Target,
				Target:   state.ResolveTarget(op.Target),
			})
			continue
		}

		method := p.findApplicableMethod(current, situation)
		if method == nil {
			continue
		}
		queue = append(append([]string(nil), method.Subtasks...), queue...)
	}
	return result, nil
}

// findApplicableMethod returns the first method for taskID, in declaration
// order, whose precondition passes.
func (p *Planner) findApplicableMethod(taskID string, s scripting.Situation) *Method {
	for _, m := range p.domain.MethodsForTask(taskID) {
		if m.Precondition == "" {
			return m
		}
		if ok, err := p.caller.CheckPrecondition(p.key, m.Precondition, s); err == nil && ok {
			return m
		}
	}
	return nil
}

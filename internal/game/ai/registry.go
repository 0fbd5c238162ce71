package ai

import (
	"fmt"
	"sort"
)

// Registry maps an NPC's ai_domain to the Planner that decomposes it. It is
// filled at startup and only read during AI ticks.
//
// Invariant: each domain ID is registered at most once.
type Registry struct {
	planners map[string]*Planner
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{planners: make(map[string]*Planner)}
}

// Register adds a Planner for domain whose precondition hooks run through
// caller under key.
//
// Precondition: domain and caller must not be nil.
// Postcondition: Returns an error on domain ID collision.
func (r *Registry) Register(domain *Domain, caller ScriptCaller, key string) error {
	if _, exists := r.planners[domain.ID]; exists {
		return fmt.Errorf("ai domain %q already registered", domain.ID)
	}
	r.planners[domain.ID] = NewPlanner(domain, caller, key)
	return nil
}

// HookLookup is implemented by script callers that can tell whether a hook is
// defined. *scripting.Manager satisfies it.
type HookLookup interface {
	HasHook(key, hook string) bool
}

// RegisterAll registers every domain against the global script VM. A nil
// caller means no scripting: every precondition passes. When caller is a
// HookLookup, a method naming an undefined precondition hook is an error.
//
// Postcondition: On error no domain after the failing one is registered.
func (r *Registry) RegisterAll(domains []*Domain, caller ScriptCaller) error {
	if caller == nil {
		caller = NoScripts{}
	}
	hooks, _ := caller.(HookLookup)
	for _, d := range domains {
		if hooks != nil {
			if err := checkHooks(d, hooks, ""); err != nil {
				return err
			}
		}
		if err := r.Register(d, caller, ""); err != nil {
			return err
		}
	}
	return nil
}

func checkHooks(d *Domain, hooks HookLookup, key string) error {
	for _, m := range d.Methods {
		if m.Precondition != "" && !hooks.HasHook(key, m.Precondition) {
			return fmt.Errorf("ai domain %q method %q: precondition hook %q is not defined", d.ID, m.ID, m.Precondition)
		}
	}
	return nil
}

// PlannerFor returns the Planner for domainID, or false if not registered.
func (r *Registry) PlannerFor(domainID string) (*Planner, bool) {
	p, ok := r.planners[domainID]
	return p, ok
}

// IDs returns the registered domain IDs in order.
func (r *Registry) IDs() []string {
	ids := make([]string, 0, len(r.planners))
	for id := range r.planners {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

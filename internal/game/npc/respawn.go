package npc

import (
	"sync"
	"time"
)

// LocationSpawn holds the spawn configuration for one NPC template in one location.
//
// Invariant: Max >= 1; RespawnDelay == 0 defers to the template's delay.
type LocationSpawn struct {
	// TemplateID is the NPC template to spawn.
	TemplateID string `yaml:"template"`
	// Max is the population cap: respawn is suppressed when live count >= Max.
	Max int `yaml:"max"`
	// RespawnDelay overrides the template's delay when non-zero.
	RespawnDelay time.Duration `yaml:"respawn_delay"`
}

type respawnEntry struct {
	templateID string
	location   string
	readyAt    time.Time
}

// RespawnManager populates locations, reaps defeated NPCs, and schedules their
// return. It is safe for concurrent use; Tick and PopulateLocation are expected
// to run from a single tick goroutine.
//
// Invariant: entries with zero delay are never queued.
type RespawnManager struct {
	mu        sync.Mutex
	spawns    map[string][]LocationSpawn // location → configs
	templates map[string]*Template       // templateID → Template, read-only
	pending   []respawnEntry
}

// NewRespawnManager creates a RespawnManager from spawn configs and templates.
//
// Precondition: spawns and templates may be nil (manager becomes a no-op).
// Postcondition: Returns a non-nil RespawnManager.
func NewRespawnManager(spawns map[string][]LocationSpawn, templates map[string]*Template) *RespawnManager {
	if spawns == nil {
		spawns = make(map[string][]LocationSpawn)
	}
	if templates == nil {
		templates = make(map[string]*Template)
	}
	return &RespawnManager{spawns: spawns, templates: templates}
}

// Locations returns every location with spawn configuration.
func (r *RespawnManager) Locations() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.spawns))
	for loc := range r.spawns {
		out = append(out, loc)
	}
	return out
}

// PopulateLocation spawns instances of each configured template in location
// until the cap is reached, removing any excess.
//
// Precondition: mgr must not be nil.
// Postcondition: For each config, live count == Max unless Spawn failed.
func (r *RespawnManager) PopulateLocation(location string, mgr *Manager, now time.Time) []error {
	r.mu.Lock()
	configs := append([]LocationSpawn(nil), r.spawns[location]...)
	r.mu.Unlock()

	var errs []error
	for _, cfg := range configs {
		tmpl, ok := r.templates[cfg.TemplateID]
		if !ok {
			continue
		}
		matching := r.matching(location, cfg.TemplateID, mgr)
		for len(matching) > cfg.Max {
			last := matching[len(matching)-1]
			matching = matching[:len(matching)-1]
			_ = mgr.Remove(last.ID())
		}
		for i := len(matching); i < cfg.Max; i++ {
			if _, err := mgr.Spawn(tmpl, location, now); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errs
}

// Schedule enqueues a respawn of templateID in location at now+delay.
// No-op when delay <= 0.
func (r *RespawnManager) Schedule(templateID, location string, now time.Time, delay time.Duration) {
	if delay <= 0 {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pending = append(r.pending, respawnEntry{templateID: templateID, location: location, readyAt: now.Add(delay)})
}

// Pending returns the number of queued respawns.
func (r *RespawnManager) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pending)
}

// Reap despawns every defeated instance and schedules its respawn.
//
// Postcondition: Returns the IDs of the removed instances.
func (r *RespawnManager) Reap(now time.Time, mgr *Manager) []string {
	var removed []string
	for _, inst := range mgr.Defeated() {
		if err := mgr.Remove(inst.ID()); err != nil {
			continue
		}
		removed = append(removed, inst.ID())
		r.Schedule(inst.TemplateID, inst.Location, now, r.ResolvedDelay(inst.TemplateID, inst.Location))
	}
	return removed
}

// Tick drains entries whose readyAt <= now and spawns each one whose location
// is still below its cap.
//
// Postcondition: Pending entries with readyAt <= now are consumed.
func (r *RespawnManager) Tick(now time.Time, mgr *Manager) []*Instance {
	r.mu.Lock()
	var ready, future []respawnEntry
	for _, e := range r.pending {
		if !e.readyAt.After(now) {
			ready = append(ready, e)
		} else {
			future = append(future, e)
		}
	}
	r.pending = future
	r.mu.Unlock()

	var spawned []*Instance
	for _, e := range ready {
		tmpl, ok := r.templates[e.templateID]
		if !ok {
			continue
		}
		if cfg, ok := r.configFor(e.location, e.templateID); ok {
			if len(r.matching(e.location, e.templateID, mgr)) >= cfg.Max {
				continue
			}
		}
		if inst, err := mgr.Spawn(tmpl, e.location, now); err == nil {
			spawned = append(spawned, inst)
		}
	}
	return spawned
}

// ResolvedDelay returns the location override if set, otherwise the template's
// delay. Returns 0 when neither is set or the template is unknown.
func (r *RespawnManager) ResolvedDelay(templateID, location string) time.Duration {
	if cfg, ok := r.configFor(location, templateID); ok && cfg.RespawnDelay > 0 {
		return cfg.RespawnDelay
	}
	tmpl, ok := r.templates[templateID]
	if !ok {
		return 0
	}
	return tmpl.Respawn()
}

func (r *RespawnManager) configFor(location, templateID string) (LocationSpawn, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, cfg := range r.spawns[location] {
		if cfg.TemplateID == templateID {
			return cfg, true
		}
	}
	return LocationSpawn{}, false
}

func (r *RespawnManager) matching(location, templateID string, mgr *Manager) []*Instance {
	var out []*Instance
	for _, inst := range mgr.InstancesIn(location) {
		if inst.TemplateID == templateID {
			out = append(out, inst)
		}
	}
	return out
}

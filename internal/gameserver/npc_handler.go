package gameserver

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/actioncore/internal/game/ai"
	"github.com/cory-johannsen/actioncore/internal/game/npc"
)

// NPCHandler drives NPC upkeep on the AI shard: reaping the defeated,
// respawning the due, and letting every living NPC act.
type NPCHandler struct {
	npcs    *npc.Manager
	respawn *npc.RespawnManager
	chooser *ai.Chooser
	logger  *zap.Logger
}

// NewNPCHandler creates an NPCHandler. respawn may be nil when no spawn table
// is configured.
//
// Precondition: npcs, chooser, and logger must be non-nil.
func NewNPCHandler(npcs *npc.Manager, respawn *npc.RespawnManager, chooser *ai.Chooser, logger *zap.Logger) *NPCHandler {
	if npcs == nil || chooser == nil || logger == nil {
		panic("gameserver.NewNPCHandler: npcs, chooser, and logger must be non-nil")
	}
	return &NPCHandler{npcs: npcs, respawn: respawn, chooser: chooser, logger: logger}
}

// Populate spawns the initial population of every location in the spawn table.
//
// Postcondition: Returns how many instances exist after populating.
func (h *NPCHandler) Populate(now time.Time) int {
	if h.respawn == nil {
		return len(h.npcs.All())
	}
	for _, loc := range h.respawn.Locations() {
		for _, err := range h.respawn.PopulateLocation(loc, h.npcs, now) {
			h.logger.Warn("spawning npc", zap.String("location", loc), zap.Error(err))
		}
	}
	n := len(h.npcs.All())
	h.logger.Info("npcs populated", zap.Int("count", n))
	return n
}

// Tick runs one upkeep pass and returns how many action attempts NPCs made.
func (h *NPCHandler) Tick(ctx context.Context, now time.Time) int {
	if h.respawn != nil {
		if reaped := h.respawn.Reap(now, h.npcs); len(reaped) > 0 {
			h.logger.Debug("npcs reaped", zap.Strings("ids", reaped))
		}
		for _, inst := range h.respawn.Tick(now, h.npcs) {
			h.logger.Debug("npc respawned",
				zap.String("id", inst.ID()),
				zap.String("location", inst.Location),
			)
		}
	}
	return h.chooser.Tick(ctx, h.npcs.All(), now)
}

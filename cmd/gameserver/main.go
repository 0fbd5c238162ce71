// Package main provides the game server binary: it loads ability content,
// runs the action executor with regeneration and NPC AI, and serves the
// AbilityService over gRPC and, optionally, a telnet play console.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log"
	"net"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"

	"github.com/cory-johannsen/actioncore/internal/config"
	"github.com/cory-johannsen/actioncore/internal/frontend/handlers"
	"github.com/cory-johannsen/actioncore/internal/frontend/telnet"
	"github.com/cory-johannsen/actioncore/internal/game/ability"
	"github.com/cory-johannsen/actioncore/internal/game/ai"
	"github.com/cory-johannsen/actioncore/internal/game/command"
	"github.com/cory-johannsen/actioncore/internal/game/dice"
	"github.com/cory-johannsen/actioncore/internal/game/entity"
	"github.com/cory-johannsen/actioncore/internal/game/npc"
	"github.com/cory-johannsen/actioncore/internal/game/regen"
	"github.com/cory-johannsen/actioncore/internal/game/session"
	"github.com/cory-johannsen/actioncore/internal/gameserver"
	"github.com/cory-johannsen/actioncore/internal/observability"
	"github.com/cory-johannsen/actioncore/internal/scripting"
	"github.com/cory-johannsen/actioncore/internal/server"
	"github.com/cory-johannsen/actioncore/internal/storage/postgres"
)

func main() {
	start := time.Now()

	configPath := flag.String("config", "configs/dev.yaml", "path to configuration file")
	bridgeBuffer := flag.Int("bridge-buffer", session.DefaultBridgeBuffer, "per-player notification buffer size")
	flag.Parse()

	ctx := context.Background()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logging, cfg.Server)
	if err != nil {
		log.Fatalf("initializing logger: %v", err)
	}
	defer logger.Sync()

	logger.Info("starting game server",
		zap.String("type", cfg.Server.Type),
		zap.String("mode", cfg.Server.Mode),
		zap.String("grpc_addr", cfg.GameServer.Addr()),
		zap.Bool("console", cfg.Console.Enabled),
	)

	metrics, err := observability.NewActionMetrics()
	if err != nil {
		logger.Fatal("creating action metrics", zap.Error(err))
	}
	diceRoller := dice.NewLoggedRoller(dice.NewCryptoSource(), logger)

	// Effect routines must all be registered before the first catalog load.
	effects := ability.NewEffectRegistry()
	var scriptMgr *scripting.Manager
	if cfg.Abilities.ScriptDir != "" {
		scriptStart := time.Now()
		scriptMgr = scripting.NewManager(diceRoller, logger, cfg.Abilities.ScriptInstructionLimit)
		defer scriptMgr.Close()
		if err := scriptMgr.LoadGlobal(cfg.Abilities.ScriptDir); err != nil {
			logger.Fatal("loading global scripts", zap.String("dir", cfg.Abilities.ScriptDir), zap.Error(err))
		}
		names := scriptMgr.RegisterEffects(effects)
		logger.Info("scripting engine initialized",
			zap.Int("effects", len(names)),
			zap.Duration("elapsed", time.Since(scriptStart)),
		)
	}

	contentStart := time.Now()
	content, err := ability.LoadContent(cfg.Abilities.ContentDir)
	if err != nil {
		logger.Fatal("loading content", zap.String("dir", cfg.Abilities.ContentDir), zap.Error(err))
	}
	catalog := ability.NewCatalog(effects, logger)
	if _, err := catalog.Reload(content.Actions, content.Conditions); err != nil {
		logger.Fatal("loading action catalog", zap.Error(err))
	}
	logger.Info("content loaded",
		zap.Int("archetypes", len(content.Archetypes.All())),
		zap.Int("actions", catalog.Snapshot().Len()),
		zap.Int("conditions", len(content.Conditions.All())),
		zap.Duration("elapsed", time.Since(contentStart)),
	)

	if scriptMgr != nil {
		for _, arch := range content.Archetypes.All() {
			archDir := filepath.Join(cfg.Abilities.ScriptDir, "archetypes", arch.ID)
			if info, err := os.Stat(archDir); err != nil || !info.IsDir() {
				continue
			}
			if err := scriptMgr.Load(arch.ID, archDir); err != nil {
				logger.Fatal("loading archetype scripts", zap.String("archetype", arch.ID), zap.Error(err))
			}
			logger.Info("archetype scripts loaded", zap.String("archetype", arch.ID), zap.String("dir", archDir))
		}
	}

	var (
		store      gameserver.SheetStore
		identities *postgres.PlayerRepository
		pool       *postgres.Pool
	)
	if cfg.Server.Persistent() {
		dbStart := time.Now()
		pool, err = postgres.NewPool(ctx, cfg.Database)
		if err != nil {
			logger.Fatal("connecting to database", zap.Error(err))
		}
		logger.Info("database connected",
			zap.String("host", cfg.Database.Host),
			zap.Duration("elapsed", time.Since(dbStart)),
		)
		store = postgres.NewSheetRepository(pool.DB())
		identities = postgres.NewPlayerRepository(pool.DB())
	}

	directory := entity.NewManager()
	sessMgr := session.NewManager(directory, *bridgeBuffer)
	publisher := gameserver.NewBridgePublisher(sessMgr, logger)

	npcMgr := npc.NewManager(directory, content.Archetypes)
	exec := ability.NewExecutor(catalog, effects, directory, diceRoller, logger,
		ability.WithPublisher(publisher),
		ability.WithMetrics(metrics),
		ability.WithRewards(npcMgr.ExperienceFor),
	)
	handler := gameserver.NewAbilityHandler(exec, directory, command.DefaultRegistry(), logger)
	grpcService := gameserver.NewAbilityService(handler, exec, sessMgr, content.Archetypes, store,
		gameserver.ContentReloader(catalog, cfg.Abilities.ContentDir), logger)
	if identities != nil {
		grpcService.WithIdentities(identities)
	}

	npcHandler, err := loadNPCs(cfg.Abilities.ContentDir, npcMgr, directory, content, exec, scriptMgr, logger)
	if err != nil {
		logger.Fatal("loading npcs", zap.Error(err))
	}
	spawned := npcHandler.Populate(time.Now())
	logger.Info("initial NPC population complete", zap.Int("npcs", spawned))

	regenDriver := regen.NewDriver(directory, publisher, metrics,
		cfg.Abilities.RegenInterval, cfg.Abilities.ActiveWindow, logger)

	aiTicks := gameserver.NewShardTickManager(cfg.Abilities.AIInterval)
	aiTicks.RegisterTick("npcs", func(ctx context.Context, now time.Time) {
		npcHandler.Tick(ctx, now)
	})

	grpcServer := grpc.NewServer()
	gameserver.RegisterAbilityServer(grpcServer, grpcService)

	lifecycle := server.NewLifecycle(logger)
	// Stopped last: disconnecting players save through the pool.
	if pool != nil {
		health := server.NewLoopService(func(ctx context.Context) error {
			ticker := time.NewTicker(30 * time.Second)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return nil
				case <-ticker.C:
					stats, err := pool.Health(ctx, 5*time.Second)
					if err != nil {
						logger.Warn("database health check failed", zap.Error(err))
						continue
					}
					logger.Debug("database healthy",
						zap.Int32("conns", stats.Total),
						zap.Int32("idle", stats.Idle),
						zap.Int32("acquired", stats.Acquired),
					)
				}
			}
		})
		lifecycle.Add("postgres", &server.FuncService{
			StartFn: health.Start,
			StopFn: func() {
				health.Stop()
				saveCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
				defer cancel()
				if saved, err := grpcService.SaveAll(saveCtx); err != nil {
					logger.Error("final sheet save incomplete", zap.Int("saved", saved), zap.Error(err))
				} else {
					logger.Info("final sheet save complete", zap.Int("saved", saved))
				}
				pool.Close()
			},
		})
		if cfg.Abilities.PersistInterval > 0 {
			persistTicks := gameserver.NewShardTickManager(cfg.Abilities.PersistInterval)
			persistTicks.RegisterTick("sheets", func(ctx context.Context, _ time.Time) {
				saved, err := grpcService.SaveAll(ctx)
				if err != nil {
					logger.Warn("periodic sheet save incomplete", zap.Int("saved", saved), zap.Error(err))
					return
				}
				logger.Debug("sheets saved", zap.Int("saved", saved))
			})
			lifecycle.Add("persistence", server.NewLoopService(func(ctx context.Context) error {
				persistTicks.Start(ctx)
				<-ctx.Done()
				return nil
			}))
		}
	}

	lifecycle.Add("grpc", &server.FuncService{
		StartFn: func() error {
			lis, err := net.Listen("tcp", cfg.GameServer.Addr())
			if err != nil {
				return fmt.Errorf("listening on %s: %w", cfg.GameServer.Addr(), err)
			}
			logger.Info("gRPC server listening",
				zap.String("addr", lis.Addr().String()),
			)
			return grpcServer.Serve(lis)
		},
		StopFn: func() {
			// Connect streams end only when clients hang up.
			force := time.AfterFunc(5*time.Second, grpcServer.Stop)
			defer force.Stop()
			grpcServer.GracefulStop()
		},
	})
	if cfg.Console.Enabled {
		archetypeIDs := make([]string, 0, len(content.Archetypes.All()))
		for _, arch := range content.Archetypes.All() {
			archetypeIDs = append(archetypeIDs, arch.ID)
		}
		console := handlers.NewConsole(grpcService, handler, directory, archetypeIDs, cfg.Console.StartLocation, logger)
		consoleServer := telnet.NewServer(cfg.Console, console, logger)
		lifecycle.Add("console", &server.FuncService{
			StartFn: consoleServer.ListenAndServe,
			StopFn:  consoleServer.Stop,
		})
	}
	lifecycle.Add("ticks", server.NewLoopService(func(ctx context.Context) error {
		aiTicks.Start(ctx)
		regenDriver.Run(ctx)
		return nil
	}))

	logger.Info("game server initialized",
		zap.Duration("startup", time.Since(start)),
		zap.String("grpc_addr", cfg.GameServer.Addr()),
	)

	if err := lifecycle.Run(ctx); err != nil {
		logger.Fatal("server error", zap.Error(err))
	}
}

// loadNPCs reads dir/npcs, dir/spawns.yaml, and dir/ai. Each part is optional.
func loadNPCs(
	dir string,
	npcMgr *npc.Manager,
	directory *entity.Manager,
	content *ability.Content,
	exec *ability.Executor,
	scriptMgr *scripting.Manager,
	logger *zap.Logger,
) (*gameserver.NPCHandler, error) {
	var scripts ai.ScriptCaller
	if scriptMgr != nil {
		scripts = scriptMgr
	}

	templates, err := npc.LoadTemplates(filepath.Join(dir, "npcs"))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading npc templates: %w", err)
	}
	templateByID := make(map[string]*npc.Template, len(templates))
	for _, tmpl := range templates {
		if _, ok := content.Archetypes.Get(tmpl.Archetype); !ok {
			return nil, fmt.Errorf("npc template %q: unknown archetype %q", tmpl.ID, tmpl.Archetype)
		}
		templateByID[tmpl.ID] = tmpl
	}
	logger.Info("loaded npc templates", zap.Int("count", len(templates)))

	var respawn *npc.RespawnManager
	spawns, err := npc.LoadSpawns(filepath.Join(dir, "spawns.yaml"))
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("loading spawns: %w", err)
	default:
		for loc, cfgs := range spawns {
			for _, sc := range cfgs {
				if _, ok := templateByID[sc.TemplateID]; !ok {
					return nil, fmt.Errorf("spawn in %q references unknown npc template %q", loc, sc.TemplateID)
				}
			}
		}
		respawn = npc.NewRespawnManager(spawns, templateByID)
		logger.Info("built respawn manager", zap.Int("locations", len(spawns)))
	}

	planners := ai.NewRegistry()
	domains, err := ai.LoadDomains(filepath.Join(dir, "ai"))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading ai domains: %w", err)
	}
	if err := planners.RegisterAll(domains, scripts); err != nil {
		return nil, fmt.Errorf("registering ai domains: %w", err)
	}
	logger.Info("loaded AI domains", zap.Strings("domains", planners.IDs()))

	chooser := ai.NewChooser(exec, directory, planners, scripts, logger)
	return gameserver.NewNPCHandler(npcMgr, respawn, chooser, logger), nil
}

package main

import (
	"context"
	"fmt"
	mrand "math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"

	"github.com/nidhogg/terrarium/internal/api"
	"github.com/nidhogg/terrarium/internal/bus"
	"github.com/nidhogg/terrarium/internal/chat"
	"github.com/nidhogg/terrarium/internal/community"
	"github.com/nidhogg/terrarium/internal/config"
	"github.com/nidhogg/terrarium/internal/gateway"
	"github.com/nidhogg/terrarium/internal/graph"
	"github.com/nidhogg/terrarium/internal/memory"
	"github.com/nidhogg/terrarium/internal/moderation"
	"github.com/nidhogg/terrarium/internal/persona"
	"github.com/nidhogg/terrarium/internal/provider"
	"github.com/nidhogg/terrarium/internal/sim"
	pgstore "github.com/nidhogg/terrarium/internal/store"
)

func main() {
	_ = godotenv.Load()

	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "configs/terrarium.json"
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		bootLogger, _ := zap.NewDevelopment()
		bootLogger.Fatal("failed to load config", zap.String("path", cfgPath), zap.Error(err))
	}

	logger := newLogger(cfg.Server.LogLevel)
	defer logger.Sync()

	logger.Info("Starting Terrarium...", zap.String("config", cfgPath))

	ctx := context.Background()

	// LLM providers
	router := provider.NewRouter(logger)
	for _, pc := range cfg.Providers {
		provCfg := provider.ProviderConfig{
			ID: pc.ID, Type: pc.Type, Name: pc.Name,
			Endpoint: pc.Endpoint, APIKey: pc.APIKey,
			Models: pc.Models, Extra: pc.Extra,
		}
		switch pc.Type {
		case "openai":
			router.Register(provider.NewOpenAIProvider(provCfg, logger))
		case "anthropic":
			router.Register(provider.NewAnthropicProvider(provCfg, logger))
		default:
			logger.Warn("unknown provider type", zap.String("id", pc.ID), zap.String("type", pc.Type))
		}
	}

	roster := persona.NewRoster(logger)
	chatStore := chat.NewStore(logger)

	// PostgreSQL transcripts and community feed
	var pgStore *pgstore.Store
	if cfg.Database.Postgres.DSN != "" {
		ps, pgErr := pgstore.New(ctx, cfg.Database.Postgres.DSN, logger)
		if pgErr != nil {
			logger.Warn("PostgreSQL unavailable, running without persistence", zap.Error(pgErr))
		} else {
			if mErr := ps.Migrate(ctx, "migrations"); mErr != nil {
				logger.Fatal("migration failed", zap.Error(mErr))
			}
			pgStore = ps
			chatStore.Subscribe(ps)
		}
	}

	var feed community.Feed
	if pgStore != nil {
		feed = pgStore
	} else {
		feed = community.NewMemoryFeed()
	}

	// Redis stream for spectator tooling
	var publisher *bus.Publisher
	if cfg.Database.Redis.URL != "" {
		pub, busErr := bus.NewPublisher(cfg.Database.Redis.URL, logger)
		if busErr != nil {
			logger.Warn("Redis unavailable, running without message stream", zap.Error(busErr))
		} else {
			publisher = pub
			chatStore.Subscribe(pub)
		}
	}

	// Neo4j relationship mirror
	var graphDriver neo4j.DriverWithContext
	var affinity *graph.AffinityMirror
	if cfg.Database.Neo4j.URI != "" {
		drv, gErr := neo4j.NewDriverWithContext(cfg.Database.Neo4j.URI,
			neo4j.BasicAuth(cfg.Database.Neo4j.User, cfg.Database.Neo4j.Password, ""))
		if gErr == nil {
			gErr = drv.VerifyConnectivity(ctx)
		}
		if gErr != nil {
			logger.Warn("Neo4j unavailable, running without relationship graph", zap.Error(gErr))
		} else {
			graphDriver = drv
			affinity = graph.NewAffinityMirror(drv, roster, logger)
		}
	}

	// Qdrant vector memory
	var vectorMem *memory.VectorMemory
	if cfg.Embedding.Endpoint != "" && cfg.Database.Qdrant.Host != "" {
		embedder := memory.NewEmbedder(cfg.Embedding.Endpoint, cfg.Embedding.Model,
			cfg.Embedding.APIKey, cfg.Embedding.Dimension)
		vm, vErr := memory.NewVectorMemory(ctx, cfg.Database.Qdrant.Host, cfg.Database.Qdrant.Port, embedder, logger)
		if vErr != nil {
			logger.Warn("Qdrant unavailable, running without long-term memory", zap.Error(vErr))
		} else {
			vectorMem = vm
		}
	}

	// Populate the world
	prng := mrand.New(mrand.NewSource(time.Now().UnixNano()))
	popGen := persona.NewGenerator(router, cfg.World.Model, prng, logger)
	if err := popGen.Populate(ctx, roster, cfg.World.AdminName, cfg.World.MinParticipants, cfg.World.MaxParticipants); err != nil {
		logger.Fatal("population failed", zap.Error(err))
	}
	bootstrapper := chat.NewBootstrapper(router, cfg.World.Model, cfg.World.Language, prng, logger)
	if err := bootstrapper.Bootstrap(ctx, chatStore, roster, cfg.World.MinChannels, cfg.World.MaxChannels); err != nil {
		logger.Fatal("channel bootstrap failed", zap.Error(err))
	}

	// Chat mirrors and websocket spectators
	hub := gateway.NewHub(logger)
	chatStore.Subscribe(hub)

	var mirrors []interface{ Close() error }
	mirrors = append(mirrors, hub)
	if cfg.Mirrors.Slack.Enabled && cfg.Mirrors.Slack.BotToken != "" {
		sm, smErr := gateway.NewSlackMirror(cfg.Mirrors.Slack.BotToken, cfg.Mirrors.Slack.ChannelID,
			chatStore.ActiveChannel, logger)
		if smErr != nil {
			logger.Warn("Slack unavailable, running without Slack mirror", zap.Error(smErr))
		} else {
			chatStore.Subscribe(sm)
			mirrors = append(mirrors, sm)
		}
	}
	if cfg.Mirrors.Discord.Enabled && cfg.Mirrors.Discord.BotToken != "" {
		dm, dmErr := gateway.NewDiscordMirror(cfg.Mirrors.Discord.BotToken, cfg.Mirrors.Discord.ChannelID,
			chatStore.ActiveChannel, logger)
		if dmErr != nil {
			logger.Warn("Discord unavailable, running without Discord mirror", zap.Error(dmErr))
		} else {
			chatStore.Subscribe(dm)
			mirrors = append(mirrors, dm)
		}
	}

	// Behavioral engine
	tuning := cfg.Tuning
	rng := sim.NewRand(time.Now().UnixNano())
	clock := sim.NewClock(time.Second, logger)

	var recall sim.Recaller
	var memorize sim.Memorizer
	if vectorMem != nil {
		recall = vectorMem
		memorize = vectorMem
	}

	oracle := sim.NewOracle(roster, router, cfg.World.Model, tuning, rng, logger)
	selector := sim.NewSelector(roster, tuning, rng)
	generator := sim.NewGenerator(router, cfg.World.Model, cfg.World.Language, recall, rng, logger)
	updater := sim.NewUpdater(roster, tuning, rng, memorize)
	presence := sim.NewPresenceEngine(roster, chatStore, tuning, rng, logger)
	drift := sim.NewDriftEngine(roster, tuning, rng)

	simulator := sim.NewSimulator(roster, chatStore, oracle, selector, generator,
		updater, presence, drift, tuning, rng, clock, logger)

	// Side jobs on the same clock
	engine := community.NewEngine(roster, router, feed, cfg.World.Model, cfg.World.Language, rng, logger)
	clock.AddJob("community", tuning.CommunityTick, engine.Tick)
	if affinity != nil {
		clock.AddJob("graph-sync", 30*time.Second, affinity.SyncJob())
	}
	if pgStore != nil {
		clock.AddJob("snapshot", time.Minute, pgStore.SnapshotJob(roster))
	}

	moderator := moderation.NewModerator(roster, chatStore, simulator, logger)

	simulator.Start()
	logger.Info("Simulation started", zap.Int("participants", roster.Len()))

	handler := api.NewHandler(roster, chatStore, simulator, moderator, feed, router, logger)

	port := fmt.Sprintf("%d", cfg.Server.Port)
	if port == "0" {
		port = "8080"
	}
	mux := http.NewServeMux()
	mux.Handle("/ws", hub)
	mux.Handle("/", handler.Router())
	srv := &http.Server{
		Addr:    ":" + port,
		Handler: mux,
	}

	go func() {
		logger.Info("Terrarium listening", zap.String("port", port))
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down Terrarium...")
	simulator.Stop()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	srv.Shutdown(shutdownCtx)
	for _, m := range mirrors {
		m.Close()
	}
	if publisher != nil {
		publisher.Close()
	}
	if vectorMem != nil {
		vectorMem.Close()
	}
	if graphDriver != nil {
		graphDriver.Close(shutdownCtx)
	}
	if pgStore != nil {
		pgStore.Close()
	}
}

func newLogger(level string) *zap.Logger {
	cfg := zap.NewDevelopmentConfig()
	switch level {
	case "debug":
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	case "warn":
		cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	case "error":
		cfg.Level = zap.NewAtomicLevelAt(zap.ErrorLevel)
	default:
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}
	logger, err := cfg.Build()
	if err != nil {
		logger, _ = zap.NewDevelopment()
	}
	return logger
}

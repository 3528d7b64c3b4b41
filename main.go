package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/camilo-ai/camilo/pkg/config"
	"github.com/camilo-ai/camilo/rag"
	"github.com/camilo-ai/camilo/rag/engine"
	"github.com/camilo-ai/camilo/rag/sources"
	"github.com/mudler/xlog"
)

// sourceTick is how often registered sources are checked for due updates
const sourceTick = time.Minute

type index interface {
	rag.Searcher
	rag.IndexWriter
}

func main() {
	configPath := os.Getenv("CONFIG_FILE")
	if configPath == "" {
		configPath = "config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		xlog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ai := engine.NewOpenAI(cfg.OpenAI.APIKey, cfg.OpenAI.BaseURL)

	var (
		store    index
		recorder rag.TurnRecorder
	)
	switch cfg.Storage.Engine {
	case config.EnginePostgres:
		pg, err := engine.NewPostgresIndex(ctx, cfg.Storage.DatabaseURL, cfg.Storage.EmbeddingDimensions)
		if err != nil {
			xlog.Error("Failed to create postgres index", "error", err)
			os.Exit(1)
		}
		defer pg.Close()
		store, recorder = pg, pg
	default:
		chromemIndex, err := engine.NewChromemIndex(cfg.Storage.CollectionDBPath)
		if err != nil {
			xlog.Error("Failed to create chromem index", "error", err)
			os.Exit(1)
		}
		transcripts, err := rag.NewTranscriptLog(cfg.Storage.TranscriptLog)
		if err != nil {
			xlog.Error("Failed to open transcript log", "error", err)
			os.Exit(1)
		}
		store, recorder = chromemIndex, transcripts
	}

	ranker := rag.NewContextRanker(ai, store,
		rag.WithEmbeddingModel(cfg.OpenAI.EmbeddingModel),
		rag.WithCallTimeout(cfg.CallTimeout),
	)
	orchestrator := rag.NewChatOrchestrator(ranker, ai, recorder,
		rag.WithCompletionModel(cfg.OpenAI.CompletionModel),
		rag.WithPersonaName(cfg.PersonaName),
		rag.WithCompletionTimeout(cfg.CallTimeout),
	)
	simulator := rag.NewSimulator(ai, cfg.OpenAI.SimulationModel, cfg.PersonaName)
	ingester := rag.NewIngester(ai, store, cfg.OpenAI.EmbeddingModel, cfg.Ingestion.MaxSegmentLength)

	sourceManager, err := rag.NewSourceManager(ingester,
		&sources.Config{GitPrivateKey: cfg.Ingestion.GitPrivateKey}, cfg.Storage.SourcesState)
	if err != nil {
		xlog.Error("Failed to create source manager", "error", err)
		os.Exit(1)
	}
	sourceManager.Start(ctx, sourceTick)

	e := newRouter(&services{
		orchestrator:   orchestrator,
		simulator:      simulator,
		ingester:       ingester,
		sources:        sourceManager,
		updateInterval: cfg.Ingestion.SourceUpdateInterval,
		adminKey:       cfg.AdminAPIKey,
	}, cfg.CORSOrigins)
	if cfg.AdminAPIKey == "" {
		xlog.Warn("ADMIN_API_KEY is not set, ingestion and source routes are disabled")
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := e.Shutdown(shutdownCtx); err != nil {
			xlog.Error("Failed to shut down server", "error", err)
		}
	}()

	xlog.Info("Starting server", "address", cfg.ListenAddress, "engine", cfg.Storage.Engine)
	if err := e.Start(cfg.ListenAddress); err != nil {
		xlog.Info("Server stopped", "reason", err)
	}
}

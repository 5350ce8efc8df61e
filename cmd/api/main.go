package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"safeshipper/manifests/internal/config"
	"safeshipper/manifests/internal/handlers"
	"safeshipper/manifests/internal/repositories"
	"safeshipper/manifests/internal/services"
)

func main() {
	cfg, envLoaded := config.Load()

	log, err := config.NewLogger(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	log.Info("config loaded", zap.Bool("dotenv", envLoaded), zap.String("env", cfg.Server.Env))
	if len(cfg.Auth.Tokens) == 0 {
		log.Warn("API_TOKENS is empty, every authenticated request will be rejected")
	}

	db, err := config.InitDatabase(cfg, log)
	if err != nil {
		log.Fatal("failed to initialize database", zap.Error(err))
	}

	shipmentRepo := repositories.NewShipmentRepository(db)
	manifestRepo := repositories.NewManifestRepository(db)
	documentRepo := repositories.NewDocumentRepository(db)
	dgRepo := repositories.NewDangerousGoodRepository(db)

	seeded, err := services.SeedCatalog(dgRepo)
	if err != nil {
		log.Fatal("failed to seed dangerous goods catalog", zap.Error(err))
	}
	if seeded {
		log.Info("dangerous goods catalog seeded", zap.Int("entries", len(services.DefaultCatalog())))
	}

	storageService := services.NewStorageService(
		cfg.Storage.UploadPath,
		cfg.Storage.MaxFileSize,
		cfg.Storage.AllowedExtensions,
	)
	if err := storageService.EnsureUploadDir(); err != nil {
		log.Fatal("failed to create upload directory", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	analyzerOpts, err := buildAnalysisPasses(ctx, cfg, log)
	if err != nil {
		log.Fatal("failed to initialize analysis passes", zap.Error(err))
	}

	analyzer := services.NewAnalyzerService(
		manifestRepo,
		dgRepo,
		services.NewDocumentParser(),
		log,
		analyzerOpts...,
	)

	worker := services.NewWorker(
		manifestRepo,
		analyzer,
		cfg.Worker.Concurrency,
		cfg.Worker.SweepInterval,
		cfg.Worker.AnalysisTimeout,
		log,
	)
	worker.Start(ctx)

	manifestService := services.NewManifestService(
		shipmentRepo,
		manifestRepo,
		documentRepo,
		dgRepo,
		storageService,
		worker,
		log,
	)

	app := handlers.NewApp(handlers.AppConfig{
		Name:      "SafeShipper Manifest API",
		BodyLimit: int(cfg.Storage.MaxFileSize) + 1<<20,
		Tokens:    cfg.Auth.Tokens,
		AccessLog: true,
	}, manifestService, log)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		log.Info("shutting down server")
		cancel()
		worker.Stop()
		if err := app.Shutdown(); err != nil {
			log.Error("server forced to shutdown", zap.Error(err))
		}
	}()

	addr := fmt.Sprintf(":%s", cfg.Server.Port)
	log.Info("server starting", zap.String("addr", addr))

	if err := app.Listen(addr); err != nil {
		log.Fatal("failed to start server", zap.Error(err))
	}
}

// buildAnalysisPasses wires the optional Gemini and Qdrant backed passes.
func buildAnalysisPasses(ctx context.Context, cfg *config.Config, log *zap.Logger) ([]services.AnalyzerOption, error) {
	if !cfg.Analysis.EnableAIExtraction && !cfg.Analysis.EnableSemanticSearch {
		return nil, nil
	}
	if cfg.Gemini.APIKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY is required when AI extraction or semantic search is enabled")
	}

	gemini, err := services.NewGeminiService(ctx, cfg.Gemini.APIKey, cfg.Worker.RetryInitialDelay, log)
	if err != nil {
		return nil, err
	}

	var opts []services.AnalyzerOption

	if cfg.Analysis.EnableSemanticSearch {
		store, err := services.NewQdrantService(cfg.Qdrant.URL, cfg.Qdrant.APIKey, cfg.Qdrant.Collection, log)
		if err != nil {
			return nil, err
		}
		if err := store.InitCollection(ctx); err != nil {
			return nil, err
		}
		opts = append(opts, services.WithSemanticMatcher(
			services.NewSemanticMatcher(gemini, store, cfg.Analysis.SemanticMinScore, log)))
		log.Info("semantic search enabled", zap.String("collection", cfg.Qdrant.Collection))
	}

	if cfg.Analysis.EnableAIExtraction {
		extractor, err := services.NewQuantityExtractor(gemini, cfg.Analysis.AIRequestsPerMinute, cfg.Worker.RetryMaxAttempts, log)
		if err != nil {
			return nil, err
		}
		opts = append(opts, services.WithQuantityExtractor(extractor))
		log.Info("AI quantity extraction enabled", zap.Int("requests_per_minute", cfg.Analysis.AIRequestsPerMinute))
	}

	return opts, nil
}

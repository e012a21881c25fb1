// File: cmd/app/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"dossier/internal/chunker"
	"dossier/internal/config"
	aiAdapters "dossier/internal/infra/adapters/ai"
	"dossier/internal/infra/adapters/crawler"
	"dossier/internal/infra/adapters/vector"
	pg "dossier/internal/infra/db/postgres"
	"dossier/internal/infra/logging"
	"dossier/internal/infra/metrics"
	red "dossier/internal/infra/redis"
	"dossier/internal/infra/web"
	"dossier/internal/infra/worker"
	"dossier/internal/usecase"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (console logging, debug level)")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Info().Msg("dev mode enabled")
	}
	metrics.MustRegister()

	// ---- Postgres ----
	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, 10)
	if err != nil {
		log.Fatalf("postgres: %v", err)
	}
	defer pool.Close()

	// ---- Redis ----
	var hashCache usecase.ContentHashCache
	if cfg.Redis.URL != "" {
		redisClient, err := red.NewClient(ctx, &cfg.Redis)
		if err != nil {
			log.Fatalf("redis: %v", err)
		}
		defer redisClient.Close()
		hashCache = red.NewContentCache(redisClient, cfg.Redis.TTL, logger)
	} else {
		logger.Warn().Msg("redis.url not set, content-hash dedup disabled")
	}

	// ---- Repositories ----
	docRepo := pg.NewDocumentRepo(pool)
	catRepo := pg.NewCategoryRepo(pool)
	txManager := pg.NewTxManager(pool)

	// ---- Adapters ----
	crawlerAdapter := crawler.NewBrowserlessCrawler(cfg.Crawler)
	embedder := aiAdapters.NewOpenAIEmbedder(cfg.AI)
	completer := aiAdapters.NewOpenAICompleter(cfg.AI)

	vectorStore := vector.NewQdrantStore(cfg.Vector, embedder.Dimension())
	if err := vectorStore.EnsureCollection(ctx); err != nil {
		log.Fatalf("qdrant: %v", err)
	}
	logger.Info().Str("collection", cfg.Vector.Collection).Int("dimension", embedder.Dimension()).
		Msg("vector collection ready")

	// ---- Use cases ----
	splitter := chunker.New(cfg.Ingest.ChunkSize, cfg.Ingest.ChunkOverlap)
	ingestionUC := usecase.NewIngestionUseCase(
		crawlerAdapter, embedder, vectorStore, hashCache, splitter, cfg.AI.EmbedBatchSize, logger)
	retrievalUC := usecase.NewRetrievalUseCase(embedder, vectorStore)
	inferenceUC := usecase.NewInferenceUseCase(
		retrievalUC, completer, docRepo, cfg.AI.CompletionModel, cfg.AI.PromptBudget, logger)
	docUC := usecase.NewDocumentUseCase(docRepo, txManager, vectorStore, hashCache, logger)
	catUC := usecase.NewCategoryUseCase(catRepo, docRepo, logger)

	// ---- Worker ----
	workerPool := worker.NewPool(cfg.Worker.Concurrency, logger)
	workerPool.Start(ctx)
	processor := worker.NewDocumentProcessor(
		docRepo, ingestionUC,
		cfg.Worker.PollInterval, cfg.Worker.MaxRetries, cfg.Worker.ProcessingTimeout,
		logger)
	go processor.Start(ctx, workerPool)

	// ---- HTTP server ----
	srv := web.NewServer(docUC, catUC, retrievalUC, inferenceUC, logger)
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: srv.Router(),
	}
	go func() {
		logger.Info().Str("addr", server.Addr).Msg("http server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("http server error")
		}
	}()

	// ---- Graceful shutdown ----
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	<-sigc
	logger.Info().Msg("shutdown requested")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Worker.ShutdownGrace)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown")
	}

	// Stop the poll loop, then drain in-flight ingestions. Documents left
	// mid-processing are recovered by the staleness check on next startup.
	cancel()
	workerPool.Stop()
	logger.Info().Msg("stopped")
}

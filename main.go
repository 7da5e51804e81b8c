package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	controller "github.com/Itish41/ndareview/controller"
	"github.com/Itish41/ndareview/converter"
	"github.com/Itish41/ndareview/initializers"
	"github.com/Itish41/ndareview/logger"
	middleware "github.com/Itish41/ndareview/middleware"
	"github.com/Itish41/ndareview/search"
	service "github.com/Itish41/ndareview/service"
	"github.com/Itish41/ndareview/staging"
	"github.com/Itish41/ndareview/store"
)

func main() {
	if err := initializers.LoadEnv(); err != nil {
		log.Fatalf("[CRITICAL] Failed to load env: %s", err)
	}
	cfg, err := initializers.LoadConfig()
	if err != nil {
		log.Fatalf("[CRITICAL] Invalid configuration: %s", err)
	}

	appLog, err := logger.New(cfg.AppEnv, cfg.LogLevel)
	if err != nil {
		log.Fatalf("[CRITICAL] Failed to build logger: %s", err)
	}
	defer appLog.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing := initializers.InitTracing(ctx, cfg, appLog)
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(shutdownCtx); err != nil {
			appLog.Warn("Tracing shutdown failed", "error", err)
		}
	}()

	db, err := initializers.ConnectDB(cfg, appLog)
	if err != nil {
		appLog.Fatal("Failed to initialize database connection", "error", err)
	}
	if cfg.RunMigrations {
		if err := initializers.Migrate(db, cfg.MigrationsDir, appLog); err != nil {
			appLog.Fatal("Failed to run database migrations", "error", err)
		}
	}
	docStore := store.NewGormStore(db, cfg.TempDocumentTTL)

	blobs, err := initializers.NewBlobStore(ctx, cfg)
	if err != nil {
		appLog.Fatal("Failed to initialize blob storage", "driver", cfg.BlobDriver, "error", err)
	}

	index, err := search.New(cfg.ElasticsearchURL, cfg.SearchIndex, appLog)
	if err != nil {
		appLog.Fatal("Failed to initialize search index", "error", err)
	}
	var searcher service.Searcher
	if index.Enabled() {
		searcher = index
	}

	var stage staging.Store
	if cfg.RedisAddr != "" {
		rs, err := staging.NewRedisStore(ctx, cfg.RedisAddr, cfg.StagingTTL)
		if err != nil {
			appLog.Fatal("Failed to connect to Redis", "addr", cfg.RedisAddr, "error", err)
		}
		stage = rs
	} else {
		appLog.Warn("REDIS_ADDR not set, upload staging disabled")
	}

	llmClient, err := initializers.NewLLM(cfg, appLog)
	if err != nil {
		appLog.Fatal("Failed to initialize model client", "error", err)
	}
	vectors, err := initializers.NewVectorStore(ctx, cfg, appLog)
	if err != nil {
		appLog.Fatal("Failed to initialize vector store", "error", err)
	}

	office := converter.NewLibreOffice(cfg.SofficePath, cfg.ConversionTimeout)
	if err := office.Available(); err != nil {
		appLog.Warn("Office conversion unavailable; .doc, .rtf and .odt uploads will fail", "error", err)
	}
	conv := converter.New(office)

	extraction := service.NewExtractionService(llmClient, docStore, blobs, index, appLog, cfg.ClauseWriteConcurrency)
	classification := service.NewClassificationService(llmClient, vectors, llmClient, appLog, cfg.ClassifyConcurrency)
	corpus := service.NewCorpusService(llmClient, vectors, appLog, cfg.ChunkSize, cfg.ChunkOverlap)
	pipeline := service.NewUploadPipeline(conv, extraction, appLog)
	documents := service.NewDocumentService(docStore, blobs, classification, searcher, appLog)

	go documents.RunSweeper(ctx, cfg.SweepInterval)

	if cfg.AppEnv == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware(initializers.ServiceName))
	router.Use(middleware.RequestLogger(appLog))
	router.Use(middleware.CORSMiddleware(cfg.CORSOrigins))

	// Global rate limiter for most routes
	router.Use(middleware.NewRateLimiter(cfg.GlobalRateLimit, time.Minute).Limit())
	router.Use(middleware.Timeout(cfg.RequestTimeout))

	// Model calls and writes get the stricter tier
	strict := middleware.NewRateLimiter(cfg.StrictRateLimit, time.Minute).Limit()

	controller.RegisterRoutes(router, controller.Controllers{
		Documents: controller.NewDocumentController(documents, appLog),
		Clauses:   controller.NewClauseController(pipeline, extraction, classification, stage, cfg.MaxUploadBytes, appLog),
		Uploads:   controller.NewUploadController(conv, blobs, stage, cfg.MaxUploadBytes, appLog),
		Corpus:    controller.NewCorpusController(corpus, cfg.VectorSearchLimit, appLog),
	}, strict)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		appLog.Info("HTTP server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLog.Fatal("HTTP server failed", "error", err)
		}
	}()

	<-ctx.Done()
	appLog.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLog.Error("Graceful shutdown failed", "error", err)
	}
}

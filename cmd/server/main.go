package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/logvault/logvault/internal/config"
	"github.com/logvault/logvault/internal/handler"
	"github.com/logvault/logvault/internal/middleware"
	"github.com/logvault/logvault/internal/pkg/logger"
	"github.com/logvault/logvault/internal/repository"
	"github.com/logvault/logvault/internal/service"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	// 1. Load Configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	logger.Init(cfg.Log.Level)

	// 2. Initialize Persistence
	// Record store (Postgres > Memory)
	var store service.Store
	var positionRepo service.PositionRepo
	if cfg.Database.DSN != "" {
		db, err := repository.NewDB(cfg)
		if err != nil {
			log.Fatalf("Failed to connect to db: %v", err)
		}
		logger.Info("Connected to PostgreSQL")

		store, err = repository.NewPostgresLogStore(db)
		if err != nil {
			log.Fatalf("Failed to initialize log store: %v", err)
		}

		gdb, err := repository.NewGormDB(db)
		if err != nil {
			log.Fatalf("Failed to open gorm: %v", err)
		}
		positionRepo, err = repository.NewGormPositionRepo(gdb)
		if err != nil {
			log.Fatalf("Failed to initialize position repo: %v", err)
		}
	} else {
		logger.Warn("No database DSN configured, records are kept in memory only")
		store = repository.NewMemoryLogStore()
	}

	// Watermark cache (Redis > Postgres positions > Memory)
	if cfg.Redis.Addr != "" {
		redisRepo, err := repository.NewRedisPositionRepo(cfg)
		if err == nil {
			logger.Info("Connected to Redis")
			positionRepo = redisRepo
		} else {
			logger.Error("Failed to connect to Redis, falling back", "error", err)
		}
	}
	if positionRepo == nil {
		positionRepo = repository.NewMemoryPositionRepo()
	}

	// 3. Initialize Core Services
	tracker := service.NewPositionTracker(store, positionRepo, cfg.Ingest.StartLine)
	tail := service.NewTailBroker(cfg.Ingest.TailBuffer)
	ingestSvc := service.NewIngestService(store, tracker, service.ParsePolicy(cfg.Ingest.ParsePolicy), tail)
	querySvc := service.NewQueryService(store)

	// 4. Initialize Handlers
	logsHandler := handler.NewLogsHandler(querySvc)
	ingestHandler := handler.NewIngestHandler(ingestSvc, tracker)
	tailHandler := handler.NewTailHandler(tail)

	// 5. Setup Router
	r := gin.Default()

	r.Use(middleware.ErrorHandler())
	r.Use(middleware.MetricsMiddleware())
	r.Use(middleware.RateLimitMiddleware(cfg.Server.RateLimit, cfg.Server.RateBurst))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok", "service": "logvault"})
	})

	if cfg.Metrics.Enabled {
		r.GET(cfg.Metrics.Path, gin.WrapH(promhttp.Handler()))
	}

	v1 := r.Group("/v1")
	{
		v1.GET("/logs", logsHandler.List)
		v1.GET("/files/:file_id/records", logsHandler.FileRecords)
		v1.GET("/files/:file_id/records/:line_no", logsHandler.Record)
		v1.GET("/files/:file_id/position", ingestHandler.Position)
		v1.POST("/ingest", ingestHandler.Start)
		v1.GET("/ingest/:run_id", ingestHandler.Status)
		v1.GET("/tail", tailHandler.Stream)
	}

	// 6. Run with graceful shutdown
	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: r,
	}

	go func() {
		logger.Info("Server listening", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down")
	ingestSvc.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("Forced shutdown: %v", err)
	}
}

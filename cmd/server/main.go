package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/subosito/gotenv"
	"go.uber.org/zap"

	"github.com/Pegais/Sretails-RetailStore-Management-Application/internal/catalog"
	"github.com/Pegais/Sretails-RetailStore-Management-Application/internal/config"
	"github.com/Pegais/Sretails-RetailStore-Management-Application/internal/extract"
	"github.com/Pegais/Sretails-RetailStore-Management-Application/internal/queue"
	"github.com/Pegais/Sretails-RetailStore-Management-Application/internal/repository"
	"github.com/Pegais/Sretails-RetailStore-Management-Application/internal/server"
	"github.com/Pegais/Sretails-RetailStore-Management-Application/internal/service"
	"github.com/Pegais/Sretails-RetailStore-Management-Application/internal/storage"
	"github.com/Pegais/Sretails-RetailStore-Management-Application/internal/worker"
	"github.com/Pegais/Sretails-RetailStore-Management-Application/pkg/database"
	"github.com/Pegais/Sretails-RetailStore-Management-Application/pkg/utils"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to configuration file")
	flag.Parse()

	_ = gotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := utils.NewLogger(utils.LoggerConfig{
		Level:      cfg.Logger.Level,
		OutputPath: cfg.Logger.OutputPath,
		Format:     cfg.Logger.Format,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("Starting SmartStore backend",
		zap.Int("port", cfg.Server.Port))

	db, err := database.New(database.Config{
		Path:            cfg.Database.Path,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	}, logger)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer db.Close()

	migrator := database.NewMigrator(db, logger)
	if err := migrator.RunMigrations(cfg.Database.MigrationsDir); err != nil {
		logger.Fatal("Failed to run database migrations", zap.Error(err))
	}

	if err := os.MkdirAll(cfg.Storage.BaseDir, 0o755); err != nil {
		logger.Fatal("Failed to create upload directory", zap.Error(err))
	}

	// Repositories
	inventoryRepo := repository.NewInventoryRepository(db.DB, logger)
	changeLogRepo := repository.NewChangeLogRepository(db.DB, logger)
	billRepo := repository.NewBillRepository(db.DB, logger)

	// Catalog reconciliation
	matcher := catalog.NewMatcher(inventoryRepo, logger)
	reconciler := catalog.NewReconciler(inventoryRepo, changeLogRepo, matcher, logger)

	// Object store and job queue
	objectStore := storage.NewLocalObjectStore(cfg.Storage.BaseDir, cfg.Storage.BaseURL, logger)
	jobQueue := queue.New(db.DB, cfg.Ingestion.MaxAttempts, cfg.Ingestion.RetryBaseDelay, logger)

	// Extraction pipeline
	prompts, err := extract.LoadPrompts(cfg.Ingestion.PromptsPath)
	if err != nil {
		logger.Warn("Falling back to built-in prompts", zap.Error(err))
		prompts = extract.DefaultPrompts()
	}
	structurer := extract.NewStructurer(cfg.OpenAI.APIKey, cfg.OpenAI.Model, cfg.OpenAI.Timeout, prompts, logger)
	ocrClient := extract.NewTesseractClient(cfg.OCR.Binary, cfg.OCR.Languages, logger)

	// Services
	billService := service.NewBillService(billRepo, inventoryRepo, objectStore, jobQueue, reconciler, logger)
	inventoryService := service.NewInventoryService(inventoryRepo, changeLogRepo, logger)

	// Background workers
	manager := worker.NewManager(logger)
	manager.Register(worker.NewBillProcessor(
		worker.ProcessorConfig{
			PollInterval:     cfg.Ingestion.PollInterval,
			JobTimeout:       cfg.Ingestion.JobTimeout,
			OCRConfidenceMin: cfg.Ingestion.OCRConfidenceMin,
			MaxPDFPages:      cfg.Ingestion.MaxPDFPages,
		},
		jobQueue, billRepo, objectStore, ocrClient, structurer, reconciler, logger,
	))

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := manager.StartAll(ctx); err != nil {
		logger.Fatal("Failed to start workers", zap.Error(err))
	}
	defer func() {
		stopCtx, stopCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer stopCancel()
		if err := manager.Shutdown(stopCtx); err != nil {
			logger.Warn("Workers did not stop cleanly", zap.Error(err))
		}
	}()

	srv := server.New(server.Config{
		Host:         cfg.Server.Host,
		Port:         cfg.Server.Port,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}, billService, inventoryService, logger)

	if err := srv.Start(ctx); err != nil {
		logger.Fatal("HTTP server failed", zap.Error(err))
	}

	logger.Info("Server exited")
}

package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/smartdom/crm-api/docs"
	"github.com/smartdom/crm-api/internal/auth"
	"github.com/smartdom/crm-api/internal/config"
	"github.com/smartdom/crm-api/internal/database"
	"github.com/smartdom/crm-api/internal/http/handler"
	"github.com/smartdom/crm-api/internal/http/middleware"
	"github.com/smartdom/crm-api/internal/http/router"
	"github.com/smartdom/crm-api/internal/jobs"
	"github.com/smartdom/crm-api/internal/logger"
	"github.com/smartdom/crm-api/internal/notify"
	"github.com/smartdom/crm-api/internal/realtime"
	"github.com/smartdom/crm-api/internal/repository"
	"github.com/smartdom/crm-api/internal/service"
	"github.com/smartdom/crm-api/internal/storage"
	"go.uber.org/zap"
)

// @title SmartDom CRM API
// @version 1.0
// @description Installation objects, stage workflow, tasks, proposals and invoices

// @contact.name API Support
// @contact.email dev@smartdom.by

// @host localhost:8080
// @BasePath /api/v1

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description JWT Bearer token

// @securityDefinitions.apikey ApiKeyAuth
// @in header
// @name x-api-key
// @description API key for service calls; the actor is taken from X-Actor-ID
// @Security BearerAuth
// @Security ApiKeyAuth

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, cancelRun := context.WithCancel(context.Background())
	defer cancelRun()

	basicCfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log, err := logger.NewLogger(&basicCfg.Logging, &basicCfg.App)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	log.Info("Starting application",
		zap.String("app", basicCfg.App.Name),
		zap.String("env", basicCfg.App.Environment),
		zap.Int("port", basicCfg.App.Port),
	)
	if basicCfg.App.Environment == "development" {
		docs.SwaggerInfo.Host = fmt.Sprintf("localhost:%d", basicCfg.App.Port)
	}

	// Secrets come from Key Vault in staging/production when enabled, env otherwise
	cfg, err := config.LoadWithSecrets(ctx, log)
	if err != nil {
		return fmt.Errorf("failed to load secrets: %w", err)
	}
	vatRate, err := cfg.Pricing.VATRateDecimal()
	if err != nil {
		return err
	}

	db, err := database.NewDatabase(&cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	if cfg.Database.AutoMigrate {
		if err := database.AutoMigrate(db); err != nil {
			return fmt.Errorf("failed to auto-migrate: %w", err)
		}
		log.Warn("Schema auto-migrated from models; use cmd/migrate outside development")
	}

	// Change events: Redis pub/sub across instances, or the local hub alone
	hub := realtime.NewHub(64)
	var publisher realtime.Publisher = hub
	checks := map[string]router.Check{}
	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient, err = realtime.NewRedisClient(ctx, &cfg.Redis)
		if err != nil {
			return err
		}
		publisher = realtime.NewLoggingPublisher(realtime.NewRedisPublisher(redisClient, cfg.Redis.Channel), log)
		checks["redis"] = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
		go func() {
			if err := realtime.Relay(ctx, redisClient, cfg.Redis.Channel, hub, log); err != nil {
				log.Error("Realtime relay stopped", zap.Error(err))
			}
		}()
		log.Info("Realtime events via redis", zap.String("channel", cfg.Redis.Channel))
	} else {
		log.Info("Redis disabled, realtime events stay on this instance")
	}

	// A nil interface, not a typed nil, turns chat delivery off
	var chatSender service.ChatSender
	telegram, err := notify.NewTelegramSender(cfg, log)
	switch {
	case err == nil:
		chatSender = telegram
		log.Info("Telegram notifications enabled")
	case errors.Is(err, notify.ErrDisabled):
		log.Info("Telegram notifications disabled")
	default:
		log.Warn("Telegram bot unavailable, continuing without chat delivery", zap.Error(err))
	}

	fileStorage, err := storage.NewStorage(&cfg.Storage, log)
	if err != nil {
		return fmt.Errorf("failed to initialize file storage: %w", err)
	}
	log.Info("File storage initialized", zap.String("mode", cfg.Storage.Mode))

	// Repositories
	profileRepo := repository.NewProfileRepository(db)
	clientRepo := repository.NewClientRepository(db)
	objectRepo := repository.NewObjectRepository(db)
	stageRepo := repository.NewStageRepository(db)
	historyRepo := repository.NewHistoryRepository(db)
	taskRepo := repository.NewTaskRepository(db)
	proposalRepo := repository.NewProposalRepository(db)
	invoiceRepo := repository.NewInvoiceRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	numberSequenceRepo := repository.NewNumberSequenceRepository(db)
	fileRepo := repository.NewFileRepository(db)

	// Services
	notificationService := service.NewNotificationService(notificationRepo, profileRepo, chatSender, publisher, log)
	numberSequenceService := service.NewNumberSequenceService(numberSequenceRepo, log)
	clientService := service.NewClientService(clientRepo, publisher, log)
	objectService := service.NewObjectService(objectRepo, stageRepo, historyRepo, clientRepo, notificationService, publisher, log)
	workflowService := service.NewWorkflowService(objectRepo, stageRepo, taskRepo, notificationService, publisher, log)
	taskService := service.NewTaskService(taskRepo, objectRepo, notificationService, publisher, log)
	invoiceService := service.NewInvoiceService(invoiceRepo, proposalRepo, numberSequenceService, notificationService, publisher, vatRate, log)
	fileService := service.NewFileService(fileRepo, objectRepo, fileStorage, publisher, log)
	proposalService := service.NewProposalService(proposalRepo, clientRepo, objectRepo, numberSequenceService, invoiceService, notificationService, publisher, vatRate, log)

	authMiddleware := auth.NewMiddleware(cfg, log)
	rateLimiter := middleware.NewRateLimiter(&cfg.RateLimit, log)

	handlers := router.Handlers{
		Auth:         handler.NewAuthHandler(profileRepo, log),
		Client:       handler.NewClientHandler(clientService, log),
		Object:       handler.NewObjectHandler(objectService, workflowService, taskService, log),
		Task:         handler.NewTaskHandler(taskService, log),
		Proposal:     handler.NewProposalHandler(proposalService, invoiceService, log),
		Invoice:      handler.NewInvoiceHandler(invoiceService, log),
		Notification: handler.NewNotificationHandler(notificationService, log),
		Events:       handler.NewEventsHandler(hub, 0, log),
		File:         handler.NewFileHandler(fileService, cfg.Storage.MaxUploadSizeMB, log),
	}
	rt := router.NewRouter(cfg, log, db, authMiddleware, rateLimiter, handlers, checks)

	var scheduler *jobs.Scheduler
	if cfg.Jobs.Enabled {
		scheduler = jobs.NewScheduler(log)
		overdue := jobs.NewOverdueJob(workflowService, log, 0)
		if err := scheduler.Add(jobs.OverdueJobName, cfg.Jobs.OverdueSchedule, overdue.Run); err != nil {
			log.Error("Failed to register overdue job", zap.Error(err))
		}
		scheduler.Start()
		log.Info("Scheduler started", zap.Strings("jobs", scheduler.Names()))
	} else {
		log.Info("Background jobs disabled")
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.App.Port),
		Handler:      rt.Setup(),
		ReadTimeout:  cfg.Server.ReadTimeoutDuration(),
		WriteTimeout: cfg.Server.WriteTimeoutDuration(),
		// request contexts end with run, which closes long-lived event streams on shutdown
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	serverErrors := make(chan error, 1)
	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		serverErrors <- srv.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)
	case sig := <-shutdown:
		log.Info("Shutdown signal received", zap.String("signal", sig.String()))

		if scheduler != nil {
			<-scheduler.Stop().Done()
			log.Info("Scheduler stopped")
		}

		// Ends the relay and open event streams so Shutdown does not wait on them
		cancelRun()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("Failed to shutdown gracefully", zap.Error(err))
			return err
		}

		notificationService.Wait()

		if redisClient != nil {
			if err := redisClient.Close(); err != nil {
				log.Warn("Error closing redis connection", zap.Error(err))
			}
		}

		log.Info("Server stopped gracefully")
	}

	return nil
}

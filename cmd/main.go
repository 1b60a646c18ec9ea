package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/LegalDragon/pickleball-community/brackets"
	"github.com/LegalDragon/pickleball-community/config"
	"github.com/LegalDragon/pickleball-community/db"
	"github.com/LegalDragon/pickleball-community/handlers"
	"github.com/LegalDragon/pickleball-community/queue"
	"github.com/LegalDragon/pickleball-community/repositories"
	api "github.com/LegalDragon/pickleball-community/routes"
	"github.com/LegalDragon/pickleball-community/services"
	"github.com/LegalDragon/pickleball-community/storage"
	"github.com/go-chi/chi/v5"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
)

// @title Pickleball Scheduling API
// @version 1.0
// @description Шаблоны фаз, генерация расписания, байи и жеребьёвка дивизионов.
// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	// Загрузка конфигурации
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	// Настройка логгера
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)
	logger.Info("configuration loaded", slog.Int("port", cfg.ServerPort))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Подключение к базе данных
	dbConn, err := db.Connect(cfg.DatabaseURL, 5*time.Second)
	if err != nil {
		logger.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := dbConn.Close(); err != nil {
			logger.Error("failed to close database connection", slog.Any("error", err))
		} else {
			logger.Info("database connection closed")
		}
	}()
	logger.Info("database connection established")

	if err := db.Migrate(ctx, dbConn); err != nil {
		logger.Error("failed to apply database schema", slog.Any("error", err))
		os.Exit(1)
	}

	// Инициализация репозиториев
	templateRepo := repositories.NewPostgresTemplateRepository(dbConn)
	divisionRepo := repositories.NewPostgresDivisionRepository(dbConn)
	phaseRepo := repositories.NewPostgresPhaseRepository(dbConn)
	drawRepo := repositories.NewPostgresDrawRepository(dbConn)
	matchFormatRepo := repositories.NewPostgresMatchFormatRepository(dbConn)
	txManager := repositories.NewTxManager(dbConn, logger)
	logger.Info("repositories initialized")

	// Доменные события (RabbitMQ), если настроены
	var publisher queue.Publisher = queue.NoopPublisher{}
	if cfg.RabbitMQURL != "" {
		rabbit := queue.NewRabbitPublisher(cfg.RabbitMQURL, logger)
		defer func() {
			if err := rabbit.Close(); err != nil {
				logger.Warn("failed to close rabbitmq publisher", slog.Any("error", err))
			}
		}()
		publisher = rabbit
		logger.Info("rabbitmq publisher enabled")
	}

	// Архив подтверждённых жеребьёвок (Cloudflare R2), если настроен
	var archive services.DrawArchiver
	r2cfg := storage.CloudflareR2Config{
		AccountID:       cfg.R2AccountID,
		AccessKeyID:     cfg.R2AccessKeyID,
		SecretAccessKey: cfg.R2SecretAccessKey,
		BucketName:      cfg.R2BucketName,
		PublicBaseURL:   cfg.R2PublicBaseURL,
	}
	if r2cfg.Enabled() {
		store, err := storage.NewCloudflareR2Store(ctx, r2cfg)
		if err != nil {
			logger.Error("failed to initialize Cloudflare R2 store", slog.Any("error", err))
			os.Exit(1)
		}
		archive = storage.NewDrawArchive(store)
		logger.Info("draw archive enabled", slog.String("bucket", r2cfg.BucketName))
	}

	// Хаб и сервис жеребьёвки ссылаются друг на друга: хаб берёт снимок у сервиса.
	var drawingService services.DrawingService
	wsHub := brackets.NewHub(func(ctx context.Context, divisionID int) (*brackets.RoomMessage, error) {
		return drawingService.Snapshot(ctx, divisionID)
	}, logger)

	var broadcaster brackets.Broadcaster = wsHub
	sessionStore := repositories.NewMemoryDrawingSessionStore()
	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer redisClient.Close()
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := redisClient.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			logger.Error("failed to connect to redis", slog.Any("error", err))
			os.Exit(1)
		}

		sessionStore = repositories.NewRedisDrawingSessionStore(redisClient)
		relay := brackets.NewRedisRelay(redisClient, wsHub, logger)
		broadcaster = relay
		go relay.Run(ctx)
		logger.Info("redis session store and drawing relay enabled", slog.String("addr", cfg.RedisAddr))
	}

	// Инициализация сервисов; блокировки дивизионов общие для всех, кто пишет слоты
	divisionLocks := services.NewDivisionLocks()
	templateService := services.NewTemplateService(templateRepo, logger)
	scheduleService := services.NewScheduleService(templateRepo, divisionRepo, phaseRepo, txManager, publisher, divisionLocks, logger)
	slotService := services.NewSlotService(phaseRepo, divisionRepo, txManager, divisionLocks, logger)
	gameSettingsService := services.NewGameSettingsService(phaseRepo, divisionRepo, matchFormatRepo, cfg.DefaultScoreFormatID, logger)
	drawingService = services.NewDrawingService(
		sessionStore,
		divisionRepo,
		phaseRepo,
		drawRepo,
		txManager,
		broadcaster,
		publisher,
		archive,
		divisionLocks,
		logger,
	)
	logger.Info("services initialized")

	go wsHub.Run(ctx)
	logger.Info("WebSocket hub started")

	if cfg.SeedSystemTemplates {
		if _, err := templateService.SeedSystemTemplates(ctx); err != nil {
			logger.Error("failed to seed system templates", slog.Any("error", err))
			os.Exit(1)
		}
	}

	// Настройка маршрутизатора
	router := chi.NewRouter()
	api.SetupRoutes(router, api.Handlers{
		Template:  handlers.NewTemplateHandler(templateService),
		Schedule:  handlers.NewScheduleHandler(scheduleService),
		Drawing:   handlers.NewDrawingHandler(drawingService),
		Phase:     handlers.NewPhaseHandler(slotService, gameSettingsService),
		WebSocket: handlers.NewWebSocketHandler(wsHub, cfg.CORSAllowedOrigins, logger),
	}, api.Options{
		JWTSecret:      cfg.JWTSecretKey,
		AllowedOrigins: cfg.CORSAllowedOrigins,
		Logger:         logger,
	})
	logger.Info("routes configured")

	// Настройка и запуск HTTP-сервера
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 70 * time.Second,
		IdleTimeout:  120 * time.Second,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("starting server", slog.String("address", server.Addr))
		serverErrors <- server.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", slog.Any("error", err))
			os.Exit(1)
		}
		logger.Info("server stopped gracefully")
	case <-ctx.Done():
		logger.Info("shutdown signal received")
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancelShutdown()

		logger.Info("shutting down server", slog.Duration("timeout", 15*time.Second))
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("graceful shutdown failed", slog.Any("error", err))
			if closeErr := server.Close(); closeErr != nil {
				logger.Error("failed to force close server", slog.Any("error", closeErr))
			}
			os.Exit(1)
		}
		logger.Info("server shutdown complete")
	}
	logger.Info("application exited")
}

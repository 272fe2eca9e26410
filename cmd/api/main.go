package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"fieldbook/internal/api"
	"fieldbook/internal/config"
	"fieldbook/internal/database"
	"fieldbook/internal/domain"
	"fieldbook/internal/events"
	"fieldbook/internal/export"
	"fieldbook/internal/google"
	"fieldbook/internal/logging"
	"fieldbook/internal/metrics"
	"fieldbook/internal/models"
	"fieldbook/internal/notify"
	"fieldbook/internal/repository"
	"fieldbook/internal/service"
	"fieldbook/internal/worker"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	cfg, logger, closer, err := loadConfigAndLogger()
	if err != nil {
		return err
	}
	if closer != nil {
		defer (func() { _ = closer.Close() })()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := initDatabase(ctx, cfg, &logger)
	if err != nil {
		return err
	}
	defer db.Close()

	redisClient := initRedis(ctx, cfg, &logger)
	if redisClient != nil {
		defer (func() { _ = repository.Close(redisClient) })()
	}

	eventBus := events.NewEventBus()
	eventBus.SubscribeAll(func(e *events.Event) error {
		metrics.IncDomainEvent(e.Type)
		return nil
	})
	if err := initTelegram(cfg, eventBus, &logger); err != nil {
		return err
	}

	syncWorker, err := initSync(ctx, cfg, db, redisClient, &logger)
	if err != nil {
		return err
	}

	deps := service.Deps{
		Catalog:      db,
		Reservations: db,
		Staff:        db,
		Locker:       initLocker(cfg, redisClient, &logger),
		EventBus:     eventBus,
		Clock:        clockwork.NewRealClock(),
	}
	if syncWorker != nil {
		deps.SyncWorker = syncWorker
	}

	bookingService := service.NewBookingService(deps, service.Options{
		Location:           models.LoadLocation(cfg.Booking.Timezone),
		MaxAdvanceDays:     cfg.Booking.MaxAdvanceDays,
		MaxOccurrences:     cfg.Booking.MaxOccurrences,
		FullRefundHours:    cfg.Booking.FullRefundHours,
		PartialRefundHours: cfg.Booking.PartialRefundHours,
	}, logging.Component(&logger, "booking"))

	exporter := export.NewExporter(bookingService, cfg.Exports.Path, &logger)

	if cfg.Backup.Enabled {
		backupService := database.NewBackupService(cfg.Database.Path, cfg.Backup, clockwork.NewRealClock(), logging.Component(&logger, "backup"))
		go backupService.Start(ctx)
	}

	startMetrics(ctx, cfg, &logger)

	httpServer := api.NewHTTPServer(cfg.API, bookingService, exporter, db, &logger)

	var grpcServer *api.GRPCServer
	if cfg.API.GRPC.Enabled {
		grpcServer, err = api.NewGRPCServer(&cfg.API, nil, &logger)
		if err != nil {
			logger.Error().Err(err).Msg("create grpc server")
			return err
		}
		go grpcServer.WatchReadiness(ctx, db.PingContext, 15*time.Second)
	}

	return startServers(ctx, grpcServer, httpServer, cfg, &logger)
}

func loadConfigAndLogger() (*config.Config, zerolog.Logger, io.Closer, error) {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, zerolog.Logger{}, nil, fmt.Errorf("load config: %w", err)
	}

	baseLogger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return nil, zerolog.Logger{}, nil, fmt.Errorf("init logger: %w", err)
	}
	logger := baseLogger.With().Str("component", "main").Logger()

	return cfg, logger, closer, nil
}

func initDatabase(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (*database.DB, error) {
	db, err := database.NewDB(cfg.Database.Path, logger)
	if err != nil {
		logger.Error().Err(err).Str("db_path", cfg.Database.Path).Msg("init database")
		return nil, err
	}

	catalogPath := os.Getenv("CATALOG_PATH")
	if catalogPath == "" {
		catalogPath = cfg.CatalogPath
	}
	catalog, err := config.LoadCatalog(catalogPath)
	if err != nil {
		db.Close()
		logger.Error().Err(err).Str("catalog_path", catalogPath).Msg("load catalog")
		return nil, err
	}
	if err := db.SyncCatalog(ctx, catalog); err != nil {
		db.Close()
		logger.Error().Err(err).Msg("Ошибка синхронизации каталога")
		return nil, err
	}
	return db, nil
}

func initRedis(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) *redis.Client {
	if cfg.Redis.Address == "" {
		return nil
	}

	redisClient := repository.NewRedisClient(cfg.Redis)
	if err := repository.Ping(ctx, redisClient); err != nil {
		logger.Warn().Err(err).Msg("redis connection failed, continuing without redis")
		_ = redisClient.Close()
		return nil
	}

	logger.Info().Str("addr", cfg.Redis.Address).Msg("redis connected")
	return redisClient
}

// initLocker prefers the shared redis lock and falls back to the in-process one.
func initLocker(cfg *config.Config, redisClient *redis.Client, logger *zerolog.Logger) domain.SlotLocker {
	memory := repository.NewMemorySlotLocker()
	if redisClient == nil {
		return memory
	}
	primary := repository.NewRedisSlotLocker(redisClient, cfg.Booking.SlotLockTTL, cfg.Booking.SlotLockWait)
	return repository.NewFailoverSlotLocker(primary, memory, logger)
}

func initTelegram(cfg *config.Config, bus *events.EventBus, logger *zerolog.Logger) error {
	if !cfg.Telegram.Enabled {
		return nil
	}

	bot, err := notify.NewBotSender(cfg.Telegram.BotToken, cfg.Telegram.Debug)
	if err != nil {
		logger.Error().Err(err).Msg("telegram bot init failed")
		return err
	}

	notifier := notify.NewTelegramNotifier(bot, cfg.Telegram.ManagerChats, logging.Component(logger, "telegram"))
	notifier.Subscribe(bus)
	logger.Info().Str("bot", bot.Self.UserName).Int("chats", len(cfg.Telegram.ManagerChats)).Msg("telegram notifications enabled")
	return nil
}

func initSync(
	ctx context.Context,
	cfg *config.Config,
	db *database.DB,
	redisClient *redis.Client,
	logger *zerolog.Logger,
) (*worker.ReservationSyncWorker, error) {
	if !cfg.Google.Enabled {
		return nil, nil
	}

	mirror, err := google.NewSheetsMirror(ctx, cfg.Google.CredentialsFile, cfg.Google.SpreadsheetID, cfg.Google.SheetName, logging.Component(logger, "sheets"))
	if err != nil {
		logger.Error().Err(err).Msg("Failed to initialize Google Sheets mirror")
		return nil, err
	}

	if err := mirror.TestConnection(ctx); err != nil {
		if email, emailErr := google.ServiceAccountEmail(cfg.Google.CredentialsFile); emailErr == nil {
			logger.Error().Str("service_account", email).Msg("share the spreadsheet with this account")
		}
		logger.Error().Err(err).Msg("Google Sheets connection test failed")
		return nil, err
	}
	if err := mirror.EnsureHeader(ctx); err != nil {
		return nil, err
	}
	if err := mirror.WarmUpCache(ctx); err != nil {
		logger.Warn().Err(err).Msg("sheets cache warm-up failed")
	}
	go mirror.RefreshCache(ctx, cfg.Google.CacheRefresh)

	retry := worker.RetryPolicy{
		MaxRetries:    cfg.Sync.MaxRetries,
		InitialDelay:  cfg.Sync.InitialDelay,
		MaxDelay:      cfg.Sync.MaxDelay,
		BackoffFactor: cfg.Sync.BackoffFactor,
	}
	syncWorker := worker.NewReservationSyncWorker(db, mirror, redisClient, retry, logging.Component(logger, "sync"))
	go syncWorker.Start(ctx)

	logger.Info().Str("spreadsheet_id", cfg.Google.SpreadsheetID).Msg("Google Sheets mirror started")
	return syncWorker, nil
}

func startMetrics(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) {
	if !cfg.Monitoring.PrometheusEnabled {
		return
	}

	metrics.Register()
	go startMetricsServer(ctx, cfg.Monitoring.PrometheusPort, logger)
}

func startServers(
	ctx context.Context,
	grpcServer *api.GRPCServer,
	httpServer *api.HTTPServer,
	cfg *config.Config,
	logger *zerolog.Logger,
) error {
	if grpcServer != nil {
		go func() {
			if err := grpcServer.Serve(); err != nil {
				logger.Error().Err(err).Msg("grpc server stopped")
			}
		}()
	}

	if cfg.API.HTTP.Enabled {
		go func() {
			if err := httpServer.Start(); err != nil {
				logger.Error().Err(err).Msg("http server stopped")
			}
		}()
	} else {
		logger.Warn().Msg("HTTP API is disabled in config")
	}

	logger.Info().Bool("http", cfg.API.HTTP.Enabled).Int("http_port", cfg.API.HTTP.Port).Bool("grpc", grpcServer != nil).Msg("fieldbook started")

	<-ctx.Done()
	logger.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if grpcServer != nil {
		grpcServer.Shutdown(shutdownCtx)
	}
	_ = httpServer.Shutdown(shutdownCtx)

	logger.Info().Msg("fieldbook stopped")
	return nil
}

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error().Err(err).Msg("metrics server error")
	}
}

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
	"sync"
	"syscall"
	"time"

	"cleanops/internal/api"
	"cleanops/internal/auth"
	"cleanops/internal/bot"
	"cleanops/internal/config"
	"cleanops/internal/database"
	"cleanops/internal/domain"
	"cleanops/internal/events"
	"cleanops/internal/evidence"
	"cleanops/internal/invoice"
	"cleanops/internal/jobs"
	"cleanops/internal/location"
	"cleanops/internal/logging"
	"cleanops/internal/metrics"
	"cleanops/internal/models"
	"cleanops/internal/notify"
	"cleanops/internal/repository"
	"cleanops/internal/service"
	"cleanops/internal/worker"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
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

	db, err := initDatabase(cfg, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	redisClient := initRedis(ctx, cfg, logger)
	if redisClient != nil {
		defer repository.Close(redisClient)
	}
	fieldState := initFieldState(cfg, redisClient, logger)

	pings := location.NewPingProvider(fieldState, location.Options{
		Timeout:    cfg.Lifecycle.LocationTimeout,
		MaxAge:     cfg.Lifecycle.LocationMaxAge,
		RateLimit:  cfg.Lifecycle.PingRateLimit,
		RateWindow: cfg.Lifecycle.PingRateWindow,
	}, logging.Component(logger, "location"))

	store, err := evidence.NewStore(cfg.Evidence, logging.Component(logger, "evidence"))
	if err != nil {
		return fmt.Errorf("init evidence store: %w", err)
	}

	telegram := initTelegram(cfg, logger)

	router := initRouter(cfg, telegram, logger)
	notifications := worker.NewNotificationWorker(db, router, redisClient, worker.RetryPolicy{
		MaxRetries:   cfg.Notifications.MaxRetries,
		InitialDelay: cfg.Notifications.InitialDelay,
		MaxDelay:     cfg.Notifications.MaxDelay,
	}, cfg.Notifications.PollInterval, logging.Component(logger, "notification-worker"))
	dispatcher := notify.NewDispatcher(db, notifications, cfg.Notifications.DefaultLanguage, logging.Component(logger, "dispatcher"))

	bus := events.NewEventBus(logging.Component(logger, "events"))
	if cfg.Invoices.Enabled {
		generator := invoice.NewGenerator(cfg.Invoices, logging.Component(logger, "invoice"))
		invoice.NewSubscriber(db, generator, logging.Component(logger, "invoice")).Register(bus)
	}

	serviceLogger := logging.Component(logger, "service")
	quotes := service.NewQuoteService(db, dispatcher, bus, cfg.Lifecycle, serviceLogger)
	bookings := service.NewBookingService(db, pings, store, dispatcher, bus, cfg.Lifecycle, serviceLogger)

	tokens := auth.NewTokenManager(cfg.API.Auth)
	httpServer := api.NewServer(cfg.API, quotes, bookings, pings, tokens, logging.Component(logger, "api"))

	scheduler, err := initScheduler(cfg, db, logger)
	if err != nil {
		return err
	}

	startMetrics(ctx, cfg, logger)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		notifications.Start(ctx)
	}()

	var fieldBot *bot.Bot
	if telegram != nil {
		fieldBot = bot.NewBot(telegram, db, bookings, pings, fieldState, bot.Options{
			RateLimit:  cfg.Telegram.RateLimitMessages,
			RateWindow: cfg.Telegram.RateLimitWindow,
		}, logging.Component(logger, "bot"))
		wg.Add(1)
		go func() {
			defer wg.Done()
			fieldBot.Start(ctx)
		}()
	}

	scheduler.Start()
	err = serve(ctx, httpServer, cfg, logger)

	<-scheduler.Stop().Done()
	fieldBot.Stop()
	stop()
	wg.Wait()
	logger.Info().Msg("cleanops stopped")
	return err
}

func loadConfigAndLogger() (*config.Config, *zerolog.Logger, io.Closer, error) {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load config: %w", err)
	}

	baseLogger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("init logger: %w", err)
	}
	return cfg, logging.Component(baseLogger, "main"), closer, nil
}

func initDatabase(cfg *config.Config, logger *zerolog.Logger) (*database.DB, error) {
	catalog, err := config.LoadCatalog(cfg.CatalogPath)
	if err != nil {
		logger.Error().Err(err).Str("catalog_path", cfg.CatalogPath).Msg("load catalog")
		return nil, err
	}

	db, err := database.NewDB(cfg.Database.Path, logging.Component(logger, "database"))
	if err != nil {
		logger.Error().Err(err).Str("db_path", cfg.Database.Path).Msg("init database")
		return nil, err
	}

	if err := db.SyncCatalog(context.Background(), catalog); err != nil {
		db.Close()
		return nil, fmt.Errorf("sync catalog: %w", err)
	}
	logger.Info().
		Int("services", len(catalog.Services)).
		Int("checklist_items", len(catalog.ChecklistItems)).
		Int("employees", len(catalog.Employees)).
		Msg("catalog synced")
	return db, nil
}

func initRedis(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) *redis.Client {
	if cfg.Redis.Address == "" {
		return nil
	}

	client := repository.NewRedisClient(cfg.Redis)
	if err := repository.Ping(ctx, client); err != nil {
		logger.Warn().Err(err).Msg("redis connection failed, continuing without redis")
		_ = client.Close()
		return nil
	}

	logger.Info().Str("addr", cfg.Redis.Address).Msg("redis connected")
	return client
}

// initFieldState keeps location pings in Redis when available and in memory otherwise.
func initFieldState(cfg *config.Config, client *redis.Client, logger *zerolog.Logger) domain.FieldStateRepository {
	ttl := 2 * cfg.Lifecycle.LocationMaxAge
	memory := repository.NewMemoryFieldStateRepository(ttl)
	if client == nil {
		return memory
	}
	return repository.NewFailoverFieldStateRepository(
		repository.NewRedisFieldStateRepository(client, ttl),
		memory,
		logging.Component(logger, "field-state"),
	)
}

func initTelegram(cfg *config.Config, logger *zerolog.Logger) *tgbotapi.BotAPI {
	if cfg.Telegram.BotToken == "" {
		return nil
	}
	botAPI, err := notify.NewTelegramBot(cfg.Telegram.BotToken, cfg.Telegram.Debug)
	if err != nil {
		logger.Warn().Err(err).Msg("telegram init failed, continuing without telegram")
		return nil
	}
	logger.Info().Str("username", botAPI.Self.UserName).Msg("telegram connected")
	return botAPI
}

func initRouter(cfg *config.Config, telegram *tgbotapi.BotAPI, logger *zerolog.Logger) *notify.Router {
	router := notify.NewRouter(notify.NewLogNotifier(logging.Component(logger, "notify")))
	if cfg.Notifications.WebhookURL != "" {
		router.Register(models.ChannelEmail, notify.NewWebhookNotifier(
			cfg.Notifications.WebhookURL, cfg.Notifications.WebhookToken, cfg.Notifications.Timeout))
	}
	if telegram != nil {
		router.Register(models.ChannelTelegram, notify.NewTelegramNotifier(telegram))
	}
	return router
}

func initScheduler(cfg *config.Config, db *database.DB, logger *zerolog.Logger) (*jobs.Scheduler, error) {
	scheduler := jobs.NewScheduler(10*time.Minute, logging.Component(logger, "jobs"))

	if cfg.Backup.Enabled {
		backup := database.NewBackupService(db.Path(), cfg.Backup, logging.Component(logger, "backup"))
		if err := scheduler.AddJob("backup", cfg.Backup.Schedule, backup.Run); err != nil {
			return nil, err
		}
	}

	sweep := jobs.NewOutboxSweepJob(db, cfg.Jobs.OutboxStaleAfter, logging.Component(logger, "outbox-sweep"))
	if err := scheduler.AddJob(jobs.OutboxSweepJobName, cfg.Jobs.OutboxSweepSchedule, sweep.Run); err != nil {
		return nil, err
	}
	return scheduler, nil
}

func startMetrics(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) {
	if !cfg.Monitoring.PrometheusEnabled {
		return
	}
	metrics.Register()
	go startMetricsServer(ctx, cfg.Monitoring.PrometheusPort, logger)
}

func serve(ctx context.Context, httpServer *api.Server, cfg *config.Config, logger *zerolog.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.Start()
	}()

	logger.Info().Int("http_port", cfg.API.HTTP.Port).Str("env", cfg.App.Environment).Msg("cleanops started")

	var serveErr error
	select {
	case <-ctx.Done():
		logger.Info().Msg("shutdown signal received")
	case serveErr = <-errCh:
		if serveErr != nil {
			logger.Error().Err(serveErr).Msg("http server stopped")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Warn().Err(err).Msg("http shutdown")
	}
	return serveErr
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
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("metrics server error")
	}
}

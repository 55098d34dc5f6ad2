package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"

	"runepoints/bot"
	"runepoints/cache"
	"runepoints/config"
	"runepoints/database"
	"runepoints/events"
	"runepoints/httpapi"
	"runepoints/infrastructure"
	"runepoints/metrics"
	"runepoints/repository"
	"runepoints/service"
	"runepoints/worker"
)

const shutdownTimeout = 10 * time.Second

// ConfigureLogging applies the configured level and picks JSON output in production
func ConfigureLogging(cfg *config.Config) {
	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.WithField("level", cfg.LogLevel).Warn("Unknown log level, using info")
		level = log.InfoLevel
	}
	log.SetLevel(level)

	if cfg.Environment == "production" {
		log.SetFormatter(&log.JSONFormatter{})
		gin.SetMode(gin.ReleaseMode)
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}
}

// Run initializes and starts the application
func Run(ctx context.Context) error {
	cfg := config.Get()
	ConfigureLogging(cfg)
	log.WithField("environment", cfg.Environment).Info("Starting runepoints...")

	databaseURL := database.ConstructDatabaseURL(cfg.DatabaseURL, cfg.DatabaseName)
	db, err := database.NewConnection(ctx, databaseURL, database.PoolSettings{
		ApplicationName: cfg.DatabaseApplicationName,
		MaxConns:        cfg.DatabaseMaxConns,
		MinConns:        cfg.DatabaseMinConns,
	})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()
	log.Info("Database connection established")

	if err := database.MigrateUp(databaseURL); err != nil {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	eventBus := events.NewBus()

	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)
	collector.Subscribe(eventBus)
	metricsServer := metrics.StartServer(cfg.MetricsPort, registry, func(ctx context.Context) error {
		return db.Ping(ctx)
	})

	ledger := service.NewLedger(repository.NewUnitOfWorkFactory(db, eventBus),
		service.WithMaxAttempts(cfg.LedgerMaxAttempts),
		service.WithRetryInterval(cfg.LedgerRetryInitialDelay),
		service.WithObserver(collector),
	)

	// Left as a nil interface when Redis is not configured
	var summaryCache service.SummaryCache
	if cfg.RedisAddr != "" {
		rdb, err := cache.Connect(ctx, cfg.RedisAddr)
		if err != nil {
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
		defer rdb.Close()
		summaryCache = cache.NewSummaryCache(rdb, cfg.SummaryCacheTTL)
	}

	if cfg.NATSServers != "" {
		natsClient := infrastructure.NewNATSClient(cfg.NATSServers)
		if err := natsClient.Connect(ctx); err != nil {
			return fmt.Errorf("failed to connect to NATS: %w", err)
		}
		defer natsClient.Close()
		if err := natsClient.EnsurePointsStream(); err != nil {
			return fmt.Errorf("failed to ensure points stream: %w", err)
		}
		infrastructure.NewNATSEventPublisher(natsClient).Subscribe(eventBus)
	}

	if cfg.DiscordToken != "" && cfg.DiscordChannel != "" {
		session, err := bot.OpenSession(cfg.DiscordToken)
		if err != nil {
			return fmt.Errorf("failed to open Discord session: %w", err)
		}
		defer session.Close()
		bot.NewAnnouncer(session, cfg.DiscordChannel).Subscribe(eventBus)
	}

	userService := service.NewUserService(ledger, cfg.StartingBalance)
	wageringService := service.NewWageringService(ledger, summaryCache)
	attendanceService := service.NewAttendanceService(ledger, service.AttendanceConfig{
		Credit:       cfg.AttendanceCredit,
		Location:     cfg.Location(),
		RolloverHour: cfg.ServiceDayRolloverHour,
		TokenTTL:     cfg.AttendanceTokenTTL,
	})
	exchangeService := service.NewExchangeService(ledger)

	// Catch up on deadlines that passed while the service was stopped
	watcher := worker.NewDeadlineWatcher(ctx, wageringService, ledger.Now, worker.WithWindowStart(time.Time{}))
	if err := watcher.Start(cfg.DeadlineWatchSchedule); err != nil {
		return fmt.Errorf("failed to start deadline watcher: %w", err)
	}
	defer watcher.Stop()

	api := httpapi.NewServer(httpapi.Deps{
		Users:      userService,
		Wagering:   wageringService,
		Attendance: attendanceService,
		Exchange:   exchangeService,
		IsOperator: cfg.IsOperator,
		Now:        ledger.Now,
	})
	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           api.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.WithField("addr", cfg.HTTPAddr).Info("HTTP server listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
		log.Info("Shutting down...")
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("http server failed: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("HTTP server did not shut down cleanly")
	}
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("Metrics server did not shut down cleanly")
	}

	log.Info("Shutdown completed")
	return nil
}

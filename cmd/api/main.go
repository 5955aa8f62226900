package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/sla-engine/internal/api/http"
	"github.com/spec-kit/sla-engine/internal/api/http/handlers"
	"github.com/spec-kit/sla-engine/internal/auth"
	"github.com/spec-kit/sla-engine/internal/config"
	"github.com/spec-kit/sla-engine/internal/events"
	"github.com/spec-kit/sla-engine/internal/observability"
	"github.com/spec-kit/sla-engine/internal/persistence"
	"github.com/spec-kit/sla-engine/internal/repository"
	"github.com/spec-kit/sla-engine/internal/service"
	"github.com/spec-kit/sla-engine/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	pool := pg.PoolHandle()
	definitionRepo := repository.NewSlaDefinitionRepository(pool)
	ruleRepo := repository.NewSlaRuleRepository(pool)
	policyRepo := repository.NewStatusPolicyRepository(pool)
	escalationRepo := repository.NewEscalationRepository(pool)
	metricRepo := repository.NewSlaMetricRepository(pool)
	ticketStore := repository.NewTicketStore(pool)

	dispatcher := events.NewInMemoryDispatcher(logger)
	metrics := observability.NewMetrics()
	validate := validator.New()

	catalogService := service.NewCatalogService(service.CatalogDependencies{
		DefinitionRepo: definitionRepo,
		RuleRepo:       ruleRepo,
		PolicyRepo:     policyRepo,
	})
	escalationService := service.NewEscalationService(escalationRepo, dispatcher, logger)
	metricsService := service.NewMetricsService(service.MetricsDependencies{
		MetricRepo:  metricRepo,
		TicketStore: ticketStore,
		Catalog:     catalogService,
		Dispatcher:  dispatcher,
		Logger:      logger,
	})

	alerts := service.NewLoggingAlertDispatcher(logger, cfg.Notification)
	notificationService := service.NewNotificationService(dispatcher, alerts, logger, cfg.Notification)
	notificationService.RegisterHandlers()

	hostname, _ := os.Hostname()
	sweeper := worker.NewSweeper(worker.SweeperDependencies{
		SweepConfig:      cfg.Sweep,
		EscalationConfig: cfg.Escalation,
		Catalog:          catalogService,
		TicketStore:      ticketStore,
		EscalationRepo:   escalationRepo,
		Locker:           persistence.NewSweepLock(redis, hostname),
		Dispatcher:       dispatcher,
		Logger:           logger,
		Metrics:          metrics,
	})
	go sweeper.Run(ctx)

	tokenManager := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes)
	tenantMiddleware := auth.NewTenantMiddleware(tokenManager)

	app := fiber.New()
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:           handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis),
		Slas:             handlers.NewSlasHandler(catalogService, validate),
		Escalations:      handlers.NewEscalationsHandler(escalationService),
		Metrics:          handlers.NewMetricsHandler(metricsService, validate),
		TenantMiddleware: tenantMiddleware,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	cancel()
	_ = app.Shutdown()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}

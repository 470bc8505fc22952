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
	_ "time/tzdata"

	"github.com/gofiber/fiber/v2"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	httptransport "github.com/shopdesk/jobtickets/internal/api/http"
	"github.com/shopdesk/jobtickets/internal/api/http/handlers"
	"github.com/shopdesk/jobtickets/internal/auth"
	"github.com/shopdesk/jobtickets/internal/clock"
	"github.com/shopdesk/jobtickets/internal/config"
	"github.com/shopdesk/jobtickets/internal/events"
	"github.com/shopdesk/jobtickets/internal/notify"
	"github.com/shopdesk/jobtickets/internal/observability"
	"github.com/shopdesk/jobtickets/internal/persistence"
	"github.com/shopdesk/jobtickets/internal/ratelimit"
	"github.com/shopdesk/jobtickets/internal/realtime"
	"github.com/shopdesk/jobtickets/internal/repository"
	"github.com/shopdesk/jobtickets/internal/service"
	"github.com/shopdesk/jobtickets/internal/session"
	"github.com/shopdesk/jobtickets/internal/tenancy"
	"github.com/shopdesk/jobtickets/internal/worker"
)

func main() {
	envFiles := pflag.StringSlice("env-file", nil, "env files to load before reading configuration")
	migrateOnly := pflag.Bool("migrate-only", false, "apply database migrations and exit")
	pflag.Parse()

	cfg, err := config.Load(*envFiles...)
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

	shutdownTracing := observability.SetupTracing(ctx, cfg.Telemetry, cfg.App.Name, cfg.App.Version, logger)

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations || *migrateOnly {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), cfg.Postgres.MigrationsDir, logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}
	if *migrateOnly {
		return
	}

	redis := persistence.NewRedis(ctx, cfg.Redis, logger)
	defer redis.Close()

	clk := clock.Real()
	metrics := observability.NewMetrics()

	pool := pg.PoolHandle()
	tenantRepo := repository.NewTenantRepository(pool)
	staffRepo := repository.NewStaffRepository(pool)
	customerRepo := repository.NewCustomerRepository(pool)
	ticketRepo := repository.NewTicketRepository(pool)
	historyRepo := repository.NewTicketHistoryRepository(pool)
	linkRepo := repository.NewMagicLinkRepository(pool)
	serviceTypeRepo := repository.NewServiceTypeRepository(pool)

	var (
		sessions    session.Store
		revocations session.Revocations
		feed        events.ChangeFeed
		invites     ratelimit.Limiter
		dedupe      worker.Dedupe
		redisPinger handlers.Pinger
	)
	if redis.Reachable {
		sessions = session.NewRedisStore(redis.Client, clk)
		revocations = session.NewRedisRevocations(redis.Client, clk)
		feed = events.NewRedisFeed(redis.Client, logger)
		invites = ratelimit.NewRedisWindow(redis.Client, "ratelimit:invite:", cfg.Auth.InvitesPerMinute, time.Minute)
		dedupe = worker.NewRedisDedupe(redis.Client, "jobs:")
		redisPinger = redis
	} else {
		logger.Warn("redis unavailable, using in-process sessions and change feed")
		sessions = session.NewMemoryStore(clk)
		revocations = session.NewMemoryRevocations(clk)
		feed = events.NewMemoryFeed()
		invites = ratelimit.NewTokenLimiter(cfg.Auth.InvitesPerMinute, cfg.Auth.InvitesPerMinute, clk)
		dedupe = worker.NewMemoryDedupe(clk)
	}

	logSender := notify.NewLogSender(logger)
	var sms notify.SMSSender = logSender
	if cfg.Notification.SMSEnabled() {
		sms = notify.NewTwilioSender(cfg.Notification, logger)
	}

	dispatcher := events.NewInMemoryDispatcher(logger)
	outbox := worker.NewOutbox(cfg.Notification.OutboxSize, cfg.Notification.OutboxWorkers, cfg.Notification.SendTimeout(), logger)
	notificationService := service.NewNotificationService(service.NotificationDependencies{
		Dispatcher: dispatcher,
		TenantRepo: tenantRepo,
		SMS:        sms,
		Mail:       logSender,
		Outbox:     outbox,
		Logger:     logger,
	})
	worker.StartNotificationWorker(notificationService, dispatcher, feed)

	catalogService := service.NewCatalogService(serviceTypeRepo)
	tenantService := service.NewTenantService(tenantRepo)
	authService := service.NewAuthService(*cfg, service.AuthDependencies{
		StaffRepo:     staffRepo,
		MagicLinkRepo: linkRepo,
		Sessions:      sessions,
		Revocations:   revocations,
		Sender:        notificationService,
		InviteLimiter: invites,
		Clock:         clk,
		Logger:        logger,
	})
	intakeService := service.NewIntakeService(service.IntakeDependencies{
		TicketRepo:   ticketRepo,
		CustomerRepo: customerRepo,
		TenantRepo:   tenantRepo,
		Catalogs:     catalogService,
		Dispatcher:   dispatcher,
		Metrics:      metrics,
		Clock:        clk,
		Location:     cfg.Tenant.Location(),
		Logger:       logger,
	})
	ticketService := service.NewTicketService(service.TicketDependencies{
		TicketRepo:  ticketRepo,
		StaffRepo:   staffRepo,
		HistoryRepo: historyRepo,
		Dispatcher:  dispatcher,
		Metrics:     metrics,
		Clock:       clk,
		Logger:      logger,
	})
	queueService := service.NewQueueService(service.QueueDependencies{
		TicketRepo: ticketRepo,
		Catalogs:   catalogService,
		Feed:       feed,
		Clock:      clk,
		Logger:     logger,
	})
	reportService := service.NewReportService(service.ReportDependencies{
		TicketRepo: ticketRepo,
		TenantRepo: tenantRepo,
		Catalogs:   catalogService,
		Clock:      clk,
		Location:   cfg.Tenant.Location(),
		Logger:     logger,
	})
	rosterService := service.NewRosterService(service.RosterDependencies{StaffRepo: staffRepo, Logger: logger})
	customerService := service.NewCustomerService(customerRepo)

	var scheduler *worker.Scheduler
	if cfg.Scheduler.Enabled {
		scheduler = worker.NewScheduler(cfg.Scheduler, worker.SchedulerDependencies{
			Tenants:  tenantRepo,
			Tickets:  ticketRepo,
			Reminder: notificationService,
			Digest:   reportService,
			Dedupe:   dedupe,
			Clock:    clk,
			Location: cfg.Tenant.Location(),
			Logger:   logger,
		})
		if err := scheduler.Start(); err != nil {
			logger.Fatal("failed to start scheduler", zap.Error(err))
		}
	}

	var realtimeServer *http.Server
	if cfg.Realtime.Enabled {
		hub := realtime.NewHub()
		rt := realtime.NewServer(hub, realtime.Authenticator{Tenants: tenantService, Resolver: authService}, queueService, logger)
		limiter := ratelimit.NewTokenLimiter(cfg.Realtime.RateLimitPerMinute, cfg.Realtime.RateLimitBurst, clk)
		if err := limiter.TrustProxies(cfg.App.TrustedProxies); err != nil {
			logger.Fatal("invalid APP_TRUSTED_PROXIES", zap.Error(err))
		}
		realtimeServer = &http.Server{
			Addr:              cfg.App.Host + ":" + cfg.Realtime.Port,
			Handler:           rt.Handler(limiter),
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			logger.Info("realtime listening", zap.String("addr", realtimeServer.Addr))
			if err := realtimeServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("realtime server stopped", zap.Error(err))
			}
		}()
	}

	fiberCfg := fiber.Config{AppName: cfg.App.Name}
	if len(cfg.App.TrustedProxies) > 0 {
		fiberCfg.EnableTrustedProxyCheck = true
		fiberCfg.TrustedProxies = cfg.App.TrustedProxies
		fiberCfg.ProxyHeader = fiber.HeaderXForwardedFor
	}
	app := fiber.New(fiberCfg)
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redisPinger, metrics),
		Tenant:         handlers.NewTenantHandler(),
		Auth:           handlers.NewAuthHandler(authService, cfg.App.Env == "production"),
		Tickets:        handlers.NewTicketsHandler(intakeService, ticketService, catalogService),
		Queue:          handlers.NewQueueHandler(queueService),
		Team:           handlers.NewTeamHandler(rosterService),
		Reports:        handlers.NewReportsHandler(reportService),
		Customers:      handlers.NewCustomersHandler(customerService),
		TenantResolver: tenancy.Middleware(tenantService, cfg.Tenant.DefaultSlug),
		AuthMiddleware: auth.NewAuthMiddleware(authService),
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("server stopped", zap.Error(err))
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info("shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
	if realtimeServer != nil {
		if err := realtimeServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("realtime shutdown failed", zap.Error(err))
		}
	}
	if scheduler != nil {
		scheduler.Stop(shutdownCtx)
	}
	outbox.Stop(shutdownCtx)
	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.Warn("tracing shutdown failed", zap.Error(err))
	}
}

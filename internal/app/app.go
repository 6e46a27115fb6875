package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	healthcheck "github.com/vladislavdragonenkov/encontrar/internal/health"
	"github.com/vladislavdragonenkov/encontrar/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/encontrar/internal/metrics"
	"github.com/vladislavdragonenkov/encontrar/internal/service/catalog"
	"github.com/vladislavdragonenkov/encontrar/internal/service/idempotency"
	"github.com/vladislavdragonenkov/encontrar/internal/service/mail"
	"github.com/vladislavdragonenkov/encontrar/internal/service/notification"
	"github.com/vladislavdragonenkov/encontrar/internal/service/orders"
	"github.com/vladislavdragonenkov/encontrar/internal/service/outbox"
	"github.com/vladislavdragonenkov/encontrar/internal/transport/rest"
	"github.com/vladislavdragonenkov/encontrar/internal/version"
)

// application: собранный граф зависимостей сервиса.
type application struct {
	deps     *runtimeDependencies
	producer *kafka.Producer

	orders  *orders.Service
	router  http.Handler
	health  *healthcheck.Handler
	outbox  *outbox.Worker
	cleanup *idempotency.CleanupWorker
}

func newApplication(ctx context.Context, cfg Config, logger *log.Entry) (*application, error) {
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone: %w", err)
	}
	money, err := mail.NewMoneyFormatter(cfg.Currency)
	if err != nil {
		return nil, fmt.Errorf("money formatter: %w", err)
	}
	transport, err := newMailTransport(cfg)
	if err != nil {
		return nil, err
	}

	deps, err := initRuntimeDependencies(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	orderMetrics := metrics.NewOrderMetrics()
	notifications := notification.NewService(deps.notificationRepo, deps.catalog, deps.outboxRepo)
	fanout := notification.NewFanout(notifications, deps.catalog, deps.catalog,
		notification.WithAdminRoles(cfg.AdminRoles...),
		notification.WithFanoutMetrics(orderMetrics),
	)

	svc := orders.NewService(orders.Deps{
		Orders:    deps.repo,
		Timeline:  deps.timelineRepo,
		Outbox:    deps.outboxRepo,
		Inventory: deps.catalog,
		Products:  deps.catalog,
		Methods:   catalog.NewCachedMethods(deps.catalog, cfg.MethodCacheSize, cfg.MethodCacheTTL),
		Users:     deps.catalog,
		Mailer:    mail.NewMailer(transport, cfg.MailFrom, money, mail.WithLocation(loc)),
		Notifier:  fanout,
	},
		orders.WithLogger(logger.WithField("layer", "orders")),
		orders.WithMetrics(orderMetrics),
		orders.WithSideEffectTimeout(cfg.SideEffectTimeout),
		orders.WithLowStockThreshold(cfg.LowStockThreshold),
	)

	router := rest.NewRouter(rest.Deps{
		Orders:        svc,
		Notifications: notifications,
		Auth:          rest.NewAuthenticator(cfg.JWTSecret),
		Idempotency:   idempotency.NewGuard(deps.idempotencyRepo, cfg.IdempotencyTTL),
		Metrics:       metrics.NewHTTPMetrics(),
	},
		rest.WithAllowedOrigins(cfg.CORSOrigins...),
		rest.WithLocation(loc),
		rest.WithLogger(logger.WithField("layer", "rest")),
	)

	app := &application{
		deps:   deps,
		orders: svc,
		router: router,
		health: healthcheck.NewHandler(version.GetVersion()),
		cleanup: idempotency.NewCleanupWorker(deps.idempotencyRepo,
			idempotency.WithInterval(cfg.IdempotencyCleanupInterval),
			idempotency.WithBatchSize(cfg.IdempotencyCleanupBatchSize),
		),
	}
	app.health.RegisterChecker("storage", deps.storageChecker)

	producer, err := initKafkaProducer(cfg.KafkaBrokers, cfg.KafkaClientID, logger)
	switch {
	case producer != nil:
		app.producer = producer
		app.outbox = outbox.NewWorker(deps.outboxRepo, kafka.NewOutboxPublisher(producer, cfg.KafkaTopics),
			outbox.WithDLQPublisher(kafka.NewDLQPublisher(producer, cfg.KafkaTopics)),
			outbox.WithPollInterval(cfg.OutboxPollInterval),
			outbox.WithBatchSize(cfg.OutboxBatchSize),
			outbox.WithMaxAttempts(cfg.OutboxMaxAttempts),
			outbox.WithRetryBaseDelay(cfg.OutboxRetryDelay),
		)
		app.health.RegisterChecker("kafka", healthcheck.NewStaticChecker("kafka",
			healthcheck.StatusHealthy, "producer connected"))
	case err != nil:
		app.health.RegisterChecker("kafka", healthcheck.NewStaticChecker("kafka",
			healthcheck.StatusDegraded, "producer unavailable, events stay in outbox"))
	default:
		app.health.RegisterChecker("kafka", healthcheck.NewStaticChecker("kafka",
			healthcheck.StatusDegraded, "kafka is not configured, events stay in outbox"))
	}

	return app, nil
}

func newMailTransport(cfg Config) (mail.Transport, error) {
	if cfg.SMTPHost == "" {
		return mail.NewLogTransport(), nil
	}
	transport, err := mail.NewSMTPTransport(mail.SMTPConfig{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
	})
	if err != nil {
		return nil, fmt.Errorf("smtp transport: %w", err)
	}
	return transport, nil
}

func (a *application) close(logger *log.Entry) {
	closeKafka(a.producer, logger)
	a.deps.close(logger)
}

// Run поднимает REST API, служебный HTTP, gRPC health и фоновые воркеры.
// Возвращает ctx.Err() после штатной остановки по отмене контекста.
func Run(ctx context.Context, cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	logger := log.WithField("component", "app")
	logger.WithField("version", version.String()).Info("starting order service")

	app, err := newApplication(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer app.close(logger)

	apiLis, err := net.Listen("tcp", cfg.HTTPAddr)
	if err != nil {
		return fmt.Errorf("listen api: %w", err)
	}
	grpcLis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		_ = apiLis.Close()
		return fmt.Errorf("listen grpc: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)

	metricsSrv := startMetricsServer(gctx, cfg.MetricsAddr, logger, app.health)
	apiSrv := &http.Server{Handler: app.router, ReadHeaderTimeout: readHeaderTimeout}
	grpcServer, healthServer := newGRPCServer(logger)

	g.Go(func() error {
		logger.WithField("addr", apiLis.Addr().String()).Info("api server listening")
		if err := serveHTTP(apiSrv, apiLis); err != nil {
			return fmt.Errorf("api server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		logger.WithField("addr", grpcLis.Addr().String()).Info("grpc server listening")
		if err := serveGRPC(grpcServer, grpcLis); err != nil {
			return fmt.Errorf("grpc server: %w", err)
		}
		return nil
	})
	if app.outbox != nil {
		g.Go(func() error {
			app.outbox.Run(gctx)
			return nil
		})
	}
	g.Go(func() error {
		app.cleanup.Run(gctx)
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownHTTP(apiSrv, logger)
		stopGRPC(grpcServer, healthServer, logger)
		shutdownHTTP(metricsSrv, logger)
		return nil
	})

	err = g.Wait()
	if ctxErr := ctx.Err(); ctxErr != nil && (err == nil || errors.Is(err, ctxErr)) {
		return ctxErr
	}
	return err
}

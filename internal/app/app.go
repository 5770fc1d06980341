package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	promgrpc "github.com/grpc-ecosystem/go-grpc-prometheus"
	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/vladislavdragonenkov/orderdesk/internal/auth"
	"github.com/vladislavdragonenkov/orderdesk/internal/blob"
	healthcheck "github.com/vladislavdragonenkov/orderdesk/internal/health"
	"github.com/vladislavdragonenkov/orderdesk/internal/httpapi"
	"github.com/vladislavdragonenkov/orderdesk/internal/metrics"
	"github.com/vladislavdragonenkov/orderdesk/internal/realtime"
	"github.com/vladislavdragonenkov/orderdesk/internal/service/builder"
	"github.com/vladislavdragonenkov/orderdesk/internal/service/catalog"
	"github.com/vladislavdragonenkov/orderdesk/internal/service/dashboard"
	grpcsvc "github.com/vladislavdragonenkov/orderdesk/internal/service/grpc"
	"github.com/vladislavdragonenkov/orderdesk/internal/service/outbox"
	"github.com/vladislavdragonenkov/orderdesk/internal/service/submission"
	"github.com/vladislavdragonenkov/orderdesk/internal/version"
)

const (
	shutdownTimeout   = 5 * time.Second
	readHeaderTimeout = 5 * time.Second
)

// services — прикладной слой, собранный поверх хранилищ.
type services struct {
	catalog   *catalog.Service
	builder   *builder.Service
	dashboard *dashboard.Service
}

func newServices(deps *runtimeDependencies, cfg Config, blobStore blob.Store) services {
	sessionMetrics := metrics.NewSessionMetrics()

	catalogSvc := catalog.NewService(deps.catalogRepo,
		catalog.WithCache(deps.catalogCache, cfg.CatalogCacheTTL),
		catalog.WithLogger(log.WithField("component", "catalog-service")),
		catalog.WithMetrics(sessionMetrics),
	)
	sequencer := submission.NewSequencer(deps.shopRepo, deps.orderRepo,
		submission.WithLogger(log.WithField("component", "submission-sequencer")),
		submission.WithMetrics(metrics.NewSubmissionMetrics()),
		submission.WithOutbox(deps.outboxRepo),
		submission.WithTimeline(deps.timelineRepo),
	)
	builderSvc := builder.NewService(deps.sessions, catalogSvc, sequencer,
		builder.WithSubmitGuard(deps.submitGuard, cfg.SubmitLockTTL),
		builder.WithSessionTTL(cfg.SessionTTL),
		builder.WithLogger(log.WithField("component", "builder-service")),
		builder.WithMetrics(sessionMetrics),
	)
	dashboardSvc := dashboard.NewService(deps.orderRepo,
		dashboard.WithLogger(log.WithField("component", "dashboard-service")),
		dashboard.WithMetrics(metrics.NewDashboardMetrics()),
		dashboard.WithTimeline(deps.timelineRepo),
		dashboard.WithOutbox(deps.outboxRepo),
		dashboard.WithBlobStore(blobStore),
	)

	return services{catalog: catalogSvc, builder: builderSvc, dashboard: dashboardSvc}
}

// Run поднимает gRPC и HTTP, фоновые воркеры и ждёт отмены ctx.
func Run(ctx context.Context, cfg Config) error {
	logger := log.WithField("component", "app")

	deps, err := initRuntimeDependencies(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := deps.closeFn(); err != nil {
			logger.WithError(err).Warn("failed to close storage connections")
		}
	}()

	blobStore, err := blob.Open(ctx, cfg.BlobConfig())
	if err != nil {
		return fmt.Errorf("open blob store: %w", err)
	}

	svcs := newServices(deps, cfg, blobStore)
	hub := realtime.NewHub(log.WithField("component", "realtime-hub"))

	kafkaProducer, _ := initKafkaProducer(cfg.KafkaBrokerList(), logger)
	defer closeKafka(kafkaProducer, logger)
	publisher, dlqPublisher := outboxPublishers(kafkaProducer, cfg.KafkaTopic, hub)

	workerOpts := []outbox.Option{
		outbox.WithLogger(log.WithField("component", "outbox-worker")),
		outbox.WithMetrics(metrics.NewOutboxMetrics()),
		outbox.WithPollInterval(cfg.OutboxPollInterval),
		outbox.WithBatchSize(cfg.OutboxBatchSize),
		outbox.WithMaxAttempts(cfg.OutboxMaxAttempts),
		outbox.WithRetryBaseDelay(cfg.OutboxRetryDelay),
	}
	if dlqPublisher != nil {
		workerOpts = append(workerOpts, outbox.WithDLQPublisher(dlqPublisher))
	}
	outboxWorker := outbox.NewWorker(deps.outboxRepo, publisher, workerOpts...)
	janitor := builder.NewJanitor(deps.sessions,
		builder.WithJanitorLogger(log.WithField("component", "session-janitor")),
		builder.WithJanitorMetrics(metrics.NewSessionMetrics()),
		builder.WithJanitorInterval(cfg.SessionCleanupInterval),
		builder.WithJanitorBatchSize(cfg.SessionCleanupBatchSize),
	)

	workersCtx, stopWorkers := context.WithCancel(context.WithoutCancel(ctx))
	var workers sync.WaitGroup
	for _, run := range []func(context.Context){hub.Run, outboxWorker.Run, janitor.Run} {
		workers.Add(1)
		go func(run func(context.Context)) {
			defer workers.Done()
			run(workersCtx)
		}(run)
	}
	defer shutdownWorkers(stopWorkers, &workers, logger)

	authenticator := auth.NewAuthenticator(cfg.AuthSecret)
	if authenticator.Enabled() {
		logger.Info("bearer token authentication enabled")
	}

	grpcMetrics := registerGRPCMetrics(logger)
	grpcServer := grpc.NewServer(
		grpc.ChainUnaryInterceptor(grpcMetrics.UnaryServerInterceptor(), authenticator.UnaryServerInterceptor()),
		grpc.ChainStreamInterceptor(grpcMetrics.StreamServerInterceptor(), authenticator.StreamServerInterceptor()),
	)

	serviceLogger := logger.WithField("layer", "grpc")
	grpcsvc.RegisterCatalogServer(grpcServer, grpcsvc.NewCatalogService(svcs.catalog, serviceLogger))
	grpcsvc.RegisterBuilderServer(grpcServer, grpcsvc.NewBuilderService(svcs.builder, serviceLogger))
	grpcsvc.RegisterDashboardServer(grpcServer, grpcsvc.NewDashboardService(svcs.dashboard, serviceLogger))
	grpcMetrics.InitializeMetrics(grpcServer)

	// reflection нужен grpcurl и нагрузочным утилитам.
	reflection.Register(grpcServer)

	healthServer := health.NewServer()
	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(grpcServer, healthServer)

	healthHandler := healthcheck.NewHandler(version.GetVersion())
	if deps.storageChecker != nil {
		healthHandler.RegisterChecker("storage", deps.storageChecker)
	}
	if deps.redisChecker != nil {
		healthHandler.RegisterChecker("redis", deps.redisChecker)
	}

	router := httpapi.NewRouter(httpapi.Options{
		Logger:      log.WithField("component", "http"),
		Health:      healthHandler,
		Hub:         hub,
		Dashboard:   svcs.dashboard,
		Auth:        authenticator,
		Gatherer:    prometheus.DefaultGatherer,
		CORSOrigins: cfg.CORSOriginList(),
	})
	httpSrv := startHTTPServer(ctx, cfg.HTTPAddr, logger, router)

	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		shutdownHTTP(httpSrv, logger)
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Infof("gRPC сервер слушает %s", lis.Addr())
		errCh <- grpcServer.Serve(lis)
	}()

	select {
	case <-ctx.Done():
		logger.Info("получен сигнал остановки, останавливаем gRPC сервер")
		healthServer.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
		stopGRPC(grpcServer, logger)
		shutdownHTTP(httpSrv, logger)
		return ctx.Err()
	case err := <-errCh:
		shutdownHTTP(httpSrv, logger)
		if errors.Is(err, grpc.ErrServerStopped) {
			return nil
		}
		return err
	}
}

// registerGRPCMetrics регистрирует метрики gRPC или переиспользует уже зарегистрированные.
func registerGRPCMetrics(logger *log.Entry) *promgrpc.ServerMetrics {
	grpcMetrics := promgrpc.NewServerMetrics()
	if err := prometheus.Register(grpcMetrics); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok2 := are.ExistingCollector.(*promgrpc.ServerMetrics); ok2 {
				return existing
			}
		} else {
			logger.WithError(err).Warn("failed to register grpc metrics")
		}
	}
	return grpcMetrics
}

// stopGRPC ждёт завершения активных вызовов, но не дольше shutdownTimeout.
func stopGRPC(srv *grpc.Server, logger *log.Entry) {
	stoppedCh := make(chan struct{})
	go func() {
		srv.GracefulStop()
		close(stoppedCh)
	}()
	select {
	case <-stoppedCh:
	case <-time.After(shutdownTimeout):
		logger.Warn("graceful stop превысил таймаут, принудительно останавливаем")
		srv.Stop()
	}
}

// startHTTPServer запускает служебный HTTP: метрики, health, живую ленту и выгрузки.
func startHTTPServer(ctx context.Context, addr string, logger *log.Entry, handler http.Handler) *http.Server {
	srv := &http.Server{Addr: addr, Handler: handler, ReadHeaderTimeout: readHeaderTimeout}
	go func() {
		logger.Infof("HTTP доступен по адресу %s (/metrics, /healthz, /livez, /ws/orders)", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Warn("http server failed")
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownHTTP(srv, logger)
	}()

	return srv
}

// shutdownHTTP аккуратно останавливает HTTP-сервер.
func shutdownHTTP(srv *http.Server, logger *log.Entry) {
	if srv == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.WithError(err).Warn("http shutdown with error")
	}
}

// shutdownWorkers останавливает фоновые воркеры и ждёт их выхода.
func shutdownWorkers(cancel context.CancelFunc, workers *sync.WaitGroup, logger *log.Entry) {
	if cancel != nil {
		cancel()
	}
	if workers == nil {
		return
	}

	done := make(chan struct{})
	go func() {
		workers.Wait()
		close(done)
	}()
	select {
	case <-done:
		logger.Info("background workers stopped")
	case <-time.After(shutdownTimeout):
		logger.Warn("timeout waiting for background workers to stop")
	}
}

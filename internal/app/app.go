// Package app собирает процесс shop-engine: хранилище, сервисы, брокеры,
// фоновые воркеры и серверы gRPC/HTTP.
package app

import (
	"context"
	"errors"
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

	healthcheck "github.com/vladislavdragonenkov/shopcore/internal/health"
	"github.com/vladislavdragonenkov/shopcore/internal/service/idempotency"
	"github.com/vladislavdragonenkov/shopcore/internal/service/outbox"
	"github.com/vladislavdragonenkov/shopcore/internal/version"
)

const shutdownTimeout = 5 * time.Second

// Run поднимает процесс и блокируется до отмены ctx или ошибки сервера.
func Run(ctx context.Context, cfg Config) error {
	logger := log.WithField("component", "app")

	deps, err := NewDependencies(ctx, cfg, prometheus.DefaultRegisterer, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := deps.Close(); err != nil {
			logger.WithError(err).Warn("failed to close storage")
		}
	}()

	if cfg.SeedFile != "" {
		seed, err := LoadSeed(cfg.SeedFile)
		if err != nil {
			return err
		}
		if err := seed.Apply(deps.Repos, deps.Resolver); err != nil {
			return err
		}
		logger.WithField("file", cfg.SeedFile).Info("seed catalog loaded")
	}

	messaging, err := NewMessaging(cfg, deps.Payments, logger.WithField("component", "messaging"))
	if err != nil {
		return err
	}
	defer messaging.Close()

	healthHandler := healthcheck.NewHandler(version.GetVersion())
	if deps.Store != nil {
		healthHandler.RegisterChecker("postgres", healthcheck.NewFuncChecker("postgres", deps.Store.Ping))
	}
	healthHandler.RegisterChecker("outbox", healthcheck.NewSimpleChecker("outbox", func() error {
		_, err := deps.Repos.Outbox.Stats()
		return err
	}))

	workerOpts := []outbox.Option{
		outbox.WithLogger(logger.WithField("component", "outbox-worker")),
		outbox.WithPollInterval(cfg.OutboxPollInterval),
		outbox.WithBatchSize(cfg.OutboxBatchSize),
		outbox.WithMaxAttempts(cfg.OutboxMaxAttempts),
		outbox.WithRetryBaseDelay(cfg.OutboxRetryDelay),
	}
	if messaging.DLQ != nil {
		workerOpts = append(workerOpts, outbox.WithDLQPublisher(messaging.DLQ))
	}
	outboxWorker := outbox.NewWorker(deps.Repos.Outbox, messaging.Publisher, workerOpts...)
	cleanupWorker := idempotency.NewCleanupWorker(deps.Repos.Processed,
		idempotency.WithLogger(logger.WithField("component", "processed-events-cleanup")),
		idempotency.WithInterval(cfg.ProcessedEventCleanup),
		idempotency.WithBatchSize(cfg.ProcessedEventCleanupBatch),
	)

	workersCtx, cancelWorkers := context.WithCancel(ctx)
	defer cancelWorkers()
	haltWorkers := startWorkers(workersCtx, outboxWorker.Run, cleanupWorker.Run)

	if messaging.Consumer != nil {
		if err := messaging.Consumer.Start(workersCtx); err != nil {
			haltWorkers()
			return err
		}
	}

	grpcServer, healthServer := newGRPCServer(logger)
	httpSrv := &http.Server{
		Addr:              cfg.MetricsAddr,
		Handler:           newRouter(healthHandler, prometheus.DefaultGatherer, deps.Payments, cfg.StripeWebhookSecret, logger.WithField("layer", "http")),
		ReadHeaderTimeout: 5 * time.Second,
	}

	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		cancelWorkers()
		stopConsumer(messaging, logger)
		haltWorkers()
		return err
	}

	errCh := make(chan error, 2)
	go func() {
		logger.Infof("gRPC сервер слушает %s", cfg.GRPCAddr)
		errCh <- grpcServer.Serve(lis)
	}()
	go func() {
		logger.Infof("HTTP API (health, metrics, webhooks) слушает %s", cfg.MetricsAddr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("получен сигнал остановки")
		runErr = ctx.Err()
	case err := <-errCh:
		if !errors.Is(err, grpc.ErrServerStopped) {
			runErr = err
		}
	}

	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	stopGRPC(grpcServer, logger)
	shutdownHTTP(httpSrv, logger)

	cancelWorkers()
	stopConsumer(messaging, logger)
	haltWorkers()

	// Дослать накопленные уведомления до закрытия брокеров.
	flushCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if sent := outboxWorker.Flush(flushCtx); sent > 0 {
		logger.WithField("sent", sent).Info("outbox flushed on shutdown")
	}

	return runErr
}

// startWorkers запускает фоновые циклы. Возвращённая функция отменяет их и
// ждёт завершения, чтобы хранилище не закрылось под работающим воркером.
func startWorkers(ctx context.Context, runs ...func(context.Context)) (halt func()) {
	ctx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	for _, run := range runs {
		wg.Add(1)
		go func(run func(context.Context)) {
			defer wg.Done()
			run(ctx)
		}(run)
	}
	return func() {
		cancel()
		wg.Wait()
	}
}

func stopConsumer(messaging *Messaging, logger *log.Entry) {
	if messaging.Consumer == nil {
		return
	}
	if err := messaging.Consumer.Stop(); err != nil {
		logger.WithError(err).Warn("failed to stop kafka consumer")
	}
}

// newGRPCServer создаёт сервер с health, reflection и prometheus-перехватчиком.
func newGRPCServer(logger *log.Entry) (*grpc.Server, *health.Server) {
	grpcMetrics := promgrpc.NewServerMetrics()
	if err := prometheus.Register(grpcMetrics); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(*promgrpc.ServerMetrics); ok {
				grpcMetrics = existing
			}
		} else {
			logger.WithError(err).Warn("failed to register grpc metrics")
		}
	}

	server := grpc.NewServer(grpc.ChainUnaryInterceptor(grpcMetrics.UnaryServerInterceptor()))
	healthServer := health.NewServer()
	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(server, healthServer)
	reflection.Register(server)
	grpcMetrics.InitializeMetrics(server)
	return server, healthServer
}

func stopGRPC(server *grpc.Server, logger *log.Entry) {
	stopped := make(chan struct{})
	go func() {
		server.GracefulStop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(shutdownTimeout):
		logger.Warn("graceful stop превысил таймаут, принудительно останавливаем")
		server.Stop()
	}
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

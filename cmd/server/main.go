package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"marquee/cmd/server/config"
	"marquee/internal/adapters/grpc"
	"marquee/internal/admission"
	"marquee/internal/app"
	"marquee/internal/logging"
	"marquee/internal/observability"
	"marquee/internal/orders"
	"marquee/internal/orders/txn"
	"marquee/internal/realtime"
	"marquee/internal/settlement"
	"marquee/internal/tasks"

	grpcpkg "google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := logging.New(os.Getenv("LOG_LEVEL"))
	slog.SetDefault(logger)

	if err := run(ctx, logger); err != nil {
		logger.Error("server error", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *slog.Logger) error {
	grpcCfg, err := config.LoadGRPC()
	if err != nil {
		return err
	}
	obsCfg, err := config.LoadObservability()
	if err != nil {
		return err
	}
	redisCfg, err := config.LoadRedis()
	if err != nil {
		return err
	}
	admissionCfg, err := config.LoadAdmission()
	if err != nil {
		return err
	}
	tasksCfg, err := config.LoadTasks()
	if err != nil {
		return err
	}
	reliabilityCfg, err := settlement.LoadReliabilityConfigFromEnv()
	if err != nil {
		return err
	}
	kafkaCfg := config.LoadKafka()

	stores, closeStores, err := app.OpenStores(ctx, os.Getenv("DATABASE_URL"), logger)
	if err != nil {
		return err
	}
	defer closeStores()

	counter, closeCounter, err := buildAdmissionCounter(ctx, redisCfg, logger)
	if err != nil {
		return err
	}
	defer closeCounter()

	metrics := observability.NewMetrics()
	prom := observability.NewProm("marquee")
	recorders := observability.Recorders{Metrics: metrics, Prom: prom}

	hub := realtime.NewHub(logger)
	go hub.Run(ctx)

	senders, closeSenders := app.NewSenders(app.NotifyConfig{
		Brokers:           kafkaCfg.Brokers,
		NotificationTopic: kafkaCfg.NotificationTopic,
		AlertTopic:        kafkaCfg.AlertTopic,
	}, logger, hub)
	defer closeSenders()

	adapters := app.GuardedAdapters(settlement.NewInMemoryAdapters(), reliabilityCfg)
	service := orders.NewService(stores.Transactions, stores.Actions,
		admission.NewGate(counter, admissionCfg.KeyPrefix, admissionCfg.Unit),
		adapters,
		orders.WithLogger(logger),
		orders.WithRecorder(recorders),
	)

	names, err := taskNames(tasksCfg.Names)
	if err != nil {
		return err
	}
	pipeline := app.NewPipeline(stores, adapters, senders, app.TaskConfig{
		MaxNumberOfTry: tasksCfg.MaxNumberOfTry,
		EmailFrom:      tasksCfg.EmailFrom,
	}, recorders, logger)
	runner := tasks.NewRunner(logger, service, pipeline.Exporter, pipeline.Executor, pipeline.Reclaimer, tasks.RunnerConfig{
		ExportInterval:  tasksCfg.ExportInterval,
		ExecuteInterval: tasksCfg.ExecuteInterval,
		ReclaimInterval: tasksCfg.ReclaimInterval,
		ExpireInterval:  tasksCfg.ExpireInterval,
		StallTimeout:    tasksCfg.StallTimeout,
		Names:           names,
	})

	lis, err := net.Listen("tcp", grpcCfg.Addr)
	if err != nil {
		return err
	}

	limiter := settlement.NewRateLimiter(grpcCfg.RateLimitInterval, grpcCfg.RateLimitBurst).OnWait(metrics.AddRateLimitWait)
	observer := callObserver{metrics: metrics, prom: prom, logger: logger}
	server := grpcpkg.NewServer(
		grpcpkg.UnaryInterceptor(rateLimitUnaryInterceptor(limiter, observer)),
		grpcpkg.StreamInterceptor(rateLimitStreamInterceptor(limiter, observer)),
	)
	grpc.RegisterPlaceOrderServer(server, grpc.NewPlaceOrderServer(service, admissionCfg.MaxCountPerUnit))

	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(server, healthServer)
	healthServer.SetServingStatus(grpc.ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)

	if env := os.Getenv("APP_ENV"); env != "production" {
		reflection.Register(server)
		logger.Info("gRPC reflection enabled", "app_env", env)
	}

	obsSrv := startObservabilityServer(obsCfg, observability.NewMux(metrics, prom, hub), logger)

	runnerCtx, stopRunner := context.WithCancel(ctx)
	defer stopRunner()
	runnerDone := make(chan error, 1)
	go func() {
		runnerDone <- runner.Run(runnerCtx)
	}()

	logger.Info("server running", "addr", grpcCfg.Addr)
	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Serve(lis)
	}()

	select {
	case <-ctx.Done():
		healthServer.SetServingStatus(grpc.ServiceName, healthpb.HealthCheckResponse_NOT_SERVING)
		healthServer.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
		metrics.MarkShutdown(metrics.Snapshot().InFlight)
		server.GracefulStop()
		stopRunner()
		if err := <-runnerDone; err != nil {
			logger.Error("task runner stopped", "err", err)
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = obsSrv.Shutdown(shutdownCtx)
		return nil
	case err := <-errCh:
		stopRunner()
		<-runnerDone
		return err
	}
}

func taskNames(raw []string) ([]txn.TaskName, error) {
	names := make([]txn.TaskName, 0, len(raw))
	for _, r := range raw {
		name, err := txn.ParseTaskName(r)
		if err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, nil
}

func startObservabilityServer(cfg config.ObservabilityConfig, handler http.Handler, logger *slog.Logger) *http.Server {
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("observability server error", "err", err)
		}
	}()
	return srv
}

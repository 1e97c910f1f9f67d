package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
	"google.golang.org/grpc"

	"github.com/rl1809/stock-ledger/internal/adapter/handler"
	"github.com/rl1809/stock-ledger/internal/adapter/notify"
	"github.com/rl1809/stock-ledger/internal/adapter/storage"
	"github.com/rl1809/stock-ledger/internal/config"
	"github.com/rl1809/stock-ledger/internal/core/service"
	"github.com/rl1809/stock-ledger/internal/platform/observability"
	"github.com/rl1809/stock-ledger/internal/port"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	otelShutdown, err := observability.Setup(ctx, cfg)
	if err != nil {
		log.Printf("failed to setup OpenTelemetry: %v", err)
	}
	logger := observability.NewLogger(cfg.OtelEndpoint != "")
	defer logger.Sync()

	// Initialize store
	store, err := openStore(ctx, cfg)
	if err != nil {
		logger.Fatal("failed to open store", zap.String("driver", cfg.StoreDriver), zap.Error(err))
	}
	logger.Info("store ready", zap.String("driver", cfg.StoreDriver))

	// Initialize locks and idempotency keys
	var (
		locker      port.ItemLocker      = storage.NewMemoryLocker()
		idempotency port.IdempotencyStore = storage.NewMemoryIdempotency()
		rdb         *redis.Client
	)
	if cfg.RedisAddr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			PoolSize: 100,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Fatal("failed to connect redis", zap.Error(err))
		}
		redisAdapter := storage.NewRedisAdapter(rdb)
		locker, idempotency = redisAdapter, redisAdapter
		logger.Info("connected to redis", zap.String("addr", cfg.RedisAddr))
	}

	// Initialize notifications
	var (
		transport port.Notifier = notify.NewLogNotifier(logger)
		kafkaOut  *notify.KafkaNotifier
	)
	if len(cfg.KafkaBrokers) > 0 {
		kafkaOut = notify.NewKafkaNotifier(notify.NewKafkaWriter(cfg.KafkaBrokers, cfg.KafkaTopic))
		transport = kafkaOut
		logger.Info("publishing notifications to kafka",
			zap.Strings("brokers", cfg.KafkaBrokers), zap.String("topic", cfg.KafkaTopic))
	}
	notifier := notify.NewAsyncNotifier(transport, cfg.NotifyWorkers, cfg.NotifyQueueSize, cfg.NotifyTimeout, logger)
	logger.Info("started notification workers", zap.Int("count", cfg.NotifyWorkers))

	// Initialize services
	opts := []service.Option{
		service.WithIdempotency(idempotency),
		service.WithLockTimeout(cfg.LockTimeout),
		service.WithNotifyTimeout(cfg.NotifyTimeout),
		service.WithTracer(otel.Tracer(config.ServiceName)),
	}
	svc := handler.Services{
		Ledger:  service.NewLedgerService(store, locker, notifier, logger, opts...),
		Repairs: service.NewRepairService(store, locker, notifier, logger, opts...),
		Catalog: service.NewCatalogService(store, locker, logger, opts...),
		Reports: service.NewReportService(store, logger, opts...),
	}

	// Start gRPC server
	var grpcServer *grpc.Server
	if cfg.GRPCAddr != "" {
		grpcServer = grpc.NewServer(grpc.UnaryInterceptor(handler.AuthInterceptor(cfg.JWTSecret)))
		handler.RegisterLedgerServer(grpcServer, handler.NewGRPCHandler(svc, logger))

		lis, err := net.Listen("tcp", cfg.GRPCAddr)
		if err != nil {
			logger.Fatal("failed to listen", zap.String("addr", cfg.GRPCAddr), zap.Error(err))
		}
		go func() {
			logger.Info("gRPC server listening", zap.String("addr", cfg.GRPCAddr))
			if err := grpcServer.Serve(lis); err != nil {
				logger.Error("gRPC server error", zap.Error(err))
			}
		}()
	}

	// Start HTTP server
	var httpServer *http.Server
	if cfg.HTTPAddr != "" {
		httpServer = &http.Server{
			Addr:              cfg.HTTPAddr,
			Handler:           handler.NewHTTPHandler(svc, cfg.JWTSecret, logger).Router(),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			logger.Info("HTTP server listening", zap.String("addr", cfg.HTTPAddr))
			if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				logger.Error("HTTP server error", zap.Error(err))
			}
		}()
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if httpServer != nil {
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP shutdown", zap.Error(err))
		}
		logger.Info("HTTP server stopped")
	}
	if grpcServer != nil {
		grpcServer.GracefulStop()
		logger.Info("gRPC server stopped")
	}

	// Drain queued notifications before closing their transport
	notifier.Close()
	logger.Info("notification workers stopped")
	if kafkaOut != nil {
		if err := kafkaOut.Close(); err != nil {
			logger.Error("failed to close kafka writer", zap.Error(err))
		}
	}

	if rdb != nil {
		rdb.Close()
	}
	if err := store.Close(); err != nil {
		logger.Error("failed to close store", zap.Error(err))
	}
	logger.Info("connections closed")

	if otelShutdown != nil {
		if err := otelShutdown(shutdownCtx); err != nil {
			logger.Error("failed to shutdown OpenTelemetry", zap.Error(err))
		}
	}
}

func openStore(ctx context.Context, cfg *config.Config) (port.Store, error) {
	switch cfg.StoreDriver {
	case config.DriverMemory:
		return storage.NewMemoryStore(), nil
	case config.DriverSQLite:
		db, err := storage.OpenSQLite(ctx, cfg.SQLiteDSN)
		if err != nil {
			return nil, err
		}
		return storage.NewSQLStore(db), nil
	case config.DriverMySQL:
		db, err := storage.OpenMySQL(ctx, cfg.MySQLDSN, storage.PoolConfig{
			MaxOpenConns:    cfg.MaxOpenConns,
			MaxIdleConns:    cfg.MaxIdleConns,
			ConnMaxLifetime: cfg.ConnMaxLifetime,
		})
		if err != nil {
			return nil, err
		}
		return storage.NewSQLStore(db), nil
	}
	return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
}

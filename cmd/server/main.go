package main

import (
	"context"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"semaphore/dashboard/internal/api"
	"semaphore/dashboard/internal/config"
	dashgrpc "semaphore/dashboard/internal/grpc"
	internalhttp "semaphore/dashboard/internal/http"
	"semaphore/dashboard/internal/jobs"
	"semaphore/dashboard/internal/logger"
	"semaphore/dashboard/internal/session"
	"semaphore/dashboard/internal/storage"
)

func main() {
	cfg := config.Load()

	host, _ := os.Hostname()
	appLog := logger.NewRollbar(log.Default(), logger.ParseLevel(cfg.LogLevel), logger.RollbarConfig{
		Token:       cfg.RollbarToken,
		Environment: cfg.Env,
		ServerHost:  host,
	})
	defer appLog.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	backend, err := openStorage(ctx, cfg)
	if err != nil {
		log.Fatalf("storage init failed: %v", err)
	}
	defer backend.Close()

	apiClient := api.New(cfg.APIBaseURL, &http.Client{Timeout: cfg.APITimeout}, appLog)
	sessions := session.NewManager(backend, func(st *session.Store) session.RemoteLogout {
		return apiClient.WithCredentials(st)
	}, appLog, cfg.RestoreDelay)
	defer sessions.Close()

	server, err := internalhttp.NewServer(cfg, sessions, apiClient, appLog)
	if err != nil {
		log.Fatalf("server init failed: %v", err)
	}

	health := dashgrpc.NewHealth(backend, appLog)
	grpcServer, err := dashgrpc.NewServer(cfg.ServiceAuthToken, health)
	if err != nil {
		log.Fatalf("grpc init failed: %v", err)
	}
	health.Watch(ctx, 15*time.Second)

	jobs.StartSessionSweepJob(ctx, cfg, sessions, appLog)

	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           server.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Printf("dashboard http listening on %s", cfg.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("http server error: %v", err)
		}
	}()

	go func() {
		listener, err := net.Listen("tcp", cfg.GRPCAddr)
		if err != nil {
			log.Fatalf("grpc listen error: %v", err)
		}
		log.Printf("dashboard grpc listening on %s", cfg.GRPCAddr)
		if err := grpcServer.Serve(listener); err != nil {
			log.Fatalf("grpc server error: %v", err)
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
	grpcServer.GracefulStop()
}

func openStorage(ctx context.Context, cfg config.Config) (storage.Backend, error) {
	switch cfg.StorageBackend {
	case "redis":
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		backend := storage.NewRedisBackend(client, cfg.StorageTTL)
		if err := backend.Ping(ctx); err != nil {
			_ = backend.Close()
			return nil, err
		}
		return backend, nil
	case "postgres":
		pool, err := storage.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		backend := storage.NewPostgresBackend(pool)
		if err := backend.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, err
		}
		return backend, nil
	default:
		return storage.NewMemoryBackend(), nil
	}
}

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

	"github.com/gorilla/mux"
	"github.com/redis/go-redis/v9"
	httpSwagger "github.com/swaggo/http-swagger"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	_ "github.com/Krimson/posture-monitory/monitor/docs" // Swagger docs
	"github.com/Krimson/posture-monitory/monitor/internal/config"
	"github.com/Krimson/posture-monitory/monitor/internal/health"
	"github.com/Krimson/posture-monitory/monitor/internal/posture"
	"github.com/Krimson/posture-monitory/monitor/internal/server"
	"github.com/Krimson/posture-monitory/monitor/internal/session"
	"github.com/Krimson/posture-monitory/monitor/internal/websocket"
	"github.com/Krimson/posture-monitory/proto/keypoint"
)

// @title Posture Monitor API
// @version 1.0
// @description API управления мониторами осанки: эталон, сессии, оповещения и снимки.

// @contact.name API Support

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @host localhost:8080
// @BasePath /
// @schemes http

func main() {
	log.Printf("[INFO] Starting posture monitor...")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("[FATAL] Failed to load configuration: %v", err)
	}
	log.Printf("[INFO] Configuration loaded: grpc_port=%s http_port=%s thresholds=%+v alert_delay=%s",
		cfg.GRPCPort, cfg.HTTPPort, cfg.Thresholds, cfg.AlertDelay())

	cache, closeCache := connectCache(cfg)
	defer closeCache()

	repository, closeRepository := connectRepository(cfg)
	defer closeRepository()

	hubCtx, stopHub := context.WithCancel(context.Background())
	defer stopHub()

	hub := websocket.NewHub()
	go hub.Run(hubCtx)

	manager := session.NewManager(cache, repository, session.ManagerConfig{
		Classifier:  posture.NewClassifier(cfg.ClassifierOptions()),
		AlertDelay:  cfg.AlertDelay(),
		IdleTimeout: cfg.FeedIdleTimeout(),
		Alerts:      session.LogSink{},
		Observer:    hub,
	})

	// gRPC: прием кадров
	grpcServer := grpc.NewServer()
	keypoint.RegisterKeypointServiceServer(grpcServer, server.NewKeypointServer(cfg.AckEveryN, manager))

	healthServer := health.NewHealthServer(manager)
	grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)

	reflection.Register(grpcServer)

	address := fmt.Sprintf(":%s", cfg.GRPCPort)
	listener, err := net.Listen("tcp", address)
	if err != nil {
		log.Fatalf("[FATAL] Failed to listen on %s: %v", address, err)
	}

	// HTTP: команды, события и документация
	router := mux.NewRouter()
	session.NewHTTPHandler(manager).RegisterRoutes(router)
	router.HandleFunc("/ws", hub.HandleWebSocket)
	router.Handle("/healthz", healthServer).Methods("GET")
	router.PathPrefix("/swagger/").Handler(httpSwagger.WrapHandler)

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.HTTPPort),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	healthServer.SetServingStatus("")
	healthServer.SetServingStatus(keypoint.ServiceName)

	serverErrChan := make(chan error, 2)
	go func() {
		log.Printf("[INFO] gRPC server listening on %s", address)
		if err := grpcServer.Serve(listener); err != nil {
			serverErrChan <- fmt.Errorf("gRPC server error: %w", err)
		}
	}()
	go func() {
		log.Printf("[INFO] HTTP server listening on %s (swagger: /swagger/index.html)", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	shutdownChan := make(chan os.Signal, 1)
	signal.Notify(shutdownChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrChan:
		log.Printf("[ERROR] Server error: %v", err)

	case sig := <-shutdownChan:
		log.Printf("[INFO] Received signal %v, starting graceful shutdown...", sig)
	}

	healthServer.SetNotServingStatus("")
	healthServer.SetNotServingStatus(keypoint.ServiceName)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("[WARN] HTTP shutdown: %v", err)
	}

	stopped := make(chan struct{})
	go func() {
		grpcServer.GracefulStop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-shutdownCtx.Done():
		log.Printf("[WARN] Graceful shutdown timeout, forcing stop")
		grpcServer.Stop()
	}

	// Активные сессии завершаются и архивируются
	manager.CloseAll()
	stopHub()

	log.Printf("[INFO] Server stopped")
}

// connectCache подключает Redis, при недоступности использует память
func connectCache(cfg *config.Config) (session.CacheStore, func()) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		log.Printf("[WARN] Redis unavailable at %s, using in-memory cache: %v", cfg.RedisAddr, err)
		client.Close()
		return session.NewMemoryStore(nil, cfg.BaselineTTL()), func() {}
	}

	log.Printf("[INFO] Connected to Redis at %s", cfg.RedisAddr)
	return session.NewRedisStore(client, cfg.BaselineTTL()), func() { client.Close() }
}

// connectRepository подключает PostgreSQL, при недоступности использует память
func connectRepository(cfg *config.Config) (session.Repository, func()) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	repo, err := session.NewPostgresRepositoryFromDSN(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Printf("[WARN] PostgreSQL unavailable, session history kept in memory: %v", err)
		return session.NewMemoryRepository(), func() {}
	}

	log.Printf("[INFO] Connected to PostgreSQL")
	return repo, func() { repo.Close() }
}

package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	internalhttp "github.com/EternisAI/blinkup-bridge/internal/api/http"
	"github.com/EternisAI/blinkup-bridge/internal/blinkup"
	"github.com/EternisAI/blinkup-bridge/internal/cert"
	"github.com/EternisAI/blinkup-bridge/internal/db"
	grpcserver "github.com/EternisAI/blinkup-bridge/internal/grpc/server"
	grpctls "github.com/EternisAI/blinkup-bridge/internal/grpc/tls"
	"github.com/EternisAI/blinkup-bridge/internal/planstore"
	"github.com/EternisAI/blinkup-bridge/internal/simulator"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"google.golang.org/grpc"
)

var AppVersion string

func main() {
	InitConfig()

	slog.Info("BlinkUp Bridge", "version", AppVersion)

	ctx := context.Background()

	plans, closeStore, err := openPlanStore(ctx, config.Database)
	if err != nil {
		slog.Error("Failed to open plan store", "error", err)
		os.Exit(1)
	}
	defer closeStore()

	sdk := simulator.New(config.Simulator)
	coordinator := blinkup.NewCoordinator(sdk, plans, config.BlinkUp.coordinatorConfig())
	slog.Info("BlinkUp coordinator ready",
		"simulator_outcome", config.Simulator.Outcome,
		"strict_api_key", config.BlinkUp.StrictAPIKey,
		"persistent_plan_cache", config.Database.Enabled())

	var grpcOpts []grpc.ServerOption
	if config.Grpc.TLS.Enabled {
		if config.Grpc.TLS.AutoGenerate {
			err := cert.Ensure(cert.Paths{
				CACert:     config.Grpc.TLS.CAFile,
				CAKey:      config.Grpc.TLS.CAKeyFile,
				ServerCert: config.Grpc.TLS.CertFile,
				ServerKey:  config.Grpc.TLS.KeyFile,
			}, ParseCommaSeparated(config.Grpc.TLS.Hosts))
			if err != nil {
				slog.Error("Failed to prepare gRPC certificates", "error", err)
				os.Exit(1)
			}
		}
		creds, err := grpctls.ServerCredentials(config.Grpc.TLS)
		if err != nil {
			slog.Error("Failed to load gRPC TLS credentials", "error", err)
			os.Exit(1)
		}
		grpcOpts = append(grpcOpts, grpc.Creds(creds))
	}
	grpcSrv := grpcserver.NewServer(config.Grpc.Port, coordinator, grpcOpts...)

	services := &internalhttp.Services{
		Coordinator: coordinator,
	}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST"},
		AllowHeaders:     []string{"Origin", "Content-Length", "Content-Type", "X-API-Key"},
		ExposeHeaders:    []string{"Content-Length", "X-Callback-Id"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
	engine.Use(gin.Recovery())
	internalhttp.SetupRoute(engine, config.Http, services)

	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", config.Http.Port),
		Handler: engine,
	}

	errChan := make(chan error, 2)
	go func() {
		slog.Info("Starting HTTP server", "address", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	go func() {
		if err := grpcSrv.Start(); err != nil {
			errChan <- fmt.Errorf("gRPC server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errChan:
		slog.Error("Server error", "error", err)
	case sig := <-sigChan:
		slog.Info("Received shutdown signal", "signal", sig)
	}

	slog.Info("Shutting down servers...")

	// Dismiss any BlinkUp still on screen so its stream closes before the
	// HTTP server waits on it.
	if coordinator.Abort() {
		slog.Info("Aborted BlinkUp in progress")
	}

	var wg sync.WaitGroup
	shutdownTimeout := 10 * time.Second

	wg.Add(1)
	go func() {
		defer wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(ctx); err != nil {
			slog.Error("HTTP server shutdown error", "error", err)
		} else {
			slog.Info("HTTP server stopped")
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := grpcSrv.StopWithTimeout(shutdownTimeout); err != nil {
			slog.Error("gRPC server shutdown error", "error", err)
		}
	}()

	wg.Wait()
	slog.Info("Shutdown complete")
}

func openPlanStore(ctx context.Context, cfg db.Config) (blinkup.PlanCache, func(), error) {
	if !cfg.Enabled() {
		slog.Info("No database configured, plan id cache is in memory")
		return planstore.NewMemoryStore(), func() {}, nil
	}

	if err := db.Migrate(ctx, cfg); err != nil {
		return nil, nil, err
	}

	pool, err := db.Open(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	return planstore.NewPostgresStore(pool), pool.Close, nil
}

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/evansochadeka/BenFarm/gateway"
	"github.com/evansochadeka/BenFarm/pkg/app"
	"github.com/evansochadeka/BenFarm/pkg/config"
	"github.com/evansochadeka/BenFarm/pkg/discovery"
	"github.com/evansochadeka/BenFarm/pkg/grpc"
	"github.com/evansochadeka/BenFarm/pkg/logging"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to the optional YAML config file")
	flag.Parse()

	// .env is optional
	_ = godotenv.Load()

	// Load config
	cfg, err := config.Load(*configPath)
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	// Setup logger
	logger, err := logging.New(cfg.Log)
	if err != nil {
		panic(fmt.Sprintf("Failed to create logger: %v", err))
	}
	defer logger.Sync()

	logger.Info("Starting BenFarm",
		zap.String("env", cfg.App.Env),
		zap.Int("http_port", cfg.Gateway.Port),
		zap.Int("grpc_port", cfg.Server.Port))

	ctx := context.Background()
	application, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize application", zap.Error(err))
	}

	gw := gateway.NewGateway(application)
	market := grpc.NewMarketplaceServer(&cfg.Server, application.Catalog, application.Orders, application.Auth, logger)

	errCh := make(chan error, 2)
	go func() {
		if err := gw.Start(); err != nil {
			errCh <- fmt.Errorf("gateway: %w", err)
		}
	}()
	go func() {
		if err := market.Start(); err != nil {
			errCh <- fmt.Errorf("grpc: %w", err)
		}
	}()

	// Service discovery is optional
	var sd *discovery.ServiceDiscovery
	instance := &discovery.ServiceInstance{
		Name: cfg.Server.Name,
		Host: cfg.Server.Host,
		Port: cfg.Server.Port,
	}
	if len(cfg.Etcd.Endpoints) > 0 {
		sd, err = discovery.NewServiceDiscovery(&cfg.Etcd, logger)
		if err != nil {
			logger.Warn("Failed to connect to etcd, continuing without service discovery", zap.Error(err))
		} else if err := sd.Register(ctx, instance); err != nil {
			logger.Warn("Failed to register service", zap.Error(err))
		}
	}

	// Wait for interrupt signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigCh:
		logger.Info("Received shutdown signal")
	case err := <-errCh:
		logger.Error("Server error", zap.Error(err))
	}

	if sd != nil {
		if err := sd.Deregister(context.Background(), instance); err != nil {
			logger.Warn("Failed to deregister service", zap.Error(err))
		}
		sd.Close()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := gw.Shutdown(shutdownCtx); err != nil {
		logger.Warn("Gateway shutdown error", zap.Error(err))
	}
	market.Stop()

	if err := application.Close(); err != nil {
		logger.Warn("Failed to release resources", zap.Error(err))
	}
	logger.Info("BenFarm stopped")
}

package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/tripsnap/api/internal/api/common"
	internalMiddleware "github.com/tripsnap/api/internal/middleware"
	"github.com/tripsnap/api/internal/server"
	"github.com/tripsnap/api/pkg/backend"
	"github.com/tripsnap/api/pkg/cache"
	"github.com/tripsnap/api/pkg/config"
	"github.com/tripsnap/api/pkg/logging"
	"github.com/tripsnap/api/pkg/resolver"
	pkgServer "github.com/tripsnap/api/pkg/server"
)

// Set at build time via -ldflags
var (
	version   = "dev"
	buildTime = "unknown"
)

func main() {
	// Parse flags
	var configPath string
	var apiKeysPath string

	flag.StringVar(&configPath, "config-path", "", "Path to configuration file (optional, TRIPSNAP_* env vars override it)")
	flag.StringVar(&apiKeysPath, "api-keys-path", "", "Path to an API keys YAML file (optional)")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize structured logging
	if err := logging.InitLogger(cfg.Logging.Level, cfg.Logging.Format); err != nil {
		log.Fatalf("Failed to initialize logging: %v", err)
	}
	defer func() { _ = logging.Logger.Sync() }()
	logging.Logger.Info("Structured logging initialized",
		zap.String("level", cfg.Logging.Level),
		zap.String("format", cfg.Logging.Format))

	if apiKeysPath != "" {
		keys, err := config.LoadAPIKeys(apiKeysPath)
		if err != nil {
			logging.Logger.Fatal("Failed to load API keys", zap.String("path", apiKeysPath), zap.Error(err))
		}
		cfg.Auth.APIKeys = append(cfg.Auth.APIKeys, keys...)
	}
	if len(cfg.Auth.APIKeys) == 0 && cfg.Auth.JWTSecret == "" {
		logging.Logger.Warn("No API keys or JWT secret configured; every /api/v1 request will be rejected")
	}
	logging.Logger.Info("API keys loaded", zap.Int("count", len(cfg.Auth.APIKeys)))

	ctx := context.Background()

	resolutionCache := cache.NewCache(ctx, cfg.Cache)
	defer func() {
		if err := resolutionCache.Close(); err != nil {
			logging.Logger.Warn("Failed to close cache", zap.Error(err))
		}
	}()

	instanceID, err := pkgServer.GetOrCreateInstanceID(ctx, resolutionCache)
	if err != nil {
		logging.Logger.Fatal("Failed to get or create instance ID", zap.Error(err))
	}

	filesAPI := backend.NewClient(backend.Options{
		BaseURL:       cfg.Backend.BaseURL,
		LegacyBaseURL: cfg.Backend.LegacyBaseURL,
		Token:         cfg.Backend.Token,
		Timeout:       cfg.Backend.Timeout,
	})
	imageResolver := resolver.New(filesAPI, resolutionCache, resolver.Options{
		LegacyEnabled: cfg.Images.LegacyEnabled,
		SignTTL:       cfg.Images.SignTTL(),
		CacheTTL:      cfg.Cache.TTL,
		DebugIDs:      cfg.Images.DebugIDs,
	})
	logging.Logger.Info("Image resolver initialized",
		zap.String("files_api", cfg.Backend.BaseURL),
		zap.Bool("legacy_enabled", cfg.Images.LegacyEnabled),
		zap.String("cache", cfg.Cache.Backend))

	// Create Echo instance
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = common.NewValidator()

	// Add global middleware (including API ID header)
	e.Use(internalMiddleware.RequestIDMiddleware())
	e.Use(internalMiddleware.ZapLogger(logging.Named("http")))
	e.Use(internalMiddleware.RecoverMiddleware())
	e.Use(internalMiddleware.CORSMiddleware())
	e.Use(internalMiddleware.APIIDMiddleware(instanceID))

	srv, err := server.New(e, server.Options{
		Config:     cfg,
		Resolver:   imageResolver,
		Cache:      resolutionCache,
		InstanceID: instanceID,
		VersionInfo: &server.VersionInfo{
			Version:   version,
			BuildTime: buildTime,
			GoVersion: runtime.Version(),
		},
	})
	if err != nil {
		logging.Logger.Fatal("Failed to create server", zap.Error(err))
	}
	logging.Logger.Info("Server initialized", zap.String("instance_id", instanceID))

	go func() {
		if err := srv.Start(); err != nil {
			logging.Logger.Fatal("Server error", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logging.Logger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logging.Logger.Error("Graceful shutdown failed", zap.Error(err))
	}
}

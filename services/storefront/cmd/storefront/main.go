package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"catalogapp/internal/ratelimit"
	"catalogapp/internal/util"
	"catalogapp/pkg/kv"
	"catalogapp/pkg/persist"
	"catalogapp/services/storefront/internal/app"
	"catalogapp/services/storefront/internal/catalogclient"
	"catalogapp/services/storefront/internal/config"
	"catalogapp/services/storefront/internal/server"
)

func main() {
	configPath := flag.String("config", "", "path to config.yaml (overrides STOREFRONT_CONFIG)")
	flag.Parse()

	cfg, err := config.Load(config.ResolvePath(*configPath))
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	requestTimeout, err := config.ParseDuration("requestTimeout", cfg.RequestTimeout, 10*time.Second)
	if err != nil {
		log.Fatalf("failed to parse request timeout: %v", err)
	}
	storageTimeout, err := config.ParseDuration("storageTimeout", cfg.StorageTimeout, 3*time.Second)
	if err != nil {
		log.Fatalf("failed to parse storage timeout: %v", err)
	}

	logger := util.InitLogger(cfg.LogLevel)

	store, err := openStore(cfg)
	if err != nil {
		log.Fatalf("failed to init %s storage: %v", cfg.StorageDriver, err)
	}
	defer func() {
		if err := kv.Close(store); err != nil {
			logger.Warn("storage close failed", "error", err)
		}
	}()

	catalog := catalogclient.NewClient(cfg.CatalogBaseURL, catalogclient.WithTimeout(requestTimeout))
	core, err := app.New(app.Config{
		Persistence: persist.New(store, persist.Options{Timeout: storageTimeout, Logger: logger}),
		Catalog:     catalog,
		Logger:      logger,
	})
	if err != nil {
		log.Fatalf("failed to init app: %v", err)
	}
	catalog.SetTokenSource(core.Token)

	var loginLimiter *ratelimit.FixedWindowLimiter
	if cfg.RedisAddr != "" {
		limit := cfg.LoginRateLimitPerMinute
		if limit <= 0 {
			limit = 10
		}
		loginLimiter, err = ratelimit.NewRedisFixedWindowLimiter(cfg.RedisAddr, cfg.RedisPassword, "storefront:ratelimit:login", limit, time.Minute)
		if err != nil {
			log.Fatalf("failed to init login limiter: %v", err)
		}
	}

	httpServer, err := server.New(server.Config{
		App:            core,
		Catalog:        catalog,
		LoginLimiter:   loginLimiter,
		AllowedOrigins: cfg.AllowedOrigins,
	})
	if err != nil {
		log.Fatalf("failed to init server: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	core.Bootstrap(ctx)

	addr := net.JoinHostPort(cfg.BindAddr, cfg.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      httpServer.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("server listening", "addr", addr, "storage", cfg.StorageDriver, "catalog", cfg.CatalogBaseURL)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server error", "error", err)
	}
}

func openStore(cfg config.FileConfig) (kv.Store, error) {
	var (
		store kv.Store
		err   error
	)
	switch cfg.StorageDriver {
	case config.DriverMemory:
		store = kv.NewMemoryStore()
	case config.DriverFile:
		store, err = kv.NewFileStore(cfg.StoragePath)
	case config.DriverRedis:
		store, err = kv.NewRedisStore(kv.RedisOptions{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			Prefix:   cfg.StorageKeyPrefix,
		})
	case config.DriverPostgres:
		store, err = kv.NewGormStore(cfg.DatabaseURL, cfg.StorageKeyPrefix)
	case config.DriverMinio:
		store, err = kv.NewMinioStore(kv.MinioOptions{
			Endpoint:  cfg.MinioEndpoint,
			AccessKey: cfg.MinioAccessKey,
			SecretKey: cfg.MinioSecretKey,
			Bucket:    cfg.MinioBucket,
			UseSSL:    cfg.MinioUseSSL,
			Prefix:    cfg.StorageKeyPrefix,
		})
	default:
		return nil, errors.New("unknown storage driver " + cfg.StorageDriver)
	}
	if err != nil {
		return nil, err
	}
	if cfg.StorageEncryptionKey == "" {
		return store, nil
	}
	key, err := kv.ParseSealKey(cfg.StorageEncryptionKey)
	if err != nil {
		_ = kv.Close(store)
		return nil, err
	}
	return kv.NewSealed(store, key), nil
}

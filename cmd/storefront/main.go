package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"gulf-store/internal/admin"
	"gulf-store/internal/auth"
	"gulf-store/internal/cache"
	"gulf-store/internal/cart"
	"gulf-store/internal/config"
	"gulf-store/internal/httpserver"
	"gulf-store/internal/kv"
	"gulf-store/internal/logging"
	"gulf-store/internal/media"
	"gulf-store/internal/metrics"
	"gulf-store/internal/narration"
	"gulf-store/internal/notify"
	"gulf-store/internal/stats"
	"gulf-store/internal/storefront"
	"gulf-store/internal/wa"

	"github.com/joho/godotenv"
)

// devAdminPassword is only accepted outside production.
const devAdminPassword = "admin123"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := logging.NewLogger(cfg.LogLevel, cfg.LogFormat)
	logger.Info("starting gulf-store", "env", cfg.AppEnv, "store", cfg.StoreDriver)

	if cfg.PublicBaseURL != "" {
		logger.Info("public base url configured", "base_url", strings.TrimRight(cfg.PublicBaseURL, "/")+cfg.PublicBasePath)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metricRegistry := metrics.Registry(cfg.MetricsNamespace)

	redisCfg := cache.Config{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
		UseTLS:   cfg.RedisTLS,
	}

	notices := notify.NewRecorder(0)
	store, err := kv.Open(ctx, kv.Config{
		Driver: cfg.StoreDriver,
		DSN:    cfg.StoreDSN,
		Redis:  redisCfg,
	}, logger, kv.WithMetrics(metricRegistry), kv.WithNotifier(notify.Multi{notices, notify.NewLog(logger)}))
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Warn("failed closing store", "error", err)
		}
	}()
	logger.Info("store ready", "driver", cfg.StoreDriver)

	var redisClient *cache.Redis
	if cfg.RedisAddr != "" {
		redisClient = cache.New(redisCfg, logger)
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Warn("failed closing redis", "error", err)
			}
		}()
		if err := redisClient.Ping(ctx); err != nil {
			logger.Warn("redis ping failed", "error", err)
		}
	}

	if cfg.GeminiAPIKey == "" {
		logger.Warn("GEMINI_API_KEY not set, narration will ask shoppers to enable access")
	}
	narrator := narration.New(narration.Config{
		BaseURL:  cfg.GeminiBaseURL,
		APIKey:   cfg.GeminiAPIKey,
		Model:    cfg.GeminiModel,
		Voice:    cfg.GeminiVoice,
		Timeout:  cfg.GeminiTimeout,
		CacheTTL: cfg.NarrationCacheTTL,
	}, logger, metricRegistry, redisClient)

	images, err := imageStore(cfg, logger)
	if err != nil {
		return err
	}

	authenticator, err := adminAuthenticator(cfg, logger)
	if err != nil {
		return err
	}

	shopperCart := cart.New(notices)
	checkout := cart.NewCheckout(store, logger,
		cart.WithDelay(cfg.CheckoutDelay),
		cart.WithMetrics(metricRegistry),
	)
	shop := storefront.New(storefront.Deps{
		Store:    store,
		Cart:     shopperCart,
		Checkout: checkout,
		Tracker:  stats.NewTracker(store, logger, metricRegistry),
		Searches: stats.NewSearchRecorder(store, logger, metricRegistry, cfg.SearchDebounce),
		Narrator: narrator,
		Images:   images,
		Notices:  notices,
		Metrics:  metricRegistry,
		Logger:   logger,
	})
	defer shop.Close()

	if cfg.WhatsAppAlerts {
		waClient, err := wa.New(ctx, wa.Config{
			StorePath: cfg.WhatsAppStorePath,
			LogLevel:  cfg.WhatsAppLogLevel,
			Metrics:   metricRegistry,
		}, logger)
		if err != nil {
			return fmt.Errorf("init whatsapp client: %w", err)
		}
		defer waClient.Close()

		waCtx, waCancel := context.WithCancel(ctx)
		defer waCancel()
		go func() {
			if err := waClient.Start(waCtx); err != nil {
				logger.Error("whatsapp client stopped", "error", err)
				stop()
			}
		}()

		alerter := wa.NewAlerter(waClient, store, logger)
		alerter.Start(ctx)
		defer alerter.Close()
	}

	httpSrv := httpserver.New(cfg.HTTPListenAddr, logger, metricRegistry, httpserver.Dependencies{
		Store:      store,
		Storefront: shop,
		Admin:      admin.New(store, logger),
		Session:    auth.NewSession(authenticator, store, logger),
		Live:       admin.NewLiveVisitors(cfg.LiveVisitorInterval, rand.IntN),
		Images:     images,
	}, cfg.PublicBasePath)

	errCh := make(chan error, 1)
	go func() {
		if err := httpSrv.Start(); err != nil {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server error: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}

	return nil
}

// imageStore uploads to Cloudinary when configured and inlines data URIs
// otherwise.
func imageStore(cfg *config.Config, logger *slog.Logger) (media.ImageStore, error) {
	if cfg.CloudinaryURL == "" {
		return media.DataURIStore{}, nil
	}
	store, err := media.NewCloudinary(cfg.CloudinaryURL, cfg.CloudinaryFolder, logger)
	if err != nil {
		return nil, fmt.Errorf("init cloudinary: %w", err)
	}
	return store, nil
}

func adminAuthenticator(cfg *config.Config, logger *slog.Logger) (auth.Authenticator, error) {
	hash := cfg.AdminPasswordHash
	if hash == "" {
		if cfg.IsProduction() {
			return nil, errors.New("ADMIN_PASSWORD_HASH is required in production")
		}
		logger.Warn("ADMIN_PASSWORD_HASH not set, using the development admin password")
		var err error
		if hash, err = auth.HashPassword(devAdminPassword); err != nil {
			return nil, err
		}
	}
	a, err := auth.NewBcrypt(cfg.AdminUsername, hash)
	if err != nil {
		return nil, fmt.Errorf("init admin auth: %w", err)
	}
	return a, nil
}

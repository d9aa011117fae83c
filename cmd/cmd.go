package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"relun-backend/internal/cache"
	"relun-backend/internal/config"
	"relun-backend/internal/metrics"
	"relun-backend/internal/notify"
	"relun-backend/internal/services"
	"relun-backend/internal/storage"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func Run() {
	// Load configuration
	path := os.Getenv("RELUN_CONFIG")
	if path == "" {
		path = "config.yaml"
	}
	cfg, err := config.Load(path)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Setup logger
	setupLogger(cfg.Log.Level, cfg.Log.Format)

	ctx := context.Background()

	// Persistence
	var b *backend
	switch cfg.Database.Driver {
	case "postgres":
		b, err = newPostgresBackend(ctx, cfg.Database)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize database")
		}
	default:
		log.Warn().Msg("Using in-memory storage, data is lost on restart")
		b = newMemoryBackend()
	}
	defer b.close()

	// Cache
	var c cacheLayer = cache.Nop{}
	if cfg.Redis.Addr != "" {
		rc := cache.NewRedisCache(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err := rc.Ping(ctx); err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to Redis")
		}
		defer rc.Close()
		log.Info().Str("addr", cfg.Redis.Addr).Msg("Redis connection established")
		c = rc
	} else {
		log.Warn().Msg("Redis not configured, caching and throttling disabled")
	}

	// Image storage
	var images services.ImageStore
	if cfg.AWS.S3Bucket != "" {
		images, err = storage.NewS3ImageStore(ctx, storage.S3Config{
			Region:        cfg.AWS.Region,
			Bucket:        cfg.AWS.S3Bucket,
			AccessKey:     cfg.AWS.AccessKey,
			SecretKey:     cfg.AWS.SecretKey,
			Endpoint:      cfg.AWS.Endpoint,
			PublicBaseURL: cfg.AWS.PublicBaseURL,
			UsePathStyle:  cfg.AWS.UsePathStyle,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create image storage")
		}
	} else {
		images = storage.NewMemoryImageStore("")
	}

	// Push notifications
	var pusher services.Pusher = notify.NopNotifier{}
	if cfg.APNs.KeyFile != "" {
		pusher, err = notify.NewAPNsNotifier(notify.APNsConfig{
			KeyFile:    cfg.APNs.KeyFile,
			KeyID:      cfg.APNs.KeyID,
			TeamID:     cfg.APNs.TeamID,
			Topic:      cfg.APNs.Topic,
			Production: cfg.APNs.Production,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create APNs client")
		}
	}

	a := newApp(cfg, deps{
		backend: b,
		cache:   c,
		images:  images,
		pusher:  pusher,
		email:   notify.LogOTPSender{Channel: "email"},
		sms:     notify.LogOTPSender{Channel: "sms"},
		metrics: metrics.New(),
	})

	// Create HTTP server. No write timeout: websocket sessions are long lived.
	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           a.router(),
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info().
			Str("host", cfg.Server.Host).
			Int("port", cfg.Server.Port).
			Str("database", cfg.Database.Driver).
			Msg("Starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed to start")
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	// Shutdown does not track hijacked connections, so sessions are closed here
	a.hub.CloseAll()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}

// setupLogger configures zerolog logger
func setupLogger(level, format string) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if strings.ToLower(format) != "json" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}

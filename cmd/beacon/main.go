package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/requestid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/beaconbridge/beacon/internal/bridge"
	"github.com/beaconbridge/beacon/internal/config"
	"github.com/beaconbridge/beacon/internal/driver"
	"github.com/beaconbridge/beacon/internal/filter"
	"github.com/beaconbridge/beacon/internal/filter/builtin"
	"github.com/beaconbridge/beacon/internal/health"
	"github.com/beaconbridge/beacon/internal/message"
	"github.com/beaconbridge/beacon/internal/postgres"
	"github.com/beaconbridge/beacon/internal/sanitize"
	"github.com/beaconbridge/beacon/internal/secrets"
	"github.com/beaconbridge/beacon/internal/space"
	"github.com/beaconbridge/beacon/internal/valkey"
)

// Build metadata injected via ldflags at compile time.
var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()

	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("Beacon stopped")
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.SecretsPassword == "" {
		return errors.New("SECRETS_PASSWORD must be set")
	}

	if cfg.IsDevelopment() {
		log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	}

	log.Info().Str("version", version).Str("commit", commit).Str("env", cfg.ServerEnv).Msg("Starting Beacon")

	ctx := context.Background()

	blobs, closeBlobs, err := buildBlobStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("build encrypted store backend: %w", err)
	}
	defer closeBlobs()

	store, err := secrets.Open(ctx, blobs, cfg.SecretsPassword, secrets.Options{})
	if err != nil {
		return fmt.Errorf("open encrypted store: %w", err)
	}
	log.Info().Str("backend", cfg.SecretsBackend).Msg("Encrypted store unlocked")

	secretsHandle := secrets.NewHandle(store, nil, []string{"spaces", "cache"})

	cache, closeCache, err := buildCacheStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("build message cache backend: %w", err)
	}
	defer closeCache()

	var allowList []string
	if cfg.EnablePlatformWhitelist {
		allowList = cfg.EnabledPlatforms
	}
	drivers := driver.NewRegistry(allowList)
	spaces := space.NewRegistry()
	filters := buildFilterEngine()
	sanitizer := sanitize.NewPolicy()

	core := bridge.NewCore(drivers, spaces, filters, cache, sanitizer, secretsHandle, log.Logger, cfg.EnableMulti)

	if err := core.LoadData(ctx); err != nil {
		return fmt.Errorf("load bridge state: %w", err)
	}
	log.Info().Bool("ready", core.Ready()).Msg("Bridge core loaded")

	app := fiber.New(fiber.Config{AppName: "Beacon"})
	app.Use(requestid.New())

	h := &health.Handler{Core: core, Drivers: drivers, Spaces: spaces}
	h.Register(app)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	shutdownDone := make(chan struct{})
	go func() {
		<-quit
		log.Info().Msg("Shutting down Beacon")
		if err := core.SaveData(ctx); err != nil {
			log.Warn().Err(err).Msg("failed to persist state during shutdown")
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := app.ShutdownWithContext(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("health server shutdown error")
		}
		close(shutdownDone)
	}()

	log.Info().Str("addr", cfg.HealthAddr).Msg("Health server listening")
	if err := app.Listen(cfg.HealthAddr, fiber.ListenConfig{DisableStartupMessage: true}); err != nil {
		return fmt.Errorf("health server error: %w", err)
	}
	<-shutdownDone

	return nil
}

func buildBlobStore(ctx context.Context, cfg *config.Config) (secrets.BlobStore, func(), error) {
	switch cfg.SecretsBackend {
	case "file":
		return secrets.NewFileBlobStore(cfg.SecretsDir), func() {}, nil
	case "postgres":
		pool, err := postgres.Connect(ctx, cfg.DatabaseURL, cfg.DatabaseMaxConn, cfg.DatabaseMinConn)
		if err != nil {
			return nil, func() {}, fmt.Errorf("connect postgres: %w", err)
		}
		if err := postgres.Migrate(cfg.DatabaseURL, log.Logger); err != nil {
			pool.Close()
			return nil, func() {}, fmt.Errorf("run migrations: %w", err)
		}
		return secrets.NewPostgresBlobStore(pool), pool.Close, nil
	default:
		return nil, func() {}, fmt.Errorf("unsupported SECRETS_BACKEND: %q", cfg.SecretsBackend)
	}
}

func buildCacheStore(ctx context.Context, cfg *config.Config) (message.Store, func(), error) {
	switch cfg.CacheBackend {
	case "memory":
		return message.NewMemoryStore(cfg.CacheLimit), func() {}, nil
	case "redis":
		client, err := valkey.Connect(ctx, cfg.ValkeyURL, cfg.ValkeyDialTTL)
		if err != nil {
			return nil, func() {}, fmt.Errorf("connect valkey: %w", err)
		}
		closeFn := func() { _ = client.Close() }
		return message.NewRedisStore(client, cfg.CacheLimit), closeFn, nil
	default:
		return nil, func() {}, fmt.Errorf("unsupported CACHE_BACKEND: %q", cfg.CacheBackend)
	}
}

func buildFilterEngine() *filter.Engine {
	e := filter.NewEngine()
	e.Register(builtin.NewBots())
	e.Register(builtin.NewFiles())
	e.Register(builtin.NewWebhooks())
	e.Register(builtin.NewInvites())
	e.Register(builtin.NewLinks())
	e.Register(builtin.NewMassping())
	e.Register(builtin.NewMaxchars())
	e.Register(builtin.NewSlowmode())
	e.Register(builtin.NewSwearing())
	return e
}

/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the booking engine server. Handles
  configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Parse command-line flags
  2. Load configuration (.env, optional YAML, environment overrides)
  3. Build the zerolog logger
  4. Initialize the SQLite store
  5. Optionally connect Redis with in-memory failover
  6. Optionally wire the SMTP notifier
  7. Configure HTTP router and start with graceful shutdown

COMMAND-LINE FLAGS:
  -config  Path to YAML config file (optional)
  -port    HTTP server port, overrides config
  -db      SQLite database path, overrides config
           Use ":memory:" for an in-memory database

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Close database connection and log sink
  4. Exit

EXAMPLES:
  # Run with file database
  ./server -db="./data/bookings.db"

  # Run with a config file
  ./server -config=./config.yaml

SEE ALSO:
  - config/config.go: Configuration sources and precedence
  - api/server.go: Router configuration
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lodgeworks/booking-engine/api"
	"github.com/lodgeworks/booking-engine/cache"
	"github.com/lodgeworks/booking-engine/config"
	"github.com/lodgeworks/booking-engine/document"
	"github.com/lodgeworks/booking-engine/logging"
	"github.com/lodgeworks/booking-engine/notify"
	"github.com/lodgeworks/booking-engine/reservation"
	"github.com/lodgeworks/booking-engine/store/sqlite"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	port := flag.Int("port", 0, "HTTP server port (overrides config)")
	dbPath := flag.String("db", "", "SQLite database path (overrides config)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if *port != 0 {
		cfg.HTTP.Port = *port
	}
	if *dbPath != "" {
		cfg.Database.Path = *dbPath
	}

	log, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer closer.Close()

	store, err := sqlite.New(cfg.Database.Path)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.Database.Path).Msg("failed to initialize database")
	}
	defer store.Close()

	// Cache: Redis when configured and reachable, always backed by an
	// in-memory fallback so a Redis outage degrades instead of failing.
	var c reservation.Cache
	memCache := cache.NewMemory(cfg.Redis.TTL.Std())
	if cfg.Redis.Enabled {
		client := cache.NewRedisClient(cfg.Redis.Address, cfg.Redis.Password, cfg.Redis.DB)
		redisCache := cache.NewRedis(client, cfg.Redis.TTL.Std())

		pingCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		if err := redisCache.Ping(pingCtx); err != nil {
			log.Warn().Err(err).Str("address", cfg.Redis.Address).Msg("redis unreachable, using in-memory cache only")
			c = memCache
		} else {
			c = cache.NewFailover(redisCache, memCache, log)
			log.Info().Str("address", cfg.Redis.Address).Msg("redis cache connected")
		}
		cancel()
	} else {
		c = memCache
	}

	svc := reservation.NewService(store, c, log)
	docs := document.NewRenderer()

	var notifier *notify.Notifier
	if cfg.SMTP.Enabled {
		sender := notify.NewSMTPSender(cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.From, cfg.SMTP.Username, cfg.SMTP.Password)
		notifier = notify.NewNotifier(sender, notify.DefaultRetryPolicy(), log)
		log.Info().Str("host", cfg.SMTP.Host).Msg("smtp notifier enabled")
	}

	handler := api.NewHandler(svc, docs, notifier, log)
	router := api.NewRouter(handler, api.RouterOptions{
		AllowedOrigins: cfg.HTTP.AllowedOrigins,
		RateLimitRPS:   cfg.Limits.RPS,
		RateLimitBurst: cfg.Limits.Burst,
	})

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Int("port", cfg.HTTP.Port).Str("env", cfg.App.Environment).Msg("server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"shopvisit/internal/api"
	"shopvisit/internal/availability"
	"shopvisit/internal/backend"
	"shopvisit/internal/booking"
	"shopvisit/internal/config"
	"shopvisit/internal/db"
	"shopvisit/internal/events"
	"shopvisit/internal/kv"
	"shopvisit/internal/localcart"
	"shopvisit/internal/merge"
	"shopvisit/internal/metrics"
	"shopvisit/internal/monitoring"
	"shopvisit/internal/schedule"
	"shopvisit/internal/session"
)

func main() {
	cfg, err := config.Load(config.PathFromEnv())
	if err != nil {
		bootLogger := zerolog.New(os.Stderr).With().Timestamp().Logger()
		bootLogger.Fatal().Err(err).Msg("failed to load config")
	}
	logger := newLogger(cfg)

	database, err := db.NewDB(cfg.Storage.Path)
	if err != nil {
		logger.Fatal().Err(err).Msg("open db error")
	}
	defer database.Close()

	perSecond, burst := cfg.RateLimit()
	client := backend.NewClient(backend.Options{
		BaseURL:       cfg.Backend.BaseURL,
		APIKey:        cfg.Backend.APIKey,
		Timeout:       cfg.BackendTimeout(),
		RatePerSecond: perSecond,
		Burst:         burst,
	})

	var redisStore *kv.RedisStorage
	if cfg.UseRedis() {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Address, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		defer rdb.Close()
		client.UseRedisCache(rdb, cfg.CacheTTL())
		redisStore = kv.NewRedisStorage(rdb, cfg.Redis.Prefix)
	}

	var store kv.Storage = database
	if cfg.Storage.Driver == config.StorageRedis {
		store = redisStore
	}

	loc, err := cfg.Location()
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid timezone")
	}

	bus := events.NewEventBus()
	subscribeLogging(bus, &logger)

	schedules := schedule.NewService(client, database, &logger)
	bookings := booking.NewService(client, schedules, availability.NewEvaluator(nil), bus, loc, &logger)

	cart := localcart.New(store, localcart.CartKey)
	inquiries := localcart.New(store, localcart.InquiriesKey)
	coordinator := merge.NewCoordinator(cart, inquiries, bookings, bus, cfg.MergeParallelism(), &logger)
	state := session.NewState(coordinator, &logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Monitoring.HealthCheckPort == 0 {
		cfg.Monitoring.HealthCheckPort = 8090
	}
	checks := []monitoring.Check{
		{Name: "db", Ping: database.Ping},
		{Name: "backend", Ping: client.HealthCheck},
	}
	if redisStore != nil {
		checks = append(checks, monitoring.Check{Name: "redis", Ping: redisStore.Ping})
	}
	go monitoring.Serve(ctx, "health", cfg.Monitoring.HealthCheckPort, monitoring.HealthHandler(checks...), &logger)

	if cfg.Monitoring.PrometheusEnabled {
		if cfg.Monitoring.PrometheusPort == 0 {
			cfg.Monitoring.PrometheusPort = 9090
		}
		metrics.Register()
		go monitoring.Serve(ctx, "metrics", cfg.Monitoring.PrometheusPort, monitoring.MetricsHandler(), &logger)
	}

	server := api.NewServer(fmt.Sprintf(":%d", cfg.API.Port), bookings, state, cart, inquiries, client, &logger)
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(ctxShutdown); err != nil {
			logger.Error().Err(err).Msg("api shutdown error")
		}
	}()

	logger.Info().
		Str("backend", cfg.Backend.BaseURL).
		Str("storage", cfg.Storage.Driver).
		Str("timezone", loc.String()).
		Msg("shopvisit started")
	if err := server.Start(); err != nil {
		logger.Error().Err(err).Msg("api server error")
	}
	logger.Info().Msg("shopvisit stopped")
}

func newLogger(cfg *config.Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Logging.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	if cfg.Logging.Pretty {
		output := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
		return zerolog.New(output).Level(level).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).Level(level).With().Timestamp().Logger()
}

func subscribeLogging(bus *events.EventBus, logger *zerolog.Logger) {
	bus.Subscribe(events.Any, func(e events.Event) error {
		logger.Debug().
			Str("event_id", e.ID).
			Str("event", e.Type).
			RawJSON("payload", e.Payload).
			Msg("domain event")
		return nil
	})
}

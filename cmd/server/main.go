package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	database "github.com/Armour007/grc-backend/internal"
	"github.com/Armour007/grc-backend/internal/api"
	"github.com/Armour007/grc-backend/internal/config"
	"github.com/Armour007/grc-backend/internal/mesh"
	"github.com/Armour007/grc-backend/pkg/logger"
)

func main() {
	cfg, err := config.Load(os.Getenv("GRC_CONFIG"))
	if err != nil {
		logger.NewProduction().Fatal().Err(err).Msg("failed to load configuration")
	}

	log := logger.New(logger.Config{Level: cfg.Logger.Level, Format: cfg.Logger.Format})
	logger.SetGlobal(log)
	if cfg.App.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	// The connection is opened lazily by the first request that needs it.
	database.Configure(cfg.Database.DSN(), cfg.Database.MaxOpenConns)

	opts := []api.Option{}

	shutdownTracing, tracing := api.SetupOTel(cfg.Telemetry, cfg.App.Name, log)
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracing(ctx)
	}()
	if tracing {
		opts = append(opts, api.WithTracing())
	}

	bus := newBus(cfg, log)
	defer bus.Close()
	unsubscribe, err := api.SubscribeRecordChanges(bus, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to subscribe to record changes")
	}
	defer unsubscribe()
	opts = append(opts, api.WithBus(bus))

	if cfg.Redis.Addr != "" {
		rc := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rc.Close()
		pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		if err := rc.Ping(pingCtx).Err(); err != nil {
			log.Warn().Err(err).Str("addr", cfg.Redis.Addr).Msg("redis unreachable, auth limiter will fall back to local counters")
		}
		cancel()
		opts = append(opts, api.WithRedis(rc))
	}

	server := api.NewServer(cfg, log, opts...)
	srv := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           server.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Info().
			Str("addr", srv.Addr).
			Str("env", cfg.App.Environment).
			Msg("starting GRC backend")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
}

// newBus connects to NATS when a URL is configured and the binary was built with the nats tag,
// and otherwise delivers record changes in-process.
func newBus(cfg *config.Config, log *logger.Logger) mesh.Bus {
	if cfg.NATS.URL != "" {
		b, err := mesh.NewNatsBus(cfg.NATS.URL)
		if err == nil {
			log.Info().Str("url", cfg.NATS.URL).Msg("publishing record changes to NATS")
			return b
		}
		log.Warn().Err(err).Msg("NATS unavailable, using in-process bus")
	}
	return mesh.NewLocalBus()
}

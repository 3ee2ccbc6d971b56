package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"eventsphere/config"
	"eventsphere/db"
	"eventsphere/middlewares"
	"eventsphere/routes"
	"eventsphere/utils"
)

const shutdownTimeout = 10 * time.Second

func newServeCommand(opts *globalOptions) *cobra.Command {
	var (
		host string
		port int
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		Long: `Start the HTTP server and accept API requests until SIGINT or SIGTERM.

Examples:
  # configuration from the environment (and .env when present)
  eventsphere serve

  # in-memory store on another port
  STORE_BACKEND=memory JWT_SECRET=dev eventsphere serve --port 8080`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			if host != "" {
				cfg.Server.Host = host
			}
			if port != 0 {
				cfg.Server.Port = port
			}
			return runServer(cmd.Context(), cfg)
		},
	}
	cmd.Flags().StringVar(&host, "host", "", "listen host (default: all interfaces)")
	cmd.Flags().IntVar(&port, "port", 0, "listen port (default: 3000)")
	return cmd
}

func runServer(ctx context.Context, cfg *config.Config) error {
	logger := config.NewLogger(cfg.Logging)
	logger.Info().Str("backend", cfg.Store.Backend).Msg("starting EventSphere")
	gin.SetMode(cfg.Server.GinMode)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := db.Open(ctx, cfg.Store, logger)
	if err != nil {
		return fmt.Errorf("store: %w", err)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := store.Close(closeCtx); err != nil {
			logger.Error().Err(err).Msg("store close error")
		} else {
			logger.Info().Msg("store closed")
		}
	}()

	rdb := connectRedis(ctx, cfg.Redis, logger)
	if rdb != nil {
		defer rdb.Close()
	}

	engine, stopLimiters, err := routes.NewEngine(routes.Options{
		Config:  cfg,
		Store:   store,
		Tokens:  utils.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.JWTExpiry),
		Redis:   rdb,
		Metrics: middlewares.NewMetrics(),
		Logger:  logger,
	})
	if err != nil {
		return err
	}
	defer stopLimiters()

	server := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           engine,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", server.Addr).Msg("listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// connectRedis returns nil when Redis is not configured. An unreachable server is logged
// and kept: the cache and the quota let requests through while it is down.
func connectRedis(ctx context.Context, cfg config.RedisConfig, logger zerolog.Logger) *redis.Client {
	if cfg.Addr == "" {
		logger.Info().Msg("REDIS_ADDR not set; response cache and quota disabled")
		return nil
	}
	rdb := redis.NewClient(&redis.Options{Addr: cfg.Addr, Password: cfg.Password})

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		logger.Warn().Err(err).Str("addr", cfg.Addr).Msg("redis unreachable")
	} else {
		logger.Info().Str("addr", cfg.Addr).Msg("connected to Redis")
	}
	return rdb
}

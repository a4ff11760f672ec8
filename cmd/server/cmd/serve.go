package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/relayworks/server/internal/api"
	"github.com/relayworks/server/internal/auth"
	"github.com/relayworks/server/internal/config"
	"github.com/relayworks/server/internal/domain/channels"
	"github.com/relayworks/server/internal/domain/projects"
	"github.com/relayworks/server/internal/domain/tasks"
	"github.com/relayworks/server/internal/domain/tenants"
	"github.com/relayworks/server/internal/domain/users"
	"github.com/relayworks/server/internal/email"
	"github.com/relayworks/server/internal/jobs"
	"github.com/relayworks/server/internal/metrics"
	"github.com/relayworks/server/internal/realtime"
	"github.com/relayworks/server/internal/storage/postgres"
	"github.com/relayworks/server/internal/storage/rediskv"
	"github.com/relayworks/server/internal/telemetry"
)

var (
	// Server flags (override config/env)
	serverHost string
	serverPort int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the Relayworks HTTP server",
	Long: `Start the Relayworks HTTP server and begin accepting API requests.

The server will:
- Load configuration from environment variables
- Run background workers for notification fan-out and retention
- Accept WebSocket connections for realtime delivery
- Handle graceful shutdown on SIGINT/SIGTERM

Examples:
  # Start with default configuration (from env vars)
  server serve

  # Start on a specific host and port
  server serve --host 127.0.0.1 --port 9090

  # Start with debug logging
  server serve --log-level debug`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer()
	},
}

func init() {
	// Server-specific flags
	serveCmd.Flags().StringVar(&serverHost, "host", "", "server host address (default: 0.0.0.0)")
	serveCmd.Flags().IntVar(&serverPort, "port", 0, "server port (default: 8080)")
}

// deferredUserSource breaks the construction cycle between the token
// authority and the users service. The authority needs a UserSource to
// re-derive claims on rotation, and the users service needs the authority
// to issue pairs at login. The field is set once during wiring, before the
// server accepts any request.
type deferredUserSource struct {
	svc *users.Service
}

func (d *deferredUserSource) GetTokenUser(ctx context.Context, userID string) (auth.TokenUser, error) {
	return d.svc.GetTokenUser(ctx, userID)
}

func runServer() error {
	// Load configuration
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("config error: %w", err)
	}

	// Override config with flags if provided
	if serverHost != "" {
		cfg.Server.Host = serverHost
	}
	if serverPort != 0 {
		cfg.Server.Port = serverPort
	}

	logger := config.NewLogger(cfg.Logging)
	logger.Info().Msg("starting relayworks server")

	metrics.Init(Version, GitCommit, BuildDate)

	shutdownTracing, err := telemetry.InitTracing(context.Background(), cfg.Tracing, Version)
	if err != nil {
		return fmt.Errorf("tracing init: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			logger.Error().Err(err).Msg("tracing shutdown error")
		}
	}()

	// Database connection pool
	poolCtx, poolCancel := context.WithTimeout(context.Background(), 10*time.Second)
	pool, err := pgxpool.New(poolCtx, cfg.Database.URL)
	poolCancel()
	if err != nil {
		return fmt.Errorf("database connection failed: %w", err)
	}
	defer pool.Close()

	// Redis carries refresh tokens and the realtime backplane
	redisCtx, redisCancel := context.WithTimeout(context.Background(), 10*time.Second)
	redisClient, err := rediskv.NewClient(redisCtx, cfg.Redis.URL)
	redisCancel()
	if err != nil {
		return fmt.Errorf("redis connection failed: %w", err)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Error().Err(err).Msg("redis close error")
		}
	}()

	repo, err := postgres.NewRepository(pool)
	if err != nil {
		return fmt.Errorf("repository init: %w", err)
	}

	// Token lifecycle
	refreshStore, err := rediskv.NewRefreshStore(redisClient)
	if err != nil {
		return fmt.Errorf("refresh store init: %w", err)
	}
	jwtManager := auth.NewJWTManager(cfg.Auth.JWTSecret, cfg.Auth.AccessExpiry, "relayworks")
	userSource := &deferredUserSource{}
	authority := auth.NewAuthority(jwtManager, refreshStore, userSource, cfg.Auth.RefreshTTL, logger)

	mailer, err := email.NewService(cfg.Email, logger)
	if err != nil {
		return fmt.Errorf("email service init: %w", err)
	}

	usersService := users.NewService(repo.Users(), repo.Tenants(), authority, mailer, cfg.Server.BaseURL, logger)
	userSource.svc = usersService
	tenantsService := tenants.NewService(repo.Tenants())

	// Realtime layer: one hub per process, fan-out across processes
	// through the Redis backplane.
	hub := realtime.NewHub()
	backplane, err := rediskv.NewBackplane(redisClient, cfg.Realtime.Channel)
	if err != nil {
		return fmt.Errorf("backplane init: %w", err)
	}
	broadcaster := realtime.NewBroadcaster(backplane, hub, logger)

	projectsService := projects.NewService(repo.Projects(), broadcaster, logger)
	tasksService := tasks.NewService(repo.Tasks(), broadcaster, logger)

	// Background jobs
	workers := jobs.NewWorkers(pool, repo.Notifications(), broadcaster, logger)
	riverLogger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	}))
	riverClient, err := jobs.NewClient(pool, workers, riverLogger, jobs.NewPeriodicJobs())
	if err != nil {
		return fmt.Errorf("river client init: %w", err)
	}
	enqueuer := jobs.NewEnqueuer(riverClient)

	channelsService := channels.NewService(repo.Channels(), broadcaster, enqueuer, logger)

	gateway := realtime.NewGateway(
		authority,
		usersService,
		api.RoomAuthorizer{Projects: projectsService, Channels: channelsService},
		hub,
		broadcaster,
		realtime.GatewayConfig{
			HeartbeatWindow: cfg.Realtime.HeartbeatWindow,
			OriginPatterns:  cfg.Realtime.OriginPatterns,
		},
		logger,
	)

	handler := api.NewRouter(cfg, logger, api.Deps{
		Pool:          pool,
		Redis:         redisClient,
		Authority:     authority,
		Users:         usersService,
		Tenants:       tenantsService,
		Projects:      projectsService,
		Channels:      channelsService,
		Tasks:         tasksService,
		Notifications: repo.Notifications(),
		Gateway:       gateway,
		Version:       Version,
	})

	server := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           handler,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := riverClient.Start(rootCtx); err != nil {
		return fmt.Errorf("river workers failed to start: %w", err)
	}
	logger.Info().Msg("river background job workers started")

	g, gctx := errgroup.WithContext(rootCtx)

	g.Go(func() error {
		// Run blocks on the backplane subscription until the context ends.
		return broadcaster.Run(gctx)
	})

	g.Go(func() error {
		logger.Info().Str("addr", server.Addr).Msg("listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info().Msg("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := riverClient.Stop(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("river workers shutdown error")
		} else {
			logger.Info().Msg("river workers stopped")
		}

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("shutdown error")
			return err
		}
		return nil
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info().Msg("server stopped")
	return nil
}

func loadConfig() (config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, err
	}

	// Override logging from flags if provided
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	if logFormat != "" {
		cfg.Logging.Format = logFormat
	}

	return cfg, nil
}

package main

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

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/ericfisherdev/sqlgate/internal/adapter/driven/configsource"
	"github.com/ericfisherdev/sqlgate/internal/adapter/driven/ratelimit"
	sqliteadapter "github.com/ericfisherdev/sqlgate/internal/adapter/driven/sqlite"
	"github.com/ericfisherdev/sqlgate/internal/adapter/driven/sqlstore"
	"github.com/ericfisherdev/sqlgate/internal/adapter/driven/tokenfile"
	httphandler "github.com/ericfisherdev/sqlgate/internal/adapter/driving/http"
	"github.com/ericfisherdev/sqlgate/internal/application"
	"github.com/ericfisherdev/sqlgate/internal/config"
	"github.com/ericfisherdev/sqlgate/internal/domain/model"
	"github.com/ericfisherdev/sqlgate/internal/domain/port/driven"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP gateway",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return serve(cmd.Context())
	},
}

func serve(parent context.Context) error {
	// 1. Load configuration (fail fast on bad values).
	cfg, logger, logCloser, err := setup()
	if err != nil {
		return err
	}
	defer func() { _ = logCloser.Close() }()

	logger.Info("config loaded",
		"listen_addr", cfg.ListenAddr,
		"db_path", cfg.DBPath,
		"config_file", cfg.ConfigFile,
		"strict_allow_list", cfg.StrictAllowList,
	)

	// 2. Setup signal-based context (SIGINT, SIGTERM).
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Open the credential database and migrate it.
	db, err := openControlDB(ctx, cfg.DBPath, logger)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			logger.Error("error closing database", "error", closeErr)
		}
	}()

	// 4. Load environment and endpoint routing.
	gw, err := config.LoadGateway(cfg.ConfigFile)
	if err != nil {
		return err
	}
	logger.Info("gateway config loaded",
		"environments", len(gw.Environments),
		"endpoints", len(gw.Endpoints),
	)
	source := configsource.New(gw)

	pools := sqlstore.NewPools()
	defer func() {
		if closeErr := pools.Close(); closeErr != nil {
			logger.Error("error closing datastores", "error", closeErr)
		}
	}()

	// 5. Wire application services.
	credentials := sqliteadapter.NewCredentialRepo(db)
	tokens := application.NewTokenService(credentials, tokenfile.New(cfg.TokenDir), cfg.KDFIterations, logger)
	environments := application.NewEnvironmentResolver(source, sqlstore.SupportedDriver)
	endpoints := application.NewEndpointResolver(source)
	ingest := application.NewIngestService(
		environments,
		endpoints,
		pools,
		application.NewProvisioner(logger),
		cfg.StrictAllowList,
		logger,
	)
	reads := application.NewReadService(environments, endpoints, pools)
	health := application.NewHealthService(credentials, pools)

	// 6. Rate limiters, with background sweeping of idle keys.
	ipLimiter, tokenLimiter, closeLimiters, err := newLimiters(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeLimiters()

	// 7. HTTP server.
	handler := httphandler.NewHandler(
		tokens,
		ingest,
		reads,
		health,
		application.NewAdmission(ipLimiter, tokenLimiter),
		cfg.MaxBodyBytes,
		logger,
	)
	srv := &http.Server{
		Addr: cfg.ListenAddr,
		Handler: httphandler.NewRouter(handler, httphandler.Options{
			MaxBodyBytes:   cfg.MaxBodyBytes,
			RequestTimeout: cfg.RequestTimeout,
			TrustProxy:     cfg.TrustProxy,
		}),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      cfg.RequestTimeout + 10*time.Second,
		IdleTimeout:       120 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("http server starting", "addr", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	// 8. Wait for shutdown signal or a listener failure.
	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}

	logger.Info("shutdown complete")
	return nil
}

func openControlDB(ctx context.Context, path string, logger *slog.Logger) (*sqliteadapter.DB, error) {
	db, err := sqliteadapter.NewDB(ctx, path)
	if err != nil {
		return nil, err
	}
	logger.Debug("database opened", "path", path)

	if err := sqliteadapter.RunMigrations(db.Writer); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// newLimiters builds the IP and token limiters. With SQLGATE_REDIS_URL set
// they share windows through redis; otherwise they are in-process. The
// in-process windows are swept until ctx ends.
func newLimiters(ctx context.Context, cfg *config.Config, logger *slog.Logger) (ip, token driven.RateLimiter, closeFn func(), err error) {
	sweep := func(m *ratelimit.Memory) {
		go m.Run(ctx, cfg.RateLimitSweep)
	}

	if cfg.RedisURL == "" {
		ipMem := ratelimit.NewMemory(cfg.IPRateLimit)
		tokenMem := ratelimit.NewMemory(cfg.TokenRateLimit)
		sweep(ipMem)
		sweep(tokenMem)
		logger.Info("rate limiting in process",
			"ip", formatLimit(cfg.IPRateLimit), "token", formatLimit(cfg.TokenRateLimit))
		return ipMem, tokenMem, func() {}, nil
	}

	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("SQLGATE_REDIS_URL: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("redis not reachable, limiter will fall back to local windows", "error", err)
	}

	ipRedis := ratelimit.NewRedis(client, "sqlgate:rl:ip:", cfg.IPRateLimit, logger)
	tokenRedis := ratelimit.NewRedis(client, "sqlgate:rl:token:", cfg.TokenRateLimit, logger)
	sweep(ipRedis.Fallback())
	sweep(tokenRedis.Fallback())
	logger.Info("rate limiting via redis", "addr", opts.Addr,
		"ip", formatLimit(cfg.IPRateLimit), "token", formatLimit(cfg.TokenRateLimit))

	return ipRedis, tokenRedis, func() {
		if err := client.Close(); err != nil {
			logger.Error("error closing redis client", "error", err)
		}
	}, nil
}

func formatLimit(rl model.RateLimit) string {
	return fmt.Sprintf("%d/%s", rl.Limit, rl.Window)
}

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

	"github.com/gin-gonic/gin"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"propmarket/audit"
	"propmarket/config"
	"propmarket/db"
	"propmarket/identity"
	"propmarket/migrations"
	"propmarket/profile"
	"propmarket/recovery"
	"propmarket/telemetry"
)

const serviceName = "propmarket-api"

var version = "dev"

func main() {
	envFile := pflag.String("env-file", "", "dotenv file loaded before reading the environment")
	migrate := pflag.Bool("migrate", false, "apply embedded migrations before serving")
	pflag.Parse()

	if err := run(*envFile, *migrate); err != nil {
		slog.Error("api exited", slog.Any("err", err))
		os.Exit(1)
	}
}

func run(envFile string, migrate bool) error {
	cfg, err := config.Load(envFile)
	if err != nil {
		return err
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	providers, err := telemetry.Init(ctx, cfg.TelemetryConfig(serviceName, version))
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := providers.Shutdown(sctx); err != nil {
			logger.Warn("telemetry shutdown", slog.Any("err", err))
		}
	}()

	pool, err := db.Connect(ctx, cfg.DatabaseURL, cfg.DBConnectTimeout)
	if err != nil {
		return fmt.Errorf("bootstrap database pool: %w", err)
	}
	defer pool.Close()

	if migrate {
		if err := migrations.Apply(ctx, pool); err != nil {
			return err
		}
		logger.Info("migrations applied")
	}

	hasher, err := audit.NewHasherFromHex(cfg.AuditHashKey)
	if err != nil {
		return err
	}
	if cfg.AuditHashKey == "" {
		logger.Warn("AUDIT_HASH_KEY not set; audit email hashes are unkeyed")
	}

	directory := identity.NewDirectory(identity.NewRepository(pool), cfg.JWTSecret)
	profiles := profile.NewRepository(pool)
	recoveryService := recovery.NewService(recovery.Dependencies{
		Directory: directory,
		RoleLinks: profiles,
		Profiles:  profiles,
		Recorder:  audit.Multi{audit.NewPGRecorder(pool), audit.NewLogRecorder(logger)},
		Hasher:    hasher,
		Logger:    logger,
	}).
		WithCallTimeout(cfg.Recovery.CallTimeout).
		WithMinResponse(cfg.Recovery.MinResponse).
		WithDetailedResetErrors(cfg.Recovery.DetailedResetErrors)

	gin.SetMode(gin.ReleaseMode)
	server := &Server{
		recovery:  recoveryService,
		directory: directory,
		health:    pool,
		logger:    logger,
	}
	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           server.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("http server listening", slog.String("addr", cfg.HTTPAddr), slog.String("version", version))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		sctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return httpServer.Shutdown(sctx)
	})
	return g.Wait()
}

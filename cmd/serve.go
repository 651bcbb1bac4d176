package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"nightfall_dashboard/internal/config"
	"nightfall_dashboard/internal/handlers"
	"nightfall_dashboard/internal/logger"
	"nightfall_dashboard/internal/metrics"
	"nightfall_dashboard/internal/repository"
	"nightfall_dashboard/internal/repository/db"
	"nightfall_dashboard/internal/server"
	"nightfall_dashboard/internal/service"
)

func newServeCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the link service and the dashboard API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), opts)
		},
	}
}

func runServe(ctx context.Context, opts *rootOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}
	log := logger.Get(logger.InfoLevel)

	loader := config.NewLoader(opts.configPath, log)
	cfg, err := loader.Load()
	if err != nil {
		log.Warnw("config_load_failed", "err", err, "fallback", "defaults")
	}
	log.SetLevel(cfg.LogLevel)
	if cfg.LogLevel != logger.DebugLevel {
		gin.SetMode(gin.ReleaseMode)
	}

	if cfg.Auth.SigningKey == "" {
		key, err := randomKey()
		if err != nil {
			return fmt.Errorf("generate signing key: %w", err)
		}
		cfg.Auth.SigningKey = key
		log.Warnw("auth_signing_key_generated", "note", "tokens are invalidated on restart")
	}

	sqlDB, err := db.InitDB(cfg.DB.Path)
	if err != nil {
		return fmt.Errorf("init sqlite: %w", err)
	}
	defer func() {
		if cerr := sqlDB.Close(); cerr != nil {
			log.Errorw("sqlite_close_failed", "err", cerr)
		}
	}()

	collector := metrics.New()
	repos := repository.NewRepository(sqlDB)

	dash, err := service.NewDashboard(service.DashboardOptions{
		Config:  cfg,
		Logger:  log,
		Metrics: collector,
		Events:  repos.EventRepo,
	})
	if err != nil {
		return err
	}
	history := service.NewHistoryService(repos.TelemetryRepo, dash, cfg.Settings.MaxTelemetryHistory, nil, log, collector)
	services := service.NewService(repos, dash, history, cfg.Auth)

	srv := server.New(cfg.Port, handlers.NewHandler(services, collector.Handler(), log).InitRoutes())
	if err := srv.Listen(); err != nil {
		return fmt.Errorf("listen on %q: %w", cfg.Port, err)
	}

	loader.Watch(func(next config.Config) {
		log.SetLevel(next.LogLevel)
		dash.ApplySettings(next.Robot, next.Settings)
		history.SetLimit(next.Settings.MaxTelemetryHistory)
	})

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return dash.Run(gctx) })
	g.Go(func() error {
		history.Run(gctx, cfg.Settings.HistorySample)
		return nil
	})
	g.Go(srv.Run)
	g.Go(func() error {
		<-gctx.Done()
		log.Infow("shutting_down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), server.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	log.Infow("server_started",
		"addr", srv.Addr(),
		"robot", cfg.Robot.URL,
		"protocol", cfg.Robot.Protocol,
		"camera_fallback", cfg.Camera.FallbackIP,
	)
	return g.Wait()
}

func randomKey() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

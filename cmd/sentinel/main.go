package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"sentinel-antinuke/internal/analytics"
	"sentinel-antinuke/internal/bot"
	"sentinel-antinuke/internal/config"
	"sentinel-antinuke/internal/guard"
	"sentinel-antinuke/internal/health"
	"sentinel-antinuke/internal/modules/antinuke"
	"sentinel-antinuke/internal/modules/antispam"
	"sentinel-antinuke/internal/modules/audit"
	"sentinel-antinuke/internal/playbook"
	"sentinel-antinuke/internal/storage"

	"github.com/thejerf/suture/v4"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger, err := config.BuildLogger(cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := storage.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("storage init failed", zap.Error(err))
	}
	defer store.Close()
	if err := store.Migrate(ctx); err != nil {
		logger.Fatal("migrations failed", zap.Error(err))
	}

	botSvc, err := bot.New(cfg, logger)
	if err != nil {
		logger.Fatal("bot init failed", zap.Error(err))
	}
	platform := botSvc.Platform()

	nukeCfg := cfg.Antinuke
	settings := guard.NewSettingsStore(store, nukeCfg.DefaultThreshold, nukeCfg.DefaultWindowSeconds)
	auditLogger := audit.NewLogger(store, logger)
	playbookEngine := playbook.New(playbook.Config{
		MuteDuration:      time.Duration(nukeCfg.MuteMinutes) * time.Minute,
		FallbackRoleName:  nukeCfg.FallbackRoleName,
		FallbackRoleColor: nukeCfg.FallbackRoleColor,
	}, platform, store, settings, logger)

	guardSvc := guard.New(guard.Deps{
		Settings: settings,
		Antinuke: antinuke.New(settings, auditLogger),
		Antispam: antispam.New(antispam.Config{
			Threshold: nukeCfg.MessageSpamThreshold,
			Window:    time.Duration(nukeCfg.MessageSpamWindowSeconds) * time.Second,
		}, settings, auditLogger),
		Playbook:  playbookEngine,
		Platform:  platform,
		Authority: platform,
		Analytics: analytics.New(store),
		Logger:    logger,
	})
	botSvc.SetGuard(guardSvc)

	supervisor := suture.New("sentinel", suture.Spec{
		EventHook: func(event suture.Event) {
			logger.Warn("supervisor event", zap.String("event", event.String()))
		},
		Timeout: 10 * time.Second,
	})
	supervisor.Add(botSvc)
	supervisor.Add(guard.NewSweepService(guardSvc,
		time.Duration(nukeCfg.SweepIntervalSeconds)*time.Second,
		time.Duration(nukeCfg.StaleAfterSeconds)*time.Second,
	))
	supervisor.Add(guard.NewRetentionService(store, time.Duration(nukeCfg.ActionRetentionHours)*time.Hour, logger))
	if cfg.Health.Enabled {
		supervisor.Add(health.NewService(cfg.Health.Addr, store, logger))
	}

	if err := supervisor.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("supervisor stopped", zap.Error(err))
		os.Exit(1)
	}
	logger.Info("shutdown complete")
}

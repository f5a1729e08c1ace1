package playbook

import (
	"context"
	"time"

	"sentinel-antinuke/internal/storage"

	"go.uber.org/zap"
)

type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

type Ledger interface {
	IncrementOffense(ctx context.Context, guildID, userID string) (int, error)
}

type SettingsSource interface {
	Settings(ctx context.Context, guildID string) (storage.AntinukeSettings, error)
}

type Config struct {
	MuteDuration      time.Duration
	FallbackRoleName  string
	FallbackRoleColor int
}

// Engine runs the remediation playbook: tiered escalation for ordinary
// offenders and the owner-compromise failover.
type Engine struct {
	cfg      Config
	platform Platform
	ledger   Ledger
	settings SettingsSource
	logger   *zap.Logger
	clock    Clock
}

func New(cfg Config, platform Platform, ledger Ledger, settings SettingsSource, logger *zap.Logger) *Engine {
	if cfg.MuteDuration <= 0 {
		cfg.MuteDuration = 30 * time.Minute
	}
	if cfg.FallbackRoleName == "" {
		cfg.FallbackRoleName = "Sentinel Fallback Admin"
	}
	if cfg.FallbackRoleColor <= 0 {
		cfg.FallbackRoleColor = 0xE74C3C
	}
	return &Engine{
		cfg:      cfg,
		platform: platform,
		ledger:   ledger,
		settings: settings,
		logger:   logger,
		clock:    realClock{},
	}
}

func (e *Engine) WithClock(clock Clock) {
	e.clock = clock
}

func (e *Engine) guild(ctx context.Context, guildID string) Guild {
	guild, err := e.platform.Guild(ctx, guildID)
	if err != nil {
		e.logger.Warn("guild lookup failed", zap.String("guild_id", guildID), zap.Error(err))
		return Guild{ID: guildID, Name: guildID}
	}
	if guild.Name == "" {
		guild.Name = guildID
	}
	return guild
}

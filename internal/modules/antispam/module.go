package antispam

import (
	"context"
	"time"

	"sentinel-antinuke/internal/modules/audit"
	"sentinel-antinuke/internal/storage"
	"sentinel-antinuke/internal/utils"
)

const (
	DefaultThreshold = 20
	DefaultWindow    = 10 * time.Second
)

type SettingsSource interface {
	Settings(ctx context.Context, guildID string) (storage.AntinukeSettings, error)
}

type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

type Config struct {
	Threshold int
	Window    time.Duration
}

type Result struct {
	Exceeded  bool
	Count     int
	ChannelID string
}

// Module counts messages per (guild, author) with fixed limits. It shares
// only the guild enabled flag with action tracking.
type Module struct {
	windows  *utils.WindowStore
	config   Config
	settings SettingsSource
	audit    *audit.Logger
	clock    Clock
}

func New(cfg Config, settings SettingsSource, auditLogger *audit.Logger) *Module {
	if cfg.Threshold <= 0 {
		cfg.Threshold = DefaultThreshold
	}
	if cfg.Window <= 0 {
		cfg.Window = DefaultWindow
	}
	return &Module{
		windows:  utils.NewWindowStore(cfg.Window),
		config:   cfg,
		settings: settings,
		audit:    auditLogger,
		clock:    realClock{},
	}
}

func (m *Module) WithClock(clock Clock) {
	m.clock = clock
}

// CheckMessageSpam records one message. On breach a message_spam audit row
// is written; responding is left to the caller.
func (m *Module) CheckMessageSpam(ctx context.Context, guildID, authorID, channelID string) (Result, error) {
	result := Result{ChannelID: channelID}
	settings, err := m.settings.Settings(ctx, guildID)
	if err != nil {
		return result, err
	}
	if !settings.Enabled {
		return result, nil
	}

	result.Count = m.windows.Add(guildID, authorID, m.clock.Now())
	if result.Count < m.config.Threshold {
		return result, nil
	}

	result.Exceeded = true
	if err := m.audit.Log(ctx, audit.LevelWarn, guildID, authorID, audit.ActionMessageSpam, channelID); err != nil {
		return result, err
	}
	return result, nil
}

func (m *Module) Threshold() int {
	return m.config.Threshold
}

func (m *Module) Sweep(now time.Time, maxAge time.Duration) int {
	return m.windows.Sweep(now, maxAge)
}

func (m *Module) Clear(guildID string) {
	m.windows.Clear(guildID)
}

func (m *Module) Tracked() int {
	return m.windows.Len()
}

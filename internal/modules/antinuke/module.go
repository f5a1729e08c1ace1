package antinuke

import (
	"context"
	"time"

	"sentinel-antinuke/internal/modules/audit"
	"sentinel-antinuke/internal/storage"
	"sentinel-antinuke/internal/utils"
)

const defaultWindow = 5 * time.Second

type SettingsSource interface {
	Settings(ctx context.Context, guildID string) (storage.AntinukeSettings, error)
}

type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

type Result struct {
	Exceeded bool
	Count    int
}

// Module is the action rate tracker: one sliding window per (guild, actor)
// sized by the guild's configured time window.
type Module struct {
	windows  *utils.WindowStore
	settings SettingsSource
	audit    *audit.Logger
	clock    Clock
}

func New(settings SettingsSource, auditLogger *audit.Logger) *Module {
	return &Module{
		windows:  utils.NewWindowStore(defaultWindow),
		settings: settings,
		audit:    auditLogger,
		clock:    realClock{},
	}
}

func (m *Module) WithClock(clock Clock) {
	m.clock = clock
}

// CheckAndLogAction records one destructive action and reports whether the
// actor has reached the guild threshold. Disabled guilds record nothing.
// The audit row is written before the window is touched; if it fails the
// error is returned and the window is left unchanged.
func (m *Module) CheckAndLogAction(ctx context.Context, guildID, actorID, actionType, targetID string) (Result, error) {
	settings, err := m.settings.Settings(ctx, guildID)
	if err != nil {
		return Result{}, err
	}
	if !settings.Enabled {
		return Result{}, nil
	}

	if err := m.audit.Log(ctx, audit.LevelInfo, guildID, actorID, actionType, targetID); err != nil {
		return Result{}, err
	}

	window := settings.Window()
	if window <= 0 {
		window = defaultWindow
	}
	count := m.windows.AddWithin(guildID, actorID, m.clock.Now(), window)
	return Result{Exceeded: count >= settings.Threshold, Count: count}, nil
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

package guard

import (
	"context"
	"fmt"

	"sentinel-antinuke/internal/storage"
)

type SettingsBackend interface {
	GetAntinukeSettings(ctx context.Context, guildID string, defaults storage.AntinukeSettings) (storage.AntinukeSettings, error)
	SetAntinukeSettings(ctx context.Context, settings storage.AntinukeSettings) error
	AddToWhitelist(ctx context.Context, guildID string, kind storage.WhitelistKind, id string, defaults storage.AntinukeSettings) error
	RemoveFromWhitelist(ctx context.Context, guildID string, kind storage.WhitelistKind, id string) error
}

// SettingsStore reads guild settings with process defaults applied to
// guilds that were never configured. It satisfies the settings source of
// both trackers and the playbook.
type SettingsStore struct {
	backend  SettingsBackend
	defaults storage.AntinukeSettings
}

func NewSettingsStore(backend SettingsBackend, defaultThreshold, defaultWindowSeconds int) *SettingsStore {
	return &SettingsStore{
		backend: backend,
		defaults: storage.AntinukeSettings{
			Enabled:    false,
			Threshold:  defaultThreshold,
			TimeWindow: defaultWindowSeconds,
		},
	}
}

func (s *SettingsStore) Settings(ctx context.Context, guildID string) (storage.AntinukeSettings, error) {
	settings, err := s.backend.GetAntinukeSettings(ctx, guildID, s.defaults)
	if err != nil {
		return storage.AntinukeSettings{}, fmt.Errorf("load antinuke settings: %w", err)
	}
	return settings, nil
}

func (s *SettingsStore) save(ctx context.Context, settings storage.AntinukeSettings) error {
	if err := s.backend.SetAntinukeSettings(ctx, settings); err != nil {
		return fmt.Errorf("save antinuke settings: %w", err)
	}
	return nil
}

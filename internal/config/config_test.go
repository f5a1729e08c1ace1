package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadRequiresToken(t *testing.T) {
	t.Setenv("CONFIG_PATH", filepath.Join(t.TempDir(), "missing.yaml"))
	t.Setenv("DISCORD_TOKEN", "")
	if _, err := Load(); err == nil {
		t.Fatalf("expected error without token")
	}
}

func TestLoadFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := []byte("discord_token: file-token\nantinuke:\n  default_threshold: 7\n  mute_minutes: 12\n")
	if err := os.WriteFile(path, content, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("CONFIG_PATH", path)
	t.Setenv("DISCORD_TOKEN", "")
	t.Setenv("ANTINUKE_MUTE_MINUTES", "45")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.DiscordToken != "file-token" {
		t.Fatalf("expected file token, got %q", cfg.DiscordToken)
	}
	if cfg.Antinuke.DefaultThreshold != 7 {
		t.Fatalf("expected threshold 7, got %d", cfg.Antinuke.DefaultThreshold)
	}
	if cfg.Antinuke.MuteMinutes != 45 {
		t.Fatalf("expected env override 45, got %d", cfg.Antinuke.MuteMinutes)
	}
	if cfg.Antinuke.MessageSpamThreshold != 20 {
		t.Fatalf("expected default spam threshold, got %d", cfg.Antinuke.MessageSpamThreshold)
	}
}

func TestNormalizeAntinukeRanges(t *testing.T) {
	cfg := normalizeAntinuke(AntinukeConfig{DefaultThreshold: 500, DefaultWindowSeconds: 0})
	if cfg.DefaultThreshold != 15 || cfg.DefaultWindowSeconds != 5 {
		t.Fatalf("expected defaults, got %d/%d", cfg.DefaultThreshold, cfg.DefaultWindowSeconds)
	}
	if cfg.StaleAfterSeconds != 60 || cfg.SweepIntervalSeconds != 300 {
		t.Fatalf("unexpected sweep defaults: %+v", cfg)
	}
}

func TestNormalizeAntinukeClampsStaleAfter(t *testing.T) {
	cfg := normalizeAntinuke(AntinukeConfig{StaleAfterSeconds: 5})
	if cfg.StaleAfterSeconds != 60 {
		t.Fatalf("expected stale bound raised to the largest guild window, got %d", cfg.StaleAfterSeconds)
	}

	cfg = normalizeAntinuke(AntinukeConfig{StaleAfterSeconds: 60, MessageSpamWindowSeconds: 90})
	if cfg.StaleAfterSeconds != 90 {
		t.Fatalf("expected stale bound raised to the spam window, got %d", cfg.StaleAfterSeconds)
	}

	cfg = normalizeAntinuke(AntinukeConfig{StaleAfterSeconds: 300})
	if cfg.StaleAfterSeconds != 300 {
		t.Fatalf("expected larger bound kept, got %d", cfg.StaleAfterSeconds)
	}
}

func TestLoadClampsStaleAfterFromEnv(t *testing.T) {
	t.Setenv("CONFIG_PATH", filepath.Join(t.TempDir(), "missing.yaml"))
	t.Setenv("DISCORD_TOKEN", "token")
	t.Setenv("ANTINUKE_STALE_AFTER_SECONDS", "5")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Antinuke.StaleAfterSeconds != 60 {
		t.Fatalf("expected 60, got %d", cfg.Antinuke.StaleAfterSeconds)
	}
}

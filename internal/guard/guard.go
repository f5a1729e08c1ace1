// Package guard wires the trackers, exemption checks and the remediation
// playbook into the calls platform event handlers make.
package guard

import (
	"context"
	"time"

	"sentinel-antinuke/internal/analytics"
	"sentinel-antinuke/internal/metrics"
	"sentinel-antinuke/internal/modules/antinuke"
	"sentinel-antinuke/internal/modules/antispam"
	"sentinel-antinuke/internal/playbook"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

type Guard struct {
	settings  *SettingsStore
	nuke      *antinuke.Module
	spam      *antispam.Module
	playbook  *playbook.Engine
	platform  playbook.Platform
	authority Authority
	analytics *analytics.Service
	logger    *zap.Logger
	clock     Clock
	newID     func() string
}

type Deps struct {
	Settings  *SettingsStore
	Antinuke  *antinuke.Module
	Antispam  *antispam.Module
	Playbook  *playbook.Engine
	Platform  playbook.Platform
	Authority Authority
	Analytics *analytics.Service
	Logger    *zap.Logger
}

func New(deps Deps) *Guard {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Guard{
		settings:  deps.Settings,
		nuke:      deps.Antinuke,
		spam:      deps.Antispam,
		playbook:  deps.Playbook,
		platform:  deps.Platform,
		authority: deps.Authority,
		analytics: deps.Analytics,
		logger:    logger,
		clock:     realClock{},
		newID:     uuid.NewString,
	}
}

func (g *Guard) WithClock(clock Clock) {
	g.clock = clock
}

// Enabled lets handlers skip platform lookups for unprotected guilds.
func (g *Guard) Enabled(ctx context.Context, guildID string) (bool, error) {
	settings, err := g.settings.Settings(ctx, guildID)
	if err != nil {
		return false, err
	}
	return settings.Enabled, nil
}

func (g *Guard) CheckAndLogAction(ctx context.Context, guildID, actorID, actionType, targetID string) (antinuke.Result, error) {
	result, err := g.nuke.CheckAndLogAction(ctx, guildID, actorID, actionType, targetID)
	if err != nil {
		return result, err
	}
	if result.Count > 0 {
		metrics.ActionsRecorded.WithLabelValues(actionType).Inc()
	}
	if result.Exceeded {
		metrics.Breaches.WithLabelValues("action").Inc()
	}
	return result, nil
}

func (g *Guard) IsWhitelisted(ctx context.Context, guildID, actorID string, roleIDs []string) (bool, error) {
	return g.nuke.IsWhitelisted(ctx, guildID, actorID, roleIDs)
}

func (g *Guard) HandleThreat(ctx context.Context, guildID, offenderID, actionType string) (playbook.ThreatResult, error) {
	return g.playbook.HandleThreat(ctx, guildID, offenderID, actionType)
}

func (g *Guard) HandleOwnerThreat(ctx context.Context, guildID, channelID string) (playbook.OwnerThreatResult, error) {
	return g.playbook.HandleOwnerThreat(ctx, guildID, channelID)
}

func (g *Guard) CheckMessageSpam(ctx context.Context, guildID, authorID, channelID string) (antispam.Result, error) {
	result, err := g.spam.CheckMessageSpam(ctx, guildID, authorID, channelID)
	if err != nil {
		return result, err
	}
	if result.Exceeded {
		metrics.Breaches.WithLabelValues("message_spam").Inc()
	}
	return result, nil
}

// ClearActionTracker drops the in-memory windows of both trackers for one
// guild, or for every guild when guildID is empty.
func (g *Guard) ClearActionTracker(guildID string) {
	g.nuke.Clear(guildID)
	g.spam.Clear(guildID)
	g.refreshTracked()
}

func (g *Guard) refreshTracked() {
	metrics.TrackedKeys.WithLabelValues("action").Set(float64(g.nuke.Tracked()))
	metrics.TrackedKeys.WithLabelValues("message_spam").Set(float64(g.spam.Tracked()))
}

func (g *Guard) ownerOf(ctx context.Context, guildID string) (string, error) {
	guild, err := g.platform.Guild(ctx, guildID)
	if err != nil {
		return "", err
	}
	return guild.OwnerID, nil
}

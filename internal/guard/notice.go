package guard

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"sentinel-antinuke/internal/modules/antinuke"
	"sentinel-antinuke/internal/playbook"

	"go.uber.org/zap"
)

const (
	noticeColorBreach = 0xE67E22
	noticeColorOwner  = 0xE74C3C
	recentActivity    = 24 * time.Hour
	topExecutors      = 5
)

// notifyBreach posts a summary to the guild's log channel if one is set.
// Failures are logged and dropped.
func (g *Guard) notifyBreach(ctx context.Context, action Action, result antinuke.Result, outcome Outcome) {
	settings, err := g.settings.Settings(ctx, action.GuildID)
	if err != nil {
		g.logger.Warn("log channel notice skipped", zap.String("guild_id", action.GuildID), zap.Error(err))
		return
	}
	if settings.LogChannelID == "" {
		return
	}
	notice := g.breachNotice(ctx, action, result, outcome)
	if err := g.platform.SendChannelNotice(ctx, settings.LogChannelID, notice); err != nil {
		g.logger.Warn("log channel notice failed",
			zap.String("guild_id", action.GuildID),
			zap.String("channel_id", settings.LogChannelID),
			zap.String("incident_id", outcome.IncidentID),
			zap.Error(err),
		)
	}
}

func (g *Guard) breachNotice(ctx context.Context, action Action, result antinuke.Result, outcome Outcome) playbook.Notice {
	notice := playbook.Notice{
		Title:       "Anti-Nuke: Breach Detected",
		Description: fmt.Sprintf("<@%s> reached the limit with **%d** `%s` actions.", action.ActorID, result.Count, action.ActionType),
		Color:       noticeColorBreach,
		Timestamp:   g.clock.Now(),
		Fields: []playbook.NoticeField{
			{Name: "Incident", Value: outcome.IncidentID, Inline: true},
			{Name: "Actor", Value: action.ActorID, Inline: true},
		},
	}
	switch {
	case outcome.Failover != nil:
		notice.Title = "Anti-Nuke: Owner Compromise Suspected"
		notice.Color = noticeColorOwner
		notice.Fields = append(notice.Fields, playbook.NoticeField{Name: "Response", Value: failoverSummary(*outcome.Failover)})
	case outcome.Threat != nil:
		notice.Fields = append(notice.Fields, playbook.NoticeField{Name: "Response", Value: threatSummary(*outcome.Threat)})
	default:
		notice.Fields = append(notice.Fields, playbook.NoticeField{Name: "Response", Value: "Reported only"})
	}
	if activity := g.activitySummary(ctx, action.GuildID); activity != "" {
		notice.Fields = append(notice.Fields, playbook.NoticeField{Name: "Recent activity (24h)", Value: activity})
	}
	return notice
}

func threatSummary(result playbook.ThreatResult) string {
	status := "applied"
	if !result.Success {
		status = "failed"
		if result.Err != nil {
			status = "failed: " + result.Err.Error()
		}
	}
	return fmt.Sprintf("Offense #%d, %s %s", result.OffenseCount, result.Action, status)
}

func failoverSummary(result playbook.OwnerThreatResult) string {
	lines := make([]string, 0, len(result.Steps)+1)
	for _, step := range result.Steps {
		lines = append(lines, fmt.Sprintf("%s: %s", step.Step, step.Outcome))
	}
	if result.Reason != "" {
		lines = append(lines, result.Reason)
	}
	if len(lines) == 0 {
		return "none"
	}
	return strings.Join(lines, "\n")
}

func (g *Guard) activitySummary(ctx context.Context, guildID string) string {
	if g.analytics == nil {
		return ""
	}
	report, err := g.analytics.Report(ctx, guildID, "", g.clock.Now().Add(-recentActivity))
	if err != nil {
		g.logger.Warn("activity summary failed", zap.String("guild_id", guildID), zap.Error(err))
		return ""
	}
	var lines []string
	for i, executor := range report.Executors {
		if i == topExecutors {
			break
		}
		actions := make([]string, 0, len(executor.ByAction))
		for name, count := range executor.ByAction {
			actions = append(actions, fmt.Sprintf("%s %d", name, count))
		}
		sort.Strings(actions)
		lines = append(lines, fmt.Sprintf("<@%s>: %d (%s)", executor.ExecutorID, executor.Total, strings.Join(actions, ", ")))
	}
	return strings.Join(lines, "\n")
}

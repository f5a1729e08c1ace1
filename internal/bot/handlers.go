package bot

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"sentinel-antinuke/internal/guard"
	"sentinel-antinuke/internal/modules/audit"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

func (b *Bot) onChannelDelete(session *discordgo.Session, event *discordgo.ChannelDelete) {
	if event.Channel == nil || event.Channel.GuildID == "" {
		return
	}
	b.handleAuditedAction(event.Channel.GuildID, discordgo.AuditLogActionChannelDelete, audit.ActionChannelDelete, event.Channel.ID, actorMaxAge)
}

func (b *Bot) onRoleDelete(session *discordgo.Session, event *discordgo.GuildRoleDelete) {
	if event.GuildID == "" || event.RoleID == "" {
		return
	}
	b.handleAuditedAction(event.GuildID, discordgo.AuditLogActionRoleDelete, audit.ActionRoleDelete, event.RoleID, actorMaxAge)
}

func (b *Bot) onGuildBanAdd(session *discordgo.Session, event *discordgo.GuildBanAdd) {
	if event.GuildID == "" || event.User == nil {
		return
	}
	b.handleAuditedAction(event.GuildID, discordgo.AuditLogActionMemberBanAdd, audit.ActionBan, event.User.ID, actorMaxAge)
}

// onGuildMemberRemove only counts removals backed by a recent kick entry;
// leaves and bans also raise this event.
func (b *Bot) onGuildMemberRemove(session *discordgo.Session, event *discordgo.GuildMemberRemove) {
	if event.Member == nil || event.Member.User == nil || event.GuildID == "" {
		return
	}
	b.handleAuditedAction(event.GuildID, discordgo.AuditLogActionMemberKick, audit.ActionKick, event.Member.User.ID, kickMaxAge)
}

func (b *Bot) onMessageCreate(session *discordgo.Session, msg *discordgo.MessageCreate) {
	if msg.Author == nil || msg.Author.Bot || msg.GuildID == "" {
		return
	}
	defer b.recoverHandler("message_create", msg.GuildID)

	ctx := context.Background()
	if _, err := b.guard.ProcessMessage(ctx, msg.GuildID, msg.Author.ID, msg.ChannelID); err != nil {
		b.logger.Error("message spam check failed",
			zap.String("guild_id", msg.GuildID),
			zap.String("user_id", msg.Author.ID),
			zap.Error(err),
		)
	}
}

func (b *Bot) handleAuditedAction(guildID string, auditType discordgo.AuditLogAction, actionType, targetID string, maxAge time.Duration) {
	defer b.recoverHandler(actionType, guildID)
	ctx := context.Background()

	enabled, err := b.guard.Enabled(ctx, guildID)
	if err != nil {
		b.logger.Error("antinuke settings read failed", zap.String("guild_id", guildID), zap.Error(err))
		return
	}
	if !enabled {
		return
	}

	actorID := b.resolveAuditActor(guildID, auditType, targetID, maxAge)
	if actorID == "" || actorID == b.selfID() {
		return
	}

	var roleIDs []string
	if member, err := b.platform.Member(ctx, guildID, actorID); err == nil {
		roleIDs = member.RoleIDs
	}

	outcome, err := b.guard.ProcessAction(ctx, guard.Action{
		GuildID:    guildID,
		ActorID:    actorID,
		ActionType: actionType,
		TargetID:   targetID,
		RoleIDs:    roleIDs,
	})
	if err != nil {
		b.logger.Error("antinuke check failed",
			zap.String("guild_id", guildID),
			zap.String("user_id", actorID),
			zap.String("action", actionType),
			zap.Error(err),
		)
		return
	}
	if outcome.Exceeded {
		b.logger.Debug("antinuke breach handled",
			zap.String("incident_id", outcome.IncidentID),
			zap.Bool("owner", outcome.Owner),
			zap.Bool("exempt", outcome.Exempt),
		)
	}
}

func (b *Bot) resolveAuditActor(guildID string, actionType discordgo.AuditLogAction, targetID string, maxAge time.Duration) string {
	logs, err := b.session.GuildAuditLog(guildID, "", "", int(actionType), auditLimit)
	if err != nil || logs == nil {
		if err != nil {
			b.logger.Warn("audit log read failed", zap.String("guild_id", guildID), zap.Error(err))
		}
		return ""
	}
	return matchAuditActor(logs.AuditLogEntries, targetID, time.Now(), maxAge)
}

// matchAuditActor returns the executor of the newest entry targeting
// targetID that is younger than maxAge.
func matchAuditActor(entries []*discordgo.AuditLogEntry, targetID string, now time.Time, maxAge time.Duration) string {
	for _, entry := range entries {
		if entry == nil {
			continue
		}
		if targetID != "" && entry.TargetID != targetID {
			continue
		}
		ts, err := discordgo.SnowflakeTimestamp(entry.ID)
		if err == nil && now.Sub(ts) > maxAge {
			continue
		}
		return entry.UserID
	}
	return ""
}

func (b *Bot) recoverHandler(event, guildID string) {
	if r := recover(); r != nil {
		b.logger.Error("handler panic",
			zap.String("event", event),
			zap.String("guild_id", guildID),
			zap.String("panic", fmt.Sprint(r)),
			zap.ByteString("stack", debug.Stack()),
		)
	}
}

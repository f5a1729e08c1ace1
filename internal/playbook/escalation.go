package playbook

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"sentinel-antinuke/internal/metrics"

	"go.uber.org/zap"
)

const (
	ActionNone        = "none"
	ActionMute        = "mute"
	ActionStripRoles  = "remove_permissions"
	ActionKick        = "kick"
	alertColorWarning = 0xF39C12
)

type ThreatResult struct {
	Action       string
	Success      bool
	Err          error
	OffenseCount int
}

// TierAction maps a cumulative offense number to its remediation.
func TierAction(offense int) string {
	switch {
	case offense <= 1:
		return ActionMute
	case offense == 2:
		return ActionStripRoles
	default:
		return ActionKick
	}
}

func (e *Engine) responseLabel(action string) string {
	switch action {
	case ActionMute:
		return fmt.Sprintf("Muted for %d minutes", int(e.cfg.MuteDuration.Minutes()))
	case ActionStripRoles:
		return "Permissions removed"
	case ActionKick:
		return "Kicked from server"
	default:
		return "No action"
	}
}

// HandleThreat escalates against a non-exempt, non-owner offender whose
// breach is already confirmed. The ledger is incremented first and counts
// even when the remediation below fails, so a repeat breach always moves
// to the next tier. Only a ledger failure is returned as an error;
// remediation failures are reported in the result.
func (e *Engine) HandleThreat(ctx context.Context, guildID, offenderID, actionType string) (ThreatResult, error) {
	offense, err := e.ledger.IncrementOffense(ctx, guildID, offenderID)
	if err != nil {
		e.logger.Error("offense increment failed",
			zap.String("guild_id", guildID),
			zap.String("user_id", offenderID),
			zap.Error(err),
		)
		return ThreatResult{Action: ActionNone, Err: err}, fmt.Errorf("increment offense: %w", err)
	}

	guild := e.guild(ctx, guildID)
	action := TierAction(offense)
	e.alertOwner(ctx, guild, offenderID, actionType, offense, action)

	result := ThreatResult{Action: action, OffenseCount: offense}
	switch action {
	case ActionMute:
		result.Err = e.mute(ctx, guildID, offenderID)
	case ActionStripRoles:
		result.Err = e.stripRoles(ctx, guildID, offenderID)
	default:
		result.Err = e.platform.KickMember(ctx, guildID, offenderID, "Anti-nuke: offense #"+strconv.Itoa(offense)+", removed from server")
	}
	result.Success = result.Err == nil
	metrics.Remediations.WithLabelValues(action, metrics.Outcome(result.Success)).Inc()

	fields := []zap.Field{
		zap.String("guild_id", guildID),
		zap.String("user_id", offenderID),
		zap.String("action", action),
		zap.Int("offense", offense),
	}
	if result.Err != nil {
		e.logger.Error("remediation failed", append(fields, zap.Error(result.Err))...)
	} else {
		e.logger.Info("remediation applied", fields...)
	}
	return result, nil
}

func (e *Engine) mute(ctx context.Context, guildID, userID string) error {
	until := e.clock.Now().Add(e.cfg.MuteDuration)
	return e.platform.TimeoutMember(ctx, guildID, userID, until, "Anti-nuke: 1st offense, timed out")
}

// stripRoles removes every role except the guild's default role. Each
// removal is attempted; failures are joined.
func (e *Engine) stripRoles(ctx context.Context, guildID, userID string) error {
	member, err := e.platform.Member(ctx, guildID, userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return fmt.Errorf("offender not in guild: %w", err)
		}
		return err
	}

	var errs []error
	for _, roleID := range member.RoleIDs {
		if roleID == guildID {
			continue
		}
		if err := e.platform.RemoveMemberRole(ctx, guildID, userID, roleID, "Anti-nuke: 2nd offense, removing permissions"); err != nil {
			e.logger.Warn("role removal failed",
				zap.String("guild_id", guildID),
				zap.String("user_id", userID),
				zap.String("role_id", roleID),
				zap.Error(err),
			)
			errs = append(errs, fmt.Errorf("remove role %s: %w", roleID, err))
		}
	}
	return errors.Join(errs...)
}

func (e *Engine) alertOwner(ctx context.Context, guild Guild, offenderID, actionType string, offense int, action string) {
	if guild.OwnerID == "" {
		e.logger.Warn("owner alert skipped: owner unknown", zap.String("guild_id", guild.ID))
		return
	}

	offender := offenderID
	if user, err := e.platform.User(ctx, offenderID); err == nil && user.Tag != "" {
		offender = fmt.Sprintf("%s (%s)", user.Tag, offenderID)
	}

	notice := Notice{
		Title:       "Anti-Nuke Alert",
		Description: fmt.Sprintf("Suspicious activity detected in **%s**", guild.Name),
		Color:       alertColorWarning,
		Fields: []NoticeField{
			{Name: "User", Value: offender, Inline: true},
			{Name: "Action Type", Value: actionType, Inline: true},
			{Name: "Offense #", Value: strconv.Itoa(offense), Inline: true},
			{Name: "Response", Value: e.responseLabel(action)},
		},
		Timestamp: e.clock.Now(),
	}
	if err := e.platform.SendDM(ctx, guild.OwnerID, notice); err != nil {
		e.logger.Warn("owner alert failed",
			zap.String("guild_id", guild.ID),
			zap.String("owner_id", guild.OwnerID),
			zap.Error(err),
		)
	}
}

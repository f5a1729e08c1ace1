package guard

import (
	"context"
	"fmt"

	"sentinel-antinuke/internal/modules/antinuke"
	"sentinel-antinuke/internal/playbook"

	"go.uber.org/zap"
)

type Action struct {
	GuildID    string
	ActorID    string
	ActionType string
	TargetID   string
	RoleIDs    []string
}

// Outcome describes what ProcessAction or ProcessMessage did. Threat and
// Failover are set only when that path ran.
type Outcome struct {
	IncidentID string
	Count      int
	Exceeded   bool
	Owner      bool
	Exempt     bool
	Threat     *playbook.ThreatResult
	Failover   *playbook.OwnerThreatResult
}

// ProcessAction records one destructive action and, on breach, routes the
// actor: the owner goes to failover, exempt actors are left alone and
// everyone else is escalated. Exemption is checked against the settings
// current at breach time. A breach whose guild owner cannot be resolved is
// logged and left unhandled.
func (g *Guard) ProcessAction(ctx context.Context, action Action) (Outcome, error) {
	result, err := g.CheckAndLogAction(ctx, action.GuildID, action.ActorID, action.ActionType, action.TargetID)
	if err != nil {
		return Outcome{}, fmt.Errorf("check action: %w", err)
	}
	outcome := Outcome{Count: result.Count, Exceeded: result.Exceeded}
	if !result.Exceeded {
		return outcome, nil
	}

	outcome.IncidentID = g.newID()
	fields := []zap.Field{
		zap.String("incident_id", outcome.IncidentID),
		zap.String("guild_id", action.GuildID),
		zap.String("user_id", action.ActorID),
		zap.String("action", action.ActionType),
		zap.Int("count", result.Count),
	}

	ownerID, err := g.ownerOf(ctx, action.GuildID)
	if err != nil {
		g.logger.Error("breach left unhandled: guild owner unknown", append(fields, zap.Error(err))...)
		return outcome, nil
	}
	outcome.Owner = action.ActorID != "" && action.ActorID == ownerID
	if outcome.Owner {
		g.logger.Warn("owner breach detected", fields...)
		failover, err := g.HandleOwnerThreat(ctx, action.GuildID, "")
		if err != nil {
			return outcome, err
		}
		outcome.Failover = &failover
		g.notifyBreach(ctx, action, result, outcome)
		return outcome, nil
	}

	exempt, err := g.IsWhitelisted(ctx, action.GuildID, action.ActorID, action.RoleIDs)
	if err != nil {
		return outcome, fmt.Errorf("check whitelist: %w", err)
	}
	if exempt {
		outcome.Exempt = true
		g.logger.Info("breach by exempt actor ignored", fields...)
		return outcome, nil
	}

	g.logger.Warn("breach detected", fields...)
	threat, err := g.HandleThreat(ctx, action.GuildID, action.ActorID, threatLabel(action.ActionType))
	if err != nil {
		return outcome, err
	}
	outcome.Threat = &threat
	g.notifyBreach(ctx, action, result, outcome)
	return outcome, nil
}

// ProcessMessage feeds one message to the spam tracker. A spam breach by
// the owner triggers failover with the flooded channel; other authors are
// only reported. Both fire once, when the count first reaches the limit.
func (g *Guard) ProcessMessage(ctx context.Context, guildID, authorID, channelID string) (Outcome, error) {
	result, err := g.CheckMessageSpam(ctx, guildID, authorID, channelID)
	if err != nil {
		return Outcome{}, fmt.Errorf("check message spam: %w", err)
	}
	outcome := Outcome{Count: result.Count, Exceeded: result.Exceeded}
	if !result.Exceeded || result.Count != g.spam.Threshold() {
		return outcome, nil
	}

	outcome.IncidentID = g.newID()
	action := Action{GuildID: guildID, ActorID: authorID, ActionType: "message_spam", TargetID: channelID}
	fields := []zap.Field{
		zap.String("incident_id", outcome.IncidentID),
		zap.String("guild_id", guildID),
		zap.String("user_id", authorID),
		zap.String("channel_id", channelID),
		zap.Int("count", result.Count),
	}

	ownerID, err := g.ownerOf(ctx, guildID)
	if err != nil {
		g.logger.Error("spam breach left unhandled: guild owner unknown", append(fields, zap.Error(err))...)
		return outcome, nil
	}
	outcome.Owner = authorID != "" && authorID == ownerID
	if outcome.Owner {
		g.logger.Warn("owner message spam detected", fields...)
		failover, err := g.HandleOwnerThreat(ctx, guildID, result.ChannelID)
		if err != nil {
			return outcome, err
		}
		outcome.Failover = &failover
	} else {
		g.logger.Warn("message spam detected", fields...)
	}
	g.notifyBreach(ctx, action, antinuke.Result{Exceeded: true, Count: result.Count}, outcome)
	return outcome, nil
}

func threatLabel(actionType string) string {
	return "mass_" + actionType
}

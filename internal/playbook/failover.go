package playbook

import (
	"context"
	"errors"
	"fmt"

	"sentinel-antinuke/internal/metrics"
	"sentinel-antinuke/internal/modules/antinuke"

	"go.uber.org/zap"
)

const (
	StepDeleteChannel     = "delete_channel"
	StepResolveTrusted    = "resolve_trusted_user"
	StepLocateRole        = "locate_role"
	StepCreateRole        = "create_role"
	StepGrantRole         = "grant_role"
	StepNotifyTrustedUser = "notify_trusted_user"

	alertColorEmergency = 0xE74C3C
)

type StepOutcome string

const (
	OutcomeSucceeded StepOutcome = "succeeded"
	OutcomeFailed    StepOutcome = "failed"
	OutcomeSkipped   StepOutcome = "skipped"
)

type StepResult struct {
	Step    string
	Outcome StepOutcome
	Err     error
}

// OwnerThreatResult reports the failover. Success means emergency access
// was granted, or that there was nobody to grant it to. Steps lists every
// step in order so callers can see exactly which one failed.
type OwnerThreatResult struct {
	Success            bool
	TrustedUserAlerted bool
	Reason             string
	Steps              []StepResult
}

func (r OwnerThreatResult) Step(name string) (StepResult, bool) {
	for _, step := range r.Steps {
		if step.Step == name {
			return step, true
		}
	}
	return StepResult{}, false
}

type failoverRun struct {
	engine  *Engine
	guildID string
	result  OwnerThreatResult
}

func (r *failoverRun) record(step string, err error) bool {
	outcome := OutcomeSucceeded
	if err != nil {
		outcome = OutcomeFailed
		r.engine.logger.Error("failover step failed",
			zap.String("guild_id", r.guildID),
			zap.String("step", step),
			zap.Error(err),
		)
	}
	r.result.Steps = append(r.result.Steps, StepResult{Step: step, Outcome: outcome, Err: err})
	metrics.FailoverSteps.WithLabelValues(step, string(outcome)).Inc()
	return err == nil
}

func (r *failoverRun) skip(step string) {
	r.result.Steps = append(r.result.Steps, StepResult{Step: step, Outcome: OutcomeSkipped})
	metrics.FailoverSteps.WithLabelValues(step, string(OutcomeSkipped)).Inc()
}

// HandleOwnerThreat replaces escalation when the breaching actor owns the
// guild. It deletes the offending channel if one is given, then hands an
// administrator role to the trusted fallback user and tells them. The
// emergency role is found by name before one is created, so re-running
// after a restart reuses it. Only a settings read failure is returned as
// an error.
func (e *Engine) HandleOwnerThreat(ctx context.Context, guildID, channelID string) (OwnerThreatResult, error) {
	run := &failoverRun{engine: e, guildID: guildID}

	if channelID != "" {
		run.record(StepDeleteChannel, e.platform.DeleteChannel(ctx, channelID, "Anti-nuke: owner compromise detected"))
	}

	settings, err := e.settings.Settings(ctx, guildID)
	if err != nil {
		e.logger.Error("failover settings read failed", zap.String("guild_id", guildID), zap.Error(err))
		return run.result, fmt.Errorf("load settings: %w", err)
	}

	trustedID := antinuke.NormalizeUserID(settings.TrustedUser)
	if trustedID == "" {
		run.skip(StepResolveTrusted)
		run.result.Success = true
		run.result.Reason = "no trusted user configured"
		e.logger.Warn("owner compromise with no trusted user", zap.String("guild_id", guildID))
		return run.result, nil
	}

	if _, err := e.platform.Member(ctx, guildID, trustedID); err != nil {
		if errors.Is(err, ErrNotFound) {
			run.skip(StepResolveTrusted)
			run.result.Success = true
			run.result.Reason = "trusted user not in guild"
			e.logger.Warn("trusted user not in guild", zap.String("guild_id", guildID), zap.String("user_id", trustedID))
			return run.result, nil
		}
		run.record(StepResolveTrusted, err)
		run.result.Reason = "trusted user lookup failed"
		return run.result, nil
	}
	run.record(StepResolveTrusted, nil)

	role, haveRole := e.fallbackRole(ctx, run)

	granted := false
	if haveRole {
		granted = run.record(StepGrantRole, e.platform.AddMemberRole(ctx, guildID, trustedID, role.ID, "Anti-nuke: owner compromise detected"))
	} else {
		run.skip(StepGrantRole)
	}
	if granted {
		e.logger.Warn("fallback admin granted", zap.String("guild_id", guildID), zap.String("user_id", trustedID), zap.String("role_id", role.ID))
	}

	guild := e.guild(ctx, guildID)
	notice := e.emergencyNotice(guild, granted)
	run.result.TrustedUserAlerted = run.record(StepNotifyTrustedUser, e.platform.SendDM(ctx, trustedID, notice))
	run.result.Success = granted
	if !granted {
		run.result.Reason = "fallback role could not be granted"
	}
	return run.result, nil
}

// fallbackRole locates the emergency role by its reserved name, creating it
// only when the lookup succeeded and found nothing.
func (e *Engine) fallbackRole(ctx context.Context, run *failoverRun) (Role, bool) {
	roles, err := e.platform.GuildRoles(ctx, run.guildID)
	if !run.record(StepLocateRole, err) {
		run.skip(StepCreateRole)
		return Role{}, false
	}
	for _, role := range roles {
		if role.Name == e.cfg.FallbackRoleName {
			run.skip(StepCreateRole)
			return role, true
		}
	}

	role, err := e.platform.CreateRole(ctx, run.guildID, RoleSpec{
		Name:        e.cfg.FallbackRoleName,
		Color:       e.cfg.FallbackRoleColor,
		Permissions: PermissionAdministrator,
	}, "Anti-nuke: emergency fallback admin role")
	if !run.record(StepCreateRole, err) {
		return Role{}, false
	}
	e.logger.Info("fallback role created", zap.String("guild_id", run.guildID), zap.String("role_id", role.ID))
	return role, true
}

func (e *Engine) emergencyNotice(guild Guild, granted bool) Notice {
	description := fmt.Sprintf("The owner of **%s** appears to be performing malicious actions.\n\n", guild.Name)
	if granted {
		description += fmt.Sprintf("You have been granted Administrator permissions via the **%s** role.\n\nPlease take immediate action to secure the server.", e.cfg.FallbackRoleName)
	} else {
		description += fmt.Sprintf("The **%s** role could not be granted to you automatically. Please take immediate action to secure the server.", e.cfg.FallbackRoleName)
	}
	return Notice{
		Title:       "EMERGENCY: Owner Account Compromise Detected",
		Description: description,
		Color:       alertColorEmergency,
		Fields: []NoticeField{
			{Name: "Server", Value: guild.Name, Inline: true},
			{Name: "Server ID", Value: guild.ID, Inline: true},
		},
		Timestamp: e.clock.Now(),
	}
}

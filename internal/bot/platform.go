package bot

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"sentinel-antinuke/internal/playbook"

	"github.com/bwmarrin/discordgo"
)

const maxFieldValue = 1024

// DiscordPlatform implements playbook.Platform and guard.Authority on a
// discordgo session. Reads prefer the gateway state cache.
type DiscordPlatform struct {
	session *discordgo.Session
}

func newPlatform(session *discordgo.Session) *DiscordPlatform {
	return &DiscordPlatform{session: session}
}

func (p *DiscordPlatform) rawGuild(ctx context.Context, guildID string) (*discordgo.Guild, error) {
	if p.session.State != nil {
		if guild, err := p.session.State.Guild(guildID); err == nil && guild != nil {
			return guild, nil
		}
	}
	guild, err := p.session.Guild(guildID, discordgo.WithContext(ctx))
	if err != nil {
		return nil, mapError(err)
	}
	return guild, nil
}

func (p *DiscordPlatform) rawMember(ctx context.Context, guildID, userID string) (*discordgo.Member, error) {
	if p.session.State != nil {
		if member, err := p.session.State.Member(guildID, userID); err == nil && member != nil {
			return member, nil
		}
	}
	member, err := p.session.GuildMember(guildID, userID, discordgo.WithContext(ctx))
	if err != nil {
		return nil, mapError(err)
	}
	return member, nil
}

func (p *DiscordPlatform) Guild(ctx context.Context, guildID string) (playbook.Guild, error) {
	guild, err := p.rawGuild(ctx, guildID)
	if err != nil {
		return playbook.Guild{}, err
	}
	return playbook.Guild{ID: guild.ID, Name: guild.Name, OwnerID: guild.OwnerID}, nil
}

func (p *DiscordPlatform) Member(ctx context.Context, guildID, userID string) (playbook.Member, error) {
	member, err := p.rawMember(ctx, guildID, userID)
	if err != nil {
		return playbook.Member{}, err
	}
	result := playbook.Member{UserID: userID, RoleIDs: append([]string(nil), member.Roles...)}
	if member.User != nil {
		result.Username = member.User.Username
	}
	return result, nil
}

func (p *DiscordPlatform) User(ctx context.Context, userID string) (playbook.User, error) {
	user, err := p.session.User(userID, discordgo.WithContext(ctx))
	if err != nil {
		return playbook.User{}, mapError(err)
	}
	return playbook.User{ID: user.ID, Tag: user.String()}, nil
}

func (p *DiscordPlatform) SendDM(ctx context.Context, userID string, notice playbook.Notice) error {
	channel, err := p.session.UserChannelCreate(userID, discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("open dm channel: %w", mapError(err))
	}
	return p.SendChannelNotice(ctx, channel.ID, notice)
}

func (p *DiscordPlatform) SendChannelNotice(ctx context.Context, channelID string, notice playbook.Notice) error {
	_, err := p.session.ChannelMessageSendEmbed(channelID, toEmbed(notice), discordgo.WithContext(ctx))
	return mapError(err)
}

func (p *DiscordPlatform) TimeoutMember(ctx context.Context, guildID, userID string, until time.Time, reason string) error {
	return mapError(p.session.GuildMemberTimeout(guildID, userID, &until, discordgo.WithContext(ctx), discordgo.WithAuditLogReason(reason)))
}

func (p *DiscordPlatform) RemoveMemberRole(ctx context.Context, guildID, userID, roleID, reason string) error {
	return mapError(p.session.GuildMemberRoleRemove(guildID, userID, roleID, discordgo.WithContext(ctx), discordgo.WithAuditLogReason(reason)))
}

func (p *DiscordPlatform) KickMember(ctx context.Context, guildID, userID, reason string) error {
	return mapError(p.session.GuildMemberDeleteWithReason(guildID, userID, reason, discordgo.WithContext(ctx)))
}

func (p *DiscordPlatform) DeleteChannel(ctx context.Context, channelID, reason string) error {
	_, err := p.session.ChannelDelete(channelID, discordgo.WithContext(ctx), discordgo.WithAuditLogReason(reason))
	return mapError(err)
}

func (p *DiscordPlatform) GuildRoles(ctx context.Context, guildID string) ([]playbook.Role, error) {
	roles, err := p.session.GuildRoles(guildID, discordgo.WithContext(ctx))
	if err != nil {
		return nil, mapError(err)
	}
	result := make([]playbook.Role, 0, len(roles))
	for _, role := range roles {
		if role == nil {
			continue
		}
		result = append(result, playbook.Role{ID: role.ID, Name: role.Name})
	}
	return result, nil
}

func (p *DiscordPlatform) CreateRole(ctx context.Context, guildID string, spec playbook.RoleSpec, reason string) (playbook.Role, error) {
	color := spec.Color
	permissions := spec.Permissions
	hoist := false
	mentionable := false
	role, err := p.session.GuildRoleCreate(guildID, &discordgo.RoleParams{
		Name:        spec.Name,
		Color:       &color,
		Hoist:       &hoist,
		Permissions: &permissions,
		Mentionable: &mentionable,
	}, discordgo.WithContext(ctx), discordgo.WithAuditLogReason(reason))
	if err != nil {
		return playbook.Role{}, mapError(err)
	}
	return playbook.Role{ID: role.ID, Name: role.Name}, nil
}

func (p *DiscordPlatform) AddMemberRole(ctx context.Context, guildID, userID, roleID, reason string) error {
	return mapError(p.session.GuildMemberRoleAdd(guildID, userID, roleID, discordgo.WithContext(ctx), discordgo.WithAuditLogReason(reason)))
}

// IsAdministrator reports whether the member's roles, including @everyone,
// grant the administrator permission.
func (p *DiscordPlatform) IsAdministrator(ctx context.Context, guildID, userID string) (bool, error) {
	guild, err := p.rawGuild(ctx, guildID)
	if err != nil {
		return false, err
	}
	if guild.OwnerID == userID {
		return true, nil
	}
	member, err := p.rawMember(ctx, guildID, userID)
	if err != nil {
		return false, err
	}
	roles := guild.Roles
	if len(roles) == 0 {
		roles, err = p.session.GuildRoles(guildID, discordgo.WithContext(ctx))
		if err != nil {
			return false, mapError(err)
		}
	}
	return memberHasAdmin(guild.ID, roles, member.Roles), nil
}

func memberHasAdmin(guildID string, roles []*discordgo.Role, memberRoles []string) bool {
	roleMap := make(map[string]*discordgo.Role, len(roles))
	perms := int64(0)
	for _, role := range roles {
		if role == nil {
			continue
		}
		roleMap[role.ID] = role
		if role.ID == guildID {
			perms |= role.Permissions
		}
	}
	for _, roleID := range memberRoles {
		if role := roleMap[roleID]; role != nil {
			perms |= role.Permissions
		}
	}
	return perms&discordgo.PermissionAdministrator != 0
}

// mapError turns Discord's unknown-entity responses into
// playbook.ErrNotFound.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	var restErr *discordgo.RESTError
	if errors.As(err, &restErr) {
		if restErr.Message != nil {
			switch restErr.Message.Code {
			case discordgo.ErrCodeUnknownMember, discordgo.ErrCodeUnknownUser, discordgo.ErrCodeUnknownGuild, discordgo.ErrCodeUnknownChannel, discordgo.ErrCodeUnknownRole:
				return fmt.Errorf("%w: %v", playbook.ErrNotFound, err)
			}
		}
		if restErr.Response != nil && restErr.Response.StatusCode == http.StatusNotFound {
			return fmt.Errorf("%w: %v", playbook.ErrNotFound, err)
		}
	}
	if errors.Is(err, discordgo.ErrStateNotFound) {
		return fmt.Errorf("%w: %v", playbook.ErrNotFound, err)
	}
	return err
}

func toEmbed(notice playbook.Notice) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		Title:       notice.Title,
		Description: notice.Description,
		Color:       notice.Color,
		Footer:      &discordgo.MessageEmbedFooter{Text: "Sentinel Anti-Nuke"},
	}
	if !notice.Timestamp.IsZero() {
		embed.Timestamp = notice.Timestamp.Format(time.RFC3339)
	}
	for _, field := range notice.Fields {
		value := field.Value
		if value == "" {
			value = "-"
		}
		if len(value) > maxFieldValue {
			value = value[:maxFieldValue-3] + "..."
		}
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{Name: field.Name, Value: value, Inline: field.Inline})
	}
	return embed
}

package guard

import (
	"context"
	"errors"
	"fmt"

	"sentinel-antinuke/internal/modules/antinuke"
	"sentinel-antinuke/internal/storage"

	"go.uber.org/zap"
)

var (
	ErrNotAuthorized = errors.New("administrator permission required")
	ErrOwnerOnly     = errors.New("only the server owner can change the trusted user")
)

// Authority answers whether a member holds administrator permission.
type Authority interface {
	IsAdministrator(ctx context.Context, guildID, userID string) (bool, error)
}

// UpdateSettings applies mutate to the guild's current settings and saves
// the result. The actor must be the owner or an administrator; changing the
// trusted user is reserved to the owner.
func (g *Guard) UpdateSettings(ctx context.Context, guildID, actorID string, mutate func(*storage.AntinukeSettings)) (storage.AntinukeSettings, error) {
	isOwner, err := g.authorize(ctx, guildID, actorID)
	if err != nil {
		return storage.AntinukeSettings{}, err
	}

	current, err := g.settings.Settings(ctx, guildID)
	if err != nil {
		return storage.AntinukeSettings{}, err
	}
	updated := current
	updated.WhitelistedUsers = append([]string(nil), current.WhitelistedUsers...)
	updated.WhitelistedRoles = append([]string(nil), current.WhitelistedRoles...)
	mutate(&updated)
	updated.GuildID = guildID

	if antinuke.NormalizeUserID(updated.TrustedUser) != antinuke.NormalizeUserID(current.TrustedUser) && !isOwner {
		return storage.AntinukeSettings{}, ErrOwnerOnly
	}
	if err := g.settings.save(ctx, updated); err != nil {
		return storage.AntinukeSettings{}, err
	}
	g.logger.Info("antinuke settings updated",
		zap.String("guild_id", guildID),
		zap.String("user_id", actorID),
		zap.Bool("enabled", updated.Enabled),
		zap.Int("threshold", updated.Threshold),
		zap.Int("time_window", updated.TimeWindow),
	)
	return updated, nil
}

func (g *Guard) AddToWhitelist(ctx context.Context, guildID, actorID string, kind storage.WhitelistKind, id string) error {
	if _, err := g.authorize(ctx, guildID, actorID); err != nil {
		return err
	}
	if kind == storage.WhitelistUsers {
		id = antinuke.NormalizeUserID(id)
	}
	if err := g.settings.backend.AddToWhitelist(ctx, guildID, kind, id, g.settings.defaults); err != nil {
		return fmt.Errorf("add to whitelist: %w", err)
	}
	return nil
}

func (g *Guard) RemoveFromWhitelist(ctx context.Context, guildID, actorID string, kind storage.WhitelistKind, id string) error {
	if _, err := g.authorize(ctx, guildID, actorID); err != nil {
		return err
	}
	if kind == storage.WhitelistUsers {
		id = antinuke.NormalizeUserID(id)
	}
	if err := g.settings.backend.RemoveFromWhitelist(ctx, guildID, kind, id); err != nil {
		return fmt.Errorf("remove from whitelist: %w", err)
	}
	return nil
}

// authorize reports whether the actor is the owner, or fails if the actor
// is neither owner nor administrator.
func (g *Guard) authorize(ctx context.Context, guildID, actorID string) (bool, error) {
	guild, err := g.platform.Guild(ctx, guildID)
	if err != nil {
		return false, fmt.Errorf("load guild: %w", err)
	}
	if guild.OwnerID != "" && guild.OwnerID == actorID {
		return true, nil
	}
	if g.authority == nil {
		return false, ErrNotAuthorized
	}
	admin, err := g.authority.IsAdministrator(ctx, guildID, actorID)
	if err != nil {
		return false, fmt.Errorf("check permissions: %w", err)
	}
	if !admin {
		return false, ErrNotAuthorized
	}
	return false, nil
}

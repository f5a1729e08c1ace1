package antinuke

import (
	"context"
	"strings"

	"sentinel-antinuke/internal/storage"
)

// NormalizeUserID strips mention decoration: "<@123>", "<@!123>" and "123"
// all become "123".
func NormalizeUserID(raw string) string {
	id := strings.TrimSpace(raw)
	if strings.HasPrefix(id, "<@!") {
		id = id[3:]
	} else if strings.HasPrefix(id, "<@") {
		id = id[2:]
	}
	id = strings.TrimSuffix(id, ">")
	return strings.TrimSpace(id)
}

// IsWhitelisted reports whether the actor is exempt under the given
// settings: listed directly, the trusted fallback user, or holding a
// whitelisted role.
func IsWhitelisted(settings storage.AntinukeSettings, actorID string, roleIDs []string) bool {
	if actorID == "" {
		return false
	}
	for _, id := range settings.WhitelistedUsers {
		if id == actorID {
			return true
		}
	}
	if settings.TrustedUser != "" {
		if NormalizeUserID(settings.TrustedUser) == NormalizeUserID(actorID) {
			return true
		}
	}
	if len(roleIDs) == 0 || len(settings.WhitelistedRoles) == 0 {
		return false
	}
	roleSet := make(map[string]struct{}, len(settings.WhitelistedRoles))
	for _, id := range settings.WhitelistedRoles {
		roleSet[id] = struct{}{}
	}
	for _, roleID := range roleIDs {
		if _, ok := roleSet[roleID]; ok {
			return true
		}
	}
	return false
}

// IsWhitelisted evaluates exemption against the guild's current settings.
func (m *Module) IsWhitelisted(ctx context.Context, guildID, actorID string, roleIDs []string) (bool, error) {
	settings, err := m.settings.Settings(ctx, guildID)
	if err != nil {
		return false, err
	}
	return IsWhitelisted(settings, actorID, roleIDs), nil
}

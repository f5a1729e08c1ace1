package playbook

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by a Platform when a guild, member or user does
// not exist (or is no longer reachable).
var ErrNotFound = errors.New("not found")

// PermissionAdministrator is the platform's administrator permission bit.
const PermissionAdministrator int64 = 1 << 3

type Guild struct {
	ID      string
	Name    string
	OwnerID string
}

type Member struct {
	UserID   string
	Username string
	RoleIDs  []string
}

type User struct {
	ID  string
	Tag string
}

type Role struct {
	ID   string
	Name string
}

type RoleSpec struct {
	Name        string
	Color       int
	Permissions int64
}

type NoticeField struct {
	Name   string
	Value  string
	Inline bool
}

// Notice is a platform-neutral rich message used for DMs and log-channel
// posts.
type Notice struct {
	Title       string
	Description string
	Color       int
	Fields      []NoticeField
	Timestamp   time.Time
}

// Platform is every chat-platform call the playbook makes. Each call is
// individually fallible; implementations must return errors, never panic.
type Platform interface {
	Guild(ctx context.Context, guildID string) (Guild, error)
	Member(ctx context.Context, guildID, userID string) (Member, error)
	User(ctx context.Context, userID string) (User, error)
	SendDM(ctx context.Context, userID string, notice Notice) error
	SendChannelNotice(ctx context.Context, channelID string, notice Notice) error
	TimeoutMember(ctx context.Context, guildID, userID string, until time.Time, reason string) error
	RemoveMemberRole(ctx context.Context, guildID, userID, roleID, reason string) error
	KickMember(ctx context.Context, guildID, userID, reason string) error
	DeleteChannel(ctx context.Context, channelID, reason string) error
	GuildRoles(ctx context.Context, guildID string) ([]Role, error)
	CreateRole(ctx context.Context, guildID string, spec RoleSpec, reason string) (Role, error)
	AddMemberRole(ctx context.Context, guildID, userID, roleID, reason string) error
}

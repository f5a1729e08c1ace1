package bot

import (
	"errors"
	"net/http"
	"strconv"
	"testing"
	"time"

	"sentinel-antinuke/internal/playbook"

	"github.com/bwmarrin/discordgo"
)

const discordEpoch = 1420070400000

func snowflakeAt(t time.Time) string {
	ms := t.UnixMilli() - discordEpoch
	return strconv.FormatInt(ms<<22, 10)
}

func TestMatchAuditActor(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	entries := []*discordgo.AuditLogEntry{
		nil,
		{ID: snowflakeAt(now.Add(-time.Second)), TargetID: "other", UserID: "u-other"},
		{ID: snowflakeAt(now.Add(-2 * time.Second)), TargetID: "victim", UserID: "kicker"},
	}
	if got := matchAuditActor(entries, "victim", now, 5*time.Second); got != "kicker" {
		t.Fatalf("expected kicker, got %q", got)
	}
	if got := matchAuditActor(entries, "victim", now.Add(10*time.Second), 5*time.Second); got != "" {
		t.Fatalf("expected stale entry ignored, got %q", got)
	}
	if got := matchAuditActor(entries, "missing", now, 5*time.Second); got != "" {
		t.Fatalf("expected no match, got %q", got)
	}
}

func TestMemberHasAdmin(t *testing.T) {
	roles := []*discordgo.Role{
		{ID: "g1", Permissions: 0},
		{ID: "mod", Permissions: discordgo.PermissionKickMembers},
		{ID: "admin", Permissions: discordgo.PermissionAdministrator},
	}
	if memberHasAdmin("g1", roles, []string{"mod"}) {
		t.Fatalf("moderator must not be admin")
	}
	if !memberHasAdmin("g1", roles, []string{"mod", "admin"}) {
		t.Fatalf("expected admin")
	}
	roles[0].Permissions = discordgo.PermissionAdministrator
	if !memberHasAdmin("g1", roles, nil) {
		t.Fatalf("expected @everyone admin to apply")
	}
}

func TestMapErrorUnknownMember(t *testing.T) {
	err := &discordgo.RESTError{
		Response: &http.Response{StatusCode: http.StatusNotFound},
		Message:  &discordgo.APIErrorMessage{Code: discordgo.ErrCodeUnknownMember, Message: "Unknown Member"},
	}
	if !errors.Is(mapError(err), playbook.ErrNotFound) {
		t.Fatalf("expected ErrNotFound")
	}
	forbidden := &discordgo.RESTError{
		Response: &http.Response{StatusCode: http.StatusForbidden},
		Message:  &discordgo.APIErrorMessage{Code: discordgo.ErrCodeMissingPermissions},
	}
	if errors.Is(mapError(forbidden), playbook.ErrNotFound) {
		t.Fatalf("permission errors must not map to ErrNotFound")
	}
	if mapError(nil) != nil {
		t.Fatalf("nil must stay nil")
	}
}

func TestToEmbed(t *testing.T) {
	long := make([]byte, 2000)
	for i := range long {
		long[i] = 'x'
	}
	embed := toEmbed(playbook.Notice{
		Title:     "Anti-Nuke Alert",
		Timestamp: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		Fields: []playbook.NoticeField{
			{Name: "Empty"},
			{Name: "Long", Value: string(long)},
		},
	})
	if embed.Timestamp != "2024-01-01T00:00:00Z" {
		t.Fatalf("unexpected timestamp %q", embed.Timestamp)
	}
	if embed.Fields[0].Value != "-" || len(embed.Fields[1].Value) != maxFieldValue {
		t.Fatalf("unexpected fields: %q / %d", embed.Fields[0].Value, len(embed.Fields[1].Value))
	}
}

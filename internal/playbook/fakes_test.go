package playbook

import (
	"context"
	"fmt"
	"sync"
	"time"

	"sentinel-antinuke/internal/storage"

	"go.uber.org/zap"
)

type call struct {
	method string
	args   []string
}

type dm struct {
	userID string
	notice Notice
}

type fakePlatform struct {
	mu       sync.Mutex
	guild    Guild
	guildErr error
	members  map[string]Member
	users    map[string]User
	roles    []Role
	nextRole int

	memberErr      error
	rolesErr       error
	createRoleErr  error
	addRoleErr     error
	removeRoleErr  map[string]error
	timeoutErr     error
	kickErr        error
	deleteErr      error
	dmErr          error
	channelNotices []Notice

	dms   []dm
	calls []call
}

func newFakePlatform() *fakePlatform {
	return &fakePlatform{
		guild:   Guild{ID: "g1", Name: "Test Guild", OwnerID: "owner"},
		members: map[string]Member{},
		users:   map[string]User{},
	}
}

func (f *fakePlatform) record(method string, args ...string) {
	f.calls = append(f.calls, call{method: method, args: args})
}

func (f *fakePlatform) count(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c.method == method {
			n++
		}
	}
	return n
}

func (f *fakePlatform) Guild(ctx context.Context, guildID string) (Guild, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.guildErr != nil {
		return Guild{}, f.guildErr
	}
	return f.guild, nil
}

func (f *fakePlatform) Member(ctx context.Context, guildID, userID string) (Member, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("Member", userID)
	if f.memberErr != nil {
		return Member{}, f.memberErr
	}
	member, ok := f.members[userID]
	if !ok {
		return Member{}, ErrNotFound
	}
	return member, nil
}

func (f *fakePlatform) User(ctx context.Context, userID string) (User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	user, ok := f.users[userID]
	if !ok {
		return User{}, ErrNotFound
	}
	return user, nil
}

func (f *fakePlatform) SendDM(ctx context.Context, userID string, notice Notice) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("SendDM", userID)
	if f.dmErr != nil {
		return f.dmErr
	}
	f.dms = append(f.dms, dm{userID: userID, notice: notice})
	return nil
}

func (f *fakePlatform) SendChannelNotice(ctx context.Context, channelID string, notice Notice) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("SendChannelNotice", channelID)
	f.channelNotices = append(f.channelNotices, notice)
	return nil
}

func (f *fakePlatform) TimeoutMember(ctx context.Context, guildID, userID string, until time.Time, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("TimeoutMember", userID, until.Format(time.RFC3339))
	return f.timeoutErr
}

func (f *fakePlatform) RemoveMemberRole(ctx context.Context, guildID, userID, roleID, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("RemoveMemberRole", userID, roleID)
	return f.removeRoleErr[roleID]
}

func (f *fakePlatform) KickMember(ctx context.Context, guildID, userID, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("KickMember", userID)
	return f.kickErr
}

func (f *fakePlatform) DeleteChannel(ctx context.Context, channelID, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("DeleteChannel", channelID)
	return f.deleteErr
}

func (f *fakePlatform) GuildRoles(ctx context.Context, guildID string) ([]Role, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("GuildRoles")
	if f.rolesErr != nil {
		return nil, f.rolesErr
	}
	return append([]Role(nil), f.roles...), nil
}

func (f *fakePlatform) CreateRole(ctx context.Context, guildID string, spec RoleSpec, reason string) (Role, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("CreateRole", spec.Name)
	if f.createRoleErr != nil {
		return Role{}, f.createRoleErr
	}
	f.nextRole++
	role := Role{ID: fmt.Sprintf("role-%d", f.nextRole), Name: spec.Name}
	f.roles = append(f.roles, role)
	return role, nil
}

func (f *fakePlatform) AddMemberRole(ctx context.Context, guildID, userID, roleID, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("AddMemberRole", userID, roleID)
	return f.addRoleErr
}

type fakeLedger struct {
	mu     sync.Mutex
	counts map[string]int
	err    error
}

func (f *fakeLedger) IncrementOffense(ctx context.Context, guildID, userID string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return 0, f.err
	}
	if f.counts == nil {
		f.counts = map[string]int{}
	}
	f.counts[guildID+":"+userID]++
	return f.counts[guildID+":"+userID], nil
}

type fakeSettings struct {
	settings storage.AntinukeSettings
	err      error
}

func (f *fakeSettings) Settings(ctx context.Context, guildID string) (storage.AntinukeSettings, error) {
	if f.err != nil {
		return storage.AntinukeSettings{}, f.err
	}
	settings := f.settings
	settings.GuildID = guildID
	return settings, nil
}

type fakeClock struct{ now time.Time }

func (f *fakeClock) Now() time.Time { return f.now }

func newTestEngine(settings storage.AntinukeSettings) (*Engine, *fakePlatform, *fakeLedger, *fakeClock) {
	platform := newFakePlatform()
	ledger := &fakeLedger{}
	engine := New(Config{}, platform, ledger, &fakeSettings{settings: settings}, zap.NewNop())
	clock := &fakeClock{now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
	engine.WithClock(clock)
	return engine, platform, ledger, clock
}

package antinuke

import (
	"context"
	"errors"
	"testing"
	"time"

	"sentinel-antinuke/internal/modules/audit"
	"sentinel-antinuke/internal/storage"

	"go.uber.org/zap"
)

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

type fakeAuditStore struct {
	records []storage.ActionRecord
	err     error
}

func (f *fakeAuditStore) LogAntinukeAction(ctx context.Context, record storage.ActionRecord) error {
	if f.err != nil {
		return f.err
	}
	f.records = append(f.records, record)
	return nil
}

type fakeClock struct{ now time.Time }

func (f *fakeClock) Now() time.Time { return f.now }

func newTestModule(settings storage.AntinukeSettings) (*Module, *fakeAuditStore, *fakeClock) {
	store := &fakeAuditStore{}
	module := New(&fakeSettings{settings: settings}, audit.NewLogger(store, zap.NewNop()))
	clock := &fakeClock{now: time.Unix(0, 0)}
	module.WithClock(clock)
	return module, store, clock
}

func TestCheckAndLogActionDisabled(t *testing.T) {
	module, store, _ := newTestModule(storage.AntinukeSettings{Enabled: false, Threshold: 1, TimeWindow: 60})
	result, err := module.CheckAndLogAction(context.Background(), "g1", "u1", audit.ActionBan, "t1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Exceeded || result.Count != 0 {
		t.Fatalf("expected no detection, got %+v", result)
	}
	if len(store.records) != 0 || module.Tracked() != 0 {
		t.Fatalf("expected nothing recorded")
	}
}

func TestCheckAndLogActionReachesThreshold(t *testing.T) {
	module, store, clock := newTestModule(storage.AntinukeSettings{Enabled: true, Threshold: 3, TimeWindow: 60})
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		result, err := module.CheckAndLogAction(ctx, "g1", "u1", audit.ActionChannelDelete, "c")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if result.Count != i {
			t.Fatalf("call %d: expected count %d, got %d", i, i, result.Count)
		}
		if result.Exceeded != (i == 3) {
			t.Fatalf("call %d: unexpected exceeded=%t", i, result.Exceeded)
		}
		clock.now = clock.now.Add(5 * time.Second)
	}
	if len(store.records) != 3 {
		t.Fatalf("expected every action audited, got %d", len(store.records))
	}
}

func TestCheckAndLogActionAgesOut(t *testing.T) {
	module, _, clock := newTestModule(storage.AntinukeSettings{Enabled: true, Threshold: 5, TimeWindow: 5})
	ctx := context.Background()

	var result Result
	for i := 0; i < 5; i++ {
		var err error
		result, err = module.CheckAndLogAction(ctx, "g1", "u1", audit.ActionKick, "")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		clock.now = clock.now.Add(2 * time.Second)
	}
	if result.Exceeded {
		t.Fatalf("expected no breach once early actions aged out, got %+v", result)
	}
	if result.Count != 3 {
		t.Fatalf("expected 3 actions inside window, got %d", result.Count)
	}
}

func TestCheckAndLogActionAuditFailure(t *testing.T) {
	store := &fakeAuditStore{err: errors.New("db down")}
	module := New(&fakeSettings{settings: storage.AntinukeSettings{Enabled: true, Threshold: 1, TimeWindow: 10}}, audit.NewLogger(store, zap.NewNop()))
	if _, err := module.CheckAndLogAction(context.Background(), "g1", "u1", audit.ActionBan, ""); err == nil {
		t.Fatalf("expected audit error")
	}
	if module.Tracked() != 0 {
		t.Fatalf("expected window untouched after failed audit write")
	}
}

func TestCheckAndLogActionSettingsFailure(t *testing.T) {
	module := New(&fakeSettings{err: errors.New("db down")}, audit.NewLogger(&fakeAuditStore{}, zap.NewNop()))
	if _, err := module.CheckAndLogAction(context.Background(), "g1", "u1", audit.ActionBan, ""); err == nil {
		t.Fatalf("expected settings error")
	}
}

package antispam

import (
	"context"
	"testing"
	"time"

	"sentinel-antinuke/internal/modules/audit"
	"sentinel-antinuke/internal/storage"

	"go.uber.org/zap"
)

type fakeSettings struct{ enabled bool }

func (f fakeSettings) Settings(ctx context.Context, guildID string) (storage.AntinukeSettings, error) {
	return storage.AntinukeSettings{GuildID: guildID, Enabled: f.enabled, Threshold: 3, TimeWindow: 60}, nil
}

type fakeAuditStore struct{ records []storage.ActionRecord }

func (f *fakeAuditStore) LogAntinukeAction(ctx context.Context, record storage.ActionRecord) error {
	f.records = append(f.records, record)
	return nil
}

type fakeClock struct{ now time.Time }

func (f *fakeClock) Now() time.Time { return f.now }

func TestMessageSpamFixedThreshold(t *testing.T) {
	store := &fakeAuditStore{}
	module := New(Config{}, fakeSettings{enabled: true}, audit.NewLogger(store, zap.NewNop()))
	clock := &fakeClock{now: time.Unix(0, 0)}
	module.WithClock(clock)
	ctx := context.Background()

	var result Result
	for i := 0; i < DefaultThreshold; i++ {
		var err error
		result, err = module.CheckMessageSpam(ctx, "g1", "u1", "c1")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if i < DefaultThreshold-1 && result.Exceeded {
			t.Fatalf("message %d: unexpected breach", i+1)
		}
		clock.now = clock.now.Add(100 * time.Millisecond)
	}
	if !result.Exceeded || result.Count != DefaultThreshold || result.ChannelID != "c1" {
		t.Fatalf("expected breach on message %d, got %+v", DefaultThreshold, result)
	}
	if len(store.records) != 1 || store.records[0].ActionType != audit.ActionMessageSpam || store.records[0].TargetID != "c1" {
		t.Fatalf("expected one message_spam audit row, got %+v", store.records)
	}
}

func TestMessageSpamWindowExpires(t *testing.T) {
	module := New(Config{Threshold: 2, Window: 10 * time.Second}, fakeSettings{enabled: true}, audit.NewLogger(&fakeAuditStore{}, zap.NewNop()))
	clock := &fakeClock{now: time.Unix(0, 0)}
	module.WithClock(clock)
	ctx := context.Background()

	module.CheckMessageSpam(ctx, "g1", "u1", "c1")
	clock.now = clock.now.Add(11 * time.Second)
	result, _ := module.CheckMessageSpam(ctx, "g1", "u1", "c1")
	if result.Exceeded || result.Count != 1 {
		t.Fatalf("expected old message aged out, got %+v", result)
	}
}

func TestMessageSpamDisabled(t *testing.T) {
	module := New(Config{Threshold: 1}, fakeSettings{enabled: false}, audit.NewLogger(&fakeAuditStore{}, zap.NewNop()))
	result, err := module.CheckMessageSpam(context.Background(), "g1", "u1", "c1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Exceeded || result.Count != 0 || result.ChannelID != "c1" {
		t.Fatalf("expected silent result, got %+v", result)
	}
	if module.Tracked() != 0 {
		t.Fatalf("expected nothing tracked")
	}
}

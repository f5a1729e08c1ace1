package audit

import (
	"context"
	"fmt"
	"time"

	"sentinel-antinuke/internal/storage"

	"go.uber.org/zap"
)

const (
	LevelInfo = "INFO"
	LevelWarn = "WARN"
	LevelCrit = "CRIT"
)

// Action types written to the forensic trail.
const (
	ActionBan           = "ban"
	ActionKick          = "kick"
	ActionChannelDelete = "channel_delete"
	ActionRoleDelete    = "role_delete"
	ActionMessageSpam   = "message_spam"
)

type Store interface {
	LogAntinukeAction(ctx context.Context, record storage.ActionRecord) error
}

type Logger struct {
	store  Store
	logger *zap.Logger
	now    func() time.Time
}

func NewLogger(store Store, logger *zap.Logger) *Logger {
	return &Logger{store: store, logger: logger, now: time.Now}
}

// Log persists one action record and mirrors it to the process log. A
// failed write is returned: without it the detection result for this event
// cannot be trusted.
func (l *Logger) Log(ctx context.Context, level, guildID, executorID, actionType, targetID string) error {
	record := storage.ActionRecord{
		GuildID:    guildID,
		ExecutorID: executorID,
		ActionType: actionType,
		TargetID:   targetID,
		CreatedAt:  l.now(),
	}
	fields := []zap.Field{
		zap.String("level", level),
		zap.String("guild_id", guildID),
		zap.String("user_id", executorID),
		zap.String("action", actionType),
		zap.String("target_id", targetID),
	}
	if l.store != nil {
		if err := l.store.LogAntinukeAction(ctx, record); err != nil {
			l.logger.Error("audit write failed", append(fields, zap.Error(err))...)
			return fmt.Errorf("log antinuke action: %w", err)
		}
	}
	if level == LevelInfo {
		l.logger.Debug("audit", fields...)
	} else {
		l.logger.Warn("audit", fields...)
	}
	return nil
}

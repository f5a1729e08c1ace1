package guard

import (
	"context"
	"time"

	"sentinel-antinuke/internal/metrics"
	"sentinel-antinuke/internal/storage"

	"go.uber.org/zap"
)

// SweepService is the tracker garbage collector. It runs on a fixed
// interval regardless of traffic and prunes both trackers.
type SweepService struct {
	guard    *Guard
	interval time.Duration
	maxAge   time.Duration
}

func NewSweepService(guard *Guard, interval, maxAge time.Duration) *SweepService {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	if floor := storage.MaxTimeWindow * time.Second; maxAge < floor {
		maxAge = floor
	}
	return &SweepService{guard: guard, interval: interval, maxAge: maxAge}
}

// Serve implements suture.Service.
func (s *SweepService) Serve(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.Sweep()
		}
	}
}

// Sweep drops timestamps older than maxAge and removes emptied keys.
func (s *SweepService) Sweep() int {
	now := s.guard.clock.Now()
	removed := s.guard.nuke.Sweep(now, s.maxAge) + s.guard.spam.Sweep(now, s.maxAge)
	metrics.SweepRemoved.Add(float64(removed))
	s.guard.refreshTracked()
	if removed > 0 {
		s.guard.logger.Debug("tracker sweep", zap.Int("removed", removed))
	}
	return removed
}

func (s *SweepService) String() string {
	return "tracker-sweep"
}

type ActionPurger interface {
	ClearAntinukeActions(ctx context.Context, guildID string, before time.Time) (int64, error)
}

// RetentionService purges persisted action records older than the
// retention period across every guild.
type RetentionService struct {
	store     ActionPurger
	retention time.Duration
	interval  time.Duration
	logger    *zap.Logger
	clock     Clock
}

func NewRetentionService(store ActionPurger, retention time.Duration, logger *zap.Logger) *RetentionService {
	if retention <= 0 {
		retention = 24 * time.Hour
	}
	return &RetentionService{
		store:     store,
		retention: retention,
		interval:  time.Hour,
		logger:    logger,
		clock:     realClock{},
	}
}

func (s *RetentionService) Serve(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		if _, err := s.Purge(ctx); err != nil && ctx.Err() == nil {
			s.logger.Warn("action retention purge failed", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (s *RetentionService) Purge(ctx context.Context) (int64, error) {
	cutoff := s.clock.Now().Add(-s.retention)
	deleted, err := s.store.ClearAntinukeActions(ctx, "", cutoff)
	if err != nil {
		return 0, err
	}
	if deleted > 0 {
		s.logger.Info("action records purged", zap.Int64("deleted", deleted), zap.Time("before", cutoff))
	}
	return deleted, nil
}

func (s *RetentionService) String() string {
	return "action-retention"
}

package analytics

import (
	"context"
	"sort"
	"time"

	"sentinel-antinuke/internal/storage"
)

type Source interface {
	GetRecentActions(ctx context.Context, guildID, executorID string, since time.Time) ([]storage.ActionRecord, error)
}

type Service struct {
	source Source
}

func New(source Source) *Service {
	return &Service{source: source}
}

type ExecutorSummary struct {
	ExecutorID string
	Total      int
	ByAction   map[string]int
	LastAt     time.Time
}

type Report struct {
	Total     int
	ByAction  map[string]int
	Executors []ExecutorSummary
}

// Report groups a guild's recorded actions since the cutoff by executor,
// busiest executor first. An empty executorID covers every executor.
func (s *Service) Report(ctx context.Context, guildID, executorID string, since time.Time) (Report, error) {
	records, err := s.source.GetRecentActions(ctx, guildID, executorID, since)
	if err != nil {
		return Report{}, err
	}

	report := Report{ByAction: make(map[string]int)}
	byExecutor := make(map[string]*ExecutorSummary)
	for _, record := range records {
		report.Total++
		report.ByAction[record.ActionType]++

		summary, ok := byExecutor[record.ExecutorID]
		if !ok {
			summary = &ExecutorSummary{ExecutorID: record.ExecutorID, ByAction: make(map[string]int)}
			byExecutor[record.ExecutorID] = summary
		}
		summary.Total++
		summary.ByAction[record.ActionType]++
		if record.CreatedAt.After(summary.LastAt) {
			summary.LastAt = record.CreatedAt
		}
	}

	for _, summary := range byExecutor {
		report.Executors = append(report.Executors, *summary)
	}
	sort.Slice(report.Executors, func(i, j int) bool {
		a, b := report.Executors[i], report.Executors[j]
		if a.Total != b.Total {
			return a.Total > b.Total
		}
		return a.ExecutorID < b.ExecutorID
	})
	return report, nil
}

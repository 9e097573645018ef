package storage

import (
	"context"
	"math"

	"github.com/jdziat/recipe-ingest/pkg/core"
)

// GetStats returns job counts per status plus derived health ratios.
func (s *GormStorage) GetStats(ctx context.Context) (*core.Stats, error) {
	type row struct {
		Status string
		Count  int64
	}
	var rows []row
	err := s.db.WithContext(ctx).
		Model(&core.IngestionJob{}).
		Select("status, count(*) as count").
		Group("status").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	stats := &core.Stats{Counts: make(map[core.JobStatus]int64, len(core.AllStatuses))}
	for _, st := range core.AllStatuses {
		stats.Counts[st] = 0
	}
	for _, r := range rows {
		stats.Counts[core.JobStatus(r.Status)] += r.Count
		stats.Total += r.Count
	}
	stats.DLQSize = stats.Counts[core.StatusDLQ]

	if stats.Total > 0 {
		succeeded := stats.Counts[core.StatusCompleted] + stats.Counts[core.StatusCompletedDuplicate]
		stats.SuccessRate = round4(float64(succeeded) / float64(stats.Total))
		stats.ReviewRate = round4(float64(stats.Counts[core.StatusNeedsReview]) / float64(stats.Total))
	}

	var avg struct {
		Avg *float64
	}
	err = s.db.WithContext(ctx).
		Model(&core.IngestionJob{}).
		Select("avg(confidence_score) as avg").
		Where("confidence_score IS NOT NULL").
		Scan(&avg).Error
	if err != nil {
		return nil, err
	}
	if avg.Avg != nil {
		v := round4(*avg.Avg)
		stats.AverageConfidence = &v
	}

	if err := s.db.WithContext(ctx).Model(&core.RecipeFingerprint{}).Count(&stats.Fingerprints).Error; err != nil {
		return nil, err
	}
	return stats, nil
}

func round4(f float64) float64 {
	return math.Round(f*10000) / 10000
}

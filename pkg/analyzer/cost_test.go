package analyzer_test

import (
	"testing"
	"time"

	. "github.com/confiture/confiture/pkg/analyzer"
	"github.com/stretchr/testify/require"
)

func TestIsExpensiveThresholds(t *testing.T) {
	rules := DefaultRules()

	tests := []struct {
		name     string
		duration float64
		disk     float64
		cpu      float64
		want     bool
	}{
		{name: "all_below", duration: 9999, disk: 99, cpu: 79, want: false},
		{name: "duration_at_threshold", duration: 10000, disk: 0, cpu: 0, want: true},
		{name: "duration_one_below", duration: 9999, disk: 0, cpu: 0, want: false},
		{name: "disk_at_threshold", duration: 0, disk: 100, cpu: 0, want: true},
		{name: "disk_one_below", duration: 0, disk: 99, cpu: 0, want: false},
		{name: "cpu_at_threshold", duration: 0, disk: 0, cpu: 80, want: true},
		{name: "cpu_one_below", duration: 0, disk: 0, cpu: 79, want: false},
		{name: "all_at_threshold", duration: 10000, disk: 100, cpu: 80, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, rules.IsExpensive(tt.duration, tt.disk, tt.cpu))
		})
	}
}

func TestEstimate(t *testing.T) {
	estimator := NewCostEstimator(DefaultRules())

	t.Run("without_impact", func(t *testing.T) {
		cost := estimator.Estimate("SELECT 1", nil)
		require.False(t, cost.IsExpensive)
		require.Greater(t, cost.EstimatedDurationMS, 0.0)
		require.Zero(t, cost.EstimatedDiskUsageMB)
	})

	t.Run("expensive_via_disk", func(t *testing.T) {
		impact := &Impact{Tables: []TableImpact{{
			Table:                 "events",
			EstimatedSizeChangeMB: 250,
		}}}

		cost := estimator.Estimate("UPDATE events SET v = 1 WHERE true", impact)
		require.True(t, cost.IsExpensive)
		require.NotEmpty(t, cost.Warnings)
	})

	t.Run("expensive_via_duration", func(t *testing.T) {
		impact := &Impact{Tables: []TableImpact{{
			Table:        "events",
			AffectedRows: 1_000_000,
		}}}

		// 1M updated rows at 0.02ms/row dominates the 10s threshold.
		cost := estimator.Estimate("UPDATE events SET v = 1", impact)
		require.True(t, cost.IsExpensive)
		require.GreaterOrEqual(t, cost.EstimatedDurationMS, 10000.0)
		require.Equal(t, 100.0, cost.TotalCostScore)
	})

	t.Run("recommended_batch_size", func(t *testing.T) {
		// 5s target at 0.02ms/row for updates.
		cost := estimator.Estimate("UPDATE events SET v = 1 WHERE id = 1", nil)
		require.Equal(t, int64(250000), cost.RecommendedBatchSize)

		// DDL has no per-row cost and therefore no batch recommendation.
		cost = estimator.Estimate("DROP TABLE events", nil)
		require.Zero(t, cost.RecommendedBatchSize)
	})

	t.Run("custom_batch_duration", func(t *testing.T) {
		est := NewCostEstimator(DefaultRules().WithTargetBatchDuration(time.Second))
		cost := est.Estimate("UPDATE events SET v = 1 WHERE id = 1", nil)
		require.Equal(t, int64(50000), cost.RecommendedBatchSize)
	})
}

func TestAggregate(t *testing.T) {
	estimator := NewCostEstimator(DefaultRules())

	t.Run("empty", func(t *testing.T) {
		total := estimator.Aggregate(nil)
		require.Zero(t, total.EstimatedDurationMS)
		require.False(t, total.IsExpensive)
	})

	t.Run("sums_and_weighted_cpu", func(t *testing.T) {
		costs := []*Cost{
			{EstimatedDurationMS: 100, EstimatedDiskUsageMB: 10, EstimatedCPUPercent: 20, RecommendedBatchSize: 1000},
			{EstimatedDurationMS: 300, EstimatedDiskUsageMB: 30, EstimatedCPUPercent: 60, RecommendedBatchSize: 500},
		}

		total := estimator.Aggregate(costs)
		require.Equal(t, 400.0, total.EstimatedDurationMS)
		require.Equal(t, 40.0, total.EstimatedDiskUsageMB)
		// (20*100 + 60*300) / 400 = 50
		require.Equal(t, 50.0, total.EstimatedCPUPercent)
		require.Equal(t, int64(500), total.RecommendedBatchSize)
		require.False(t, total.IsExpensive)
	})

	t.Run("any_expensive_marks_total", func(t *testing.T) {
		costs := []*Cost{
			{EstimatedDurationMS: 10},
			{EstimatedDurationMS: 20000, IsExpensive: true},
		}

		total := estimator.Aggregate(costs)
		require.True(t, total.IsExpensive)
	})
}

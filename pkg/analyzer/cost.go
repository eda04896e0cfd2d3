package analyzer

import (
	"math"

	"github.com/confiture/confiture/pkg/parser"
)

type (
	// Cost is the heuristic resource estimate for one statement.
	Cost struct {
		EstimatedDurationMS  float64  `json:"estimated_duration_ms"`
		EstimatedDiskUsageMB float64  `json:"estimated_disk_usage_mb"`
		EstimatedCPUPercent  float64  `json:"estimated_cpu_percent"`
		RecommendedBatchSize int64    `json:"recommended_batch_size"`

		// TotalCostScore is a normalized 0-100 composite: the maximum of the
		// three raw estimates' ratios to their expensive thresholds, scaled
		// to 100 and capped.
		TotalCostScore float64 `json:"total_cost_score"`

		// IsExpensive is true iff any individual threshold is met,
		// independent of the composite score.
		IsExpensive bool     `json:"is_expensive"`
		Warnings    []string `json:"warnings,omitempty"`
	}

	// CostEstimator combines statement type, impact figures, and a per-type
	// base cost model into resource estimates.
	CostEstimator struct {
		rules Rules
	}
)

// NewCostEstimator creates a cost estimator bound to the given rule set.
func NewCostEstimator(rules Rules) *CostEstimator {
	return &CostEstimator{rules: rules}
}

// Estimate produces the cost projection for a statement. impact may be nil
// when impact analysis is disabled; the estimate then degrades to the
// per-type base cost.
func (e *CostEstimator) Estimate(stmt string, impact *Impact) *Cost {
	shape := parser.ScanShape(stmt)
	model := e.rules.costFor(shape.Kind)

	var (
		rows   int64
		diskMB float64
	)
	if impact != nil {
		for _, t := range impact.Tables {
			rows += t.AffectedRows
			diskMB += math.Abs(t.EstimatedSizeChangeMB)
			if shape.Kind == parser.KindCreateIndex {
				// An index is typically a fraction of the table it covers.
				diskMB += t.SizeMB * 0.3
			}
		}
	}

	cost := &Cost{
		EstimatedDurationMS:  model.baseMS + float64(rows)*model.perRowMS,
		EstimatedDiskUsageMB: diskMB,
		EstimatedCPUPercent:  math.Min(100, model.cpuPercent+float64(rows)/100000),
		RecommendedBatchSize: e.batchSize(model),
	}

	cost.IsExpensive = e.rules.IsExpensive(cost.EstimatedDurationMS, cost.EstimatedDiskUsageMB, cost.EstimatedCPUPercent)

	cost.TotalCostScore = e.score(cost)

	if cost.IsExpensive {
		cost.Warnings = append(cost.Warnings, "statement exceeds an expensive-operation threshold")
	}
	if rows > 0 && cost.RecommendedBatchSize > 0 && rows > cost.RecommendedBatchSize {
		cost.Warnings = append(cost.Warnings, "consider batching: affected rows exceed the recommended batch size")
	}

	return cost
}

// Aggregate combines per-statement estimates for a whole migration: summed
// duration and disk, duration-weighted average CPU, and the minimum
// recommended batch size. IsExpensive is true when any element is.
func (e *CostEstimator) Aggregate(costs []*Cost) *Cost {
	if len(costs) == 0 {
		return &Cost{}
	}

	total := &Cost{RecommendedBatchSize: costs[0].RecommendedBatchSize}

	var weightedCPU float64
	for _, c := range costs {
		total.EstimatedDurationMS += c.EstimatedDurationMS
		total.EstimatedDiskUsageMB += c.EstimatedDiskUsageMB
		weightedCPU += c.EstimatedCPUPercent * c.EstimatedDurationMS
		total.IsExpensive = total.IsExpensive || c.IsExpensive
		total.Warnings = append(total.Warnings, c.Warnings...)
		if c.RecommendedBatchSize < total.RecommendedBatchSize {
			total.RecommendedBatchSize = c.RecommendedBatchSize
		}
	}

	if total.EstimatedDurationMS > 0 {
		total.EstimatedCPUPercent = weightedCPU / total.EstimatedDurationMS
	}
	total.TotalCostScore = e.score(total)

	return total
}

// batchSize derives the recommended rows-per-batch from the target batch
// duration and the per-row cost of the statement type.
func (e *CostEstimator) batchSize(model statementCost) int64 {
	if model.perRowMS <= 0 {
		return 0
	}

	size := int64(float64(e.rules.TargetBatchDuration.Milliseconds()) / model.perRowMS)
	if size < 1 {
		size = 1
	}

	return size
}

// score implements the documented composite formula: the maximum of the
// three threshold ratios scaled to 100, capped at 100.
func (e *CostEstimator) score(c *Cost) float64 {
	ratio := math.Max(c.EstimatedDurationMS/e.rules.ExpensiveDurationMS,
		math.Max(c.EstimatedDiskUsageMB/e.rules.ExpensiveDiskMB,
			c.EstimatedCPUPercent/e.rules.ExpensiveCPUPercent))

	return math.Min(100, ratio*100)
}

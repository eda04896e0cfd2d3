package analyzer

import "time"

type (
	// StatementAnalysis is the per-statement record in a dry-run report.
	// Impact, Concurrency, and Cost are nil when the corresponding stage is
	// disabled; ExecutionTimeMS is non-nil only for execute-and-analyze
	// runs.
	StatementAnalysis struct {
		Statement      string         `json:"statement"`
		Classification Classification `json:"classification"`
		Note           string         `json:"note,omitempty"`
		Impact         *Impact        `json:"impact,omitempty"`
		Concurrency    *Concurrency   `json:"concurrency,omitempty"`
		Cost           *Cost          `json:"cost,omitempty"`
		ExecutionTimeMS *float64      `json:"execution_time_ms,omitempty"`
		RowsAffected    *int64        `json:"rows_affected,omitempty"`
		Err             string        `json:"error,omitempty"`
	}

	// Report aggregates the analyses for one migration plus derived totals.
	// A report is immutable once returned.
	Report struct {
		MigrationID          string              `json:"migration_id"`
		StartedAt            time.Time           `json:"started_at"`
		CompletedAt          time.Time           `json:"completed_at"`
		StatementsAnalyzed   int                 `json:"statements_analyzed"`
		UnsafeCount          int                 `json:"unsafe_count"`
		HasUnsafeStatements  bool                `json:"has_unsafe_statements"`
		TotalEstimatedTimeMS float64             `json:"total_estimated_time_ms"`
		TotalEstimatedDiskMB float64             `json:"total_estimated_disk_mb"`
		Warnings             []string            `json:"warnings,omitempty"`
		Analyses             []StatementAnalysis `json:"analyses"`
	}
)

// finalize derives the report totals from its analyses. Called exactly once
// before the report is returned.
func (r *Report) finalize() {
	r.CompletedAt = time.Now().UTC()
	r.StatementsAnalyzed = len(r.Analyses)

	for _, a := range r.Analyses {
		if a.Classification == Unsafe {
			r.UnsafeCount++
			r.Warnings = append(r.Warnings, "unsafe statement: "+summarize(a.Statement)+" ("+a.Note+")")
		}
		if a.Cost != nil {
			r.TotalEstimatedTimeMS += a.Cost.EstimatedDurationMS
			r.TotalEstimatedDiskMB += a.Cost.EstimatedDiskUsageMB
			r.Warnings = append(r.Warnings, a.Cost.Warnings...)
		}
		if a.Impact != nil {
			r.Warnings = append(r.Warnings, a.Impact.Warnings...)
		}
	}

	r.HasUnsafeStatements = r.UnsafeCount > 0
}

// summarize trims a statement for inclusion in a warning line.
func summarize(stmt string) string {
	const max = 70
	if len(stmt) <= max {
		return stmt
	}

	return stmt[:max] + "..."
}
